package approval_test

import (
	"strings"
	"testing"

	"github.com/IlyasuSeidu/forge-sub004/pkg/approval"
	"github.com/IlyasuSeidu/forge-sub004/pkg/crypto"
)

func TestIssueAndVerify(t *testing.T) {
	signer, err := crypto.NewEd25519Signer("op-key-1")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	issuer := approval.NewIssuer(signer)

	hash := strings.Repeat("a", 64)
	receipt, err := issuer.Issue(hash, "human-1", "session-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if receipt.ApproverID != "human-1" {
		t.Errorf("expected approver human-1, got %s", receipt.ApproverID)
	}

	if err := approval.Verify(receipt, hash); err != nil {
		t.Errorf("expected valid receipt to verify, got %v", err)
	}
}

func TestVerify_RejectsHashMismatch(t *testing.T) {
	signer, err := crypto.NewEd25519Signer("op-key-1")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	issuer := approval.NewIssuer(signer)

	hash := strings.Repeat("a", 64)
	receipt, err := issuer.Issue(hash, "human-1", "session-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other := strings.Repeat("b", 64)
	if err := approval.Verify(receipt, other); err == nil {
		t.Error("expected verify to reject a receipt for a different artifact hash")
	}
}

func TestVerify_RejectsTamperedSignature(t *testing.T) {
	signer, err := crypto.NewEd25519Signer("op-key-1")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	issuer := approval.NewIssuer(signer)

	hash := strings.Repeat("a", 64)
	receipt, err := issuer.Issue(hash, "human-1", "session-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	receipt.Signature = strings.Repeat("0", len(receipt.Signature))

	if err := approval.Verify(receipt, hash); err == nil {
		t.Error("expected verify to reject a tampered signature")
	}
}
