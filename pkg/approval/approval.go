// Package approval issues and verifies the cryptographic receipt that
// binds a human operator's identity to the exact artifact content_hash
// they approved (spec.md's "approval gate"). The receipt is a durability
// aid for audits; it is never consulted by the Ledger's own approve()
// integrity check (pkg/ledger re-hashes content independently per P4).
package approval

import (
	"fmt"
	"time"

	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
	"github.com/IlyasuSeidu/forge-sub004/pkg/crypto"
)

// Issuer signs approval receipts with a single Ed25519 identity key,
// shared by every operator session in a single-node deployment. A
// multi-operator deployment would key this per approver; wiring that is
// left to the consumer of this package.
type Issuer struct {
	signer crypto.Signer
}

// NewIssuer wraps a Signer.
func NewIssuer(signer crypto.Signer) *Issuer {
	return &Issuer{signer: signer}
}

// Issue signs a receipt over artifactHash, binding approverID and the
// given sessionID. Timestamp is excluded from any hash computed over the
// receipt itself (it is metadata, not part of what was signed).
func (i *Issuer) Issue(artifactHash, approverID, sessionID string) (*contracts.ApprovalReceipt, error) {
	sig, err := i.signer.Sign([]byte(artifactHash))
	if err != nil {
		return nil, fmt.Errorf("approval: sign receipt: %w", err)
	}
	return &contracts.ApprovalReceipt{
		ArtifactHash: artifactHash,
		ApproverID:   approverID,
		PublicKey:    i.signer.PublicKey(),
		Signature:    sig,
		Timestamp:    time.Now(),
		SessionID:    sessionID,
	}, nil
}

// Verify checks that a receipt's signature is valid over its own
// ArtifactHash and PublicKey, and that ArtifactHash matches the artifact
// actually being approved -- catching a receipt copied onto the wrong
// artifact.
func Verify(receipt *contracts.ApprovalReceipt, expectedArtifactHash string) error {
	if receipt == nil {
		return contracts.NewError(contracts.KindProtocol, "approval.Verify", "no receipt provided")
	}
	if receipt.ArtifactHash != expectedArtifactHash {
		return contracts.NewError(contracts.KindIntegrity, "approval.Verify",
			"receipt artifact_hash does not match the artifact being approved")
	}
	ok, err := crypto.Verify(receipt.PublicKey, receipt.Signature, []byte(receipt.ArtifactHash))
	if err != nil {
		return contracts.WrapError(contracts.KindIntegrity, "approval.Verify", "malformed signature", err)
	}
	if !ok {
		return contracts.NewError(contracts.KindIntegrity, "approval.Verify", "receipt signature does not verify")
	}
	return nil
}
