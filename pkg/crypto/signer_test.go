package crypto

import (
	"encoding/hex"
	"testing"
)

func TestSigner_RoundTripAndTamperDetection(t *testing.T) {
	signer, err := NewEd25519Signer("key-1")
	if err != nil {
		t.Fatalf("Failed to create signer: %v", err)
	}

	payload := []byte("artifact-hash:" + "deadbeef")

	sig, err := signer.Sign(payload)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if sig == "" {
		t.Fatal("signature empty")
	}

	ok, err := Verify(signer.PublicKey(), sig, payload)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Error("valid signature rejected")
	}

	tampered := []byte("artifact-hash:" + "cafebabe")
	ok, _ = Verify(signer.PublicKey(), sig, tampered)
	if ok {
		t.Error("tampered payload accepted")
	}
}

func TestEd25519Verifier_MatchesSigner(t *testing.T) {
	signer, err := NewEd25519Signer("key-2")
	if err != nil {
		t.Fatalf("Failed to create signer: %v", err)
	}
	verifier, err := NewEd25519Verifier(signer.PublicKeyBytes())
	if err != nil {
		t.Fatalf("Failed to create verifier: %v", err)
	}

	payload := []byte("payload")
	sigHex, err := signer.Sign(payload)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	if !verifier.Verify(payload, sig) {
		t.Error("verifier rejected a signature produced by the matching signer")
	}
}
