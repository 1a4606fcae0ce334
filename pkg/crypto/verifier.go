package crypto

import (
	"crypto/ed25519"
	"fmt"
)

// Verifier checks Ed25519 signatures against a fixed public key.
type Verifier interface {
	Verify(message []byte, signature []byte) bool
}

// Ed25519Verifier implements Verifier using a raw Ed25519 public key.
type Ed25519Verifier struct {
	PublicKey ed25519.PublicKey
}

// NewEd25519Verifier builds a Verifier from a raw public key.
func NewEd25519Verifier(pubKeyBytes []byte) (*Ed25519Verifier, error) {
	if len(pubKeyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key size: %d", len(pubKeyBytes))
	}
	return &Ed25519Verifier{PublicKey: ed25519.PublicKey(pubKeyBytes)}, nil
}

func (v *Ed25519Verifier) Verify(message []byte, signature []byte) bool {
	return ed25519.Verify(v.PublicKey, message, signature)
}
