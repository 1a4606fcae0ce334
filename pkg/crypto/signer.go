package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Signer produces Ed25519 signatures over arbitrary payloads. The
// Approval sub-package uses it to bind a human approver's identity to
// the exact artifact content_hash they approved.
type Signer interface {
	Sign(data []byte) (string, error)
	PublicKey() string
	PublicKeyBytes() []byte
}

// Ed25519Signer is the Signer implementation backed by an in-memory
// Ed25519 key pair.
type Ed25519Signer struct {
	privKey ed25519.PrivateKey
	pubKey  ed25519.PublicKey
	KeyID   string
}

// NewEd25519Signer generates a fresh key pair for keyID.
func NewEd25519Signer(keyID string) (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}
	return &Ed25519Signer{privKey: priv, pubKey: pub, KeyID: keyID}, nil
}

// NewEd25519SignerFromKey wraps an existing private key, e.g. one loaded
// from a secrets manager at startup.
func NewEd25519SignerFromKey(priv ed25519.PrivateKey, keyID string) *Ed25519Signer {
	return &Ed25519Signer{
		privKey: priv,
		pubKey:  priv.Public().(ed25519.PublicKey),
		KeyID:   keyID,
	}
}

// Sign returns the hex-encoded Ed25519 signature over data.
func (s *Ed25519Signer) Sign(data []byte) (string, error) {
	sig := ed25519.Sign(s.privKey, data)
	return hex.EncodeToString(sig), nil
}

// PublicKey returns the hex-encoded public key.
func (s *Ed25519Signer) PublicKey() string {
	return hex.EncodeToString(s.pubKey)
}

// PublicKeyBytes returns the raw public key.
func (s *Ed25519Signer) PublicKeyBytes() []byte {
	return s.pubKey
}

// Seed returns the 32-byte Ed25519 seed backing this key, for callers
// that need to persist and later reconstruct the private key via
// ed25519.NewKeyFromSeed.
func (s *Ed25519Signer) Seed() []byte {
	return s.privKey.Seed()
}

// DeriveSigner produces a deterministic child Ed25519Signer from this
// signer's seed via HKDF-SHA256, keyed on purpose so distinct call sites
// (e.g. the repair agent's execution-log signature vs. the approval
// root) never collide even though both trace back to one root seed.
func (s *Ed25519Signer) DeriveSigner(purpose, keyID string) (*Ed25519Signer, error) {
	if purpose == "" {
		return nil, fmt.Errorf("crypto: derive signer: purpose must not be empty")
	}
	r := hkdf.New(sha256.New, s.privKey.Seed(), []byte("orchestrator-signer-kdf"), []byte(purpose))
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, fmt.Errorf("crypto: derive signer: %w", err)
	}
	return NewEd25519SignerFromKey(ed25519.NewKeyFromSeed(seed), keyID), nil
}

// Verify checks signature against message using this signer's own key,
// convenient for round-trip tests.
func (s *Ed25519Signer) Verify(message []byte, signature []byte) bool {
	return ed25519.Verify(s.pubKey, message, signature)
}

// Verify checks a hex-encoded signature against a hex-encoded public key.
func Verify(pubKeyHex, sigHex string, data []byte) (bool, error) {
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return false, fmt.Errorf("invalid public key hex: %w", err)
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(pubKey) != ed25519.PublicKeySize {
		return false, fmt.Errorf("invalid public key size")
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), data, sig), nil
}
