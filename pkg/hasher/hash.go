package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hash returns the lowercase 64-character hex SHA-256 digest of raw bytes,
// the wire-stable hash format declared in the external interfaces.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CanonicalizeStructured serialises a structured (non-text) artifact body
// to its canonical byte form via JCS (sorted keys, no HTML escaping) and
// returns both the bytes and their hash. Callers must exclude any
// timestamp field from v before calling this; the canonicalisation
// contract forbids timestamps from entering the hash.
func CanonicalizeStructured(v interface{}) (canonical []byte, hash string, err error) {
	canonical, err = JCS(v)
	if err != nil {
		return nil, "", fmt.Errorf("hasher: canonicalize structured: %w", err)
	}
	return canonical, Hash(canonical), nil
}

// CanonicalizeText normalises a text artifact body (NFC + normalised line
// endings) and returns both the canonical bytes and their hash.
func CanonicalizeText(s string) (canonical []byte, hash string) {
	normalized := NormalizeText(s)
	b := []byte(normalized)
	return b, Hash(b)
}

// RequestHash computes H(envelope_name || input_hashes || schema_version),
// the envelope runtime's dedup key (§4.3 guarantee 5). input_hashes is
// sorted by role name internally via JCS's map-key sort, so callers may
// pass it in any order.
func RequestHash(envelopeName string, inputHashes map[string]string, schemaVersion string) (string, error) {
	type key struct {
		Envelope      string            `json:"envelope_name"`
		InputHashes   map[string]string `json:"input_hashes"`
		SchemaVersion string            `json:"schema_version"`
	}
	_, hash, err := CanonicalizeStructured(key{
		Envelope:      envelopeName,
		InputHashes:   inputHashes,
		SchemaVersion: schemaVersion,
	})
	return hash, err
}
