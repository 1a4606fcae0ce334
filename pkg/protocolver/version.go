// Package protocolver tracks the canonicalisation protocol version
// carried in every artifact's SchemaVersion field. Per spec.md §4.2, the
// canonicalisation algorithm is a fixed contract: any change to how a
// type's content is serialised before hashing is a breaking protocol
// version bump, never a silent in-place change.
package protocolver

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Current is the canonicalisation protocol version this build's hasher
// and schema set implement. Bump the minor version for additive,
// non-breaking schema fields; bump major for any change that would alter
// an existing artifact's content_hash for unchanged logical content.
const Current = "1.0.0"

// Parse validates a schema_version string against semver.
func Parse(v string) (*semver.Version, error) {
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return nil, fmt.Errorf("protocolver: invalid schema_version %q: %w", v, err)
	}
	return parsed, nil
}

// Compatible reports whether an artifact stamped with schemaVersion can be
// re-canonicalised and re-hashed by this build without producing a
// different content_hash for unchanged input -- true iff the major
// version matches Current's.
func Compatible(schemaVersion string) (bool, error) {
	want, err := Parse(Current)
	if err != nil {
		return false, err
	}
	got, err := Parse(schemaVersion)
	if err != nil {
		return false, err
	}
	return got.Major() == want.Major(), nil
}
