package contracts

import "time"

// Artifact is the typed record of a single producer output. Content is
// immutable once Status transitions to approved; before approval it may
// only be replaced by reject -> recreate, never by in-place edit.
type Artifact struct {
	ID         string       `json:"id"`
	RequestID  string       `json:"request_id"`
	Producer   string       `json:"producer"` // agent envelope name
	Type       ArtifactType `json:"type"`
	Content    []byte       `json:"content"` // canonical bytes
	ContentHash string      `json:"content_hash"`

	// InputHashes maps a required_inputs role name to the content_hash of
	// the approved artifact consumed for that role (I1).
	InputHashes map[string]string `json:"input_hashes,omitempty"`

	Status     ArtifactStatus `json:"status"`
	ApprovedBy string         `json:"approved_by,omitempty"`
	ApprovedAt *time.Time     `json:"approved_at,omitempty"`

	// Version is monotonically increasing per (request_id, type).
	Version int `json:"version"`

	// SchemaVersion is the canonicalisation protocol version this
	// artifact's content_hash was computed under (see pkg/protocolver).
	SchemaVersion string `json:"schema_version"`

	// ProducerRequestHash materializes the envelope runtime's dedup key
	// (H(envelope_name || input_hashes || schema_version)) as a stored,
	// queryable field.
	ProducerRequestHash string `json:"producer_request_hash,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
