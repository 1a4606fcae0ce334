package contracts

import "time"

// ApprovalReceipt is a cryptographic approval signed by a human operator,
// binding a human's Ed25519 identity to the exact artifact being approved.
//
//   - ArtifactHash links to the exact artifact content_hash being approved
//   - Signature is Ed25519 over ArtifactHash
//   - Timestamp enables temporal ordering of approvals; excluded from any
//     hash computed over the receipt itself
type ApprovalReceipt struct {
	// ArtifactHash is the content_hash of the artifact being approved.
	ArtifactHash string `json:"artifact_hash"`

	// ApproverID identifies the human operator.
	ApproverID string `json:"approver_id"`

	// PublicKey is the Ed25519 public key of the approver (hex-encoded).
	PublicKey string `json:"public_key"`

	// Signature is the Ed25519 signature over ArtifactHash (hex-encoded).
	Signature string `json:"signature"`

	// Timestamp of when the approval was signed.
	Timestamp time.Time `json:"timestamp"`

	// SessionID links this approval to a specific operator session.
	SessionID string `json:"session_id,omitempty"`
}

// ApprovalStatus represents the current state of an approval request.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
	ApprovalExpired  ApprovalStatus = "EXPIRED"
)

// ApprovalRequest represents a pending approval surfaced to operators,
// corresponding to one artifact in awaiting_approval status.
type ApprovalRequest struct {
	RequestID    string         `json:"request_id"`
	ArtifactID   string         `json:"artifact_id"`
	ArtifactHash string         `json:"artifact_hash"`
	ArtifactType ArtifactType   `json:"artifact_type"`
	Status       ApprovalStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	ExpiresAt    time.Time      `json:"expires_at,omitempty"`

	// Approval receipt, populated when status is APPROVED
	Receipt *ApprovalReceipt `json:"receipt,omitempty"`
}
