// Package ledger implements the Artifact Ledger (C3): typed, hash-locked
// storage with producer/consumer chain integrity.
package ledger

import (
	"context"

	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
)

// Ledger is the durable interface for Artifact storage and lifecycle.
type Ledger interface {
	// PutDraft allocates an id, computes content_hash over content exactly
	// as given (it does not canonicalise; the Agent Host passes canonical
	// bytes), and writes the artifact with status awaiting_approval.
	// Fails with PROTOCOL if another artifact of the same (request, type)
	// is already awaiting_approval.
	PutDraft(ctx context.Context, requestID string, typ contracts.ArtifactType, content []byte, inputHashes map[string]string, producer, schemaVersion, producerRequestHash string) (*contracts.Artifact, error)

	// Approve re-hashes the stored content; on mismatch returns
	// an INTEGRITY error. Otherwise sets status approved and stamps
	// approver/time.
	Approve(ctx context.Context, artifactID, approver string) (*contracts.Artifact, error)

	// Reject soft-deletes: sets status rejected, retained for audit.
	Reject(ctx context.Context, artifactID, reason string) (*contracts.Artifact, error)

	// CurrentApproved returns the (request, type)'s approved artifact, or
	// nil if none exists.
	CurrentApproved(ctx context.Context, requestID string, typ contracts.ArtifactType) (*contracts.Artifact, error)

	// FindByProducerRequestHash looks up an existing awaiting_approval or
	// approved artifact carrying the given dedup key (§4.3 guarantee 5).
	FindByProducerRequestHash(ctx context.Context, requestID string, hash string) (*contracts.Artifact, error)

	// VerifyChain asserts that for every entry in the artifact's
	// input_hashes, a currently-approved artifact with that exact hash
	// exists in the same request.
	VerifyChain(ctx context.Context, artifactID string) error

	// Get retrieves an artifact by id.
	Get(ctx context.Context, artifactID string) (*contracts.Artifact, error)
}
