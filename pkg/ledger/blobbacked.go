package ledger

import (
	"context"

	"github.com/IlyasuSeidu/forge-sub004/pkg/blobstore"
	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
)

// BlobBacked wraps a Ledger with a write-through copy of every approved
// artifact's content into a content-addressed blobstore.Store. It exists
// so a SQL-backed Ledger can evict large inline content rows without
// losing the ability to rehydrate them by content_hash: Get transparently
// falls back to the blob store when the underlying Ledger returns an
// artifact with an empty Content but a non-empty ContentHash.
type BlobBacked struct {
	Ledger
	blobs blobstore.Store
}

// NewBlobBacked returns a Ledger that archives approved artifact content
// to blobs on Approve and rehydrates evicted rows on Get.
func NewBlobBacked(underlying Ledger, blobs blobstore.Store) *BlobBacked {
	return &BlobBacked{Ledger: underlying, blobs: blobs}
}

func (b *BlobBacked) Approve(ctx context.Context, artifactID, approver string) (*contracts.Artifact, error) {
	art, err := b.Ledger.Approve(ctx, artifactID, approver)
	if err != nil {
		return nil, err
	}
	if len(art.Content) > 0 {
		if _, err := b.blobs.Store(ctx, art.Content); err != nil {
			return nil, contracts.WrapError(contracts.KindDependency, "ledger.BlobBacked.Approve", "archive content to blob store", err)
		}
	}
	return art, nil
}

func (b *BlobBacked) Get(ctx context.Context, artifactID string) (*contracts.Artifact, error) {
	art, err := b.Ledger.Get(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	return b.rehydrate(ctx, art)
}

func (b *BlobBacked) CurrentApproved(ctx context.Context, requestID string, typ contracts.ArtifactType) (*contracts.Artifact, error) {
	art, err := b.Ledger.CurrentApproved(ctx, requestID, typ)
	if err != nil || art == nil {
		return art, err
	}
	return b.rehydrate(ctx, art)
}

func (b *BlobBacked) rehydrate(ctx context.Context, art *contracts.Artifact) (*contracts.Artifact, error) {
	if len(art.Content) > 0 || art.ContentHash == "" {
		return art, nil
	}
	blob, err := b.blobs.Get(ctx, "sha256:"+art.ContentHash)
	if err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "ledger.BlobBacked.Get", "rehydrate evicted content from blob store", err)
	}
	art.Content = blob
	return art, nil
}
