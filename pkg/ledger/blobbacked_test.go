package ledger_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
	"github.com/IlyasuSeidu/forge-sub004/pkg/ledger"
)

// memBlobStore is an in-memory blobstore.Store test double, keyed the same
// way blobstore.FileStore keys its files: "sha256:<hex>".
type memBlobStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{data: make(map[string][]byte)}
}

func (m *memBlobStore) Store(ctx context.Context, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(sum[:])
	m.data[hash] = data
	return hash, nil
}

func (m *memBlobStore) Get(ctx context.Context, hash string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[hash]
	if !ok {
		return nil, assert.AnError
	}
	return data, nil
}

func (m *memBlobStore) Exists(ctx context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[hash]
	return ok, nil
}

func (m *memBlobStore) Delete(ctx context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, hash)
	return nil
}

func TestBlobBacked_ArchivesContentOnApprove(t *testing.T) {
	ctx := context.Background()
	blobs := newMemBlobStore()
	l := ledger.NewBlobBacked(ledger.NewInMemory(), blobs)

	draft, err := l.PutDraft(ctx, "req-1", contracts.TypeIntentAnswers, []byte("hello world"), nil, "intent-agent", "1.0.0", "")
	require.NoError(t, err)

	_, err = l.Approve(ctx, draft.ID, "reviewer@example.com")
	require.NoError(t, err)

	exists, err := blobs.Exists(ctx, "sha256:"+draft.ContentHash)
	require.NoError(t, err)
	assert.True(t, exists, "approved content should be archived to the blob store")
}

func TestBlobBacked_RehydratesEvictedContent(t *testing.T) {
	ctx := context.Background()
	blobs := newMemBlobStore()
	inner := ledger.NewInMemory()
	l := ledger.NewBlobBacked(inner, blobs)

	draft, err := l.PutDraft(ctx, "req-2", contracts.TypeIntentAnswers, []byte("archived content"), nil, "intent-agent", "1.0.0", "")
	require.NoError(t, err)

	approved, err := l.Approve(ctx, draft.ID, "reviewer@example.com")
	require.NoError(t, err)

	// Simulate the SQL ledger having evicted the inline content row: the
	// underlying ledger still reports the hash but Content is now empty.
	approved.Content = nil

	got, err := l.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "archived content", string(got.Content))
}

func TestBlobBacked_CurrentApprovedRehydrates(t *testing.T) {
	ctx := context.Background()
	blobs := newMemBlobStore()
	inner := ledger.NewInMemory()
	l := ledger.NewBlobBacked(inner, blobs)

	draft, err := l.PutDraft(ctx, "req-3", contracts.TypeIntentAnswers, []byte("current approved body"), nil, "intent-agent", "1.0.0", "")
	require.NoError(t, err)

	approved, err := l.Approve(ctx, draft.ID, "reviewer@example.com")
	require.NoError(t, err)
	approved.Content = nil

	got, err := l.CurrentApproved(ctx, "req-3", contracts.TypeIntentAnswers)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "current approved body", string(got.Content))
}

func TestBlobBacked_GetWithInlineContentSkipsBlobStore(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewBlobBacked(ledger.NewInMemory(), newMemBlobStore())

	draft, err := l.PutDraft(ctx, "req-4", contracts.TypeIntentAnswers, []byte("still inline"), nil, "intent-agent", "1.0.0", "")
	require.NoError(t, err)

	got, err := l.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "still inline", string(got.Content))
}
