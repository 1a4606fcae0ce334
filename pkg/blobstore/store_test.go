package blobstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IlyasuSeidu/forge-sub004/pkg/blobstore"
	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
)

func TestNewStoreFromEnv_DefaultsToFileStore(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("ARTIFACT_STORAGE_TYPE", "")
	t.Setenv("DATA_DIR", tmpDir)

	store, err := blobstore.NewStoreFromEnv(context.Background())
	require.NoError(t, err)

	_, ok := store.(*blobstore.FileStore)
	assert.True(t, ok, "expected *FileStore, got %T", store)
}

func TestNewStoreFromEnv_S3MissingBucket(t *testing.T) {
	t.Setenv("ARTIFACT_STORAGE_TYPE", "s3")
	t.Setenv("ARTIFACT_S3_BUCKET", "")

	_, err := blobstore.NewStoreFromEnv(context.Background())
	require.Error(t, err)
	assert.True(t, contracts.IsKind(err, contracts.KindProtocol))
}

func TestNewStoreFromEnv_UnsupportedType(t *testing.T) {
	t.Setenv("ARTIFACT_STORAGE_TYPE", "azure")

	_, err := blobstore.NewStoreFromEnv(context.Background())
	require.Error(t, err)
	assert.True(t, contracts.IsKind(err, contracts.KindProtocol))
}

func TestFileStore_RoundTrip(t *testing.T) {
	store, err := blobstore.NewFileStore(filepath.Join(t.TempDir(), "artifacts"))
	require.NoError(t, err)

	ctx := context.Background()
	data := []byte("hello orchestrator")

	hash, err := store.Store(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, "sha256:", hash[:7])

	retrieved, err := store.Get(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, data, retrieved)

	exists, err := store.Exists(ctx, hash)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFileStore_StoreIsIdempotent(t *testing.T) {
	store, err := blobstore.NewFileStore(filepath.Join(t.TempDir(), "artifacts"))
	require.NoError(t, err)

	ctx := context.Background()
	data := []byte("idempotent content")

	hash1, err := store.Store(ctx, data)
	require.NoError(t, err)
	hash2, err := store.Store(ctx, data)
	require.NoError(t, err)

	assert.Equal(t, hash1, hash2)
}

func TestFileStore_ShardsByHashPrefix(t *testing.T) {
	baseDir := filepath.Join(t.TempDir(), "artifacts")
	store, err := blobstore.NewFileStore(baseDir)
	require.NoError(t, err)

	ctx := context.Background()
	hash, err := store.Store(ctx, []byte("sharded blob"))
	require.NoError(t, err)

	rawHash := hash[len("sha256:"):]
	shardPath := filepath.Join(baseDir, rawHash[:2], rawHash[2:]+".blob")
	_, statErr := os.Stat(shardPath)
	assert.NoError(t, statErr, "expected blob under its two-character shard directory")
}

func TestFileStore_GetNotFound(t *testing.T) {
	store, err := blobstore.NewFileStore(filepath.Join(t.TempDir(), "artifacts"))
	require.NoError(t, err)

	zeroHash := "sha256:" + "0000000000000000000000000000000000000000000000000000000000000000"[:64]
	_, err = store.Get(context.Background(), zeroHash)
	require.Error(t, err)
	assert.True(t, contracts.IsKind(err, contracts.KindIntegrity))
}

func TestFileStore_InvalidHashFormat(t *testing.T) {
	store, err := blobstore.NewFileStore(filepath.Join(t.TempDir(), "artifacts"))
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "invalid-hash")
	require.Error(t, err)
	assert.True(t, contracts.IsKind(err, contracts.KindProtocol))
}

func TestFileStore_DeleteThenExists(t *testing.T) {
	store, err := blobstore.NewFileStore(filepath.Join(t.TempDir(), "artifacts"))
	require.NoError(t, err)

	ctx := context.Background()
	hash, err := store.Store(ctx, []byte("to be deleted"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, hash))

	exists, err := store.Exists(ctx, hash)
	require.NoError(t, err)
	assert.False(t, exists)
}
