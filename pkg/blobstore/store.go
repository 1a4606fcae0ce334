// Package blobstore is the content-addressed durable backing store for
// ledger artifact content (SPEC_FULL §2, C3 storage stack): a write-
// through tier the SQL ledger uses to keep approved artifact bytes
// recoverable even after a row's inline content is evicted by
// ledger.BlobBacked.
package blobstore

import (
	"context"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
	"github.com/IlyasuSeidu/forge-sub004/pkg/hasher"
)

// Store is the content-addressed storage contract every artifact backend
// in SPEC_FULL §2 implements: keys are always the SHA-256 of the content
// written under it, computed with the same pkg/hasher primitive the
// Envelope Runtime and Ledger use for artifact content hashes. Keys carry
// a "sha256:" prefix that a ledger row's content_hash does not, so a
// ledger hash becomes a blobstore key once prefixed (as ledger.BlobBacked
// does).
type Store interface {
	// Store persists data and returns its content hash ("sha256:<hex>").
	Store(ctx context.Context, data []byte) (string, error)
	// Get retrieves data by its content hash.
	Get(ctx context.Context, hash string) ([]byte, error)
	// Exists reports whether a blob with the given content hash is present.
	Exists(ctx context.Context, hash string) (bool, error)
	// Delete removes a blob by its content hash.
	Delete(ctx context.Context, hash string) error
}

// parseContentHash validates a "sha256:<hex>" content hash and returns the
// raw hex digest, shared by every Store implementation so "sha256:" parsing
// and hex validation happen exactly once per backend family.
func parseContentHash(hash string) (string, error) {
	const prefix = "sha256:"
	if len(hash) <= len(prefix) || hash[:len(prefix)] != prefix {
		return "", contracts.NewError(contracts.KindProtocol, "blobstore.parseContentHash", "hash missing sha256: prefix: "+hash)
	}
	raw := hash[len(prefix):]
	if _, err := hex.DecodeString(raw); err != nil {
		return "", contracts.WrapError(contracts.KindProtocol, "blobstore.parseContentHash", "hash is not valid hex: "+hash, err)
	}
	return raw, nil
}

// FileStore is a single-node filesystem-backed Store, used when no
// ARTIFACT_STORAGE_TYPE is configured: local development and single-replica
// deployments where the Conductor and Agent Host share one disk.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates a FileStore rooted at baseDir, creating it if absent.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "blobstore.NewFileStore", "create blob dir", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// shardedPath mirrors S3Store.shardedKey's two-character fanout so a
// directory holding a large artifact history doesn't accumulate a single
// flat directory with millions of entries.
func (s *FileStore) shardedPath(rawHash string) string {
	if len(rawHash) < 2 {
		return filepath.Join(s.baseDir, rawHash+".blob")
	}
	return filepath.Join(s.baseDir, rawHash[:2], rawHash[2:]+".blob")
}

func (s *FileStore) Store(ctx context.Context, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hashStr := hasher.Hash(data)
	prefixedHash := "sha256:" + hashStr
	path := s.shardedPath(hashStr)

	if _, err := os.Stat(path); err == nil {
		return prefixedHash, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", contracts.WrapError(contracts.KindDependency, "blobstore.FileStore.Store", "create shard dir", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return "", contracts.WrapError(contracts.KindDependency, "blobstore.FileStore.Store", "write blob", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", contracts.WrapError(contracts.KindDependency, "blobstore.FileStore.Store", "commit blob", err)
	}

	return prefixedHash, nil
}

func (s *FileStore) Get(ctx context.Context, hash string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rawHash, err := parseContentHash(hash)
	if err != nil {
		return nil, err
	}
	path := s.shardedPath(rawHash)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, contracts.NewError(contracts.KindIntegrity, "blobstore.FileStore.Get", "blob not found: "+hash)
		}
		return nil, contracts.WrapError(contracts.KindDependency, "blobstore.FileStore.Get", "open blob", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "blobstore.FileStore.Get", "read blob", err)
	}
	return data, nil
}

func (s *FileStore) Exists(ctx context.Context, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rawHash, err := parseContentHash(hash)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(s.shardedPath(rawHash))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, contracts.WrapError(contracts.KindDependency, "blobstore.FileStore.Exists", "stat blob", err)
}

func (s *FileStore) Delete(ctx context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rawHash, err := parseContentHash(hash)
	if err != nil {
		return err
	}

	err = os.Remove(s.shardedPath(rawHash))
	if err != nil && !os.IsNotExist(err) {
		return contracts.WrapError(contracts.KindDependency, "blobstore.FileStore.Delete", "delete blob", err)
	}
	return nil
}
