//go:build gcp

package blobstore

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"

	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
	"github.com/IlyasuSeidu/forge-sub004/pkg/hasher"
)

// GCSStore is a Store backed by Google Cloud Storage, built only when the
// binary is compiled with -tags gcp: the orchestrator doesn't need a GCP
// client linked into every deployment, so this backend stays opt-in the
// same way the repair sub-loop's sandboxing concerns stay out of the
// default build.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// GCSStoreConfig configures a GCSStore.
type GCSStoreConfig struct {
	Bucket string
	Prefix string
}

// NewGCSStore creates a GCS-backed Store using application default credentials.
func NewGCSStore(ctx context.Context, cfg GCSStoreConfig) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "blobstore.NewGCSStore", "create gcs client", err)
	}
	return &GCSStore{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *GCSStore) shardedKey(rawHash string) string {
	if len(rawHash) < 2 {
		return s.prefix + rawHash + ".blob"
	}
	return s.prefix + rawHash[:2] + "/" + rawHash[2:] + ".blob"
}

func (s *GCSStore) Store(ctx context.Context, data []byte) (string, error) {
	hashStr := hasher.Hash(data)
	prefixedHash := "sha256:" + hashStr
	key := s.shardedKey(hashStr)

	obj := s.client.Bucket(s.bucket).Object(key)
	if _, err := obj.Attrs(ctx); err == nil {
		return prefixedHash, nil
	}

	w := obj.NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", contracts.WrapError(contracts.KindDependency, "blobstore.GCSStore.Store", "write object "+key, err)
	}
	if err := w.Close(); err != nil {
		return "", contracts.WrapError(contracts.KindDependency, "blobstore.GCSStore.Store", "close object writer "+key, err)
	}

	return prefixedHash, nil
}

func (s *GCSStore) Get(ctx context.Context, hash string) ([]byte, error) {
	rawHash, err := parseContentHash(hash)
	if err != nil {
		return nil, err
	}
	key := s.shardedKey(rawHash)

	reader, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, contracts.NewError(contracts.KindIntegrity, "blobstore.GCSStore.Get", "blob not found: "+hash)
		}
		return nil, contracts.WrapError(contracts.KindDependency, "blobstore.GCSStore.Get", "open object reader "+key, err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "blobstore.GCSStore.Get", "read object "+key, err)
	}
	return data, nil
}

func (s *GCSStore) Exists(ctx context.Context, hash string) (bool, error) {
	rawHash, err := parseContentHash(hash)
	if err != nil {
		return false, err
	}
	key := s.shardedKey(rawHash)

	_, err = s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, contracts.WrapError(contracts.KindDependency, "blobstore.GCSStore.Exists", "object attrs "+key, err)
	}
	return true, nil
}

func (s *GCSStore) Delete(ctx context.Context, hash string) error {
	rawHash, err := parseContentHash(hash)
	if err != nil {
		return err
	}
	key := s.shardedKey(rawHash)

	err = s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return contracts.WrapError(contracts.KindDependency, "blobstore.GCSStore.Delete", "delete object "+key, err)
	}
	return nil
}

// Close releases the underlying GCS client's connections.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
