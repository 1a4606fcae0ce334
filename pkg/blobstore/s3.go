package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
	"github.com/IlyasuSeidu/forge-sub004/pkg/hasher"
)

// S3Store is the Store implementation for multi-instance deployments: the
// local FileStore only works when the Conductor and Agent Host run as one
// process against one disk, so a second orchestrator replica needs its
// archived ledger content (approved artifacts BlobBacked wrote through on
// Approve) reachable from a shared bucket instead.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3StoreConfig configures an S3Store.
type S3StoreConfig struct {
	Bucket   string
	Region   string
	Endpoint string // custom endpoint for MinIO/LocalStack in dev/test
	Prefix   string
}

// NewS3Store builds an S3-backed Store.
func NewS3Store(ctx context.Context, cfg S3StoreConfig) (*S3Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "blobstore.NewS3Store", "load aws config", err)
	}

	clientOpts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}

	return &S3Store{
		client: s3.NewFromConfig(awsCfg, clientOpts),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// shardedKey spreads blobs across a two-character hash prefix so a
// content-addressed bucket with millions of objects doesn't concentrate
// writes on one S3 partition the way a single flat prefix would.
func (s *S3Store) shardedKey(rawHash string) string {
	if len(rawHash) < 2 {
		return s.prefix + rawHash + ".blob"
	}
	return s.prefix + rawHash[:2] + "/" + rawHash[2:] + ".blob"
}

func (s *S3Store) Store(ctx context.Context, data []byte) (string, error) {
	hashStr := hasher.Hash(data)
	prefixedHash := "sha256:" + hashStr
	key := s.shardedKey(hashStr)

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err == nil {
		return prefixedHash, nil
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", contracts.WrapError(contracts.KindDependency, "blobstore.S3Store.Store", "put object "+key, err)
	}

	return prefixedHash, nil
}

func (s *S3Store) Get(ctx context.Context, hash string) ([]byte, error) {
	rawHash, err := parseContentHash(hash)
	if err != nil {
		return nil, err
	}
	key := s.shardedKey(rawHash)

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, contracts.NewError(contracts.KindIntegrity, "blobstore.S3Store.Get", "blob not found: "+hash)
		}
		return nil, contracts.WrapError(contracts.KindDependency, "blobstore.S3Store.Get", "get object "+key, err)
	}
	defer func() { _ = result.Body.Close() }()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "blobstore.S3Store.Get", "read object body "+key, err)
	}
	return data, nil
}

func (s *S3Store) Exists(ctx context.Context, hash string) (bool, error) {
	rawHash, err := parseContentHash(hash)
	if err != nil {
		return false, err
	}
	key := s.shardedKey(rawHash)

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, contracts.WrapError(contracts.KindDependency, "blobstore.S3Store.Exists", "head object "+key, err)
	}

	return true, nil
}

func (s *S3Store) Delete(ctx context.Context, hash string) error {
	rawHash, err := parseContentHash(hash)
	if err != nil {
		return err
	}
	key := s.shardedKey(rawHash)

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err != nil {
		return contracts.WrapError(contracts.KindDependency, "blobstore.S3Store.Delete", "delete object "+key, err)
	}

	return nil
}
