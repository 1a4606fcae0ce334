//go:build gcp

package blobstore

import (
	"context"
	"os"

	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
)

func newGCSStoreFromEnv(ctx context.Context) (Store, error) {
	bucket := os.Getenv("ARTIFACT_GCS_BUCKET")
	if bucket == "" {
		return nil, contracts.NewError(contracts.KindProtocol, "blobstore.newGCSStoreFromEnv", "ARTIFACT_GCS_BUCKET is required for GCS storage")
	}

	cfg := GCSStoreConfig{
		Bucket: bucket,
		Prefix: os.Getenv("ARTIFACT_GCS_PREFIX"),
	}

	return NewGCSStore(ctx, cfg)
}
