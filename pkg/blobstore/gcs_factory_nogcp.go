//go:build !gcp

package blobstore

import (
	"context"

	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
)

func newGCSStoreFromEnv(ctx context.Context) (Store, error) {
	return nil, contracts.NewError(contracts.KindProtocol, "blobstore.newGCSStoreFromEnv", "GCS storage is not enabled in this build (rebuild with -tags gcp)")
}
