package blobstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/keytune/keytune/pkg/config"
	"github.com/keytune/keytune/pkg/storage/blobstore/gcs"
	"github.com/keytune/keytune/pkg/storage/blobstore/memory"
	"github.com/keytune/keytune/pkg/storage/blobstore/s3"
)

// ErrNotFound is returned by stores that can tell an object is missing.
var ErrNotFound = memory.ErrNotFound

type BlobStore interface {
	Upload(ctx context.Context, path string, r io.Reader, contentType string) error
	// SignedURL returns a URL granting read access to path until expires has
	// elapsed.
	SignedURL(ctx context.Context, path string, expires time.Duration) (string, error)
	Delete(ctx context.Context, path string) error
}

func NewBlobStore(conf config.BlobStore) (BlobStore, error) {
	switch conf.Type {
	case "memory":
		return memory.NewStorage(conf.Settings)
	case "s3":
		return s3.NewStorage(conf.Settings)
	case "gcs":
		return gcs.NewStorage(conf.Settings)
	}

	return nil, fmt.Errorf("unsupported blob store: %q", conf.Type)
}
