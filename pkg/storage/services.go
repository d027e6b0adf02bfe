package storage

import (
	"github.com/keytune/keytune/pkg/config"
	"github.com/keytune/keytune/pkg/storage/blobstore"
	"github.com/keytune/keytune/pkg/storage/cache"
	"github.com/keytune/keytune/pkg/storage/database"
	"github.com/keytune/keytune/pkg/storage/queue"
)

// Services is the handle to every managed backend. It is built once at
// startup and passed to each component explicitly.
type Services struct {
	Database  database.Database
	Cache     cache.Cache
	Queue     queue.Queue
	BlobStore blobstore.BlobStore
}

func New(c config.KeyTuneConfig) (*Services, error) {
	rc := &Services{}

	var err error
	if rc.BlobStore, err = blobstore.NewBlobStore(c.BlobStore); err != nil {
		return nil, err
	}

	if rc.Queue, err = queue.NewQueue(c.Queue); err != nil {
		return nil, err
	}

	if rc.Cache, err = cache.NewCache(c.Cache); err != nil {
		return nil, err
	}

	if rc.Database, err = database.NewConnection(c.Database); err != nil {
		return nil, err
	}

	return rc, nil
}

func (s *Services) Close() error {
	if s.Database == nil {
		return nil
	}
	return s.Database.Close()
}
