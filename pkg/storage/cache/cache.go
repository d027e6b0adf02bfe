package cache

import (
	"fmt"
	"time"

	"github.com/keytune/keytune/pkg/config"
	"github.com/keytune/keytune/pkg/storage/cache/memory"
)

type Cache interface {
	Get(key string) (value []byte, ok bool)
	// Set stores value; a nil expires uses the backend default.
	Set(key string, value []byte, expires *time.Duration) error
}

func NewCache(conf config.Cache) (Cache, error) {
	switch conf.Type {
	case "memory":
		return memory.NewCache(conf.Settings)
	}

	return nil, fmt.Errorf("unsupported cache: %q", conf.Type)
}
