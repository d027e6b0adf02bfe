package memory

import (
	"time"

	"github.com/keytune/keytune/pkg/util"
	gocache "github.com/patrickmn/go-cache"
)

type Cache struct {
	DefaultExpirationSeconds int `mapstructure:"default_expiration_seconds"`
	CleanupIntervalSeconds   int `mapstructure:"cleanup_interval_seconds"`

	store *gocache.Cache
}

func (c *Cache) Get(key string) ([]byte, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (c *Cache) Set(key string, value []byte, expires *time.Duration) error {
	d := gocache.DefaultExpiration
	if expires != nil {
		d = *expires
	}
	c.store.Set(key, append([]byte(nil), value...), d)
	return nil
}

func NewCache(settings map[string]any) (*Cache, error) {
	rc, err := util.ConfigToStruct[Cache](settings)
	if err != nil {
		return nil, err
	}
	if rc.DefaultExpirationSeconds <= 0 {
		rc.DefaultExpirationSeconds = 300
	}
	if rc.CleanupIntervalSeconds <= 0 {
		rc.CleanupIntervalSeconds = 600
	}

	rc.store = gocache.New(
		time.Duration(rc.DefaultExpirationSeconds)*time.Second,
		time.Duration(rc.CleanupIntervalSeconds)*time.Second,
	)
	return rc, nil
}
