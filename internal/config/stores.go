package config

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aretw0/parley/pkg/adapters/file"
	"github.com/aretw0/parley/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/parley/pkg/adapters/redis"
	"github.com/aretw0/parley/pkg/persistence/middleware"
	"github.com/aretw0/parley/pkg/ports"
)

// Backend bundles the persistence pieces selected by Store.
// Locker is only set for redis, where several replicas may share sessions.
type Backend struct {
	Store  ports.StateStore
	Locker ports.DistributedLocker
	Close  func() error
}

// OpenStore builds the configured session store, wrapped in the masking and
// encryption middlewares when they are configured. For redis the connection is checked.
func (c *Config) OpenStore(ctx context.Context) (*Backend, error) {
	mws, err := c.storeMiddleware()
	if err != nil {
		return nil, err
	}
	backend, err := c.openBackend(ctx)
	if err != nil {
		return nil, err
	}
	backend.Store = middleware.Chain(backend.Store, mws...)
	return backend, nil
}

func (c *Config) storeMiddleware() ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(c.MaskVariables) > 0 {
		pii, err := middleware.NewPIIMiddleware(c.MaskVariables)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	if c.StoreKey != "" {
		active, err := decodeKey(c.StoreKey)
		if err != nil {
			return nil, fmt.Errorf("invalid %s_STORE_KEY: %w", Prefix, err)
		}
		cfg := middleware.EncryptionConfig{ActiveKey: active}
		for _, k := range c.StoreFallbackKeys {
			key, err := decodeKey(k)
			if err != nil {
				return nil, fmt.Errorf("invalid %s_STORE_FALLBACK_KEYS: %w", Prefix, err)
			}
			cfg.FallbackKeys = append(cfg.FallbackKeys, key)
		}
		enc, err := middleware.NewEncryptionMiddleware(cfg)
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return mws, nil
}

func decodeKey(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}

func (c *Config) openBackend(ctx context.Context) (*Backend, error) {
	nop := func() error { return nil }
	switch c.Store {
	case StoreMemory:
		return &Backend{Store: memory.NewStore(), Close: nop}, nil
	case StoreFile:
		return &Backend{Store: file.NewStore(c.StorePath), Close: nop}, nil
	case StoreRedis:
		store := redisAdapter.New(c.RedisAddr, c.RedisPassword, c.RedisDB, redisAdapter.WithTTL(c.SessionTTL))
		if err := store.Client().Ping(ctx).Err(); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", c.RedisAddr, err)
		}
		return &Backend{
			Store:  store,
			Locker: redisAdapter.NewLocker(store.Client(), "parley:"),
			Close:  store.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown store %q", c.Store)
}
