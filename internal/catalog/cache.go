package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/storefront/storefront/internal/platform/cache"
)

// BumpChannel carries catalog version bumps to other instances.
const BumpChannel = "storefront.catalog.bump"

var versionKey = cache.Key("catalog", "version")

// Cache keeps the product list in redis under a versioned key. Bumping the
// version orphans every cached entry at once.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		// SETNX so concurrent initialisers agree on version 1.
		if err := c.client.SetNX(ctx, versionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, versionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func (c *Cache) productsKey(ver int64) string {
	return cache.Key("catalog", "products", strconv.FormatInt(ver, 10))
}

// Products returns the cached product list, calling load on a miss.
// Concurrent misses share a single load.
func (c *Cache) Products(ctx context.Context, load func(context.Context) ([]Product, error)) ([]Product, error) {
	if c == nil || c.client == nil {
		return load(ctx)
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return load(ctx)
	}
	key := c.productsKey(ver)

	if payload, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var products []Product
		if err := json.Unmarshal(payload, &products); err == nil {
			return products, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		products, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(products); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttl).Err()
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	products := v.([]Product)
	return append([]Product(nil), products...), nil
}

// Invalidate bumps the version and announces it on BumpChannel.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	// A missing version reads as 1, so seed it before incrementing.
	if _, err := c.Version(ctx); err != nil {
		return err
	}
	ver, err := c.client.Incr(ctx, versionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, BumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// Listen calls onBump for every version announced on BumpChannel until ctx
// is cancelled.
func (c *Cache) Listen(ctx context.Context, onBump func(version int64)) error {
	if c == nil || c.client == nil {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, BumpChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ver, err := strconv.ParseInt(msg.Payload, 10, 64)
				if err != nil {
					continue
				}
				if onBump != nil {
					onBump(ver)
				}
			}
		}
	}()
	return nil
}
