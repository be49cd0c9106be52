package cart

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storefront/storefront/internal/platform/cache"
)

// RedisStorage keeps cart slots as JSON strings in redis.
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStorage returns a Storage backed by client. Slots expire after ttl
// of inactivity; zero keeps them forever.
func NewRedisStorage(client *redis.Client, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, ttl: ttl}
}

func slotKey(slot string) string {
	return cache.Key("cart", slot)
}

// Load returns the stored lines, or an empty cart when the slot is missing
// or unreadable.
func (s *RedisStorage) Load(ctx context.Context, slot string) ([]Item, error) {
	raw, err := s.client.Get(ctx, slotKey(slot)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []Item{}, nil
	}
	if err != nil {
		return nil, err
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return []Item{}, nil
	}
	return items, nil
}

// Save overwrites the slot.
func (s *RedisStorage) Save(ctx context.Context, slot string, items []Item) error {
	if items == nil {
		items = []Item{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, slotKey(slot), raw, s.ttl).Err()
}

var _ Storage = (*RedisStorage)(nil)
