package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/storefront/internal/cart"
	"github.com/storefront/storefront/internal/catalog"
	"github.com/storefront/storefront/internal/pricing"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func product(id int64, price string) catalog.Product {
	return catalog.Product{ID: id, Name: "Item", Price: decimal.RequireFromString(price), ImageURL: "i.png", Stock: 5}
}

func TestQuoterFollowsCartAndCountry(t *testing.T) {
	ctx := context.Background()
	store, err := cart.Open(ctx, cart.NewRedisStorage(newRedis(t), time.Hour), "slot")
	require.NoError(t, err)

	q := NewQuoter(store, "AR")
	defer q.Close()

	var quotes []pricing.Totals
	q.Subscribe(func(t pricing.Totals) { quotes = append(quotes, t) })

	require.NoError(t, store.Add(ctx, product(1, "40")))
	require.NoError(t, store.Add(ctx, product(1, "40")))

	cur := q.Current()
	assert.True(t, cur.Subtotal.Equal(decimal.NewFromInt(80)))
	assert.True(t, cur.Shipping.Equal(decimal.NewFromInt(15)))
	assert.True(t, cur.Tax.Equal(decimal.RequireFromString("16.80")))
	assert.True(t, cur.Total.Equal(decimal.RequireFromString("111.80")))

	q.SetCountry("US")
	cur = q.Current()
	assert.Equal(t, "US", q.Country())
	assert.True(t, cur.Shipping.Equal(decimal.NewFromInt(25)))
	assert.True(t, cur.Tax.Equal(decimal.RequireFromString("8.00")))
	assert.True(t, cur.Total.Equal(decimal.RequireFromString("113.00")))

	// initial, two adds, country change
	assert.Len(t, quotes, 4)
}

func TestQuoterStopsAfterClose(t *testing.T) {
	ctx := context.Background()
	store, err := cart.Open(ctx, cart.NewRedisStorage(newRedis(t), time.Hour), "slot")
	require.NoError(t, err)

	q := NewQuoter(store, "AR")
	q.Close()
	require.NoError(t, store.Add(ctx, product(1, "40")))
	assert.True(t, q.Current().Subtotal.IsZero())
}
