package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/storefront/internal/catalog"
)

func newRedisStorage(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStorage(client, time.Hour), mr
}

func product(id int64, price string) catalog.Product {
	return catalog.Product{ID: id, Name: "p", Price: decimal.RequireFromString(price), Stock: 10}
}

type failingStorage struct{ saveErr error }

func (f failingStorage) Load(context.Context, string) ([]Item, error) { return nil, nil }
func (f failingStorage) Save(context.Context, string, []Item) error   { return f.saveErr }

func TestAddIncrementsExistingLine(t *testing.T) {
	storage, _ := newRedisStorage(t)
	ctx := context.Background()
	store, err := Open(ctx, storage, "slot-1")
	require.NoError(t, err)

	require.NoError(t, store.Add(ctx, product(1, "40")))
	require.NoError(t, store.Add(ctx, product(1, "40")))
	require.NoError(t, store.Add(ctx, product(2, "5.25")))

	items := store.Items()
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 1, items[1].Quantity)
	assert.Equal(t, 3, store.Count())
	assert.True(t, store.Total().Equal(decimal.RequireFromString("85.25")))
}

func TestUpdateQuantity(t *testing.T) {
	storage, _ := newRedisStorage(t)
	ctx := context.Background()
	store, err := Open(ctx, storage, "slot-1")
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, product(1, "10")))
	require.NoError(t, store.Add(ctx, product(2, "10")))

	require.NoError(t, store.UpdateQuantity(ctx, 1, 4))
	assert.Equal(t, 5, store.Count())

	// unknown id is a no-op
	require.NoError(t, store.UpdateQuantity(ctx, 99, 3))
	assert.Equal(t, 5, store.Count())

	require.NoError(t, store.UpdateQuantity(ctx, 2, 0))
	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), items[0].Product.ID)

	require.NoError(t, store.UpdateQuantity(ctx, 1, -3))
	assert.True(t, store.Empty())
}

func TestRemoveAndClear(t *testing.T) {
	storage, _ := newRedisStorage(t)
	ctx := context.Background()
	store, err := Open(ctx, storage, "slot-1")
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, product(1, "10")))
	require.NoError(t, store.Add(ctx, product(2, "10")))

	require.NoError(t, store.Remove(ctx, 1))
	assert.Equal(t, 1, store.Count())

	require.NoError(t, store.Clear(ctx))
	assert.True(t, store.Empty())
	assert.True(t, store.Total().IsZero())
}

func TestCartPersistsAcrossOpens(t *testing.T) {
	storage, mr := newRedisStorage(t)
	ctx := context.Background()
	store, err := Open(ctx, storage, "slot-1")
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, product(1, "40")))
	require.NoError(t, store.UpdateQuantity(ctx, 1, 2))

	assert.True(t, mr.Exists("storefront:cart:slot-1"))

	reopened, err := Open(ctx, storage, "slot-1")
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Count())
	assert.True(t, reopened.Total().Equal(decimal.NewFromInt(80)))

	other, err := Open(ctx, storage, "slot-2")
	require.NoError(t, err)
	assert.True(t, other.Empty())
}

func TestOpenToleratesCorruptSlot(t *testing.T) {
	storage, mr := newRedisStorage(t)
	require.NoError(t, mr.Set("storefront:cart:bad", "{not json"))

	store, err := Open(context.Background(), storage, "bad")
	require.NoError(t, err)
	assert.True(t, store.Empty())
}

func TestSubscribersSeeEveryMutation(t *testing.T) {
	storage, _ := newRedisStorage(t)
	ctx := context.Background()
	store, err := Open(ctx, storage, "slot-1")
	require.NoError(t, err)

	var counts []int
	unsubscribe := store.Subscribe(func(items []Item) { counts = append(counts, Count(items)) })
	require.NoError(t, store.Add(ctx, product(1, "1")))
	require.NoError(t, store.Add(ctx, product(1, "1")))
	unsubscribe()
	require.NoError(t, store.Clear(ctx))

	assert.Equal(t, []int{0, 1, 2}, counts)
}

func TestItemsReturnsCopy(t *testing.T) {
	storage, _ := newRedisStorage(t)
	ctx := context.Background()
	store, err := Open(ctx, storage, "slot-1")
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, product(1, "1")))

	items := store.Items()
	items[0].Quantity = 50
	assert.Equal(t, 1, store.Count())
}

func TestSaveFailureIsReported(t *testing.T) {
	store, err := Open(context.Background(), failingStorage{saveErr: errors.New("redis down")}, "slot")
	require.NoError(t, err)

	err = store.Add(context.Background(), product(1, "1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save cart")
}
