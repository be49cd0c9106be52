// Package cart keeps the shopper's cart in an observable cell and writes it
// to its storage slot after every change.
package cart

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/storefront/storefront/internal/catalog"
	"github.com/storefront/storefront/internal/platform/cell"
)

// Item is one cart line: a product snapshot and a quantity of at least 1.
type Item struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

// LineTotal is price × quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Storage persists a cart under a named slot.
type Storage interface {
	Load(ctx context.Context, slot string) ([]Item, error)
	Save(ctx context.Context, slot string, items []Item) error
}

// Store is the cart of one shopper.
type Store struct {
	slot    string
	storage Storage
	cell    *cell.Cell[[]Item]
}

// Open reads the slot from storage and returns a store seeded with it.
func Open(ctx context.Context, storage Storage, slot string) (*Store, error) {
	items, err := storage.Load(ctx, slot)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return &Store{
		slot:    slot,
		storage: storage,
		cell:    cell.New(sanitize(items)),
	}, nil
}

// Items returns a copy of the current lines.
func (s *Store) Items() []Item {
	return clone(s.cell.Get())
}

// Count is the total number of units.
func (s *Store) Count() int {
	return Count(s.cell.Get())
}

// Total is Σ price × quantity.
func (s *Store) Total() decimal.Decimal {
	return Subtotal(s.cell.Get())
}

// Empty reports whether the cart has no lines.
func (s *Store) Empty() bool {
	return len(s.cell.Get()) == 0
}

// Add increments the line for p, or appends a new line with quantity 1.
func (s *Store) Add(ctx context.Context, p catalog.Product) error {
	return s.mutate(ctx, func(items []Item) []Item {
		for i := range items {
			if items[i].Product.ID == p.ID {
				items[i].Quantity++
				return items
			}
		}
		return append(items, Item{Product: p, Quantity: 1})
	})
}

// Remove drops the line for productID.
func (s *Store) Remove(ctx context.Context, productID int64) error {
	return s.mutate(ctx, func(items []Item) []Item {
		return remove(items, productID)
	})
}

// UpdateQuantity sets the quantity of an existing line. A quantity of zero
// or less removes the line; an unknown product is ignored.
func (s *Store) UpdateQuantity(ctx context.Context, productID int64, quantity int) error {
	return s.mutate(ctx, func(items []Item) []Item {
		for i := range items {
			if items[i].Product.ID != productID {
				continue
			}
			if quantity <= 0 {
				return remove(items, productID)
			}
			items[i].Quantity = quantity
			return items
		}
		return items
	})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, func([]Item) []Item { return []Item{} })
}

// Subscribe registers fn for cart changes; fn sees the current lines first.
func (s *Store) Subscribe(fn func([]Item)) func() {
	return s.cell.Subscribe(func(items []Item) { fn(clone(items)) })
}

func (s *Store) mutate(ctx context.Context, fn func([]Item) []Item) error {
	next := s.cell.Update(func(cur []Item) []Item {
		return fn(clone(cur))
	})
	if err := s.storage.Save(ctx, s.slot, next); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// Count sums quantities.
func Count(items []Item) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

// Subtotal sums line totals.
func Subtotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}

func remove(items []Item, productID int64) []Item {
	out := items[:0]
	for _, it := range items {
		if it.Product.ID != productID {
			out = append(out, it)
		}
	}
	return out
}

func clone(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// sanitize drops lines a stored slot should never contain.
func sanitize(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Quantity >= 1 && it.Product.ID != 0 {
			out = append(out, it)
		}
	}
	return out
}
