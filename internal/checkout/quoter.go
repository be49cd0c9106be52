package checkout

import (
	"sync"

	"github.com/storefront/storefront/internal/cart"
	"github.com/storefront/storefront/internal/platform/cell"
	"github.com/storefront/storefront/internal/pricing"
)

// Quoter keeps checkout totals current. It recomputes whenever the cart or
// the destination country changes.
type Quoter struct {
	mu      sync.Mutex
	items   []cart.Item
	country *cell.Cell[string]
	quote   *cell.Cell[pricing.Totals]
	unsubs  []func()
}

// NewQuoter subscribes to store and quotes for country.
func NewQuoter(store *cart.Store, country string) *Quoter {
	q := &Quoter{
		country: cell.New(country),
		quote:   cell.New(pricing.Totals{}),
	}
	q.unsubs = append(q.unsubs,
		store.Subscribe(func(items []cart.Item) {
			q.mu.Lock()
			defer q.mu.Unlock()
			q.items = items
			q.recompute()
		}),
		q.country.Subscribe(func(string) {
			q.mu.Lock()
			defer q.mu.Unlock()
			q.recompute()
		}),
	)
	return q
}

// recompute must run with q.mu held.
func (q *Quoter) recompute() {
	q.quote.Set(pricing.Compute(cart.Subtotal(q.items), q.country.Get()))
}

// SetCountry changes the destination.
func (q *Quoter) SetCountry(country string) {
	q.country.Set(country)
}

// Country returns the destination currently quoted.
func (q *Quoter) Country() string {
	return q.country.Get()
}

// Current returns the latest totals.
func (q *Quoter) Current() pricing.Totals {
	return q.quote.Get()
}

// Subscribe registers fn for quote changes; fn sees the current quote first.
func (q *Quoter) Subscribe(fn func(pricing.Totals)) func() {
	return q.quote.Subscribe(fn)
}

// Close detaches the quoter from its sources.
func (q *Quoter) Close() {
	for _, unsub := range q.unsubs {
		unsub()
	}
	q.unsubs = nil
}
