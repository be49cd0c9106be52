// Package cell provides a publish/subscribe value holder.
//
// A Cell keeps exactly one current value. Writers replace it through Set or
// Update and every subscriber is invoked synchronously, in subscription
// order, before the write returns. Callbacks run outside the internal lock so
// they may read the cell again.
package cell

import "sync"

// Cell holds a value of type T and notifies subscribers on every write.
type Cell[T any] struct {
	mu     sync.RWMutex
	value  T
	nextID uint64
	subs   []subscription[T]
}

type subscription[T any] struct {
	id uint64
	fn func(T)
}

// New returns a cell seeded with initial.
func New[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set replaces the value and notifies subscribers.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	c.value = v
	subs := c.snapshot()
	c.mu.Unlock()
	notify(subs, v)
}

// Update applies fn to the current value under the write lock, stores the
// result and notifies subscribers with it.
func (c *Cell[T]) Update(fn func(T) T) T {
	c.mu.Lock()
	next := fn(c.value)
	c.value = next
	subs := c.snapshot()
	c.mu.Unlock()
	notify(subs, next)
	return next
}

// Subscribe registers fn and immediately calls it with the current value.
// The returned function removes the subscription; calling it twice is safe.
func (c *Cell[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscription[T]{id: id, fn: fn})
	current := c.value
	c.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, s := range c.subs {
				if s.id == id {
					c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Subscribers reports the number of active subscriptions.
func (c *Cell[T]) Subscribers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}

func (c *Cell[T]) snapshot() []subscription[T] {
	if len(c.subs) == 0 {
		return nil
	}
	out := make([]subscription[T], len(c.subs))
	copy(out, c.subs)
	return out
}

func notify[T any](subs []subscription[T], v T) {
	for _, s := range subs {
		s.fn(v)
	}
}
