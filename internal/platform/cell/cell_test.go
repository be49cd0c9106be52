package cell

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesCurrentValueImmediately(t *testing.T) {
	c := New(3)
	var got []int
	c.Subscribe(func(v int) { got = append(got, v) })

	assert.Equal(t, []int{3}, got)
}

func TestSetNotifiesSynchronouslyInOrder(t *testing.T) {
	c := New("a")
	var order []string
	c.Subscribe(func(v string) { order = append(order, "first:"+v) })
	c.Subscribe(func(v string) { order = append(order, "second:"+v) })

	c.Set("b")

	assert.Equal(t, []string{"first:a", "second:a", "first:b", "second:b"}, order)
	assert.Equal(t, "b", c.Get())
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	c := New(0)
	calls := 0
	unsubscribe := c.Subscribe(func(int) { calls++ })
	require.Equal(t, 1, c.Subscribers())

	unsubscribe()
	unsubscribe()
	c.Set(1)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, c.Subscribers())
}

func TestUpdateAppliesFunctionAndNotifies(t *testing.T) {
	c := New(10)
	var seen []int
	c.Subscribe(func(v int) { seen = append(seen, v) })

	result := c.Update(func(v int) int { return v + 5 })

	assert.Equal(t, 15, result)
	assert.Equal(t, 15, c.Get())
	assert.Equal(t, []int{10, 15}, seen)
}

func TestSubscriberMayReadCell(t *testing.T) {
	c := New(1)
	var read int
	c.Subscribe(func(int) { read = c.Get() })

	c.Set(42)

	assert.Equal(t, 42, read)
}

func TestConcurrentWritersKeepLastValueConsistent(t *testing.T) {
	c := New(0)
	var mu sync.Mutex
	notified := 0
	c.Subscribe(func(int) {
		mu.Lock()
		notified++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Update(func(v int) int { return v + 1 })
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, c.Get())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 51, notified)
}
