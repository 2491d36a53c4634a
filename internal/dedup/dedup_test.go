package dedup

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func TestAllow_WithinWindow(t *testing.T) {
	w := New[string](10, time.Hour)
	assert.True(t, w.Allow("a", t0))
	assert.False(t, w.Allow("a", t0.Add(59*time.Minute)))
	assert.True(t, w.Allow("a", t0.Add(time.Hour)))
	assert.False(t, w.Allow("a", t0.Add(90*time.Minute)))
	assert.True(t, w.Allow("b", t0))
	assert.Equal(t, 2, w.Len())
}

func TestAllow_EvictsLeastRecent(t *testing.T) {
	w := New[string](2, time.Hour)
	w.Allow("a", t0)
	w.Allow("b", t0)
	w.Allow("c", t0) // evicts a
	assert.Equal(t, 2, w.Len())
	assert.True(t, w.Allow("a", t0), "evicted key is forgotten")
	assert.False(t, w.Allow("c", t0))
}

func TestForget(t *testing.T) {
	w := New[int](4, time.Hour)
	w.Allow(1, t0)
	assert.True(t, w.Forget(1))
	assert.False(t, w.Forget(1))
	assert.True(t, w.Allow(1, t0))
}

func TestSweep(t *testing.T) {
	w := New[string](10, time.Hour)
	w.Allow("old", t0)
	w.Allow("new", t0.Add(30*time.Minute))
	assert.Equal(t, 1, w.Sweep(t0.Add(time.Hour)))
	assert.Equal(t, 1, w.Len())
	assert.False(t, w.Allow("new", t0.Add(time.Hour)))
}

func TestNew_PanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { New[string](0, time.Hour) })
}

func TestAllow_Concurrent(t *testing.T) {
	w := New[string](1000, time.Hour)
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if w.Allow(fmt.Sprintf("k%d", j), t0) {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, allowed)
}
