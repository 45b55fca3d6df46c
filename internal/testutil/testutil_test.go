package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_DefaultsToEpoch(t *testing.T) {
	clock := NewFakeClock(time.Time{})
	assert.Equal(t, Epoch, clock.Now())
}

func TestFakeClock_Advance(t *testing.T) {
	clock := NewFakeClock(time.Time{})

	got := clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, Epoch.Add(1500*time.Millisecond), got)
	assert.Equal(t, got, clock.Now())

	later := Epoch.Add(time.Hour)
	clock.Set(later)
	assert.Equal(t, later, clock.Now())
}

func TestFakeClock_Ticking(t *testing.T) {
	clock := NewFakeClock(time.Time{})
	tick := clock.Ticking(time.Second)

	first := tick()
	second := tick()
	assert.True(t, second.After(first))
	assert.Equal(t, second, clock.Now())
}

func TestSequentialIDs(t *testing.T) {
	gen := NewSequentialIDs("item")
	assert.Equal(t, "item-1", gen.Generate())
	assert.Equal(t, "item-2", gen.Generate())

	gen.Reset()
	assert.Equal(t, "item-1", gen.Generate())

	assert.Equal(t, "doc-1", NewSequentialIDs("").Generate())
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	gen := NewSequentialIDs("x")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := gen.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 1000)
}
