package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestKeyedLimiter_Allow(t *testing.T) {
	t.Run("burst is consumed per key", func(t *testing.T) {
		kl := NewKeyedLimiter(rate.Limit(1), 3, time.Minute)

		for i := 0; i < 3; i++ {
			assert.True(t, kl.Allow("10.0.0.1"))
		}
		assert.False(t, kl.Allow("10.0.0.1"))

		// A different key has its own budget.
		assert.True(t, kl.Allow("10.0.0.2"))
	})

	t.Run("same key reuses the same limiter", func(t *testing.T) {
		kl := NewKeyedLimiter(rate.Limit(1), 5, time.Minute)

		first := kl.getClient("10.0.0.1")
		second := kl.getClient("10.0.0.1")
		assert.Same(t, first, second)
		assert.Len(t, kl.clients, 1)
	})

	t.Run("concurrent callers", func(t *testing.T) {
		kl := NewKeyedLimiter(rate.Limit(100), 100, time.Minute)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				key := fmt.Sprintf("10.0.0.%d", n%5)
				for j := 0; j < 10; j++ {
					kl.Allow(key)
				}
			}(i)
		}
		wg.Wait()
		assert.Len(t, kl.clients, 5)
	})
}

func TestKeyedLimiter_Eviction(t *testing.T) {
	kl := NewKeyedLimiter(rate.Limit(1), 1, 10*time.Millisecond)

	kl.Allow("10.0.0.1")
	kl.Allow("10.0.0.2")
	kl.mu.Lock()
	kl.clients["10.0.0.1"].lastSeen = time.Now().Add(-time.Hour)
	kl.mu.Unlock()

	kl.evictStale(time.Now())

	kl.mu.Lock()
	defer kl.mu.Unlock()
	_, stale := kl.clients["10.0.0.1"]
	_, fresh := kl.clients["10.0.0.2"]
	assert.False(t, stale)
	assert.True(t, fresh)
}
