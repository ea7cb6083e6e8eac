// Package ratelimit provides the per-client throttle consumed at the
// transport boundary in front of this service. Keys are typically client
// IPs; stale entries are evicted in the background.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter throttles callers independently per key
type KeyedLimiter struct {
	clients map[string]*clientLimiter
	mu      sync.Mutex
	rate    rate.Limit
	burst   int
	ttl     time.Duration
}

func NewKeyedLimiter(r rate.Limit, b int, ttl time.Duration) *KeyedLimiter {
	kl := &KeyedLimiter{
		clients: make(map[string]*clientLimiter),
		rate:    r,
		burst:   b,
		ttl:     ttl,
	}
	go kl.cleanupClients()
	return kl
}

// Allow reports whether the caller identified by key may proceed
func (kl *KeyedLimiter) Allow(key string) bool {
	return kl.getClient(key).Allow()
}

func (kl *KeyedLimiter) getClient(key string) *rate.Limiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	if c, exists := kl.clients[key]; exists {
		c.lastSeen = time.Now()
		return c.limiter
	}

	limiter := rate.NewLimiter(kl.rate, kl.burst)
	kl.clients[key] = &clientLimiter{limiter, time.Now()}
	return limiter
}

func (kl *KeyedLimiter) cleanupClients() {
	for {
		time.Sleep(time.Minute)
		kl.evictStale(time.Now())
	}
}

func (kl *KeyedLimiter) evictStale(now time.Time) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	for key, c := range kl.clients {
		if now.Sub(c.lastSeen) > kl.ttl {
			delete(kl.clients, key)
		}
	}
}
