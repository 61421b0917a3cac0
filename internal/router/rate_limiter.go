package router

import (
	"sync"
	"time"
)

// RateLimiter allows a fixed number of events per connection per minute.
type RateLimiter struct {
	mu        sync.Mutex
	perMinute int
	clients   map[string]*ClientLimit
	now       func() time.Time
}

// ClientLimit is the current window of one connection.
type ClientLimit struct {
	messageCount int
	windowStart  time.Time
}

// NewRateLimiter creates a limiter. perMinute <= 0 disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		clients:   make(map[string]*ClientLimit),
		now:       time.Now,
	}
}

// Allow counts one event of key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(key string) bool {
	if rl.perMinute <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	limit, exists := rl.clients[key]
	if !exists || now.Sub(limit.windowStart) >= time.Minute {
		rl.clients[key] = &ClientLimit{messageCount: 1, windowStart: now}
		return true
	}

	if limit.messageCount >= rl.perMinute {
		return false
	}

	limit.messageCount++
	return true
}

// Forget drops the state of key once its connection is gone.
func (rl *RateLimiter) Forget(key string) {
	rl.mu.Lock()
	delete(rl.clients, key)
	rl.mu.Unlock()
}

// Tracked returns the number of keys with state.
func (rl *RateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
