package executor

import (
	"sync"
	"time"
)

// Cooldown suppresses re-evaluating the same key (an account or position)
// more often than once per ttl. It is safe for concurrent use.
type Cooldown struct {
	seen map[string]time.Time
	ttl  time.Duration
	mu   sync.Mutex
	now  func() time.Time
}

// NewCooldown creates a Cooldown. A zero ttl disables it.
func NewCooldown(ttl time.Duration) *Cooldown {
	return &Cooldown{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Active reports whether key was marked within the ttl.
func (c *Cooldown) Active(key string) bool {
	if c.ttl <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.seen[key]
	return ok && c.now().Sub(at) < c.ttl
}

// Mark starts the cooldown for key.
func (c *Cooldown) Mark(key string) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.seen[key] = c.now()
	c.mu.Unlock()
}

// Cleanup drops expired entries. Call it periodically.
func (c *Cooldown) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, at := range c.seen {
		if now.Sub(at) >= c.ttl {
			delete(c.seen, k)
		}
	}
}
