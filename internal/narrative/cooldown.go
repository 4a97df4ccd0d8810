package narrative

import (
	"sync"
	"time"
)

const defaultCooldown = 60 * time.Second

// CooldownGuard blocks regeneration of a key until a fixed duration has
// passed since its last completed run. Entries are never cleaned up; a
// stale entry simply stops blocking once its timestamp passes.
type CooldownGuard struct {
	mu        sync.Mutex
	notBefore map[string]time.Time
	duration  time.Duration
	now       func() time.Time // injectable for tests
}

// NewCooldownGuard creates a guard with the given cooldown duration.
// A duration <= 0 uses the default.
func NewCooldownGuard(d time.Duration) *CooldownGuard {
	if d <= 0 {
		d = defaultCooldown
	}
	return &CooldownGuard{
		notBefore: make(map[string]time.Time),
		duration:  d,
		now:       time.Now,
	}
}

// IsBlocked reports whether the key is still cooling down, and if so how
// long until it unblocks. A key with no prior run is never blocked.
func (c *CooldownGuard) IsBlocked(key string) (bool, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	nb, ok := c.notBefore[key]
	if !ok {
		return false, 0
	}
	remaining := nb.Sub(c.now())
	if remaining <= 0 {
		return false, 0
	}
	return true, remaining
}

// Arm starts (or restarts) the cooldown window for a key.
func (c *CooldownGuard) Arm(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notBefore[key] = c.now().Add(c.duration)
}
