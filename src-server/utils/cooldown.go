package utils

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Cooldown allows one vouch per user every `every`.
// A nil Cooldown, or one with a non-positive period, allows everything.
type Cooldown struct {
	every    time.Duration
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewCooldown(every time.Duration) *Cooldown {
	return &Cooldown{
		every:    every,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (c *Cooldown) Enabled() bool {
	return c != nil && c.every > 0
}

// Allow consumes the user's token if one is available.
func (c *Cooldown) Allow(userID string) bool {
	if !c.Enabled() {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	limiter, ok := c.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(c.every), 1)
		c.limiters[userID] = limiter
	}
	return limiter.Allow()
}

// Prune forgets users whose bucket has refilled, they behave like new users anyway.
func (c *Cooldown) Prune() {
	if !c.Enabled() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for userID, limiter := range c.limiters {
		if limiter.Tokens() >= 1 {
			delete(c.limiters, userID)
		}
	}
}
