// Package guard throttles the physical stimulus device. Each action
// class has an independent cooldown window; triggering one class never
// blocks another.
package guard

import (
	"math"
	"sync"
	"time"
)

// DefaultCooldown is the per-class cooldown applied when none is configured.
const DefaultCooldown = 5 * time.Second

// Decision is the outcome of a cooldown check.
type Decision struct {
	Allowed bool
	// Retry is how long until the class is allowed again. Zero when Allowed.
	Retry time.Duration
}

// SecondsRemaining converts Retry to the whole-second count reported
// to callers, rounding up so a retry after that many seconds succeeds.
func (d Decision) SecondsRemaining() int {
	if d.Allowed {
		return 0
	}
	return int(math.Ceil(d.Retry.Seconds()))
}

// Guard tracks the last trigger time per action class. State is
// in-memory only: cooldowns are short-lived safety throttles, not
// audit records, so loss on restart is acceptable.
type Guard struct {
	cooldown time.Duration

	mu   sync.Mutex
	last map[string]time.Time

	now func() time.Time
}

// New creates a Guard with the given cooldown window. A non-positive
// cooldown falls back to DefaultCooldown.
func New(cooldown time.Duration) *Guard {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Guard{
		cooldown: cooldown,
		last:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Check reports whether class is out of cooldown. It never mutates
// state: a denied caller probing repeatedly learns nothing beyond the
// remaining wait.
func (g *Guard) Check(class string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, ok := g.last[class]
	if !ok {
		return Decision{Allowed: true}
	}

	elapsed := g.now().Sub(last)
	if elapsed >= g.cooldown {
		return Decision{Allowed: true}
	}
	return Decision{Allowed: false, Retry: g.cooldown - elapsed}
}

// Trigger records that class fired now, starting its cooldown.
func (g *Guard) Trigger(class string) {
	g.mu.Lock()
	g.last[class] = g.now()
	g.mu.Unlock()
}
