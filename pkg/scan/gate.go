package scan

import (
	"sync"
	"time"
)

// DefaultCooldown is the minimum spacing between accepted detections.
const DefaultCooldown = 2 * time.Second

// Gate suppresses detections that arrive within a cooldown of the last
// accepted one, regardless of their value.
type Gate struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     time.Time
	seen     bool
}

// NewGate creates a gate. A zero cooldown accepts everything.
func NewGate(cooldown time.Duration) *Gate {
	if cooldown < 0 {
		cooldown = 0
	}
	return &Gate{cooldown: cooldown}
}

// Accept records now and returns true unless it falls inside the cooldown.
func (g *Gate) Accept(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.seen && now.Sub(g.last) < g.cooldown {
		return false
	}
	g.last = now
	g.seen = true
	return true
}

// Reset forgets the last accepted detection.
func (g *Gate) Reset() {
	g.mu.Lock()
	g.last = time.Time{}
	g.seen = false
	g.mu.Unlock()
}

// Last returns the last accepted time, if any.
func (g *Gate) Last() (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last, g.seen
}

// Cooldown returns the configured window.
func (g *Gate) Cooldown() time.Duration {
	return g.cooldown
}
