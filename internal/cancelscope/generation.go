package cancelscope

import "sync/atomic"

// Generation is a monotonically increasing counter. Async work captures the value when it
// starts and applies its result only while the value is unchanged.
type Generation struct {
	n atomic.Uint64
}

// Load returns the current generation.
func (g *Generation) Load() uint64 {
	return g.n.Load()
}

// Advance invalidates every generation captured so far and returns the new one.
func (g *Generation) Advance() uint64 {
	return g.n.Add(1)
}

// IsCurrent reports whether gen is still the latest generation.
func (g *Generation) IsCurrent(gen uint64) bool {
	return g.n.Load() == gen
}
