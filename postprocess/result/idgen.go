package result

import "sync/atomic"

// IDGenerator hands out incrementing IDs for detection results.  It is safe
// for concurrent use
type IDGenerator struct {
	id atomic.Int64
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// GetNext returns the next incremental number, starting at 1
func (g *IDGenerator) GetNext() int64 {
	return g.id.Add(1)
}

// Reset restarts the sequence so the next ID returned is 1
func (g *IDGenerator) Reset() {
	g.id.Store(0)
}
