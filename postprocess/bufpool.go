package postprocess

import (
	"sync"
)

// scratchPool holds float64 scratch buffers reused between decode calls
type scratchPool struct {
	pool sync.Pool
}

// newScratchPool returns a pool that produces buffers with room for at
// least size values
func newScratchPool(size int) *scratchPool {

	p := &scratchPool{}

	p.pool.New = func() any {
		buf := make([]float64, size)
		return &buf
	}

	return p
}

// Get returns a *[]float64 slice of length size.  If the pooled buffer is too
// small a new one of exactly size is allocated
func (p *scratchPool) Get(size int) *[]float64 {

	buf := p.pool.Get().(*[]float64)

	if cap(*buf) < size {
		*buf = make([]float64, size)
	}

	*buf = (*buf)[:size]

	return buf
}

// Put returns a buffer back into the pool.  You must only call Put on a
// buffer you previously got via Get
func (p *scratchPool) Put(buf *[]float64) {
	p.pool.Put(buf)
}
