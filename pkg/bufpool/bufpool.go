// Package bufpool provides a tiered buffer pool for copy buffers. Streamed
// transfers borrow a chunk-sized buffer per write instead of allocating one,
// which keeps GC pressure flat when many files move concurrently.
//
//	buf := bufpool.Get(size)
//	defer bufpool.Put(buf)
package bufpool

import "sync"

// Size classes. Requests above the large class are allocated directly and
// never pooled, so an occasional oversized transfer cannot pin memory.
const (
	SmallSize  = 4 << 10  // control payloads, bus envelopes
	MediumSize = 64 << 10 // the default transfer chunk size
	LargeSize  = 1 << 20  // tuned-up chunk sizes
)

// Pool manages byte slices organized by size class. Safe for concurrent use.
type Pool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool
}

// NewPool creates an empty tiered pool.
func NewPool() *Pool {
	p := &Pool{}
	p.small.New = func() any { b := make([]byte, SmallSize); return &b }
	p.medium.New = func() any { b := make([]byte, MediumSize); return &b }
	p.large.New = func() any { b := make([]byte, LargeSize); return &b }
	return p
}

// Get returns a slice of exactly size bytes backed by a pooled buffer of the
// next size class up. Sizes above LargeSize are allocated directly.
func (p *Pool) Get(size int) []byte {
	var ptr *[]byte
	switch {
	case size <= SmallSize:
		ptr = p.small.Get().(*[]byte)
	case size <= MediumSize:
		ptr = p.medium.Get().(*[]byte)
	case size <= LargeSize:
		ptr = p.large.Get().(*[]byte)
	default:
		return make([]byte, size)
	}
	return (*ptr)[:size]
}

// Put returns a buffer obtained from Get. Buffers that do not match a size
// class capacity are dropped for the GC.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}

	full := buf[:cap(buf)]
	switch cap(buf) {
	case SmallSize:
		p.small.Put(&full)
	case MediumSize:
		p.medium.Put(&full)
	case LargeSize:
		p.large.Put(&full)
	}
}

// defaultPool serves the package-level Get/Put used by the sinks.
var defaultPool = NewPool()

// Get borrows a buffer from the shared pool.
func Get(size int) []byte { return defaultPool.Get(size) }

// Put returns a buffer to the shared pool.
func Put(buf []byte) { defaultPool.Put(buf) }
