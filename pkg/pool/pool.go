// Package pool provides type-safe object pooling for the stripe writer.
// Stripe encoding produces short-lived byte buffers on every flush; pooling
// them keeps the flush path from churning the garbage collector.
//
// Example usage:
//
//	buf := pool.GetBuffer()
//	defer pool.PutBuffer(buf)
//	encodeInto(buf)
package pool

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// Pool is a generic object pool wrapping sync.Pool with reset-on-return
// and hit/miss statistics. Safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated int64
		hits      int64
	}
}

// New creates a pool with a factory and an optional reset function applied
// before an object is returned to the pool.
func New[T any](factory func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return factory()
	}
	return p
}

// Get fetches an object from the pool, allocating if empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.hits, 1)
	return p.pool.Get().(T)
}

// Put resets the object and returns it to the pool.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	p.pool.Put(obj)
}

// Stats returns the number of objects ever allocated and total gets.
func (p *Pool[T]) Stats() (allocated, gets int64) {
	return atomic.LoadInt64(&p.stats.allocated), atomic.LoadInt64(&p.stats.hits)
}

// maxPooledBufferCap keeps oversized one-off buffers out of the pool so a
// single huge stripe does not pin memory forever.
const maxPooledBufferCap = 16 << 20

var bufferPool = New(
	func() *bytes.Buffer { return bytes.NewBuffer(make([]byte, 0, 64<<10)) },
	func(b *bytes.Buffer) { b.Reset() },
)

// GetBuffer fetches a reusable byte buffer.
func GetBuffer() *bytes.Buffer {
	return bufferPool.Get()
}

// PutBuffer returns a buffer to the pool unless it grew past the pooling
// cap.
func PutBuffer(b *bytes.Buffer) {
	if b.Cap() > maxPooledBufferCap {
		return
	}
	bufferPool.Put(b)
}
