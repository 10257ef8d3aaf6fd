// Package pool provides reusable I/O buffers for copying and hashing file content.
//
// A mirror pass streams every changed file twice at most (hash, then copy), so
// the same handful of buffers is reused thousands of times per pass. Items in a
// sync.Pool are dropped on garbage collection, which is fine for buffers.
package pool

import (
	"fmt"
	"sync"
)

// DefaultBufferSize is the buffer size used when none is configured (256KB).
const DefaultBufferSize int64 = 256 * 1024

// FixedBufferPool hands out byte slices of one fixed size.
type FixedBufferPool struct {
	size int64
	pool sync.Pool
}

// NewFixedBuffer creates a pool of buffers of exactly size bytes.
func NewFixedBuffer(size int64) *FixedBufferPool {
	if size <= 0 {
		panic(fmt.Sprintf("buffer size %d must be positive", size))
	}
	return &FixedBufferPool{
		size: size,
		pool: sync.Pool{
			New: func() any {
				b := make([]byte, int(size))
				return &b
			},
		},
	}
}

// Size returns the length of the buffers handed out by Get.
func (fp *FixedBufferPool) Size() int64 {
	return fp.size
}

// Get returns a buffer with len == cap == Size().
func (fp *FixedBufferPool) Get() *[]byte {
	b := fp.pool.Get().(*[]byte)
	// A caller may have re-sliced the buffer before returning it.
	*b = (*b)[:cap(*b)]
	return b
}

// Put returns a buffer to the pool. Buffers of a foreign size are dropped.
func (fp *FixedBufferPool) Put(b *[]byte) {
	if b == nil || int64(cap(*b)) != fp.size {
		return
	}
	*b = (*b)[:fp.size]
	fp.pool.Put(b)
}
