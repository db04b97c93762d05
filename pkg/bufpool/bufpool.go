// Package bufpool pools the chunk buffers used when copying file data to and
// from a share.
//
// Buffers come in three classes sized after SMB2 transfer limits: the
// 64KiB request size every dialect supports, the 1MiB size common on SMB3
// servers and the 8MiB protocol maximum. Requests above the largest class
// are allocated directly and never pooled.
//
//	buf := bufpool.Get(chunk)
//	defer bufpool.Put(buf)
package bufpool

import "sync"

// Size classes.
const (
	SmallSize  = 64 << 10
	MediumSize = 1 << 20
	LargeSize  = 8 << 20
)

// Pool hands out byte slices grouped by size class. It is safe for
// concurrent use.
type Pool struct {
	classes []class
}

type class struct {
	size int
	pool *sync.Pool
}

// NewPool returns a pool with the given class sizes, which must be
// ascending. With no sizes the package classes are used.
func NewPool(sizes ...int) *Pool {
	if len(sizes) == 0 {
		sizes = []int{SmallSize, MediumSize, LargeSize}
	}
	p := &Pool{classes: make([]class, 0, len(sizes))}
	for _, size := range sizes {
		size := size
		p.classes = append(p.classes, class{
			size: size,
			pool: &sync.Pool{New: func() any {
				buf := make([]byte, size)
				return &buf
			}},
		})
	}
	return p
}

// Get returns a slice of length size. Its capacity is that of the smallest
// class holding size.
func (p *Pool) Get(size int) []byte {
	for _, c := range p.classes {
		if size <= c.size {
			buf := *c.pool.Get().(*[]byte)
			return buf[:size]
		}
	}
	return make([]byte, size)
}

// Put returns buf to its class. Slices not obtained from Get are dropped.
func (p *Pool) Put(buf []byte) {
	for _, c := range p.classes {
		if cap(buf) == c.size {
			full := buf[:c.size]
			c.pool.Put(&full)
			return
		}
	}
}

var global = NewPool()

// Get returns a buffer of length size from the shared pool.
func Get(size int) []byte { return global.Get(size) }

// Put returns buf to the shared pool.
func Put(buf []byte) { global.Put(buf) }
