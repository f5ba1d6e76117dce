// Package pool provides bucketed sync.Pool instances for the byte
// buffers the codec churns through: per-frame index streams and
// decompression scratch. Buffers are organized by size class so a small
// frame does not pin a canvas-sized allocation.
package pool

import "sync"

// Size classes, sized for GIF work: a 64x64 frame's index stream fits
// the 4K class, a full 1024x1024 canvas the 1M class.
var sizes = [...]int{1 << 10, 1 << 14, 1 << 18, 1 << 22}

var pools [len(sizes)]sync.Pool

func init() {
	for i := range pools {
		sz := sizes[i]
		pools[i] = sync.Pool{
			New: func() any {
				b := make([]byte, sz)
				return &b
			},
		}
	}
}

// bucketIndex returns the pool index for a given size, or -1 when the
// size exceeds the largest class.
func bucketIndex(size int) int {
	for i, sz := range sizes {
		if size <= sz {
			return i
		}
	}
	return -1
}

// Get returns a byte slice with length size. Buffers beyond the largest
// size class are plainly allocated.
func Get(size int) []byte {
	idx := bucketIndex(size)
	if idx < 0 {
		return make([]byte, size)
	}
	bp := pools[idx].Get().(*[]byte)
	b := *bp
	if cap(b) < size {
		b = make([]byte, sizes[idx])
	}
	return b[:size]
}

// Put returns a slice obtained from Get to its pool. The caller must
// not use b afterwards.
func Put(b []byte) {
	c := cap(b)
	idx := bucketIndex(c)
	if idx < 0 || sizes[idx] != c {
		// Oversized or foreign buffer; let the GC have it.
		return
	}
	b = b[:c]
	pools[idx].Put(&b)
}
