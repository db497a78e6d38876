package zstdsafe

import (
	"sync"
)

// Size-class buffer pools backing the one-shot slow paths and the stream
// helpers. Classes run from 1KB to 512KB in powers of two; larger requests
// are allocated directly and never pooled.

const (
	bufPoolClasses  = 10
	bufPoolMinClass = 1024
)

var bufPools [bufPoolClasses]*sync.Pool

func init() {
	for i := range bufPools {
		size := bufPoolMinClass << i
		bufPools[i] = &sync.Pool{
			New: func() interface{} {
				return make([]byte, 0, size)
			},
		}
	}
}

// GetBuffer returns a zero-length buffer with capacity of at least
// minCapacity, reusing a pooled one when a size class fits.
func GetBuffer(minCapacity int) []byte {
	if minCapacity <= 0 {
		return nil
	}
	for i, pool := range bufPools {
		if bufPoolMinClass<<i >= minCapacity {
			return pool.Get().([]byte)[:0]
		}
	}
	return make([]byte, 0, minCapacity)
}

// PutBuffer returns buf to its size-class pool. buf must not be used after
// the call. Buffers with off-class capacities are left to the GC.
func PutBuffer(buf []byte) {
	if buf == nil {
		return
	}
	capacity := cap(buf)
	for i, pool := range bufPools {
		if bufPoolMinClass<<i == capacity {
			pool.Put(buf[:0])
			return
		}
	}
}
