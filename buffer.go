package zstdsafe

import "fmt"

// InBuffer is a position-tracked view over a caller-owned input region.
// It mirrors ZSTD_inBuffer: the underlying bytes are never reallocated or
// copied, only the consumed position advances. The position is advanced
// exclusively by the streaming calls, and only by however much the native
// layer reports it consumed.
//
// An InBuffer must not be shared between concurrent operations.
type InBuffer struct {
	data []byte
	pos  int
}

// NewInBuffer wraps data in a fresh input view with position zero.
func NewInBuffer(data []byte) *InBuffer {
	return &InBuffer{data: data}
}

// Size returns the total size of the wrapped region.
func (b *InBuffer) Size() int { return len(b.data) }

// Pos returns the number of bytes consumed so far.
func (b *InBuffer) Pos() int { return b.pos }

// Remaining returns the number of unconsumed bytes.
func (b *InBuffer) Remaining() int { return len(b.data) - b.pos }

// Exhausted reports whether every byte of the region has been consumed.
func (b *InBuffer) Exhausted() bool { return b.pos == len(b.data) }

// Rewind resets the consumed position to zero so the same region can be
// fed into a new session.
func (b *InBuffer) Rewind() { b.pos = 0 }

// advance moves the consumed position forward by n bytes. A position past
// the end of the region signals a wrapper bug, not a recoverable condition.
func (b *InBuffer) advance(n int) {
	if n < 0 || b.pos+n > len(b.data) {
		panic(fmt.Sprintf("BUG: InBuffer position %d+%d out of range [0, %d]", b.pos, n, len(b.data)))
	}
	b.pos += n
}

// OutBuffer is a position-tracked view over a caller-owned output region,
// mirroring ZSTD_outBuffer. The position counts bytes produced by the
// native layer; Bytes returns the produced prefix.
//
// An OutBuffer must not be shared between concurrent operations.
type OutBuffer struct {
	data []byte
	pos  int
}

// NewOutBuffer wraps dst in a fresh output view with position zero.
// The full length of dst is offered to the native layer as capacity.
func NewOutBuffer(dst []byte) *OutBuffer {
	return &OutBuffer{data: dst}
}

// Capacity returns the total capacity of the wrapped region.
func (b *OutBuffer) Capacity() int { return len(b.data) }

// Pos returns the number of bytes produced so far.
func (b *OutBuffer) Pos() int { return b.pos }

// Remaining returns the unfilled capacity.
func (b *OutBuffer) Remaining() int { return len(b.data) - b.pos }

// Full reports whether the region has no capacity left. A full output
// buffer is not an error: drain it with Bytes, Rewind it and step again.
func (b *OutBuffer) Full() bool { return b.pos == len(b.data) }

// Bytes returns the produced portion of the region. The returned slice
// aliases the caller's buffer; after a Rewind it is overwritten by the
// next step call.
func (b *OutBuffer) Bytes() []byte { return b.data[:b.pos] }

// Rewind discards the produced position so the region can be refilled.
// The caller is expected to have consumed Bytes first.
func (b *OutBuffer) Rewind() { b.pos = 0 }

// advance moves the produced position forward by n bytes, failing fast on
// any position that would exceed the region capacity.
func (b *OutBuffer) advance(n int) {
	if n < 0 || b.pos+n > len(b.data) {
		panic(fmt.Sprintf("BUG: OutBuffer position %d+%d out of range [0, %d]", b.pos, n, len(b.data)))
	}
	b.pos += n
}
