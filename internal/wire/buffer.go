// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package wire

// Alignment is the byte boundary AlignedBuffer allocations are rounded up
// to. Column chunks use this so that SIMD-friendly kernels (and the
// optional arithmetic accelerator described in spec §1) can assume aligned
// loads over the raw element bytes.
const Alignment = 64

// AlignedBuffer is a byte slice whose backing array is always allocated in
// multiples of Alignment bytes. Growth preserves existing bytes and
// zero-fills the new tail, matching the semantics of a raw realloc that
// happens to keep alignment.
type AlignedBuffer struct {
	buf []byte // len(buf) is the logical size; cap(buf) is always a multiple of Alignment
}

// NewAlignedBuffer returns an AlignedBuffer with logical length n.
func NewAlignedBuffer(n int) *AlignedBuffer {
	b := &AlignedBuffer{buf: make([]byte, n, alignUp(n))}
	return b
}

func alignUp(n int) int {
	if n <= 0 {
		return Alignment
	}
	return ((n + Alignment - 1) / Alignment) * Alignment
}

// Bytes returns the logical contents of the buffer.
func (b *AlignedBuffer) Bytes() []byte { return b.buf }

// Len returns the logical length of the buffer.
func (b *AlignedBuffer) Len() int { return len(b.buf) }

// Grow extends the buffer to newLen, zero-filling any newly added bytes. If
// newLen is less than the current length, Grow is a truncation and existing
// bytes beyond newLen are dropped (but the backing capacity is kept).
func (b *AlignedBuffer) Grow(newLen int) {
	if newLen <= len(b.buf) {
		b.buf = b.buf[:newLen]
		return
	}
	if newLen <= cap(b.buf) {
		tail := b.buf[len(b.buf):newLen]
		for i := range tail {
			tail[i] = 0
		}
		b.buf = b.buf[:newLen]
		return
	}
	next := make([]byte, newLen, alignUp(newLen))
	copy(next, b.buf)
	// the tail beyond the old length is already zero (make zero-fills).
	b.buf = next
}

// Append appends p to the buffer, growing (and zero-filling/aligning) as
// needed, and returns the offset at which p now starts.
func (b *AlignedBuffer) Append(p []byte) int {
	off := len(b.buf)
	b.Grow(off + len(p))
	copy(b.buf[off:], p)
	return off
}
