package jword

// BitWriter appends values MSB-first into a byte buffer. It is the shared
// primitive for payload, word, and frame serialization; field packers use it
// to lay fields into the 210-bit message stream.
type BitWriter struct {
	buf []byte
	off int
}

// NewBitWriter wraps buf, which must be zeroed by the caller and large
// enough for every subsequent WriteBits call.
func NewBitWriter(buf []byte) *BitWriter {
	return &BitWriter{buf: buf}
}

// WriteBits writes the low n bits of v, most significant bit first.
// n must be in [0, 64].
func (w *BitWriter) WriteBits(v uint64, n int) {
	for i := n - 1; i >= 0; i-- {
		if v>>uint(i)&1 == 1 {
			w.buf[w.off>>3] |= 1 << uint(7-w.off&7)
		}
		w.off++
	}
}

// Offset reports how many bits have been written.
func (w *BitWriter) Offset() int { return w.off }

// BitReader consumes values MSB-first from a byte buffer.
type BitReader struct {
	buf []byte
	off int
}

// NewBitReader wraps buf starting at bit offset 0.
func NewBitReader(buf []byte) *BitReader {
	return &BitReader{buf: buf}
}

// ReadBits reads the next n bits as an unsigned value. n must be in [0, 64]
// and within the buffer.
func (r *BitReader) ReadBits(n int) uint64 {
	var v uint64
	for i := 0; i < n; i++ {
		v <<= 1
		if r.buf[r.off>>3]>>uint(7-r.off&7)&1 == 1 {
			v |= 1
		}
		r.off++
	}
	return v
}

// ReadSigned reads an n-bit two's-complement value.
func (r *BitReader) ReadSigned(n int) int64 {
	v := r.ReadBits(n)
	if n < 64 && v>>(uint(n)-1)&1 == 1 {
		v |= ^uint64(0) << uint(n)
	}
	return int64(v)
}

// Offset reports how many bits have been consumed.
func (r *BitReader) Offset() int { return r.off }
