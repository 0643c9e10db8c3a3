// Package jword defines the fixed-width data-link units exchanged with a
// terminal or gateway: 70-bit payloads, 75-bit words, and three-word frames.
// The meaning of payload bits is owned by the configured FieldPacker; this
// package treats them as opaque.
package jword

import "fmt"

// PayloadBits is the width of one payload in bits.
const PayloadBits = 70

// payloadHiBits is the number of payload bits carried above the low 64.
const payloadHiBits = PayloadBits - 64

// Payload is one 70-bit information unit, held as a 6-bit high part and a
// 64-bit low part. The zero value is a valid all-zero payload.
type Payload struct {
	hi uint64 // top 6 bits, invariant hi < 1<<6
	lo uint64 // low 64 bits
}

// NewPayload builds a payload from its high and low parts. It fails when hi
// overflows the 70-bit domain.
func NewPayload(hi, lo uint64) (Payload, error) {
	if hi >= 1<<payloadHiBits {
		return Payload{}, fmt.Errorf("payload high part %#x exceeds %d bits", hi, payloadHiBits)
	}
	return Payload{hi: hi, lo: lo}, nil
}

// Hi returns the top 6 payload bits.
func (p Payload) Hi() uint64 { return p.hi }

// Lo returns the low 64 payload bits.
func (p Payload) Lo() uint64 { return p.lo }

// String renders the payload as 70 bits of zero-padded hex.
func (p Payload) String() string {
	return fmt.Sprintf("%02x%016x", p.hi, p.lo)
}

// writeTo appends all 70 bits to w, MSB first.
func (p Payload) writeTo(w *BitWriter) {
	w.WriteBits(p.hi, payloadHiBits)
	w.WriteBits(p.lo, 64)
}

// readPayload consumes 70 bits from r.
func readPayload(r *BitReader) Payload {
	hi := r.ReadBits(payloadHiBits)
	lo := r.ReadBits(64)
	return Payload{hi: hi, lo: lo}
}
