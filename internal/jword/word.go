package jword

import "fmt"

const (
	// WordBits is the fixed on-link width of one word:
	// [70 payload][4 parity][1 spare], MSB to LSB.
	WordBits = PayloadBits + ParityBits + 1

	// ParityBits is the width of the per-word parity value.
	ParityBits = 4

	// WordBytes is the marshalled size of one word. The 75 bits are
	// MSB-aligned with 5 trailing zero pad bits.
	WordBytes = 10
)

// Word is one assembled 75-bit link unit. Spare is 0 unless the frame
// builder was explicitly configured otherwise.
type Word struct {
	Payload Payload
	Parity  uint8 // low 4 bits significant
	Spare   uint8 // 0 or 1
}

// MarshalBinary encodes the word into its 10-byte wire form.
func (w Word) MarshalBinary() ([]byte, error) {
	if w.Parity >= 1<<ParityBits {
		return nil, fmt.Errorf("parity %#x exceeds %d bits", w.Parity, ParityBits)
	}
	if w.Spare > 1 {
		return nil, fmt.Errorf("spare %d is not a single bit", w.Spare)
	}
	buf := make([]byte, WordBytes)
	bw := NewBitWriter(buf)
	w.Payload.writeTo(bw)
	bw.WriteBits(uint64(w.Parity), ParityBits)
	bw.WriteBits(uint64(w.Spare), 1)
	return buf, nil
}

// UnmarshalBinary decodes a 10-byte wire word, for gateway simulators and
// tests. Pad bits are required to be zero.
func (w *Word) UnmarshalBinary(data []byte) error {
	if len(data) != WordBytes {
		return fmt.Errorf("word is %d bytes, want %d", len(data), WordBytes)
	}
	br := NewBitReader(data)
	w.Payload = readPayload(br)
	w.Parity = uint8(br.ReadBits(ParityBits))
	w.Spare = uint8(br.ReadBits(1))
	if pad := br.ReadBits(5); pad != 0 {
		return fmt.Errorf("nonzero word padding %#x", pad)
	}
	return nil
}
