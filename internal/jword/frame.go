package jword

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderBits is the width of the externally defined header context
	// (documented as "bits 4 through 18" in the source domain).
	HeaderBits = 15

	// WordsPerFrame is fixed by the message format.
	WordsPerFrame = 3

	// FrameBytes is the marshalled frame size: a 2-byte header followed
	// by three 10-byte words.
	FrameBytes = 2 + WordsPerFrame*WordBytes
)

// HeaderContext carries the 15 header bits consumed by field packers and
// parity providers. Its internal structure is owned by the terminal side and
// opaque here.
type HeaderContext uint16

// Valid reports whether the context fits the 15-bit header field.
func (h HeaderContext) Valid() bool { return h < 1<<HeaderBits }

// Frame is the unit handed to a transport sink: the three words produced for
// one encoded track update plus the header context they were derived from.
// A frame is created once per encode call and never mutated afterwards.
type Frame struct {
	Header HeaderContext
	Words  [WordsPerFrame]Word
}

// MarshalBinary encodes the frame into its 32-byte wire form.
func (f *Frame) MarshalBinary() ([]byte, error) {
	if !f.Header.Valid() {
		return nil, fmt.Errorf("header context %#x exceeds %d bits", uint16(f.Header), HeaderBits)
	}
	buf := make([]byte, 0, FrameBytes)
	buf = binary.BigEndian.AppendUint16(buf, uint16(f.Header))
	for i := range f.Words {
		wb, err := f.Words[i].MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("word %d: %w", i, err)
		}
		buf = append(buf, wb...)
	}
	return buf, nil
}

// UnmarshalBinary decodes a 32-byte wire frame.
func (f *Frame) UnmarshalBinary(data []byte) error {
	if len(data) != FrameBytes {
		return fmt.Errorf("frame is %d bytes, want %d", len(data), FrameBytes)
	}
	hdr := HeaderContext(binary.BigEndian.Uint16(data[:2]))
	if !hdr.Valid() {
		return fmt.Errorf("header context %#x exceeds %d bits", uint16(hdr), HeaderBits)
	}
	f.Header = hdr
	for i := 0; i < WordsPerFrame; i++ {
		start := 2 + i*WordBytes
		if err := f.Words[i].UnmarshalBinary(data[start : start+WordBytes]); err != nil {
			return fmt.Errorf("word %d: %w", i, err)
		}
	}
	return nil
}

// Payloads returns the three payloads in word order.
func (f *Frame) Payloads() [WordsPerFrame]Payload {
	var out [WordsPerFrame]Payload
	for i := range f.Words {
		out[i] = f.Words[i].Payload
	}
	return out
}
