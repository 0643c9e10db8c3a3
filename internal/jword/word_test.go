package jword

import (
	"bytes"
	"testing"
)

func TestNewPayloadBounds(t *testing.T) {
	if _, err := NewPayload(0x3F, 0xFFFFFFFFFFFFFFFF); err != nil {
		t.Fatalf("max payload rejected: %v", err)
	}
	if _, err := NewPayload(1<<6, 0); err == nil {
		t.Fatal("expected error for high part overflowing 6 bits")
	}
}

func TestWordMarshalLayout(t *testing.T) {
	// Payload of all ones, parity 0, spare 0: the first 70 marshalled bits
	// must be ones, everything after them zero.
	p, err := NewPayload(0x3F, 0xFFFFFFFFFFFFFFFF)
	if err != nil {
		t.Fatal(err)
	}
	w := Word{Payload: p}
	data, err := w.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != WordBytes {
		t.Fatalf("marshalled %d bytes, want %d", len(data), WordBytes)
	}

	want := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFC, 0x00}
	if !bytes.Equal(data, want) {
		t.Errorf("wire bytes = % x, want % x", data, want)
	}
}

func TestWordSpareAndParityPositions(t *testing.T) {
	// Zero payload, parity 0xF, spare 1: parity occupies bits 70..73 and
	// the spare bit 74, straddling the last two bytes.
	w := Word{Parity: 0xF, Spare: 1}
	data, err := w.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if data[8] != 0b0000_0011 {
		t.Errorf("byte 8 = %08b, want 00000011", data[8])
	}
	if data[9] != 0b1110_0000 {
		t.Errorf("byte 9 = %08b, want 11100000", data[9])
	}
}

func TestWordMarshalRejectsOutOfRange(t *testing.T) {
	if _, err := (Word{Parity: 0x10}).MarshalBinary(); err == nil {
		t.Error("expected error for 5-bit parity")
	}
	if _, err := (Word{Spare: 2}).MarshalBinary(); err == nil {
		t.Error("expected error for multi-bit spare")
	}
}

func TestWordUnmarshalRoundTrip(t *testing.T) {
	p, err := NewPayload(0x15, 0x0123456789ABCDEF)
	if err != nil {
		t.Fatal(err)
	}
	in := Word{Payload: p, Parity: 0x9, Spare: 1}
	data, err := in.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	var out Word
	if err := out.UnmarshalBinary(data); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("round trip: got %+v, want %+v", out, in)
	}
}

func TestWordUnmarshalRejectsNonzeroPadding(t *testing.T) {
	data := make([]byte, WordBytes)
	data[9] = 0x01 // lowest pad bit
	var w Word
	if err := w.UnmarshalBinary(data); err == nil {
		t.Fatal("expected error for nonzero padding")
	}
}

func TestChecksumParityDeterministic(t *testing.T) {
	p, err := NewPayload(0x2A, 0xFEEDFACE12345678)
	if err != nil {
		t.Fatal(err)
	}
	var cp ChecksumParity
	first, err := cp.Parity(0x1234, p)
	if err != nil {
		t.Fatal(err)
	}
	if first > 0xF {
		t.Fatalf("parity %#x wider than 4 bits", first)
	}
	for i := 0; i < 8; i++ {
		got, err := cp.Parity(0x1234, p)
		if err != nil {
			t.Fatal(err)
		}
		if got != first {
			t.Fatalf("parity changed between calls: %#x then %#x", first, got)
		}
	}

	// A different header context must be able to change the result for at
	// least one input bit pattern; this one flips the low nibble.
	other, err := cp.Parity(0x1235, p)
	if err != nil {
		t.Fatal(err)
	}
	if other == first {
		t.Error("parity ignored the header context")
	}
}
