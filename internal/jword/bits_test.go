package jword

import "testing"

func TestBitWriterReaderRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		widths []int
		values []uint64
	}{
		{
			name:   "byte aligned",
			widths: []int{8, 8, 8},
			values: []uint64{0xAB, 0x00, 0xFF},
		},
		{
			name:   "unaligned fields",
			widths: []int{3, 7, 13, 1},
			values: []uint64{0x5, 0x41, 0x1ABC, 0x1},
		},
		{
			name:   "full 64-bit field",
			widths: []int{64, 6},
			values: []uint64{0xDEADBEEFCAFEF00D, 0x2A},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			total := 0
			for _, w := range tc.widths {
				total += w
			}
			buf := make([]byte, (total+7)/8)
			w := NewBitWriter(buf)
			for i, width := range tc.widths {
				w.WriteBits(tc.values[i], width)
			}
			if w.Offset() != total {
				t.Fatalf("writer offset = %d, want %d", w.Offset(), total)
			}

			r := NewBitReader(buf)
			for i, width := range tc.widths {
				got := r.ReadBits(width)
				if got != tc.values[i] {
					t.Errorf("field %d: got %#x, want %#x", i, got, tc.values[i])
				}
			}
		})
	}
}

func TestBitWriterMSBFirst(t *testing.T) {
	buf := make([]byte, 2)
	w := NewBitWriter(buf)
	w.WriteBits(0b101, 3)
	w.WriteBits(0b0, 1)
	w.WriteBits(0xF, 4)

	if buf[0] != 0b1010_1111 {
		t.Errorf("first byte = %08b, want 10101111", buf[0])
	}
	if buf[1] != 0 {
		t.Errorf("second byte = %#x, want 0", buf[1])
	}
}

func TestBitReaderSigned(t *testing.T) {
	tests := []struct {
		name  string
		width int
		value int64
	}{
		{"positive", 18, 120_000},
		{"negative", 18, -15_000},
		{"minus one", 16, -1},
		{"zero", 16, 0},
		{"min 16-bit", 16, -32_768},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, 8)
			w := NewBitWriter(buf)
			w.WriteBits(uint64(tc.value)&(1<<uint(tc.width)-1), tc.width)

			r := NewBitReader(buf)
			if got := r.ReadSigned(tc.width); got != tc.value {
				t.Errorf("ReadSigned(%d) = %d, want %d", tc.width, got, tc.value)
			}
		})
	}
}
