package jword

import "fmt"

// FrameBuilder assembles frames from packed payloads. It is a pure assembly
// step: one parity call per payload, word order mirrors payload order, no
// I/O, and parity failures propagate unchanged.
type FrameBuilder struct {
	parity ParityProvider
	spare  uint8
}

// BuilderOption customizes a FrameBuilder.
type BuilderOption func(*FrameBuilder)

// WithSpareBit sets the spare bit written into every word. The default is 0;
// only callers that know their terminal's convention should override it.
func WithSpareBit(bit uint8) BuilderOption {
	return func(b *FrameBuilder) { b.spare = bit & 1 }
}

// NewFrameBuilder constructs a builder around the given parity provider.
func NewFrameBuilder(parity ParityProvider, opts ...BuilderOption) (*FrameBuilder, error) {
	if parity == nil {
		return nil, fmt.Errorf("parity provider is nil")
	}
	b := &FrameBuilder{parity: parity}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Build derives one word per payload, in payload order, under hdr.
func (b *FrameBuilder) Build(hdr HeaderContext, payloads [WordsPerFrame]Payload) (*Frame, error) {
	if !hdr.Valid() {
		return nil, fmt.Errorf("header context %#x exceeds %d bits", uint16(hdr), HeaderBits)
	}
	f := &Frame{Header: hdr}
	for i, p := range payloads {
		parity, err := b.parity.Parity(hdr, p)
		if err != nil {
			return nil, err
		}
		f.Words[i] = Word{Payload: p, Parity: parity & 0xF, Spare: b.spare}
	}
	return f, nil
}
