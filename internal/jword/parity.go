package jword

// ParityProvider computes the 4-bit parity for one word from the header
// context and payload. Implementations must be deterministic and total over
// the full payload domain: same inputs, same output, no panics. The
// production algorithm is supplied externally; ChecksumParity is the open
// reference and NoopParity suits simulation runs that ignore parity.
type ParityProvider interface {
	Parity(hdr HeaderContext, p Payload) (uint8, error)
}

// ChecksumParity folds the header and payload bits down to a 4-bit XOR
// checksum. It is the reference provider for lab use.
type ChecksumParity struct{}

// Parity implements ParityProvider. It never fails.
func (ChecksumParity) Parity(hdr HeaderContext, p Payload) (uint8, error) {
	acc := p.Lo() ^ p.Hi() ^ uint64(hdr)
	acc ^= acc >> 32
	acc ^= acc >> 16
	acc ^= acc >> 8
	acc ^= acc >> 4
	return uint8(acc & 0xF), nil
}

// NoopParity always reports zero parity.
type NoopParity struct{}

// Parity implements ParityProvider.
func (NoopParity) Parity(HeaderContext, Payload) (uint8, error) { return 0, nil }
