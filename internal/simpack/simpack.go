// Package simpack provides the open, non-restricted field packing used for
// lab and simulation runs. It lays the quantized track fields sequentially
// into a 210-bit stream, MSB first, and splits the stream into the three
// 70-bit payloads of a frame. The layout is a simulation mapping only; the
// licensed production mapping replaces this package entirely on real links.
package simpack

import (
	"fmt"

	"github.com/signalsfoundry/tdl-bridge/internal/jword"
	"github.com/signalsfoundry/tdl-bridge/model"
)

// Field widths in stream order. They sum to exactly 210 bits, three payloads
// with no slack. Signed fields are two's complement.
const (
	trackBits    = 19
	identityBits = 3
	qualityBits  = 4
	sourceBits   = 12
	timeBits     = 42
	latBits      = 32
	lonBits      = 32
	altBits      = 18
	speedBits    = 16
	courseBits   = 16
	climbBits    = 16

	streamBits  = trackBits + identityBits + qualityBits + sourceBits + timeBits +
		latBits + lonBits + altBits + speedBits + courseBits + climbBits
	streamBytes = (streamBits + 7) / 8
)

// Contract bounds. The quantizer clamps to these same ranges, so a violation
// here means an upstream bug, reported as a PackingError.
const (
	maxTrackID  = 1<<trackBits - 1
	maxIdentity = int64(model.IdentityHostile)
	maxQuality  = 1<<qualityBits - 1
	maxSource   = 1<<sourceBits - 1
	maxTimeMS   = 1<<timeBits - 1
	maxLatE7    = 900_000_000
	maxLonE7    = 1_800_000_000
	minAltDM    = -15_000
	maxAltDM    = 120_000
	maxSpeed    = 1<<speedBits - 1
	maxCourse   = 35_999
	minClimb    = -30_000
	maxClimb    = 30_000
)

// Packer is the open lab FieldPacker. The zero value is ready to use.
type Packer struct{}

var _ jword.FieldPacker = Packer{}

// Pack implements jword.FieldPacker.
func (Packer) Pack(t model.AirTrack) ([jword.WordsPerFrame]jword.Payload, error) {
	var none [jword.WordsPerFrame]jword.Payload
	if err := checkContract(t); err != nil {
		return none, err
	}

	var buf [streamBytes]byte
	w := jword.NewBitWriter(buf[:])
	w.WriteBits(uint64(t.TrackID), trackBits)
	w.WriteBits(uint64(t.Identity), identityBits)
	w.WriteBits(uint64(t.Quality), qualityBits)
	w.WriteBits(uint64(t.Source), sourceBits)
	w.WriteBits(uint64(t.TimeMS), timeBits)
	w.WriteBits(uint64(uint32(t.LatE7)), latBits)
	w.WriteBits(uint64(uint32(t.LonE7)), lonBits)
	w.WriteBits(uint64(uint32(t.AltDM))&(1<<altBits-1), altBits)
	w.WriteBits(uint64(t.SpeedCMPS), speedBits)
	w.WriteBits(uint64(t.CourseCDeg), courseBits)
	w.WriteBits(uint64(uint32(t.ClimbCMPS))&(1<<climbBits-1), climbBits)

	r := jword.NewBitReader(buf[:])
	var out [jword.WordsPerFrame]jword.Payload
	for i := range out {
		hi := r.ReadBits(jword.PayloadBits - 64)
		lo := r.ReadBits(64)
		p, err := jword.NewPayload(hi, lo)
		if err != nil {
			return none, err
		}
		out[i] = p
	}
	return out, nil
}

// Unpack reverses Pack. It exists so the lab mapping can be verified
// round-trip and so gateway simulators can display received tracks.
func (Packer) Unpack(payloads [jword.WordsPerFrame]jword.Payload) (model.AirTrack, error) {
	var buf [streamBytes]byte
	w := jword.NewBitWriter(buf[:])
	for _, p := range payloads {
		w.WriteBits(p.Hi(), jword.PayloadBits-64)
		w.WriteBits(p.Lo(), 64)
	}

	r := jword.NewBitReader(buf[:])
	t := model.AirTrack{
		TrackID:    uint32(r.ReadBits(trackBits)),
		Identity:   model.Identity(r.ReadBits(identityBits)),
		Quality:    uint8(r.ReadBits(qualityBits)),
		Source:     uint16(r.ReadBits(sourceBits)),
		TimeMS:     int64(r.ReadBits(timeBits)),
		LatE7:      int32(r.ReadSigned(latBits)),
		LonE7:      int32(r.ReadSigned(lonBits)),
		AltDM:      int32(r.ReadSigned(altBits)),
		SpeedCMPS:  uint32(r.ReadBits(speedBits)),
		CourseCDeg: uint32(r.ReadBits(courseBits)),
		ClimbCMPS:  int32(r.ReadSigned(climbBits)),
	}
	if err := checkContract(t); err != nil {
		return model.AirTrack{}, fmt.Errorf("decoded track invalid: %w", err)
	}
	return t, nil
}

func checkContract(t model.AirTrack) error {
	switch {
	case t.TrackID > maxTrackID:
		return &jword.PackingError{Field: "track_id", Value: int64(t.TrackID)}
	case int64(t.Identity) < 0 || int64(t.Identity) > maxIdentity:
		return &jword.PackingError{Field: "identity_code", Value: int64(t.Identity)}
	case t.Quality > maxQuality:
		return &jword.PackingError{Field: "q_track", Value: int64(t.Quality)}
	case t.Source > maxSource:
		return &jword.PackingError{Field: "src", Value: int64(t.Source)}
	case t.TimeMS < 0 || t.TimeMS > maxTimeMS:
		return &jword.PackingError{Field: "time_ms", Value: t.TimeMS}
	case t.LatE7 < -maxLatE7 || t.LatE7 > maxLatE7:
		return &jword.PackingError{Field: "lat_e7", Value: int64(t.LatE7)}
	case t.LonE7 < -maxLonE7 || t.LonE7 > maxLonE7:
		return &jword.PackingError{Field: "lon_e7", Value: int64(t.LonE7)}
	case t.AltDM < minAltDM || t.AltDM > maxAltDM:
		return &jword.PackingError{Field: "alt_dm", Value: int64(t.AltDM)}
	case t.SpeedCMPS > maxSpeed:
		return &jword.PackingError{Field: "spd_cmps", Value: int64(t.SpeedCMPS)}
	case t.CourseCDeg > maxCourse:
		return &jword.PackingError{Field: "crs_cdeg", Value: int64(t.CourseCDeg)}
	case t.ClimbCMPS < minClimb || t.ClimbCMPS > maxClimb:
		return &jword.PackingError{Field: "climb_cmps", Value: int64(t.ClimbCMPS)}
	}
	return nil
}
