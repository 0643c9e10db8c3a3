// Package quant converts wire-level track reports into quantized AirTrack
// records. Out-of-range values are clamped to the nearest declared bound
// (never an error); course wraps modulo 36000 instead of clamping. Every
// clamp or wrap increments a per-field counter on the injected recorder.
package quant

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/tdl-bridge/model"
)

// ErrMalformedInput is returned when a report is missing a mandatory
// identification field. The record is dropped; nothing else about the
// pipeline is affected.
var ErrMalformedInput = errors.New("malformed input")

// Declared field ranges. These mirror the widths of the packing contract;
// anything inside them packs without loss.
const (
	MaxTrackID  = 524_287
	MaxIdentity = int64(model.IdentityHostile)
	MaxQuality  = 15
	MaxSource   = 4_095
	MaxTimeMS   = int64(1)<<42 - 1
	MaxLatE7    = 900_000_000
	MaxLonE7    = 1_800_000_000
	MinAltDM    = -15_000
	MaxAltDM    = 120_000
	MaxSpeed    = 65_535
	CourseMod   = 36_000
	MinClimb    = -30_000
	MaxClimb    = 30_000
)

// ClampRecorder observes clamp and wrap events. Field names match the
// ingress schema so counters line up with what operators see on the wire.
type ClampRecorder interface {
	IncClamp(field string)
}

// NopRecorder discards clamp events.
type NopRecorder struct{}

// IncClamp implements ClampRecorder.
func (NopRecorder) IncClamp(string) {}

// Quantizer validates and quantizes track reports. It is stateless apart
// from the recorder and safe for concurrent use.
type Quantizer struct {
	rec ClampRecorder
}

// New constructs a Quantizer reporting clamp events to rec. A nil rec
// disables clamp accounting.
func New(rec ClampRecorder) *Quantizer {
	if rec == nil {
		rec = NopRecorder{}
	}
	return &Quantizer{rec: rec}
}

// Quantize turns one report into an AirTrack. Only a missing mandatory
// identification field is fatal for the record; every range violation is
// silently corrected and counted.
func (q *Quantizer) Quantize(rep model.TrackReport) (model.AirTrack, error) {
	if rep.TrackID == nil {
		return model.AirTrack{}, fmt.Errorf("%w: missing track_id", ErrMalformedInput)
	}
	if rep.TimeMS == nil {
		return model.AirTrack{}, fmt.Errorf("%w: missing time_ms", ErrMalformedInput)
	}

	return model.AirTrack{
		TrackID:    uint32(q.clamp("track_id", *rep.TrackID, 0, MaxTrackID)),
		TimeMS:     q.clamp("time_ms", *rep.TimeMS, 0, MaxTimeMS),
		LatE7:      int32(q.clamp("lat_e7", rep.LatE7, -MaxLatE7, MaxLatE7)),
		LonE7:      int32(q.clamp("lon_e7", rep.LonE7, -MaxLonE7, MaxLonE7)),
		AltDM:      int32(q.clamp("alt_dm", rep.AltDM, MinAltDM, MaxAltDM)),
		SpeedCMPS:  uint32(q.clamp("spd_cmps", rep.SpeedCMPS, 0, MaxSpeed)),
		CourseCDeg: uint32(q.wrapCourse(rep.CourseCDeg)),
		ClimbCMPS:  int32(q.clamp("climb_cmps", rep.ClimbCMPS, MinClimb, MaxClimb)),
		Identity:   model.Identity(q.clamp("identity_code", rep.IdentityCode, 0, MaxIdentity)),
		Quality:    uint8(q.clamp("q_track", rep.Quality, 0, MaxQuality)),
		Source:     uint16(q.clamp("src", rep.Source, 0, MaxSource)),
	}, nil
}

// clamp pins v into [lo, hi] and counts when it had to move.
func (q *Quantizer) clamp(field string, v, lo, hi int64) int64 {
	switch {
	case v < lo:
		q.rec.IncClamp(field)
		return lo
	case v > hi:
		q.rec.IncClamp(field)
		return hi
	}
	return v
}

// wrapCourse reduces v to [0, 36000) with Euclidean modulo: 36000 wraps to
// 0 and -1 wraps to 35999. A wrap counts against the course field counter.
func (q *Quantizer) wrapCourse(v int64) int64 {
	if v >= 0 && v < CourseMod {
		return v
	}
	q.rec.IncClamp("crs_cdeg")
	w := v % CourseMod
	if w < 0 {
		w += CourseMod
	}
	return w
}
