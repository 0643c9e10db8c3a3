package model

// Identity is the identity classification assigned to a track.
type Identity int

const (
	IdentityPending Identity = iota
	IdentityUnknown
	IdentityFriend
	IdentityNeutral
	IdentitySuspect
	IdentityHostile
)

// String returns the lowercase name used in logs and counters.
func (i Identity) String() string {
	switch i {
	case IdentityPending:
		return "pending"
	case IdentityUnknown:
		return "unknown"
	case IdentityFriend:
		return "friend"
	case IdentityNeutral:
		return "neutral"
	case IdentitySuspect:
		return "suspect"
	case IdentityHostile:
		return "hostile"
	default:
		return "invalid"
	}
}

// AirTrack is a fully quantized, range-checked air-track record. Instances
// are produced by the quantizer and are immutable by convention once built;
// every field is already inside its declared range (course is wrapped).
type AirTrack struct {
	TrackID    uint32 // caller-unique track number, [0, 524287]
	TimeMS     int64  // milliseconds since Unix epoch, [0, 2^42-1]
	LatE7      int32  // latitude, 1e-7 degree units, [-900000000, 900000000]
	LonE7      int32  // longitude, 1e-7 degree units, [-1800000000, 1800000000]
	AltDM      int32  // altitude, decimetres, [-15000, 120000]
	SpeedCMPS  uint32 // ground speed, cm/s, [0, 65535]
	CourseCDeg uint32 // course, centi-degrees, [0, 35999], wraps mod 36000
	ClimbCMPS  int32  // climb rate, cm/s, [-30000, 30000]
	Identity   Identity
	Quality    uint8  // quality bucket, [0, 15]
	Source     uint16 // source/policy tag, [0, 4095]
}
