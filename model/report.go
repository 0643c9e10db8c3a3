package model

import "math"

// TrackReport is the wire-level ingress record: one JSON object per track
// update, published on the telemetry substrate. Field names follow the
// ingress schema exactly. TrackID and TimeMS are pointers so a missing
// mandatory identification field is distinguishable from an explicit zero;
// all remaining fields default to zero when absent.
type TrackReport struct {
	// Topic routes the report to a pipeline. It travels alongside the
	// schema fields because the substrate's key expression has no JSON
	// representation of its own.
	Topic string `json:"topic,omitempty"`

	TrackID      *int64 `json:"track_id"`
	TimeMS       *int64 `json:"time_ms"`
	LatE7        int64  `json:"lat_e7"`
	LonE7        int64  `json:"lon_e7"`
	AltDM        int64  `json:"alt_dm"`
	SpeedCMPS    int64  `json:"spd_cmps"`
	CourseCDeg   int64  `json:"crs_cdeg"`
	ClimbCMPS    int64  `json:"climb_cmps"`
	IdentityCode int64  `json:"identity_code"`
	Quality      int64  `json:"q_track"`
	Source       int64  `json:"src"`
}

// FromGeo builds a TrackReport from domain-unit values: degrees, metres,
// m/s. Course is normalized into [0, 360) before scaling so callers can
// pass raw headings.
func FromGeo(trackID int64, timeMS int64, latDeg, lonDeg, altM, speedMS, courseDeg, climbMS float64) TrackReport {
	course := math.Mod(courseDeg, 360)
	if course < 0 {
		course += 360
	}
	return TrackReport{
		TrackID:    &trackID,
		TimeMS:     &timeMS,
		LatE7:      int64(math.Round(latDeg * 1e7)),
		LonE7:      int64(math.Round(lonDeg * 1e7)),
		AltDM:      int64(math.Round(altM * 10)),
		SpeedCMPS:  int64(math.Round(speedMS * 100)),
		CourseCDeg: int64(math.Round(course * 100)),
		ClimbCMPS:  int64(math.Round(climbMS * 100)),
	}
}
