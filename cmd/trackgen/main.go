// Command trackgen publishes synthetic track telemetry to a bridge ingest
// socket: either a fixed position given by flags, or the moving subpoint of
// a TLE-propagated satellite for a realistic track that actually goes
// somewhere.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"math"
	"net"
	"os"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/tdl-bridge/internal/logging"
	"github.com/signalsfoundry/tdl-bridge/model"
)

func main() {
	target := flag.String("target", "127.0.0.1:7430", "UDP address of the bridge ingest socket")
	topic := flag.String("topic", "drone/uav1/telemetry", "Topic to publish on")
	track := flag.Int64("track", 42, "Track number")
	repeat := flag.Int("repeat", 1, "Number of reports to publish")
	interval := flag.Duration("interval", time.Second, "Interval between reports")

	lat := flag.Float64("lat", 45.1234567, "Latitude in degrees")
	lon := flag.Float64("lon", -122.9876543, "Longitude in degrees")
	alt := flag.Float64("alt", 1500, "Altitude in metres")
	speed := flag.Float64("speed", 220, "Ground speed in m/s")
	course := flag.Float64("course", 271.5, "Course in degrees")
	climb := flag.Float64("climb", 0, "Climb rate in m/s")
	identity := flag.Int64("identity", int64(model.IdentityFriend), "Identity code (0=pending..5=hostile)")
	quality := flag.Int64("quality", 4, "Track quality bucket")
	src := flag.Int64("src", 512, "Source/policy tag")

	tle1 := flag.String("tle1", "", "TLE line 1; with -tle2, publish the satellite subpoint instead of a fixed position")
	tle2 := flag.String("tle2", "", "TLE line 2")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	conn, err := net.Dial("udp", *target)
	if err != nil {
		log.Error(ctx, "failed to dial ingest socket", logging.Err(err))
		os.Exit(1)
	}
	defer conn.Close()

	var sat *satellite.Satellite
	if *tle1 != "" && *tle2 != "" {
		s := satellite.TLEToSat(*tle1, *tle2, satellite.GravityWGS72)
		sat = &s
	}

	for i := 0; i < *repeat; i++ {
		now := time.Now().UTC()
		var rep model.TrackReport
		if sat != nil {
			rep = subpointReport(*sat, *track, now)
		} else {
			rep = model.FromGeo(*track, now.UnixMilli(), *lat, *lon, *alt, *speed, *course, *climb)
		}
		rep.Topic = *topic
		rep.IdentityCode = *identity
		rep.Quality = *quality
		rep.Source = *src

		data, err := json.Marshal(rep)
		if err != nil {
			log.Error(ctx, "failed to marshal report", logging.Err(err))
			os.Exit(1)
		}
		if _, err := conn.Write(data); err != nil {
			log.Error(ctx, "failed to publish report", logging.Err(err))
			os.Exit(1)
		}
		log.Info(ctx, "published report",
			logging.String("topic", *topic),
			logging.Int("seq", i+1),
			logging.Int("total", *repeat),
		)
		if i+1 < *repeat {
			time.Sleep(*interval)
		}
	}
}

// subpointReport propagates the satellite to t and reports its subpoint as
// a track. Ground speed is derived from the inertial velocity and capped at
// the schema's speed ceiling; altitude likewise exceeds any air-track range
// and is capped so the bridge does not clamp every report.
func subpointReport(sat satellite.Satellite, track int64, t time.Time) model.TrackReport {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	posECI, velECI := satellite.Propagate(sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	_, _, ll := satellite.ECIToLLA(posECI, gmst)

	const rad2deg = 180.0 / math.Pi
	latDeg := ll.Latitude * rad2deg
	lonDeg := math.Mod(ll.Longitude*rad2deg+540, 360) - 180

	// km/s -> m/s, capped at the 16-bit cm/s ceiling.
	speedMS := math.Sqrt(velECI.X*velECI.X+velECI.Y*velECI.Y+velECI.Z*velECI.Z) * 1000
	if speedMS > 655 {
		speedMS = 655
	}

	// Course from the horizontal inertial velocity; crude but good enough
	// for a lab track.
	courseDeg := math.Atan2(velECI.Y, velECI.X) * rad2deg

	return model.FromGeo(track, t.UnixMilli(), latDeg, lonDeg, 12000, speedMS, courseDeg, 0)
}
