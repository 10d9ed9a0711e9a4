// Package estimate turns the stream of received collar pings into a
// transmitter position estimate and a confidence surface.
package estimate

import (
	"fmt"
	"math"
	"time"

	utm "github.com/im7mortal/UTM"

	"rctgcs/internal/comms"
)

// Ping is one received collar transmission in geodetic coordinates.
type Ping struct {
	Lat   float64
	Lon   float64
	Power float64
	Freq  uint32
	Alt   float64
	Time  time.Time
}

// PingFromPacket converts a decoded wire packet.
func PingFromPacket(p *comms.PingPacket) Ping {
	return Ping{
		Lat:   p.Lat,
		Lon:   p.Lon,
		Power: float64(p.TxPower),
		Freq:  p.TxFreq,
		Alt:   p.Alt,
		Time:  p.Timestamp,
	}
}

// ToPacket converts back to the wire representation.
func (p Ping) ToPacket() *comms.PingPacket {
	return &comms.PingPacket{
		Timestamp: p.Time,
		Lat:       p.Lat,
		Lon:       p.Lon,
		Alt:       p.Alt,
		TxPower:   float32(p.Power),
		TxFreq:    p.Freq,
	}
}

// Sample is a ping projected onto the estimator's planar UTM frame.
type Sample struct {
	Easting  float64
	Northing float64
	Alt      float64
	Power    float64
}

// zoneFor determines the natural UTM zone and band letter for a coordinate.
func zoneFor(lat, lon float64) (int, string, error) {
	_, _, zone, letter, err := utm.FromLatLon(lat, lon, lat >= 0)
	if err != nil {
		return 0, "", fmt.Errorf("utm zone for (%f, %f): %w", lat, lon, err)
	}
	return zone, letter, nil
}

// WGS84 constants matching the utm package, used to project into a forced
// zone: every ping is mapped into the zone captured from the first ping
// even when it geometrically belongs to a neighboring zone. That keeps all
// samples in one planar frame; the distortion near zone edges is accepted.
const (
	utmK0 = 0.9996
	utmE  = 0.00669438
	utmR  = 6378137.0
)

var (
	utmEP2 = utmE / (1 - utmE)
	utmE2  = utmE * utmE
	utmE3  = utmE2 * utmE

	utmM1 = 1 - utmE/4 - 3*utmE2/64 - 5*utmE3/256
	utmM2 = 3*utmE/8 + 3*utmE2/32 + 45*utmE3/1024
	utmM3 = 15*utmE2/256 + 45*utmE3/1024
	utmM4 = 35 * utmE3 / 3072
)

// projectToZone is the forward transverse Mercator projection into a fixed
// zone (the utm package cannot force one).
func projectToZone(lat, lon float64, zone int) (easting, northing float64) {
	latRad := lat * math.Pi / 180
	lonRad := lon * math.Pi / 180

	latSin := math.Sin(latRad)
	latCos := math.Cos(latRad)
	latTan := latSin / latCos
	latTan2 := latTan * latTan
	latTan4 := latTan2 * latTan2

	centralLon := float64((zone-1)*6-180+3) * math.Pi / 180

	n := utmR / math.Sqrt(1-utmE*latSin*latSin)
	c := utmEP2 * latCos * latCos

	a := latCos * modAngle(lonRad-centralLon)
	a2 := a * a
	a3 := a2 * a
	a4 := a3 * a
	a5 := a4 * a
	a6 := a5 * a

	m := utmR * (utmM1*latRad -
		utmM2*math.Sin(2*latRad) +
		utmM3*math.Sin(4*latRad) -
		utmM4*math.Sin(6*latRad))

	easting = utmK0*n*(a+
		a3/6*(1-latTan2+c)+
		a5/120*(5-18*latTan2+latTan4+72*c-58*utmEP2)) + 500000

	northing = utmK0 * (m + n*latTan*(a2/2+
		a4/24*(5-latTan2+9*c+4*c*c)+
		a6/720*(61-58*latTan2+latTan4+600*c-330*utmEP2)))
	if lat < 0 {
		northing += 10000000
	}
	return easting, northing
}

func modAngle(rad float64) float64 {
	return math.Mod(rad+math.Pi, 2*math.Pi) - math.Pi
}

// toSample projects the ping into the given zone's planar frame.
func (p Ping) toSample(zone int) Sample {
	easting, northing := projectToZone(p.Lat, p.Lon, zone)
	return Sample{
		Easting:  easting,
		Northing: northing,
		Alt:      p.Alt,
		Power:    p.Power,
	}
}
