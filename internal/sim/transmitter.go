package sim

import (
	"math"
	"time"

	"rctgcs/internal/estimate"
)

// Transmitter models a stationary radio collar with log-distance path
// loss. PowerDbm is the received power at one meter.
type Transmitter struct {
	Lat      float64
	Lon      float64
	Alt      float64
	PowerDbm float64
	Exponent float64
	FreqHz   uint32
}

// PingAt returns the ping a receiver at the given position would observe
// at time t.
func (tx Transmitter) PingAt(lat, lon, alt float64, t time.Time) estimate.Ping {
	n := tx.Exponent
	if n <= 0 {
		n = 2.0
	}
	d := groundDistance(tx.Lat, tx.Lon, lat, lon)
	dz := alt - tx.Alt
	r := math.Sqrt(d*d + dz*dz)
	if r < 0.01 {
		r = 0.01
	}
	return estimate.Ping{
		Lat:   lat,
		Lon:   lon,
		Alt:   alt,
		Power: tx.PowerDbm - 10*n*math.Log10(r),
		Freq:  tx.FreqHz,
		Time:  t,
	}
}

const earthRadiusM = 6371000.0

// groundDistance is the haversine great-circle distance in meters.
func groundDistance(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(a))
}

// Waypoint is one corner of a scripted survey flight.
type Waypoint struct {
	Lat float64
	Lon float64
	Alt float64
}

// Flight advances a simulated vehicle along waypoints at a fixed ground
// speed, emitting a position for every step.
type Flight struct {
	Waypoints []Waypoint
	SpeedMps  float64

	leg      int
	progress float64
}

// Step advances by dt and returns the new vehicle position. Once the last
// waypoint is reached the vehicle holds there.
func (f *Flight) Step(dt time.Duration, at time.Time) estimate.VehiclePosition {
	if len(f.Waypoints) == 0 {
		return estimate.VehiclePosition{Time: at}
	}
	if f.leg >= len(f.Waypoints)-1 {
		last := f.Waypoints[len(f.Waypoints)-1]
		return estimate.VehiclePosition{Lat: last.Lat, Lon: last.Lon, Alt: last.Alt, Time: at}
	}

	from := f.Waypoints[f.leg]
	to := f.Waypoints[f.leg+1]
	legLen := groundDistance(from.Lat, from.Lon, to.Lat, to.Lon)
	if legLen <= 0 {
		f.leg++
		return f.Step(0, at)
	}

	f.progress += f.SpeedMps * dt.Seconds()
	for f.progress >= legLen {
		f.progress -= legLen
		f.leg++
		if f.leg >= len(f.Waypoints)-1 {
			last := f.Waypoints[len(f.Waypoints)-1]
			return estimate.VehiclePosition{Lat: last.Lat, Lon: last.Lon, Alt: last.Alt, Time: at}
		}
		from = f.Waypoints[f.leg]
		to = f.Waypoints[f.leg+1]
		legLen = groundDistance(from.Lat, from.Lon, to.Lat, to.Lon)
	}

	frac := f.progress / legLen
	pos := estimate.VehiclePosition{
		Lat:     from.Lat + (to.Lat-from.Lat)*frac,
		Lon:     from.Lon + (to.Lon-from.Lon)*frac,
		Alt:     from.Alt + (to.Alt-from.Alt)*frac,
		Heading: headingDeg(from.Lat, from.Lon, to.Lat, to.Lon),
		Time:    at,
	}
	return pos
}

func headingDeg(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLon := (lon2 - lon1) * rad
	y := math.Sin(dLon) * math.Cos(lat2*rad)
	x := math.Cos(lat1*rad)*math.Sin(lat2*rad) - math.Sin(lat1*rad)*math.Cos(lat2*rad)*math.Cos(dLon)
	deg := math.Atan2(y, x) / rad
	if deg < 0 {
		deg += 360
	}
	return deg
}
