package estimate

import (
	"math"
	"testing"
	"time"
)

func managerPings(freq uint32) []Ping {
	base := time.Date(2024, 5, 12, 9, 30, 0, 0, time.UTC)
	offsets := [][2]float64{
		{-0.0012, -0.0008}, {-0.0006, 0.0014}, {0.0003, -0.0015},
		{0.0010, 0.0009}, {0.0016, -0.0004},
	}
	const txLat, txLon = 32.8847, -117.2350
	pings := make([]Ping, 0, len(offsets))
	for i, off := range offsets {
		lat := txLat + off[0]
		lon := txLon + off[1]
		d := math.Hypot(off[0]*111320, off[1]*93500)
		if d < 1 {
			d = 1
		}
		pings = append(pings, Ping{
			Lat:   lat,
			Lon:   lon,
			Alt:   30,
			Power: 40 - 20.5*math.Log10(d),
			Freq:  freq,
			Time:  base.Add(time.Duration(i) * time.Second),
		})
	}
	return pings
}

func TestManagerZonePinning(t *testing.T) {
	m := NewDataManager()
	if zone, _ := m.Zone(); zone != 0 {
		t.Fatalf("zone pinned before first ping: %d", zone)
	}

	for _, p := range managerPings(173_500_000) {
		if _, _, err := m.AddPing(p); err != nil {
			t.Fatalf("AddPing: %v", err)
		}
	}
	zone, letter := m.Zone()
	if zone != 11 || letter != "S" {
		t.Fatalf("zone = %d%s, want 11S", zone, letter)
	}

	// A later ping from another zone still projects into the pinned one.
	far := Ping{Lat: 32.9, Lon: -111.0, Alt: 30, Power: -80, Freq: 173_500_000, Time: time.Now()}
	if _, _, err := m.AddPing(far); err != nil {
		t.Fatalf("AddPing far: %v", err)
	}
	if zone, _ := m.Zone(); zone != 11 {
		t.Fatalf("zone moved to %d", zone)
	}
}

func TestManagerPerFrequencyEstimators(t *testing.T) {
	m := NewDataManager()
	for _, p := range managerPings(173_500_000) {
		if _, _, err := m.AddPing(p); err != nil {
			t.Fatalf("AddPing: %v", err)
		}
	}
	for _, p := range managerPings(173_900_000)[:2] {
		if _, _, err := m.AddPing(p); err != nil {
			t.Fatalf("AddPing: %v", err)
		}
	}

	freqs := m.Frequencies()
	if len(freqs) != 2 || freqs[0] != 173_500_000 || freqs[1] != 173_900_000 {
		t.Fatalf("Frequencies = %v", freqs)
	}
	if m.NumPings(173_500_000) != 5 || m.NumPings(173_900_000) != 2 {
		t.Fatalf("ping counts: %d, %d", m.NumPings(173_500_000), m.NumPings(173_900_000))
	}

	if _, ok := m.Estimate(173_500_000); !ok {
		t.Fatal("no estimate for the five-ping frequency")
	}
	if _, ok := m.Estimate(173_900_000); ok {
		t.Fatal("estimate appeared with only two pings")
	}
}

func TestManagerVehiclePath(t *testing.T) {
	m := NewDataManager()
	base := time.Now()
	for i := 0; i < 3; i++ {
		m.AddVehiclePosition(VehiclePosition{Lat: 32.88, Lon: -117.23, Alt: 30, Heading: float64(i), Time: base})
	}
	path := m.VehiclePath()
	if len(path) != 3 {
		t.Fatalf("path length = %d, want 3", len(path))
	}
	if path[2].Heading != 2 {
		t.Fatalf("path order broken: %+v", path)
	}
}
