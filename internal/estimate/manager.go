package estimate

import (
	"fmt"
	"sort"
	"time"
)

// VehiclePosition is one point of the vehicle's flight track.
type VehiclePosition struct {
	Lat     float64
	Lon     float64
	Alt     float64
	Heading float64
	Time    time.Time
}

// DataManager routes pings to per-frequency estimators and keeps the
// vehicle track. The UTM zone of the very first ping is pinned for the
// lifetime of the manager; every later ping is projected into that zone
// regardless of where it truly falls. Like the estimators it owns, it is
// driven from the packet receiver goroutine only.
type DataManager struct {
	estimators map[uint32]*LocationEstimator
	pings      map[uint32][]Ping

	zone       int
	zoneLetter string

	vehiclePath []VehiclePosition
}

func NewDataManager() *DataManager {
	return &DataManager{
		estimators: make(map[uint32]*LocationEstimator),
		pings:      make(map[uint32][]Ping),
	}
}

// AddPing projects the ping, feeds the estimator for its frequency
// (creating it on first sight), and re-solves. ok is false while the
// frequency has too few samples for an estimate.
func (m *DataManager) AddPing(p Ping) (Estimate, bool, error) {
	if m.zone == 0 {
		zone, letter, err := zoneFor(p.Lat, p.Lon)
		if err != nil {
			return Estimate{}, false, fmt.Errorf("pin utm zone: %w", err)
		}
		m.zone = zone
		m.zoneLetter = letter
	}

	est, ok := m.estimators[p.Freq]
	if !ok {
		est = NewLocationEstimator()
		m.estimators[p.Freq] = est
	}
	est.AddSample(p.toSample(m.zone))
	m.pings[p.Freq] = append(m.pings[p.Freq], p)

	e, solved := est.Solve()
	return e, solved, nil
}

// AddVehiclePosition appends one track point.
func (m *DataManager) AddVehiclePosition(v VehiclePosition) {
	m.vehiclePath = append(m.vehiclePath, v)
}

// VehiclePath returns the track in arrival order.
func (m *DataManager) VehiclePath() []VehiclePosition {
	return m.vehiclePath
}

// Frequencies returns every frequency a ping has been received on, sorted.
func (m *DataManager) Frequencies() []uint32 {
	out := make([]uint32, 0, len(m.estimators))
	for f := range m.estimators {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Estimate returns the current solution for a frequency.
func (m *DataManager) Estimate(freq uint32) (Estimate, bool) {
	est, ok := m.estimators[freq]
	if !ok {
		return Estimate{}, false
	}
	return est.Estimate()
}

// Pings returns the received pings for a frequency in arrival order.
func (m *DataManager) Pings(freq uint32) []Ping {
	return m.pings[freq]
}

// NumPings returns the ping count for a frequency.
func (m *DataManager) NumPings(freq uint32) int {
	return len(m.pings[freq])
}

// Zone returns the pinned UTM zone and band letter, zero before the first
// ping.
func (m *DataManager) Zone() (int, string) {
	return m.zone, m.zoneLetter
}

// Precision computes the probability surface for a frequency using the
// configured grid.
func (m *DataManager) Precision(freq uint32, gridSize int, cellSize float64) (*Heatmap, error) {
	est, ok := m.estimators[freq]
	if !ok {
		return nil, fmt.Errorf("estimate: no pings on frequency %d", freq)
	}
	return est.Precision(gridSize, cellSize)
}
