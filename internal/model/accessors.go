package model

import (
	"rctgcs/internal/comms"
	"rctgcs/internal/estimate"
	"rctgcs/internal/events"
)

// Heartbeat returns the last cached heartbeat. ok is false before the
// first heartbeat arrives.
func (m *Model) Heartbeat() (events.HeartbeatEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heartbeat, m.heartbeatSeen
}

// Frequencies returns the cached target frequency list, sorted ascending.
func (m *Model) Frequencies() []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint32(nil), m.frequencies...)
}

// FrequencyCacheState reports whether the cached list is current.
func (m *Model) FrequencyCacheState() CacheState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.freqState
}

// Options returns the cached option set and the cache state at the given
// scope.
func (m *Model) Options(scope comms.OptionScope) (comms.Options, CacheState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.options, m.optionState[scope]
}

// LastException returns the most recent remote error report, if any.
func (m *Model) LastException() (events.ExceptionEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastException == nil {
		return events.ExceptionEvent{}, false
	}
	return *m.lastException, true
}

// UpgradeStatus returns the most recent upgrade progress report, if any.
func (m *Model) UpgradeStatus() (events.UpgradeStatusEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upgradeStatus == nil {
		return events.UpgradeStatusEvent{}, false
	}
	return *m.upgradeStatus, true
}

// Cones returns all directional observations in arrival order.
func (m *Model) Cones() []events.ConeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.ConeEvent(nil), m.cones...)
}

// Estimate returns the current transmitter estimate for a frequency.
func (m *Model) Estimate(freqHz uint32) (estimate.Estimate, bool) {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()
	return m.data.Estimate(freqHz)
}

// Pings returns the received pings for a frequency in arrival order.
func (m *Model) Pings(freqHz uint32) []estimate.Ping {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()
	return m.data.Pings(freqHz)
}

// VehiclePath returns the vehicle track in arrival order.
func (m *Model) VehiclePath() []estimate.VehiclePosition {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()
	return m.data.VehiclePath()
}

// SeenFrequencies returns the frequencies pings have arrived on, sorted.
func (m *Model) SeenFrequencies() []uint32 {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()
	return m.data.Frequencies()
}

// Precision computes the precision heatmap for a frequency's estimate.
func (m *Model) Precision(freqHz uint32, gridSize int, cellSize float64) (*estimate.Heatmap, error) {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()
	return m.data.Precision(freqHz, gridSize, cellSize)
}

// Zone returns the pinned UTM zone, zero before the first ping.
func (m *Model) Zone() (int, string) {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()
	return m.data.Zone()
}
