// Package model keeps the GCS-side mirror of the payload state and turns
// wire packets into bus events and persisted mission data.
package model

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"rctgcs/internal/bus"
	"rctgcs/internal/comms"
	"rctgcs/internal/estimate"
	"rctgcs/internal/events"
	"rctgcs/internal/persistence"
)

// CacheState tracks how fresh a locally mirrored piece of payload state is.
type CacheState int

const (
	CacheInvalid CacheState = iota
	CacheDirty
	CacheGood
)

func (s CacheState) String() string {
	switch s {
	case CacheInvalid:
		return "invalid"
	case CacheDirty:
		return "dirty"
	case CacheGood:
		return "good"
	default:
		return fmt.Sprintf("CacheState(%d)", int(s))
	}
}

const (
	// DefaultCommandTimeout bounds one synchronous command round trip.
	DefaultCommandTimeout = 10 * time.Second

	upgradeChunkLen = 1000

	persistTimeout = 5 * time.Second
)

// Model mirrors the payload: cached heartbeat states, frequency list,
// option sets, plus the geolocation data manager. All exported methods are
// safe for concurrent use.
type Model struct {
	logger  *slog.Logger
	bus     bus.MessageBus
	session *comms.GCSSession

	commandTimeout time.Duration

	mu            sync.Mutex
	heartbeat     events.HeartbeatEvent
	heartbeatSeen bool
	frequencies   []uint32
	freqState     CacheState
	freqWaiters   []chan struct{}
	options       comms.Options
	optionState   map[comms.OptionScope]CacheState
	optWaiters    []chan struct{}
	lastException *events.ExceptionEvent
	upgradeStatus *events.UpgradeStatusEvent
	cones         []events.ConeEvent

	dataMu sync.Mutex
	data   *estimate.DataManager

	pings  *persistence.PingRepo
	tracks *persistence.TrackRepo
}

func New(logger *slog.Logger, b bus.MessageBus, session *comms.GCSSession, data *estimate.DataManager, commandTimeout time.Duration) *Model {
	if commandTimeout <= 0 {
		commandTimeout = DefaultCommandTimeout
	}
	m := &Model{
		logger:         logger,
		bus:            b,
		session:        session,
		data:           data,
		commandTimeout: commandTimeout,
		optionState: map[comms.OptionScope]CacheState{
			comms.ScopeBase:        CacheInvalid,
			comms.ScopeExpert:      CacheInvalid,
			comms.ScopeEngineering: CacheInvalid,
		},
	}
	m.registerCallbacks()
	return m
}

// AttachStorage enables persistence of pings and vehicle track points.
// Without it the model runs in memory only.
func (m *Model) AttachStorage(pings *persistence.PingRepo, tracks *persistence.TrackRepo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pings = pings
	m.tracks = tracks
}

// Start brings the session up. It blocks until the first payload heartbeat
// or the timeout, publishing connection status transitions on the bus.
func (m *Model) Start(heartbeatTimeout time.Duration) error {
	m.publishConnStatus(events.ConnectionStateConnecting, nil)
	if err := m.session.Start(heartbeatTimeout, nil); err != nil {
		m.publishConnStatus(events.ConnectionStateDisconnected, err)
		return err
	}
	m.publishConnStatus(events.ConnectionStateConnected, nil)
	return nil
}

// Stop tears the session down.
func (m *Model) Stop() {
	m.session.Stop()
	m.publishConnStatus(events.ConnectionStateDisconnected, nil)
}

func (m *Model) publishConnStatus(state events.ConnectionState, err error) {
	status := events.ConnStatus{
		State:         state,
		TransportName: m.session.TransportName(),
		Timestamp:     time.Now(),
	}
	if err != nil {
		status.Err = err.Error()
	}
	m.bus.Publish(events.TopicConnStatus, status)
}

func (m *Model) registerCallbacks() {
	m.session.RegisterCallback(comms.EventHeartbeat, m.onHeartbeat)
	m.session.RegisterCallback(comms.EventNoHeartbeat, m.onNoHeartbeat)
	m.session.RegisterCallback(comms.EventException, m.onException)
	m.session.RegisterCallback(comms.EventFrequencies, m.onFrequencies)
	m.session.RegisterCallback(comms.EventOptions, m.onOptions)
	m.session.RegisterCallback(comms.EventUpgradeStatus, m.onUpgradeStatus)
	m.session.RegisterCallback(comms.EventPing, m.onPing)
	m.session.RegisterCallback(comms.EventVehicle, m.onVehicle)
	m.session.RegisterCallback(comms.EventCone, m.onCone)
}

func (m *Model) onHeartbeat(pkt comms.Packet, _ net.Addr) {
	hb, ok := pkt.(*comms.HeartbeatPacket)
	if !ok {
		return
	}
	ev := events.HeartbeatEvent{
		SystemState:  events.SystemState(hb.SystemState),
		SDRState:     events.SDRState(hb.SDRState),
		SensorState:  events.SensorState(hb.SensorState),
		StorageState: events.StorageState(hb.StorageState),
		SwitchState:  hb.SwitchState,
		Timestamp:    hb.Timestamp,
	}
	m.mu.Lock()
	m.heartbeat = ev
	m.heartbeatSeen = true
	m.mu.Unlock()
	m.bus.Publish(events.TopicHeartbeat, ev)
}

func (m *Model) onNoHeartbeat(_ comms.Packet, _ net.Addr) {
	m.logger.Warn("payload heartbeat lost")
	m.bus.Publish(events.TopicNoHeartbeat, events.ConnStatus{
		State:         events.ConnectionStateConnected,
		TransportName: m.session.TransportName(),
		Err:           "heartbeat watchdog expired",
		Timestamp:     time.Now(),
	})
}

func (m *Model) onException(pkt comms.Packet, _ net.Addr) {
	exc, ok := pkt.(*comms.ExceptionPacket)
	if !ok {
		return
	}
	ev := events.ExceptionEvent{Exception: exc.Exception, Traceback: exc.Traceback}
	m.mu.Lock()
	m.lastException = &ev
	m.mu.Unlock()
	m.logger.Error("payload exception", "exception", exc.Exception)
	m.bus.Publish(events.TopicException, ev)
}

func (m *Model) onFrequencies(pkt comms.Packet, _ net.Addr) {
	fp, ok := pkt.(*comms.FrequenciesPacket)
	if !ok {
		return
	}
	freqs := append([]uint32(nil), fp.Frequencies...)
	sort.Slice(freqs, func(i, j int) bool { return freqs[i] < freqs[j] })

	m.mu.Lock()
	m.frequencies = freqs
	m.freqState = CacheGood
	waiters := m.freqWaiters
	m.freqWaiters = nil
	m.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
	m.bus.Publish(events.TopicFrequencies, events.FrequenciesEvent{Frequencies: freqs})
}

func (m *Model) onOptions(pkt comms.Packet, _ net.Addr) {
	op, ok := pkt.(*comms.OptionsPacket)
	if !ok {
		return
	}
	m.mu.Lock()
	m.options = op.Options
	for scope := comms.ScopeBase; scope <= op.Options.Scope; scope++ {
		m.optionState[scope] = CacheGood
	}
	waiters := m.optWaiters
	m.optWaiters = nil
	m.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
	m.bus.Publish(events.TopicOptions, op.Options)
}

func (m *Model) onUpgradeStatus(pkt comms.Packet, _ net.Addr) {
	up, ok := pkt.(*comms.UpgradeStatusPacket)
	if !ok {
		return
	}
	ev := events.UpgradeStatusEvent{State: up.State, Message: up.Message}
	m.mu.Lock()
	m.upgradeStatus = &ev
	m.mu.Unlock()
	m.bus.Publish(events.TopicUpgradeStatus, ev)
}

func (m *Model) onPing(pkt comms.Packet, _ net.Addr) {
	pp, ok := pkt.(*comms.PingPacket)
	if !ok {
		return
	}
	ping := estimate.PingFromPacket(pp)

	m.dataMu.Lock()
	est, solved, err := m.data.AddPing(ping)
	m.dataMu.Unlock()
	if err != nil {
		m.logger.Error("ping rejected", "error", err, "freq", ping.Freq)
		return
	}

	m.persistPing(ping)
	m.bus.Publish(events.TopicNewPing, events.PingEvent{Ping: ping})
	if solved {
		m.bus.Publish(events.TopicNewEstimate, events.EstimateEvent{Freq: ping.Freq, Estimate: est})
	}
}

func (m *Model) onVehicle(pkt comms.Packet, _ net.Addr) {
	vp, ok := pkt.(*comms.VehiclePacket)
	if !ok {
		return
	}
	pos := estimate.VehiclePosition{
		Lat:     vp.Lat,
		Lon:     vp.Lon,
		Alt:     vp.Alt,
		Heading: vp.Heading,
		Time:    vp.Timestamp,
	}
	m.dataMu.Lock()
	m.data.AddVehiclePosition(pos)
	m.dataMu.Unlock()

	m.persistTrackPoint(pos)
	m.bus.Publish(events.TopicVehicle, events.VehicleEvent{Position: pos})
}

func (m *Model) onCone(pkt comms.Packet, _ net.Addr) {
	cp, ok := pkt.(*comms.ConePacket)
	if !ok {
		return
	}
	ev := events.ConeEvent{
		Lat:     cp.Lat,
		Lon:     cp.Lon,
		Alt:     cp.Alt,
		Power:   float64(cp.Power),
		Heading: cp.Heading,
		Time:    cp.Timestamp,
	}
	m.mu.Lock()
	m.cones = append(m.cones, ev)
	m.mu.Unlock()
	m.bus.Publish(events.TopicCone, ev)
}

func (m *Model) persistPing(p estimate.Ping) {
	m.mu.Lock()
	repo := m.pings
	m.mu.Unlock()
	if repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := repo.Insert(ctx, p); err != nil {
		m.logger.Error("persist ping failed", "error", err)
	}
}

func (m *Model) persistTrackPoint(p estimate.VehiclePosition) {
	m.mu.Lock()
	repo := m.tracks
	m.mu.Unlock()
	if repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := repo.Append(ctx, p); err != nil {
		m.logger.Error("persist track point failed", "error", err)
	}
}
