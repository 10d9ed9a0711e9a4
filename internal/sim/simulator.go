// Package sim is a software stand-in for the airborne payload: it answers
// ground-station commands over any transport and emits heartbeats, pings,
// and vehicle positions. Used by the payloadsim binary and in tests.
package sim

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"rctgcs/internal/comms"
	"rctgcs/internal/estimate"
	"rctgcs/internal/events"
	"rctgcs/internal/transport"
)

// Config seeds the simulated payload state.
type Config struct {
	HeartbeatPeriod time.Duration
	Frequencies     []uint32
	Options         comms.Options
}

// Simulator mimics the payload protocol endpoint. Commands mutate its
// internal state and are acked; Deny forces NACKs per command for fault
// injection.
type Simulator struct {
	logger  *slog.Logger
	session *comms.PayloadSession

	mu             sync.Mutex
	frequencies    []uint32
	options        comms.Options
	systemState    events.SystemState
	sdrState       events.SDRState
	sensorState    events.SensorState
	storageState   events.StorageState
	switchState    uint8
	denied         map[comms.CommandID]bool
	upgradeGot     int
	upgradeExpects int
}

func New(logger *slog.Logger, tx transport.Transport, cfg Config) *Simulator {
	s := &Simulator{
		logger:       logger.With("component", "sim"),
		frequencies:  append([]uint32(nil), cfg.Frequencies...),
		options:      cfg.Options,
		systemState:  events.SystemWaitStart,
		sdrState:     events.SDRReady,
		sensorState:  events.SensorReady,
		storageState: events.StorageReady,
		denied:       make(map[comms.CommandID]bool),
	}
	s.session = comms.NewPayloadSession(logger, tx, s.heartbeat, cfg.HeartbeatPeriod)
	s.session.RegisterCallback(comms.EventGetFreq, s.onGetFreq)
	s.session.RegisterCallback(comms.EventSetFreq, s.onSetFreq)
	s.session.RegisterCallback(comms.EventGetOpt, s.onGetOpt)
	s.session.RegisterCallback(comms.EventSetOpt, s.onSetOpt)
	s.session.RegisterCallback(comms.EventStart, s.onStart)
	s.session.RegisterCallback(comms.EventStop, s.onStop)
	s.session.RegisterCallback(comms.EventUpgrade, s.onUpgrade)
	return s
}

func (s *Simulator) Start() error { return s.session.Start() }

func (s *Simulator) Stop() { s.session.Stop() }

// Deny makes the simulator NACK every future instance of the command.
func (s *Simulator) Deny(id comms.CommandID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denied[id] = true
}

// Allow reverts Deny.
func (s *Simulator) Allow(id comms.CommandID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.denied, id)
}

// SystemState returns the simulated mission state.
func (s *Simulator) SystemState() events.SystemState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.systemState
}

// Frequencies returns the simulated target frequency list.
func (s *Simulator) Frequencies() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint32(nil), s.frequencies...)
}

// Options returns the simulated option set.
func (s *Simulator) Options() comms.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options
}

// SendPing transmits one collar ping to the ground station.
func (s *Simulator) SendPing(p estimate.Ping) error {
	return s.session.SendPacket(p.ToPacket())
}

// SendVehicle transmits one vehicle position to the ground station.
func (s *Simulator) SendVehicle(p estimate.VehiclePosition) error {
	return s.session.SendPacket(&comms.VehiclePacket{
		Timestamp: p.Time,
		Lat:       p.Lat,
		Lon:       p.Lon,
		Alt:       p.Alt,
		Heading:   p.Heading,
	})
}

// SendCone transmits one directional signal observation to the ground station.
func (s *Simulator) SendCone(c comms.ConePacket) error {
	return s.session.SendPacket(&c)
}

// ReportException transmits a remote error report.
func (s *Simulator) ReportException(exception, traceback string) error {
	return s.session.SendPacket(&comms.ExceptionPacket{Exception: exception, Traceback: traceback})
}

func (s *Simulator) heartbeat() comms.HeartbeatPacket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return comms.HeartbeatPacket{
		SystemState:  uint8(s.systemState),
		SDRState:     uint8(s.sdrState),
		SensorState:  uint8(s.sensorState),
		StorageState: uint8(s.storageState),
		SwitchState:  s.switchState,
		Timestamp:    time.Now(),
	}
}

func (s *Simulator) ack(id comms.CommandID, ok bool) {
	err := s.session.SendPacket(&comms.AckPacket{CommandID: id, Ack: ok, Timestamp: time.Now()})
	if err != nil {
		s.logger.Warn("ack send failed", "command", id, "error", err)
	}
}

// allowed consumes the deny table under lock.
func (s *Simulator) allowed(id comms.CommandID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.denied[id]
}

func (s *Simulator) onGetFreq(_ comms.Packet, _ net.Addr) {
	if !s.allowed(comms.CommandGetFreq) {
		s.ack(comms.CommandGetFreq, false)
		return
	}
	s.reportFrequencies()
	s.ack(comms.CommandGetFreq, true)
}

func (s *Simulator) onSetFreq(pkt comms.Packet, _ net.Addr) {
	sf, ok := pkt.(*comms.SetFreqPacket)
	if !ok || !s.allowed(comms.CommandSetFreq) {
		s.ack(comms.CommandSetFreq, false)
		return
	}
	s.mu.Lock()
	s.frequencies = append([]uint32(nil), sf.Frequencies...)
	s.mu.Unlock()
	s.reportFrequencies()
	s.ack(comms.CommandSetFreq, true)
}

func (s *Simulator) onGetOpt(pkt comms.Packet, _ net.Addr) {
	gp, ok := pkt.(*comms.GetOptPacket)
	if !ok || !s.allowed(comms.CommandGetOpt) {
		s.ack(comms.CommandGetOpt, false)
		return
	}
	s.mu.Lock()
	opts := s.options
	s.mu.Unlock()
	if opts.Scope > gp.Scope {
		opts.Scope = gp.Scope
	}
	if err := s.session.SendPacket(&comms.OptionsPacket{Options: opts}); err != nil {
		s.logger.Warn("option report failed", "error", err)
	}
	s.ack(comms.CommandGetOpt, true)
}

func (s *Simulator) onSetOpt(pkt comms.Packet, _ net.Addr) {
	sp, ok := pkt.(*comms.SetOptPacket)
	if !ok || !s.allowed(comms.CommandSetOpt) {
		s.ack(comms.CommandSetOpt, false)
		return
	}
	s.mu.Lock()
	s.options = sp.Options
	opts := s.options
	s.mu.Unlock()
	if err := s.session.SendPacket(&comms.OptionsPacket{Options: opts}); err != nil {
		s.logger.Warn("option report failed", "error", err)
	}
	s.ack(comms.CommandSetOpt, true)
}

func (s *Simulator) onStart(_ comms.Packet, _ net.Addr) {
	if !s.allowed(comms.CommandStart) {
		s.ack(comms.CommandStart, false)
		return
	}
	s.mu.Lock()
	s.systemState = events.SystemStart
	s.mu.Unlock()
	s.ack(comms.CommandStart, true)
}

func (s *Simulator) onStop(_ comms.Packet, _ net.Addr) {
	if !s.allowed(comms.CommandStop) {
		s.ack(comms.CommandStop, false)
		return
	}
	s.mu.Lock()
	s.systemState = events.SystemWaitStart
	s.mu.Unlock()
	s.ack(comms.CommandStop, true)
}

func (s *Simulator) onUpgrade(pkt comms.Packet, _ net.Addr) {
	up, ok := pkt.(*comms.UpgradePacket)
	if !ok || !s.allowed(comms.CommandUpgrade) {
		s.ack(comms.CommandUpgrade, false)
		return
	}
	s.mu.Lock()
	if up.SeqNum == 1 {
		s.upgradeGot = 0
		s.upgradeExpects = int(up.NumPackets)
	}
	if int(up.SeqNum) != s.upgradeGot+1 {
		s.upgradeGot = 0
		s.upgradeExpects = 0
		s.mu.Unlock()
		s.ack(comms.CommandUpgrade, false)
		s.sendUpgradeStatus(comms.UpgradeFailed, fmt.Sprintf("unexpected chunk %d", up.SeqNum))
		return
	}
	s.upgradeGot++
	got, expects := s.upgradeGot, s.upgradeExpects
	s.mu.Unlock()

	s.ack(comms.CommandUpgrade, true)
	switch {
	case got >= expects:
		s.sendUpgradeStatus(comms.UpgradeComplete, "upgrade received")
	case got == 1:
		s.sendUpgradeStatus(comms.UpgradeReady, "upgrade started")
	default:
		s.sendUpgradeStatus(comms.UpgradeProgress, fmt.Sprintf("chunk %d/%d", got, expects))
	}
}

func (s *Simulator) sendUpgradeStatus(state uint8, msg string) {
	err := s.session.SendPacket(&comms.UpgradeStatusPacket{State: state, Message: msg})
	if err != nil {
		s.logger.Warn("upgrade status send failed", "error", err)
	}
}

func (s *Simulator) reportFrequencies() {
	s.mu.Lock()
	freqs := append([]uint32(nil), s.frequencies...)
	s.mu.Unlock()
	if err := s.session.SendPacket(&comms.FrequenciesPacket{Frequencies: freqs}); err != nil {
		s.logger.Warn("frequency report failed", "error", err)
	}
}
