package comms

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"rctgcs/internal/transport"
)

// DefaultHeartbeatPeriod is how often the payload side beats.
const DefaultHeartbeatPeriod = 1 * time.Second

// HeartbeatSource supplies the current component states for each beat.
type HeartbeatSource func() HeartbeatPacket

// PayloadSession is the airborne side of the link: it answers ground-station
// commands and emits a periodic heartbeat from its own sender goroutine.
// Until the first ground-station packet arrives it has no peer; datagram
// transports then broadcast.
type PayloadSession struct {
	dispatcher

	tx     transport.Transport
	parser *Parser

	heartbeatPeriod time.Duration
	heartbeatSource HeartbeatSource

	stateMu  sync.Mutex
	running  bool
	peer     net.Addr
	stop     chan struct{}
	rxDone   chan struct{}
	beatDone chan struct{}
}

// NewPayloadSession wraps the given transport. source supplies heartbeat
// contents; period falls back to DefaultHeartbeatPeriod when zero.
func NewPayloadSession(logger *slog.Logger, tx transport.Transport, source HeartbeatSource, period time.Duration) *PayloadSession {
	if period <= 0 {
		period = DefaultHeartbeatPeriod
	}
	return &PayloadSession{
		dispatcher:      newDispatcher(logger.With("component", "comms", "side", "payload")),
		tx:              tx,
		parser:          NewParser(),
		heartbeatPeriod: period,
		heartbeatSource: source,
	}
}

// Start opens the transport and launches the receiver and heartbeat-sender
// goroutines.
func (s *PayloadSession) Start() error {
	s.stateMu.Lock()
	if s.running {
		s.stateMu.Unlock()
		return nil
	}
	s.stateMu.Unlock()

	if err := s.tx.Open(); err != nil {
		return fmt.Errorf("open transport: %w", err)
	}

	s.stateMu.Lock()
	s.running = true
	s.stop = make(chan struct{})
	s.rxDone = make(chan struct{})
	s.beatDone = make(chan struct{})
	s.stateMu.Unlock()

	go s.receiveLoop(s.stop, s.rxDone)
	go s.heartbeatLoop(s.stop, s.beatDone)
	s.logger.Info("payload session started", "heartbeat_period", s.heartbeatPeriod)
	return nil
}

// Stop halts both goroutines, joins them with a bounded wait, and closes
// the transport. Safe to call more than once.
func (s *PayloadSession) Stop() {
	s.stateMu.Lock()
	if !s.running {
		s.stateMu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	rxDone, beatDone := s.rxDone, s.beatDone
	s.stateMu.Unlock()

	join := time.NewTimer(stopJoinTimeout)
	defer join.Stop()
	for _, done := range []<-chan struct{}{rxDone, beatDone} {
		select {
		case <-done:
		case <-join.C:
			s.logger.Warn("worker did not exit before join timeout")
		}
	}
	_ = s.tx.Close()
	s.logger.Info("payload session stopped")
}

// Running reports whether the session's goroutines are active.
func (s *PayloadSession) Running() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.running
}

// SendPacket encodes and transmits a packet to the ground station, or
// broadcasts when no ground station has been heard yet.
func (s *PayloadSession) SendPacket(p Packet) error {
	s.stateMu.Lock()
	running := s.running
	peer := s.peer
	s.stateMu.Unlock()
	if !running {
		return ErrNoActiveSession
	}

	frame, err := Encode(p)
	if err != nil {
		return err
	}
	if err := s.tx.Send(frame, peer); err != nil {
		return fmt.Errorf("send %s: %w", p.Code(), err)
	}
	return nil
}

func (s *PayloadSession) receiveLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		data, addr, err := s.tx.Receive(receiveBufferLen, receivePollSlice)
		if err != nil {
			if !transport.IsTimeout(err) {
				if !s.Running() {
					return
				}
				s.logger.Warn("receive failed", "error", err)
			}
			continue
		}

		if addr != nil {
			s.stateMu.Lock()
			s.peer = addr
			s.stateMu.Unlock()
		}

		packets, perr := s.parser.FeedBytes(data)
		if perr != nil {
			s.logger.Warn("frame decode failed", "error", perr)
		}
		for _, pkt := range packets {
			s.dispatch(pkt, addr)
		}
	}
}

func (s *PayloadSession) heartbeatLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.heartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			beat := s.heartbeatSource()
			if beat.Timestamp.IsZero() {
				beat.Timestamp = time.Now()
			}
			if err := s.SendPacket(&beat); err != nil {
				s.logger.Debug("heartbeat send failed", "error", err)
			}
		}
	}
}
