package comms

import (
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"rctgcs/internal/transport"
)

const (
	receiveBufferLen = 1024
	receivePollSlice = 1 * time.Second

	// DefaultHeartbeatTimeout bounds the initial wait for the payload.
	DefaultHeartbeatTimeout = 30 * time.Second
	// DefaultWatchdogInterval is how long without a heartbeat before the
	// no-heartbeat callbacks fire.
	DefaultWatchdogInterval = 30 * time.Second

	stopJoinTimeout = 5 * time.Second
)

// Handler consumes one decoded packet and its origin address. Handlers run
// on the session's receiver goroutine, strictly in receipt order.
type Handler func(pkt Packet, addr net.Addr)

// dispatcher is the shared callback table and dispatch path used by both
// session variants. Registration order is invocation order.
type dispatcher struct {
	logger *slog.Logger

	mu       sync.Mutex
	handlers map[EventCode][]Handler
}

func newDispatcher(logger *slog.Logger) dispatcher {
	return dispatcher{
		logger:   logger,
		handlers: make(map[EventCode][]Handler),
	}
}

// RegisterCallback adds a handler for the given event code. Handlers
// registered under EventUnknown receive packets with no handler of their
// own.
func (d *dispatcher) RegisterCallback(code EventCode, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[code] = append(d.handlers[code], h)
}

func (d *dispatcher) handlersFor(code EventCode) []Handler {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Handler(nil), d.handlers[code]...)
}

// dispatch runs every handler for the packet's code; packets with no
// handler of their own go to the EventUnknown list. A panicking handler is
// logged and surfaced as a synthesized exception event instead of killing
// the receiver goroutine.
func (d *dispatcher) dispatch(pkt Packet, addr net.Addr) {
	hs := d.handlersFor(pkt.Code())
	if len(hs) == 0 && pkt.Code() != EventUnknown {
		hs = d.handlersFor(EventUnknown)
	}
	for _, h := range hs {
		d.invoke(h, pkt, addr)
	}
}

func (d *dispatcher) invoke(h Handler, pkt Packet, addr net.Addr) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		d.logger.Error("packet handler panicked",
			"event", pkt.Code().String(), "panic", r)
		if pkt.Code() == EventException {
			// Never synthesize from the exception path itself.
			return
		}
		synth := &ExceptionPacket{
			Exception: fmt.Sprintf("handler for %s panicked: %v", pkt.Code(), r),
			Traceback: string(debug.Stack()),
		}
		for _, eh := range d.handlersFor(EventException) {
			d.invoke(eh, synth, addr)
		}
	}()
	h(pkt, addr)
}

// pendingCommand is one outstanding command awaiting its ack.
type pendingCommand struct {
	done chan struct{}

	mu       sync.Mutex
	resolved bool
	ack      bool
}

func (p *pendingCommand) resolve(ack bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolved {
		return
	}
	p.resolved = true
	p.ack = ack
	close(p.done)
}

func (p *pendingCommand) result() (resolved, ack bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolved, p.ack
}

// GCSSession is the ground-station side of the payload link. It owns one
// Transport, runs the receiver goroutine, dispatches decoded packets to
// registered handlers, correlates commands with acks, and watches for
// heartbeat loss.
type GCSSession struct {
	dispatcher

	tx     transport.Transport
	parser *Parser

	watchdogInterval time.Duration

	stateMu       sync.Mutex
	running       bool
	peer          net.Addr
	lastHeartbeat time.Time
	stop          chan struct{}
	loopDone      chan struct{}

	pendingMu sync.Mutex
	pending   map[CommandID]*pendingCommand
}

// NewGCSSession wraps the given transport. The session does not open it
// until Start.
func NewGCSSession(logger *slog.Logger, tx transport.Transport) *GCSSession {
	s := &GCSSession{
		dispatcher:       newDispatcher(logger.With("component", "comms", "side", "gcs")),
		tx:               tx,
		parser:           NewParser(),
		watchdogInterval: DefaultWatchdogInterval,
		pending:          make(map[CommandID]*pendingCommand),
	}
	s.RegisterCallback(EventAck, s.handleAck)
	return s
}

// TransportName reports the name of the wrapped transport.
func (s *GCSSession) TransportName() string {
	return s.tx.Name()
}

// SetWatchdogInterval overrides the heartbeat watchdog threshold. Call
// before Start.
func (s *GCSSession) SetWatchdogInterval(d time.Duration) {
	s.watchdogInterval = d
}

// Start opens the transport and blocks until the payload's first heartbeat
// arrives, up to heartbeatTimeout (DefaultHeartbeatTimeout when zero). tick,
// when non-nil, is called once per poll slice so a caller can drive a
// progress indicator. Every packet received while waiting is replayed
// through normal dispatch once the heartbeat is seen. On success the
// receiver goroutine is running; on timeout the transport is closed and
// ErrNoHeartbeat returned.
func (s *GCSSession) Start(heartbeatTimeout time.Duration, tick func()) error {
	s.stateMu.Lock()
	if s.running {
		s.stateMu.Unlock()
		return nil
	}
	s.stateMu.Unlock()

	if heartbeatTimeout <= 0 {
		heartbeatTimeout = DefaultHeartbeatTimeout
	}
	if err := s.tx.Open(); err != nil {
		return fmt.Errorf("open transport: %w", err)
	}

	type received struct {
		pkt  Packet
		addr net.Addr
	}
	var backlog []received
	var peer net.Addr

	deadline := time.Now().Add(heartbeatTimeout)
	for peer == nil {
		if !time.Now().Before(deadline) {
			_ = s.tx.Close()
			s.logger.Error("no heartbeat during startup", "timeout", heartbeatTimeout)
			return ErrNoHeartbeat
		}

		data, addr, err := s.tx.Receive(receiveBufferLen, receivePollSlice)
		if err != nil {
			if !transport.IsTimeout(err) {
				s.logger.Warn("receive failed during startup", "error", err)
			}
			if tick != nil {
				tick()
			}
			continue
		}

		packets, perr := s.parser.FeedBytes(data)
		if perr != nil {
			s.logger.Warn("decode failed during startup", "error", perr)
		}
		for _, pkt := range packets {
			backlog = append(backlog, received{pkt: pkt, addr: addr})
			if pkt.Code() == EventHeartbeat {
				peer = addr
			}
		}
		if tick != nil {
			tick()
		}
	}

	s.stateMu.Lock()
	s.peer = peer
	s.lastHeartbeat = time.Now()
	s.running = true
	s.stop = make(chan struct{})
	s.loopDone = make(chan struct{})
	s.stateMu.Unlock()

	s.logger.Info("payload heartbeat acquired", "peer", peerString(peer))
	for _, rx := range backlog {
		s.notePacket(rx.pkt)
		s.dispatch(rx.pkt, rx.addr)
	}

	go s.receiveLoop(s.stop, s.loopDone)
	return nil
}

// Stop halts the receiver, joins it with a bounded wait, and closes the
// transport. Safe to call more than once.
func (s *GCSSession) Stop() {
	s.stateMu.Lock()
	if !s.running {
		s.stateMu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.loopDone
	s.stateMu.Unlock()

	select {
	case <-done:
	case <-time.After(stopJoinTimeout):
		s.logger.Warn("receiver did not exit before join timeout")
	}
	_ = s.tx.Close()
	s.logger.Info("session stopped")
}

// Running reports whether the receiver goroutine is active.
func (s *GCSSession) Running() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.running
}

// Peer returns the payload's address as learned from its first heartbeat.
func (s *GCSSession) Peer() net.Addr {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.peer
}

// SendPacket encodes and transmits a packet to the payload.
func (s *GCSSession) SendPacket(p Packet) error {
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

// SendCommand transmits a command packet and blocks until the payload acks
// it, nacks it (NackError), or timeout elapses (ErrCommandTimeout). Because
// acks are correlated by the command's fixed id, at most one command of a
// given type may be in flight at a time.
func (s *GCSSession) SendCommand(p Packet, id CommandID, timeout time.Duration) error {
	pc := &pendingCommand{done: make(chan struct{})}

	s.pendingMu.Lock()
	if _, exists := s.pending[id]; exists {
		s.pendingMu.Unlock()
		return fmt.Errorf("%w: %s", ErrCommandInFlight, id)
	}
	s.pending[id] = pc
	s.pendingMu.Unlock()

	if err := s.SendPacket(p); err != nil {
		s.removePending(id)
		return err
	}
	s.logger.Info("sent command", "command", id.String())

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-pc.done:
	case <-timer.C:
	}

	s.removePending(id)
	resolved, ack := pc.result()
	if !resolved {
		return fmt.Errorf("%w: %s after %s", ErrCommandTimeout, id, timeout)
	}
	if !ack {
		return &NackError{Command: id}
	}
	return nil
}

func (s *GCSSession) removePending(id CommandID) {
	s.pendingMu.Lock()
	delete(s.pending, id)
	s.pendingMu.Unlock()
}

func (s *GCSSession) handleAck(pkt Packet, _ net.Addr) {
	ack, ok := pkt.(*AckPacket)
	if !ok {
		return
	}
	s.pendingMu.Lock()
	pc := s.pending[ack.CommandID]
	s.pendingMu.Unlock()
	if pc == nil {
		s.logger.Debug("ack with no pending command", "command", ack.CommandID.String())
		return
	}
	pc.resolve(ack.Ack)
}

func (s *GCSSession) receiveLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	s.logger.Info("receiver started")

	for {
		select {
		case <-stop:
			s.logger.Info("receiver exiting")
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
			s.checkWatchdog()
			continue
		}

		packets, perr := s.parser.FeedBytes(data)
		if perr != nil {
			// Malformed bytes are dropped; the parser resyncs on the
			// next valid frame.
			s.logger.Warn("frame decode failed", "error", perr)
		}
		for _, pkt := range packets {
			s.notePacket(pkt)
			s.dispatch(pkt, addr)
		}
		s.checkWatchdog()
	}
}

func (s *GCSSession) notePacket(pkt Packet) {
	if pkt.Code() != EventHeartbeat {
		return
	}
	s.stateMu.Lock()
	s.lastHeartbeat = time.Now()
	s.stateMu.Unlock()
}

// checkWatchdog fires the no-heartbeat callbacks when the last heartbeat is
// older than the watchdog interval. The check is level-triggered: it fires
// on every poll while the lapse persists, matching the historical behavior
// callers depend on for repeated alarms.
func (s *GCSSession) checkWatchdog() {
	s.stateMu.Lock()
	last := s.lastHeartbeat
	running := s.running
	s.stateMu.Unlock()
	if !running || time.Since(last) <= s.watchdogInterval {
		return
	}

	s.logger.Warn("no heartbeats", "since", time.Since(last))
	for _, h := range s.handlersFor(EventNoHeartbeat) {
		s.invoke(h, &UnknownPacket{EventCode: EventNoHeartbeat}, nil)
	}
}

func peerString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}
