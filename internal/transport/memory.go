package transport

import (
	"net"
	"sync"
	"time"
)

// memoryAddr labels one end of an in-memory pair.
type memoryAddr string

func (a memoryAddr) Network() string { return "memory" }
func (a memoryAddr) String() string  { return string(a) }

// MemoryTransport is one end of an in-process datagram pair. It backs the
// payload simulator in tests and anywhere a process hosts both link ends.
type MemoryTransport struct {
	name string
	in   chan []byte
	out  chan<- []byte
	peer net.Addr

	mu   sync.Mutex
	open bool
}

// NewMemoryPair returns two connected transports. Everything sent on one
// is received on the other.
func NewMemoryPair() (*MemoryTransport, *MemoryTransport) {
	ab := make(chan []byte, 64)
	ba := make(chan []byte, 64)
	a := &MemoryTransport{name: "memory-a", in: ba, out: ab, peer: memoryAddr("memory-b")}
	b := &MemoryTransport{name: "memory-b", in: ab, out: ba, peer: memoryAddr("memory-a")}
	return a, b
}

func (t *MemoryTransport) Name() string { return t.name }

func (t *MemoryTransport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = true
	return nil
}

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = false
	return nil
}

func (t *MemoryTransport) Send(data []byte, _ net.Addr) error {
	t.mu.Lock()
	open := t.open
	t.mu.Unlock()
	if !open {
		return ErrNotOpen
	}
	buf := append([]byte(nil), data...)
	select {
	case t.out <- buf:
		return nil
	case <-time.After(time.Second):
		return ErrTimeout
	}
}

func (t *MemoryTransport) Receive(maxLen int, timeout time.Duration) ([]byte, net.Addr, error) {
	t.mu.Lock()
	open := t.open
	t.mu.Unlock()
	if !open {
		return nil, nil, ErrNotOpen
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case data := <-t.in:
		if len(data) > maxLen {
			data = data[:maxLen]
		}
		return data, t.peer, nil
	case <-timer.C:
		return nil, nil, ErrTimeout
	}
}
