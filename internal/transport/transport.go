package transport

import (
	"errors"
	"net"
	"time"
)

// Transport is one bidirectional byte link to the payload. Implementations
// are safe for one reader and one writer goroutine; Close is idempotent.
type Transport interface {
	Name() string
	// Open acquires the underlying resource. For the single-connection TCP
	// server this blocks until a client connects.
	Open() error
	Close() error
	// Send blocks until data is fully transmitted. dst selects the
	// destination for datagram transports; stream and serial transports
	// ignore it. A nil dst on the UDP server broadcasts.
	Send(data []byte, dst net.Addr) error
	// Receive returns up to maxLen bytes, waiting at most timeout. It
	// returns ErrTimeout (possibly wrapped) when nothing arrives in time
	// and never blocks past the deadline. The returned address is the
	// packet origin where the link has one, nil otherwise.
	Receive(maxLen int, timeout time.Duration) ([]byte, net.Addr, error)
}

// ErrTimeout reports that no data arrived within the receive timeout.
var ErrTimeout = errors.New("transport: receive timed out")

// ErrNotOpen reports use of a transport before Open or after Close.
var ErrNotOpen = errors.New("transport: not open")

// IsTimeout reports whether err is a receive timeout, either ours or a
// net.Error deadline from the socket layer.
func IsTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
