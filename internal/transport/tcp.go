package transport

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// TCPClient keeps one persistent connection to the payload. Sends are
// unbatched: Nagle is disabled so command frames leave immediately.
type TCPClient struct {
	host string
	port int

	mu      sync.Mutex
	conn    net.Conn
	writeMu sync.Mutex
}

func NewTCPClient(host string, port int) *TCPClient {
	return &TCPClient{host: host, port: port}
}

func (t *TCPClient) Name() string { return "tcp" }

func (t *TCPClient) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	target := net.JoinHostPort(t.host, fmt.Sprintf("%d", t.port))
	logger := transportLogger("tcp", "target", target)

	if t.conn != nil {
		logger.Debug("open skipped: already connected")
		return nil
	}

	dialer := net.Dialer{Timeout: 6 * time.Second}
	logger.Info("connecting")
	conn, err := dialer.Dial("tcp", target)
	if err != nil {
		logger.Warn("connect failed", "error", err)
		return fmt.Errorf("dial tcp %s: %w", target, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	t.conn = conn
	logger.Info("connected", "remote", conn.RemoteAddr().String())
	return nil
}

func (t *TCPClient) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	transportLogger("tcp").Info("closed")
	return err
}

func (t *TCPClient) Send(data []byte, _ net.Addr) error {
	conn, err := t.currentConn()
	if err != nil {
		return err
	}
	return sendStream(conn, data, &t.writeMu)
}

func (t *TCPClient) Receive(maxLen int, timeout time.Duration) ([]byte, net.Addr, error) {
	conn, err := t.currentConn()
	if err != nil {
		return nil, nil, err
	}
	return receiveStream(conn, maxLen, timeout)
}

func (t *TCPClient) currentConn() (net.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, ErrNotOpen
	}
	return t.conn, nil
}

// TCPServer accepts exactly one client. Open blocks until that client
// connects; the session treats the accepted peer as the payload.
type TCPServer struct {
	port int

	mu       sync.Mutex
	listener net.Listener
	conn     net.Conn
	writeMu  sync.Mutex
}

func NewTCPServer(port int) *TCPServer {
	return &TCPServer{port: port}
}

func (t *TCPServer) Name() string { return "tcp-server" }

func (t *TCPServer) Open() error {
	logger := transportLogger("tcp-server", "port", t.port)

	t.mu.Lock()
	if t.conn != nil {
		t.mu.Unlock()
		logger.Debug("open skipped: already connected")
		return nil
	}
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		t.mu.Unlock()
		logger.Warn("listen failed", "error", err)
		return fmt.Errorf("listen tcp port %d: %w", t.port, err)
	}
	t.listener = listener
	t.mu.Unlock()

	logger.Info("waiting for client")
	conn, err := listener.Accept()
	if err != nil {
		return fmt.Errorf("accept: %w", err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	logger.Info("client connected", "remote", conn.RemoteAddr().String())
	return nil
}

func (t *TCPServer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var err error
	if t.conn != nil {
		err = t.conn.Close()
		t.conn = nil
	}
	if t.listener != nil {
		if cerr := t.listener.Close(); err == nil {
			err = cerr
		}
		t.listener = nil
	}
	transportLogger("tcp-server").Info("closed")
	return err
}

func (t *TCPServer) Send(data []byte, _ net.Addr) error {
	conn, err := t.currentConn()
	if err != nil {
		return err
	}
	return sendStream(conn, data, &t.writeMu)
}

func (t *TCPServer) Receive(maxLen int, timeout time.Duration) ([]byte, net.Addr, error) {
	conn, err := t.currentConn()
	if err != nil {
		return nil, nil, err
	}
	return receiveStream(conn, maxLen, timeout)
}

func (t *TCPServer) currentConn() (net.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, ErrNotOpen
	}
	return t.conn, nil
}

// MultiTCPServer accepts repeatedly and hands each accepted connection to
// the callback as its own ready-to-use Transport.
type MultiTCPServer struct {
	port     int
	onAccept func(Transport)

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}
}

func NewMultiTCPServer(port int, onAccept func(Transport)) *MultiTCPServer {
	return &MultiTCPServer{port: port, onAccept: onAccept}
}

func (t *MultiTCPServer) Name() string { return "tcp-multi-server" }

func (t *MultiTCPServer) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	logger := transportLogger("tcp-multi-server", "port", t.port)

	if t.listener != nil {
		logger.Debug("open skipped: already listening")
		return nil
	}
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		logger.Warn("listen failed", "error", err)
		return fmt.Errorf("listen tcp port %d: %w", t.port, err)
	}
	t.listener = listener
	t.done = make(chan struct{})
	go t.acceptLoop(listener, t.done)
	logger.Info("listening")
	return nil
}

func (t *MultiTCPServer) acceptLoop(listener net.Listener, done chan struct{}) {
	defer close(done)
	logger := transportLogger("tcp-multi-server", "port", t.port)
	for {
		conn, err := listener.Accept()
		if err != nil {
			// Listener closed, or a transient accept failure on shutdown.
			logger.Debug("accept loop exiting", "error", err)
			return
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}
		logger.Info("client connected", "remote", conn.RemoteAddr().String())
		t.onAccept(&acceptedTransport{conn: conn})
	}
}

func (t *MultiTCPServer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	err := t.listener.Close()
	t.listener = nil
	if t.done != nil {
		<-t.done
		t.done = nil
	}
	return err
}

// Send and Receive are not meaningful on the listening endpoint itself;
// traffic flows over the per-connection Transports given to the callback.
func (t *MultiTCPServer) Send(_ []byte, _ net.Addr) error { return ErrNotOpen }

func (t *MultiTCPServer) Receive(_ int, _ time.Duration) ([]byte, net.Addr, error) {
	return nil, nil, ErrNotOpen
}

// acceptedTransport is one client connection produced by MultiTCPServer.
type acceptedTransport struct {
	mu      sync.Mutex
	conn    net.Conn
	writeMu sync.Mutex
}

func (t *acceptedTransport) Name() string { return "tcp-accepted" }

// Open is a no-op: the connection is already established by Accept.
func (t *acceptedTransport) Open() error { return nil }

func (t *acceptedTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *acceptedTransport) Send(data []byte, _ net.Addr) error {
	conn, err := t.currentConn()
	if err != nil {
		return err
	}
	return sendStream(conn, data, &t.writeMu)
}

func (t *acceptedTransport) Receive(maxLen int, timeout time.Duration) ([]byte, net.Addr, error) {
	conn, err := t.currentConn()
	if err != nil {
		return nil, nil, err
	}
	return receiveStream(conn, maxLen, timeout)
}

func (t *acceptedTransport) currentConn() (net.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, ErrNotOpen
	}
	return t.conn, nil
}

func sendStream(conn net.Conn, data []byte, writeMu *sync.Mutex) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	for len(data) > 0 {
		n, err := conn.Write(data)
		if err != nil {
			return fmt.Errorf("tcp send: %w", err)
		}
		data = data[n:]
	}
	return nil
}

func receiveStream(conn net.Conn, maxLen int, timeout time.Duration) ([]byte, net.Addr, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, nil, fmt.Errorf("set read deadline: %w", err)
	}
	buf := make([]byte, maxLen)
	n, err := conn.Read(buf)
	if err != nil {
		if IsTimeout(err) {
			return nil, nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, nil, fmt.Errorf("tcp receive: %w", err)
	}
	return buf[:n], conn.RemoteAddr(), nil
}
