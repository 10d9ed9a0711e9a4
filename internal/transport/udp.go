package transport

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// UDPClient binds the link port locally and sends every datagram to a fixed
// destination host.
type UDPClient struct {
	host string
	port int

	mu      sync.Mutex
	conn    *net.UDPConn
	writeMu sync.Mutex
}

func NewUDPClient(host string, port int) *UDPClient {
	return &UDPClient{host: host, port: port}
}

func (t *UDPClient) Name() string { return "udp" }

func (t *UDPClient) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	logger := transportLogger("udp", "host", t.host, "port", t.port)

	if t.conn != nil {
		logger.Debug("open skipped: already open")
		return nil
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: t.port})
	if err != nil {
		logger.Warn("open failed", "error", err)
		return fmt.Errorf("bind udp port %d: %w", t.port, err)
	}
	t.conn = conn
	logger.Info("opened", "local", conn.LocalAddr().String())
	return nil
}

func (t *UDPClient) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	transportLogger("udp").Info("closed")
	return err
}

func (t *UDPClient) Send(data []byte, dst net.Addr) error {
	conn, err := t.currentConn()
	if err != nil {
		return err
	}

	addr, err := t.resolveDest(dst)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := conn.WriteToUDP(data, addr); err != nil {
		return fmt.Errorf("udp send: %w", err)
	}
	return nil
}

func (t *UDPClient) Receive(maxLen int, timeout time.Duration) ([]byte, net.Addr, error) {
	conn, err := t.currentConn()
	if err != nil {
		return nil, nil, err
	}
	return receiveDatagram(conn, maxLen, timeout)
}

func (t *UDPClient) resolveDest(dst net.Addr) (*net.UDPAddr, error) {
	if u, ok := dst.(*net.UDPAddr); ok && u != nil {
		return u, nil
	}
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(t.host, fmt.Sprintf("%d", t.port)))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", t.host, err)
	}
	return addr, nil
}

func (t *UDPClient) currentConn() (*net.UDPConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, ErrNotOpen
	}
	return t.conn, nil
}

// UDPServer binds the link port and answers whoever sends to it. A nil
// destination broadcasts on the local segment.
type UDPServer struct {
	port int

	mu      sync.Mutex
	conn    *net.UDPConn
	writeMu sync.Mutex
}

func NewUDPServer(port int) *UDPServer {
	return &UDPServer{port: port}
}

func (t *UDPServer) Name() string { return "udp-server" }

func (t *UDPServer) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	logger := transportLogger("udp-server", "port", t.port)

	if t.conn != nil {
		logger.Debug("open skipped: already open")
		return nil
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: t.port})
	if err != nil {
		logger.Warn("open failed", "error", err)
		return fmt.Errorf("bind udp port %d: %w", t.port, err)
	}
	if err := enableBroadcast(conn); err != nil {
		_ = conn.Close()
		logger.Warn("enable broadcast failed", "error", err)
		return fmt.Errorf("enable broadcast: %w", err)
	}
	t.conn = conn
	logger.Info("opened", "local", conn.LocalAddr().String())
	return nil
}

func (t *UDPServer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	transportLogger("udp-server").Info("closed")
	return err
}

func (t *UDPServer) Send(data []byte, dst net.Addr) error {
	conn, err := t.currentConn()
	if err != nil {
		return err
	}

	addr, ok := dst.(*net.UDPAddr)
	if !ok || addr == nil {
		addr = &net.UDPAddr{IP: net.IPv4bcast, Port: t.port}
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := conn.WriteToUDP(data, addr); err != nil {
		return fmt.Errorf("udp send: %w", err)
	}
	return nil
}

func (t *UDPServer) Receive(maxLen int, timeout time.Duration) ([]byte, net.Addr, error) {
	conn, err := t.currentConn()
	if err != nil {
		return nil, nil, err
	}
	return receiveDatagram(conn, maxLen, timeout)
}

func (t *UDPServer) currentConn() (*net.UDPConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, ErrNotOpen
	}
	return t.conn, nil
}

func receiveDatagram(conn *net.UDPConn, maxLen int, timeout time.Duration) ([]byte, net.Addr, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, nil, fmt.Errorf("set read deadline: %w", err)
	}
	buf := make([]byte, maxLen)
	n, addr, err := conn.ReadFromUDP(buf)
	if err != nil {
		if IsTimeout(err) {
			return nil, nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, nil, fmt.Errorf("udp receive: %w", err)
	}
	return buf[:n], addr, nil
}
