package transport

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"

	"rctgcs/internal/config"
)

func TestMemoryPairRoundTrip(t *testing.T) {
	a, b := NewMemoryPair()
	if err := a.Open(); err != nil {
		t.Fatalf("Open a: %v", err)
	}
	if err := b.Open(); err != nil {
		t.Fatalf("Open b: %v", err)
	}
	defer a.Close()
	defer b.Close()

	msg := []byte{0xE4, 0xEB, 0x01, 0x02, 0x03}
	if err := a.Send(msg, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, addr, err := b.Receive(1024, time.Second)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Fatalf("got %x, want %x", got, msg)
	}
	if addr == nil || addr.Network() != "memory" {
		t.Fatalf("addr = %v", addr)
	}
}

func TestMemoryPairReceiveTimesOut(t *testing.T) {
	a, _ := NewMemoryPair()
	if err := a.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	start := time.Now()
	_, _, err := a.Receive(1024, 50*time.Millisecond)
	if !IsTimeout(err) {
		t.Fatalf("err = %v, want timeout", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("receive blocked far past its deadline")
	}
}

func TestTransportsRejectUseBeforeOpen(t *testing.T) {
	transports := []Transport{
		NewUDPClient("127.0.0.1", 19801),
		NewUDPServer(19802),
		NewTCPClient("127.0.0.1", 19803),
		NewSerialTransport("/dev/null", 57600),
	}
	for _, tr := range transports {
		if err := tr.Send([]byte{1}, nil); !errors.Is(err, ErrNotOpen) {
			t.Fatalf("%s Send err = %v, want ErrNotOpen", tr.Name(), err)
		}
		if _, _, err := tr.Receive(16, 10*time.Millisecond); !errors.Is(err, ErrNotOpen) {
			t.Fatalf("%s Receive err = %v, want ErrNotOpen", tr.Name(), err)
		}
	}
}

func TestUDPClientSelfLoop(t *testing.T) {
	// The client binds the link port and, with no explicit destination,
	// sends to host:port. Pointing it at itself exercises both paths.
	c := NewUDPClient("127.0.0.1", 19810)
	if err := c.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	msg := []byte("ping")
	if err := c.Send(msg, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, _, err := c.Receive(64, time.Second)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Fatalf("got %q, want %q", got, msg)
	}
}

func TestUDPServerAnswersSender(t *testing.T) {
	s := NewUDPServer(19811)
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	peer, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 19811})
	if err != nil {
		t.Fatalf("DialUDP: %v", err)
	}
	defer peer.Close()

	if _, err := peer.Write([]byte("hello")); err != nil {
		t.Fatalf("peer write: %v", err)
	}
	got, addr, err := s.Receive(64, time.Second)
	if err != nil {
		t.Fatalf("server Receive: %v", err)
	}
	if string(got) != "hello" || addr == nil {
		t.Fatalf("got %q from %v", got, addr)
	}

	if err := s.Send([]byte("reply"), addr); err != nil {
		t.Fatalf("server Send: %v", err)
	}
	buf := make([]byte, 64)
	_ = peer.SetReadDeadline(time.Now().Add(time.Second))
	n, err := peer.Read(buf)
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	if string(buf[:n]) != "reply" {
		t.Fatalf("reply = %q", buf[:n])
	}
}

func TestTCPClientServerRoundTrip(t *testing.T) {
	server := NewTCPServer(19812)
	openDone := make(chan error, 1)
	go func() { openDone <- server.Open() }()

	client := NewTCPClient("127.0.0.1", 19812)
	var dialErr error
	for i := 0; i < 50; i++ {
		if dialErr = client.Open(); dialErr == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if dialErr != nil {
		t.Fatalf("client Open: %v", dialErr)
	}
	defer client.Close()

	if err := <-openDone; err != nil {
		t.Fatalf("server Open: %v", err)
	}
	defer server.Close()

	if err := client.Send([]byte("up"), nil); err != nil {
		t.Fatalf("client Send: %v", err)
	}
	got, _, err := server.Receive(16, time.Second)
	if err != nil {
		t.Fatalf("server Receive: %v", err)
	}
	if string(got) != "up" {
		t.Fatalf("server got %q", got)
	}

	if err := server.Send([]byte("down"), nil); err != nil {
		t.Fatalf("server Send: %v", err)
	}
	got, _, err = client.Receive(16, time.Second)
	if err != nil {
		t.Fatalf("client Receive: %v", err)
	}
	if string(got) != "down" {
		t.Fatalf("client got %q", got)
	}
}

func TestMultiTCPServerAcceptsClients(t *testing.T) {
	accepted := make(chan Transport, 2)
	server := NewMultiTCPServer(19813, func(tr Transport) { accepted <- tr })
	if err := server.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer server.Close()

	client := NewTCPClient("127.0.0.1", 19813)
	if err := client.Open(); err != nil {
		t.Fatalf("client Open: %v", err)
	}
	defer client.Close()

	var conn Transport
	select {
	case conn = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("accept callback never fired")
	}

	if err := client.Send([]byte("hi"), nil); err != nil {
		t.Fatalf("client Send: %v", err)
	}
	got, _, err := conn.Receive(16, time.Second)
	if err != nil {
		t.Fatalf("accepted Receive: %v", err)
	}
	if string(got) != "hi" {
		t.Fatalf("accepted got %q", got)
	}
}

func TestFromConfig(t *testing.T) {
	cases := []struct {
		cfg  config.ConnectionConfig
		name string
	}{
		{config.ConnectionConfig{Connector: config.ConnectorUDP, Host: "10.0.0.1", Port: 9000}, "udp"},
		{config.ConnectionConfig{Connector: config.ConnectorUDPServer, Port: 9000}, "udp-server"},
		{config.ConnectionConfig{Connector: config.ConnectorTCP, Host: "10.0.0.1", Port: 9000}, "tcp"},
		{config.ConnectionConfig{Connector: config.ConnectorTCPServer, Port: 9000}, "tcp-server"},
		{config.ConnectionConfig{Connector: config.ConnectorSerial, SerialPort: "/dev/ttyUSB0", SerialBaud: 57600}, "serial"},
	}
	for _, tc := range cases {
		tr, err := FromConfig(tc.cfg)
		if err != nil {
			t.Fatalf("FromConfig(%s): %v", tc.cfg.Connector, err)
		}
		if tr.Name() != tc.name {
			t.Fatalf("Name = %q, want %q", tr.Name(), tc.name)
		}
	}
	if _, err := FromConfig(config.ConnectionConfig{Connector: "carrier-pigeon"}); err == nil {
		t.Fatal("unknown connector accepted")
	}
}
