package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.bug.st/serial"
)

const serialPollInterval = 50 * time.Millisecond

// SerialTransport talks to the payload over a radio modem on a serial port.
type SerialTransport struct {
	portName string
	baudRate int

	mu      sync.Mutex
	port    serial.Port
	writeMu sync.Mutex
}

func NewSerialTransport(portName string, baudRate int) *SerialTransport {
	return &SerialTransport{portName: portName, baudRate: baudRate}
}

func (t *SerialTransport) Name() string { return "serial" }

func (t *SerialTransport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port != nil {
		return nil
	}
	if t.portName == "" {
		return errors.New("serial port is empty")
	}
	if t.baudRate <= 0 {
		return fmt.Errorf("invalid serial baud rate: %d", t.baudRate)
	}

	port, err := serial.Open(t.portName, &serial.Mode{BaudRate: t.baudRate})
	if err != nil {
		return fmt.Errorf("open serial port %q: %w", t.portName, err)
	}
	if err := port.SetReadTimeout(serialPollInterval); err != nil {
		_ = port.Close()
		return fmt.Errorf("set serial read timeout: %w", err)
	}
	t.port = port
	transportLogger("serial", "port", t.portName, "baud", t.baudRate).Info("opened")
	return nil
}

func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	return err
}

func (t *SerialTransport) Send(data []byte, _ net.Addr) error {
	port, err := t.currentPort()
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	for len(data) > 0 {
		n, err := port.Write(data)
		if err != nil {
			return fmt.Errorf("serial send: %w", err)
		}
		data = data[n:]
	}
	return nil
}

// Receive polls the port in short read-timeout slices until any bytes
// arrive or the overall timeout elapses.
func (t *SerialTransport) Receive(maxLen int, timeout time.Duration) ([]byte, net.Addr, error) {
	port, err := t.currentPort()
	if err != nil {
		return nil, nil, err
	}

	deadline := time.Now().Add(timeout)
	buf := make([]byte, maxLen)
	for {
		n, err := port.Read(buf)
		if err != nil {
			return nil, nil, fmt.Errorf("serial receive: %w", err)
		}
		if n > 0 {
			return buf[:n], nil, nil
		}
		if !time.Now().Before(deadline) {
			return nil, nil, ErrTimeout
		}
	}
}

func (t *SerialTransport) currentPort() (serial.Port, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil, ErrNotOpen
	}
	return t.port, nil
}
