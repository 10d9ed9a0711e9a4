package transport

import (
	"fmt"

	"rctgcs/internal/config"
)

// FromConfig builds the transport described by the connection section.
// MultiTCPServer is not constructed here; it needs an accept callback.
func FromConfig(cfg config.ConnectionConfig) (Transport, error) {
	switch cfg.Connector {
	case config.ConnectorUDP:
		return NewUDPClient(cfg.Host, cfg.Port), nil
	case config.ConnectorUDPServer:
		return NewUDPServer(cfg.Port), nil
	case config.ConnectorTCP:
		return NewTCPClient(cfg.Host, cfg.Port), nil
	case config.ConnectorTCPServer:
		return NewTCPServer(cfg.Port), nil
	case config.ConnectorSerial:
		return NewSerialTransport(cfg.SerialPort, cfg.SerialBaud), nil
	default:
		return nil, fmt.Errorf("unknown connector %q", cfg.Connector)
	}
}
