package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ConnectorType identifies which transport backend carries the payload
// link.
type ConnectorType string

const (
	ConnectorUDP       ConnectorType = "udp"
	ConnectorUDPServer ConnectorType = "udp-server"
	ConnectorTCP       ConnectorType = "tcp"
	ConnectorTCPServer ConnectorType = "tcp-server"
	ConnectorSerial    ConnectorType = "serial"

	DefaultLinkPort   = 9000
	DefaultSerialBaud = 57600
)

// ConnectionConfig contains connector-specific link parameters.
type ConnectionConfig struct {
	Connector  ConnectorType `yaml:"connector"`
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	SerialPort string        `yaml:"serial_port"`
	SerialBaud int           `yaml:"serial_baud"`
}

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	LogToFile bool   `yaml:"log_to_file"`
	FilePath  string `yaml:"file_path"`
}

// TimeoutConfig bounds the session's waits.
type TimeoutConfig struct {
	HeartbeatWait time.Duration `yaml:"heartbeat_wait"`
	Watchdog      time.Duration `yaml:"watchdog"`
	Command       time.Duration `yaml:"command"`
}

// EstimatorConfig tunes the precision heatmap grid.
type EstimatorConfig struct {
	GridSize  int     `yaml:"grid_size"`
	CellSizeM float64 `yaml:"cell_size_m"`
}

// StorageConfig locates the on-disk mission database.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// Config is the root application configuration.
type Config struct {
	Connection ConnectionConfig `yaml:"connection"`
	Logging    LoggingConfig    `yaml:"logging"`
	Timeouts   TimeoutConfig    `yaml:"timeouts"`
	Estimator  EstimatorConfig  `yaml:"estimator"`
	Storage    StorageConfig    `yaml:"storage"`
}

func Default() Config {
	return Config{
		Connection: ConnectionConfig{
			Connector:  ConnectorUDPServer,
			Port:       DefaultLinkPort,
			SerialBaud: DefaultSerialBaud,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Timeouts: TimeoutConfig{
			HeartbeatWait: 30 * time.Second,
			Watchdog:      30 * time.Second,
			Command:       10 * time.Second,
		},
		Estimator: EstimatorConfig{
			GridSize:  25,
			CellSizeM: 1,
		},
		Storage: StorageConfig{
			DatabasePath: "rctgcs.db",
		},
	}
}

// Load reads the file at path, applies defaults for absent fields, and
// validates the result.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	switch c.Connection.Connector {
	case ConnectorUDP, ConnectorTCP:
		if c.Connection.Host == "" {
			return fmt.Errorf("connection.host is required for connector %q", c.Connection.Connector)
		}
	case ConnectorUDPServer, ConnectorTCPServer:
	case ConnectorSerial:
		if c.Connection.SerialPort == "" {
			return fmt.Errorf("connection.serial_port is required for connector %q", c.Connection.Connector)
		}
		if c.Connection.SerialBaud <= 0 {
			return fmt.Errorf("connection.serial_baud must be positive, got %d", c.Connection.SerialBaud)
		}
	default:
		return fmt.Errorf("unknown connector %q", c.Connection.Connector)
	}

	if c.Connection.Port <= 0 || c.Connection.Port > 65535 {
		return fmt.Errorf("connection.port out of range: %d", c.Connection.Port)
	}
	if c.Timeouts.HeartbeatWait <= 0 {
		return fmt.Errorf("timeouts.heartbeat_wait must be positive")
	}
	if c.Timeouts.Watchdog <= 0 {
		return fmt.Errorf("timeouts.watchdog must be positive")
	}
	if c.Timeouts.Command <= 0 {
		return fmt.Errorf("timeouts.command must be positive")
	}
	if c.Estimator.GridSize <= 0 {
		return fmt.Errorf("estimator.grid_size must be positive, got %d", c.Estimator.GridSize)
	}
	if c.Estimator.CellSizeM <= 0 {
		return fmt.Errorf("estimator.cell_size_m must be positive, got %f", c.Estimator.CellSizeM)
	}
	if c.Logging.LogToFile && c.Logging.FilePath == "" {
		return fmt.Errorf("logging.file_path is required when logging.log_to_file is true")
	}
	return nil
}
