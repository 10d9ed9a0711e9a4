package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rctgcs.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "connection:\n  connector: udp-server\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Connection.Port != DefaultLinkPort {
		t.Fatalf("port = %d, want %d", cfg.Connection.Port, DefaultLinkPort)
	}
	if cfg.Timeouts.Watchdog != 30*time.Second {
		t.Fatalf("watchdog = %v", cfg.Timeouts.Watchdog)
	}
	if cfg.Estimator.GridSize != 25 || cfg.Estimator.CellSizeM != 1 {
		t.Fatalf("estimator defaults: %+v", cfg.Estimator)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Fatal("no default database path")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
connection:
  connector: tcp
  host: 10.0.0.5
  port: 9100
logging:
  level: debug
timeouts:
  heartbeat_wait: 45s
  command: 5s
estimator:
  grid_size: 51
  cell_size_m: 0.5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Connection.Connector != ConnectorTCP || cfg.Connection.Host != "10.0.0.5" || cfg.Connection.Port != 9100 {
		t.Fatalf("connection = %+v", cfg.Connection)
	}
	if cfg.Timeouts.HeartbeatWait != 45*time.Second || cfg.Timeouts.Command != 5*time.Second {
		t.Fatalf("timeouts = %+v", cfg.Timeouts)
	}
	if cfg.Estimator.GridSize != 51 || cfg.Estimator.CellSizeM != 0.5 {
		t.Fatalf("estimator = %+v", cfg.Estimator)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"unknown connector", "connection:\n  connector: pigeon\n"},
		{"tcp without host", "connection:\n  connector: tcp\n  host: \"\"\n"},
		{"udp without host", "connection:\n  connector: udp\n  host: \"\"\n"},
		{"serial without device", "connection:\n  connector: serial\n"},
		{"bad port", "connection:\n  connector: udp-server\n  port: 70000\n"},
		{"file logging without path", "logging:\n  log_to_file: true\n  file_path: \"\"\n"},
		{"zero watchdog", "timeouts:\n  watchdog: 0s\n"},
		{"negative cell", "estimator:\n  cell_size_m: -1\n"},
	}
	for _, tc := range cases {
		path := writeConfig(t, tc.body)
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: config accepted", tc.name)
		}
	}
}
