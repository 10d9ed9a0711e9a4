package sim

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"rctgcs/internal/comms"
	"rctgcs/internal/transport"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startPair wires a simulated payload to a GCS session over an in-memory
// link and returns the session.
func startPair(t *testing.T) *comms.GCSSession {
	t.Helper()
	groundTx, airTx := transport.NewMemoryPair()

	payload := New(testLogger(), airTx, Config{HeartbeatPeriod: 10 * time.Millisecond})
	if err := payload.Start(); err != nil {
		t.Fatalf("sim Start: %v", err)
	}
	t.Cleanup(payload.Stop)

	return comms.NewGCSSession(testLogger(), groundTx)
}

func TestUpgradeRejectsOutOfOrderChunk(t *testing.T) {
	gcs := startPair(t)

	var mu sync.Mutex
	var states []uint8
	gcs.RegisterCallback(comms.EventUpgradeStatus, func(pkt comms.Packet, _ net.Addr) {
		up, ok := pkt.(*comms.UpgradeStatusPacket)
		if !ok {
			return
		}
		mu.Lock()
		states = append(states, up.State)
		mu.Unlock()
	})
	if err := gcs.Start(2*time.Second, nil); err != nil {
		t.Fatalf("gcs Start: %v", err)
	}
	t.Cleanup(gcs.Stop)

	chunk := &comms.UpgradePacket{SeqNum: 2, NumPackets: 3, Data: []byte{1}}
	err := gcs.SendCommand(chunk, comms.CommandUpgrade, 2*time.Second)
	var nack *comms.NackError
	if !errors.As(err, &nack) {
		t.Fatalf("SendCommand err = %v, want nack", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(states)
		var last uint8
		if n > 0 {
			last = states[n-1]
		}
		mu.Unlock()
		if n > 0 {
			if last != comms.UpgradeFailed {
				t.Fatalf("upgrade state = %d, want failed", last)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("no upgrade status received")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
