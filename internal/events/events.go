// Package events defines the bus topics and payload types the hosting
// application (GUI or headless frontend) consumes.
package events

import (
	"time"

	"rctgcs/internal/estimate"
)

const (
	TopicConnStatus    = "conn.status"
	TopicHeartbeat     = "payload.heartbeat"
	TopicNoHeartbeat   = "payload.no_heartbeat"
	TopicException     = "payload.exception"
	TopicFrequencies   = "payload.frequencies"
	TopicOptions       = "payload.options"
	TopicUpgradeStatus = "payload.upgrade_status"
	TopicNewPing       = "ping.new"
	TopicNewEstimate   = "estimate.new"
	TopicVehicle       = "vehicle.update"
	TopicCone          = "cone.update"
)

// ConnectionState describes the session lifecycle state shown to the
// operator.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
)

// ConnStatus is a bus event snapshot of current session status.
type ConnStatus struct {
	State         ConnectionState
	Err           string
	TransportName string
	Timestamp     time.Time
}

// HeartbeatEvent carries the payload component states from one heartbeat.
type HeartbeatEvent struct {
	SystemState  SystemState
	SDRState     SDRState
	SensorState  SensorState
	StorageState StorageState
	SwitchState  uint8
	Timestamp    time.Time
}

// ExceptionEvent carries a remote error report.
type ExceptionEvent struct {
	Exception string
	Traceback string
}

// FrequenciesEvent carries the payload's current target frequency set.
type FrequenciesEvent struct {
	Frequencies []uint32
}

// UpgradeStatusEvent reports firmware upgrade progress.
type UpgradeStatusEvent struct {
	State   uint8
	Message string
}

// PingEvent announces one received collar ping.
type PingEvent struct {
	Ping estimate.Ping
}

// EstimateEvent announces a refreshed transmitter estimate.
type EstimateEvent struct {
	Freq     uint32
	Estimate estimate.Estimate
}

// VehicleEvent announces a vehicle track point.
type VehicleEvent struct {
	Position estimate.VehiclePosition
}

// ConeEvent announces a directional signal observation.
type ConeEvent struct {
	Lat     float64
	Lon     float64
	Alt     float64
	Power   float64
	Heading float64
	Time    time.Time
}
