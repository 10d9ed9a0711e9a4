package comms

import "fmt"

// EventCode identifies a packet type on the wire as class<<8|id. Codes
// outside the assigned class range are synthetic dispatch events that never
// appear in a frame.
type EventCode uint16

const (
	EventHeartbeat     EventCode = 0x0101
	EventException     EventCode = 0x0102
	EventFrequencies   EventCode = 0x0201
	EventOptions       EventCode = 0x0202
	EventUpgradeStatus EventCode = 0x0301
	EventPing          EventCode = 0x0401
	EventVehicle       EventCode = 0x0402
	EventCone          EventCode = 0x0403
	EventAck           EventCode = 0x0501
	EventGetFreq       EventCode = 0x0502
	EventSetFreq       EventCode = 0x0503
	EventGetOpt        EventCode = 0x0504
	EventSetOpt        EventCode = 0x0505
	EventStart         EventCode = 0x0507
	EventStop          EventCode = 0x0509
	EventUpgrade       EventCode = 0x050B

	// EventNoHeartbeat fires when the heartbeat watchdog lapses.
	EventNoHeartbeat EventCode = 0xFF01
	// EventUnknown receives packets whose code has no registered handler.
	EventUnknown EventCode = 0xFF02
)

// Class returns the class byte portion of the code.
func (c EventCode) Class() uint8 { return uint8(c >> 8) }

// ID returns the id byte portion of the code.
func (c EventCode) ID() uint8 { return uint8(c) }

func (c EventCode) String() string {
	switch c {
	case EventHeartbeat:
		return "heartbeat"
	case EventException:
		return "exception"
	case EventFrequencies:
		return "frequencies"
	case EventOptions:
		return "options"
	case EventUpgradeStatus:
		return "upgrade_status"
	case EventPing:
		return "ping"
	case EventVehicle:
		return "vehicle"
	case EventCone:
		return "cone"
	case EventAck:
		return "ack"
	case EventGetFreq:
		return "get_freq"
	case EventSetFreq:
		return "set_freq"
	case EventGetOpt:
		return "get_opt"
	case EventSetOpt:
		return "set_opt"
	case EventStart:
		return "start"
	case EventStop:
		return "stop"
	case EventUpgrade:
		return "upgrade"
	case EventNoHeartbeat:
		return "no_heartbeat"
	case EventUnknown:
		return "unknown"
	}
	return fmt.Sprintf("event(0x%04X)", uint16(c))
}

// CommandID is the fixed numeric id of a command packet, used as the ack
// correlation key.
type CommandID uint8

const (
	CommandGetFreq CommandID = 0x02
	CommandSetFreq CommandID = 0x03
	CommandGetOpt  CommandID = 0x04
	CommandSetOpt  CommandID = 0x05
	CommandStart   CommandID = 0x07
	CommandStop    CommandID = 0x09
	CommandUpgrade CommandID = 0x0B
)

func (c CommandID) String() string {
	switch c {
	case CommandGetFreq:
		return "GETF"
	case CommandSetFreq:
		return "SETF"
	case CommandGetOpt:
		return "GETOPT"
	case CommandSetOpt:
		return "SETOPT"
	case CommandStart:
		return "START"
	case CommandStop:
		return "STOP"
	case CommandUpgrade:
		return "UPGRADE"
	}
	return fmt.Sprintf("command(0x%02X)", uint8(c))
}
