package comms

import (
	"errors"
	"fmt"
)

var (
	// ErrBadSync reports a frame that does not begin with the sync word.
	ErrBadSync = errors.New("comms: bad sync bytes")
	// ErrTruncated reports a frame shorter than its header claims.
	ErrTruncated = errors.New("comms: truncated frame")
	// ErrChecksum reports a frame whose CRC residue is non-zero.
	ErrChecksum = errors.New("comms: checksum mismatch")
	// ErrCommandTimeout reports a command that was never acknowledged.
	ErrCommandTimeout = errors.New("comms: command timed out waiting for ack")
	// ErrNoHeartbeat reports a session start that never saw a heartbeat.
	ErrNoHeartbeat = errors.New("comms: no heartbeat received")
	// ErrNoActiveSession reports an operation on a session that is not running.
	ErrNoActiveSession = errors.New("comms: no active session")
	// ErrCommandInFlight reports a second command of a type already pending.
	// Ack correlation is keyed by the command's fixed id, so only one
	// command of a given type may be outstanding at a time.
	ErrCommandInFlight = errors.New("comms: command of this type already in flight")
)

// NackError reports a command explicitly rejected by the payload.
type NackError struct {
	Command CommandID
}

func (e *NackError) Error() string {
	return fmt.Sprintf("comms: command %s nacked by payload", e.Command)
}
