package comms

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Frame layout: sync1 sync2 class id len:u16LE payload crc:u16BE. The
// checksum endianness is deliberately opposite the rest of the frame; the
// big-endian placement is what makes the whole-frame CRC residue zero.
const (
	syncByte1 = 0xE4
	syncByte2 = 0xEB

	frameHeaderLen = 6
	frameCRCLen    = 2
)

// EncodeFrame wraps a payload in the wire framing for the given packet code.
func EncodeFrame(code EventCode, payload []byte) ([]byte, error) {
	if len(payload) > math.MaxUint16 {
		return nil, fmt.Errorf("comms: payload too large: %d", len(payload))
	}

	frame := make([]byte, frameHeaderLen+len(payload)+frameCRCLen)
	frame[0] = syncByte1
	frame[1] = syncByte2
	frame[2] = code.Class()
	frame[3] = code.ID()
	binary.LittleEndian.PutUint16(frame[4:6], uint16(len(payload)))
	copy(frame[6:], payload)

	crc := crc16(frame[:frameHeaderLen+len(payload)])
	binary.BigEndian.PutUint16(frame[len(frame)-frameCRCLen:], crc)
	return frame, nil
}

// Encode frames and encodes a packet in one step.
func Encode(p Packet) ([]byte, error) {
	payload, err := p.EncodePayload()
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.Code(), err)
	}
	return EncodeFrame(p.Code(), payload)
}

// DecodeFrame validates framing and integrity and returns the packet code
// and payload slice. The payload aliases the input buffer.
func DecodeFrame(frame []byte) (EventCode, []byte, error) {
	if len(frame) < frameHeaderLen+frameCRCLen {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(frame))
	}
	if frame[0] != syncByte1 || frame[1] != syncByte2 {
		return 0, nil, fmt.Errorf("%w: %02X %02X", ErrBadSync, frame[0], frame[1])
	}

	payloadLen := int(binary.LittleEndian.Uint16(frame[4:6]))
	if len(frame) != frameHeaderLen+payloadLen+frameCRCLen {
		return 0, nil, fmt.Errorf("%w: header says %d payload bytes, frame is %d",
			ErrTruncated, payloadLen, len(frame))
	}
	if crc16(frame) != 0 {
		return 0, nil, fmt.Errorf("%w: residue %04X", ErrChecksum, crc16(frame))
	}

	code := EventCode(uint16(frame[2])<<8 | uint16(frame[3]))
	return code, frame[frameHeaderLen : frameHeaderLen+payloadLen], nil
}

// Decode validates a full frame and decodes its payload into a concrete
// Packet via the registry. Unrecognized codes decode to *UnknownPacket.
func Decode(frame []byte) (Packet, error) {
	code, payload, err := DecodeFrame(frame)
	if err != nil {
		return nil, err
	}
	return decodePacket(code, payload)
}
