package comms

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Packet is one message on the payload link. Every concrete packet owns a
// fixed little-endian payload layout; the frame checksum is big-endian (see
// frame.go).
type Packet interface {
	Code() EventCode
	EncodePayload() ([]byte, error)
}

// packetDecoders maps a wire code to its payload decoder. Codes absent from
// the table decode to *UnknownPacket.
var packetDecoders = map[EventCode]func(payload []byte) (Packet, error){
	EventHeartbeat:     decodeHeartbeat,
	EventException:     decodeException,
	EventFrequencies:   decodeFrequencies,
	EventOptions:       decodeOptions,
	EventUpgradeStatus: decodeUpgradeStatus,
	EventPing:          decodePing,
	EventVehicle:       decodeVehicle,
	EventCone:          decodeCone,
	EventAck:           decodeAck,
	EventGetFreq:       decodeGetFreq,
	EventSetFreq:       decodeSetFreq,
	EventGetOpt:        decodeGetOpt,
	EventSetOpt:        decodeSetOpt,
	EventStart:         decodeStart,
	EventStop:          decodeStop,
	EventUpgrade:       decodeUpgrade,
}

func decodePacket(code EventCode, payload []byte) (Packet, error) {
	decode, ok := packetDecoders[code]
	if !ok {
		return &UnknownPacket{EventCode: code, Payload: append([]byte(nil), payload...)}, nil
	}
	p, err := decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", code, err)
	}
	return p, nil
}

// byteReader walks a payload buffer and records the first shortfall instead
// of forcing a length check at every field.
type byteReader struct {
	buf []byte
	off int
	err error
}

func (r *byteReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrTruncated, n, r.off, len(r.buf)-r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *byteReader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *byteReader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *byteReader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *byteReader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *byteReader) i32() int32     { return int32(r.u32()) }
func (r *byteReader) f32() float32   { return math.Float32frombits(r.u32()) }
func (r *byteReader) rest() []byte   { return r.take(len(r.buf) - r.off) }
func (r *byteReader) remaining() int { return len(r.buf) - r.off }

func (r *byteReader) str16() string {
	n := int(r.u16())
	b := r.take(n)
	return string(b)
}

func (r *byteReader) finish() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return fmt.Errorf("comms: %d trailing payload bytes", len(r.buf)-r.off)
	}
	return nil
}

// byteWriter builds a payload buffer field by field.
type byteWriter struct {
	buf []byte
}

func (w *byteWriter) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *byteWriter) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *byteWriter) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *byteWriter) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *byteWriter) i32(v int32)  { w.u32(uint32(v)) }
func (w *byteWriter) f32(v float32) {
	w.u32(math.Float32bits(v))
}

func (w *byteWriter) str16(s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("comms: string too long: %d", len(s))
	}
	w.u16(uint16(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

// timestamps travel as millisecond unix time.

func encodeTimestamp(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixMilli())
}

func decodeTimestamp(ms uint64) time.Time {
	return time.UnixMilli(int64(ms)).UTC()
}

// HeartbeatPacket reports payload component health once per beat period.
type HeartbeatPacket struct {
	SystemState  uint8
	SDRState     uint8
	SensorState  uint8
	StorageState uint8
	SwitchState  uint8
	Timestamp    time.Time
}

func (p *HeartbeatPacket) Code() EventCode { return EventHeartbeat }

func (p *HeartbeatPacket) EncodePayload() ([]byte, error) {
	var w byteWriter
	w.u8(p.SystemState)
	w.u8(p.SDRState)
	w.u8(p.SensorState)
	w.u8(p.StorageState)
	w.u8(p.SwitchState)
	w.u64(encodeTimestamp(p.Timestamp))
	return w.buf, nil
}

func decodeHeartbeat(payload []byte) (Packet, error) {
	r := byteReader{buf: payload}
	p := &HeartbeatPacket{
		SystemState:  r.u8(),
		SDRState:     r.u8(),
		SensorState:  r.u8(),
		StorageState: r.u8(),
		SwitchState:  r.u8(),
		Timestamp:    decodeTimestamp(r.u64()),
	}
	return p, r.finish()
}

// ExceptionPacket carries a remote error and its traceback text.
type ExceptionPacket struct {
	Exception string
	Traceback string
}

func (p *ExceptionPacket) Code() EventCode { return EventException }

func (p *ExceptionPacket) EncodePayload() ([]byte, error) {
	var w byteWriter
	if err := w.str16(p.Exception); err != nil {
		return nil, err
	}
	if err := w.str16(p.Traceback); err != nil {
		return nil, err
	}
	return w.buf, nil
}

func decodeException(payload []byte) (Packet, error) {
	r := byteReader{buf: payload}
	p := &ExceptionPacket{
		Exception: r.str16(),
		Traceback: r.str16(),
	}
	return p, r.finish()
}

// FrequenciesPacket broadcasts the payload's current target frequencies.
type FrequenciesPacket struct {
	Frequencies []uint32
}

func (p *FrequenciesPacket) Code() EventCode { return EventFrequencies }

func (p *FrequenciesPacket) EncodePayload() ([]byte, error) {
	if len(p.Frequencies) > math.MaxUint8 {
		return nil, fmt.Errorf("comms: too many frequencies: %d", len(p.Frequencies))
	}
	var w byteWriter
	w.u8(uint8(len(p.Frequencies)))
	for _, f := range p.Frequencies {
		w.u32(f)
	}
	return w.buf, nil
}

func decodeFrequencies(payload []byte) (Packet, error) {
	r := byteReader{buf: payload}
	count := int(r.u8())
	p := &FrequenciesPacket{}
	for i := 0; i < count; i++ {
		p.Frequencies = append(p.Frequencies, r.u32())
	}
	return p, r.finish()
}

// OptionsPacket reports the payload option set for a scope (see options.go).
type OptionsPacket struct {
	Options Options
}

func (p *OptionsPacket) Code() EventCode { return EventOptions }

func (p *OptionsPacket) EncodePayload() ([]byte, error) {
	return p.Options.encode()
}

func decodeOptions(payload []byte) (Packet, error) {
	opts, err := decodeOptionSet(payload)
	if err != nil {
		return nil, err
	}
	return &OptionsPacket{Options: opts}, nil
}

// UpgradeStatusPacket reports firmware upgrade progress.
type UpgradeStatusPacket struct {
	State   uint8
	Message string
}

// Upgrade status states.
const (
	UpgradeReady    uint8 = 0x00
	UpgradeProgress uint8 = 0x01
	UpgradeComplete uint8 = 0xFE
	UpgradeFailed   uint8 = 0xFF
)

func (p *UpgradeStatusPacket) Code() EventCode { return EventUpgradeStatus }

func (p *UpgradeStatusPacket) EncodePayload() ([]byte, error) {
	var w byteWriter
	w.u8(p.State)
	if err := w.str16(p.Message); err != nil {
		return nil, err
	}
	return w.buf, nil
}

func decodeUpgradeStatus(payload []byte) (Packet, error) {
	r := byteReader{buf: payload}
	p := &UpgradeStatusPacket{
		State:   r.u8(),
		Message: r.str16(),
	}
	return p, r.finish()
}

// PingPacket reports one detected collar transmission. Latitude and
// longitude travel as degrees scaled by 1e7, altitude as meters scaled by
// 10.
type PingPacket struct {
	Timestamp time.Time
	Lat       float64
	Lon       float64
	Alt       float64
	TxPower   float32
	TxFreq    uint32
}

const pingMarker = 0x01

func (p *PingPacket) Code() EventCode { return EventPing }

func (p *PingPacket) EncodePayload() ([]byte, error) {
	var w byteWriter
	w.u8(pingMarker)
	w.u64(encodeTimestamp(p.Timestamp))
	w.i32(int32(math.Round(p.Lat * 1e7)))
	w.i32(int32(math.Round(p.Lon * 1e7)))
	w.u16(uint16(math.Round(p.Alt * 10)))
	w.f32(p.TxPower)
	w.u32(p.TxFreq)
	return w.buf, nil
}

func decodePing(payload []byte) (Packet, error) {
	r := byteReader{buf: payload}
	r.u8() // marker
	p := &PingPacket{
		Timestamp: decodeTimestamp(r.u64()),
		Lat:       float64(r.i32()) / 1e7,
		Lon:       float64(r.i32()) / 1e7,
		Alt:       float64(r.u16()) / 10,
		TxPower:   r.f32(),
		TxFreq:    r.u32(),
	}
	return p, r.finish()
}

// VehiclePacket reports the vehicle's position fix.
type VehiclePacket struct {
	Timestamp time.Time
	Lat       float64
	Lon       float64
	Alt       float64
	Heading   float64
}

func (p *VehiclePacket) Code() EventCode { return EventVehicle }

func (p *VehiclePacket) EncodePayload() ([]byte, error) {
	var w byteWriter
	w.u8(pingMarker)
	w.u64(encodeTimestamp(p.Timestamp))
	w.i32(int32(math.Round(p.Lat * 1e7)))
	w.i32(int32(math.Round(p.Lon * 1e7)))
	w.u16(uint16(math.Round(p.Alt * 10)))
	w.u16(uint16(math.Round(p.Heading * 10)))
	return w.buf, nil
}

func decodeVehicle(payload []byte) (Packet, error) {
	r := byteReader{buf: payload}
	r.u8() // marker
	p := &VehiclePacket{
		Timestamp: decodeTimestamp(r.u64()),
		Lat:       float64(r.i32()) / 1e7,
		Lon:       float64(r.i32()) / 1e7,
		Alt:       float64(r.u16()) / 10,
		Heading:   float64(r.u16()) / 10,
	}
	return p, r.finish()
}

// ConePacket reports a directional signal observation: position, received
// power, and antenna bearing.
type ConePacket struct {
	Timestamp time.Time
	Lat       float64
	Lon       float64
	Alt       float64
	Power     float32
	Heading   float64
}

func (p *ConePacket) Code() EventCode { return EventCone }

func (p *ConePacket) EncodePayload() ([]byte, error) {
	var w byteWriter
	w.u8(pingMarker)
	w.u64(encodeTimestamp(p.Timestamp))
	w.i32(int32(math.Round(p.Lat * 1e7)))
	w.i32(int32(math.Round(p.Lon * 1e7)))
	w.u16(uint16(math.Round(p.Alt * 10)))
	w.f32(p.Power)
	w.u16(uint16(math.Round(p.Heading * 10)))
	return w.buf, nil
}

func decodeCone(payload []byte) (Packet, error) {
	r := byteReader{buf: payload}
	r.u8() // marker
	p := &ConePacket{
		Timestamp: decodeTimestamp(r.u64()),
		Lat:       float64(r.i32()) / 1e7,
		Lon:       float64(r.i32()) / 1e7,
		Alt:       float64(r.u16()) / 10,
		Power:     r.f32(),
		Heading:   float64(r.u16()) / 10,
	}
	return p, r.finish()
}

// AckPacket acknowledges or rejects a command by its fixed id.
type AckPacket struct {
	CommandID CommandID
	Ack       bool
	Timestamp time.Time
}

func (p *AckPacket) Code() EventCode { return EventAck }

func (p *AckPacket) EncodePayload() ([]byte, error) {
	var w byteWriter
	w.u8(uint8(p.CommandID))
	if p.Ack {
		w.u8(1)
	} else {
		w.u8(0)
	}
	w.u64(encodeTimestamp(p.Timestamp))
	return w.buf, nil
}

func decodeAck(payload []byte) (Packet, error) {
	r := byteReader{buf: payload}
	p := &AckPacket{
		CommandID: CommandID(r.u8()),
		Ack:       r.u8() != 0,
		Timestamp: decodeTimestamp(r.u64()),
	}
	return p, r.finish()
}

// GetFreqPacket requests the payload's target frequency list.
type GetFreqPacket struct{}

func (p *GetFreqPacket) Code() EventCode                { return EventGetFreq }
func (p *GetFreqPacket) EncodePayload() ([]byte, error) { return nil, nil }

func decodeGetFreq(payload []byte) (Packet, error) {
	r := byteReader{buf: payload}
	return &GetFreqPacket{}, r.finish()
}

// SetFreqPacket commands a new target frequency list.
type SetFreqPacket struct {
	Frequencies []uint32
}

func (p *SetFreqPacket) Code() EventCode { return EventSetFreq }

func (p *SetFreqPacket) EncodePayload() ([]byte, error) {
	return (&FrequenciesPacket{Frequencies: p.Frequencies}).EncodePayload()
}

func decodeSetFreq(payload []byte) (Packet, error) {
	inner, err := decodeFrequencies(payload)
	if err != nil {
		return nil, err
	}
	return &SetFreqPacket{Frequencies: inner.(*FrequenciesPacket).Frequencies}, nil
}

// GetOptPacket requests the payload options at a given scope.
type GetOptPacket struct {
	Scope OptionScope
}

func (p *GetOptPacket) Code() EventCode { return EventGetOpt }

func (p *GetOptPacket) EncodePayload() ([]byte, error) {
	if !p.Scope.valid() {
		return nil, fmt.Errorf("comms: invalid option scope %d", p.Scope)
	}
	return []byte{uint8(p.Scope)}, nil
}

func decodeGetOpt(payload []byte) (Packet, error) {
	r := byteReader{buf: payload}
	p := &GetOptPacket{Scope: OptionScope(r.u8())}
	if err := r.finish(); err != nil {
		return nil, err
	}
	if !p.Scope.valid() {
		return nil, fmt.Errorf("comms: invalid option scope %d", p.Scope)
	}
	return p, nil
}

// SetOptPacket commands new payload options at a given scope.
type SetOptPacket struct {
	Options Options
}

func (p *SetOptPacket) Code() EventCode { return EventSetOpt }

func (p *SetOptPacket) EncodePayload() ([]byte, error) {
	return p.Options.encode()
}

func decodeSetOpt(payload []byte) (Packet, error) {
	opts, err := decodeOptionSet(payload)
	if err != nil {
		return nil, err
	}
	return &SetOptPacket{Options: opts}, nil
}

// StartPacket commands the payload to start the mission software.
type StartPacket struct{}

func (p *StartPacket) Code() EventCode                { return EventStart }
func (p *StartPacket) EncodePayload() ([]byte, error) { return nil, nil }

func decodeStart(payload []byte) (Packet, error) {
	r := byteReader{buf: payload}
	return &StartPacket{}, r.finish()
}

// StopPacket commands the payload to stop the mission software.
type StopPacket struct{}

func (p *StopPacket) Code() EventCode                { return EventStop }
func (p *StopPacket) EncodePayload() ([]byte, error) { return nil, nil }

func decodeStop(payload []byte) (Packet, error) {
	r := byteReader{buf: payload}
	return &StopPacket{}, r.finish()
}

// UpgradePacket carries one chunk of a firmware image.
type UpgradePacket struct {
	SeqNum     uint16
	NumPackets uint16
	Data       []byte
}

func (p *UpgradePacket) Code() EventCode { return EventUpgrade }

func (p *UpgradePacket) EncodePayload() ([]byte, error) {
	var w byteWriter
	w.u16(p.SeqNum)
	w.u16(p.NumPackets)
	w.buf = append(w.buf, p.Data...)
	return w.buf, nil
}

func decodeUpgrade(payload []byte) (Packet, error) {
	r := byteReader{buf: payload}
	p := &UpgradePacket{
		SeqNum:     r.u16(),
		NumPackets: r.u16(),
	}
	if r.remaining() > 0 {
		p.Data = append([]byte(nil), r.rest()...)
	}
	return p, r.finish()
}

// UnknownPacket preserves frames whose code has no registered decoder.
type UnknownPacket struct {
	EventCode EventCode
	Payload   []byte
}

func (p *UnknownPacket) Code() EventCode                { return p.EventCode }
func (p *UnknownPacket) EncodePayload() ([]byte, error) { return p.Payload, nil }
