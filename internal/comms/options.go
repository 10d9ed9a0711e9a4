package comms

import "fmt"

// OptionScope selects how much of the payload option set a packet carries.
// Scopes are cumulative: Expert includes Base, Engineering includes both.
type OptionScope uint8

const (
	ScopeBase        OptionScope = 0x00
	ScopeExpert      OptionScope = 0x01
	ScopeEngineering OptionScope = 0x02
)

func (s OptionScope) valid() bool {
	return s <= ScopeEngineering
}

func (s OptionScope) String() string {
	switch s {
	case ScopeBase:
		return "base"
	case ScopeExpert:
		return "expert"
	case ScopeEngineering:
		return "engineering"
	}
	return fmt.Sprintf("scope(%d)", uint8(s))
}

// BaseOptions are the operator-facing SDR settings.
type BaseOptions struct {
	CenterFreqHz   uint32
	SamplingFreqHz uint32
	GainDb         float32
}

// ExpertOptions tune the ping detector.
type ExpertOptions struct {
	PingWidthMs float32
	PingSNR     float32
	PingMaxLen  float32
	PingMinLen  float32
}

// EngineeringOptions configure the payload's GPS link and boot behavior.
type EngineeringOptions struct {
	GPSMode   uint8
	GPSBaud   uint32
	GPSDevice string
	Autostart bool
}

// Options is the scope-tagged payload option set. Fields beyond the tagged
// scope are ignored on encode and zero on decode.
type Options struct {
	Scope       OptionScope
	Base        BaseOptions
	Expert      ExpertOptions
	Engineering EngineeringOptions
}

// NewOptions validates the scope tag at construction.
func NewOptions(scope OptionScope) (Options, error) {
	if !scope.valid() {
		return Options{}, fmt.Errorf("comms: invalid option scope %d", scope)
	}
	return Options{Scope: scope}, nil
}

// encode writes the scope byte followed by the cumulative fields for every
// scope level up to and including the tagged one.
func (o Options) encode() ([]byte, error) {
	if !o.Scope.valid() {
		return nil, fmt.Errorf("comms: invalid option scope %d", o.Scope)
	}

	var w byteWriter
	w.u8(uint8(o.Scope))
	w.u32(o.Base.CenterFreqHz)
	w.u32(o.Base.SamplingFreqHz)
	w.f32(o.Base.GainDb)

	if o.Scope >= ScopeExpert {
		w.f32(o.Expert.PingWidthMs)
		w.f32(o.Expert.PingSNR)
		w.f32(o.Expert.PingMaxLen)
		w.f32(o.Expert.PingMinLen)
	}
	if o.Scope >= ScopeEngineering {
		w.u8(o.Engineering.GPSMode)
		w.u32(o.Engineering.GPSBaud)
		if err := w.str16(o.Engineering.GPSDevice); err != nil {
			return nil, err
		}
		if o.Engineering.Autostart {
			w.u8(1)
		} else {
			w.u8(0)
		}
	}
	return w.buf, nil
}

func decodeOptionSet(payload []byte) (Options, error) {
	r := byteReader{buf: payload}
	o := Options{Scope: OptionScope(r.u8())}
	if r.err == nil && !o.Scope.valid() {
		return Options{}, fmt.Errorf("comms: invalid option scope %d", o.Scope)
	}

	o.Base.CenterFreqHz = r.u32()
	o.Base.SamplingFreqHz = r.u32()
	o.Base.GainDb = r.f32()

	if o.Scope >= ScopeExpert {
		o.Expert.PingWidthMs = r.f32()
		o.Expert.PingSNR = r.f32()
		o.Expert.PingMaxLen = r.f32()
		o.Expert.PingMinLen = r.f32()
	}
	if o.Scope >= ScopeEngineering {
		o.Engineering.GPSMode = r.u8()
		o.Engineering.GPSBaud = r.u32()
		o.Engineering.GPSDevice = r.str16()
		o.Engineering.Autostart = r.u8() != 0
	}
	return o, r.finish()
}
