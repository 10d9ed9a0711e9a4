package comms

import "testing"

func testOptions() Options {
	return Options{
		Scope: ScopeEngineering,
		Base: BaseOptions{
			CenterFreqHz:   173_500_000,
			SamplingFreqHz: 2_000_000,
			GainDb:         22.5,
		},
		Expert: ExpertOptions{
			PingWidthMs: 36,
			PingSNR:     0.1,
			PingMaxLen:  1.5,
			PingMinLen:  0.5,
		},
		Engineering: EngineeringOptions{
			GPSMode:   1,
			GPSBaud:   9600,
			GPSDevice: "/dev/ttyUSB0",
			Autostart: true,
		},
	}
}

func TestOptionsRoundTripPerScope(t *testing.T) {
	for _, scope := range []OptionScope{ScopeBase, ScopeExpert, ScopeEngineering} {
		opts := testOptions()
		opts.Scope = scope

		out := wireRoundTrip(t, &OptionsPacket{Options: opts}).(*OptionsPacket).Options
		if out.Scope != scope {
			t.Fatalf("scope = %v, want %v", out.Scope, scope)
		}
		if out.Base != opts.Base {
			t.Fatalf("scope %v: base changed: %+v", scope, out.Base)
		}
		if scope >= ScopeExpert && out.Expert != opts.Expert {
			t.Fatalf("scope %v: expert changed: %+v", scope, out.Expert)
		}
		if scope < ScopeExpert && out.Expert != (ExpertOptions{}) {
			t.Fatalf("scope %v: expert fields leaked: %+v", scope, out.Expert)
		}
		if scope >= ScopeEngineering && out.Engineering != opts.Engineering {
			t.Fatalf("scope %v: engineering changed: %+v", scope, out.Engineering)
		}
	}
}

func TestSetOptRoundTrip(t *testing.T) {
	in := &SetOptPacket{Options: testOptions()}
	out := wireRoundTrip(t, in).(*SetOptPacket)
	if out.Options != in.Options {
		t.Fatalf("round trip changed options: %+v", out.Options)
	}
}

func TestNewOptionsRejectsInvalidScope(t *testing.T) {
	if _, err := NewOptions(OptionScope(3)); err == nil {
		t.Fatal("expected error for scope 3")
	}
}

func TestScopeOrdering(t *testing.T) {
	if !(ScopeBase < ScopeExpert && ScopeExpert < ScopeEngineering) {
		t.Fatal("scope ordering broken")
	}
}
