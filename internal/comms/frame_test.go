package comms

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	frame, err := EncodeFrame(EventFrequencies, payload)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	code, got, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if code != EventFrequencies {
		t.Fatalf("code = %v, want %v", code, EventFrequencies)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %x, want %x", got, payload)
	}
}

func TestFrameEmptyPayload(t *testing.T) {
	frame, err := EncodeFrame(EventStart, nil)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if len(frame) != frameHeaderLen+frameCRCLen {
		t.Fatalf("frame length = %d, want %d", len(frame), frameHeaderLen+frameCRCLen)
	}
	code, payload, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if code != EventStart || len(payload) != 0 {
		t.Fatalf("decoded code=%v payload=%x", code, payload)
	}
}

func TestDecodeFrameRejectsBadSync(t *testing.T) {
	frame, err := EncodeFrame(EventHeartbeat, []byte{1})
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	frame[0] = 0x00
	if _, _, err := DecodeFrame(frame); !errors.Is(err, ErrBadSync) {
		t.Fatalf("err = %v, want ErrBadSync", err)
	}
}

func TestDecodeFrameRejectsTruncated(t *testing.T) {
	frame, err := EncodeFrame(EventHeartbeat, []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if _, _, err := DecodeFrame(frame[:len(frame)-1]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestDecodeFrameRejectsBitFlips(t *testing.T) {
	frame, err := EncodeFrame(EventPing, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	// Flip every bit past the sync pattern, one at a time.
	for i := 2; i < len(frame); i++ {
		for bit := 0; bit < 8; bit++ {
			bad := append([]byte(nil), frame...)
			bad[i] ^= 1 << bit
			_, _, err := DecodeFrame(bad)
			if err == nil {
				t.Fatalf("bit flip at byte %d bit %d went undetected", i, bit)
			}
		}
	}
}
