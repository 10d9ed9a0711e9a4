package comms

import "testing"

func TestCRC16KnownVector(t *testing.T) {
	// CRC-16/CCITT-FALSE check value for "123456789".
	got := crc16([]byte("123456789"))
	if got != 0x29B1 {
		t.Fatalf("crc16 = %04X, want 29B1", got)
	}
}

func TestCRC16AppendedResidueIsZero(t *testing.T) {
	data := []byte{0xE4, 0xEB, 0x01, 0x01, 0x02, 0x00, 0xAA, 0x55}
	crc := crc16(data)
	whole := append(append([]byte(nil), data...), byte(crc>>8), byte(crc))
	if crc16(whole) != 0 {
		t.Fatalf("residue = %04X, want 0", crc16(whole))
	}
}

func TestCRC16EmptyInput(t *testing.T) {
	if got := crc16(nil); got != 0xFFFF {
		t.Fatalf("crc16(nil) = %04X, want FFFF", got)
	}
}
