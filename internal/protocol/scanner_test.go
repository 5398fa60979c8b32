package protocol

import (
	"bytes"
	"testing"
)

var allCommands = []byte{
	0x02, 0x04, 0x0C, 0x0E,
	0x10, 0x12, 0x14, 0x1A,
	0x38, 0x3C, 0x3E, 0x40,
	0x66, 0x68, 0x6A,
	0x70, 0x72, 0x74,
	0x98, 0x9C, 0x9E,
	0xA2, 0xAA, 0xCA, 0xCE,
	0xD2, 0xD6, 0xDA, 0xDE,
	0xE0, 0xE2, 0xE6, 0xEA, 0xEC,
}

// Round-trip every allow-listed command with payloads of every length,
// deliberately including the escape byte in the data.
func TestDecodeRoundTrip(t *testing.T) {
	for _, cmd := range allCommands {
		for length := 0; length <= MaxDataLength; length++ {
			data := make([]byte, length)
			for i := range data {
				// cycles through 0x00..0xff and hits 0x07 regularly
				data[i] = byte(i*7 + int(cmd))
			}
			if length > 2 {
				data[1] = Esc
				data[2] = Esc
			}

			frame := Encode(uint16(cmd), data)
			consumed, f, st := Decode(frame)
			if st != FrameDecoded {
				t.Fatalf("cmd=0x%02x len=%d: status %v, want FrameDecoded", cmd, length, st)
			}
			if consumed != len(frame) {
				t.Fatalf("cmd=0x%02x len=%d: consumed %d, want %d", cmd, length, consumed, len(frame))
			}
			msg, ok := f.(*Message)
			if !ok {
				t.Fatalf("cmd=0x%02x len=%d: frame %T, want *Message", cmd, length, f)
			}
			if msg.Cmd != uint16(cmd) || !bytes.Equal(msg.Data, data) {
				t.Fatalf("cmd=0x%02x len=%d: round trip mismatch", cmd, length)
			}
		}
	}
}

func TestDecodeAck(t *testing.T) {
	consumed, f, st := Decode([]byte{0x07, 0xF3})
	if st != FrameDecoded {
		t.Fatalf("status = %v, want FrameDecoded", st)
	}
	if consumed != 2 {
		t.Errorf("consumed = %d, want 2", consumed)
	}
	if _, ok := f.(Ack); !ok {
		t.Errorf("frame = %T, want Ack", f)
	}
}

// Flipping any single bit in the payload or checksum must not yield a valid
// message.
func TestDecodeChecksumSensitivity(t *testing.T) {
	data := []byte{0x10, 0x20, 0x30, 0x40}
	frame := Encode(0xCE, data)

	// payload starts after START+header, checksum is the second-to-last
	// pair; flip bits in everything between header and end marker
	for pos := 5; pos < len(frame)-2; pos++ {
		for bit := 0; bit < 8; bit++ {
			mutated := make([]byte, len(frame))
			copy(mutated, frame)
			mutated[pos] ^= 1 << uint(bit)

			_, f, st := Decode(mutated)
			if st == FrameDecoded {
				if msg, ok := f.(*Message); ok && msg.Cmd == 0xCE && bytes.Equal(msg.Data, data) {
					t.Fatalf("flip byte %d bit %d: corrupted frame decoded as the original message", pos, bit)
				}
				// Some mutations legitimately produce a different valid
				// pattern (e.g. an ack marker); those must not carry the
				// original payload, which is checked above.
			}
		}
	}
}

// Garbage, frame, garbage, frame: two Decode passes must recover both
// messages in order, consuming exactly through each end marker.
func TestDecodeResync(t *testing.T) {
	msg1 := Encode(0xCE, []byte{1, 2, 3})
	msg2 := Encode(0xD2, []byte{4, 5})
	buf := append([]byte{0xDE, 0xAD, 0xBE, 0xEF}, msg1...)
	buf = append(buf, 0x55, 0xAA, 0x55)
	buf = append(buf, msg2...)

	consumed, f, st := Decode(buf)
	if st != FrameDecoded {
		t.Fatalf("first pass: status %v", st)
	}
	if want := 4 + len(msg1); consumed != want {
		t.Fatalf("first pass: consumed %d, want %d", consumed, want)
	}
	if m := f.(*Message); m.Cmd != 0xCE || !bytes.Equal(m.Data, []byte{1, 2, 3}) {
		t.Fatalf("first pass: wrong message %v", m)
	}
	buf = buf[consumed:]

	consumed, f, st = Decode(buf)
	if st != FrameDecoded {
		t.Fatalf("second pass: status %v", st)
	}
	if want := 3 + len(msg2); consumed != want {
		t.Fatalf("second pass: consumed %d, want %d", consumed, want)
	}
	if m := f.(*Message); m.Cmd != 0xD2 || !bytes.Equal(m.Data, []byte{4, 5}) {
		t.Fatalf("second pass: wrong message %v", m)
	}
}

func TestDecodeIncomplete(t *testing.T) {
	full := Encode(0xCE, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	tests := []struct {
		name string
		buf  []byte
	}{
		{"lone escape", []byte{0x07}},
		{"bare start marker", full[:2]},
		{"header only", full[:5]},
		{"mid payload", full[:9]},
		{"missing end marker", full[:len(full)-1]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			consumed, f, st := Decode(tt.buf)
			if st != Incomplete {
				t.Errorf("status = %v, want Incomplete", st)
			}
			if consumed != 0 {
				t.Errorf("consumed = %d, want 0", consumed)
			}
			if f != nil {
				t.Errorf("frame = %v, want nil", f)
			}
		})
	}
}

func TestDecodeNoMatch(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"plain garbage", []byte{0x01, 0x02, 0x03, 0xFF}},
		{"start marker with bad command", []byte{0x07, 0xF0, 0x00, 0x03, 0x00, 0xB0, 0x07, 0x0F}},
		{"non-zero command high byte", []byte{0x07, 0xF0, 0x01, 0x3C, 0x00, 0xB9, 0x07, 0x0F}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			consumed, f, st := Decode(tt.buf)
			if st != NoMatch {
				t.Errorf("status = %v, want NoMatch", st)
			}
			if consumed != 0 {
				t.Errorf("consumed = %d, want 0", consumed)
			}
			if f != nil {
				t.Errorf("frame = %v, want nil", f)
			}
		})
	}
}

// A bracketed candidate with a broken checksum is consumed as garbage so the
// scan can move on, even when no valid frame follows.
func TestDecodeSkipsInvalidBracket(t *testing.T) {
	bad := Encode(0xCE, []byte{1, 2, 3})
	bad[6] ^= 0xFF // corrupt payload, checksum now wrong

	consumed, f, st := Decode(bad)
	if st != NoMatch {
		t.Fatalf("status = %v, want NoMatch", st)
	}
	if f != nil {
		t.Fatalf("frame = %v, want nil", f)
	}
	if consumed != len(bad) {
		t.Fatalf("consumed = %d, want %d (whole invalid bracket)", consumed, len(bad))
	}
}

// An invalid bracket followed by a valid frame: one pass consumes through
// the valid frame's end marker and yields it.
func TestDecodeInvalidThenValid(t *testing.T) {
	bad := Encode(0xCE, []byte{9, 9, 9})
	bad[len(bad)-3] ^= 0x01 // corrupt checksum byte
	good := Encode(0xD2, []byte{0x40})
	buf := append(bad, good...)

	consumed, f, st := Decode(buf)
	if st != FrameDecoded {
		t.Fatalf("status = %v, want FrameDecoded", st)
	}
	if consumed != len(buf) {
		t.Fatalf("consumed = %d, want %d", consumed, len(buf))
	}
	if m := f.(*Message); m.Cmd != 0xD2 || !bytes.Equal(m.Data, []byte{0x40}) {
		t.Fatalf("wrong message: %v", m)
	}
}

func TestDecodeAckAfterGarbage(t *testing.T) {
	buf := []byte{0x11, 0x22, 0x07, 0xF3, 0x99}
	consumed, f, st := Decode(buf)
	if st != FrameDecoded {
		t.Fatalf("status = %v, want FrameDecoded", st)
	}
	if _, ok := f.(Ack); !ok {
		t.Fatalf("frame = %T, want Ack", f)
	}
	if consumed != 4 {
		t.Errorf("consumed = %d, want 4 (through the ack marker)", consumed)
	}
}
