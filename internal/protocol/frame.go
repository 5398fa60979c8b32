package protocol

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Wire constants for the CC-Ease framing.
const (
	// Esc is the reserved escape byte. It prefixes every delimiter and is
	// doubled when it appears literally inside data or checksum bytes.
	Esc byte = 0x07

	startSuffix byte = 0xF0
	endSuffix   byte = 0x0F
	ackSuffix   byte = 0xF3

	// MaxDataLength is the maximum message payload size in bytes.
	MaxDataLength = 64

	// checksum = (sum(cmd_hi, cmd_lo, length, data...) + 173) & 0xff
	checksumBias = 173
)

var (
	startMarker = []byte{Esc, startSuffix}
	endMarker   = []byte{Esc, endSuffix}
	ackMarker   = []byte{Esc, ackSuffix}
)

// validCommands is the allow-list of command low-bytes that may appear in a
// received message. Anything else is treated as garbage by the scanner.
var validCommands = [256]bool{}

func init() {
	for _, c := range []byte{
		0x02, 0x04, 0x0C, 0x0E,
		0x10, 0x12, 0x14, 0x1A,
		0x38, 0x3C, 0x3E, 0x40,
		0x66, 0x68, 0x6A,
		0x70, 0x72, 0x74,
		0x98, 0x9C, 0x9E,
		0xA2, 0xAA, 0xCA, 0xCE,
		0xD2, 0xD6, 0xDA, 0xDE,
		0xE0, 0xE2, 0xE6, 0xEA, 0xEC,
	} {
		validCommands[c] = true
	}
}

// ValidCommand reports whether cmd may appear as the command of a received
// message.
func ValidCommand(cmd uint16) bool {
	return cmd <= 0xFF && validCommands[byte(cmd)]
}

// Frame is a complete unit of the wire protocol: either a bare
// acknowledgement or a message. Consumers dispatch with a type switch over
// Ack and *Message.
type Frame interface {
	fmt.Stringer
	frame()
}

// Ack is the bare two-byte acknowledgement marker.
type Ack struct{}

func (Ack) frame() {}

func (Ack) String() string { return "ack" }

// Message is a command plus its unescaped payload. The checksum has already
// been verified by the time a Message exists.
type Message struct {
	Cmd  uint16
	Data []byte
}

func (*Message) frame() {}

func (m *Message) String() string {
	return fmt.Sprintf("msg{cmd=0x%02x, data=%s}", m.Cmd, hex.EncodeToString(m.Data))
}

// Checksum computes the frame checksum over the unescaped
// (cmd_hi, cmd_lo, length, data...) bytes.
func Checksum(buf []byte) byte {
	var sum int
	for _, b := range buf {
		sum += int(b)
	}
	return byte((sum + checksumBias) & 0xFF)
}

// Escape doubles every occurrence of the escape byte in msg.
func Escape(msg []byte) []byte {
	out := make([]byte, 0, len(msg))
	for _, b := range msg {
		if b == Esc {
			out = append(out, Esc)
		}
		out = append(out, b)
	}
	return out
}

// Unescape collapses doubled escape bytes back to a single occurrence.
func Unescape(msg []byte) []byte {
	out := make([]byte, 0, len(msg))
	for i := 0; i < len(msg); i++ {
		out = append(out, msg[i])
		if msg[i] == Esc && i+1 < len(msg) && msg[i+1] == Esc {
			i++
		}
	}
	return out
}

// Encode builds a complete wire frame for cmd and data.
//
// len(data) must not exceed MaxDataLength; violating this is a caller
// contract violation, not a recoverable condition.
func Encode(cmd uint16, data []byte) []byte {
	payload := make([]byte, 3, 3+len(data))
	binary.BigEndian.PutUint16(payload, cmd)
	payload[2] = byte(len(data))
	payload = append(payload, data...)

	frame := make([]byte, 0, len(payload)*2+6)
	frame = append(frame, startMarker...)
	frame = append(frame, payload[:3]...)
	frame = append(frame, Escape(payload[3:])...)
	frame = append(frame, Escape([]byte{Checksum(payload)})...)
	frame = append(frame, endMarker...)
	return frame
}

// EncodeAck returns the bare acknowledgement marker. The protocol requires
// the receiving side to acknowledge every message it accepts.
func EncodeAck() []byte {
	out := make([]byte, len(ackMarker))
	copy(out, ackMarker)
	return out
}
