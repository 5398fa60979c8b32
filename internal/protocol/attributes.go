package protocol

import (
	"fmt"
	"strconv"
)

// Commands whose payloads carry known attributes.
const (
	CmdBootloaderData = 0x68
	CmdFirmwareData   = 0x6A
	CmdConnectorData  = 0xA2
	CmdFanData        = 0xCE
	CmdTempData       = 0xD2
)

// AttrKind is the semantic type of a decoded attribute value.
type AttrKind int

const (
	KindNumber AttrKind = iota
	KindText
)

// Attribute is a named decoding rule: which message command carries it,
// where its bit-field lives and how to interpret it. The set of attributes
// is fixed at process start; Attribute values are comparable and usable as
// map keys.
type Attribute struct {
	Name      string
	Cmd       uint16
	BitOffset int
	BitSize   int
	Kind      AttrKind
}

func (a Attribute) String() string { return a.Name }

// The known controller readings.
var (
	AirflowExhaust = Attribute{"airflow_exhaust", CmdFanData, 6 * 8, 8, KindNumber}
	AirflowSupply  = Attribute{"airflow_supply", CmdFanData, 7 * 8, 8, KindNumber}
	FanSpeedMode   = Attribute{"fan_speed_mode", CmdFanData, 8 * 8, 8, KindNumber}

	TempComfort = Attribute{"temp_comfort", CmdTempData, 0 * 8, 8, KindNumber}
	TempOutside = Attribute{"temp_outside", CmdTempData, 1 * 8, 8, KindNumber}
	TempSupply  = Attribute{"temp_supply", CmdTempData, 2 * 8, 8, KindNumber}
	TempReturn  = Attribute{"temp_return", CmdTempData, 3 * 8, 8, KindNumber}
	TempExhaust = Attribute{"temp_exhaust", CmdTempData, 4 * 8, 8, KindNumber}

	BootloaderVersion = Attribute{"bootloader_version", CmdBootloaderData, 0, 16, KindNumber}
	BootloaderName    = Attribute{"bootloader_name", CmdBootloaderData, 3 * 8, 10 * 8, KindText}
	FirmwareVersion   = Attribute{"firmware_version", CmdFirmwareData, 0, 16, KindNumber}
	FirmwareName      = Attribute{"firmware_name", CmdFirmwareData, 3 * 8, 10 * 8, KindText}
	ConnectorVersion  = Attribute{"connector_version", CmdConnectorData, 0, 16, KindNumber}
)

// Attributes returns the full static attribute set.
func Attributes() []Attribute {
	return []Attribute{
		AirflowExhaust, AirflowSupply, FanSpeedMode,
		TempComfort, TempOutside, TempSupply, TempReturn, TempExhaust,
		BootloaderVersion, BootloaderName, FirmwareVersion, FirmwareName,
		ConnectorVersion,
	}
}

// Value is a cooked attribute value: a number or a text string depending on
// the attribute's kind.
type Value struct {
	Kind   AttrKind
	Number float64
	Text   string
}

func (v Value) Equal(o Value) bool {
	return v.Kind == o.Kind && v.Number == o.Number && v.Text == o.Text
}

func (v Value) String() string {
	if v.Kind == KindText {
		return v.Text
	}
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}

// ExtractBits reads size bits starting at bit offset from data, numbering
// bits most-significant-first within the byte sequence, and interprets them
// as an unsigned integer. ok is false when the field does not fit in data
// or exceeds 64 bits.
func ExtractBits(data []byte, offset, size int) (value uint64, ok bool) {
	if offset < 0 || size <= 0 || size > 64 || offset+size > len(data)*8 {
		return 0, false
	}
	var v uint64
	for i := offset; i < offset+size; i++ {
		bit := (data[i/8] >> (7 - uint(i)%8)) & 1
		v = v<<1 | uint64(bit)
	}
	return v, true
}

// Decode extracts the attribute's bit-field from a message payload and
// applies the fixed cooking rule. Temperatures (command 0xD2) are reported
// in degrees Celsius as raw/2 - 20; everything else is the raw unsigned
// value. Text attributes are decoded as latin-1.
func (a Attribute) Decode(data []byte) (Value, bool) {
	if a.Kind == KindText {
		if a.BitOffset%8 != 0 || a.BitSize%8 != 0 {
			return Value{}, false
		}
		lo := a.BitOffset / 8
		hi := lo + a.BitSize/8
		if hi > len(data) {
			return Value{}, false
		}
		return Value{Kind: KindText, Text: latin1(data[lo:hi])}, true
	}

	raw, ok := ExtractBits(data, a.BitOffset, a.BitSize)
	if !ok {
		return Value{}, false
	}
	v := float64(raw)
	if a.Cmd == CmdTempData {
		v = v/2 - 20
	}
	return Value{Kind: KindNumber, Number: v}, true
}

// latin1 maps each byte to the identical Unicode code point.
func latin1(b []byte) string {
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}

// AttributeByName looks an attribute up by its name.
func AttributeByName(name string) (Attribute, error) {
	for _, a := range Attributes() {
		if a.Name == name {
			return a, nil
		}
	}
	return Attribute{}, fmt.Errorf("unknown attribute %q", name)
}
