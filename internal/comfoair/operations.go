package comfoair

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hvactools/comfoair/internal/logging"
)

// Keypad key bits for EmulateKeypress. Combine with bitwise or.
const (
	KeyFanAbsent = 1 << iota
	KeyFanLow
	KeyFanMid
	KeyFanHigh
	KeyTempUp
	KeyTempDown
)

const (
	// MaxKeypressMillis is the longest emulatable keypress duration.
	MaxKeypressMillis = 4080

	// MinFanSpeed..MaxFanSpeed is the valid fan speed range
	// (1=away, 2=low, 3=mid, 4=high on the CC-Ease panel).
	MinFanSpeed = 1
	MaxFanSpeed = 4
)

// ClockCommand builds the transaction that sets the controller's real-time
// clock to t (weekday, hour and minute; the protocol carries no date).
func ClockCommand(t time.Time) *CommandPair {
	// controller weekday numbering: Saturday=0
	data := []byte{
		byte((int(t.Weekday()) + 1) % 7),
		byte(t.Hour()),
		byte(t.Minute()),
	}
	return NewCommandPair(
		Command{Cmd: 0x35, Data: data},
		&Command{Cmd: 0x3C},
	)
}

// KeypressCommand builds the transaction that simulates pressing one or
// more CC-Ease keypad keys. keyMask combines the Key* bits (1..63); millis
// is mapped onto the controller's duration byte within 0..4080 ms.
func KeypressCommand(keyMask int, millis int) (*CommandPair, error) {
	if keyMask < 1 || keyMask > 63 {
		return nil, fmt.Errorf("comfoair: invalid key mask %d (want 1..63)", keyMask)
	}
	if millis < 0 || millis > MaxKeypressMillis {
		return nil, fmt.Errorf("comfoair: invalid keypress duration %dms (want 0..%d)", millis, MaxKeypressMillis)
	}

	duration := byte(max(millis, 1) * 255 / MaxKeypressMillis)
	keyStatus := make([]byte, 7)
	for key := 0; key < 6; key++ {
		if keyMask&(1<<key) != 0 {
			keyStatus[key] = duration
		}
	}

	return NewCommandPair(
		Command{Cmd: 0x37, Data: keyStatus},
		&Command{Cmd: 0x3C},
	), nil
}

// FanSpeedCommand builds the transaction that sets the ventilation level.
// The controller does not confirm this command beyond the acknowledgement.
func FanSpeedCommand(speed int) (*CommandPair, error) {
	if speed < MinFanSpeed || speed > MaxFanSpeed {
		return nil, fmt.Errorf("comfoair: invalid fan speed %d (want %d..%d)", speed, MinFanSpeed, MaxFanSpeed)
	}
	return NewCommandPair(
		Command{Cmd: 0x99, Data: []byte{byte(speed)}},
		nil,
	), nil
}

// BootloaderVersionCommand builds the bootloader version query (answered on
// command 0x68).
func BootloaderVersionCommand() *CommandPair {
	return NewCommandPair(Command{Cmd: 0x67}, &Command{Cmd: 0x68})
}

// FirmwareVersionCommand builds the firmware version query (answered on
// command 0x6A).
func FirmwareVersionCommand() *CommandPair {
	return NewCommandPair(Command{Cmd: 0x69}, &Command{Cmd: 0x6A})
}

// ConnectorVersionCommand builds the connector board version query
// (answered on command 0xA2).
func ConnectorVersionCommand() *CommandPair {
	return NewCommandPair(Command{Cmd: 0xA1}, &Command{Cmd: 0xA2})
}

// SetClock sets the controller's real-time clock to t.
func (c *Client) SetClock(t time.Time) error {
	logging.Debug("Set clock", zap.Time("value", t))
	return c.Transaction(ClockCommand(t))
}

// EmulateKeypress simulates pressing one or more CC-Ease keypad keys for
// the given duration.
func (c *Client) EmulateKeypress(keyMask int, millis int) error {
	logging.Debug("Emulate keypress",
		zap.Int("key_mask", keyMask),
		zap.Int("millis", millis),
	)
	pair, err := KeypressCommand(keyMask, millis)
	if err != nil {
		return err
	}
	return c.Transaction(pair)
}

// SetFanSpeed sets the ventilation level.
func (c *Client) SetFanSpeed(speed int) error {
	logging.Debug("Set fan speed", zap.Int("speed", speed))
	pair, err := FanSpeedCommand(speed)
	if err != nil {
		return err
	}
	return c.Transaction(pair)
}

// RequestBootloaderVersion asks the controller for its bootloader version.
// The answer arrives as a 0x68 message on the raw and attribute listeners.
func (c *Client) RequestBootloaderVersion() error {
	logging.Debug("Request bootloader version")
	return c.Transaction(BootloaderVersionCommand())
}

// RequestFirmwareVersion asks the controller for its firmware version
// (answered on command 0x6A).
func (c *Client) RequestFirmwareVersion() error {
	logging.Debug("Request firmware version")
	return c.Transaction(FirmwareVersionCommand())
}

// RequestConnectorVersion asks the connector board for its version
// (answered on command 0xA2).
func (c *Client) RequestConnectorVersion() error {
	logging.Debug("Request connector board version")
	return c.Transaction(ConnectorVersionCommand())
}
