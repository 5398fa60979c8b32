package transport

import (
	"fmt"

	"go.bug.st/serial"
)

type serialConn struct {
	serial.Port
	path string
}

func (c *serialConn) String() string { return c.path }

// openSerial opens a local serial device at the fixed protocol baud rate,
// 8N1.
func openSerial(path string) (Conn, error) {
	mode := &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial device %s: %w", path, err)
	}
	return &serialConn{Port: port, path: path}, nil
}
