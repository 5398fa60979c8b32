package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
)

// BaudRate is the fixed serial line rate of the CC-Ease link.
const BaudRate = 9600

// Conn is a duplex byte stream to the controller. Implementations report a
// human-readable device address via String for logging.
type Conn interface {
	io.ReadWriteCloser
	fmt.Stringer
}

// Dial opens a connection to device, dispatching on the URL scheme:
//
//	socket://host:port   TCP-transported serial bridge
//	ws://host/path       WebSocket serial bridge (also wss://)
//	anything else        local serial device path, e.g. /dev/ttyUSB0
//
// ctx bounds connection establishment only, not subsequent I/O.
func Dial(ctx context.Context, device string) (Conn, error) {
	if u, err := url.Parse(device); err == nil {
		switch u.Scheme {
		case "socket":
			return dialTCP(ctx, u.Host)
		case "ws", "wss":
			return dialWebSocket(ctx, device)
		}
	}
	return openSerial(device)
}

type tcpConn struct {
	net.Conn
	addr string
}

func (c *tcpConn) String() string { return "socket://" + c.addr }

func dialTCP(ctx context.Context, addr string) (Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &tcpConn{Conn: conn, addr: addr}, nil
}
