package transport

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
)

// wsConn adapts a message-oriented WebSocket connection to a byte stream.
// Some serial bridge firmwares (esp-link style) expose the UART as binary
// WebSocket messages; each message is an arbitrary chunk of line bytes.
type wsConn struct {
	conn *websocket.Conn
	url  string
	rbuf []byte
}

func (c *wsConn) String() string { return c.url }

func (c *wsConn) Read(p []byte) (int, error) {
	for len(c.rbuf) == 0 {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		c.rbuf = data
	}
	n := copy(p, c.rbuf)
	c.rbuf = c.rbuf[n:]
	return n, nil
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func dialWebSocket(ctx context.Context, rawurl string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawurl, nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket %s: %w", rawurl, err)
	}
	return &wsConn{conn: conn, url: rawurl}, nil
}
