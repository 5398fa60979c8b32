package comfoair

import (
	"bytes"
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hvactools/comfoair/internal/logging"
	"github.com/hvactools/comfoair/internal/protocol"
	"github.com/hvactools/comfoair/internal/transport"
)

// SyncClient is a blocking single-threaded alternative to Client for simple
// scripts and probes: one transceive call sends a command and linearly
// retries until its acknowledgement (and optional reply) arrives. It reuses
// the same codec and transports but offers none of Client's reconnection or
// listener machinery.
type SyncClient struct {
	device      string
	conn        transport.Conn
	readTimeout time.Duration
	retryPause  time.Duration
}

// NewSyncClient creates a blocking client for a device URL.
func NewSyncClient(device string) *SyncClient {
	return &SyncClient{
		device:      device,
		readTimeout: 1 * time.Second,
		retryPause:  100 * time.Millisecond,
	}
}

// Connect opens the transport if it is not already open.
func (s *SyncClient) Connect(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}
	conn, err := transport.Dial(ctx, s.device)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

// Close tears down the transport.
func (s *SyncClient) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// Send encodes and writes one command without waiting for any response.
func (s *SyncClient) Send(ctx context.Context, cmd Command) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}
	msg := protocol.Encode(uint16(cmd.Cmd), cmd.Data)
	logging.LogFrame(s.device, "tx", uint16(cmd.Cmd), cmd.Data)
	_, err := s.conn.Write(msg)
	return err
}

// Transceive sends tx and blocks until it is acknowledged and, if reply is
// non-nil, answered by a matching message, which is then acknowledged back
// and returned. Up to 10 naive linear attempts with a short pause between
// them; ErrRetriesExhausted afterwards.
func (s *SyncClient) Transceive(ctx context.Context, tx Command, reply *Command) (*protocol.Message, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ack, msg, err := s.transceiveOnce(ctx, tx)
		if err != nil {
			return nil, err
		}

		if ack && matchesReply(reply, msg) {
			if msg != nil {
				logging.Debug("Send ack", zap.String("device", s.device))
				if _, err := s.conn.Write(protocol.EncodeAck()); err != nil {
					return nil, err
				}
			}
			return msg, nil
		}

		time.Sleep(s.retryPause)
	}
	return nil, ErrRetriesExhausted
}

func matchesReply(reply *Command, msg *protocol.Message) bool {
	if reply == nil {
		return msg == nil
	}
	if msg == nil || msg.Cmd != uint16(reply.Cmd) {
		return false
	}
	return reply.Data == nil || bytes.Equal(reply.Data, msg.Data)
}

// transceiveOnce performs one send attempt and parses whatever arrives
// within the read window: reports whether an ack was seen and the first
// complete message, if any.
func (s *SyncClient) transceiveOnce(ctx context.Context, tx Command) (bool, *protocol.Message, error) {
	if err := s.Send(ctx, tx); err != nil {
		return false, nil, err
	}

	buf := s.readResponse()
	ack := false

	for len(buf) > 0 {
		consumed, frame, _ := protocol.Decode(buf)
		buf = buf[consumed:]
		if frame == nil {
			break
		}
		switch m := frame.(type) {
		case protocol.Ack:
			logging.Debug("Recv ack", zap.String("device", s.device))
			ack = true
		case *protocol.Message:
			logging.LogFrame(s.device, "rx", m.Cmd, m.Data)
			return ack, m, nil
		}
	}

	return ack, nil, nil
}

// readResponse accumulates inbound bytes until an end-of-frame marker shows
// up or the read window closes. Read errors just end the window; retry
// logic sits above.
func (s *SyncClient) readResponse() []byte {
	deadline := time.Now().Add(s.readTimeout)
	endMarker := []byte{protocol.Esc, 0x0F}

	var buf []byte
	chunk := make([]byte, 256)
	for time.Now().Before(deadline) {
		setReadDeadline(s.conn, deadline)
		n, err := s.conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if bytes.Contains(buf, endMarker) {
				break
			}
		}
		if err != nil {
			break
		}
	}
	return buf
}

// setReadDeadline bounds the next Read when the transport supports it
// (net.Conn deadlines, serial port timeouts). Transports without either
// rely on data actually arriving.
func setReadDeadline(conn transport.Conn, deadline time.Time) {
	switch c := conn.(type) {
	case interface{ SetReadDeadline(time.Time) error }:
		_ = c.SetReadDeadline(deadline)
	case interface{ SetReadTimeout(time.Duration) error }:
		_ = c.SetReadTimeout(time.Until(deadline))
	}
}
