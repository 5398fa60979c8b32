package comfoair

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hvactools/comfoair/internal/protocol"
)

var errScriptTimeout = errors.New("read window elapsed")

// scriptedConn answers each write through a respond func and serves the
// produced bytes on subsequent reads. An empty inbound buffer ends the
// read window immediately, keeping the retry loop fast and deterministic.
type scriptedConn struct {
	mu      sync.Mutex
	inbound []byte
	sent    [][]byte
	respond func(m *protocol.Message) []byte
}

func (s *scriptedConn) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inbound) == 0 {
		return 0, errScriptTimeout
	}
	n := copy(p, s.inbound)
	s.inbound = s.inbound[n:]
	return n, nil
}

func (s *scriptedConn) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(p))
	copy(out, p)
	s.sent = append(s.sent, out)
	if s.respond != nil {
		if _, frame, _ := protocol.Decode(out); frame != nil {
			if m, ok := frame.(*protocol.Message); ok {
				s.inbound = append(s.inbound, s.respond(m)...)
			}
		}
	}
	return len(p), nil
}

func (s *scriptedConn) Close() error   { return nil }
func (s *scriptedConn) String() string { return "scripted" }

func (s *scriptedConn) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func newSyncTestClient(conn *scriptedConn) *SyncClient {
	return &SyncClient{
		device:      "scripted",
		conn:        conn,
		readTimeout: 50 * time.Millisecond,
		retryPause:  time.Millisecond,
	}
}

func TestSyncTransceiveAckOnly(t *testing.T) {
	conn := &scriptedConn{
		respond: func(*protocol.Message) []byte { return []byte{0x07, 0xF3} },
	}
	s := newSyncTestClient(conn)

	msg, err := s.Transceive(context.Background(), Command{Cmd: 0x99, Data: []byte{2}}, nil)
	if err != nil {
		t.Fatalf("Transceive: %v", err)
	}
	if msg != nil {
		t.Fatalf("msg = %+v, want nil for ack-only command", msg)
	}
	if got := conn.sentCount(); got != 1 {
		t.Fatalf("sends = %d, want 1", got)
	}
}

func TestSyncTransceiveWithReply(t *testing.T) {
	conn := &scriptedConn{
		respond: func(m *protocol.Message) []byte {
			if m.Cmd != 0x69 {
				return nil
			}
			wire := []byte{0x07, 0xF3}
			return append(wire, protocol.Encode(0x6A, []byte{3, 20, 0, 'C', 'A', '3', '5', '0', ' ', 'l', 'u', 'x', 'e'})...)
		},
	}
	s := newSyncTestClient(conn)

	msg, err := s.Transceive(context.Background(), Command{Cmd: 0x69}, &Command{Cmd: 0x6A})
	if err != nil {
		t.Fatalf("Transceive: %v", err)
	}
	if msg == nil || msg.Cmd != 0x6A {
		t.Fatalf("msg = %+v, want firmware reply", msg)
	}

	// request plus the ack acknowledging the reply
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.sent) != 2 {
		t.Fatalf("sends = %d, want request and ack", len(conn.sent))
	}
	last := conn.sent[1]
	if len(last) != 2 || last[0] != 0x07 || last[1] != 0xF3 {
		t.Fatalf("final write % x, want ack marker", last)
	}
}

func TestSyncTransceiveRetriesExhausted(t *testing.T) {
	conn := &scriptedConn{} // the controller stays silent
	s := newSyncTestClient(conn)

	_, err := s.Transceive(context.Background(), Command{Cmd: 0x99, Data: []byte{2}}, nil)
	if err != ErrRetriesExhausted {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}
	if got := conn.sentCount(); got != 10 {
		t.Fatalf("sends = %d, want 10", got)
	}
}

func TestSyncTransceiveCancelled(t *testing.T) {
	conn := &scriptedConn{}
	s := newSyncTestClient(conn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Transceive(ctx, Command{Cmd: 0x99, Data: []byte{2}}, nil)
	if err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestMatchesReply(t *testing.T) {
	tests := []struct {
		name  string
		reply *Command
		msg   *protocol.Message
		want  bool
	}{
		{"no reply wanted, none seen", nil, nil, true},
		{"no reply wanted, one seen", nil, &protocol.Message{Cmd: 0x3C}, false},
		{"reply wanted, none seen", &Command{Cmd: 0x3C}, nil, false},
		{"command match, any data", &Command{Cmd: 0x3C}, &protocol.Message{Cmd: 0x3C, Data: []byte{1}}, true},
		{"command mismatch", &Command{Cmd: 0x3C}, &protocol.Message{Cmd: 0x3E}, false},
		{"data match", &Command{Cmd: 0x9C, Data: []byte{3}}, &protocol.Message{Cmd: 0x9C, Data: []byte{3}}, true},
		{"data mismatch", &Command{Cmd: 0x9C, Data: []byte{3}}, &protocol.Message{Cmd: 0x9C, Data: []byte{2}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchesReply(tt.reply, tt.msg); got != tt.want {
				t.Errorf("matchesReply = %v, want %v", got, tt.want)
			}
		})
	}
}
