package comfoair

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hvactools/comfoair/internal/transport"
)

// fakeConn is an in-memory transport: tests feed inbound bytes through
// reads and observe every outbound write.
type fakeConn struct {
	reads  chan []byte
	writes chan []byte

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads:  make(chan []byte, 64),
		writes: make(chan []byte, 64),
		done:   make(chan struct{}),
	}
}

func (f *fakeConn) Read(p []byte) (int, error) {
	select {
	case chunk := <-f.reads:
		return copy(p, chunk), nil
	case <-f.done:
		return 0, io.EOF
	}
}

func (f *fakeConn) Write(p []byte) (int, error) {
	select {
	case <-f.done:
		return 0, io.ErrClosedPipe
	default:
	}
	out := make([]byte, len(p))
	copy(out, p)
	f.writes <- out
	return len(p), nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return nil
}

func (f *fakeConn) String() string { return "fake" }

// testClient wires a client to fake transports with fast timings. Each
// successful dial hands out the next connection from conns; dials beyond
// that block until the test ends.
func testClient(t *testing.T, conns ...*fakeConn) (*Client, chan *fakeConn) {
	t.Helper()

	dialed := make(chan *fakeConn, len(conns)+8)
	queue := make(chan *fakeConn, len(conns)+8)
	for _, c := range conns {
		queue <- c
	}

	c := New("socket://test:1234")
	c.ackTimeout = 25 * time.Millisecond
	c.replyTimeout = 25 * time.Millisecond
	c.connectTimeout = time.Second
	c.retryDelay = 10 * time.Millisecond
	c.lostDelay = 10 * time.Millisecond
	c.desyncDelay = time.Millisecond
	c.readPause = time.Millisecond
	c.dial = func(ctx context.Context, device string) (transport.Conn, error) {
		select {
		case conn := <-queue:
			dialed <- conn
			return conn, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	t.Cleanup(c.Shutdown)
	return c, dialed
}

func waitDone(t *testing.T, pair *CommandPair) error {
	t.Helper()
	select {
	case err := <-pair.Done():
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("transaction never completed")
		return nil
	}
}

func TestConnectIdempotent(t *testing.T) {
	conn := newFakeConn()
	c, dialed := testClient(t, conn, newFakeConn())

	c.Connect()
	<-dialed
	c.Connect() // no-op while running

	select {
	case <-dialed:
		t.Fatal("second Connect dialed again")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTransactionAckOnly(t *testing.T) {
	conn := newFakeConn()
	c, dialed := testClient(t, conn)
	c.Connect()
	<-dialed

	pair := NewCommandPair(Command{Cmd: 0x99, Data: []byte{0x02}}, nil)
	if err := c.SendCommandPair(pair); err != nil {
		t.Fatalf("SendCommandPair: %v", err)
	}

	// first (and only) send attempt
	sent := <-conn.writes
	if len(sent) < 4 || sent[3] != 0x99 {
		t.Fatalf("unexpected wire bytes % x", sent)
	}
	conn.reads <- []byte{0x07, 0xF3}

	if err := waitDone(t, pair); err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	select {
	case extra := <-conn.writes:
		t.Fatalf("unexpected extra write % x after ack", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

// With no acknowledgement at all, exactly 10 send attempts must occur
// before the transaction is abandoned.
func TestTransactionRetriesExhausted(t *testing.T) {
	conn := newFakeConn()
	c, dialed := testClient(t, conn)
	c.Connect()
	<-dialed

	pair := NewCommandPair(Command{Cmd: 0x99, Data: []byte{0x03}}, nil)
	if err := c.SendCommandPair(pair); err != nil {
		t.Fatalf("SendCommandPair: %v", err)
	}

	err := waitDone(t, pair)
	if err != ErrRetriesExhausted {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}

	sends := len(conn.writes)
	if sends != 10 {
		t.Fatalf("send attempts = %d, want 10", sends)
	}
}

// An ack arriving on attempt 7 stops the retry loop there.
func TestTransactionAckOnSeventhAttempt(t *testing.T) {
	conn := newFakeConn()
	c, dialed := testClient(t, conn)
	c.Connect()
	<-dialed

	pair := NewCommandPair(Command{Cmd: 0x99, Data: []byte{0x01}}, nil)
	if err := c.SendCommandPair(pair); err != nil {
		t.Fatalf("SendCommandPair: %v", err)
	}

	for i := 1; i <= 7; i++ {
		select {
		case <-conn.writes:
		case <-time.After(2 * time.Second):
			t.Fatalf("send attempt %d never happened", i)
		}
		if i == 7 {
			conn.reads <- []byte{0x07, 0xF3}
		}
	}

	if err := waitDone(t, pair); err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
	if extra := len(conn.writes); extra != 0 {
		t.Fatalf("%d extra sends after the acked attempt", extra)
	}
}

func TestTransactionWithReply(t *testing.T) {
	conn := newFakeConn()
	c, dialed := testClient(t, conn)
	c.Connect()
	<-dialed

	pair := NewCommandPair(
		Command{Cmd: 0x69},
		&Command{Cmd: 0x6A},
	)
	if err := c.SendCommandPair(pair); err != nil {
		t.Fatalf("SendCommandPair: %v", err)
	}

	<-conn.writes // the 0x69 request
	conn.reads <- []byte{0x07, 0xF3}
	conn.reads <- encodeTestMessage(0x6A, []byte{3, 20, 0, 'C', 'A', '3', '5', '0', ' ', 'l', 'u', 'x', 'e'})

	if err := waitDone(t, pair); err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	// the engine must acknowledge the controller's reply
	select {
	case sent := <-conn.writes:
		if len(sent) != 2 || sent[0] != 0x07 || sent[1] != 0xF3 {
			t.Fatalf("expected ack marker, wire bytes % x", sent)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reply was never acknowledged")
	}
}

// A reply with non-matching payload must not complete the transaction; the
// engine re-sends from the top.
func TestTransactionReplyDataMismatch(t *testing.T) {
	conn := newFakeConn()
	c, dialed := testClient(t, conn)
	c.Connect()
	<-dialed

	pair := NewCommandPair(
		Command{Cmd: 0x9B, Data: []byte{0x03}},
		&Command{Cmd: 0x9C, Data: []byte{0x03}},
	)
	if err := c.SendCommandPair(pair); err != nil {
		t.Fatalf("SendCommandPair: %v", err)
	}

	// attempt 1: ack plus a 0x9C reply carrying the wrong data
	<-conn.writes
	conn.reads <- []byte{0x07, 0xF3}
	conn.reads <- encodeTestMessage(0x9C, []byte{0x02})

	// attempt 2 happens after the reply timeout; this time answer properly
	select {
	case <-conn.writes:
	case <-time.After(2 * time.Second):
		t.Fatal("no retry after mismatched reply")
	}
	conn.reads <- []byte{0x07, 0xF3}
	conn.reads <- encodeTestMessage(0x9C, []byte{0x03})

	if err := waitDone(t, pair); err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}

func TestSendWhileNotRunning(t *testing.T) {
	c := New("socket://test:1234")
	pair := NewCommandPair(Command{Cmd: 0x99, Data: []byte{0x01}}, nil)
	if err := c.SendCommandPair(pair); err != ErrNotRunning {
		t.Fatalf("err = %v, want ErrNotRunning", err)
	}
}

// A stream that yields nothing parseable across a large buffer forces a
// reconnect.
func TestDesyncForcesReconnect(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	c, dialed := testClient(t, first, second)
	c.Connect()
	<-dialed

	garbage := make([]byte, 300)
	for i := range garbage {
		garbage[i] = 0x55 // no escape bytes, nothing plausible
	}
	// feed in chunks so the rx worker accumulates past the threshold
	for i := 0; i < len(garbage); i += 50 {
		first.reads <- garbage[i : i+50]
	}

	select {
	case <-dialed:
		// reconnected onto the second conn
	case <-time.After(5 * time.Second):
		t.Fatal("desynchronized stream did not force a reconnect")
	}
}

// A transport failure schedules a reconnect with a delay; the client comes
// back on a fresh connection.
func TestLostConnectionReconnects(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	c, dialed := testClient(t, first, second)
	c.Connect()
	<-dialed

	first.Close()

	select {
	case conn := <-dialed:
		if conn != second {
			t.Fatal("reconnected onto the wrong connection")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("lost connection did not trigger a reconnect")
	}
}

func TestShutdownFailsInFlight(t *testing.T) {
	conn := newFakeConn()
	c, dialed := testClient(t, conn)
	c.Connect()
	<-dialed

	pair := NewCommandPair(Command{Cmd: 0x99, Data: []byte{0x01}}, nil)
	if err := c.SendCommandPair(pair); err != nil {
		t.Fatalf("SendCommandPair: %v", err)
	}
	<-conn.writes // in flight now

	c.Shutdown()

	if err := waitDone(t, pair); err != ErrShutdown {
		t.Fatalf("err = %v, want ErrShutdown", err)
	}
}

func TestShutdownThenReconnect(t *testing.T) {
	c, dialed := testClient(t, newFakeConn(), newFakeConn())
	c.Connect()
	<-dialed
	c.Shutdown()
	c.Connect()
	select {
	case <-dialed:
	case <-time.After(5 * time.Second):
		t.Fatal("Connect after Shutdown never dialed")
	}
}

func TestDeviceID(t *testing.T) {
	if got := New("socket://192.168.1.10:5555").DeviceID(); got != "192.168.1.10:5555" {
		t.Errorf("DeviceID = %q, want host:port", got)
	}
	if got := New("/dev/ttyUSB0").DeviceID(); !strings.HasSuffix(got, ":ttyUSB0") {
		t.Errorf("DeviceID = %q, want hostname:ttyUSB0", got)
	}
}
