package comfoair

import (
	"context"
	"net/url"
	"os"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hvactools/comfoair/internal/logging"
	"github.com/hvactools/comfoair/internal/protocol"
	"github.com/hvactools/comfoair/internal/transport"
)

// Protocol timing. The link is a local hardware connection expected to
// eventually become available, so reconnection retries forever with a fixed
// delay rather than exponential backoff.
const (
	ackTimeout     = 1 * time.Second
	replyTimeout   = 1 * time.Second
	maxAttempts    = 10
	connectTimeout = 5 * time.Second
	retryDelay     = 10 * time.Second // next attempt after a failed dial
	lostDelay      = 10 * time.Second // reconnect after a lost connection
	desyncDelay    = 3 * time.Second  // reconnect after a corrupted stream
	readPause      = 1 * time.Second  // pacing window between inbound chunks

	// A buffer holding twice the maximum escaped frame size that still
	// yields nothing parseable is a desynchronized stream.
	desyncThreshold = ((protocol.MaxDataLength+1)*2 + 7) * 2
)

// RawListener receives every validated message: command code and unescaped
// payload bytes.
type RawListener func(cmd uint16, data []byte)

// AttributeListener receives cooked attribute values. It fires only when
// the value changes.
type AttributeListener func(attr protocol.Attribute, value protocol.Value)

// Client drives one ComfoAir controller over a serial device or a serial
// bridge. The zero value is not usable; construct with New.
type Client struct {
	device string
	url    *url.URL

	mu           sync.Mutex // serializes reconnect against shutdown
	reconnecting atomic.Bool
	running      atomic.Bool

	tmu  sync.Mutex
	conn transport.Conn

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	rxq chan []byte // nil chunk: discard all buffered input
	txq chan *CommandPair

	curMu sync.Mutex
	cur   *pending

	// dial is swapped for an in-memory transport in tests
	dial func(ctx context.Context, device string) (transport.Conn, error)

	lmu           sync.Mutex
	nextID        int
	rawListeners  map[int]RawListener
	attrListeners map[protocol.Attribute]map[int]AttributeListener
	attrOwner     map[int]protocol.Attribute
	rawCache      map[uint16][]byte
	cookedCache   map[protocol.Attribute]protocol.Value

	// timing knobs, fixed by the protocol; shortened in tests
	ackTimeout     time.Duration
	replyTimeout   time.Duration
	connectTimeout time.Duration
	retryDelay     time.Duration
	lostDelay      time.Duration
	desyncDelay    time.Duration
	readPause      time.Duration
}

// New creates a client for a device URL: a serial device path
// (/dev/ttyUSB0), socket://host:port, or ws://host/path.
func New(device string) *Client {
	u, err := url.Parse(device)
	if err != nil {
		u = nil
	}
	return &Client{
		device:        device,
		url:           u,
		dial:          transport.Dial,
		rawListeners:  make(map[int]RawListener),
		attrListeners: make(map[protocol.Attribute]map[int]AttributeListener),
		attrOwner:     make(map[int]protocol.Attribute),
		rawCache:      make(map[uint16][]byte),
		cookedCache:   make(map[protocol.Attribute]protocol.Value),

		ackTimeout:     ackTimeout,
		replyTimeout:   replyTimeout,
		connectTimeout: connectTimeout,
		retryDelay:     retryDelay,
		lostDelay:      lostDelay,
		desyncDelay:    desyncDelay,
		readPause:      readPause,
	}
}

// DeviceID identifies the controller endpoint: host:port for bridges,
// hostname:device for local serial ports.
func (c *Client) DeviceID() string {
	if c.url != nil && (c.url.Scheme == "socket" || c.url.Scheme == "ws" || c.url.Scheme == "wss") {
		return c.url.Host
	}
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return host + ":" + path.Base(c.device)
}

// Connect starts the connection lifecycle: spawns the receive and transmit
// workers and performs an initial connection attempt. Idempotent while
// running. Transport failures are not surfaced; the client keeps retrying
// with a fixed delay until Shutdown.
func (c *Client) Connect() {
	if c.running.Load() {
		logging.Debug("Already connected", zap.String("device", c.device))
		return
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.rxq = make(chan []byte, 32)
	c.txq = make(chan *CommandPair, 64)
	c.running.Store(true)

	c.wg.Add(2)
	go c.rxWorker()
	go c.txWorker()

	c.reconnect(0)
}

// Shutdown stops the workers, tears down the transport and waits for worker
// termination. The client can be connected again afterwards.
func (c *Client) Shutdown() {
	if !c.running.Load() {
		logging.Debug("Already shut down", zap.String("device", c.device))
		return
	}

	logging.Debug("Shutting down", zap.String("device", c.device))

	// Cancel first so a reconnect sleeping with the lock held wakes up.
	c.cancel()

	c.mu.Lock()
	c.running.Store(false)
	c.disconnect()
	c.mu.Unlock()

	c.wg.Wait()
}

// reconnect tears down any existing transport, discards buffered input,
// waits delay and dials again. Concurrent triggers collapse into one
// attempt via the client lock. A failed dial schedules another attempt; the
// loop only stops at shutdown.
func (c *Client) reconnect(delay time.Duration) {
	c.reconnecting.Store(true)
	defer c.reconnecting.Store(false)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running.Load() {
		return
	}

	c.disconnect()
	c.flushRx()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-c.ctx.Done():
			return
		}
	}
	if c.ctx.Err() != nil {
		return
	}

	logging.Info("Connecting", zap.String("device", c.device))

	ctx, cancel := context.WithTimeout(c.ctx, c.connectTimeout)
	conn, err := c.dial(ctx, c.device)
	cancel()
	if err != nil {
		logging.Warn("Connection failed",
			zap.String("device", c.device),
			zap.Error(err),
		)
		go c.reconnect(c.retryDelay)
		return
	}

	c.tmu.Lock()
	c.conn = conn
	c.tmu.Unlock()

	c.wg.Add(1)
	go c.readLoop(conn)

	logging.LogConnection(c.device, "connected")
}

// disconnect closes and forgets the transport. Callers hold c.mu.
func (c *Client) disconnect() {
	c.tmu.Lock()
	conn := c.conn
	c.conn = nil
	c.tmu.Unlock()

	if conn != nil {
		logging.Debug("Disconnecting", zap.String("device", c.device))
		_ = conn.Close()
	}
}

// flushRx drops all queued inbound chunks and tells the receive worker to
// clear its reassembly buffer.
func (c *Client) flushRx() {
	for {
		select {
		case <-c.rxq:
		default:
			select {
			case c.rxq <- nil:
			default:
			}
			return
		}
	}
}

// readLoop pumps transport bytes into the inbound queue. After each
// delivered chunk it pauses briefly, bounding the rate at which unprocessed
// data accumulates. Exits when the transport fails or is closed.
func (c *Client) readLoop(conn transport.Conn) {
	defer c.wg.Done()

	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case c.rxq <- chunk:
			case <-c.ctx.Done():
				return
			}
			select {
			case <-time.After(c.readPause):
			case <-c.ctx.Done():
				return
			}
		}
		if err != nil {
			c.connectionLost(err)
			return
		}
	}
}

func (c *Client) connectionLost(err error) {
	logging.Warn("Lost connection",
		zap.String("device", c.device),
		zap.Error(err),
	)
	if c.running.Load() && !c.reconnecting.Load() {
		go c.reconnect(c.lostDelay)
	}
}

// write sends raw bytes to the transport. Returns false when no transport
// is available or the write fails; recovery is the reconnect loop's job.
func (c *Client) write(msg []byte) bool {
	c.tmu.Lock()
	conn := c.conn
	c.tmu.Unlock()

	if conn == nil {
		logging.Warn("Transport unavailable", zap.String("device", c.device))
		return false
	}
	if _, err := conn.Write(msg); err != nil {
		logging.Warn("Write failed",
			zap.String("device", c.device),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (c *Client) setCurrent(p *pending) {
	c.curMu.Lock()
	c.cur = p
	c.curMu.Unlock()
}

func (c *Client) current() *pending {
	c.curMu.Lock()
	defer c.curMu.Unlock()
	return c.cur
}

// AddRawListener registers a callback for every validated message and
// returns a registration id for RemoveRawListener.
func (c *Client) AddRawListener(fn RawListener) int {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	c.nextID++
	c.rawListeners[c.nextID] = fn
	return c.nextID
}

// RemoveRawListener unregisters a raw listener by id.
func (c *Client) RemoveRawListener(id int) {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	delete(c.rawListeners, id)
}

// AddAttributeListener registers a callback for changes of one attribute.
// If a cooked value is already cached the cache hit is returned, so late
// subscribers are not left stale until the next change.
func (c *Client) AddAttributeListener(attr protocol.Attribute, fn AttributeListener) (id int, cached protocol.Value, ok bool) {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	c.nextID++
	if c.attrListeners[attr] == nil {
		c.attrListeners[attr] = make(map[int]AttributeListener)
	}
	c.attrListeners[attr][c.nextID] = fn
	c.attrOwner[c.nextID] = attr
	cached, ok = c.cookedCache[attr]
	return c.nextID, cached, ok
}

// RemoveAttributeListener unregisters an attribute listener by id.
func (c *Client) RemoveAttributeListener(id int) {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	attr, ok := c.attrOwner[id]
	if !ok {
		return
	}
	delete(c.attrOwner, id)
	delete(c.attrListeners[attr], id)
	if len(c.attrListeners[attr]) == 0 {
		delete(c.attrListeners, attr)
	}
}
