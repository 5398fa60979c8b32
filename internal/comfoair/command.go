package comfoair

import "errors"

// Sentinel errors reported through CommandPair.Done and the public
// operations.
var (
	// ErrRetriesExhausted means all send attempts for a transaction timed
	// out without the expected acknowledgement/reply.
	ErrRetriesExhausted = errors.New("comfoair: transaction retries exhausted")

	// ErrShutdown means the connection was shut down while the transaction
	// was queued or in flight.
	ErrShutdown = errors.New("comfoair: connection shut down")

	// ErrNotRunning means the client has not been connected.
	ErrNotRunning = errors.New("comfoair: not connected")

	// ErrTransportUnavailable means no transport was available when the
	// transaction tried to send.
	ErrTransportUnavailable = errors.New("comfoair: transport unavailable")
)

// Command is an outbound intent: an 8-bit command code (sent on the wire
// with a fixed 0x00 high byte) and up to 64 bytes of data.
type Command struct {
	Cmd  byte
	Data []byte
}

// CommandPair is one logical request/response transaction: a command to
// transmit plus an optional expected reply. A nil Reply means the command
// is complete once acknowledged. A Reply with nil Data accepts any payload
// on the expected reply command; non-nil Data must match exactly.
type CommandPair struct {
	Tx    Command
	Reply *Command

	done chan error
}

// NewCommandPair builds a transaction for tx with an optional expected
// reply.
func NewCommandPair(tx Command, reply *Command) *CommandPair {
	return &CommandPair{
		Tx:    tx,
		Reply: reply,
		done:  make(chan error, 1),
	}
}

// Done reports the outcome of the transaction: nil on success, or one of
// ErrRetriesExhausted, ErrShutdown, ErrTransportUnavailable. The channel
// receives exactly one value. Callers that do not care about the outcome
// can simply ignore it.
func (p *CommandPair) Done() <-chan error {
	return p.done
}

func (p *CommandPair) complete(err error) {
	select {
	case p.done <- err:
	default:
	}
}

// pending is one send attempt of the current transaction. Fresh signal
// channels are created per attempt so that a stale acknowledgement from a
// previous attempt cannot complete a later one. The channels are buffered:
// a reply that races ahead of the acknowledgement wait is remembered within
// the attempt.
type pending struct {
	pair  *CommandPair
	ack   chan struct{}
	reply chan struct{}
}

func newPending(pair *CommandPair) *pending {
	return &pending{
		pair:  pair,
		ack:   make(chan struct{}, 1),
		reply: make(chan struct{}, 1),
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
