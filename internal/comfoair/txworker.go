package comfoair

import (
	"context"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/hvactools/comfoair/internal/logging"
	"github.com/hvactools/comfoair/internal/protocol"
)

// txWorker drains the command queue one transaction at a time. Commands are
// processed strictly in submission order; there is never more than one
// in-flight transaction.
func (c *Client) txWorker() {
	defer c.wg.Done()

	for {
		var pair *CommandPair
		select {
		case <-c.ctx.Done():
			c.drainTx()
			return
		case pair = <-c.txq:
		}

		c.runTransaction(pair)

		if c.ctx.Err() != nil {
			c.drainTx()
			return
		}
	}
}

// runTransaction sends the pair's command and waits for acknowledgement and
// the optional reply, retrying the whole attempt on timeout up to
// maxAttempts. On a matched reply the protocol requires us to acknowledge
// the controller's message, so an ack frame is written back before the
// transaction completes.
func (c *Client) runTransaction(pair *CommandPair) {
	msg := protocol.Encode(uint16(pair.Tx.Cmd), pair.Tx.Data)
	err := ErrRetriesExhausted

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		p := newPending(pair)
		c.setCurrent(p)

		logging.Debug("Write",
			zap.Int("attempt", attempt),
			zap.String("cmd", hex.EncodeToString([]byte{pair.Tx.Cmd})),
			zap.String("data", hex.EncodeToString(pair.Tx.Data)),
		)

		if !c.write(msg) {
			err = ErrTransportUnavailable
			break
		}

		if !c.await(p.ack, c.ackTimeout) {
			if c.ctx.Err() != nil {
				err = ErrShutdown
				break
			}
			logging.Warn("TX ack timeout", zap.String("device", c.device))
			continue
		}
		logging.Debug("ACK ok")

		if pair.Reply == nil {
			err = nil
			break
		}

		if !c.await(p.reply, c.replyTimeout) {
			if c.ctx.Err() != nil {
				err = ErrShutdown
				break
			}
			logging.Warn("RX msg timeout", zap.String("device", c.device))
			continue
		}
		logging.Debug("message ok")

		c.write(protocol.EncodeAck())
		err = nil
		break
	}

	c.setCurrent(nil)
	pair.complete(err)
}

// await blocks until ch is signaled, the timeout elapses, or the client is
// cancelled.
func (c *Client) await(ch chan struct{}, timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ch:
		return true
	case <-t.C:
		return false
	case <-c.ctx.Done():
		return false
	}
}

// drainTx fails all still-queued transactions at shutdown.
func (c *Client) drainTx() {
	for {
		select {
		case pair := <-c.txq:
			pair.complete(ErrShutdown)
		default:
			return
		}
	}
}

// SendCommandPair enqueues one transaction. The outcome is delivered on
// pair.Done().
func (c *Client) SendCommandPair(pair *CommandPair) error {
	if !c.running.Load() {
		return ErrNotRunning
	}
	select {
	case c.txq <- pair:
		return nil
	case <-c.ctx.Done():
		return ErrShutdown
	}
}

// pcModePair requests external (PC) control of the controller.
func pcModePair() *CommandPair {
	return NewCommandPair(
		Command{Cmd: 0x9B, Data: []byte{0x03}},
		&Command{Cmd: 0x9C, Data: []byte{0x03}},
	)
}

// ccEaseModePair hands control back to the CC-Ease wall panel.
func ccEaseModePair() *CommandPair {
	return NewCommandPair(
		Command{Cmd: 0x9B, Data: []byte{0x00}},
		&Command{Cmd: 0x9C, Data: []byte{0x02}},
	)
}

// Transaction wraps pair in the external-control bracket: switch the
// controller to PC mode, run the command, switch back to CC-Ease (local)
// control. Each step is its own independently retried transaction, funneled
// through the same serialized queue.
func (c *Client) Transaction(pair *CommandPair) error {
	for _, p := range []*CommandPair{pcModePair(), pair, ccEaseModePair()} {
		if err := c.SendCommandPair(p); err != nil {
			return err
		}
	}
	return nil
}

// RunTransaction enqueues the external-control bracket around pair and
// blocks until every step has completed, returning the first step error.
// The bracket keeps running in the background even when ctx expires, so the
// controller is not left under PC control.
func (c *Client) RunTransaction(ctx context.Context, pair *CommandPair) error {
	steps := []*CommandPair{pcModePair(), pair, ccEaseModePair()}
	for _, p := range steps {
		if err := c.SendCommandPair(p); err != nil {
			return err
		}
	}
	for _, p := range steps {
		select {
		case err := <-p.Done():
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
