package comfoair

import (
	"bytes"
	"encoding/hex"

	"go.uber.org/zap"

	"github.com/hvactools/comfoair/internal/logging"
	"github.com/hvactools/comfoair/internal/protocol"
)

// rxWorker reassembles frames from inbound byte chunks. It appends each
// chunk to its buffer, repeatedly peels complete frames off the front, and
// dispatches them in arrival order. A nil chunk discards the buffer (sent
// on disconnect so stale bytes never bleed into the next connection).
func (c *Client) rxWorker() {
	defer c.wg.Done()

	var buf []byte
	for {
		select {
		case <-c.ctx.Done():
			return
		case chunk := <-c.rxq:
			if chunk == nil {
				buf = buf[:0]
				continue
			}
			buf = append(buf, chunk...)

			for len(buf) > 0 {
				consumed, frame, _ := protocol.Decode(buf)
				if consumed > 0 && frame == nil {
					logging.Debug("Skipped unparsable bytes",
						zap.String("device", c.device),
						zap.Int("count", consumed),
						zap.String("hex", hex.EncodeToString(buf[:consumed])),
					)
				}
				buf = buf[consumed:]

				if frame == nil {
					if consumed == 0 && len(buf) >= desyncThreshold {
						logging.Warn("Stream desynchronized, discarding buffer",
							zap.String("device", c.device),
							zap.Int("buffered", len(buf)),
						)
						buf = buf[:0]
						go c.reconnect(c.desyncDelay)
					}
					break
				}

				c.dispatch(frame)
			}
		}
	}
}

// dispatch routes one decoded frame: to the in-flight transaction (ack and
// reply matching) and, for messages, to raw listeners and the attribute
// decoder.
func (c *Client) dispatch(frame protocol.Frame) {
	switch m := frame.(type) {
	case protocol.Ack:
		logging.Debug("Read ack", zap.String("device", c.device))
		if p := c.current(); p != nil {
			signal(p.ack)
		}

	case *protocol.Message:
		logging.LogFrame(c.device, "rx", m.Cmd, m.Data)
		if p := c.current(); p != nil && p.pair.Reply != nil {
			want := p.pair.Reply
			if uint16(want.Cmd) == m.Cmd && (want.Data == nil || bytes.Equal(want.Data, m.Data)) {
				signal(p.reply)
			}
		}
		c.notifyRaw(m)
		c.cook(m)
	}
}

func (c *Client) notifyRaw(m *protocol.Message) {
	c.lmu.Lock()
	fns := make([]RawListener, 0, len(c.rawListeners))
	for _, fn := range c.rawListeners {
		fns = append(fns, fn)
	}
	c.lmu.Unlock()

	for _, fn := range fns {
		fn(m.Cmd, m.Data)
	}
}

// cook runs the attribute decoder over one message: dedup against the raw
// cache, extract each matching attribute's bit-field, dedup against the
// cooked cache and notify listeners of actual changes.
func (c *Client) cook(m *protocol.Message) {
	type call struct {
		attr  protocol.Attribute
		value protocol.Value
		fns   []AttributeListener
	}

	c.lmu.Lock()
	if len(c.attrListeners) == 0 {
		c.lmu.Unlock()
		return
	}
	if prev, ok := c.rawCache[m.Cmd]; ok && bytes.Equal(prev, m.Data) {
		c.lmu.Unlock()
		return
	}
	c.rawCache[m.Cmd] = append([]byte(nil), m.Data...)

	var calls []call
	for attr, listeners := range c.attrListeners {
		if attr.Cmd != m.Cmd {
			continue
		}
		value, ok := attr.Decode(m.Data)
		if !ok {
			continue
		}
		if prev, hit := c.cookedCache[attr]; hit && prev.Equal(value) {
			continue
		}
		c.cookedCache[attr] = value

		fns := make([]AttributeListener, 0, len(listeners))
		for _, fn := range listeners {
			fns = append(fns, fn)
		}
		calls = append(calls, call{attr: attr, value: value, fns: fns})
	}
	c.lmu.Unlock()

	for _, cl := range calls {
		for _, fn := range cl.fns {
			fn(cl.attr, cl.value)
		}
	}
}
