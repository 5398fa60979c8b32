package protocol

// Status classifies the outcome of a Decode pass over a receive buffer.
type Status int

const (
	// NoMatch means nothing recognizable was found. Consumed bytes may
	// still be non-zero when a bracketed-but-invalid candidate was skipped.
	NoMatch Status = iota
	// Incomplete means a structurally plausible frame start was found but
	// there are not yet enough buffered bytes to verify it. The candidate
	// is not consumed; the caller should wait for more data.
	Incomplete
	// FrameDecoded means a validated Ack or Message was extracted.
	FrameDecoded
)

func (s Status) String() string {
	switch s {
	case NoMatch:
		return "no-match"
	case Incomplete:
		return "incomplete"
	case FrameDecoded:
		return "frame"
	default:
		return "unknown"
	}
}

// candidate evaluation results, internal to the scanner
type candResult int

const (
	candOK         candResult = iota // valid message
	candIncomplete                   // need more bytes before judging
	candInvalid                      // bracketed frame that failed validation; skip it whole
	candNoBracket                    // not a frame at this position at all
)

// Decode scans buf for the earliest complete frame and returns how many
// leading bytes were consumed together with the decoded frame, if any.
//
// Resynchronization policy: bytes that do not start a plausible frame are
// scanned past, and a candidate that matches the outer bracket pattern but
// fails content validation (length or checksum mismatch) is skipped as
// garbage rather than retried. Skipped regions are only consumed once a
// later frame (or the end of the skipped region itself) anchors the new
// scan position, so a partially received frame is never thrown away.
//
// When a short candidate could still complete (fewer than
// declared_length*2+8 bytes available from its start), Decode reports
// Incomplete without consuming it. Persistent NoMatch/Incomplete with zero
// consumed bytes against a large buffer indicates stream corruption; that
// escalation is the caller's job.
func Decode(buf []byte) (int, Frame, Status) {
	consumed := 0 // end of the last skipped bracketed candidate

	for i := 0; i < len(buf); i++ {
		if buf[i] != Esc {
			continue
		}
		if i+1 >= len(buf) {
			// Trailing lone escape byte: possibly the first half of a
			// marker still in flight.
			return consumed, nil, Incomplete
		}

		switch buf[i+1] {
		case ackSuffix:
			return i + 2, Ack{}, FrameDecoded

		case startSuffix:
			n, msg, res := parseCandidate(buf[i:])
			switch res {
			case candOK:
				return i + n, msg, FrameDecoded
			case candIncomplete:
				return consumed, nil, Incomplete
			case candInvalid:
				consumed = i + n
				i += n - 1
			case candNoBracket:
				// keep scanning from the next byte
			}
		}
	}

	return consumed, nil, NoMatch
}

// parseCandidate inspects a buffer starting at a start marker and tries to
// parse one complete message. n is the number of bytes the candidate spans
// (meaningful for candOK and candInvalid).
func parseCandidate(b []byte) (n int, msg *Message, res candResult) {
	// Header: START(2) + cmd_hi + cmd_lo + length, all unescaped.
	if len(b) < 5 {
		if len(b) > 2 && b[2] != 0x00 {
			return 0, nil, candNoBracket
		}
		if len(b) > 3 && !validCommands[b[3]] {
			return 0, nil, candNoBracket
		}
		return 0, nil, candIncomplete
	}
	if b[2] != 0x00 || !validCommands[b[3]] || b[4] > MaxDataLength {
		return 0, nil, candNoBracket
	}
	length := int(b[4])

	// Walk the escaped region. It is a prefix-free token stream: a literal
	// byte, or Esc Esc for a literal escape. The first Esc followed by a
	// non-Esc byte terminates the stream and must be the end marker.
	var tokens []byte
	pos := 5
	for {
		if pos >= len(b) {
			return 0, nil, candIncomplete
		}
		c := b[pos]
		if c != Esc {
			tokens = append(tokens, c)
			pos++
		} else {
			if pos+1 >= len(b) {
				return 0, nil, candIncomplete
			}
			if b[pos+1] != Esc {
				break // boundary reached
			}
			tokens = append(tokens, Esc)
			pos += 2
		}
		// data (<=64) plus one checksum token at most
		if len(tokens) > MaxDataLength+1 {
			return 0, nil, candNoBracket
		}
	}

	if b[pos+1] != endSuffix {
		// Some other marker interrupts the frame; rescanning from inside
		// the candidate will pick it up.
		return 0, nil, candNoBracket
	}
	end := pos + 2

	if len(tokens) == 0 {
		return 0, nil, candNoBracket
	}
	data := tokens[:len(tokens)-1]
	cs := tokens[len(tokens)-1]

	if len(data) < length && len(b) < length*2+8 {
		// The real end marker may still be on the wire; what looked like
		// one was payload content.
		return 0, nil, candIncomplete
	}
	if len(data) != length {
		return end, nil, candInvalid
	}

	payload := make([]byte, 0, 3+len(data))
	payload = append(payload, b[2], b[3], b[4])
	payload = append(payload, data...)
	if Checksum(payload) != cs {
		return end, nil, candInvalid
	}

	cmd := uint16(b[2])<<8 | uint16(b[3])
	out := make([]byte, len(data))
	copy(out, data)
	return end, &Message{Cmd: cmd, Data: out}, candOK
}
