// Package protocol implements the ComfoAir CC-Ease wire protocol.
//
// The controller speaks a byte-stuffed binary framing over RS-232 (or a
// TCP-transported serial bridge). A frame is either a message
//
//	START + cmd_hi(0x00) + cmd_lo + length + escaped(data) + escaped(checksum) + END
//
// or a bare two-byte acknowledgement marker. The reserved byte 0x07 acts as
// the escape prefix for all delimiters and is doubled wherever it occurs
// literally inside data or checksum.
//
// The package is pure and stateless: Encode builds outgoing frames, Decode
// scans a receive buffer and peels off at most one complete validated frame
// per call, reporting how many leading bytes were consumed so that callers
// can resynchronize across arbitrary chunk boundaries.
package protocol
