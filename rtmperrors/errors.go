// Package rtmperrors defines the protocol-level error kinds the decoder can
// raise, following the teacher's errors.go idiom of package-level sentinel
// values (extended here since the spec names concrete error kinds the
// teacher's two generic sentinels don't cover).
package rtmperrors

import (
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel protocol errors. Compare with errors.Is; the decoder usually
// returns these wrapped with context via Wrap* below.
var (
	ErrUnexpectedHeaderFormat     = errors.New("rtmp: chunk basic header format byte out of range 0-3")
	ErrOrphanCompressedHeader     = errors.New("rtmp: compressed chunk header received for a channel with no prior format-0 header")
	ErrOversizedMessage           = errors.New("rtmp: declared message size exceeds the configured maximum packet size")
	ErrMalformedAmf               = errors.New("rtmp: failed to decode AMF value")
	ErrUnknownSharedObjectEncoding = errors.New("rtmp: shared object message carried an encoding selector other than AMF0 or AMF3")
)

// ProtocolError wraps a sentinel with the decode position and a hex dump of
// the remaining buffer, for reproducibility when the error is logged. Any
// ProtocolError is connection-fatal per spec.md §7.
type ProtocolError struct {
	Err      error
	Position int
	Limit    int
	// Remaining is a short hex dump of the cursor's unread bytes at the
	// point of failure, truncated to keep log lines bounded.
	Remaining string
}

const maxHexDump = 64

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s (position=%d limit=%d remaining=%s)", e.Err, e.Position, e.Limit, e.Remaining)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Wrap builds a ProtocolError carrying the cursor's current position, total
// length, and a bounded hex dump of the bytes from position onward.
func Wrap(err error, position, limit int, remaining []byte) *ProtocolError {
	dump := remaining
	truncated := false
	if len(dump) > maxHexDump {
		dump = dump[:maxHexDump]
		truncated = true
	}
	s := hex.EncodeToString(dump)
	if truncated {
		s += "..."
	}
	return &ProtocolError{Err: err, Position: position, Limit: limit, Remaining: s}
}
