// Package decoder implements C6: it orchestrates the chunk header parser
// and reassembler (package chunk) and the message decoder (package message)
// across repeated Feed calls, tracking how many more bytes are needed to
// make progress and poisoning the connection on any protocol fault.
//
// Grounded on the teacher's session.go/message_manager.go control loop
// (`for { session.messageManager.nextMessage() }`), reshaped from a
// blocking-read loop into a pure (state, bytes) -> (state, events) function
// since this repository's decoder has no socket of its own — the caller
// supplies bytes via Feed, per spec.md §1's transport boundary.
package decoder

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/brightloop/rtmp-ingest/chunk"
	"github.com/brightloop/rtmp-ingest/config"
	"github.com/brightloop/rtmp-ingest/cursor"
	"github.com/brightloop/rtmp-ingest/message"
	"github.com/brightloop/rtmp-ingest/rand"
	"github.com/brightloop/rtmp-ingest/rtmperrors"
)

// ConnectionState mirrors spec.md §3's connection_state enumeration. The
// decoder only acts while CONNECTED.
type ConnectionState uint8

const (
	StateConnected ConnectionState = iota
	StateError
	StateDisconnecting
	StateDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnected:
		return "CONNECTED"
	case StateError:
		return "ERROR"
	case StateDisconnecting:
		return "DISCONNECTING"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// DecodeState mirrors spec.md §3's decode_state: either ready to attempt
// another decode pass, or blocked on at least Needed additional bytes.
type DecodeState struct {
	Ready  bool
	Needed int
}

// Config configures a Decoder. Zero-value Logger is replaced with a no-op
// logger (teacher's session.go always receives an injected *zap.Logger; we
// make that optional for callers that don't care).
type Config struct {
	ReadChunkSize      uint32
	MaxPacketSize      uint32
	CloseOnHeaderError bool
	Logger             *zap.Logger
}

// Decoder is a per-connection RTMP chunk-stream decoder. It is not safe for
// concurrent use — the transport layer is expected to serialize Feed calls
// for one connection, per spec.md §5.
type Decoder struct {
	cur         *cursor.Cursor
	channels    map[uint16]*chunk.ChannelState
	reassembler *chunk.Reassembler
	strict      bool

	state       ConnectionState
	decodeState DecodeState

	sessionID string
	logger    *zap.Logger
}

// New returns a Decoder ready to accept bytes via Feed.
func New(cfg Config) *Decoder {
	readChunkSize := cfg.ReadChunkSize
	if readChunkSize == 0 {
		readChunkSize = config.DefaultReadChunkSize
	}
	maxPacketSize := cfg.MaxPacketSize
	if maxPacketSize == 0 {
		maxPacketSize = config.DefaultMaxPacketSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sessionID := rand.GenerateUuid()
	return &Decoder{
		cur:         cursor.New(nil),
		channels:    make(map[uint16]*chunk.ChannelState),
		reassembler: chunk.NewReassembler(readChunkSize, maxPacketSize),
		strict:      cfg.CloseOnHeaderError,
		state:       StateConnected,
		decodeState: DecodeState{Ready: true},
		sessionID:   sessionID,
		logger:      logger.With(zap.String("session_id", sessionID)),
	}
}

// SessionID returns the decoder's generated connection id, attached to
// every log line it emits.
func (d *Decoder) SessionID() string {
	return d.sessionID
}

// State reports the connection's current state.
func (d *Decoder) State() ConnectionState {
	return d.state
}

// ReadChunkSize reports the currently negotiated read chunk size.
func (d *Decoder) ReadChunkSize() uint32 {
	return d.reassembler.ReadChunkSize
}

// Feed implements spec.md §4.6: append bytes to the cursor, repeatedly run
// chunk-header-parse → reassemble → message-decode until no more progress
// can be made, then compact the cursor. Returns the events produced by this
// call; any ProtocolError is connection-fatal, per spec.md §7.
func (d *Decoder) Feed(b []byte) ([]message.Event, error) {
	if d.state != StateConnected {
		return nil, errors.Errorf("decoder: Feed called while connection state is %s", d.state)
	}

	d.cur.Append(b)

	var events []message.Event

decodeLoop:
	for {
		if !d.decodeState.Ready && d.cur.Remaining() < d.decodeState.Needed {
			break decodeLoop
		}

		d.cur.Mark()
		header, result, needed, err := chunk.ParseHeader(d.cur, d.channels, d.strict)
		if err != nil {
			d.fail(err)
			return events, err
		}

		switch result {
		case chunk.ParseNeedMore:
			d.decodeState = DecodeState{Ready: false, Needed: needed}
			break decodeLoop

		case chunk.ParseSkip:
			if _, shortfall := d.reassembler.DropOrphanChunk(d.cur); shortfall > 0 {
				d.cur.Reset()
				d.decodeState = DecodeState{Ready: false, Needed: shortfall}
				break decodeLoop
			}
			d.decodeState = DecodeState{Ready: true}
			continue decodeLoop

		case chunk.ParseOK:
			state := d.channels[header.ChannelID]
			complete, shortfall, err := d.reassembler.AppendChunk(d.cur, header, state)
			if err != nil {
				d.fail(err)
				return events, err
			}
			if shortfall > 0 {
				d.cur.Reset()
				d.decodeState = DecodeState{Ready: false, Needed: shortfall}
				break decodeLoop
			}
			d.decodeState = DecodeState{Ready: true}
			if !complete {
				continue decodeLoop
			}

			payload := d.reassembler.CompleteAndClear(state)
			ev, err := message.Decode(header.DataType, header.StreamID, payload)
			if err != nil {
				d.fail(err)
				return events, err
			}
			ev.Timestamp = header.Timestamp()
			d.applySideEffects(header, state, ev)
			events = append(events, ev)
			continue decodeLoop
		}
	}

	d.cur.Compact()
	return events, nil
}

// applySideEffects implements the remaining stateful rules from spec.md
// §4.4/§4.5: ChunkSize/Abort mutate shared decoder state, and the emitted
// event's effective timestamp is folded back into the channel's last header
// so subsequent format-1/2 deltas keep chaining correctly.
func (d *Decoder) applySideEffects(header chunk.Header, state *chunk.ChannelState, ev message.Event) {
	if state.LastHeader != nil {
		state.LastHeader.TimerBase = ev.Timestamp
		state.LastHeader.TimerDelta = 0
	}

	switch ev.Type {
	case message.TypeChunkSize:
		d.reassembler.ReadChunkSize = ev.ChunkSize
		d.logger.Debug("chunk size updated", zap.Uint32("read_chunk_size", ev.ChunkSize))
	case message.TypeAbort:
		d.reassembler.Abort(d.channels, uint16(ev.AbortChan))
		d.logger.Debug("channel aborted", zap.Uint16("channel_id", uint16(ev.AbortChan)))
	}
	if ev.Unknown != nil {
		d.logger.Warn("unknown message type", zap.Uint8("data_type", header.DataType))
	}
	if header.ChannelID == config.ProtocolControlChannel {
		d.logger.Debug("protocol control message", zap.Uint8("data_type", header.DataType))
	}
}

// fail implements spec.md §7's fatal-error policy: the cursor is cleared,
// the connection state is poisoned to ERROR, and the fault is logged with
// enough context (already embedded in a *rtmperrors.ProtocolError) to
// reproduce it.
func (d *Decoder) fail(err error) {
	d.state = StateError
	d.cur = cursor.New(nil)

	var protoErr *rtmperrors.ProtocolError
	if errors.As(err, &protoErr) {
		d.logger.Error("protocol error, connection poisoned",
			zap.String("session_id", d.sessionID),
			zap.Error(protoErr),
		)
		return
	}
	d.logger.Error("decode error, connection poisoned",
		zap.String("session_id", d.sessionID),
		zap.Error(err),
	)
}
