// Package chunk implements the chunk header parser (C3) and the per-channel
// reassembler (C4): the heart of the decoder, grounded on the teacher's
// chunk_handler.go (basic/message header shapes) and message_stream.go
// (per-channel state carried across chunks) but reshaped around a
// rewindable cursor instead of a blocking bufio.Reader, per spec.md §4.3.
package chunk

import (
	"github.com/brightloop/rtmp-ingest/cursor"
	"github.com/brightloop/rtmp-ingest/rtmperrors"
)

// Format is the 2-bit chunk basic header tag (fmt field), selecting how much
// of the message header is present versus inherited from the channel's
// last header.
type Format uint8

const (
	Format0 Format = 0
	Format1 Format = 1
	Format2 Format = 2
	Format3 Format = 3
)

// Message header lengths per format, per spec.md §4.3 step 2.
const (
	msgHeaderLenFormat0 = 11
	msgHeaderLenFormat1 = 7
	msgHeaderLenFormat2 = 3
	msgHeaderLenFormat3 = 0
)

const extendedTimestampSentinel = 0xFFFFFF
const extendedTimestampLen = 4

// Header is a fully-resolved chunk header: the message-level fields a
// reassembled message carries, independent of which wire format produced
// them. Mirrors spec.md §3's Header record.
type Header struct {
	ChannelID      uint16
	Size           uint32
	DataType       uint8
	StreamID       uint32
	TimerBase      uint32
	TimerDelta     uint32
	Extended       bool
}

// Timestamp returns the effective message timestamp per spec.md §3
// invariant 4: TimerBase+TimerDelta for formats 1/2, TimerBase alone for
// format 0 and extended format 3, and the header's own TimerBase for a
// plain format-3 continuation (ParseHeader already folds that case into
// TimerBase so this is always the right sum).
func (h Header) Timestamp() uint32 {
	return h.TimerBase + h.TimerDelta
}

// Clone returns a copy of h, used when opening a new in-flight Packet so
// later mutation of the channel's "last header" doesn't alias the packet's
// own header.
func (h Header) Clone() Header {
	return h
}

// ChannelState is the decoder's per-channel memory: the last fully-decoded
// header (needed to resolve compressed formats 1-3) and whether this
// channel's timestamps are currently in extended (32-bit) form. Grounded on
// message_stream.go's per-csid MessageState map entry.
type ChannelState struct {
	LastHeader *Header
	Extended   bool
	InFlight   *Packet
}

// ParseResult distinguishes a successfully parsed header from the two
// non-fatal outcomes the spec calls for: "need more bytes" and "skip this
// orphaned compressed header" (lenient mode).
type ParseResult int

const (
	ParseOK ParseResult = iota
	ParseNeedMore
	ParseSkip
)

// ParseHeader implements C3: it reads one chunk's basic header, message
// header, and (if present) extended timestamp from cur, resolving compressed
// formats against channels's per-channel state. On ParseNeedMore, cur has
// been rewound to start and needed is the number of additional bytes
// required for another attempt to make progress (not a tight bound — just
// enough to guarantee at least one more byte gets consumed).
//
// strict selects spec.md §3 invariant 3's policy for an orphaned compressed
// header: strict=true returns a *rtmperrors.ProtocolError wrapping
// ErrOrphanCompressedHeader; strict=false returns ParseSkip.
func ParseHeader(cur *cursor.Cursor, channels map[uint16]*ChannelState, strict bool) (Header, ParseResult, int, error) {
	start := cur.Position()
	cur.Mark()

	channelID, fmtTag, ok := readBasicHeader(cur)
	if !ok {
		cur.Reset()
		return Header{}, ParseNeedMore, 1, nil
	}
	if fmtTag > Format3 {
		// fmt is a 2-bit field, so this is unreachable by construction; kept
		// as a named check rather than folding Format3 into a bare default
		// elsewhere, since spec.md §7 names this as its own error kind.
		cur.SetPosition(start)
		return Header{}, ParseOK, 0, rtmperrors.Wrap(rtmperrors.ErrUnexpectedHeaderFormat, cur.Position(), cur.Len(), remainingBytes(cur))
	}

	state, exists := channels[channelID]
	if !exists {
		state = &ChannelState{}
		channels[channelID] = state
	}

	orphan := fmtTag != Format0 && state.LastHeader == nil

	msgLen := messageHeaderLength(fmtTag)
	if cur.Remaining() < msgLen {
		needed := msgLen - cur.Remaining()
		cur.Reset()
		return Header{}, ParseNeedMore, needed, nil
	}

	if orphan {
		if strict {
			cur.SetPosition(start)
			return Header{}, ParseOK, 0, rtmperrors.Wrap(rtmperrors.ErrOrphanCompressedHeader, cur.Position(), cur.Len(), remainingBytes(cur))
		}
		// Lenient mode: consume the header bytes (we know their length from
		// fmtTag alone) so the cursor stays in sync, but don't attempt to
		// populate fields that would require inheriting from a header that
		// doesn't exist. The reassembler drops this channel's chunk-sized
		// payload too, since without a prior header there is no reliable
		// message size to reassemble against.
		cur.Skip(msgLen)
		return Header{}, ParseSkip, 0, nil
	}

	h, extendedPending := buildHeader(cur, fmtTag, channelID, state)

	if extendedPending {
		if cur.Remaining() < extendedTimestampLen {
			needed := extendedTimestampLen - cur.Remaining()
			cur.Reset()
			return Header{}, ParseNeedMore, needed, nil
		}
		ext, _ := cur.ReadU32BE()
		if fmtTag == Format0 {
			h.TimerBase = ext
		} else if fmtTag == Format1 || fmtTag == Format2 {
			h.TimerDelta = ext
		} else {
			// Format3: the extended field replaces the inherited base,
			// per spec.md §4.3 step 4 and the second Open Question in §9.
			h.TimerBase = ext
			h.TimerDelta = 0
		}
		h.Extended = true
		state.Extended = true
	} else if fmtTag != Format3 {
		state.Extended = false
	}

	channels[channelID] = state
	state.LastHeader = &h
	return h, ParseOK, 0, nil
}

func remainingBytes(cur *cursor.Cursor) []byte {
	b, _ := cur.Peek(cur.Remaining())
	return b
}

func messageHeaderLength(f Format) int {
	switch f {
	case Format0:
		return msgHeaderLenFormat0
	case Format1:
		return msgHeaderLenFormat1
	case Format2:
		return msgHeaderLenFormat2
	default:
		return msgHeaderLenFormat3
	}
}

// readBasicHeader decodes the 1-3 byte chunk basic header: fmt in the top 2
// bits of the first byte, channel id encoded per spec.md §4.3 step 1.
func readBasicHeader(cur *cursor.Cursor) (uint16, Format, bool) {
	b, ok := cur.ReadU8()
	if !ok {
		return 0, 0, false
	}
	fmtTag := Format(b >> 6)
	low6 := b & 0x3F

	switch low6 {
	case 0:
		id, ok := cur.ReadU8()
		if !ok {
			return 0, 0, false
		}
		return uint16(id) + 64, fmtTag, true
	case 1:
		id, ok := cur.ReadU16BE()
		if !ok {
			return 0, 0, false
		}
		// id was read big-endian but the two-byte chunk-stream-id form is
		// little-endian on the wire per spec.md §4.3 step 1.
		swapped := (id>>8)&0xFF | (id&0xFF)<<8
		return swapped + 64, fmtTag, true
	default:
		return uint16(low6), fmtTag, true
	}
}

// buildHeader decodes the message header fields for fmtTag, inheriting from
// state.LastHeader where the format doesn't carry its own value, and reports
// whether an extended timestamp field follows (the 0xFFFFFF sentinel rule).
func buildHeader(cur *cursor.Cursor, fmtTag Format, channelID uint16, state *ChannelState) (Header, bool) {
	var h Header
	h.ChannelID = channelID

	switch fmtTag {
	case Format0:
		ts, _ := cur.ReadU24BE()
		size, _ := cur.ReadU24BE()
		dataType, _ := cur.ReadU8()
		streamID, _ := cur.ReadU32LE()
		h.TimerBase = ts
		h.TimerDelta = 0
		h.Size = size
		h.DataType = dataType
		h.StreamID = streamID
		return h, ts == extendedTimestampSentinel

	case Format1:
		delta, _ := cur.ReadU24BE()
		size, _ := cur.ReadU24BE()
		dataType, _ := cur.ReadU8()
		prev := state.LastHeader
		h.TimerBase = prev.Timestamp()
		h.TimerDelta = delta
		h.Size = size
		h.DataType = dataType
		h.StreamID = prev.StreamID
		return h, delta == extendedTimestampSentinel

	case Format2:
		delta, _ := cur.ReadU24BE()
		prev := state.LastHeader
		h.TimerBase = prev.Timestamp()
		h.TimerDelta = delta
		h.Size = prev.Size
		h.DataType = prev.DataType
		h.StreamID = prev.StreamID
		return h, delta == extendedTimestampSentinel

	default: // Format3
		prev := state.LastHeader
		h.Size = prev.Size
		h.DataType = prev.DataType
		h.StreamID = prev.StreamID
		if state.Extended {
			// The extended field (if present) replaces TimerBase; until
			// read, inherit the previous effective timestamp as the base
			// with no delta, per spec.md §3 invariant 4's format-3 case.
			h.TimerBase = prev.Timestamp()
			h.TimerDelta = 0
			return h, true
		}
		h.TimerBase = prev.Timestamp()
		h.TimerDelta = 0
		return h, false
	}
}
