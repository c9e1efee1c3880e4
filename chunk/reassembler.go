package chunk

import (
	"github.com/brightloop/rtmp-ingest/cursor"
	"github.com/brightloop/rtmp-ingest/rtmperrors"
)

// Packet is one in-flight message reassembly for a channel, per spec.md §3.
type Packet struct {
	Header  Header
	payload []byte
	written uint32
}

// Remaining returns how many payload bytes are still needed to complete
// this packet's message.
func (p *Packet) Remaining() uint32 {
	return p.Header.Size - p.written
}

// Complete reports whether the packet's payload has been fully received.
func (p *Packet) Complete() bool {
	return p.written == p.Header.Size
}

// Payload returns the fully-written payload. Only valid once Complete()
// is true.
func (p *Packet) Payload() []byte {
	return p.payload
}

// Reassembler implements C4: it accumulates chunk payload bytes per channel
// against the negotiated ReadChunkSize, honoring spec.md §4.4's algorithm.
// Grounded on the teacher's chunk_handler.go assembleMessage/ReadChunkData,
// adapted to the cursor's short-read signaling instead of blocking reads,
// and on message_stream.go's per-channel MessageState for the in-flight
// bookkeeping shape.
type Reassembler struct {
	ReadChunkSize  uint32
	MaxPacketSize  uint32
}

// NewReassembler returns a Reassembler with the given initial chunk size and
// oversize-message ceiling (spec.md §3 invariant 6).
func NewReassembler(readChunkSize, maxPacketSize uint32) *Reassembler {
	return &Reassembler{ReadChunkSize: readChunkSize, MaxPacketSize: maxPacketSize}
}

// AppendChunk implements C4 steps 1-4: given a freshly-parsed header and the
// channel's current state, it opens a new Packet if needed, reads up to one
// chunk's worth of payload from cur, and reports whether the message is now
// complete. On a short read it rewinds cur to the position it was at on
// entry and reports ParseNeedMore-equivalent via the bool/int return.
func (r *Reassembler) AppendChunk(cur *cursor.Cursor, header Header, state *ChannelState) (complete bool, needMore int, err error) {
	if state.InFlight == nil {
		if header.Size > r.MaxPacketSize {
			return false, 0, rtmperrors.Wrap(rtmperrors.ErrOversizedMessage, cur.Position(), cur.Len(), nil)
		}
		state.InFlight = &Packet{
			Header:  header.Clone(),
			payload: make([]byte, header.Size),
		}
	}

	packet := state.InFlight
	chunkLen := packet.Remaining()
	if chunkLen > r.ReadChunkSize {
		chunkLen = r.ReadChunkSize
	}

	if uint32(cur.Remaining()) < chunkLen {
		return false, int(chunkLen) - cur.Remaining(), nil
	}

	b, ok := cur.ReadBytes(int(chunkLen))
	if !ok {
		return false, int(chunkLen) - cur.Remaining(), nil
	}
	copy(packet.payload[packet.written:], b)
	packet.written += chunkLen

	if packet.Complete() {
		return true, 0, nil
	}
	return false, 0, nil
}

// Abort implements the abort-handling rule from spec.md §4.4: it discards
// any partial packet in flight for the named channel.
func (r *Reassembler) Abort(channels map[uint16]*ChannelState, channelID uint16) {
	if state, ok := channels[channelID]; ok {
		state.InFlight = nil
	}
}

// CompleteAndClear returns the finished packet's payload and clears the
// channel's in-flight state, per the Open Question decision in spec.md §9:
// the in-flight packet is cleared whenever its message completes, not only
// on abort.
func (r *Reassembler) CompleteAndClear(state *ChannelState) []byte {
	p := state.InFlight
	state.InFlight = nil
	if p == nil {
		return nil
	}
	return p.Payload()
}

// DropOrphanChunk discards up to ReadChunkSize bytes from cur for a channel
// whose header could not be resolved (lenient orphan-header handling). It
// is a best-effort resync: without a prior header there is no reliable
// message size, so it can only drop one "typical" chunk's worth of bytes at
// a time and let the next header parse attempt resynchronize.
func (r *Reassembler) DropOrphanChunk(cur *cursor.Cursor) (dropped int, needMore int) {
	n := int(r.ReadChunkSize)
	if cur.Remaining() < n {
		return 0, n - cur.Remaining()
	}
	cur.Skip(n)
	return n, 0
}
