package chunk

import (
	"bytes"
	"testing"

	"github.com/brightloop/rtmp-ingest/cursor"
)

func TestReassembleSingleChunkMessage(t *testing.T) {
	channels := newChannels()
	header := Header{ChannelID: 3, Size: 16, DataType: 8, StreamID: 1}
	state := &ChannelState{}
	channels[3] = state

	payload := bytes.Repeat([]byte{0xAB}, 16)
	cur := cursor.New(payload)

	r := NewReassembler(128, 3*1024*1024)
	complete, needMore, err := r.AppendChunk(cur, header, state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if needMore != 0 {
		t.Fatalf("expected no short read, got needMore=%d", needMore)
	}
	if !complete {
		t.Fatal("expected single-chunk message to complete in one AppendChunk call")
	}
	got := r.CompleteAndClear(state)
	if !bytes.Equal(got, payload) {
		t.Errorf("payload mismatch: got %v want %v", got, payload)
	}
	if state.InFlight != nil {
		t.Error("expected in-flight packet cleared after CompleteAndClear")
	}
}

func TestReassembleTwoChunkAudioMessage(t *testing.T) {
	channels := newChannels()
	header := Header{ChannelID: 4, Size: 200, DataType: 8, StreamID: 1}
	state := &ChannelState{}
	channels[4] = state

	full := make([]byte, 200)
	for i := range full {
		full[i] = byte(i)
	}

	r := NewReassembler(128, 3*1024*1024)

	cur1 := cursor.New(full[:128])
	complete, needMore, err := r.AppendChunk(cur1, header, state)
	if err != nil {
		t.Fatalf("unexpected error on first chunk: %v", err)
	}
	if needMore != 0 {
		t.Fatalf("unexpected needMore on first chunk: %d", needMore)
	}
	if complete {
		t.Fatal("200-byte message must not complete after first 128-byte chunk")
	}

	cur2 := cursor.New(full[128:200])
	complete, needMore, err = r.AppendChunk(cur2, header, state)
	if err != nil {
		t.Fatalf("unexpected error on second chunk: %v", err)
	}
	if needMore != 0 {
		t.Fatalf("unexpected needMore on second chunk: %d", needMore)
	}
	if !complete {
		t.Fatal("expected message to complete after second chunk")
	}

	got := r.CompleteAndClear(state)
	if !bytes.Equal(got, full) {
		t.Errorf("reassembled payload mismatch")
	}
}

func TestReassembleShortReadDoesNotAdvance(t *testing.T) {
	channels := newChannels()
	header := Header{ChannelID: 5, Size: 16, DataType: 8, StreamID: 1}
	state := &ChannelState{}
	channels[5] = state

	r := NewReassembler(128, 3*1024*1024)
	cur := cursor.New([]byte{0x01, 0x02, 0x03}) // only 3 of 16 bytes available

	complete, needMore, err := r.AppendChunk(cur, header, state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if complete {
		t.Fatal("expected incomplete result on short read")
	}
	if needMore <= 0 {
		t.Errorf("expected positive needMore, got %d", needMore)
	}
	if state.InFlight == nil {
		t.Fatal("expected packet to remain in flight across the short read")
	}
	if state.InFlight.written != 0 {
		t.Errorf("expected no bytes consumed on short read, got written=%d", state.InFlight.written)
	}
}

func TestAbortDiscardsPartialPacket(t *testing.T) {
	channels := newChannels()
	header := Header{ChannelID: 6, Size: 16, DataType: 8, StreamID: 1}
	state := &ChannelState{}
	channels[6] = state

	r := NewReassembler(128, 3*1024*1024)
	cur := cursor.New(bytes.Repeat([]byte{0x01}, 8))
	// Feed fewer bytes than the message size so the packet stays partial;
	// AppendChunk will try to read min(16,128)=16 bytes and short-read.
	_, _, err := r.AppendChunk(cur, header, state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.InFlight == nil {
		t.Fatal("expected in-flight packet before abort")
	}

	r.Abort(channels, 6)
	if state.InFlight != nil {
		t.Error("expected Abort to discard the partial in-flight packet")
	}
}

func TestOversizedMessageRejected(t *testing.T) {
	channels := newChannels()
	header := Header{ChannelID: 7, Size: 1024, DataType: 8, StreamID: 1}
	state := &ChannelState{}
	channels[7] = state

	r := NewReassembler(128, 512) // max packet size smaller than message size
	cur := cursor.New(bytes.Repeat([]byte{0x01}, 128))

	_, _, err := r.AppendChunk(cur, header, state)
	if err == nil {
		t.Fatal("expected oversized message to be rejected")
	}
}

func TestDropOrphanChunk(t *testing.T) {
	r := NewReassembler(128, 3*1024*1024)

	cur := cursor.New(bytes.Repeat([]byte{0x02}, 64))
	dropped, needMore := r.DropOrphanChunk(cur)
	if needMore == 0 {
		t.Fatal("expected needMore for a buffer shorter than the chunk size")
	}
	if dropped != 0 {
		t.Errorf("expected no bytes dropped on short buffer, got %d", dropped)
	}

	cur2 := cursor.New(bytes.Repeat([]byte{0x02}, 200))
	dropped, needMore = r.DropOrphanChunk(cur2)
	if needMore != 0 {
		t.Fatalf("unexpected needMore: %d", needMore)
	}
	if dropped != 128 {
		t.Errorf("expected 128 bytes dropped, got %d", dropped)
	}
}
