package decoder

import (
	"testing"

	"github.com/brightloop/rtmp-ingest/message"
)

func buildFormat0Header(channelID uint16, ts, size uint32, dataType uint8, streamID uint32) []byte {
	b := []byte{byte(channelID)} // fmt=0 (top bits 00), channelID in 2..63
	b = append(b, byte(ts>>16), byte(ts>>8), byte(ts))
	b = append(b, byte(size>>16), byte(size>>8), byte(size))
	b = append(b, dataType)
	b = append(b, byte(streamID), byte(streamID>>8), byte(streamID>>16), byte(streamID>>24))
	return b
}

func buildFormat3Basic(channelID uint16) []byte {
	return []byte{0xC0 | byte(channelID)}
}

func beU32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func TestFeedSingleChunkChunkSize(t *testing.T) {
	d := New(Config{})

	var buf []byte
	buf = append(buf, buildFormat0Header(3, 0, 4, message.TypeChunkSize, 0)...)
	buf = append(buf, beU32(4096)...)

	events, err := d.Feed(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ChunkSize != 4096 {
		t.Errorf("got chunk size %d, want 4096", events[0].ChunkSize)
	}
	if d.ReadChunkSize() != 4096 {
		t.Errorf("decoder ReadChunkSize() = %d, want 4096", d.ReadChunkSize())
	}
}

func TestFeedTwoChunkAudioMessage(t *testing.T) {
	d := New(Config{ReadChunkSize: 128})

	full := make([]byte, 200)
	for i := range full {
		full[i] = byte(i)
	}

	var buf []byte
	buf = append(buf, buildFormat0Header(3, 1000, 200, message.TypeAudio, 1)...)
	buf = append(buf, full[:128]...)
	buf = append(buf, buildFormat3Basic(3)...)
	buf = append(buf, full[128:]...)

	events, err := d.Feed(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != message.TypeAudio {
		t.Fatalf("expected an audio event, got type %d", events[0].Type)
	}
	if len(events[0].Audio) != 200 {
		t.Errorf("expected 200-byte audio payload, got %d", len(events[0].Audio))
	}
	if events[0].Timestamp != 1000 {
		t.Errorf("expected timestamp 1000, got %d", events[0].Timestamp)
	}
}

func TestFeedExtendedTimestampStickiness(t *testing.T) {
	d := New(Config{})

	var buf []byte
	buf = append(buf, byte(3), 0xFF, 0xFF, 0xFF) // format0, csid3, ts sentinel
	buf = append(buf, 0x00, 0x00, 0x04)          // size=4
	buf = append(buf, message.TypeChunkSize)
	buf = append(buf, 0x00, 0x00, 0x00, 0x00) // stream id
	buf = append(buf, beU32(65536)...)        // extended timestamp
	buf = append(buf, beU32(2048)...)         // chunk size payload

	events, err := d.Feed(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Timestamp != 65536 {
		t.Fatalf("expected one event at timestamp 65536, got %+v", events)
	}

	// format-3 continuation: size/type inherited (ChunkSize, 4 bytes), but the
	// extended flag stuck from the format-0 chunk so another 4-byte extended
	// timestamp follows before the payload.
	var buf2 []byte
	buf2 = append(buf2, buildFormat3Basic(3)...)
	buf2 = append(buf2, beU32(65664)...)
	buf2 = append(buf2, beU32(4096)...)

	events, err = d.Feed(buf2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Timestamp != 65664 {
		t.Fatalf("expected sticky extended timestamp 65664, got %+v", events)
	}
}

func TestFeedAbortDiscardsPartialPacket(t *testing.T) {
	d := New(Config{ReadChunkSize: 128})

	var openBuf []byte
	openBuf = append(openBuf, buildFormat0Header(3, 0, 1000, message.TypeVideo, 1)...)
	openBuf = append(openBuf, make([]byte, 128)...)

	events, err := d.Feed(openBuf)
	if err != nil {
		t.Fatalf("unexpected error opening video message: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events yet, got %d", len(events))
	}

	var abortBuf []byte
	abortBuf = append(abortBuf, buildFormat0Header(2, 0, 4, message.TypeAbort, 0)...)
	abortBuf = append(abortBuf, beU32(3)...) // abort channel 3

	events, err = d.Feed(abortBuf)
	if err != nil {
		t.Fatalf("unexpected error on abort: %v", err)
	}
	if len(events) != 1 || events[0].AbortChan != 3 {
		t.Fatalf("expected one abort event for channel 3, got %+v", events)
	}

	var freshBuf []byte
	freshBuf = append(freshBuf, buildFormat0Header(3, 5, 16, message.TypeAudio, 1)...)
	freshBuf = append(freshBuf, make([]byte, 16)...)

	events, err = d.Feed(freshBuf)
	if err != nil {
		t.Fatalf("unexpected error after abort: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected the post-abort message to complete cleanly, got %d events", len(events))
	}
	if events[0].Type != message.TypeAudio || len(events[0].Audio) != 16 {
		t.Errorf("expected a clean 16-byte audio message, got %+v", events[0])
	}
}

func TestFeedStreamingEquivalence(t *testing.T) {
	var whole []byte
	whole = append(whole, buildFormat0Header(3, 0, 4, message.TypeChunkSize, 0)...)
	whole = append(whole, beU32(1024)...)
	whole = append(whole, buildFormat0Header(4, 10, 16, message.TypeAudio, 1)...)
	whole = append(whole, make([]byte, 16)...)

	d1 := New(Config{})
	oneShot, err := d1.Feed(whole)
	if err != nil {
		t.Fatalf("unexpected error (one-shot feed): %v", err)
	}

	d2 := New(Config{})
	split := len(whole) / 2
	part1, err := d2.Feed(whole[:split])
	if err != nil {
		t.Fatalf("unexpected error (split feed, part1): %v", err)
	}
	part2, err := d2.Feed(whole[split:])
	if err != nil {
		t.Fatalf("unexpected error (split feed, part2): %v", err)
	}
	streamed := append(part1, part2...)

	if len(oneShot) != len(streamed) {
		t.Fatalf("event count mismatch: one-shot=%d streamed=%d", len(oneShot), len(streamed))
	}
	for i := range oneShot {
		if oneShot[i].Type != streamed[i].Type {
			t.Errorf("event %d type mismatch: one-shot=%d streamed=%d", i, oneShot[i].Type, streamed[i].Type)
		}
	}
}

func TestFeedAfterErrorIsRejected(t *testing.T) {
	d := New(Config{CloseOnHeaderError: true})

	// fmt=3 (orphan compressed header) on a channel that has never seen a
	// format-0 header: fatal in strict mode.
	_, err := d.Feed([]byte{0xC3})
	if err == nil {
		t.Fatal("expected an error for an orphan compressed header in strict mode")
	}
	if d.State() != StateError {
		t.Fatalf("expected connection state ERROR, got %s", d.State())
	}

	_, err = d.Feed([]byte{0x01})
	if err == nil {
		t.Fatal("expected Feed to reject further input once the connection is poisoned")
	}
}
