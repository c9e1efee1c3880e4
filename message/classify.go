package message

import (
	"github.com/brightloop/rtmp-ingest/audio"
	"github.com/brightloop/rtmp-ingest/video"
)

// ClassifyAudio decodes this event's AUDIO payload leading byte(s) into an
// audio.Header, per SPEC_FULL.md §7's audio codec classification helper.
// It is opt-in: Decode itself keeps AUDIO payloads opaque, per spec.md
// §4.5. Returns false if Type is not TypeAudio or the payload is empty.
func (e Event) ClassifyAudio() (audio.Header, bool) {
	if e.Type != TypeAudio {
		return audio.Header{}, false
	}
	return audio.ClassifyHeader(e.Audio)
}

// ClassifyVideo decodes this event's VIDEO payload leading byte(s) into a
// video.Header. Opt-in, mirroring ClassifyAudio.
func (e Event) ClassifyVideo() (video.Header, bool) {
	if e.Type != TypeVideo {
		return video.Header{}, false
	}
	return video.ClassifyHeader(e.Video)
}

// SplitAggregate unpacks this event's AGGREGATE payload into its constituent
// FLV-tag-shaped sub-messages. Opt-in, per SPEC_FULL.md §7: the core decode
// path still emits a single raw Aggregate event.
func (e Event) SplitAggregate() []AggregateSubMessage {
	if e.Type != TypeAggregate {
		return nil
	}
	return SplitAggregate(e.Aggregate)
}
