package message

// AggregateSubMessage is one FLV-tag-shaped sub-message unpacked from an
// AGGREGATE message's body.
type AggregateSubMessage struct {
	DataType  uint8
	Timestamp uint32
	StreamID  uint32
	Payload   []byte
}

// flvTagHeaderLen is the fixed header size of one FLV tag embedded in an
// AGGREGATE body: type(1) + data size(3) + timestamp(3) + timestamp-extended(1)
// + stream id(3).
const flvTagHeaderLen = 11

// previousTagSizeLen is the trailing 4-byte back-pointer FLV appends after
// each tag's payload.
const previousTagSizeLen = 4

// SplitAggregate walks an AGGREGATE message's raw payload and returns its
// constituent FLV-tag-shaped sub-messages, per SPEC_FULL.md §7 (mirroring
// Red5's RTMPProtocolDecoder.decodeAggregate). It is an opt-in helper: the
// core decode path still emits one Aggregate event carrying the raw bytes,
// per spec.md §4.5; callers that want the sub-messages call this themselves.
func SplitAggregate(payload []byte) []AggregateSubMessage {
	var out []AggregateSubMessage
	pos := 0
	for pos+flvTagHeaderLen <= len(payload) {
		dataType := payload[pos]
		dataSize := int(payload[pos+1])<<16 | int(payload[pos+2])<<8 | int(payload[pos+3])
		timestamp := uint32(payload[pos+4])<<16 | uint32(payload[pos+5])<<8 | uint32(payload[pos+6])
		timestampExt := uint32(payload[pos+7])
		streamID := uint32(payload[pos+8])<<16 | uint32(payload[pos+9])<<8 | uint32(payload[pos+10])
		timestamp |= timestampExt << 24

		dataStart := pos + flvTagHeaderLen
		dataEnd := dataStart + dataSize
		if dataSize < 0 || dataEnd > len(payload) {
			break
		}

		sub := AggregateSubMessage{
			DataType:  dataType,
			Timestamp: timestamp,
			StreamID:  streamID,
			Payload:   cloneBytes(payload[dataStart:dataEnd]),
		}
		out = append(out, sub)

		pos = dataEnd + previousTagSizeLen
	}
	return out
}
