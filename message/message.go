// Package message implements C5: it dispatches on a reassembled message's
// data-type byte and decodes the payload into a typed Event, using the amf
// package for the RPC-bearing types. Grounded on the teacher's
// message_manager.go (the MessageType constant block and interpretMessage's
// dispatch switch) and message.go (the original MessageType enum), extended
// with the AMF3/shared-object/flex-message handling spec.md §4.5 requires
// that the teacher never implemented.
package message

import (
	"github.com/brightloop/rtmp-ingest/cursor"
	"github.com/brightloop/rtmp-ingest/rtmperrors"
)

// Data-type byte values, per spec.md §4.5. Named after the teacher's
// message_manager.go constant block, with the additions the spec enumerates
// (FlexStreamSend, FlexSharedObject, FlexMessage, Ping, Aggregate, BytesRead,
// ServerBW, ClientBW) that the teacher's switch never reached.
const (
	TypeChunkSize        uint8 = 1
	TypeAbort            uint8 = 2
	TypeBytesRead        uint8 = 3
	TypePing             uint8 = 4
	TypeServerBW         uint8 = 5
	TypeClientBW         uint8 = 6
	TypeAudio            uint8 = 8
	TypeVideo            uint8 = 9
	TypeFlexStreamSend   uint8 = 15
	TypeFlexSharedObject uint8 = 16
	TypeFlexMessage      uint8 = 17
	TypeNotify           uint8 = 18
	TypeSO               uint8 = 19
	TypeInvoke           uint8 = 20
	TypeAggregate        uint8 = 22
)

// Ping (user control) event subtypes, per spec.md §4.5's PING row. Named to
// match the RTMP spec's "User Control Message" event types; the teacher only
// ever handled EventStreamBegin.
const (
	EventStreamBegin     uint16 = 0
	EventStreamEOF       uint16 = 1
	EventStreamDry       uint16 = 2
	EventSetBufferLength uint16 = 3 // spec.md's CLIENT_BUFFER
	EventStreamRecorded  uint16 = 4
	EventPingRequest     uint16 = 6 // spec.md's PING_SWF_VERIFY
	EventPingResponse    uint16 = 7 // spec.md's PONG_SWF_VERIFY
)

// pongSwfVerifyLen is the fixed payload length of a PONG_SWF_VERIFY event,
// per spec.md §4.5.
const pongSwfVerifyLen = 42

// Event is the decoded form of one reassembled RTMP message. Exactly one of
// the typed fields below is populated, selected by Type.
type Event struct {
	Type      uint8
	Timestamp uint32

	ChunkSize  uint32
	AbortChan  uint16
	BytesRead  uint32
	ServerBW   uint32
	ClientBW   ClientBandwidth
	Ping       PingEvent
	Audio      []byte
	Video      []byte
	SharedObj  *SharedObject
	Action     *Action
	StreamData *StreamData
	Aggregate  []byte
	Unknown    *UnknownEvent
}

// ClientBandwidth is the decoded CLIENT_BW (SetPeerBandwidth) payload.
type ClientBandwidth struct {
	WindowAckSize uint32
	LimitType     uint8
}

// PingEvent is the decoded PING (user control) payload.
type PingEvent struct {
	EventType uint16
	StreamID  uint32
	Millis    uint32
	Raw       []byte
}

// UnknownEvent preserves an unrecognized data-type byte's raw payload, per
// spec.md §4.5's default row: unknown types are surfaced, never fatal.
type UnknownEvent struct {
	DataType uint8
	Payload  []byte
}

// Decode dispatches on header.DataType and decodes payload into an Event.
// streamID is the owning message's stream id (needed to tell NOTIFY action
// messages apart from stream-data messages, per spec.md §4.5).
func Decode(dataType uint8, streamID uint32, payload []byte) (Event, error) {
	ev := Event{Type: dataType}

	switch dataType {
	case TypeChunkSize:
		v, ok := readU32BE(payload)
		if !ok {
			return ev, rtmperrors.ErrMalformedAmf
		}
		ev.ChunkSize = v
		return ev, nil

	case TypeAbort:
		v, ok := readU32BE(payload)
		if !ok {
			return ev, rtmperrors.ErrMalformedAmf
		}
		ev.AbortChan = uint16(v)
		return ev, nil

	case TypeBytesRead:
		v, ok := readU32BE(payload)
		if !ok {
			return ev, rtmperrors.ErrMalformedAmf
		}
		ev.BytesRead = v
		return ev, nil

	case TypePing:
		ping, err := decodePing(payload)
		if err != nil {
			return ev, err
		}
		ev.Ping = ping
		return ev, nil

	case TypeServerBW:
		v, ok := readU32BE(payload)
		if !ok {
			return ev, rtmperrors.ErrMalformedAmf
		}
		ev.ServerBW = v
		return ev, nil

	case TypeClientBW:
		if len(payload) < 5 {
			return ev, rtmperrors.ErrMalformedAmf
		}
		v, _ := readU32BE(payload[:4])
		ev.ClientBW = ClientBandwidth{WindowAckSize: v, LimitType: payload[4]}
		return ev, nil

	case TypeAudio:
		ev.Audio = cloneBytes(payload)
		return ev, nil

	case TypeVideo:
		ev.Video = cloneBytes(payload)
		return ev, nil

	case TypeFlexStreamSend:
		if len(payload) < 1 {
			return ev, rtmperrors.ErrMalformedAmf
		}
		sd, err := decodeStreamData(payload[1:])
		if err != nil {
			return ev, err
		}
		ev.StreamData = sd
		return ev, nil

	case TypeFlexSharedObject, TypeSO:
		body := payload
		if dataType == TypeFlexSharedObject {
			if len(body) < 1 {
				return ev, rtmperrors.ErrMalformedAmf
			}
			selector := body[0]
			if selector != 0 && selector != 3 {
				return ev, rtmperrors.ErrUnknownSharedObjectEncoding
			}
			body = body[1:]
		}
		so, err := decodeSharedObject(body)
		if err != nil {
			return ev, err
		}
		ev.SharedObj = so
		return ev, nil

	case TypeNotify:
		if streamID != 0 {
			sd, err := decodeStreamData(payload)
			if err != nil {
				return ev, err
			}
			ev.StreamData = sd
			return ev, nil
		}
		action, err := decodeAction(cursor.New(payload))
		if err != nil {
			return ev, err
		}
		ev.Action = action
		return ev, nil

	case TypeInvoke:
		action, err := decodeAction(cursor.New(payload))
		if err != nil {
			return ev, err
		}
		ev.Action = action
		return ev, nil

	case TypeFlexMessage:
		if len(payload) < 1 {
			return ev, rtmperrors.ErrMalformedAmf
		}
		action, err := decodeFlexAction(payload[1:])
		if err != nil {
			return ev, err
		}
		ev.Action = action
		return ev, nil

	case TypeAggregate:
		ev.Aggregate = cloneBytes(payload)
		return ev, nil

	default:
		ev.Unknown = &UnknownEvent{DataType: dataType, Payload: cloneBytes(payload)}
		return ev, nil
	}
}

func decodePing(payload []byte) (PingEvent, error) {
	if len(payload) < 2 {
		return PingEvent{}, rtmperrors.ErrMalformedAmf
	}
	eventType := uint16(payload[0])<<8 | uint16(payload[1])
	body := payload[2:]

	switch eventType {
	case EventSetBufferLength:
		if len(body) < 8 {
			return PingEvent{}, rtmperrors.ErrMalformedAmf
		}
		streamID, _ := readU32BE(body[:4])
		millis, _ := readU32BE(body[4:8])
		return PingEvent{EventType: eventType, StreamID: streamID, Millis: millis}, nil
	case EventPingRequest:
		return PingEvent{EventType: eventType}, nil
	case EventPingResponse:
		raw := body
		if len(raw) > pongSwfVerifyLen {
			raw = raw[:pongSwfVerifyLen]
		}
		return PingEvent{EventType: eventType, Raw: cloneBytes(raw)}, nil
	default:
		if len(body) < 4 {
			return PingEvent{EventType: eventType}, nil
		}
		v, _ := readU32BE(body[:4])
		return PingEvent{EventType: eventType, Millis: v}, nil
	}
}

func readU32BE(b []byte) (uint32, bool) {
	if len(b) < 4 {
		return 0, false
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), true
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
