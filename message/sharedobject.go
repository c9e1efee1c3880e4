package message

import (
	"github.com/brightloop/rtmp-ingest/amf"
	"github.com/brightloop/rtmp-ingest/cursor"
	"github.com/brightloop/rtmp-ingest/rtmperrors"
)

// Shared-object event type bytes, per spec.md §4.5's "Shared-object
// envelope" paragraph. Named after the event kinds the source's
// SharedObjectTypeMapping resolves to; unrecognized bytes fall into the
// generic key/value branch rather than failing the whole message.
const (
	soEventServerConnect      uint8 = 1
	soEventServerDisconnect   uint8 = 2
	soEventServerSetAttribute uint8 = 3
	soEventClientUpdateData   uint8 = 4
	soEventServerSendMessage  uint8 = 5
	soEventClientClearData    uint8 = 7
	soEventClientDeleteData   uint8 = 8
	soEventClientSendMessage  uint8 = 10
	soEventClientStatus       uint8 = 11
)

// SharedObjectEvent is one event inside a shared-object message's body.
type SharedObjectEvent struct {
	Type  uint8
	Key   string
	Value interface{}
	Args  []interface{}
}

// SharedObject is the decoded form of an SO/FLEX_SHARED_OBJECT message, per
// spec.md §4.5.
type SharedObject struct {
	Name       string
	Version    uint32
	Persistent bool
	Events     []SharedObjectEvent
}

// decodeSharedObject implements the "Shared-object envelope" paragraph of
// spec.md §4.5, grounded on original_source's RTMPProtocolDecoder.
// doDecodeSharedObject: name/version/persistent header, skip 4 reserved
// bytes, then a stream of type-tagged, length-framed events.
func decodeSharedObject(payload []byte) (*SharedObject, error) {
	cur := cursor.New(payload)
	in := amf.New(cur)

	name, ok, err := in.ReadString()
	if err != nil || !ok {
		return nil, rtmperrors.ErrMalformedAmf
	}

	version, ok := cur.ReadU32BE()
	if !ok {
		return nil, rtmperrors.ErrMalformedAmf
	}
	persistentRaw, ok := cur.ReadU32BE()
	if !ok {
		return nil, rtmperrors.ErrMalformedAmf
	}
	if !cur.Skip(4) {
		return nil, rtmperrors.ErrMalformedAmf
	}

	so := &SharedObject{Name: name, Version: version, Persistent: persistentRaw == 2}

	for cur.Remaining() > 0 {
		evType, ok := cur.ReadU8()
		if !ok {
			break
		}
		length, ok := cur.ReadU32BE()
		if !ok {
			break
		}
		bodyStart := cur.Position()
		bodyEnd := bodyStart + int(length)
		if bodyEnd > cur.Len() {
			// Truncated event body; stop rather than misparse downstream
			// events, per spec.md §7's "skip the remainder of the event but
			// continue with the next event" guidance taken to its limit —
			// there is no next event to recover into here.
			break
		}

		event, decodeErr := decodeSharedObjectEvent(evType, cur, bodyStart, int(length), in)
		cur.SetPosition(bodyEnd)
		if decodeErr != nil {
			// An AMF failure inside one event body doesn't abort the whole
			// message; skip to the next event, per spec.md §7.
			continue
		}
		so.Events = append(so.Events, event)
	}

	return so, nil
}

func decodeSharedObjectEvent(evType uint8, cur *cursor.Cursor, bodyStart, length int, in *amf.Input) (SharedObjectEvent, error) {
	ev := SharedObjectEvent{Type: evType}

	switch evType {
	case soEventClientStatus:
		code, ok, err := in.ReadString()
		if err != nil || !ok {
			return ev, rtmperrors.ErrMalformedAmf
		}
		level, ok, err := in.ReadString()
		if err != nil || !ok {
			return ev, rtmperrors.ErrMalformedAmf
		}
		ev.Key = code
		ev.Value = level
		return ev, nil

	case soEventClientUpdateData:
		attrs := make(map[string]interface{})
		for cur.Position()-bodyStart < length {
			key, ok, err := in.ReadString()
			if err != nil || !ok {
				break
			}
			val, ok, err := in.ReadValue()
			if err != nil || !ok {
				break
			}
			attrs[key] = val
		}
		ev.Value = attrs
		return ev, nil

	case soEventServerSendMessage, soEventClientSendMessage:
		handler, ok, err := in.ReadString()
		if err != nil || !ok {
			return ev, rtmperrors.ErrMalformedAmf
		}
		ev.Key = handler
		for cur.Position()-bodyStart < length {
			v, ok, err := in.ReadValueDetectingEncoding()
			if err != nil || !ok {
				break
			}
			ev.Args = append(ev.Args, v)
		}
		return ev, nil

	default:
		if length <= 0 {
			return ev, nil
		}
		key, ok, err := in.ReadString()
		if err != nil || !ok {
			return ev, rtmperrors.ErrMalformedAmf
		}
		ev.Key = key
		if cur.Position()-bodyStart < length {
			v, ok, err := in.ReadValueDetectingEncoding()
			if err == nil && ok {
				ev.Value = v
			}
		}
		return ev, nil
	}
}
