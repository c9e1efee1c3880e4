package message

import (
	"github.com/brightloop/rtmp-ingest/amf"
	"github.com/brightloop/rtmp-ingest/cursor"
	"github.com/brightloop/rtmp-ingest/rtmperrors"
)

// setDataFrameAction is the magic action string that wraps metadata
// notifications, per spec.md §4.5's "Stream-data decoding" paragraph.
const setDataFrameAction = "@setDataFrame"

// StreamData is the decoded form of a NOTIFY(stream_id≠0)/FLEX_STREAM_SEND
// message, per spec.md §4.5.
type StreamData struct {
	// Action is the first AMF value read, verbatim (e.g. "@setDataFrame",
	// "onMetaData", "onCuePoint").
	Action string
	// Method is the metadata method name when Action was "@setDataFrame"
	// (e.g. "onMetaData"); empty otherwise.
	Method string
	// Params is the decoded parameter value following Method, when this was
	// a @setDataFrame message.
	Params interface{}
	// Reencoded is the AMF0 re-encoding of (Method, Params), per spec.md
	// §4.5's "the decoder re-encodes (method, params) as AMF0 into a fresh
	// buffer" rule. Nil when this wasn't a @setDataFrame message.
	Reencoded []byte
	// Raw is the untouched payload, retained for messages that aren't
	// @setDataFrame so downstream dispatch can still see the original bytes.
	Raw []byte
}

// decodeStreamData implements spec.md §4.5's "Stream-data decoding"
// paragraph, grounded on the teacher's message_manager.go
// handleDataMessageAmf0 (the @setDataFrame special case) generalized to
// live AMF0↔AMF3 switching per value.
func decodeStreamData(payload []byte) (*StreamData, error) {
	cur := cursor.New(payload)
	in := amf.New(cur)

	action, ok, err := in.ReadString()
	if err != nil {
		return nil, rtmperrors.ErrMalformedAmf
	}
	if !ok {
		return nil, rtmperrors.ErrMalformedAmf
	}

	sd := &StreamData{Action: action}

	if action != setDataFrameAction {
		sd.Raw = cloneBytes(payload)
		return sd, nil
	}

	method, ok, err := in.ReadValueDetectingEncoding()
	if err != nil || !ok {
		return sd, nil
	}
	methodStr, _ := method.(string)
	sd.Method = methodStr

	params, ok, err := in.ReadValueDetectingEncoding()
	if err != nil || !ok {
		return sd, nil
	}
	sd.Params = params

	encodedMethod, err := amf.EncodeAmf0(methodStr)
	if err != nil {
		return sd, nil
	}
	encodedParams, err := amf.EncodeAmf0(params)
	if err != nil {
		return sd, nil
	}
	sd.Reencoded = append(encodedMethod, encodedParams...)
	return sd, nil
}
