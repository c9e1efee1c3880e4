package amf

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"

	"github.com/brightloop/rtmp-ingest/rtmperrors"
)

// EncodeAmf0 serializes v into its AMF0 wire form, grounded on the teacher's
// amf/amf0/encoder.go (Encode/encodeNumber/encodeString/encodeObject/...).
// It is used by message.decodeStreamData to re-encode a (method, params)
// pair after a live AMF0↔AMF3 decode, per spec.md §4.5.
func EncodeAmf0(v interface{}) ([]byte, error) {
	switch vv := v.(type) {
	case float64:
		return encodeAmf0Number(vv), nil
	case int:
		return encodeAmf0Number(float64(vv)), nil
	case bool:
		return encodeAmf0Boolean(vv), nil
	case string:
		return encodeAmf0String(vv), nil
	case map[string]interface{}:
		return encodeAmf0Object(vv), nil
	case []interface{}:
		return encodeAmf0StrictArray(vv), nil
	case nil:
		return []byte{TypeNull}, nil
	case time.Time:
		return encodeAmf0Date(vv), nil
	default:
		return nil, rtmperrors.ErrMalformedAmf
	}
}

func encodeAmf0Date(t time.Time) []byte {
	millis := t.UnixNano() / int64(time.Millisecond)
	buf := make([]byte, 11)
	buf[0] = TypeDate
	binary.BigEndian.PutUint64(buf[1:9], math.Float64bits(float64(millis)))
	return buf
}

func encodeAmf0Null() []byte {
	return []byte{TypeNull}
}

func encodeAmf0Object(m map[string]interface{}) []byte {
	buf := &bytes.Buffer{}
	for key, val := range m {
		buf.Write(encodeAmf0Bareword(key))
		encoded, err := EncodeAmf0(val)
		if err != nil {
			encoded = encodeAmf0Null()
		}
		buf.Write(encoded)
	}
	buf.Write([]byte{0x00, 0x00, TypeObjectEnd})

	out := make([]byte, 1+buf.Len())
	out[0] = TypeObject
	copy(out[1:], buf.Bytes())
	return out
}

func encodeAmf0StrictArray(arr []interface{}) []byte {
	buf := &bytes.Buffer{}
	for _, v := range arr {
		encoded, err := EncodeAmf0(v)
		if err != nil {
			encoded = encodeAmf0Null()
		}
		buf.Write(encoded)
	}
	out := make([]byte, 5+buf.Len())
	out[0] = TypeStrictArray
	binary.BigEndian.PutUint32(out[1:5], uint32(len(arr)))
	copy(out[5:], buf.Bytes())
	return out
}

// encodeAmf0Bareword encodes a string as a raw UTF-8 AMF0 string body (no
// leading type byte) — object/array keys are never type-tagged.
func encodeAmf0Bareword(s string) []byte {
	str := make([]byte, 2+len(s))
	binary.BigEndian.PutUint16(str[0:2], uint16(len(s)))
	copy(str[2:], s)
	return str
}

func encodeAmf0String(s string) []byte {
	if len(s) < 65535 {
		str := make([]byte, 3+len(s))
		str[0] = TypeString
		binary.BigEndian.PutUint16(str[1:3], uint16(len(s)))
		copy(str[3:], s)
		return str
	}
	str := make([]byte, 5+len(s))
	str[0] = TypeLongString
	binary.BigEndian.PutUint32(str[1:5], uint32(len(s)))
	copy(str[5:], s)
	return str
}

func encodeAmf0Boolean(b bool) []byte {
	buf := make([]byte, 2)
	buf[0] = TypeBoolean
	if b {
		buf[1] = 1
	}
	return buf
}

func encodeAmf0Number(n float64) []byte {
	buf := make([]byte, 9)
	buf[0] = TypeNumber
	binary.BigEndian.PutUint64(buf[1:], math.Float64bits(n))
	return buf
}
