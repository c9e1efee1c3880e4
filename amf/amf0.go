package amf

import (
	"math"
	"time"

	"github.com/brightloop/rtmp-ingest/rtmperrors"
)

// AMF0 type markers, per the Adobe AMF0 specification. Grounded on the
// teacher's amf/amf0 package constants (previously unexported type bytes
// embedded directly in decoder.go's switch statement).
const (
	TypeNumber      byte = 0x00
	TypeBoolean     byte = 0x01
	TypeString      byte = 0x02
	TypeObject      byte = 0x03
	TypeMovieClip   byte = 0x04
	TypeNull        byte = 0x05
	TypeUndefined   byte = 0x06
	TypeReference   byte = 0x07
	TypeECMAArray   byte = 0x08
	TypeObjectEnd   byte = 0x09
	TypeStrictArray byte = 0x0A
	TypeDate        byte = 0x0B
	TypeLongString  byte = 0x0C
	TypeUnsupported byte = 0x0D
	TypeXmlDoc      byte = 0x0F
	TypeTypedObject byte = 0x10
	// TypeAMF3Object is the AMF0 marker that signals "the rest of this value
	// is AMF3-encoded" — the mid-stream switch trigger from spec.md §4.2.
	TypeAMF3Object byte = 0x11
)

// ObjectEnd names the 3-byte end-of-object marker. decodeAmf0 never returns
// it: a stray TypeObjectEnd byte outside an object/array is reported as
// ErrMalformedAmf, and decodeAmf0Object/decodeAmf0ECMAArray detect the
// marker by peeking for it (isAmf0ObjectEnd).
type ObjectEnd struct{}

func (i *Input) decodeAmf0() (interface{}, bool, error) {
	marker, ok := i.cur.ReadU8()
	if !ok {
		return nil, false, nil
	}
	switch marker {
	case TypeNumber:
		return i.decodeAmf0Number()
	case TypeBoolean:
		return i.decodeAmf0Boolean()
	case TypeString:
		return i.decodeAmf0String()
	case TypeLongString:
		return i.decodeAmf0LongString()
	case TypeObject:
		return i.decodeAmf0Object()
	case TypeNull, TypeUndefined:
		return nil, true, nil
	case TypeReference:
		return i.decodeAmf0Reference()
	case TypeECMAArray:
		return i.decodeAmf0ECMAArray()
	case TypeStrictArray:
		return i.decodeAmf0StrictArray()
	case TypeDate:
		return i.decodeAmf0Date()
	case TypeXmlDoc:
		return i.decodeAmf0LongString()
	case TypeAMF3Object:
		// The mid-stream switch: the rest of this single value is AMF3.
		return i.decodeSwitchedAmf3Value()
	default:
		return nil, false, rtmperrors.ErrMalformedAmf
	}
}

func (i *Input) decodeAmf0Number() (interface{}, bool, error) {
	raw, ok := i.cur.ReadBytes(8)
	if !ok {
		return nil, false, nil
	}
	bits := beUint64(raw)
	return math.Float64frombits(bits), true, nil
}

func (i *Input) decodeAmf0Boolean() (interface{}, bool, error) {
	b, ok := i.cur.ReadU8()
	if !ok {
		return nil, false, nil
	}
	return b != 0, true, nil
}

func (i *Input) decodeAmf0String() (interface{}, bool, error) {
	n, ok := i.cur.ReadU16BE()
	if !ok {
		return nil, false, nil
	}
	b, ok := i.cur.ReadBytes(int(n))
	if !ok {
		return nil, false, nil
	}
	return string(b), true, nil
}

func (i *Input) decodeAmf0LongString() (interface{}, bool, error) {
	n, ok := i.cur.ReadU32BE()
	if !ok {
		return nil, false, nil
	}
	b, ok := i.cur.ReadBytes(int(n))
	if !ok {
		return nil, false, nil
	}
	return string(b), true, nil
}

func (i *Input) decodeAmf0Date() (interface{}, bool, error) {
	raw, ok := i.cur.ReadBytes(8)
	if !ok {
		return nil, false, nil
	}
	millis := int64(math.Float64frombits(beUint64(raw)))
	// The trailing 16-bit timezone field is always 0 per the AMF0 spec and
	// is not meaningful; skip it.
	if _, ok := i.cur.ReadBytes(2); !ok {
		return nil, false, nil
	}
	return time.Unix(0, millis*int64(time.Millisecond)).UTC(), true, nil
}

func (i *Input) isAmf0ObjectEnd() bool {
	b, ok := i.cur.Peek(3)
	if !ok {
		return false
	}
	return b[0] == 0x00 && b[1] == 0x00 && b[2] == TypeObjectEnd
}

func (i *Input) decodeAmf0Object() (interface{}, bool, error) {
	m := make(map[string]interface{})
	i.refs.objects = append(i.refs.objects, m)
	for {
		if i.isAmf0ObjectEnd() {
			i.cur.Skip(3)
			return m, true, nil
		}
		key, ok, err := i.decodeAmf0String()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		val, ok, err := i.ReadValue()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		m[key.(string)] = val
	}
}

func (i *Input) decodeAmf0Reference() (interface{}, bool, error) {
	idx, ok := i.cur.ReadU16BE()
	if !ok {
		return nil, false, nil
	}
	if int(idx) >= len(i.refs.objects) {
		return nil, false, rtmperrors.ErrMalformedAmf
	}
	return i.refs.objects[idx], true, nil
}

func (i *Input) decodeAmf0ECMAArray() (interface{}, bool, error) {
	count, ok := i.cur.ReadU32BE()
	if !ok {
		return nil, false, nil
	}
	m := make(map[string]interface{}, count)
	i.refs.objects = append(i.refs.objects, m)
	for {
		if i.isAmf0ObjectEnd() {
			i.cur.Skip(3)
			return m, true, nil
		}
		key, ok, err := i.decodeAmf0String()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		val, ok, err := i.ReadValue()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		m[key.(string)] = val
	}
}

func (i *Input) decodeAmf0StrictArray() (interface{}, bool, error) {
	count, ok := i.cur.ReadU32BE()
	if !ok {
		return nil, false, nil
	}
	arr := make([]interface{}, 0, count)
	for idx := uint32(0); idx < count; idx++ {
		val, ok, err := i.ReadValue()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		arr = append(arr, val)
	}
	return arr, true, nil
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
