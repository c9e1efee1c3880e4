package amf

import (
	"math"

	"github.com/brightloop/rtmp-ingest/rtmperrors"
)

// AMF3 type markers, per the Adobe AMF3 specification. Grounded on the
// teacher's amf/amf3/amf3.go constant block, which previously backed only
// an encoder; this package adds the decoder the teacher never wrote.
const (
	Amf3TypeUndefined     byte = 0x00
	Amf3TypeNull          byte = 0x01
	Amf3TypeFalse         byte = 0x02
	Amf3TypeTrue          byte = 0x03
	Amf3TypeInteger       byte = 0x04
	Amf3TypeDouble        byte = 0x05
	Amf3TypeString        byte = 0x06
	Amf3TypeXmlDoc        byte = 0x07
	Amf3TypeDate          byte = 0x08
	Amf3TypeArray         byte = 0x09
	Amf3TypeObject        byte = 0x0A
	Amf3TypeXml           byte = 0x0B
	Amf3TypeByteArray     byte = 0x0C
	Amf3TypeVectorInt     byte = 0x0D
	Amf3TypeVectorUint    byte = 0x0E
	Amf3TypeVectorDouble  byte = 0x0F
	Amf3TypeVectorObject  byte = 0x10
	Amf3TypeDictionary    byte = 0x11
)

// traits describes an AMF3 object's sealed member names, mirroring the
// reference-storage "trait" records the AMF3 spec requires for object
// references to round-trip correctly.
type traits struct {
	className string
	dynamic   bool
	members   []string
}

func (i *Input) decodeAmf3() (interface{}, bool, error) {
	marker, ok := i.cur.ReadU8()
	if !ok {
		return nil, false, nil
	}
	return i.decodeAmf3Value(marker)
}

func (i *Input) decodeAmf3Value(marker byte) (interface{}, bool, error) {
	switch marker {
	case Amf3TypeUndefined, Amf3TypeNull:
		return nil, true, nil
	case Amf3TypeFalse:
		return false, true, nil
	case Amf3TypeTrue:
		return true, true, nil
	case Amf3TypeInteger:
		return i.decodeAmf3Integer()
	case Amf3TypeDouble:
		return i.decodeAmf3Double()
	case Amf3TypeString:
		return i.decodeAmf3String()
	case Amf3TypeXmlDoc, Amf3TypeXml:
		return i.decodeAmf3String()
	case Amf3TypeDate:
		return i.decodeAmf3Date()
	case Amf3TypeArray:
		return i.decodeAmf3Array()
	case Amf3TypeObject:
		return i.decodeAmf3Object()
	case Amf3TypeByteArray:
		return i.decodeAmf3ByteArray()
	default:
		return nil, false, rtmperrors.ErrMalformedAmf
	}
}

// readU29 decodes an AMF3 variable-length unsigned 29-bit integer: up to 4
// bytes, each contributing 7 bits except the last which contributes 8,
// high bit of each non-final byte set as a continuation flag.
func (i *Input) readU29() (uint32, bool) {
	var v uint32
	for n := 0; n < 4; n++ {
		b, ok := i.cur.ReadU8()
		if !ok {
			return 0, false
		}
		if n == 3 {
			v = v<<8 | uint32(b)
			return v, true
		}
		v = v<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			return v, true
		}
	}
	return v, true
}

func (i *Input) decodeAmf3Integer() (interface{}, bool, error) {
	u, ok := i.readU29()
	if !ok {
		return nil, false, nil
	}
	// U29 values >= 2^28 are interpreted as negative per the AMF3 spec's
	// 29-bit two's-complement integer range.
	const signBit = 1 << 28
	if u&signBit != 0 {
		return int(int32(u) - (1 << 29)), true, nil
	}
	return int(u), true, nil
}

func (i *Input) decodeAmf3Double() (interface{}, bool, error) {
	raw, ok := i.cur.ReadBytes(8)
	if !ok {
		return nil, false, nil
	}
	return math.Float64frombits(beUint64(raw)), true, nil
}

// readRefOrLen reads a U29 reference header: bit0==0 means the remaining
// bits are a reference table index, bit0==1 means the remaining bits are a
// length (for inline string/object/array data).
func (i *Input) readRefOrLen() (value uint32, isRef bool, ok bool) {
	u, ok := i.readU29()
	if !ok {
		return 0, false, false
	}
	if u&1 == 0 {
		return u >> 1, true, true
	}
	return u >> 1, false, true
}

func (i *Input) decodeAmf3String() (interface{}, bool, error) {
	length, isRef, ok := i.readRefOrLen()
	if !ok {
		return nil, false, nil
	}
	if isRef {
		if int(length) >= len(i.refs.strings) {
			return nil, false, rtmperrors.ErrMalformedAmf
		}
		return i.refs.strings[length], true, nil
	}
	if length == 0 {
		return "", true, nil
	}
	b, ok := i.cur.ReadBytes(int(length))
	if !ok {
		return nil, false, nil
	}
	s := string(b)
	i.refs.strings = append(i.refs.strings, s)
	return s, true, nil
}

func (i *Input) decodeAmf3Date() (interface{}, bool, error) {
	length, isRef, ok := i.readRefOrLen()
	if !ok {
		return nil, false, nil
	}
	if isRef {
		if int(length) >= len(i.refs.objects) {
			return nil, false, rtmperrors.ErrMalformedAmf
		}
		return i.refs.objects[length], true, nil
	}
	raw, ok := i.cur.ReadBytes(8)
	if !ok {
		return nil, false, nil
	}
	millis := math.Float64frombits(beUint64(raw))
	i.refs.objects = append(i.refs.objects, millis)
	return millis, true, nil
}

func (i *Input) decodeAmf3Array() (interface{}, bool, error) {
	length, isRef, ok := i.readRefOrLen()
	if !ok {
		return nil, false, nil
	}
	if isRef {
		if int(length) >= len(i.refs.objects) {
			return nil, false, rtmperrors.ErrMalformedAmf
		}
		return i.refs.objects[length], true, nil
	}
	// Dense arrays may also carry an associative portion (string keys up to
	// the first empty-string sentinel); fold both into one map so no data
	// is silently dropped, keeping the dense part under numeric-string keys.
	assoc := make(map[string]interface{})
	for {
		key, ok, err := i.decodeAmf3String()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		if key.(string) == "" {
			break
		}
		val, ok, err := i.ReadValue()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		assoc[key.(string)] = val
	}
	arr := make([]interface{}, 0, length)
	ref := make([]interface{}, 0, length)
	i.refs.objects = append(i.refs.objects, ref)
	for idx := uint32(0); idx < length; idx++ {
		val, ok, err := i.ReadValue()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		arr = append(arr, val)
	}
	if len(assoc) == 0 {
		return arr, true, nil
	}
	for idx, v := range arr {
		assoc[itoa(idx)] = v
	}
	return assoc, true, nil
}

func (i *Input) decodeAmf3ByteArray() (interface{}, bool, error) {
	length, isRef, ok := i.readRefOrLen()
	if !ok {
		return nil, false, nil
	}
	if isRef {
		if int(length) >= len(i.refs.objects) {
			return nil, false, rtmperrors.ErrMalformedAmf
		}
		return i.refs.objects[length], true, nil
	}
	b, ok := i.cur.ReadBytes(int(length))
	if !ok {
		return nil, false, nil
	}
	owned := append([]byte(nil), b...)
	i.refs.objects = append(i.refs.objects, owned)
	return owned, true, nil
}

func (i *Input) decodeAmf3Object() (interface{}, bool, error) {
	header, isRef, ok := i.readRefOrLen()
	if !ok {
		return nil, false, nil
	}
	if isRef {
		if int(header) >= len(i.refs.objects) {
			return nil, false, rtmperrors.ErrMalformedAmf
		}
		return i.refs.objects[header], true, nil
	}

	var tr traits
	isTraitRef := header&1 == 0
	if isTraitRef {
		idx := header >> 1
		if int(idx) >= len(i.refs.traits) {
			return nil, false, rtmperrors.ErrMalformedAmf
		}
		tr = i.refs.traits[idx]
	} else {
		// header is the U29 already shifted right by one (bit 0 dropped), so
		// U29 bit n is (header>>(n-1))&1 here.
		dynamic := (header>>2)&1 != 0
		// externalizable objects (bit 2) are not supported; treat as a
		// protocol error rather than silently misinterpreting the body.
		externalizable := (header>>1)&1 != 0
		if externalizable {
			return nil, false, rtmperrors.ErrMalformedAmf
		}
		memberCount := header >> 3
		classNameVal, ok, err := i.decodeAmf3String()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		members := make([]string, 0, memberCount)
		for n := uint32(0); n < memberCount; n++ {
			nameVal, ok, err := i.decodeAmf3String()
			if err != nil {
				return nil, false, err
			}
			if !ok {
				return nil, false, nil
			}
			members = append(members, nameVal.(string))
		}
		tr = traits{className: classNameVal.(string), dynamic: dynamic, members: members}
		i.refs.traits = append(i.refs.traits, tr)
	}

	obj := make(map[string]interface{}, len(tr.members))
	i.refs.objects = append(i.refs.objects, obj)
	for _, name := range tr.members {
		val, ok, err := i.ReadValue()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		obj[name] = val
	}
	if tr.dynamic {
		for {
			keyVal, ok, err := i.decodeAmf3String()
			if err != nil {
				return nil, false, err
			}
			if !ok {
				return nil, false, nil
			}
			key := keyVal.(string)
			if key == "" {
				break
			}
			val, ok, err := i.ReadValue()
			if err != nil {
				return nil, false, err
			}
			if !ok {
				return nil, false, nil
			}
			obj[key] = val
		}
	}
	return obj, true, nil
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
