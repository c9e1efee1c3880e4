// Package amf implements the AMF codec (C2): stateful decoding of AMF0 and
// AMF3 values from a shared cursor, including the mid-stream AMF0→AMF3
// switch rule from spec.md §4.2. Value deserialization internals are a
// bounded concern here — the dispatch surface (ReadValue/ReadString/
// ReadNumber/ReadObject/ReadMap/ReadArray/ReadDataType plus the AMF3 switch)
// is what the rest of the decoder depends on.
package amf

import (
	"github.com/brightloop/rtmp-ingest/cursor"
	"github.com/brightloop/rtmp-ingest/rtmperrors"
)

// Mode selects which AMF version an Input currently decodes as.
type Mode uint8

const (
	ModeAMF0 Mode = iota
	ModeAMF3
)

// refTables holds the reference-storage records (AMF0 object references,
// AMF3 string/object/trait tables) that must be shared across an AMF0→AMF3
// switch within one message body, per spec.md §4.2.
type refTables struct {
	objects []interface{}
	strings []string
	traits  []traits
}

// Input decodes AMF values from a cursor, in either AMF0 or AMF3 mode. A new
// Input instantiated mid-switch shares its refTables with the Input that
// triggered the switch (see decodeSwitchedAmf3Value).
type Input struct {
	cur  *cursor.Cursor
	mode Mode
	refs *refTables
}

// New returns an Input bound to cur, starting in AMF0 mode with a fresh
// reference-storage record.
func New(cur *cursor.Cursor) *Input {
	return &Input{cur: cur, mode: ModeAMF0, refs: &refTables{}}
}

// NewAMF3 returns an Input bound to cur, starting in AMF3 mode — used when
// the caller already knows the whole value is AMF3 (e.g. a FLEX_MESSAGE
// argument the decoder is asked to "enforce AMF3" for).
func NewAMF3(cur *cursor.Cursor) *Input {
	return &Input{cur: cur, mode: ModeAMF3, refs: &refTables{}}
}

// Mode reports whether this Input is currently decoding AMF0 or AMF3.
func (i *Input) Mode() Mode {
	return i.mode
}

// decodeSwitchedAmf3Value is invoked when an AMF0-mode Input reads the
// 0x11 AMF3-object marker: per spec.md §4.2, the remainder of this one
// value is decoded in AMF3 by an Input sharing this one's reference
// tables, without permanently flipping this Input's mode.
func (i *Input) decodeSwitchedAmf3Value() (interface{}, bool, error) {
	sub := &Input{cur: i.cur, mode: ModeAMF3, refs: i.refs}
	return sub.decodeAmf3()
}

// ReadValue reads one value using the Input's current mode, applying the
// mid-stream switch rule when in AMF0 mode and the type marker read is the
// AMF3 object marker. Returns ok=false when there isn't enough data yet; the
// cursor is then left wherever the partial read stopped (the marker byte and
// any length prefix already consumed), so a caller that retries rewinds it.
func (i *Input) ReadValue() (interface{}, bool, error) {
	if i.mode == ModeAMF3 {
		return i.decodeAmf3()
	}
	return i.decodeAmf0()
}

// ReadDataType peeks the next type marker byte without consuming a full
// value, honoring the Input's current mode. This mirrors the collaborator
// surface spec.md §1 calls out (readDataType()) for callers that want to
// branch on type before committing to a decode (e.g. per-value AMF0/AMF3
// encoding detection inside a shared-object or flex-message argument list).
func (i *Input) ReadDataType() (byte, bool) {
	return i.cur.PeekByte()
}

// DetectAmf3 reports whether the next byte in the cursor is the AMF3
// object marker while the Input is (or would be) reading in AMF0 — the
// per-value encoding-detection rule spec.md §4.5 describes for shared
// object SEND_MESSAGE events and flex-message arguments.
func (i *Input) DetectAmf3() bool {
	b, ok := i.ReadDataType()
	return ok && b == TypeAMF3Object
}

// ReadValueDetectingEncoding decodes the next value, picking AMF3 decoding
// if the next byte is the AMF3 object marker (regardless of the Input's own
// mode) and AMF0 otherwise — used for the per-argument encoding detection
// in shared-object SEND_MESSAGE events and flex-message positional args.
func (i *Input) ReadValueDetectingEncoding() (interface{}, bool, error) {
	if i.DetectAmf3() {
		marker, ok := i.cur.ReadU8()
		if !ok {
			return nil, false, nil
		}
		_ = marker // consume the 0x11 marker; the value itself follows
		sub := &Input{cur: i.cur, mode: ModeAMF3, refs: i.refs}
		return sub.decodeAmf3()
	}
	return i.decodeAmf0()
}

// ReadString reads a value and asserts it is a string.
func (i *Input) ReadString() (string, bool, error) {
	v, ok, err := i.ReadValue()
	if err != nil || !ok {
		return "", ok, err
	}
	s, isString := v.(string)
	if !isString {
		return "", true, rtmperrors.ErrMalformedAmf
	}
	return s, true, nil
}

// ReadNumber reads a value and asserts it is numeric (AMF0 numbers and
// AMF3 integers both surface as float64/int; normalize to float64).
func (i *Input) ReadNumber() (float64, bool, error) {
	v, ok, err := i.ReadValue()
	if err != nil || !ok {
		return 0, ok, err
	}
	switch n := v.(type) {
	case float64:
		return n, true, nil
	case int:
		return float64(n), true, nil
	default:
		return 0, true, rtmperrors.ErrMalformedAmf
	}
}

// ReadObject reads a value and asserts it is an object (map).
func (i *Input) ReadObject() (map[string]interface{}, bool, error) {
	return i.ReadMap()
}

// ReadMap reads a value and asserts it decoded to a
// map[string]interface{} (AMF0 Object/ECMAArray, or an AMF3 Object).
func (i *Input) ReadMap() (map[string]interface{}, bool, error) {
	v, ok, err := i.ReadValue()
	if err != nil || !ok {
		return nil, ok, err
	}
	m, isMap := v.(map[string]interface{})
	if !isMap {
		return nil, true, rtmperrors.ErrMalformedAmf
	}
	return m, true, nil
}

// ReadArray reads a value and asserts it decoded to a []interface{}.
func (i *Input) ReadArray() ([]interface{}, bool, error) {
	v, ok, err := i.ReadValue()
	if err != nil || !ok {
		return nil, ok, err
	}
	arr, isArray := v.([]interface{})
	if !isArray {
		return nil, true, rtmperrors.ErrMalformedAmf
	}
	return arr, true, nil
}
