package message

import (
	"strings"

	"github.com/brightloop/rtmp-ingest/amf"
	"github.com/brightloop/rtmp-ingest/cursor"
	"github.com/brightloop/rtmp-ingest/rtmperrors"
)

// Action is the decoded form of an INVOKE/NOTIFY message, per spec.md §4.5's
// "Action decoding" rule. Service/Method come from splitting a dotted action
// string at its final '.'; Service is empty when the action has no dot.
type Action struct {
	Action        string
	Service       string
	Method        string
	TransactionID float64
	Params        map[string]interface{}
	Args          []interface{}
}

// decodeAction implements spec.md §4.5's "Action decoding" paragraph: read
// the action string (fatal if missing), the transaction id (0 if absent),
// then positional values — the first map-shaped value becomes Params, the
// rest are appended to Args in order.
func decodeAction(cur *cursor.Cursor) (*Action, error) {
	in := amf.New(cur)

	action, ok, err := in.ReadString()
	if err != nil {
		return nil, rtmperrors.ErrMalformedAmf
	}
	if !ok {
		return nil, rtmperrors.ErrMalformedAmf
	}

	a := &Action{Action: action}
	a.Service, a.Method = splitAction(action)

	txnID, ok, err := in.ReadNumber()
	if err == nil && ok {
		a.TransactionID = txnID
	}
	// A missing or malformed transaction id is not fatal to the action
	// itself, per spec.md §7: only a missing action string aborts the
	// message.

	for {
		b, ok := in.ReadDataType()
		if !ok {
			break
		}
		_ = b
		v, ok, err := in.ReadValue()
		if err != nil || !ok {
			break
		}
		if m, isMap := v.(map[string]interface{}); isMap && a.Params == nil {
			a.Params = m
			continue
		}
		a.Args = append(a.Args, v)
	}

	return a, nil
}

// decodeFlexAction implements the FLEX_MESSAGE row of spec.md §4.5's
// dispatch table: decode like an action, but detect AMF0/AMF3 per positional
// argument instead of using a single Input's mode throughout.
func decodeFlexAction(payload []byte) (*Action, error) {
	cur := cursor.New(payload)
	in := amf.New(cur)

	action, ok, err := in.ReadString()
	if err != nil || !ok {
		return nil, rtmperrors.ErrMalformedAmf
	}

	a := &Action{Action: action}
	a.Service, a.Method = splitAction(action)

	txnID, ok, err := in.ReadNumber()
	if err == nil && ok {
		a.TransactionID = txnID
	}

	for cur.Remaining() > 0 {
		v, ok, err := in.ReadValueDetectingEncoding()
		if err != nil || !ok {
			break
		}
		if m, isMap := v.(map[string]interface{}); isMap && a.Params == nil {
			a.Params = m
			continue
		}
		a.Args = append(a.Args, v)
	}

	return a, nil
}

// splitAction splits a dotted action string at its final '.' into a service
// name and method name, stripping leading '@'/'|' from either half, per
// spec.md §4.5.
func splitAction(action string) (service, method string) {
	idx := strings.LastIndex(action, ".")
	if idx < 0 {
		return "", stripActionPrefix(action)
	}
	return stripActionPrefix(action[:idx]), stripActionPrefix(action[idx+1:])
}

func stripActionPrefix(s string) string {
	return strings.TrimLeft(s, "@|")
}
