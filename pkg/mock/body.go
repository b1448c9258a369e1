package mock

import (
	"encoding/json"
	"reflect"
)

type bodyKind int

const (
	bodyNone bodyKind = iota
	bodyText
	bodyBytes
	bodyJSON
)

var bodyKindNames = map[bodyKind]string{
	bodyNone:  "none",
	bodyText:  "text",
	bodyBytes: "bytes",
	bodyJSON:  "json",
}

// Body is the payload of a response template. The zero value is an absent
// body.
type Body struct {
	kind  bodyKind
	text  string
	raw   []byte
	value interface{}
}

// NoBody returns an absent body. It is sent as a zero-length byte payload.
func NoBody() Body {
	return Body{}
}

// Text returns a body sent as its UTF-8 bytes.
func Text(s string) Body {
	return Body{kind: bodyText, text: s}
}

// Bytes returns a body sent verbatim.
func Bytes(b []byte) Body {
	return Body{kind: bodyBytes, raw: append([]byte(nil), b...)}
}

// JSON returns a body serialized with encoding/json at synthesis time.
// A nil value, including a typed nil pointer, map, slice or interface, is
// treated as an absent body.
func JSON(v interface{}) Body {
	if isNil(v) {
		return Body{}
	}
	return Body{kind: bodyJSON, value: v}
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Kind names the variant: none, text, bytes or json.
func (b Body) Kind() string {
	return bodyKindNames[b.kind]
}

// IsZero reports whether the body is absent.
func (b Body) IsZero() bool {
	return b.kind == bodyNone
}

// encode returns the wire bytes and whether they hold a structured value.
// The returned slice is never nil.
func (b Body) encode() ([]byte, bool, error) {
	switch b.kind {
	case bodyText:
		return []byte(b.text), false, nil
	case bodyBytes:
		out := make([]byte, len(b.raw))
		copy(out, b.raw)
		return out, false, nil
	case bodyJSON:
		data, err := json.Marshal(b.value)
		if err != nil {
			return nil, true, err
		}
		return data, true, nil
	default:
		return []byte{}, false, nil
	}
}

// Preview returns a short printable form of the body for diagnostics.
func (b Body) Preview(limit int) string {
	var s string
	switch b.kind {
	case bodyText:
		s = b.text
	case bodyBytes:
		s = string(b.raw)
	case bodyJSON:
		data, err := json.Marshal(b.value)
		if err != nil {
			return "<unserializable>"
		}
		s = string(data)
	default:
		return ""
	}
	if limit > 0 && len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
