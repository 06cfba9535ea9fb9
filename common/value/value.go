// Package value implements the dynamic JSON-like value that flows between
// functions at runtime (§9 "Dynamic values"). It wraps encoding/json
// decoding with the one extra operation the spec requires: selecting a
// sub-value by route ("/a/b/0"). Sub-route selection is implemented the
// same way the teacher's config resolver looks up a field inside a node's
// stored output — marshal to JSON bytes and walk it with gjson — rather
// than hand-rolling a second, parallel tree-walker over interface{}.
package value

import (
	"encoding/json"
	"fmt"

	"github.com/lyzr/flowr/internal/route"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Value wraps a decoded JSON value (nil, bool, float64, string,
// []interface{}, or map[string]interface{}, per encoding/json's default
// decoding).
type Value struct {
	raw interface{}
}

// Of wraps an already-decoded Go value.
func Of(raw interface{}) Value {
	return Value{raw: raw}
}

// Null is the JSON null value.
var Null = Value{raw: nil}

// FromJSON decodes JSON bytes into a Value.
func FromJSON(b []byte) (Value, error) {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return Value{}, fmt.Errorf("decode value: %w", err)
	}
	return Value{raw: raw}, nil
}

// Raw returns the underlying decoded Go value.
func (v Value) Raw() interface{} {
	return v.raw
}

// IsNull reports whether v holds JSON null (or the zero Value).
func (v Value) IsNull() bool {
	return v.raw == nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.raw == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v.raw)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &v.raw)
}

// AsArray returns v's elements if v is a JSON array.
func (v Value) AsArray() ([]Value, bool) {
	arr, ok := v.raw.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]Value, len(arr))
	for i, e := range arr {
		out[i] = Value{raw: e}
	}
	return out, true
}

// NewArray constructs a Value holding a JSON array of the given elements.
func NewArray(elems ...Value) Value {
	raw := make([]interface{}, len(elems))
	for i, e := range elems {
		raw[i] = e.raw
	}
	return Value{raw: raw}
}

// NewObject constructs a Value holding a JSON object.
func NewObject(fields map[string]Value) Value {
	raw := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		raw[k] = v.raw
	}
	return Value{raw: raw}
}

// Pointer selects the sub-value addressed by r, e.g. "/a/b/0". An empty
// route returns v itself. The second return is false if no value exists
// at that path — callers (§4.6 step "Output(sub)") must treat this as a
// legal, non-fatal miss, not an error.
func (v Value) Pointer(r route.Route) (Value, bool) {
	if r == route.Empty {
		return v, true
	}

	b, err := json.Marshal(v.raw)
	if err != nil {
		return Value{}, false
	}

	path := gjsonPath(r)
	result := gjson.GetBytes(b, path)
	if !result.Exists() {
		return Value{}, false
	}

	var raw interface{}
	if err := json.Unmarshal([]byte(result.Raw), &raw); err != nil {
		return Value{}, false
	}
	return Value{raw: raw}, true
}

// WithPointer returns a copy of v with the sub-value at r set to sub. It is
// the write-side companion to Pointer, used when synthesizing array-wrapped
// values during type conversion.
func (v Value) WithPointer(r route.Route, sub Value) (Value, error) {
	if r == route.Empty {
		return sub, nil
	}

	b, err := json.Marshal(v.raw)
	if err != nil {
		return Value{}, fmt.Errorf("marshal base value: %w", err)
	}

	subBytes, err := json.Marshal(sub.raw)
	if err != nil {
		return Value{}, fmt.Errorf("marshal sub value: %w", err)
	}

	out, err := sjson.SetRawBytes(b, gjsonPath(r), subBytes)
	if err != nil {
		return Value{}, fmt.Errorf("set path %q: %w", r, err)
	}

	return FromJSON(out)
}

// gjsonPath converts a flow Route ("/a/b/0") into a gjson/sjson path
// ("a.b.0").
func gjsonPath(r route.Route) string {
	s := r.String()
	for len(s) > 0 && s[0] == '/' {
		s = s[1:]
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			out = append(out, '.')
		} else {
			out = append(out, s[i])
		}
	}
	return string(out)
}
