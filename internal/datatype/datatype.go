// Package datatype implements the DataType model and the compatibility
// rules that govern whether a value produced at one type can flow into an
// input declared with another (§4.1 of the flow specification): equality,
// generic escape hatches, and array wrapping/serialization by one or two
// levels of nesting.
package datatype

import (
	"fmt"
	"strings"

	"github.com/lyzr/flowr/internal/route"
)

// DataType is a "/"-separated list of type tags, e.g. "array/array/number".
// The empty string denotes "generic" — compatible with anything.
type DataType string

const (
	Object  = "object"
	String  = "string"
	Number  = "number"
	Boolean = "boolean"
	Array   = "array"
	Null    = "null"
	Generic = ""
)

func (t DataType) String() string { return string(t) }

func (t DataType) segments() []string {
	if t == "" {
		return nil
	}
	return strings.Split(string(t), "/")
}

// IsGeneric reports whether t is the generic (empty) type.
func (t DataType) IsGeneric() bool {
	return t == Generic
}

// IsArray reports whether t's first tag is "array".
func (t DataType) IsArray() bool {
	segs := t.segments()
	return len(segs) > 0 && segs[0] == Array
}

// ArrayType returns the element type of an array type, the type itself if
// generic, or (zero, false) if t is neither an array nor generic.
func (t DataType) ArrayType() (DataType, bool) {
	if t.IsGeneric() {
		return t, true
	}
	if !t.IsArray() {
		return "", false
	}
	return DataType(strings.Join(t.segments()[1:], "/")), true
}

// TypeArrayOrder returns the depth of "array/" prefixes: 0 for scalars, 2
// for "array/array/T".
func (t DataType) TypeArrayOrder() int {
	order := 0
	cur := t
	for cur.IsArray() {
		order++
		next, _ := cur.ArrayType()
		cur = next
	}
	return order
}

// ValueArrayOrder returns the array nesting depth of a concrete dynamic
// value (as decoded by encoding/json: []interface{} for arrays).
func ValueArrayOrder(v interface{}) int {
	order := 0
	for {
		arr, ok := v.([]interface{})
		if !ok {
			return order
		}
		order++
		if len(arr) == 0 {
			return order
		}
		v = arr[0]
	}
}

// subtype applies a sub-route by dropping that many leading type segments.
// Generic is unchanged by any sub-route. If the sub-route is deeper than
// the type's own segment count, the connection fails (ok=false).
func subtype(t DataType, r route.Route) (DataType, bool) {
	if t.IsGeneric() {
		return t, true
	}
	depth := r.Depth()
	segs := t.segments()
	if depth > len(segs) {
		return "", false
	}
	return DataType(strings.Join(segs[depth:], "/")), true
}

// IncompatibleError reports a source/destination DataType pair that failed
// the §4.1 compatibility rules.
type IncompatibleError struct {
	Source      DataType
	Destination DataType
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("incompatible types: source %q, destination %q", e.Source, e.Destination)
}

// twoCompatible implements the Δ = order(f) - order(t) table of §4.1,
// including the two generic-array escape hatches.
func twoCompatible(f, t DataType) bool {
	if f.IsGeneric() || t.IsGeneric() {
		return true
	}

	// Escape hatch: source's array element type is generic — trust the
	// runtime to serialize whatever it produces at dispatch time.
	if f.IsArray() {
		if elem, _ := f.ArrayType(); elem.IsGeneric() {
			return true
		}
	}
	// Escape hatch: destination's array element type is generic — trust it
	// to accept any element.
	if t.IsArray() {
		if elem, _ := t.ArrayType(); elem.IsGeneric() {
			return true
		}
	}

	delta := f.TypeArrayOrder() - t.TypeArrayOrder()

	switch delta {
	case 0:
		return f == t
	case 1:
		// Serialization: f is an array of t's type.
		elem, ok := f.ArrayType()
		return ok && twoCompatible(elem, t)
	case -1:
		// Wrapping: t is an array of f's type.
		elem, ok := t.ArrayType()
		return ok && twoCompatible(f, elem)
	case 2:
		fElem, ok := f.ArrayType()
		if !ok {
			return false
		}
		return twoCompatible(fElem, t)
	case -2:
		tElem, ok := t.ArrayType()
		if !ok {
			return false
		}
		return twoCompatible(f, tElem)
	default:
		return false
	}
}

// Compatible reports whether a connection with source types S, destination
// types D, and source sub-route r is legal: for every s in S there must
// exist some d in D such that twoCompatible(subtype(s, r), d) holds.
//
// An empty source or destination type list is vacuously incompatible.
func Compatible(source []DataType, dest []DataType, sourceSubRoute route.Route) error {
	if len(source) == 0 || len(dest) == 0 {
		return &IncompatibleError{}
	}

	for _, s := range source {
		sub, ok := subtype(s, sourceSubRoute)
		if !ok {
			return &IncompatibleError{Source: s, Destination: dest[0]}
		}

		matched := false
		for _, d := range dest {
			if twoCompatible(sub, d) {
				matched = true
				break
			}
		}
		if !matched {
			return &IncompatibleError{Source: sub, Destination: dest[0]}
		}
	}

	return nil
}
