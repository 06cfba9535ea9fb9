// Package route implements the hierarchical naming model used throughout
// the flow compiler and runtime: Route (a "/"-separated path naming an
// entity in the flow hierarchy) and Name (a single path segment).
package route

import (
	"fmt"
	"strconv"
	"strings"
)

// Name is a single, non-empty path segment. It may not contain "/".
type Name string

// Validate checks that n is a legal route segment.
func (n Name) Validate() error {
	if n == "" {
		return fmt.Errorf("name must not be empty")
	}
	if strings.Contains(string(n), "/") {
		return fmt.Errorf("name %q must not contain '/'", n)
	}
	return nil
}

// Route is a "/"-separated path naming an entity in the flow hierarchy,
// e.g. "/root/subflow/fn/input_name/0".
type Route string

// Empty is the zero-value route, denoting "no sub-route" / the root.
const Empty Route = ""

// New builds a Route from its string form. It does not validate segments;
// callers that need segment validation should call Validate.
func New(s string) Route {
	return Route(s)
}

// String returns the route's textual form.
func (r Route) String() string {
	return string(r)
}

// segments splits the route into its non-empty path segments.
func (r Route) segments() []string {
	trimmed := strings.Trim(string(r), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Push appends a segment, returning the new route.
func (r Route) Push(segment Name) Route {
	if r == Empty {
		return Route("/" + string(segment))
	}
	return Route(string(r) + "/" + string(segment))
}

// Pop removes the last segment, returning the parent route and the popped
// segment. Popping the empty route returns (Empty, "").
func (r Route) Pop() (Route, Name) {
	segs := r.segments()
	if len(segs) == 0 {
		return Empty, ""
	}
	last := segs[len(segs)-1]
	parent := "/" + strings.Join(segs[:len(segs)-1], "/")
	if len(segs) == 1 {
		parent = Empty.String()
	}
	return Route(parent), Name(last)
}

// StripTrailingIndex removes a trailing numeric segment (an array index)
// if present, returning the stripped route, the index, and whether one was
// found.
func (r Route) StripTrailingIndex() (Route, int, bool) {
	segs := r.segments()
	if len(segs) == 0 {
		return r, 0, false
	}
	last := segs[len(segs)-1]
	idx, err := strconv.Atoi(last)
	if err != nil || idx < 0 {
		return r, 0, false
	}
	parent, _ := r.Pop()
	return parent, idx, true
}

// Depth returns the number of segments in the route.
func (r Route) Depth() int {
	return len(r.segments())
}

// SubRouteOf tests whether r is strictly under other, returning the suffix
// route when it is, an empty-but-ok route when r == other, or (Empty,
// false) when r is not under other at all.
//
// a.SubRouteOf(b) returns the suffix when a is strictly under b, Empty
// (with ok=true) when a == b, and ok=false when a is not under b.
func (r Route) SubRouteOf(other Route) (sub Route, ok bool) {
	rs := string(r)
	os := string(other)

	if rs == os {
		return Empty, true
	}

	prefix := os
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	if !strings.HasPrefix(rs, prefix) {
		return Empty, false
	}

	return Route("/" + strings.TrimPrefix(rs, prefix)), true
}

// Kind classifies the first segment of a route relative to a flow
// boundary: whether it names a flow input, a flow output, or a
// sub-process (child flow or function instance).
type Kind int

const (
	// KindUnknown is returned when the route has no first segment.
	KindUnknown Kind = iota
	KindFlowInput
	KindFlowOutput
	KindSubProcess
)

func (k Kind) String() string {
	switch k {
	case KindFlowInput:
		return "FlowInput"
	case KindFlowOutput:
		return "FlowOutput"
	case KindSubProcess:
		return "SubProcess"
	default:
		return "Unknown"
	}
}

// Classified is the result of classifying a route's first segment.
type Classified struct {
	Kind     Kind
	Name     Name
	SubRoute Route
}

// Classify inspects the first segment of r against the given flow-local
// input and output names and reports whether it names a flow input, a flow
// output, or a sub-process (anything else), along with the remaining
// sub-route.
func Classify(r Route, flowInputs, flowOutputs map[Name]bool) Classified {
	segs := r.segments()
	if len(segs) == 0 {
		return Classified{Kind: KindUnknown}
	}

	first := Name(segs[0])
	rest := Route("/" + strings.Join(segs[1:], "/"))
	if len(segs) == 1 {
		rest = Empty
	}

	switch {
	case flowInputs[first]:
		return Classified{Kind: KindFlowInput, Name: first, SubRoute: rest}
	case flowOutputs[first]:
		return Classified{Kind: KindFlowOutput, Name: first, SubRoute: rest}
	default:
		return Classified{Kind: KindSubProcess, Name: first, SubRoute: rest}
	}
}
