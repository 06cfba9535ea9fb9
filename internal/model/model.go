// Package model holds the compile-time entities of a flow: IO ports,
// connections, functions, and flows, laid out as an arena indexed by
// function id rather than a tree of owning pointers (§9 "Cyclic graphs
// vs. ownership" — connections form a general digraph, so functions are
// held in a flat slice and every cross-reference is an id, never a
// back-reference). Struct shapes follow the teacher's plain-struct
// SDK types: no generic containers, JSON tags on every exported field.
package model

import (
	"fmt"

	"github.com/lyzr/flowr/internal/datatype"
	"github.com/lyzr/flowr/internal/route"
)

// FunctionID indexes the function arena held by CompilerTables/RunState.
type FunctionID int

// FlowID identifies a flow, including nested subflows, uniquely within a
// single compiled tree.
type FlowID int

// IOType distinguishes the four kinds of IO port named in the data model.
type IOType int

const (
	FlowInputIO IOType = iota
	FlowOutputIO
	FunctionInputIO
	FunctionOutputIO
)

func (t IOType) String() string {
	switch t {
	case FlowInputIO:
		return "FlowInput"
	case FlowOutputIO:
		return "FlowOutput"
	case FunctionInputIO:
		return "FunctionInput"
	case FunctionOutputIO:
		return "FunctionOutput"
	default:
		return "Unknown"
	}
}

// InitializerKind distinguishes a one-shot startup initializer from one
// that refills on every firing.
type InitializerKind int

const (
	NoInitializer InitializerKind = iota
	Once
	Always
)

// Initializer is the optional startup value attached to an IO.
type Initializer struct {
	Kind  InitializerKind
	Value interface{}
}

// IO is an input or output port of a flow or function.
type IO struct {
	Name         route.Name
	Route        route.Route
	DataTypes    []datatype.DataType
	Initializer  *Initializer
	IOType       IOType
}

// ReferenceScheme distinguishes where a function's implementation lives.
type ReferenceScheme int

const (
	NoReference ReferenceScheme = iota
	LibReference
	ContextReference
)

// Connection is a compile-time edge between two IOs, possibly traversing
// flow boundaries. Endpoints are routes, resolved against the flow tree
// during C3 (§4.2); Level is the nesting depth at which the connection was
// declared, used by the find_function_destinations walk.
type Connection struct {
	FromRoute route.Route
	ToRoutes  []route.Route
	FromIO    *IO
	ToIO      *IO
	Level     int
	Name      string
}

// FunctionDefinition is a compile-time function: its ports, the location
// of its implementation, and whether it is impure (has side effects).
//
// Impure is only legal when Reference == ContextReference — a context
// function represents an interaction with the outside world; the
// resolver's side-effect check rejects a flow in which no impure function
// is connected.
type FunctionDefinition struct {
	ID        FunctionID
	FlowID    FlowID
	Name      route.Name
	Route     route.Route
	Inputs    []*IO
	Outputs   []*IO
	Reference ReferenceScheme
	LibURL    string
	ContextURL string
	Source    string // relative file path, when Reference == NoReference
	Impure    bool
}

// Validate enforces the impure/reference-scheme invariant from §3.
func (f *FunctionDefinition) Validate() error {
	if f.Impure && f.Reference != ContextReference {
		return fmt.Errorf("function %s: impure is only legal with a context reference", f.Name)
	}
	return nil
}

// ProcessRef is a named instance of a child flow or function within a
// parent flow.
type ProcessRef struct {
	Alias      route.Name
	FlowID     *FlowID     // set when the ref is a subflow
	FunctionID *FunctionID // set when the ref is a function instance
}

// FlowDefinition is a compile-time flow: its own ports, named process
// instances, the connections declared at this level, and a map of loaded
// child flows (subprocesses) keyed by alias.
type FlowDefinition struct {
	ID           FlowID
	Name         route.Name
	Route        route.Route
	Inputs       []*IO
	Outputs      []*IO
	ProcessRefs  []*ProcessRef
	Connections  []*Connection
	Subprocesses map[route.Name]*FlowDefinition
}

// Source identifies the origin side of a runtime OutputConnection: either
// a sub-route into a function's output value, or a direct pass-through of
// one of the function's own input sets.
type SourceKind int

const (
	SourceOutput SourceKind = iota
	SourceInput
)

// Source pairs a SourceKind with its addressing data: a sub-route for
// SourceOutput, or an input index for SourceInput.
type Source struct {
	Kind     SourceKind
	SubRoute route.Route
	InputIdx int
}

// OutputConnection is the denormalized runtime edge produced by C3 and
// attached to its source function (§3 "OutputConnection (runtime)"):
// where a value comes from, where it goes, and the hints the runtime
// needs to wrap/serialize it without re-deriving them from the compile
// time Connection on every job.
type OutputConnection struct {
	SourceFunctionIdx int
	Source            Source
	DestFunctionIdx   int
	DestFunctionID    FunctionID
	IONumber          int
	FlowID            FlowID
	DestinationArrayOrder int
	IsGeneric         bool
	LoopbackPriority  bool
	Name              string // debug display name, empty unless debugging
}

// SourceEntry is the value of the CompilerTables.Sources table: which
// function (by arena index) a route resolves to, alongside the Source
// description for that resolution.
type SourceEntry struct {
	Source       Source
	FunctionIdx  int
}

// DestinationEntry is the value of the CompilerTables.DestinationRoutes
// table.
type DestinationEntry struct {
	FunctionIdx int
	IONumber    int
	FlowID      FlowID
}

// CompilerTables is the artifact produced by C3/C4 (§3 "CompilerTables").
type CompilerTables struct {
	Functions           []*FunctionDefinition
	CollapsedConnections []*Connection
	OutputConnections   []*OutputConnection
	Sources             map[route.Route]SourceEntry
	DestinationRoutes   map[route.Route]DestinationEntry
	LibURLs             map[string]bool
	ContextURLs         map[string]bool
}

// NewCompilerTables returns an empty table set ready for population.
func NewCompilerTables() *CompilerTables {
	return &CompilerTables{
		Sources:           map[route.Route]SourceEntry{},
		DestinationRoutes: map[route.Route]DestinationEntry{},
		LibURLs:           map[string]bool{},
		ContextURLs:       map[string]bool{},
	}
}
