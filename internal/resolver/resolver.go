// Package resolver implements C3: it collapses the multi-hop connections
// of a compile-time flow tree into a flat list of function-to-function
// OutputConnections, then builds the sources/destination_routes lookup
// tables the manifest generator needs. The recursive traversal follows
// find_function_destinations the way the teacher's ControlFlowRouter
// dispatches on a node-kind enum, one switch case per kind, each either
// terminal or a recursion target — same shape, applied to IO-kind routing
// instead of branch/loop routing.
package resolver

import (
	"fmt"
	"strings"

	"github.com/lyzr/flowr/internal/datatype"
	"github.com/lyzr/flowr/internal/model"
	"github.com/lyzr/flowr/internal/route"
)

// nextLevelResult is the outcome of computing the next traversal level for
// one hop of find_function_destinations.
type nextLevelResult struct {
	level    int
	terminal bool // true: drop the connection, no further hops possible
}

// nextLevel implements §4.2's four-way dispatch on destination IO kind.
func nextLevel(kind model.IOType, level int) nextLevelResult {
	switch kind {
	case model.FlowOutputIO:
		if level > 0 {
			return nextLevelResult{level: level - 1}
		}
		return nextLevelResult{terminal: true}
	case model.FlowInputIO:
		return nextLevelResult{level: level + 1}
	default: // FunctionInputIO, FunctionOutputIO
		return nextLevelResult{level: level}
	}
}

// resolved is one fully-walked collapsed connection: a function output
// reaching a function input, with the accumulated source sub-route.
type resolved struct {
	fromRoute route.Route // original FunctionOutput route
	subRoute  route.Route // accumulated sub-route through flow boundaries
	toRoute   route.Route // final FunctionInput route
	toIO      *model.IO
	fromIO    *model.IO
}

// pushSegments appends each non-empty segment of a "/"-joined suffix onto
// base, used to accumulate sub-routes hop by hop.
func pushSegments(base route.Route, suffix route.Route) route.Route {
	if suffix == route.Empty {
		return base
	}
	out := base
	for _, seg := range strings.Split(strings.TrimPrefix(suffix.String(), "/"), "/") {
		if seg != "" {
			out = out.Push(route.Name(seg))
		}
	}
	return out
}

// Resolve walks flow's connections, collapses them into function-to-
// function edges, and builds the CompilerTables the manifest generator
// consumes.
func Resolve(flow *model.FlowDefinition, functions []*model.FunctionDefinition) (*model.CompilerTables, error) {
	tables := model.NewCompilerTables()
	tables.Functions = functions

	for idx, f := range functions {
		for i, in := range f.Inputs {
			tables.DestinationRoutes[in.Route] = model.DestinationEntry{
				FunctionIdx: idx,
				IONumber:    i,
				FlowID:      f.FlowID,
			}
		}
		for _, out := range f.Outputs {
			tables.Sources[out.Route] = model.SourceEntry{
				Source:      model.Source{Kind: model.SourceOutput},
				FunctionIdx: idx,
			}
		}
	}

	// Routes are absolute paths, so the traversal below matches candidate
	// connections purely by sub-route regardless of which flow in the tree
	// declared them. Flatten the whole tree's connections once up front
	// rather than re-scoping the search to one fd.Connections slice per
	// recursive hop.
	all := flattenConnections(flow)

	var collapsed []resolved
	for _, conn := range all {
		if conn.FromIO == nil || conn.FromIO.IOType != model.FunctionOutputIO {
			continue
		}
		results, err := findFunctionDestinations(all, conn.FromRoute, route.Empty, conn.Level)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			collapsed = append(collapsed, resolved{
				fromRoute: conn.FromRoute,
				subRoute:  r.subRoute,
				toRoute:   r.toRoute,
				toIO:      r.toIO,
				fromIO:    conn.FromIO,
			})
		}
	}

	for _, c := range collapsed {
		if err := attach(tables, c); err != nil {
			return nil, err
		}
	}

	if err := checkSideEffects(tables); err != nil {
		return nil, err
	}

	if err := checkPriorityConflicts(tables); err != nil {
		return nil, err
	}

	return tables, nil
}

// flattenConnections gathers every Connection declared anywhere in the
// flow tree into one slice. Connection.FromRoute/ToRoutes are absolute
// routes, so matching by sub-route works the same regardless of which
// flow in the tree originally declared the connection.
func flattenConnections(fd *model.FlowDefinition) []*model.Connection {
	all := append([]*model.Connection(nil), fd.Connections...)
	for _, child := range fd.Subprocesses {
		all = append(all, flattenConnections(child)...)
	}
	return all
}

// findFunctionDestinations implements the recursive traversal of §4.2: from
// a boundary IO at the given level, follow connections whose own level
// matches the current level until a FunctionInput is reached.
func findFunctionDestinations(all []*model.Connection, from route.Route, accSubRoute route.Route, level int) ([]resolved, error) {
	var out []resolved

	for _, conn := range all {
		sub, ok := conn.FromRoute.SubRouteOf(from)
		if !ok {
			continue
		}
		if conn.ToIO == nil {
			continue
		}

		if conn.Level != level {
			continue
		}

		next := nextLevel(conn.ToIO.IOType, level)
		if next.terminal {
			continue
		}

		newAcc := pushSegments(accSubRoute, sub)

		if conn.ToIO.IOType == model.FunctionInputIO {
			out = append(out, resolved{subRoute: newAcc, toRoute: conn.ToRoutes[0], toIO: conn.ToIO})
			continue
		}

		nested, err := findFunctionDestinations(all, conn.ToRoutes[0], newAcc, next.level)
		if err != nil {
			return nil, err
		}
		out = append(out, nested...)
	}

	return out, nil
}

// attach resolves a fully-collapsed connection against the source/
// destination tables and builds the OutputConnection on the source
// function, per §4.2 steps 1-4.
func attach(tables *model.CompilerTables, c resolved) error {
	srcEntry, tail, err := lookupSource(tables, c.fromRoute)
	if err != nil {
		return err
	}

	dstEntry, ok := tables.DestinationRoutes[c.toRoute]
	if !ok {
		return fmt.Errorf("resolver: no destination table entry for route %q", c.toRoute)
	}

	srcFn := tables.Functions[srcEntry.FunctionIdx]
	dstFn := tables.Functions[dstEntry.FunctionIdx]

	fullSub := pushSegments(tail, c.subRoute)

	if dstEntry.IONumber < len(dstFn.Inputs) && c.toIO != nil && len(c.toIO.DataTypes) > 0 {
		var srcTypes []datatype.DataType
		for _, o := range srcFn.Outputs {
			srcTypes = append(srcTypes, o.DataTypes...)
		}
		if err := datatype.Compatible(srcTypes, c.toIO.DataTypes, fullSub); err != nil {
			return fmt.Errorf("resolver: connection %s -> %s: %w", c.fromRoute, c.toRoute, err)
		}
	}

	destArrayOrder := 0
	isGeneric := false
	if dstEntry.IONumber < len(dstFn.Inputs) {
		in := dstFn.Inputs[dstEntry.IONumber]
		if len(in.DataTypes) > 0 {
			destArrayOrder = in.DataTypes[0].TypeArrayOrder()
			isGeneric = in.DataTypes[0].IsGeneric()
		}
	}

	tables.CollapsedConnections = append(tables.CollapsedConnections, &model.Connection{
		FromRoute: c.fromRoute,
		ToRoutes:  []route.Route{c.toRoute},
		FromIO:    c.fromIO,
		ToIO:      c.toIO,
	})

	tables.OutputConnections = append(tables.OutputConnections, &model.OutputConnection{
		SourceFunctionIdx:     srcEntry.FunctionIdx,
		Source:                model.Source{Kind: model.SourceOutput, SubRoute: fullSub},
		DestFunctionIdx:       dstEntry.FunctionIdx,
		DestFunctionID:        dstFn.ID,
		IONumber:              dstEntry.IONumber,
		FlowID:                dstEntry.FlowID,
		DestinationArrayOrder: destArrayOrder,
		IsGeneric:             isGeneric,
		LoopbackPriority:      srcEntry.FunctionIdx == dstEntry.FunctionIdx,
	})

	if c.toIO != nil && c.toIO.Initializer != nil {
		if dstInput := dstFn.Inputs[dstEntry.IONumber]; dstInput.Initializer == nil {
			dstInput.Initializer = c.toIO.Initializer
		}
	}

	return nil
}

// lookupSource pops route segments off r until a Sources table entry
// matches, returning that entry and the popped tail as the selector
// sub-route (§4.2 step 1).
func lookupSource(tables *model.CompilerTables, r route.Route) (model.SourceEntry, route.Route, error) {
	cur := r
	var poppedInOrder []route.Name

	for {
		if entry, ok := tables.Sources[cur]; ok {
			tail := route.Empty
			for i := len(poppedInOrder) - 1; i >= 0; i-- {
				tail = tail.Push(poppedInOrder[i])
			}
			return entry, tail, nil
		}
		if cur == route.Empty {
			return model.SourceEntry{}, route.Empty, fmt.Errorf("resolver: no source table entry found for route %q", r)
		}
		parent, last := cur.Pop()
		poppedInOrder = append(poppedInOrder, last)
		cur = parent
	}
}

// checkSideEffects rejects a flow with no connected side-effecting function,
// matching flowc's compile-time "Flow has no side-effects" rejection. A flow
// is only observable from the outside through an impure function (one that
// talks to the runtime environment, e.g. stdout, a file, a clock) that is
// actually wired into the graph; an impure function declared but never
// reached by any connection is as good as absent, so checking f.Impure alone
// against the function list is not enough — it must be cross-referenced
// against the collapsed connections.
func checkSideEffects(tables *model.CompilerTables) error {
	connected := make(map[int]bool, len(tables.OutputConnections)*2)
	for _, oc := range tables.OutputConnections {
		connected[oc.SourceFunctionIdx] = true
		connected[oc.DestFunctionIdx] = true
	}

	for idx, f := range tables.Functions {
		if f.Impure && connected[idx] {
			return nil
		}
	}
	return fmt.Errorf("resolver: flow has no side-effects (no connected impure function)")
}

// inputKey identifies one function input across the collapsed connection
// set, for grouping multiple sources feeding the same input.
type inputKey struct {
	functionIdx int
	ioNumber    int
}

// checkPriorityConflicts rejects a function input fed by more than one
// OutputConnection when those connections don't all agree on
// LoopbackPriority. Connections are applied in listed order and the
// loopback flag only exempts a connection from block creation, so an
// input fed by both a loopback and a non-loopback source is rejected
// rather than silently accepted in declaration order.
func checkPriorityConflicts(tables *model.CompilerTables) error {
	byInput := make(map[inputKey][]*model.OutputConnection)
	for _, oc := range tables.OutputConnections {
		key := inputKey{functionIdx: oc.DestFunctionIdx, ioNumber: oc.IONumber}
		byInput[key] = append(byInput[key], oc)
	}

	for key, ocs := range byInput {
		if len(ocs) < 2 {
			continue
		}
		loopback := ocs[0].LoopbackPriority
		for _, oc := range ocs[1:] {
			if oc.LoopbackPriority != loopback {
				dstFn := tables.Functions[key.functionIdx]
				return fmt.Errorf("resolver: input %d of function %s has sources of incompatible priority (loopback and non-loopback both feed it)", key.ioNumber, dstFn.Name)
			}
		}
	}
	return nil
}
