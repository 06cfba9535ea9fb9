package resolver

import (
	"testing"

	"github.com/lyzr/flowr/internal/datatype"
	"github.com/lyzr/flowr/internal/model"
	"github.com/lyzr/flowr/internal/route"
)

// buildDirect constructs the simplest possible flow: two functions at the
// root, connected output-to-input with no flow-boundary hops.
func buildDirect() (*model.FlowDefinition, []*model.FunctionDefinition) {
	srcOut := &model.IO{Name: "out", Route: route.New("/src/out"), DataTypes: []datatype.DataType{datatype.Number}, IOType: model.FunctionOutputIO}
	dstIn := &model.IO{Name: "in", Route: route.New("/dst/in"), DataTypes: []datatype.DataType{datatype.Number}, IOType: model.FunctionInputIO}

	src := &model.FunctionDefinition{ID: 0, Name: "src", Route: route.New("/src"), Outputs: []*model.IO{srcOut}}
	dst := &model.FunctionDefinition{ID: 1, Name: "dst", Route: route.New("/dst"), Inputs: []*model.IO{dstIn}, Impure: true}

	conn := &model.Connection{
		FromRoute: srcOut.Route,
		ToRoutes:  []route.Route{dstIn.Route},
		FromIO:    srcOut,
		ToIO:      dstIn,
		Level:     0,
	}

	flow := &model.FlowDefinition{
		ID:           0,
		Name:         "root",
		Connections:  []*model.Connection{conn},
		Subprocesses: map[route.Name]*model.FlowDefinition{},
	}

	return flow, []*model.FunctionDefinition{src, dst}
}

func TestResolveDirectConnection(t *testing.T) {
	flow, functions := buildDirect()

	tables, err := Resolve(flow, functions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(tables.CollapsedConnections) != 1 {
		t.Fatalf("expected 1 collapsed connection, got %d", len(tables.CollapsedConnections))
	}

	cc := tables.CollapsedConnections[0]
	if cc.FromRoute.String() != "/src/out" || cc.ToRoutes[0].String() != "/dst/in" {
		t.Fatalf("got %+v", cc)
	}
}

func TestResolveIncompatibleTypesRejected(t *testing.T) {
	flow, functions := buildDirect()
	// Make destination incompatible: string vs number with no escape hatch.
	functions[1].Inputs[0].DataTypes = []datatype.DataType{datatype.String}
	flow.Connections[0].ToIO.DataTypes = []datatype.DataType{datatype.String}

	_, err := Resolve(flow, functions)
	if err == nil {
		t.Fatalf("expected incompatible-types error")
	}
}

func TestResolveThroughFlowBoundary(t *testing.T) {
	// root flow: function "src" output -> subflow "sub" input (FlowInput)
	// sub flow: FlowInput -> function "inner" input (FunctionInput)
	srcOut := &model.IO{Name: "out", Route: route.New("/src/out"), DataTypes: []datatype.DataType{datatype.Number}, IOType: model.FunctionOutputIO}
	src := &model.FunctionDefinition{ID: 0, Name: "src", Route: route.New("/src"), Outputs: []*model.IO{srcOut}}

	subFlowIn := &model.IO{Name: "in", Route: route.New("/sub/in"), DataTypes: []datatype.DataType{datatype.Number}, IOType: model.FlowInputIO}

	innerIn := &model.IO{Name: "in", Route: route.New("/sub/inner/in"), DataTypes: []datatype.DataType{datatype.Number}, IOType: model.FunctionInputIO}
	inner := &model.FunctionDefinition{ID: 1, Name: "inner", Route: route.New("/sub/inner"), Inputs: []*model.IO{innerIn}, Impure: true}

	rootToSub := &model.Connection{
		FromRoute: srcOut.Route,
		ToRoutes:  []route.Route{subFlowIn.Route},
		FromIO:    srcOut,
		ToIO:      subFlowIn,
		Level:     0,
	}
	subToInner := &model.Connection{
		FromRoute: subFlowIn.Route,
		ToRoutes:  []route.Route{innerIn.Route},
		FromIO:    subFlowIn,
		ToIO:      innerIn,
		Level:     1,
	}

	subFlow := &model.FlowDefinition{
		ID:           1,
		Name:         "sub",
		Connections:  []*model.Connection{subToInner},
		Subprocesses: map[route.Name]*model.FlowDefinition{},
	}
	rootFlow := &model.FlowDefinition{
		ID:          0,
		Name:        "root",
		Connections: []*model.Connection{rootToSub},
		Subprocesses: map[route.Name]*model.FlowDefinition{
			"sub": subFlow,
		},
	}

	functions := []*model.FunctionDefinition{src, inner}

	tables, err := Resolve(rootFlow, functions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tables.CollapsedConnections) != 1 {
		t.Fatalf("expected one collapsed connection through the boundary, got %d", len(tables.CollapsedConnections))
	}
	cc := tables.CollapsedConnections[0]
	if cc.FromRoute.String() != "/src/out" || cc.ToRoutes[0].String() != "/sub/inner/in" {
		t.Fatalf("got %+v", cc)
	}
}

func TestResolveRejectsFlowWithNoConnectedImpureFunction(t *testing.T) {
	// buildDirect marks dst impure; with that cleared, src and dst are both
	// pure, so the flow has no observable side effect even though src and
	// dst are connected to each other.
	flow, functions := buildDirect()
	functions[1].Impure = false

	_, err := Resolve(flow, functions)
	if err == nil {
		t.Fatalf("expected rejection of a flow with no connected impure function")
	}
}

func TestResolveRejectsUnconnectedImpureSink(t *testing.T) {
	// An impure function declared but never wired into any connection is
	// as good as absent: with buildDirect's dst made pure, the flow still
	// has no observable side effect.
	flow, functions := buildDirect()
	functions[1].Impure = false
	sink := &model.FunctionDefinition{ID: 2, Name: "sink", Route: route.New("/sink"), Impure: true}
	functions = append(functions, sink)

	_, err := Resolve(flow, functions)
	if err == nil {
		t.Fatalf("expected rejection of an unconnected impure function")
	}
}

func TestResolveRejectsMixedPriorityIntoSameInput(t *testing.T) {
	// "dst" receives from both an external source (non-loopback) and from
	// its own output (loopback) into the same input.
	srcOut := &model.IO{Name: "out", Route: route.New("/src/out"), DataTypes: []datatype.DataType{datatype.Number}, IOType: model.FunctionOutputIO}
	src := &model.FunctionDefinition{ID: 0, Name: "src", Route: route.New("/src"), Outputs: []*model.IO{srcOut}}

	dstIn := &model.IO{Name: "in", Route: route.New("/dst/in"), DataTypes: []datatype.DataType{datatype.Number}, IOType: model.FunctionInputIO}
	dstOut := &model.IO{Name: "out", Route: route.New("/dst/out"), DataTypes: []datatype.DataType{datatype.Number}, IOType: model.FunctionOutputIO}
	dst := &model.FunctionDefinition{ID: 1, Name: "dst", Route: route.New("/dst"), Inputs: []*model.IO{dstIn}, Outputs: []*model.IO{dstOut}, Impure: true}

	external := &model.Connection{
		FromRoute: srcOut.Route,
		ToRoutes:  []route.Route{dstIn.Route},
		FromIO:    srcOut,
		ToIO:      dstIn,
		Level:     0,
	}
	loopback := &model.Connection{
		FromRoute: dstOut.Route,
		ToRoutes:  []route.Route{dstIn.Route},
		FromIO:    dstOut,
		ToIO:      dstIn,
		Level:     0,
	}

	flow := &model.FlowDefinition{
		ID:           0,
		Name:         "root",
		Connections:  []*model.Connection{external, loopback},
		Subprocesses: map[route.Name]*model.FlowDefinition{},
	}

	_, err := Resolve(flow, []*model.FunctionDefinition{src, dst})
	if err == nil {
		t.Fatalf("expected rejection of mixed loopback/non-loopback sources into one input")
	}
}
