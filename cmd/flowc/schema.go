package main

import (
	"encoding/json"
	"fmt"

	"github.com/lyzr/flowr/internal/datatype"
	"github.com/lyzr/flowr/internal/model"
	"github.com/lyzr/flowr/internal/route"
)

// This is the boundary §1's Non-goals draw around flowc: the textual
// flow-definition parser stays external. What follows are the two input
// shapes that parser is assumed to already have produced — a flat DSL
// (legacy, one flow, no subprocesses) and a nested FlowSchema tree
// (subprocesses, matching model.FlowDefinition's own shape) — mirroring
// the teacher's DSL/WorkflowSchema dual compile paths in
// cmd/workflow-runner/compiler/ir.go.

// DSL is the flat, single-flow input: every node is a function, edges
// connect node outputs to node inputs directly, no subprocess nesting.
type DSL struct {
	Version string    `json:"version"`
	Nodes   []DSLNode `json:"nodes"`
	Edges   []DSLEdge `json:"edges"`
}

type DSLNode struct {
	ID         string   `json:"id"`
	Inputs     []string `json:"inputs"`
	Outputs    []string `json:"outputs"`
	DataType   string   `json:"data_type,omitempty"`
	LibURL     string   `json:"lib_url,omitempty"`
	ContextURL string   `json:"context_url,omitempty"`
	Source     string   `json:"source,omitempty"`
	Impure     bool     `json:"impure,omitempty"`
}

type DSLEdge struct {
	From string `json:"from"` // "node/output"
	To   string `json:"to"`   // "node/input"
}

// FlowSchema is the nested input: a flow has its own IO, named process
// instances (function or subflow), connections declared at this level,
// and a map of subprocess flows keyed by the alias that refers to them —
// the JSON-decodable twin of model.FlowDefinition.
type FlowSchema struct {
	Name         string                 `json:"name"`
	Inputs       []IOSchema             `json:"inputs,omitempty"`
	Outputs      []IOSchema             `json:"outputs,omitempty"`
	Functions    []FunctionSchema       `json:"functions,omitempty"`
	Connections  []ConnectionSchema     `json:"connections,omitempty"`
	Subprocesses map[string]*FlowSchema `json:"subprocesses,omitempty"`
}

type IOSchema struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

type FunctionSchema struct {
	Name       string     `json:"name"`
	Inputs     []IOSchema `json:"inputs,omitempty"`
	Outputs    []IOSchema `json:"outputs,omitempty"`
	LibURL     string     `json:"lib_url,omitempty"`
	ContextURL string     `json:"context_url,omitempty"`
	Source     string     `json:"source,omitempty"`
	Impure     bool       `json:"impure,omitempty"`
}

// ConnectionSchema names endpoints as routes relative to the flow
// declaring them ("nodeAlias/port" or "/input"/"/output" for the flow's
// own boundary ports).
type ConnectionSchema struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// detectAndParse sniffs which of the two shapes a document is (a DSL has
// a top-level "nodes"/"edges" pair; a FlowSchema has "functions") and
// builds the model tree either way.
func detectAndParse(data []byte) (*model.FlowDefinition, []*model.FunctionDefinition, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, nil, fmt.Errorf("parse input: %w", err)
	}

	if _, ok := probe["nodes"]; ok {
		var dsl DSL
		if err := json.Unmarshal(data, &dsl); err != nil {
			return nil, nil, fmt.Errorf("parse DSL: %w", err)
		}
		return buildFromDSL(&dsl)
	}

	var schema FlowSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, nil, fmt.Errorf("parse flow schema: %w", err)
	}
	return buildFromFlowSchema(&schema)
}

// buildFromDSL lowers a flat DSL into a single root flow whose functions
// are all direct children (no subprocess nesting) — the "direct
// passthrough" path §2.E describes. Every edge is declared at level 0
// since nothing here ever crosses a flow boundary.
func buildFromDSL(dsl *DSL) (*model.FlowDefinition, []*model.FunctionDefinition, error) {
	root := &model.FlowDefinition{
		Name:         "root",
		Route:        route.New("/root"),
		Subprocesses: map[route.Name]*model.FlowDefinition{},
	}

	functions := make([]*model.FunctionDefinition, 0, len(dsl.Nodes))
	ioByKey := map[string]*model.IO{} // "node/port" -> the IO at that port

	for idx, n := range dsl.Nodes {
		fd, err := functionFromSchema(model.FunctionID(idx), route.New("/root"), FunctionSchema{
			Name: n.ID, LibURL: n.LibURL, ContextURL: n.ContextURL, Source: n.Source, Impure: n.Impure,
			Inputs:  namedIOs(n.Inputs, n.DataType),
			Outputs: namedIOs(n.Outputs, n.DataType),
		})
		if err != nil {
			return nil, nil, err
		}
		functions = append(functions, fd)
		for _, in := range fd.Inputs {
			ioByKey[n.ID+"/"+string(in.Name)] = in
		}
		for _, out := range fd.Outputs {
			ioByKey[n.ID+"/"+string(out.Name)] = out
		}
	}

	for _, e := range dsl.Edges {
		fromIO, ok := ioByKey[e.From]
		if !ok {
			return nil, nil, fmt.Errorf("edge from unknown output %q", e.From)
		}
		toIO, ok := ioByKey[e.To]
		if !ok {
			return nil, nil, fmt.Errorf("edge to unknown input %q", e.To)
		}
		root.Connections = append(root.Connections, &model.Connection{
			FromRoute: fromIO.Route,
			ToRoutes:  []route.Route{toIO.Route},
			FromIO:    fromIO,
			ToIO:      toIO,
			Level:     0,
			Name:      e.From + "->" + e.To,
		})
	}

	return root, functions, nil
}

// buildFromFlowSchema recursively lowers a FlowSchema tree into
// model.FlowDefinition/FunctionDefinition, assigning each function a
// globally unique FunctionID across the whole tree (resolver.Resolve
// indexes functions by this id via CompilerTables.Functions) and each
// connection the nesting depth of the flow that declared it, matching
// §4.2's Level convention (root flow is level 0, each subprocess hop
// adds one).
func buildFromFlowSchema(root *FlowSchema) (*model.FlowDefinition, []*model.FunctionDefinition, error) {
	var all []*model.FunctionDefinition
	var nextID model.FunctionID
	var nextFlowID model.FlowID

	var convert func(s *FlowSchema, parentRoute route.Route, depth int) (*model.FlowDefinition, error)
	convert = func(s *FlowSchema, parentRoute route.Route, depth int) (*model.FlowDefinition, error) {
		flowID := nextFlowID
		nextFlowID++

		flowRoute := parentRoute.Push(route.Name(s.Name))
		fd := &model.FlowDefinition{
			ID:           flowID,
			Name:         route.Name(s.Name),
			Route:        flowRoute,
			Inputs:       ioFromSchemas(s.Inputs, flowRoute, model.FlowInputIO),
			Outputs:      ioFromSchemas(s.Outputs, flowRoute, model.FlowOutputIO),
			Subprocesses: map[route.Name]*model.FlowDefinition{},
		}

		// ioByKey resolves a schema-relative endpoint ("alias/port" for a
		// function/subflow port, "/port" for this flow's own boundary) to
		// the *model.IO the connection below must point at.
		ioByKey := map[string]*model.IO{}
		for _, io := range fd.Inputs {
			ioByKey["/"+string(io.Name)] = io
		}
		for _, io := range fd.Outputs {
			ioByKey["/"+string(io.Name)] = io
		}

		for _, fnSchema := range s.Functions {
			fn, err := functionFromSchema(nextID, flowRoute, fnSchema)
			if err != nil {
				return nil, err
			}
			fn.FlowID = flowID
			nextID++
			all = append(all, fn)
			fd.ProcessRefs = append(fd.ProcessRefs, &model.ProcessRef{Alias: route.Name(fnSchema.Name), FunctionID: &fn.ID})
			for _, io := range fn.Inputs {
				ioByKey[fnSchema.Name+"/"+string(io.Name)] = io
			}
			for _, io := range fn.Outputs {
				ioByKey[fnSchema.Name+"/"+string(io.Name)] = io
			}
		}

		for alias, sub := range s.Subprocesses {
			childFD, err := convert(sub, flowRoute, depth+1)
			if err != nil {
				return nil, err
			}
			fd.Subprocesses[route.Name(alias)] = childFD
			id := childFD.ID
			fd.ProcessRefs = append(fd.ProcessRefs, &model.ProcessRef{Alias: route.Name(alias), FlowID: &id})
			for _, io := range childFD.Inputs {
				ioByKey[alias+"/"+string(io.Name)] = io
			}
			for _, io := range childFD.Outputs {
				ioByKey[alias+"/"+string(io.Name)] = io
			}
		}

		for _, c := range s.Connections {
			fromIO, ok := ioByKey[c.From]
			if !ok {
				return nil, fmt.Errorf("flow %s: connection from unknown endpoint %q", s.Name, c.From)
			}
			toIO, ok := ioByKey[c.To]
			if !ok {
				return nil, fmt.Errorf("flow %s: connection to unknown endpoint %q", s.Name, c.To)
			}
			fd.Connections = append(fd.Connections, &model.Connection{
				FromRoute: fromIO.Route,
				ToRoutes:  []route.Route{toIO.Route},
				FromIO:    fromIO,
				ToIO:      toIO,
				Level:     depth,
				Name:      c.From + "->" + c.To,
			})
		}

		return fd, nil
	}

	fd, err := convert(root, route.New(""), 0)
	if err != nil {
		return nil, nil, err
	}
	return fd, all, nil
}

func functionFromSchema(id model.FunctionID, parentRoute route.Route, s FunctionSchema) (*model.FunctionDefinition, error) {
	fnRoute := parentRoute.Push(route.Name(s.Name))
	fd := &model.FunctionDefinition{
		ID:      id,
		Name:    route.Name(s.Name),
		Route:   fnRoute,
		Inputs:  ioFromSchemas(s.Inputs, fnRoute, model.FunctionInputIO),
		Outputs: ioFromSchemas(s.Outputs, fnRoute, model.FunctionOutputIO),
		LibURL:  s.LibURL, ContextURL: s.ContextURL, Source: s.Source, Impure: s.Impure,
	}
	switch {
	case s.LibURL != "":
		fd.Reference = model.LibReference
	case s.ContextURL != "":
		fd.Reference = model.ContextReference
	default:
		fd.Reference = model.NoReference
	}
	if err := fd.Validate(); err != nil {
		return nil, err
	}
	return fd, nil
}

func ioFromSchemas(ios []IOSchema, parentRoute route.Route, kind model.IOType) []*model.IO {
	out := make([]*model.IO, 0, len(ios))
	for _, io := range ios {
		out = append(out, &model.IO{
			Name:      route.Name(io.Name),
			Route:     parentRoute.Push(route.Name(io.Name)),
			DataTypes: []datatype.DataType{datatype.DataType(io.DataType)},
			IOType:    kind,
		})
	}
	return out
}

// namedIOs is the DSL's shorthand: a bare list of port names sharing one
// data type (DSL nodes don't carry a per-port type table, just one
// declared type for the whole node — enough for the flat passthrough
// path's test fixtures).
func namedIOs(names []string, dataType string) []IOSchema {
	if dataType == "" {
		dataType = "Value"
	}
	out := make([]IOSchema, 0, len(names))
	for _, n := range names {
		out = append(out, IOSchema{Name: n, DataType: dataType})
	}
	return out
}
