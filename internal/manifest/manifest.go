// Package manifest implements C4: it lowers a resolved compile-time model
// into the self-contained, relocatable JSON manifest of §6 — metadata,
// ordered runtime functions, and referenced library/context Urls (the
// source_urls field exists but Generate leaves it empty). Struct tagging follows the teacher's
// CompileWorkflowSchema pipeline shape (parse -> convert -> validate ->
// emit) and common/models/artifact.go's JSON-schema-documented field
// style: every exported field carries a json tag, optional fields use
// `,omitempty`.
package manifest

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lyzr/flowr/common/netguard"
	"github.com/lyzr/flowr/internal/model"
	"github.com/lyzr/flowr/internal/route"
)

// Metadata is the manifest's descriptive header.
type Metadata struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	Authors     []string `json:"authors,omitempty"`
}

// InitializerWire is the wire form of model.Initializer.
type InitializerWire struct {
	Once   json.RawMessage `json:"once,omitempty"`
	Always json.RawMessage `json:"always,omitempty"`
}

// InputWire is one runtime function input slot.
type InputWire struct {
	Initializer *InitializerWire `json:"initializer,omitempty"`
}

// SourceWire is the tagged-union wire form of model.Source.
type SourceWire struct {
	Output *string `json:"Output,omitempty"`
	Input  *int    `json:"Input,omitempty"`
}

// OutputConnectionWire is one entry in a RuntimeFunction's
// output_connections list, matching §6's manifest schema exactly.
type OutputConnectionWire struct {
	Source                *SourceWire `json:"source,omitempty"`
	FunctionID            int         `json:"function_id"`
	IONumber              int         `json:"io_number"`
	FlowID                int         `json:"flow_id"`
	DestinationArrayOrder int         `json:"destination_array_order,omitempty"`
	IsGeneric             bool        `json:"is_generic,omitempty"`
	Priority              int         `json:"priority,omitempty"`
}

// RuntimeFunctionWire is one function entry in the manifest's functions
// list.
type RuntimeFunctionWire struct {
	FunctionID             int                    `json:"function_id"`
	FlowID                 int                    `json:"flow_id"`
	ImplementationLocation string                 `json:"implementation_location"`
	Name                   string                 `json:"name,omitempty"`
	Route                  string                 `json:"route,omitempty"`
	Inputs                 []InputWire            `json:"inputs"`
	OutputConnections      []OutputConnectionWire `json:"output_connections"`
}

// Manifest is the root of the manifest document.
type Manifest struct {
	Metadata       Metadata              `json:"metadata"`
	ManifestDir    string                `json:"manifest_dir,omitempty"`
	Functions      []RuntimeFunctionWire `json:"functions"`
	LibReferences  []string              `json:"lib_references"`
	ContextReferences []string           `json:"context_references"`
	SourceURLs     [][2]string           `json:"source_urls,omitempty"`
}

// Options controls manifest generation.
type Options struct {
	Metadata Metadata
	// Debug, when true, populates Name/Route on each function. SourceURLs
	// is not populated, with or without Debug.
	Debug bool
}

// loopbackPriorityBase offsets a loopback connection's encoded priority
// so it sorts after every non-loopback connection of the same function
// while still reconstructing LoopbackPriority unambiguously on load.
const loopbackPriorityBase = 1_000_000

// priorityOf returns the encoded priority of an output connection: its
// declaration order, offset by loopbackPriorityBase for a loopback
// connection so the loopback flag survives the manifest round trip. The
// runtime applies a function's connections in listed order; this value
// does not reorder them.
func priorityOf(oc *model.OutputConnection, naturalOrder int) int {
	if oc.LoopbackPriority {
		return naturalOrder + loopbackPriorityBase
	}
	return naturalOrder
}

// IsLoopbackPriority reports whether a wire connection's encoded
// priority marks it as a loopback connection, the inverse of priorityOf.
func IsLoopbackPriority(priority int) bool {
	return priority >= loopbackPriorityBase
}

// Generate lowers resolved CompilerTables into a Manifest.
func Generate(tables *model.CompilerTables, opts Options) (*Manifest, error) {
	m := &Manifest{
		Metadata:          opts.Metadata,
		LibReferences:     sortedKeys(tables.LibURLs),
		ContextReferences: sortedKeys(tables.ContextURLs),
	}

	// Group output connections by source function index, preserving
	// resolver emission order as "natural priority".
	byFunc := make(map[int][]*model.OutputConnection)
	order := make(map[*model.OutputConnection]int)
	for i, oc := range tables.OutputConnections {
		byFunc[oc.SourceFunctionIdx] = append(byFunc[oc.SourceFunctionIdx], oc)
		order[oc] = i
	}

	for idx, f := range tables.Functions {
		loc, err := implementationLocation(f)
		if err != nil {
			return nil, fmt.Errorf("manifest: function %s: %w", f.Name, err)
		}

		wire := RuntimeFunctionWire{
			FunctionID:             int(f.ID),
			FlowID:                 int(f.FlowID),
			ImplementationLocation: loc,
		}
		if opts.Debug {
			wire.Name = string(f.Name)
			wire.Route = f.Route.String()
		}

		for _, in := range f.Inputs {
			iw := InputWire{}
			if in.Initializer != nil {
				raw, err := json.Marshal(in.Initializer.Value)
				if err != nil {
					return nil, fmt.Errorf("manifest: marshal initializer for %s: %w", f.Name, err)
				}
				w := &InitializerWire{}
				switch in.Initializer.Kind {
				case model.Once:
					w.Once = raw
				case model.Always:
					w.Always = raw
				}
				iw.Initializer = w
			}
			wire.Inputs = append(wire.Inputs, iw)
		}

		ocs := byFunc[idx]
		for _, oc := range ocs {
			ocw := OutputConnectionWire{
				FunctionID:            int(oc.DestFunctionID),
				IONumber:              oc.IONumber,
				FlowID:                int(oc.FlowID),
				DestinationArrayOrder: oc.DestinationArrayOrder,
				IsGeneric:             oc.IsGeneric,
				Priority:              priorityOf(oc, order[oc]),
			}
			if oc.Source.Kind == model.SourceOutput {
				s := oc.Source.SubRoute.String()
				ocw.Source = &SourceWire{Output: &s}
			} else {
				i := oc.Source.InputIdx
				ocw.Source = &SourceWire{Input: &i}
			}
			wire.OutputConnections = append(wire.OutputConnections, ocw)
		}

		m.Functions = append(m.Functions, wire)
	}

	return m, nil
}

// implementationLocation renders a function's implementation as the
// relocatable locator §4.3 requires: absolute lib://, context:// Urls are
// stored verbatim; file-backed implementations are stored as paths
// relative to the manifest's own location (the caller is expected to have
// already made f.Source relative before calling Generate, matching the
// teacher's convert-then-validate pipeline ordering).
func implementationLocation(f *model.FunctionDefinition) (string, error) {
	switch f.Reference {
	case model.LibReference:
		if f.LibURL == "" {
			return "", fmt.Errorf("lib reference declared with empty url")
		}
		return f.LibURL, nil
	case model.ContextReference:
		if f.ContextURL == "" {
			return "", fmt.Errorf("context reference declared with empty url")
		}
		return f.ContextURL, nil
	default:
		if f.Source == "" {
			return "", fmt.Errorf("no implementation source set")
		}
		if filepath.IsAbs(f.Source) {
			return "", fmt.Errorf("file-backed implementation %q must be relative to the manifest directory", f.Source)
		}
		return filepath.ToSlash(f.Source), nil
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// Marshal serializes m as indented JSON, matching the on-disk manifest
// format of §6.
func Marshal(m *Manifest) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Load parses a manifest document and sets ManifestDir, "computed at
// load" per §6.
func Load(data []byte, manifestDir string) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	m.ManifestDir = manifestDir
	return &m, nil
}

// ValidateLocators runs every function's implementation_location through
// netguard before the coordinator accepts the manifest for execution
// (SPEC_FULL.md §2.E "Library/context Url validation").
func ValidateLocators(m *Manifest) error {
	v := netguard.NewLocatorValidator()
	for _, f := range m.Functions {
		if err := v.Validate(f.ImplementationLocation, m.ManifestDir); err != nil {
			return fmt.Errorf("manifest: function %d: %w", f.FunctionID, err)
		}
	}
	return nil
}

// ResolveLocation turns a function's implementation_location into an
// absolute, fetchable reference: lib:// and context:// Urls pass through
// unchanged; anything else is resolved relative to the manifest's own
// directory, so the manifest and its sidecar implementations can be moved
// together (§4.3 "Relocatability").
func ResolveLocation(loc string, manifestDir string) string {
	if strings.HasPrefix(loc, "lib://") || strings.HasPrefix(loc, "context://") {
		return loc
	}
	if filepath.IsAbs(loc) {
		return loc
	}
	return filepath.Join(manifestDir, filepath.FromSlash(loc))
}

// FunctionRoute reconstructs a route.Route from a debug-mode wire route
// string, used by the debugger to map manifest debug info back onto
// route-addressed breakpoints.
func FunctionRoute(w RuntimeFunctionWire) route.Route {
	if w.Route == "" {
		return route.Empty
	}
	return route.New(w.Route)
}
