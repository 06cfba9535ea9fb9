package manifest

import (
	"encoding/json"
	"testing"

	"github.com/lyzr/flowr/internal/model"
	"github.com/lyzr/flowr/internal/route"
)

func TestGenerateAndMarshalRoundTrip(t *testing.T) {
	tables := model.NewCompilerTables()

	src := &model.FunctionDefinition{ID: 0, FlowID: 0, Name: "src", Reference: model.LibReference, LibURL: "lib://math/add"}
	dst := &model.FunctionDefinition{ID: 1, FlowID: 0, Name: "dst", Source: "impls/dst.so",
		Inputs: []*model.IO{{Name: "in"}}}
	tables.Functions = []*model.FunctionDefinition{src, dst}

	tables.OutputConnections = []*model.OutputConnection{
		{
			SourceFunctionIdx: 0,
			Source:            model.Source{Kind: model.SourceOutput, SubRoute: route.Empty},
			DestFunctionIdx:   1,
			DestFunctionID:    1,
			IONumber:          0,
			FlowID:            0,
		},
	}

	m, err := Generate(tables, Options{Metadata: Metadata{Name: "test-flow"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(m.Functions) != 2 {
		t.Fatalf("expected 2 functions, got %d", len(m.Functions))
	}
	if m.Functions[0].ImplementationLocation != "lib://math/add" {
		t.Fatalf("got %q", m.Functions[0].ImplementationLocation)
	}
	if m.Functions[1].ImplementationLocation != "impls/dst.so" {
		t.Fatalf("got %q", m.Functions[1].ImplementationLocation)
	}
	if len(m.Functions[0].OutputConnections) != 1 {
		t.Fatalf("expected 1 output connection on src, got %d", len(m.Functions[0].OutputConnections))
	}

	data, err := Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var roundTrip Manifest
	if err := json.Unmarshal(data, &roundTrip); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if roundTrip.Metadata.Name != "test-flow" {
		t.Fatalf("round trip lost metadata: %+v", roundTrip.Metadata)
	}
}

func TestImplementationLocationRejectsAbsoluteFilePath(t *testing.T) {
	f := &model.FunctionDefinition{Name: "bad", Source: "/etc/passwd"}
	if _, err := implementationLocation(f); err == nil {
		t.Fatalf("expected rejection of absolute file-backed implementation path")
	}
}

func TestResolveLocationLeavesSchemedUrlsUnchanged(t *testing.T) {
	if got := ResolveLocation("lib://math/add", "/flows/demo"); got != "lib://math/add" {
		t.Fatalf("got %q", got)
	}
	if got := ResolveLocation("context://stdio", "/flows/demo"); got != "context://stdio" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveLocationJoinsRelativePaths(t *testing.T) {
	got := ResolveLocation("impls/dst.so", "/flows/demo")
	want := "/flows/demo/impls/dst.so"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
