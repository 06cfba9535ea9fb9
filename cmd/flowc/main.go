// Command flowc compiles a parsed flow definition (DSL or nested
// FlowSchema — see schema.go) into the self-contained manifest C5-C8
// load and run. The textual flow-definition language itself is out of
// this binary's scope (§1 Non-goals): flowc's input is already a
// structured document, the way the teacher's CompileWorkflowSchema takes
// an already-parsed WorkflowSchema rather than raw DSL text.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lyzr/flowr/common/logger"
	"github.com/lyzr/flowr/internal/manifest"
	"github.com/lyzr/flowr/internal/resolver"
)

func main() {
	var (
		inputPath  string
		outputPath string
		name       string
		debug      bool
		logLevel   string
	)
	flag.StringVar(&inputPath, "i", "", "input flow document (DSL or FlowSchema JSON)")
	flag.StringVar(&inputPath, "input", "", "input flow document (DSL or FlowSchema JSON)")
	flag.StringVar(&outputPath, "o", "manifest.json", "output manifest path")
	flag.StringVar(&outputPath, "output", "manifest.json", "output manifest path")
	flag.StringVar(&name, "name", "", "manifest metadata name (defaults to the input file's base name)")
	flag.BoolVar(&debug, "d", false, "include debug fields (function names/routes, source urls) in the manifest")
	flag.BoolVar(&debug, "debug", false, "include debug fields (function names/routes, source urls) in the manifest")
	flag.StringVar(&logLevel, "v", "info", "log level")
	flag.Parse()

	log := logger.New(logLevel, "text")

	if inputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: flowc -i <flow-document> [-o manifest.json]")
		os.Exit(2)
	}
	if name == "" {
		name = filepath.Base(inputPath)
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		log.Error("read input", "error", err)
		os.Exit(1)
	}

	flowDef, functions, err := detectAndParse(data)
	if err != nil {
		log.Error("parse input", "error", err)
		os.Exit(1)
	}
	log.Info("parsed flow definition", "functions", len(functions))

	tables, err := resolver.Resolve(flowDef, functions)
	if err != nil {
		log.Error("resolve connections", "error", err)
		os.Exit(1)
	}
	// §2's "optionally also invoking .dot-adjacent debug dumping of the
	// collapsed connection table as structured log output" — the dumper
	// itself is out of scope, logging the table it would have drawn is
	// not.
	if debug {
		for _, c := range tables.CollapsedConnections {
			log.Debug("collapsed connection", "name", c.Name, "from", c.FromRoute.String(), "level", c.Level)
		}
	}

	m, err := manifest.Generate(tables, manifest.Options{
		Metadata: manifest.Metadata{Name: name},
		Debug:    debug,
	})
	if err != nil {
		log.Error("generate manifest", "error", err)
		os.Exit(1)
	}
	m.ManifestDir = filepath.Dir(outputPath)

	if err := manifest.ValidateLocators(m); err != nil {
		log.Error("validate implementation locators", "error", err)
		os.Exit(1)
	}

	out, err := manifest.Marshal(m)
	if err != nil {
		log.Error("marshal manifest", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		log.Error("write manifest", "error", err)
		os.Exit(1)
	}

	log.Info("manifest written", "path", outputPath, "functions", len(m.Functions), "lib_references", len(m.LibReferences), "context_references", len(m.ContextReferences))
}
