// Command flowr loads a compiled flow manifest and runs it to completion
// (C5-C8: runstate, executor, debugger, coordinator), exposing the same
// run/debug/server/client shape as the original flowr CLI but restricted
// to this spec's scope — no textual flow parsing, no WebAssembly loader,
// no terminal GUI, no network library provider (see Non-goals): this
// binary consumes manifests the flowc compiler already produced.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lyzr/flowr/common/bootstrap"
	"github.com/lyzr/flowr/common/logger"
	"github.com/lyzr/flowr/common/metrics"
	"github.com/lyzr/flowr/common/server"
	"github.com/lyzr/flowr/internal/coordinator"
	"github.com/lyzr/flowr/internal/runstate"
)

// libDirFlag collects repeated -L/--libdir flags into a slice, matching
// the CLI table's "repeatable" libdir option.
type libDirFlag []string

func (f *libDirFlag) String() string { return strings.Join(*f, ",") }
func (f *libDirFlag) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func main() {
	var (
		debug       bool
		jobs        int
		threads     int
		libDirs     libDirFlag
		native      bool
		serverPort  int
		clientAddr  string
		logLevel    string
	)

	flag.BoolVar(&debug, "d", false, "enable the debugger")
	flag.BoolVar(&debug, "debugger", false, "enable the debugger")
	flag.IntVar(&jobs, "j", 0, "max parallel jobs (scheduler concurrency budget)")
	flag.IntVar(&jobs, "jobs", 0, "max parallel jobs (scheduler concurrency budget)")
	flag.IntVar(&threads, "t", 0, "executor pool worker thread count (defaults to -j)")
	flag.IntVar(&threads, "threads", 0, "executor pool worker thread count (defaults to -j)")
	flag.Var(&libDirs, "L", "library search directory (repeatable)")
	flag.Var(&libDirs, "libdir", "library search directory (repeatable)")
	flag.BoolVar(&native, "n", false, "prefer statically linked/native implementations")
	flag.BoolVar(&native, "native", false, "prefer statically linked/native implementations")
	flag.IntVar(&serverPort, "s", 0, "run as a server, accepting submissions on this port")
	flag.IntVar(&serverPort, "server", 0, "run as a server, accepting submissions on this port")
	flag.StringVar(&clientAddr, "c", "", "submit to a running server at host:port instead of running locally")
	flag.StringVar(&clientAddr, "client", "", "submit to a running server at host:port instead of running locally")
	flag.StringVar(&logLevel, "v", "info", "log level")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 && clientAddr == "" {
		fmt.Fprintln(os.Stderr, "usage: flowr [flags] <flow-manifest-url> [flow-args...]")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// -v overrides whatever LOG_LEVEL the environment set; the CLI flag
	// wins since it's the more specific choice.
	components := bootstrap.MustSetup(ctx, "flowr", bootstrap.WithoutDB(), bootstrap.WithCustomLogger(logger.New(logLevel, "text")))

	if clientAddr != "" {
		manifestURL := ""
		if len(args) > 0 {
			manifestURL = args[0]
		}
		if err := runClient(ctx, clientAddr, manifestURL, jobs, threads, debug, components.Logger); err != nil {
			components.Logger.Error("client run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	resolver := newImplResolver([]string(libDirs), native)
	coord := coordinator.New(loadManifest, resolver.Lookup, components.Logger).
		WithTelemetry(components.Telemetry)
	if components.Trace != nil {
		coord = coord.WithTrace(components.Trace)
	}
	coord = coord.WithMetricsHook(func(job *runstate.Job, m *metrics.RuntimeMetrics) {
		components.Logger.Debug("job resource usage", "function_id", job.FunctionID, "metrics", m.ToMap())
	})

	sysInfo := metrics.GetSystemInfo()
	components.Logger.Info("flowr starting", "system", sysInfo.ToMap())

	if serverPort != 0 {
		runServer(ctx, serverPort, coord, components)
		return
	}

	manifestURL := args[0]
	sub := coordinator.Submission{
		ManifestURL:     manifestURL,
		MaxParallelJobs: jobs,
		Threads:         threads,
		Debug:           debug,
	}
	if debug {
		sub.DebugChannel = newLocalDebugChannel()
	}

	for {
		outcome, err := coord.Run(ctx, sub)
		if err != nil {
			components.Logger.Error("run failed", "error", err)
			components.Shutdown(ctx)
			os.Exit(1)
		}
		components.Logger.Info("run finished", "jobs", outcome.JobCount, "reset", outcome.Reset, "exited", outcome.Exited)
		if !outcome.Reset {
			break
		}
	}

	components.Shutdown(ctx)
}

func runServer(ctx context.Context, port int, coord *coordinator.Coordinator, components *bootstrap.Components) {
	api := newAPIServer(coord, components.Telemetry, components.Logger)
	srv := server.New("flowr", port, api.handler(), components.Logger)
	components.Logger.Info("flowr server listening", "port", port)
	if err := srv.Start(); err != nil {
		components.Logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}
