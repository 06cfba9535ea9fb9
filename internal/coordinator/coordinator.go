// Package coordinator implements C8: the outer submission loop that
// loads a manifest, builds a RunState, drives the dispatch loop against
// an executor.Pool, and (when enabled) routes breakpoint hits through a
// debugger.Debugger. The receive-then-dispatch-then-apply shape is
// grounded on the teacher's cmd/workflow-runner/coordinator/coordinator.go
// Start loop (BLPOP completion signals, parse, apply, loop) — adapted
// from "block on a Redis queue" to "block on the executor's result
// channel", since here the coordinator itself owns the single RunState
// writer per §5, rather than delegating to a broker.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/lyzr/flowr/common/cas"
	"github.com/lyzr/flowr/common/logger"
	"github.com/lyzr/flowr/common/metrics"
	"github.com/lyzr/flowr/common/telemetry"
	"github.com/lyzr/flowr/common/value"
	"github.com/lyzr/flowr/internal/debugger"
	"github.com/lyzr/flowr/internal/executor"
	"github.com/lyzr/flowr/internal/manifest"
	"github.com/lyzr/flowr/internal/model"
	"github.com/lyzr/flowr/internal/route"
	"github.com/lyzr/flowr/internal/runstate"
)

// ManifestLoader fetches a manifest's bytes and the directory it should
// be considered relative to (a local directory for file:// style urls, a
// temp download directory for remote ones). cmd/flowr supplies the real
// implementation; tests supply an in-memory one.
type ManifestLoader func(ctx context.Context, manifestURL string) (data []byte, manifestDir string, err error)

// Submission is one execution request (§6 "receive a submission").
type Submission struct {
	ManifestURL     string
	MaxParallelJobs int
	// Threads is the executor pool's worker-goroutine count (the CLI's
	// -t/--threads). It defaults to MaxParallelJobs when zero — most
	// runs want exactly as many workers as the scheduler's concurrency
	// budget, but the two are independent knobs: a narrower thread pool
	// throttles CPU use below what the scheduler would otherwise permit.
	Threads int
	Timeout time.Duration
	Debug   bool

	// DebugChannel carries the debugger protocol (§6) to a remote client;
	// required when Debug is true, ignored otherwise.
	DebugChannel debugger.DebugChannel
}

// Coordinator owns one execution's RunState and drives it to completion.
type Coordinator struct {
	loader   ManifestLoader
	resolver executor.Lookup
	log      *logger.Logger

	// trace, when non-nil, receives each completed job's inputs and
	// result as content-addressed blobs; their ids are logged. No
	// debugger command reads them back.
	trace cas.Store

	// telemetry, when non-nil, receives the scheduler's ready/running/
	// blocked gauges after every dispatch round and a done/failed count
	// per completed job.
	telemetry *telemetry.Telemetry

	// metricsHook, when non-nil, is installed on every executor.Pool this
	// coordinator builds (executor.Pool.MetricsHook) to capture each
	// job's before/after memory and goroutine counts.
	metricsHook func(job *runstate.Job, m *metrics.RuntimeMetrics)
}

// New creates a Coordinator. resolver turns a resolved implementation
// location (already passed through manifest.ResolveLocation) into a
// runnable executor.Implementation — in cmd/flowr, a built-in context
// function, a libdir lookup, or a Go-plugin loader, depending on the
// location's form.
func New(loader ManifestLoader, resolver executor.Lookup, log *logger.Logger) *Coordinator {
	return &Coordinator{loader: loader, resolver: resolver, log: log}
}

// WithTrace attaches a content-addressed job-trace store; cmd/flowr wires
// this to the cas.RedisStore built by bootstrap.Setup whenever one was
// set up, with or without -d.
func (c *Coordinator) WithTrace(store cas.Store) *Coordinator {
	c.trace = store
	return c
}

// WithTelemetry attaches the scheduler gauges; cmd/flowr wires this to the
// Telemetry built by bootstrap.Setup.
func (c *Coordinator) WithTelemetry(t *telemetry.Telemetry) *Coordinator {
	c.telemetry = t
	return c
}

// WithMetricsHook installs a per-job resource-usage callback on every
// executor.Pool this coordinator builds; cmd/flowr wires this to a
// logger line carrying metrics.RuntimeMetrics.ToMap().
func (c *Coordinator) WithMetricsHook(hook func(job *runstate.Job, m *metrics.RuntimeMetrics)) *Coordinator {
	c.metricsHook = hook
	return c
}

// Outcome summarizes how one Run call ended.
type Outcome struct {
	Reset    bool // debugger requested a reset (caller should call Run again)
	Exited   bool // debugger requested exit
	JobCount int64
}

// Run loads the submission's manifest, builds a RunState, and executes it
// to completion (or until the debugger requests reset/exit).
func (c *Coordinator) Run(ctx context.Context, sub Submission) (Outcome, error) {
	if sub.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sub.Timeout)
		defer cancel()
	}

	data, manifestDir, err := c.loader(ctx, sub.ManifestURL)
	if err != nil {
		return Outcome{}, fmt.Errorf("coordinator: load manifest: %w", err)
	}

	m, err := manifest.Load(data, manifestDir)
	if err != nil {
		return Outcome{}, fmt.Errorf("coordinator: parse manifest: %w", err)
	}
	if err := manifest.ValidateLocators(m); err != nil {
		return Outcome{}, fmt.Errorf("coordinator: validate manifest: %w", err)
	}

	functions, err := buildRuntimeFunctions(m)
	if err != nil {
		return Outcome{}, fmt.Errorf("coordinator: build runtime functions: %w", err)
	}

	maxParallel := sub.MaxParallelJobs
	if maxParallel <= 0 {
		maxParallel = 1
	}
	threads := sub.Threads
	if threads <= 0 {
		threads = maxParallel
	}

	var dbg *debugger.Debugger
	var debugChan debugger.DebugChannel
	if sub.Debug {
		dbg = debugger.New()
		debugChan = sub.DebugChannel
	}

	return c.drive(ctx, functions, maxParallel, threads, dbg, debugChan)
}

func (c *Coordinator) drive(ctx context.Context, functions []*runstate.RuntimeFunction, maxParallel, threads int, dbg *debugger.Debugger, debugChan debugger.DebugChannel) (Outcome, error) {
	rs := runstate.New(functions, maxParallel)

	var jobsCreated int64
	dp := c.wireDebugHooks(rs, dbg, debugChan, &jobsCreated)

	rs.Init()
	if dp != nil && dp.halted {
		return c.resolvePause(dp, 0)
	}

	if dbg != nil && debugChan != nil {
		debugChan.Send(debugger.ServerEvent{Kind: "ExecutionStarted"})
		defer debugChan.Send(debugger.ServerEvent{Kind: "ExecutionEnded"})
	}

	pool := executor.NewPool(threads, c.resolver)
	pool.MetricsHook = c.metricsHook
	poolCtx, cancelPool := context.WithCancel(ctx)
	defer cancelPool()

	poolErr := make(chan error, 1)
	go func() { poolErr <- pool.Run(poolCtx) }()

	outstanding := 0

	for {
		// Drain ready work up to the concurrency budget.
		for {
			job, ok := rs.NextJob()
			if !ok {
				break
			}
			jobsCreated++

			if dbg != nil {
				if hit, ev := dbg.CheckPriorToJob(job); hit {
					c.log.Debug("breakpoint hit prior to job", "job_id", job.ID, "function_id", job.FunctionID)
					if debugChan != nil {
						outcome, halted, err := c.pauseForCommands(debugChan, dbg, rs, jobsCreated, ev)
						if err != nil {
							return Outcome{JobCount: jobsCreated}, fmt.Errorf("coordinator: debug channel: %w", err)
						}
						if halted {
							return outcome, nil
						}
					}
				}
			}

			outstanding++
			if err := pool.Submit(ctx, job); err != nil {
				return Outcome{JobCount: jobsCreated}, fmt.Errorf("coordinator: submit job %d: %w", job.ID, err)
			}
		}

		if c.telemetry != nil {
			c.telemetry.JobsReady.Set(float64(rs.ReadyCount()))
			c.telemetry.JobsRunning.Set(float64(rs.RunningCount()))
			c.telemetry.JobsBlocked.Set(float64(rs.BlockedCount()))
		}

		if outstanding == 0 && rs.Idle() {
			cancelPool()
			<-poolErr
			return Outcome{JobCount: jobsCreated}, nil
		}

		select {
		case <-ctx.Done():
			cancelPool()
			<-poolErr
			return Outcome{JobCount: jobsCreated}, ctx.Err()
		case jr, ok := <-pool.Results():
			if !ok {
				return Outcome{JobCount: jobsCreated}, fmt.Errorf("coordinator: executor pool closed unexpectedly")
			}
			outstanding--

			if dbg != nil {
				var ev debugger.ServerEvent
				if jr.Result.Err != nil {
					ev = dbg.JobError(jr.Job, jr.Result.Err)
				} else {
					ev = dbg.JobCompleted(jr.Job, jr.Result)
				}
				if debugChan != nil {
					debugChan.Send(ev)
				}
			}
			if jr.Result.Err != nil {
				c.log.Error("job failed", "job_id", jr.Job.ID, "function_id", jr.Job.FunctionID, "error", jr.Result.Err)
				if c.telemetry != nil {
					c.telemetry.JobsFailed.Inc()
				}
			} else if c.telemetry != nil {
				c.telemetry.JobsDone.Inc()
			}

			if c.trace != nil {
				c.recordTrace(ctx, jr)
			}

			if err := rs.ApplyResult(jr.Job, jr.Result); err != nil {
				cancelPool()
				<-poolErr
				return Outcome{JobCount: jobsCreated}, fmt.Errorf("coordinator: apply result for job %d: %w", jr.Job.ID, err)
			}
			if dp != nil && dp.halted {
				cancelPool()
				<-poolErr
				return c.resolvePause(dp, jobsCreated)
			}
		}
	}
}

// pauseForCommands sends the breakpoint-hit event and then blocks
// exchanging ClientCommands with the debug channel until one resumes
// dispatch, matching §6's "WaitingForCommand" / command-loop shape. It
// returns halted=true when the caller should stop driving immediately
// (reset or exit), carrying the Outcome to return.
func (c *Coordinator) pauseForCommands(ch debugger.DebugChannel, dbg *debugger.Debugger, rs *runstate.RunState, jobsCreated int64, hitEvent debugger.ServerEvent) (Outcome, bool, error) {
	if err := ch.Send(hitEvent); err != nil {
		return Outcome{}, false, err
	}
	for {
		cmd, err := ch.Recv()
		if err != nil {
			return Outcome{}, false, err
		}
		res := dbg.Dispatch(cmd, rs, jobsCreated)
		if err := ch.Send(res.Event); err != nil {
			return Outcome{}, false, err
		}
		if res.Exit {
			return Outcome{JobCount: jobsCreated, Exited: true}, true, nil
		}
		if res.Reset {
			return Outcome{JobCount: jobsCreated, Reset: true}, true, nil
		}
		if res.Resume {
			return Outcome{}, false, nil
		}
	}
}

// debugPause accumulates a halt request raised from inside a runstate
// hook (block-created, prior-to-send). Those hooks fire synchronously
// from deep inside rs.Init/rs.ApplyResult rather than from the drive
// loop itself, so they cannot return an Outcome directly — they record
// one here, and drive checks it right after the call that may have
// triggered it.
type debugPause struct {
	outcome Outcome
	halted  bool
	err     error
}

// wireDebugHooks installs the block-created and prior-to-send runstate
// hooks when debugging is enabled, pausing for commands the same way
// CheckPriorToJob does. Before this, CheckOnBlockCreation and
// CheckPriorToSend were only ever invoked from tests: the coordinator's
// drive loop checked CheckPriorToJob itself but runstate created blocks
// and delivered values with no debugger callback at all, so block and
// output/data breakpoints could never actually fire during a real run.
func (c *Coordinator) wireDebugHooks(rs *runstate.RunState, dbg *debugger.Debugger, debugChan debugger.DebugChannel, jobsCreated *int64) *debugPause {
	if dbg == nil || debugChan == nil {
		return nil
	}
	dp := &debugPause{}
	rs.BlockHook = func(b runstate.Block) {
		if dp.halted {
			return
		}
		if hit, ev := dbg.CheckOnBlockCreation(b); hit {
			c.log.Debug("breakpoint hit on block creation", "blocked_function_id", b.BlockedFunctionID, "blocking_function_id", b.BlockingFunctionID)
			c.recordPause(dp, debugChan, dbg, rs, *jobsCreated, ev)
		}
	}
	rs.SendHook = func(fid model.FunctionID, subRoute string) {
		if dp.halted {
			return
		}
		if hit, ev := dbg.CheckPriorToSend(fid, subRoute); hit {
			c.log.Debug("breakpoint hit prior to send", "function_id", fid, "sub_route", subRoute)
			c.recordPause(dp, debugChan, dbg, rs, *jobsCreated, ev)
		}
	}
	return dp
}

// recordPause runs pauseForCommands and stashes its outcome in dp, since
// the runstate hooks invoking it can't return a value up through
// rs.Init/rs.ApplyResult themselves.
func (c *Coordinator) recordPause(dp *debugPause, debugChan debugger.DebugChannel, dbg *debugger.Debugger, rs *runstate.RunState, jobsCreated int64, ev debugger.ServerEvent) {
	outcome, halted, err := c.pauseForCommands(debugChan, dbg, rs, jobsCreated, ev)
	if err != nil {
		dp.err, dp.halted = err, true
		return
	}
	if halted {
		dp.outcome, dp.halted = outcome, true
	}
}

// resolvePause turns an accumulated debugPause into drive's return value.
func (c *Coordinator) resolvePause(dp *debugPause, jobsCreated int64) (Outcome, error) {
	if dp.err != nil {
		return Outcome{JobCount: jobsCreated}, fmt.Errorf("coordinator: debug channel: %w", dp.err)
	}
	if dp.outcome.JobCount == 0 {
		dp.outcome.JobCount = jobsCreated
	}
	return dp.outcome, nil
}

// recordTrace stores a completed job's inputs and result in c.trace,
// logging the CasIDs rather than returning them; nothing in the dispatch
// loop or the debugger's Inspect commands reads them back.
func (c *Coordinator) recordTrace(ctx context.Context, jr executor.JobResult) {
	inputsID, err := cas.PutJSON(ctx, c.trace, jr.Job.Inputs, cas.MediaTypeJobInputs)
	if err != nil {
		c.log.Warn("failed to trace job inputs", "job_id", jr.Job.ID, "error", err)
		return
	}

	resultID, err := cas.PutJSON(ctx, c.trace, jr.Result, cas.MediaTypeJobResult)
	if err != nil {
		c.log.Warn("failed to trace job result", "job_id", jr.Job.ID, "error", err)
		return
	}

	c.log.Debug("job traced", "job_id", jr.Job.ID, "inputs_cas_id", inputsID, "result_cas_id", resultID)
}

// buildRuntimeFunctions lowers a loaded manifest into the runtime
// function arena runstate.New expects, resolving each implementation
// location relative to the manifest's directory.
func buildRuntimeFunctions(m *manifest.Manifest) ([]*runstate.RuntimeFunction, error) {
	out := make([]*runstate.RuntimeFunction, len(m.Functions))
	for i, wire := range m.Functions {
		f := &runstate.RuntimeFunction{
			ID:                model.FunctionID(wire.FunctionID),
			FlowID:            model.FlowID(wire.FlowID),
			ImplementationLoc: manifest.ResolveLocation(wire.ImplementationLocation, m.ManifestDir),
			DebugName:         wire.Name,
			DebugRoute:        manifest.FunctionRoute(wire),
		}

		for _, iw := range wire.Inputs {
			in := &runstate.Input{}
			if iw.Initializer != nil {
				init, err := convertInitializer(iw.Initializer)
				if err != nil {
					return nil, fmt.Errorf("function %d: %w", wire.FunctionID, err)
				}
				in.Initializer = init
			}
			f.Inputs = append(f.Inputs, in)
		}

		for _, ocw := range wire.OutputConnections {
			oc := &model.OutputConnection{
				SourceFunctionIdx:     i,
				DestFunctionID:        model.FunctionID(ocw.FunctionID),
				IONumber:              ocw.IONumber,
				FlowID:                model.FlowID(ocw.FlowID),
				DestinationArrayOrder: ocw.DestinationArrayOrder,
				IsGeneric:             ocw.IsGeneric,
				LoopbackPriority:      manifest.IsLoopbackPriority(ocw.Priority),
			}
			if ocw.Source != nil {
				switch {
				case ocw.Source.Output != nil:
					oc.Source = model.Source{Kind: model.SourceOutput, SubRoute: route.New(*ocw.Source.Output)}
				case ocw.Source.Input != nil:
					oc.Source = model.Source{Kind: model.SourceInput, InputIdx: *ocw.Source.Input}
				}
			}
			f.OutputConnections = append(f.OutputConnections, oc)
		}

		out[i] = f
	}
	return out, nil
}

func convertInitializer(w *manifest.InitializerWire) (*model.Initializer, error) {
	var kind model.InitializerKind
	var raw []byte
	switch {
	case len(w.Once) > 0:
		kind = model.Once
		raw = w.Once
	case len(w.Always) > 0:
		kind = model.Always
		raw = w.Always
	default:
		return nil, nil
	}
	v, err := value.FromJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode initializer: %w", err)
	}
	return &model.Initializer{Kind: kind, Value: v.Raw()}, nil
}
