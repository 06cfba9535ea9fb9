// Package executor implements C6: a fixed-size worker pool that drains
// jobs handed to it by the coordinator's RunState loop and reports
// results back on a single channel. The supervision shape — N worker
// goroutines under one errgroup.Group, panics converted to errors instead
// of crashing the process — is grounded on the teacher's
// cmd/workflow-runner/executor/run_request_consumer.go receive-loop
// (backoff-on-error, ack-regardless-of-outcome) and
// common/worker/completion.go's validate-then-signal discipline; worker
// identifiers follow run_request_consumer.go's naming idiom:
// fmt.Sprintf("worker_%s", uuid.New().String()[:8]).
package executor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lyzr/flowr/common/metrics"
	"github.com/lyzr/flowr/common/value"
	"github.com/lyzr/flowr/internal/runstate"
)

// Implementation is a single function's executable body: it receives the
// job's input set and produces an output value plus a run_again flag
// (§3 "Lifecycles" — a function may decline to run again, e.g. a sink
// that has emitted a terminal signal).
type Implementation interface {
	Run(ctx context.Context, inputs []value.Value) (output *value.Value, runAgain bool, err error)
}

// Lookup resolves a job's implementation location (already passed
// through manifest.ResolveLocation and netguard validation) to a runnable
// Implementation.
type Lookup func(location string) (Implementation, error)

// JobResult pairs a dispatched job with the outcome of running it, so the
// coordinator can call RunState.ApplyResult without losing track of which
// job produced which result.
type JobResult struct {
	Job    *runstate.Job
	Result runstate.Result
}

// Pool is a fixed-size worker pool. Workers pull from an internal jobs
// channel and publish to a shared results channel; both channels are
// unbuffered by default so the coordinator's dispatch loop naturally
// applies backpressure (§4.5 "block on result channel with timeout" is
// the coordinator's concern, not the pool's).
type Pool struct {
	workers int
	jobs    chan *runstate.Job
	results chan JobResult
	lookup  Lookup

	// MetricsHook, when set, is called with each job's before/after
	// memory and goroutine counts once it completes — cmd/flowr always
	// installs one (via the coordinator) that writes a debug log line.
	MetricsHook func(job *runstate.Job, m *metrics.RuntimeMetrics)
}

// NewPool creates a pool with `workers` concurrent goroutines, each
// identified in logs the way run_request_consumer.go names its
// consumers.
func NewPool(workers int, lookup Lookup) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		workers: workers,
		jobs:    make(chan *runstate.Job),
		results: make(chan JobResult),
		lookup:  lookup,
	}
}

// Results returns the channel workers publish completed jobs to.
func (p *Pool) Results() <-chan JobResult { return p.results }

// Submit hands a job to the pool, blocking until a worker is free or ctx
// is cancelled.
func (p *Pool) Submit(ctx context.Context, job *runstate.Job) error {
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts all workers and blocks until ctx is cancelled or a worker
// returns a non-recoverable error. It closes the results channel before
// returning.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		name := fmt.Sprintf("worker_%s", uuid.New().String()[:8])
		g.Go(func() error {
			return p.work(gctx, name)
		})
	}
	err := g.Wait()
	close(p.results)
	return err
}

func (p *Pool) work(ctx context.Context, name string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job, ok := <-p.jobs:
			if !ok {
				return nil
			}
			result := p.runJob(ctx, job)
			select {
			case p.results <- JobResult{Job: job, Result: result}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// runJob executes one job's implementation, converting a panic into a
// Result.Err the same way a crashed function in flow terms "completes
// with an error" rather than taking the whole runtime down with it.
func (p *Pool) runJob(ctx context.Context, job *runstate.Job) (result runstate.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = runstate.Result{Err: fmt.Errorf("executor: job %d (function %d) panicked: %v", job.ID, job.FunctionID, r)}
		}
	}()

	impl, err := p.lookup(job.ImplementationLoc)
	if err != nil {
		return runstate.Result{Err: fmt.Errorf("executor: job %d: resolve implementation %q: %w", job.ID, job.ImplementationLoc, err)}
	}

	var rm *metrics.RuntimeMetrics
	if p.MetricsHook != nil {
		rm = metrics.CaptureStart(ctx)
	}

	output, runAgain, err := impl.Run(ctx, job.Inputs)

	if rm != nil {
		rm.Finalize(ctx)
		p.MetricsHook(job, rm)
	}

	if err != nil {
		return runstate.Result{Err: fmt.Errorf("executor: job %d (function %d): %w", job.ID, job.FunctionID, err)}
	}
	return runstate.Result{Output: output, RunAgain: runAgain}
}
