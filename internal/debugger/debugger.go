// Package debugger implements C7: a breakpoint registry, four execution
// hook points, a command dispatcher, and a deadlock walker. The hook
// shape (check-prior-to-job, job-completed, check-on-block-creation,
// check-prior-to-send) and the deadlock walker's blocker-tree DFS are
// grounded directly on the original Debugger/BlockerNode/deadlock_check
// in flowr's lib/debugger.rs; conditional function breakpoints
// (supplemented feature) reuse the teacher's
// cmd/workflow-runner/condition/evaluator.go CEL cache shape verbatim,
// just with "inputs" in place of "output"/"ctx".
package debugger

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/lyzr/flowr/internal/model"
	"github.com/lyzr/flowr/internal/runstate"
)

// ServerEvent is one message the debugger sends to its client (§6).
type ServerEvent struct {
	Kind string      `json:"kind"`
	Data interface{} `json:"data,omitempty"`
}

func event(kind string, data interface{}) ServerEvent { return ServerEvent{Kind: kind, Data: data} }

// inputKey / outputKey / blockKey identify one breakpoint in their
// respective registries.
type inputKey struct {
	FunctionID model.FunctionID
	InputNum   int
}

type outputKey struct {
	FunctionID model.FunctionID
	SubRoute   string
}

type blockKey struct {
	BlockedID  model.FunctionID
	BlockingID model.FunctionID
}

// functionBreakpoint is a plain function breakpoint, optionally guarded by
// a compiled CEL expression evaluated against the job's input values.
type functionBreakpoint struct {
	guardExpr string
	guard     cel.Program
}

// Registry holds every configured breakpoint, plus break_at_job used by
// Step.
type Registry struct {
	mu sync.Mutex

	wildcard    bool
	functionBPs map[model.FunctionID]*functionBreakpoint
	inputBPs    map[inputKey]struct{}
	outputBPs   map[outputKey]struct{}
	blockBPs    map[blockKey]struct{}

	breakAtJob int64 // runstate.JobID; -1 means "never"

	celEnv       *cel.Env
	celCache     map[string]cel.Program
}

// NewRegistry creates an empty breakpoint registry.
func NewRegistry() *Registry {
	env, _ := cel.NewEnv(cel.Variable("inputs", cel.DynType))
	return &Registry{
		functionBPs: map[model.FunctionID]*functionBreakpoint{},
		inputBPs:    map[inputKey]struct{}{},
		outputBPs:   map[outputKey]struct{}{},
		blockBPs:    map[blockKey]struct{}{},
		breakAtJob:  -1,
		celEnv:      env,
		celCache:    map[string]cel.Program{},
	}
}

// Spec is a parsed breakpoint specification, per §6's grammar: bare
// integer (function), "id/subroute" (output), "id:n" (input), "id->id"
// (block), "*" (wildcard function). A function spec may carry a
// "when <cel-expr>" guard suffix (supplemented).
type Spec struct {
	Kind      string // "function", "input", "output", "block", "wildcard"
	FunctionID model.FunctionID
	InputNum  int
	SubRoute  string
	BlockingID model.FunctionID
	Guard     string
}

// ParseSpec parses one breakpoint spec string.
func ParseSpec(s string) (Spec, error) {
	s = strings.TrimSpace(s)
	if s == "*" {
		return Spec{Kind: "wildcard"}, nil
	}

	guard := ""
	if idx := strings.Index(s, " when "); idx >= 0 {
		guard = strings.TrimSpace(s[idx+len(" when "):])
		s = strings.TrimSpace(s[:idx])
	}

	if idx := strings.Index(s, "->"); idx >= 0 {
		blocked, err := strconv.Atoi(s[:idx])
		if err != nil {
			return Spec{}, fmt.Errorf("debugger: bad block spec %q: %w", s, err)
		}
		blocking, err := strconv.Atoi(s[idx+2:])
		if err != nil {
			return Spec{}, fmt.Errorf("debugger: bad block spec %q: %w", s, err)
		}
		return Spec{Kind: "block", FunctionID: model.FunctionID(blocked), BlockingID: model.FunctionID(blocking)}, nil
	}

	if idx := strings.Index(s, "/"); idx >= 0 {
		id, err := strconv.Atoi(s[:idx])
		if err != nil {
			return Spec{}, fmt.Errorf("debugger: bad output spec %q: %w", s, err)
		}
		return Spec{Kind: "output", FunctionID: model.FunctionID(id), SubRoute: s[idx:]}, nil
	}

	if idx := strings.Index(s, ":"); idx >= 0 {
		id, err := strconv.Atoi(s[:idx])
		if err != nil {
			return Spec{}, fmt.Errorf("debugger: bad input spec %q: %w", s, err)
		}
		n, err := strconv.Atoi(s[idx+1:])
		if err != nil {
			return Spec{}, fmt.Errorf("debugger: bad input spec %q: %w", s, err)
		}
		return Spec{Kind: "input", FunctionID: model.FunctionID(id), InputNum: n}, nil
	}

	id, err := strconv.Atoi(s)
	if err != nil {
		return Spec{}, fmt.Errorf("debugger: unrecognized breakpoint spec %q: %w", s, err)
	}
	return Spec{Kind: "function", FunctionID: model.FunctionID(id), Guard: guard}, nil
}

// Add installs a breakpoint from a parsed spec.
func (r *Registry) Add(spec Spec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch spec.Kind {
	case "wildcard":
		r.wildcard = true
	case "function":
		bp := &functionBreakpoint{guardExpr: spec.Guard}
		if spec.Guard != "" {
			prg, err := r.compileGuard(spec.Guard)
			if err != nil {
				return err
			}
			bp.guard = prg
		}
		r.functionBPs[spec.FunctionID] = bp
	case "input":
		r.inputBPs[inputKey{spec.FunctionID, spec.InputNum}] = struct{}{}
	case "output":
		r.outputBPs[outputKey{spec.FunctionID, spec.SubRoute}] = struct{}{}
	case "block":
		r.blockBPs[blockKey{spec.FunctionID, spec.BlockingID}] = struct{}{}
	default:
		return fmt.Errorf("debugger: unknown breakpoint kind %q", spec.Kind)
	}
	return nil
}

// Delete removes a breakpoint matching spec.
func (r *Registry) Delete(spec Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch spec.Kind {
	case "wildcard":
		r.wildcard = false
	case "function":
		delete(r.functionBPs, spec.FunctionID)
	case "input":
		delete(r.inputBPs, inputKey{spec.FunctionID, spec.InputNum})
	case "output":
		delete(r.outputBPs, outputKey{spec.FunctionID, spec.SubRoute})
	case "block":
		delete(r.blockBPs, blockKey{spec.FunctionID, spec.BlockingID})
	}
}

// List renders every active breakpoint as a spec string, matching the
// wire forms ParseSpec accepts.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	if r.wildcard {
		out = append(out, "*")
	}
	for id, bp := range r.functionBPs {
		if bp.guardExpr != "" {
			out = append(out, fmt.Sprintf("%d when %s", id, bp.guardExpr))
		} else {
			out = append(out, fmt.Sprintf("%d", id))
		}
	}
	for k := range r.inputBPs {
		out = append(out, fmt.Sprintf("%d:%d", k.FunctionID, k.InputNum))
	}
	for k := range r.outputBPs {
		out = append(out, fmt.Sprintf("%d%s", k.FunctionID, k.SubRoute))
	}
	for k := range r.blockBPs {
		out = append(out, fmt.Sprintf("%d->%d", k.BlockedID, k.BlockingID))
	}
	return out
}

func (r *Registry) compileGuard(expr string) (cel.Program, error) {
	if prg, ok := r.celCache[expr]; ok {
		return prg, nil
	}
	ast, issues := r.celEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("debugger: compile guard %q: %w", expr, issues.Err())
	}
	prg, err := r.celEnv.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("debugger: build guard program %q: %w", expr, err)
	}
	r.celCache[expr] = prg
	return prg, nil
}

// Debugger conducts a debugging session against a RunState owned by the
// coordinator. It never mutates RunState itself; the coordinator acts on
// ServerEvent/command results (reset, exit) it returns.
type Debugger struct {
	registry *Registry
}

// New creates a Debugger over a fresh breakpoint Registry.
func New() *Debugger {
	return &Debugger{registry: NewRegistry()}
}

// Registry exposes the breakpoint registry for command handling.
func (d *Debugger) Registry() *Registry { return d.registry }

// CheckPriorToJob is the "job-about-to-dispatch" hook (§4.7): fires when
// job.ID matches break_at_job (Step) or job.FunctionID has a function
// breakpoint whose guard (if any) evaluates true against the job's
// inputs.
func (d *Debugger) CheckPriorToJob(job *runstate.Job) (hit bool, ev ServerEvent) {
	d.registry.mu.Lock()
	breakAtJob := d.registry.breakAtJob
	bp, hasFnBP := d.registry.functionBPs[job.FunctionID]
	wildcard := d.registry.wildcard
	d.registry.mu.Unlock()

	if int64(job.ID) == breakAtJob {
		return true, event("PriorToSendingJob", job)
	}
	if wildcard {
		return true, event("PriorToSendingJob", job)
	}
	if !hasFnBP {
		return false, ServerEvent{}
	}
	if bp.guard == nil {
		return true, event("PriorToSendingJob", job)
	}

	inputsMap := make(map[string]interface{}, len(job.Inputs))
	for i, v := range job.Inputs {
		inputsMap[fmt.Sprintf("input%d", i)] = v.Raw()
	}
	out, _, err := bp.guard.Eval(map[string]interface{}{"inputs": inputsMap})
	if err != nil {
		return true, event("Error", fmt.Sprintf("guard evaluation failed: %v", err))
	}
	hitB, ok := out.Value().(bool)
	if !ok || !hitB {
		return false, ServerEvent{}
	}
	return true, event("PriorToSendingJob", job)
}

// JobCompleted is the "job-completed" hook.
func (d *Debugger) JobCompleted(job *runstate.Job, result runstate.Result) ServerEvent {
	return event("JobCompleted", map[string]interface{}{
		"job_id":      job.ID,
		"function_id": job.FunctionID,
		"error":       errString(result.Err),
	})
}

// CheckOnBlockCreation is the "block-created" hook.
func (d *Debugger) CheckOnBlockCreation(b runstate.Block) (hit bool, ev ServerEvent) {
	d.registry.mu.Lock()
	_, hasBP := d.registry.blockBPs[blockKey{b.BlockedFunctionID, b.BlockingFunctionID}]
	d.registry.mu.Unlock()
	if !hasBP {
		return false, ServerEvent{}
	}
	return true, event("BlockBreakpoint", b)
}

// CheckPriorToSend is the "send-about-to-occur" hook: fires when the
// source function/subroute pair has an output breakpoint.
func (d *Debugger) CheckPriorToSend(functionID model.FunctionID, subRoute string) (hit bool, ev ServerEvent) {
	d.registry.mu.Lock()
	_, hasBP := d.registry.outputBPs[outputKey{functionID, subRoute}]
	d.registry.mu.Unlock()
	if !hasBP {
		return false, ServerEvent{}
	}
	return true, event("DataBreakpoint", map[string]interface{}{"function_id": functionID, "sub_route": subRoute})
}

// JobError reports a job's error to the client; it always "hits" (§4.4
// table: error → debugger trap if enabled).
func (d *Debugger) JobError(job *runstate.Job, err error) ServerEvent {
	return event("JobError", map[string]interface{}{"job_id": job.ID, "function_id": job.FunctionID, "error": err.Error()})
}

// Panic reports a worker panic.
func (d *Debugger) Panic(message string) ServerEvent {
	return event("Panic", message)
}

// Reset clears break_at_job (Step state) while preserving every
// breakpoint, matching §6's "reset ... keeps breakpoints".
func (d *Debugger) Reset() ServerEvent {
	d.registry.mu.Lock()
	d.registry.breakAtJob = -1
	d.registry.mu.Unlock()
	return event("Resetting", nil)
}

// Step arms break_at_job to fire after `steps` more jobs are created (1 if
// steps<=0).
func (d *Debugger) Step(jobsCreated int64, steps int) ServerEvent {
	if steps <= 0 {
		steps = 1
	}
	d.registry.mu.Lock()
	d.registry.breakAtJob = jobsCreated + int64(steps)
	d.registry.mu.Unlock()
	return event("Ack", nil)
}

// Inspect* render RunState inspection responses for the command loop.

// InspectOverall returns the OverallState event.
func (d *Debugger) InspectOverall(rs *runstate.RunState) ServerEvent {
	return event("OverallState", map[string]interface{}{
		"ready":   rs.ReadyCount(),
		"running": rs.RunningCount(),
		"blocked": rs.BlockedCount(),
		"idle":    rs.Idle(),
	})
}

// InspectFunction returns the FunctionState event for one function.
func (d *Debugger) InspectFunction(rs *runstate.RunState, id model.FunctionID) ServerEvent {
	f := rs.Function(id)
	if f == nil {
		return event("Error", fmt.Sprintf("no such function %d", id))
	}
	return event("FunctionStates", map[string]interface{}{
		"function_id": f.ID,
		"flow_id":     f.FlowID,
		"run_again":   f.RunAgain,
	})
}

// InspectBlock returns the BlockState event: every current block
// involving id, as either blocker or blocked.
func (d *Debugger) InspectBlock(rs *runstate.RunState, id model.FunctionID) ServerEvent {
	var matching []runstate.Block
	for _, b := range rs.Blocks() {
		if b.BlockedFunctionID == id || b.BlockingFunctionID == id {
			matching = append(matching, b)
		}
	}
	return event("BlockState", matching)
}

// Validate runs the deadlock walker and wraps its report as a
// ServerEvent, matching the "validate" command.
func (d *Debugger) Validate(rs *runstate.RunState) ServerEvent {
	report := DeadlockCheck(rs)
	return event("Deadlock", report)
}

// ClientCommand is one message a debug client sends to the coordinator
// (§6's client command set), framed over cmd/flowr's websocket transport
// as a single JSON text frame, grounded on the vocabulary of the original
// flowr CLI's get_server_command dispatcher
// (flowr/src/cli/cli_debug_client.rs) — "b"/"breakpoint", "c"/"continue",
// etc. all collapse onto the Kind values below.
type ClientCommand struct {
	Kind       string `json:"kind"`
	Spec       string `json:"spec,omitempty"`
	Steps      int    `json:"steps,omitempty"`
	FunctionID int    `json:"function_id,omitempty"`
}

// DebugChannel is the transport a coordinator session exchanges debugger
// protocol messages over — cmd/flowr's websocket handler implements it by
// framing ServerEvent/ClientCommand as JSON text frames.
type DebugChannel interface {
	Send(ev ServerEvent) error
	Recv() (ClientCommand, error)
}

// CommandResult is what dispatching one ClientCommand produces: a reply
// event to send back, and whether the paused dispatch loop should resume
// (and if so, whether that resumption is actually a reset or a full exit).
type CommandResult struct {
	Event  ServerEvent
	Resume bool
	Reset  bool
	Exit   bool
}

// Dispatch interprets one ClientCommand against this debugger session and
// the RunState it is currently pausing, matching the original debugger's
// per-command handling in lib/debugger.rs.
func (d *Debugger) Dispatch(cmd ClientCommand, rs *runstate.RunState, jobsCreated int64) CommandResult {
	switch cmd.Kind {
	case "Breakpoint":
		spec, err := ParseSpec(cmd.Spec)
		if err != nil {
			return CommandResult{Event: event("Error", err.Error())}
		}
		if err := d.registry.Add(spec); err != nil {
			return CommandResult{Event: event("Error", err.Error())}
		}
		return CommandResult{Event: event("Ack", nil)}
	case "Delete":
		spec, err := ParseSpec(cmd.Spec)
		if err != nil {
			return CommandResult{Event: event("Error", err.Error())}
		}
		d.registry.Delete(spec)
		return CommandResult{Event: event("Ack", nil)}
	case "List":
		return CommandResult{Event: event("BreakpointList", d.registry.List())}
	case "Continue":
		return CommandResult{Event: event("Ack", nil), Resume: true}
	case "Step":
		return CommandResult{Event: d.Step(jobsCreated, cmd.Steps), Resume: true}
	case "RunReset":
		return CommandResult{Event: d.Reset(), Resume: true, Reset: true}
	case "InspectOverall":
		return CommandResult{Event: d.InspectOverall(rs)}
	case "InspectFunction":
		return CommandResult{Event: d.InspectFunction(rs, model.FunctionID(cmd.FunctionID))}
	case "InspectBlock":
		return CommandResult{Event: d.InspectBlock(rs, model.FunctionID(cmd.FunctionID))}
	case "Validate":
		return CommandResult{Event: d.Validate(rs)}
	case "ExitDebugger":
		return CommandResult{Event: event("ExitingDebugger", nil), Resume: true, Exit: true}
	default:
		return CommandResult{Event: event("Error", fmt.Sprintf("unknown debugger command %q", cmd.Kind))}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
