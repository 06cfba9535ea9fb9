// Package runstate implements C5: the RunState scheduler that tracks
// ready/running/blocked functions, the block multiset, per-flow busy
// counts, and the deferred cross-flow unblock sweep (§4.4). RunState is
// owned exclusively by the coordinator goroutine — per §5 "the
// coordinator is the only mutator" — so, matching the teacher's
// preference for plain slices/maps over generic containers throughout
// sdk/ and compiler/, it carries no internal locking.
package runstate

import (
	"fmt"

	"github.com/lyzr/flowr/common/value"
	"github.com/lyzr/flowr/internal/datatype"
	"github.com/lyzr/flowr/internal/model"
	"github.com/lyzr/flowr/internal/route"
)

// JobID is a monotonically increasing job identifier, strictly increasing
// from 1 (§3 "Lifecycles").
type JobID int64

// Input is the runtime bag of queued value sets for one input port of a
// function (§3 "Input (runtime)").
type Input struct {
	DataTypes   []datatype.DataType
	Initializer *model.Initializer
	queue       []value.Value
}

// Count reports how many full value sets are currently queued.
func (in *Input) Count() int { return len(in.queue) }

// Take pops the head of the queue.
func (in *Input) Take() (value.Value, bool) {
	if len(in.queue) == 0 {
		return value.Value{}, false
	}
	v := in.queue[0]
	in.queue = in.queue[1:]
	return v, true
}

// Send enqueues a single value.
func (in *Input) Send(v value.Value) {
	in.queue = append(in.queue, v)
}

// SendIter enqueues each element of an array value as its own set.
func (in *Input) SendIter(arr value.Value) {
	elems, ok := arr.AsArray()
	if !ok {
		in.Send(arr)
		return
	}
	for _, e := range elems {
		in.Send(e)
	}
}

// Init pushes the initializer's value, if present: Once only fires when
// startup is true; Always fires on every call.
func (in *Input) Init(startup bool) {
	if in.Initializer == nil {
		return
	}
	switch in.Initializer.Kind {
	case model.Once:
		if startup {
			in.Send(value.Of(in.Initializer.Value))
		}
	case model.Always:
		in.Send(value.Of(in.Initializer.Value))
	}
}

// RuntimeFunction is a lowered, execution-ready function: its inputs, its
// implementation locator, and the output connections attached to it by
// C3 (§3 "RuntimeFunction").
type RuntimeFunction struct {
	ID                 model.FunctionID
	FlowID             model.FlowID
	ImplementationLoc  string
	Inputs             []*Input
	OutputConnections  []*model.OutputConnection
	DebugName          string
	DebugRoute         route.Route
	// RunAgain, set by the implementation's result, decides whether the
	// function is still eligible to be scheduled. Functions start true.
	RunAgain bool
}

func (f *RuntimeFunction) hasFullInputSet() bool {
	if len(f.Inputs) == 0 {
		return true
	}
	for _, in := range f.Inputs {
		if in.Count() == 0 {
			return false
		}
	}
	return true
}

// Block represents a blocked sender: the blocked function cannot run
// again because the blocking function's input is currently full (§3
// "Block").
type Block struct {
	BlockingFlowID     model.FlowID
	BlockingFunctionID model.FunctionID
	BlockingIONumber   int
	BlockedFunctionID  model.FunctionID
	BlockedFlowID      model.FlowID
}

// Job is one dispatched unit of work (§4.5).
type Job struct {
	ID         JobID
	FunctionID model.FunctionID
	FlowID     model.FlowID
	Inputs     []value.Value
	ImplementationLoc string
	OutputConnections []*model.OutputConnection
}

// Result is the outcome of running a Job's implementation.
type Result struct {
	Output   *value.Value
	RunAgain bool
	Err      error
}

// RunState is the C5 scheduler state machine.
type RunState struct {
	functions []*RuntimeFunction // indexed by FunctionID

	ready           []model.FunctionID
	running         map[model.FunctionID]map[JobID]struct{}
	blocked         map[model.FunctionID]struct{}
	blocks          []Block
	busyFlows       map[model.FlowID]int
	pendingUnblocks map[model.FlowID]map[model.FunctionID]struct{}

	maxParallelJobs int
	nextJobID       JobID

	// BlockHook, when non-nil, is invoked synchronously every time a new
	// Block is recorded — including during Init, when a function's input
	// arrives already full — so a debugger session can trap on block
	// creation (§4.7's "block created" hook).
	BlockHook func(b Block)

	// SendHook, when non-nil, is invoked synchronously immediately before
	// a value is delivered to a destination input (§4.7's "prior to
	// send" hook). subRoute is the sub-route of the sending function's
	// output the value is sourced from, or empty for a connection that
	// passes one of the job's own inputs straight through.
	SendHook func(functionID model.FunctionID, subRoute string)
}

// New constructs a RunState over a set of lowered functions, indexed by
// their FunctionID (callers must ensure functions[i].ID == i).
func New(functions []*RuntimeFunction, maxParallelJobs int) *RunState {
	for _, f := range functions {
		f.RunAgain = true
	}
	return &RunState{
		functions:       functions,
		running:         map[model.FunctionID]map[JobID]struct{}{},
		blocked:         map[model.FunctionID]struct{}{},
		busyFlows:       map[model.FlowID]int{},
		pendingUnblocks: map[model.FlowID]map[model.FunctionID]struct{}{},
		maxParallelJobs: maxParallelJobs,
		nextJobID:       1,
	}
}

func (rs *RunState) fn(id model.FunctionID) *RuntimeFunction {
	return rs.functions[int(id)]
}

// Init performs §4.4's "Initialization": pull startup initializers, build
// init-blocks for inputs that arrive already full, then move every
// non-blocked function with a full input set to ready.
func (rs *RunState) Init() {
	for _, f := range rs.functions {
		for _, in := range f.Inputs {
			in.Init(true)
		}
	}

	for _, f := range rs.functions {
		for _, c := range f.OutputConnections {
			g := rs.fn(c.DestFunctionID)
			k := c.IONumber
			if g.ID == f.ID {
				continue // self-loops never create blocks
			}
			if k >= len(g.Inputs) {
				continue
			}
			if g.Inputs[k].Count() == 0 {
				continue
			}
			rs.addBlock(Block{
				BlockingFlowID:     g.FlowID,
				BlockingFunctionID: g.ID,
				BlockingIONumber:   k,
				BlockedFunctionID:  f.ID,
				BlockedFlowID:      f.FlowID,
			})
		}
	}

	for _, f := range rs.functions {
		rs.markReadyIfEligible(f)
	}
}

func (rs *RunState) addBlock(b Block) {
	rs.blocks = append(rs.blocks, b)
	rs.blocked[b.BlockedFunctionID] = struct{}{}
	if rs.BlockHook != nil {
		rs.BlockHook(b)
	}
}

// markReadyIfEligible adds f to ready (and marks its flow busy) if it has
// a full input set, is not blocked, and is not already ready/running.
func (rs *RunState) markReadyIfEligible(f *RuntimeFunction) {
	if !f.RunAgain {
		return
	}
	if _, isBlocked := rs.blocked[f.ID]; isBlocked {
		return
	}
	if !f.hasFullInputSet() {
		return
	}
	if rs.isRunning(f.ID) || rs.isReady(f.ID) {
		return
	}
	rs.ready = append(rs.ready, f.ID)
	rs.busyFlows[f.FlowID]++
}

func (rs *RunState) isReady(id model.FunctionID) bool {
	for _, r := range rs.ready {
		if r == id {
			return true
		}
	}
	return false
}

func (rs *RunState) isRunning(id model.FunctionID) bool {
	jobs, ok := rs.running[id]
	return ok && len(jobs) > 0
}

func (rs *RunState) runningCount() int {
	n := 0
	for _, jobs := range rs.running {
		n += len(jobs)
	}
	return n
}

// NextJob returns the next job to dispatch, or ok=false if the
// concurrency budget is exhausted or nothing is ready (§4.4 "Ready
// selection").
func (rs *RunState) NextJob() (*Job, bool) {
	if rs.runningCount() >= rs.maxParallelJobs {
		return nil, false
	}
	if len(rs.ready) == 0 {
		return nil, false
	}

	fid := rs.ready[0]
	rs.ready = rs.ready[1:]

	f := rs.fn(fid)

	inputs := make([]value.Value, len(f.Inputs))
	for i, in := range f.Inputs {
		v, _ := in.Take()
		inputs[i] = v
	}

	jobID := rs.nextJobID
	rs.nextJobID++
	if rs.running[fid] == nil {
		rs.running[fid] = map[JobID]struct{}{}
	}
	rs.running[fid][jobID] = struct{}{}

	rs.releaseIntraFlowBlocksFor(fid)
	rs.markPendingUnblock(f)

	return &Job{
		ID:                jobID,
		FunctionID:        fid,
		FlowID:            f.FlowID,
		Inputs:            inputs,
		ImplementationLoc: f.ImplementationLoc,
		OutputConnections: f.OutputConnections,
	}, true
}

// releaseIntraFlowBlocksFor removes blocks where fid is the blocker and
// blocker/blocked share a flow — "allowing sibling functions in the same
// flow to proceed" immediately, without waiting for fid's flow to idle.
func (rs *RunState) releaseIntraFlowBlocksFor(fid model.FunctionID) {
	kept := rs.blocks[:0]
	var releasedBlockedIDs []model.FunctionID
	for _, b := range rs.blocks {
		if b.BlockingFunctionID == fid && b.BlockingFlowID == b.BlockedFlowID {
			releasedBlockedIDs = append(releasedBlockedIDs, b.BlockedFunctionID)
			continue
		}
		kept = append(kept, b)
	}
	rs.blocks = kept

	for _, id := range releasedBlockedIDs {
		rs.reconsiderBlocked(id)
	}
}

// reconsiderBlocked drops id from the blocked set if no remaining block
// names it as blocked, then makes it ready if now eligible.
func (rs *RunState) reconsiderBlocked(id model.FunctionID) {
	for _, b := range rs.blocks {
		if b.BlockedFunctionID == id {
			return // still genuinely blocked by another entry
		}
	}
	delete(rs.blocked, id)
	rs.markReadyIfEligible(rs.fn(id))
}

// markPendingUnblock records that fid (about to run) is a blocker whose
// inter-flow blocks are deferred until its own flow goes idle (§4.4
// "Cross-flow unblock rule").
func (rs *RunState) markPendingUnblock(f *RuntimeFunction) {
	if rs.pendingUnblocks[f.FlowID] == nil {
		rs.pendingUnblocks[f.FlowID] = map[model.FunctionID]struct{}{}
	}
	rs.pendingUnblocks[f.FlowID][f.ID] = struct{}{}
}

// ApplyResult applies a completed job's result per §4.6: error handling,
// value delivery with type-convert-and-send, block creation, refilling
// initializers, and the busy-flow/cross-flow-unblock sweep.
func (rs *RunState) ApplyResult(job *Job, result Result) error {
	if jobs, ok := rs.running[job.FunctionID]; ok {
		delete(jobs, job.ID)
		if len(jobs) == 0 {
			delete(rs.running, job.FunctionID)
		}
	}

	f := rs.fn(job.FunctionID)

	if result.Err == nil {
		if err := rs.deliverOutputs(f, job, result); err != nil {
			return err
		}

		f.RunAgain = result.RunAgain
		if f.RunAgain {
			for _, in := range f.Inputs {
				in.Init(false)
			}
			if f.hasFullInputSet() {
				rs.newInputSet(f)
			}
		}
	}

	rs.busyFlows[f.FlowID]--
	if rs.busyFlows[f.FlowID] <= 0 {
		delete(rs.busyFlows, f.FlowID)
		rs.sweepCrossFlowUnblocks(f.FlowID)
	}

	return nil
}

// deliverOutputs implements §4.6 steps 3-5: resolve each connection's
// source value, type-convert-and-send it, and create a block plus
// new-input-set notification for the receiver.
func (rs *RunState) deliverOutputs(f *RuntimeFunction, job *Job, result Result) error {
	for _, c := range f.OutputConnections {
		v, ok := resolveSource(c, job, result)
		if !ok {
			continue // output selector not present at runtime: legal, not fatal
		}

		g := rs.fn(c.DestFunctionID)
		if c.IONumber >= len(g.Inputs) {
			continue
		}
		dstInput := g.Inputs[c.IONumber]

		if rs.SendHook != nil {
			subRoute := ""
			if c.Source.Kind == model.SourceOutput {
				subRoute = c.Source.SubRoute.String()
			}
			rs.SendHook(f.ID, subRoute)
		}

		before := dstInput.Count()
		if err := send(dstInput, v, c.DestinationArrayOrder, c.IsGeneric); err != nil {
			return fmt.Errorf("runstate: function %d -> %d input %d: %w", f.ID, g.ID, c.IONumber, err)
		}
		after := dstInput.Count()

		if after > before && !c.LoopbackPriority {
			rs.addBlock(Block{
				BlockingFlowID:     g.FlowID,
				BlockingFunctionID: g.ID,
				BlockingIONumber:   c.IONumber,
				BlockedFunctionID:  f.ID,
				BlockedFlowID:      f.FlowID,
			})
			rs.newInputSet(g)
		}
	}
	return nil
}

// resolveSource extracts the value to send for one output connection:
// either a sub-route into the job's produced output, or a pass-through of
// one of the job's own input values.
func resolveSource(c *model.OutputConnection, job *Job, result Result) (value.Value, bool) {
	switch c.Source.Kind {
	case model.SourceInput:
		idx := c.Source.InputIdx
		if idx < 0 || idx >= len(job.Inputs) {
			return value.Value{}, false
		}
		return job.Inputs[idx], true
	default: // SourceOutput
		if result.Output == nil {
			return value.Value{}, false
		}
		return result.Output.Pointer(c.Source.SubRoute)
	}
}

// send implements the type-convert-and-send table of §4.6.
func send(dst *Input, v value.Value, destArrayOrder int, destGeneric bool) error {
	if destGeneric {
		dst.Send(v)
		return nil
	}

	delta := datatype.ValueArrayOrder(v.Raw()) - destArrayOrder

	switch delta {
	case 0:
		dst.Send(v)
	case 1:
		dst.SendIter(v)
	case 2:
		elems, ok := v.AsArray()
		if !ok {
			return fmt.Errorf("array-order mismatch: expected array at delta +2")
		}
		for _, outer := range elems {
			dst.SendIter(outer)
		}
	case -1:
		dst.Send(value.NewArray(v))
	case -2:
		dst.Send(value.NewArray(value.NewArray(v)))
	default:
		return fmt.Errorf("array-order mismatch: delta %d is not representable", delta)
	}
	return nil
}

// newInputSet implements §4.4's new-input-set(i, phi, value_sent): a
// blocked function stays blocked; otherwise, if it now has a full input
// set, it becomes ready.
func (rs *RunState) newInputSet(f *RuntimeFunction) {
	if _, isBlocked := rs.blocked[f.ID]; isBlocked {
		return
	}
	rs.markReadyIfEligible(f)
}

// sweepCrossFlowUnblocks implements the deferred half of the cross-flow
// unblock rule: once flowID has left busyFlows, every blocker function
// recorded in pendingUnblocks[flowID] has its inter-flow blocks released.
func (rs *RunState) sweepCrossFlowUnblocks(flowID model.FlowID) {
	pending, ok := rs.pendingUnblocks[flowID]
	if !ok {
		return
	}
	delete(rs.pendingUnblocks, flowID)

	kept := rs.blocks[:0]
	var releasedBlockedIDs []model.FunctionID
	for _, b := range rs.blocks {
		if _, isPending := pending[b.BlockingFunctionID]; isPending {
			releasedBlockedIDs = append(releasedBlockedIDs, b.BlockedFunctionID)
			continue
		}
		kept = append(kept, b)
	}
	rs.blocks = kept

	for _, id := range releasedBlockedIDs {
		rs.reconsiderBlocked(id)
	}
}

// ReadyCount, RunningCount, BlockedCount expose scheduler depth for
// telemetry and the debugger's overall-state inspection.
func (rs *RunState) ReadyCount() int   { return len(rs.ready) }
func (rs *RunState) RunningCount() int { return rs.runningCount() }
func (rs *RunState) BlockedCount() int { return len(rs.blocked) }
func (rs *RunState) Idle() bool        { return len(rs.ready) == 0 && rs.runningCount() == 0 }

// Function returns the runtime function with the given id, for debugger
// inspection commands.
func (rs *RunState) Function(id model.FunctionID) *RuntimeFunction {
	if int(id) < 0 || int(id) >= len(rs.functions) {
		return nil
	}
	return rs.fn(id)
}

// Blocks returns a snapshot of the current block multiset.
func (rs *RunState) Blocks() []Block {
	out := make([]Block, len(rs.blocks))
	copy(out, rs.blocks)
	return out
}

// Functions returns every runtime function in id order, for the
// debugger's deadlock walk, which must look at connections reaching into
// a target function from anywhere in the graph, not just the functions
// already recorded in the block multiset.
func (rs *RunState) Functions() []*RuntimeFunction {
	return rs.functions
}

// IsReady reports whether id is currently sitting in the ready queue, for
// the debugger's input-blocker calculation: a sole sender into an empty
// input only counts as a blocker while it still hasn't supplied that
// value, i.e. while it isn't ready to run.
func (rs *RunState) IsReady(id model.FunctionID) bool {
	return rs.isReady(id)
}
