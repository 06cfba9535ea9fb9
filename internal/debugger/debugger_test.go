package debugger

import (
	"testing"

	"github.com/lyzr/flowr/common/value"
	"github.com/lyzr/flowr/internal/model"
	"github.com/lyzr/flowr/internal/runstate"
)

func TestParseSpecVariants(t *testing.T) {
	cases := map[string]string{
		"3":        "function",
		"3:1":      "input",
		"3/out":    "output",
		"3->5":     "block",
		"*":        "wildcard",
		"3 when inputs.input0 > 1": "function",
	}
	for s, wantKind := range cases {
		spec, err := ParseSpec(s)
		if err != nil {
			t.Fatalf("ParseSpec(%q): %v", s, err)
		}
		if spec.Kind != wantKind {
			t.Fatalf("ParseSpec(%q): got kind %s, want %s", s, spec.Kind, wantKind)
		}
	}
}

func TestFunctionBreakpointHitsWithoutGuard(t *testing.T) {
	d := New()
	spec, _ := ParseSpec("3")
	if err := d.Registry().Add(spec); err != nil {
		t.Fatalf("add: %v", err)
	}

	job := &runstate.Job{ID: 1, FunctionID: 3}
	hit, _ := d.CheckPriorToJob(job)
	if !hit {
		t.Fatalf("expected breakpoint hit")
	}
}

func TestFunctionBreakpointGuardFiltersMisses(t *testing.T) {
	d := New()
	spec, err := ParseSpec("3 when inputs.input0 > 10.0")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := d.Registry().Add(spec); err != nil {
		t.Fatalf("add: %v", err)
	}

	low := &runstate.Job{ID: 1, FunctionID: 3, Inputs: []value.Value{value.Of(float64(1))}}
	if hit, _ := d.CheckPriorToJob(low); hit {
		t.Fatalf("expected guard to suppress breakpoint for low input")
	}

	high := &runstate.Job{ID: 2, FunctionID: 3, Inputs: []value.Value{value.Of(float64(20))}}
	if hit, _ := d.CheckPriorToJob(high); !hit {
		t.Fatalf("expected guard to fire for high input")
	}
}

func TestBlockBreakpoint(t *testing.T) {
	d := New()
	spec, _ := ParseSpec("5->3")
	if err := d.Registry().Add(spec); err != nil {
		t.Fatalf("add: %v", err)
	}

	hit, _ := d.CheckOnBlockCreation(runstate.Block{BlockedFunctionID: 5, BlockingFunctionID: 3})
	if !hit {
		t.Fatalf("expected block breakpoint hit")
	}
	if hit, _ := d.CheckOnBlockCreation(runstate.Block{BlockedFunctionID: 5, BlockingFunctionID: 4}); hit {
		t.Fatalf("unexpected hit for different blocker")
	}
}

func TestDeadlockCheckFreshStateIsClean(t *testing.T) {
	a := &runstate.RuntimeFunction{ID: 0}
	b := &runstate.RuntimeFunction{ID: 1}
	rs := runstate.New([]*runstate.RuntimeFunction{a, b}, 4)

	report := DeadlockCheck(rs)
	if len(report) != 0 {
		t.Fatalf("expected no deadlock on a fresh run state, got %v", report)
	}
}

func TestDeadlockCheckDetectsMutualBlockCycle(t *testing.T) {
	a := &runstate.RuntimeFunction{
		ID: 0, FlowID: 0,
		Inputs: []*runstate.Input{{}},
		OutputConnections: []*model.OutputConnection{
			{SourceFunctionIdx: 0, Source: model.Source{Kind: model.SourceOutput}, DestFunctionID: 1, IONumber: 0, FlowID: 0},
		},
	}
	b := &runstate.RuntimeFunction{
		ID: 1, FlowID: 0,
		Inputs: []*runstate.Input{{}},
		OutputConnections: []*model.OutputConnection{
			{SourceFunctionIdx: 1, Source: model.Source{Kind: model.SourceOutput}, DestFunctionID: 0, IONumber: 0, FlowID: 0},
		},
	}
	a.Inputs[0].Send(value.Of(float64(1)))
	b.Inputs[0].Send(value.Of(float64(1)))

	rs := runstate.New([]*runstate.RuntimeFunction{a, b}, 4)
	rs.Init() // both inputs already full -> each blocks the other on init

	report := DeadlockCheck(rs)
	if len(report) == 0 {
		t.Fatalf("expected a deadlock cycle to be reported")
	}
}

func TestDeadlockCheckDetectsMutualUnreadySenderCycle(t *testing.T) {
	// Neither function has an initializer, and each is the other's sole
	// sender: no input ever goes full, so no Block entry for either
	// function is ever recorded. The only way to see the cycle is via the
	// unready-sender edge (a function is the sole, not-yet-ready sender of
	// the other's still-empty input), not the block multiset.
	a := &runstate.RuntimeFunction{
		ID: 0, FlowID: 0,
		Inputs: []*runstate.Input{{}},
		OutputConnections: []*model.OutputConnection{
			{SourceFunctionIdx: 0, Source: model.Source{Kind: model.SourceOutput}, DestFunctionID: 1, IONumber: 0, FlowID: 0},
		},
	}
	b := &runstate.RuntimeFunction{
		ID: 1, FlowID: 0,
		Inputs: []*runstate.Input{{}},
		OutputConnections: []*model.OutputConnection{
			{SourceFunctionIdx: 1, Source: model.Source{Kind: model.SourceOutput}, DestFunctionID: 0, IONumber: 0, FlowID: 0},
		},
	}

	rs := runstate.New([]*runstate.RuntimeFunction{a, b}, 4)
	rs.Init() // no initializers fire, no inputs ever go full, no Blocks recorded

	report := DeadlockCheck(rs)
	if len(report) == 0 {
		t.Fatalf("expected a mutual unready-sender cycle to be reported")
	}
}

func TestResetClearsStepWithoutClearingBreakpoints(t *testing.T) {
	d := New()
	spec, _ := ParseSpec("3")
	_ = d.Registry().Add(spec)
	d.Step(0, 5)

	d.Reset()

	if len(d.Registry().List()) != 1 {
		t.Fatalf("expected breakpoint preserved across reset, got %v", d.Registry().List())
	}
}
