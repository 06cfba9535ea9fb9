package debugger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lyzr/flowr/internal/runstate"
)

func newTestRunState() *runstate.RunState {
	a := &runstate.RuntimeFunction{ID: 0}
	b := &runstate.RuntimeFunction{ID: 1}
	return runstate.New([]*runstate.RuntimeFunction{a, b}, 4)
}

func TestDispatchBreakpointAddsAndAcks(t *testing.T) {
	d := New()
	res := d.Dispatch(ClientCommand{Kind: "Breakpoint", Spec: "3"}, newTestRunState(), 0)
	require.Equal(t, "Ack", res.Event.Kind)
	require.False(t, res.Resume)
	require.Len(t, d.Registry().List(), 1)
}

func TestDispatchBreakpointRejectsBadSpec(t *testing.T) {
	d := New()
	res := d.Dispatch(ClientCommand{Kind: "Breakpoint", Spec: "not a spec !!"}, newTestRunState(), 0)
	require.Equal(t, "Error", res.Event.Kind)
	require.Empty(t, d.Registry().List())
}

func TestDispatchDeleteRemovesBreakpoint(t *testing.T) {
	d := New()
	spec, err := ParseSpec("3")
	require.NoError(t, err)
	require.NoError(t, d.Registry().Add(spec))

	res := d.Dispatch(ClientCommand{Kind: "Delete", Spec: "3"}, newTestRunState(), 0)
	require.Equal(t, "Ack", res.Event.Kind)
	require.Empty(t, d.Registry().List())
}

func TestDispatchContinueResumesWithoutReset(t *testing.T) {
	d := New()
	res := d.Dispatch(ClientCommand{Kind: "Continue"}, newTestRunState(), 0)
	require.True(t, res.Resume)
	require.False(t, res.Reset)
	require.False(t, res.Exit)
}

func TestDispatchStepResumes(t *testing.T) {
	d := New()
	res := d.Dispatch(ClientCommand{Kind: "Step", Steps: 2}, newTestRunState(), 3)
	require.True(t, res.Resume)
}

func TestDispatchRunResetSignalsReset(t *testing.T) {
	d := New()
	spec, _ := ParseSpec("3")
	require.NoError(t, d.Registry().Add(spec))

	res := d.Dispatch(ClientCommand{Kind: "RunReset"}, newTestRunState(), 0)
	require.True(t, res.Resume)
	require.True(t, res.Reset)
	require.Len(t, d.Registry().List(), 1, "reset clears step state, not breakpoints")
}

func TestDispatchInspectOverallAndFunction(t *testing.T) {
	d := New()
	rs := newTestRunState()

	overall := d.Dispatch(ClientCommand{Kind: "InspectOverall"}, rs, 0)
	require.Equal(t, "OverallState", overall.Event.Kind)

	fn := d.Dispatch(ClientCommand{Kind: "InspectFunction", FunctionID: 1}, rs, 0)
	require.NotEqual(t, "Error", fn.Event.Kind)
}

func TestDispatchExitDebuggerSignalsExit(t *testing.T) {
	d := New()
	res := d.Dispatch(ClientCommand{Kind: "ExitDebugger"}, newTestRunState(), 0)
	require.True(t, res.Exit)
	require.True(t, res.Resume)
	require.Equal(t, "ExitingDebugger", res.Event.Kind)
}

func TestDispatchUnknownCommandReturnsError(t *testing.T) {
	d := New()
	res := d.Dispatch(ClientCommand{Kind: "Frobnicate"}, newTestRunState(), 0)
	require.Equal(t, "Error", res.Event.Kind)
}
