package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lyzr/flowr/internal/debugger"
)

func TestParseDebugLineRecognizesAliases(t *testing.T) {
	cases := []struct {
		line string
		want debugger.ClientCommand
	}{
		{"b foo:1", debugger.ClientCommand{Kind: "Breakpoint", Spec: "foo:1"}},
		{"breakpoint foo:1", debugger.ClientCommand{Kind: "Breakpoint", Spec: "foo:1"}},
		{"c", debugger.ClientCommand{Kind: "Continue"}},
		{"continue", debugger.ClientCommand{Kind: "Continue"}},
		{"d foo:1", debugger.ClientCommand{Kind: "Delete", Spec: "foo:1"}},
		{"e", debugger.ClientCommand{Kind: "ExitDebugger"}},
		{"quit", debugger.ClientCommand{Kind: "ExitDebugger"}},
		{"l", debugger.ClientCommand{Kind: "List"}},
		{"r", debugger.ClientCommand{Kind: "RunReset"}},
		{"reset", debugger.ClientCommand{Kind: "RunReset"}},
		{"s", debugger.ClientCommand{Kind: "Step", Steps: 0}},
		{"s 3", debugger.ClientCommand{Kind: "Step", Steps: 3}},
		{"v", debugger.ClientCommand{Kind: "Validate"}},
		{"i", debugger.ClientCommand{Kind: "InspectOverall"}},
		{"i 2", debugger.ClientCommand{Kind: "InspectFunction", FunctionID: 2}},
	}

	for _, c := range cases {
		got, ok := parseDebugLine(c.line)
		require.Truef(t, ok, "line %q should parse", c.line)
		require.Equal(t, c.want, got, "line %q", c.line)
	}
}

func TestParseDebugLineRejectsBlankAndUnknown(t *testing.T) {
	_, ok := parseDebugLine("   ")
	require.False(t, ok)

	_, ok = parseDebugLine("frobnicate")
	require.False(t, ok)
}

func TestParseDebugLineRejectsNonNumericInspectTarget(t *testing.T) {
	_, ok := parseDebugLine("i notanumber")
	require.False(t, ok)
}
