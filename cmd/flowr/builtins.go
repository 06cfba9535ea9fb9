package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/lyzr/flowr/common/value"
	"github.com/lyzr/flowr/internal/executor"
)

// contextFuncs is the small set of host-bridging "context" implementations
// this runtime ships with (§1 non-goals: "the set of context functions
// that bridge to the host" is an external collaborator contract, not a
// component this spec builds out fully — stdio is the minimal set needed
// to actually run an example flow end to end).
var contextFuncs = map[string]func() executor.Implementation{
	"context://stdio/stdout": func() executor.Implementation { return stdoutFn{} },
	"context://stdio/stderr": func() executor.Implementation { return stderrFn{} },
	"context://stdio/stdin":  func() executor.Implementation { return &stdinFn{scanner: bufio.NewScanner(os.Stdin)} },
}

// stdoutFn writes its single input to stdout and is always eligible to
// run again — a sink never exhausts itself.
type stdoutFn struct{}

func (stdoutFn) Run(_ context.Context, inputs []value.Value) (*value.Value, bool, error) {
	if len(inputs) == 0 {
		return nil, true, nil
	}
	fmt.Println(render(inputs[0]))
	return nil, true, nil
}

type stderrFn struct{}

func (stderrFn) Run(_ context.Context, inputs []value.Value) (*value.Value, bool, error) {
	if len(inputs) == 0 {
		return nil, true, nil
	}
	fmt.Fprintln(os.Stderr, render(inputs[0]))
	return nil, true, nil
}

// stdinFn reads one line per invocation, returning run_again=false once
// the stream is exhausted (§3 "Lifecycles" — a source that has nothing
// left to emit declines to run again).
type stdinFn struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
}

func (s *stdinFn) Run(_ context.Context, _ []value.Value) (*value.Value, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.scanner.Scan() {
		return nil, false, s.scanner.Err()
	}
	v := value.Of(s.scanner.Text())
	return &v, true, nil
}

func render(v value.Value) string {
	if s, ok := v.Raw().(string); ok {
		return s
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v.Raw()))
}
