package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/lyzr/flowr/internal/debugger"
)

// localDebugChannel implements debugger.DebugChannel directly against
// stdin/stdout for a non-server, non-client run with -d set — a REPL in
// the same process as the coordinator, grounded on the original flowr
// CLI's get_server_command command vocabulary
// (flowr/src/cli/cli_debug_client.rs), just collapsed onto one process
// instead of a client/server pair.
type localDebugChannel struct {
	in *bufio.Scanner
}

func newLocalDebugChannel() *localDebugChannel {
	return &localDebugChannel{in: bufio.NewScanner(os.Stdin)}
}

func (l *localDebugChannel) Send(ev debugger.ServerEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func (l *localDebugChannel) Recv() (debugger.ClientCommand, error) {
	for {
		fmt.Print("debug> ")
		if !l.in.Scan() {
			if err := l.in.Err(); err != nil {
				return debugger.ClientCommand{}, err
			}
			return debugger.ClientCommand{Kind: "ExitDebugger"}, nil
		}
		cmd, ok := parseDebugLine(l.in.Text())
		if !ok {
			continue
		}
		return cmd, nil
	}
}

// parseDebugLine maps one typed line onto a ClientCommand, matching the
// single/full-word aliases of the original CLI's dispatcher. ok is false
// for blank lines or unrecognized commands (the caller should print an
// error and keep reading, matching "help" acting locally without
// generating a server message).
func parseDebugLine(line string) (debugger.ClientCommand, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return debugger.ClientCommand{}, false
	}
	fields := strings.Fields(line)
	word, rest := fields[0], strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch word {
	case "b", "breakpoint":
		return debugger.ClientCommand{Kind: "Breakpoint", Spec: rest}, true
	case "c", "continue":
		return debugger.ClientCommand{Kind: "Continue"}, true
	case "d", "delete":
		return debugger.ClientCommand{Kind: "Delete", Spec: rest}, true
	case "e", "exit", "q", "quit":
		return debugger.ClientCommand{Kind: "ExitDebugger"}, true
	case "l", "list":
		return debugger.ClientCommand{Kind: "List"}, true
	case "r", "run", "reset":
		return debugger.ClientCommand{Kind: "RunReset"}, true
	case "s", "step":
		steps := 0
		if rest != "" {
			if n, err := strconv.Atoi(rest); err == nil {
				steps = n
			}
		}
		return debugger.ClientCommand{Kind: "Step", Steps: steps}, true
	case "v", "validate":
		return debugger.ClientCommand{Kind: "Validate"}, true
	case "i", "inspect":
		if rest == "" {
			return debugger.ClientCommand{Kind: "InspectOverall"}, true
		}
		id, err := strconv.Atoi(rest)
		if err != nil {
			fmt.Printf("bad function id %q\n", rest)
			return debugger.ClientCommand{}, false
		}
		return debugger.ClientCommand{Kind: "InspectFunction", FunctionID: id}, true
	default:
		fmt.Printf("unknown debugger command %q (try b/c/d/e/i/l/r/s/v)\n", word)
		return debugger.ClientCommand{}, false
	}
}
