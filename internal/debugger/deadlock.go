package debugger

import (
	"fmt"
	"strings"

	"github.com/lyzr/flowr/internal/model"
	"github.com/lyzr/flowr/internal/runstate"
)

// blockerKind distinguishes the two ways a function can be prevented from
// running, mirroring flowr's BlockType.
type blockerKind int

const (
	outputBlocked  blockerKind = iota // this function wants to send, but the destination's input is full
	unreadySender                     // this function is waiting on an input only the other function can supply
)

// blockerNode is one node of the blocker tree built while walking from a
// blocked function towards whatever is blocking it.
type blockerNode struct {
	functionID model.FunctionID
	kind       blockerKind
	blockers   []*blockerNode
}

func (n *blockerNode) String() string {
	switch n.kind {
	case outputBlocked:
		return fmt.Sprintf(" -> #%d", n.functionID)
	default:
		return fmt.Sprintf(" <- #%d", n.functionID)
	}
}

// findBlockers returns every function directly preventing id from
// running: functions id wants to send to but whose input is already full
// (outputBlocked), and functions that are the sole, not-yet-ready sender
// of one of id's still-empty inputs (unreadySender).
func findBlockers(rs *runstate.RunState, id model.FunctionID) []*blockerNode {
	var out []*blockerNode
	for _, b := range rs.Blocks() {
		if b.BlockedFunctionID == id {
			out = append(out, &blockerNode{functionID: b.BlockingFunctionID, kind: outputBlocked})
		}
	}
	out = append(out, unreadySenderBlockers(rs, id)...)
	return out
}

// unreadySenderBlockers implements the "input blocker" half of the walk:
// for each of target's empty inputs, find every function connected to it
// that isn't currently ready to run. When exactly one such sender exists,
// target cannot proceed until that sender fires, so it is a blocker —
// this is the edge that exists even when no Block has ever been recorded
// (neither function's input has ever gone full), which is what lets a
// cycle of mutual first-run senders with no initializers be detected.
func unreadySenderBlockers(rs *runstate.RunState, targetID model.FunctionID) []*blockerNode {
	target := rs.Function(targetID)
	if target == nil {
		return nil
	}

	var out []*blockerNode
	for io, in := range target.Inputs {
		if in.Count() != 0 {
			continue
		}

		var senders []model.FunctionID
		for _, sender := range rs.Functions() {
			if rs.IsReady(sender.ID) {
				continue
			}
			for _, c := range sender.OutputConnections {
				if c.DestFunctionID == targetID && c.IONumber == io {
					senders = append(senders, sender.ID)
				}
			}
		}

		if len(senders) == 1 {
			out = append(out, &blockerNode{functionID: senders[0], kind: unreadySender})
		}
	}
	return out
}

// traverseBlockerTree performs a DFS from node looking for a path back to
// rootID; returns the chain of nodes forming the cycle, or nil if none
// found from this subtree.
func traverseBlockerTree(rs *runstate.RunState, visited map[model.FunctionID]bool, rootID model.FunctionID, node *blockerNode) []*blockerNode {
	visited[node.functionID] = true
	node.blockers = findBlockers(rs, node.functionID)

	for _, b := range node.blockers {
		if b.functionID == rootID {
			return []*blockerNode{b}
		}
		if !visited[b.functionID] {
			subtree := traverseBlockerTree(rs, visited, rootID, b)
			if len(subtree) > 0 {
				return append([]*blockerNode{b}, subtree...)
			}
		}
	}
	return nil
}

func displaySet(rootID model.FunctionID, chain []*blockerNode) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#%d", rootID)
	for _, n := range chain {
		sb.WriteString(n.String())
	}
	return sb.String()
}

// DeadlockCheck walks the blocker graph from every function, looking for
// cycles, and returns one formatted line per cycle found ("#3 -> #5 <- #3"
// -style), matching flowr's deadlock_check. Rooting from every function
// rather than only ones already present in the block multiset is what
// catches a cycle of mutual first-run senders — two functions with no
// initializers, each the other's sole sender — since neither function's
// input ever goes full and so no Block entry for them is ever created. An
// empty slice means no deadlock was detected.
func DeadlockCheck(rs *runstate.RunState) []string {
	var report []string
	for _, f := range rs.Functions() {
		visited := map[model.FunctionID]bool{}
		chain := traverseBlockerTree(rs, visited, f.ID, &blockerNode{functionID: f.ID})
		if len(chain) > 0 {
			report = append(report, displaySet(f.ID, chain))
		}
	}
	return report
}
