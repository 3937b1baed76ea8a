// Package graph validates workflow action sets at definition time: every
// dependency must name another action in the same workflow, action IDs must
// be unique, and the dependency relation must be acyclic. The scheduler
// assumes a validated graph and never re-runs these checks.
package graph

import (
	"fmt"
	"strings"

	"github.com/cascadehq/cascade/internal/model"
)

// DuplicateActionError reports an action ID that appears more than once.
type DuplicateActionError struct {
	ActionID string
}

func (e *DuplicateActionError) Error() string {
	return fmt.Sprintf("duplicate action id %q", e.ActionID)
}

// UnknownDependencyError reports a dependency that does not resolve to an
// action in the same workflow.
type UnknownDependencyError struct {
	ActionID   string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("action %q depends on unknown action %q", e.ActionID, e.Dependency)
}

// CycleError reports a dependency cycle. Cycle holds the action IDs along
// the cycle, with the first ID repeated at the end.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency: %s", strings.Join(e.Cycle, " -> "))
}

// Node states for the depth-first walk.
const (
	unvisited = iota
	onStack
	done
)

// Validate checks an action set for duplicate IDs, dangling dependencies,
// and dependency cycles. It returns nil for any acyclic, fully-resolvable
// set.
func Validate(actions []model.Action) error {
	deps := make(map[string][]string, len(actions))
	for _, a := range actions {
		if _, ok := deps[a.ID]; ok {
			return &DuplicateActionError{ActionID: a.ID}
		}
		deps[a.ID] = a.Dependencies
	}

	for _, a := range actions {
		for _, d := range a.Dependencies {
			if _, ok := deps[d]; !ok {
				return &UnknownDependencyError{ActionID: a.ID, Dependency: d}
			}
		}
	}

	state := make(map[string]int, len(actions))
	for _, a := range actions {
		if state[a.ID] != unvisited {
			continue
		}
		if cycle := findCycle(a.ID, deps, state); cycle != nil {
			return &CycleError{Cycle: cycle}
		}
	}
	return nil
}

// frame is one entry on the explicit DFS stack: an action ID and the index
// of the next dependency to visit.
type frame struct {
	id   string
	next int
}

// findCycle runs an iterative depth-first walk from root. Nodes on the
// current walk path are marked onStack; reaching one again means the path
// closes a cycle. The explicit stack bounds memory on large graphs where a
// recursive walk could exhaust the goroutine stack.
func findCycle(root string, deps map[string][]string, state map[string]int) []string {
	stack := []frame{{id: root}}
	state[root] = onStack

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		ds := deps[top.id]

		if top.next < len(ds) {
			d := ds[top.next]
			top.next++

			switch state[d] {
			case onStack:
				return cyclePath(stack, d)
			case unvisited:
				state[d] = onStack
				stack = append(stack, frame{id: d})
			}
			continue
		}

		state[top.id] = done
		stack = stack[:len(stack)-1]
	}
	return nil
}

// cyclePath extracts the cycle from the walk stack: the IDs from the first
// occurrence of repeat through the top of the stack, closed with repeat.
func cyclePath(stack []frame, repeat string) []string {
	start := 0
	for i, f := range stack {
		if f.id == repeat {
			start = i
			break
		}
	}
	cycle := make([]string, 0, len(stack)-start+1)
	for _, f := range stack[start:] {
		cycle = append(cycle, f.id)
	}
	return append(cycle, repeat)
}
