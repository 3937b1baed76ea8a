package model

import "time"

// Execution status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// validTransitions maps each execution status to the set of statuses it may
// transition to. Terminal statuses have no entry.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning:   true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
}

// ValidTransition reports whether transitioning from one execution status to
// another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// TerminalStatus reports whether a status is terminal for an execution.
func TerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ActionResult records the outcome of one action within an execution.
// Exactly one of Output or Error is meaningful: a non-empty Error marks a
// soft failure whose dependents still run.
type ActionResult struct {
	Output     map[string]any `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMS int            `json:"duration_ms"`
}

// Failed reports whether the result records a soft failure.
func (r ActionResult) Failed() bool { return r.Error != "" }

// Execution tracks one runtime instance of a workflow. While running it is
// mutated only by the scheduler goroutine that owns it; once terminal it is
// a read-only historical record.
type Execution struct {
	ID            string                  `json:"id"`
	WorkflowID    string                  `json:"workflow_id"`
	Status        string                  `json:"status"`
	TriggerData   map[string]any          `json:"trigger_data,omitempty"`
	ActionResults map[string]ActionResult `json:"action_results,omitempty"`
	ErrorMessage  string                  `json:"error_message,omitempty"`
	DurationMS    *int                    `json:"duration_ms,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	StartedAt     *time.Time              `json:"started_at,omitempty"`
	CompletedAt   *time.Time              `json:"completed_at,omitempty"`
}
