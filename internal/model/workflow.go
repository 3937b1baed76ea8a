package model

import "time"

// Workflow status constants.
const (
	WorkflowDraft     = "draft"
	WorkflowActive    = "active"
	WorkflowPaused    = "paused"
	WorkflowCompleted = "completed"
	WorkflowFailed    = "failed"
	WorkflowCancelled = "cancelled"
)

// Action type constants.
const (
	ActionAgentTask      = "agent_task"
	ActionEmailSend      = "email_send"
	ActionCalendarCreate = "calendar_create"
	ActionFileProcess    = "file_process"
	ActionNotification   = "notification"
	ActionAPICall        = "api_call"
	ActionCondition      = "condition"
	ActionDelay          = "delay"
)

// ActionTypes lists every action type the dispatcher understands, in a
// stable order for API responses.
func ActionTypes() []string {
	return []string{
		ActionAgentTask,
		ActionEmailSend,
		ActionCalendarCreate,
		ActionFileProcess,
		ActionNotification,
		ActionAPICall,
		ActionCondition,
		ActionDelay,
	}
}

// Trigger declares what may start a workflow. The engine treats triggers as
// opaque; executions are created through the execute API regardless of
// trigger configuration.
type Trigger struct {
	Type    string         `json:"type"`
	Config  map[string]any `json:"config,omitempty"`
	Enabled bool           `json:"enabled"`
}

// Action is one typed unit of work within a workflow. Dependencies name
// other action IDs in the same workflow that must finish before this one
// becomes ready.
type Action struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Type           string         `json:"type"`
	AgentID        string         `json:"agent_id,omitempty"`
	Config         map[string]any `json:"config,omitempty"`
	Dependencies   []string       `json:"dependencies,omitempty"`
	RetryCount     int            `json:"retry_count"`
	MaxRetries     int            `json:"max_retries"`
	TimeoutSeconds int            `json:"timeout_seconds"`
}

// Workflow is a complete workflow definition. The scheduler reads an
// immutable snapshot at execution start; later edits do not affect
// executions already running.
type Workflow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Triggers    []Trigger `json:"triggers,omitempty"`
	Actions     []Action  `json:"actions"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
