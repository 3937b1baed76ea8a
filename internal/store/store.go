package store

import (
	"context"
	"errors"

	"github.com/cascadehq/cascade/internal/model"
)

// ErrNotFound is returned when a workflow or execution is not found.
var ErrNotFound = errors.New("record not found")

// WorkflowFilter narrows ListWorkflows results. Zero values match everything.
type WorkflowFilter struct {
	Status string
	Tag    string
	Limit  int
	Offset int
}

// ExecutionFilter narrows ListExecutions results. Zero values match
// everything; Limit <= 0 means no limit.
type ExecutionFilter struct {
	WorkflowID string
	Status     string
	Limit      int
	Offset     int
}

// TemplateFilter narrows ListTemplates results. Zero values match
// everything; Limit <= 0 means no limit.
type TemplateFilter struct {
	Category string
	Limit    int
	Offset   int
}

// Stats holds aggregate workflow and execution statistics.
type Stats struct {
	Workflows          int            `json:"workflows"`
	WorkflowsByStatus  map[string]int `json:"workflows_by_status"`
	Executions         int            `json:"executions"`
	ExecutionsByStatus map[string]int `json:"executions_by_status"`
	AvgExecutionMS     float64        `json:"avg_execution_ms"`
}

// Store defines the persistence operations for workflows and executions.
type Store interface {
	CreateWorkflow(ctx context.Context, w *model.Workflow) error
	GetWorkflow(ctx context.Context, id string) (*model.Workflow, error)
	ListWorkflows(ctx context.Context, f WorkflowFilter) ([]*model.Workflow, int, error)
	UpdateWorkflow(ctx context.Context, w *model.Workflow) error
	DeleteWorkflow(ctx context.Context, id string) error

	CreateTemplate(ctx context.Context, t *model.Template) error
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
	ListTemplates(ctx context.Context, f TemplateFilter) ([]*model.Template, int, error)
	DeleteTemplate(ctx context.Context, id string) error
	// IncrementTemplateUsage bumps the usage counter after an instantiation.
	IncrementTemplateUsage(ctx context.Context, id string) error

	CreateExecution(ctx context.Context, e *model.Execution) error
	GetExecution(ctx context.Context, id string) (*model.Execution, error)
	ListExecutions(ctx context.Context, f ExecutionFilter) ([]*model.Execution, int, error)
	UpdateExecution(ctx context.Context, e *model.Execution) error

	Stats(ctx context.Context) (*Stats, error)
	Close() error
}
