package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cascadehq/cascade/internal/model"

	_ "modernc.org/sqlite"
)

const createWorkflowsTable = `
CREATE TABLE IF NOT EXISTS workflows (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT,
    status      TEXT NOT NULL,
    triggers    TEXT NOT NULL,
    actions     TEXT NOT NULL,
    tags        TEXT NOT NULL,
    created_by  TEXT,
    created_at  DATETIME NOT NULL,
    updated_at  DATETIME NOT NULL
)`

const createExecutionsTable = `
CREATE TABLE IF NOT EXISTS executions (
    id             TEXT PRIMARY KEY,
    workflow_id    TEXT NOT NULL,
    status         TEXT NOT NULL,
    trigger_data   TEXT NOT NULL,
    action_results TEXT NOT NULL,
    error          TEXT,
    duration_ms    INTEGER,
    created_at     DATETIME NOT NULL,
    started_at     DATETIME,
    completed_at   DATETIME
)`

const createExecutionsIndex = `
CREATE INDEX IF NOT EXISTS idx_executions_workflow ON executions (workflow_id, status)`

const createTemplatesTable = `
CREATE TABLE IF NOT EXISTS templates (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT,
    category    TEXT,
    definition  TEXT NOT NULL,
    usage_count INTEGER NOT NULL DEFAULT 0,
    created_at  DATETIME NOT NULL
)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite. Document-shaped fields
// (triggers, actions, tags, trigger data, action results) are stored as JSON
// text columns.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		createWorkflowsTable,
		createExecutionsTable,
		createExecutionsIndex,
		createTemplatesTable,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// marshalDoc JSON-encodes a document column value, normalizing nil to a
// stable encoding so scans round-trip.
func marshalDoc(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode document column: %w", err)
	}
	return string(b), nil
}

func unmarshalDoc(data string, v any) error {
	if data == "" || data == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("decode document column: %w", err)
	}
	return nil
}

// CreateWorkflow inserts a new workflow record.
func (s *SQLiteStore) CreateWorkflow(ctx context.Context, w *model.Workflow) error {
	triggers, err := marshalDoc(w.Triggers)
	if err != nil {
		return err
	}
	actions, err := marshalDoc(w.Actions)
	if err != nil {
		return err
	}
	tags, err := marshalDoc(w.Tags)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflows (
			id, name, description, status, triggers, actions, tags,
			created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Name, w.Description, w.Status, triggers, actions, tags,
		w.CreatedBy, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

const workflowColumns = `id, name, description, status, triggers, actions, tags,
	created_by, created_at, updated_at`

func scanWorkflow(row interface{ Scan(...any) error }) (*model.Workflow, error) {
	w := &model.Workflow{}
	var triggers, actions, tags string
	err := row.Scan(
		&w.ID, &w.Name, &w.Description, &w.Status, &triggers, &actions, &tags,
		&w.CreatedBy, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := unmarshalDoc(triggers, &w.Triggers); err != nil {
		return nil, err
	}
	if err := unmarshalDoc(actions, &w.Actions); err != nil {
		return nil, err
	}
	if err := unmarshalDoc(tags, &w.Tags); err != nil {
		return nil, err
	}
	return w, nil
}

// GetWorkflow retrieves a workflow by ID.
func (s *SQLiteStore) GetWorkflow(ctx context.Context, id string) (*model.Workflow, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+workflowColumns+" FROM workflows WHERE id = ?", id)
	w, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	return w, nil
}

// ListWorkflows returns a filtered, paginated list of workflows ordered by
// created_at DESC, along with the total count of matches. The tag filter
// matches against the JSON-encoded tags column; tags are stored as a JSON
// string array, so an exact element match is a quoted substring.
func (s *SQLiteStore) ListWorkflows(ctx context.Context, f WorkflowFilter) ([]*model.Workflow, int, error) {
	var conds []string
	var args []any
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.Tag != "" {
		conds = append(conds, "instr(tags, ?) > 0")
		args = append(args, `"`+f.Tag+`"`)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflows"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count workflows: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := tx.QueryContext(ctx,
		"SELECT "+workflowColumns+" FROM workflows"+where+
			" ORDER BY created_at DESC LIMIT ? OFFSET ?",
		append(args, limit, f.Offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*model.Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan workflow: %w", err)
		}
		workflows = append(workflows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate workflows: %w", err)
	}

	return workflows, total, nil
}

// UpdateWorkflow replaces a workflow record.
func (s *SQLiteStore) UpdateWorkflow(ctx context.Context, w *model.Workflow) error {
	triggers, err := marshalDoc(w.Triggers)
	if err != nil {
		return err
	}
	actions, err := marshalDoc(w.Actions)
	if err != nil {
		return err
	}
	tags, err := marshalDoc(w.Tags)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE workflows SET
			name = ?, description = ?, status = ?, triggers = ?, actions = ?,
			tags = ?, created_by = ?, updated_at = ?
		WHERE id = ?`,
		w.Name, w.Description, w.Status, triggers, actions,
		tags, w.CreatedBy, w.UpdatedAt, w.ID,
	)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}
	return checkAffected(result)
}

// DeleteWorkflow removes a workflow definition. Execution history is kept.
func (s *SQLiteStore) DeleteWorkflow(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	return checkAffected(result)
}

// CreateTemplate inserts a new workflow template.
func (s *SQLiteStore) CreateTemplate(ctx context.Context, t *model.Template) error {
	definition, err := marshalDoc(t.Definition)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO templates (
			id, name, description, category, definition, usage_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Description, t.Category, definition, t.UsageCount, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

const templateColumns = `id, name, description, category, definition, usage_count, created_at`

func scanTemplate(row interface{ Scan(...any) error }) (*model.Template, error) {
	t := &model.Template{}
	var definition string
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.Category, &definition,
		&t.UsageCount, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := unmarshalDoc(definition, &t.Definition); err != nil {
		return nil, err
	}
	return t, nil
}

// GetTemplate retrieves a template by ID.
func (s *SQLiteStore) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+templateColumns+" FROM templates WHERE id = ?", id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

// ListTemplates returns a filtered, paginated list of templates ordered by
// usage_count DESC, most-used first, along with the total count of matches.
func (s *SQLiteStore) ListTemplates(ctx context.Context, f TemplateFilter) ([]*model.Template, int, error) {
	where := ""
	var args []any
	if f.Category != "" {
		where = " WHERE category = ?"
		args = append(args, f.Category)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM templates"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count templates: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := tx.QueryContext(ctx,
		"SELECT "+templateColumns+" FROM templates"+where+
			" ORDER BY usage_count DESC, created_at DESC LIMIT ? OFFSET ?",
		append(args, limit, f.Offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []*model.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate templates: %w", err)
	}

	return templates, total, nil
}

// DeleteTemplate removes a workflow template.
func (s *SQLiteStore) DeleteTemplate(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM templates WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return checkAffected(result)
}

// IncrementTemplateUsage bumps a template's usage counter.
func (s *SQLiteStore) IncrementTemplateUsage(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE templates SET usage_count = usage_count + 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("increment template usage: %w", err)
	}
	return checkAffected(result)
}

// CreateExecution inserts a new execution record.
func (s *SQLiteStore) CreateExecution(ctx context.Context, e *model.Execution) error {
	triggerData, err := marshalDoc(e.TriggerData)
	if err != nil {
		return err
	}
	results, err := marshalDoc(e.ActionResults)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO executions (
			id, workflow_id, status, trigger_data, action_results, error,
			duration_ms, created_at, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.WorkflowID, e.Status, triggerData, results, e.ErrorMessage,
		e.DurationMS, e.CreatedAt, e.StartedAt, e.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

const executionColumns = `id, workflow_id, status, trigger_data, action_results,
	error, duration_ms, created_at, started_at, completed_at`

func scanExecution(row interface{ Scan(...any) error }) (*model.Execution, error) {
	e := &model.Execution{}
	var triggerData, results string
	err := row.Scan(
		&e.ID, &e.WorkflowID, &e.Status, &triggerData, &results,
		&e.ErrorMessage, &e.DurationMS, &e.CreatedAt, &e.StartedAt, &e.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := unmarshalDoc(triggerData, &e.TriggerData); err != nil {
		return nil, err
	}
	if err := unmarshalDoc(results, &e.ActionResults); err != nil {
		return nil, err
	}
	return e, nil
}

// GetExecution retrieves an execution by ID.
func (s *SQLiteStore) GetExecution(ctx context.Context, id string) (*model.Execution, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+executionColumns+" FROM executions WHERE id = ?", id)
	e, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get execution: %w", err)
	}
	return e, nil
}

// ListExecutions returns a filtered, paginated list of executions ordered by
// created_at DESC, along with the total count of matches.
func (s *SQLiteStore) ListExecutions(ctx context.Context, f ExecutionFilter) ([]*model.Execution, int, error) {
	var conds []string
	var args []any
	if f.WorkflowID != "" {
		conds = append(conds, "workflow_id = ?")
		args = append(args, f.WorkflowID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM executions"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count executions: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := tx.QueryContext(ctx,
		"SELECT "+executionColumns+" FROM executions"+where+
			" ORDER BY created_at DESC LIMIT ? OFFSET ?",
		append(args, limit, f.Offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var executions []*model.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan execution: %w", err)
		}
		executions = append(executions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate executions: %w", err)
	}

	return executions, total, nil
}

// UpdateExecution replaces an execution record. The scheduler calls this
// once per round and once at termination, so readers observe monotonically
// increasing progress.
func (s *SQLiteStore) UpdateExecution(ctx context.Context, e *model.Execution) error {
	triggerData, err := marshalDoc(e.TriggerData)
	if err != nil {
		return err
	}
	results, err := marshalDoc(e.ActionResults)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE executions SET
			status = ?, trigger_data = ?, action_results = ?, error = ?,
			duration_ms = ?, started_at = ?, completed_at = ?
		WHERE id = ?`,
		e.Status, triggerData, results, e.ErrorMessage,
		e.DurationMS, e.StartedAt, e.CompletedAt, e.ID,
	)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	return checkAffected(result)
}

// Stats returns aggregate workflow and execution counts plus the average
// duration of terminal executions that recorded one.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		WorkflowsByStatus:  make(map[string]int),
		ExecutionsByStatus: make(map[string]int),
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT status, COUNT(*) FROM workflows GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count workflows by status: %w", err)
	}
	if err := scanStatusCounts(rows, stats.WorkflowsByStatus, &stats.Workflows); err != nil {
		return nil, err
	}

	rows, err = tx.QueryContext(ctx, "SELECT status, COUNT(*) FROM executions GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count executions by status: %w", err)
	}
	if err := scanStatusCounts(rows, stats.ExecutionsByStatus, &stats.Executions); err != nil {
		return nil, err
	}

	var avg sql.NullFloat64
	if err := tx.QueryRowContext(ctx,
		"SELECT AVG(duration_ms) FROM executions WHERE duration_ms IS NOT NULL",
	).Scan(&avg); err != nil {
		return nil, fmt.Errorf("average execution duration: %w", err)
	}
	stats.AvgExecutionMS = avg.Float64

	return stats, nil
}

func scanStatusCounts(rows *sql.Rows, byStatus map[string]int, total *int) error {
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return fmt.Errorf("scan status count: %w", err)
		}
		byStatus[status] = count
		*total += count
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate status counts: %w", err)
	}
	return nil
}

func checkAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
