package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cascadehq/cascade/internal/graph"
	"github.com/cascadehq/cascade/internal/model"
	"github.com/cascadehq/cascade/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// createWorkflowRequest is the JSON body for POST /v1/workflows.
type createWorkflowRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	Triggers    []model.Trigger `json:"triggers"`
	Actions     []model.Action  `json:"actions"`
	Tags        []string        `json:"tags"`
	CreatedBy   string          `json:"created_by"`
}

// updateWorkflowRequest is the JSON body for PUT /v1/workflows/{id}.
// Absent fields leave the stored value unchanged.
type updateWorkflowRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Status      *string          `json:"status"`
	Triggers    *[]model.Trigger `json:"triggers"`
	Actions     *[]model.Action  `json:"actions"`
	Tags        *[]string        `json:"tags"`
}

// listWorkflowsResponse wraps the paginated list response.
type listWorkflowsResponse struct {
	Workflows []*model.Workflow `json:"workflows"`
	Total     int               `json:"total"`
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
}

var validWorkflowStatuses = map[string]bool{
	model.WorkflowDraft:     true,
	model.WorkflowActive:    true,
	model.WorkflowPaused:    true,
	model.WorkflowCompleted: true,
	model.WorkflowFailed:    true,
	model.WorkflowCancelled: true,
}

var validActionTypes = func() map[string]bool {
	m := make(map[string]bool)
	for _, t := range model.ActionTypes() {
		m[t] = true
	}
	return m
}()

// validateActions checks structural requirements the scheduler relies on:
// non-empty IDs, known types, and an acyclic dependency graph.
func validateActions(actions []model.Action) error {
	for _, a := range actions {
		if a.ID == "" {
			return fmt.Errorf("action %q: id is required", a.Name)
		}
		if !validActionTypes[a.Type] {
			return fmt.Errorf("action %s: unsupported type %q", a.ID, a.Type)
		}
	}
	return graph.Validate(actions)
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req createWorkflowRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Status == "" {
		req.Status = model.WorkflowDraft
	}
	if !validWorkflowStatuses[req.Status] {
		s.writeError(w, http.StatusBadRequest, "invalid status "+strconv.Quote(req.Status))
		return
	}
	if err := validateActions(req.Actions); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now().UTC()
	wf := &model.Workflow{
		ID:          model.NewID(),
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		Triggers:    req.Triggers,
		Actions:     req.Actions,
		Tags:        req.Tags,
		CreatedBy:   req.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateWorkflow(r.Context(), wf); err != nil {
		s.logger.Error("create workflow", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create workflow")
		return
	}

	s.writeJSON(w, http.StatusCreated, wf)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	wf, err := s.store.GetWorkflow(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "workflow not found")
		return
	}
	if err != nil {
		s.logger.Error("get workflow", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get workflow")
		return
	}

	s.writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	f := store.WorkflowFilter{
		Status: r.URL.Query().Get("status"),
		Tag:    r.URL.Query().Get("tag"),
		Limit:  limit,
		Offset: offset,
	}
	workflows, total, err := s.store.ListWorkflows(r.Context(), f)
	if err != nil {
		s.logger.Error("list workflows", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list workflows")
		return
	}

	if workflows == nil {
		workflows = []*model.Workflow{}
	}

	s.writeJSON(w, http.StatusOK, listWorkflowsResponse{
		Workflows: workflows,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	})
}

func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateWorkflowRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	wf, err := s.store.GetWorkflow(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "workflow not found")
		return
	}
	if err != nil {
		s.logger.Error("get workflow for update", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get workflow")
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			s.writeError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		wf.Name = *req.Name
	}
	if req.Description != nil {
		wf.Description = *req.Description
	}
	if req.Status != nil {
		if !validWorkflowStatuses[*req.Status] {
			s.writeError(w, http.StatusBadRequest, "invalid status "+strconv.Quote(*req.Status))
			return
		}
		wf.Status = *req.Status
	}
	if req.Triggers != nil {
		wf.Triggers = *req.Triggers
	}
	if req.Actions != nil {
		if err := validateActions(*req.Actions); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		wf.Actions = *req.Actions
	}
	if req.Tags != nil {
		wf.Tags = *req.Tags
	}
	wf.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateWorkflow(r.Context(), wf); err != nil {
		s.logger.Error("update workflow", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to update workflow")
		return
	}

	s.writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Running executions of this workflow are cancelled before the
	// definition disappears; their scheduler goroutines finish on their own
	// snapshots and record a terminal status as usual.
	s.engine.CancelWorkflowExecutions(id)

	if err := s.store.DeleteWorkflow(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "workflow not found")
			return
		}
		s.logger.Error("delete workflow", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete workflow")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// validateWorkflowResponse is the JSON response for POST /v1/workflows/validate.
type validateWorkflowResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleValidateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req createWorkflowRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := validateActions(req.Actions); err != nil {
		s.writeJSON(w, http.StatusOK, validateWorkflowResponse{Valid: false, Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, validateWorkflowResponse{Valid: true})
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
