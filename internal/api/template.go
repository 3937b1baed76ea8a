package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cascadehq/cascade/internal/model"
	"github.com/cascadehq/cascade/internal/store"
)

// createTemplateRequest is the JSON body for POST /v1/workflow-templates.
// The definition carries the same shape as a workflow create request.
type createTemplateRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Definition  createWorkflowRequest `json:"definition"`
}

// instantiateTemplateRequest customizes the workflow created from a
// template. Absent fields fall back to the template's definition.
type instantiateTemplateRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
	CreatedBy   string    `json:"created_by"`
}

// listTemplatesResponse wraps the paginated template list response.
type listTemplatesResponse struct {
	Templates []*model.Template `json:"templates"`
	Total     int               `json:"total"`
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := validateActions(req.Definition.Actions); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tpl := &model.Template{
		ID:          model.NewID(),
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Definition: model.Workflow{
			Name:        req.Definition.Name,
			Description: req.Definition.Description,
			Status:      model.WorkflowDraft,
			Triggers:    req.Definition.Triggers,
			Actions:     req.Definition.Actions,
			Tags:        req.Definition.Tags,
		},
		CreatedAt: time.Now().UTC(),
	}
	if tpl.Definition.Name == "" {
		tpl.Definition.Name = req.Name
	}

	if err := s.store.CreateTemplate(r.Context(), tpl); err != nil {
		s.logger.Error("create template", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create template")
		return
	}

	s.writeJSON(w, http.StatusCreated, tpl)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tpl, err := s.store.GetTemplate(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "template not found")
		return
	}
	if err != nil {
		s.logger.Error("get template", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get template")
		return
	}

	s.writeJSON(w, http.StatusOK, tpl)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	f := store.TemplateFilter{
		Category: r.URL.Query().Get("category"),
		Limit:    limit,
		Offset:   offset,
	}
	templates, total, err := s.store.ListTemplates(r.Context(), f)
	if err != nil {
		s.logger.Error("list templates", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list templates")
		return
	}

	if templates == nil {
		templates = []*model.Template{}
	}

	s.writeJSON(w, http.StatusOK, listTemplatesResponse{
		Templates: templates,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	})
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.store.DeleteTemplate(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "template not found")
			return
		}
		s.logger.Error("delete template", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete template")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleInstantiateTemplate creates a new draft workflow from a template's
// definition, applying any customizations from the request body.
func (s *Server) handleInstantiateTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req instantiateTemplateRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tpl, err := s.store.GetTemplate(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "template not found")
		return
	}
	if err != nil {
		s.logger.Error("get template for instantiate", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get template")
		return
	}

	now := time.Now().UTC()
	wf := tpl.Definition
	wf.ID = model.NewID()
	wf.Status = model.WorkflowDraft
	wf.CreatedBy = req.CreatedBy
	wf.CreatedAt = now
	wf.UpdatedAt = now
	if req.Name != nil && *req.Name != "" {
		wf.Name = *req.Name
	}
	if req.Description != nil {
		wf.Description = *req.Description
	}
	if req.Tags != nil {
		wf.Tags = *req.Tags
	}

	if err := s.store.CreateWorkflow(r.Context(), &wf); err != nil {
		s.logger.Error("instantiate template", "template_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create workflow")
		return
	}

	// Usage tracking is best effort; the workflow is already created.
	if err := s.store.IncrementTemplateUsage(r.Context(), id); err != nil {
		s.logger.Error("increment template usage", "template_id", id, "error", err)
	}

	s.writeJSON(w, http.StatusCreated, &wf)
}
