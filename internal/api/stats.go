package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cascadehq/cascade/internal/model"
	"github.com/cascadehq/cascade/internal/store"
)

// statsResponse is the JSON response for GET /v1/stats.
type statsResponse struct {
	Workflows          int            `json:"workflows"`
	WorkflowsByStatus  map[string]int `json:"workflows_by_status"`
	Executions         int            `json:"executions"`
	ExecutionsByStatus map[string]int `json:"executions_by_status"`
	AvgExecutionMS     float64        `json:"avg_execution_ms"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("get stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Workflows:          stats.Workflows,
		WorkflowsByStatus:  stats.WorkflowsByStatus,
		Executions:         stats.Executions,
		ExecutionsByStatus: stats.ExecutionsByStatus,
		AvgExecutionMS:     stats.AvgExecutionMS,
	})
}

// workflowStatsResponse is the JSON response for GET /v1/workflows/{id}/stats.
// SuccessRate is the completed fraction of terminal executions; in-flight
// executions count toward ByStatus but not the rate.
type workflowStatsResponse struct {
	WorkflowID     string         `json:"workflow_id"`
	Executions     int            `json:"executions"`
	ByStatus       map[string]int `json:"by_status"`
	SuccessRate    float64        `json:"success_rate"`
	AvgExecutionMS float64        `json:"avg_execution_ms"`
}

func (s *Server) handleGetWorkflowStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.store.GetWorkflow(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "workflow not found")
			return
		}
		s.logger.Error("get workflow for stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get workflow")
		return
	}

	executions, total, err := s.store.ListExecutions(r.Context(), store.ExecutionFilter{WorkflowID: id})
	if err != nil {
		s.logger.Error("list executions for stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get workflow stats")
		return
	}

	resp := workflowStatsResponse{
		WorkflowID: id,
		Executions: total,
		ByStatus:   make(map[string]int),
	}
	var terminal, durations int
	var durationSum float64
	for _, ex := range executions {
		resp.ByStatus[ex.Status]++
		if model.TerminalStatus(ex.Status) {
			terminal++
		}
		if ex.DurationMS != nil {
			durationSum += float64(*ex.DurationMS)
			durations++
		}
	}
	if terminal > 0 {
		resp.SuccessRate = float64(resp.ByStatus[model.StatusCompleted]) / float64(terminal)
	}
	if durations > 0 {
		resp.AvgExecutionMS = durationSum / float64(durations)
	}

	s.writeJSON(w, http.StatusOK, resp)
}
