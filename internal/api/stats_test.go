package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cascadehq/cascade/internal/model"
)

func TestGetStatsEmpty(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET /v1/stats: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var got statsResponse
	decodeBody(t, resp, &got)
	if got.Workflows != 0 || got.Executions != 0 {
		t.Errorf("got %+v, want zero counts", got)
	}
}

func TestGetStatsAfterExecution(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wf := createWorkflow(t, ts.URL, reportWorkflowBody)
	resp, err := http.Post(ts.URL+"/v1/workflows/"+wf.ID+"/execute", "application/json",
		bytes.NewBufferString(`{}`))
	if err != nil {
		t.Fatalf("POST execute: %v", err)
	}
	var exec model.Execution
	decodeBody(t, resp, &exec)
	resp.Body.Close()
	waitForExecution(t, srv, exec.ID, model.StatusCompleted, 5*time.Second)

	statsResp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET /v1/stats: %v", err)
	}
	defer statsResp.Body.Close()

	var got statsResponse
	decodeBody(t, statsResp, &got)
	if got.Workflows != 1 {
		t.Errorf("workflows = %d, want 1", got.Workflows)
	}
	if got.WorkflowsByStatus[model.WorkflowActive] != 1 {
		t.Errorf("workflows_by_status = %v, want one active", got.WorkflowsByStatus)
	}
	if got.Executions != 1 {
		t.Errorf("executions = %d, want 1", got.Executions)
	}
	if got.ExecutionsByStatus[model.StatusCompleted] != 1 {
		t.Errorf("executions_by_status = %v, want one completed", got.ExecutionsByStatus)
	}
}

func TestGetWorkflowStats(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wf := createWorkflow(t, ts.URL, reportWorkflowBody)
	resp, err := http.Post(ts.URL+"/v1/workflows/"+wf.ID+"/execute", "application/json", nil)
	if err != nil {
		t.Fatalf("POST execute: %v", err)
	}
	var exec model.Execution
	decodeBody(t, resp, &exec)
	resp.Body.Close()
	waitForExecution(t, srv, exec.ID, model.StatusCompleted, 5*time.Second)

	statsResp, err := http.Get(ts.URL + "/v1/workflows/" + wf.ID + "/stats")
	if err != nil {
		t.Fatalf("GET workflow stats: %v", err)
	}
	defer statsResp.Body.Close()

	if statsResp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", statsResp.StatusCode)
	}
	var got workflowStatsResponse
	decodeBody(t, statsResp, &got)
	if got.WorkflowID != wf.ID {
		t.Errorf("workflow_id = %q, want %q", got.WorkflowID, wf.ID)
	}
	if got.Executions != 1 {
		t.Errorf("executions = %d, want 1", got.Executions)
	}
	if got.ByStatus[model.StatusCompleted] != 1 {
		t.Errorf("by_status = %v, want one completed", got.ByStatus)
	}
	if got.SuccessRate != 1.0 {
		t.Errorf("success_rate = %v, want 1.0", got.SuccessRate)
	}
	if got.AvgExecutionMS < 0 {
		t.Errorf("avg_execution_ms = %v, want >= 0", got.AvgExecutionMS)
	}
}

func TestGetWorkflowStatsNotFound(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/workflows/nonexistent/stats")
	if err != nil {
		t.Fatalf("GET workflow stats: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
