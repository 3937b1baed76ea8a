package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cascadehq/cascade/internal/model"
)

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// createWorkflow posts the given JSON body and returns the created workflow.
func createWorkflow(t *testing.T, baseURL, body string) *model.Workflow {
	t.Helper()
	resp, err := http.Post(baseURL+"/v1/workflows", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /v1/workflows: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create workflow status = %d, want 201", resp.StatusCode)
	}
	var wf model.Workflow
	decodeBody(t, resp, &wf)
	return &wf
}

const reportWorkflowBody = `{
	"name": "weekly report",
	"status": "active",
	"tags": ["reporting"],
	"actions": [
		{"id": "summarize", "name": "Summarize", "type": "agent_task", "agent_id": "writer",
		 "config": {"instruction": "summarize the week"}},
		{"id": "send", "name": "Send", "type": "email_send",
		 "config": {"to": ["team@example.com"], "subject": "Report: {topic}"},
		 "dependencies": ["summarize"]}
	]
}`

func TestCreateWorkflowValid(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wf := createWorkflow(t, ts.URL, reportWorkflowBody)

	if len(wf.ID) != 26 {
		t.Errorf("ID length = %d, want 26", len(wf.ID))
	}
	if wf.Status != model.WorkflowActive {
		t.Errorf("Status = %q, want active", wf.Status)
	}
	if len(wf.Actions) != 2 {
		t.Errorf("Actions = %d, want 2", len(wf.Actions))
	}
	if wf.CreatedAt.IsZero() || wf.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}
}

func TestCreateWorkflowDefaultsToDraft(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wf := createWorkflow(t, ts.URL, `{"name": "empty workflow"}`)
	if wf.Status != model.WorkflowDraft {
		t.Errorf("Status = %q, want draft", wf.Status)
	}
}

func TestCreateWorkflowMissingName(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/workflows", "application/json",
		bytes.NewBufferString(`{"actions": []}`))
	if err != nil {
		t.Fatalf("POST /v1/workflows: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	var errResp map[string]string
	decodeBody(t, resp, &errResp)
	if errResp["error"] == "" {
		t.Error("expected error message in response")
	}
}

func TestCreateWorkflowRejectsCycle(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body := `{
		"name": "cyclic",
		"actions": [
			{"id": "a", "type": "notification", "dependencies": ["b"]},
			{"id": "b", "type": "notification", "dependencies": ["a"]}
		]
	}`
	resp, err := http.Post(ts.URL+"/v1/workflows", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /v1/workflows: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	var errResp map[string]string
	decodeBody(t, resp, &errResp)
	if !strings.Contains(errResp["error"], "cycle") {
		t.Errorf("error = %q, want mention of cycle", errResp["error"])
	}
}

func TestCreateWorkflowRejectsUnknownActionType(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body := `{"name": "bad", "actions": [{"id": "a", "type": "teleport"}]}`
	resp, err := http.Post(ts.URL+"/v1/workflows", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /v1/workflows: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCreateWorkflowInvalidJSON(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/workflows", "application/json", bytes.NewBufferString("not json"))
	if err != nil {
		t.Fatalf("POST /v1/workflows: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetWorkflowExisting(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	created := createWorkflow(t, ts.URL, reportWorkflowBody)

	resp, err := http.Get(ts.URL + "/v1/workflows/" + created.ID)
	if err != nil {
		t.Fatalf("GET workflow: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var got model.Workflow
	decodeBody(t, resp, &got)
	if got.ID != created.ID || got.Name != "weekly report" {
		t.Errorf("got %q/%q, want created workflow", got.ID, got.Name)
	}
}

func TestGetWorkflowNotFound(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/workflows/nonexistent")
	if err != nil {
		t.Fatalf("GET workflow: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListWorkflowsFilterByStatus(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	createWorkflow(t, ts.URL, reportWorkflowBody)
	createWorkflow(t, ts.URL, `{"name": "a draft"}`)

	resp, err := http.Get(ts.URL + "/v1/workflows?status=active")
	if err != nil {
		t.Fatalf("GET /v1/workflows: %v", err)
	}
	defer resp.Body.Close()

	var got listWorkflowsResponse
	decodeBody(t, resp, &got)
	if got.Total != 1 {
		t.Errorf("total = %d, want 1", got.Total)
	}
	if len(got.Workflows) != 1 || got.Workflows[0].Status != model.WorkflowActive {
		t.Errorf("workflows = %+v, want one active", got.Workflows)
	}
}

func TestUpdateWorkflowPatch(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	created := createWorkflow(t, ts.URL, `{"name": "to activate"}`)

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/v1/workflows/"+created.ID,
		bytes.NewBufferString(`{"status": "active"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT workflow: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var got model.Workflow
	decodeBody(t, resp, &got)
	if got.Status != model.WorkflowActive {
		t.Errorf("Status = %q, want active", got.Status)
	}
	// Fields absent from the patch are untouched.
	if got.Name != "to activate" {
		t.Errorf("Name = %q, want unchanged", got.Name)
	}
	if !got.UpdatedAt.After(created.UpdatedAt) {
		t.Error("UpdatedAt should advance on update")
	}
}

func TestUpdateWorkflowRejectsInvalidActions(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	created := createWorkflow(t, ts.URL, reportWorkflowBody)

	body := `{"actions": [{"id": "a", "type": "notification", "dependencies": ["ghost"]}]}`
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/v1/workflows/"+created.ID,
		bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT workflow: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDeleteWorkflow(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	created := createWorkflow(t, ts.URL, reportWorkflowBody)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/workflows/"+created.ID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE workflow: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}

	getResp, err := http.Get(ts.URL + "/v1/workflows/" + created.ID)
	if err != nil {
		t.Fatalf("GET deleted workflow: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusNotFound {
		t.Errorf("status after delete = %d, want 404", getResp.StatusCode)
	}
}

func TestDeleteWorkflowNotFound(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/workflows/nonexistent", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE workflow: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestValidateWorkflowDryRun(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/workflows/validate", "application/json",
		bytes.NewBufferString(reportWorkflowBody))
	if err != nil {
		t.Fatalf("POST /v1/workflows/validate: %v", err)
	}
	defer resp.Body.Close()

	var got validateWorkflowResponse
	decodeBody(t, resp, &got)
	if !got.Valid || got.Error != "" {
		t.Errorf("got %+v, want valid", got)
	}

	// Nothing is persisted by a dry run.
	listResp, err := http.Get(ts.URL + "/v1/workflows")
	if err != nil {
		t.Fatalf("GET /v1/workflows: %v", err)
	}
	defer listResp.Body.Close()
	var list listWorkflowsResponse
	decodeBody(t, listResp, &list)
	if list.Total != 0 {
		t.Errorf("total after dry run = %d, want 0", list.Total)
	}
}

func TestValidateWorkflowDryRunInvalid(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body := `{"name": "bad", "actions": [
		{"id": "a", "type": "notification", "dependencies": ["a"]}
	]}`
	resp, err := http.Post(ts.URL+"/v1/workflows/validate", "application/json",
		bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /v1/workflows/validate: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var got validateWorkflowResponse
	decodeBody(t, resp, &got)
	if got.Valid || got.Error == "" {
		t.Errorf("got %+v, want invalid with error", got)
	}
}
