package api

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cascadehq/cascade/internal/model"
)

func TestStreamEventsNotFound(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/executions/nonexistent/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStreamEventsFinishedExecution(t *testing.T) {
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

	// A terminal execution yields an immediately-ending stream.
	evResp, err := http.Get(ts.URL + "/v1/executions/" + exec.ID + "/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer evResp.Body.Close()

	if evResp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", evResp.StatusCode)
	}
	if ct := evResp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
}

func TestStreamEventsLiveExecution(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	// A delay action keeps the execution alive long enough to connect.
	body := `{
		"name": "slow",
		"status": "active",
		"actions": [
			{"id": "wait", "type": "delay", "config": {"delay_seconds": 0.5}},
			{"id": "notify", "type": "notification", "config": {"message": "done waiting"},
			 "dependencies": ["wait"]}
		]
	}`
	wf := createWorkflow(t, ts.URL, body)

	resp, err := http.Post(ts.URL+"/v1/workflows/"+wf.ID+"/execute", "application/json", nil)
	if err != nil {
		t.Fatalf("POST execute: %v", err)
	}
	var exec model.Execution
	decodeBody(t, resp, &exec)
	resp.Body.Close()

	evResp, err := http.Get(ts.URL + "/v1/executions/" + exec.ID + "/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer evResp.Body.Close()

	seen := make(map[string]bool)
	scanner := bufio.NewScanner(evResp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			seen[name] = true
			if name == "done" {
				break
			}
		}
	}

	for _, want := range []string{"action_finished", "execution_finished", "done"} {
		if !seen[want] {
			t.Errorf("missing SSE event %q (saw %v)", want, seen)
		}
	}
}
