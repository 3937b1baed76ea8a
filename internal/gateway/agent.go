package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPTaskExecutor runs agent tasks against an external agent service:
// POST {BaseURL}/agents/{id}/tasks with the task payload. A 404 from the
// service means the agent reference does not resolve.
type HTTPTaskExecutor struct {
	BaseURL string
	Client  *http.Client
}

// Compile-time interface satisfaction check.
var _ TaskExecutor = (*HTTPTaskExecutor)(nil)

// NewHTTPTaskExecutor creates an agent-service-backed task executor.
func NewHTTPTaskExecutor(baseURL string) *HTTPTaskExecutor {
	return &HTTPTaskExecutor{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

// Run submits the payload to the agent service and returns its result map.
func (x *HTTPTaskExecutor) Run(ctx context.Context, agentID string, payload map[string]any) (map[string]any, error) {
	if x.BaseURL == "" {
		return nil, fmt.Errorf("no agent service configured")
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode task payload: %w", err)
	}

	url := fmt.Sprintf("%s/agents/%s/tasks", x.BaseURL, agentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("agent %q: %w", agentID, ErrAgentNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("agent service returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read agent response: %w", err)
	}

	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode agent response: %w", err)
	}
	return result, nil
}
