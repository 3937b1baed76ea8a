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

const defaultHTTPTimeout = 30 * time.Second

// maxResponseBytes caps how much of an integration response is read into an
// action result.
const maxResponseBytes = 1 << 20 // 1 MB

// Webhook implements Integrations by delivering each operation as a JSON
// webhook to an integration hub at BaseURL (POST /email, /calendar, /files)
// and executing api_call requests directly.
type Webhook struct {
	BaseURL string
	Client  *http.Client
}

// Compile-time interface satisfaction check.
var _ Integrations = (*Webhook)(nil)

// NewWebhook creates a webhook-backed integration gateway.
func NewWebhook(baseURL string) *Webhook {
	return &Webhook{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// SendEmail delivers the message to the hub's email endpoint.
func (g *Webhook) SendEmail(ctx context.Context, msg EmailMessage) (string, error) {
	var resp struct {
		MessageID string `json:"message_id"`
	}
	if err := g.post(ctx, "email", "/email", msg, &resp); err != nil {
		return "", err
	}
	return resp.MessageID, nil
}

// CreateEvent delivers the event to the hub's calendar endpoint.
func (g *Webhook) CreateEvent(ctx context.Context, ev CalendarEvent) (string, error) {
	var resp struct {
		EventID string `json:"event_id"`
	}
	if err := g.post(ctx, "calendar", "/calendar", ev, &resp); err != nil {
		return "", err
	}
	return resp.EventID, nil
}

// ProcessFile asks the hub to run the named processor over a file.
func (g *Webhook) ProcessFile(ctx context.Context, path, processor string) (string, error) {
	req := struct {
		FilePath  string `json:"file_path"`
		Processor string `json:"processor_type"`
	}{FilePath: path, Processor: processor}

	var resp struct {
		Content string `json:"content"`
	}
	if err := g.post(ctx, "file", "/files", req, &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Call performs a generic HTTP request for an api_call action.
func (g *Webhook) Call(ctx context.Context, req APIRequest) (*APIResponse, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &IntegrationError{Service: "api", Err: fmt.Errorf("encode request body: %w", err)}
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, &IntegrationError{Service: "api", Err: err}
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := g.Client.Do(httpReq)
	if err != nil {
		return nil, &IntegrationError{Service: "api", Err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &IntegrationError{Service: "api", Err: fmt.Errorf("read response: %w", err)}
	}

	resp := &APIResponse{StatusCode: httpResp.StatusCode}
	var decoded any
	if json.Unmarshal(raw, &decoded) == nil {
		resp.Body = decoded
	} else {
		resp.Body = string(raw)
	}
	return resp, nil
}

// post delivers a JSON payload to a hub endpoint and decodes the JSON
// response into out.
func (g *Webhook) post(ctx context.Context, service, path string, payload, out any) error {
	if g.BaseURL == "" {
		return &IntegrationError{Service: service, Err: fmt.Errorf("no integration hub configured")}
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return &IntegrationError{Service: service, Err: fmt.Errorf("encode payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return &IntegrationError{Service: service, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return &IntegrationError{Service: service, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &IntegrationError{Service: service, Err: fmt.Errorf("hub returned status %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &IntegrationError{Service: service, Err: fmt.Errorf("read response: %w", err)}
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &IntegrationError{Service: service, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
