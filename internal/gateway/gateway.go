// Package gateway defines the collaborator interfaces the workflow engine
// calls out to: an external task executor for agent actions and an
// integration gateway for email, calendar, file, and generic API actions.
// The engine only needs "it runs and returns a result or fails"; everything
// behind these interfaces is someone else's service.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

// ErrAgentNotFound is returned when an agent reference does not resolve.
var ErrAgentNotFound = errors.New("agent not found")

// IntegrationError wraps a failure from an external integration, tagged with
// the service that failed.
type IntegrationError struct {
	Service string
	Err     error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("%s integration: %v", e.Service, e.Err)
}

func (e *IntegrationError) Unwrap() error { return e.Err }

// EmailMessage is an outbound email request.
type EmailMessage struct {
	To      []string `json:"to"`
	CC      []string `json:"cc,omitempty"`
	BCC     []string `json:"bcc,omitempty"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// CalendarEvent is an outbound calendar event request.
type CalendarEvent struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	StartTime   string   `json:"start_time,omitempty"`
	EndTime     string   `json:"end_time,omitempty"`
	Attendees   []string `json:"attendees,omitempty"`
}

// APIRequest is a generic outbound HTTP request made on behalf of an
// api_call action.
type APIRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    any               `json:"body,omitempty"`
}

// APIResponse is the observed response of an APIRequest. Body holds the
// decoded JSON value when the response is JSON, otherwise the raw text.
type APIResponse struct {
	StatusCode int `json:"status_code"`
	Body       any `json:"body,omitempty"`
}

// TaskExecutor runs a task on an external agent identified by agentID.
// Implementations return ErrAgentNotFound when the reference does not
// resolve.
type TaskExecutor interface {
	Run(ctx context.Context, agentID string, payload map[string]any) (map[string]any, error)
}

// Integrations is the gateway for third-party service actions. Each call
// corresponds to exactly one workflow action; failures are reported as
// *IntegrationError.
type Integrations interface {
	// SendEmail delivers a message and returns the provider message ID.
	SendEmail(ctx context.Context, msg EmailMessage) (string, error)
	// CreateEvent creates a calendar event and returns the event ID.
	CreateEvent(ctx context.Context, ev CalendarEvent) (string, error)
	// ProcessFile runs the named processor over a file and returns the
	// extracted content.
	ProcessFile(ctx context.Context, path, processor string) (string, error)
	// Call performs a generic HTTP request.
	Call(ctx context.Context, req APIRequest) (*APIResponse, error)
}
