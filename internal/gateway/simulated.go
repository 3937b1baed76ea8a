package gateway

import (
	"context"
	"log/slog"

	"github.com/cascadehq/cascade/internal/model"
)

// Simulated implements both TaskExecutor and Integrations without any
// external service. Every operation succeeds with a canned result and is
// logged. Used when no hub or agent service is configured, so workflows can
// be exercised end to end in development.
type Simulated struct {
	Logger *slog.Logger
}

var (
	_ Integrations = (*Simulated)(nil)
	_ TaskExecutor = (*Simulated)(nil)
)

// NewSimulated creates a simulated gateway logging through logger.
func NewSimulated(logger *slog.Logger) *Simulated {
	return &Simulated{Logger: logger}
}

func (g *Simulated) Run(_ context.Context, agentID string, payload map[string]any) (map[string]any, error) {
	g.Logger.Info("simulated agent task", "agent_id", agentID)
	return map[string]any{"agent_id": agentID, "response": "simulated", "input": payload}, nil
}

func (g *Simulated) SendEmail(_ context.Context, msg EmailMessage) (string, error) {
	g.Logger.Info("simulated email", "to", msg.To, "subject", msg.Subject)
	return "sim-" + model.NewID(), nil
}

func (g *Simulated) CreateEvent(_ context.Context, ev CalendarEvent) (string, error) {
	g.Logger.Info("simulated calendar event", "title", ev.Title)
	return "sim-" + model.NewID(), nil
}

func (g *Simulated) ProcessFile(_ context.Context, path, processor string) (string, error) {
	g.Logger.Info("simulated file processing", "path", path, "processor", processor)
	return "", nil
}

func (g *Simulated) Call(_ context.Context, req APIRequest) (*APIResponse, error) {
	g.Logger.Info("simulated api call", "method", req.Method, "url", req.URL)
	return &APIResponse{StatusCode: 200}, nil
}
