// Package dispatch selects and invokes the handler for one workflow action.
// The dispatcher owns template substitution and per-action timeout
// enforcement; every error it returns is recorded by the scheduler as that
// action's result and never aborts the execution.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cascadehq/cascade/internal/expr"
	"github.com/cascadehq/cascade/internal/gateway"
	"github.com/cascadehq/cascade/internal/model"
)

// DefaultTimeoutS is the per-action timeout in seconds when the action
// declares none.
const DefaultTimeoutS = 300

// UnsupportedTypeError reports an action type the dispatcher has no handler
// for.
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported action type %q", e.Type)
}

// Dispatcher routes actions to their handlers.
type Dispatcher struct {
	agents       gateway.TaskExecutor
	integrations gateway.Integrations
	logger       *slog.Logger
}

// NewDispatcher creates a dispatcher backed by the given collaborators.
func NewDispatcher(agents gateway.TaskExecutor, integrations gateway.Integrations, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		agents:       agents,
		integrations: integrations,
		logger:       logger,
	}
}

// Dispatch runs one action and returns its output map. The context passed
// in is the union of the execution's trigger data and the results of
// actions completed in earlier rounds. Each action runs under its own
// deadline; a timed-out action fails like any other soft failure.
func (d *Dispatcher) Dispatch(ctx context.Context, action model.Action, exec *model.Execution, dctx map[string]any) (map[string]any, error) {
	timeoutS := DefaultTimeoutS
	if action.TimeoutSeconds > 0 {
		timeoutS = action.TimeoutSeconds
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutS)*time.Second)
	defer cancel()

	d.logger.Info("dispatching action",
		"execution_id", exec.ID,
		"action_id", action.ID,
		"action_type", action.Type,
	)

	switch action.Type {
	case model.ActionAgentTask:
		return d.runAgentTask(ctx, action, exec, dctx)
	case model.ActionEmailSend:
		return d.runEmailSend(ctx, action, dctx)
	case model.ActionCalendarCreate:
		return d.runCalendarCreate(ctx, action, dctx)
	case model.ActionFileProcess:
		return d.runFileProcess(ctx, action)
	case model.ActionNotification:
		return d.runNotification(action, dctx)
	case model.ActionAPICall:
		return d.runAPICall(ctx, action)
	case model.ActionCondition:
		return d.runCondition(action, dctx)
	case model.ActionDelay:
		return d.runDelay(ctx, action)
	default:
		return nil, &UnsupportedTypeError{Type: action.Type}
	}
}

func (d *Dispatcher) runAgentTask(ctx context.Context, action model.Action, exec *model.Execution, dctx map[string]any) (map[string]any, error) {
	if action.AgentID == "" {
		return nil, fmt.Errorf("agent task %q has no agent reference", action.ID)
	}

	payload := map[string]any{
		"instruction":           configString(action.Config, "instruction"),
		"context":               dctx,
		"workflow_execution_id": exec.ID,
	}

	result, err := d.agents.Run(ctx, action.AgentID, payload)
	if err != nil {
		return nil, err
	}
	return map[string]any{"agent_result": result}, nil
}

func (d *Dispatcher) runEmailSend(ctx context.Context, action model.Action, dctx map[string]any) (map[string]any, error) {
	msg := gateway.EmailMessage{
		To:      configStrings(action.Config, "to"),
		CC:      configStrings(action.Config, "cc"),
		BCC:     configStrings(action.Config, "bcc"),
		Subject: Substitute(configString(action.Config, "subject"), dctx),
		Body:    Substitute(configString(action.Config, "body"), dctx),
	}

	messageID, err := d.integrations.SendEmail(ctx, msg)
	if err != nil {
		return nil, err
	}
	return map[string]any{"email_sent": true, "message_id": messageID}, nil
}

func (d *Dispatcher) runCalendarCreate(ctx context.Context, action model.Action, dctx map[string]any) (map[string]any, error) {
	ev := gateway.CalendarEvent{
		Title:       Substitute(configString(action.Config, "title"), dctx),
		Description: Substitute(configString(action.Config, "description"), dctx),
		StartTime:   configString(action.Config, "start_time"),
		EndTime:     configString(action.Config, "end_time"),
		Attendees:   configStrings(action.Config, "attendees"),
	}

	eventID, err := d.integrations.CreateEvent(ctx, ev)
	if err != nil {
		return nil, err
	}
	return map[string]any{"event_created": true, "event_id": eventID}, nil
}

func (d *Dispatcher) runFileProcess(ctx context.Context, action model.Action) (map[string]any, error) {
	path := configString(action.Config, "file_path")
	if path == "" {
		return nil, fmt.Errorf("file process %q has no file_path", action.ID)
	}

	processor := configString(action.Config, "processor_type")
	if processor == "" {
		processor = "text_extraction"
	}

	content, err := d.integrations.ProcessFile(ctx, path, processor)
	if err != nil {
		return nil, err
	}
	return map[string]any{"file_processed": true, "content": content}, nil
}

// runNotification emits the substituted message through the logger.
// Notifications are best-effort and never fail.
func (d *Dispatcher) runNotification(action model.Action, dctx map[string]any) (map[string]any, error) {
	message := Substitute(configString(action.Config, "message"), dctx)
	d.logger.Info("notification", "action_id", action.ID, "message", message)
	return map[string]any{"notification_sent": true, "message": message}, nil
}

func (d *Dispatcher) runAPICall(ctx context.Context, action model.Action) (map[string]any, error) {
	url := configString(action.Config, "url")
	if url == "" {
		return nil, fmt.Errorf("api call %q has no url", action.ID)
	}

	req := gateway.APIRequest{
		Method:  configString(action.Config, "method"),
		URL:     url,
		Headers: configStringMap(action.Config, "headers"),
		Body:    action.Config["data"],
	}

	resp, err := d.integrations.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"api_response": map[string]any{
			"status_code": resp.StatusCode,
			"body":        resp.Body,
		},
	}, nil
}

func (d *Dispatcher) runCondition(action model.Action, dctx map[string]any) (map[string]any, error) {
	condition := configString(action.Config, "condition")
	result, err := expr.Eval(condition, dctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"condition_result": result}, nil
}

// runDelay suspends this action only; sibling actions in the same round keep
// running. The action's own deadline still applies.
func (d *Dispatcher) runDelay(ctx context.Context, action model.Action) (map[string]any, error) {
	seconds := configFloat(action.Config, "delay_seconds")
	select {
	case <-time.After(time.Duration(seconds * float64(time.Second))):
	case <-ctx.Done():
		return nil, fmt.Errorf("delay interrupted: %w", ctx.Err())
	}
	return map[string]any{"delayed": seconds}, nil
}

// configString reads a string config value; missing or non-string values
// read as "".
func configString(config map[string]any, key string) string {
	s, _ := config[key].(string)
	return s
}

// configStrings reads a string-slice config value, accepting both []string
// and the []any produced by JSON decoding.
func configStrings(config map[string]any, key string) []string {
	switch v := config[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// configStringMap reads a map config value with string values, accepting
// the map[string]any produced by JSON decoding.
func configStringMap(config map[string]any, key string) map[string]string {
	raw, ok := config[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// configFloat reads a numeric config value, accepting JSON float64s and Go
// ints.
func configFloat(config map[string]any, key string) float64 {
	switch v := config[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
