package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cascadehq/cascade/internal/dispatch"
	"github.com/cascadehq/cascade/internal/model"
	"github.com/cascadehq/cascade/internal/store"
)

// ErrNotActive is returned when a workflow is triggered while not in the
// active status.
var ErrNotActive = errors.New("workflow is not active")

// Engine schedules workflow executions. Each execution runs in its own
// goroutine that exclusively owns the execution record until it reaches a
// terminal status; the registry of in-flight executions is owned by the
// engine instance, so independent engines (as in tests) never interfere.
type Engine struct {
	store      store.Store
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	broker     *EventBroker
	wg         sync.WaitGroup

	mu      sync.Mutex
	running map[string]runningExecution
}

// runningExecution is a cancellable handle for one in-flight execution.
type runningExecution struct {
	workflowID string
	cancel     context.CancelFunc
}

// NewEngine creates a new execution engine.
func NewEngine(s store.Store, d *dispatch.Dispatcher, logger *slog.Logger) *Engine {
	return &Engine{
		store:      s,
		dispatcher: d,
		logger:     logger,
		broker:     NewEventBroker(),
		running:    make(map[string]runningExecution),
	}
}

// Broker returns the engine's event broker for SSE subscription.
func (e *Engine) Broker() *EventBroker {
	return e.broker
}

// Execute creates a pending execution for the workflow and launches the
// scheduler goroutine. The scheduler operates on snapshots of the workflow
// and execution, so later edits to the definition do not affect a run
// already in flight.
func (e *Engine) Execute(ctx context.Context, workflowID string, triggerData map[string]any) (*model.Execution, error) {
	wf, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if wf.Status != model.WorkflowActive {
		return nil, ErrNotActive
	}

	exec := &model.Execution{
		ID:            model.NewID(),
		WorkflowID:    wf.ID,
		Status:        model.StatusPending,
		TriggerData:   triggerData,
		ActionResults: make(map[string]model.ActionResult, len(wf.Actions)),
		CreatedAt:     time.Now().UTC(),
	}
	if err := e.store.CreateExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("create execution: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.running[exec.ID] = runningExecution{workflowID: wf.ID, cancel: cancel}
	e.mu.Unlock()

	execCopy := *exec
	execCopy.ActionResults = make(map[string]model.ActionResult, len(wf.Actions))
	wfCopy := *wf

	e.logger.Info("execution started", "execution_id", exec.ID, "workflow_id", wf.ID)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(runCtx, &wfCopy, &execCopy)
	}()

	return exec, nil
}

// Cancel requests cancellation of a running execution. The request takes
// effect at the scheduler's next round boundary; in-flight actions from the
// current round finish first. Cancelling an unknown or already-terminal
// execution is a no-op.
func (e *Engine) Cancel(executionID string) {
	e.mu.Lock()
	r, ok := e.running[executionID]
	e.mu.Unlock()
	if ok {
		r.cancel()
	}
}

// CancelWorkflowExecutions requests cancellation of every in-flight
// execution of the given workflow. Called before a workflow definition is
// deleted.
func (e *Engine) CancelWorkflowExecutions(workflowID string) {
	e.mu.Lock()
	for _, r := range e.running {
		if r.workflowID == workflowID {
			r.cancel()
		}
	}
	e.mu.Unlock()
}

// Wait blocks until all in-flight execution goroutines complete.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// run drives one execution from running to a terminal status using
// round-based dependency resolution: each round dispatches every ready
// action concurrently, waits for all of them, folds the results back in,
// and persists a progress checkpoint.
func (e *Engine) run(ctx context.Context, wf *model.Workflow, exec *model.Execution) {
	defer func() {
		e.mu.Lock()
		delete(e.running, exec.ID)
		e.mu.Unlock()
		e.broker.Close(exec.ID)
	}()

	now := time.Now().UTC()
	exec.Status = model.StatusRunning
	exec.StartedAt = &now
	if err := e.store.UpdateExecution(context.Background(), exec); err != nil {
		e.logger.Error("failed to transition to running", "execution_id", exec.ID, "error", err)
		e.finish(exec, model.StatusFailed, fmt.Sprintf("failed to start: %v", err))
		return
	}
	e.broker.Publish(exec.ID, Event{Type: EventExecutionStarted, ExecutionID: exec.ID, Status: model.StatusRunning})

	completed := make(map[string]bool, len(wf.Actions))

	// Dispatch context: trigger data plus the result of every completed
	// action keyed by action ID. Mutated only between rounds.
	dctx := make(map[string]any, len(exec.TriggerData)+len(wf.Actions))
	for k, v := range exec.TriggerData {
		dctx[k] = v
	}

	round := 0
	for len(completed) < len(wf.Actions) {
		// Cancellation is cooperative and observed only here, between
		// rounds. In-flight actions always run to their own completion.
		select {
		case <-ctx.Done():
			e.logger.Info("execution cancelled", "execution_id", exec.ID, "rounds", round)
			e.finish(exec, model.StatusCancelled, "")
			return
		default:
		}

		var ready []model.Action
		for _, a := range wf.Actions {
			if completed[a.ID] {
				continue
			}
			if depsCompleted(a, completed) {
				ready = append(ready, a)
			}
		}

		// Unreachable on a validated graph, but checked rather than
		// assumed: a cycle that slipped past validation must not spin
		// forever.
		if len(ready) == 0 {
			e.logger.Error("stalled graph", "execution_id", exec.ID,
				"completed", len(completed), "total", len(wf.Actions))
			e.finish(exec, model.StatusFailed, "stalled graph: no runnable actions remain")
			return
		}

		round++
		e.broker.Publish(exec.ID, Event{Type: EventRoundStarted, ExecutionID: exec.ID, Round: round})

		results, fatal := e.runRound(ready, exec, dctx)
		for id, res := range results {
			exec.ActionResults[id] = res
		}
		if fatal != nil {
			e.logger.Error("execution aborted", "execution_id", exec.ID, "error", fatal)
			e.finish(exec, model.StatusFailed, fatal.Error())
			return
		}

		for id, res := range results {
			completed[id] = true
			if res.Failed() {
				dctx[id] = map[string]any{"error": res.Error}
			} else {
				dctx[id] = res.Output
			}
			e.broker.Publish(exec.ID, Event{
				Type:        EventActionFinished,
				ExecutionID: exec.ID,
				Round:       round,
				ActionID:    id,
				Error:       res.Error,
			})
		}

		// Round checkpoint: external readers observe monotonically
		// increasing progress between here and the next round.
		if err := e.store.UpdateExecution(context.Background(), exec); err != nil {
			e.logger.Error("failed to persist round results",
				"execution_id", exec.ID, "round", round, "error", err)
		}
	}

	executionRounds.Observe(float64(round))
	e.finish(exec, model.StatusCompleted, "")
}

// runRound dispatches every ready action concurrently and waits for all of
// them (fan-out/fan-in). Handler errors become soft failures in the result
// map; a panic is an engine fault reported as fatal.
func (e *Engine) runRound(actions []model.Action, exec *model.Execution, dctx map[string]any) (map[string]model.ActionResult, error) {
	var (
		mu      sync.Mutex
		results = make(map[string]model.ActionResult, len(actions))
		fatal   error
	)

	var wg sync.WaitGroup
	for _, a := range actions {
		wg.Add(1)
		go func(a model.Action) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					fatal = fmt.Errorf("action %s panicked: %v", a.ID, r)
					mu.Unlock()
				}
			}()

			start := time.Now()
			out, err := e.dispatcher.Dispatch(context.Background(), a, exec, dctx)
			elapsed := time.Since(start)

			res := model.ActionResult{DurationMS: int(elapsed.Milliseconds())}
			if err != nil {
				res.Error = err.Error()
				e.logger.Error("action failed",
					"execution_id", exec.ID, "action_id", a.ID, "error", err)
				actionsTotal.WithLabelValues(a.Type, outcomeFailure).Inc()
			} else {
				res.Output = out
				actionsTotal.WithLabelValues(a.Type, outcomeSuccess).Inc()
			}
			actionDuration.WithLabelValues(a.Type).Observe(elapsed.Seconds())

			mu.Lock()
			results[a.ID] = res
			mu.Unlock()
		}(a)
	}
	wg.Wait()

	return results, fatal
}

// finish records a terminal status. Guarded by the transition table so a
// terminal execution can never be moved again.
func (e *Engine) finish(exec *model.Execution, status, errMsg string) {
	if !model.ValidTransition(exec.Status, status) {
		e.logger.Error("invalid status transition",
			"execution_id", exec.ID, "from", exec.Status, "to", status)
		return
	}

	now := time.Now().UTC()
	exec.Status = status
	exec.CompletedAt = &now
	exec.ErrorMessage = errMsg
	if exec.StartedAt != nil {
		d := int(now.Sub(*exec.StartedAt).Milliseconds())
		exec.DurationMS = &d
	}

	if err := e.store.UpdateExecution(context.Background(), exec); err != nil {
		e.logger.Error("failed to update terminal execution",
			"execution_id", exec.ID, "error", err)
	}

	executionsTotal.WithLabelValues(status).Inc()
	e.broker.Publish(exec.ID, Event{
		Type:        EventExecutionFinished,
		ExecutionID: exec.ID,
		Status:      status,
		Error:       errMsg,
	})
	e.logger.Info("execution finished", "execution_id", exec.ID, "status", status)
}

func depsCompleted(a model.Action, completed map[string]bool) bool {
	for _, dep := range a.Dependencies {
		if !completed[dep] {
			return false
		}
	}
	return true
}
