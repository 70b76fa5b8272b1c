// Package workflow owns task execution: the per-task mutex, the
// lifecycle path from pending to a terminal status, and the strategy
// executors that actually run agents.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/events"
	"github.com/maestro-ai/maestro/internal/ident"
	"github.com/maestro-ai/maestro/internal/lifecycle"
	"github.com/maestro-ai/maestro/internal/logging"
)

// RouteFunc computes the routing decision for a task. The runtime
// persists and audits whatever it returns.
type RouteFunc func(ctx context.Context, task *core.Task, directive *core.UserDirective) (core.RoutingDecision, error)

// Result is the terminal report of one workflow execution.
type Result struct {
	TaskID      ident.TaskID
	Status      core.TaskStatus
	Strategy    core.RoutingStrategy
	Output      string
	Artifacts   map[string]string
	Usage       core.TokenUsage
	AgentsUsed  int
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Err         error
}

// Runtime drives tasks through routing, execution, and lifecycle.
type Runtime struct {
	tasks       core.TaskRepository
	states      *lifecycle.StateMachine
	bus         *events.Bus
	route       RouteFunc
	executors   map[core.RoutingStrategy]Executor
	checkpoints CheckpointStore
	mutexes     *keyedMutex
	logger      *logging.Logger
}

// NewRuntime assembles a workflow runtime.
func NewRuntime(tasks core.TaskRepository, states *lifecycle.StateMachine, bus *events.Bus, route RouteFunc, checkpoints CheckpointStore, logger *logging.Logger, executors ...Executor) *Runtime {
	if logger == nil {
		logger = logging.NewNop()
	}
	byStrategy := make(map[core.RoutingStrategy]Executor, len(executors))
	for _, e := range executors {
		byStrategy[e.Strategy()] = e
	}
	return &Runtime{
		tasks:       tasks,
		states:      states,
		bus:         bus,
		route:       route,
		executors:   byStrategy,
		checkpoints: checkpoints,
		mutexes:     newKeyedMutex(),
		logger:      logger.WithComponent("workflow"),
	}
}

// Execute runs a new task end to end. The per-task mutex is held for
// the whole lifecycle, including suspension on agent calls, so all
// transitions and events for one task are totally ordered.
func (r *Runtime) Execute(ctx context.Context, task *core.Task, directive *core.UserDirective) (*Result, error) {
	release, err := r.mutexes.Lock(ctx, string(task.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	if err := r.tasks.Insert(ctx, task); err != nil {
		return nil, core.ErrPersistence("inserting task", err).WithDetail("task_id", string(task.ID))
	}
	r.bus.Publish(events.NewTaskCreatedEvent(string(task.ID), task.Title, string(task.Type)))

	return r.run(ctx, task, directive, nil)
}

// Resume re-enters a waiting task at the latest checkpoint at or
// before checkpointID (empty means the newest). The same mutex and
// state-machine path apply as in Execute.
func (r *Runtime) Resume(ctx context.Context, taskID ident.TaskID, checkpointID string) (*Result, error) {
	release, err := r.mutexes.Lock(ctx, string(taskID))
	if err != nil {
		return nil, err
	}
	defer release()

	task, err := r.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != core.TaskStatusWaitingInput {
		return nil, core.ErrConflict("only waiting tasks can resume").
			WithDetail("task_id", string(taskID)).
			WithDetail("status", string(task.Status))
	}

	var resume *Checkpoint
	if r.checkpoints != nil {
		resume, err = r.checkpoints.LatestUpTo(ctx, taskID, checkpointID)
		if err != nil {
			return nil, err
		}
	}

	decision := core.RoutingDecision{
		Strategy:     task.Strategy,
		Participants: task.Assignees,
	}
	if len(task.Assignees) > 0 {
		decision.PrimaryAgent = task.Assignees[0]
	}
	return r.execute(ctx, task, decision, core.TaskStatusWaitingInput, resume)
}

// run routes a freshly inserted pending task and executes it.
func (r *Runtime) run(ctx context.Context, task *core.Task, directive *core.UserDirective, resume *Checkpoint) (*Result, error) {
	decision, err := r.route(ctx, task, directive)
	if err != nil {
		if core.IsNoEligibleAgent(err) {
			r.failTask(ctx, task, core.TaskStatusPending, err.Error())
		}
		return nil, err
	}

	task.Strategy = decision.Strategy
	task.Assignees = decision.Participants
	if task.Metadata == nil {
		task.Metadata = map[string]string{}
	}
	task.Metadata["routing_rule"] = decision.Rule
	task.Metadata["primary_agent"] = string(decision.PrimaryAgent)
	for k, v := range decision.Metadata {
		task.Metadata[k] = v
	}
	task.UpdatedAt = time.Now()
	if err := r.tasks.Update(ctx, task); err != nil {
		return nil, core.ErrPersistence("persisting routing", err).WithDetail("task_id", string(task.ID))
	}
	participants := make([]string, len(decision.Participants))
	for i, p := range decision.Participants {
		participants[i] = string(p)
	}
	r.bus.Publish(events.NewTaskRoutedEvent(
		string(task.ID), string(decision.Strategy), string(decision.PrimaryAgent), decision.Rule, participants))

	return r.execute(ctx, task, decision, core.TaskStatusPending, resume)
}

// execute transitions from -> in-progress, runs the executor, and
// lands the terminal status.
func (r *Runtime) execute(ctx context.Context, task *core.Task, decision core.RoutingDecision, from core.TaskStatus, resume *Checkpoint) (*Result, error) {
	started := time.Now()
	result := &Result{
		TaskID:    task.ID,
		Strategy:  decision.Strategy,
		StartedAt: started,
	}

	executor, ok := r.executors[decision.Strategy]
	if !ok {
		reason := "no executor registered for strategy " + string(decision.Strategy)
		r.failTask(ctx, task, from, reason)
		result.Status = core.TaskStatusFailed
		result.Err = core.ErrWorkflow(reason, nil).WithDetail("task_id", string(task.ID))
		result.CompletedAt = time.Now()
		result.Duration = result.CompletedAt.Sub(started)
		return result, nil
	}

	ok, err := r.transition(ctx, task, from, core.TaskStatusInProgress, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.ErrConflict("concurrent modification").WithDetail("task_id", string(task.ID))
	}
	r.bus.Publish(events.NewWorkflowStartedEvent(string(task.ID), string(decision.Strategy)))

	outcome, err := executor.Execute(ctx, task, decision, resume)
	if err != nil {
		// Cancellation re-raises untouched; the task stays in-progress
		// rather than being spuriously failed.
		return nil, err
	}

	result.Usage = outcome.Usage
	result.AgentsUsed = outcome.AgentsUsed
	result.Output = outcome.Step.Output
	result.Artifacts = outcome.Step.Artifacts
	result.CompletedAt = time.Now()
	result.Duration = result.CompletedAt.Sub(started)

	switch outcome.Step.Kind {
	case core.StepSuccess:
		if _, err := r.transition(ctx, task, core.TaskStatusInProgress, core.TaskStatusCompleted, nil); err != nil {
			return nil, err
		}
		result.Status = core.TaskStatusCompleted
		r.bus.Publish(events.NewWorkflowCompletedEvent(
			string(task.ID), string(decision.Strategy),
			outcome.Usage.Input, outcome.Usage.Output,
			result.Duration.Milliseconds(), outcome.AgentsUsed))
	case core.StepWaitingInput:
		if _, err := r.transition(ctx, task, core.TaskStatusInProgress, core.TaskStatusWaitingInput, nil); err != nil {
			return nil, err
		}
		result.Status = core.TaskStatusWaitingInput
	default:
		reason := "workflow failed"
		if outcome.Step.Err != nil {
			reason = outcome.Step.Err.Error()
		}
		if _, err := r.transition(ctx, task, core.TaskStatusInProgress, core.TaskStatusFailed,
			map[string]string{"reason": reason}); err != nil {
			return nil, err
		}
		result.Status = core.TaskStatusFailed
		result.Err = outcome.Step.Err
		r.bus.Publish(events.NewWorkflowFailedEvent(string(task.ID), string(decision.Strategy), reason))
	}

	r.logger.Info("workflow finished",
		"task_id", string(task.ID),
		"status", string(result.Status),
		"strategy", string(decision.Strategy),
		"duration_ms", result.Duration.Milliseconds(),
		"tokens", outcome.Usage.Total())
	return result, nil
}

// transition commits a status change: optimistic repository update
// first, then the state-machine history record, then (by the callers)
// the event. Returns false when the optimistic update lost a race.
func (r *Runtime) transition(ctx context.Context, task *core.Task, from, to core.TaskStatus, metadata map[string]string) (bool, error) {
	if !lifecycle.CanTransition(from, to) {
		return false, core.ErrConflict("invalid transition " + string(from) + " -> " + string(to)).
			WithDetail("task_id", string(task.ID))
	}
	ok, err := r.tasks.UpdateStatus(ctx, task.ID, to, from)
	if err != nil {
		return false, core.ErrPersistence("updating status", err).WithDetail("task_id", string(task.ID))
	}
	if !ok {
		return false, nil
	}
	task.Status = to
	if err := r.states.Transition(task.ID, from, to, metadata); err != nil {
		return false, err
	}
	r.bus.Publish(events.NewStateTransitionEvent(string(task.ID), string(from), string(to)))
	return true, nil
}

// failTask lands a task in failed with a rationale, tolerating races:
// a task already in a terminal state stays where it is.
func (r *Runtime) failTask(ctx context.Context, task *core.Task, from core.TaskStatus, reason string) {
	ok, err := r.transition(ctx, task, from, core.TaskStatusFailed, map[string]string{"reason": reason})
	if err != nil || !ok {
		r.logger.Warn("could not mark task failed",
			"task_id", string(task.ID), "reason", reason, "error", err)
		return
	}
	r.bus.Publish(events.NewWorkflowFailedEvent(string(task.ID), string(task.Strategy), reason))
}

// IsCancellation reports whether err is a cooperative cancellation.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
