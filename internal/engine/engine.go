// Package engine is the composition root: it wires the directive
// parser, classifier, strategy picker, agent selector, workflow
// runtime, consensus engine, analytics, and retrieval into one facade.
// All state is engine-scoped; nothing here is global.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/maestro-ai/maestro/internal/analytics"
	"github.com/maestro-ai/maestro/internal/classify"
	"github.com/maestro-ai/maestro/internal/consensus"
	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/directive"
	"github.com/maestro-ai/maestro/internal/events"
	"github.com/maestro-ai/maestro/internal/ident"
	"github.com/maestro-ai/maestro/internal/lifecycle"
	"github.com/maestro-ai/maestro/internal/logging"
	"github.com/maestro-ai/maestro/internal/registry"
	"github.com/maestro-ai/maestro/internal/retrieval"
	"github.com/maestro-ai/maestro/internal/routing"
	"github.com/maestro-ai/maestro/internal/store"
	"github.com/maestro-ai/maestro/internal/workflow"
)

// Config carries the engine's collaborators. Store, Registry, and
// Invoker are required; everything else has a working default.
type Config struct {
	Store    *store.Store
	Registry *registry.Registry
	Invoker  core.AgentInvoker

	// Retrieval is optional; without it Context returns empty results.
	Retrieval *retrieval.Engine

	Thresholds       routing.Thresholds // zero value means defaults
	TopK             int
	ConsensusTimeout time.Duration
	EventBufferSize  int

	Logger *logging.Logger
}

// Engine is the orchestration facade.
type Engine struct {
	store     *store.Store
	registry  *registry.Registry
	parser    *directive.Parser
	bus       *events.Bus
	collector *analytics.Collector
	sampler   *analytics.SystemSampler
	consensus *consensus.Engine
	runtime   *workflow.Runtime
	retrieval *retrieval.Engine

	calibrator *routing.Calibrator
	selector   *routing.Selector

	mu         sync.Mutex // guards picker swaps on calibration
	picker     *routing.Picker
	thresholds routing.Thresholds

	logger *logging.Logger
}

// New assembles an engine from cfg.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, core.ErrInvalidInput("ENGINE", "store is required")
	}
	if cfg.Registry == nil {
		return nil, core.ErrInvalidInput("ENGINE", "registry is required")
	}
	if cfg.Invoker == nil {
		return nil, core.ErrInvalidInput("ENGINE", "invoker is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	thresholds := cfg.Thresholds
	if thresholds == (routing.Thresholds{}) {
		thresholds = routing.DefaultThresholds()
	}
	bufferSize := cfg.EventBufferSize
	if bufferSize <= 0 {
		bufferSize = 256
	}

	bus := events.New(bufferSize, logger)
	collector := analytics.NewCollector(logger)
	consensusEngine := consensus.NewEngine(cfg.Store.Proposals(), cfg.Store.Decisions(), logger)
	checkpoints := workflow.NewMemoryCheckpoints()

	e := &Engine{
		store:      cfg.Store,
		registry:   cfg.Registry,
		parser:     directive.NewParser(cfg.Registry, logger),
		bus:        bus,
		collector:  collector,
		sampler:    analytics.NewSystemSampler(),
		consensus:  consensusEngine,
		retrieval:  cfg.Retrieval,
		calibrator: routing.NewCalibrator(logger),
		selector:   routing.NewSelector(cfg.Registry, collector, cfg.TopK, logger),
		picker:     routing.NewPicker(thresholds, logger),
		thresholds: thresholds,
		logger:     logger.WithComponent("engine"),
	}

	e.runtime = workflow.NewRuntime(
		cfg.Store.Tasks(),
		lifecycle.New(),
		bus,
		e.route,
		checkpoints,
		logger,
		workflow.NewSoloExecutor(cfg.Invoker),
		workflow.NewConsensusExecutor(cfg.Invoker, consensusEngine, cfg.ConsensusTimeout, logger),
		workflow.NewSequentialExecutor(cfg.Invoker, checkpoints, logger),
		workflow.NewParallelExecutor(cfg.Invoker, logger),
	)
	return e, nil
}

// Submit parses the directive, classifies the draft, and runs the task
// through routing and execution. The returned result is terminal unless
// the workflow parked on external input.
func (e *Engine) Submit(ctx context.Context, draft core.TaskDraft, directiveText string) (*workflow.Result, error) {
	var d *core.UserDirective
	if directiveText != "" {
		parsed := e.parser.Parse(directiveText)
		d = &parsed
	}

	cls := classify.Classify(draft.Title + " " + draft.Description)
	if draft.Complexity == 0 {
		draft.Complexity = cls.Complexity
	}
	if draft.Risk == 0 {
		draft.Risk = cls.Risk
	}
	task := core.NewTask(draft)

	result, err := e.runtime.Execute(ctx, task, d)
	if err != nil {
		return nil, err
	}
	e.recordResult(ctx, result)
	return result, nil
}

// Resume continues a task parked on external input.
func (e *Engine) Resume(ctx context.Context, taskID ident.TaskID, checkpointID string) (*workflow.Result, error) {
	result, err := e.runtime.Resume(ctx, taskID, checkpointID)
	if err != nil {
		return nil, err
	}
	e.recordResult(ctx, result)
	return result, nil
}

// route is the runtime's routing hook: classify, pick, select.
func (e *Engine) route(ctx context.Context, task *core.Task, d *core.UserDirective) (core.RoutingDecision, error) {
	cls := classify.Classify(task.Title + " " + task.Description)

	e.mu.Lock()
	picker := e.picker
	e.mu.Unlock()

	strategy, rule := picker.Pick(task, d, &cls)
	decision, err := e.selector.Select(task, d, strategy)
	if err != nil {
		return core.RoutingDecision{}, err
	}
	decision.Rule = rule
	decision.Metadata["classified_complexity"] = fmt.Sprintf("%d", cls.Complexity)
	decision.Metadata["classified_risk"] = fmt.Sprintf("%d", cls.Risk)
	return decision, nil
}

// recordResult feeds analytics from a terminal result. Consensus runs
// also record the persisted decision's agreement outcome.
func (e *Engine) recordResult(ctx context.Context, result *workflow.Result) {
	switch result.Status {
	case core.TaskStatusCompleted, core.TaskStatusFailed:
	default:
		return
	}

	task, err := e.store.Tasks().FindByID(ctx, result.TaskID)
	var agents []ident.AgentID
	if err == nil {
		agents = task.Assignees
	}
	e.collector.RecordExecution(analytics.Execution{
		TaskID:   result.TaskID,
		Strategy: result.Strategy,
		Agents:   agents,
		Success:  result.Status == core.TaskStatusCompleted,
		Usage:    result.Usage,
		Duration: result.Duration,
	})

	if result.Strategy == core.StrategyConsensus {
		if decision, derr := e.store.Decisions().FindByTask(ctx, result.TaskID); derr == nil {
			e.collector.RecordDecision(decision.AgreementRate, decision.ConsensusAchieved)
		}
	}
}

// Calibrate adjusts the picker thresholds from accumulated strategy
// metrics and returns the thresholds now in force.
func (e *Engine) Calibrate() routing.Thresholds {
	metrics := e.collector.StrategyMetrics()

	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.calibrator.Calibrate(e.thresholds, metrics)
	if next != e.thresholds {
		e.logger.Info("thresholds recalibrated",
			"directive_confidence", next.DirectiveConfidence,
			"high_risk", next.HighRisk,
			"arch_complexity", next.ArchComplexity)
		e.thresholds = next
		e.picker = routing.NewPicker(next, e.logger)
	}
	return e.thresholds
}

// Context answers a retrieval query. Without a retrieval engine it
// returns no snippets.
func (e *Engine) Context(ctx context.Context, q retrieval.Query) ([]core.ContextSnippet, error) {
	if e.retrieval == nil {
		return nil, nil
	}
	return e.retrieval.Retrieve(ctx, q)
}

// Tasks exposes the task repository for read surfaces.
func (e *Engine) Tasks() core.TaskRepository { return e.store.Tasks() }

// Events exposes the engine's bus.
func (e *Engine) Events() *events.Bus { return e.bus }

// Analytics exposes the collector.
func (e *Engine) Analytics() *analytics.Collector { return e.collector }

// Report assembles the current performance report with a system
// snapshot attached.
func (e *Engine) Report() analytics.PerformanceReport {
	return e.collector.Report(e.sampler, analytics.DefaultAlertThresholds())
}

// RunHealthChecks refreshes agent statuses through the given checker.
func (e *Engine) RunHealthChecks(ctx context.Context, checker core.HealthChecker) {
	e.registry.RunHealthChecks(ctx, checker)
}

// Close shuts the engine down: the bus drains and closes. The store is
// owned by the caller and stays open.
func (e *Engine) Close() {
	e.bus.Close()
}
