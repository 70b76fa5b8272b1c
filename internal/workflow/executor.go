package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maestro-ai/maestro/internal/consensus"
	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/ident"
	"github.com/maestro-ai/maestro/internal/logging"
)

// Outcome is what an executor hands back to the runtime: a step
// variant plus execution accounting. Cancellation is never an Outcome;
// it surfaces as the error.
type Outcome struct {
	Step       core.WorkflowStep
	Usage      core.TokenUsage
	AgentsUsed int
}

// Executor runs a routed task under one strategy.
type Executor interface {
	Strategy() core.RoutingStrategy
	Execute(ctx context.Context, task *core.Task, decision core.RoutingDecision, resume *Checkpoint) (Outcome, error)
}

// invoke wraps an agent call, separating cancellation from failure:
// a cancelled context re-raises, anything else becomes a result error.
func invoke(ctx context.Context, invoker core.AgentInvoker, agentID ident.AgentID, task *core.Task, inputs map[string]string) (core.AgentResult, error) {
	result, err := invoker.Invoke(ctx, agentID, task, inputs)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.Canceled) {
			return core.AgentResult{}, ctxErr
		}
		result.Err = err
	}
	return result, nil
}

// SoloExecutor invokes the primary agent once.
type SoloExecutor struct {
	invoker core.AgentInvoker
}

func NewSoloExecutor(invoker core.AgentInvoker) *SoloExecutor {
	return &SoloExecutor{invoker: invoker}
}

func (e *SoloExecutor) Strategy() core.RoutingStrategy { return core.StrategySolo }

func (e *SoloExecutor) Execute(ctx context.Context, task *core.Task, decision core.RoutingDecision, _ *Checkpoint) (Outcome, error) {
	result, err := invoke(ctx, e.invoker, decision.PrimaryAgent, task, nil)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Usage: result.Usage, AgentsUsed: 1}
	if result.Err != nil {
		out.Step = core.Failure(core.ErrWorkflow("agent invocation failed", result.Err).
			WithDetail("agent_id", string(decision.PrimaryAgent)))
		return out, nil
	}
	out.Step = core.Success(result.Output, map[string]string{
		"agent": string(decision.PrimaryAgent),
	})
	return out, nil
}

// ConsensusExecutor fans out to every participant, feeds proposals to
// the consensus engine as they arrive, and returns the winner.
type ConsensusExecutor struct {
	invoker core.AgentInvoker
	engine  *consensus.Engine
	timeout time.Duration
	logger  *logging.Logger

	// onFirstProposal, when set, fires once when the earliest proposal
	// lands. Used for progress surfacing.
	onFirstProposal func(taskID ident.TaskID)
}

func NewConsensusExecutor(invoker core.AgentInvoker, engine *consensus.Engine, timeout time.Duration, logger *logging.Logger) *ConsensusExecutor {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ConsensusExecutor{
		invoker: invoker,
		engine:  engine,
		timeout: timeout,
		logger:  logger.WithComponent("consensus-executor"),
	}
}

func (e *ConsensusExecutor) Strategy() core.RoutingStrategy { return core.StrategyConsensus }

func (e *ConsensusExecutor) Execute(ctx context.Context, task *core.Task, decision core.RoutingDecision, _ *Checkpoint) (Outcome, error) {
	invokeCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var (
		mu       sync.Mutex
		usage    core.TokenUsage
		notified bool
	)
	g, gctx := errgroup.WithContext(invokeCtx)
	for _, agentID := range decision.Participants {
		g.Go(func() error {
			result, err := invoke(gctx, e.invoker, agentID, task, nil)
			if err != nil {
				return err // cancellation only
			}
			mu.Lock()
			usage = usage.Add(result.Usage)
			mu.Unlock()
			if result.Err != nil {
				e.logger.Warn("participant failed",
					"task_id", string(task.ID), "agent_id", string(agentID), "error", result.Err)
				return nil
			}
			_, serr := e.engine.Submit(ctx, &core.Proposal{
				ID:         ident.NewProposalID(),
				TaskID:     task.ID,
				AgentID:    agentID,
				InputType:  core.ProposalInputDirect,
				Content:    result.Output,
				Confidence: result.Confidence,
				CreatedAt:  time.Now().UTC(),
			})
			if serr != nil {
				return serr
			}
			mu.Lock()
			first := !notified
			notified = true
			mu.Unlock()
			if first && e.onFirstProposal != nil {
				e.onFirstProposal(task.ID)
			}
			return nil
		})
	}
	err := g.Wait()
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return Outcome{}, ctx.Err()
	}
	out := Outcome{Usage: usage, AgentsUsed: len(decision.Participants)}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		out.Step = core.Failure(core.ErrWorkflow("consensus round failed", err))
		return out, nil
	}

	decisionRec, derr := e.engine.Decide(ctx, task.ID)
	if derr != nil {
		reason := derr
		if invokeCtx.Err() != nil {
			reason = core.ErrTimeout("consensus window expired with no proposals")
		}
		out.Step = core.Failure(reason)
		return out, nil
	}
	winner, _, werr := e.engine.Winner(ctx, task.ID)
	if werr != nil {
		out.Step = core.Failure(werr)
		return out, nil
	}
	out.Step = core.Success(winner.Content, map[string]string{
		"winner_agent":   string(winner.AgentID),
		"agreement_rate": fmt.Sprintf("%.2f", decisionRec.AgreementRate),
		"consensus":      fmt.Sprintf("%t", decisionRec.ConsensusAchieved),
	})
	return out, nil
}

// SequentialExecutor chains participants in order; each stage receives
// the previous stage's output. The first failing stage aborts the
// chain. A checkpoint is written after every completed stage.
type SequentialExecutor struct {
	invoker     core.AgentInvoker
	checkpoints CheckpointStore
	logger      *logging.Logger
}

func NewSequentialExecutor(invoker core.AgentInvoker, checkpoints CheckpointStore, logger *logging.Logger) *SequentialExecutor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SequentialExecutor{
		invoker:     invoker,
		checkpoints: checkpoints,
		logger:      logger.WithComponent("sequential-executor"),
	}
}

func (e *SequentialExecutor) Strategy() core.RoutingStrategy { return core.StrategySequential }

func (e *SequentialExecutor) Execute(ctx context.Context, task *core.Task, decision core.RoutingDecision, resume *Checkpoint) (Outcome, error) {
	var (
		usage  core.TokenUsage
		output string
		start  int
	)
	if resume != nil {
		start = resume.Stage
		output = resume.Output
		usage = resume.Usage
		e.logger.Info("resuming chain",
			"task_id", string(task.ID), "stage", start, "checkpoint", resume.ID)
	}

	for i := start; i < len(decision.Participants); i++ {
		agentID := decision.Participants[i]
		inputs := map[string]string{}
		if output != "" {
			inputs["previous_output"] = output
		}
		result, err := invoke(ctx, e.invoker, agentID, task, inputs)
		if err != nil {
			return Outcome{}, err
		}
		usage = usage.Add(result.Usage)
		if result.Err != nil {
			out := Outcome{Usage: usage, AgentsUsed: i + 1 - start}
			out.Step = core.Failure(core.ErrWorkflow(
				fmt.Sprintf("stage %d (%s) failed", i, agentID), result.Err))
			return out, nil
		}
		output = result.Output

		if e.checkpoints != nil {
			if _, cerr := e.checkpoints.Save(ctx, Checkpoint{
				TaskID: task.ID,
				Name:   fmt.Sprintf("stage-%d-%s", i, agentID),
				Stage:  i + 1,
				Output: output,
				Usage:  usage,
			}); cerr != nil {
				e.logger.Warn("checkpoint save failed", "task_id", string(task.ID), "error", cerr)
			}
		}
	}
	return Outcome{
		Step: core.Success(output, map[string]string{
			"stages": fmt.Sprintf("%d", len(decision.Participants)),
		}),
		Usage:      usage,
		AgentsUsed: len(decision.Participants) - start,
	}, nil
}

// ParallelExecutor fans out to every participant and succeeds only if
// all of them do.
type ParallelExecutor struct {
	invoker core.AgentInvoker
	logger  *logging.Logger
}

func NewParallelExecutor(invoker core.AgentInvoker, logger *logging.Logger) *ParallelExecutor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ParallelExecutor{invoker: invoker, logger: logger.WithComponent("parallel-executor")}
}

func (e *ParallelExecutor) Strategy() core.RoutingStrategy { return core.StrategyParallel }

func (e *ParallelExecutor) Execute(ctx context.Context, task *core.Task, decision core.RoutingDecision, _ *Checkpoint) (Outcome, error) {
	var (
		mu      sync.Mutex
		usage   core.TokenUsage
		outputs = make(map[string]string, len(decision.Participants))
		failed  []string
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, agentID := range decision.Participants {
		g.Go(func() error {
			result, err := invoke(gctx, e.invoker, agentID, task, nil)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			usage = usage.Add(result.Usage)
			if result.Err != nil {
				failed = append(failed, string(agentID))
				return nil
			}
			outputs[string(agentID)] = result.Output
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Outcome{}, err
	}

	out := Outcome{Usage: usage, AgentsUsed: len(decision.Participants)}
	if len(failed) > 0 {
		sort.Strings(failed)
		out.Step = core.Failure(core.ErrWorkflow(
			"parallel branches failed: "+strings.Join(failed, ", "), nil).
			WithDetail("failed_agents", strings.Join(failed, ",")))
		return out, nil
	}
	out.Step = core.Success("", outputs)
	return out, nil
}
