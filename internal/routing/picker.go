// Package routing decides how a task reaches agents: which strategy
// runs it and which agents participate.
package routing

import (
	"fmt"
	"strings"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/logging"
)

// Thresholds are the tunable knobs of the strategy picker. The
// calibrator may move them inside fixed guard rails.
type Thresholds struct {
	// DirectiveConfidence gates force/prevent signals.
	DirectiveConfidence float64
	// HighRisk routes to consensus at or above this risk score.
	HighRisk int
	// ArchComplexity routes architecture work to sequential at or
	// above this complexity.
	ArchComplexity int
}

// DefaultThresholds matches the documented routing behavior.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DirectiveConfidence: 0.6,
		HighRisk:            7,
		ArchComplexity:      7,
	}
}

// Picker maps (task, directive, classification) to a routing strategy.
type Picker struct {
	thresholds Thresholds
	logger     *logging.Logger
}

// NewPicker builds a strategy picker.
func NewPicker(thresholds Thresholds, logger *logging.Logger) *Picker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Picker{thresholds: thresholds, logger: logger.WithComponent("routing")}
}

// Thresholds returns the current thresholds.
func (p *Picker) Thresholds() Thresholds { return p.thresholds }

// Pick applies the precedence rules, highest first, and returns the
// strategy plus the audit rule that fired.
func (p *Picker) Pick(task *core.Task, directive *core.UserDirective, cls *core.Classification) (core.RoutingStrategy, string) {
	t := p.thresholds

	strategy, rule := p.pick(task, directive, cls, t)
	p.logger.Info("strategy picked",
		"task_id", string(task.ID), "strategy", string(strategy), "rule", rule)
	return strategy, rule
}

func (p *Picker) pick(task *core.Task, directive *core.UserDirective, cls *core.Classification, t Thresholds) (core.RoutingStrategy, string) {
	forceActive := directive != nil && directive.ForceConsensus.Active &&
		directive.ForceConsensus.Confidence >= t.DirectiveConfidence
	preventActive := directive != nil && directive.PreventConsensus.Active &&
		directive.PreventConsensus.Confidence >= t.DirectiveConfidence

	if forceActive {
		return core.StrategyConsensus, "directive-force-consensus"
	}
	if preventActive {
		return core.StrategySolo, "directive-prevent-consensus"
	}
	if directive != nil && directive.IsEmergency.Active && !directive.ForceConsensus.Active {
		return core.StrategySolo, "emergency-fast-path"
	}

	critical := cls != nil && cls.IsCritical()
	complexity := task.Complexity
	risk := task.Risk
	if cls != nil {
		complexity = cls.Complexity
		risk = cls.Risk
	}

	if task.Type == core.TaskTypeArchitecture && complexity >= t.ArchComplexity && !critical {
		return core.StrategySequential, fmt.Sprintf("architecture-complexity>=%d", t.ArchComplexity)
	}
	if critical || risk >= t.HighRisk {
		return core.StrategyConsensus, fmt.Sprintf("high-risk>=%d", t.HighRisk)
	}
	if task.Metadata["parallelizable"] == "true" {
		return core.StrategyParallel, "metadata-parallelizable"
	}
	if hasParallelCue(directive) {
		return core.StrategyParallel, "directive-parallel-cue"
	}
	return core.StrategySolo, "default-solo"
}

var parallelCues = []string{"in parallel", "fan out", "fan-out"}

// hasParallelCue reports an explicit parallel phrasing in the directive.
func hasParallelCue(directive *core.UserDirective) bool {
	if directive == nil {
		return false
	}
	text := strings.ToLower(directive.OriginalText)
	for _, cue := range parallelCues {
		if strings.Contains(text, cue) {
			return true
		}
	}
	return false
}
