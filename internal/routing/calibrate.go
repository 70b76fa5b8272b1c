package routing

import (
	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/logging"
)

// minCalibrationSamples is the floor below which calibration is a
// no-op: thin data must not move routing behavior.
const minCalibrationSamples = 5

// Guard rails for calibrated thresholds.
const (
	minDirectiveConfidence = 0.5
	maxDirectiveConfidence = 0.85
	minHighRisk            = 5
	maxHighRisk            = 9
)

// Calibrator nudges picker thresholds from observed outcomes. It only
// ever adjusts within guard rails; the rules themselves never change.
type Calibrator struct {
	logger *logging.Logger
}

func NewCalibrator(logger *logging.Logger) *Calibrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Calibrator{logger: logger.WithComponent("calibrator")}
}

// Calibrate returns adjusted thresholds. Every strategy must have at
// least minCalibrationSamples samples, otherwise the input thresholds
// come back unchanged.
func (c *Calibrator) Calibrate(current Thresholds, metrics []core.StrategyMetrics) Thresholds {
	byStrategy := make(map[core.RoutingStrategy]core.StrategyMetrics, len(metrics))
	for _, m := range metrics {
		byStrategy[m.Strategy] = m
	}
	for _, s := range core.Strategies() {
		if byStrategy[s].Samples < minCalibrationSamples {
			c.logger.Debug("calibration skipped", "strategy", string(s), "samples", byStrategy[s].Samples)
			return current
		}
	}

	out := current
	consensus := byStrategy[core.StrategyConsensus]
	solo := byStrategy[core.StrategySolo]

	// Consensus underperforming solo means it is being over-selected:
	// demand more directive confidence and more risk before escalating.
	// The opposite gap relaxes both.
	switch {
	case consensus.SuccessRate+0.1 < solo.SuccessRate:
		out.DirectiveConfidence += 0.05
		out.HighRisk++
	case solo.SuccessRate+0.1 < consensus.SuccessRate:
		out.DirectiveConfidence -= 0.05
		out.HighRisk--
	}

	out.DirectiveConfidence = clampFloat(out.DirectiveConfidence, minDirectiveConfidence, maxDirectiveConfidence)
	out.HighRisk = clampInt(out.HighRisk, minHighRisk, maxHighRisk)

	if out != current {
		c.logger.Info("thresholds calibrated",
			"directive_confidence", out.DirectiveConfidence, "high_risk", out.HighRisk)
	}
	return out
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
