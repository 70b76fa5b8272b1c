package analytics

import (
	"fmt"
	"time"

	"github.com/maestro-ai/maestro/internal/core"
)

// AlertThresholds are the operator-tunable alert limits.
type AlertThresholds struct {
	// MaxFailureRate alerts a strategy whose failure rate exceeds it.
	MaxFailureRate float64
	// MaxAvgDurationMs alerts a strategy running slower than it.
	MaxAvgDurationMs int64
	// MaxAvgTokens alerts a strategy burning more tokens per run.
	MaxAvgTokens int
	// MinAgreementRate alerts when consensus achievement drops below it.
	MinAgreementRate float64
	// MinSamples gates all per-strategy alerts; thin data never alerts.
	MinSamples int
}

// DefaultAlertThresholds returns the stock limits.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		MaxFailureRate:   0.5,
		MaxAvgDurationMs: (5 * time.Minute).Milliseconds(),
		MaxAvgTokens:     100_000,
		MinAgreementRate: 0.5,
		MinSamples:       5,
	}
}

// Alert kinds.
const (
	AlertFailureRate  = "failure_rate"
	AlertSlowRuns     = "slow_runs"
	AlertTokenBurn    = "token_burn"
	AlertLowConsensus = "low_consensus"
)

// Alert is one threshold breach.
type Alert struct {
	Kind    string  `json:"kind"`
	Subject string  `json:"subject"`
	Value   float64 `json:"value"`
	Message string  `json:"message"`
}

// Alerts evaluates the current aggregates against th.
func (c *Collector) Alerts(th AlertThresholds) []Alert {
	var alerts []Alert
	for _, m := range c.StrategyMetrics() {
		if m.Samples < th.MinSamples {
			continue
		}
		failureRate := 1 - m.SuccessRate
		if failureRate > th.MaxFailureRate {
			alerts = append(alerts, Alert{
				Kind:    AlertFailureRate,
				Subject: string(m.Strategy),
				Value:   failureRate,
				Message: fmt.Sprintf("strategy %s failing %.0f%% of runs over %d samples",
					m.Strategy, failureRate*100, m.Samples),
			})
		}
		if th.MaxAvgDurationMs > 0 && m.AvgDurationMs > th.MaxAvgDurationMs {
			alerts = append(alerts, Alert{
				Kind:    AlertSlowRuns,
				Subject: string(m.Strategy),
				Value:   float64(m.AvgDurationMs),
				Message: fmt.Sprintf("strategy %s averaging %dms per run", m.Strategy, m.AvgDurationMs),
			})
		}
		if th.MaxAvgTokens > 0 && m.AvgTokens > th.MaxAvgTokens {
			alerts = append(alerts, Alert{
				Kind:    AlertTokenBurn,
				Subject: string(m.Strategy),
				Value:   float64(m.AvgTokens),
				Message: fmt.Sprintf("strategy %s averaging %d tokens per run", m.Strategy, m.AvgTokens),
			})
		}
	}

	decisions := c.Decisions()
	if decisions.Decisions >= th.MinSamples && decisions.AchievedRate < th.MinAgreementRate {
		alerts = append(alerts, Alert{
			Kind:    AlertLowConsensus,
			Subject: string(core.StrategyConsensus),
			Value:   decisions.AchievedRate,
			Message: fmt.Sprintf("consensus achieved on only %.0f%% of %d decisions",
				decisions.AchievedRate*100, decisions.Decisions),
		})
	}
	return alerts
}

// PerformanceReport is the full analytics surface for one instant.
type PerformanceReport struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Strategies  []core.StrategyMetrics `json:"strategies"`
	Tokens      TokenReport            `json:"tokens"`
	Decisions   DecisionReport         `json:"decisions"`
	Alerts      []Alert                `json:"alerts,omitempty"`
	System      SystemSnapshot         `json:"system"`
}

// Report assembles the full report. sampler may be nil; the system
// section is then zero.
func (c *Collector) Report(sampler *SystemSampler, th AlertThresholds) PerformanceReport {
	report := PerformanceReport{
		GeneratedAt: time.Now().UTC(),
		Strategies:  c.StrategyMetrics(),
		Tokens:      c.Tokens(),
		Decisions:   c.Decisions(),
		Alerts:      c.Alerts(th),
	}
	if sampler != nil {
		report.System = sampler.Sample()
	}
	return report
}
