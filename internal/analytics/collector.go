// Package analytics aggregates execution outcomes into the reports the
// rest of the system consumes: per-strategy metrics for the routing
// calibrator, per-agent success rates for the selector, token and
// decision analytics for operators.
package analytics

import (
	"sort"
	"sync"
	"time"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/events"
	"github.com/maestro-ai/maestro/internal/ident"
	"github.com/maestro-ai/maestro/internal/logging"
)

// maxHistory bounds the per-execution record ring. Aggregates keep
// counting past the bound; only raw records are evicted.
const maxHistory = 1024

// Execution is one finished workflow run.
type Execution struct {
	TaskID     ident.TaskID         `json:"task_id"`
	Strategy   core.RoutingStrategy `json:"strategy"`
	Agents     []ident.AgentID      `json:"agents"`
	Success    bool                 `json:"success"`
	Usage      core.TokenUsage      `json:"usage"`
	Duration   time.Duration        `json:"duration"`
	FinishedAt time.Time            `json:"finished_at"`
}

type strategyAgg struct {
	samples     int
	successes   int
	durationMs  int64
	totalTokens int
}

type agentAgg struct {
	samples   int
	successes int
	tokens    int
}

// Collector accumulates execution and decision outcomes. All methods
// are safe for concurrent use.
type Collector struct {
	mu         sync.Mutex
	history    []Execution
	byStrategy map[core.RoutingStrategy]*strategyAgg
	byAgent    map[ident.AgentID]*agentAgg

	// routed tracks in-flight tasks observed on the bus so terminal
	// events can be attributed to their participants.
	routed map[string]routedInfo

	decisions     int
	achieved      int
	agreementHist [10]int

	logger *logging.Logger
}

type routedInfo struct {
	strategy core.RoutingStrategy
	agents   []ident.AgentID
	started  time.Time
}

// NewCollector creates an empty collector.
func NewCollector(logger *logging.Logger) *Collector {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Collector{
		byStrategy: make(map[core.RoutingStrategy]*strategyAgg),
		byAgent:    make(map[ident.AgentID]*agentAgg),
		routed:     make(map[string]routedInfo),
		logger:     logger.WithComponent("analytics"),
	}
}

// RecordExecution ingests one finished run.
func (c *Collector) RecordExecution(ex Execution) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ex.FinishedAt.IsZero() {
		ex.FinishedAt = time.Now().UTC()
	}
	c.history = append(c.history, ex)
	if len(c.history) > maxHistory {
		c.history = c.history[len(c.history)-maxHistory:]
	}

	agg, ok := c.byStrategy[ex.Strategy]
	if !ok {
		agg = &strategyAgg{}
		c.byStrategy[ex.Strategy] = agg
	}
	agg.samples++
	if ex.Success {
		agg.successes++
	}
	agg.durationMs += ex.Duration.Milliseconds()
	agg.totalTokens += ex.Usage.Total()

	for _, id := range ex.Agents {
		a, ok := c.byAgent[id]
		if !ok {
			a = &agentAgg{}
			c.byAgent[id] = a
		}
		a.samples++
		if ex.Success {
			a.successes++
		}
		if n := len(ex.Agents); n > 0 {
			a.tokens += ex.Usage.Total() / n
		}
	}
}

// RecordDecision ingests one consensus decision outcome.
func (c *Collector) RecordDecision(agreementRate float64, consensusAchieved bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.decisions++
	if consensusAchieved {
		c.achieved++
	}
	bucket := int(agreementRate * 10)
	if bucket < 0 {
		bucket = 0
	}
	if bucket > 9 {
		bucket = 9
	}
	c.agreementHist[bucket]++
}

// StrategyMetrics reports aggregates per strategy, sorted by strategy
// name. Strategies with no samples are omitted.
func (c *Collector) StrategyMetrics() []core.StrategyMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]core.StrategyMetrics, 0, len(c.byStrategy))
	for strategy, agg := range c.byStrategy {
		m := core.StrategyMetrics{
			Strategy:    strategy,
			Samples:     agg.samples,
			SuccessRate: float64(agg.successes) / float64(agg.samples),
		}
		m.AvgDurationMs = agg.durationMs / int64(agg.samples)
		m.AvgTokens = agg.totalTokens / agg.samples
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strategy < out[j].Strategy })
	return out
}

// SuccessRate reports an agent's historical success rate. The second
// return is false when the agent has no recorded runs.
func (c *Collector) SuccessRate(agentID ident.AgentID) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	agg, ok := c.byAgent[agentID]
	if !ok || agg.samples == 0 {
		return 0, false
	}
	return float64(agg.successes) / float64(agg.samples), true
}

// TokenReport summarizes token spend.
type TokenReport struct {
	TotalIn    int            `json:"total_in"`
	TotalOut   int            `json:"total_out"`
	ByStrategy map[string]int `json:"by_strategy"`
	ByAgent    map[string]int `json:"by_agent"`
	ByTask     map[string]int `json:"by_task"`
}

// Tokens reports token spend across the retained history window.
func (c *Collector) Tokens() TokenReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	report := TokenReport{
		ByStrategy: make(map[string]int, len(c.byStrategy)),
		ByAgent:    make(map[string]int, len(c.byAgent)),
		ByTask:     make(map[string]int, len(c.history)),
	}
	for strategy, agg := range c.byStrategy {
		report.ByStrategy[string(strategy)] = agg.totalTokens
	}
	for id, agg := range c.byAgent {
		report.ByAgent[string(id)] = agg.tokens
	}
	for _, ex := range c.history {
		report.TotalIn += ex.Usage.Input
		report.TotalOut += ex.Usage.Output
		report.ByTask[string(ex.TaskID)] += ex.Usage.Total()
	}
	return report
}

// DecisionReport summarizes consensus outcomes.
type DecisionReport struct {
	Decisions     int     `json:"decisions"`
	Achieved      int     `json:"achieved"`
	AchievedRate  float64 `json:"achieved_rate"`
	AgreementHist [10]int `json:"agreement_hist"` // [0.0,0.1) .. [0.9,1.0]
}

// Decisions reports the agreement-rate distribution.
func (c *Collector) Decisions() DecisionReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	report := DecisionReport{
		Decisions:     c.decisions,
		Achieved:      c.achieved,
		AgreementHist: c.agreementHist,
	}
	if c.decisions > 0 {
		report.AchievedRate = float64(c.achieved) / float64(c.decisions)
	}
	return report
}

// Observe taps the event bus: routed tasks are remembered so terminal
// workflow events can be attributed to strategy and participants. Bus
// delivery is lossy under pressure, so bus-fed numbers are advisory;
// callers needing exact accounting use RecordExecution directly.
func (c *Collector) Observe(bus *events.Bus) {
	bus.Handle(c.onEvent,
		events.TypeTaskRouted, events.TypeWorkflowCompleted, events.TypeWorkflowFailed)
}

func (c *Collector) onEvent(ev events.Event) {
	switch e := ev.(type) {
	case events.TaskRoutedEvent:
		agents := make([]ident.AgentID, len(e.Participants))
		for i, p := range e.Participants {
			agents[i] = ident.AgentID(p)
		}
		c.mu.Lock()
		c.routed[e.TaskID()] = routedInfo{
			strategy: core.RoutingStrategy(e.Strategy),
			agents:   agents,
			started:  e.Timestamp(),
		}
		c.mu.Unlock()
	case events.WorkflowCompletedEvent:
		info := c.takeRouted(ev.TaskID())
		c.RecordExecution(Execution{
			TaskID:   ident.TaskID(ev.TaskID()),
			Strategy: core.RoutingStrategy(e.Strategy),
			Agents:   info.agents,
			Success:  true,
			Usage:    core.TokenUsage{Input: e.TokensIn, Output: e.TokensOut},
			Duration: time.Duration(e.DurationMs) * time.Millisecond,
		})
	case events.WorkflowFailedEvent:
		info := c.takeRouted(ev.TaskID())
		duration := time.Duration(0)
		if !info.started.IsZero() {
			duration = time.Since(info.started)
		}
		c.RecordExecution(Execution{
			TaskID:   ident.TaskID(ev.TaskID()),
			Strategy: core.RoutingStrategy(e.Strategy),
			Agents:   info.agents,
			Success:  false,
			Duration: duration,
		})
	}
}

func (c *Collector) takeRouted(taskID string) routedInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	info := c.routed[taskID]
	delete(c.routed, taskID)
	return info
}
