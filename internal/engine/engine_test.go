package engine

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/ident"
	"github.com/maestro-ai/maestro/internal/registry"
	"github.com/maestro-ai/maestro/internal/store"
)

// echoInvoker answers with per-agent canned output, defaulting to a
// shared answer so consensus buckets agree.
type echoInvoker struct {
	mu      sync.Mutex
	byAgent map[ident.AgentID]core.AgentResult
	calls   map[ident.AgentID]int
}

func newEchoInvoker() *echoInvoker {
	return &echoInvoker{byAgent: map[ident.AgentID]core.AgentResult{}, calls: map[ident.AgentID]int{}}
}

func (i *echoInvoker) Invoke(_ context.Context, agentID ident.AgentID, _ *core.Task, inputs map[string]string) (core.AgentResult, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls[agentID]++
	if r, ok := i.byAgent[agentID]; ok {
		return r, nil
	}
	out := "done by " + string(agentID)
	if prev := inputs["previous_output"]; prev != "" {
		out = prev + " -> " + out
	}
	return core.AgentResult{Output: out, Confidence: 0.8, Usage: core.TokenUsage{Input: 5, Output: 5}}, nil
}

func testAgents() []core.Agent {
	return []core.Agent{
		{ID: "coder", Type: core.AgentTypeLLM, Status: core.AgentStatusOnline,
			Capabilities: []core.Capability{core.CapCodeGeneration, core.CapDebugging}},
		{ID: "fixer", Type: core.AgentTypeLLM, Status: core.AgentStatusOnline,
			Capabilities: []core.Capability{core.CapCodeGeneration, core.CapDebugging}},
		{ID: "architect", Type: core.AgentTypeLLM, Status: core.AgentStatusOnline,
			Capabilities: []core.Capability{core.CapArchitecture, core.CapCodeGeneration}},
		{ID: "reviewer", Type: core.AgentTypeLLM, Status: core.AgentStatusOnline,
			Capabilities: []core.Capability{core.CapReview, core.CapCodeGeneration, core.CapArchitecture}},
	}
}

func newTestEngine(t *testing.T, invoker core.AgentInvoker) *Engine {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "maestro.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	e, err := New(Config{
		Store:            s,
		Registry:         registry.New(testAgents(), nil),
		Invoker:          invoker,
		ConsensusTimeout: 30 * time.Second,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestSubmit_SimpleTaskRunsSolo(t *testing.T) {
	invoker := newEchoInvoker()
	e := newTestEngine(t, invoker)

	result, err := e.Submit(context.Background(), core.TaskDraft{
		Title: "fix typo in readme",
		Type:  core.TaskTypeImplementation,
	}, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Status != core.TaskStatusCompleted {
		t.Fatalf("status = %s", result.Status)
	}
	if result.Strategy != core.StrategySolo {
		t.Fatalf("strategy = %s, want solo for a trivial task", result.Strategy)
	}

	task, err := e.Tasks().FindByID(context.Background(), result.TaskID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if task.Metadata["routing_rule"] != "default-solo" {
		t.Fatalf("routing rule = %q", task.Metadata["routing_rule"])
	}
}

func TestSubmit_DirectiveForcesConsensus(t *testing.T) {
	invoker := newEchoInvoker()
	invoker.byAgent["coder"] = core.AgentResult{Output: "plan A", Confidence: 0.8,
		Usage: core.TokenUsage{Input: 5, Output: 5}}
	invoker.byAgent["fixer"] = core.AgentResult{Output: "Plan A", Confidence: 0.9,
		Usage: core.TokenUsage{Input: 5, Output: 5}}
	invoker.byAgent["reviewer"] = core.AgentResult{Output: "plan B", Confidence: 0.7,
		Usage: core.TokenUsage{Input: 5, Output: 5}}
	invoker.byAgent["architect"] = core.AgentResult{Output: "plan A", Confidence: 0.6,
		Usage: core.TokenUsage{Input: 5, Output: 5}}
	e := newTestEngine(t, invoker)

	result, err := e.Submit(context.Background(), core.TaskDraft{
		Title: "rename helper",
		Type:  core.TaskTypeImplementation,
	}, "we need consensus on this one")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Strategy != core.StrategyConsensus {
		t.Fatalf("strategy = %s, want consensus", result.Strategy)
	}
	if result.Status != core.TaskStatusCompleted {
		t.Fatalf("status = %s, err = %v", result.Status, result.Err)
	}
	// Fingerprinting is case-insensitive, so the plan-A bucket wins.
	if !strings.EqualFold(result.Output, "plan a") {
		t.Fatalf("output = %q", result.Output)
	}

	report := e.Analytics().Decisions()
	if report.Decisions != 1 {
		t.Fatalf("decision analytics = %+v", report)
	}
}

func TestSubmit_HighRiskClassifiesToConsensus(t *testing.T) {
	invoker := newEchoInvoker()
	e := newTestEngine(t, invoker)

	result, err := e.Submit(context.Background(), core.TaskDraft{
		Title:       "rotate oauth signing keys",
		Description: "production auth migration touching jwt issuance and payment scopes",
		Type:        core.TaskTypeImplementation,
	}, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Strategy != core.StrategyConsensus {
		t.Fatalf("strategy = %s, want consensus for critical work", result.Strategy)
	}
	task, _ := e.Tasks().FindByID(context.Background(), result.TaskID)
	if !strings.HasPrefix(task.Metadata["routing_rule"], "high-risk") {
		t.Fatalf("routing rule = %q", task.Metadata["routing_rule"])
	}
}

func TestSubmit_EmergencyBypassesConsensus(t *testing.T) {
	invoker := newEchoInvoker()
	e := newTestEngine(t, invoker)

	result, err := e.Submit(context.Background(), core.TaskDraft{
		Title: "production is down, restore the auth service",
		Type:  core.TaskTypeBugfix,
	}, "urgent hotfix, production down")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Strategy != core.StrategySolo {
		t.Fatalf("strategy = %s, want solo on the emergency fast path", result.Strategy)
	}
	task, _ := e.Tasks().FindByID(context.Background(), result.TaskID)
	if task.Metadata["routing_rule"] != "emergency-fast-path" {
		t.Fatalf("routing rule = %q", task.Metadata["routing_rule"])
	}
}

func TestSubmit_ArchitectureRunsSequential(t *testing.T) {
	invoker := newEchoInvoker()
	e := newTestEngine(t, invoker)

	longDesc := strings.Repeat("the service boundary must move behind the gateway and every "+
		"downstream consumer migrates to the new contract. ", 6)
	result, err := e.Submit(context.Background(), core.TaskDraft{
		Title:       "redesign the storage architecture for the distributed ingestion pipeline",
		Description: longDesc + " This integration requires a migration plan, a refactor " +
			"of the concurrency model, and a redesign of the consumer contracts.",
		Type: core.TaskTypeArchitecture,
	}, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Strategy != core.StrategySequential {
		t.Fatalf("strategy = %s, want sequential for complex architecture", result.Strategy)
	}
	if result.Status != core.TaskStatusCompleted {
		t.Fatalf("status = %s, err = %v", result.Status, result.Err)
	}
	// Each stage feeds the next.
	if !strings.Contains(result.Output, "->") {
		t.Fatalf("output = %q, want chained stage outputs", result.Output)
	}
}

func TestSubmit_NoEligibleAgent(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "maestro.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	// A roster with no testing capability.
	e, err := New(Config{
		Store:    s,
		Registry: registry.New(testAgents(), nil),
		Invoker:  newEchoInvoker(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Close)

	_, err = e.Submit(context.Background(), core.TaskDraft{
		Title: "write a regression suite",
		Type:  core.TaskTypeTesting,
	}, "")
	if !core.IsNoEligibleAgent(err) {
		t.Fatalf("err = %v, want NoEligibleAgent", err)
	}
}

func TestAnalyticsFeedSelector(t *testing.T) {
	invoker := newEchoInvoker()
	e := newTestEngine(t, invoker)

	for i := 0; i < 3; i++ {
		if _, err := e.Submit(context.Background(), core.TaskDraft{
			Title: "small tweak",
			Type:  core.TaskTypeImplementation,
		}, ""); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	metrics := e.Analytics().StrategyMetrics()
	if len(metrics) != 1 || metrics[0].Strategy != core.StrategySolo || metrics[0].Samples != 3 {
		t.Fatalf("metrics = %v", metrics)
	}

	report := e.Report()
	if len(report.Strategies) != 1 {
		t.Fatalf("report strategies = %v", report.Strategies)
	}
	if report.Tokens.TotalIn+report.Tokens.TotalOut != 30 {
		t.Fatalf("token totals = %+v", report.Tokens)
	}
	if report.System.CollectedAt.IsZero() {
		t.Fatal("report must carry a system snapshot")
	}
}

func TestCalibrate_NoOpOnThinData(t *testing.T) {
	e := newTestEngine(t, newEchoInvoker())
	before := e.picker.Thresholds()
	after := e.Calibrate()
	if after != before {
		t.Fatalf("calibration adjusted thresholds with no data: %+v -> %+v", before, after)
	}
}
