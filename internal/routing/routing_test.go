package routing

import (
	"testing"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/ident"
	"github.com/maestro-ai/maestro/internal/registry"
)

func signal(conf float64) core.Signal {
	return core.Signal{Active: true, Confidence: conf}
}

func TestPicker_Precedence(t *testing.T) {
	p := NewPicker(DefaultThresholds(), nil)

	tests := []struct {
		name      string
		task      *core.Task
		directive *core.UserDirective
		cls       *core.Classification
		want      core.RoutingStrategy
		rule      string
	}{
		{
			name:      "force consensus wins over everything",
			task:      &core.Task{Type: core.TaskTypeArchitecture, Complexity: 9},
			directive: &core.UserDirective{ForceConsensus: signal(0.9), IsEmergency: signal(0.9)},
			want:      core.StrategyConsensus,
			rule:      "directive-force-consensus",
		},
		{
			name:      "prevent consensus beats high risk",
			task:      &core.Task{Risk: 9},
			directive: &core.UserDirective{PreventConsensus: signal(0.8)},
			cls:       &core.Classification{Risk: 9, Complexity: 3},
			want:      core.StrategySolo,
			rule:      "directive-prevent-consensus",
		},
		{
			name:      "emergency without force goes solo",
			task:      &core.Task{Risk: 9},
			directive: &core.UserDirective{IsEmergency: signal(0.7)},
			cls:       &core.Classification{Risk: 9},
			want:      core.StrategySolo,
			rule:      "emergency-fast-path",
		},
		{
			name: "complex architecture goes sequential",
			task: &core.Task{Type: core.TaskTypeArchitecture},
			cls:  &core.Classification{Complexity: 8, Risk: 4},
			want: core.StrategySequential,
		},
		{
			name: "critical architecture still goes consensus",
			task: &core.Task{Type: core.TaskTypeArchitecture},
			cls:  &core.Classification{Complexity: 8, Risk: 4, CriticalKeywords: []string{"auth"}},
			want: core.StrategyConsensus,
		},
		{
			name: "high risk goes consensus",
			task: &core.Task{Type: core.TaskTypeImplementation},
			cls:  &core.Classification{Complexity: 3, Risk: 8},
			want: core.StrategyConsensus,
		},
		{
			name: "parallelizable metadata",
			task: &core.Task{Type: core.TaskTypeImplementation, Complexity: 2, Risk: 2, Metadata: map[string]string{"parallelizable": "true"}},
			want: core.StrategyParallel,
		},
		{
			name:      "parallel cue in directive",
			task:      &core.Task{Type: core.TaskTypeImplementation, Complexity: 2, Risk: 2},
			directive: &core.UserDirective{OriginalText: "run these in parallel"},
			want:      core.StrategyParallel,
			rule:      "directive-parallel-cue",
		},
		{
			name:      "fan out phrasing",
			task:      &core.Task{Type: core.TaskTypeImplementation, Complexity: 2, Risk: 2},
			directive: &core.UserDirective{OriginalText: "Fan out the subtasks across the team"},
			want:      core.StrategyParallel,
			rule:      "directive-parallel-cue",
		},
		{
			name:      "high risk beats parallel cue",
			task:      &core.Task{Type: core.TaskTypeImplementation},
			directive: &core.UserDirective{OriginalText: "do it in parallel"},
			cls:       &core.Classification{Complexity: 3, Risk: 8},
			want:      core.StrategyConsensus,
		},
		{
			name: "default solo",
			task: &core.Task{Type: core.TaskTypeImplementation, Complexity: 2, Risk: 2},
			want: core.StrategySolo,
			rule: "default-solo",
		},
		{
			name:      "weak directive signal ignored",
			task:      &core.Task{Complexity: 2, Risk: 2},
			directive: &core.UserDirective{ForceConsensus: signal(0.3)},
			want:      core.StrategySolo,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.task.Metadata == nil {
				tt.task.Metadata = map[string]string{}
			}
			got, rule := p.Pick(tt.task, tt.directive, tt.cls)
			if got != tt.want {
				t.Fatalf("strategy = %s (rule %s), want %s", got, rule, tt.want)
			}
			if tt.rule != "" && rule != tt.rule {
				t.Fatalf("rule = %s, want %s", rule, tt.rule)
			}
			if rule == "" {
				t.Fatal("every decision must carry an audit rule")
			}
		})
	}
}

func TestCalibrator_RequiresSamples(t *testing.T) {
	c := NewCalibrator(nil)
	current := DefaultThresholds()

	metrics := []core.StrategyMetrics{
		{Strategy: core.StrategySolo, Samples: 20, SuccessRate: 0.9},
		{Strategy: core.StrategyConsensus, Samples: 4, SuccessRate: 0.2}, // below floor
		{Strategy: core.StrategySequential, Samples: 10, SuccessRate: 0.8},
		{Strategy: core.StrategyParallel, Samples: 10, SuccessRate: 0.8},
	}
	if got := c.Calibrate(current, metrics); got != current {
		t.Fatalf("calibration must be a no-op with thin data, got %+v", got)
	}
}

func TestCalibrator_AdjustsWithinGuardRails(t *testing.T) {
	c := NewCalibrator(nil)
	current := DefaultThresholds()

	metrics := []core.StrategyMetrics{
		{Strategy: core.StrategySolo, Samples: 20, SuccessRate: 0.95},
		{Strategy: core.StrategyConsensus, Samples: 20, SuccessRate: 0.5},
		{Strategy: core.StrategySequential, Samples: 20, SuccessRate: 0.8},
		{Strategy: core.StrategyParallel, Samples: 20, SuccessRate: 0.8},
	}
	got := c.Calibrate(current, metrics)
	if got.DirectiveConfidence <= current.DirectiveConfidence {
		t.Fatalf("over-selected consensus should raise the confidence gate: %+v", got)
	}
	if got.HighRisk != current.HighRisk+1 {
		t.Fatalf("high-risk threshold = %d, want %d", got.HighRisk, current.HighRisk+1)
	}

	// Repeated calibration saturates at the guard rails.
	for i := 0; i < 20; i++ {
		got = c.Calibrate(got, metrics)
	}
	if got.DirectiveConfidence > maxDirectiveConfidence || got.HighRisk > maxHighRisk {
		t.Fatalf("guard rails violated: %+v", got)
	}
}

type fixedRates map[ident.AgentID]float64

func (r fixedRates) SuccessRate(id ident.AgentID) (float64, bool) {
	rate, ok := r[id]
	return rate, ok
}

func testRegistry() *registry.Registry {
	return registry.New([]core.Agent{
		{ID: "coder", DisplayName: "Coder", Capabilities: []core.Capability{core.CapCodeGeneration}},
		{ID: "fixer", DisplayName: "Fixer", Capabilities: []core.Capability{core.CapCodeGeneration, core.CapDebugging}},
		{ID: "reviewer", DisplayName: "Reviewer", Capabilities: []core.Capability{core.CapReview}},
		{ID: "spare", DisplayName: "Spare", Capabilities: []core.Capability{core.CapCodeGeneration}},
	}, nil)
}

func TestSelector_SoloHonorsAssignment(t *testing.T) {
	reg := testRegistry()
	sel := NewSelector(reg, nil, 3, nil)
	task := &core.Task{ID: ident.NewTaskID(), Type: core.TaskTypeImplementation}

	d, err := sel.Select(task, &core.UserDirective{AssignToAgent: "fixer"}, core.StrategySolo)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if d.PrimaryAgent != "fixer" {
		t.Fatalf("primary = %s, want fixer", d.PrimaryAgent)
	}

	// Offline assignment is not honored; selection falls back.
	reg.SetStatus("fixer", core.AgentStatusOffline)
	d, err = sel.Select(task, &core.UserDirective{AssignToAgent: "fixer"}, core.StrategySolo)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if d.PrimaryAgent == "fixer" {
		t.Fatal("offline agent must not receive an explicit assignment")
	}
}

func TestSelector_SoloTieBreaksBySuccessRate(t *testing.T) {
	reg := testRegistry()
	rates := fixedRates{"spare": 0.9, "coder": 0.5, "fixer": 0.5}
	sel := NewSelector(reg, rates, 3, nil)
	task := &core.Task{ID: ident.NewTaskID(), Type: core.TaskTypeImplementation}

	d, err := sel.Select(task, nil, core.StrategySolo)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if d.PrimaryAgent != "spare" {
		t.Fatalf("primary = %s, want spare (best success rate)", d.PrimaryAgent)
	}
}

func TestSelector_ConsensusTopK(t *testing.T) {
	reg := testRegistry()
	sel := NewSelector(reg, nil, 3, nil)
	task := &core.Task{ID: ident.NewTaskID(), Type: core.TaskTypeImplementation}

	d, err := sel.Select(task, &core.UserDirective{AssignedAgents: []ident.AgentID{"spare"}}, core.StrategyConsensus)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(d.Participants) != 3 {
		t.Fatalf("participants = %v, want 3", d.Participants)
	}
	if d.Participants[0] != "spare" {
		t.Fatalf("directive-named agent must be included first, got %v", d.Participants)
	}
	seen := map[ident.AgentID]bool{}
	for _, id := range d.Participants {
		if seen[id] {
			t.Fatalf("duplicate participant %s", id)
		}
		seen[id] = true
	}
}

func TestSelector_NoEligibleAgent(t *testing.T) {
	reg := registry.New([]core.Agent{
		{ID: "writer", Capabilities: []core.Capability{core.CapDocumentation}},
	}, nil)
	sel := NewSelector(reg, nil, 3, nil)
	task := &core.Task{ID: ident.NewTaskID(), Type: core.TaskTypeBugfix}

	_, err := sel.Select(task, nil, core.StrategySolo)
	if !core.IsNoEligibleAgent(err) {
		t.Fatalf("err = %v, want NoEligibleAgent", err)
	}
}
