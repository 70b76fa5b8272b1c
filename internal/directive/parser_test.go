package directive

import (
	"reflect"
	"testing"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/registry"
)

func testParser() *Parser {
	reg := registry.New([]core.Agent{
		{ID: "claude-reviewer", DisplayName: "Claude Reviewer",
			Capabilities: []core.Capability{core.CapReview}},
		{ID: "coder", DisplayName: "Coder",
			Capabilities: []core.Capability{core.CapCodeGeneration}},
		{ID: "user", DisplayName: "User Proxy",
			Capabilities: []core.Capability{core.CapPlanning}},
	}, nil)
	return NewParser(reg, nil)
}

func TestParse_ForceConsensus(t *testing.T) {
	d := testParser().Parse("We need consensus on this change")
	if !d.ForceConsensus.Active || d.ForceConsensus.Confidence < 0.5 {
		t.Fatalf("expected strong force signal, got %+v", d.ForceConsensus)
	}
	if d.PreventConsensus.Active {
		t.Fatalf("unexpected prevent signal: %+v", d.PreventConsensus)
	}
}

func TestParse_PreventConsensus(t *testing.T) {
	d := testParser().Parse("Just implement it solo, skip consensus")
	if !d.PreventConsensus.Active {
		t.Fatalf("expected prevent signal, got %+v", d.PreventConsensus)
	}
	if d.ForceConsensus.Active {
		t.Fatalf("unexpected force signal: %+v", d.ForceConsensus)
	}
}

func TestParse_NegationFlipsPolarity(t *testing.T) {
	d := testParser().Parse("no consensus needed for this one")
	if d.ForceConsensus.Active {
		t.Fatalf("negated consensus must not force: %+v", d.ForceConsensus)
	}
	if !d.PreventConsensus.Active {
		t.Fatalf("expected negation to produce prevent signal")
	}
}

func TestParse_EmergencyBiasesSolo(t *testing.T) {
	d := testParser().Parse("Emergency: production down. Skip review and ship")
	if !d.IsEmergency.Active {
		t.Fatalf("expected emergency signal")
	}
	if !d.PreventConsensus.Active {
		t.Fatalf("expected emergency without forcing cue to bias solo")
	}
	if d.ForceConsensus.Active {
		t.Fatalf("unexpected force: %+v", d.ForceConsensus)
	}
}

func TestParse_EmergencyWithForcingCueKeepsForce(t *testing.T) {
	d := testParser().Parse("Urgent, but we still need consensus before shipping")
	if !d.IsEmergency.Active {
		t.Fatalf("expected emergency signal")
	}
	if !d.ForceConsensus.Active {
		t.Fatalf("expected force kept under emergency with forcing cue")
	}
	if d.PreventConsensus.Active {
		t.Fatalf("expected prevent cleared, got %+v", d.PreventConsensus)
	}
}

func TestParse_AgentMentionExact(t *testing.T) {
	d := testParser().Parse("assign this to coder please")
	if d.AssignToAgent != "coder" {
		t.Fatalf("expected coder assignment, got %q", d.AssignToAgent)
	}
}

func TestParse_AgentMentionAtForm(t *testing.T) {
	d := testParser().Parse("@claude-reviewer should take a look")
	if d.AssignToAgent != "claude-reviewer" {
		t.Fatalf("expected claude-reviewer, got %q", d.AssignToAgent)
	}
}

func TestParse_AgentMentionDisplayName(t *testing.T) {
	d := testParser().Parse("ask Claude Reviewer to handle it")
	if d.AssignToAgent != "claude-reviewer" {
		t.Fatalf("expected display-name resolution, got %q", d.AssignToAgent)
	}
}

func TestParse_AgentMentionHyphenless(t *testing.T) {
	d := testParser().Parse("claudereviewer can do this")
	if d.AssignToAgent != "claude-reviewer" {
		t.Fatalf("expected hyphenless resolution, got %q", d.AssignToAgent)
	}
}

func TestParse_AgentMentionFuzzy(t *testing.T) {
	// One transposition away from "coder".
	d := testParser().Parse("give it to codre")
	if d.AssignToAgent != "coder" {
		t.Fatalf("expected fuzzy resolution to coder, got %q", d.AssignToAgent)
	}
}

func TestParse_MultipleMentionsRaiseConsensus(t *testing.T) {
	d := testParser().Parse("get coder and claude-reviewer input on this")
	if len(d.AssignedAgents) != 2 {
		t.Fatalf("expected 2 assigned agents, got %v", d.AssignedAgents)
	}
	if !d.ForceConsensus.Active {
		t.Fatalf("multiple mentions must raise consensus")
	}
}

func TestParse_ExclusionList(t *testing.T) {
	d := testParser().Parse("validate the user input before saving")
	if d.AssignToAgent == "user" {
		t.Fatalf("'user input' must not resolve to agent user")
	}
	if len(d.AssignedAgents) != 0 {
		t.Fatalf("unexpected assignments: %v", d.AssignedAgents)
	}
}

func TestParse_ConfidencesBounded(t *testing.T) {
	d := testParser().Parse("we need consensus, require consensus, get consensus, reach consensus, second opinion")
	if d.ForceConsensus.Confidence > 1 {
		t.Fatalf("confidence exceeds 1: %f", d.ForceConsensus.Confidence)
	}
}

func TestParse_NotesBounded(t *testing.T) {
	text := ""
	for i := 0; i < 40; i++ {
		text += "we need consensus. "
	}
	d := testParser().Parse(text)
	if len(d.ParsingNotes) > core.MaxParsingNotes {
		t.Fatalf("parsing notes exceed cap: %d", len(d.ParsingNotes))
	}
}

func TestParse_Idempotent(t *testing.T) {
	p := testParser()
	inputs := []string{
		"We need consensus on this change",
		"Emergency: production down. Skip review and ship",
		"give it to coder, solo",
		"",
	}
	for _, in := range inputs {
		first := p.Parse(in)
		second := p.Parse(first.OriginalText)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("parse not idempotent for %q:\nfirst:  %+v\nsecond: %+v", in, first, second)
		}
	}
}

func TestDamerauLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"coder", "coder", 0},
		{"coder", "codre", 1}, // transposition
		{"coder", "coders", 1},
		{"coder", "cdr", 2},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
	}
	for _, tc := range cases {
		if got := damerauLevenshtein(tc.a, tc.b); got != tc.want {
			t.Fatalf("damerauLevenshtein(%q,%q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
