package consensus

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/ident"
	"github.com/maestro-ai/maestro/internal/store"
)

func openEngine(t *testing.T) *Engine {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "maestro.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return NewEngine(s.Proposals(), s.Decisions(), nil)
}

func proposal(taskID ident.TaskID, agent string, content string, confidence float64, at time.Time) *core.Proposal {
	return &core.Proposal{
		ID:         ident.NewProposalID(),
		TaskID:     taskID,
		AgentID:    ident.AgentID(agent),
		InputType:  core.ProposalInputDirect,
		Content:    content,
		Confidence: confidence,
		CreatedAt:  at,
	}
}

func TestSubmit_Idempotent(t *testing.T) {
	e := openEngine(t)
	ctx := context.Background()
	taskID := ident.NewTaskID()
	now := time.Now()

	first := proposal(taskID, "coder", "plan A", 0.8, now)
	stored, err := e.Submit(ctx, first)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if stored.ID != first.ID {
		t.Fatalf("stored id = %s, want %s", stored.ID, first.ID)
	}

	retry := proposal(taskID, "coder", "plan B", 0.2, now.Add(time.Second))
	stored, err = e.Submit(ctx, retry)
	if err != nil {
		t.Fatalf("Submit retry: %v", err)
	}
	if stored.ID != first.ID || stored.Content != "plan A" {
		t.Fatalf("intake must be idempotent per (task, agent): %+v", stored)
	}
}

func TestDecide_MajorityWins(t *testing.T) {
	e := openEngine(t)
	ctx := context.Background()
	taskID := ident.NewTaskID()
	now := time.Now()

	for _, p := range []*core.Proposal{
		proposal(taskID, "coder", "Use a queue", 0.7, now),
		proposal(taskID, "fixer", "use  a QUEUE", 0.9, now.Add(time.Second)), // same fingerprint
		proposal(taskID, "reviewer", "use a cache", 0.95, now),
	} {
		if _, err := e.Submit(ctx, p); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	d, err := e.Decide(ctx, taskID)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if got := d.AgreementRate; got < 0.66 || got > 0.67 {
		t.Fatalf("agreement = %v, want 2/3", got)
	}
	if !d.ConsensusAchieved {
		t.Fatal("2/3 agreement must achieve consensus")
	}
	// Within the majority bucket the higher confidence wins.
	winner, _, err := e.Winner(ctx, taskID)
	if err != nil {
		t.Fatalf("Winner: %v", err)
	}
	if winner.AgentID != "fixer" {
		t.Fatalf("winner = %s, want fixer", winner.AgentID)
	}
	if len(d.Considered) != 3 || len(d.Selected) != 2 {
		t.Fatalf("considered=%d selected=%d", len(d.Considered), len(d.Selected))
	}
}

func TestDecide_TieBreaks(t *testing.T) {
	e := openEngine(t)
	ctx := context.Background()
	taskID := ident.NewTaskID()
	now := time.Now().Truncate(time.Millisecond)

	// Equal confidence: earlier createdAt wins.
	for _, p := range []*core.Proposal{
		proposal(taskID, "late", "same answer", 0.8, now.Add(time.Minute)),
		proposal(taskID, "early", "same answer", 0.8, now),
	} {
		if _, err := e.Submit(ctx, p); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	if _, err := e.Decide(ctx, taskID); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	winner, d, err := e.Winner(ctx, taskID)
	if err != nil {
		t.Fatalf("Winner: %v", err)
	}
	if winner.AgentID != "early" {
		t.Fatalf("winner = %s, want early (earliest createdAt)", winner.AgentID)
	}
	if d.AgreementRate != 1.0 {
		t.Fatalf("agreement = %v, want 1", d.AgreementRate)
	}
}

func TestDecide_NoConsensusBelowThreshold(t *testing.T) {
	e := openEngine(t)
	ctx := context.Background()
	taskID := ident.NewTaskID()
	now := time.Now()

	for i, content := range []string{"alpha", "beta", "gamma"} {
		p := proposal(taskID, string(rune('a'+i)), content, 0.5, now)
		if _, err := e.Submit(ctx, p); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	d, err := e.Decide(ctx, taskID)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.ConsensusAchieved {
		t.Fatal("1/3 agreement must not achieve consensus")
	}
	if d.WinnerID == "" {
		t.Fatal("a winner is still selected without consensus")
	}
}

func TestDecide_NoProposals(t *testing.T) {
	e := openEngine(t)
	if _, err := e.Decide(context.Background(), ident.NewTaskID()); err == nil {
		t.Fatal("deciding with no proposals must fail")
	}
}

func TestFingerprint_Canonicalization(t *testing.T) {
	if Fingerprint("  Use a   Queue ") != Fingerprint("use a queue") {
		t.Fatal("whitespace and case must not change the fingerprint")
	}
	if Fingerprint("use a queue") == Fingerprint("use a cache") {
		t.Fatal("different content must not collide")
	}
}
