package core

import (
	"strings"
	"testing"
)

func TestNewTask_Defaults(t *testing.T) {
	task := NewTask(TaskDraft{Title: "migrate auth", Complexity: 0, Risk: 99})

	if !strings.HasPrefix(string(task.ID), "task-") {
		t.Fatalf("expected task- prefixed id, got %s", task.ID)
	}
	if task.Status != TaskStatusPending {
		t.Fatalf("expected pending, got %s", task.Status)
	}
	if task.Type != TaskTypeOther {
		t.Fatalf("expected default type other, got %s", task.Type)
	}
	if task.Complexity != 1 {
		t.Fatalf("expected complexity clamped to 1, got %d", task.Complexity)
	}
	if task.Risk != 10 {
		t.Fatalf("expected risk clamped to 10, got %d", task.Risk)
	}
}

func TestTaskStatus_IsTerminal(t *testing.T) {
	if !TaskStatusCompleted.IsTerminal() || !TaskStatusFailed.IsTerminal() {
		t.Fatalf("completed and failed must be terminal")
	}
	if TaskStatusPending.IsTerminal() || TaskStatusInProgress.IsTerminal() || TaskStatusWaitingInput.IsTerminal() {
		t.Fatalf("non-terminal status reported terminal")
	}
}

func TestPage_Validate(t *testing.T) {
	cases := []struct {
		page Page
		ok   bool
	}{
		{Page{1, 1}, true},
		{Page{1, 200}, true},
		{Page{0, 50}, false},
		{Page{1, 0}, false},
		{Page{1, 201}, false},
	}
	for _, tc := range cases {
		err := tc.page.Validate()
		if tc.ok && err != nil {
			t.Fatalf("Validate(%+v): unexpected error %v", tc.page, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("Validate(%+v): expected error", tc.page)
		}
	}
}

func TestPage_Offset64Bit(t *testing.T) {
	p := Page{Page: 20_000_000, PageSize: 200}
	want := int64(20_000_000-1) * 200
	if p.Offset() != want {
		t.Fatalf("Offset() = %d, want %d", p.Offset(), want)
	}
}

func TestChunk_EstimateTokens(t *testing.T) {
	c := Chunk{Content: "abcdefgh"} // 8 chars -> 2 tokens
	if got := c.EstimateTokens(); got != 2 {
		t.Fatalf("EstimateTokens() = %d, want 2", got)
	}
	c.Content = "abcdefghi" // 9 chars -> ceil(9/4) = 3
	if got := c.EstimateTokens(); got != 3 {
		t.Fatalf("EstimateTokens() = %d, want 3", got)
	}
	c.TokenEstimate = 7
	if got := c.EstimateTokens(); got != 7 {
		t.Fatalf("EstimateTokens() = %d, want recorded 7", got)
	}
}
