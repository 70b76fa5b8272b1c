// Package core defines the domain model shared by the orchestration kernel:
// tasks, agents, directives, proposals, decisions, and the persisted context
// artifacts (file states, chunks, embeddings, links, symbols).
package core

import (
	"time"

	"github.com/maestro-ai/maestro/internal/ident"
)

// TaskType categorizes the nature of a task.
type TaskType string

const (
	TaskTypeImplementation TaskType = "implementation"
	TaskTypeBugfix         TaskType = "bugfix"
	TaskTypeReview         TaskType = "review"
	TaskTypeTesting        TaskType = "testing"
	TaskTypeDocumentation  TaskType = "documentation"
	TaskTypeArchitecture   TaskType = "architecture"
	TaskTypeResearch       TaskType = "research"
	TaskTypeOther          TaskType = "other"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending      TaskStatus = "pending"
	TaskStatusInProgress   TaskStatus = "in_progress"
	TaskStatusWaitingInput TaskStatus = "waiting_input"
	TaskStatusCompleted    TaskStatus = "completed"
	TaskStatusFailed       TaskStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// RoutingStrategy selects how a task is dispatched to agents.
type RoutingStrategy string

const (
	StrategySolo       RoutingStrategy = "solo"
	StrategyConsensus  RoutingStrategy = "consensus"
	StrategySequential RoutingStrategy = "sequential"
	StrategyParallel   RoutingStrategy = "parallel"
)

// Strategies lists every routing strategy.
func Strategies() []RoutingStrategy {
	return []RoutingStrategy{StrategySolo, StrategyConsensus, StrategySequential, StrategyParallel}
}

// Task is the unit of orchestrated work.
type Task struct {
	ID           ident.TaskID
	Title        string
	Description  string
	Type         TaskType
	Status       TaskStatus
	Strategy     RoutingStrategy
	Assignees    []ident.AgentID
	Dependencies []ident.TaskID
	Complexity   int // 1..10
	Risk         int // 1..10
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Metadata     map[string]string
}

// TaskDraft is the caller-supplied seed for a new task.
type TaskDraft struct {
	Title       string
	Description string
	Type        TaskType
	Complexity  int
	Risk        int
	Metadata    map[string]string
}

// NewTask materializes a draft into a pending task with a fresh identifier.
func NewTask(draft TaskDraft) *Task {
	now := time.Now()
	t := &Task{
		ID:          ident.NewTaskID(),
		Title:       draft.Title,
		Description: draft.Description,
		Type:        draft.Type,
		Status:      TaskStatusPending,
		Complexity:  clampScale(draft.Complexity),
		Risk:        clampScale(draft.Risk),
		CreatedAt:   now,
		UpdatedAt:   now,
		Metadata:    map[string]string{},
	}
	if t.Type == "" {
		t.Type = TaskTypeOther
	}
	for k, v := range draft.Metadata {
		t.Metadata[k] = v
	}
	return t
}

func clampScale(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

// RoutingDecision is the output of the routing pipeline.
type RoutingDecision struct {
	Strategy     RoutingStrategy
	PrimaryAgent ident.AgentID
	Participants []ident.AgentID
	Rule         string // audit: the precedence rule that fired
	Metadata     map[string]string
}

// StateTransition records one lifecycle change of a task.
type StateTransition struct {
	From       TaskStatus
	To         TaskStatus
	OccurredAt time.Time
	Metadata   map[string]string
}

// TokenUsage tracks token consumption of an agent invocation.
type TokenUsage struct {
	Input  int
	Output int
}

// Add accumulates usage.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{Input: u.Input + other.Input, Output: u.Output + other.Output}
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int { return u.Input + u.Output }
