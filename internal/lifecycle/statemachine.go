// Package lifecycle enforces the task status transition table and records
// per-task transition history.
package lifecycle

import (
	"sync"
	"time"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/ident"
)

// allowed maps each status to the statuses it may move to. Completed and
// failed are terminal.
var allowed = map[core.TaskStatus][]core.TaskStatus{
	core.TaskStatusPending:      {core.TaskStatusInProgress, core.TaskStatusFailed},
	core.TaskStatusInProgress:   {core.TaskStatusWaitingInput, core.TaskStatusCompleted, core.TaskStatusFailed},
	core.TaskStatusWaitingInput: {core.TaskStatusInProgress, core.TaskStatusFailed},
	core.TaskStatusCompleted:    {},
	core.TaskStatusFailed:       {},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to core.TaskStatus) bool {
	for _, next := range allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StateMachine validates transitions and keeps append-only history keyed by
// task id. It is an engine-scoped service, not a global.
type StateMachine struct {
	mu      sync.RWMutex
	history map[ident.TaskID][]core.StateTransition
}

// New creates an empty state machine.
func New() *StateMachine {
	return &StateMachine{history: make(map[ident.TaskID][]core.StateTransition)}
}

// Transition validates from -> to and, on success, appends a history record
// stamped with the wall clock. An invalid transition appends nothing and
// returns a conflict error.
func (m *StateMachine) Transition(taskID ident.TaskID, from, to core.TaskStatus, metadata map[string]string) error {
	if !CanTransition(from, to) {
		return core.ErrConflict("invalid transition " + string(from) + " -> " + string(to)).
			WithDetail("task_id", string(taskID))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[taskID] = append(m.history[taskID], core.StateTransition{
		From:       from,
		To:         to,
		OccurredAt: time.Now(),
		Metadata:   metadata,
	})
	return nil
}

// History returns a copy of the transitions recorded for taskID, in order.
func (m *StateMachine) History(taskID ident.TaskID) []core.StateTransition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := m.history[taskID]
	out := make([]core.StateTransition, len(records))
	copy(out, records)
	return out
}

// Reset clears all history. Tests depend on this to isolate runs.
func (m *StateMachine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = make(map[ident.TaskID][]core.StateTransition)
}
