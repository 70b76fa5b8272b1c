package workflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/ident"
)

// Checkpoint is a named recovery point an executor persists between
// stages. Seq orders checkpoints within a task; IDs are opaque.
type Checkpoint struct {
	ID        string
	TaskID    ident.TaskID
	Name      string
	Seq       int
	Stage     int // next stage to run on resume
	Output    string
	Usage     core.TokenUsage
	CreatedAt time.Time
}

// CheckpointStore persists and retrieves checkpoints per task.
type CheckpointStore interface {
	Save(ctx context.Context, cp Checkpoint) (Checkpoint, error)
	// LatestUpTo returns the newest checkpoint whose id matches, or
	// the newest overall when id is empty. Nil when none exist.
	LatestUpTo(ctx context.Context, taskID ident.TaskID, id string) (*Checkpoint, error)
	List(ctx context.Context, taskID ident.TaskID) ([]Checkpoint, error)
}

// MemoryCheckpoints is the in-process checkpoint store.
type MemoryCheckpoints struct {
	mu   sync.Mutex
	byID map[ident.TaskID][]Checkpoint
}

func NewMemoryCheckpoints() *MemoryCheckpoints {
	return &MemoryCheckpoints{byID: make(map[ident.TaskID][]Checkpoint)}
}

func (s *MemoryCheckpoints) Save(_ context.Context, cp Checkpoint) (Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp.ID = uuid.NewString()
	cp.Seq = len(s.byID[cp.TaskID]) + 1
	cp.CreatedAt = time.Now().UTC()
	s.byID[cp.TaskID] = append(s.byID[cp.TaskID], cp)
	return cp, nil
}

func (s *MemoryCheckpoints) LatestUpTo(_ context.Context, taskID ident.TaskID, id string) (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cps := s.byID[taskID]
	if len(cps) == 0 {
		return nil, nil
	}
	if id == "" {
		cp := cps[len(cps)-1]
		return &cp, nil
	}
	// Latest checkpoint at or before the named one, by sequence.
	var bound int
	for _, cp := range cps {
		if cp.ID == id {
			bound = cp.Seq
			break
		}
	}
	if bound == 0 {
		return nil, core.ErrNotFound("CHECKPOINT", "unknown checkpoint id").
			WithDetail("task_id", string(taskID))
	}
	var best *Checkpoint
	for i := range cps {
		if cps[i].Seq <= bound && (best == nil || cps[i].Seq > best.Seq) {
			best = &cps[i]
		}
	}
	out := *best
	return &out, nil
}

func (s *MemoryCheckpoints) List(_ context.Context, taskID ident.TaskID) ([]Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]Checkpoint(nil), s.byID[taskID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}
