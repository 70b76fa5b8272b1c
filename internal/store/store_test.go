package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/ident"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "maestro.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSequences_Monotonic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var first, second int64
	require.NoError(t, s.InTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		first, err = NextIDs(tx, SeqChunks, 3)
		return err
	}))
	require.NoError(t, s.InTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		second, err = NextIDs(tx, SeqChunks, 1)
		return err
	}))

	require.Equal(t, int64(1), first)
	require.Equal(t, int64(4), second)
}

func TestWithConnection_ReleasesOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_ = s.WithConnection(ctx, func(conn *sql.Conn) error {
			return context.DeadlineExceeded
		})
	}
	// The pool would be exhausted if connections leaked.
	require.NoError(t, s.WithConnection(ctx, func(conn *sql.Conn) error {
		return conn.PingContext(ctx)
	}))
}

func TestTaskRepo_InsertAndFind(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	task := core.NewTask(core.TaskDraft{
		Title: "migrate auth", Type: core.TaskTypeImplementation,
		Complexity: 5, Risk: 8, Metadata: map[string]string{"team": "platform"},
	})
	task.Assignees = []ident.AgentID{"coder"}

	require.NoError(t, s.Tasks().Insert(ctx, task))

	got, err := s.Tasks().FindByID(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, task.Title, got.Title)
	require.Equal(t, core.TaskStatusPending, got.Status)
	require.Equal(t, []ident.AgentID{"coder"}, got.Assignees)
	require.Equal(t, "platform", got.Metadata["team"])
}

func TestTaskRepo_FindByID_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Tasks().FindByID(context.Background(), "task-missing")
	require.Error(t, err)
}

func TestTaskRepo_UpdateStatus_Optimistic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	task := core.NewTask(core.TaskDraft{Title: "x"})
	require.NoError(t, s.Tasks().Insert(ctx, task))

	ok, err := s.Tasks().UpdateStatus(ctx, task.ID, core.TaskStatusInProgress, core.TaskStatusPending)
	require.NoError(t, err)
	require.True(t, ok)

	// Second transition with a stale expectation loses the race.
	ok, err = s.Tasks().UpdateStatus(ctx, task.ID, core.TaskStatusInProgress, core.TaskStatusPending)
	require.NoError(t, err)
	require.False(t, ok)

	got, err := s.Tasks().FindByID(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, core.TaskStatusInProgress, got.Status)
}

func TestTaskRepo_QueryFiltered(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		task := core.NewTask(core.TaskDraft{Title: "t"})
		task.Assignees = []ident.AgentID{"coder"}
		if i%2 == 0 {
			task.Status = core.TaskStatusCompleted
		}
		require.NoError(t, s.Tasks().Insert(ctx, task))
		time.Sleep(2 * time.Millisecond) // distinct created_at ordering
	}

	completed, err := s.Tasks().QueryFiltered(ctx, core.TaskFilter{Status: core.TaskStatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 3)

	page := core.Page{Page: 2, PageSize: 2}
	paged, err := s.Tasks().QueryFiltered(ctx, core.TaskFilter{
		AgentID: "coder", Limit: int64(page.PageSize), Offset: page.Offset(),
	})
	require.NoError(t, err)
	require.Len(t, paged, 2)
}

func TestProposalRepo_UpsertIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	taskID := ident.NewTaskID()

	first := &core.Proposal{
		ID: ident.NewProposalID(), TaskID: taskID, AgentID: "coder",
		InputType: core.ProposalInputDirect, Content: "approach A",
		Confidence: 0.9, CreatedAt: time.Now(),
	}
	stored, err := s.Proposals().Upsert(ctx, first)
	require.NoError(t, err)
	require.Equal(t, first.ID, stored.ID)

	// Same (task, agent) pair: the original row wins.
	second := &core.Proposal{
		ID: ident.NewProposalID(), TaskID: taskID, AgentID: "coder",
		InputType: core.ProposalInputRetry, Content: "approach B",
		Confidence: 0.2, CreatedAt: time.Now(),
	}
	stored, err = s.Proposals().Upsert(ctx, second)
	require.NoError(t, err)
	require.Equal(t, first.ID, stored.ID)
	require.Equal(t, "approach A", stored.Content)

	all, err := s.Proposals().ListByTask(ctx, taskID)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestDecisionRepo_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	d := &core.Decision{
		ID: ident.NewDecisionID(), TaskID: ident.NewTaskID(),
		Considered:    []ident.ProposalID{"proposal-a", "proposal-b"},
		Selected:      []ident.ProposalID{"proposal-a"},
		WinnerID:      "proposal-a",
		AgreementRate: 0.67, Rationale: "modal bucket",
		ConsensusAchieved: true, DecidedAt: time.Now(),
	}
	require.NoError(t, s.Decisions().Insert(ctx, d))

	got, err := s.Decisions().FindByTask(ctx, d.TaskID)
	require.NoError(t, err)
	require.Equal(t, d.WinnerID, got.WinnerID)
	require.Equal(t, d.Considered, got.Considered)
	require.True(t, got.ConsensusAchieved)
	require.InDelta(t, 0.67, got.AgreementRate, 1e-9)
}
