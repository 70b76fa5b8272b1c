package core

import (
	"context"
	"time"

	"github.com/maestro-ai/maestro/internal/ident"
)

// AgentInvoker executes one agent against a task. Implementations bind real
// models or tools; they must be idempotent for the same
// (taskID, agentID, input seed).
type AgentInvoker interface {
	Invoke(ctx context.Context, agentID ident.AgentID, task *Task, inputs map[string]string) (AgentResult, error)
}

// HealthChecker probes an agent's availability.
type HealthChecker interface {
	Check(ctx context.Context, agent *Agent) (AgentStatus, error)
}

// Embedder turns text into vectors. Vectors must be finite; the store
// normalizes to unit length on write.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelName() string
}

// TaskFilter selects tasks for queries. Zero values mean "any".
type TaskFilter struct {
	Status  TaskStatus
	AgentID ident.AgentID
	From    time.Time
	To      time.Time
	Limit   int64
	Offset  int64
}

// Page is the pagination surface consumed by external layers.
type Page struct {
	Page     int
	PageSize int
}

// Validate enforces page >= 1 and pageSize in [1,200].
func (p Page) Validate() error {
	if p.Page < 1 {
		return ErrInvalidInput("PAGE", "page must be >= 1")
	}
	if p.PageSize < 1 || p.PageSize > 200 {
		return ErrInvalidInput("PAGE_SIZE", "pageSize must be in [1,200]")
	}
	return nil
}

// Offset computes the row offset in 64-bit arithmetic.
func (p Page) Offset() int64 {
	return (int64(p.Page) - 1) * int64(p.PageSize)
}

// TaskRepository is the persistence surface for tasks.
type TaskRepository interface {
	Insert(ctx context.Context, task *Task) error
	Update(ctx context.Context, task *Task) error
	// UpdateStatus transitions the stored status iff the current status is
	// one of expectedFrom. Returns false (and no error) when the precondition
	// fails; that is a lost optimistic-concurrency race.
	UpdateStatus(ctx context.Context, id ident.TaskID, to TaskStatus, expectedFrom ...TaskStatus) (bool, error)
	FindByID(ctx context.Context, id ident.TaskID) (*Task, error)
	FindByStatus(ctx context.Context, status TaskStatus) ([]*Task, error)
	FindByAgent(ctx context.Context, agentID ident.AgentID) ([]*Task, error)
	QueryFiltered(ctx context.Context, filter TaskFilter) ([]*Task, error)
}

// ProposalRepository persists proposals. Upsert is idempotent on
// (taskID, agentID): a second submission for the same pair replaces nothing
// and returns the stored proposal.
type ProposalRepository interface {
	Upsert(ctx context.Context, p *Proposal) (*Proposal, error)
	ListByTask(ctx context.Context, taskID ident.TaskID) ([]*Proposal, error)
}

// DecisionRepository persists decisions atomically with their considered
// proposal list.
type DecisionRepository interface {
	Insert(ctx context.Context, d *Decision) error
	FindByTask(ctx context.Context, taskID ident.TaskID) (*Decision, error)
}

// ContextWriter is the mutation surface of the context store.
type ContextWriter interface {
	// ReplaceFileArtifacts atomically swaps a file's chunks, embeddings,
	// links, and symbols for fresh ones. On any failure after the pre-read
	// snapshot it restores the snapshot in a new transaction before
	// returning the original error.
	ReplaceFileArtifacts(ctx context.Context, state FileState, chunks []Chunk, embeddings []Embedding, links []Link, symbols []Symbol) error
	// DeleteFileArtifacts removes every dependent of the file's chunks,
	// then the chunks, then tombstones the file state.
	DeleteFileArtifacts(ctx context.Context, relativePath string) error
	RecordUsage(ctx context.Context, chunkID int64, kind string) error
}

// ContextReader is the query surface of the context store.
type ContextReader interface {
	FetchFileArtifactsByPath(ctx context.Context, relativePath string) (*FileArtifacts, error)
	ListFileStates(ctx context.Context) ([]FileState, error)
	ListEmbeddingsByModel(ctx context.Context, model string) ([]Embedding, error)
	ChunksByIDs(ctx context.Context, ids []int64) ([]Chunk, error)
	ChunksByFile(ctx context.Context, fileID int64) ([]Chunk, error)
	AllChunks(ctx context.Context) ([]Chunk, error)
	SymbolsByNames(ctx context.Context, names []string) ([]Symbol, error)
	AllSymbols(ctx context.Context) ([]Symbol, error)
	FileStateByID(ctx context.Context, fileID int64) (*FileState, error)
}

// WorkflowStepKind tags the terminal value of a workflow execution.
type WorkflowStepKind int

const (
	StepSuccess WorkflowStepKind = iota
	StepFailure
	StepWaitingInput
)

// WorkflowStep is the result variant returned by executors. Cancellation is
// not a step: it propagates as context.Canceled without transformation.
type WorkflowStep struct {
	Kind      WorkflowStepKind
	Output    string
	Artifacts map[string]string
	Err       error
}

// Success builds a successful step.
func Success(output string, artifacts map[string]string) WorkflowStep {
	return WorkflowStep{Kind: StepSuccess, Output: output, Artifacts: artifacts}
}

// Failure builds a failed step.
func Failure(err error) WorkflowStep {
	return WorkflowStep{Kind: StepFailure, Err: err}
}

// WaitingInput builds a step parked on external input.
func WaitingInput() WorkflowStep {
	return WorkflowStep{Kind: StepWaitingInput}
}
