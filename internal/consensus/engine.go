// Package consensus turns a set of agent proposals into a single
// decision: proposals are bucketed by content fingerprint, the largest
// bucket measures agreement, and the best proposal in it wins.
package consensus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/ident"
	"github.com/maestro-ai/maestro/internal/logging"
)

// AgreementThreshold is the fraction of proposals that must share the
// winning fingerprint for consensus to count as achieved.
const AgreementThreshold = 0.5

// Engine collects proposals and produces decisions.
type Engine struct {
	proposals core.ProposalRepository
	decisions core.DecisionRepository
	logger    *logging.Logger
}

// NewEngine builds a consensus engine over the given repositories.
func NewEngine(proposals core.ProposalRepository, decisions core.DecisionRepository, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		proposals: proposals,
		decisions: decisions,
		logger:    logger.WithComponent("consensus"),
	}
}

// Submit records a proposal. Intake is idempotent on (taskID,
// agentID): resubmission returns the originally stored proposal.
func (e *Engine) Submit(ctx context.Context, p *core.Proposal) (*core.Proposal, error) {
	if p.TaskID == "" || p.AgentID == "" {
		return nil, core.ErrInvalidInput("PROPOSAL", "proposal requires task and agent ids")
	}
	stored, err := e.proposals.Upsert(ctx, p)
	if err != nil {
		return nil, core.ErrPersistence("storing proposal", err).WithDetail("task_id", string(p.TaskID))
	}
	if stored.ID != p.ID {
		e.logger.Debug("duplicate proposal ignored",
			"task_id", string(p.TaskID), "agent_id", string(p.AgentID))
	}
	return stored, nil
}

// Decide evaluates all proposals for a task and persists the decision
// atomically with the considered list.
func (e *Engine) Decide(ctx context.Context, taskID ident.TaskID) (*core.Decision, error) {
	proposals, err := e.proposals.ListByTask(ctx, taskID)
	if err != nil {
		return nil, core.ErrPersistence("loading proposals", err).WithDetail("task_id", string(taskID))
	}
	if len(proposals) == 0 {
		return nil, core.ErrInvalidInput("NO_PROPOSALS", "cannot decide without proposals").
			WithDetail("task_id", string(taskID))
	}

	buckets := make(map[string][]*core.Proposal)
	for _, p := range proposals {
		fp := Fingerprint(p.Content)
		buckets[fp] = append(buckets[fp], p)
	}

	var winningBucket []*core.Proposal
	var winningFp string
	for fp, bucket := range buckets {
		if len(bucket) > len(winningBucket) ||
			(len(bucket) == len(winningBucket) && fp < winningFp) {
			winningBucket = bucket
			winningFp = fp
		}
	}

	winner := pickWinner(winningBucket)
	agreement := float64(len(winningBucket)) / float64(len(proposals))

	considered := make([]ident.ProposalID, len(proposals))
	for i, p := range proposals {
		considered[i] = p.ID
	}
	selected := make([]ident.ProposalID, len(winningBucket))
	for i, p := range winningBucket {
		selected[i] = p.ID
	}

	decision := &core.Decision{
		ID:                ident.NewDecisionID(),
		TaskID:            taskID,
		Considered:        considered,
		Selected:          selected,
		WinnerID:          winner.ID,
		AgreementRate:     agreement,
		Rationale:         fmt.Sprintf("%d of %d proposals agree; winner %s by confidence %.2f", len(winningBucket), len(proposals), winner.AgentID, winner.Confidence),
		ConsensusAchieved: agreement >= AgreementThreshold,
		DecidedAt:         time.Now().UTC(),
	}
	if err := e.decisions.Insert(ctx, decision); err != nil {
		return nil, core.ErrPersistence("storing decision", err).WithDetail("task_id", string(taskID))
	}

	e.logger.Info("consensus decided",
		"task_id", string(taskID),
		"agreement", agreement,
		"achieved", decision.ConsensusAchieved,
		"winner", string(winner.AgentID))
	return decision, nil
}

// Winner loads the winning proposal of a persisted decision.
func (e *Engine) Winner(ctx context.Context, taskID ident.TaskID) (*core.Proposal, *core.Decision, error) {
	decision, err := e.decisions.FindByTask(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	proposals, err := e.proposals.ListByTask(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range proposals {
		if p.ID == decision.WinnerID {
			return p, decision, nil
		}
	}
	return nil, nil, core.ErrNotFound("WINNER", "winning proposal missing").
		WithDetail("task_id", string(taskID))
}

// pickWinner selects from one bucket: highest confidence, then
// earliest createdAt, then smaller agent id.
func pickWinner(bucket []*core.Proposal) *core.Proposal {
	sorted := append([]*core.Proposal(nil), bucket...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.AgentID < b.AgentID
	})
	return sorted[0]
}

// Fingerprint hashes canonicalized content: lowercase, whitespace
// collapsed, trimmed. Semantically equal texts with cosmetic
// differences land in the same bucket.
func Fingerprint(content string) string {
	canon := strings.ToLower(strings.TrimSpace(content))
	canon = strings.Join(strings.Fields(canon), " ")
	sum := sha256.Sum256([]byte(canon))
	return hex.EncodeToString(sum[:])
}
