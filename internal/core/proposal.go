package core

import (
	"time"

	"github.com/maestro-ai/maestro/internal/ident"
)

// ProposalInputType distinguishes what kind of input produced a proposal.
type ProposalInputType string

const (
	ProposalInputDirect   ProposalInputType = "direct"
	ProposalInputPipeline ProposalInputType = "pipeline"
	ProposalInputRetry    ProposalInputType = "retry"
)

// Proposal is one agent's answer for a task.
type Proposal struct {
	ID         ident.ProposalID
	TaskID     ident.TaskID
	AgentID    ident.AgentID
	InputType  ProposalInputType
	Content    string
	Confidence float64 // [0,1]
	Usage      TokenUsage
	CreatedAt  time.Time
}

// Decision is the consensus engine's verdict over a set of proposals.
type Decision struct {
	ID                ident.DecisionID
	TaskID            ident.TaskID
	Considered        []ident.ProposalID
	Selected          []ident.ProposalID
	WinnerID          ident.ProposalID // empty when no winner
	AgreementRate     float64          // [0,1]
	Rationale         string
	ConsensusAchieved bool
	DecidedAt         time.Time
}
