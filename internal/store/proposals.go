package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/ident"
)

// ProposalRepo persists proposals. It implements core.ProposalRepository.
type ProposalRepo struct {
	store *Store
}

// Proposals returns the proposal repository.
func (s *Store) Proposals() *ProposalRepo { return &ProposalRepo{store: s} }

// Upsert stores a proposal, idempotent on (taskID, agentID): the first
// submission wins and later ones return the stored row untouched.
func (r *ProposalRepo) Upsert(ctx context.Context, p *core.Proposal) (*core.Proposal, error) {
	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO proposals (id, task_id, agent_id, input_type, content,
			confidence, tokens_in, tokens_out, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id, agent_id) DO NOTHING
	`, string(p.ID), string(p.TaskID), string(p.AgentID), string(p.InputType),
		p.Content, p.Confidence, p.Usage.Input, p.Usage.Output, p.CreatedAt)
	if err != nil {
		return nil, core.ErrPersistence("upserting proposal", err).WithDetail("task_id", string(p.TaskID))
	}

	row := r.store.db.QueryRowContext(ctx, proposalSelect+` WHERE task_id = ? AND agent_id = ?`,
		string(p.TaskID), string(p.AgentID))
	stored, err := scanProposal(row)
	if err != nil {
		return nil, core.ErrPersistence("reading proposal back", err).WithDetail("task_id", string(p.TaskID))
	}
	return stored, nil
}

// ListByTask returns all proposals for a task, oldest first.
func (r *ProposalRepo) ListByTask(ctx context.Context, taskID ident.TaskID) ([]*core.Proposal, error) {
	rows, err := r.store.db.QueryContext(ctx,
		proposalSelect+` WHERE task_id = ? ORDER BY created_at ASC, id ASC`, string(taskID))
	if err != nil {
		return nil, core.ErrPersistence("listing proposals", err).WithDetail("task_id", string(taskID))
	}
	defer func() { _ = rows.Close() }()

	var out []*core.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, core.ErrPersistence("scanning proposal", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, core.ErrPersistence("iterating proposals", err)
	}
	return out, nil
}

const proposalSelect = `
	SELECT id, task_id, agent_id, input_type, content, confidence,
		tokens_in, tokens_out, created_at
	FROM proposals`

func scanProposal(row rowScanner) (*core.Proposal, error) {
	var (
		p                            core.Proposal
		id, taskID, agentID, inType  string
	)
	err := row.Scan(&id, &taskID, &agentID, &inType, &p.Content, &p.Confidence,
		&p.Usage.Input, &p.Usage.Output, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.ID = ident.ProposalID(id)
	p.TaskID = ident.TaskID(taskID)
	p.AgentID = ident.AgentID(agentID)
	p.InputType = core.ProposalInputType(inType)
	return &p, nil
}

// DecisionRepo persists decisions. It implements core.DecisionRepository.
type DecisionRepo struct {
	store *Store
}

// Decisions returns the decision repository.
func (s *Store) Decisions() *DecisionRepo { return &DecisionRepo{store: s} }

// Insert writes the decision atomically with its considered list.
func (r *DecisionRepo) Insert(ctx context.Context, d *core.Decision) error {
	considered, err := json.Marshal(d.Considered)
	if err != nil {
		return core.ErrPersistence("encoding considered list", err)
	}
	selected, err := json.Marshal(d.Selected)
	if err != nil {
		return core.ErrPersistence("encoding selected list", err)
	}
	return r.store.InTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO decisions (id, task_id, considered, selected, winner_id,
				agreement_rate, rationale, consensus_achieved, decided_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, string(d.ID), string(d.TaskID), string(considered), string(selected),
			string(d.WinnerID), d.AgreementRate, d.Rationale, boolToInt(d.ConsensusAchieved), d.DecidedAt)
		if err != nil {
			return core.ErrPersistence("inserting decision", err).WithDetail("task_id", string(d.TaskID))
		}
		return nil
	})
}

// FindByTask returns the decision for a task, or a not-found error.
func (r *DecisionRepo) FindByTask(ctx context.Context, taskID ident.TaskID) (*core.Decision, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT id, task_id, considered, selected, winner_id, agreement_rate,
			rationale, consensus_achieved, decided_at
		FROM decisions WHERE task_id = ?
	`, string(taskID))

	var (
		d                          core.Decision
		id, tid, winner            string
		considered, selected       string
		achieved                   int
	)
	err := row.Scan(&id, &tid, &considered, &selected, &winner,
		&d.AgreementRate, &d.Rationale, &achieved, &d.DecidedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound("DECISION", "no decision for task").WithDetail("task_id", string(taskID))
	}
	if err != nil {
		return nil, core.ErrPersistence("scanning decision", err).WithDetail("task_id", string(taskID))
	}
	d.ID = ident.DecisionID(id)
	d.TaskID = ident.TaskID(tid)
	d.WinnerID = ident.ProposalID(winner)
	d.ConsensusAchieved = achieved != 0
	if err := json.Unmarshal([]byte(considered), &d.Considered); err != nil {
		return nil, core.ErrPersistence("decoding considered list", err)
	}
	if err := json.Unmarshal([]byte(selected), &d.Selected); err != nil {
		return nil, core.ErrPersistence("decoding selected list", err)
	}
	return &d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
