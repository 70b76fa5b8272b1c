package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/ident"
)

// TaskRepo persists tasks. It implements core.TaskRepository.
type TaskRepo struct {
	store *Store
}

// Tasks returns the task repository.
func (s *Store) Tasks() *TaskRepo { return &TaskRepo{store: s} }

// Insert persists a new task.
func (r *TaskRepo) Insert(ctx context.Context, task *core.Task) error {
	assignees, dependencies, metadata, err := marshalTaskFields(task)
	if err != nil {
		return err
	}
	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, type, status, strategy,
			assignees, dependencies, complexity, risk, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(task.ID), task.Title, task.Description, string(task.Type), string(task.Status),
		string(task.Strategy), assignees, dependencies, task.Complexity, task.Risk,
		metadata, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return core.ErrPersistence("inserting task", err).WithDetail("task_id", string(task.ID))
	}
	return nil
}

// Update rewrites a task's mutable fields.
func (r *TaskRepo) Update(ctx context.Context, task *core.Task) error {
	assignees, dependencies, metadata, err := marshalTaskFields(task)
	if err != nil {
		return err
	}
	task.UpdatedAt = time.Now()
	res, err := r.store.db.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, type = ?, status = ?, strategy = ?,
			assignees = ?, dependencies = ?, complexity = ?, risk = ?, metadata = ?, updated_at = ?
		WHERE id = ?
	`, task.Title, task.Description, string(task.Type), string(task.Status), string(task.Strategy),
		assignees, dependencies, task.Complexity, task.Risk, metadata, task.UpdatedAt, string(task.ID))
	if err != nil {
		return core.ErrPersistence("updating task", err).WithDetail("task_id", string(task.ID))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound("TASK", "task not found").WithDetail("task_id", string(task.ID))
	}
	return nil
}

// UpdateStatus transitions the stored status iff the current status is one
// of expectedFrom. A false return with nil error means the precondition
// failed: somebody else changed the row first.
func (r *TaskRepo) UpdateStatus(ctx context.Context, id ident.TaskID, to core.TaskStatus, expectedFrom ...core.TaskStatus) (bool, error) {
	if len(expectedFrom) == 0 {
		return false, core.ErrInvalidInput("STATUS", "expectedFrom must not be empty")
	}
	placeholders := make([]string, len(expectedFrom))
	args := []interface{}{string(to), time.Now(), string(id)}
	for i, st := range expectedFrom {
		placeholders[i] = "?"
		args = append(args, string(st))
	}
	query := fmt.Sprintf(`
		UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND status IN (%s)
	`, strings.Join(placeholders, ","))

	res, err := r.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, core.ErrPersistence("updating task status", err).WithDetail("task_id", string(id))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, core.ErrPersistence("reading rows affected", err).WithDetail("task_id", string(id))
	}
	return n > 0, nil
}

// FindByID looks a task up by identifier.
func (r *TaskRepo) FindByID(ctx context.Context, id ident.TaskID) (*core.Task, error) {
	row := r.store.db.QueryRowContext(ctx, taskSelect+` WHERE id = ?`, string(id))
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound("TASK", "task not found").WithDetail("task_id", string(id))
	}
	return task, err
}

// FindByStatus returns all tasks with the given status, newest first.
func (r *TaskRepo) FindByStatus(ctx context.Context, status core.TaskStatus) ([]*core.Task, error) {
	return r.queryTasks(ctx, taskSelect+` WHERE status = ? ORDER BY created_at DESC`, string(status))
}

// FindByAgent returns all tasks assigned to the agent, newest first.
func (r *TaskRepo) FindByAgent(ctx context.Context, agentID ident.AgentID) ([]*core.Task, error) {
	return r.queryTasks(ctx,
		taskSelect+` WHERE assignees LIKE ? ORDER BY created_at DESC`,
		`%"`+string(agentID)+`"%`)
}

// QueryFiltered applies the combined filter with limit/offset pagination.
func (r *TaskRepo) QueryFiltered(ctx context.Context, filter core.TaskFilter) ([]*core.Task, error) {
	var conds []string
	var args []interface{}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.AgentID != "" {
		conds = append(conds, "assignees LIKE ?")
		args = append(args, `%"`+string(filter.AgentID)+`"%`)
	}
	if !filter.From.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, filter.To)
	}

	query := taskSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}
	return r.queryTasks(ctx, query, args...)
}

const taskSelect = `
	SELECT id, title, description, type, status, strategy, assignees,
		dependencies, complexity, risk, metadata, created_at, updated_at
	FROM tasks`

func (r *TaskRepo) queryTasks(ctx context.Context, query string, args ...interface{}) ([]*core.Task, error) {
	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.ErrPersistence("querying tasks", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*core.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, core.ErrPersistence("iterating tasks", err)
	}
	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*core.Task, error) {
	var (
		task                             core.Task
		id, taskType, status, strategy   string
		assignees, dependencies, rawMeta string
	)
	err := row.Scan(&id, &task.Title, &task.Description, &taskType, &status, &strategy,
		&assignees, &dependencies, &task.Complexity, &task.Risk, &rawMeta,
		&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, core.ErrPersistence("scanning task", err)
	}
	task.ID = ident.TaskID(id)
	task.Type = core.TaskType(taskType)
	task.Status = core.TaskStatus(status)
	task.Strategy = core.RoutingStrategy(strategy)
	if err := json.Unmarshal([]byte(assignees), &task.Assignees); err != nil {
		return nil, core.ErrPersistence("decoding assignees", err).WithDetail("task_id", id)
	}
	if err := json.Unmarshal([]byte(dependencies), &task.Dependencies); err != nil {
		return nil, core.ErrPersistence("decoding dependencies", err).WithDetail("task_id", id)
	}
	if err := json.Unmarshal([]byte(rawMeta), &task.Metadata); err != nil {
		return nil, core.ErrPersistence("decoding metadata", err).WithDetail("task_id", id)
	}
	return &task, nil
}

func marshalTaskFields(task *core.Task) (assignees, dependencies, metadata string, err error) {
	if task.Assignees == nil {
		task.Assignees = []ident.AgentID{}
	}
	if task.Dependencies == nil {
		task.Dependencies = []ident.TaskID{}
	}
	if task.Metadata == nil {
		task.Metadata = map[string]string{}
	}
	a, err := json.Marshal(task.Assignees)
	if err != nil {
		return "", "", "", core.ErrPersistence("encoding assignees", err)
	}
	d, err := json.Marshal(task.Dependencies)
	if err != nil {
		return "", "", "", core.ErrPersistence("encoding dependencies", err)
	}
	m, err := json.Marshal(task.Metadata)
	if err != nil {
		return "", "", "", core.ErrPersistence("encoding metadata", err)
	}
	return string(a), string(d), string(m), nil
}
