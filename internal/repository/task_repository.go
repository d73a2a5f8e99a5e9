package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lewtec/marcador/internal/domain"
)

// TaskRepository implements domain.TaskRepository on sqlite
type TaskRepository struct {
	db          querier
	annotations *AnnotationRepository
	drafts      *DraftRepository
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return newTaskRepository(db)
}

// NewTaskRepositoryWithTx creates a new TaskRepository bound to a transaction
func NewTaskRepositoryWithTx(tx *sql.Tx) *TaskRepository {
	return newTaskRepository(tx)
}

func newTaskRepository(q querier) *TaskRepository {
	return &TaskRepository{
		db:          q,
		annotations: &AnnotationRepository{db: q},
		drafts:      &DraftRepository{db: q},
	}
}

// Create creates a new task record
func (r *TaskRepository) Create(ctx context.Context, data json.RawMessage) (*domain.Task, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("task data is not valid JSON")
	}
	createdAt := now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (data, created_at) VALUES (?, ?)`,
		string(data), createdAt)
	if err != nil {
		return nil, fmt.Errorf("while creating task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &domain.Task{ID: id, Data: data, CreatedAt: createdAt}, nil
}

// SetAllowPostpone stores the per task postpone override; nil clears it
func (r *TaskRepository) SetAllowPostpone(ctx context.Context, id int64, allow *bool) error {
	var v sql.NullBool
	if allow != nil {
		v = sql.NullBool{Bool: *allow, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `UPDATE tasks SET allow_postpone = ? WHERE id = ?`, v, id)
	return err
}

// Get retrieves a task with everything attached to it
func (r *TaskRepository) Get(ctx context.Context, id int64) (*domain.Task, error) {
	task, err := r.scanTask(r.db.QueryRowContext(ctx,
		`SELECT id, data, allow_postpone, created_at FROM tasks WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := r.fill(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Next returns the oldest task that has no annotation yet. Postponed tasks
// come after every other one.
func (r *TaskRepository) Next(ctx context.Context, exclude ...int64) (*domain.Task, error) {
	query := `SELECT id, data, allow_postpone, created_at FROM tasks t
WHERE NOT EXISTS (SELECT 1 FROM annotations a WHERE a.task_id = t.id)`
	args := make([]any, 0, len(exclude))
	if len(exclude) > 0 {
		query += ` AND t.id NOT IN (?` + strings.Repeat(", ?", len(exclude)-1) + `)`
		for _, id := range exclude {
			args = append(args, id)
		}
	}
	query += ` ORDER BY EXISTS (SELECT 1 FROM drafts d WHERE d.task_id = t.id AND d.was_postponed), t.id LIMIT 1`
	task, err := r.scanTask(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := r.fill(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// CountPending returns the number of tasks without annotations
func (r *TaskRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks t
WHERE NOT EXISTS (SELECT 1 FROM annotations a WHERE a.task_id = t.id)`).Scan(&count)
	return count, err
}

// List retrieves all tasks without their annotations
func (r *TaskRepository) List(ctx context.Context) ([]*domain.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, data, allow_postpone, created_at FROM tasks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Task
	for rows.Next() {
		task, err := r.scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, task)
	}
	return result, rows.Err()
}

// Exists reports whether a task with the given ID exists
func (r *TaskRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE id = ?`, id).Scan(&n)
	return n > 0, err
}

// Count returns the total number of tasks
func (r *TaskRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&count)
	return count, err
}

// AddPrediction attaches a model prediction to a task
func (r *TaskRepository) AddPrediction(ctx context.Context, taskID int64, p domain.Prediction) (*domain.Prediction, error) {
	result, err := encodeResult(p.Result)
	if err != nil {
		return nil, err
	}
	var score sql.NullFloat64
	if p.Score != nil {
		score = sql.NullFloat64{Float64: *p.Score, Valid: true}
	}
	p.TaskID = taskID
	p.CreatedAt = now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO predictions (task_id, result, model_version, score, created_at) VALUES (?, ?, ?, ?, ?)`,
		taskID, result, p.ModelVersion, score, p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("while adding prediction to task %d: %w", taskID, err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Predictions lists the predictions of a task, oldest first
func (r *TaskRepository) Predictions(ctx context.Context, taskID int64) ([]domain.Prediction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, task_id, result, model_version, score, created_at FROM predictions WHERE task_id = ? ORDER BY id`,
		taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Prediction
	for rows.Next() {
		var (
			p     domain.Prediction
			data  string
			score sql.NullFloat64
		)
		if err := rows.Scan(&p.ID, &p.TaskID, &data, &p.ModelVersion, &score, &p.CreatedAt); err != nil {
			return nil, err
		}
		if p.Result, err = decodeResult(data); err != nil {
			return nil, fmt.Errorf("while loading prediction %d: %w", p.ID, err)
		}
		if score.Valid {
			p.Score = &score.Float64
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// Delete removes a task by ID
func (r *TaskRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *TaskRepository) scanTask(row scanner) (*domain.Task, error) {
	var (
		task  domain.Task
		data  string
		allow sql.NullBool
	)
	if err := row.Scan(&task.ID, &data, &allow, &task.CreatedAt); err != nil {
		return nil, err
	}
	task.Data = json.RawMessage(data)
	if allow.Valid {
		task.AllowPostpone = &allow.Bool
	}
	return &task, nil
}

func (r *TaskRepository) fill(ctx context.Context, task *domain.Task) error {
	annotations, err := r.annotations.ListForTask(ctx, task.ID)
	if err != nil {
		return err
	}
	task.Annotations = make([]domain.Annotation, len(annotations))
	for i, a := range annotations {
		task.Annotations[i] = *a
	}

	if task.Predictions, err = r.Predictions(ctx, task.ID); err != nil {
		return err
	}

	drafts, err := r.drafts.ListForTask(ctx, task.ID)
	if err != nil {
		return err
	}
	task.Drafts = make([]domain.Draft, len(drafts))
	for i, d := range drafts {
		task.Drafts[i] = *d
	}
	return nil
}

// Verify that TaskRepository implements domain.TaskRepository
var _ domain.TaskRepository = (*TaskRepository)(nil)
