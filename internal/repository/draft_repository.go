package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lewtec/marcador/internal/domain"
)

// DraftRepository implements domain.DraftRepository on sqlite
type DraftRepository struct {
	db querier
}

// NewDraftRepository creates a new DraftRepository
func NewDraftRepository(db *sql.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

// NewDraftRepositoryWithTx creates a new DraftRepository with a transaction
func NewDraftRepositoryWithTx(tx *sql.Tx) *DraftRepository {
	return &DraftRepository{db: tx}
}

const draftColumns = `id, task_id, annotation_id, result, lead_time, was_postponed, created_by, started_at, created_at`

// Create stores a draft. annotation is nil for work that was never submitted.
func (r *DraftRepository) Create(ctx context.Context, taskID int64, annotation *int64, d domain.Draft) (*domain.Draft, error) {
	result, err := encodeResult(d.Result)
	if err != nil {
		return nil, err
	}
	var annotationID sql.NullInt64
	if annotation != nil {
		annotationID = sql.NullInt64{Int64: *annotation, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO drafts
(task_id, annotation_id, result, lead_time, was_postponed, created_by, started_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		taskID, annotationID, result, d.LeadTime, d.WasPostponed, d.CreatedBy, nullTime(d.StartedAt), now())
	if err != nil {
		return nil, fmt.Errorf("while creating draft for task %d: %w", taskID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Update replaces the draft content, nil when the draft does not exist
func (r *DraftRepository) Update(ctx context.Context, id int64, d domain.Draft) (*domain.Draft, error) {
	result, err := encodeResult(d.Result)
	if err != nil {
		return nil, err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE drafts SET
result = ?, lead_time = ?, was_postponed = ?, started_at = COALESCE(?, started_at)
WHERE id = ?`,
		result, d.LeadTime, d.WasPostponed, nullTime(d.StartedAt), id)
	if err != nil {
		return nil, fmt.Errorf("while updating draft %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Get retrieves a draft
func (r *DraftRepository) Get(ctx context.Context, id int64) (*domain.Draft, error) {
	d, err := scanDraft(r.db.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM drafts WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

// ListForTask retrieves the drafts of a task, oldest first
func (r *DraftRepository) ListForTask(ctx context.Context, taskID int64) ([]*domain.Draft, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+draftColumns+` FROM drafts WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// Delete removes a draft by ID
func (r *DraftRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, id)
	return err
}

func scanDraft(row scanner) (*domain.Draft, error) {
	var (
		d            domain.Draft
		annotationID sql.NullInt64
		data         string
		startedAt    sql.NullTime
	)
	err := row.Scan(&d.ID, &d.TaskID, &annotationID, &data, &d.LeadTime,
		&d.WasPostponed, &d.CreatedBy, &startedAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	if annotationID.Valid {
		d.Annotation = &annotationID.Int64
	}
	if d.Result, err = decodeResult(data); err != nil {
		return nil, fmt.Errorf("while loading draft %d: %w", d.ID, err)
	}
	d.StartedAt = startedAt.Time
	return &d, nil
}

// Verify that DraftRepository implements domain.DraftRepository
var _ domain.DraftRepository = (*DraftRepository)(nil)
