package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lewtec/marcador/internal/domain"
)

// AnnotationRepository implements domain.AnnotationRepository on sqlite.
// Every write also appends a row to the annotation history.
type AnnotationRepository struct {
	db querier
}

// NewAnnotationRepository creates a new AnnotationRepository
func NewAnnotationRepository(db *sql.DB) *AnnotationRepository {
	return &AnnotationRepository{db: db}
}

// NewAnnotationRepositoryWithTx creates a new AnnotationRepository with a transaction
func NewAnnotationRepositoryWithTx(tx *sql.Tx) *AnnotationRepository {
	return &AnnotationRepository{db: tx}
}

const annotationColumns = `id, task_id, result, completed_by, lead_time, was_cancelled, ground_truth,
parent_prediction, parent_annotation, started_at, created_at, updated_at`

// Create stores a submitted annotation. Cancelled annotations are recorded
// as skipped in the history.
func (r *AnnotationRepository) Create(ctx context.Context, taskID int64, in domain.AnnotationInput) (*domain.Annotation, error) {
	result, err := encodeResult(in.Result)
	if err != nil {
		return nil, err
	}
	action := domain.ActionSubmitted
	if in.WasCancelled {
		action = domain.ActionSkipped
	}
	var id int64
	err = withTx(ctx, r.db, func(q querier) error {
		createdAt := now()
		res, err := q.ExecContext(ctx, `INSERT INTO annotations
(task_id, result, completed_by, lead_time, was_cancelled, parent_prediction, parent_annotation, started_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			taskID, result, in.CompletedBy, in.LeadTime, in.WasCancelled,
			in.ParentPrediction, in.ParentAnnotation, nullTime(in.StartedAt), createdAt, createdAt)
		if err != nil {
			return fmt.Errorf("while creating annotation for task %d: %w", taskID, err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		return addHistory(ctx, q, id, action, in.Comment, result)
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Update replaces the content of an annotation. A nil result is returned
// when the annotation does not exist.
func (r *AnnotationRepository) Update(ctx context.Context, id int64, in domain.AnnotationInput, action string) (*domain.Annotation, error) {
	result, err := encodeResult(in.Result)
	if err != nil {
		return nil, err
	}
	if action == "" {
		action = domain.ActionUpdated
	}
	found := false
	err = withTx(ctx, r.db, func(q querier) error {
		res, err := q.ExecContext(ctx, `UPDATE annotations SET
result = ?, lead_time = ?, was_cancelled = ?, completed_by = COALESCE(NULLIF(?, ''), completed_by), updated_at = ?
WHERE id = ?`,
			result, in.LeadTime, in.WasCancelled, in.CompletedBy, now(), id)
		if err != nil {
			return fmt.Errorf("while updating annotation %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		found = true
		return addHistory(ctx, q, id, action, in.Comment, result)
	})
	if err != nil || !found {
		return nil, err
	}
	return r.Get(ctx, id)
}

// SetGroundTruth flags an annotation as the reference one for its task
func (r *AnnotationRepository) SetGroundTruth(ctx context.Context, id int64, value bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE annotations SET ground_truth = ? WHERE id = ?`, value, id)
	return err
}

// Get retrieves an annotation
func (r *AnnotationRepository) Get(ctx context.Context, id int64) (*domain.Annotation, error) {
	ann, err := scanAnnotation(r.db.QueryRowContext(ctx,
		`SELECT `+annotationColumns+` FROM annotations WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ann, nil
}

// ListForTask retrieves all annotations for a specific task
func (r *AnnotationRepository) ListForTask(ctx context.Context, taskID int64) ([]*domain.Annotation, error) {
	return r.list(ctx, `SELECT `+annotationColumns+` FROM annotations WHERE task_id = ? ORDER BY id`, taskID)
}

// ListByUser retrieves the annotations completed by a user, newest first
func (r *AnnotationRepository) ListByUser(ctx context.Context, username string, limit, offset int) ([]*domain.Annotation, error) {
	return r.list(ctx, `SELECT `+annotationColumns+` FROM annotations
WHERE completed_by = ? ORDER BY id DESC LIMIT ? OFFSET ?`, username, limit, offset)
}

// All retrieves every annotation, oldest first
func (r *AnnotationRepository) All(ctx context.Context) ([]*domain.Annotation, error) {
	return r.list(ctx, `SELECT `+annotationColumns+` FROM annotations ORDER BY id`)
}

func (r *AnnotationRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Annotation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Annotation
	for rows.Next() {
		ann, err := scanAnnotation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ann)
	}
	return result, rows.Err()
}

// CountByUser returns the total number of annotations by a user
func (r *AnnotationRepository) CountByUser(ctx context.Context, username string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM annotations WHERE completed_by = ?`, username).Scan(&count)
	return count, err
}

// History returns the recorded versions of an annotation, newest first
func (r *AnnotationRepository) History(ctx context.Context, annotationID int64) ([]*domain.HistoryItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, annotation_id, action, comment, result, created_at
FROM annotation_history WHERE annotation_id = ? ORDER BY id DESC`, annotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.HistoryItem
	for rows.Next() {
		var (
			item domain.HistoryItem
			data string
		)
		if err := rows.Scan(&item.ID, &item.AnnotationID, &item.Action, &item.Comment, &data, &item.CreatedAt); err != nil {
			return nil, err
		}
		if item.Result, err = decodeResult(data); err != nil {
			return nil, fmt.Errorf("while loading history item %d: %w", item.ID, err)
		}
		result = append(result, &item)
	}
	return result, rows.Err()
}

// Delete removes an annotation by ID
func (r *AnnotationRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM annotations WHERE id = ?`, id)
	return err
}

// GetStats returns overall annotation statistics
func (r *AnnotationRepository) GetStats(ctx context.Context) (*domain.AnnotationStats, error) {
	var stats domain.AnnotationStats
	err := r.db.QueryRowContext(ctx, `SELECT
(SELECT COUNT(*) FROM tasks),
(SELECT COUNT(DISTINCT task_id) FROM annotations WHERE NOT was_cancelled),
(SELECT COUNT(*) FROM annotations),
(SELECT COUNT(DISTINCT task_id) FROM annotations WHERE was_cancelled),
(SELECT COUNT(*) FROM drafts),
(SELECT COUNT(DISTINCT completed_by) FROM annotations WHERE completed_by != '')`).Scan(
		&stats.Tasks, &stats.AnnotatedTasks, &stats.TotalAnnotations,
		&stats.SkippedTasks, &stats.TotalDrafts, &stats.TotalUsers)
	if err != nil {
		return nil, fmt.Errorf("while computing stats: %w", err)
	}
	return &stats, nil
}

func addHistory(ctx context.Context, q querier, annotationID int64, action, comment, result string) error {
	_, err := q.ExecContext(ctx, `INSERT INTO annotation_history
(annotation_id, action, comment, result, created_at) VALUES (?, ?, ?, ?, ?)`,
		annotationID, action, comment, result, now())
	if err != nil {
		return fmt.Errorf("while recording history of annotation %d: %w", annotationID, err)
	}
	return nil
}

func scanAnnotation(row scanner) (*domain.Annotation, error) {
	var (
		ann       domain.Annotation
		data      string
		startedAt sql.NullTime
	)
	err := row.Scan(&ann.ID, &ann.TaskID, &data, &ann.CompletedBy, &ann.LeadTime,
		&ann.WasCancelled, &ann.GroundTruth, &ann.ParentPrediction, &ann.ParentAnnotation,
		&startedAt, &ann.CreatedAt, &ann.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if ann.Result, err = decodeResult(data); err != nil {
		return nil, fmt.Errorf("while loading annotation %d: %w", ann.ID, err)
	}
	ann.StartedAt = startedAt.Time
	return &ann, nil
}

// Verify that AnnotationRepository implements domain.AnnotationRepository
var _ domain.AnnotationRepository = (*AnnotationRepository)(nil)
