package domain

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
)

// Task represents one item to be annotated together with everything
// already done on it
type Task struct {
	ID                        int64           `json:"id"`
	Data                      json.RawMessage `json:"data"`
	Annotations               []Annotation    `json:"annotations"`
	Predictions               []Prediction    `json:"predictions"`
	Drafts                    []Draft         `json:"drafts"`
	AllowPostpone             *bool           `json:"allow_postpone,omitempty"`
	DefaultSelectedAnnotation *int64          `json:"default_selected_annotation,omitempty"`
	UniqueLockID              string          `json:"unique_lock_id,omitempty"`
	QueueTotal                int             `json:"queue_total,omitempty"`
	QueuePosition             int             `json:"queue_position,omitempty"`
	CreatedAt                 time.Time       `json:"created_at"`
}

// PostponeAllowed is true unless the task explicitly forbids it.
func (t *Task) PostponeAllowed() bool {
	return t.AllowPostpone == nil || *t.AllowPostpone
}

// FindDraft returns the draft with the given id.
func (t *Task) FindDraft(id int64) (*Draft, bool) {
	if id == 0 {
		return nil, false
	}
	for i := range t.Drafts {
		if t.Drafts[i].ID == id {
			return &t.Drafts[i], true
		}
	}
	return nil, false
}

// DeleteDraft forgets a draft locally.
func (t *Task) DeleteDraft(id int64) {
	for i := range t.Drafts {
		if t.Drafts[i].ID == id {
			t.Drafts = append(t.Drafts[:i], t.Drafts[i+1:]...)
			return
		}
	}
}

// TaskRepository defines the interface for task storage operations
type TaskRepository interface {
	// Create creates a new task from its raw data
	Create(ctx context.Context, data json.RawMessage) (*Task, error)

	// Get retrieves a task with its annotations, predictions and drafts; nil if missing
	Get(ctx context.Context, id int64) (*Task, error)

	// Next returns the first task without any annotation, skipping the given ids; nil if none
	Next(ctx context.Context, exclude ...int64) (*Task, error)

	// List retrieves all tasks without their annotations
	List(ctx context.Context) ([]*Task, error)

	// Count returns the total number of tasks
	Count(ctx context.Context) (int64, error)

	// SetAllowPostpone overrides whether the task may be postponed; nil restores the default
	SetAllowPostpone(ctx context.Context, id int64, allow *bool) error

	// AddPrediction attaches a model prediction to a task
	AddPrediction(ctx context.Context, taskID int64, p Prediction) (*Prediction, error)

	// Delete removes a task and everything attached to it
	Delete(ctx context.Context, id int64) error
}

// FormatID turns a backend id into the string key used by the editor.
func FormatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

// ParseID is the inverse of FormatID. Client generated keys are not numeric
// and report false.
func ParseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
