package domain

import (
	"context"
	"time"

	"github.com/lewtec/marcador/internal/region"
)

// Annotation is a submitted annotation as stored by the backend
type Annotation struct {
	ID               int64           `json:"id"`
	TaskID           int64           `json:"task"`
	Result           []region.Result `json:"result"`
	CompletedBy      string          `json:"completed_by,omitempty"`
	LeadTime         float64         `json:"lead_time"`
	WasCancelled     bool            `json:"was_cancelled"`
	GroundTruth      bool            `json:"ground_truth"`
	ParentPrediction int64           `json:"parent_prediction,omitempty"`
	ParentAnnotation int64           `json:"parent_annotation,omitempty"`
	StartedAt        time.Time       `json:"started_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Prediction is a model output attached to a task
type Prediction struct {
	ID           int64           `json:"id"`
	TaskID       int64           `json:"task"`
	Result       []region.Result `json:"result"`
	ModelVersion string          `json:"model_version,omitempty"`
	Score        *float64        `json:"score,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Draft is unsubmitted work. Annotation is nil when the draft does not
// belong to a submitted annotation yet.
type Draft struct {
	ID           int64           `json:"id"`
	TaskID       int64           `json:"task"`
	Annotation   *int64          `json:"annotation"`
	Result       []region.Result `json:"result"`
	LeadTime     float64         `json:"lead_time"`
	WasPostponed bool            `json:"was_postponed"`
	CreatedBy    string          `json:"created_username,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	CreatedAt    time.Time       `json:"created_at"`
}

// HistoryItem is a past version of a submitted annotation
type HistoryItem struct {
	ID           int64           `json:"id"`
	AnnotationID int64           `json:"annotation_id"`
	Action       string          `json:"action"`
	Comment      string          `json:"comment,omitempty"`
	Result       []region.Result `json:"result"`
	CreatedAt    time.Time       `json:"created_at"`
}

// History actions
const (
	ActionSubmitted = "submitted"
	ActionUpdated   = "updated"
	ActionSkipped   = "skipped"
	ActionAccepted  = "accepted"
	ActionRejected  = "rejected"
)

// AnnotationStats provides statistics about annotations
type AnnotationStats struct {
	Tasks            int64
	AnnotatedTasks   int64
	TotalAnnotations int64
	SkippedTasks     int64
	TotalDrafts      int64
	TotalUsers       int64
}

// AnnotationInput is the payload a client sends for annotations and drafts.
type AnnotationInput struct {
	ID               int64           `json:"id,omitempty"`
	Result           []region.Result `json:"result"`
	CompletedBy      string          `json:"completed_by,omitempty"`
	LeadTime         float64         `json:"lead_time"`
	WasCancelled     bool            `json:"was_cancelled,omitempty"`
	WasPostponed     bool            `json:"was_postponed,omitempty"`
	DraftID          int64           `json:"draft_id,omitempty"`
	ParentPrediction int64           `json:"parent_prediction,omitempty"`
	ParentAnnotation int64           `json:"parent_annotation,omitempty"`
	Comment          string          `json:"comment,omitempty"`
	UniqueID         string          `json:"unique_id,omitempty"`
	StartedAt        time.Time       `json:"started_at"`
}

// AnnotationRepository defines the interface for annotation storage operations
type AnnotationRepository interface {
	// Create stores a new annotation and records it in the history
	Create(ctx context.Context, taskID int64, in AnnotationInput) (*Annotation, error)

	// Update replaces the result of an annotation and records the change
	Update(ctx context.Context, id int64, in AnnotationInput, action string) (*Annotation, error)

	// Get retrieves an annotation, nil if it does not exist
	Get(ctx context.Context, id int64) (*Annotation, error)

	// ListForTask retrieves all annotations of a task, oldest first
	ListForTask(ctx context.Context, taskID int64) ([]*Annotation, error)

	// History returns the versions of an annotation, newest first
	History(ctx context.Context, annotationID int64) ([]*HistoryItem, error)

	// Delete removes an annotation by ID
	Delete(ctx context.Context, id int64) error

	// GetStats returns overall annotation statistics
	GetStats(ctx context.Context) (*AnnotationStats, error)
}

// DraftRepository defines the interface for draft storage operations
type DraftRepository interface {
	// Create stores a draft for a task, optionally attached to an annotation
	Create(ctx context.Context, taskID int64, annotation *int64, d Draft) (*Draft, error)

	// Update replaces the draft content
	Update(ctx context.Context, id int64, d Draft) (*Draft, error)

	// Get retrieves a draft, nil if it does not exist
	Get(ctx context.Context, id int64) (*Draft, error)

	// ListForTask retrieves the drafts of a task
	ListForTask(ctx context.Context, taskID int64) ([]*Draft, error)

	// Delete removes a draft by ID
	Delete(ctx context.Context, id int64) error
}
