package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/lewtec/marcador/internal/domain"
	"github.com/lewtec/marcador/internal/region"
)

func TestAnnotationRepository_Create(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	tasks := NewTaskRepository(db)
	repo := NewAnnotationRepository(db)
	ctx := context.Background()

	task, err := tasks.Create(ctx, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Failed to create test task: %v", err)
	}
	startedAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("creates annotation with history", func(t *testing.T) {
		ann, err := repo.Create(ctx, task.ID, domain.AnnotationInput{
			Result:           []region.Result{testResult("r1")},
			CompletedBy:      "alice",
			LeadTime:         12.5,
			ParentPrediction: 7,
			StartedAt:        startedAt,
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if ann.ID == 0 {
			t.Error("Expected non-zero ID")
		}
		if ann.TaskID != task.ID {
			t.Errorf("TaskID = %v, want %v", ann.TaskID, task.ID)
		}
		if ann.LeadTime != 12.5 {
			t.Errorf("LeadTime = %v, want 12.5", ann.LeadTime)
		}
		if ann.ParentPrediction != 7 {
			t.Errorf("ParentPrediction = %v, want 7", ann.ParentPrediction)
		}
		if !ann.StartedAt.Equal(startedAt) {
			t.Errorf("StartedAt = %v, want %v", ann.StartedAt, startedAt)
		}
		if len(ann.Result) != 1 || ann.Result[0].ID != "r1" {
			t.Errorf("Result = %+v", ann.Result)
		}

		history, err := repo.History(ctx, ann.ID)
		if err != nil {
			t.Fatalf("History() error = %v", err)
		}
		if len(history) != 1 || history[0].Action != domain.ActionSubmitted {
			t.Errorf("History() = %+v, want one submitted item", history)
		}
	})

	t.Run("cancelled annotation is recorded as skipped", func(t *testing.T) {
		ann, err := repo.Create(ctx, task.ID, domain.AnnotationInput{WasCancelled: true, Comment: "blurry"})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if !ann.WasCancelled {
			t.Error("WasCancelled should be true")
		}
		if ann.Result == nil {
			t.Error("empty result should decode to an empty list")
		}
		history, _ := repo.History(ctx, ann.ID)
		if len(history) != 1 || history[0].Action != domain.ActionSkipped || history[0].Comment != "blurry" {
			t.Errorf("History() = %+v", history)
		}
	})

	t.Run("fails for missing task", func(t *testing.T) {
		if _, err := repo.Create(ctx, 9999, domain.AnnotationInput{}); err == nil {
			t.Error("Expected foreign key error")
		}
	})
}

func TestAnnotationRepository_Update(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	tasks := NewTaskRepository(db)
	repo := NewAnnotationRepository(db)
	ctx := context.Background()

	task, _ := tasks.Create(ctx, json.RawMessage(`{}`))
	ann, err := repo.Create(ctx, task.ID, domain.AnnotationInput{
		Result:      []region.Result{testResult("r1")},
		CompletedBy: "alice",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	t.Run("updates and appends history", func(t *testing.T) {
		updated, err := repo.Update(ctx, ann.ID, domain.AnnotationInput{
			Result: []region.Result{testResult("r1"), testResult("r2")},
		}, domain.ActionAccepted)
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if len(updated.Result) != 2 {
			t.Errorf("Result has %d entries, want 2", len(updated.Result))
		}
		if updated.CompletedBy != "alice" {
			t.Errorf("CompletedBy = %q, want alice to be kept", updated.CompletedBy)
		}

		history, err := repo.History(ctx, ann.ID)
		if err != nil {
			t.Fatalf("History() error = %v", err)
		}
		if len(history) != 2 {
			t.Fatalf("History() has %d items, want 2", len(history))
		}
		if history[0].Action != domain.ActionAccepted {
			t.Errorf("newest action = %v, want %v", history[0].Action, domain.ActionAccepted)
		}
		if len(history[1].Result) != 1 {
			t.Errorf("oldest version should keep the original result")
		}
	})

	t.Run("empty action defaults to updated", func(t *testing.T) {
		if _, err := repo.Update(ctx, ann.ID, domain.AnnotationInput{}, ""); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		history, _ := repo.History(ctx, ann.ID)
		if history[0].Action != domain.ActionUpdated {
			t.Errorf("action = %v, want %v", history[0].Action, domain.ActionUpdated)
		}
	})

	t.Run("returns nil for missing annotation", func(t *testing.T) {
		got, err := repo.Update(ctx, 9999, domain.AnnotationInput{}, "")
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if got != nil {
			t.Error("Expected nil for non-existent annotation")
		}
	})
}

func TestAnnotationRepository_GetStats(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	tasks := NewTaskRepository(db)
	repo := NewAnnotationRepository(db)
	drafts := NewDraftRepository(db)
	ctx := context.Background()

	t1, _ := tasks.Create(ctx, json.RawMessage(`{}`))
	t2, _ := tasks.Create(ctx, json.RawMessage(`{}`))
	tasks.Create(ctx, json.RawMessage(`{}`))

	mustCreate := func(taskID int64, in domain.AnnotationInput) {
		t.Helper()
		if _, err := repo.Create(ctx, taskID, in); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	mustCreate(t1.ID, domain.AnnotationInput{CompletedBy: "alice"})
	mustCreate(t1.ID, domain.AnnotationInput{CompletedBy: "bob"})
	mustCreate(t2.ID, domain.AnnotationInput{CompletedBy: "alice", WasCancelled: true})
	if _, err := drafts.Create(ctx, t2.ID, nil, domain.Draft{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	stats, err := repo.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}

	tests := []struct {
		name string
		got  int64
		want int64
	}{
		{"Tasks", stats.Tasks, 3},
		{"AnnotatedTasks", stats.AnnotatedTasks, 1},
		{"TotalAnnotations", stats.TotalAnnotations, 3},
		{"SkippedTasks", stats.SkippedTasks, 1},
		{"TotalDrafts", stats.TotalDrafts, 1},
		{"TotalUsers", stats.TotalUsers, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}

	count, err := repo.CountByUser(ctx, "alice")
	if err != nil {
		t.Fatalf("CountByUser() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountByUser() = %v, want 2", count)
	}
	byUser, err := repo.ListByUser(ctx, "alice", 10, 0)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(byUser) != 2 || !byUser[0].WasCancelled {
		t.Errorf("ListByUser() should return newest first, got %+v", byUser)
	}
}
