package repository

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/lewtec/marcador/internal/domain"
	"github.com/lewtec/marcador/internal/region"
)

func testResult(id string) region.Result {
	return region.Result{
		ID:       id,
		Type:     "rectanglelabels",
		Value:    json.RawMessage(`{"x":1,"y":2,"width":3,"height":4,"rectanglelabels":["Car"]}`),
		FromName: "label",
		ToName:   "image",
	}
}

func TestTaskRepository_Create(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	repo := NewTaskRepository(db)
	ctx := context.Background()

	t.Run("creates task successfully", func(t *testing.T) {
		task, err := repo.Create(ctx, json.RawMessage(`{"image":"a.jpg"}`))
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if task.ID == 0 {
			t.Error("Expected non-zero ID")
		}
		if task.CreatedAt.IsZero() {
			t.Error("CreatedAt should not be zero")
		}
		if !task.PostponeAllowed() {
			t.Error("postpone should be allowed by default")
		}
	})

	t.Run("fails on invalid data", func(t *testing.T) {
		if _, err := repo.Create(ctx, json.RawMessage(`{`)); err == nil {
			t.Error("Expected error for invalid JSON")
		}
	})
}

func TestTaskRepository_Get(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	tasks := NewTaskRepository(db)
	annotations := NewAnnotationRepository(db)
	drafts := NewDraftRepository(db)
	ctx := context.Background()

	created, err := tasks.Create(ctx, json.RawMessage(`{"image":"a.jpg"}`))
	if err != nil {
		t.Fatalf("Failed to create test task: %v", err)
	}
	score := 0.8
	if _, err := tasks.AddPrediction(ctx, created.ID, domain.Prediction{
		Result:       []region.Result{testResult("p1")},
		ModelVersion: "v1",
		Score:        &score,
	}); err != nil {
		t.Fatalf("AddPrediction() error = %v", err)
	}
	ann, err := annotations.Create(ctx, created.ID, domain.AnnotationInput{
		Result:      []region.Result{testResult("a1")},
		CompletedBy: "alice",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := drafts.Create(ctx, created.ID, &ann.ID, domain.Draft{Result: []region.Result{testResult("d1")}}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	t.Run("retrieves task with everything attached", func(t *testing.T) {
		task, err := tasks.Get(ctx, created.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if task == nil {
			t.Fatal("Expected task, got nil")
		}
		if string(task.Data) != `{"image":"a.jpg"}` {
			t.Errorf("Data = %s", task.Data)
		}
		if len(task.Annotations) != 1 || task.Annotations[0].Result[0].ID != "a1" {
			t.Errorf("Annotations = %+v", task.Annotations)
		}
		if len(task.Predictions) != 1 || task.Predictions[0].ModelVersion != "v1" {
			t.Errorf("Predictions = %+v", task.Predictions)
		}
		if task.Predictions[0].Score == nil || *task.Predictions[0].Score != 0.8 {
			t.Errorf("Score = %v, want 0.8", task.Predictions[0].Score)
		}
		if len(task.Drafts) != 1 || task.Drafts[0].Annotation == nil || *task.Drafts[0].Annotation != ann.ID {
			t.Errorf("Drafts = %+v", task.Drafts)
		}
	})

	t.Run("returns nil for missing task", func(t *testing.T) {
		task, err := tasks.Get(ctx, 9999)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if task != nil {
			t.Error("Expected nil for non-existent task")
		}
	})

	t.Run("postpone override", func(t *testing.T) {
		no := false
		if err := tasks.SetAllowPostpone(ctx, created.ID, &no); err != nil {
			t.Fatalf("SetAllowPostpone() error = %v", err)
		}
		task, _ := tasks.Get(ctx, created.ID)
		if task.PostponeAllowed() {
			t.Error("postpone should be forbidden")
		}
	})
}

func TestTaskRepository_Next(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	tasks := NewTaskRepository(db)
	annotations := NewAnnotationRepository(db)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		task, err := tasks.Create(ctx, json.RawMessage(`{}`))
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		ids = append(ids, task.ID)
	}
	if _, err := annotations.Create(ctx, ids[0], domain.AnnotationInput{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	t.Run("skips annotated tasks", func(t *testing.T) {
		task, err := tasks.Next(ctx)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if task == nil || task.ID != ids[1] {
			t.Errorf("Next() = %+v, want task %d", task, ids[1])
		}
	})

	t.Run("honours exclusions", func(t *testing.T) {
		task, err := tasks.Next(ctx, ids[1])
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if task == nil || task.ID != ids[2] {
			t.Errorf("Next() = %+v, want task %d", task, ids[2])
		}
	})

	t.Run("returns nil when exhausted", func(t *testing.T) {
		task, err := tasks.Next(ctx, ids[1], ids[2])
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if task != nil {
			t.Errorf("Next() = %+v, want nil", task)
		}
	})

	t.Run("postponed tasks go last", func(t *testing.T) {
		drafts := NewDraftRepository(db)
		d, err := drafts.Create(ctx, ids[1], nil, domain.Draft{WasPostponed: true})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		defer drafts.Delete(ctx, d.ID)

		task, err := tasks.Next(ctx)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if task == nil || task.ID != ids[2] {
			t.Errorf("Next() = %+v, want task %d", task, ids[2])
		}
		task, _ = tasks.Next(ctx, ids[2])
		if task == nil || task.ID != ids[1] {
			t.Errorf("Next() = %+v, want postponed task %d", task, ids[1])
		}
	})

	t.Run("counts", func(t *testing.T) {
		total, _ := tasks.Count(ctx)
		pending, _ := tasks.CountPending(ctx)
		if total != 3 || pending != 2 {
			t.Errorf("Count() = %d, CountPending() = %d, want 3 and 2", total, pending)
		}
	})
}

func TestTaskRepository_Delete(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	tasks := NewTaskRepository(db)
	annotations := NewAnnotationRepository(db)
	ctx := context.Background()

	task, _ := tasks.Create(ctx, json.RawMessage(`{}`))
	ann, err := annotations.Create(ctx, task.ID, domain.AnnotationInput{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := tasks.Delete(ctx, task.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	got, err := annotations.Get(ctx, ann.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Error("annotations should be deleted with their task")
	}
	list, err := tasks.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 0 {
		t.Errorf("List() returned %d tasks, want 0", len(list))
	}
}
