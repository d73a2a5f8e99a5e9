package repository

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"testing"

	"github.com/lewtec/marcador/internal/domain"
	"github.com/lewtec/marcador/internal/region"
)

func TestBackend(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	ctx := context.Background()
	tasks := NewTaskRepository(db)
	backend := NewBackend(db, "alice")

	t1, _ := tasks.Create(ctx, json.RawMessage(`{"image":"1.jpg"}`))
	tasks.Create(ctx, json.RawMessage(`{"image":"2.jpg"}`))

	call := func(t *testing.T, endpoint string, params domain.Params, body any) *domain.Response {
		t.Helper()
		res, err := backend.Call(ctx, endpoint, params, body)
		if err != nil {
			t.Fatalf("Call(%s) error = %v", endpoint, err)
		}
		return res
	}
	taskParams := domain.Params{domain.ParamTaskID: strconv.FormatInt(t1.ID, 10)}

	t.Run("next task carries the queue", func(t *testing.T) {
		res := call(t, domain.EndpointNextTask, nil, nil)
		if res.Status != http.StatusOK {
			t.Fatalf("Status = %d", res.Status)
		}
		var task domain.Task
		if err := res.Decode(&task); err != nil {
			t.Fatal(err)
		}
		if task.ID != t1.ID || task.QueueTotal != 2 || task.QueuePosition != 1 {
			t.Errorf("task = %+v", task)
		}
	})

	var draft domain.Draft
	t.Run("creates draft for task", func(t *testing.T) {
		res := call(t, domain.EndpointCreateDraftForTask, taskParams, domain.AnnotationInput{
			Result:   []region.Result{testResult("r1")},
			LeadTime: 2,
		})
		if res.Status != http.StatusCreated {
			t.Fatalf("Status = %d", res.Status)
		}
		if err := res.Decode(&draft); err != nil {
			t.Fatal(err)
		}
		if draft.ID == 0 || draft.CreatedBy != "alice" {
			t.Errorf("draft = %+v", draft)
		}
	})

	var ann domain.Annotation
	t.Run("submit consumes the draft", func(t *testing.T) {
		body := map[string]any{
			"result":   []region.Result{testResult("r1")},
			"draft_id": draft.ID,
		}
		res := call(t, domain.EndpointSubmitAnnotation, taskParams, body)
		if res.Status != http.StatusCreated {
			t.Fatalf("Status = %d", res.Status)
		}
		if err := res.Decode(&ann); err != nil {
			t.Fatal(err)
		}
		if ann.CompletedBy != "alice" {
			t.Errorf("CompletedBy = %q, want alice", ann.CompletedBy)
		}
		res = call(t, domain.EndpointTask, taskParams, nil)
		var task domain.Task
		if err := res.Decode(&task); err != nil {
			t.Fatal(err)
		}
		if len(task.Drafts) != 0 || len(task.Annotations) != 1 {
			t.Errorf("task has %d drafts and %d annotations", len(task.Drafts), len(task.Annotations))
		}
	})

	annParams := domain.Params{domain.ParamAnnotationID: strconv.FormatInt(ann.ID, 10)}

	t.Run("update records the action", func(t *testing.T) {
		params := domain.Params{
			domain.ParamAnnotationID: annParams[domain.ParamAnnotationID],
			domain.ParamAction:       domain.ActionRejected,
		}
		res := call(t, domain.EndpointUpdateAnnotation, params, domain.AnnotationInput{Comment: "wrong box"})
		if res.Status != http.StatusOK {
			t.Fatalf("Status = %d", res.Status)
		}
		res = call(t, domain.EndpointAnnotationHistory, annParams, nil)
		var items []domain.HistoryItem
		if err := res.Decode(&items); err != nil {
			t.Fatal(err)
		}
		if len(items) != 2 || items[0].Action != domain.ActionRejected || items[0].Comment != "wrong box" {
			t.Errorf("history = %+v", items)
		}
	})

	t.Run("skip via update defaults to skipped", func(t *testing.T) {
		call(t, domain.EndpointUpdateAnnotation, annParams, domain.AnnotationInput{WasCancelled: true})
		items, _ := backend.annotations.History(ctx, ann.ID)
		if items[0].Action != domain.ActionSkipped {
			t.Errorf("action = %v, want skipped", items[0].Action)
		}
	})

	t.Run("not found and bad requests", func(t *testing.T) {
		tests := []struct {
			name     string
			endpoint string
			params   domain.Params
			want     int
		}{
			{"missing task", domain.EndpointTask, domain.Params{domain.ParamTaskID: "999"}, http.StatusNotFound},
			{"no task id", domain.EndpointTask, nil, http.StatusBadRequest},
			{"submit to missing task", domain.EndpointSubmitAnnotation, domain.Params{domain.ParamTaskID: "999"}, http.StatusNotFound},
			{"update missing annotation", domain.EndpointUpdateAnnotation, domain.Params{domain.ParamAnnotationID: "999"}, http.StatusNotFound},
			{"update missing draft", domain.EndpointUpdateDraft, domain.Params{domain.ParamDraftID: "999"}, http.StatusNotFound},
			{"delete missing annotation", domain.EndpointDeleteAnnotation, domain.Params{domain.ParamAnnotationID: "999"}, http.StatusNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				res := call(t, tt.endpoint, tt.params, nil)
				if res.Status != tt.want {
					t.Errorf("Status = %d, want %d", res.Status, tt.want)
				}
			})
		}
	})

	t.Run("delete annotation", func(t *testing.T) {
		res := call(t, domain.EndpointDeleteAnnotation, annParams, nil)
		if res.Status != http.StatusNoContent {
			t.Fatalf("Status = %d", res.Status)
		}
	})

	t.Run("presign echoes the url", func(t *testing.T) {
		res := call(t, domain.EndpointPresignURLForProject, domain.Params{domain.ParamURL: "s3://bucket/a.jpg"}, nil)
		var body struct {
			URL string `json:"url"`
		}
		if err := res.Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.URL != "s3://bucket/a.jpg" {
			t.Errorf("URL = %q", body.URL)
		}
	})

	t.Run("unknown endpoint", func(t *testing.T) {
		_, err := backend.Call(ctx, "nope", nil, nil)
		if !errors.Is(err, ErrUnknownEndpoint) {
			t.Errorf("error = %v, want ErrUnknownEndpoint", err)
		}
	})
}
