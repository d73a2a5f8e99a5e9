package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/lewtec/marcador/internal/domain"
)

// ErrUnknownEndpoint is returned for endpoints the local backend does not serve
var ErrUnknownEndpoint = errors.New("unknown endpoint")

// Backend serves the annotation API from the local database. Storage
// failures become 500 responses so callers treat them like a remote error.
type Backend struct {
	db          *sql.DB
	tasks       *TaskRepository
	annotations *AnnotationRepository
	drafts      *DraftRepository
	username    string
}

// NewBackend creates a Backend that records username as the author of
// everything it stores
func NewBackend(db *sql.DB, username string) *Backend {
	return &Backend{
		db:          db,
		tasks:       NewTaskRepository(db),
		annotations: NewAnnotationRepository(db),
		drafts:      NewDraftRepository(db),
		username:    username,
	}
}

type errorBody struct {
	Detail string `json:"detail"`
}

type presignBody struct {
	URL string `json:"url"`
}

func fail(status int, format string, args ...any) (*domain.Response, error) {
	return domain.JSONResponse(status, errorBody{Detail: fmt.Sprintf(format, args...)})
}

// Call implements domain.API
func (b *Backend) Call(ctx context.Context, endpoint string, params domain.Params, body any) (*domain.Response, error) {
	var (
		res *domain.Response
		err error
	)
	switch endpoint {
	case domain.EndpointTask:
		res, err = b.task(ctx, params)
	case domain.EndpointNextTask:
		res, err = b.nextTask(ctx)
	case domain.EndpointSubmitAnnotation:
		res, err = b.submitAnnotation(ctx, params, body)
	case domain.EndpointUpdateAnnotation:
		res, err = b.updateAnnotation(ctx, params, body)
	case domain.EndpointDeleteAnnotation:
		res, err = b.deleteAnnotation(ctx, params)
	case domain.EndpointCreateDraftForTask, domain.EndpointCreateDraftForAnnotation:
		res, err = b.createDraft(ctx, endpoint, params, body)
	case domain.EndpointUpdateDraft:
		res, err = b.updateDraft(ctx, params, body)
	case domain.EndpointDeleteDraft:
		res, err = b.deleteDraft(ctx, params)
	case domain.EndpointAnnotationHistory:
		res, err = b.annotationHistory(ctx, params)
	case domain.EndpointPresignURLForProject:
		res, err = domain.JSONResponse(http.StatusOK, presignBody{URL: params[domain.ParamURL]})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEndpoint, endpoint)
	}
	if err != nil {
		log.Printf("backend: %s: %s", endpoint, err)
		return fail(http.StatusInternalServerError, "%s", err)
	}
	return res, nil
}

func paramID(params domain.Params, name string) (int64, bool) {
	id, err := strconv.ParseInt(params[name], 10, 64)
	return id, err == nil && id > 0
}

func decodeInput(body any) (domain.AnnotationInput, error) {
	var in domain.AnnotationInput
	if body == nil {
		return in, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return in, fmt.Errorf("while encoding request body: %w", err)
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return in, fmt.Errorf("while decoding request body: %w", err)
	}
	return in, nil
}

func (b *Backend) task(ctx context.Context, params domain.Params) (*domain.Response, error) {
	id, ok := paramID(params, domain.ParamTaskID)
	if !ok {
		return fail(http.StatusBadRequest, "missing %s", domain.ParamTaskID)
	}
	task, err := b.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return fail(http.StatusNotFound, "task %d not found", id)
	}
	return domain.JSONResponse(http.StatusOK, task)
}

func (b *Backend) nextTask(ctx context.Context) (*domain.Response, error) {
	task, err := b.tasks.Next(ctx)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return fail(http.StatusNotFound, "no more tasks")
	}
	total, err := b.tasks.Count(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := b.tasks.CountPending(ctx)
	if err != nil {
		return nil, err
	}
	task.QueueTotal = int(total)
	task.QueuePosition = int(total-pending) + 1
	return domain.JSONResponse(http.StatusOK, task)
}

func (b *Backend) submitAnnotation(ctx context.Context, params domain.Params, body any) (*domain.Response, error) {
	taskID, ok := paramID(params, domain.ParamTaskID)
	if !ok {
		return fail(http.StatusBadRequest, "missing %s", domain.ParamTaskID)
	}
	in, err := decodeInput(body)
	if err != nil {
		return fail(http.StatusBadRequest, "%s", err)
	}
	if ok, err := b.tasks.Exists(ctx, taskID); err != nil {
		return nil, err
	} else if !ok {
		return fail(http.StatusNotFound, "task %d not found", taskID)
	}
	if in.CompletedBy == "" {
		in.CompletedBy = b.username
	}
	var ann *domain.Annotation
	err = withTx(ctx, b.db, func(q querier) error {
		var err error
		if ann, err = (&AnnotationRepository{db: q}).Create(ctx, taskID, in); err != nil {
			return err
		}
		if in.DraftID > 0 {
			return (&DraftRepository{db: q}).Delete(ctx, in.DraftID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("backend: annotation %d submitted for task %d", ann.ID, taskID)
	return domain.JSONResponse(http.StatusCreated, ann)
}

func (b *Backend) updateAnnotation(ctx context.Context, params domain.Params, body any) (*domain.Response, error) {
	id, ok := paramID(params, domain.ParamAnnotationID)
	if !ok {
		return fail(http.StatusBadRequest, "missing %s", domain.ParamAnnotationID)
	}
	in, err := decodeInput(body)
	if err != nil {
		return fail(http.StatusBadRequest, "%s", err)
	}
	action := params[domain.ParamAction]
	if action == "" {
		action = domain.ActionUpdated
		if in.WasCancelled {
			action = domain.ActionSkipped
		}
	}
	var ann *domain.Annotation
	err = withTx(ctx, b.db, func(q querier) error {
		var err error
		if ann, err = (&AnnotationRepository{db: q}).Update(ctx, id, in, action); err != nil || ann == nil {
			return err
		}
		if in.DraftID > 0 {
			return (&DraftRepository{db: q}).Delete(ctx, in.DraftID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if ann == nil {
		return fail(http.StatusNotFound, "annotation %d not found", id)
	}
	log.Printf("backend: annotation %d %s", id, action)
	return domain.JSONResponse(http.StatusOK, ann)
}

func (b *Backend) deleteAnnotation(ctx context.Context, params domain.Params) (*domain.Response, error) {
	id, ok := paramID(params, domain.ParamAnnotationID)
	if !ok {
		return fail(http.StatusBadRequest, "missing %s", domain.ParamAnnotationID)
	}
	ann, err := b.annotations.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ann == nil {
		return fail(http.StatusNotFound, "annotation %d not found", id)
	}
	if err := b.annotations.Delete(ctx, id); err != nil {
		return nil, err
	}
	return &domain.Response{Status: http.StatusNoContent}, nil
}

func (b *Backend) createDraft(ctx context.Context, endpoint string, params domain.Params, body any) (*domain.Response, error) {
	taskID, ok := paramID(params, domain.ParamTaskID)
	if !ok {
		return fail(http.StatusBadRequest, "missing %s", domain.ParamTaskID)
	}
	var annotation *int64
	if endpoint == domain.EndpointCreateDraftForAnnotation {
		id, ok := paramID(params, domain.ParamAnnotationID)
		if !ok {
			return fail(http.StatusBadRequest, "missing %s", domain.ParamAnnotationID)
		}
		annotation = &id
	}
	in, err := decodeInput(body)
	if err != nil {
		return fail(http.StatusBadRequest, "%s", err)
	}
	d, err := b.drafts.Create(ctx, taskID, annotation, draftFromInput(in, b.username))
	if err != nil {
		return nil, err
	}
	return domain.JSONResponse(http.StatusCreated, d)
}

func (b *Backend) updateDraft(ctx context.Context, params domain.Params, body any) (*domain.Response, error) {
	id, ok := paramID(params, domain.ParamDraftID)
	if !ok {
		return fail(http.StatusBadRequest, "missing %s", domain.ParamDraftID)
	}
	in, err := decodeInput(body)
	if err != nil {
		return fail(http.StatusBadRequest, "%s", err)
	}
	d, err := b.drafts.Update(ctx, id, draftFromInput(in, b.username))
	if err != nil {
		return nil, err
	}
	if d == nil {
		return fail(http.StatusNotFound, "draft %d not found", id)
	}
	return domain.JSONResponse(http.StatusOK, d)
}

func (b *Backend) deleteDraft(ctx context.Context, params domain.Params) (*domain.Response, error) {
	id, ok := paramID(params, domain.ParamDraftID)
	if !ok {
		return fail(http.StatusBadRequest, "missing %s", domain.ParamDraftID)
	}
	if err := b.drafts.Delete(ctx, id); err != nil {
		return nil, err
	}
	return &domain.Response{Status: http.StatusNoContent}, nil
}

func (b *Backend) annotationHistory(ctx context.Context, params domain.Params) (*domain.Response, error) {
	id, ok := paramID(params, domain.ParamAnnotationID)
	if !ok {
		return fail(http.StatusBadRequest, "missing %s", domain.ParamAnnotationID)
	}
	items, err := b.annotations.History(ctx, id)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*domain.HistoryItem{}
	}
	return domain.JSONResponse(http.StatusOK, items)
}

func draftFromInput(in domain.AnnotationInput, username string) domain.Draft {
	return domain.Draft{
		Result:       in.Result,
		LeadTime:     in.LeadTime,
		WasPostponed: in.WasPostponed,
		CreatedBy:    username,
		StartedAt:    in.StartedAt,
	}
}

// Verify that Backend implements domain.API
var _ domain.API = (*Backend)(nil)
