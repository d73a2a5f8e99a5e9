// Package syncadapter connects a session to an annotation API: it listens to
// the session bus, sends the payloads and reloads the task afterwards.
package syncadapter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/lewtec/marcador/annotation"
	"github.com/lewtec/marcador/internal/annotations"
	"github.com/lewtec/marcador/internal/domain"
	"github.com/lewtec/marcador/internal/events"
	"github.com/lewtec/marcador/internal/session"
)

// ErrRequestFailed is returned where a caller needs to know that a call did
// not go through. The user was already told about it.
var ErrRequestFailed = errors.New("request failed")

// Adapter serves the bus events of one session store.
type Adapter struct {
	api   domain.API
	store *session.Store
	off   []func()
}

// New registers the handlers on the bus of store.
func New(api domain.API, store *session.Store) *Adapter {
	a := &Adapter{api: api, store: store}
	bus := store.Bus()
	on := func(name string, h events.Handler) {
		a.off = append(a.off, bus.On(name, h))
	}
	on(events.SubmitAnnotation, a.submission(a.submitAnnotation))
	on(events.UpdateAnnotation, a.submission(a.updateAnnotation))
	on(events.SkipTask, a.submission(a.skipTask))
	on(events.UnskipTask, a.submission(a.unskipTask))
	on(events.AcceptAnnotation, a.submission(a.review(domain.ActionAccepted, "AnnotationAccepted")))
	on(events.RejectAnnotation, a.submission(a.review(domain.ActionRejected, "AnnotationRejected")))
	on(events.CustomButton, a.submission(a.customButton))
	on(events.DeleteAnnotation, a.submission(a.deleteAnnotation))
	on(events.SubmitDraft, a.submitDraft)
	on(events.NextTask, a.navigate)
	on(events.PrevTask, a.navigate)
	on(events.PresignURLForProject, a.presign)
	on(events.AnnotationSet, a.annotationSet)
	return a
}

// Close removes the handlers.
func (a *Adapter) Close() {
	for _, off := range a.off {
		off()
	}
	a.off = nil
}

func (a *Adapter) submission(fn func(ctx context.Context, sub *session.Submission) error) events.Handler {
	return func(ctx context.Context, args ...any) (any, error) {
		if len(args) < 2 {
			return nil, fmt.Errorf("expected store and submission, got %d arguments", len(args))
		}
		sub, ok := args[1].(*session.Submission)
		if !ok {
			return nil, fmt.Errorf("expected a submission, got %T", args[1])
		}
		return nil, fn(ctx, sub)
	}
}

func (a *Adapter) toast(ctx context.Context, kind, messageID string, data map[string]any) {
	msg := events.ToastMessage{
		Message: annotation.LocalizeWithContextAndData(ctx, messageID, data),
		Type:    kind,
	}
	if _, err := a.store.Bus().Invoke(ctx, events.Toast, msg); err != nil {
		log.Printf("syncadapter: toast: %s", err)
	}
}

// call performs a request and reports its outcome to the user. A nil
// response means the call failed and was already handled.
func (a *Adapter) call(ctx context.Context, endpoint string, params domain.Params, body any, successID string) (*domain.Response, error) {
	res, err := a.api.Call(ctx, endpoint, params, body)
	if err != nil {
		return nil, fmt.Errorf("while calling %s: %w", endpoint, err)
	}
	if res == nil {
		log.Printf("syncadapter: %s was not handled", endpoint)
		a.toast(ctx, events.ToastError, "RequestUnhandled", map[string]any{"Endpoint": endpoint})
		return nil, nil
	}
	if res.Failed() {
		log.Printf("syncadapter: %s answered %d", endpoint, res.Status)
		a.toast(ctx, events.ToastError, "RequestFailed", map[string]any{
			"Status":   res.Status,
			"Endpoint": endpoint,
		})
		return res, nil
	}
	if successID != "" && (res.Status == http.StatusOK || res.Status == http.StatusCreated) {
		a.toast(ctx, events.ToastInfo, successID, nil)
	}
	return res, nil
}

func taskParams(taskID int64) domain.Params {
	return domain.Params{domain.ParamTaskID: domain.FormatID(taskID)}
}

func annotationParams(taskID int64, pk string) domain.Params {
	p := taskParams(taskID)
	p[domain.ParamAnnotationID] = pk
	return p
}

// afterSubmit records the id the server gave to the annotation and moves on:
// to the next task in stream mode, back to the same task otherwise. A failed
// call leaves the editor as it is.
func (a *Adapter) afterSubmit(ctx context.Context, sub *session.Submission, res *domain.Response, loadNext bool) error {
	if res == nil || res.Failed() {
		return session.ErrNotSaved
	}
	pk := sub.PK
	if len(res.Body) > 0 {
		var ann domain.Annotation
		if err := res.Decode(&ann); err != nil {
			return err
		}
		if ann.ID != 0 {
			pk = domain.FormatID(ann.ID)
			a.store.MarkSubmitted(sub.LocalID, pk)
		}
	}
	if loadNext && a.store.Mode() == session.ModeStream {
		return a.LoadNext(ctx)
	}
	return a.Load(ctx, sub.TaskID, pk, true)
}

func (a *Adapter) submitAnnotation(ctx context.Context, sub *session.Submission) error {
	res, err := a.call(ctx, domain.EndpointSubmitAnnotation, taskParams(sub.TaskID),
		PrepareData(sub, false, false), "AnnotationSubmitted")
	if err != nil {
		return err
	}
	return a.afterSubmit(ctx, sub, res, true)
}

func (a *Adapter) updateAnnotation(ctx context.Context, sub *session.Submission) error {
	body, err := withExtra(PrepareData(sub, false, false), sub.Extra)
	if err != nil {
		return err
	}
	res, err := a.call(ctx, domain.EndpointUpdateAnnotation, annotationParams(sub.TaskID, sub.PK), body, "AnnotationUpdated")
	if err != nil {
		return err
	}
	if res == nil || res.Failed() {
		return session.ErrNotSaved
	}
	// an update from the rejected queue hands the task back
	if task := a.store.Task(); task != nil && task.DefaultSelectedAnnotation != nil {
		return a.LoadNext(ctx)
	}
	return a.Load(ctx, sub.TaskID, sub.PK, true)
}

func (a *Adapter) skipTask(ctx context.Context, sub *session.Submission) error {
	in := PrepareData(sub, false, true)
	in.WasCancelled = true
	in.Comment = sub.Comment

	endpoint, params := domain.EndpointSubmitAnnotation, taskParams(sub.TaskID)
	if in.ID != 0 {
		endpoint, params = domain.EndpointUpdateAnnotation, annotationParams(sub.TaskID, domain.FormatID(in.ID))
		in.ID = 0
	}
	res, err := a.call(ctx, endpoint, params, in, "TaskSkipped")
	if err != nil {
		return err
	}
	return a.afterSubmit(ctx, sub, res, true)
}

// unskipTask turns the skipped annotation back into a draft. A draft that
// already exists is detached by the backend when the annotation goes away.
func (a *Adapter) unskipTask(ctx context.Context, sub *session.Submission) error {
	if sub.PK == "" {
		log.Printf("syncadapter: unskip needs a submitted annotation")
		return nil
	}
	if sub.DraftID == 0 {
		res, err := a.call(ctx, domain.EndpointCreateDraftForTask, taskParams(sub.TaskID), PrepareData(sub, false, false), "")
		if err != nil {
			return err
		}
		if res == nil || res.Failed() {
			return session.ErrNotSaved
		}
	}
	res, err := a.call(ctx, domain.EndpointDeleteAnnotation, annotationParams(sub.TaskID, sub.PK), nil, "")
	if err != nil {
		return err
	}
	if res == nil || res.Failed() {
		return session.ErrNotSaved
	}
	a.toast(ctx, events.ToastInfo, "TaskUnskipped", nil)
	return a.Load(ctx, sub.TaskID, "", false)
}

func (a *Adapter) review(action, successID string) func(ctx context.Context, sub *session.Submission) error {
	return func(ctx context.Context, sub *session.Submission) error {
		in := PrepareData(sub, false, false)
		in.Comment = sub.Comment
		params := annotationParams(sub.TaskID, sub.PK)
		params[domain.ParamAction] = action
		res, err := a.call(ctx, domain.EndpointUpdateAnnotation, params, in, successID)
		if err != nil {
			return err
		}
		return a.afterSubmit(ctx, sub, res, true)
	}
}

// customButton stores the annotation with the button name as the recorded action.
func (a *Adapter) customButton(ctx context.Context, sub *session.Submission) error {
	in := PrepareData(sub, false, false)
	in.Comment = sub.Comment
	endpoint, params := domain.EndpointSubmitAnnotation, taskParams(sub.TaskID)
	if sub.Exists {
		endpoint, params = domain.EndpointUpdateAnnotation, annotationParams(sub.TaskID, sub.PK)
		params[domain.ParamAction] = sub.Button
	}
	res, err := a.call(ctx, endpoint, params, in, "")
	if err != nil {
		return err
	}
	return a.afterSubmit(ctx, sub, res, true)
}

// deleteAnnotation drops an annotation the server never saw by deleting its
// draft only.
func (a *Adapter) deleteAnnotation(ctx context.Context, sub *session.Submission) error {
	if sub.UserGenerate && !sub.SentUserGenerate {
		if sub.DraftID == 0 {
			return nil
		}
		_, err := a.call(ctx, domain.EndpointDeleteDraft,
			domain.Params{domain.ParamDraftID: domain.FormatID(sub.DraftID)}, nil, "")
		return err
	}
	res, err := a.call(ctx, domain.EndpointDeleteAnnotation, annotationParams(sub.TaskID, sub.PK), nil, "")
	if err != nil || res == nil || res.Failed() {
		return err
	}
	a.toast(ctx, events.ToastInfo, "AnnotationDeleted", nil)
	return nil
}

// submitDraft creates or updates the stored draft of an annotation. It
// returns the stored draft.
func (a *Adapter) submitDraft(ctx context.Context, args ...any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("expected store and submission, got %d arguments", len(args))
	}
	sub, ok := args[1].(*session.Submission)
	if !ok {
		return nil, fmt.Errorf("expected a submission, got %T", args[1])
	}
	body, err := withExtra(PrepareData(sub, true, false), sub.Extra)
	if err != nil {
		return nil, err
	}

	var (
		endpoint string
		params   domain.Params
	)
	switch {
	case sub.DraftID > 0:
		endpoint, params = domain.EndpointUpdateDraft, domain.Params{domain.ParamDraftID: domain.FormatID(sub.DraftID)}
	case !sub.Exists:
		endpoint, params = domain.EndpointCreateDraftForTask, taskParams(sub.TaskID)
	default:
		endpoint, params = domain.EndpointCreateDraftForAnnotation, annotationParams(sub.TaskID, sub.PK)
	}
	res, err := a.call(ctx, endpoint, params, body, "")
	if err != nil {
		return nil, err
	}
	if res == nil || res.Failed() {
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, endpoint)
	}
	var d domain.Draft
	if err := res.Decode(&d); err != nil {
		return nil, err
	}
	a.store.SetDraft(sub.LocalID, d)
	return &d, nil
}

// navigate saves pending work and opens the task history item, or the next
// task of the queue when there is none.
func (a *Adapter) navigate(ctx context.Context, args ...any) (any, error) {
	var item *session.TaskHistoryItem
	if len(args) > 1 {
		item, _ = args[1].(*session.TaskHistoryItem)
	}
	if err := a.store.SaveDraft(ctx); err != nil {
		log.Printf("syncadapter: while saving draft before leaving the task: %s", err)
	}
	if item == nil {
		return nil, a.LoadNext(ctx)
	}
	return nil, a.Load(ctx, item.TaskID, item.AnnotationID, true)
}

func (a *Adapter) presign(ctx context.Context, args ...any) (any, error) {
	if len(args) < 2 {
		return nil, nil
	}
	url, _ := args[1].(string)
	res, err := a.call(ctx, domain.EndpointPresignURLForProject, domain.Params{domain.ParamURL: url}, nil, "")
	if err != nil || res == nil || res.Failed() {
		return nil, err
	}
	var body struct {
		URL string `json:"url"`
	}
	if err := res.Decode(&body); err != nil {
		return nil, err
	}
	return body.URL, nil
}

// annotationSet loads the history of a submitted annotation once selected.
func (a *Adapter) annotationSet(ctx context.Context, args ...any) (any, error) {
	if len(args) > 1 {
		if isPrediction, _ := args[1].(bool); isPrediction {
			return nil, nil
		}
	}
	return nil, a.LoadHistory(ctx)
}

// LoadHistory fetches the past versions of the selected annotation.
func (a *Adapter) LoadHistory(ctx context.Context) error {
	var pk string
	a.store.WithSelected(func(ann *annotations.Annotation) { pk = ann.PK })
	if pk == "" {
		return nil
	}
	res, err := a.call(ctx, domain.EndpointAnnotationHistory,
		domain.Params{domain.ParamAnnotationID: pk}, nil, "")
	if err != nil || res == nil || res.Failed() {
		return err
	}
	var items []domain.HistoryItem
	if err := res.Decode(&items); err != nil {
		return err
	}
	a.store.SetHistory(items)
	return nil
}

// LoadNext opens the next task of the queue. The store is flagged with no
// task when the queue is exhausted.
func (a *Adapter) LoadNext(ctx context.Context) error {
	a.store.SetFlags(func(f *session.Flags) { f.IsLoading = true })
	res, err := a.api.Call(ctx, domain.EndpointNextTask, nil, nil)
	return a.open(ctx, domain.EndpointNextTask, res, err, session.LoadOptions{})
}

// Load opens a task by id, selecting annotationID when given.
func (a *Adapter) Load(ctx context.Context, taskID int64, annotationID string, fromHistory bool) error {
	a.store.SetFlags(func(f *session.Flags) { f.IsLoading = true })
	res, err := a.api.Call(ctx, domain.EndpointTask, taskParams(taskID), nil)
	return a.open(ctx, domain.EndpointTask, res, err, session.LoadOptions{
		AnnotationID: annotationID,
		FromHistory:  fromHistory,
	})
}

func (a *Adapter) open(ctx context.Context, endpoint string, res *domain.Response, err error, opts session.LoadOptions) error {
	defer a.store.SetFlags(func(f *session.Flags) { f.IsLoading = false })
	if err != nil {
		return fmt.Errorf("while calling %s: %w", endpoint, err)
	}
	switch {
	case res == nil:
		a.toast(ctx, events.ToastError, "RequestUnhandled", map[string]any{"Endpoint": endpoint})
		return nil
	case res.Status == http.StatusNotFound:
		a.store.LoadTask(ctx, nil, opts)
		a.toast(ctx, events.ToastInfo, "NoMoreTasks", nil)
		return nil
	case res.Failed():
		a.toast(ctx, events.ToastError, "RequestFailed", map[string]any{
			"Status":   res.Status,
			"Endpoint": endpoint,
		})
		return nil
	}
	var task domain.Task
	if err := res.Decode(&task); err != nil {
		return err
	}
	a.store.LoadTask(ctx, &task, opts)
	return nil
}
