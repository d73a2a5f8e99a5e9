package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lewtec/marcador/internal/annotations"
	"github.com/lewtec/marcador/internal/domain"
	"github.com/lewtec/marcador/internal/events"
	"github.com/lewtec/marcador/internal/region"
)

var ErrNoAnnotation = errors.New("no annotation selected")

// ErrNotSaved is returned by submission handlers when the server refused or
// never answered and the user was already told about it.
var ErrNotSaved = errors.New("annotation not saved")

// Submission is what bus handlers receive for a submission. It is taken
// under the store lock before the draft is dropped, so handlers see the
// annotation as the user left it.
type Submission struct {
	TaskID       int64
	UniqueLockID string

	LocalID          string
	PK               string
	Exists           bool
	DraftID          int64
	UserGenerate     bool
	SentUserGenerate bool
	ParentPrediction string
	ParentAnnotation string

	LeadTime   float64
	LoadedDate time.Time
	TakenAt    time.Time

	Result      []region.Result
	DraftResult []region.Result
	// Draft is the stored draft the annotation was restored from, if any.
	Draft *domain.Draft

	Comment string
	Button  string
	IsDirty bool
	Extra   map[string]any
}

// SessionSeconds is the time spent on the annotation since it was loaded.
func (s *Submission) SessionSeconds() float64 {
	if s.LoadedDate.IsZero() {
		return 0
	}
	return s.TakenAt.Sub(s.LoadedDate).Seconds()
}

func (s *Store) snapshot(a *annotations.Annotation) *Submission {
	sub := &Submission{
		LocalID:          a.ID,
		PK:               a.PK,
		Exists:           a.Exists(),
		DraftID:          a.DraftID,
		UserGenerate:     a.UserGenerate,
		SentUserGenerate: a.SentUserGenerate,
		ParentPrediction: a.ParentPrediction,
		ParentAnnotation: a.ParentAnnotation,
		LeadTime:         a.LeadTime,
		LoadedDate:       a.LoadedDate,
		TakenAt:          s.opts.Now(),
		Result:           a.SerializeAnnotation(),
		DraftResult:      append([]region.Result(nil), a.Versions.Draft...),
	}
	if s.task != nil {
		sub.TaskID = s.task.ID
		sub.UniqueLockID = s.task.UniqueLockID
		if d, ok := s.task.FindDraft(a.DraftID); ok {
			cp := *d
			sub.Draft = &cp
		}
	}
	return sub
}

// editable returns the selected annotation when it can be submitted.
func (s *Store) editable() *annotations.Annotation {
	a := s.as.Selected()
	if a == nil || a.Type != annotations.TypeAnnotation {
		return nil
	}
	return a
}

func (s *Store) validate(a *annotations.Annotation) bool {
	a.BeforeSend()
	if !a.Validate(s.opts.Validator, s.hasInterface(InterfaceDenyEmpty)) {
		log.Printf("session: annotation %s did not validate", a.ID)
		return false
	}
	return true
}

// handleSubmitting runs fn in the background while holding the submitting
// flag. The flag is held for at least MinSubmitDelay and at most
// MaxSubmitDelay. It must be called with the lock held and reports false when
// another submission is running.
func (s *Store) handleSubmitting(ctx context.Context, what string, fn func(ctx context.Context) error) bool {
	if s.flags.IsSubmitting {
		return false
	}
	s.flags.IsSubmitting = true
	ctx = context.WithoutCancel(ctx)
	done := make(chan struct{})

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		defer close(done)
		if err := fn(ctx); err != nil {
			log.Printf("session: %s: %s", what, err)
			if errors.Is(err, ErrNotSaved) {
				return
			}
			s.toast(ctx, events.ToastError, "SubmissionFailed", map[string]any{
				"Action": what,
				"Error":  err.Error(),
			})
		}
	}()
	go func() {
		defer s.wg.Done()
		minTimer := time.NewTimer(s.opts.MinSubmitDelay)
		maxTimer := time.NewTimer(s.opts.MaxSubmitDelay)
		defer minTimer.Stop()
		defer maxTimer.Stop()
		select {
		case <-done:
			select {
			case <-minTimer.C:
			case <-maxTimer.C:
			}
		case <-maxTimer.C:
			log.Printf("session: %s is taking too long, releasing the editor", what)
		}
		s.mu.Lock()
		defer s.unlock()
		s.flags.IsSubmitting = false
	}()
	return true
}

// flushDraft saves edits newer than the last draft of a before it is
// submitted, so the draft the server drops along with the submission is
// up to date.
func (s *Store) flushDraft(ctx context.Context, a *annotations.Annotation, sub *Submission) error {
	if err := s.WaitForDraftSubmission(ctx); err != nil {
		return err
	}
	if err := s.SubmitDraft(ctx, false, nil); err != nil {
		log.Printf("session: %s", err)
		return nil
	}
	s.mu.Lock()
	defer s.unlock()
	sub.DraftID = a.DraftID
	return nil
}

// dropDraft marks a clean once the server has its submission.
func (s *Store) dropDraft(a *annotations.Annotation) {
	s.mu.Lock()
	defer s.unlock()
	a.DropDraft()
}

func (s *Store) invoke(ctx context.Context, name string, args ...any) error {
	if _, err := s.bus.Invoke(ctx, name, args...); err != nil {
		return fmt.Errorf("while invoking %s: %w", name, err)
	}
	return nil
}

// SubmitAnnotation sends the selected annotation, as an update when the
// server already knows it. It reports whether a submission was started.
func (s *Store) SubmitAnnotation(ctx context.Context) bool {
	s.mu.Lock()
	defer s.unlock()
	if s.flags.IsSubmitting {
		return false
	}
	a := s.editable()
	if a == nil {
		return false
	}
	event := events.SubmitAnnotation
	if a.Exists() {
		event = events.UpdateAnnotation
	}
	if !s.validate(a) {
		return false
	}
	sub := s.snapshot(a)
	a.SendUserGenerate()
	sub.SentUserGenerate = true

	return s.handleSubmitting(ctx, "submit", func(ctx context.Context) error {
		if err := s.flushDraft(ctx, a, sub); err != nil {
			return err
		}
		if err := s.invoke(ctx, event, s, sub); err != nil {
			return err
		}
		s.dropDraft(a)
		s.IncrementQueuePosition(1)
		return nil
	})
}

// UpdateAnnotation sends the selected annotation as an update. extra is
// passed to the handlers untouched.
func (s *Store) UpdateAnnotation(ctx context.Context, extra map[string]any) bool {
	s.mu.Lock()
	defer s.unlock()
	if s.flags.IsSubmitting {
		return false
	}
	a := s.editable()
	if a == nil || !s.validate(a) {
		return false
	}
	sub := s.snapshot(a)
	sub.Extra = extra

	started := s.handleSubmitting(ctx, "update", func(ctx context.Context) error {
		if err := s.flushDraft(ctx, a, sub); err != nil {
			return err
		}
		if err := s.invoke(ctx, events.UpdateAnnotation, s, sub); err != nil {
			return err
		}
		s.dropDraft(a)
		s.IncrementQueuePosition(1)
		return nil
	})
	if !a.SentUserGenerate {
		a.SendUserGenerate()
	}
	return started
}

// SkipTask cancels the current task with an optional comment.
func (s *Store) SkipTask(ctx context.Context, comment string) bool {
	s.mu.Lock()
	defer s.unlock()
	if s.flags.IsSubmitting {
		return false
	}
	a := s.editable()
	if a == nil {
		return false
	}
	a.BeforeSend()
	sub := s.snapshot(a)
	sub.Comment = comment

	return s.handleSubmitting(ctx, "skip", func(ctx context.Context) error {
		if err := s.invoke(ctx, events.SkipTask, s, sub); err != nil {
			return err
		}
		s.IncrementQueuePosition(1)
		return nil
	})
}

// UnskipTask reverts a skip of the current task.
func (s *Store) UnskipTask(ctx context.Context) bool {
	s.mu.Lock()
	defer s.unlock()
	if s.flags.IsSubmitting {
		return false
	}
	a := s.editable()
	if a == nil {
		return false
	}
	sub := s.snapshot(a)
	return s.handleSubmitting(ctx, "unskip", func(ctx context.Context) error {
		return s.invoke(ctx, events.UnskipTask, s, sub)
	})
}

func isDirty(a *annotations.Annotation) bool {
	return a.History().CanUndo()
}

// AcceptAnnotation approves the selected annotation in review mode.
func (s *Store) AcceptAnnotation(ctx context.Context) bool {
	s.mu.Lock()
	defer s.unlock()
	if s.flags.IsSubmitting {
		return false
	}
	a := s.editable()
	if a == nil || !s.validate(a) {
		return false
	}
	sub := s.snapshot(a)
	sub.IsDirty = isDirty(a) || len(a.Versions.Draft) > 0

	return s.handleSubmitting(ctx, "accept", func(ctx context.Context) error {
		if err := s.invoke(ctx, events.AcceptAnnotation, s, sub); err != nil {
			return err
		}
		s.dropDraft(a)
		s.IncrementQueuePosition(1)
		return nil
	})
}

// RejectAnnotation sends the selected annotation back with a comment. The
// queue goes one step back.
func (s *Store) RejectAnnotation(ctx context.Context, comment string) bool {
	s.mu.Lock()
	defer s.unlock()
	if s.flags.IsSubmitting {
		return false
	}
	a := s.editable()
	if a == nil || !s.validate(a) {
		return false
	}
	sub := s.snapshot(a)
	sub.IsDirty = isDirty(a)
	sub.Comment = comment

	return s.handleSubmitting(ctx, "reject", func(ctx context.Context) error {
		if err := s.invoke(ctx, events.RejectAnnotation, s, sub); err != nil {
			return err
		}
		s.dropDraft(a)
		s.IncrementQueuePosition(-1)
		return nil
	})
}

// HandleCustomButton runs a project defined action on the selected annotation.
func (s *Store) HandleCustomButton(ctx context.Context, name string) bool {
	s.mu.Lock()
	defer s.unlock()
	if s.flags.IsSubmitting {
		return false
	}
	a := s.editable()
	if a == nil {
		return false
	}
	a.BeforeSend()
	sub := s.snapshot(a)
	sub.Button = name
	sub.IsDirty = isDirty(a)

	return s.handleSubmitting(ctx, name, func(ctx context.Context) error {
		if err := s.invoke(ctx, events.CustomButton, s, sub); err != nil {
			return err
		}
		s.dropDraft(a)
		s.IncrementQueuePosition(1)
		return nil
	})
}

// SubmitDraft saves the selected annotation as a draft through the first
// submitDraft handler. Nothing is sent without unsaved changes unless force
// is set, nor while another save of the same annotation is running.
func (s *Store) SubmitDraft(ctx context.Context, force bool, params map[string]any) error {
	if !s.bus.HasEvent(events.SubmitDraft) {
		return nil
	}
	s.mu.Lock()
	a := s.editable()
	if a == nil || a.ReadOnly() || a.IsDraftSaving || (!force && !a.NeedsDraftSave()) {
		s.unlock()
		return nil
	}
	a.BeforeSend()
	a.Versions.Draft = a.SerializeAnnotation()
	a.IsDraftSaving = true
	sub := s.snapshot(a)
	sub.Extra = params
	s.unlock()

	_, err := s.bus.InvokeFirst(ctx, events.SubmitDraft, s, sub)

	s.mu.Lock()
	defer s.unlock()
	a.IsDraftSaving = false
	if err != nil {
		return fmt.Errorf("while saving draft: %w", err)
	}
	a.SetDraftSaved(s.opts.Now())
	return nil
}

// SaveDraft flushes pending changes before leaving the task and tells the
// user about it.
func (s *Store) SaveDraft(ctx context.Context) error {
	s.mu.Lock()
	a := s.editable()
	saving := a != nil && a.IsDraftSaving
	needed := a != nil && a.NeedsDraftSave()
	s.unlock()

	switch {
	case saving:
		if err := s.WaitForDraftSubmission(ctx); err != nil {
			return err
		}
	case needed:
		if err := s.SubmitDraft(ctx, false, nil); err != nil {
			s.toast(ctx, events.ToastError, "DraftSaveFailed", map[string]any{"Error": err.Error()})
			return err
		}
	default:
		return nil
	}
	s.toast(ctx, events.ToastInfo, "DraftSaved", nil)
	return nil
}

// WaitForDraftSubmission blocks while a draft save of the selected annotation
// is running.
func (s *Store) WaitForDraftSubmission(ctx context.Context) error {
	for {
		s.mu.Lock()
		a := s.as.Selected()
		saving := a != nil && a.IsDraftSaving
		s.unlock()
		if !saving {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(draftPollInterval):
		}
	}
}

// SetDraft records the stored draft of an annotation after a save.
func (s *Store) SetDraft(localID string, d domain.Draft) {
	s.mu.Lock()
	defer s.unlock()
	for _, a := range s.as.Annotations() {
		if a.ID == localID {
			a.SetDraftID(d.ID)
		}
	}
	if s.task == nil || d.ID == 0 {
		return
	}
	if existing, ok := s.task.FindDraft(d.ID); ok {
		*existing = d
		return
	}
	s.task.Drafts = append(s.task.Drafts, d)
}

// MarkSubmitted gives a client created annotation the id the server
// assigned to it.
func (s *Store) MarkSubmitted(localID, pk string) {
	s.mu.Lock()
	defer s.unlock()
	for _, a := range s.as.Annotations() {
		if a.ID != localID {
			continue
		}
		a.PK = pk
		a.SendUserGenerate()
		if i := s.taskHistoryIndex(); i >= 0 {
			s.taskHistory[i].AnnotationID = pk
		}
	}
}

// DeleteAnnotation removes an annotation from the editor and lets the bus
// delete it on the server. The last remaining annotation gets selected.
func (s *Store) DeleteAnnotation(ctx context.Context, localID string) error {
	s.mu.Lock()
	defer s.unlock()
	var target *annotations.Annotation
	for _, a := range s.as.Annotations() {
		if a.ID == localID {
			target = a
		}
	}
	if target == nil {
		return fmt.Errorf("annotation %s: %w", localID, annotations.ErrNotFound)
	}
	sub := s.snapshot(target)
	if err := s.as.DeleteAnnotation(localID); err != nil {
		return fmt.Errorf("while deleting annotation: %w", err)
	}
	if list := s.as.Annotations(); len(list) > 0 {
		s.as.SelectAnnotation(list[len(list)-1].ID)
	}
	if sub.DraftID != 0 && s.task != nil {
		s.task.DeleteDraft(sub.DraftID)
	}
	s.invokeLater(ctx, events.DeleteAnnotation, s, sub)
	return nil
}
