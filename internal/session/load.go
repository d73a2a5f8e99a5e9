package session

import (
	"context"
	"log"

	"github.com/lewtec/marcador/internal/annotations"
	"github.com/lewtec/marcador/internal/domain"
	"github.com/lewtec/marcador/internal/events"
)

// AutoAnnotation asks LoadTask to open the first annotation when it still
// needs to be sent.
const AutoAnnotation = "auto"

// LoadOptions tune LoadTask.
type LoadOptions struct {
	// AnnotationID is the server id of the annotation to open, or AutoAnnotation.
	AnnotationID string
	// FromHistory is set when navigating the visited tasks; the task keeps
	// its place in the task history.
	FromHistory bool
	// SelectPrediction opens the prediction AnnotationID instead.
	SelectPrediction bool
}

// LoadTask makes task current. Reloading the same task merges its
// annotations and drafts into what is in memory; a different task replaces
// everything. Drafts are restored, then an annotation is selected following
// the policy of the store mode.
func (s *Store) LoadTask(ctx context.Context, task *domain.Task, opts LoadOptions) {
	if task == nil {
		s.SetFlags(func(f *Flags) { f.NoTask = true })
		return
	}
	s.mu.Lock()
	defer s.unlock()

	rejectedQueue := task.DefaultSelectedAnnotation != nil
	if opts.AnnotationID == "" && rejectedQueue {
		opts.AnnotationID = domain.FormatID(*task.DefaultSelectedAnnotation)
	}

	s.moveInTaskHistory(task.ID, opts.FromHistory)

	changed := s.task == nil || s.task.ID != task.ID
	if !changed {
		task = mergeTasks(s.task, task)
	}
	if changed {
		s.resetState()
	} else {
		s.as.Reset()
	}

	s.task = task
	s.flags.NoTask = false
	s.flags.IsLoading = false
	if task.QueueTotal > 0 {
		s.queueTotal = task.QueueTotal
		s.queuePosition = task.QueuePosition
	}
	s.setInterface(InterfacePostpone, task.PostponeAllowed())
	s.setInterface(InterfaceTaskCounter, true)

	s.assignTask()
	s.initializeStore(ctx)
	s.setAnnotation(ctx, opts.AnnotationID, opts.FromHistory || rejectedQueue, opts.SelectPrediction)
}

func (s *Store) moveInTaskHistory(taskID int64, fromHistory bool) {
	for i, item := range s.taskHistory {
		if item.TaskID != taskID {
			continue
		}
		if !fromHistory {
			s.taskHistory = append(s.taskHistory[:i], s.taskHistory[i+1:]...)
			s.taskHistory = append(s.taskHistory, item)
		}
		return
	}
	s.taskHistory = append(s.taskHistory, TaskHistoryItem{TaskID: taskID})
}

// mergeTasks keeps what prev knows and next does not, next wins otherwise.
func mergeTasks(prev, next *domain.Task) *domain.Task {
	merged := *next
	seen := map[int64]bool{}
	for _, a := range next.Annotations {
		seen[a.ID] = true
	}
	var annotations []domain.Annotation
	for _, a := range prev.Annotations {
		if !seen[a.ID] {
			annotations = append(annotations, a)
		}
	}
	merged.Annotations = append(annotations, next.Annotations...)
	return &merged
}

// AssignTask records the current task in the task history.
func (s *Store) AssignTask() {
	s.mu.Lock()
	defer s.unlock()
	s.assignTask()
}

func (s *Store) assignTask() {
	if s.task == nil || s.taskHistoryIndex() >= 0 {
		return
	}
	s.taskHistory = append(s.taskHistory, TaskHistoryItem{TaskID: s.task.ID})
}

// ResetState drops the current task and everything loaded from it.
func (s *Store) ResetState() {
	s.mu.Lock()
	defer s.unlock()
	s.resetState()
	s.task = nil
}

func (s *Store) resetState() {
	s.as.Reset()
	s.initialized = false
	s.suggestionsRequest = ""
	s.flags.AwaitingSuggestions = false
	s.flags.LabeledSuccess = false
}

// InitializeStore loads the predictions and annotations of the current task
// and selects the most recent one.
func (s *Store) InitializeStore(ctx context.Context) {
	s.mu.Lock()
	defer s.unlock()
	s.initializeStore(ctx)
}

func (s *Store) initializeStore(ctx context.Context) {
	if s.task == nil {
		return
	}
	for _, p := range s.task.Predictions {
		s.as.AddPrediction(annotations.Options{
			PK:        domain.FormatID(p.ID),
			CreatedBy: p.ModelVersion,
			Result:    p.Result,
		})
	}
	for _, a := range s.task.Annotations {
		s.as.AddAnnotation(annotations.Options{
			PK:               domain.FormatID(a.ID),
			CreatedBy:        a.CompletedBy,
			LeadTime:         a.LeadTime,
			ParentPrediction: domain.FormatID(a.ParentPrediction),
			ParentAnnotation: domain.FormatID(a.ParentAnnotation),
			Result:           a.Result,
		})
	}

	if list := s.as.Annotations(); len(list) > 0 {
		last := list[len(list)-1]
		if _, err := s.as.SelectAnnotation(last.ID); err == nil {
			last.ReinitHistory()
		}
	} else if list := s.as.Predictions(); len(list) > 0 {
		s.as.SelectPrediction(list[len(list)-1].ID)
	}

	if !s.initialized {
		s.initialized = true
		s.invokeLater(ctx, events.StorageInitialized, s)
	}
}

// setAnnotation restores the drafts of the task and picks the annotation to
// show.
func (s *Store) setAnnotation(ctx context.Context, annotationID string, selectAnnotation, selectPrediction bool) {
	s.restoreDrafts()

	var (
		picked       *annotations.Annotation
		isPrediction bool
	)
	if s.opts.Mode == ModeStream {
		picked = s.pickStream(annotationID, selectAnnotation)
	} else {
		picked, isPrediction = s.pickExplorer(annotationID, selectPrediction)
	}
	if picked == nil {
		return
	}

	var err error
	if isPrediction {
		_, err = s.as.SelectPrediction(picked.ID)
	} else {
		_, err = s.as.SelectAnnotation(picked.ID)
	}
	if err != nil {
		log.Printf("session: while selecting %s: %s", picked.ID, err)
		return
	}
	if i := s.taskHistoryIndex(); i >= 0 && picked.PK != "" && !isPrediction {
		s.taskHistory[i].AnnotationID = picked.PK
	}
	s.invokeLater(ctx, events.AnnotationSet, picked, isPrediction)
}

// restoreDrafts loads every draft not already open into its annotation, or
// into a new one when the draft was never submitted.
func (s *Store) restoreDrafts() {
	for _, d := range s.task.Drafts {
		if s.hasDraftOpen(d.ID) {
			continue
		}
		var c *annotations.Annotation
		if d.Annotation != nil {
			pk := domain.FormatID(*d.Annotation)
			found, ok := s.as.FindByPK(pk)
			if !ok {
				log.Printf("session: draft %d belongs to unknown annotation %s", d.ID, pk)
				continue
			}
			c = found
			c.History().Freeze()
			c.DeleteAllRegions(true)
		} else {
			c = s.as.AddAnnotation(annotations.Options{
				UserGenerate: true,
				CreatedBy:    d.CreatedBy,
			})
			c.History().Freeze()
		}
		c.Versions.Draft = d.Result
		if _, err := s.as.SelectAnnotation(c.ID); err != nil {
			log.Printf("session: while restoring draft %d: %s", d.ID, err)
		}
		c.DeserializeResults(d.Result, annotations.DeserializeOptions{})
		c.SetDraftID(d.ID)
		c.SetDraftSaved(d.CreatedAt)
		c.History().SafeUnfreeze()
		c.ReinitHistory()
	}
}

func (s *Store) hasDraftOpen(id int64) bool {
	for _, a := range s.as.Annotations() {
		if a.DraftID == id {
			return true
		}
	}
	return false
}

func (s *Store) pickStream(annotationID string, selectAnnotation bool) *annotations.Annotation {
	if a := newestDraft(s.as.Annotations()); a != nil {
		return a
	}
	if annotationID != "" && selectAnnotation {
		if a, ok := s.as.FindByPK(annotationID); ok {
			return a
		}
	}
	preds := s.as.Predictions()
	if s.opts.ShowCollabPredictions && len(preds) > 0 && !s.opts.InteractivePreannotations {
		return s.as.AddAnnotationFromPrediction(preds[0])
	}
	return s.as.CreateAnnotation(annotations.Options{})
}

func (s *Store) pickExplorer(annotationID string, selectPrediction bool) (*annotations.Annotation, bool) {
	list := s.as.Annotations()
	preds := s.as.Predictions()

	if selectPrediction && len(preds) > 0 {
		if p, ok := s.as.FindPredictionByPK(annotationID); ok {
			return p, true
		}
		return preds[0], true
	}
	if len(list) == 0 && len(preds) > 0 && !s.opts.InteractivePreannotations {
		src := preds[0]
		for _, p := range preds {
			if s.opts.ModelVersion != "" && p.CreatedBy == s.opts.ModelVersion {
				src = p
				break
			}
		}
		return s.as.AddAnnotationFromPrediction(src), false
	}
	if len(list) > 0 && annotationID != "" && annotationID != AutoAnnotation {
		if a, ok := s.as.FindByPK(annotationID); ok {
			return a, false
		}
		for _, a := range list {
			if a.ID == annotationID {
				return a, false
			}
		}
	}
	if len(list) > 0 {
		last := list[len(list)-1]
		if annotationID == AutoAnnotation || hasAutoAnnotation(last) {
			return last, false
		}
	}
	return s.as.CreateAnnotation(annotations.Options{}), false
}

// newestDraft returns the most recently added annotation holding a draft.
// Annotations are kept in load order, newest last.
func newestDraft(list []*annotations.Annotation) *annotations.Annotation {
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].DraftID != 0 {
			return list[i]
		}
	}
	return nil
}

func hasAutoAnnotation(latest *annotations.Annotation) bool {
	return latest.PK == "" || (latest.UserGenerate && !latest.SentUserGenerate)
}

// SetHistory loads the past versions of the selected annotation. Items that
// belong to another annotation are ignored.
func (s *Store) SetHistory(items []domain.HistoryItem) {
	s.mu.Lock()
	defer s.unlock()
	s.as.ClearHistory()
	selected := s.as.Selected()
	if len(items) == 0 || selected == nil || selected.PK == "" {
		return
	}
	if selected.PK != domain.FormatID(items[0].AnnotationID) {
		return
	}
	for _, item := range items {
		h := s.as.AddHistory(annotations.Options{
			PK:     domain.FormatID(item.ID),
			Result: item.Result,
		})
		h.Versions.Result = item.Result
	}
}
