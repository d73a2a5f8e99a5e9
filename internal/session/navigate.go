package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lewtec/marcador/internal/events"
	"github.com/lewtec/marcador/internal/region"
)

// PostponeTask saves the selected annotation as a postponed draft and moves
// on to the next task of the queue.
func (s *Store) PostponeTask(ctx context.Context) error {
	if err := s.SubmitDraft(ctx, true, map[string]any{"was_postponed": true}); err != nil {
		return fmt.Errorf("while postponing: %w", err)
	}
	if err := s.invoke(ctx, events.NextTask, s, (*TaskHistoryItem)(nil)); err != nil {
		return err
	}
	s.IncrementQueuePosition(1)
	return nil
}

// NextTask goes forward in the task history. The handlers get the item to
// open, or nil to fetch the next task of the queue.
func (s *Store) NextTask(ctx context.Context) bool {
	s.mu.Lock()
	defer s.unlock()
	if !s.canGoNextTask() {
		return false
	}
	next := s.taskHistory[s.taskHistoryIndex()+1]
	s.invokeLater(ctx, events.NextTask, s, &next)
	s.incrementQueuePosition(1)
	return true
}

// PrevTask goes back in the task history. With shouldGoBack the task before
// the last visited one is opened, wherever the current task is.
func (s *Store) PrevTask(ctx context.Context, shouldGoBack bool) bool {
	s.mu.Lock()
	defer s.unlock()
	idx := s.taskHistoryIndex()
	if shouldGoBack {
		idx = len(s.taskHistory) - 1
	}
	if (!s.canGoPrevTask() && !shouldGoBack) || idx < 1 {
		return false
	}
	prev := s.taskHistory[idx-1]
	s.invokeLater(ctx, events.PrevTask, s, &prev)
	s.incrementQueuePosition(-1)
	return true
}

// SuggestionFunc fetches model suggestions for the current task.
type SuggestionFunc func(ctx context.Context) ([]region.Result, error)

// LoadSuggestions asks for model suggestions and shows them on the selected
// annotation. A newer request supersedes older ones: a late response is
// dropped and reported as not applied.
func (s *Store) LoadSuggestions(ctx context.Context, request SuggestionFunc) (bool, error) {
	token := uuid.NewString()
	s.mu.Lock()
	s.suggestionsRequest = token
	s.flags.AwaitingSuggestions = true
	s.unlock()

	results, err := request(ctx)

	s.mu.Lock()
	defer s.unlock()
	if s.suggestionsRequest != token {
		return false, nil
	}
	s.suggestionsRequest = ""
	s.flags.AwaitingSuggestions = false
	if err != nil {
		return false, fmt.Errorf("while loading suggestions: %w", err)
	}
	a := s.editable()
	if a == nil {
		return false, nil
	}
	a.SetSuggestions(results)
	if s.opts.AutoAcceptSuggestions {
		for _, r := range a.Suggestions() {
			if err := a.AcceptSuggestion(r.ID()); err != nil {
				return true, err
			}
		}
	}
	return true, nil
}
