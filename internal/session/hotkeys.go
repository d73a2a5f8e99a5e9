package session

import (
	"context"
	"log"

	"github.com/lewtec/marcador/annotation"
	"github.com/lewtec/marcador/internal/annotations"
	"github.com/lewtec/marcador/internal/hotkey"
)

var storeHotkeys = []string{
	hotkey.Submit, hotkey.Skip, hotkey.Undo, hotkey.Redo,
	hotkey.Delete, hotkey.DeleteAll, hotkey.Relation, hotkey.Unselect,
	hotkey.Visibility, hotkey.VisibilityAll, hotkey.Lock, hotkey.Exit,
	hotkey.Cycle, hotkey.Duplicate,
}

// AttachHotkeys binds the annotation and region hotkeys. Submit and skip
// depend on the enabled interfaces, so call it again after changing them.
func (s *Store) AttachHotkeys() {
	s.mu.Lock()
	defer s.unlock()
	s.attachHotkeys()
}

func (s *Store) attachHotkeys() {
	k := s.opts.Keymap
	if k == nil {
		return
	}
	for _, name := range storeHotkeys {
		k.Unbind(name)
	}
	ctx := context.Background()

	bind := func(name string, fn func()) {
		if err := k.Bind(name, fn); err != nil {
			log.Printf("session: while binding %s: %s", name, err)
		}
	}

	if s.hasInterface(InterfaceSubmit, InterfaceUpdate, InterfaceReview) {
		bind(hotkey.Submit, func() { s.submitHotkey(ctx) })
	}
	if s.hasInterface(InterfaceSkip, InterfaceReview) {
		bind(hotkey.Skip, func() {
			if s.viewingAll() {
				return
			}
			if s.HasInterface(InterfaceReview) {
				s.RejectAnnotation(ctx, "")
			} else {
				s.SkipTask(ctx, "")
			}
		})
	}

	bind(hotkey.DeleteAll, func() {
		if s.opts.Confirm != nil && !s.opts.Confirm(annotation.T("ConfirmDeleteAllRegions")) {
			return
		}
		s.WithSelected(func(a *annotations.Annotation) { a.DeleteAllRegions(false) })
	})
	bind(hotkey.Relation, func() {
		s.WithSelected(func(a *annotations.Annotation) {
			r := a.HighlightedRegion()
			if r == nil || a.IsLinkingMode() {
				return
			}
			if err := a.StartLinkingMode(r.ID()); err != nil {
				log.Printf("session: %s", err)
			}
		})
	})
	bind(hotkey.Unselect, func() {
		s.mu.Lock()
		defer s.unlock()
		a := s.as.Selected()
		if a == nil || a.IsLinkingMode() || a.IsDrawing() {
			return
		}
		for _, h := range s.as.History() {
			h.UnselectAll()
		}
		a.UnselectAll()
	})
	bind(hotkey.Visibility, func() {
		s.WithSelected(func(a *annotations.Annotation) {
			if !a.IsLinkingMode() {
				a.HideSelectedRegions()
			}
		})
	})
	bind(hotkey.Lock, func() {
		s.WithSelected(func(a *annotations.Annotation) {
			if !a.IsLinkingMode() {
				a.LockSelectedRegions()
			}
		})
	})
	bind(hotkey.VisibilityAll, func() {
		s.WithSelected(func(a *annotations.Annotation) { a.ToggleVisibility() })
	})
	bind(hotkey.Undo, func() {
		s.WithSelected(func(a *annotations.Annotation) {
			if !a.IsDrawing() {
				a.Undo()
			}
		})
	})
	bind(hotkey.Redo, func() {
		s.WithSelected(func(a *annotations.Annotation) {
			if !a.IsDrawing() {
				a.Redo()
			}
		})
	})
	bind(hotkey.Exit, func() {
		s.WithSelected(func(a *annotations.Annotation) {
			if a.IsLinkingMode() {
				a.StopLinkingMode()
			} else if !a.IsDrawing() {
				a.UnselectAll()
			}
		})
	})
	bind(hotkey.Delete, func() {
		s.WithSelected(func(a *annotations.Annotation) {
			if !a.IsLinkingMode() && !a.IsDrawing() {
				a.DeleteSelectedRegions()
			}
		})
	})
	bind(hotkey.Cycle, func() {
		s.WithSelected(func(a *annotations.Annotation) { a.SelectNext() })
	})
	bind(hotkey.Duplicate, func() {
		s.WithSelected(func(a *annotations.Annotation) {
			sel := a.SerializedSelection()
			if len(sel) == 0 {
				return
			}
			a.AppendResults(sel)
		})
	})
}

func (s *Store) viewingAll() bool {
	s.mu.Lock()
	defer s.unlock()
	return s.as.ViewingAll()
}

// submitHotkey picks accept, submit or update for the selected annotation.
// An update with nothing changed since the last submission is not sent.
func (s *Store) submitHotkey(ctx context.Context) {
	s.mu.Lock()
	a := s.as.Selected()
	if a == nil || s.as.ViewingAll() || a.ReadOnly() {
		s.unlock()
		return
	}
	if s.hasInterface(InterfaceDenyEmpty) && a.IsEmpty() {
		s.unlock()
		return
	}
	isReview := s.hasInterface(InterfaceReview)
	isUpdate := !isReview && a.PK != ""
	noChanges := !a.History().CanUndo() && a.DraftID == 0
	canSubmit := s.hasInterface(InterfaceSubmit)
	canUpdate := s.hasInterface(InterfaceUpdate)
	s.unlock()

	switch {
	case isUpdate && noChanges:
		return
	case isReview:
		s.AcceptAnnotation(ctx)
	case !isUpdate && canSubmit:
		s.SubmitAnnotation(ctx)
	case canUpdate:
		s.UpdateAnnotation(ctx, nil)
	}
}
