package session

import (
	"context"
	"log"
	"time"

	"github.com/lewtec/marcador/internal/annotations"
)

// DefaultAutosaveInterval is how long edits have to rest before they are
// saved as a draft.
const DefaultAutosaveInterval = 30 * time.Second

// Autosaver saves the selected annotation as a draft shortly after the user
// stops editing it, unless a submission is running.
type Autosaver struct {
	store    *Store
	interval time.Duration
}

func NewAutosaver(store *Store, interval time.Duration) *Autosaver {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	return &Autosaver{store: store, interval: interval}
}

// Run saves pending edits once they were left alone for the interval, until
// ctx is done. Every new edit pushes the save back.
func (a *Autosaver) Run(ctx context.Context) error {
	poll := a.interval / 4
	if poll <= 0 {
		poll = a.interval
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if a.settled() {
				a.Tick(ctx)
			}
		}
	}
}

// settled reports whether the selected annotation has not changed for the
// interval.
func (a *Autosaver) settled() bool {
	var last time.Time
	ok := a.store.WithSelected(func(ann *annotations.Annotation) {
		last = ann.History().LastAdditionTime()
	})
	return ok && !last.IsZero() && time.Since(last) >= a.interval
}

// Tick saves once if needed.
func (a *Autosaver) Tick(ctx context.Context) {
	if a.store.IsSubmitting() {
		return
	}
	if err := a.store.SubmitDraft(ctx, false, nil); err != nil {
		log.Printf("autosave: %s", err)
	}
}
