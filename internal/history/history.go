package history

import (
	"bytes"
	"errors"
	"time"
)

// ErrNotFrozen is returned by Unfreeze when there is nothing to unfreeze.
var ErrNotFrozen = errors.New("history is not frozen")

// Snapshot is an opaque serialized annotation tree.
type Snapshot []byte

type entry struct {
	snapshot Snapshot
	at       time.Time
}

// History is a snapshot log with a movable cursor. Undo and redo only move
// the cursor; entries are never mutated.
type History struct {
	entries []entry
	undoIdx int

	frozen  int
	pending Snapshot

	lastAddition time.Time
	now          func() time.Time
}

// New creates a history whose first entry is the initial tree.
func New(initial Snapshot) *History {
	h := &History{now: time.Now}
	h.entries = []entry{{snapshot: clone(initial), at: h.now()}}
	return h
}

// SetClock replaces the time source, used by tests.
func (h *History) SetClock(now func() time.Time) { h.now = now }

func clone(s Snapshot) Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	copy(out, s)
	return out
}

// Current returns the snapshot under the cursor.
func (h *History) Current() Snapshot {
	if len(h.entries) == 0 {
		return nil
	}
	return h.entries[h.undoIdx].snapshot
}

// Record appends a snapshot unless it equals the current one. While frozen the
// snapshot is held back and only the latest one is kept.
// It reports whether a new entry was added.
func (h *History) Record(s Snapshot) bool {
	if h.frozen > 0 {
		h.pending = clone(s)
		return false
	}
	return h.push(s)
}

func (h *History) push(s Snapshot) bool {
	if bytes.Equal(h.Current(), s) {
		return false
	}
	// a new change after undo forgets the redo branch
	h.entries = append(h.entries[:h.undoIdx+1], entry{snapshot: clone(s), at: h.now()})
	h.undoIdx = len(h.entries) - 1
	h.lastAddition = h.entries[h.undoIdx].at
	return true
}

// Freeze suspends recording. Calls nest.
func (h *History) Freeze() { h.frozen++ }

// IsFrozen reports whether recording is suspended.
func (h *History) IsFrozen() bool { return h.frozen > 0 }

// Unfreeze resumes recording once every Freeze has been matched. All
// snapshots recorded in between collapse into a single entry.
func (h *History) Unfreeze() error {
	if h.frozen == 0 {
		return ErrNotFrozen
	}
	h.frozen--
	if h.frozen == 0 && h.pending != nil {
		s := h.pending
		h.pending = nil
		h.push(s)
	}
	return nil
}

// SafeUnfreeze is Unfreeze that does nothing when not frozen.
func (h *History) SafeUnfreeze() {
	if h.frozen > 0 {
		_ = h.Unfreeze()
	}
}

// CanUndo reports whether there is an older entry.
func (h *History) CanUndo() bool { return h.undoIdx > 0 }

// CanRedo reports whether there is a newer entry.
func (h *History) CanRedo() bool { return h.undoIdx < len(h.entries)-1 }

// Undo moves the cursor back and returns the snapshot to restore.
func (h *History) Undo() (Snapshot, bool) {
	if !h.CanUndo() {
		return nil, false
	}
	h.undoIdx--
	return h.Current(), true
}

// Redo moves the cursor forward and returns the snapshot to restore.
func (h *History) Redo() (Snapshot, bool) {
	if !h.CanRedo() {
		return nil, false
	}
	h.undoIdx++
	return h.Current(), true
}

// Reset brings the tree back to the first entry. The reset is itself a new
// entry, so it can be undone.
func (h *History) Reset() (Snapshot, bool) {
	if len(h.entries) == 0 {
		return nil, false
	}
	first := h.entries[0].snapshot
	if !h.push(first) {
		return nil, false
	}
	return h.Current(), true
}

// Reinit replaces the whole log with a single entry, used when the tree is
// replaced wholesale (e.g. a draft was loaded on top of it).
func (h *History) Reinit(s Snapshot) {
	h.entries = []entry{{snapshot: clone(s), at: h.now()}}
	h.undoIdx = 0
	h.frozen = 0
	h.pending = nil
}

// Len returns the number of entries.
func (h *History) Len() int { return len(h.entries) }

// UndoIdx returns the cursor position.
func (h *History) UndoIdx() int { return h.undoIdx }

// HasChanges reports whether anything was recorded since the last Reinit.
func (h *History) HasChanges() bool { return len(h.entries) > 1 }

// LastAdditionTime is when the latest entry was recorded; zero if none was.
func (h *History) LastAdditionTime() time.Time { return h.lastAddition }
