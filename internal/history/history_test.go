package history

import (
	"errors"
	"fmt"
	"testing"
)

func snap(i int) Snapshot { return Snapshot(fmt.Sprintf(`{"step":%d}`, i)) }

func TestHistory_UndoRedo(t *testing.T) {
	const n = 5
	h := New(snap(0))
	for i := 1; i <= n; i++ {
		if !h.Record(snap(i)) {
			t.Fatalf("Record(%d) was not appended", i)
		}
	}

	if !h.CanUndo() {
		t.Fatal("CanUndo() = false after recording")
	}
	for i := n - 1; i >= 0; i-- {
		s, ok := h.Undo()
		if !ok {
			t.Fatalf("Undo() to %d failed", i)
		}
		if string(s) != string(snap(i)) {
			t.Errorf("Undo() = %s, want %s", s, snap(i))
		}
	}

	t.Run("undo past the start is a no-op", func(t *testing.T) {
		s, ok := h.Undo()
		if ok || s != nil {
			t.Errorf("Undo() = %s, %v; want nil, false", s, ok)
		}
		if h.UndoIdx() != 0 {
			t.Errorf("UndoIdx() = %d, want 0", h.UndoIdx())
		}
	})

	for i := 1; i <= n; i++ {
		s, ok := h.Redo()
		if !ok || string(s) != string(snap(i)) {
			t.Fatalf("Redo() = %s, %v; want %s", s, ok, snap(i))
		}
	}

	t.Run("redo past the end is a no-op", func(t *testing.T) {
		before := h.Len()
		if _, ok := h.Redo(); ok {
			t.Error("Redo() succeeded at the end of the log")
		}
		if h.Len() != before || string(h.Current()) != string(snap(n)) {
			t.Error("Redo() at the end changed the history")
		}
	})
}

func TestHistory_RecordSkipsIdentical(t *testing.T) {
	h := New(snap(0))
	if h.Record(snap(0)) {
		t.Error("identical snapshot should not be recorded")
	}
	if h.HasChanges() {
		t.Error("HasChanges() = true without changes")
	}
}

func TestHistory_FreezeConsolidates(t *testing.T) {
	h := New(snap(0))
	h.Freeze()
	h.Freeze()
	for i := 1; i <= 10; i++ {
		h.Record(snap(i))
	}
	if h.Len() != 1 {
		t.Fatalf("Len() = %d while frozen, want 1", h.Len())
	}
	if err := h.Unfreeze(); err != nil {
		t.Fatal(err)
	}
	if h.Len() != 1 {
		t.Fatalf("Len() = %d after inner unfreeze, want 1", h.Len())
	}
	if err := h.Unfreeze(); err != nil {
		t.Fatal(err)
	}
	if h.Len() != 2 {
		t.Fatalf("Len() = %d after unfreeze, want 2", h.Len())
	}
	if string(h.Current()) != string(snap(10)) {
		t.Errorf("Current() = %s, want last recorded snapshot", h.Current())
	}

	t.Run("unfreeze without freeze", func(t *testing.T) {
		if err := h.Unfreeze(); !errors.Is(err, ErrNotFrozen) {
			t.Errorf("Unfreeze() error = %v, want ErrNotFrozen", err)
		}
		h.SafeUnfreeze()
		if h.IsFrozen() {
			t.Error("SafeUnfreeze() left history frozen")
		}
	})

	t.Run("freeze without changes adds nothing", func(t *testing.T) {
		h.Freeze()
		h.SafeUnfreeze()
		if h.Len() != 2 {
			t.Errorf("Len() = %d, want 2", h.Len())
		}
	})
}

func TestHistory_ResetIsUndoable(t *testing.T) {
	h := New(snap(0))
	h.Record(snap(1))
	h.Record(snap(2))

	s, ok := h.Reset()
	if !ok || string(s) != string(snap(0)) {
		t.Fatalf("Reset() = %s, %v", s, ok)
	}
	if h.Len() != 4 {
		t.Errorf("Len() = %d, want 4", h.Len())
	}
	s, ok = h.Undo()
	if !ok || string(s) != string(snap(2)) {
		t.Errorf("Undo() after reset = %s, %v; want %s", s, ok, snap(2))
	}
}

func TestHistory_RecordAfterUndoDropsRedo(t *testing.T) {
	h := New(snap(0))
	h.Record(snap(1))
	h.Record(snap(2))
	h.Undo()
	h.Record(snap(3))
	if h.CanRedo() {
		t.Error("CanRedo() = true after recording on top of undo")
	}
	if h.Len() != 3 {
		t.Errorf("Len() = %d, want 3", h.Len())
	}
}

func TestHistory_Reinit(t *testing.T) {
	h := New(snap(0))
	h.Record(snap(1))
	h.Freeze()
	h.Reinit(snap(7))
	if h.Len() != 1 || h.CanUndo() || h.IsFrozen() || h.HasChanges() {
		t.Errorf("Reinit() left state: len=%d undo=%v frozen=%v", h.Len(), h.CanUndo(), h.IsFrozen())
	}
}
