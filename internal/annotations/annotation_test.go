package annotations

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/lewtec/marcador/internal/geometry"
	"github.com/lewtec/marcador/internal/region"
)

var rectBinding = Binding{Control: "label", Type: "rectanglelabels", Object: "image"}

type countingSink struct {
	renders   int
	refreshes int
}

func (s *countingSink) Render(region.Region) { s.renders++ }
func (s *countingSink) Refresh()             { s.refreshes++ }

func rect(x, y, w, h float64) *region.Rectangle {
	return region.NewRectangle(geometry.BBox{X: x, Y: y, Width: w, Height: h})
}

func rectResult(id string, x float64) region.Result {
	return region.Result{
		ID:       id,
		Type:     "rectanglelabels",
		Value:    json.RawMessage(`{"x":` + jsonNumber(x) + `,"y":1,"width":5,"height":5,"rectanglelabels":["Car"]}`),
		FromName: "label",
		ToName:   "image",
	}
}

func jsonNumber(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}

func TestCreateResultRecordsHistory(t *testing.T) {
	a := New(Options{})
	if a.HasChanges() {
		t.Fatal("new annotation is dirty")
	}

	r := a.CreateResult(rect(1, 1, 10, 10), []string{"Car"}, rectBinding)
	if r == nil {
		t.Fatal("CreateResult() returned nil")
	}
	if !r.IsSelected() {
		t.Error("new region is not selected")
	}
	if got := r.Common().Origin; got != OriginManual {
		t.Errorf("Origin = %q, want %q", got, OriginManual)
	}
	if a.History().Len() != 2 || !a.HasChanges() {
		t.Errorf("history len = %d, want 2", a.History().Len())
	}

	a.CreateResult(rect(20, 20, 10, 10), nil, rectBinding)
	if len(a.Regions()) != 2 {
		t.Fatalf("len(Regions()) = %d, want 2", len(a.Regions()))
	}
	if sel := a.Selected(); len(sel) != 1 || sel[0].ID() == r.ID() {
		t.Error("creating a region should move the selection to it")
	}
}

func TestUndoRedoRestoresTree(t *testing.T) {
	a := New(Options{})
	const n = 4
	for i := 0; i < n; i++ {
		a.CreateResult(rect(float64(i), 0, 1, 1), nil, rectBinding)
	}
	final := string(a.Snapshot())

	for i := 0; i < n; i++ {
		if !a.Undo() {
			t.Fatalf("Undo() %d failed", i)
		}
	}
	if len(a.Regions()) != 0 {
		t.Errorf("after undoing everything len(Regions()) = %d", len(a.Regions()))
	}
	if a.Undo() {
		t.Error("Undo() past the start succeeded")
	}
	for i := 0; i < n; i++ {
		a.Redo()
	}
	if got := string(a.Snapshot()); got != final {
		t.Errorf("redo did not restore the tree:\n got %s\nwant %s", got, final)
	}
	if a.Redo() {
		t.Error("Redo() past the end succeeded")
	}
}

func TestFreezeMakesOneStep(t *testing.T) {
	a := New(Options{})
	r := a.CreateResult(rect(1, 1, 10, 10), nil, rectBinding).(*region.Rectangle)
	before := a.History().Len()

	a.History().Freeze()
	for i := 0; i < 25; i++ {
		r.SetBBox(geometry.BBox{X: float64(i), Y: 1, Width: 10, Height: 10})
	}
	a.History().SafeUnfreeze()

	if got := a.History().Len() - before; got != 1 {
		t.Errorf("a frozen drag added %d history entries, want 1", got)
	}
	a.Undo()
	restored, _ := a.Region(r.ID())
	if restored.(*region.Rectangle).X != 1 {
		t.Errorf("undo after drag X = %v, want 1", restored.(*region.Rectangle).X)
	}
}

func TestDeleteRegionDropsRelations(t *testing.T) {
	a := New(Options{})
	r1 := a.CreateResult(rect(1, 1, 5, 5), nil, rectBinding)
	r2 := a.CreateResult(rect(10, 1, 5, 5), nil, rectBinding)
	r3 := a.CreateResult(rect(20, 1, 5, 5), nil, rectBinding)
	if _, err := a.AddRelation(r1.ID(), r2.ID()); err != nil {
		t.Fatal(err)
	}
	if _, err := a.AddRelation(r2.ID(), r3.ID()); err != nil {
		t.Fatal(err)
	}
	if _, err := a.AddRelation(r1.ID(), r1.ID()); !errors.Is(err, ErrSelfRelation) {
		t.Errorf("self relation error = %v", err)
	}

	a.SelectArea(r2.ID())
	if err := a.DeleteRegion(r2.ID()); err != nil {
		t.Fatal(err)
	}
	if len(a.Relations()) != 0 {
		t.Errorf("relations left after delete: %d", len(a.Relations()))
	}
	if a.SelectedRegion() != nil {
		t.Error("selection should be empty after deleting the selected region")
	}
	if err := a.DeleteRegion("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteRegion(missing) error = %v", err)
	}
}

func TestReadOnlyAnnotationIgnoresMutations(t *testing.T) {
	a := New(Options{ReadOnly: true, Result: []region.Result{rectResult("r1", 1)}})
	before := string(a.Snapshot())

	if r := a.CreateResult(rect(1, 1, 1, 1), nil, rectBinding); r != nil {
		t.Error("CreateResult() on read only annotation returned a region")
	}
	if err := a.DeleteRegion("r1"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("DeleteRegion() error = %v, want ErrReadOnly", err)
	}
	r, _ := a.Region("r1")
	if err := r.SetProperty("x", 50); err != nil {
		t.Errorf("SetProperty() on read only error = %v", err)
	}
	a.DeleteAllRegions(true)
	if got := string(a.Snapshot()); got != before {
		t.Errorf("read only annotation changed:\n got %s\nwant %s", got, before)
	}
}

func TestDeserializeResultsHidden(t *testing.T) {
	results := []region.Result{rectResult("a", 1), rectResult("b", 2), rectResult("c", 3)}

	t.Run("hidden", func(t *testing.T) {
		a := New(Options{})
		sink := &countingSink{}
		a.SetRenderSink(sink)
		a.DeserializeResults(results, DeserializeOptions{Hidden: true})
		if sink.renders != 0 || sink.refreshes != 1 {
			t.Errorf("renders = %d, refreshes = %d; want 0, 1", sink.renders, sink.refreshes)
		}
		if a.History().Len() != 2 {
			t.Errorf("bulk load added %d entries, want 1", a.History().Len()-1)
		}
	})

	t.Run("visible", func(t *testing.T) {
		a := New(Options{})
		sink := &countingSink{}
		a.SetRenderSink(sink)
		a.DeserializeResults(results, DeserializeOptions{})
		if sink.renders != 3 || sink.refreshes != 0 {
			t.Errorf("renders = %d, refreshes = %d; want 3, 0", sink.renders, sink.refreshes)
		}
	})

	t.Run("relations and order", func(t *testing.T) {
		rel := region.Result{Type: region.TypeRelation, FromID: "a", ToID: "c", Direction: DirectionBi}
		dangling := region.Result{Type: region.TypeRelation, FromID: "a", ToID: "zzz"}
		a := New(Options{Result: append(append([]region.Result{}, results...), rel, dangling)})
		var ids []string
		for _, r := range a.Regions() {
			ids = append(ids, r.ID())
		}
		if len(ids) != 3 || ids[0] != "a" || ids[2] != "c" {
			t.Errorf("order = %v", ids)
		}
		if len(a.Relations()) != 1 || a.Relations()[0].Direction != DirectionBi {
			t.Errorf("relations = %+v", a.Relations())
		}
		if a.HasChanges() {
			t.Error("loading should not make the annotation dirty")
		}
	})
}

func TestAppendResultsDuplicates(t *testing.T) {
	a := New(Options{})
	r1 := a.CreateResult(rect(1, 1, 5, 5), []string{"Car"}, rectBinding)
	r2 := a.CreateResult(rect(9, 9, 5, 5), []string{"Bus"}, rectBinding)
	a.AddRelation(r1.ID(), r2.ID())
	a.SelectAreas(r1.ID(), r2.ID())

	copies := a.AppendResults(append(a.SerializedSelection(), a.Relations()[0].serialize()))
	if len(copies) != 2 {
		t.Fatalf("AppendResults() = %d regions, want 2", len(copies))
	}
	if copies[0].ID() == r1.ID() || !copies[0].Common().HasLabel("Car") || !copies[1].Common().HasLabel("Bus") {
		t.Error("copies should have new ids and keep their order")
	}
	if len(a.Relations()) != 2 {
		t.Errorf("relation was not copied, have %d", len(a.Relations()))
	}
	if r1.IsSelected() || !copies[0].IsSelected() {
		t.Error("selection should move to the copies")
	}
}

func TestDrawingRegionIsPromotedAtOnce(t *testing.T) {
	a := New(Options{})
	b := region.NewBrush()
	a.CreateDrawingRegion(b, []string{"Sky"}, Binding{Control: "brush", Type: "brushlabels", Object: "image"})
	b.BeginTouch(region.TouchAdd, 10)
	b.AddPoint(geometry.Point{X: 1, Y: 1})
	b.AddPoint(geometry.Point{X: 2, Y: 2})

	if len(a.Regions()) != 0 || a.HasChanges() {
		t.Fatal("region in progress should stay out of the list and the history")
	}
	if !a.IsDrawing() {
		t.Error("IsDrawing() = false while drawing")
	}
	a.CommitDrawingRegion()
	if len(a.Regions()) != 1 || a.IsDrawing() || a.Drawing() != nil {
		t.Fatal("commit did not promote the region")
	}
	if a.History().Len() != 2 {
		t.Errorf("history len = %d, want 2", a.History().Len())
	}
}

func TestLinkingMode(t *testing.T) {
	a := New(Options{})
	r1 := a.CreateResult(rect(1, 1, 5, 5), nil, rectBinding)
	r2 := a.CreateResult(rect(9, 9, 5, 5), nil, rectBinding)

	if err := a.StartLinkingMode(r1.ID()); err != nil {
		t.Fatal(err)
	}
	if err := a.SelectArea(r2.ID()); err != nil {
		t.Fatal(err)
	}
	if a.IsLinkingMode() {
		t.Error("linking mode should end after picking the target")
	}
	rels := a.Relations()
	if len(rels) != 1 || rels[0].From != r1.ID() || rels[0].To != r2.ID() {
		t.Fatalf("relations = %+v", rels)
	}
	rels[0].ToggleDirection()
	if rels[0].Direction != DirectionLeft {
		t.Errorf("Direction = %s", rels[0].Direction)
	}
}

func TestRenderOrderPutsSelectionOnTop(t *testing.T) {
	a := New(Options{})
	r1 := a.CreateResult(rect(1, 1, 5, 5), nil, rectBinding)
	a.CreateResult(rect(2, 2, 5, 5), nil, rectBinding)
	a.CreateResult(rect(3, 3, 5, 5), nil, rectBinding)
	a.SelectArea(r1.ID())
	order := a.RenderOrder()
	if order[len(order)-1].ID() != r1.ID() {
		t.Error("selected region should render last")
	}
}

func TestSelectNextAndVisibility(t *testing.T) {
	a := New(Options{})
	r1 := a.CreateResult(rect(1, 1, 5, 5), nil, rectBinding)
	r2 := a.CreateResult(rect(2, 2, 5, 5), nil, rectBinding)
	r3 := a.CreateResult(rect(3, 3, 5, 5), nil, rectBinding)

	if next := a.SelectNext(); next.ID() != r1.ID() {
		t.Errorf("SelectNext() from the last region = %s, want wrap to %s", next.ID(), r1.ID())
	}
	r2.SetHidden(true)
	if next := a.SelectNext(); next.ID() != r3.ID() {
		t.Errorf("SelectNext() should skip hidden regions, got %s", next.ID())
	}

	a.ToggleVisibility()
	for _, r := range a.Regions() {
		if !r.IsHidden() {
			t.Errorf("region %s still visible", r.ID())
		}
	}
	a.ToggleVisibility()
	for _, r := range a.Regions() {
		if r.IsHidden() {
			t.Errorf("region %s still hidden", r.ID())
		}
	}
}

func TestDraftBookkeeping(t *testing.T) {
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }
	a := New(Options{})
	a.SetClock(now)

	if a.NeedsDraftSave() {
		t.Error("clean annotation needs no draft")
	}
	a.CreateResult(rect(1, 1, 5, 5), nil, rectBinding)
	if !a.NeedsDraftSave() {
		t.Error("dirty annotation without a draft needs one")
	}

	clock = clock.Add(time.Second)
	a.SetDraftSaved(clock)
	a.SetDraftID(7)
	if a.NeedsDraftSave() {
		t.Error("no edits since the draft was saved")
	}

	clock = clock.Add(time.Second)
	a.CreateResult(rect(2, 2, 5, 5), nil, rectBinding)
	if !a.NeedsDraftSave() {
		t.Error("edit after the draft needs a new draft")
	}

	a.DropDraft()
	if a.HasChanges() || a.DraftID != 0 || !a.DraftSavedAt.IsZero() || a.NeedsDraftSave() {
		t.Error("DropDraft() should leave a clean annotation")
	}
	if len(a.Regions()) != 2 {
		t.Error("DropDraft() must keep the regions")
	}
}

func TestValidate(t *testing.T) {
	a := New(Options{Result: []region.Result{{ID: "c", Type: "choices", Value: json.RawMessage(`{"choices":["A"]}`)}}})
	if a.Validate(nil, true) {
		t.Error("only classifications with deny empty should not validate")
	}
	if !a.Validate(nil, false) {
		t.Error("deny empty off should validate")
	}
	a.CreateResult(rect(1, 1, 1, 1), nil, rectBinding)
	if !a.Validate(nil, true) {
		t.Error("annotation with a rectangle should validate")
	}
	if a.Validate(func([]region.Region) bool { return false }, false) {
		t.Error("validator result was ignored")
	}
}

func TestSuggestions(t *testing.T) {
	a := New(Options{})
	a.SetSuggestions([]region.Result{rectResult("s1", 1), rectResult("s2", 2)})
	if len(a.Suggestions()) != 2 || len(a.Regions()) != 0 {
		t.Fatal("suggestions should not be regions yet")
	}
	if err := a.AcceptSuggestion("s1"); err != nil {
		t.Fatal(err)
	}
	if err := a.RejectSuggestion("s2"); err != nil {
		t.Fatal(err)
	}
	if len(a.Suggestions()) != 0 || len(a.Regions()) != 1 {
		t.Errorf("suggestions = %d, regions = %d", len(a.Suggestions()), len(a.Regions()))
	}
	if r := a.Regions()[0]; r.Common().Origin != OriginPrediction {
		t.Errorf("accepted suggestion origin = %q", r.Common().Origin)
	}
	if err := a.AcceptSuggestion("s2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("accepting a rejected suggestion error = %v", err)
	}
}

func TestHighlightAndExists(t *testing.T) {
	a := New(Options{Result: []region.Result{rectResult("r1", 1), rectResult("r2", 2)}})
	a.Highlight("r2")
	if h := a.HighlightedRegion(); h == nil || h.ID() != "r2" {
		t.Fatalf("HighlightedRegion() = %v", h)
	}
	a.Highlight("")
	if a.HighlightedRegion() != nil {
		t.Error("Highlight(\"\") should clear the highlight")
	}
	if a.HasChanges() {
		t.Error("highlighting is not a change")
	}

	if !a.Exists() {
		t.Error("loaded annotations exist on the server")
	}
	fresh := New(Options{UserGenerate: true})
	if fresh.Exists() {
		t.Error("unsent client annotation does not exist yet")
	}
	fresh.SendUserGenerate()
	if !fresh.Exists() {
		t.Error("sent annotation exists")
	}
}
