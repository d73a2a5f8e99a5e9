package annotations

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lewtec/marcador/internal/history"
	"github.com/lewtec/marcador/internal/region"
)

var (
	ErrNotFound = errors.New("not found")
	ErrReadOnly = errors.New("annotation is read only")
)

// Type tells user annotations apart from predictions and history items.
type Type string

const (
	TypeAnnotation Type = "annotation"
	TypePrediction Type = "prediction"
	TypeHistory    Type = "history"
)

// OriginManual and OriginPrediction are the values of region.Base.Origin.
const (
	OriginManual     = "manual"
	OriginPrediction = "prediction"
)

// Binding ties a new region to the control that produced it and the object
// it annotates.
type Binding struct {
	Control string
	Type    string
	Object  string
}

// RenderSink receives regions that need drawing. During a hidden bulk load it
// only gets a single Refresh at the end.
type RenderSink interface {
	Render(r region.Region)
	Refresh()
}

// Validator is a caller supplied check run before submission. It must not
// change the regions.
type Validator func(regions []region.Region) bool

// Event is sent to subscribers.
type Event int

const (
	// EventChanged follows every change of regions or relations.
	EventChanged Event = iota
	// EventSelection follows selection and visibility changes.
	EventSelection
	// EventDraft follows draft bookkeeping (saved, dropped).
	EventDraft
)

// DeserializeOptions tune DeserializeResults.
type DeserializeOptions struct {
	Hidden bool
}

// Versions are the last known server copies of the annotation.
type Versions struct {
	Result []region.Result
	Draft  []region.Result
}

// Options describe an annotation being created or loaded.
type Options struct {
	PK               string
	Type             Type
	DraftID          int64
	UserGenerate     bool
	ReadOnly         bool
	CreatedBy        string
	LeadTime         float64
	ParentPrediction string
	ParentAnnotation string
	Result           []region.Result
}

// Annotation is one complete labeling of a task. It is not safe for
// concurrent use.
type Annotation struct {
	ID               string
	PK               string
	Type             Type
	DraftID          int64
	UserGenerate     bool
	SentUserGenerate bool
	CreatedBy        string
	LeadTime         float64
	LoadedDate       time.Time
	DraftSavedAt     time.Time
	IsDraftSaving    bool
	ParentPrediction string
	ParentAnnotation string
	Versions         Versions

	readOnly bool
	selected bool

	regions   map[string]region.Region
	order     []string
	relations []*Relation

	drawing     region.Region
	isDrawing   bool
	linkingFrom string
	suggestions []region.Region

	history   *history.History
	restoring int
	sink      RenderSink

	subscribers map[int]func(Event)
	nextSub     int
	now         func() time.Time
}

// New creates an annotation and loads opts.Result into it. The loaded state
// is the first history entry.
func New(opts Options) *Annotation {
	if opts.Type == "" {
		opts.Type = TypeAnnotation
	}
	a := &Annotation{
		ID:               uuid.NewString(),
		PK:               opts.PK,
		Type:             opts.Type,
		DraftID:          opts.DraftID,
		UserGenerate:     opts.UserGenerate,
		CreatedBy:        opts.CreatedBy,
		LeadTime:         opts.LeadTime,
		ParentPrediction: opts.ParentPrediction,
		ParentAnnotation: opts.ParentAnnotation,
		readOnly:         opts.ReadOnly,
		regions:          map[string]region.Region{},
		subscribers:      map[int]func(Event){},
		now:              time.Now,
	}
	a.LoadedDate = a.now()
	a.Versions.Result = opts.Result
	a.restoring++
	a.DeserializeResults(opts.Result, DeserializeOptions{Hidden: true})
	a.restoring--
	a.history = history.New(a.Snapshot())
	return a
}

// SetClock replaces the time source of the annotation and its history.
func (a *Annotation) SetClock(now func() time.Time) {
	a.now = now
	a.history.SetClock(now)
	a.LoadedDate = now()
}

func (a *Annotation) SetRenderSink(s RenderSink) { a.sink = s }

func (a *Annotation) History() *history.History { return a.history }

// ReadOnly implements region.Owner.
func (a *Annotation) ReadOnly() bool      { return a.readOnly }
func (a *Annotation) SetReadOnly(v bool)  { a.readOnly = v }
func (a *Annotation) IsSelected() bool    { return a.selected }
func (a *Annotation) IsDrawing() bool     { return a.isDrawing }
func (a *Annotation) SetIsDrawing(v bool) { a.isDrawing = v }

// RegionChanged implements region.Owner.
func (a *Annotation) RegionChanged(id string) {
	if _, ok := a.regions[id]; !ok {
		// drawing regions and suggestions are not part of the snapshot
		a.notify(EventChanged)
		return
	}
	a.changed()
}

// Subscribe registers fn for change events. The returned func removes it.
func (a *Annotation) Subscribe(fn func(Event)) func() {
	id := a.nextSub
	a.nextSub++
	a.subscribers[id] = fn
	return func() { delete(a.subscribers, id) }
}

func (a *Annotation) notify(e Event) {
	for _, fn := range a.subscribers {
		fn(e)
	}
}

// changed records a history entry and tells subscribers.
func (a *Annotation) changed() {
	if a.restoring > 0 {
		return
	}
	a.history.Record(a.Snapshot())
	a.notify(EventChanged)
}

func (a *Annotation) render(r region.Region) {
	if a.sink != nil {
		a.sink.Render(r)
	}
}

func (a *Annotation) attach(r region.Region) {
	r.Common().Attach(a.ID, a)
}

func (a *Annotation) insert(r region.Region) {
	a.attach(r)
	a.regions[r.ID()] = r
	a.order = append(a.order, r.ID())
}

// Regions returns the committed regions in insertion order.
func (a *Annotation) Regions() []region.Region {
	out := make([]region.Region, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.regions[id])
	}
	return out
}

// RenderOrder returns regions in drawing order: insertion order, with
// highlighted and selected regions on top.
func (a *Annotation) RenderOrder() []region.Region {
	var back, front []region.Region
	for _, r := range a.Regions() {
		if r.IsSelected() || r.IsHighlighted() {
			front = append(front, r)
		} else {
			back = append(back, r)
		}
	}
	return append(back, front...)
}

// Region looks a committed region up by id or clean id.
func (a *Annotation) Region(id string) (region.Region, bool) {
	if r, ok := a.regions[id]; ok {
		return r, true
	}
	clean := region.CleanID(id)
	for _, rid := range a.order {
		if region.CleanID(rid) == clean {
			return a.regions[rid], true
		}
	}
	return nil, false
}

func (a *Annotation) Relations() []*Relation { return a.relations }

// CreateResult adds a finished region bound to the given control and object,
// and selects it. It returns nil on a read only annotation.
func (a *Annotation) CreateResult(r region.Region, labels []string, b Binding) region.Region {
	if a.readOnly {
		log.Printf("annotations: create result on read only annotation %s ignored", a.ID)
		return nil
	}
	bind(r, labels, b)
	a.insert(r)
	a.unselectAll()
	r.Select()
	a.render(r)
	a.changed()
	return r
}

func bind(r region.Region, labels []string, b Binding) {
	base := r.Common()
	base.Type = b.Type
	base.FromName = b.Control
	base.ToName = b.Object
	if base.Origin == "" {
		base.Origin = OriginManual
	}
	if labels != nil {
		base.Labels = append([]string{}, labels...)
		base.LabelsKey = b.Type
	}
}

// CreateDrawingRegion starts a region that is being drawn. It stays out of
// the region list, and out of history, until CommitDrawingRegion. Starting a
// new one commits the previous one.
func (a *Annotation) CreateDrawingRegion(r region.Region, labels []string, b Binding) region.Region {
	if a.readOnly {
		log.Printf("annotations: drawing on read only annotation %s ignored", a.ID)
		return nil
	}
	if a.drawing != nil {
		a.CommitDrawingRegion()
	}
	bind(r, labels, b)
	a.attach(r)
	a.drawing = r
	a.isDrawing = true
	a.render(r)
	return r
}

// Drawing returns the region in progress, if any.
func (a *Annotation) Drawing() region.Region { return a.drawing }

// CommitDrawingRegion moves the region in progress into the list in a single step.
func (a *Annotation) CommitDrawingRegion() region.Region {
	r := a.drawing
	if r == nil {
		return nil
	}
	a.drawing = nil
	a.isDrawing = false
	a.regions[r.ID()] = r
	a.order = append(a.order, r.ID())
	a.unselectAll()
	r.Select()
	a.changed()
	return r
}

// DiscardDrawingRegion drops the region in progress.
func (a *Annotation) DiscardDrawingRegion() {
	if a.drawing == nil {
		return
	}
	a.drawing.Delete()
	a.drawing = nil
	a.isDrawing = false
	a.notify(EventChanged)
}

// DeleteRegion removes a region and every relation touching it.
func (a *Annotation) DeleteRegion(id string) error {
	if a.readOnly {
		return fmt.Errorf("while deleting region %s: %w", id, ErrReadOnly)
	}
	if err := a.deleteRegion(id, false); err != nil {
		return err
	}
	a.changed()
	return nil
}

func (a *Annotation) deleteRegion(id string, force bool) error {
	r, ok := a.Region(id)
	if !ok {
		return fmt.Errorf("region %s: %w", id, ErrNotFound)
	}
	if !force && r.Common().IsReadOnly() {
		return fmt.Errorf("while deleting region %s: %w", id, ErrReadOnly)
	}
	if a.linkingFrom == r.ID() {
		a.linkingFrom = ""
	}
	kept := a.relations[:0]
	for _, rel := range a.relations {
		if !rel.touches(r.ID()) {
			kept = append(kept, rel)
		}
	}
	a.relations = kept
	for i, rid := range a.order {
		if rid == r.ID() {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	delete(a.regions, r.ID())
	r.Delete()
	return nil
}

// DeleteAllRegions removes every region. Read only regions stay unless
// deleteReadOnly is set.
func (a *Annotation) DeleteAllRegions(deleteReadOnly bool) {
	if a.readOnly {
		return
	}
	removed := false
	for _, r := range a.Regions() {
		if r.Common().IsReadOnly() && !deleteReadOnly {
			continue
		}
		if err := a.deleteRegion(r.ID(), true); err == nil {
			removed = true
		}
	}
	if removed {
		a.changed()
	}
}

// DeleteSelectedRegions removes the selected, editable regions.
func (a *Annotation) DeleteSelectedRegions() {
	if a.readOnly {
		return
	}
	removed := false
	for _, r := range a.Selected() {
		if err := a.deleteRegion(r.ID(), false); err != nil {
			log.Printf("annotations: %v", err)
			continue
		}
		removed = true
	}
	if removed {
		a.changed()
	}
}

// Selected returns the selected regions in order.
func (a *Annotation) Selected() []region.Region {
	var out []region.Region
	for _, r := range a.Regions() {
		if r.IsSelected() {
			out = append(out, r)
		}
	}
	return out
}

// SelectedRegion returns the first selected region.
func (a *Annotation) SelectedRegion() region.Region {
	if s := a.Selected(); len(s) > 0 {
		return s[0]
	}
	return nil
}

// Highlight marks one region as hovered; an empty id clears it.
func (a *Annotation) Highlight(id string) {
	for _, r := range a.regions {
		r.SetHighlight(id != "" && r.ID() == id)
	}
	a.notify(EventSelection)
}

// HighlightedRegion returns the hovered region, nil if none.
func (a *Annotation) HighlightedRegion() region.Region {
	for _, r := range a.Regions() {
		if r.IsHighlighted() {
			return r
		}
	}
	return nil
}

// Exists reports whether the server knows this annotation: it was loaded
// from it, or it was created here and already sent.
func (a *Annotation) Exists() bool {
	return !a.UserGenerate || a.SentUserGenerate
}

// SelectArea selects a single region. In linking mode it instead links the
// linking source to it and leaves linking mode.
func (a *Annotation) SelectArea(id string) error {
	r, ok := a.Region(id)
	if !ok {
		return fmt.Errorf("while selecting %s: %w", id, ErrNotFound)
	}
	if a.linkingFrom != "" {
		from := a.linkingFrom
		a.linkingFrom = ""
		_, err := a.AddRelation(from, r.ID())
		return err
	}
	a.unselectAll()
	r.Select()
	a.notify(EventSelection)
	return nil
}

// SelectAreas adds regions to the selection.
func (a *Annotation) SelectAreas(ids ...string) error {
	for _, id := range ids {
		r, ok := a.Region(id)
		if !ok {
			return fmt.Errorf("while selecting %s: %w", id, ErrNotFound)
		}
		r.Select()
	}
	a.notify(EventSelection)
	return nil
}

func (a *Annotation) unselectAll() {
	for _, r := range a.regions {
		r.Unselect()
	}
}

// UnselectAll clears the selection and leaves linking mode.
func (a *Annotation) UnselectAll() {
	a.unselectAll()
	a.linkingFrom = ""
	a.notify(EventSelection)
}

// SelectNext moves the selection to the next visible region, wrapping around.
func (a *Annotation) SelectNext() region.Region {
	var visible []region.Region
	current := -1
	for _, r := range a.Regions() {
		if r.IsHidden() {
			continue
		}
		if r.IsSelected() && current < 0 {
			current = len(visible)
		}
		visible = append(visible, r)
	}
	if len(visible) == 0 {
		return nil
	}
	next := visible[(current+1)%len(visible)]
	a.unselectAll()
	next.Select()
	a.notify(EventSelection)
	return next
}

// HideSelectedRegions toggles the hidden flag of the selected regions and
// unselects them.
func (a *Annotation) HideSelectedRegions() {
	for _, r := range a.Selected() {
		r.SetHidden(!r.IsHidden())
		r.Unselect()
	}
	a.notify(EventSelection)
}

// LockSelectedRegions toggles the lock of the selected regions.
func (a *Annotation) LockSelectedRegions() {
	for _, r := range a.Selected() {
		r.SetLocked(!r.IsLocked())
	}
	a.notify(EventSelection)
}

// ToggleVisibility hides every region if any is visible, otherwise shows them all.
func (a *Annotation) ToggleVisibility() {
	anyVisible := false
	for _, r := range a.regions {
		if !r.IsHidden() {
			anyVisible = true
			break
		}
	}
	for _, r := range a.regions {
		r.SetHidden(anyVisible)
	}
	a.notify(EventSelection)
}

// IsEmpty reports whether the annotation has no region with geometry.
// Classification results do not count.
func (a *Annotation) IsEmpty() bool {
	for _, r := range a.regions {
		if r.Kind() != region.KindClassification {
			return false
		}
	}
	return true
}

// Validate runs the submission checks: the deny empty policy, then the
// caller's validator.
func (a *Annotation) Validate(validator Validator, denyEmpty bool) bool {
	if denyEmpty && a.IsEmpty() {
		return false
	}
	if validator == nil {
		return true
	}
	return validator(a.Regions())
}

// AppendResults adds copies of serialized results under new ids, keeping
// their order and the relations between them. The new regions end up selected.
func (a *Annotation) AppendResults(results []region.Result) []region.Region {
	if a.readOnly {
		return nil
	}
	ids := map[string]string{}
	var added []region.Region
	for _, res := range results {
		if res.IsRelation() {
			continue
		}
		newID := region.NewID()
		ids[region.CleanID(res.ID)] = newID
		res.ID = newID
		res.ReadOnly = false
		r := region.Decode(res)
		a.insert(r)
		a.render(r)
		added = append(added, r)
	}
	for _, res := range results {
		if !res.IsRelation() {
			continue
		}
		from, okFrom := ids[region.CleanID(res.FromID)]
		to, okTo := ids[region.CleanID(res.ToID)]
		if !okFrom || !okTo {
			continue
		}
		rel, err := relationFromResult(res)
		if err != nil {
			continue
		}
		rel.From, rel.To = from, to
		a.relations = append(a.relations, rel)
	}
	if len(added) == 0 {
		return nil
	}
	a.unselectAll()
	for _, r := range added {
		r.Select()
	}
	a.changed()
	return added
}

// DeserializeResults loads stored results as they are, ids included. With
// Hidden set, the render sink is refreshed once at the end instead of once
// per region. Regions whose id is already present are skipped.
func (a *Annotation) DeserializeResults(results []region.Result, opts DeserializeOptions) []region.Region {
	var added []region.Region
	for _, res := range results {
		if res.IsRelation() {
			continue
		}
		if _, exists := a.regions[res.ID]; exists && res.ID != "" {
			log.Printf("annotations: duplicate region %s skipped", res.ID)
			continue
		}
		r := region.Decode(res)
		a.insert(r)
		if !opts.Hidden {
			a.render(r)
		}
		added = append(added, r)
	}
	for _, res := range results {
		if !res.IsRelation() {
			continue
		}
		rel, err := relationFromResult(res)
		if err != nil {
			log.Printf("annotations: %v", err)
			continue
		}
		rf, okFrom := a.Region(rel.From)
		rt, okTo := a.Region(rel.To)
		if !okFrom || !okTo {
			log.Printf("annotations: relation %s -> %s points to a missing region", rel.From, rel.To)
			continue
		}
		rel.From, rel.To = rf.ID(), rt.ID()
		a.relations = append(a.relations, rel)
	}
	if opts.Hidden && a.sink != nil {
		a.sink.Refresh()
	}
	if len(added) > 0 {
		a.changed()
	}
	return added
}

// SerializeAnnotation returns the committed regions followed by relations.
func (a *Annotation) SerializeAnnotation() []region.Result {
	out := make([]region.Result, 0, len(a.order)+len(a.relations))
	for _, r := range a.Regions() {
		out = append(out, r.Serialize())
	}
	for _, rel := range a.relations {
		out = append(out, rel.serialize())
	}
	return out
}

// SerializedSelection returns the selected regions, used for duplication.
func (a *Annotation) SerializedSelection() []region.Result {
	var out []region.Result
	for _, r := range a.Selected() {
		out = append(out, r.Serialize())
	}
	return out
}

// Snapshot is the history form of the annotation.
func (a *Annotation) Snapshot() history.Snapshot {
	raw, err := json.Marshal(a.SerializeAnnotation())
	if err != nil {
		log.Printf("annotations: failed to snapshot %s: %v", a.ID, err)
		return nil
	}
	return raw
}

func (a *Annotation) restore(s history.Snapshot) {
	var results []region.Result
	if err := json.Unmarshal(s, &results); err != nil {
		log.Printf("annotations: failed to restore %s: %v", a.ID, err)
		return
	}
	a.restoring++
	defer func() { a.restoring-- }()
	for _, r := range a.regions {
		r.Delete()
	}
	a.regions = map[string]region.Region{}
	a.order = nil
	a.relations = nil
	a.linkingFrom = ""
	a.DeserializeResults(results, DeserializeOptions{Hidden: true})
	a.notify(EventChanged)
}

// Undo restores the previous history entry. Nothing happens at the start of history.
func (a *Annotation) Undo() bool {
	s, ok := a.history.Undo()
	if ok {
		a.restore(s)
	}
	return ok
}

// Redo restores the next history entry.
func (a *Annotation) Redo() bool {
	s, ok := a.history.Redo()
	if ok {
		a.restore(s)
	}
	return ok
}

// ResetHistory brings the annotation back to its loaded state as a new,
// undoable step.
func (a *Annotation) ResetHistory() bool {
	s, ok := a.history.Reset()
	if ok {
		a.restore(s)
	}
	return ok
}

// ReinitHistory makes the current state the only history entry.
func (a *Annotation) ReinitHistory() {
	a.history.Reinit(a.Snapshot())
}

// HasChanges reports whether the annotation is dirty.
func (a *Annotation) HasChanges() bool { return a.history.HasChanges() }

// StartLinkingMode makes the next SelectArea create a relation from id.
func (a *Annotation) StartLinkingMode(id string) error {
	r, ok := a.Region(id)
	if !ok {
		return fmt.Errorf("while linking from %s: %w", id, ErrNotFound)
	}
	a.linkingFrom = r.ID()
	return nil
}

func (a *Annotation) StopLinkingMode()      { a.linkingFrom = "" }
func (a *Annotation) IsLinkingMode() bool   { return a.linkingFrom != "" }
func (a *Annotation) LinkingSource() string { return a.linkingFrom }

// AddRelation links two regions. An existing link between the same pair is returned as is.
func (a *Annotation) AddRelation(from, to string) (*Relation, error) {
	if a.readOnly {
		return nil, fmt.Errorf("while relating %s to %s: %w", from, to, ErrReadOnly)
	}
	rf, ok := a.Region(from)
	if !ok {
		return nil, fmt.Errorf("relation source %s: %w", from, ErrNotFound)
	}
	rt, ok := a.Region(to)
	if !ok {
		return nil, fmt.Errorf("relation target %s: %w", to, ErrNotFound)
	}
	if rf.ID() == rt.ID() {
		return nil, ErrSelfRelation
	}
	for _, rel := range a.relations {
		if rel.From == rf.ID() && rel.To == rt.ID() {
			return rel, nil
		}
	}
	rel := &Relation{ID: region.NewID(), From: rf.ID(), To: rt.ID(), Direction: DirectionRight, Visible: true}
	a.relations = append(a.relations, rel)
	a.changed()
	return rel, nil
}

// DeleteRelation removes a relation by id.
func (a *Annotation) DeleteRelation(id string) error {
	if a.readOnly {
		return fmt.Errorf("while deleting relation %s: %w", id, ErrReadOnly)
	}
	for i, rel := range a.relations {
		if rel.ID == id {
			a.relations = append(a.relations[:i], a.relations[i+1:]...)
			a.changed()
			return nil
		}
	}
	return fmt.Errorf("relation %s: %w", id, ErrNotFound)
}

// SetRelationLabels replaces the labels of a relation.
func (a *Annotation) SetRelationLabels(id string, labels []string) error {
	if a.readOnly {
		return fmt.Errorf("while labeling relation %s: %w", id, ErrReadOnly)
	}
	for _, rel := range a.relations {
		if rel.ID == id {
			rel.Labels = append([]string(nil), labels...)
			a.changed()
			return nil
		}
	}
	return fmt.Errorf("relation %s: %w", id, ErrNotFound)
}

// ToggleRelationVisibility flips whether a relation is shown. It is not recorded.
func (a *Annotation) ToggleRelationVisibility(id string) error {
	for _, rel := range a.relations {
		if rel.ID == id {
			rel.Visible = !rel.Visible
			a.notify(EventSelection)
			return nil
		}
	}
	return fmt.Errorf("relation %s: %w", id, ErrNotFound)
}

// BeforeSend finishes anything still in progress so it gets serialized.
func (a *Annotation) BeforeSend() {
	if a.drawing != nil {
		a.CommitDrawingRegion()
	}
	a.StopLinkingMode()
}

// SetDraftID records the server id of the draft.
func (a *Annotation) SetDraftID(id int64) {
	a.DraftID = id
	a.notify(EventDraft)
}

// SetDraftSaved records when the draft was saved.
func (a *Annotation) SetDraftSaved(at time.Time) {
	a.DraftSavedAt = at
	a.notify(EventDraft)
}

// NeedsDraftSave reports whether there are edits newer than the last draft.
func (a *Annotation) NeedsDraftSave() bool {
	if !a.history.HasChanges() {
		return false
	}
	if a.DraftSavedAt.IsZero() {
		return true
	}
	return a.history.LastAdditionTime().After(a.DraftSavedAt)
}

// DropDraft forgets the draft after a successful submission. The annotation
// is clean again.
func (a *Annotation) DropDraft() {
	a.DraftID = 0
	a.DraftSavedAt = time.Time{}
	a.Versions.Draft = nil
	a.Versions.Result = a.SerializeAnnotation()
	a.ReinitHistory()
	a.notify(EventDraft)
}

// SendUserGenerate marks a client created annotation as sent once.
func (a *Annotation) SendUserGenerate() {
	a.SentUserGenerate = true
}

// SetSuggestions replaces the pending model suggestions. They are shown but
// not part of the annotation until accepted.
func (a *Annotation) SetSuggestions(results []region.Result) {
	for _, s := range a.suggestions {
		s.Delete()
	}
	a.suggestions = nil
	for _, res := range results {
		if res.IsRelation() {
			continue
		}
		r := region.Decode(res)
		r.Common().Origin = OriginPrediction
		a.attach(r)
		a.render(r)
		a.suggestions = append(a.suggestions, r)
	}
	a.notify(EventChanged)
}

func (a *Annotation) Suggestions() []region.Region { return a.suggestions }

func (a *Annotation) takeSuggestion(id string) (region.Region, bool) {
	for i, s := range a.suggestions {
		if s.ID() == id {
			a.suggestions = append(a.suggestions[:i], a.suggestions[i+1:]...)
			return s, true
		}
	}
	return nil, false
}

// AcceptSuggestion moves a suggestion into the annotation.
func (a *Annotation) AcceptSuggestion(id string) error {
	if a.readOnly {
		return fmt.Errorf("while accepting %s: %w", id, ErrReadOnly)
	}
	s, ok := a.takeSuggestion(id)
	if !ok {
		return fmt.Errorf("suggestion %s: %w", id, ErrNotFound)
	}
	a.regions[s.ID()] = s
	a.order = append(a.order, s.ID())
	a.changed()
	return nil
}

// RejectSuggestion drops a suggestion.
func (a *Annotation) RejectSuggestion(id string) error {
	s, ok := a.takeSuggestion(id)
	if !ok {
		return fmt.Errorf("suggestion %s: %w", id, ErrNotFound)
	}
	s.Delete()
	a.notify(EventChanged)
	return nil
}
