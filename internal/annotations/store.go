package annotations

import (
	"fmt"

	"github.com/lewtec/marcador/internal/region"
)

// Store holds the annotations, predictions and history items of one task.
// At most one annotation or prediction is selected at a time.
type Store struct {
	annotations []*Annotation
	predictions []*Annotation
	history     []*Annotation
	selected    *Annotation
	viewingAll  bool
}

func NewStore() *Store {
	return &Store{}
}

// AddAnnotation loads an annotation. Predictions go to their own list and are
// read only.
func (s *Store) AddAnnotation(opts Options) *Annotation {
	if opts.Type == TypePrediction {
		return s.AddPrediction(opts)
	}
	opts.Type = TypeAnnotation
	a := New(opts)
	s.annotations = append(s.annotations, a)
	return a
}

// AddPrediction loads a prediction. Its results are tagged with the
// prediction origin.
func (s *Store) AddPrediction(opts Options) *Annotation {
	opts.Type = TypePrediction
	opts.ReadOnly = true
	opts.Result = withOrigin(opts.Result, OriginPrediction)
	a := New(opts)
	s.predictions = append(s.predictions, a)
	return a
}

func withOrigin(results []region.Result, origin string) []region.Result {
	out := make([]region.Result, len(results))
	for i, r := range results {
		if !r.IsRelation() && r.Origin == "" {
			r.Origin = origin
		}
		out[i] = r
	}
	return out
}

// AddHistory adds a read only past version of an annotation.
func (s *Store) AddHistory(opts Options) *Annotation {
	opts.Type = TypeHistory
	opts.ReadOnly = true
	a := New(opts)
	s.history = append(s.history, a)
	return a
}

// ClearHistory drops all history items.
func (s *Store) ClearHistory() {
	s.history = nil
}

func (s *Store) History() []*Annotation { return s.history }

// CreateAnnotation makes a new, empty, client generated annotation and selects it.
func (s *Store) CreateAnnotation(opts Options) *Annotation {
	opts.UserGenerate = true
	a := s.AddAnnotation(opts)
	s.SelectAnnotation(a.ID)
	return a
}

// AddAnnotationFromPrediction copies a prediction into a new editable
// annotation and selects it.
func (s *Store) AddAnnotationFromPrediction(p *Annotation) *Annotation {
	results := p.SerializeAnnotation()
	ids := map[string]string{}
	for i := range results {
		if results[i].IsRelation() {
			continue
		}
		id := region.NewID()
		ids[region.CleanID(results[i].ID)] = id
		results[i].ID = id
		results[i].ReadOnly = false
	}
	for i := range results {
		if results[i].IsRelation() {
			results[i].FromID = ids[region.CleanID(results[i].FromID)]
			results[i].ToID = ids[region.CleanID(results[i].ToID)]
		}
	}
	a := s.AddAnnotation(Options{
		UserGenerate:     true,
		ParentPrediction: p.PK,
		Result:           results,
	})
	s.SelectAnnotation(a.ID)
	return a
}

func (s *Store) find(id string) (*Annotation, bool) {
	for _, list := range [][]*Annotation{s.annotations, s.predictions, s.history} {
		for _, a := range list {
			if a.ID == id {
				return a, true
			}
		}
	}
	return nil, false
}

// FindByPK looks an annotation up by its server id.
func (s *Store) FindByPK(pk string) (*Annotation, bool) {
	if pk == "" {
		return nil, false
	}
	for _, a := range s.annotations {
		if a.PK == pk {
			return a, true
		}
	}
	return nil, false
}

// FindPredictionByPK looks a prediction up by its server id.
func (s *Store) FindPredictionByPK(pk string) (*Annotation, bool) {
	for _, p := range s.predictions {
		if p.PK == pk {
			return p, true
		}
	}
	return nil, false
}

func (s *Store) selectEntity(a *Annotation) {
	if s.selected != nil && s.selected != a {
		s.selected.selected = false
		s.selected.StopLinkingMode()
	}
	s.selected = a
	a.selected = true
	s.viewingAll = false
}

// SelectAnnotation makes the annotation with the given local id current. The
// previous one keeps its state.
func (s *Store) SelectAnnotation(id string) (*Annotation, error) {
	for _, a := range s.annotations {
		if a.ID == id {
			s.selectEntity(a)
			return a, nil
		}
	}
	return nil, fmt.Errorf("annotation %s: %w", id, ErrNotFound)
}

// SelectPrediction makes a prediction current.
func (s *Store) SelectPrediction(id string) (*Annotation, error) {
	for _, p := range s.predictions {
		if p.ID == id {
			s.selectEntity(p)
			return p, nil
		}
	}
	return nil, fmt.Errorf("prediction %s: %w", id, ErrNotFound)
}

// SelectHistory shows a history item.
func (s *Store) SelectHistory(id string) (*Annotation, error) {
	for _, h := range s.history {
		if h.ID == id {
			s.selectEntity(h)
			return h, nil
		}
	}
	return nil, fmt.Errorf("history item %s: %w", id, ErrNotFound)
}

// Selected returns the current annotation or prediction, nil if none.
func (s *Store) Selected() *Annotation { return s.selected }

func (s *Store) Annotations() []*Annotation { return s.annotations }
func (s *Store) Predictions() []*Annotation { return s.predictions }

// DeleteAnnotation removes an annotation. If it was selected the first
// remaining one takes its place.
func (s *Store) DeleteAnnotation(id string) error {
	a, ok := s.find(id)
	if !ok || a.Type != TypeAnnotation {
		return fmt.Errorf("annotation %s: %w", id, ErrNotFound)
	}
	for i, x := range s.annotations {
		if x == a {
			s.annotations = append(s.annotations[:i], s.annotations[i+1:]...)
			break
		}
	}
	a.DiscardDrawingRegion()
	for _, r := range a.regions {
		r.Delete()
	}
	if s.selected == a {
		s.selected = nil
		if len(s.annotations) > 0 {
			s.selectEntity(s.annotations[0])
		}
	}
	return nil
}

// ToggleViewingAll switches the side by side view of every annotation.
func (s *Store) ToggleViewingAll() {
	s.viewingAll = !s.viewingAll
}

func (s *Store) ViewingAll() bool { return s.viewingAll }

// Reset drops everything, used when a different task is loaded.
func (s *Store) Reset() {
	for _, list := range [][]*Annotation{s.annotations, s.predictions, s.history} {
		for _, a := range list {
			for _, r := range a.regions {
				r.Delete()
			}
		}
	}
	*s = Store{}
}
