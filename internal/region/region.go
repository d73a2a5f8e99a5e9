package region

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrUnknownProperty is returned by SetProperty for names the region does not have.
	ErrUnknownProperty = errors.New("unknown region property")
	// ErrBadValue is returned by SetProperty when the value has the wrong type or is out of range.
	ErrBadValue = errors.New("bad property value")
)

// Kind is the variant discriminant of a region.
type Kind string

const (
	KindRectangle      Kind = "rectangle"
	KindEllipse        Kind = "ellipse"
	KindPolygon        Kind = "polygon"
	KindKeyPoint       Kind = "keypoint"
	KindBrush          Kind = "brush"
	KindBitmask        Kind = "bitmask"
	KindAudio          Kind = "audio"
	KindTimeline       Kind = "timeline"
	KindVideoRectangle Kind = "videorectangle"
	KindRichText       Kind = "richtext"
	KindClassification Kind = "classification"
)

type Selectable interface {
	Select()
	Unselect()
	IsSelected() bool
}

type Highlightable interface {
	SetHighlight(bool)
	IsHighlighted() bool
}

type Lockable interface {
	SetLocked(bool)
	IsLocked() bool
}

type Hideable interface {
	SetHidden(bool)
	IsHidden() bool
}

type Serializable interface {
	Serialize() Result
}

type Deletable interface {
	Delete()
}

// Region is implemented by every variant.
type Region interface {
	Selectable
	Highlightable
	Lockable
	Hideable
	Serializable
	Deletable

	ID() string
	CleanID() string
	Kind() Kind
	Common() *Base
	// SetProperty changes a named field. It is a no-op when the region can not be edited.
	SetProperty(name string, value any) error
}

// Owner is what a region knows about the annotation it belongs to.
type Owner interface {
	ReadOnly() bool
	RegionChanged(id string)
}

// Renderer is the handle a canvas layer keeps for a drawn region. It only ever
// receives geometry; drawing pixels is its own business.
type Renderer interface {
	Update(Result)
	Release()
}

// NewID returns a short random region id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// CleanID strips the "#suffix" some ids carry after being duplicated or
// loaded from history.
func CleanID(id string) string {
	if i := strings.IndexByte(id, '#'); i >= 0 {
		return id[:i]
	}
	return id
}

// Base holds the state shared by every variant.
type Base struct {
	id           string
	annotationID string
	owner        Owner
	renderer     Renderer

	// Type is the result type, usually the control type (rectanglelabels, choices, ...).
	Type     string
	FromName string
	ToName   string
	Origin   string
	Score    *float64
	ParentID string

	OriginalWidth  float64
	OriginalHeight float64
	ImageRotation  float64

	// Labels are stored in the value under LabelsKey.
	Labels    []string
	LabelsKey string
	// Extra keeps value keys this variant does not know so they survive a round trip.
	Extra map[string]json.RawMessage

	selected    bool
	highlighted bool
	hidden      bool
	locked      bool
	readOnly    bool
	deleted     bool
}

func newBase(id string) Base {
	if id == "" {
		id = NewID()
	}
	return Base{id: id}
}

func (b *Base) ID() string      { return b.id }
func (b *Base) CleanID() string { return CleanID(b.id) }
func (b *Base) Common() *Base   { return b }

// SetID replaces the id, used when duplicating.
func (b *Base) SetID(id string) { b.id = id }

// Attach binds the region to its annotation. The owner is only used for
// lookups and change notifications.
func (b *Base) Attach(annotationID string, owner Owner) {
	b.annotationID = annotationID
	b.owner = owner
	b.deleted = false
}

// AnnotationID returns the id of the owning annotation, empty when detached.
func (b *Base) AnnotationID() string { return b.annotationID }

func (b *Base) Select()                { b.selected = true }
func (b *Base) Unselect()              { b.selected = false }
func (b *Base) IsSelected() bool       { return b.selected }
func (b *Base) SetHighlight(v bool)    { b.highlighted = v }
func (b *Base) IsHighlighted() bool    { return b.highlighted }
func (b *Base) SetLocked(v bool)       { b.locked = v }
func (b *Base) IsLocked() bool         { return b.locked }
func (b *Base) SetHidden(v bool)       { b.hidden = v }
func (b *Base) IsHidden() bool         { return b.hidden }
func (b *Base) SetReadOnly(v bool)     { b.readOnly = v }
func (b *Base) IsDeleted() bool        { return b.deleted }
func (b *Base) Renderer() Renderer     { return b.renderer }
func (b *Base) SetRenderer(r Renderer) { b.renderer = r }

// IsReadOnly is true when either the region or its annotation is read only.
func (b *Base) IsReadOnly() bool {
	return b.readOnly || (b.owner != nil && b.owner.ReadOnly())
}

// Editable reports whether geometry and labels may change.
func (b *Base) Editable() bool {
	return !b.deleted && !b.locked && !b.IsReadOnly()
}

// Delete releases the render handle. Removing the region from its annotation
// is the annotation's job.
func (b *Base) Delete() {
	if b.deleted {
		return
	}
	if b.renderer != nil {
		b.renderer.Release()
		b.renderer = nil
	}
	b.deleted = true
	b.selected = false
	b.highlighted = false
}

// HasLabel reports whether the region carries the given label.
func (b *Base) HasLabel(label string) bool {
	for _, l := range b.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// edit runs fn if the region may change, then notifies the renderer and the
// owner. It reports whether fn ran.
func (b *Base) edit(self Region, fn func() error) (bool, error) {
	if !b.Editable() {
		return false, nil
	}
	if err := fn(); err != nil {
		return false, err
	}
	if b.renderer != nil {
		b.renderer.Update(self.Serialize())
	}
	if b.owner != nil {
		b.owner.RegionChanged(b.id)
	}
	return true, nil
}

// setCommon handles the properties every variant has.
func (b *Base) setCommon(name string, value any) (bool, error) {
	switch name {
	case "labels":
		v, err := asStrings(value)
		if err != nil {
			return true, err
		}
		b.Labels = v
		if b.LabelsKey == "" {
			b.LabelsKey = b.Type
		}
	case "score":
		v, err := asFloat(value)
		if err != nil {
			return true, err
		}
		b.Score = &v
	case "origin":
		v, err := asString(value)
		if err != nil {
			return true, err
		}
		b.Origin = v
	default:
		return false, nil
	}
	return true, nil
}

// setProperty is the shared SetProperty body; specific handles the variant's own names.
func setProperty(self Region, name string, value any, specific func() (bool, error)) error {
	b := self.Common()
	_, err := b.edit(self, func() error {
		handled, err := b.setCommon(name, value)
		if handled {
			return err
		}
		if specific != nil {
			handled, err = specific()
			if handled {
				return err
			}
		}
		return fmt.Errorf("%s on %s: %w", name, self.Kind(), ErrUnknownProperty)
	})
	return err
}
