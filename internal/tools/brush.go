package tools

import (
	"log"
	"math"

	"github.com/lewtec/marcador/internal/geometry"
	"github.com/lewtec/marcador/internal/region"
)

const (
	MinSize = 1
	MaxSize = 50

	sizeStep    = 5
	defaultSize = 15
)

// Sizer is implemented by tools with an adjustable stroke size.
type Sizer interface {
	Size() int
	SetSize(n int)
}

type stroke struct {
	size  int
	brush *region.Brush
	// fresh is set when the stroke started a new region rather than
	// continuing the selected one.
	fresh bool
}

func (s *stroke) Size() int { return s.size }

// SetSize changes the stroke size, clamped to [MinSize, MaxSize].
func (s *stroke) SetSize(n int) {
	s.size = int(geometry.Clamp(float64(n), MinSize, MaxSize))
}

// width converts the size from screen pixels to unzoomed stage pixels.
func (s *stroke) width(c *Controller) float64 {
	return float64(s.size) / c.Viewport.ZoomScale
}

func (s *stroke) add(p geometry.Point) {
	if s.brush == nil {
		return
	}
	// touches are stored on whole internal units like the canvas layer does
	if _, err := s.brush.AddPoint(geometry.Point{X: math.Floor(p.X), Y: math.Floor(p.Y)}); err != nil {
		log.Printf("tools: brush: %s", err)
	}
}

func (s *stroke) end(c *Controller, ev Event) {
	if s.brush == nil {
		return
	}
	s.add(ev.Point)
	s.brush = nil
	if s.fresh {
		c.finishDrawing()
		return
	}
	c.ann.SetIsDrawing(false)
	c.unfreeze()
}

func selectedBrush(c *Controller) *region.Brush {
	if c.ann == nil {
		return nil
	}
	b, ok := c.ann.SelectedRegion().(*region.Brush)
	if !ok || !b.Editable() {
		return nil
	}
	return b
}

// Brush paints strokes. A stroke goes into the selected brush region, or
// starts a new one when none is selected.
type Brush struct {
	stroke
}

func NewBrush() *Brush {
	return &Brush{stroke{size: defaultSize}}
}

func (t *Brush) Name() string { return "brush" }

func (t *Brush) PointerDown(c *Controller, ev Event) {
	if b := selectedBrush(c); b != nil {
		c.beginEdit()
		if _, err := b.BeginTouch(region.TouchAdd, t.width(c)); err != nil {
			log.Printf("tools: brush: %s", err)
			c.ann.SetIsDrawing(false)
			c.unfreeze()
			return
		}
		t.brush, t.fresh = b, false
		t.add(ev.Point)
		return
	}
	b := region.NewBrush()
	if c.beginDrawing(b) == nil {
		return
	}
	if _, err := b.BeginTouch(region.TouchAdd, t.width(c)); err != nil {
		log.Printf("tools: brush: %s", err)
	}
	t.brush, t.fresh = b, true
	t.add(ev.Point)
}

func (t *Brush) PointerMove(c *Controller, ev Event) { t.add(ev.Point) }

func (t *Brush) PointerUp(c *Controller, ev Event) { t.end(c, ev) }

func (t *Brush) Cancel(c *Controller) {
	if t.brush != nil && t.fresh {
		t.brush = nil
		c.cancelDrawing()
	}
}

// Eraser removes paint from the selected brush region. Without one it does
// nothing.
type Eraser struct {
	stroke
}

func NewEraser() *Eraser {
	return &Eraser{stroke{size: defaultSize}}
}

func (t *Eraser) Name() string { return "eraser" }

func (t *Eraser) PointerDown(c *Controller, ev Event) {
	b := selectedBrush(c)
	if b == nil {
		return
	}
	c.beginEdit()
	if _, err := b.BeginTouch(region.TouchEraser, t.width(c)); err != nil {
		log.Printf("tools: eraser: %s", err)
		c.ann.SetIsDrawing(false)
		c.unfreeze()
		return
	}
	t.brush, t.fresh = b, false
	t.add(ev.Point)
}

func (t *Eraser) PointerMove(c *Controller, ev Event) { t.add(ev.Point) }

func (t *Eraser) PointerUp(c *Controller, ev Event) { t.end(c, ev) }
