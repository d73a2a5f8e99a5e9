package tools

import (
	"log"

	"github.com/lewtec/marcador/internal/geometry"
)

// Zoom zooms in around a click, or out when alt is held.
type Zoom struct{}

func (t *Zoom) Name() string { return "zoom" }

func (t *Zoom) PointerDown(c *Controller, ev Event) {}
func (t *Zoom) PointerMove(c *Controller, ev Event) {}
func (t *Zoom) PointerUp(c *Controller, ev Event)   {}

func (t *Zoom) Click(c *Controller, ev Event) {
	step := c.Viewport.ZoomStep
	if step <= 1 {
		step = geometry.DefaultZoomStep
	}
	scale := c.Viewport.ZoomScale * step
	if ev.Alt {
		scale = c.Viewport.ZoomScale / step
	}
	if err := c.Viewport.ZoomTo(scale, ev.Canvas); err != nil {
		log.Printf("tools: zoom: %s", err)
	}
}

// Pan drags the image around. The offset stays inside the scroll bounds.
type Pan struct {
	last     geometry.Point
	dragging bool
}

func (t *Pan) Name() string { return "pan" }

func (t *Pan) PointerDown(c *Controller, ev Event) {
	t.last = ev.Canvas
	t.dragging = true
}

func (t *Pan) PointerMove(c *Controller, ev Event) {
	if !t.dragging {
		return
	}
	c.Viewport.Pan(ev.Canvas.X-t.last.X, ev.Canvas.Y-t.last.Y)
	t.last = ev.Canvas
}

func (t *Pan) PointerUp(c *Controller, ev Event) {
	t.PointerMove(c, ev)
	t.dragging = false
}

// Rotate turns the view a quarter clockwise per click, counterclockwise with alt.
type Rotate struct{}

func (t *Rotate) Name() string { return "rotate" }

func (t *Rotate) PointerDown(c *Controller, ev Event) {}
func (t *Rotate) PointerMove(c *Controller, ev Event) {}
func (t *Rotate) PointerUp(c *Controller, ev Event)   {}

func (t *Rotate) Click(c *Controller, ev Event) {
	deg := 90
	if ev.Alt {
		deg = -90
	}
	c.logErr(c.Rotate(deg))
}
