package tools

import (
	"log"
	"math"

	"github.com/lewtec/marcador/internal/geometry"
	"github.com/lewtec/marcador/internal/region"
)

// Rectangle draws boxes by dragging from one corner to the opposite one.
type Rectangle struct {
	start geometry.Point
	rect  *region.Rectangle
}

func (t *Rectangle) Name() string { return "rectangle" }

func (t *Rectangle) PointerDown(c *Controller, ev Event) {
	r := region.NewRectangle(geometry.BBox{X: ev.Point.X, Y: ev.Point.Y})
	if c.beginDrawing(r) == nil {
		return
	}
	t.start = ev.Point
	t.rect = r
}

func (t *Rectangle) PointerMove(c *Controller, ev Event) {
	if t.rect == nil {
		return
	}
	if _, err := t.rect.SetBBox(geometry.BBoxFromPoints(t.start, ev.Point)); err != nil {
		log.Printf("tools: rectangle: %s", err)
	}
}

func (t *Rectangle) PointerUp(c *Controller, ev Event) {
	if t.rect == nil {
		return
	}
	t.PointerMove(c, ev)
	t.rect = nil
	c.finishDrawing()
}

func (t *Rectangle) Cancel(c *Controller) {
	if t.rect != nil {
		t.rect = nil
		c.cancelDrawing()
	}
}

// Ellipse draws from the center outwards; the drag distance gives the radii.
type Ellipse struct {
	center  geometry.Point
	ellipse *region.Ellipse
}

func (t *Ellipse) Name() string { return "ellipse" }

func (t *Ellipse) PointerDown(c *Controller, ev Event) {
	e := region.NewEllipse(ev.Point, 0, 0)
	if c.beginDrawing(e) == nil {
		return
	}
	t.center = ev.Point
	t.ellipse = e
}

func (t *Ellipse) PointerMove(c *Controller, ev Event) {
	if t.ellipse == nil {
		return
	}
	rx := math.Abs(ev.Point.X - t.center.X)
	ry := math.Abs(ev.Point.Y - t.center.Y)
	if ev.Shift {
		rx = math.Max(rx, ry)
		ry = rx
	}
	if _, err := t.ellipse.SetShape(t.center, rx, ry); err != nil {
		log.Printf("tools: ellipse: %s", err)
	}
}

func (t *Ellipse) PointerUp(c *Controller, ev Event) {
	if t.ellipse == nil {
		return
	}
	t.PointerMove(c, ev)
	t.ellipse = nil
	c.finishDrawing()
}

func (t *Ellipse) Cancel(c *Controller) {
	if t.ellipse != nil {
		t.ellipse = nil
		c.cancelDrawing()
	}
}

// CloseDistance is how close, in internal units, a click must land to the
// first vertex to close a polygon.
const CloseDistance = 1.5

// Polygon adds a vertex per click. Clicking the first vertex or double
// clicking closes the shape.
type Polygon struct {
	poly *region.Polygon
}

func (t *Polygon) Name() string { return "polygon" }

func (t *Polygon) PointerDown(c *Controller, ev Event) {}
func (t *Polygon) PointerMove(c *Controller, ev Event) {}
func (t *Polygon) PointerUp(c *Controller, ev Event)   {}

func (t *Polygon) Click(c *Controller, ev Event) {
	if t.poly == nil {
		p := region.NewPolygon()
		if c.beginDrawing(p) == nil {
			return
		}
		t.poly = p
	} else if len(t.poly.Points) > 2 && distance(t.poly.Points[0], ev.Point) <= CloseDistance {
		t.close(c)
		return
	}
	if _, err := t.poly.AddPoint(ev.Point); err != nil {
		log.Printf("tools: polygon: %s", err)
	}
}

func (t *Polygon) DoubleClick(c *Controller, ev Event) {
	if t.poly != nil {
		t.close(c)
	}
}

func (t *Polygon) close(c *Controller) {
	if _, err := t.poly.Close(); err != nil {
		log.Printf("tools: polygon: %s", err)
	}
	t.poly = nil
	c.finishDrawing()
}

func (t *Polygon) Cancel(c *Controller) {
	if t.poly != nil {
		t.poly = nil
		c.cancelDrawing()
	}
}

func distance(a, b geometry.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// KeyPoint places a point per click.
type KeyPoint struct {
	// StrokeWidth is the marker width in canvas pixels.
	StrokeWidth float64
}

func (t *KeyPoint) Name() string { return "keypoint" }

func (t *KeyPoint) PointerDown(c *Controller, ev Event) {}
func (t *KeyPoint) PointerMove(c *Controller, ev Event) {}
func (t *KeyPoint) PointerUp(c *Controller, ev Event)   {}

func (t *KeyPoint) Click(c *Controller, ev Event) {
	width := t.StrokeWidth
	if width <= 0 {
		width = 5
	}
	k := region.NewKeyPoint(ev.Point, c.Viewport.CanvasToInternalX(width))
	if c.beginDrawing(k) == nil {
		return
	}
	c.finishDrawing()
}
