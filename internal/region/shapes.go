package region

import (
	"fmt"

	"github.com/lewtec/marcador/internal/geometry"
)

func setFloat(value any, dst *float64, check func(float64) error) (bool, error) {
	f, err := asFloat(value)
	if err != nil {
		return true, err
	}
	if check != nil {
		if err := check(f); err != nil {
			return true, err
		}
	}
	*dst = f
	return true, nil
}

// Rectangle is an axis aligned box in internal space, optionally rotated
// around its top left corner.
type Rectangle struct {
	Base
	X, Y, Width, Height float64
	Rotation            float64
}

// NewRectangle creates a rectangle region with a fresh id.
func NewRectangle(b geometry.BBox) *Rectangle {
	return &Rectangle{Base: newBase(""), X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
}

func (r *Rectangle) Kind() Kind { return KindRectangle }

func (r *Rectangle) BBox() geometry.BBox {
	return geometry.BBox{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

// SetBBox moves and resizes the rectangle. It returns false when the region
// can not be edited.
func (r *Rectangle) SetBBox(b geometry.BBox) (bool, error) {
	return r.edit(r, func() error {
		if _, err := geometry.FixRectToFit(b, 100, 100); err != nil {
			return err
		}
		r.X, r.Y, r.Width, r.Height = b.X, b.Y, b.Width, b.Height
		return nil
	})
}

func (r *Rectangle) SetProperty(name string, value any) error {
	return setProperty(r, name, value, func() (bool, error) {
		switch name {
		case "x":
			return setFloat(value, &r.X, nil)
		case "y":
			return setFloat(value, &r.Y, nil)
		case "width":
			return setFloat(value, &r.Width, nonNegative)
		case "height":
			return setFloat(value, &r.Height, nonNegative)
		case "rotation":
			return setFloat(value, &r.Rotation, nil)
		}
		return false, nil
	})
}

func (r *Rectangle) Serialize() Result {
	return r.result(map[string]any{
		"x":        r.X,
		"y":        r.Y,
		"width":    r.Width,
		"height":   r.Height,
		"rotation": r.Rotation,
	})
}

func decodeRectangle(res Result, f fields) (Region, error) {
	r := &Rectangle{}
	for key, dst := range map[string]*float64{"x": &r.X, "y": &r.Y, "width": &r.Width, "height": &r.Height, "rotation": &r.Rotation} {
		if err := f.take(key, dst); err != nil {
			return nil, err
		}
	}
	if r.Width < 0 || r.Height < 0 {
		return nil, fmt.Errorf("rectangle %s has a negative size: %w", res.ID, ErrBadValue)
	}
	r.load(res, f)
	return r, nil
}

// Ellipse is centered on X, Y.
type Ellipse struct {
	Base
	X, Y             float64
	RadiusX, RadiusY float64
	Rotation         float64
}

func NewEllipse(center geometry.Point, rx, ry float64) *Ellipse {
	return &Ellipse{Base: newBase(""), X: center.X, Y: center.Y, RadiusX: rx, RadiusY: ry}
}

func (e *Ellipse) Kind() Kind { return KindEllipse }

// SetShape changes center and radii together.
func (e *Ellipse) SetShape(center geometry.Point, rx, ry float64) (bool, error) {
	return e.edit(e, func() error {
		if rx < 0 || ry < 0 {
			return fmt.Errorf("ellipse radius %v,%v: %w", rx, ry, ErrBadValue)
		}
		e.X, e.Y, e.RadiusX, e.RadiusY = center.X, center.Y, rx, ry
		return nil
	})
}

func (e *Ellipse) SetProperty(name string, value any) error {
	return setProperty(e, name, value, func() (bool, error) {
		switch name {
		case "x":
			return setFloat(value, &e.X, nil)
		case "y":
			return setFloat(value, &e.Y, nil)
		case "radiusX":
			return setFloat(value, &e.RadiusX, nonNegative)
		case "radiusY":
			return setFloat(value, &e.RadiusY, nonNegative)
		case "rotation":
			return setFloat(value, &e.Rotation, nil)
		}
		return false, nil
	})
}

func (e *Ellipse) Serialize() Result {
	return e.result(map[string]any{
		"x":        e.X,
		"y":        e.Y,
		"radiusX":  e.RadiusX,
		"radiusY":  e.RadiusY,
		"rotation": e.Rotation,
	})
}

func decodeEllipse(res Result, f fields) (Region, error) {
	e := &Ellipse{}
	for key, dst := range map[string]*float64{"x": &e.X, "y": &e.Y, "radiusX": &e.RadiusX, "radiusY": &e.RadiusY, "rotation": &e.Rotation} {
		if err := f.take(key, dst); err != nil {
			return nil, err
		}
	}
	e.load(res, f)
	return e, nil
}

// Polygon is an ordered list of vertices, serialized as [[x, y], ...].
type Polygon struct {
	Base
	Points []geometry.Point
	Closed bool
}

func NewPolygon() *Polygon {
	return &Polygon{Base: newBase("")}
}

func (p *Polygon) Kind() Kind { return KindPolygon }

// AddPoint appends a vertex.
func (p *Polygon) AddPoint(pt geometry.Point) (bool, error) {
	return p.edit(p, func() error {
		if p.Closed {
			return fmt.Errorf("polygon %s is closed: %w", p.ID(), ErrBadValue)
		}
		p.Points = append(p.Points, pt)
		return nil
	})
}

// MovePoint replaces vertex i.
func (p *Polygon) MovePoint(i int, pt geometry.Point) (bool, error) {
	return p.edit(p, func() error {
		if i < 0 || i >= len(p.Points) {
			return fmt.Errorf("polygon point %d: %w", i, ErrBadValue)
		}
		p.Points[i] = pt
		return nil
	})
}

// Close finishes the polygon.
func (p *Polygon) Close() (bool, error) {
	return p.edit(p, func() error {
		p.Closed = true
		return nil
	})
}

func (p *Polygon) SetProperty(name string, value any) error {
	return setProperty(p, name, value, func() (bool, error) {
		switch name {
		case "closed":
			v, err := asBool(value)
			if err != nil {
				return true, err
			}
			p.Closed = v
			return true, nil
		case "points":
			pts, ok := value.([]geometry.Point)
			if !ok {
				return true, fmt.Errorf("points must be []geometry.Point, got %T: %w", value, ErrBadValue)
			}
			p.Points = append([]geometry.Point(nil), pts...)
			return true, nil
		}
		return false, nil
	})
}

func (p *Polygon) Serialize() Result {
	pts := make([][2]float64, len(p.Points))
	for i, pt := range p.Points {
		pts[i] = [2]float64{pt.X, pt.Y}
	}
	return p.result(map[string]any{
		"points": pts,
		"closed": p.Closed,
	})
}

func decodePolygon(res Result, f fields) (Region, error) {
	p := &Polygon{}
	var pts [][2]float64
	if err := f.take("points", &pts); err != nil {
		return nil, err
	}
	p.Points = make([]geometry.Point, len(pts))
	for i, pt := range pts {
		p.Points[i] = geometry.Point{X: pt[0], Y: pt[1]}
	}
	// older results have no flag; a stored polygon is a finished one
	p.Closed = true
	if err := f.take("closed", &p.Closed); err != nil {
		return nil, err
	}
	p.load(res, f)
	return p, nil
}

// KeyPoint is a single point with a display width.
type KeyPoint struct {
	Base
	X, Y  float64
	Width float64
}

func NewKeyPoint(pt geometry.Point, width float64) *KeyPoint {
	return &KeyPoint{Base: newBase(""), X: pt.X, Y: pt.Y, Width: width}
}

func (k *KeyPoint) Kind() Kind { return KindKeyPoint }

// SetPosition moves the point.
func (k *KeyPoint) SetPosition(pt geometry.Point) (bool, error) {
	return k.edit(k, func() error {
		k.X, k.Y = pt.X, pt.Y
		return nil
	})
}

func (k *KeyPoint) SetProperty(name string, value any) error {
	return setProperty(k, name, value, func() (bool, error) {
		switch name {
		case "x":
			return setFloat(value, &k.X, nil)
		case "y":
			return setFloat(value, &k.Y, nil)
		case "width":
			return setFloat(value, &k.Width, nonNegative)
		}
		return false, nil
	})
}

func (k *KeyPoint) Serialize() Result {
	return k.result(map[string]any{"x": k.X, "y": k.Y, "width": k.Width})
}

func decodeKeyPoint(res Result, f fields) (Region, error) {
	k := &KeyPoint{}
	for key, dst := range map[string]*float64{"x": &k.X, "y": &k.Y, "width": &k.Width} {
		if err := f.take(key, dst); err != nil {
			return nil, err
		}
	}
	k.load(res, f)
	return k, nil
}
