package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformed is returned for NaN, infinite or negative inputs.
var ErrMalformed = errors.New("malformed geometry")

// Point is a 2D coordinate. Its space (internal, canvas or natural) depends on context.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// BBox is an axis aligned box.
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (p Point) check() error {
	if !finite(p.X, p.Y) {
		return fmt.Errorf("point (%v, %v): %w", p.X, p.Y, ErrMalformed)
	}
	return nil
}

func (b BBox) check() error {
	if !finite(b.X, b.Y, b.Width, b.Height) || b.Width < 0 || b.Height < 0 {
		return fmt.Errorf("bbox %+v: %w", b, ErrMalformed)
	}
	return nil
}

// Right returns the x coordinate of the right edge.
func (b BBox) Right() float64 { return b.X + b.Width }

// Bottom returns the y coordinate of the bottom edge.
func (b BBox) Bottom() float64 { return b.Y + b.Height }

// BBoxFromPoints returns the smallest box containing both points.
func BBoxFromPoints(a, b Point) BBox {
	return BBox{
		X:      math.Min(a.X, b.X),
		Y:      math.Min(a.Y, b.Y),
		Width:  math.Abs(b.X - a.X),
		Height: math.Abs(b.Y - a.Y),
	}
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FixRectToFit shrinks a box so that it stays inside [0, maxWidth] x [0, maxHeight].
// Edges that stick out are cut off; edges already inside are kept.
func FixRectToFit(b BBox, maxWidth, maxHeight float64) (BBox, error) {
	if err := b.check(); err != nil {
		return BBox{}, err
	}
	if !finite(maxWidth, maxHeight) || maxWidth < 0 || maxHeight < 0 {
		return BBox{}, fmt.Errorf("bounds %vx%v: %w", maxWidth, maxHeight, ErrMalformed)
	}
	x0 := Clamp(b.X, 0, maxWidth)
	x1 := Clamp(b.Right(), 0, maxWidth)
	y0 := Clamp(b.Y, 0, maxHeight)
	y1 := Clamp(b.Bottom(), 0, maxHeight)
	return BBox{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}, nil
}

// ClampRect moves a box back inside the bounds keeping its size. A box larger
// than the bounds is shrunk to them first.
func ClampRect(b BBox, maxWidth, maxHeight float64) (BBox, error) {
	if err := b.check(); err != nil {
		return BBox{}, err
	}
	if !finite(maxWidth, maxHeight) || maxWidth < 0 || maxHeight < 0 {
		return BBox{}, fmt.Errorf("bounds %vx%v: %w", maxWidth, maxHeight, ErrMalformed)
	}
	w := math.Min(b.Width, maxWidth)
	h := math.Min(b.Height, maxHeight)
	return BBox{
		X:      Clamp(b.X, 0, maxWidth-w),
		Y:      Clamp(b.Y, 0, maxHeight-h),
		Width:  w,
		Height: h,
	}, nil
}

// FitAspect scales a box down, keeping its aspect ratio, until it fits the
// bounds, then moves it inside them.
func FitAspect(b BBox, maxWidth, maxHeight float64) (BBox, error) {
	if err := b.check(); err != nil {
		return BBox{}, err
	}
	if !finite(maxWidth, maxHeight) || maxWidth < 0 || maxHeight < 0 {
		return BBox{}, fmt.Errorf("bounds %vx%v: %w", maxWidth, maxHeight, ErrMalformed)
	}
	scale := 1.0
	if b.Width > maxWidth && b.Width > 0 {
		scale = maxWidth / b.Width
	}
	if b.Height*scale > maxHeight && b.Height > 0 {
		scale = maxHeight / b.Height
	}
	b.Width *= scale
	b.Height *= scale
	return ClampRect(b, maxWidth, maxHeight)
}
