package geometry

import (
	"fmt"
	"math"
)

const (
	DefaultMinZoom  = 0.1
	DefaultMaxZoom  = 20
	DefaultZoomStep = 1.1
)

// Viewport is the zoom/pan/rotation state of one image view. Stage and natural
// sizes are the displayed ones, so they swap on every quarter turn.
type Viewport struct {
	ZoomScale        float64
	ZoomingPositionX float64
	ZoomingPositionY float64
	Rotation         int

	StageWidth    float64
	StageHeight   float64
	NaturalWidth  float64
	NaturalHeight float64

	MinZoom  float64
	MaxZoom  float64
	ZoomStep float64
}

// NewViewport returns an unzoomed, unrotated viewport.
func NewViewport(stageWidth, stageHeight, naturalWidth, naturalHeight float64) (*Viewport, error) {
	vp := &Viewport{
		ZoomScale:     1,
		StageWidth:    stageWidth,
		StageHeight:   stageHeight,
		NaturalWidth:  naturalWidth,
		NaturalHeight: naturalHeight,
	}
	if err := vp.Validate(); err != nil {
		return nil, err
	}
	return vp, nil
}

// Validate checks that the viewport can be used for coordinate conversions.
func (vp *Viewport) Validate() error {
	if vp == nil {
		return fmt.Errorf("nil viewport: %w", ErrMalformed)
	}
	if !finite(vp.ZoomScale, vp.ZoomingPositionX, vp.ZoomingPositionY, vp.StageWidth, vp.StageHeight, vp.NaturalWidth, vp.NaturalHeight) {
		return fmt.Errorf("viewport %+v: %w", *vp, ErrMalformed)
	}
	if vp.ZoomScale <= 0 || vp.StageWidth <= 0 || vp.StageHeight <= 0 || vp.NaturalWidth < 0 || vp.NaturalHeight < 0 {
		return fmt.Errorf("viewport sizes %+v: %w", *vp, ErrMalformed)
	}
	if vp.Rotation%90 != 0 || vp.Rotation < 0 || vp.Rotation >= 360 {
		return fmt.Errorf("rotation %d: %w", vp.Rotation, ErrMalformed)
	}
	return nil
}

func (vp *Viewport) minZoom() float64 {
	if vp.MinZoom > 0 {
		return vp.MinZoom
	}
	return DefaultMinZoom
}

func (vp *Viewport) maxZoom() float64 {
	if vp.MaxZoom > 0 {
		return vp.MaxZoom
	}
	return DefaultMaxZoom
}

func (vp *Viewport) zoomStep() float64 {
	if vp.ZoomStep > 1 {
		return vp.ZoomStep
	}
	return DefaultZoomStep
}

func (vp *Viewport) quarterTurned() bool {
	return vp.Rotation == 90 || vp.Rotation == 270
}

// baseStage is the stage size before rotation; internal coordinates are relative to it.
func (vp *Viewport) baseStage() (float64, float64) {
	if vp.quarterTurned() {
		return vp.StageHeight, vp.StageWidth
	}
	return vp.StageWidth, vp.StageHeight
}

func (vp *Viewport) baseNatural() (float64, float64) {
	if vp.quarterTurned() {
		return vp.NaturalHeight, vp.NaturalWidth
	}
	return vp.NaturalWidth, vp.NaturalHeight
}

// InternalToCanvas projects a point in internal space (0-100) to the canvas.
func InternalToCanvas(p Point, vp *Viewport) (Point, error) {
	if err := p.check(); err != nil {
		return Point{}, err
	}
	if err := vp.Validate(); err != nil {
		return Point{}, err
	}
	bw, bh := vp.baseStage()
	sx := p.X / 100 * bw
	sy := p.Y / 100 * bh

	var rx, ry float64
	switch vp.Rotation {
	case 90:
		rx, ry = bh-sy, sx
	case 180:
		rx, ry = bw-sx, bh-sy
	case 270:
		rx, ry = sy, bw-sx
	default:
		rx, ry = sx, sy
	}
	return Point{
		X: rx*vp.ZoomScale + vp.ZoomingPositionX,
		Y: ry*vp.ZoomScale + vp.ZoomingPositionY,
	}, nil
}

// CanvasToInternal is the inverse of InternalToCanvas.
func CanvasToInternal(p Point, vp *Viewport) (Point, error) {
	if err := p.check(); err != nil {
		return Point{}, err
	}
	if err := vp.Validate(); err != nil {
		return Point{}, err
	}
	bw, bh := vp.baseStage()
	rx := (p.X - vp.ZoomingPositionX) / vp.ZoomScale
	ry := (p.Y - vp.ZoomingPositionY) / vp.ZoomScale

	var sx, sy float64
	switch vp.Rotation {
	case 90:
		sx, sy = ry, bh-rx
	case 180:
		sx, sy = bw-rx, bh-ry
	case 270:
		sx, sy = bw-ry, rx
	default:
		sx, sy = rx, ry
	}
	return Point{X: sx / bw * 100, Y: sy / bh * 100}, nil
}

// InternalToNatural converts internal space to pixels of the original image.
func InternalToNatural(p Point, vp *Viewport) (Point, error) {
	if err := p.check(); err != nil {
		return Point{}, err
	}
	if err := vp.Validate(); err != nil {
		return Point{}, err
	}
	nw, nh := vp.baseNatural()
	return Point{X: p.X / 100 * nw, Y: p.Y / 100 * nh}, nil
}

// NaturalToInternal converts image pixels to internal space.
func NaturalToInternal(p Point, vp *Viewport) (Point, error) {
	if err := p.check(); err != nil {
		return Point{}, err
	}
	if err := vp.Validate(); err != nil {
		return Point{}, err
	}
	nw, nh := vp.baseNatural()
	if nw == 0 || nh == 0 {
		return Point{}, fmt.Errorf("natural size unknown: %w", ErrMalformed)
	}
	return Point{X: p.X / nw * 100, Y: p.Y / nh * 100}, nil
}

// CanvasToInternalX converts a horizontal canvas length (e.g. a stroke width) to internal units.
func (vp *Viewport) CanvasToInternalX(n float64) float64 { return n / vp.StageWidth * 100 }

// CanvasToInternalY converts a vertical canvas length to internal units.
func (vp *Viewport) CanvasToInternalY(n float64) float64 { return n / vp.StageHeight * 100 }

// InternalToCanvasX converts a horizontal internal length to canvas units.
func (vp *Viewport) InternalToCanvasX(n float64) float64 { return n / 100 * vp.StageWidth }

// InternalToCanvasY converts a vertical internal length to canvas units.
func (vp *Viewport) InternalToCanvasY(n float64) float64 { return n / 100 * vp.StageHeight }

// ScrollBounds returns how far the image can be panned on each axis
// (image size x zoom - viewport size), never negative.
func (vp *Viewport) ScrollBounds() (float64, float64) {
	maxX := math.Round(vp.StageWidth*vp.ZoomScale) - vp.StageWidth
	maxY := math.Round(vp.StageHeight*vp.ZoomScale) - vp.StageHeight
	return math.Max(maxX, 0), math.Max(maxY, 0)
}

// ClampPan keeps the pan offset inside the scroll bounds.
func (vp *Viewport) ClampPan() {
	maxX, maxY := vp.ScrollBounds()
	vp.ZoomingPositionX = Clamp(vp.ZoomingPositionX, -maxX, 0)
	vp.ZoomingPositionY = Clamp(vp.ZoomingPositionY, -maxY, 0)
}

// SetZoomPosition sets the pan offset, clamped.
func (vp *Viewport) SetZoomPosition(x, y float64) {
	if !finite(x, y) {
		return
	}
	vp.ZoomingPositionX = x
	vp.ZoomingPositionY = y
	vp.ClampPan()
}

// Pan moves the image by the given canvas delta.
func (vp *Viewport) Pan(dx, dy float64) {
	vp.SetZoomPosition(vp.ZoomingPositionX+dx, vp.ZoomingPositionY+dy)
}

// ZoomTo sets the zoom scale keeping the canvas point under the pointer fixed.
func (vp *Viewport) ZoomTo(scale float64, pointer Point) error {
	if !finite(scale, pointer.X, pointer.Y) || scale <= 0 {
		return fmt.Errorf("zoom %v at %+v: %w", scale, pointer, ErrMalformed)
	}
	scale = Clamp(scale, vp.minZoom(), vp.maxZoom())
	old := vp.ZoomScale
	vp.ZoomScale = scale
	vp.ZoomingPositionX = pointer.X - (pointer.X-vp.ZoomingPositionX)*scale/old
	vp.ZoomingPositionY = pointer.Y - (pointer.Y-vp.ZoomingPositionY)*scale/old
	vp.ClampPan()
	return nil
}

// Zoom applies a smooth wheel zoom around the pointer. Negative deltas zoom in.
func (vp *Viewport) Zoom(deltaY float64, pointer Point) error {
	if !finite(deltaY) {
		return fmt.Errorf("zoom delta %v: %w", deltaY, ErrMalformed)
	}
	factor := math.Pow(vp.zoomStep(), -deltaY/100)
	return vp.ZoomTo(vp.ZoomScale*factor, pointer)
}

// ResetZoom brings the viewport back to scale 1 with no pan.
func (vp *Viewport) ResetZoom() {
	vp.ZoomScale = 1
	vp.ZoomingPositionX = 0
	vp.ZoomingPositionY = 0
}

// Rotate turns the view by degrees, which must be a multiple of 90.
// Width and height bookkeeping swaps on odd quarter turns.
func (vp *Viewport) Rotate(degrees int) error {
	if degrees%90 != 0 {
		return fmt.Errorf("rotation by %d: %w", degrees, ErrMalformed)
	}
	vp.Rotation = ((vp.Rotation+degrees)%360 + 360) % 360
	if (degrees/90)%2 != 0 {
		vp.StageWidth, vp.StageHeight = vp.StageHeight, vp.StageWidth
		vp.NaturalWidth, vp.NaturalHeight = vp.NaturalHeight, vp.NaturalWidth
	}
	vp.ClampPan()
	return nil
}

// ClampToStage pins a canvas point to the visible stage so drags leaving
// the viewport still produce coordinates.
func (vp *Viewport) ClampToStage(p Point) Point {
	return Point{
		X: Clamp(p.X, 0, vp.StageWidth),
		Y: Clamp(p.Y, 0, vp.StageHeight),
	}
}
