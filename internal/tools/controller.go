package tools

import (
	"errors"
	"fmt"
	"log"

	"github.com/lewtec/marcador/internal/annotations"
	"github.com/lewtec/marcador/internal/geometry"
	"github.com/lewtec/marcador/internal/hotkey"
	"github.com/lewtec/marcador/internal/region"
)

var ErrNoAnnotation = errors.New("no annotation attached")

// Modifiers are the keys held during a pointer or wheel event.
type Modifiers struct {
	Ctrl, Alt, Shift bool
}

// Controller turns pointer events into region edits on the current
// annotation. It owns the viewport of the object being labeled and the tool
// registry. It is not safe for concurrent use.
type Controller struct {
	Viewport *geometry.Viewport
	Tools    *Manager

	// AllowEmptyLabels lets tools draw without any label selected.
	AllowEmptyLabels bool

	ann     *annotations.Annotation
	binding annotations.Binding
	labels  []string

	// frozen is set while this controller holds a history freeze.
	frozen bool
}

// NewController creates a controller. A nil manager gets DefaultManager.
func NewController(vp *geometry.Viewport, m *Manager) *Controller {
	if m == nil {
		m = DefaultManager()
	}
	return &Controller{Viewport: vp, Tools: m}
}

// SetAnnotation switches the annotation being edited. Anything still being
// drawn on the previous one is committed first.
func (c *Controller) SetAnnotation(a *annotations.Annotation) {
	if c.ann != nil && c.ann != a {
		c.finishDrawing()
	}
	c.ann = a
}

func (c *Controller) Annotation() *annotations.Annotation { return c.ann }

// SetControl selects the control new regions belong to and its active labels.
func (c *Controller) SetControl(b annotations.Binding, labels ...string) {
	c.binding = b
	c.labels = append([]string(nil), labels...)
}

func (c *Controller) Binding() annotations.Binding { return c.binding }

// CanStartDrawing reports whether a new region may be started.
func (c *Controller) CanStartDrawing() bool {
	if c.ann == nil || c.ann.ReadOnly() {
		return false
	}
	return len(c.labels) > 0 || c.AllowEmptyLabels
}

// SelectTool makes a tool active. A shape in progress with the previous tool
// is committed.
func (c *Controller) SelectTool(name string) error {
	if active := c.Tools.Active(); active != nil && active.Name() == name {
		return nil
	}
	c.finishDrawing()
	_, err := c.Tools.Select(name)
	return err
}

func (c *Controller) event(p geometry.Point, mods Modifiers) (Event, error) {
	if c.Viewport == nil {
		return Event{}, fmt.Errorf("controller has no viewport: %w", geometry.ErrMalformed)
	}
	canvas := c.Viewport.ClampToStage(p)
	internal, err := geometry.CanvasToInternal(canvas, c.Viewport)
	if err != nil {
		return Event{}, fmt.Errorf("while converting pointer position: %w", err)
	}
	internal.X = geometry.Clamp(internal.X, 0, 100)
	internal.Y = geometry.Clamp(internal.Y, 0, 100)
	return Event{Canvas: canvas, Point: internal, Ctrl: mods.Ctrl, Alt: mods.Alt, Shift: mods.Shift}, nil
}

func (c *Controller) dispatch(p geometry.Point, mods Modifiers, fn func(Tool, Event)) error {
	t := c.Tools.Active()
	if t == nil {
		return nil
	}
	ev, err := c.event(p, mods)
	if err != nil {
		return err
	}
	fn(t, ev)
	return nil
}

// PointerDown handles a press at canvas position p.
func (c *Controller) PointerDown(p geometry.Point, mods Modifiers) error {
	return c.dispatch(p, mods, func(t Tool, ev Event) { t.PointerDown(c, ev) })
}

// PointerMove handles a drag. Positions outside the stage are clamped to
// its edges.
func (c *Controller) PointerMove(p geometry.Point, mods Modifiers) error {
	return c.dispatch(p, mods, func(t Tool, ev Event) { t.PointerMove(c, ev) })
}

// PointerUp handles a release.
func (c *Controller) PointerUp(p geometry.Point, mods Modifiers) error {
	return c.dispatch(p, mods, func(t Tool, ev Event) { t.PointerUp(c, ev) })
}

// Click handles a click for tools that care about them.
func (c *Controller) Click(p geometry.Point, mods Modifiers) error {
	return c.dispatch(p, mods, func(t Tool, ev Event) {
		if ck, ok := t.(Clicker); ok {
			ck.Click(c, ev)
		}
	})
}

// DoubleClick handles a double click for tools that care about them.
func (c *Controller) DoubleClick(p geometry.Point, mods Modifiers) error {
	return c.dispatch(p, mods, func(t Tool, ev Event) {
		if dc, ok := t.(DoubleClicker); ok {
			dc.DoubleClick(c, ev)
		}
	})
}

// Wheel zooms around the pointer when ctrl is held and pans otherwise.
func (c *Controller) Wheel(deltaX, deltaY float64, pointer geometry.Point, mods Modifiers) error {
	if c.Viewport == nil {
		return fmt.Errorf("controller has no viewport: %w", geometry.ErrMalformed)
	}
	if mods.Ctrl {
		if err := c.Viewport.Zoom(deltaY, pointer); err != nil {
			return fmt.Errorf("while zooming: %w", err)
		}
		return nil
	}
	c.Viewport.Pan(-deltaX, -deltaY)
	return nil
}

// Rotate turns the viewport. Region geometry is untouched since it lives in
// internal space.
func (c *Controller) Rotate(degrees int) error {
	if c.Viewport == nil {
		return fmt.Errorf("controller has no viewport: %w", geometry.ErrMalformed)
	}
	if err := c.Viewport.Rotate(degrees); err != nil {
		return fmt.Errorf("while rotating: %w", err)
	}
	if c.ann != nil {
		for _, r := range c.ann.Regions() {
			if rn := r.Common().Renderer(); rn != nil {
				rn.Update(r.Serialize())
			}
		}
	}
	return nil
}

// Cancel drops the shape in progress, if the active tool supports it.
func (c *Controller) Cancel() {
	if cn, ok := c.Tools.Active().(Canceler); ok {
		cn.Cancel(c)
	}
}

// BindHotkeys wires the tool shortcuts into a keymap.
func (c *Controller) BindHotkeys(k *hotkey.Keymap) {
	bind := func(name string, fn func()) {
		if err := k.Bind(name, fn); err != nil {
			log.Printf("tools: binding %s: %s", name, err)
		}
	}
	bind(hotkey.RotateLeft, func() { c.logErr(c.Rotate(-90)) })
	bind(hotkey.RotateRight, func() { c.logErr(c.Rotate(90)) })
	bind(hotkey.IncreaseTool, func() { c.resizeActive(sizeStep) })
	bind(hotkey.DecreaseTool, func() { c.resizeActive(-sizeStep) })
}

func (c *Controller) logErr(err error) {
	if err != nil {
		log.Printf("tools: %s", err)
	}
}

func (c *Controller) resizeActive(delta int) {
	if s, ok := c.Tools.Active().(Sizer); ok {
		s.SetSize(s.Size() + delta)
	}
}

// beginDrawing freezes history and starts r as the region in progress.
func (c *Controller) beginDrawing(r region.Region) region.Region {
	if !c.CanStartDrawing() {
		return nil
	}
	c.freeze()
	out := c.ann.CreateDrawingRegion(r, c.labels, c.binding)
	if out == nil {
		c.unfreeze()
	}
	return out
}

// beginEdit freezes history while an existing region is changed by a gesture.
func (c *Controller) beginEdit() {
	if c.ann == nil {
		return
	}
	c.freeze()
	c.ann.SetIsDrawing(true)
}

// finishDrawing commits whatever is in progress and records one history entry.
func (c *Controller) finishDrawing() region.Region {
	if c.ann == nil {
		return nil
	}
	r := c.ann.CommitDrawingRegion()
	c.ann.SetIsDrawing(false)
	c.unfreeze()
	return r
}

// cancelDrawing throws the region in progress away.
func (c *Controller) cancelDrawing() {
	if c.ann == nil {
		return
	}
	c.ann.DiscardDrawingRegion()
	c.ann.SetIsDrawing(false)
	c.unfreeze()
}

func (c *Controller) freeze() {
	if c.frozen {
		return
	}
	c.ann.History().Freeze()
	c.frozen = true
}

func (c *Controller) unfreeze() {
	if !c.frozen {
		return
	}
	c.ann.History().SafeUnfreeze()
	c.frozen = false
}
