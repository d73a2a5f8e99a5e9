package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/lewtec/marcador/annotation"
	"github.com/lewtec/marcador/internal/annotations"
	"github.com/lewtec/marcador/internal/domain"
	"github.com/lewtec/marcador/internal/events"
	"github.com/lewtec/marcador/internal/geometry"
	"github.com/lewtec/marcador/internal/hotkey"
	"github.com/lewtec/marcador/internal/session"
	"github.com/lewtec/marcador/internal/syncadapter"
	"github.com/lewtec/marcador/internal/tools"
)

// Summary tells what a run did.
type Summary struct {
	Steps int
	// Ignored counts steps the editor refused, like submitting an invalid
	// annotation or going back with no history.
	Ignored       int
	TaskID        int64
	QueuePosition int
	QueueTotal    int
	Regions       int
	NoTask        bool
	Toasts        []events.ToastMessage
}

// Runner owns one editor session talking to an API.
type Runner struct {
	cfg      *annotation.Config
	store    *session.Store
	adapter  *syncadapter.Adapter
	keymap   *hotkey.Keymap
	ctl      *tools.Controller
	autosave *session.Autosaver

	// AutosaveEvery is how often pending edits are saved between steps.
	AutosaveEvery time.Duration
	// ImagesDir is where task images are measured for their size when the
	// task data does not carry it.
	ImagesDir string
	lastSave  time.Time

	viewTask int64

	mu     sync.Mutex
	toasts []events.ToastMessage
}

// New creates a session for cfg backed by api.
func New(cfg *annotation.Config, api domain.API) (*Runner, error) {
	keymap, err := hotkey.New(cfg.Hotkeys)
	if err != nil {
		return nil, fmt.Errorf("while loading hotkeys: %w", err)
	}
	r := &Runner{
		cfg:           cfg,
		keymap:        keymap,
		ctl:           tools.NewController(nil, nil),
		AutosaveEvery: cfg.Autosave.Interval,
	}
	bus := events.New()
	bus.On(events.Toast, r.onToast)
	r.store = session.New(bus, SessionOptions(cfg, keymap))
	r.adapter = syncadapter.New(api, r.store)
	r.autosave = session.NewAutosaver(r.store, cfg.Autosave.Interval)
	r.ctl.BindHotkeys(keymap)
	return r, nil
}

// Store returns the session being driven.
func (r *Runner) Store() *session.Store { return r.store }

// Close detaches the session from the API.
func (r *Runner) Close() {
	r.store.Wait()
	r.adapter.Close()
}

func (r *Runner) onToast(ctx context.Context, args ...any) (any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	msg, ok := args[0].(events.ToastMessage)
	if !ok {
		return nil, nil
	}
	log.Printf("replay: [%s] %s", msg.Type, msg.Message)
	r.mu.Lock()
	r.toasts = append(r.toasts, msg)
	r.mu.Unlock()
	return nil, nil
}

// Run plays the steps of script in order. Steps the editor refuses are
// counted and skipped; a step that can not be performed at all stops the
// run.
func (r *Runner) Run(ctx context.Context, script *Script) (*Summary, error) {
	r.mu.Lock()
	r.toasts = nil
	r.mu.Unlock()
	r.lastSave = time.Now()

	sum := &Summary{}
	for i, step := range script.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		done, err := r.step(ctx, script, step)
		r.store.Wait()
		if err != nil {
			return nil, fmt.Errorf("while running step %d: %w", i+1, err)
		}
		sum.Steps++
		if !done {
			log.Printf("replay: step %d was ignored", i+1)
			sum.Ignored++
		}
		if r.AutosaveEvery > 0 && time.Since(r.lastSave) >= r.AutosaveEvery {
			r.autosave.Tick(ctx)
			r.lastSave = time.Now()
		}
	}

	sum.TaskID = r.store.TaskID()
	sum.QueuePosition, sum.QueueTotal = r.store.QueuePosition()
	sum.NoTask = r.store.Flags().NoTask
	r.store.WithSelected(func(a *annotations.Annotation) { sum.Regions = len(a.Regions()) })
	r.mu.Lock()
	sum.Toasts = append(sum.Toasts, r.toasts...)
	r.mu.Unlock()
	return sum, nil
}

func (r *Runner) step(ctx context.Context, script *Script, s Step) (bool, error) {
	switch s.kind() {
	case "load":
		if s.Load == LoadNextTask {
			return true, r.adapter.LoadNext(ctx)
		}
		id, ok := domain.ParseID(s.Load)
		if !ok {
			return false, fmt.Errorf("task id %q: %w", s.Load, ErrBadScript)
		}
		return true, r.adapter.Load(ctx, id, s.Annotation, false)
	case "tool":
		return r.selectTool(s)
	case "drag":
		mods := tools.Modifiers(s.Modifiers)
		return r.gesture(script, func() error {
			pts := s.Drag
			if err := r.ctl.PointerDown(geometry.Point(pts[0]), mods); err != nil {
				return err
			}
			for _, p := range pts[1 : len(pts)-1] {
				if err := r.ctl.PointerMove(geometry.Point(p), mods); err != nil {
					return err
				}
			}
			return r.ctl.PointerUp(geometry.Point(pts[len(pts)-1]), mods)
		})
	case "click":
		mods := tools.Modifiers(s.Modifiers)
		return r.gesture(script, func() error {
			for _, p := range s.Click {
				if err := r.ctl.Click(geometry.Point(p), mods); err != nil {
					return err
				}
			}
			return nil
		})
	case "double_click":
		return r.gesture(script, func() error {
			return r.ctl.DoubleClick(geometry.Point(*s.DoubleClick), tools.Modifiers(s.Modifiers))
		})
	case "key":
		return r.keymap.Dispatch(s.Key), nil
	}
	return r.do(ctx, s)
}

func (r *Runner) do(ctx context.Context, s Step) (bool, error) {
	switch s.Do {
	case DoSubmit:
		return r.store.SubmitAnnotation(ctx), nil
	case DoUpdate:
		return r.store.UpdateAnnotation(ctx, nil), nil
	case DoSkip:
		return r.store.SkipTask(ctx, s.Comment), nil
	case DoUnskip:
		return r.store.UnskipTask(ctx), nil
	case DoAccept:
		return r.store.AcceptAnnotation(ctx), nil
	case DoReject:
		return r.store.RejectAnnotation(ctx, s.Comment), nil
	case DoButton:
		return r.store.HandleCustomButton(ctx, s.Button), nil
	case DoDraft:
		if err := r.store.SubmitDraft(ctx, true, nil); err != nil {
			log.Printf("replay: %s", err)
			return false, nil
		}
		return true, nil
	case DoPostpone:
		if !r.store.HasInterface(session.InterfacePostpone) {
			return false, nil
		}
		if err := r.store.PostponeTask(ctx); err != nil {
			log.Printf("replay: %s", err)
			return false, nil
		}
		return true, nil
	case DoNext:
		if r.store.NextTask(ctx) {
			return true, nil
		}
		// past the end of the history the queue serves the next task
		if err := r.store.SaveDraft(ctx); err != nil {
			log.Printf("replay: %s", err)
		}
		return true, r.adapter.LoadNext(ctx)
	case DoPrev:
		return r.store.PrevTask(ctx, false), nil
	case DoCancel:
		var ok bool
		r.store.WithSelected(func(a *annotations.Annotation) {
			r.ctl.SetAnnotation(a)
			r.ctl.Cancel()
			ok = true
		})
		return ok, nil
	}
	var ok bool
	r.store.WithSelected(func(a *annotations.Annotation) {
		if s.Do == DoUndo {
			ok = a.Undo()
		} else {
			ok = a.Redo()
		}
	})
	return ok, nil
}

func (r *Runner) selectTool(s Step) (bool, error) {
	if err := r.ctl.SelectTool(s.Tool); err != nil {
		return false, err
	}
	if s.Control == "" {
		return true, nil
	}
	control, ok := r.cfg.Controls[s.Control]
	if !ok {
		return false, fmt.Errorf("unknown control %q", s.Control)
	}
	r.ctl.SetControl(annotations.Binding{
		Control: control.Name,
		Type:    control.Type,
		Object:  control.Object,
	}, s.Labels...)
	return true, nil
}

// gesture runs fn against the selected annotation with a viewport sized for
// the current task.
func (r *Runner) gesture(script *Script, fn func() error) (bool, error) {
	if err := r.syncViewport(script); err != nil {
		return false, err
	}
	var err error
	ok := r.store.WithSelected(func(a *annotations.Annotation) {
		r.ctl.SetAnnotation(a)
		err = fn()
	})
	return ok && err == nil, err
}

func (r *Runner) syncViewport(script *Script) error {
	task := r.store.Task()
	if task == nil {
		return nil
	}
	if r.ctl.Viewport != nil && r.viewTask == task.ID {
		return nil
	}
	natural := r.naturalSize(task)
	stage := natural
	if script.Stage != nil {
		stage = *script.Stage
	}
	vp, err := geometry.NewViewport(float64(stage.Width), float64(stage.Height), float64(natural.Width), float64(natural.Height))
	if err != nil {
		return fmt.Errorf("while sizing the viewport of task %d: %w", task.ID, err)
	}
	vp.MinZoom = r.cfg.Viewport.MinZoom
	vp.MaxZoom = r.cfg.Viewport.MaxZoom
	vp.ZoomStep = r.cfg.Viewport.ZoomStep
	r.ctl.Viewport = vp
	r.viewTask = task.ID
	return nil
}

const defaultImageSide = 100

// naturalSize reads the image size recorded by `marcador import` in the
// task data, or measures the image itself.
func (r *Runner) naturalSize(task *domain.Task) annotation.ImageSize {
	var data struct {
		Image  string      `json:"image"`
		Width  json.Number `json:"width"`
		Height json.Number `json:"height"`
	}
	size := annotation.ImageSize{Width: defaultImageSide, Height: defaultImageSide}
	if err := json.Unmarshal(task.Data, &data); err != nil {
		return size
	}
	w, werr := strconv.Atoi(data.Width.String())
	h, herr := strconv.Atoi(data.Height.String())
	if werr == nil && herr == nil && w > 0 && h > 0 {
		return annotation.ImageSize{Width: w, Height: h}
	}
	if r.ImagesDir == "" || data.Image == "" {
		return size
	}
	measured, err := annotation.MeasureImage(filepath.Join(r.ImagesDir, filepath.Base(data.Image)))
	if err != nil {
		log.Printf("replay: %s", err)
		return size
	}
	return *measured
}
