// Package replay drives an editor session from a YAML script of user
// actions: pointer gestures on the canvas, hotkeys and toolbar buttons.
package replay

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/lewtec/marcador/annotation"
	"github.com/lewtec/marcador/internal/geometry"
	"gopkg.in/yaml.v3"
)

var ErrBadScript = errors.New("invalid script")

// Actions accepted by Step.Do.
const (
	DoSubmit   = "submit"
	DoUpdate   = "update"
	DoSkip     = "skip"
	DoUnskip   = "unskip"
	DoAccept   = "accept"
	DoReject   = "reject"
	DoButton   = "button"
	DoDraft    = "draft"
	DoPostpone = "postpone"
	DoUndo     = "undo"
	DoRedo     = "redo"
	DoNext     = "next"
	DoPrev     = "prev"
	DoCancel   = "cancel"
)

var actions = map[string]bool{
	DoSubmit: true, DoUpdate: true, DoSkip: true, DoUnskip: true,
	DoAccept: true, DoReject: true, DoButton: true, DoDraft: true,
	DoPostpone: true, DoUndo: true, DoRedo: true, DoNext: true,
	DoPrev: true, DoCancel: true,
}

// LoadNextTask is the value of Step.Load asking for the next queued task.
const LoadNextTask = "next"

// Point is a canvas position written as [x, y].
type Point geometry.Point

func (p *Point) UnmarshalYAML(value *yaml.Node) error {
	var xy []float64
	if err := value.Decode(&xy); err != nil {
		return err
	}
	if len(xy) != 2 {
		return fmt.Errorf("line %d: a point is [x, y], got %d numbers: %w", value.Line, len(xy), ErrBadScript)
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

// Script is a list of steps run in order. Stage is the canvas size in
// pixels; the natural size of the task image is used when it is missing.
type Script struct {
	Stage *annotation.ImageSize `yaml:"stage"`
	Steps []Step                `yaml:"steps"`
}

// Step is one user action. Exactly one of Load, Tool, Drag, Click,
// DoubleClick, Key and Do is set.
type Step struct {
	// Load opens a task by id, or the next one of the queue with "next".
	Load       string `yaml:"load"`
	Annotation string `yaml:"annotation"`

	// Tool activates a drawing tool for Control with Labels selected.
	Tool    string   `yaml:"tool"`
	Control string   `yaml:"control"`
	Labels  []string `yaml:"labels"`

	// Drag presses at the first point, moves through the others and
	// releases at the last one.
	Drag        []Point `yaml:"drag"`
	Click       []Point `yaml:"click"`
	DoubleClick *Point  `yaml:"double_click"`
	Modifiers   struct {
		Ctrl  bool `yaml:"ctrl"`
		Alt   bool `yaml:"alt"`
		Shift bool `yaml:"shift"`
	} `yaml:"modifiers"`

	// Key presses a key combination, like ctrl+z.
	Key string `yaml:"key"`

	Do      string `yaml:"do"`
	Comment string `yaml:"comment"`
	Button  string `yaml:"button"`
}

func (s *Step) kind() string {
	var kinds []string
	if s.Load != "" {
		kinds = append(kinds, "load")
	}
	if s.Tool != "" {
		kinds = append(kinds, "tool")
	}
	if len(s.Drag) > 0 {
		kinds = append(kinds, "drag")
	}
	if len(s.Click) > 0 {
		kinds = append(kinds, "click")
	}
	if s.DoubleClick != nil {
		kinds = append(kinds, "double_click")
	}
	if s.Key != "" {
		kinds = append(kinds, "key")
	}
	if s.Do != "" {
		kinds = append(kinds, "do")
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// LoadScript reads a script from a YAML file.
func LoadScript(filename string) (*Script, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return ParseScript(data)
}

// ParseScript decodes and checks a script.
func ParseScript(data []byte) (*Script, error) {
	var ret Script
	if err := yaml.Unmarshal(data, &ret); err != nil {
		return nil, err
	}
	if ret.Stage != nil && (ret.Stage.Width <= 0 || ret.Stage.Height <= 0) {
		return nil, fmt.Errorf("stage must have a positive size: %w", ErrBadScript)
	}
	for i := range ret.Steps {
		step := &ret.Steps[i]
		switch step.kind() {
		case "":
			return nil, fmt.Errorf("step %d: exactly one action is expected: %w", i+1, ErrBadScript)
		case "drag":
			if len(step.Drag) < 2 {
				return nil, fmt.Errorf("step %d: a drag needs at least two points: %w", i+1, ErrBadScript)
			}
		case "do":
			if !actions[step.Do] {
				return nil, fmt.Errorf("step %d: unknown action %q: %w", i+1, step.Do, ErrBadScript)
			}
			if step.Do == DoButton && step.Button == "" {
				return nil, fmt.Errorf("step %d: button name missing: %w", i+1, ErrBadScript)
			}
		}
	}
	return &ret, nil
}
