package tools

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/lewtec/marcador/internal/geometry"
)

var ErrUnknownTool = errors.New("unknown tool")

// Event is a pointer event. Canvas is where it happened on screen, Point is
// the same position in internal space, already clamped to the stage.
type Event struct {
	Canvas geometry.Point
	Point  geometry.Point
	Ctrl   bool
	Alt    bool
	Shift  bool
}

// Tool reacts to pointer events on the canvas.
type Tool interface {
	Name() string
	PointerDown(c *Controller, ev Event)
	PointerMove(c *Controller, ev Event)
	PointerUp(c *Controller, ev Event)
}

// Clicker is implemented by tools acting on single clicks.
type Clicker interface {
	Click(c *Controller, ev Event)
}

// DoubleClicker is implemented by tools acting on double clicks.
type DoubleClicker interface {
	DoubleClick(c *Controller, ev Event)
}

// Canceler is implemented by tools holding an in progress shape that can be
// thrown away, for instance when the user presses escape.
type Canceler interface {
	Cancel(c *Controller)
}

// Manager keeps the registered tools and which one is active.
type Manager struct {
	mu     sync.Mutex
	tools  map[string]Tool
	active string
}

// NewManager registers tools; the first one becomes active.
func NewManager(tools ...Tool) *Manager {
	m := &Manager{tools: map[string]Tool{}}
	for _, t := range tools {
		m.Register(t)
	}
	return m
}

// Register adds a tool, replacing any tool with the same name.
func (m *Manager) Register(t Tool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools[t.Name()] = t
	if m.active == "" {
		m.active = t.Name()
	}
}

// Select makes the named tool active.
func (m *Manager) Select(name string) (Tool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tools[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownTool)
	}
	m.active = name
	return t, nil
}

// Active returns the selected tool, nil if none is registered.
func (m *Manager) Active() Tool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tools[m.active]
}

// Tool returns a registered tool by name.
func (m *Manager) Tool(name string) (Tool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tools[name]
	return t, ok
}

// Names lists the registered tools, sorted.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.tools))
	for n := range m.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultManager registers every built in tool with Rectangle active.
func DefaultManager() *Manager {
	return NewManager(
		&Rectangle{},
		&Ellipse{},
		&Polygon{},
		&KeyPoint{},
		NewBrush(),
		NewEraser(),
		&Zoom{},
		&Pan{},
		&Rotate{},
	)
}
