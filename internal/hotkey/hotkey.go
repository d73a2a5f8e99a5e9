package hotkey

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnknownAction = errors.New("unknown hotkey action")
	ErrBadCombo      = errors.New("invalid key combination")
)

// Named actions understood by the editor.
const (
	Submit        = "annotation:submit"
	Skip          = "annotation:skip"
	Undo          = "annotation:undo"
	Redo          = "annotation:redo"
	Delete        = "region:delete"
	DeleteAll     = "region:delete-all"
	Relation      = "region:relation"
	Unselect      = "region:unselect"
	Visibility    = "region:visibility"
	VisibilityAll = "region:visibility-all"
	Lock          = "region:lock"
	Exit          = "region:exit"
	Cycle         = "region:cycle"
	Duplicate     = "region:duplicate"
	RotateLeft    = "tool:rotate-left"
	RotateRight   = "tool:rotate-right"
	IncreaseTool  = "tool:increase-tool"
	DecreaseTool  = "tool:decrease-tool"
)

// DefaultKeys maps every action to its default combination. Several
// alternatives are separated by commas.
var DefaultKeys = map[string]string{
	Submit:        "ctrl+enter",
	Skip:          "ctrl+space",
	Undo:          "ctrl+z",
	Redo:          "ctrl+shift+z",
	Delete:        "backspace,delete",
	DeleteAll:     "ctrl+backspace",
	Relation:      "alt+r",
	Unselect:      "u",
	Visibility:    "alt+h",
	VisibilityAll: "ctrl+h",
	Lock:          "alt+l",
	Exit:          "escape",
	Cycle:         "alt+.",
	Duplicate:     "ctrl+d",
	RotateLeft:    "alt+left",
	RotateRight:   "alt+right",
	IncreaseTool:  "]",
	DecreaseTool:  "[",
}

var modifierOrder = map[string]int{"ctrl": 0, "alt": 1, "shift": 2, "meta": 3}

var aliases = map[string]string{
	"control": "ctrl",
	"cmd":     "meta",
	"command": "meta",
	"option":  "alt",
	"esc":     "escape",
	"return":  "enter",
	"del":     "delete",
}

// Normalize lowercases a single combination and sorts its modifiers so
// "Shift+Ctrl+Z" and "ctrl+shift+z" compare equal.
func Normalize(combo string) (string, error) {
	combo = strings.ToLower(strings.TrimSpace(combo))
	if combo == "" {
		return "", fmt.Errorf("empty combination: %w", ErrBadCombo)
	}
	var (
		mods []string
		key  string
	)
	parts := strings.Split(combo, "+")
	// "ctrl++" binds the plus key
	if strings.HasSuffix(combo, "++") {
		parts = append(strings.Split(strings.TrimSuffix(combo, "++"), "+"), "+")
	}
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if a, ok := aliases[p]; ok {
			p = a
		}
		if p == "" {
			return "", fmt.Errorf("%q: %w", combo, ErrBadCombo)
		}
		if _, ok := modifierOrder[p]; ok && i < len(parts)-1 {
			mods = append(mods, p)
			continue
		}
		if i != len(parts)-1 {
			return "", fmt.Errorf("%q: %s is not a modifier: %w", combo, p, ErrBadCombo)
		}
		key = p
	}
	sort.Slice(mods, func(i, j int) bool { return modifierOrder[mods[i]] < modifierOrder[mods[j]] })
	return strings.Join(append(mods, key), "+"), nil
}

func splitAlternatives(keys string) ([]string, error) {
	var out []string
	for _, alt := range strings.Split(keys, ",") {
		if strings.TrimSpace(alt) == "" {
			continue
		}
		n, err := Normalize(alt)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%q: %w", keys, ErrBadCombo)
	}
	return out, nil
}

// Keymap binds key combinations to named actions and dispatches key presses
// to the handlers attached to those actions.
type Keymap struct {
	mu       sync.Mutex
	keys     map[string][]string
	handlers map[string]func()
}

// New builds a keymap from the defaults with overrides applied on top.
func New(overrides map[string]string) (*Keymap, error) {
	k := &Keymap{
		keys:     map[string][]string{},
		handlers: map[string]func(){},
	}
	for name, combo := range DefaultKeys {
		alts, err := splitAlternatives(combo)
		if err != nil {
			return nil, fmt.Errorf("while loading default for %s: %w", name, err)
		}
		k.keys[name] = alts
	}
	for name, combo := range overrides {
		if _, ok := DefaultKeys[name]; !ok {
			return nil, fmt.Errorf("%s: %w", name, ErrUnknownAction)
		}
		alts, err := splitAlternatives(combo)
		if err != nil {
			return nil, fmt.Errorf("while loading override for %s: %w", name, err)
		}
		k.keys[name] = alts
	}
	return k, nil
}

// Keys returns the combinations bound to an action.
func (k *Keymap) Keys(name string) []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.keys[name]...)
}

// Bind attaches fn to an action, replacing any previous handler.
func (k *Keymap) Bind(name string, fn func()) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.keys[name]; !ok {
		return fmt.Errorf("%s: %w", name, ErrUnknownAction)
	}
	k.handlers[name] = fn
	return nil
}

// Unbind detaches the handler of an action.
func (k *Keymap) Unbind(name string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.handlers, name)
}

// UnbindAll detaches every handler.
func (k *Keymap) UnbindAll() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.handlers = map[string]func(){}
}

// Bound reports whether an action currently has a handler.
func (k *Keymap) Bound(name string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.handlers[name]
	return ok
}

// Lookup returns the actions bound to a combination, sorted by name.
func (k *Keymap) Lookup(combo string) []string {
	n, err := Normalize(combo)
	if err != nil {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	var names []string
	for name, alts := range k.keys {
		for _, a := range alts {
			if a == n {
				names = append(names, name)
				break
			}
		}
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the handlers of every action bound to combo. Handlers run
// outside the keymap lock. It reports whether anything ran.
func (k *Keymap) Dispatch(combo string) bool {
	var fns []func()
	for _, name := range k.Lookup(combo) {
		k.mu.Lock()
		fn, ok := k.handlers[name]
		k.mu.Unlock()
		if ok {
			fns = append(fns, fn)
		}
	}
	if len(fns) == 0 {
		log.Printf("hotkey: nothing bound to %q", combo)
		return false
	}
	for _, fn := range fns {
		fn()
	}
	return true
}
