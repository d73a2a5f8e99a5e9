package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/lewtec/marcador/annotation"
	"github.com/lewtec/marcador/internal/annotations"
	"github.com/lewtec/marcador/internal/domain"
	"github.com/lewtec/marcador/internal/events"
	"github.com/lewtec/marcador/internal/hotkey"
)

// Mode decides how annotations are picked when a task loads.
type Mode string

const (
	// ModeStream serves tasks one after the other.
	ModeStream Mode = "stream"
	// ModeExplorer opens tasks picked by the user.
	ModeExplorer Mode = "explorer"
)

// Interface names toggling parts of the editor.
const (
	InterfaceSubmit      = "submit"
	InterfaceUpdate      = "update"
	InterfaceSkip        = "skip"
	InterfaceReview      = "review"
	InterfacePostpone    = "postpone"
	InterfaceTaskCounter = "topbar:task-counter"
	InterfaceDenyEmpty   = "annotations:deny-empty"
)

const (
	DefaultMinSubmitDelay = 200 * time.Millisecond
	DefaultMaxSubmitDelay = 5 * time.Second

	draftPollInterval = 100 * time.Millisecond
)

// Options configure a Store.
type Options struct {
	Mode       Mode
	Interfaces []string

	// MinSubmitDelay is how long the submitting flag is held at least,
	// MaxSubmitDelay when it is released even if the request is still running.
	MinSubmitDelay time.Duration
	MaxSubmitDelay time.Duration

	ShowCollabPredictions     bool
	InteractivePreannotations bool
	AutoAcceptSuggestions     bool
	// ModelVersion picks the prediction copied into a new annotation in explorer mode.
	ModelVersion string

	// Instruction is the project instruction in markdown.
	Instruction string

	Validator annotations.Validator
	Keymap    *hotkey.Keymap
	// Confirm asks the user before destructive hotkeys. Nil means yes.
	Confirm func(message string) bool
	Now     func() time.Time
}

// Flags are the UI state switches.
type Flags struct {
	IsSubmitting        bool
	IsLoading           bool
	NoTask              bool
	NoAccess            bool
	LabeledSuccess      bool
	AwaitingSuggestions bool
	ShowingSettings     bool
	ShowingDescription  bool
}

// TaskHistoryItem is one visited task. AnnotationID is empty until an
// annotation of the task is opened.
type TaskHistoryItem struct {
	TaskID       int64
	AnnotationID string
}

// Store drives the lifecycle of the current task: loading, the submission
// protocol, task navigation and hotkeys. All methods are safe for concurrent
// use; bus events are fired after the lock is released so handlers can call
// back into the store.
type Store struct {
	mu sync.Mutex

	bus  *events.Bus
	opts Options

	as          *annotations.Store
	task        *domain.Task
	taskHistory []TaskHistoryItem
	interfaces  []string
	flags       Flags
	initialized bool

	queueTotal    int
	queuePosition int

	suggestionsRequest string

	later []func()
	wg    sync.WaitGroup
}

// New creates a store publishing on bus.
func New(bus *events.Bus, opts Options) *Store {
	if opts.Mode == "" {
		opts.Mode = ModeStream
	}
	if opts.MinSubmitDelay <= 0 {
		opts.MinSubmitDelay = DefaultMinSubmitDelay
	}
	if opts.MaxSubmitDelay <= 0 {
		opts.MaxSubmitDelay = DefaultMaxSubmitDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if bus == nil {
		bus = events.New()
	}
	s := &Store{
		bus:        bus,
		opts:       opts,
		as:         annotations.NewStore(),
		interfaces: append([]string(nil), opts.Interfaces...),
	}
	s.mu.Lock()
	s.attachHotkeys()
	s.unlock()
	return s
}

// unlock releases the lock and then runs the work queued with post.
func (s *Store) unlock() {
	pending := s.later
	s.later = nil
	s.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// post queues fn to run once the lock is released.
func (s *Store) post(fn func()) {
	s.later = append(s.later, fn)
}

func (s *Store) invokeLater(ctx context.Context, name string, args ...any) {
	s.post(func() {
		if _, err := s.bus.Invoke(ctx, name, args...); err != nil {
			log.Printf("session: %s: %s", name, err)
		}
	})
}

func (s *Store) toast(ctx context.Context, kind, messageID string, data map[string]any) {
	msg := events.ToastMessage{
		Message: annotation.LocalizeWithContextAndData(ctx, messageID, data),
		Type:    kind,
	}
	if _, err := s.bus.Invoke(ctx, events.Toast, msg); err != nil {
		log.Printf("session: toast: %s", err)
	}
}

// Bus returns the event bus of the store.
func (s *Store) Bus() *events.Bus { return s.bus }

// Mode returns how tasks are served.
func (s *Store) Mode() Mode { return s.opts.Mode }

// Wait blocks until every background submission has finished.
func (s *Store) Wait() { s.wg.Wait() }

// WithAnnotations runs fn with the annotation store under the lock. fn must
// not call back into s.
func (s *Store) WithAnnotations(fn func(as *annotations.Store)) {
	s.mu.Lock()
	defer s.unlock()
	fn(s.as)
}

// WithSelected runs fn on the selected annotation, if any, under the lock.
func (s *Store) WithSelected(fn func(a *annotations.Annotation)) bool {
	s.mu.Lock()
	defer s.unlock()
	a := s.as.Selected()
	if a == nil {
		return false
	}
	fn(a)
	return true
}

// HasInterface reports whether any of names is enabled.
func (s *Store) HasInterface(names ...string) bool {
	s.mu.Lock()
	defer s.unlock()
	return s.hasInterface(names...)
}

func (s *Store) hasInterface(names ...string) bool {
	for _, i := range s.interfaces {
		for _, n := range names {
			if i == n {
				return true
			}
		}
	}
	return false
}

// AddInterface enables name.
func (s *Store) AddInterface(name string) {
	s.mu.Lock()
	defer s.unlock()
	s.setInterface(name, true)
}

// ToggleInterface flips name.
func (s *Store) ToggleInterface(name string) {
	s.mu.Lock()
	defer s.unlock()
	s.setInterface(name, !s.hasInterface(name))
}

// SetInterface enables or disables name.
func (s *Store) SetInterface(name string, on bool) {
	s.mu.Lock()
	defer s.unlock()
	s.setInterface(name, on)
}

func (s *Store) setInterface(name string, on bool) {
	for i, n := range s.interfaces {
		if n == name {
			if !on {
				s.interfaces = append(s.interfaces[:i], s.interfaces[i+1:]...)
			}
			return
		}
	}
	if on {
		s.interfaces = append(s.interfaces, name)
	}
}

// Flags returns a copy of the UI flags.
func (s *Store) Flags() Flags {
	s.mu.Lock()
	defer s.unlock()
	return s.flags
}

// SetFlags updates the UI flags.
func (s *Store) SetFlags(update func(f *Flags)) {
	s.mu.Lock()
	defer s.unlock()
	update(&s.flags)
}

// IsSubmitting reports whether a submission holds the editor.
func (s *Store) IsSubmitting() bool {
	return s.Flags().IsSubmitting
}

// SetQueue sets the queue counter shown in the top bar.
func (s *Store) SetQueue(total, position int) {
	s.mu.Lock()
	defer s.unlock()
	s.queueTotal = total
	s.queuePosition = position
}

// QueuePosition returns the position and total of the queue.
func (s *Store) QueuePosition() (int, int) {
	s.mu.Lock()
	defer s.unlock()
	return s.queuePosition, s.queueTotal
}

// IncrementQueuePosition moves the queue counter by n, clamped to [1, total].
func (s *Store) IncrementQueuePosition(n int) {
	s.mu.Lock()
	defer s.unlock()
	s.incrementQueuePosition(n)
}

func (s *Store) incrementQueuePosition(n int) {
	pos := s.queuePosition + n
	if pos > s.queueTotal {
		pos = s.queueTotal
	}
	if pos < 1 {
		pos = 1
	}
	s.queuePosition = pos
}

// Task returns the current task. It must not be modified.
func (s *Store) Task() *domain.Task {
	s.mu.Lock()
	defer s.unlock()
	return s.task
}

// TaskID returns the id of the current task, 0 if none.
func (s *Store) TaskID() int64 {
	s.mu.Lock()
	defer s.unlock()
	if s.task == nil {
		return 0
	}
	return s.task.ID
}

// TaskHistory returns the visited tasks.
func (s *Store) TaskHistory() []TaskHistoryItem {
	s.mu.Lock()
	defer s.unlock()
	return append([]TaskHistoryItem(nil), s.taskHistory...)
}

// SetTaskHistory replaces the visited tasks.
func (s *Store) SetTaskHistory(items []TaskHistoryItem) {
	s.mu.Lock()
	defer s.unlock()
	s.taskHistory = append([]TaskHistoryItem(nil), items...)
}

func (s *Store) taskHistoryIndex() int {
	if s.task == nil {
		return -1
	}
	for i, item := range s.taskHistory {
		if item.TaskID == s.task.ID {
			return i
		}
	}
	return -1
}

// CanGoNextTask is true when the current task is not the last visited one.
func (s *Store) CanGoNextTask() bool {
	s.mu.Lock()
	defer s.unlock()
	return s.canGoNextTask()
}

func (s *Store) canGoNextTask() bool {
	if s.task == nil || len(s.taskHistory) <= 1 {
		return false
	}
	return s.task.ID != s.taskHistory[len(s.taskHistory)-1].TaskID
}

// CanGoPrevTask is true when the current task is not the first visited one.
func (s *Store) CanGoPrevTask() bool {
	s.mu.Lock()
	defer s.unlock()
	return s.canGoPrevTask()
}

func (s *Store) canGoPrevTask() bool {
	if s.task == nil || len(s.taskHistory) <= 1 {
		return false
	}
	return s.task.ID != s.taskHistory[0].TaskID
}

// AddAnnotationToTaskHistory remembers which annotation was open on the
// current task.
func (s *Store) AddAnnotationToTaskHistory(annotationID string) {
	s.mu.Lock()
	defer s.unlock()
	if i := s.taskHistoryIndex(); i >= 0 {
		s.taskHistory[i].AnnotationID = annotationID
	}
}

// Instruction returns the project instruction rendered to HTML, empty when
// there is none.
func (s *Store) Instruction() string {
	return annotation.RenderMarkdown(s.opts.Instruction)
}

// PresignURL asks the bus to exchange a storage url for a presigned one.
func (s *Store) PresignURL(ctx context.Context, url string) (string, error) {
	res, err := s.bus.Invoke(ctx, events.PresignURLForProject, s, url)
	if err != nil {
		return "", err
	}
	for _, r := range res {
		if u, ok := r.(string); ok && u != "" {
			return u, nil
		}
	}
	return url, nil
}
