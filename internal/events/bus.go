package events

import (
	"context"
	"errors"
	"sync"
)

// Event names used between the session and the sync adapter.
const (
	SubmitAnnotation     = "submitAnnotation"
	UpdateAnnotation     = "updateAnnotation"
	DeleteAnnotation     = "deleteAnnotation"
	SkipTask             = "skipTask"
	UnskipTask           = "unskipTask"
	AcceptAnnotation     = "acceptAnnotation"
	RejectAnnotation     = "rejectAnnotation"
	SubmitDraft          = "submitDraft"
	NextTask             = "nextTask"
	PrevTask             = "prevTask"
	CustomButton         = "customButton"
	Toast                = "toast"
	EntityCreate         = "entityCreate"
	SelectAnnotation     = "selectAnnotation"
	PresignURLForProject = "presignUrlForProject"
	StorageInitialized   = "storageInitialized"
	AnnotationSet        = "annotationSet"
	LoadTask             = "loadTask"
)

// Toast kinds.
const (
	ToastInfo  = "info"
	ToastError = "error"
)

// ToastMessage is the payload of the Toast event. It is shown to the user
// without blocking the editor.
type ToastMessage struct {
	Message string
	Type    string
}

var ErrNoHandler = errors.New("no handler for event")

// Handler runs for an invoked event. Its result is collected by Invoke.
type Handler func(ctx context.Context, args ...any) (any, error)

type entry struct {
	id int
	fn Handler
}

// Bus is an in-process pub/sub with result aggregation. Handlers run on the
// caller's goroutine, outside the bus lock, so they may invoke other events.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]entry
	next     int
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[string][]entry)}
}

// On registers h for name. The returned func removes just this handler.
func (b *Bus) On(name string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.handlers[name] = append(b.handlers[name], entry{id: id, fn: h})
	return func() { b.remove(name, id) }
}

func (b *Bus) remove(name string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.handlers[name]
	for i, e := range list {
		if e.id == id {
			b.handlers[name] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.handlers[name]) == 0 {
		delete(b.handlers, name)
	}
}

// Off removes every handler of name.
func (b *Bus) Off(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, name)
}

// HasEvent reports whether anything listens to name.
func (b *Bus) HasEvent(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name]) > 0
}

func (b *Bus) snapshot(name string) []entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	list := b.handlers[name]
	out := make([]entry, len(list))
	copy(out, list)
	return out
}

// Invoke runs every handler of name in registration order and returns their
// results. Handler errors are joined; a failing handler does not stop the others.
func (b *Bus) Invoke(ctx context.Context, name string, args ...any) ([]any, error) {
	var (
		results []any
		errs    []error
	)
	for _, e := range b.snapshot(name) {
		res, err := e.fn(ctx, args...)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// InvokeFirst runs only the first handler of name.
func (b *Bus) InvokeFirst(ctx context.Context, name string, args ...any) (any, error) {
	list := b.snapshot(name)
	if len(list) == 0 {
		return nil, ErrNoHandler
	}
	return list[0].fn(ctx, args...)
}
