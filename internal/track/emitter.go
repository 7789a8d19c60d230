package track

import (
	"log/slog"
	"sync"

	"gqlscope/internal/operation"
)

// emitter fans events out to registered listeners. Each listener invocation
// is guarded so one panicking consumer cannot block delivery to the others
// or take down the tracker.
type emitter struct {
	mu        sync.Mutex
	seq       int
	listeners map[int]func(operation.Event)
	logger    *slog.Logger
}

// Subscribe registers a listener and returns its unsubscribe func. The
// returned func is idempotent.
func (e *emitter) Subscribe(fn func(operation.Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners == nil {
		e.listeners = make(map[int]func(operation.Event))
	}
	e.seq++
	id := e.seq
	e.listeners[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

func (e *emitter) emit(ev operation.Event) {
	e.mu.Lock()
	fns := make([]func(operation.Event), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		e.invoke(fn, ev)
	}
}

func (e *emitter) invoke(fn func(operation.Event), ev operation.Event) {
	defer func() {
		if r := recover(); r != nil && e.logger != nil {
			e.logger.Error("operation listener panicked", "panic", r, "operation", ev.Operation.ID)
		}
	}()
	fn(ev)
}

func (e *emitter) dropAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = nil
}
