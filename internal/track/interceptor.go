package track

import (
	"log/slog"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"gqlscope/internal/operation"
)

// Interceptor implements the interception strategy: the host integration
// calls Begin when an operation enters the client's dispatch pipeline and
// exactly one of Finish or Fail when it settles. Every Begin is a distinct
// logical operation, even when the client collapses duplicate network calls.
type Interceptor struct {
	opts   Options
	logger *slog.Logger
	minter operation.Minter
	emitter

	// pending bounds memory under operation storms: adding beyond capacity
	// evicts the oldest unresolved entry, which then never emits a terminal.
	pending *lru.Cache[string, *Pending]
	evicted atomic.Int64
}

// Pending is the handle for one intercepted operation between its start and
// terminal hooks.
type Pending struct {
	op      operation.Operation
	started time.Time
	settled atomic.Bool
	evicted atomic.Bool
}

// ID returns the operation identity minted at interception time.
func (p *Pending) ID() string { return p.op.ID }

// NewInterceptor builds an interception tracker. The zero Options value gets
// defaults applied.
func NewInterceptor(opts Options, logger *slog.Logger) *Interceptor {
	opts.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	in := &Interceptor{opts: opts, logger: logger}
	in.emitter.logger = logger

	// Capacity is validated above zero by applyDefaults, so construction
	// cannot fail.
	in.pending, _ = lru.NewWithEvict(opts.MaxInFlight, func(_ string, p *Pending) {
		if !p.settled.Load() {
			p.evicted.Store(true)
			in.evicted.Add(1)
			logger.Warn("in-flight cap exceeded, evicting oldest unresolved operation",
				"operation", p.op.ID, "name", p.op.Name)
		}
	})
	return in
}

// Begin mints a fresh identity for an operation entering the pipeline and
// emits its start event.
func (in *Interceptor) Begin(document string, variables map[string]any) *Pending {
	name, kind := operation.Describe(document)
	op := operation.Operation{
		ID:        in.minter.Mint(),
		Name:      name,
		Kind:      kind,
		Document:  document,
		Status:    operation.StatusLoading,
		StartedAt: time.Now(),
	}
	if in.opts.IncludeVariables {
		op.Variables = variables
	}

	p := &Pending{op: op, started: op.StartedAt}
	in.pending.Add(op.ID, p)
	in.emit(operation.Event{Type: operation.EventStarted, Operation: op})
	return p
}

// Finish settles an intercepted operation with its result. Errors take
// precedence over data for status classification. Duration is the wall-clock
// time between Begin and Finish. At most one terminal event is emitted per
// identity; late or duplicate calls are ignored, as are calls for entries
// already evicted under the in-flight cap.
func (in *Interceptor) Finish(p *Pending, data any, errs []operation.ErrorDetail, fromCache bool) {
	if p == nil || !p.settled.CompareAndSwap(false, true) {
		return
	}
	in.pending.Remove(p.op.ID)
	if p.evicted.Load() {
		return
	}

	duration := time.Since(p.started)
	op := p.op
	op.Duration = &duration
	op.FromCache = fromCache
	if len(errs) > 0 {
		op.Status = operation.StatusError
		op.Err = &errs[0]
		in.emit(operation.Event{Type: operation.EventFailed, Operation: op})
		return
	}
	op.Status = operation.StatusSuccess
	if in.opts.IncludeResponseData {
		op.Data = data
	}
	in.emit(operation.Event{Type: operation.EventCompleted, Operation: op})
}

// Fail settles an intercepted operation with a transport-level error.
func (in *Interceptor) Fail(p *Pending, err error) {
	if err == nil {
		in.Finish(p, nil, nil, false)
		return
	}
	in.Finish(p, nil, []operation.ErrorDetail{{Message: err.Error()}}, false)
}

// InFlight reports the number of unresolved tracked operations.
func (in *Interceptor) InFlight() int { return in.pending.Len() }

// Evicted reports how many unresolved operations were dropped by the cap.
func (in *Interceptor) Evicted() int64 { return in.evicted.Load() }

// Close drops all listeners and pending entries. Operations that started but
// never settled simply never complete; no terminal is synthesized.
func (in *Interceptor) Close() {
	in.dropAll()
	// Settle entries first so the purge below is not miscounted as cap
	// evictions.
	for _, key := range in.pending.Keys() {
		if p, ok := in.pending.Peek(key); ok {
			p.settled.Store(true)
		}
	}
	in.pending.Purge()
}
