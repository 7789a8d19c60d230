package track

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gqlscope/internal/operation"
)

// QueryState is one enumeration of a client-internal query as of a sweep.
// Key is the client's own registry key; it is stable for the life of the
// registered query but is not an operation identity.
type QueryState struct {
	Key       string
	Document  string
	Variables map[string]any
	InFlight  bool
	Data      any
	Errors    []operation.ErrorDetail
}

// MutationState is one slot of the client's append-only mutation history.
// Mutations are identified by their position in that history.
type MutationState struct {
	Document  string
	Variables map[string]any
	Loading   bool
	Data      any
	Errors    []operation.ErrorDetail
}

// Probe enumerates a client's internal operation registries. Implementations
// must be read-only over client state. A returned error (or panic) means "no
// observations this cycle" and must not poison later sweeps.
type Probe interface {
	Queries() ([]QueryState, error)
	Mutations() ([]MutationState, error)
}

type trackedQuery struct {
	id          string // empty until an identity has been minted
	name        string
	kind        operation.Kind
	document    string
	variables   map[string]any
	inFlight    bool
	startedAt   time.Time
	fingerprint string
}

type trackedMutation struct {
	id        string
	settled   bool
	startedAt time.Time
}

// Poller implements the polling strategy: a fixed-interval sweep over the
// probe's enumerations, diffed against the previous sweep to infer lifecycle
// transitions. Each sweep is one synchronous pass; sweeps never overlap.
type Poller struct {
	probe  Probe
	opts   Options
	logger *slog.Logger
	minter operation.Minter
	emitter

	mu        sync.Mutex
	queries   map[string]*trackedQuery
	mutations []*trackedMutation

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
	running  bool
}

// NewPoller builds a polling tracker over the given probe. The zero Options
// value gets defaults applied.
func NewPoller(probe Probe, opts Options, logger *slog.Logger) *Poller {
	opts.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	p := &Poller{
		probe:   probe,
		opts:    opts,
		logger:  logger,
		queries: make(map[string]*trackedQuery),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	p.emitter.logger = logger
	return p
}

// Start launches the recurring sweep. Calling Start twice is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.opts.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				p.Sweep()
			}
		}
	}()
}

// Stop halts the recurring sweep and drops all listeners. Operations that
// emitted a start but no terminal before Stop simply never complete. Safe to
// call multiple times and without a prior Start.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if running {
		<-p.done
	}
	p.dropAll()
}

// Sweep runs one synchronous observation cycle. Any failure inspecting the
// client (error or panic from the probe) is logged and yields no events;
// tracking state is left untouched so the next sweep resumes cleanly.
func (p *Poller) Sweep() {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("poll sweep panicked inspecting client internals", "panic", r)
		}
	}()

	queries, err := p.probe.Queries()
	if err != nil {
		p.logger.Warn("poll sweep: enumerating queries failed", "error", err)
		return
	}
	mutations, err := p.probe.Mutations()
	if err != nil {
		p.logger.Warn("poll sweep: enumerating mutations failed", "error", err)
		return
	}

	p.mu.Lock()
	events := append(p.diffQueries(queries), p.diffMutations(mutations)...)
	p.mu.Unlock()

	for _, ev := range events {
		p.emit(ev)
	}
}

func (p *Poller) diffQueries(states []QueryState) []operation.Event {
	var events []operation.Event
	seen := make(map[string]struct{}, len(states))

	for _, st := range states {
		seen[st.Key] = struct{}{}
		tq, tracked := p.queries[st.Key]
		if !tracked {
			events = append(events, p.observeNewQuery(st)...)
			continue
		}

		switch {
		case tq.inFlight && !st.InFlight:
			// Loading settled: one terminal, duration measured from the
			// recorded start, payload from the freshest live result.
			events = append(events, p.settleQuery(tq, st))

		case !tq.inFlight && st.InFlight:
			// Refetch: a settled query went back in flight. The timeline
			// treats this as a brand new operation with a new identity.
			tq.id = p.minter.Mint()
			tq.inFlight = true
			tq.startedAt = time.Now()
			tq.variables = st.Variables
			events = append(events, operation.Event{
				Type:      operation.EventStarted,
				Operation: p.buildOperation(tq, operation.StatusLoading),
			})

		case !tq.inFlight && !st.InFlight:
			// Still settled. A changed data value with no loading phase is a
			// silent cache update; surface it as its own operation with an
			// estimated duration.
			if fp := fingerprint(st.Data, st.Errors); fp != tq.fingerprint {
				tq.fingerprint = fp
				events = append(events, p.syntheticPair(tq, st)...)
			}
		}
	}

	// Queries gone from the enumeration are dropped without a forced terminal.
	for key := range p.queries {
		if _, ok := seen[key]; !ok {
			delete(p.queries, key)
		}
	}
	return events
}

// observeNewQuery registers a first-seen query. Only queries currently in
// flight get a start event; pre-existing settled queries are registered
// silently so the timeline is not back-filled with fabricated history.
func (p *Poller) observeNewQuery(st QueryState) []operation.Event {
	name, kind := operation.Describe(st.Document)
	tq := &trackedQuery{
		name:      name,
		kind:      kind,
		document:  st.Document,
		variables: st.Variables,
	}
	p.queries[st.Key] = tq

	if !st.InFlight {
		tq.fingerprint = fingerprint(st.Data, st.Errors)
		return nil
	}

	tq.id = p.minter.Mint()
	tq.inFlight = true
	tq.startedAt = time.Now()
	return []operation.Event{{
		Type:      operation.EventStarted,
		Operation: p.buildOperation(tq, operation.StatusLoading),
	}}
}

func (p *Poller) settleQuery(tq *trackedQuery, st QueryState) operation.Event {
	tq.inFlight = false
	tq.fingerprint = fingerprint(st.Data, st.Errors)
	duration := time.Since(tq.startedAt)

	op := p.buildOperation(tq, operation.StatusSuccess)
	op.Duration = &duration
	if len(st.Errors) > 0 {
		op.Status = operation.StatusError
		op.Err = &st.Errors[0]
		return operation.Event{Type: operation.EventFailed, Operation: op}
	}
	if p.opts.IncludeResponseData {
		op.Data = st.Data
	}
	return operation.Event{Type: operation.EventCompleted, Operation: op}
}

// syntheticPair reports a silent data change as a distinct operation. There
// is no timing signal for these, so the configured estimate is used and the
// operation is flagged approximate.
func (p *Poller) syntheticPair(tq *trackedQuery, st QueryState) []operation.Event {
	tq.id = p.minter.Mint()
	tq.startedAt = time.Now()

	start := p.buildOperation(tq, operation.StatusLoading)
	start.FromCache = true

	terminal := p.buildOperation(tq, operation.StatusSuccess)
	duration := p.opts.SyntheticDuration
	terminal.Duration = &duration
	terminal.Approximate = true
	terminal.FromCache = true
	if len(st.Errors) > 0 {
		terminal.Status = operation.StatusError
		terminal.Err = &st.Errors[0]
		return []operation.Event{
			{Type: operation.EventStarted, Operation: start},
			{Type: operation.EventFailed, Operation: terminal},
		}
	}
	if p.opts.IncludeResponseData {
		terminal.Data = st.Data
	}
	return []operation.Event{
		{Type: operation.EventStarted, Operation: start},
		{Type: operation.EventCompleted, Operation: terminal},
	}
}

// diffMutations walks the client's mutation history, which only grows, so
// positional index is a stable identity source. A mutation transitions at
// most once from loading to settled.
func (p *Poller) diffMutations(states []MutationState) []operation.Event {
	var events []operation.Event

	for i, st := range states {
		if i < len(p.mutations) {
			tm := p.mutations[i]
			if tm.settled || st.Loading {
				continue
			}
			tm.settled = true
			events = append(events, p.mutationTerminal(tm.id, st, time.Since(tm.startedAt), false))
			continue
		}

		// First sighting of this history slot.
		name, kind := operation.Describe(st.Document)
		tm := &trackedMutation{id: p.minter.Mint(), startedAt: time.Now()}
		p.mutations = append(p.mutations, tm)

		op := operation.Operation{
			ID:        tm.id,
			Name:      name,
			Kind:      kind,
			Document:  st.Document,
			Status:    operation.StatusLoading,
			StartedAt: tm.startedAt,
		}
		if p.opts.IncludeVariables {
			op.Variables = st.Variables
		}
		events = append(events, operation.Event{Type: operation.EventStarted, Operation: op})

		if !st.Loading {
			// Already settled when first seen: emit its pair once, with an
			// estimated duration since the real latency was never observed.
			tm.settled = true
			events = append(events, p.mutationTerminal(tm.id, st, p.opts.SyntheticDuration, true))
		}
	}
	return events
}

func (p *Poller) mutationTerminal(id string, st MutationState, duration time.Duration, approximate bool) operation.Event {
	name, kind := operation.Describe(st.Document)
	op := operation.Operation{
		ID:          id,
		Name:        name,
		Kind:        kind,
		Document:    st.Document,
		StartedAt:   time.Now().Add(-duration),
		Duration:    &duration,
		Approximate: approximate,
	}
	if p.opts.IncludeVariables {
		op.Variables = st.Variables
	}
	if len(st.Errors) > 0 {
		op.Status = operation.StatusError
		op.Err = &st.Errors[0]
		return operation.Event{Type: operation.EventFailed, Operation: op}
	}
	op.Status = operation.StatusSuccess
	if p.opts.IncludeResponseData {
		op.Data = st.Data
	}
	return operation.Event{Type: operation.EventCompleted, Operation: op}
}

func (p *Poller) buildOperation(tq *trackedQuery, status operation.Status) operation.Operation {
	op := operation.Operation{
		ID:        tq.id,
		Name:      tq.name,
		Kind:      tq.kind,
		Document:  tq.document,
		Status:    status,
		StartedAt: tq.startedAt,
	}
	if p.opts.IncludeVariables {
		op.Variables = tq.variables
	}
	return op
}

// fingerprint produces a stable digest of a query's settled result so silent
// data changes are detectable across sweeps. encoding/json sorts map keys,
// which keeps the digest deterministic for equal values.
func fingerprint(data any, errs []operation.ErrorDetail) string {
	raw, err := json.Marshal(struct {
		Data   any                     `json:"d"`
		Errors []operation.ErrorDetail `json:"e"`
	}{data, errs})
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", data))
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8])
}
