// Package builtin is the built-in integration for reference-style GraphQL
// clients. Access to client internals goes through an ordered list of shape
// probes, newest supported shape first, so version drift in the host client
// degrades to "no data" instead of crashing the host.
package builtin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gqlscope/internal/adapter"
	"gqlscope/internal/cache"
	"gqlscope/internal/operation"
	"gqlscope/internal/refclient"
	"gqlscope/internal/schema"
	"gqlscope/internal/track"
)

// Adapter observes one host client instance. Each instance owns its own
// tracker; nothing here is process-global.
type Adapter struct {
	client any
	cfg    adapter.Config
	logger *slog.Logger

	mu          sync.Mutex
	initialized bool
	acc         accessor
	interceptor *track.Interceptor
	poller      *track.Poller
	removeHook  func()
}

// New builds the adapter around an opaque client value. The client's shape
// is not validated until Initialize.
func New(client any, cfg adapter.Config, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{client: client, cfg: cfg, logger: logger}
}

var _ adapter.Adapter = (*Adapter)(nil)

// Initialize probes the client shape and starts the matching observation
// strategy: interception when the client exposes a pipeline hook, polling
// otherwise. Idempotent.
func (a *Adapter) Initialize() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.initialized {
		return nil
	}

	acc, probeName := probe(a.client)
	if acc == nil {
		return fmt.Errorf("builtin: client %T matches no supported shape", a.client)
	}
	a.acc = acc
	a.logger.Debug("client shape matched", "probe", probeName)

	opts := track.Options{
		IncludeVariables:    a.cfg.IncludeVariables,
		IncludeResponseData: a.cfg.IncludeResponseData,
		MaxInFlight:         a.cfg.MaxInFlight,
		PollInterval:        a.cfg.PollInterval,
		SyntheticDuration:   a.cfg.SyntheticDuration,
	}

	if hookable, ok := acc.(hookAccessor); ok {
		a.interceptor = track.NewInterceptor(opts, a.logger)
		a.removeHook = hookable.installHook(a.interceptor)
		a.logger.Info("tracking via interception hook")
	} else {
		a.poller = track.NewPoller(&probeSource{acc: acc}, opts, a.logger)
		a.poller.Start()
		a.logger.Info("tracking via polling sweep", "interval", opts.PollInterval)
	}

	a.initialized = true
	return nil
}

// Cleanup tears the integration down. Idempotent and safe without a prior
// Initialize. Operations that started but never settled are abandoned; no
// terminal is synthesized for them.
func (a *Adapter) Cleanup() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.removeHook != nil {
		a.removeHook()
		a.removeHook = nil
	}
	if a.interceptor != nil {
		a.interceptor.Close()
		a.interceptor = nil
	}
	if a.poller != nil {
		a.poller.Stop()
		a.poller = nil
	}
	a.acc = nil
	a.initialized = false
	return nil
}

// CacheSnapshot enumerates the client cache. Always returns; failure means
// an empty list.
func (a *Adapter) CacheSnapshot() []cache.Entry {
	a.mu.Lock()
	acc := a.acc
	a.mu.Unlock()
	if acc == nil {
		return []cache.Entry{}
	}

	store, err := acc.store()
	if err != nil {
		a.logger.Warn("cache snapshot failed", "error", err)
		return []cache.Entry{}
	}
	return cache.Snapshot(store)
}

// Schema introspects through the client transport, forcing a round-trip.
// Any failure resolves to the empty catalogue; the error surfaces only here,
// in the log.
func (a *Adapter) Schema(ctx context.Context) (*schema.Schema, error) {
	a.mu.Lock()
	acc := a.acc
	a.mu.Unlock()
	if acc == nil {
		return schema.Empty(), nil
	}

	exec, ok := acc.(executeAccessor)
	if !ok {
		a.logger.Warn("client shape has no transport access, schema unavailable")
		return schema.Empty(), nil
	}

	raw, err := exec.execute(ctx, schema.IntrospectionQuery)
	if err != nil {
		a.logger.Warn("introspection request failed", "error", err)
		return schema.Empty(), nil
	}
	sch, err := schema.Normalize(raw)
	if err != nil {
		a.logger.Warn("introspection response unusable", "error", err)
		return schema.Empty(), nil
	}
	return sch, nil
}

// OnOperation subscribes to normalized lifecycle events from whichever
// strategy is active.
func (a *Adapter) OnOperation(fn func(operation.Event)) (func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case a.interceptor != nil:
		return a.interceptor.Subscribe(fn), nil
	case a.poller != nil:
		return a.poller.Subscribe(fn), nil
	default:
		return nil, fmt.Errorf("builtin: adapter not initialized")
	}
}

// probeSource bridges an accessor into the poller's Probe contract.
type probeSource struct {
	acc accessor
}

func (s *probeSource) Queries() ([]track.QueryState, error) { return s.acc.queries() }

func (s *probeSource) Mutations() ([]track.MutationState, error) { return s.acc.mutations() }

// interceptHook adapts the interception tracker onto the client's Hook
// contract. The token round-trip keeps each hook invocation tied to the
// identity minted at its start.
type interceptHook struct {
	in *track.Interceptor
}

func (h *interceptHook) OperationStarted(document string, variables map[string]any) any {
	return h.in.Begin(document, variables)
}

func (h *interceptHook) OperationFinished(token any, data any, errs []refclient.Error, fromCache bool) {
	p, ok := token.(*track.Pending)
	if !ok {
		return
	}
	h.in.Finish(p, data, convertErrors(errs), fromCache)
}

func (h *interceptHook) OperationFailed(token any, err error) {
	p, ok := token.(*track.Pending)
	if !ok {
		return
	}
	h.in.Fail(p, err)
}

func convertErrors(errs []refclient.Error) []operation.ErrorDetail {
	if len(errs) == 0 {
		return nil
	}
	out := make([]operation.ErrorDetail, len(errs))
	for i, e := range errs {
		detail := operation.ErrorDetail{
			Message:    e.Message,
			Path:       e.Path,
			Extensions: e.Extensions,
		}
		for _, loc := range e.Locations {
			detail.Locations = append(detail.Locations, operation.Location{Line: loc.Line, Column: loc.Column})
		}
		out[i] = detail
	}
	return out
}
