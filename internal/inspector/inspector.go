// Package inspector orchestrates the lifecycle of one inspected client:
// adapter selection, recording state, and the outbound event stream.
package inspector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gqlscope/internal/adapter"
	"gqlscope/internal/adapter/builtin"
	"gqlscope/internal/audit"
	"gqlscope/internal/cache"
	"gqlscope/internal/metrics"
	"gqlscope/internal/operation"
	"gqlscope/internal/protocol"
	"gqlscope/internal/redact"
)

// State of the orchestrator.
type State string

const (
	StateDetached  State = "detached"
	StateRecording State = "recording"
	StatePaused    State = "paused"
)

// Sink receives outbound event-channel messages.
type Sink interface {
	Publish(protocol.Message)
}

// AttachOptions selects and configures the integration for one client.
type AttachOptions struct {
	// Client is the host client instance, used when ClientType is "builtin".
	Client any
	// ClientType is "builtin" or "custom".
	ClientType string
	// Adapter supplies the integration when ClientType is "custom".
	Adapter adapter.Adapter

	// IncludeVariables and IncludeResponseData default to true when nil.
	IncludeVariables    *bool
	IncludeResponseData *bool
	MaxInFlight         int
	PollInterval        time.Duration
	SyntheticDuration   time.Duration
}

// Inspector owns one attached client. Zero value is not usable; use New.
type Inspector struct {
	logger  *slog.Logger
	sink    Sink
	masker  *redact.Masker
	stats   *metrics.Collector
	trail   *audit.Trail
	session string

	mu          sync.Mutex
	state       State
	adapter     adapter.Adapter
	unsubscribe func()
	cacheUnsub  func()
	startedIDs  map[string]struct{}
}

// New creates a detached inspector publishing to sink.
func New(sink Sink, masker *redact.Masker, logger *slog.Logger) *Inspector {
	if logger == nil {
		logger = slog.Default()
	}
	if masker == nil {
		masker = redact.NewMasker()
	}
	return &Inspector{
		logger:     logger.With("component", "inspector"),
		sink:       sink,
		masker:     masker,
		stats:      metrics.NewCollector(),
		state:      StateDetached,
		startedIDs: make(map[string]struct{}),
	}
}

// SetTrail enables audit recording of attach, detach and control events.
// session identifies this inspector run.
func (i *Inspector) SetTrail(trail *audit.Trail, session string) {
	i.trail = trail
	i.session = session
}

// State returns the current orchestrator state.
func (i *Inspector) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Stats returns the tracker counters.
func (i *Inspector) Stats() map[string]int64 {
	return i.stats.Snapshot()
}

// Attach wires an integration to the client and starts recording.
// Configuration mistakes (unknown client type, missing custom adapter,
// unsupported client shape) are reported through the log and leave the
// inspector detached; Attach still returns nil for those.
func (i *Inspector) Attach(opts AttachOptions) error {
	if i.State() != StateDetached {
		i.logger.Info("re-attaching, detaching previous client first")
	}
	i.Detach()

	i.mu.Lock()
	defer i.mu.Unlock()

	var integ adapter.Adapter
	switch opts.ClientType {
	case "builtin":
		integ = builtin.New(opts.Client, i.adapterConfig(opts), i.logger)
	case "custom":
		if opts.Adapter == nil {
			i.logger.Error("custom client type requires an adapter, staying detached")
			i.recordTrail("attach", opts.ClientType, false)
			return nil
		}
		integ = opts.Adapter
	default:
		i.logger.Error("unknown client type, staying detached", "clientType", opts.ClientType)
		i.recordTrail("attach", opts.ClientType, false)
		return nil
	}

	if err := integ.Initialize(); err != nil {
		i.logger.Error("integration failed to initialize, staying detached", "error", err)
		i.recordTrail("attach", opts.ClientType, false)
		return nil
	}

	unsubscribe, err := integ.OnOperation(i.handleEvent)
	if err != nil {
		i.logger.Error("integration rejected the event subscription, staying detached", "error", err)
		_ = integ.Cleanup()
		i.recordTrail("attach", opts.ClientType, false)
		return nil
	}

	i.adapter = integ
	i.unsubscribe = unsubscribe
	if observer, ok := integ.(adapter.CacheObserver); ok {
		i.cacheUnsub = observer.OnCacheChange(i.handleCacheChange)
	}
	i.state = StateRecording
	i.logger.Info("client attached", "clientType", opts.ClientType)
	i.recordTrail("attach", opts.ClientType, true)
	return nil
}

func (i *Inspector) adapterConfig(opts AttachOptions) adapter.Config {
	cfg := adapter.DefaultConfig()
	if opts.IncludeVariables != nil {
		cfg.IncludeVariables = *opts.IncludeVariables
	}
	if opts.IncludeResponseData != nil {
		cfg.IncludeResponseData = *opts.IncludeResponseData
	}
	cfg.MaxInFlight = opts.MaxInFlight
	cfg.PollInterval = opts.PollInterval
	cfg.SyntheticDuration = opts.SyntheticDuration
	return cfg
}

// Detach tears down the current integration. Idempotent and safe before
// any Attach. Operations still in flight are abandoned without a
// synthesized terminal.
func (i *Inspector) Detach() {
	// Teardown happens outside the state lock: stopping a poller waits for
	// an in-flight sweep, and that sweep may be inside handleEvent waiting
	// for the same lock.
	i.mu.Lock()
	if i.state == StateDetached {
		i.mu.Unlock()
		return
	}
	unsubscribe := i.unsubscribe
	cacheUnsub := i.cacheUnsub
	integ := i.adapter
	i.unsubscribe = nil
	i.cacheUnsub = nil
	i.adapter = nil
	i.startedIDs = make(map[string]struct{})
	i.state = StateDetached
	i.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cacheUnsub != nil {
		cacheUnsub()
	}
	if integ != nil {
		if err := integ.Cleanup(); err != nil {
			i.logger.Warn("integration cleanup failed", "error", err)
		}
	}
	i.logger.Info("client detached")
	i.recordTrail("detach", "", true)
}

// handleEvent forwards one normalized lifecycle event, applying the
// recording state and variable redaction.
func (i *Inspector) handleEvent(ev operation.Event) {
	i.mu.Lock()
	switch ev.Type {
	case operation.EventStarted:
		if i.state == StatePaused {
			i.stats.RecordSuppressed()
			i.mu.Unlock()
			return
		}
		i.startedIDs[ev.Operation.ID] = struct{}{}
	case operation.EventCompleted, operation.EventFailed:
		_, started := i.startedIDs[ev.Operation.ID]
		delete(i.startedIDs, ev.Operation.ID)
		// A terminal whose start was suppressed would orphan the
		// consumer's view, so it is dropped with the start.
		if i.state == StatePaused && !started {
			i.mu.Unlock()
			return
		}
	}
	i.mu.Unlock()

	ev.Operation.Variables = i.masker.MaskVariables(ev.Operation.Variables)

	msg, err := protocol.FromEvent(ev)
	if err != nil {
		i.logger.Warn("unpublishable event", "error", err)
		return
	}
	i.stats.RecordEvent(string(ev.Operation.Kind))
	i.sink.Publish(msg)
}

func (i *Inspector) handleCacheChange(entry cache.Entry) {
	msg, err := protocol.Encode(protocol.TypeCacheUpdate, protocol.CacheUpdatePayload{Entry: entry})
	if err != nil {
		i.logger.Warn("unpublishable cache update", "error", err)
		return
	}
	i.sink.Publish(msg)
}

// HandleControl processes one inbound control message. Snapshot and schema
// requests are served regardless of the recording state.
func (i *Inspector) HandleControl(msg protocol.Message, reply func(protocol.Message) error) {
	i.stats.RecordControl()
	i.recordTrail("control", msg.Type, true)

	switch msg.Type {
	case protocol.ControlEnable:
		i.setRecording(StateRecording)
		i.ack(msg.Type, reply)
	case protocol.ControlDisable:
		i.setRecording(StatePaused)
		i.ack(msg.Type, reply)
	case protocol.ControlCacheSnapshot:
		i.replyCacheSnapshot(reply)
	case protocol.ControlSchema:
		go i.replySchema(reply)
	case protocol.ControlClear:
		// Retention lives with the consumer; acknowledge and move on.
		i.ack(msg.Type, reply)
	case protocol.ControlStats:
		i.reply(protocol.TypeStats, protocol.StatsPayload{Stats: i.stats.Snapshot()}, reply)
	default:
		i.logger.Warn("unknown control message", "type", msg.Type)
	}
}

func (i *Inspector) setRecording(next State) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state == StateDetached {
		i.logger.Warn("recording toggle ignored while detached")
		return
	}
	i.state = next
	i.logger.Info("recording state changed", "state", next)
}

func (i *Inspector) replyCacheSnapshot(reply func(protocol.Message) error) {
	i.mu.Lock()
	integ := i.adapter
	i.mu.Unlock()

	entries := []cache.Entry{}
	if integ != nil {
		entries = integ.CacheSnapshot()
	}
	i.reply(protocol.TypeCacheSnapshot, protocol.CacheSnapshotPayload{
		Entries: entries,
		TakenAt: time.Now(),
	}, reply)
}

func (i *Inspector) replySchema(reply func(protocol.Message) error) {
	i.mu.Lock()
	integ := i.adapter
	i.mu.Unlock()
	if integ == nil {
		i.logger.Warn("schema requested while detached")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sch, err := integ.Schema(ctx)
	if err != nil {
		i.logger.Warn("schema introspection failed", "error", err)
		return
	}
	i.reply(protocol.TypeSchemaLoaded, protocol.SchemaLoadedPayload{Schema: sch}, reply)
}

func (i *Inspector) ack(control string, reply func(protocol.Message) error) {
	i.reply(protocol.TypeAck, protocol.AckPayload{Control: control}, reply)
}

func (i *Inspector) reply(msgType string, payload any, reply func(protocol.Message) error) {
	msg, err := protocol.Encode(msgType, payload)
	if err != nil {
		i.logger.Warn("control reply encode failed", "type", msgType, "error", err)
		return
	}
	if err := reply(msg); err != nil {
		i.logger.Warn("control reply write failed", "type", msgType, "error", err)
	}
}

func (i *Inspector) recordTrail(eventType, detail string, success bool) {
	if i.trail == nil {
		return
	}
	i.trail.Record(i.session, eventType, detail, "", success)
}
