// Package protocol defines the named message contract between the inspection
// core and a remote inspector: outbound events and inbound control messages,
// carried as a small type-plus-payload envelope.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"gqlscope/internal/cache"
	"gqlscope/internal/operation"
	"gqlscope/internal/schema"
)

// Outbound message types, core -> inspector.
const (
	TypeOperationStart    = "operation-start"
	TypeOperationUpdate   = "operation-update"
	TypeOperationComplete = "operation-complete"
	TypeOperationError    = "operation-error"
	TypeCacheSnapshot     = "cache-snapshot"
	TypeCacheUpdate       = "cache-update"
	TypeCacheInvalidate   = "cache-invalidate"
	TypeSchemaLoaded      = "schema-loaded"
	TypeStats             = "stats"
	TypeAck               = "ack"
)

// Inbound control message types, inspector -> core.
const (
	ControlEnable        = "graphql-enable"
	ControlDisable       = "graphql-disable"
	ControlCacheSnapshot = "get-cache-snapshot"
	ControlSchema        = "get-schema"
	ControlClear         = "clear-operations"
	ControlStats         = "get-stats"
)

// Message is the wire envelope.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OperationStartPayload carries the full operation at start time.
type OperationStartPayload struct {
	Operation operation.Operation `json:"operation"`
}

// OperationCompletePayload carries a successful terminal transition.
type OperationCompletePayload struct {
	ID          string `json:"id"`
	Data        any    `json:"data,omitempty"`
	DurationMS  int64  `json:"duration"`
	Approximate bool   `json:"approximate,omitempty"`
	FromCache   bool   `json:"fromCache,omitempty"`
}

// OperationErrorPayload carries a failed terminal transition.
type OperationErrorPayload struct {
	ID         string                 `json:"id"`
	Error      *operation.ErrorDetail `json:"error"`
	DurationMS int64                  `json:"duration"`
}

// CacheSnapshotPayload carries a whole-cache enumeration.
type CacheSnapshotPayload struct {
	Entries []cache.Entry `json:"entries"`
	TakenAt time.Time     `json:"takenAt"`
}

// CacheUpdatePayload carries one changed entry.
type CacheUpdatePayload struct {
	Entry cache.Entry `json:"entry"`
}

// CacheInvalidatePayload names removed keys.
type CacheInvalidatePayload struct {
	Keys []string `json:"keys"`
}

// SchemaLoadedPayload carries the flattened catalogue.
type SchemaLoadedPayload struct {
	Schema *schema.Schema `json:"schema"`
}

// StatsPayload carries tracker counters.
type StatsPayload struct {
	Stats map[string]int64 `json:"stats"`
}

// AckPayload acknowledges a control message that needs no data reply.
type AckPayload struct {
	Control string `json:"control"`
}

// Encode wraps a typed payload into the envelope.
func Encode(msgType string, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: msgType}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("protocol: encode %s: %w", msgType, err)
	}
	return Message{Type: msgType, Payload: raw}, nil
}

// FromEvent converts a normalized lifecycle event into its wire message.
func FromEvent(ev operation.Event) (Message, error) {
	switch ev.Type {
	case operation.EventStarted:
		return Encode(TypeOperationStart, OperationStartPayload{Operation: ev.Operation})
	case operation.EventCompleted:
		return Encode(TypeOperationComplete, OperationCompletePayload{
			ID:          ev.Operation.ID,
			Data:        ev.Operation.Data,
			DurationMS:  durationMS(ev.Operation.Duration),
			Approximate: ev.Operation.Approximate,
			FromCache:   ev.Operation.FromCache,
		})
	case operation.EventFailed:
		return Encode(TypeOperationError, OperationErrorPayload{
			ID:         ev.Operation.ID,
			Error:      ev.Operation.Err,
			DurationMS: durationMS(ev.Operation.Duration),
		})
	default:
		return Message{}, fmt.Errorf("protocol: unknown event type %q", ev.Type)
	}
}

func durationMS(d *time.Duration) int64 {
	if d == nil {
		return 0
	}
	return d.Milliseconds()
}
