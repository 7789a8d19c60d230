// Package operation defines the normalized model for one observed GraphQL
// operation execution and the lifecycle events the trackers emit for it.
package operation

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Kind classifies an operation by its GraphQL root.
type Kind string

const (
	KindQuery        Kind = "query"
	KindMutation     Kind = "mutation"
	KindSubscription Kind = "subscription"
)

// UnnamedLabel is used when no operation name can be derived from the document.
const UnnamedLabel = "(unnamed)"

// Status is the lifecycle phase of an operation. It only moves forward:
// pending/loading may become success or error; terminal states never change.
type Status string

const (
	StatusPending Status = "pending"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// CanTransition reports whether moving from s to next is a legal forward step.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusLoading || next.Terminal()
	case StatusLoading:
		return next.Terminal()
	default:
		return false
	}
}

// Location is a position inside the operation document an error refers to.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// ErrorDetail carries a GraphQL execution error in normalized form.
type ErrorDetail struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Operation is one observed execution of a query, mutation or subscription.
// ID is immutable once assigned; a re-execution (refetch) is a new Operation
// with a new ID, never a mutation of a terminal one.
type Operation struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Kind      Kind           `json:"operationType"`
	Document  string         `json:"document,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`
	Status    Status         `json:"status"`
	StartedAt time.Time      `json:"startedAt"`

	// Duration is set only once the operation reaches a terminal status.
	Duration *time.Duration `json:"duration,omitempty"`

	// Approximate marks durations that were estimated rather than measured,
	// e.g. for silent cache updates that never show a loading phase.
	Approximate bool `json:"approximate,omitempty"`

	Data      any          `json:"data,omitempty"`
	Err       *ErrorDetail `json:"error,omitempty"`
	FromCache bool         `json:"fromCache,omitempty"`
}

// EventType names a lifecycle transition.
type EventType string

const (
	EventStarted   EventType = "started"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// Event pairs a transition with the operation state at that moment. The
// Operation value is a snapshot owned by the consumer; trackers never mutate
// it after emission.
type Event struct {
	Type      EventType
	Operation Operation
}

// Minter generates operation identities. The identity combines a wall-clock
// millisecond timestamp with a process-wide generation counter so that rapid
// re-executions within the same millisecond still get distinct ids.
type Minter struct {
	gen atomic.Uint64
}

// Mint returns a fresh identity.
func (m *Minter) Mint() string {
	return fmt.Sprintf("op-%d-%d", time.Now().UnixMilli(), m.gen.Add(1))
}
