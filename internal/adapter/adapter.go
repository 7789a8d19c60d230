// Package adapter defines the pluggable contract between the inspection core
// and one concrete GraphQL client integration. The orchestrator depends only
// on this contract, never on a concrete client type.
package adapter

import (
	"context"
	"time"

	"gqlscope/internal/cache"
	"gqlscope/internal/operation"
	"gqlscope/internal/schema"
)

// Adapter is the capability interface an integration must satisfy.
//
// Initialize and Cleanup are idempotent; Cleanup is safe without a prior
// Initialize. CacheSnapshot is synchronous, side-effect-free and always
// returns (empty on failure). Schema resolves to an empty catalogue on
// failure rather than returning an error the caller must branch on;
// introspection failures surface only through the integration's logger.
type Adapter interface {
	Initialize() error
	Cleanup() error
	CacheSnapshot() []cache.Entry
	Schema(ctx context.Context) (*schema.Schema, error)
	OnOperation(fn func(operation.Event)) (unsubscribe func(), err error)
}

// CacheObserver is an optional capability for integrations that can detect
// individual cache writes rather than only whole snapshots.
type CacheObserver interface {
	OnCacheChange(fn func(cache.Entry)) (unsubscribe func())
}

// Config is accepted at integration construction time.
type Config struct {
	// IncludeVariables captures operation variables when true.
	IncludeVariables bool
	// IncludeResponseData captures result payloads when true.
	IncludeResponseData bool
	// MaxInFlight caps retained unresolved tracking entries.
	MaxInFlight int
	// PollInterval applies to polling-based integrations only.
	PollInterval time.Duration
	// SyntheticDuration is the estimate assigned to operations with no real
	// timing signal.
	SyntheticDuration time.Duration
}

// DefaultConfig captures variables and payloads and leaves tracker limits to
// their defaults.
func DefaultConfig() Config {
	return Config{IncludeVariables: true, IncludeResponseData: true}
}
