// Package track reconstructs GraphQL operation lifecycles from low-level
// observations of a host client, via either a direct interception hook or a
// periodic polling sweep over the client's internal registries.
package track

import "time"

// Options configures either tracking strategy.
type Options struct {
	// IncludeVariables controls whether operation variables are captured.
	IncludeVariables bool
	// IncludeResponseData controls whether result payloads are captured.
	IncludeResponseData bool
	// MaxInFlight caps simultaneously tracked unresolved operations for the
	// interception strategy; the oldest unresolved entry is evicted beyond it.
	MaxInFlight int
	// PollInterval is the sweep period for the polling strategy.
	PollInterval time.Duration
	// SyntheticDuration is the estimated duration assigned to operations that
	// never show a loading phase (silent cache updates). It is an estimate
	// with no ground truth; emitted operations carry an approximate flag.
	SyntheticDuration time.Duration
}

// Defaults for unset option fields.
const (
	DefaultMaxInFlight       = 1000
	DefaultPollInterval      = 500 * time.Millisecond
	DefaultSyntheticDuration = 10 * time.Millisecond
)

// DefaultOptions returns the options used when a caller passes the zero value.
func DefaultOptions() Options {
	return Options{
		IncludeVariables:    true,
		IncludeResponseData: true,
		MaxInFlight:         DefaultMaxInFlight,
		PollInterval:        DefaultPollInterval,
		SyntheticDuration:   DefaultSyntheticDuration,
	}
}

func (o *Options) applyDefaults() {
	if o.MaxInFlight <= 0 {
		o.MaxInFlight = DefaultMaxInFlight
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.SyntheticDuration <= 0 {
		o.SyntheticDuration = DefaultSyntheticDuration
	}
}
