// Package metrics collects in-process counters for the inspection core.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector counts tracker and bridge activity for one inspector instance.
type Collector struct {
	eventsEmitted    atomic.Int64
	startsSuppressed atomic.Int64
	pollErrors       atomic.Int64
	controlMessages  atomic.Int64

	// Per operation kind counters
	kindCounts map[string]*atomic.Int64
	kindMu     sync.RWMutex

	startTime time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		kindCounts: make(map[string]*atomic.Int64),
		startTime:  time.Now(),
	}
}

// RecordEvent counts one forwarded lifecycle event for an operation kind.
func (c *Collector) RecordEvent(kind string) {
	c.eventsEmitted.Add(1)

	c.kindMu.Lock()
	if _, ok := c.kindCounts[kind]; !ok {
		c.kindCounts[kind] = &atomic.Int64{}
	}
	c.kindCounts[kind].Add(1)
	c.kindMu.Unlock()
}

// RecordSuppressed counts a start event dropped while recording was paused.
func (c *Collector) RecordSuppressed() {
	c.startsSuppressed.Add(1)
}

// RecordPollError counts a failed observation cycle.
func (c *Collector) RecordPollError() {
	c.pollErrors.Add(1)
}

// RecordControl counts one handled inbound control message.
func (c *Collector) RecordControl() {
	c.controlMessages.Add(1)
}

// Snapshot returns the current counter values.
func (c *Collector) Snapshot() map[string]int64 {
	out := map[string]int64{
		"events_emitted":    c.eventsEmitted.Load(),
		"starts_suppressed": c.startsSuppressed.Load(),
		"poll_errors":       c.pollErrors.Load(),
		"control_messages":  c.controlMessages.Load(),
		"uptime_seconds":    int64(time.Since(c.startTime).Seconds()),
	}
	c.kindMu.RLock()
	for kind, counter := range c.kindCounts {
		out["events_"+kind] = counter.Load()
	}
	c.kindMu.RUnlock()
	return out
}
