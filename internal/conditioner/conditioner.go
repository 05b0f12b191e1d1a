// Package conditioner bounds the rate of raw viewer events reaching the
// engine. A per-kind throttle drops all but the first event in its
// interval, then a probabilistic sampler accepts a fraction of the
// remainder, shrinking that fraction adaptively while the observed input
// rate exceeds the configured ceiling. The trade-off is deliberate:
// bursts are undersampled rather than queued.
package conditioner

import (
	"math/rand"
	"sync"
	"time"

	"github.com/jonesrussell/viewtrace/internal/domain"
)

// Options holds throttle and sampler tunables.
type Options struct {
	// ThrottleInterval drops all but the first event of a kind within the
	// interval. Zero disables throttling.
	ThrottleInterval time.Duration
	// SampleRate is the base accept probability.
	SampleRate float64
	// SampleFloor is the minimum accept probability under sustained load.
	SampleFloor float64
	// MaxEventsPerSecond is the observed-rate ceiling above which the
	// accept probability is shrunk.
	MaxEventsPerSecond int
	// RateWindow is the rolling window over which the rate is counted and
	// the accept probability reset.
	RateWindow time.Duration

	// RandFloat overrides the random source; nil uses math/rand. Tests
	// inject a deterministic source here.
	RandFloat func() float64
}

// Conditioner composes the throttle and the adaptive sampler. Decisions
// are driven by event timestamps, not wall time, so replayed streams
// condition identically.
type Conditioner struct {
	mu   sync.Mutex
	opts Options

	lastPass map[domain.EventType]int64

	probability float64
	windowStart int64
	windowCount int
}

// New creates a Conditioner with the given options.
func New(opts Options) *Conditioner {
	if opts.RandFloat == nil {
		opts.RandFloat = rand.Float64
	}
	return &Conditioner{
		opts:        opts,
		lastPass:    make(map[domain.EventType]int64),
		probability: opts.SampleRate,
	}
}

// Allow reports whether an event of the given kind, stamped at
// timestampMs, should reach the engine.
func (c *Conditioner) Allow(kind domain.EventType, timestampMs int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.observe(timestampMs)

	if !c.throttlePass(kind, timestampMs) {
		return false
	}

	return c.opts.RandFloat() < c.probability
}

// Probability returns the current accept probability, for reporting.
func (c *Conditioner) Probability() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.probability
}

// observe counts the arrival and, at each rolling-window boundary, adapts
// the accept probability from the observed rate before resetting the
// counter. The probability never exceeds the base rate and never drops
// below the floor.
func (c *Conditioner) observe(timestampMs int64) {
	windowMs := c.opts.RateWindow.Milliseconds()
	if c.windowStart == 0 {
		c.windowStart = timestampMs
	}

	if windowMs > 0 && timestampMs-c.windowStart >= windowMs {
		elapsed := float64(timestampMs-c.windowStart) / 1000
		observedRate := float64(c.windowCount) / elapsed

		c.probability = c.opts.SampleRate
		if ceiling := float64(c.opts.MaxEventsPerSecond); ceiling > 0 && observedRate > ceiling {
			shrunk := ceiling / observedRate
			if shrunk < c.probability {
				c.probability = shrunk
			}
			if c.probability < c.opts.SampleFloor {
				c.probability = c.opts.SampleFloor
			}
		}

		c.windowStart = timestampMs
		c.windowCount = 0
	}

	c.windowCount++
}

// throttlePass admits the first event of a kind per interval. Admission
// is recorded regardless of the sampler's verdict so the throttle alone
// caps per-kind throughput.
func (c *Conditioner) throttlePass(kind domain.EventType, timestampMs int64) bool {
	intervalMs := c.opts.ThrottleInterval.Milliseconds()
	if intervalMs <= 0 {
		return true
	}

	last, seen := c.lastPass[kind]
	if seen && timestampMs-last < intervalMs {
		return false
	}
	c.lastPass[kind] = timestampMs
	return true
}
