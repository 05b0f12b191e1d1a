package conditioner_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/jonesrussell/viewtrace/internal/conditioner"
	"github.com/jonesrussell/viewtrace/internal/domain"
)

// alwaysAccept forces the sampler to pass so throttle behavior can be
// observed in isolation.
func alwaysAccept() float64 { return 0 }

func TestThrottle_FirstInWindowOnly(t *testing.T) {
	c := conditioner.New(conditioner.Options{
		ThrottleInterval: 50 * time.Millisecond,
		SampleRate:       1,
		RandFloat:        alwaysAccept,
	})

	if !c.Allow(domain.EventClick, 1000) {
		t.Fatal("expected first event to pass")
	}
	if c.Allow(domain.EventClick, 1010) {
		t.Fatal("expected event 10ms later to be throttled")
	}
	if c.Allow(domain.EventClick, 1049) {
		t.Fatal("expected event at window edge to be throttled")
	}
	if !c.Allow(domain.EventClick, 1050) {
		t.Fatal("expected event after the interval to pass")
	}
}

func TestThrottle_PerKindIndependent(t *testing.T) {
	c := conditioner.New(conditioner.Options{
		ThrottleInterval: 50 * time.Millisecond,
		SampleRate:       1,
		RandFloat:        alwaysAccept,
	})

	if !c.Allow(domain.EventClick, 1000) {
		t.Fatal("expected click to pass")
	}
	if !c.Allow(domain.EventScroll, 1001) {
		t.Fatal("expected scroll to pass despite recent click")
	}
}

func TestSampler_BaseRate(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	c := conditioner.New(conditioner.Options{
		SampleRate: 0.2,
		RateWindow: time.Second,
		RandFloat:  rnd.Float64,
	})

	const n = 10000
	accepted := 0
	for i := 0; i < n; i++ {
		// Spread events so the observed rate stays under any ceiling.
		if c.Allow(domain.EventClick, int64(i)) {
			accepted++
		}
	}

	rate := float64(accepted) / n
	if rate < 0.17 || rate > 0.23 {
		t.Fatalf("expected accept rate near 0.2, got %v", rate)
	}
}

func TestSampler_ConvergesUnderBurst(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	c := conditioner.New(conditioner.Options{
		SampleRate:         0.5,
		SampleFloor:        0.01,
		MaxEventsPerSecond: 50,
		RateWindow:         time.Second,
		RandFloat:          rnd.Float64,
	})

	// Sustained 1000 events/second, far above the 50/s ceiling. Feed two
	// windows: the first observes the rate, the second runs with the
	// shrunk probability.
	ts := int64(0)
	for i := 0; i < 1000; i++ {
		c.Allow(domain.EventClick, ts)
		ts++
	}

	accepted := 0
	for i := 0; i < 1000; i++ {
		if c.Allow(domain.EventClick, ts) {
			accepted++
		}
		ts++
	}

	// Effective accept rate in the second window must be at or below the
	// ceiling (50/s), with slack for sampling noise.
	if accepted > 70 {
		t.Fatalf("expected <=~50 accepted events per second under burst, got %d", accepted)
	}
}

func TestSampler_NeverBelowFloor(t *testing.T) {
	c := conditioner.New(conditioner.Options{
		SampleRate:         0.5,
		SampleFloor:        0.05,
		MaxEventsPerSecond: 1,
		RateWindow:         time.Second,
		RandFloat:          alwaysAccept,
	})

	// Massive overload: unshrunk probability would be far below the floor.
	ts := int64(0)
	for i := 0; i < 5000; i++ {
		c.Allow(domain.EventClick, ts)
		ts++
	}

	if p := c.Probability(); p < 0.05 {
		t.Fatalf("expected probability floored at 0.05, got %v", p)
	}
}

func TestSampler_ResetsAfterQuietWindow(t *testing.T) {
	c := conditioner.New(conditioner.Options{
		SampleRate:         0.5,
		SampleFloor:        0.01,
		MaxEventsPerSecond: 10,
		RateWindow:         time.Second,
		RandFloat:          alwaysAccept,
	})

	// Burst to shrink the probability.
	ts := int64(0)
	for i := 0; i < 2000; i++ {
		c.Allow(domain.EventClick, ts)
		ts++
	}
	if p := c.Probability(); p >= 0.5 {
		t.Fatalf("expected shrunk probability after burst, got %v", p)
	}

	// A sparse event a full window later resets to the base rate.
	c.Allow(domain.EventClick, ts+10_000)
	c.Allow(domain.EventClick, ts+21_000)
	if p := c.Probability(); p != 0.5 {
		t.Fatalf("expected probability reset to base rate, got %v", p)
	}
}
