package testutil

import (
	"context"
	"sync"
	"time"
)

// ManualClock virtual time meter. ParkNanos advances time instead of sleeping,
// so waiting code runs instantly and deterministically.
type ManualClock struct {
	mu     sync.Mutex
	now    int64
	parked []int64
}

// NewManualClock clock starting at startNanos
func NewManualClock(startNanos int64) *ManualClock {
	return &ManualClock{now: startNanos}
}

func (c *ManualClock) CurrentTimeNanos() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// ParkNanos fails with ctx.Err() when ctx is already done, otherwise jumps forward
func (c *ManualClock) ParkNanos(ctx context.Context, nanos int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now += nanos
	c.parked = append(c.parked, nanos)
	c.mu.Unlock()
	return nil
}

// Advance moves time forward by d
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += int64(d)
	c.mu.Unlock()
}

// Set jumps to an absolute time, backwards included
func (c *ManualClock) Set(nanos int64) {
	c.mu.Lock()
	c.now = nanos
	c.mu.Unlock()
}

// Parked durations passed to ParkNanos, in call order
func (c *ManualClock) Parked() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int64, len(c.parked))
	copy(out, c.parked)
	return out
}

// ManualScheduler runs scheduled tasks on a goroutine after advancing the clock by the delay
type ManualScheduler struct {
	Clock *ManualClock

	mu     sync.Mutex
	delays []time.Duration
	hold   bool
	held   []func()
}

func NewManualScheduler(clock *ManualClock) *ManualScheduler {
	return &ManualScheduler{Clock: clock}
}

// Hold keeps scheduled tasks pending until Release
func (s *ManualScheduler) Hold() {
	s.mu.Lock()
	s.hold = true
	s.mu.Unlock()
}

// Release runs every held task
func (s *ManualScheduler) Release() {
	s.mu.Lock()
	s.hold = false
	held := s.held
	s.held = nil
	s.mu.Unlock()
	for _, run := range held {
		go run()
	}
}

func (s *ManualScheduler) Schedule(delay time.Duration, task func()) func() bool {
	var (
		mu        sync.Mutex
		cancelled bool
		fired     bool
	)
	run := func() {
		mu.Lock()
		if cancelled {
			mu.Unlock()
			return
		}
		fired = true
		mu.Unlock()
		s.Clock.Advance(delay)
		task()
	}

	s.mu.Lock()
	s.delays = append(s.delays, delay)
	if s.hold {
		s.held = append(s.held, run)
		s.mu.Unlock()
	} else {
		s.mu.Unlock()
		go run()
	}

	return func() bool {
		mu.Lock()
		defer mu.Unlock()
		if fired || cancelled {
			return false
		}
		cancelled = true
		return true
	}
}

// Delays every delay passed to Schedule
func (s *ManualScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.delays))
	copy(out, s.delays)
	return out
}
