package core

// limiter.go bounds how many Load/Save runs the server executes at once.
//
// Each run holds a whole file in memory, so the HTTP layer acquires a slot
// before converting. When all slots are taken a request waits up to maxWait
// and then fails with ErrTooManyConversions. WaitForDrain lets shutdown
// finish the runs in flight.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyConversions is returned when no slot frees up within the wait
// timeout. Clients should retry after a short delay.
var ErrTooManyConversions = errors.New("too many concurrent conversions, please try again later")

// DefaultMaxConcurrentConversions is the default number of parallel runs.
const DefaultMaxConcurrentConversions = 4

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// ConvertLimiter is a counting semaphore over conversion runs.
type ConvertLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.Mutex
	active int
	// idle is closed whenever active is zero.
	idle chan struct{}
}

// NewConvertLimiter allows at most maxConcurrent simultaneous runs.
// Non-positive arguments select the defaults.
func NewConvertLimiter(maxConcurrent int, maxWait time.Duration) *ConvertLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentConversions
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	idle := make(chan struct{})
	close(idle)
	return &ConvertLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		idle:    idle,
	}
}

// Acquire waits for a slot. It returns ctx's error if ctx ends first and
// ErrTooManyConversions if maxWait passes. On success the caller must call
// Release.
func (l *ConvertLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.track(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyConversions
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *ConvertLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.track(1)
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *ConvertLimiter) Release() {
	l.track(-1)
	<-l.slots
}

func (l *ConvertLimiter) track(delta int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	was := l.active
	l.active += delta
	switch {
	case was == 0 && l.active > 0:
		l.idle = make(chan struct{})
	case was > 0 && l.active == 0:
		close(l.idle)
	}
}

// ActiveCount returns the number of runs holding a slot.
func (l *ConvertLimiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// MaxConcurrent returns the number of slots.
func (l *ConvertLimiter) MaxConcurrent() int { return cap(l.slots) }

// Available returns the number of free slots.
func (l *ConvertLimiter) Available() int { return cap(l.slots) - l.ActiveCount() }

// WaitForDrain blocks until no run holds a slot or ctx ends.
func (l *ConvertLimiter) WaitForDrain(ctx context.Context) error {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LimiterStatus is a snapshot of a ConvertLimiter.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status reports the limiter state for the health endpoint.
func (l *ConvertLimiter) Status() LimiterStatus {
	active := l.ActiveCount()
	return LimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - active,
		MaxConcurrent: cap(l.slots),
	}
}
