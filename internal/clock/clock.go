// Package clock abstracts the time source used for pacing so that the
// scheduler can be driven deterministically in tests.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock provides monotonic time and an interruptible sleep.
type Clock interface {
	// Now returns the current time. Real clocks carry a monotonic reading.
	Now() time.Time

	// Sleep pauses for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real implements Clock with the time package.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time {
	return time.Now()
}

// Sleep waits for d on a timer, returning ctx.Err() if ctx ends first.
func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Mock is a manually driven clock. Sleep advances the mock time by the
// requested duration and returns immediately.
type Mock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewMock creates a Mock set to t.
func NewMock(t time.Time) *Mock {
	return &Mock{now: t}
}

// Now returns the mocked current time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock time forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Sleep records d and advances the mock time by it.
func (m *Mock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.sleeps = append(m.sleeps, d)
	m.now = m.now.Add(d)
	m.mu.Unlock()
	return nil
}

// Sleeps returns all recorded sleep durations.
func (m *Mock) Sleeps() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]time.Duration, len(m.sleeps))
	copy(result, m.sleeps)
	return result
}
