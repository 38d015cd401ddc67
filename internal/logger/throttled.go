package logger

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// ThrottledLogger emits at most one message per interval for a repeating
// condition. Messages dropped in between are counted and reported on the
// next emitted entry as "suppressed".
type ThrottledLogger struct {
	base       Logger
	sometimes  rate.Sometimes
	suppressed atomic.Int64
}

// NewThrottledLogger logs the first message immediately and then at most one
// per interval.
func NewThrottledLogger(base Logger, interval time.Duration) *ThrottledLogger {
	return &ThrottledLogger{
		base:      base,
		sometimes: rate.Sometimes{First: 1, Interval: interval},
	}
}

// Warn logs msg with fields unless the interval has not yet elapsed.
func (t *ThrottledLogger) Warn(fields Fields, msg string) {
	emitted := false
	t.sometimes.Do(func() {
		emitted = true
		entry := t.base.WithFields(fields)
		if n := t.suppressed.Swap(0); n > 0 {
			entry = entry.WithField("suppressed", n)
		}
		entry.Warn(msg)
	})
	if !emitted {
		t.suppressed.Add(1)
	}
}

// Suppressed returns the number of dropped messages not yet reported.
func (t *ThrottledLogger) Suppressed() int64 {
	return t.suppressed.Load()
}
