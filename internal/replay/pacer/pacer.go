// Package pacer spaces loop iterations at a fixed target frequency.
//
// Each iteration is bracketed by Begin and End. End sleeps for the part of
// the period not already consumed by the work done since Begin, so the
// interval between successive Begin calls stays close to the period even
// when the work itself takes a variable amount of time. When the work
// overruns the period End returns immediately and the cycle is counted as
// an overrun.
package pacer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/zsiec/udpreplay/internal/clock"
)

const (
	// MinFrequency is the exclusive lower bound for the target frequency.
	MinFrequency = 1e-12
	// MaxFrequency is the inclusive upper bound for the target frequency.
	MaxFrequency = 2000.0
)

// ErrNotStarted is returned by End when no Begin preceded it.
var ErrNotStarted = errors.New("pacer: End called without Begin")

// Option configures a Pacer.
type Option func(*Pacer)

// WithClock replaces the real clock.
func WithClock(c clock.Clock) Option {
	return func(p *Pacer) {
		p.clock = c
	}
}

// Pacer holds the timing state of one paced loop. It is not safe for
// concurrent use; each loop owns its own Pacer.
type Pacer struct {
	clock  clock.Clock
	period time.Duration

	prevStart time.Time
	start     time.Time
	started   bool
	inCycle   bool

	wait      time.Duration
	frequency float64
	overruns  uint64
}

// New creates a Pacer for frequencyHz, which must lie in (1e-12, 2000].
func New(frequencyHz float64, opts ...Option) (*Pacer, error) {
	if math.IsNaN(frequencyHz) || frequencyHz <= MinFrequency || frequencyHz > MaxFrequency {
		return nil, fmt.Errorf("invalid frequency %g Hz, must be in (%g, %g]", frequencyHz, MinFrequency, MaxFrequency)
	}

	p := &Pacer{
		clock:  clock.Real{},
		period: Period(frequencyHz),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.wait = p.period
	return p, nil
}

// Period converts a frequency to the nominal interval between iterations.
// Intervals longer than the maximum time.Duration are clamped.
func Period(frequencyHz float64) time.Duration {
	ns := 1e9 / frequencyHz
	if ns >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ns)
}

// Begin marks the start of an iteration and returns the realized frequency
// of the previous completed cycle, measured start to start. It returns 0
// until one full cycle has been observed.
func (p *Pacer) Begin() float64 {
	now := p.clock.Now()
	if p.started {
		p.prevStart = p.start
		if interval := now.Sub(p.prevStart); interval > 0 {
			p.frequency = float64(time.Second) / float64(interval)
		}
	}
	p.start = now
	p.started = true
	p.inCycle = true
	return p.frequency
}

// End closes the iteration opened by Begin, sleeping for the rest of the
// period. It returns ctx.Err() if the context ends during the sleep.
func (p *Pacer) End(ctx context.Context) error {
	if !p.inCycle {
		return ErrNotStarted
	}
	p.inCycle = false

	work := p.clock.Now().Sub(p.start)
	p.wait = p.period - work
	if p.wait <= 0 {
		p.overruns++
		return ctx.Err()
	}
	return p.clock.Sleep(ctx, p.wait)
}

// Do runs fn as one paced iteration. End runs even if fn fails; fn's error
// takes precedence over a cancelled sleep.
func (p *Pacer) Do(ctx context.Context, fn func() error) error {
	p.Begin()
	err := fn()
	if endErr := p.End(ctx); err == nil {
		err = endErr
	}
	return err
}

// Period returns the nominal interval.
func (p *Pacer) Period() time.Duration {
	return p.period
}

// Wait returns the residual computed by the last End. Negative values mean
// the iteration overran the period.
func (p *Pacer) Wait() time.Duration {
	return p.wait
}

// Frequency returns the last realized frequency reported by Begin.
func (p *Pacer) Frequency() float64 {
	return p.frequency
}

// Overruns returns how many iterations took at least a full period.
func (p *Pacer) Overruns() uint64 {
	return p.overruns
}
