// Package replay drives the paced transmission loop: one record is read,
// packed and sent per period until the source is exhausted.
package replay

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/zsiec/udpreplay/internal/clock"
	"github.com/zsiec/udpreplay/internal/errors"
	"github.com/zsiec/udpreplay/internal/logger"
	"github.com/zsiec/udpreplay/internal/metrics"
	"github.com/zsiec/udpreplay/internal/replay/pacer"
	"github.com/zsiec/udpreplay/internal/replay/packet"
	"github.com/zsiec/udpreplay/internal/replay/source"
)

// sendWarnInterval bounds how often repeated send failures are logged.
const sendWarnInterval = time.Second

// RecordSource yields records in file order.
type RecordSource interface {
	Next() (source.Record, error)
	Line() int
}

// Sender writes one datagram per call.
type Sender interface {
	Send(payload []byte) (int, error)
	Destination() string
}

// Config holds the collaborators of a Transmitter.
type Config struct {
	Source RecordSource
	Packer *packet.Packer
	Pacer  *pacer.Pacer
	Sender Sender
	Logger logger.Logger
	Clock  clock.Clock // measures elapsed time; defaults to clock.Real
}

// Stats summarizes a run.
type Stats struct {
	Records    uint64        `json:"records"`
	Sent       uint64        `json:"sent"`
	Skipped    uint64        `json:"skipped"`
	SendErrors uint64        `json:"send_errors"`
	Bytes      uint64        `json:"bytes"`
	Overruns   uint64        `json:"overruns"`
	Frequency  float64       `json:"realized_frequency_hz"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

// AverageFrequency returns records per second over the whole run.
func (s Stats) AverageFrequency() float64 {
	if s.Elapsed <= 0 || s.Records == 0 {
		return 0
	}
	return float64(s.Records) / s.Elapsed.Seconds()
}

// Transmitter runs the read, pack, send, wait loop on a single goroutine.
type Transmitter struct {
	source   RecordSource
	packer   *packet.Packer
	pacer    *pacer.Pacer
	sender   Sender
	logger   logger.Logger
	clock    clock.Clock
	sendWarn *logger.ThrottledLogger

	mu      sync.Mutex
	stats   Stats
	started time.Time
	running bool
}

// New validates cfg and returns a Transmitter ready to Run.
func New(cfg Config) (*Transmitter, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if cfg.Packer == nil {
		return nil, fmt.Errorf("packer is required")
	}
	if cfg.Pacer == nil {
		return nil, fmt.Errorf("pacer is required")
	}
	if cfg.Sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNullLogger()
	}
	log = log.WithField("component", "replay")
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	return &Transmitter{
		source:   cfg.Source,
		packer:   cfg.Packer,
		pacer:    cfg.Pacer,
		sender:   cfg.Sender,
		logger:   log,
		clock:    clk,
		sendWarn: logger.NewThrottledLogger(log, sendWarnInterval),
	}, nil
}

// Run transmits until the source is exhausted, a record fails to parse or
// ctx is cancelled. Exhaustion returns a nil error. Cancellation returns
// context.Canceled or context.DeadlineExceeded. A parse failure returns an
// AppError of type PARSE_ERROR.
func (t *Transmitter) Run(ctx context.Context) (Stats, error) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return Stats{}, fmt.Errorf("transmitter is already running")
	}
	t.running = true
	t.started = t.clock.Now()
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.running = false
		t.stats.Elapsed = t.clock.Now().Sub(t.started)
		t.mu.Unlock()
	}()

	metrics.SetTargetFrequency(float64(time.Second) / float64(t.pacer.Period()))
	t.logger.WithFields(map[string]interface{}{
		"destination": t.sender.Destination(),
		"period":      t.pacer.Period().String(),
		"dynamic":     t.packer.Spec().Dynamic(),
	}).Info("Starting transmission")

	for {
		if err := ctx.Err(); err != nil {
			return t.finish(err)
		}

		t.pacer.Begin()
		done, err := t.step()
		if err != nil {
			return t.finish(err)
		}
		if done {
			t.logger.Info("All data sent")
			return t.finish(nil)
		}

		err = t.pacer.End(ctx)
		t.observePacer()
		if err != nil {
			return t.finish(err)
		}
	}
}

// step handles one record. It reports done once the source is exhausted.
func (t *Transmitter) step() (bool, error) {
	rec, err := t.source.Next()
	if stderrors.Is(err, io.EOF) {
		return true, nil
	}
	if err != nil {
		var parseErr *source.ParseError
		if stderrors.As(err, &parseErr) {
			return false, errors.NewParseError(err, parseErr.Line)
		}
		return false, errors.WrapInternalError(err, "failed to read source")
	}

	metrics.IncrementRecordsRead()
	t.mu.Lock()
	t.stats.Records++
	t.mu.Unlock()

	payload, err := t.packer.Encode(rec)
	if stderrors.Is(err, packet.ErrLengthMismatch) {
		shape := errors.NewShapeError(len(rec), t.packer.Spec().Count)
		metrics.IncrementRecordsSkipped(metrics.SkipReasonLength)
		t.logger.WithFields(map[string]interface{}{
			"line":   t.source.Line(),
			"fields": len(rec),
		}).Debug(shape.Error())
		t.mu.Lock()
		t.stats.Skipped++
		t.mu.Unlock()
		return false, nil
	}
	if err != nil {
		// The datagram cannot be built, so it is counted like a failed send.
		t.sendFailed(err)
		return false, nil
	}

	n, err := t.sender.Send(payload)
	if err != nil {
		t.sendFailed(err)
		return false, nil
	}

	metrics.RecordPacketSent(n)
	t.mu.Lock()
	t.stats.Sent++
	t.stats.Bytes += uint64(n)
	t.mu.Unlock()
	return false, nil
}

func (t *Transmitter) sendFailed(err error) {
	sendErr := errors.NewSendError(err, t.sender.Destination())
	metrics.IncrementSendErrors()
	t.sendWarn.Warn(logger.Fields{
		"line":        t.source.Line(),
		"destination": t.sender.Destination(),
		"error":       err.Error(),
	}, sendErr.Message)
	t.mu.Lock()
	t.stats.SendErrors++
	t.mu.Unlock()
}

func (t *Transmitter) observePacer() {
	freq := t.pacer.Frequency()
	metrics.SetRealizedFrequency(freq)

	t.mu.Lock()
	if overruns := t.pacer.Overruns(); overruns > t.stats.Overruns {
		for i := t.stats.Overruns; i < overruns; i++ {
			metrics.IncrementPacerOverruns()
		}
		t.stats.Overruns = overruns
	}
	t.stats.Frequency = freq
	t.mu.Unlock()
}

func (t *Transmitter) finish(err error) (Stats, error) {
	stats := t.Snapshot()
	stats.Elapsed = t.clock.Now().Sub(t.started)

	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		t.logger.WithFields(map[string]interface{}{
			"records": stats.Records,
			"sent":    stats.Sent,
		}).Info("Transmission interrupted")
	}
	return stats, err
}

// Snapshot returns the counters so far. It is safe to call while Run is
// in progress.
func (t *Transmitter) Snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := t.stats
	if t.running {
		stats.Elapsed = t.clock.Now().Sub(t.started)
	}
	return stats
}

// Running reports whether Run is in progress.
func (t *Transmitter) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
