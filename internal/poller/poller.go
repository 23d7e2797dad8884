// Package poller watches a freshly uploaded material until the backend has
// generated something for it.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/optima-study/optima/internal/domain/material"
)

// ErrTimeout is reported through OnError when MaxWait elapses before any
// generated data shows up.
var ErrTimeout = errors.New("poller: timed out waiting for processing")

// FetchFunc loads the current record for a material.
type FetchFunc func(ctx context.Context, materialID int64) (material.Record, error)

// Config controls timing and reporting. Callbacks run on the polling
// goroutine and must not call Stop.
type Config struct {
	Warmup   time.Duration // delay before the first fetch
	Interval time.Duration // delay between the end of one fetch and the next
	Settle   time.Duration // pause between reaching 100% and OnComplete
	MaxWait  time.Duration // 0 polls until stopped

	ProgressEvery time.Duration
	ProgressStep  int              // increments are drawn from [0, ProgressStep)
	Rand          func(n int) int // defaults to math/rand/v2.IntN

	OnProgress func(percent int)
	OnComplete func(rec material.Record)
	OnError    func(err error)
}

const progressCap = 95

func DefaultConfig() Config {
	return Config{
		Warmup:        2 * time.Second,
		Interval:      2 * time.Second,
		Settle:        time.Second,
		ProgressEvery: 800 * time.Millisecond,
		ProgressStep:  3,
	}
}

// Poller is a running watch. It is created by Start and ends on completion,
// timeout, Stop, or cancellation of the parent context.
type Poller struct {
	materialID int64
	fetch      FetchFunc
	cfg        Config
	logger     *slog.Logger

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once

	progress atomic.Int32
	attempts atomic.Int32
}

// Start begins polling in a new goroutine.
func Start(ctx context.Context, materialID int64, fetch FetchFunc, cfg Config, logger *slog.Logger) *Poller {
	if cfg.Rand == nil {
		cfg.Rand = rand.IntN
	}
	if cfg.ProgressStep <= 0 {
		cfg.ProgressStep = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Poller{
		materialID: materialID,
		fetch:      fetch,
		cfg:        cfg,
		logger:     logger.With("material_id", materialID),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go p.run(ctx)
	return p
}

// Stop cancels all pending timers and waits for the polling goroutine to
// exit. No callback fires after Stop returns. Safe to call more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(p.cancel)
	<-p.done
}

// Done is closed when the poller has exited for any reason.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Progress returns the last reported percentage.
func (p *Poller) Progress() int {
	return int(p.progress.Load())
}

// Attempts returns how many fetches have been made.
func (p *Poller) Attempts() int {
	return int(p.attempts.Load())
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)
	defer p.cancel()

	// The deadline bounds in-flight fetches too, not just the waits between
	// them.
	loop := ctx
	if p.cfg.MaxWait > 0 {
		var cancel context.CancelFunc
		loop, cancel = context.WithTimeoutCause(ctx, p.cfg.MaxWait, ErrTimeout)
		defer cancel()
	}

	var tick <-chan time.Time
	if p.cfg.ProgressEvery > 0 {
		ticker := time.NewTicker(p.cfg.ProgressEvery)
		defer ticker.Stop()
		tick = ticker.C
	}

	poll := time.NewTimer(p.cfg.Warmup)
	defer poll.Stop()

	for {
		select {
		case <-loop.Done():
			p.stopped(loop)
			return

		case <-tick:
			p.bump()

		case <-poll.C:
			if loop.Err() != nil {
				p.stopped(loop)
				return
			}
			rec, err := p.fetch(loop, p.materialID)
			n := p.attempts.Add(1)
			if loop.Err() != nil {
				p.stopped(loop)
				return
			}
			if err != nil {
				p.logger.Error("poll failed", "attempt", n, "error", err)
			} else if rec.HasAnyGenerated() {
				p.complete(ctx, rec)
				return
			}
			poll.Reset(p.cfg.Interval)
		}
	}
}

// stopped reports ErrTimeout when the loop ended because MaxWait elapsed.
// Cancellation by the caller or Stop is silent.
func (p *Poller) stopped(loop context.Context) {
	if !errors.Is(context.Cause(loop), ErrTimeout) {
		return
	}
	p.logger.Warn("gave up waiting for processing", "attempts", p.Attempts())
	if p.cfg.OnError != nil {
		p.cfg.OnError(ErrTimeout)
	}
}

func (p *Poller) bump() {
	cur := int(p.progress.Load())
	if cur >= progressCap {
		return
	}
	next := min(progressCap, cur+p.cfg.Rand(p.cfg.ProgressStep))
	if next == cur {
		return
	}
	p.report(next)
}

func (p *Poller) report(percent int) {
	p.progress.Store(int32(percent))
	if p.cfg.OnProgress != nil {
		p.cfg.OnProgress(percent)
	}
}

func (p *Poller) complete(ctx context.Context, rec material.Record) {
	p.report(100)
	p.logger.Info("processing complete", "attempts", p.Attempts())

	if p.cfg.Settle > 0 {
		t := time.NewTimer(p.cfg.Settle)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
	if p.cfg.OnComplete != nil {
		p.cfg.OnComplete(rec)
	}
}
