package poller_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/optima-study/optima/internal/domain/material"
	"github.com/optima-study/optima/internal/poller"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig() poller.Config {
	return poller.Config{
		Warmup:        time.Millisecond,
		Interval:      time.Millisecond,
		Settle:        time.Millisecond,
		ProgressEvery: time.Millisecond,
		ProgressStep:  3,
	}
}

func pending(id int64) material.Record {
	return material.Record{Material: material.Material{ID: id}}
}

func ready(id int64) material.Record {
	summary := "done"
	return material.Record{
		Material:      material.Material{ID: id},
		GeneratedData: &material.GeneratedData{Summary: &summary},
	}
}

func waitDone(t *testing.T, p *poller.Poller) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		p.Stop()
		t.Fatal("poller did not finish in time")
	}
}

func TestPoller_CompletesOnThirdResponse(t *testing.T) {
	var calls atomic.Int32
	fetch := func(ctx context.Context, id int64) (material.Record, error) {
		if calls.Add(1) < 3 {
			return pending(id), nil
		}
		return ready(id), nil
	}

	var completions atomic.Int32
	var mu sync.Mutex
	var progress []int
	var reachedFull, completedAt time.Time

	cfg := fastConfig()
	cfg.Settle = 30 * time.Millisecond
	cfg.OnComplete = func(rec material.Record) {
		completions.Add(1)
		mu.Lock()
		completedAt = time.Now()
		mu.Unlock()
		if rec.Material.ID != 42 {
			t.Errorf("expected material 42, got %d", rec.Material.ID)
		}
	}
	cfg.OnProgress = func(p int) {
		mu.Lock()
		progress = append(progress, p)
		if p == 100 {
			reachedFull = time.Now()
		}
		mu.Unlock()
	}

	p := poller.Start(context.Background(), 42, fetch, cfg, testLogger())
	waitDone(t, p)

	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 fetches, got %d", got)
	}
	if got := completions.Load(); got != 1 {
		t.Errorf("expected exactly 1 completion, got %d", got)
	}
	if p.Progress() != 100 {
		t.Errorf("expected progress 100, got %d", p.Progress())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(progress) == 0 || progress[len(progress)-1] != 100 {
		t.Errorf("expected last progress report to be 100, got %v", progress)
	}
	if reachedFull.IsZero() || completedAt.IsZero() {
		t.Fatal("expected both a 100% report and a completion")
	}
	if gap := completedAt.Sub(reachedFull); gap < cfg.Settle {
		t.Errorf("expected OnComplete at least %s after 100%%, got %s", cfg.Settle, gap)
	}
}

func TestPoller_SwallowsFetchErrors(t *testing.T) {
	var calls atomic.Int32
	fetch := func(ctx context.Context, id int64) (material.Record, error) {
		if calls.Add(1) <= 4 {
			return material.Record{}, errors.New("backend unavailable")
		}
		return ready(id), nil
	}

	var completions, failures atomic.Int32
	cfg := fastConfig()
	cfg.OnComplete = func(material.Record) { completions.Add(1) }
	cfg.OnError = func(error) { failures.Add(1) }

	p := poller.Start(context.Background(), 1, fetch, cfg, testLogger())
	waitDone(t, p)

	if got := calls.Load(); got != 5 {
		t.Errorf("expected 5 fetches, got %d", got)
	}
	if completions.Load() != 1 {
		t.Errorf("expected exactly 1 completion, got %d", completions.Load())
	}
	if failures.Load() != 0 {
		t.Errorf("fetch errors must not reach OnError, got %d", failures.Load())
	}
}

func TestPoller_CancelAfterSecondAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	fetch := func(_ context.Context, id int64) (material.Record, error) {
		if calls.Add(1) == 2 {
			cancel()
		}
		return pending(id), nil
	}

	var callbacks atomic.Int32
	cfg := fastConfig()
	cfg.ProgressEvery = 0
	cfg.OnComplete = func(material.Record) { callbacks.Add(1) }
	cfg.OnError = func(error) { callbacks.Add(1) }

	p := poller.Start(ctx, 1, fetch, cfg, testLogger())
	waitDone(t, p)
	time.Sleep(10 * time.Millisecond)

	if got := calls.Load(); got != 2 {
		t.Errorf("expected no fetch after cancellation, got %d fetches", got)
	}
	if callbacks.Load() != 0 {
		t.Errorf("expected no callbacks, got %d", callbacks.Load())
	}
}

func TestPoller_StopWaitsAndSilences(t *testing.T) {
	fetched := make(chan struct{}, 1)
	var calls atomic.Int32
	fetch := func(_ context.Context, id int64) (material.Record, error) {
		calls.Add(1)
		select {
		case fetched <- struct{}{}:
		default:
		}
		return pending(id), nil
	}

	var progressAfterStop atomic.Bool
	var stopped atomic.Bool
	cfg := fastConfig()
	cfg.Interval = time.Hour
	cfg.OnProgress = func(int) {
		if stopped.Load() {
			progressAfterStop.Store(true)
		}
	}

	p := poller.Start(context.Background(), 1, fetch, cfg, testLogger())
	<-fetched

	p.Stop()
	stopped.Store(true)
	p.Stop()

	time.Sleep(10 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("expected 1 fetch, got %d", calls.Load())
	}
	if progressAfterStop.Load() {
		t.Error("progress reported after Stop returned")
	}
}

func TestPoller_Timeout(t *testing.T) {
	fetch := func(_ context.Context, id int64) (material.Record, error) {
		return pending(id), nil
	}

	errCh := make(chan error, 1)
	var completions atomic.Int32
	cfg := fastConfig()
	cfg.MaxWait = 20 * time.Millisecond
	cfg.OnError = func(err error) { errCh <- err }
	cfg.OnComplete = func(material.Record) { completions.Add(1) }

	p := poller.Start(context.Background(), 1, fetch, cfg, testLogger())
	waitDone(t, p)

	select {
	case err := <-errCh:
		if !errors.Is(err, poller.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	default:
		t.Fatal("expected OnError to be called")
	}
	if completions.Load() != 0 {
		t.Error("timed out poll must not complete")
	}
}

func TestPoller_ProgressCappedBeforeCompletion(t *testing.T) {
	fetch := func(_ context.Context, id int64) (material.Record, error) {
		return pending(id), nil
	}

	var mu sync.Mutex
	var progress []int
	cfg := fastConfig()
	cfg.Rand = func(n int) int { return n - 1 }
	cfg.ProgressStep = 40
	cfg.MaxWait = 50 * time.Millisecond
	cfg.OnProgress = func(p int) {
		mu.Lock()
		progress = append(progress, p)
		mu.Unlock()
	}

	p := poller.Start(context.Background(), 1, fetch, cfg, testLogger())
	waitDone(t, p)

	mu.Lock()
	defer mu.Unlock()
	last := 0
	for _, v := range progress {
		if v > 95 {
			t.Fatalf("progress exceeded cap before completion: %v", progress)
		}
		if v < last {
			t.Fatalf("progress went backwards: %v", progress)
		}
		last = v
	}
}

func TestPoller_TimeoutCancelsHangingFetch(t *testing.T) {
	fetchCancelled := make(chan struct{})
	fetch := func(ctx context.Context, id int64) (material.Record, error) {
		<-ctx.Done()
		close(fetchCancelled)
		return material.Record{}, ctx.Err()
	}

	errCh := make(chan error, 1)
	cfg := fastConfig()
	cfg.MaxWait = 20 * time.Millisecond
	cfg.OnError = func(err error) { errCh <- err }

	start := time.Now()
	p := poller.Start(context.Background(), 1, fetch, cfg, testLogger())
	waitDone(t, p)

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("hanging fetch overran MaxWait: %s", elapsed)
	}
	select {
	case <-fetchCancelled:
	default:
		t.Error("expected the in-flight fetch to be cancelled")
	}
	select {
	case err := <-errCh:
		if !errors.Is(err, poller.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	default:
		t.Fatal("expected OnError to be called")
	}
}
