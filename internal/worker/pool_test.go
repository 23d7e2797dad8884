package worker_test

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/optima-study/optima/internal/worker"
)

func TestPool_RunsEveryJob(t *testing.T) {
	p := worker.NewPool[int](context.Background(), 3, 10)

	for i := 0; i < 10; i++ {
		n := i
		p.Submit(strconv.Itoa(n), func(context.Context) int { return n * n })
	}
	p.Close()

	got := map[string]int{}
	for r := range p.Results() {
		got[r.JobID] = r.Output
	}

	if len(got) != 10 {
		t.Fatalf("expected 10 results, got %d", len(got))
	}
	if got["7"] != 49 {
		t.Errorf("expected 49 for job 7, got %d", got["7"])
	}
}

func TestPool_RunsConcurrently(t *testing.T) {
	p := worker.NewPool[struct{}](context.Background(), 3, 3)

	var running, peak atomic.Int32
	for i := 0; i < 3; i++ {
		p.Submit(strconv.Itoa(i), func(context.Context) struct{} {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return struct{}{}
		})
	}
	p.Close()
	for range p.Results() {
	}

	if peak.Load() < 2 {
		t.Errorf("expected jobs to overlap, peak concurrency %d", peak.Load())
	}
}

func TestPool_PassesContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := worker.NewPool[error](ctx, 1, 1)
	p.Submit("a", func(ctx context.Context) error { return ctx.Err() })
	p.Close()
	p.Close()

	r := <-p.Results()
	if r.Output == nil {
		t.Error("expected job to observe the cancelled context")
	}
}
