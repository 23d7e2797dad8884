package quiz

import (
	"context"
	"sync"
	"time"
)

// Countdown drives an engine's timer from a ticker until stopped, until
// its context ends, or until the quiz leaves InProgress.
type Countdown struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// RunCountdown starts ticking the engine once per unit.
func (e *Engine) RunCountdown(ctx context.Context, unit time.Duration) *Countdown {
	ctx, cancel := context.WithCancel(ctx)
	c := &Countdown{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(unit)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := e.Tick(); err != nil {
					return
				}
			}
		}
	}()

	return c
}

// Stop halts the countdown and waits for its goroutine to exit. No tick is
// applied after Stop returns. Safe to call more than once.
func (c *Countdown) Stop() {
	c.once.Do(c.cancel)
	<-c.done
}

// Done is closed when the countdown goroutine has exited.
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}
