package session

import (
	"context"
	"errors"
	"time"
)

// startLoop launches the background refresh task if it is not running.
func (c *Controller) startLoop() {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	if c.loopCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.loopCancel = cancel
	c.loopDone = done

	go c.runLoop(ctx, done)
}

// stopLoop cancels the refresh task. With wait set it blocks until the task exits;
// the task itself must not wait on its own exit.
func (c *Controller) stopLoop(wait bool) {
	c.loopMu.Lock()
	cancel, done := c.loopCancel, c.loopDone
	c.loopCancel, c.loopDone = nil, nil
	c.loopMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if wait {
		<-done
	}
}

func (c *Controller) runLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer c.forgetLoop(done)

	ticker := time.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := c.Refresh(ctx)
			if errors.Is(err, ErrNotAuthenticated) || ctx.Err() != nil {
				return
			}
		}
	}
}

// Running reports whether the background refresh task is active.
func (c *Controller) Running() bool {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	return c.loopCancel != nil
}

func (c *Controller) forgetLoop(done chan struct{}) {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	if c.loopDone == done {
		c.loopCancel()
		c.loopCancel, c.loopDone = nil, nil
	}
}
