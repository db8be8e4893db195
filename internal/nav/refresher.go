package nav

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Refresher reconciles the cache on a fixed interval.
type Refresher struct {
	ctrl     *Controller
	interval time.Duration
	log      *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRefresher(ctrl *Controller, interval time.Duration, log *slog.Logger) *Refresher {
	return &Refresher{ctrl: ctrl, interval: interval, log: log}
}

// Start launches the refresh loop.
func (r *Refresher) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if _, err := r.ctrl.Sync(loopCtx); err != nil {
					r.log.Warn("scheduled sync failed", "error", err)
				}
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight sync to return.
func (r *Refresher) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.ctrl.Wait()
}
