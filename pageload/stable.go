package pageload

import (
	"context"
	"time"
)

// WaitStable blocks until a page can be considered settled.
//
// A page that is already complete only gets the Settle delay. Otherwise
// every receive on changes restarts a Quiet window, and the wait ends when a
// window elapses without changes or when Timeout is reached, whichever comes
// first. A page that never changes therefore waits the full Timeout. A closed
// changes channel stops change tracking but not the Timeout.
//
// The result reports whether the wait ended on Timeout or ctx rather than on
// a quiet window. Callers proceed with the current tree either way.
func WaitStable(ctx context.Context, cfg StableConfig, complete bool, changes <-chan struct{}) (timedOut bool) {
	cfg.defaults()

	if complete {
		settle := time.NewTimer(cfg.Settle)
		defer settle.Stop()
		select {
		case <-settle.C:
			return false
		case <-ctx.Done():
			return true
		}
	}

	deadline := time.NewTimer(cfg.Timeout)
	defer deadline.Stop()

	var quiet *time.Timer
	var quietC <-chan time.Time
	defer func() {
		if quiet != nil {
			quiet.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return true
		case <-deadline.C:
			return true
		case <-quietC:
			return false
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if quiet == nil {
				quiet = time.NewTimer(cfg.Quiet)
				quietC = quiet.C
			} else {
				quiet.Reset(cfg.Quiet)
			}
		}
	}
}
