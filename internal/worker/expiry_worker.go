package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/aydin-o/go-teamdesk/internal/utils"
)

// DelegationExpirer defines the interface for expiring due delegations.
type DelegationExpirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

// ExpiryWorker sweeps delegations whose window has ended and marks them
// expired, recording a DelegationExpired event for each.
type ExpiryWorker struct {
	delegationSvc DelegationExpirer
	ticker        *time.Ticker
	stopChan      chan struct{}
	running       bool
}

// NewExpiryWorker creates a new delegation expiry worker.
func NewExpiryWorker(delegationSvc DelegationExpirer) *ExpiryWorker {
	return &ExpiryWorker{
		delegationSvc: delegationSvc,
		stopChan:      make(chan struct{}),
		running:       false,
	}
}

// Start begins the expiry processing loop.
func (w *ExpiryWorker) Start(interval time.Duration) {
	if w.running {
		utils.Warn("expiry worker is already running")
		return
	}

	w.running = true
	w.ticker = time.NewTicker(interval)

	utils.Info("starting delegation expiry worker", slog.String("interval", interval.String()))

	go w.processLoop()
}

// Stop gracefully stops the expiry worker.
func (w *ExpiryWorker) Stop(ctx context.Context) error {
	if !w.running {
		return nil
	}

	utils.Info("stopping delegation expiry worker")

	// Signal stop
	close(w.stopChan)

	// Stop ticker
	if w.ticker != nil {
		w.ticker.Stop()
	}

	// Wait for graceful shutdown or context timeout
	done := make(chan struct{})
	go func() {
		for w.running {
			time.Sleep(100 * time.Millisecond)
		}
		close(done)
	}()

	select {
	case <-done:
		utils.Info("delegation expiry worker stopped gracefully")
		return nil
	case <-ctx.Done():
		utils.Warn("delegation expiry worker stop timed out")
		return ctx.Err()
	}
}

// processLoop runs the main expiry loop.
func (w *ExpiryWorker) processLoop() {
	defer func() {
		w.running = false
	}()

	for {
		select {
		case <-w.ticker.C:
			w.expireDue()
		case <-w.stopChan:
			return
		}
	}
}

// expireDue expires all delegations whose window has ended.
func (w *ExpiryWorker) expireDue() {
	ctx := context.Background()

	expired, err := w.delegationSvc.ExpireDue(ctx)
	if err != nil {
		utils.Error("failed to expire due delegations", slog.String("error", err.Error()))
		return
	}

	if expired > 0 {
		utils.Info("expired due delegations", slog.Int("count", expired))
	}
}
