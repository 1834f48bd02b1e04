package service

import (
	"context"
	"log"
	"time"
)

// MaintenanceWorker periodically expires stale assignments and re-drives credits
// that were interrupted after their state change committed.
type MaintenanceWorker struct {
	tasks     *TaskService
	referrals *ReferralService
	interval  time.Duration
}

func NewMaintenanceWorker(tasks *TaskService, referrals *ReferralService, interval time.Duration) *MaintenanceWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &MaintenanceWorker{tasks: tasks, referrals: referrals, interval: interval}
}

// Start blocks until ctx is cancelled.
func (w *MaintenanceWorker) Start(ctx context.Context) {
	log.Printf("[worker] maintenance started (interval %s)", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[worker] maintenance stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

func (w *MaintenanceWorker) RunOnce(ctx context.Context) {
	if _, err := w.tasks.ExpireStale(ctx); err != nil {
		log.Printf("[worker] expire stale assignments: %v", err)
	}
	if n, err := w.tasks.RecoverApproved(ctx); err != nil {
		log.Printf("[worker] recover approved assignments: %v", err)
	} else if n > 0 {
		log.Printf("[worker] credited %d approved assignments", n)
	}
	if n, err := w.referrals.RecoverUnawarded(ctx); err != nil {
		log.Printf("[worker] recover referral credits: %v", err)
	} else if n > 0 {
		log.Printf("[worker] credited %d referral links", n)
	}
}
