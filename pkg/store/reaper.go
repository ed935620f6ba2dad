package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Reaper deletes terminal workflow records once their retention window has
// passed. Records are kept terminal-but-present for audit until then.
type Reaper struct {
	store     Store
	retention time.Duration
	logger    *slog.Logger
	cron      *cron.Cron
}

func NewReaper(s Store, retention time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{
		store:     s,
		retention: retention,
		logger:    logger.With("module", "reaper"),
		cron:      cron.New(),
	}
}

// Start schedules the sweep. The schedule uses cron syntax, e.g.
// "@every 10m".
func (r *Reaper) Start(ctx context.Context, schedule string) error {
	_, err := r.cron.AddFunc(schedule, func() {
		r.Sweep(ctx)
	})
	if err != nil {
		return err
	}

	r.cron.Start()

	return nil
}

func (r *Reaper) Stop() {
	<-r.cron.Stop().Done()
}

// Sweep removes every terminal record whose completion is older than the
// retention window. Returns the number of records deleted.
func (r *Reaper) Sweep(ctx context.Context) int {
	records, err := r.store.List(ctx)
	if err != nil {
		r.logger.Error("Failed to list workflow records", "error", err)

		return 0
	}

	cutoff := time.Now().Add(-r.retention)
	deleted := 0

	for _, record := range records {
		if !record.Status.IsTerminal() || record.CompletedAt == nil {
			continue
		}

		if record.CompletedAt.After(cutoff) {
			continue
		}

		err := r.store.Delete(ctx, record.ID)
		if err != nil {
			r.logger.Warn("Failed to reap workflow record", "workflow_id", record.ID, "error", err)

			continue
		}

		deleted++
	}

	if deleted > 0 {
		r.logger.Info("Reaped terminal workflow records", "count", deleted)
	}

	return deleted
}
