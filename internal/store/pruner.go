// ABOUTME: Scheduled retention for the tool-call audit log
// ABOUTME: Runs PruneToolCalls on a cron expression until its context is cancelled

package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultPruneSchedule runs retention once a day at 03:15.
const DefaultPruneSchedule = "15 3 * * *"

// Pruner periodically deletes audit rows older than the retention window.
type Pruner struct {
	store     Store
	retention time.Duration
	schedule  cron.Schedule
	cronExpr  string
	now       func() time.Time
	logger    *slog.Logger
}

// NewPruner validates the schedule (standard five-field cron) and returns a Pruner.
func NewPruner(s Store, retention time.Duration, schedule string, logger *slog.Logger) (*Pruner, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("audit retention must be positive, got %s", retention)
	}
	if schedule == "" {
		schedule = DefaultPruneSchedule
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		store:     s,
		retention: retention,
		schedule:  sched,
		cronExpr:  schedule,
		now:       time.Now,
		logger:    logger.With("component", "audit-pruner"),
	}, nil
}

// PruneOnce deletes rows older than the retention window.
func (p *Pruner) PruneOnce(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.retention)
	n, err := p.store.PruneToolCalls(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.logger.Info("pruned tool-call audit log", "deleted", n, "cutoff", cutoff.UTC())
	}
	return n, nil
}

// Run schedules pruning and blocks until ctx is cancelled.
func (p *Pruner) Run(ctx context.Context) error {
	c := cron.New()
	c.Schedule(p.schedule, cron.FuncJob(func() {
		if _, err := p.PruneOnce(ctx); err != nil {
			p.logger.Warn("audit prune failed", "error", err)
		}
	}))
	c.Start()
	p.logger.Info("audit pruner started", "schedule", p.cronExpr, "retention", p.retention)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
