// Package sweeper runs the inactivity sweep on an in-process clock, for
// deployments without an external scheduler hitting /schedule.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
	"github.com/ashureev/line-handoff/internal/handoff"
)

// tickInterval is the resolution of the cron evaluation. Cron expressions
// have minute granularity, so checking once a minute is exact.
const tickInterval = time.Minute

// Worker triggers Machine.Sweep whenever the configured cron expression
// is due.
type Worker struct {
	machine          *handoff.Machine
	cronExpr         string
	thresholdMinutes int
	gron             gronx.Gronx
	logger           *slog.Logger
}

// New validates the cron expression and creates a sweep worker.
func New(machine *handoff.Machine, cronExpr string, thresholdMinutes int, logger *slog.Logger) (*Worker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	gron := gronx.New()
	if !gron.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid sweep cron expression %q", cronExpr)
	}
	if thresholdMinutes <= 0 {
		return nil, fmt.Errorf("sweep threshold must be positive, got %d", thresholdMinutes)
	}
	return &Worker{
		machine:          machine,
		cronExpr:         cronExpr,
		thresholdMinutes: thresholdMinutes,
		gron:             gron,
		logger:           logger,
	}, nil
}

// Start runs the worker until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	go func() {
		defer ticker.Stop()
		w.logger.Info("sweep worker started",
			"cron", w.cronExpr,
			"threshold_minutes", w.thresholdMinutes)

		for {
			select {
			case <-ticker.C:
				due, err := w.gron.IsDue(w.cronExpr, time.Now())
				if err != nil {
					w.logger.Error("cron evaluation failed", "error", err)
					continue
				}
				if !due {
					continue
				}
				if _, err := w.machine.Sweep(ctx, w.thresholdMinutes); err != nil {
					w.logger.Error("scheduled sweep failed", "error", err)
				}
			case <-ctx.Done():
				w.logger.Info("sweep worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
