package usecase

import (
	"context"
	"log/slog"
	"time"

	"GiftScout/internal/ports"
)

// Scheduler wires the interval driver with the pipeline and the
// reconciliation pass.
type Scheduler struct {
	driver    ports.Scheduler
	pipeline  *Pipeline
	inventory *Inventory
	logger    *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, inventory *Inventory, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, inventory: inventory, logger: logger}
}

// Start registers the recurring job with the provided driver. Each tick
// runs one curation pass followed by one reconciliation pass.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if s.pipeline != nil {
			if _, err := s.pipeline.Run(ctx); err != nil {
				s.warn("scheduled pipeline run failed", "trigger", trigger, "error", err)
			}
		}
		if s.inventory != nil {
			if _, err := s.inventory.Run(ctx); err != nil {
				s.warn("scheduled reconciliation failed", "trigger", trigger, "error", err)
			}
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

func (s *Scheduler) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
