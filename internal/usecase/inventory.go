package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"GiftScout/internal/domain"
	"GiftScout/internal/normalize"
	"GiftScout/internal/ports"
	"GiftScout/internal/reconcile"
)

// InventoryDeps wires the reconciliation pass.
type InventoryDeps struct {
	Feed       ports.FeedProvider
	RunIndex   ports.FeedRunIndex
	Snapshot   ports.InventorySource
	Publisher  ports.ContentPublisher
	Reconciler *reconcile.Reconciler
	Logger     *slog.Logger

	UpdateDelay time.Duration
}

// Inventory compares the published catalog against the latest vendor
// feed and applies the resulting update instructions one at a time.
type Inventory struct {
	feed       ports.FeedProvider
	runIndex   ports.FeedRunIndex
	snapshot   ports.InventorySource
	publisher  ports.ContentPublisher
	reconciler *reconcile.Reconciler
	logger     *slog.Logger

	updateDelay time.Duration

	sleep func(ctx context.Context, d time.Duration)
}

// NewInventory constructs the reconciliation component.
func NewInventory(deps InventoryDeps) *Inventory {
	inv := &Inventory{
		feed:        deps.Feed,
		runIndex:    deps.RunIndex,
		snapshot:    deps.Snapshot,
		publisher:   deps.Publisher,
		reconciler:  deps.Reconciler,
		logger:      deps.Logger,
		updateDelay: deps.UpdateDelay,
	}
	inv.sleep = func(ctx context.Context, d time.Duration) {
		if d <= 0 {
			return
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
	}
	return inv
}

// Run performs one reconciliation pass. A failed instruction is logged
// and skipped; the pass continues with the rest.
func (inv *Inventory) Run(ctx context.Context) (domain.RunReport, error) {
	report := domain.RunReport{StartedAt: time.Now().UTC()}

	raws, err := inv.feed.FetchRows(ctx)
	if err != nil {
		return report, fmt.Errorf("fetch feed: %w", err)
	}

	rows := make([]domain.VendorFeedRow, 0, len(raws))
	for _, raw := range raws {
		row, err := normalize.FeedRow(raw)
		if err != nil {
			report.Invalid++
			inv.debug("invalid feed row", "error", err)
			continue
		}
		rows = append(rows, row)
	}

	index := reconcile.BuildIndex(rows)

	items, err := inv.snapshot.PublishedItems(ctx)
	if err != nil {
		return report, fmt.Errorf("fetch inventory: %w", err)
	}

	instructions := inv.reconciler.Reconcile(items, index)
	inv.info("reconciliation planned",
		"feed_rows", len(rows), "published", len(items), "instructions", len(instructions))

	for i, instruction := range instructions {
		if i > 0 {
			inv.sleep(ctx, inv.updateDelay)
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if err := inv.publisher.Update(ctx, instruction); err != nil {
			report.Errors++
			inv.warn("update failed",
				"kind", string(instruction.Kind), "public_id", instruction.PublicID, "error", err)
			continue
		}

		switch instruction.Kind {
		case domain.InstructionSoftDelist:
			report.Delisted++
		case domain.InstructionResurrect:
			report.Resurrected++
		case domain.InstructionPriceUpdate:
			report.Repriced++
		}
		inv.debug("update applied",
			"kind", string(instruction.Kind), "public_id", instruction.PublicID, "reason", instruction.Reason)
	}

	if inv.runIndex != nil {
		if err := inv.runIndex.MarkRun(ctx, inv.feed.FeedID(), time.Now().UTC(), len(rows)); err != nil {
			inv.warn("feed run not recorded", "feed_id", inv.feed.FeedID(), "error", err)
		}
	}

	report.FinishedAt = time.Now().UTC()
	return report, nil
}

func (inv *Inventory) debug(msg string, args ...any) {
	if inv.logger != nil {
		inv.logger.Debug(msg, args...)
	}
}

func (inv *Inventory) info(msg string, args ...any) {
	if inv.logger != nil {
		inv.logger.Info(msg, args...)
	}
}

func (inv *Inventory) warn(msg string, args ...any) {
	if inv.logger != nil {
		inv.logger.Warn(msg, args...)
	}
}
