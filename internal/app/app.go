package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"GiftScout/internal/config"
	"GiftScout/internal/domain"
	"GiftScout/internal/filter"
	"GiftScout/internal/infrastructure/content"
	"GiftScout/internal/infrastructure/feed"
	"GiftScout/internal/infrastructure/llm"
	"GiftScout/internal/infrastructure/scheduler"
	"GiftScout/internal/infrastructure/scrape"
	"GiftScout/internal/infrastructure/telegram"
	"GiftScout/internal/logging"
	"GiftScout/internal/ports"
	"GiftScout/internal/reconcile"
	"GiftScout/internal/retry"
	"GiftScout/internal/source"
	"GiftScout/internal/storage"
	"GiftScout/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	store     *storage.Store
	pipeline  *usecase.Pipeline
	inventory *usecase.Inventory
	scheduler *usecase.Scheduler
	logger    *slog.Logger
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	feedProvider := feed.NewCSVProvider(cfg.Reconcile.FeedID, cfg.Reconcile.FeedPath)

	registry := source.NewRegistry()
	registry.Register(source.NewMockStrategy())
	registry.Register(scrape.NewResultsPageStrategy(nil))
	registry.Register(feed.NewSourceStrategy(feedProvider))

	candidateSource := source.NewMultiSource(registry, cfg.Sites, baseLogger.With("component", "source"))

	classifier := llm.NewClassifier(cfg.LLM)
	publisher := content.NewClient(cfg.Content)

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" && cfg.Notifications.Telegram.ChatID != "" {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:          candidateSource,
		Queue:           store,
		Log:             store,
		Classifier:      classifier,
		Publisher:       publisher,
		Notifier:        notifier,
		Evaluator:       filter.New(cfg.Filter),
		Logger:          baseLogger.With("component", "pipeline"),
		BatchSize:       cfg.Pipeline.BatchSize,
		Pace:            cfg.Pipeline.Pace(),
		ClassifyTimeout: cfg.Pipeline.ClassifyTimeout(),
		Policy: retry.Policy{
			MaxAttempts:   2,
			Backoff:       2 * time.Second,
			QuotaWait:     cfg.LLM.QuotaWait(),
			QuotaAttempts: cfg.LLM.MaxAttempts,
		},
	})

	inventory := usecase.NewInventory(usecase.InventoryDeps{
		Feed:        feedProvider,
		RunIndex:    store,
		Snapshot:    publisher,
		Publisher:   publisher,
		Reconciler:  reconcile.New(cfg.Reconcile.PriceEpsilon),
		Logger:      baseLogger.With("component", "reconcile"),
		UpdateDelay: cfg.Reconcile.UpdateDelay(),
	})

	driver := scheduler.NewIntervalScheduler(time.Duration(cfg.Pipeline.RunIntervalHours) * time.Hour)

	return &Application{
		cfg:       cfg,
		store:     store,
		pipeline:  pipeline,
		inventory: inventory,
		scheduler: usecase.NewScheduler(driver, pipeline, inventory, baseLogger.With("component", "scheduler")),
		logger:    baseLogger,
	}, nil
}

// Run executes one curation pass.
func (a *Application) Run(ctx context.Context) (domain.RunReport, error) {
	return a.pipeline.Run(ctx)
}

// Reconcile executes one inventory reconciliation pass.
func (a *Application) Reconcile(ctx context.Context) (domain.RunReport, error) {
	return a.inventory.Run(ctx)
}

// Requeue re-admits error-logged commerce ids into the pending queue.
func (a *Application) Requeue(ctx context.Context, ids []string) (int, error) {
	return a.pipeline.Requeue(ctx, ids)
}

// Serve runs recurring passes until the context is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	<-ctx.Done()
	return a.scheduler.Stop(context.Background())
}

// Close releases the embedded store.
func (a *Application) Close() error {
	return a.store.Close()
}
