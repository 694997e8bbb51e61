package ports

import (
	"context"
	"time"

	"GiftScout/internal/domain"
)

// CandidateSource yields raw key-value records from upstream providers
// (scraped result pages, vendor feeds, mocks). Keys vary per vendor; the
// Normalizer owns the alias table.
type CandidateSource interface {
	Discover(ctx context.Context) ([]map[string]string, error)
}

// QueueStore is the persistent deduplicated FIFO of accepted candidates.
type QueueStore interface {
	// Enqueue returns false when a duplicate by cross-id/commerce-id is
	// already queued.
	Enqueue(ctx context.Context, candidate domain.CandidateRecord) (bool, error)
	// DequeueBatch consumes and removes up to n entries in insertion order.
	DequeueBatch(ctx context.Context, n int) ([]domain.QueueEntry, error)
	Size(ctx context.Context) (int, error)
}

// ProcessedLog is the append-only outcome journal.
type ProcessedLog interface {
	Append(ctx context.Context, record domain.ProcessedRecord) error
	// Latest returns the most recent record per requested commerce id.
	Latest(ctx context.Context, ids []string) (map[string]domain.ProcessedRecord, error)
	Recent(ctx context.Context, n int) ([]domain.ProcessedRecord, error)
}

// Classifier calls the external LLM boundary for one batch. Results align
// positionally with the batch.
type Classifier interface {
	ClassifyBatch(ctx context.Context, batch []domain.CandidateRecord) ([]domain.ClassificationResult, error)
	// RotateCredential switches to the next configured API key; false when
	// no further key is available.
	RotateCredential() bool
}

// ContentPublisher persists records at the content-management boundary.
type ContentPublisher interface {
	Publish(ctx context.Context, candidate domain.CandidateRecord, result domain.ClassificationResult) (domain.PublishOutcome, error)
	Update(ctx context.Context, instruction domain.UpdateInstruction) error
}

// InventorySource reads the snapshot of already-published items.
type InventorySource interface {
	PublishedItems(ctx context.Context) ([]domain.PublishedInventoryItem, error)
}

// FeedProvider yields raw rows of the current vendor feed.
type FeedProvider interface {
	FetchRows(ctx context.Context) ([]map[string]string, error)
	FeedID() string
}

// FeedRunIndex remembers per-feed reconciliation timestamps.
type FeedRunIndex interface {
	LastRun(ctx context.Context, feedID string) (time.Time, error)
	MarkRun(ctx context.Context, feedID string, at time.Time, rows int) error
}

// Notifier delivers run reports to an operations channel.
type Notifier interface {
	PublishReport(ctx context.Context, report domain.RunReport) error
}

// Scheduler controls when recurring runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
