package usecase

import (
	"context"
	"time"

	"GiftScout/internal/domain"
)

type fakeSource struct {
	raws []map[string]string
	err  error
}

func (f *fakeSource) Discover(ctx context.Context) ([]map[string]string, error) {
	return f.raws, f.err
}

type memQueue struct {
	entries []domain.QueueEntry
	keys    map[string]struct{}
}

func newMemQueue() *memQueue {
	return &memQueue{keys: map[string]struct{}{}}
}

func (q *memQueue) Enqueue(ctx context.Context, candidate domain.CandidateRecord) (bool, error) {
	key := candidate.DedupKey()
	if _, dup := q.keys[key]; dup {
		return false, nil
	}
	q.keys[key] = struct{}{}
	q.entries = append(q.entries, domain.QueueEntry{Candidate: candidate, QueuedAt: time.Now()})
	return true, nil
}

func (q *memQueue) DequeueBatch(ctx context.Context, n int) ([]domain.QueueEntry, error) {
	if n > len(q.entries) {
		n = len(q.entries)
	}
	batch := q.entries[:n]
	q.entries = q.entries[n:]
	for _, entry := range batch {
		delete(q.keys, entry.Candidate.DedupKey())
	}
	return batch, nil
}

func (q *memQueue) Size(ctx context.Context) (int, error) {
	return len(q.entries), nil
}

type memLog struct {
	records []domain.ProcessedRecord
}

func (l *memLog) Append(ctx context.Context, record domain.ProcessedRecord) error {
	record.RecordedAt = time.Now()
	l.records = append(l.records, record)
	return nil
}

func (l *memLog) Latest(ctx context.Context, ids []string) (map[string]domain.ProcessedRecord, error) {
	wanted := map[string]struct{}{}
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	out := map[string]domain.ProcessedRecord{}
	for _, record := range l.records {
		if _, ok := wanted[record.CommerceID]; ok {
			out[record.CommerceID] = record
		}
	}
	return out, nil
}

func (l *memLog) Recent(ctx context.Context, n int) ([]domain.ProcessedRecord, error) {
	if n > len(l.records) {
		n = len(l.records)
	}
	return l.records[len(l.records)-n:], nil
}

func (l *memLog) byStatus(status domain.ProcessStatus) []domain.ProcessedRecord {
	var out []domain.ProcessedRecord
	for _, record := range l.records {
		if record.Status == status {
			out = append(out, record)
		}
	}
	return out
}

// scriptedClassifier replays one canned response per call.
type scriptedClassifier struct {
	script []func(batch []domain.CandidateRecord) ([]domain.ClassificationResult, error)
	calls  int

	rotations int
	rotateOK  bool
}

func (c *scriptedClassifier) ClassifyBatch(ctx context.Context, batch []domain.CandidateRecord) ([]domain.ClassificationResult, error) {
	if c.calls >= len(c.script) {
		return acceptAll(batch), nil
	}
	step := c.script[c.calls]
	c.calls++
	return step(batch)
}

func (c *scriptedClassifier) RotateCredential() bool {
	c.rotations++
	return c.rotateOK
}

func acceptAll(batch []domain.CandidateRecord) []domain.ClassificationResult {
	results := make([]domain.ClassificationResult, len(batch))
	for i := range batch {
		results[i] = acceptedResult()
	}
	return results
}

func acceptedResult() domain.ClassificationResult {
	return domain.ClassificationResult{
		Accepted:     true,
		QualityScore: 8,
		Category:     "tech",
		AudienceTags: []string{"birthday", "for-him"},
		SEO:          domain.SEOFields{Title: "A fine gift"},
		Slug:         "a-fine-gift",
	}
}

type fakePublisher struct {
	published []string
	outcome   func(candidate domain.CandidateRecord) (domain.PublishOutcome, error)

	updates   []domain.UpdateInstruction
	updateErr func(instruction domain.UpdateInstruction) error
}

func (f *fakePublisher) Publish(ctx context.Context, candidate domain.CandidateRecord, result domain.ClassificationResult) (domain.PublishOutcome, error) {
	f.published = append(f.published, candidate.CommerceID)
	if f.outcome != nil {
		return f.outcome(candidate)
	}
	return domain.PublishOutcome{Status: domain.StatusPublished, PublicID: int64(1000 + len(f.published)), HTTPCode: 200}, nil
}

func (f *fakePublisher) Update(ctx context.Context, instruction domain.UpdateInstruction) error {
	if f.updateErr != nil {
		if err := f.updateErr(instruction); err != nil {
			return err
		}
	}
	f.updates = append(f.updates, instruction)
	return nil
}

type fakeFeed struct {
	rows []map[string]string
	err  error
}

func (f *fakeFeed) FetchRows(ctx context.Context) ([]map[string]string, error) {
	return f.rows, f.err
}

func (f *fakeFeed) FeedID() string { return "vendor-feed" }

type fakeSnapshot struct {
	items []domain.PublishedInventoryItem
}

func (f *fakeSnapshot) PublishedItems(ctx context.Context) ([]domain.PublishedInventoryItem, error) {
	return f.items, nil
}

type memRunIndex struct {
	marks map[string]int
}

func (m *memRunIndex) LastRun(ctx context.Context, feedID string) (time.Time, error) {
	return time.Time{}, nil
}

func (m *memRunIndex) MarkRun(ctx context.Context, feedID string, at time.Time, rows int) error {
	if m.marks == nil {
		m.marks = map[string]int{}
	}
	m.marks[feedID] = rows
	return nil
}

type memNotifier struct {
	reports []domain.RunReport
}

func (n *memNotifier) PublishReport(ctx context.Context, report domain.RunReport) error {
	n.reports = append(n.reports, report)
	return nil
}
