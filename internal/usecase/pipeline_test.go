package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GiftScout/internal/config"
	"GiftScout/internal/domain"
	"GiftScout/internal/faults"
	"GiftScout/internal/filter"
	"GiftScout/internal/normalize"
	"GiftScout/internal/retry"
)

func giftRaw(id, ean string) map[string]string {
	return map[string]string{
		"id":           id,
		"ean":          ean,
		"title":        "Personalized Gift Mug",
		"price":        "49,99 €",
		"availability": "in stock",
		"image":        "https://cdn.example.com/" + id + ".jpg",
		"url":          "https://shop.example.com/p/" + id,
		"category":     "Kitchen Gifts",
		"vendor":       "example-shop",
	}
}

func testDeps(source *fakeSource, queue *memQueue, log *memLog, classifier *scriptedClassifier, publisher *fakePublisher) PipelineDeps {
	return PipelineDeps{
		Source:     source,
		Queue:      queue,
		Log:        log,
		Classifier: classifier,
		Publisher:  publisher,
		Evaluator:  filter.New(config.FilterConfig{MinPrice: 12, MaxPrice: 200, ScoreThreshold: 45}),
		BatchSize:  3,
		Policy:     retry.Policy{MaxAttempts: 1, Sleep: func(ctx context.Context, d time.Duration) error { return nil }},
	}
}

func TestRunHappyPath(t *testing.T) {
	t.Parallel()

	source := &fakeSource{raws: []map[string]string{
		giftRaw("p1", "4001111111111"),
		giftRaw("p2", "4002222222222"),
		giftRaw("p3", "4003333333333"),
	}}
	queue := newMemQueue()
	log := &memLog{}
	classifier := &scriptedClassifier{}
	publisher := &fakePublisher{}
	notifier := &memNotifier{}

	deps := testDeps(source, queue, log, classifier, publisher)
	deps.Notifier = notifier
	pipeline := NewPipeline(deps)

	report, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Discovered)
	assert.Equal(t, 3, report.Accepted)
	assert.Equal(t, 3, report.Published)
	assert.Zero(t, report.Rejected)
	assert.Zero(t, report.Errors)
	assert.NotEmpty(t, report.RunID)

	assert.Equal(t, []string{"p1", "p2", "p3"}, publisher.published)
	assert.Len(t, log.byStatus(domain.StatusPublished), 3)

	size, _ := queue.Size(context.Background())
	assert.Zero(t, size)

	require.Len(t, notifier.reports, 1)
	assert.Equal(t, report.RunID, notifier.reports[0].RunID)
}

func TestRunSkipsAlreadyProcessed(t *testing.T) {
	t.Parallel()

	log := &memLog{}
	require.NoError(t, log.Append(context.Background(), domain.ProcessedRecord{
		CommerceID: "p1",
		Status:     domain.StatusPublished,
	}))

	source := &fakeSource{raws: []map[string]string{giftRaw("p1", "4001111111111")}}
	queue := newMemQueue()
	pipeline := NewPipeline(testDeps(source, queue, log, &scriptedClassifier{}, &fakePublisher{}))

	report, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Discovered)
	assert.Zero(t, report.Accepted)
	assert.Zero(t, report.Published)
	// The earlier published record is still the only log entry.
	assert.Len(t, log.records, 1)
}

func TestRunLogsFilterRejections(t *testing.T) {
	t.Parallel()

	raw := giftRaw("p1", "4001111111111")
	raw["availability"] = "out of stock"

	log := &memLog{}
	pipeline := NewPipeline(testDeps(&fakeSource{raws: []map[string]string{raw}}, newMemQueue(), log, &scriptedClassifier{}, &fakePublisher{}))

	report, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.FilteredOut)
	rejected := log.byStatus(domain.StatusRejected)
	require.Len(t, rejected, 1)
	assert.Contains(t, rejected[0].Reason, "stock state")
}

func TestRunCountsInvalidAndDuplicates(t *testing.T) {
	t.Parallel()

	noID := giftRaw("", "4009999999999")
	delete(noID, "id")

	source := &fakeSource{raws: []map[string]string{
		giftRaw("p1", "4001111111111"),
		giftRaw("p2", "4001111111111"), // same EAN, different vendor listing
		noID,
	}}
	pipeline := NewPipeline(testDeps(source, newMemQueue(), &memLog{}, &scriptedClassifier{}, &fakePublisher{}))

	report, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Discovered)
	assert.Equal(t, 1, report.Invalid)
	assert.Equal(t, 1, report.Accepted)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 1, report.Published)
}

func TestShortResultArrayFailsWholeBatch(t *testing.T) {
	t.Parallel()

	queue := newMemQueue()
	for _, raw := range []map[string]string{
		giftRaw("p1", "4001111111111"),
		giftRaw("p2", "4002222222222"),
		giftRaw("p3", "4003333333333"),
	} {
		candidate := mustCandidate(t, raw)
		_, err := queue.Enqueue(context.Background(), candidate)
		require.NoError(t, err)
	}

	classifier := &scriptedClassifier{script: []func([]domain.CandidateRecord) ([]domain.ClassificationResult, error){
		func(batch []domain.CandidateRecord) ([]domain.ClassificationResult, error) {
			return acceptAll(batch)[:2], nil
		},
	}}
	log := &memLog{}
	publisher := &fakePublisher{}
	pipeline := NewPipeline(testDeps(&fakeSource{}, queue, log, classifier, publisher))

	report, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	// A mismatched response invalidates the whole batch; no partial
	// publishing by position.
	assert.Empty(t, publisher.published)
	assert.Equal(t, 3, report.Errors)

	failed := log.byStatus(domain.StatusError)
	require.Len(t, failed, 3)
	for _, record := range failed {
		require.NotNil(t, record.Candidate)
		assert.Contains(t, record.Reason, "3")
	}
}

func TestRejectedAndInvalidTaxonomyOutcomes(t *testing.T) {
	t.Parallel()

	queue := newMemQueue()
	for _, raw := range []map[string]string{
		giftRaw("p1", "4001111111111"),
		giftRaw("p2", "4002222222222"),
		giftRaw("p3", "4003333333333"),
	} {
		_, err := queue.Enqueue(context.Background(), mustCandidate(t, raw))
		require.NoError(t, err)
	}

	classifier := &scriptedClassifier{script: []func([]domain.CandidateRecord) ([]domain.ClassificationResult, error){
		func(batch []domain.CandidateRecord) ([]domain.ClassificationResult, error) {
			results := acceptAll(batch)
			results[0].Accepted = false
			results[0].QualityScore = 2
			results[1].Category = "electronics" // not in the vocabulary
			return results, nil
		},
	}}
	log := &memLog{}
	publisher := &fakePublisher{}
	pipeline := NewPipeline(testDeps(&fakeSource{}, queue, log, classifier, publisher))

	report, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"p3"}, publisher.published)
	assert.Equal(t, 1, report.Published)
	assert.Equal(t, 2, report.Rejected)

	rejected := log.byStatus(domain.StatusRejected)
	require.Len(t, rejected, 2)
	assert.Contains(t, rejected[0].Reason, "declined")
	assert.Contains(t, rejected[1].Reason, "invalid taxonomy")
}

func TestClassificationTimeoutMarksBatch(t *testing.T) {
	t.Parallel()

	queue := newMemQueue()
	_, err := queue.Enqueue(context.Background(), mustCandidate(t, giftRaw("p1", "4001111111111")))
	require.NoError(t, err)

	classifier := &scriptedClassifier{script: []func([]domain.CandidateRecord) ([]domain.ClassificationResult, error){
		func(batch []domain.CandidateRecord) ([]domain.ClassificationResult, error) {
			time.Sleep(200 * time.Millisecond)
			return acceptAll(batch), nil
		},
	}}
	log := &memLog{}
	publisher := &fakePublisher{}

	deps := testDeps(&fakeSource{}, queue, log, classifier, publisher)
	deps.ClassifyTimeout = 10 * time.Millisecond
	pipeline := NewPipeline(deps)

	report, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, publisher.published)
	assert.Equal(t, 1, report.Errors)
	failed := log.byStatus(domain.StatusError)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Reason, "exceeded")
}

func TestQuotaBackoffThenRotation(t *testing.T) {
	t.Parallel()

	queue := newMemQueue()
	_, err := queue.Enqueue(context.Background(), mustCandidate(t, giftRaw("p1", "4001111111111")))
	require.NoError(t, err)

	quota := func(batch []domain.CandidateRecord) ([]domain.ClassificationResult, error) {
		return nil, faults.Quota("classify", errors.New("quota exceeded"))
	}
	classifier := &scriptedClassifier{
		rotateOK: true,
		script: []func([]domain.CandidateRecord) ([]domain.ClassificationResult, error){
			quota, quota,
			func(batch []domain.CandidateRecord) ([]domain.ClassificationResult, error) {
				return acceptAll(batch), nil
			},
		},
	}

	var waits []time.Duration
	log := &memLog{}
	publisher := &fakePublisher{}
	deps := testDeps(&fakeSource{}, queue, log, classifier, publisher)
	deps.Policy = retry.Policy{
		MaxAttempts:   1,
		QuotaWait:     time.Minute,
		QuotaAttempts: 2,
		Sleep: func(ctx context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		},
	}
	pipeline := NewPipeline(deps)

	report, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Published)
	assert.Equal(t, 3, classifier.calls)
	assert.Equal(t, 1, classifier.rotations)
	assert.Equal(t, []time.Duration{time.Minute}, waits)
}

func TestPublishErrorKeepsCandidateForRequeue(t *testing.T) {
	t.Parallel()

	queue := newMemQueue()
	_, err := queue.Enqueue(context.Background(), mustCandidate(t, giftRaw("p1", "4001111111111")))
	require.NoError(t, err)

	publisher := &fakePublisher{outcome: func(candidate domain.CandidateRecord) (domain.PublishOutcome, error) {
		return domain.PublishOutcome{Status: domain.StatusError, HTTPCode: 503, Reason: "content api unavailable"},
			errors.New("content api unavailable")
	}}
	log := &memLog{}
	pipeline := NewPipeline(testDeps(&fakeSource{}, queue, log, &scriptedClassifier{}, publisher))

	report, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Errors)

	failed := log.byStatus(domain.StatusError)
	require.Len(t, failed, 1)
	require.NotNil(t, failed[0].Candidate)
	assert.Equal(t, 503, failed[0].HTTPCode)

	// The stored candidate lets the manual pass re-admit the entry.
	requeued, err := pipeline.Requeue(context.Background(), []string{"p1", "unknown"})
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)

	size, _ := queue.Size(context.Background())
	assert.Equal(t, 1, size)
}

func TestRequeueIgnoresNonErrorRecords(t *testing.T) {
	t.Parallel()

	log := &memLog{}
	require.NoError(t, log.Append(context.Background(), domain.ProcessedRecord{
		CommerceID: "p1",
		Status:     domain.StatusRejected,
	}))
	queue := newMemQueue()
	pipeline := NewPipeline(testDeps(&fakeSource{}, queue, log, &scriptedClassifier{}, &fakePublisher{}))

	requeued, err := pipeline.Requeue(context.Background(), []string{"p1"})
	require.NoError(t, err)
	assert.Zero(t, requeued)
}

func TestPacingBetweenBatches(t *testing.T) {
	t.Parallel()

	queue := newMemQueue()
	for _, raw := range []map[string]string{
		giftRaw("p1", "4001111111111"),
		giftRaw("p2", "4002222222222"),
	} {
		_, err := queue.Enqueue(context.Background(), mustCandidate(t, raw))
		require.NoError(t, err)
	}

	deps := testDeps(&fakeSource{}, queue, &memLog{}, &scriptedClassifier{}, &fakePublisher{})
	deps.BatchSize = 1
	deps.Pace = 2 * time.Second
	pipeline := NewPipeline(deps)

	var paced []time.Duration
	pipeline.sleep = func(ctx context.Context, d time.Duration) {
		paced = append(paced, d)
	}

	_, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	// No pause before the first call, one pause between the two batches.
	assert.Equal(t, []time.Duration{2 * time.Second}, paced)
}

func mustCandidate(t *testing.T, raw map[string]string) domain.CandidateRecord {
	t.Helper()
	candidate, err := normalize.Candidate(raw)
	require.NoError(t, err)
	return candidate
}
