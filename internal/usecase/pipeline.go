package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"GiftScout/internal/domain"
	"GiftScout/internal/faults"
	"GiftScout/internal/filter"
	"GiftScout/internal/normalize"
	"GiftScout/internal/ports"
	"GiftScout/internal/retry"
)

// PipelineDeps wires all driven adapters into the curation pipeline.
type PipelineDeps struct {
	Source     ports.CandidateSource
	Queue      ports.QueueStore
	Log        ports.ProcessedLog
	Classifier ports.Classifier
	Publisher  ports.ContentPublisher
	Notifier   ports.Notifier
	Evaluator  *filter.Evaluator
	Logger     *slog.Logger

	BatchSize       int
	Pace            time.Duration
	ClassifyTimeout time.Duration
	Policy          retry.Policy
}

// Pipeline implements the curation workflow: discover, filter, queue,
// classify in batches, publish, log. All stages run in sequence on one
// flow; the classification timeout worker is the only concurrency.
type Pipeline struct {
	source     ports.CandidateSource
	queue      ports.QueueStore
	log        ports.ProcessedLog
	classifier ports.Classifier
	publisher  ports.ContentPublisher
	notifier   ports.Notifier
	evaluator  *filter.Evaluator
	logger     *slog.Logger

	batchSize       int
	pace            time.Duration
	classifyTimeout time.Duration
	policy          retry.Policy

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration)
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	batchSize := deps.BatchSize
	if batchSize <= 0 {
		batchSize = 3
	}
	timeout := deps.ClassifyTimeout
	if timeout <= 0 {
		timeout = 9 * time.Second
	}

	p := &Pipeline{
		source:          deps.Source,
		queue:           deps.Queue,
		log:             deps.Log,
		classifier:      deps.Classifier,
		publisher:       deps.Publisher,
		notifier:        deps.Notifier,
		evaluator:       deps.Evaluator,
		logger:          deps.Logger,
		batchSize:       batchSize,
		pace:            deps.Pace,
		classifyTimeout: timeout,
		policy:          deps.Policy,
	}
	p.sleep = func(ctx context.Context, d time.Duration) {
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
	return p
}

// Run executes one full pass: ingest fresh candidates, then drain the
// pending queue through classification and publishing. Only queue/log
// store failures abort the run; record and batch failures are logged and
// the run continues.
func (p *Pipeline) Run(ctx context.Context) (domain.RunReport, error) {
	report := domain.RunReport{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}

	if err := p.ingest(ctx, &report); err != nil {
		return report, fmt.Errorf("ingest: %w", err)
	}

	if err := p.drainQueue(ctx, &report); err != nil {
		return report, fmt.Errorf("classify: %w", err)
	}

	report.FinishedAt = time.Now().UTC()
	p.notify(ctx, report)
	return report, nil
}

// ingest discovers raw records, normalizes, filters and enqueues them.
func (p *Pipeline) ingest(ctx context.Context, report *domain.RunReport) error {
	if p.source == nil {
		return nil
	}

	raws, err := p.source.Discover(ctx)
	if err != nil {
		// Discovery failure leaves the queue untouched; the drain phase
		// can still make progress on previously queued entries.
		p.warn("discovery failed", "error", err)
		return nil
	}
	report.Discovered = len(raws)

	var candidates []domain.CandidateRecord
	for _, raw := range raws {
		candidate, err := normalize.Candidate(raw)
		if err != nil {
			report.Invalid++
			p.debug("invalid raw record", "error", err)
			continue
		}
		candidates = append(candidates, candidate)
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.CommerceID
	}
	seen := map[string]domain.ProcessedRecord{}
	if p.log != nil && len(ids) > 0 {
		seen, err = p.log.Latest(ctx, ids)
		if err != nil {
			return fmt.Errorf("load processed: %w", err)
		}
	}

	for _, candidate := range candidates {
		// Any earlier outcome (published, rejected, error awaiting a
		// manual requeue) keeps the candidate out of the pipeline.
		if _, done := seen[candidate.CommerceID]; done {
			continue
		}

		verdict := p.evaluator.Evaluate(candidate)
		if !verdict.Accept {
			report.FilteredOut++
			if err := p.append(ctx, domain.ProcessedRecord{
				CommerceID: candidate.CommerceID,
				Status:     domain.StatusRejected,
				Reason:     verdict.Reason,
				RunID:      report.RunID,
			}); err != nil {
				return err
			}
			continue
		}

		enqueued, err := p.queue.Enqueue(ctx, candidate)
		if err != nil {
			return fmt.Errorf("enqueue %s: %w", candidate.CommerceID, err)
		}
		if !enqueued {
			// Dedup hit: counted, not logged as a failure.
			report.Duplicates++
			continue
		}
		report.Accepted++
		p.debug("candidate queued", "commerce_id", candidate.CommerceID, "score", verdict.Score)
	}

	return nil
}

// drainQueue consumes the pending queue in batches until it is empty.
func (p *Pipeline) drainQueue(ctx context.Context, report *domain.RunReport) error {
	firstCall := true
	for {
		if err := ctx.Err(); err != nil {
			// Interrupt: the in-flight unit finished, stop before the next.
			return nil
		}

		entries, err := p.queue.DequeueBatch(ctx, p.batchSize)
		if err != nil {
			return fmt.Errorf("dequeue batch: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}

		batch := make([]domain.CandidateRecord, len(entries))
		for i, entry := range entries {
			batch[i] = entry.Candidate
		}

		if !firstCall {
			p.sleep(ctx, p.pace)
		}
		firstCall = false

		results, err := p.classifyBatch(ctx, batch)
		if err != nil {
			p.warn("batch classification failed", "size", len(batch), "error", err)
			for i := range batch {
				candidate := batch[i]
				if appendErr := p.append(ctx, domain.ProcessedRecord{
					CommerceID: candidate.CommerceID,
					Status:     domain.StatusError,
					Reason:     err.Error(),
					RunID:      report.RunID,
					Candidate:  &candidate,
				}); appendErr != nil {
					return appendErr
				}
				report.Errors++
			}
			continue
		}

		for i, result := range results {
			if err := p.handleResult(ctx, batch[i], result, report); err != nil {
				return err
			}
		}
	}
}

// classifyBatch runs one boundary call under the hard wall-clock timeout
// and the shared retry policy (transient retry, quota backoff, credential
// rotation).
func (p *Pipeline) classifyBatch(ctx context.Context, batch []domain.CandidateRecord) ([]domain.ClassificationResult, error) {
	var results []domain.ClassificationResult

	policy := p.policy
	if policy.OnQuotaExhausted == nil {
		policy.OnQuotaExhausted = p.classifier.RotateCredential
	}

	err := policy.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, p.classifyTimeout)
		defer cancel()

		type outcome struct {
			results []domain.ClassificationResult
			err     error
		}
		done := make(chan outcome, 1)
		go func() {
			r, e := p.classifier.ClassifyBatch(callCtx, batch)
			done <- outcome{results: r, err: e}
		}()

		select {
		case out := <-done:
			if out.err != nil {
				return out.err
			}
			if len(out.results) != len(batch) {
				return faults.Parsef("classify", "got %d results for batch of %d", len(out.results), len(batch))
			}
			results = out.results
			return nil
		case <-callCtx.Done():
			// The worker is abandoned; its late result is dropped.
			return faults.Transient("classify", fmt.Errorf("call exceeded %s", p.classifyTimeout))
		}
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) handleResult(ctx context.Context, candidate domain.CandidateRecord, result domain.ClassificationResult, report *domain.RunReport) error {
	if !result.Accepted {
		report.Rejected++
		return p.append(ctx, domain.ProcessedRecord{
			CommerceID: candidate.CommerceID,
			Status:     domain.StatusRejected,
			Reason:     fmt.Sprintf("classification declined (quality %d)", result.QualityScore),
			RunID:      report.RunID,
		})
	}

	if err := domain.ValidateTaxonomy(result); err != nil {
		report.Rejected++
		return p.append(ctx, domain.ProcessedRecord{
			CommerceID: candidate.CommerceID,
			Status:     domain.StatusRejected,
			Reason:     "invalid taxonomy: " + err.Error(),
			RunID:      report.RunID,
		})
	}

	outcome, err := p.publisher.Publish(ctx, candidate, result)
	record := domain.ProcessedRecord{
		CommerceID: candidate.CommerceID,
		Status:     outcome.Status,
		Reason:     outcome.Reason,
		HTTPCode:   outcome.HTTPCode,
		RunID:      report.RunID,
	}

	switch outcome.Status {
	case domain.StatusPublished:
		report.Published++
		p.info("published", "commerce_id", candidate.CommerceID, "public_id", outcome.PublicID)
	case domain.StatusRejected:
		report.Rejected++
	default:
		record.Status = domain.StatusError
		record.Candidate = &candidate
		if record.Reason == "" && err != nil {
			record.Reason = err.Error()
		}
		report.Errors++
		p.warn("publish failed", "commerce_id", candidate.CommerceID, "error", err)
	}

	return p.append(ctx, record)
}

// Requeue re-admits error-logged commerce ids into the pending queue. It
// is the manual retry pass; nothing re-queues automatically.
func (p *Pipeline) Requeue(ctx context.Context, ids []string) (int, error) {
	latest, err := p.log.Latest(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("load processed: %w", err)
	}

	requeued := 0
	for _, id := range ids {
		record, ok := latest[id]
		if !ok || record.Status != domain.StatusError || record.Candidate == nil {
			p.debug("requeue skipped", "commerce_id", id)
			continue
		}

		enqueued, err := p.queue.Enqueue(ctx, *record.Candidate)
		if err != nil {
			return requeued, fmt.Errorf("requeue %s: %w", id, err)
		}
		if enqueued {
			requeued++
		}
	}

	return requeued, nil
}

func (p *Pipeline) append(ctx context.Context, record domain.ProcessedRecord) error {
	if p.log == nil {
		return nil
	}
	if err := p.log.Append(ctx, record); err != nil {
		return fmt.Errorf("append processed %s: %w", record.CommerceID, err)
	}
	return nil
}

func (p *Pipeline) notify(ctx context.Context, report domain.RunReport) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.PublishReport(ctx, report); err != nil {
		p.warn("run report not delivered", "error", err)
	}
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
