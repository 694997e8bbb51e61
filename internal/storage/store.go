// Package storage implements the durable pipeline state on an embedded
// sqlite database: the deduplicated pending queue, the append-only
// processed log and the per-feed reconciliation index. One Store instance
// is the single writer; every mutation is a scoped transaction.
package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"GiftScout/internal/domain"
	"GiftScout/internal/ports"
)

//go:embed schema.sql
var schema string

// Store wraps the sqlite handle shared by queue, log and feed index.
type Store struct {
	db *sql.DB
}

var (
	_ ports.QueueStore   = (*Store)(nil)
	_ ports.ProcessedLog = (*Store)(nil)
	_ ports.FeedRunIndex = (*Store)(nil)
)

// Open creates or opens the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single pipeline process at a time; one connection keeps mutations
	// strictly serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Enqueue inserts an accepted candidate unless an entry with the same
// dedup key (cross id, or commerce id without one) is already queued.
func (s *Store) Enqueue(ctx context.Context, c domain.CandidateRecord) (bool, error) {
	query, args, err := sq.Insert("pending_queue").
		Options("OR IGNORE").
		Columns("dedup_key", "commerce_id", "cross_id", "title", "price",
			"image_url", "source_url", "vendor_name", "stock_state", "raw_category", "queued_at").
		Values(c.DedupKey(), c.CommerceID, c.CrossID, c.Title, c.Price,
			c.ImageURL, c.SourceURL, c.VendorName, string(c.StockState), c.RawCategory, time.Now().UTC()).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build enqueue: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", c.CommerceID, err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("enqueue rows affected: %w", err)
	}
	return inserted > 0, nil
}

// DequeueBatch consumes up to n entries in insertion order. Selection and
// deletion happen in one transaction so a crash never loses nor duplicates
// an in-flight batch.
func (s *Store) DequeueBatch(ctx context.Context, n int) ([]domain.QueueEntry, error) {
	if n <= 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin dequeue: %w", err)
	}
	defer tx.Rollback()

	query, args, err := sq.Select("seq", "commerce_id", "cross_id", "title", "price",
		"image_url", "source_url", "vendor_name", "stock_state", "raw_category", "queued_at").
		From("pending_queue").
		OrderBy("seq ASC").
		Limit(uint64(n)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build dequeue: %w", err)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select batch: %w", err)
	}

	var (
		entries []domain.QueueEntry
		seqs    []any
	)
	for rows.Next() {
		var (
			seq   int64
			c     domain.CandidateRecord
			state string
			at    time.Time
		)
		if err := rows.Scan(&seq, &c.CommerceID, &c.CrossID, &c.Title, &c.Price,
			&c.ImageURL, &c.SourceURL, &c.VendorName, &state, &c.RawCategory, &at); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		c.StockState = domain.StockState(state)
		entries = append(entries, domain.QueueEntry{Candidate: c, QueuedAt: at})
		seqs = append(seqs, seq)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate batch: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close batch rows: %w", err)
	}

	if len(seqs) > 0 {
		del, delArgs, err := sq.Delete("pending_queue").
			Where(sq.Eq{"seq": seqs}).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, del, delArgs...); err != nil {
			return nil, fmt.Errorf("delete batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit dequeue: %w", err)
	}

	return entries, nil
}

// Size returns the number of queued entries.
func (s *Store) Size(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pending_queue").Scan(&count); err != nil {
		return 0, fmt.Errorf("queue size: %w", err)
	}
	return count, nil
}

// Append writes one processed record. Error outcomes keep the candidate
// payload so a manual requeue pass can re-admit them later.
func (s *Store) Append(ctx context.Context, r domain.ProcessedRecord) error {
	at := r.RecordedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var payload any
	if r.Candidate != nil {
		raw, err := json.Marshal(r.Candidate)
		if err != nil {
			return fmt.Errorf("marshal candidate payload: %w", err)
		}
		payload = string(raw)
	}

	query, args, err := sq.Insert("processed_log").
		Columns("commerce_id", "status", "reason", "http_code", "run_id", "payload", "recorded_at").
		Values(r.CommerceID, string(r.Status), r.Reason, r.HTTPCode, r.RunID, payload, at).
		ToSql()
	if err != nil {
		return fmt.Errorf("build append: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append processed %s: %w", r.CommerceID, err)
	}
	return nil
}

// Latest returns the most recent record per requested commerce id. Absent
// ids are simply missing from the result map.
func (s *Store) Latest(ctx context.Context, ids []string) (map[string]domain.ProcessedRecord, error) {
	result := make(map[string]domain.ProcessedRecord)
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := sq.Select("commerce_id", "status", "reason", "http_code", "run_id", "payload", "recorded_at").
		From("processed_log").
		Where(sq.Eq{"commerce_id": ids}).
		OrderBy("seq ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query latest: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		record, err := scanProcessed(rows)
		if err != nil {
			return nil, err
		}
		// Ascending seq order: later rows supersede earlier ones.
		result[record.CommerceID] = record
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate latest: %w", err)
	}

	return result, nil
}

// Recent returns the last n processed records, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]domain.ProcessedRecord, error) {
	query, args, err := sq.Select("commerce_id", "status", "reason", "http_code", "run_id", "payload", "recorded_at").
		From("processed_log").
		OrderBy("seq DESC").
		Limit(uint64(n)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var records []domain.ProcessedRecord
	for rows.Next() {
		record, err := scanProcessed(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent: %w", err)
	}

	return records, nil
}

func scanProcessed(rows *sql.Rows) (domain.ProcessedRecord, error) {
	var (
		record  domain.ProcessedRecord
		status  string
		payload sql.NullString
	)
	if err := rows.Scan(&record.CommerceID, &status, &record.Reason,
		&record.HTTPCode, &record.RunID, &payload, &record.RecordedAt); err != nil {
		return domain.ProcessedRecord{}, fmt.Errorf("scan processed: %w", err)
	}
	record.Status = domain.ProcessStatus(status)

	if payload.Valid && strings.TrimSpace(payload.String) != "" {
		var candidate domain.CandidateRecord
		if err := json.Unmarshal([]byte(payload.String), &candidate); err != nil {
			return domain.ProcessedRecord{}, fmt.Errorf("decode candidate payload: %w", err)
		}
		record.Candidate = &candidate
	}

	return record, nil
}

// LastRun returns the previous reconciliation timestamp of a feed, or the
// zero time when the feed has never run.
func (s *Store) LastRun(ctx context.Context, feedID string) (time.Time, error) {
	var at time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT last_run_at FROM feed_runs WHERE feed_id = ?", feedID).Scan(&at)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("feed last run: %w", err)
	}
	return at, nil
}

// MarkRun upserts the reconciliation timestamp and row count of a feed.
func (s *Store) MarkRun(ctx context.Context, feedID string, at time.Time, rowCount int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feed_runs (feed_id, last_run_at, row_count) VALUES (?, ?, ?)
		 ON CONFLICT (feed_id) DO UPDATE SET last_run_at = excluded.last_run_at, row_count = excluded.row_count`,
		feedID, at, rowCount)
	if err != nil {
		return fmt.Errorf("mark feed run: %w", err)
	}
	return nil
}
