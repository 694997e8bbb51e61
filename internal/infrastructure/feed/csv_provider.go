// Package feed reads vendor feed rows for reconciliation and discovery.
// Downloading and decompressing the feed is the collaborator's job; this
// adapter consumes the resulting CSV document.
package feed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"GiftScout/internal/ports"
	"GiftScout/internal/source"
)

// CSVProvider yields raw records from a headered CSV file. Column names
// pass through untouched; the Normalizer's alias table absorbs vendor
// naming differences.
type CSVProvider struct {
	feedID string
	path   string
}

var _ ports.FeedProvider = (*CSVProvider)(nil)

// NewCSVProvider points the provider at a feed document on disk.
func NewCSVProvider(feedID, path string) *CSVProvider {
	return &CSVProvider{feedID: feedID, path: path}
}

// FeedID names the feed for the run index.
func (p *CSVProvider) FeedID() string { return p.feedID }

// FetchRows parses the whole document into raw key-value records, keyed by
// the lowercased header row. Row order is preserved; the resurrection
// tie-break depends on it.
func (p *CSVProvider) FetchRows(ctx context.Context) ([]map[string]string, error) {
	file, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("open feed %s: %w", p.feedID, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read feed header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var rows []map[string]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fields, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read feed row: %w", err)
		}

		row := make(map[string]string, len(header))
		for i, value := range fields {
			if i >= len(header) {
				break
			}
			row[header[i]] = strings.TrimSpace(value)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// SourceStrategy exposes a feed as a discovery source so feed-sourced
// candidates run through the same normalize/filter/queue path as scraped
// ones.
type SourceStrategy struct {
	provider ports.FeedProvider
}

var _ source.Strategy = (*SourceStrategy)(nil)

// NewSourceStrategy wraps a feed provider for the source registry.
func NewSourceStrategy(provider ports.FeedProvider) *SourceStrategy {
	return &SourceStrategy{provider: provider}
}

// Name identifies the strategy inside the registry.
func (s *SourceStrategy) Name() string { return "feed" }

// Discover yields the current feed rows as raw records.
func (s *SourceStrategy) Discover(ctx context.Context, req source.Request) ([]map[string]string, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("site %s has no feed provider", req.SiteName)
	}
	return s.provider.FetchRows(ctx)
}
