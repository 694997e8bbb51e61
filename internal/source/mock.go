package source

import (
	"context"
	"fmt"
)

// MockStrategy yields deterministic synthetic records so end-to-end runs
// work without network access.
type MockStrategy struct{}

// NewMockStrategy builds the offline source.
func NewMockStrategy() *MockStrategy {
	return &MockStrategy{}
}

// Name identifies the strategy inside the registry.
func (m *MockStrategy) Name() string { return "mock" }

// Discover returns a fixed page of synthetic candidates derived from the
// request query.
func (m *MockStrategy) Discover(ctx context.Context, req Request) ([]map[string]string, error) {
	pages := req.Pages
	if pages <= 0 {
		pages = 1
	}

	var records []map[string]string
	for page := 0; page < pages; page++ {
		for i := 0; i < 5; i++ {
			n := page*5 + i
			records = append(records, map[string]string{
				"listing_id":   fmt.Sprintf("mock-%s-%d", req.Query, n),
				"ean":          fmt.Sprintf("40063813339%02d", n),
				"title":        fmt.Sprintf("Mock %s gift set %d", req.Query, n),
				"price":        fmt.Sprintf("%d,99", 15+n*7),
				"url":          fmt.Sprintf("https://mock.invalid/p/%d", n),
				"image_url":    fmt.Sprintf("https://mock.invalid/img/%d.jpg", n),
				"availability": "in_stock",
				"category":     "gadgets",
			})
		}
	}
	return records, nil
}
