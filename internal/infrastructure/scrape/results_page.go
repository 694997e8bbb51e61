// Package scrape extracts raw candidate records from a rendered retail
// search-results page. It consumes whatever HTML the page-fetching
// collaborator stored or serves; browser automation itself stays outside
// the core.
package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"GiftScout/internal/source"
)

// ResultsPageStrategy crawls search-results pages and extracts one raw
// record per product card.
type ResultsPageStrategy struct {
	client   *http.Client
	pageSize int
}

var _ source.Strategy = (*ResultsPageStrategy)(nil)

// NewResultsPageStrategy wires an HTTP client; a nil client gets a default
// with a 20s timeout.
func NewResultsPageStrategy(client *http.Client) *ResultsPageStrategy {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &ResultsPageStrategy{client: client, pageSize: 48}
}

// Name identifies the strategy inside the registry.
func (s *ResultsPageStrategy) Name() string { return "scrape" }

// Discover walks the requested number of result pages and returns raw
// records. Cards without a commerce id are skipped here; all other
// validation belongs to the Normalizer.
func (s *ResultsPageStrategy) Discover(ctx context.Context, req source.Request) ([]map[string]string, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("site %s has no results URL", req.SiteName)
	}

	pages := req.Pages
	if pages <= 0 {
		pages = 1
	}

	var records []map[string]string
	seen := map[string]struct{}{}

	for page := 1; page <= pages; page++ {
		pageURL, err := buildPageURL(req.URL, req.Query, page)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", req.SiteName, err)
		}

		doc, err := s.fetchDocument(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("site %s page %d: %w", req.SiteName, page, err)
		}

		pageRecords := extractCards(doc)
		for _, record := range pageRecords {
			id := record["commerce_id"]
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			records = append(records, record)
		}

		// A short page means the result list is exhausted.
		if len(pageRecords) < s.pageSize {
			break
		}
	}

	return records, nil
}

func (s *ResultsPageStrategy) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "GiftScout/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("results page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func extractCards(doc *goquery.Document) []map[string]string {
	var records []map[string]string

	doc.Find("[data-commerce-id]").Each(func(i int, card *goquery.Selection) {
		id, _ := card.Attr("data-commerce-id")
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}

		record := map[string]string{"commerce_id": id}

		if ean, ok := card.Attr("data-ean"); ok {
			record["ean"] = strings.TrimSpace(ean)
		}

		record["title"] = strings.TrimSpace(card.Find(".product-title").First().Text())
		record["price"] = strings.TrimSpace(card.Find(".product-price").First().Text())
		record["category"] = strings.TrimSpace(card.Find(".product-category").First().Text())
		record["availability"] = strings.TrimSpace(card.Find(".availability").First().Text())

		if href, ok := card.Find("a").First().Attr("href"); ok {
			record["url"] = strings.TrimSpace(href)
		}
		if src, ok := card.Find("img").First().Attr("src"); ok {
			record["image_url"] = strings.TrimSpace(src)
		}

		records = append(records, record)
	})

	return records
}

func buildPageURL(base, query string, page int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid results url %s: %w", base, err)
	}

	values := parsed.Query()
	if query != "" {
		values.Set("q", query)
	}
	values.Set("page", strconv.Itoa(page))
	parsed.RawQuery = values.Encode()
	return parsed.String(), nil
}
