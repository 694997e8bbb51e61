// Package content adapts the pipeline to the content-management boundary:
// publishing enriched records, applying reconciliation updates and reading
// the published-inventory snapshot.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"GiftScout/internal/config"
	"GiftScout/internal/domain"
	"GiftScout/internal/faults"
	"GiftScout/internal/ports"
	"GiftScout/internal/retry"
)

// Client calls the content-management REST boundary.
type Client struct {
	baseURL     string
	token       string
	trackingTag string
	httpClient  *http.Client
	policy      retry.Policy
}

var (
	_ ports.ContentPublisher = (*Client)(nil)
	_ ports.InventorySource  = (*Client)(nil)
)

// NewClient builds a boundary client. Transient failures get one immediate
// retry; permanent rejections never retry.
func NewClient(cfg config.ContentConfig) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		token:       cfg.Token,
		trackingTag: cfg.TrackingTag,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		policy:      retry.Policy{MaxAttempts: 2},
	}
}

type publishResponse struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id"`
}

// Publish merges candidate and classification into the flat publish schema
// and posts it. The returned outcome is always meaningful; err is non-nil
// only alongside error outcomes.
func (c *Client) Publish(ctx context.Context, candidate domain.CandidateRecord, result domain.ClassificationResult) (domain.PublishOutcome, error) {
	payload := mergePayload(candidate, result, c.trackingTag)

	var outcome domain.PublishOutcome
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		var doErr error
		outcome, doErr = c.postProduct(ctx, payload)
		return doErr
	})

	if err != nil {
		if faults.KindOf(err) == faults.KindPermanent {
			// Malformed payload per the boundary: permanent rejection.
			return outcome, nil
		}
		outcome.Status = domain.StatusError
		outcome.Reason = err.Error()
		return outcome, err
	}

	return outcome, nil
}

func (c *Client) postProduct(ctx context.Context, payload map[string]any) (domain.PublishOutcome, error) {
	status, body, err := c.do(ctx, http.MethodPost, c.baseURL+"/products", payload)
	if err != nil {
		return domain.PublishOutcome{Status: domain.StatusError}, faults.Transient("publish", err)
	}

	switch {
	case status == http.StatusOK:
		var decoded publishResponse
		if err := json.Unmarshal(body, &decoded); err != nil {
			return domain.PublishOutcome{Status: domain.StatusError, HTTPCode: status},
				faults.Transient("publish", fmt.Errorf("undecodable response: %w", err))
		}
		if !decoded.Success {
			return domain.PublishOutcome{Status: domain.StatusRejected, HTTPCode: status, Reason: "boundary reported failure"},
				faults.Permanent("publish", fmt.Errorf("success=false"))
		}
		return domain.PublishOutcome{Status: domain.StatusPublished, PublicID: decoded.ID, HTTPCode: status}, nil

	case status >= http.StatusBadRequest && status < http.StatusInternalServerError:
		return domain.PublishOutcome{Status: domain.StatusRejected, HTTPCode: status, Reason: fmt.Sprintf("boundary rejected with %d", status)},
			faults.Permanent("publish", fmt.Errorf("status %d", status))

	default:
		return domain.PublishOutcome{Status: domain.StatusError, HTTPCode: status},
			faults.Transient("publish", fmt.Errorf("status %d", status))
	}
}

// Update applies one reconciliation instruction to a published item.
func (c *Client) Update(ctx context.Context, instruction domain.UpdateInstruction) error {
	payload := map[string]any{"reason": instruction.Reason}

	switch instruction.Kind {
	case domain.InstructionSoftDelist:
		payload["status"] = "outdated"
	case domain.InstructionResurrect:
		payload["vendor_id"] = instruction.VendorID
		payload["price"] = instruction.Price
		payload["url"] = withTrackingTag(instruction.URL, c.trackingTag)
	case domain.InstructionPriceUpdate:
		payload["price"] = instruction.Price
	default:
		return faults.Validationf("update", "unknown instruction kind %q", instruction.Kind)
	}

	return c.policy.Do(ctx, func(ctx context.Context) error {
		url := fmt.Sprintf("%s/products/%d", c.baseURL, instruction.PublicID)
		status, _, err := c.do(ctx, http.MethodPost, url, payload)
		if err != nil {
			return faults.Transient("update", err)
		}
		switch {
		case status == http.StatusOK:
			return nil
		case status >= http.StatusBadRequest && status < http.StatusInternalServerError:
			return faults.Permanent("update", fmt.Errorf("status %d", status))
		default:
			return faults.Transient("update", fmt.Errorf("status %d", status))
		}
	})
}

// PublishedItems reads the current inventory snapshot.
func (c *Client) PublishedItems(ctx context.Context) ([]domain.PublishedInventoryItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/products/inventory", nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("X-Auth-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, faults.Transient("inventory", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, faults.Transient("inventory", fmt.Errorf("status %d", resp.StatusCode))
	}

	var items []domain.PublishedInventoryItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode inventory: %w", err)
	}
	return items, nil
}

func (c *Client) do(ctx context.Context, method, url string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Auth-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}

	return resp.StatusCode, responseBody, nil
}

// mergePayload flattens candidate + classification into the publish schema.
func mergePayload(c domain.CandidateRecord, r domain.ClassificationResult, trackingTag string) map[string]any {
	return map[string]any{
		"commerce_id":      c.CommerceID,
		"cross_id":         c.CrossID,
		"title":            c.Title,
		"price":            c.Price,
		"image_url":        c.ImageURL,
		"url":              withTrackingTag(c.SourceURL, trackingTag),
		"vendor":           c.VendorName,
		"category":         r.Category,
		"audience_tags":    r.AudienceTags,
		"quality_score":    r.QualityScore,
		"slug":             r.Slug,
		"seo_title":        r.SEO.Title,
		"meta_description": r.SEO.MetaDescription,
		"description":      r.SEO.Description,
		"pros":             r.SEO.Pros,
		"cons":             r.SEO.Cons,
		"faqs":             r.SEO.FAQs,
		"verdict":          r.SEO.Verdict,
	}
}

// withTrackingTag appends the affiliate tag unless the URL already has it.
func withTrackingTag(rawURL, tag string) string {
	if rawURL == "" || tag == "" || strings.Contains(rawURL, tag) {
		return rawURL
	}
	separator := "?"
	if strings.Contains(rawURL, "?") {
		separator = "&"
	}
	return rawURL + separator + tag
}
