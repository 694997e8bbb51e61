package content

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GiftScout/internal/config"
	"GiftScout/internal/domain"
)

func testCandidate() domain.CandidateRecord {
	return domain.CandidateRecord{
		CommerceID: "m1",
		CrossID:    "EAN123",
		Title:      "Espresso Gift Set",
		Price:      34.90,
		SourceURL:  "https://shop.example.org/p/m1",
		VendorName: "example-shop",
		StockState: domain.StockInStock,
	}
}

func testResult() domain.ClassificationResult {
	return domain.ClassificationResult{
		Accepted:     true,
		QualityScore: 8,
		Category:     "kitchen",
		AudienceTags: []string{"adults", "birthday"},
		Slug:         "espresso-gift-set",
	}
}

func newTestClient(baseURL string) *Client {
	return NewClient(config.ContentConfig{
		BaseURL:     baseURL,
		Token:       "secret",
		TrackingTag: "tag=giftscout-21",
	})
}

func TestPublishSuccess(t *testing.T) {
	t.Parallel()

	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/products", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("X-Auth-Token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "id": 4711})
	}))
	defer server.Close()

	outcome, err := newTestClient(server.URL).Publish(context.Background(), testCandidate(), testResult())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, outcome.Status)
	assert.Equal(t, int64(4711), outcome.PublicID)
	assert.Equal(t, 200, outcome.HTTPCode)

	// Tracking tag was appended to the canonical URL.
	assert.Equal(t, "https://shop.example.org/p/m1?tag=giftscout-21", got["url"])
	assert.Equal(t, "kitchen", got["category"])
}

func TestPublish4xxIsPermanentRejection(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	outcome, err := newTestClient(server.URL).Publish(context.Background(), testCandidate(), testResult())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, outcome.Status)
	assert.Equal(t, http.StatusUnprocessableEntity, outcome.HTTPCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "4xx must not be retried")
}

func TestPublish5xxRetriesOnceThenErrors(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	outcome, err := newTestClient(server.URL).Publish(context.Background(), testCandidate(), testResult())
	require.Error(t, err)
	assert.Equal(t, domain.StatusError, outcome.Status)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls), "one immediate retry")
}

func TestPublish5xxThenSuccess(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "id": 99})
	}))
	defer server.Close()

	outcome, err := newTestClient(server.URL).Publish(context.Background(), testCandidate(), testResult())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, outcome.Status)
	assert.Equal(t, int64(99), outcome.PublicID)
}

func TestUpdateInstructionPayloads(t *testing.T) {
	t.Parallel()

	var (
		path string
		body map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx := context.Background()

	require.NoError(t, client.Update(ctx, domain.UpdateInstruction{
		Kind: domain.InstructionSoftDelist, PublicID: 7, Reason: "vendor stockout",
	}))
	assert.Equal(t, "/products/7", path)
	assert.Equal(t, "outdated", body["status"])

	require.NoError(t, client.Update(ctx, domain.UpdateInstruction{
		Kind: domain.InstructionResurrect, PublicID: 7,
		VendorID: "V2", Price: 49.99, URL: "https://b.example/2",
	}))
	assert.Equal(t, "V2", body["vendor_id"])
	assert.Equal(t, "https://b.example/2?tag=giftscout-21", body["url"])
	assert.InDelta(t, 49.99, body["price"].(float64), 0.0001)
}

func TestPublishedItemsSnapshot(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/products/inventory", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]domain.PublishedInventoryItem{
			{PublicID: 1, VendorID: "V1", CrossID: "EAN123", StockState: domain.StockInStock, Price: 30},
		})
	}))
	defer server.Close()

	items, err := newTestClient(server.URL).PublishedItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "V1", items[0].VendorID)
}
