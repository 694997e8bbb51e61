package feed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GiftScout/internal/source"
)

func writeFeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feed.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFetchRowsPreservesOrderAndHeader(t *testing.T) {
	t.Parallel()

	path := writeFeed(t, "Offer_ID,EAN,Price,Availability,URL\n"+
		"V1,EAN123,19.99,in_stock,https://a.example/1\n"+
		"V2,EAN123,49.99,in_stock,https://b.example/2\n"+
		"V3,,12.00,out_of_stock,https://b.example/3\n")

	provider := NewCSVProvider("test-feed", path)
	rows, err := provider.FetchRows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Header keys are lowercased; row order follows the document.
	assert.Equal(t, "V1", rows[0]["offer_id"])
	assert.Equal(t, "V2", rows[1]["offer_id"])
	assert.Equal(t, "EAN123", rows[1]["ean"])
	assert.Equal(t, "out_of_stock", rows[2]["availability"])
}

func TestFetchRowsMissingFile(t *testing.T) {
	t.Parallel()

	provider := NewCSVProvider("missing", filepath.Join(t.TempDir(), "nope.csv"))
	_, err := provider.FetchRows(context.Background())
	require.Error(t, err)
}

func TestSourceStrategyWrapsProvider(t *testing.T) {
	t.Parallel()

	path := writeFeed(t, "offer_id,price\nV9,20.00\n")
	strategy := NewSourceStrategy(NewCSVProvider("wrap", path))

	assert.Equal(t, "feed", strategy.Name())
	records, err := strategy.Discover(context.Background(), source.Request{SiteName: "wrap"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "V9", records[0]["offer_id"])
}
