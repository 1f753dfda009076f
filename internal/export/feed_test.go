package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promoscout/promoworker/internal/domain"
)

func TestBuildFeed(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	deals := []domain.ExtractedDeal{
		{
			StoreName:   "Corner Shop",
			Title:       "Spring Sale",
			NewPrice:    floatPtr(15.5),
			SourceURL:   "https://corner.example/offers",
			NeedsReview: true,
		},
		// Missing title: excluded from the feed.
		{StoreName: "Quiet Shop", SourceURL: "https://quiet.example/sale"},
		// Missing source URL: excluded from the feed.
		{StoreName: "Lost Shop", Title: "Mystery Deal"},
	}

	feed := BuildFeed(deals, now)

	assert.Equal(t, "2026-03-14T09:30:00Z", feed.GeneratedAt)
	assert.Equal(t, 1, feed.Count)
	require.Len(t, feed.Items, 1)

	item := feed.Items[0]
	assert.Equal(t, "Corner Shop", item.StoreName)
	assert.Equal(t, "Spring Sale", item.Title)
	assert.True(t, item.Publish)
	assert.True(t, item.NeedsReview)
	assert.Equal(t, "2026-03-14T09:30:00Z", item.CapturedAt)
}

func TestBuildFeedEmpty(t *testing.T) {
	feed := BuildFeed(nil, time.Now())
	assert.Zero(t, feed.Count)
	assert.Empty(t, feed.Items)
}

func TestWriteFeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "published_deals.json")
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	feed := BuildFeed([]domain.ExtractedDeal{
		{StoreName: "Corner Shop", Title: "Spring Sale", SourceURL: "https://corner.example/offers"},
	}, now)
	require.NoError(t, WriteFeed(path, feed))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded Feed
	require.NoError(t, json.Unmarshal(raw, &loaded))
	assert.Equal(t, feed, loaded)
}
