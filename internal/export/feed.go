package export

import (
	"encoding/json"
	"os"
	"time"

	"promoscout/promoworker/internal/domain"
)

// FeedItem is one published deal in the machine-readable feed.
type FeedItem struct {
	StoreName       string   `json:"store_name"`
	Category        string   `json:"category,omitempty"`
	Title           string   `json:"title"`
	OldPrice        *float64 `json:"old_price,omitempty"`
	NewPrice        *float64 `json:"new_price,omitempty"`
	DiscountPercent *int     `json:"discount_percent,omitempty"`
	SourceURL       string   `json:"source_url"`
	Addr            string   `json:"addr,omitempty"`
	Publish         bool     `json:"publish"`
	NeedsReview     bool     `json:"needs_review"`
	CapturedAt      string   `json:"captured_at"`
}

// Feed is the deal feed document handed to downstream publishing.
type Feed struct {
	GeneratedAt string     `json:"generated_at"`
	Count       int        `json:"count"`
	Items       []FeedItem `json:"items"`
}

// BuildFeed republishes the vetted subset of extracted deals: records
// missing a title or source URL are dropped, everything else carries its
// review flag into the feed.
func BuildFeed(deals []domain.ExtractedDeal, now time.Time) Feed {
	nowISO := now.UTC().Format(time.RFC3339)
	items := make([]FeedItem, 0, len(deals))
	for _, d := range deals {
		if d.Title == "" || d.SourceURL == "" {
			continue
		}
		items = append(items, FeedItem{
			StoreName:       d.StoreName,
			Category:        d.Category,
			Title:           d.Title,
			OldPrice:        d.OldPrice,
			NewPrice:        d.NewPrice,
			DiscountPercent: d.DiscountPercent,
			SourceURL:       d.SourceURL,
			Addr:            d.Addr,
			Publish:         true,
			NeedsReview:     d.NeedsReview,
			CapturedAt:      nowISO,
		})
	}
	return Feed{
		GeneratedAt: nowISO,
		Count:       len(items),
		Items:       items,
	}
}

// WriteFeed writes the feed document as JSON.
func WriteFeed(path string, feed Feed) error {
	data, err := json.Marshal(feed)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
