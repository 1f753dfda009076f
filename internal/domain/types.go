package domain

import "fmt"

// StoreRecord is one row from the geographic store source. Records are
// immutable and scoped to a single run; (OSMType, OSMID) is the stable key.
type StoreRecord struct {
	OSMType  string   `json:"osm_type"`
	OSMID    int64    `json:"osm_id"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Website  string   `json:"website,omitempty"`
	Phone    string   `json:"phone,omitempty"`
	Brand    string   `json:"brand,omitempty"`
	Addr     string   `json:"addr,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
}

// Key returns the stable identity of the record across runs.
func (s StoreRecord) Key() string {
	return fmt.Sprintf("%s/%d", s.OSMType, s.OSMID)
}

// PromoCandidate is a URL suspected (not confirmed) to host promotional
// content on a store's site. Candidates exist only within one run.
type PromoCandidate struct {
	URL      string      `json:"promo_url"`
	Store    StoreRecord `json:"-"`
	Priority int         `json:"priority"`
}

// ExtractedDeal is the best-effort structured output of the extraction
// stage. NeedsReview is always true for heuristic extraction; nothing in
// this pipeline auto-approves.
type ExtractedDeal struct {
	StoreName       string   `json:"store_name"`
	Category        string   `json:"category,omitempty"`
	Addr            string   `json:"addr,omitempty"`
	Website         string   `json:"website,omitempty"`
	Title           string   `json:"title,omitempty"`
	OldPrice        *float64 `json:"old_price,omitempty"`
	NewPrice        *float64 `json:"new_price,omitempty"`
	DiscountPercent *int     `json:"discount_percent,omitempty"`
	SourceURL       string   `json:"source_url"`
	NeedsReview     bool     `json:"needs_review"`

	// Priority carries the candidate's relevance score for final ordering.
	// It is excluded from the deal table and the feed.
	Priority int `json:"-"`
}

// ID identifies a deal for the cross-run alert history.
func (d ExtractedDeal) ID() string {
	return fmt.Sprintf("%s|%s|%s", d.StoreName, d.Title, d.SourceURL)
}

// RunStats counts what one run did and, just as importantly, what it skipped.
type RunStats struct {
	StoresProcessed int `json:"stores_processed"`
	StoresSkipped   int `json:"stores_skipped"`
	CandidatesFound int `json:"candidates_found"`
	PagesSkipped    int `json:"pages_skipped"`
	DealsExtracted  int `json:"deals_extracted"`
}
