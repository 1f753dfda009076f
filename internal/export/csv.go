// Package export implements the tabular collaborator interfaces: row-oriented
// CSV persistence for stores, promo candidates and deals, plus the JSON feed
// republishing a vetted subset of extracted deals.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"promoscout/promoworker/internal/domain"
)

var storeHeader = []string{
	"osm_type", "osm_id", "category", "name", "website", "phone", "brand", "addr", "lat", "lon",
}

// WriteStores persists store records as CSV.
func WriteStores(path string, stores []domain.StoreRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(storeHeader); err != nil {
		return err
	}
	for _, s := range stores {
		row := []string{
			s.OSMType,
			strconv.FormatInt(s.OSMID, 10),
			s.Category,
			s.Name,
			s.Website,
			s.Phone,
			s.Brand,
			s.Addr,
			formatFloat(s.Lat),
			formatFloat(s.Lon),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadStores loads store records previously written by WriteStores. It is
// the cached short-circuit for the Overpass step.
func ReadStores(path string) ([]domain.StoreRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	get := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var stores []domain.StoreRecord
	for _, row := range rows[1:] {
		id, err := strconv.ParseInt(get(row, "osm_id"), 10, 64)
		if err != nil {
			continue
		}
		stores = append(stores, domain.StoreRecord{
			OSMType:  get(row, "osm_type"),
			OSMID:    id,
			Category: get(row, "category"),
			Name:     get(row, "name"),
			Website:  get(row, "website"),
			Phone:    get(row, "phone"),
			Brand:    get(row, "brand"),
			Addr:     get(row, "addr"),
			Lat:      parseFloat(get(row, "lat")),
			Lon:      parseFloat(get(row, "lon")),
		})
	}
	return stores, nil
}

// WriteCandidates persists the intermediate candidate table, priority
// included.
func WriteCandidates(path string, cands []domain.PromoCandidate) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"store_name", "category", "addr", "website", "promo_url", "priority"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, c := range cands {
		row := []string{
			c.Store.Name,
			c.Store.Category,
			c.Store.Addr,
			c.Store.Website,
			c.URL,
			strconv.Itoa(c.Priority),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteDeals persists the final deal table. The priority score is internal
// ordering state and deliberately not a column here.
func WriteDeals(path string, deals []domain.ExtractedDeal) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"store_name", "category", "deal_title", "old_price", "new_price",
		"discount_percent", "source_url", "website", "needs_review",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, d := range deals {
		row := []string{
			d.StoreName,
			d.Category,
			d.Title,
			formatFloat(d.OldPrice),
			formatFloat(d.NewPrice),
			formatInt(d.DiscountPercent),
			d.SourceURL,
			d.Website,
			strconv.FormatBool(d.NeedsReview),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
