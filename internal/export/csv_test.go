package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promoscout/promoworker/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestWriteReadStores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stores.csv")

	stores := []domain.StoreRecord{
		{
			OSMType:  "node",
			OSMID:    42,
			Name:     "Volt Electronics",
			Category: "shop=electronics",
			Website:  "https://volt.example",
			Phone:    "+353 1 000 0000",
			Brand:    "Volt",
			Addr:     "12 High St Dublin",
			Lat:      floatPtr(53.3),
			Lon:      floatPtr(-6.2),
		},
		{OSMType: "way", OSMID: 7, Name: "Amp Store", Category: "shop=clothes"},
	}

	require.NoError(t, WriteStores(path, stores))

	loaded, err := ReadStores(path)
	require.NoError(t, err)
	assert.Equal(t, stores, loaded)
}

func TestReadStoresMissingFile(t *testing.T) {
	_, err := ReadStores(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}

func TestReadStoresSkipsBadRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stores.csv")
	raw := "osm_type,osm_id,category,name,website,phone,brand,addr,lat,lon\n" +
		"node,notanumber,shop=shoes,Bad Row,,,,,,\n" +
		"node,9,shop=shoes,Good Row,,,,,,\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	stores, err := ReadStores(path)
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, "Good Row", stores[0].Name)
	assert.Nil(t, stores[0].Lat)
}

func TestWriteCandidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promo_urls.csv")

	store := domain.StoreRecord{
		Name:     "Corner Shop",
		Category: "shop=electronics",
		Addr:     "1 Main St",
		Website:  "https://corner.example",
	}
	cands := []domain.PromoCandidate{
		{URL: "https://corner.example/offers", Store: store, Priority: 5},
	}

	require.NoError(t, WriteCandidates(path, cands))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "store_name,category,addr,website,promo_url,priority", lines[0])
	assert.Equal(t, "Corner Shop,shop=electronics,1 Main St,https://corner.example,https://corner.example/offers,5", lines[1])
}

func TestWriteDeals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deals.csv")

	deals := []domain.ExtractedDeal{
		{
			StoreName:       "Corner Shop",
			Category:        "shop=electronics",
			Title:           "Spring Sale",
			OldPrice:        floatPtr(20),
			NewPrice:        floatPtr(15.5),
			DiscountPercent: intPtr(22),
			SourceURL:       "https://corner.example/offers",
			Website:         "https://corner.example",
			NeedsReview:     true,
		},
		{
			StoreName: "Bare Shop",
			Title:     "Untitled Promo",
			SourceURL: "https://bare.example/sale",
		},
	}

	require.NoError(t, WriteDeals(path, deals))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t,
		"store_name,category,deal_title,old_price,new_price,discount_percent,source_url,website,needs_review",
		lines[0])
	assert.Equal(t,
		"Corner Shop,shop=electronics,Spring Sale,20,15.5,22,https://corner.example/offers,https://corner.example,true",
		lines[1])
	// Absent numeric signals serialize as empty cells, not zeros.
	assert.Equal(t,
		"Bare Shop,,Untitled Promo,,,,https://bare.example/sale,,false",
		lines[2])
}
