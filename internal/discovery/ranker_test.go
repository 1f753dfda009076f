package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"promoscout/promoworker/internal/domain"
)

func TestPriorityScore(t *testing.T) {
	testCases := []struct {
		url      string
		expected int
	}{
		{"https://shop.example/weekly", 6},
		{"https://shop.example/outlet", 2},
		{"https://shop.example/offers", 5},
		{"https://shop.example/OFFERS", 5},
		{"https://shop.example/about", 0},
		// "catalogue" contains "catalog": both weights accumulate
		{"https://shop.example/catalogue", 11},
		// weekly(6) + deals(5)
		{"https://shop.example/weekly-deals", 11},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, PriorityScore(tc.url), "url: %s", tc.url)
	}
}

func TestPriorityScoreMonotonic(t *testing.T) {
	// A heavier keyword alone never scores below a lighter one alone.
	weekly := PriorityScore("https://shop.example/weekly")
	outlet := PriorityScore("https://shop.example/outlet")
	assert.GreaterOrEqual(t, weekly, outlet)
}

func TestRankCandidates(t *testing.T) {
	storeA := domain.StoreRecord{Name: "Alpha Shop"}
	storeB := domain.StoreRecord{Name: "Beta Shop"}

	cands := []domain.PromoCandidate{
		{URL: "https://b.example/outlet", Store: storeB, Priority: 2},
		{URL: "https://a.example/weekly", Store: storeA, Priority: 6},
		{URL: "https://b.example/weekly", Store: storeB, Priority: 6},
		{URL: "https://a.example/outlet", Store: storeA, Priority: 2},
	}

	RankCandidates(cands)

	assert.Equal(t, "https://a.example/weekly", cands[0].URL)
	assert.Equal(t, "https://b.example/weekly", cands[1].URL)
	assert.Equal(t, "https://a.example/outlet", cands[2].URL)
	assert.Equal(t, "https://b.example/outlet", cands[3].URL)
}

func TestRankCandidatesStable(t *testing.T) {
	store := domain.StoreRecord{Name: "Alpha Shop"}
	cands := []domain.PromoCandidate{
		{URL: "https://a.example/deals/1", Store: store, Priority: 5},
		{URL: "https://a.example/deals/2", Store: store, Priority: 5},
		{URL: "https://a.example/deals/3", Store: store, Priority: 5},
	}

	RankCandidates(cands)

	// Equal score, equal name: input order must survive.
	assert.Equal(t, "https://a.example/deals/1", cands[0].URL)
	assert.Equal(t, "https://a.example/deals/2", cands[1].URL)
	assert.Equal(t, "https://a.example/deals/3", cands[2].URL)
}
