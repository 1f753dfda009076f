package discovery

import (
	"sort"
	"strings"

	"promoscout/promoworker/internal/domain"
)

// keywordWeights scores a URL by how promo-ish it looks. A URL matching
// several keywords accumulates all of their weights; "catalogue" also
// contains "catalog" and scores both. That is intentional.
var keywordWeights = []struct {
	keyword string
	points  int
}{
	{"weekly", 6}, {"leaflet", 6}, {"catalogue", 6}, {"catalog", 5},
	{"offers", 5}, {"promotions", 5}, {"deals", 5},
	{"sale", 3}, {"clearance", 3}, {"special", 2}, {"outlet", 2},
}

// PriorityScore sums the weights of every keyword present in the URL,
// case-insensitively.
func PriorityScore(rawURL string) int {
	u := strings.ToLower(rawURL)
	score := 0
	for _, kw := range keywordWeights {
		if strings.Contains(u, kw.keyword) {
			score += kw.points
		}
	}
	return score
}

// RankCandidates orders candidates by descending priority, ties broken by
// ascending store name. The sort is stable so equal entries keep their input
// order, which keeps run output reproducible.
func RankCandidates(cands []domain.PromoCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Priority != cands[j].Priority {
			return cands[i].Priority > cands[j].Priority
		}
		return cands[i].Store.Name < cands[j].Store.Name
	})
}
