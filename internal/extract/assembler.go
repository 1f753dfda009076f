package extract

import (
	"context"
	"errors"
	"sort"

	"promoscout/promoworker/helpers"
	"promoscout/promoworker/internal/domain"
	"promoscout/promoworker/logger"
)

// Assembler joins page signals with the originating store context and paces
// between network-bound operations.
type Assembler struct {
	extractor *PageExtractor
	pacer     *Pacer
	log       *logger.Logger
}

// NewAssembler creates an assembler over the given extractor and pacer.
func NewAssembler(extractor *PageExtractor, pacer *Pacer) *Assembler {
	return &Assembler{
		extractor: extractor,
		pacer:     pacer,
		log:       logger.ForExtractor(),
	}
}

// AssembleStats reports what the assembly of one candidate set skipped.
type AssembleStats struct {
	PagesSkipped int
	// RateLimited is set when the origin answered with a throttling status;
	// the worker turns it into a politeness block on the origin.
	RateLimited bool
}

// AssembleDeals processes candidates in ranked order. Every extracted record
// gets needs_review=true unconditionally; this stage never auto-approves.
// A page that fails to fetch is skipped and counted, never fatal. The pacing
// delay is applied after every candidate, failed ones included.
func (a *Assembler) AssembleDeals(ctx context.Context, cands []domain.PromoCandidate) (deals []domain.ExtractedDeal, stats AssembleStats) {
	for _, cand := range cands {
		if ctx.Err() != nil {
			break
		}

		signals, err := a.extractor.ExtractPage(ctx, cand.URL)
		if err != nil {
			stats.PagesSkipped++
			if errors.Is(err, helpers.ErrRateLimited) {
				stats.RateLimited = true
			}
			a.log.Debug().
				Str("url", cand.URL).
				Err(err).
				Msg("Skipping candidate page")
		} else {
			deals = append(deals, domain.ExtractedDeal{
				StoreName:       cand.Store.Name,
				Category:        cand.Store.Category,
				Addr:            cand.Store.Addr,
				Website:         cand.Store.Website,
				Title:           signals.Title,
				OldPrice:        signals.OldPrice,
				NewPrice:        signals.NewPrice,
				DiscountPercent: signals.DiscountPercent,
				SourceURL:       cand.URL,
				NeedsReview:     true,
				Priority:        cand.Priority,
			})
		}

		a.pacer.Wait(ctx)
	}
	return deals, stats
}

// MergeDeals deduplicates deals by source URL and applies the final stable
// ordering (priority descending, store name ascending). Duplicates keep the
// first-seen position but the last-seen value wins, via an explicit ordered
// mapping rather than incidental iteration order. The merge is idempotent.
func MergeDeals(deals []domain.ExtractedDeal) []domain.ExtractedDeal {
	index := make(map[string]int, len(deals))
	merged := make([]domain.ExtractedDeal, 0, len(deals))
	for _, d := range deals {
		if i, seen := index[d.SourceURL]; seen {
			merged[i] = d
			continue
		}
		index[d.SourceURL] = len(merged)
		merged = append(merged, d)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Priority != merged[j].Priority {
			return merged[i].Priority > merged[j].Priority
		}
		return merged[i].StoreName < merged[j].StoreName
	})
	return merged
}
