// Package worker drives the per-store discovery and extraction pipeline.
//
// Stores are processed by a bounded pool. Two rules keep the politeness
// contract intact under concurrency: at most one in-flight request per
// origin (a keyed lock held for the whole store), and pacing enforced
// per-origin by the extraction stage. Results land in per-store slots and
// are merged only after the pool drains, so run output does not depend on
// completion order.
package worker

import (
	"context"
	"sync"
	"time"

	"promoscout/promoworker/internal/discovery"
	"promoscout/promoworker/internal/domain"
	"promoscout/promoworker/internal/extract"
	"promoscout/promoworker/logger"
	"promoscout/promoworker/services/cache"
)

const originBlockKeyPrefix = "origin_blocked:"

// Discoverer produces promo URL candidates for one store.
type Discoverer interface {
	DiscoverSite(ctx context.Context, store domain.StoreRecord) []domain.PromoCandidate
}

// Assembler extracts deals from a ranked candidate set.
type Assembler interface {
	AssembleDeals(ctx context.Context, cands []domain.PromoCandidate) ([]domain.ExtractedDeal, extract.AssembleStats)
}

// Options bound a run.
type Options struct {
	MaxStores       int
	Concurrency     int
	OriginBlockTime time.Duration
}

// Result is the merged output of one run.
type Result struct {
	Candidates []domain.PromoCandidate
	Deals      []domain.ExtractedDeal
	Stats      domain.RunStats
}

// Worker handles the discovery and extraction process
type Worker struct {
	discoverer  Discoverer
	assembler   Assembler
	cacheSvc    cache.CacheService
	opts        Options
	originLocks sync.Map
	log         *logger.Logger
}

// NewWorker creates a new worker
func NewWorker(discoverer Discoverer, assembler Assembler, cacheSvc cache.CacheService, opts Options) *Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.MaxStores < 1 {
		opts.MaxStores = 60
	}
	return &Worker{
		discoverer: discoverer,
		assembler:  assembler,
		cacheSvc:   cacheSvc,
		opts:       opts,
		log:        logger.ForWorker(),
	}
}

type storeResult struct {
	candidates   []domain.PromoCandidate
	deals        []domain.ExtractedDeal
	pagesSkipped int
	skipped      bool
}

// Run processes up to MaxStores stores and merges the per-store results at
// the barrier. Cancellation stops new work promptly; whatever was already
// extracted is still merged and returned.
func (w *Worker) Run(ctx context.Context, stores []domain.StoreRecord) Result {
	total := len(stores)
	if total > w.opts.MaxStores {
		stores = stores[:w.opts.MaxStores]
	}
	w.log.Info().
		Int("using", len(stores)).
		Int("total", total).
		Int("concurrency", w.opts.Concurrency).
		Msg("Starting run")

	results := make([]storeResult, len(stores))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < w.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					results[idx] = storeResult{skipped: true}
					continue
				}
				results[idx] = w.processStore(ctx, stores[idx])
			}
		}()
	}

	for idx := range stores {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	return w.merge(results)
}

// processStore runs discovery and extraction for one store while holding its
// origin lock, so no two stores sharing a host are crawled concurrently.
func (w *Worker) processStore(ctx context.Context, store domain.StoreRecord) storeResult {
	base := discovery.NormalizeBase(store.Website)
	if base == "" {
		w.log.Debug().
			Str("store", store.Name).
			Str("website", store.Website).
			Msg("Website does not normalize, skipping store")
		return storeResult{skipped: true}
	}

	host := discovery.Host(base)
	lock := w.lockOrigin(host)
	lock.Lock()
	defer lock.Unlock()

	if w.originBlocked(host) {
		w.log.Info().
			Str("store", store.Name).
			Str("host", host).
			Msg("Origin is rate-limit blocked, skipping store")
		return storeResult{skipped: true}
	}

	cands := w.discoverer.DiscoverSite(ctx, store)

	// Extraction visits pages in ranked order, so a cancelled run has spent
	// its requests on the most promising candidates first.
	discovery.RankCandidates(cands)
	deals, stats := w.assembler.AssembleDeals(ctx, cands)

	if stats.RateLimited {
		w.blockOrigin(host)
	}

	w.log.Info().
		Str("store", store.Name).
		Int("candidates", len(cands)).
		Int("deals", len(deals)).
		Int("pages_skipped", stats.PagesSkipped).
		Msg("Store processed")

	return storeResult{
		candidates:   cands,
		deals:        deals,
		pagesSkipped: stats.PagesSkipped,
	}
}

// merge concatenates per-store results in store order (not completion
// order), then applies ranking and the single dedup/sort stage.
func (w *Worker) merge(results []storeResult) Result {
	var out Result
	var allDeals []domain.ExtractedDeal
	for _, r := range results {
		if r.skipped {
			out.Stats.StoresSkipped++
			continue
		}
		out.Stats.StoresProcessed++
		out.Stats.CandidatesFound += len(r.candidates)
		out.Stats.PagesSkipped += r.pagesSkipped
		out.Candidates = append(out.Candidates, r.candidates...)
		allDeals = append(allDeals, r.deals...)
	}

	discovery.RankCandidates(out.Candidates)
	out.Deals = extract.MergeDeals(allDeals)
	out.Stats.DealsExtracted = len(out.Deals)
	return out
}

func (w *Worker) lockOrigin(host string) *sync.Mutex {
	lock, _ := w.originLocks.LoadOrStore(host, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (w *Worker) originBlocked(host string) bool {
	if w.cacheSvc == nil {
		return false
	}
	_, err := w.cacheSvc.Get(originBlockKeyPrefix + host)
	return err == nil
}

func (w *Worker) blockOrigin(host string) {
	if w.cacheSvc == nil || w.opts.OriginBlockTime <= 0 {
		return
	}
	if err := w.cacheSvc.Set(originBlockKeyPrefix+host, []byte("1"), w.opts.OriginBlockTime); err != nil {
		w.log.Warn().Err(err).Str("host", host).Msg("Failed to set origin block")
	}
}
