// Package discovery finds candidate promotional pages on unknown retail
// websites. It has no prior knowledge of any site's structure: three
// complementary producers (well-known path probing, sitemap mining and a
// homepage link scan) each contribute best-effort candidates, and any one of
// them failing never stops the others.
package discovery

import (
	"context"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"promoscout/promoworker/helpers"
	"promoscout/promoworker/internal/domain"
	"promoscout/promoworker/logger"
)

// CommonPaths are the well-known promo-ish paths probed on every store site.
var CommonPaths = []string{
	"/deals", "/deal", "/offers", "/offer", "/promotions", "/promotion",
	"/sale", "/sales", "/clearance", "/special-offers", "/specials",
	"/weekly", "/weekly-ad", "/catalogue", "/catalog", "/leaflet", "/outlet",
	"/offers-and-promotions", "/promos",
}

// sitemapPaths are the two fixed auxiliary paths fetched from every origin.
var sitemapPaths = []string{"/sitemap.xml", "/sitemap_index.xml"}

var (
	promoKeywords = regexp.MustCompile(`(?i)(offer|deal|promo|promotion|sale|clearance|special|outlet|weekly|catalog|catalogue|leaflet|save)`)

	// Sitemaps in the wild are frequently not well-formed XML, so locations
	// are pattern-extracted instead of parsed strictly.
	locPattern = regexp.MustCompile(`<loc>(.*?)</loc>`)

	// Only the href attribute values are needed from the homepage; a full
	// DOM parse would be wasted cost for bulk crawling.
	hrefPattern = regexp.MustCompile(`(?i)href=["'](.*?)["']`)
)

// Config bounds the cost of discovery per store.
type Config struct {
	MaxURLsPerStore int
	SitemapURLCap   int
	HomepageLinkCap int
	ProbePaths      []string
}

// Pacer inserts the politeness delay between requests to the same origin.
type Pacer interface {
	Wait(ctx context.Context)
}

// Discoverer generates promo URL candidates for one store site at a time.
type Discoverer struct {
	fetcher *helpers.Fetcher
	pacer   Pacer
	cfg     Config
	log     *logger.Logger
}

// NewDiscoverer creates a discoverer. A nil pacer disables pacing; zero-valued
// caps fall back to the defaults of the discovery heuristics.
func NewDiscoverer(fetcher *helpers.Fetcher, pacer Pacer, cfg Config) *Discoverer {
	if cfg.MaxURLsPerStore <= 0 {
		cfg.MaxURLsPerStore = 25
	}
	if cfg.SitemapURLCap <= 0 {
		cfg.SitemapURLCap = 3000
	}
	if cfg.HomepageLinkCap <= 0 {
		cfg.HomepageLinkCap = 1500
	}
	if len(cfg.ProbePaths) == 0 {
		cfg.ProbePaths = CommonPaths
	}
	return &Discoverer{
		fetcher: fetcher,
		pacer:   pacer,
		cfg:     cfg,
		log:     logger.ForDiscovery(),
	}
}

// pace applies the politeness delay after a request, failed ones included.
func (d *Discoverer) pace(ctx context.Context) {
	if d.pacer != nil {
		d.pacer.Wait(ctx)
	}
}

// DiscoverSite probes a store's website through the three producers and
// returns the deduplicated candidate set, sorted lexicographically for
// determinism and truncated to the per-store cap. A store whose website does
// not normalize contributes zero candidates.
func (d *Discoverer) DiscoverSite(ctx context.Context, store domain.StoreRecord) []domain.PromoCandidate {
	base := NormalizeBase(store.Website)
	if base == "" {
		return nil
	}

	found := make(map[string]struct{})
	d.probeCommonPaths(ctx, base, found)
	d.mineSitemaps(ctx, base, found)
	d.scanHomepage(ctx, base, found)

	urls := make([]string, 0, len(found))
	for u := range found {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	if len(urls) > d.cfg.MaxURLsPerStore {
		urls = urls[:d.cfg.MaxURLsPerStore]
	}

	cands := make([]domain.PromoCandidate, 0, len(urls))
	for _, u := range urls {
		cands = append(cands, domain.PromoCandidate{
			URL:      u,
			Store:    store,
			Priority: PriorityScore(u),
		})
	}
	return cands
}

// probeCommonPaths issues a cheap existence check against each well-known
// promo path. A failure on a single path is treated as "not found".
func (d *Discoverer) probeCommonPaths(ctx context.Context, base string, found map[string]struct{}) {
	for _, path := range d.cfg.ProbePaths {
		if ctx.Err() != nil {
			return
		}
		u := base + path
		if d.fetcher.HeadOK(ctx, u) {
			found[u] = struct{}{}
		}
		d.pace(ctx)
	}
}

// mineSitemaps fetches the two fixed sitemap paths and keeps every
// same-origin location whose string matches the promo keyword pattern. A
// fetch failure on either file is non-fatal.
func (d *Discoverer) mineSitemaps(ctx context.Context, base string, found map[string]struct{}) {
	for _, path := range sitemapPaths {
		if ctx.Err() != nil {
			return
		}
		body, status, err := d.fetcher.Get(ctx, base+path)
		d.pace(ctx)
		if err != nil || status >= 400 {
			continue
		}

		matches := locPattern.FindAllStringSubmatch(string(body), d.cfg.SitemapURLCap)
		for _, m := range matches {
			u := strings.TrimSpace(m[1])
			if u == "" {
				continue
			}
			u = stripFragment(u)
			if SameOrigin(base, u) && promoKeywords.MatchString(u) {
				found[u] = struct{}{}
			}
		}
	}
}

// scanHomepage fetches the base URL and pattern-extracts hyperlink targets,
// capped to bound cost on pathological pages. Same-origin links matching the
// promo keyword pattern become candidates.
func (d *Discoverer) scanHomepage(ctx context.Context, base string, found map[string]struct{}) {
	if ctx.Err() != nil {
		return
	}
	body, status, err := d.fetcher.Get(ctx, base)
	d.pace(ctx)
	if err != nil || status >= 400 {
		return
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return
	}

	matches := hrefPattern.FindAllStringSubmatch(string(body), d.cfg.HomepageLinkCap)
	for _, m := range matches {
		href := strings.TrimSpace(m[1])
		if href == "" ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") ||
			strings.HasPrefix(href, "javascript:") {
			continue
		}

		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		abs := baseURL.ResolveReference(ref)
		abs.Fragment = ""
		u := abs.String()

		if SameOrigin(base, u) && promoKeywords.MatchString(u) {
			found[u] = struct{}{}
		}
	}
}

func stripFragment(u string) string {
	if i := strings.Index(u, "#"); i >= 0 {
		return u[:i]
	}
	return u
}
