package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promoscout/promoworker/helpers"
	"promoscout/promoworker/internal/domain"
)

func newTestFetcher() *helpers.Fetcher {
	return helpers.NewFetcher("", 5*time.Second, 5*time.Second)
}

func candidateURLs(cands []domain.PromoCandidate) []string {
	urls := make([]string, 0, len(cands))
	for _, c := range cands {
		urls = append(urls, c.URL)
	}
	return urls
}

func TestDiscoverSiteProbesCommonPaths(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/offers", "/sale":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	d := NewDiscoverer(newTestFetcher(), nil, Config{
		ProbePaths: []string{"/offers", "/sale", "/clearance"},
	})
	store := domain.StoreRecord{Name: "Probe Shop", Website: server.URL}

	cands := d.DiscoverSite(context.Background(), store)

	assert.ElementsMatch(t, []string{
		server.URL + "/offers",
		server.URL + "/sale",
	}, candidateURLs(cands))
	for _, c := range cands {
		assert.Equal(t, "Probe Shop", c.Store.Name)
		assert.Equal(t, PriorityScore(c.URL), c.Priority)
	}
}

func TestDiscoverSiteMinesSitemap(t *testing.T) {
	var base string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			fmt.Fprintf(w, `<?xml version="1.0"?>
<urlset>
  <url><loc>%s/weekly-offers</loc></url>
  <url><loc>%s/about-us</loc></url>
  <url><loc>https://other.example/deals</loc></url>
  <url><loc>%s/sale#top</loc></url>
</urlset>`, base, base, base)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()
	base = server.URL

	d := NewDiscoverer(newTestFetcher(), nil, Config{ProbePaths: []string{"/none"}})
	store := domain.StoreRecord{Name: "Sitemap Shop", Website: server.URL}

	cands := d.DiscoverSite(context.Background(), store)

	// Keyword match and same-origin filter; fragment stripped.
	assert.ElementsMatch(t, []string{
		server.URL + "/weekly-offers",
		server.URL + "/sale",
	}, candidateURLs(cands))
}

func TestDiscoverSiteScansHomepage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><body>
<a href="/special-offers">Specials</a>
<a href='/clearance?week=9#list'>Clearance</a>
<a href="/contact">Contact</a>
<a href="mailto:hello@shop.example">Mail</a>
<a href="javascript:void(0)">Noop</a>
<a href="https://external.example/deals">Elsewhere</a>
</body></html>`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	d := NewDiscoverer(newTestFetcher(), nil, Config{ProbePaths: []string{"/none"}})
	store := domain.StoreRecord{Name: "Homepage Shop", Website: server.URL}

	cands := d.DiscoverSite(context.Background(), store)

	assert.ElementsMatch(t, []string{
		server.URL + "/special-offers",
		server.URL + "/clearance?week=9",
	}, candidateURLs(cands))
}

func TestDiscoverSiteCapsAndSorts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			for i := 0; i < 10; i++ {
				fmt.Fprintf(w, `<a href="/deals/%02d">deal</a>`, i)
			}
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	d := NewDiscoverer(newTestFetcher(), nil, Config{
		MaxURLsPerStore: 3,
		ProbePaths:      []string{"/none"},
	})
	store := domain.StoreRecord{Name: "Big Shop", Website: server.URL}

	cands := d.DiscoverSite(context.Background(), store)

	require.Len(t, cands, 3)
	// Deterministic lexicographic selection before the cap.
	assert.Equal(t, server.URL+"/deals/00", cands[0].URL)
	assert.Equal(t, server.URL+"/deals/01", cands[1].URL)
	assert.Equal(t, server.URL+"/deals/02", cands[2].URL)
}

func TestDiscoverSiteUnreachableSite(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	d := NewDiscoverer(newTestFetcher(), nil, Config{ProbePaths: []string{"/offers"}})
	store := domain.StoreRecord{Name: "Gone Shop", Website: addr}

	// Nothing reachable means zero candidates, not a failure.
	cands := d.DiscoverSite(context.Background(), store)
	assert.Empty(t, cands)
}

func TestDiscoverSiteBadWebsite(t *testing.T) {
	d := NewDiscoverer(newTestFetcher(), nil, Config{})
	cands := d.DiscoverSite(context.Background(), domain.StoreRecord{Name: "No Site", Website: "   "})
	assert.Nil(t, cands)
}

func TestDiscoverSiteProducerFailureIsolated(t *testing.T) {
	// Sitemap endpoint returns a server error; the probe producer still
	// contributes its hits.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml", "/sitemap_index.xml", "/":
			w.WriteHeader(http.StatusInternalServerError)
		case "/outlet":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	d := NewDiscoverer(newTestFetcher(), nil, Config{ProbePaths: []string{"/outlet"}})
	store := domain.StoreRecord{Name: "Half Shop", Website: server.URL}

	cands := d.DiscoverSite(context.Background(), store)
	assert.Equal(t, []string{server.URL + "/outlet"}, candidateURLs(cands))
}

type countingPacer struct {
	waits int
}

func (p *countingPacer) Wait(ctx context.Context) { p.waits++ }

func TestDiscoverSitePacesEveryRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	pacer := &countingPacer{}
	d := NewDiscoverer(newTestFetcher(), pacer, Config{ProbePaths: []string{"/offers", "/sale"}})
	d.DiscoverSite(context.Background(), domain.StoreRecord{Name: "Paced Shop", Website: server.URL})

	// Two probes, two sitemap fetches, one homepage fetch.
	assert.Equal(t, 5, pacer.waits)
}

func TestDiscoverSiteCancelledContext(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDiscoverer(newTestFetcher(), nil, Config{ProbePaths: []string{"/offers"}})
	cands := d.DiscoverSite(ctx, domain.StoreRecord{Name: "Late Shop", Website: server.URL})

	assert.Empty(t, cands)
	assert.False(t, called, "no requests should be issued after cancellation")
}
