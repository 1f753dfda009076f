// Package extract fetches candidate promo pages and derives best-effort deal
// signals from free-form page text.
//
// Old/new price selection is a known accuracy limitation: when a page shows
// two or more distinct currency amounts, the maximum is taken as the
// pre-discount price and the minimum as the current one. Page order, not
// price order, carries the true meaning, so pages listing several unrelated
// products can pair wrongly. Every record is flagged needs_review for exactly
// this reason.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"promoscout/promoworker/helpers"
	"promoscout/promoworker/logger"
	apperr "promoscout/promoworker/pkg/errors"
)

const maxTitleLen = 120

var (
	// Euro or Pound sign, optional space, number with optional 2-decimal
	// fraction using either separator.
	priceRe = regexp.MustCompile(`[€£]\s?\d+(?:[.,]\d{2})?`)

	// First 1-2 digit number followed by an optional space and a percent sign.
	percentRe = regexp.MustCompile(`\b(\d{1,2})\s?%`)

	nonNumeric   = regexp.MustCompile(`[^\d.]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// titleTags is the ordered preference list for the title guess: most
// prominent heading first, document title as the fallback.
var titleTags = []string{"h1", "h2", "title"}

// PageSignals is what one promo page yielded. All fields may be absent;
// absence of signal is a valid result, not an error.
type PageSignals struct {
	Title           string
	OldPrice        *float64
	NewPrice        *float64
	DiscountPercent *int
}

// PageExtractor fetches promo-page candidates and extracts deal signals.
type PageExtractor struct {
	fetcher *helpers.Fetcher
	log     *logger.Logger
}

// NewPageExtractor creates a page extractor on top of the shared fetcher.
func NewPageExtractor(fetcher *helpers.Fetcher) *PageExtractor {
	return &PageExtractor{
		fetcher: fetcher,
		log:     logger.ForExtractor(),
	}
}

// ExtractPage fetches one candidate URL and derives its signals. A response
// status of 400 or above, a transport failure or unparseable HTML returns an
// error, which callers treat as a skip and never as fatal to the run.
func (e *PageExtractor) ExtractPage(ctx context.Context, pageURL string) (*PageSignals, error) {
	body, status, err := e.fetcher.Get(ctx, pageURL)
	if err != nil {
		return nil, apperr.NewNetwork(pageURL, "fetch failed", err)
	}
	if status >= 400 {
		return nil, apperr.NewNetwork(pageURL, fmt.Sprintf("status %d", status), nil)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, apperr.NewParsing(pageURL, "HTML parse failed", err)
	}

	text := CleanText(doc.Text())

	signals := &PageSignals{Title: extractTitle(doc)}

	prices := ExtractPrices(text)
	switch {
	case len(prices) >= 2:
		oldP, newP := prices[len(prices)-1], prices[0]
		signals.OldPrice, signals.NewPrice = &oldP, &newP
	case len(prices) == 1:
		newP := prices[0]
		signals.NewPrice = &newP
	}

	signals.DiscountPercent = ExtractDiscount(text)
	return signals, nil
}

// CleanText collapses all whitespace runs, newlines included, into single
// spaces and trims the ends.
func CleanText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// extractTitle takes the first non-empty entry from the heading preference
// list, collapsed and truncated to 120 characters. No heading means no title.
func extractTitle(doc *goquery.Document) string {
	for _, tag := range titleTags {
		txt := CleanText(doc.Find(tag).First().Text())
		if txt != "" {
			return truncate(txt, maxTitleLen)
		}
	}
	return ""
}

// ExtractPrices scans collapsed page text for currency-prefixed numeric
// tokens and returns the distinct values sorted ascending. A token that
// fails to parse after stripping non-numeric characters is discarded
// silently.
func ExtractPrices(text string) []float64 {
	matches := priceRe.FindAllString(text, -1)
	seen := make(map[float64]struct{}, len(matches))
	var vals []float64
	for _, m := range matches {
		num := nonNumeric.ReplaceAllString(m, "")
		v, err := strconv.ParseFloat(num, 64)
		if err != nil {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		vals = append(vals, v)
	}
	sort.Float64s(vals)
	return vals
}

// ExtractDiscount returns the first two-digit-at-most percentage in the text,
// or nil when none is present.
func ExtractDiscount(text string) *int {
	m := percentRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &v
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Pacer inserts a bounded random delay between network-bound operations.
// This is a politeness contract toward third-party servers, not a
// performance knob, and it is honored even when the preceding fetch failed.
type Pacer struct {
	min, max time.Duration
	randFn   func(int64) int64
}

// NewPacer creates a pacer with delay bounds. randFn is an injectable
// randomness source; nil uses the shared math/rand source. Tests inject a
// fixed one to make pacing deterministic.
func NewPacer(min, max time.Duration, randFn func(int64) int64) *Pacer {
	if max < min {
		max = min
	}
	if randFn == nil {
		randFn = rand.Int63n
	}
	return &Pacer{min: min, max: max, randFn: randFn}
}

// Wait sleeps for a uniform random duration within the configured bounds,
// returning early only on context cancellation.
func (p *Pacer) Wait(ctx context.Context) {
	d := p.min
	if span := int64(p.max - p.min); span > 0 {
		d += time.Duration(p.randFn(span))
	}
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
