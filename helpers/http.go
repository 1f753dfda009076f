package helpers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"golang.org/x/net/html/charset"
)

// DefaultUserAgent is the fixed identity every outbound request carries.
// Third-party sites see one honest browser-like string, not a rotation.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123 Safari/537.36"

// ErrRateLimited is returned when an origin answers with a throttling status.
// Callers use it to set a politeness block on the origin.
var ErrRateLimited = errors.New("rate limited")

// Fetcher issues GET/HEAD requests with a fixed identity header, per-method
// timeouts and redirect following. Response bodies are converted to UTF-8
// before they reach any parser.
type Fetcher struct {
	userAgent  string
	getClient  *http.Client
	headClient *http.Client
}

// NewFetcher creates a fetcher with separate GET and HEAD timeouts.
func NewFetcher(userAgent string, getTimeout, headTimeout time.Duration) *Fetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Fetcher{
		userAgent:  userAgent,
		getClient:  &http.Client{Timeout: getTimeout},
		headClient: &http.Client{Timeout: headTimeout},
	}
}

// Get fetches a URL and returns the UTF-8 body and the response status.
// Transport failures return an error; HTTP error statuses do not, so that
// callers can decide whether a 4xx/5xx is a skip or a retry.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.getClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if slices.Contains([]int{http.StatusTooManyRequests, 430}, resp.StatusCode) {
		retryAfter := resp.Header.Get("Retry-After")
		return nil, resp.StatusCode, fmt.Errorf("%w; retry after %q", ErrRateLimited, retryAfter)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	utf8Bytes, err := toUTF8(bodyBytes, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return utf8Bytes, resp.StatusCode, nil
}

// HeadOK issues a HEAD request (following redirects) and reports whether the
// target exists: any status below 400. Transport and protocol failures count
// as "not found", never as errors.
func (f *Fetcher) HeadOK(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.headClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < 400
}

// toUTF8 converts a response body to UTF-8 based on the Content-Type header
// and the body content itself.
func toUTF8(body []byte, contentType string) ([]byte, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || name == "UTF-8" {
		return body, nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(body))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return nil, fmt.Errorf("failed to read converted UTF-8 body: %w", err)
	}
	return buf.Bytes(), nil
}
