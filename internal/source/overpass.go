// Package source fetches store records from the Overpass (OpenStreetMap)
// API. Overpass mirrors are interchangeable and individually flaky, so every
// query runs through the retry controller.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"promoscout/promoworker/internal/domain"
	"promoscout/promoworker/internal/retry"
	"promoscout/promoworker/logger"
	apperr "promoscout/promoworker/pkg/errors"
)

// BBox is the (south, west, north, east) query area.
type BBox struct {
	South float64
	West  float64
	North float64
	East  float64
}

func (b BBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.South, b.West, b.North, b.East)
}

// Tag is one shop tag to query, e.g. {"shop", "electronics"}.
type Tag struct {
	Key   string
	Value string
}

// ParseTags converts "key=value" strings into Tags, dropping malformed ones.
func ParseTags(raw []string) []Tag {
	var tags []Tag
	for _, r := range raw {
		parts := strings.SplitN(r, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		tags = append(tags, Tag{Key: parts[0], Value: parts[1]})
	}
	return tags
}

// Client queries Overpass for named stores within a bounding box.
type Client struct {
	httpClient *http.Client
	retrier    *retry.Controller
	bbox       BBox
	tags       []Tag
	log        *logger.Logger
}

// NewClient creates an Overpass client. The retrier carries the mirror list
// and the attempt budget.
func NewClient(retrier *retry.Controller, bbox BBox, tags []Tag, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		retrier:    retrier,
		bbox:       bbox,
		tags:       tags,
		log:        logger.ForSource(),
	}
}

type overpassElement struct {
	Type   string   `json:"type"`
	ID     int64    `json:"id"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Center *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"center"`
	Tags map[string]string `json:"tags"`
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

// FetchStores runs one query per configured tag and returns the deduplicated
// store list. Exhausted retries on any single tag query surface as an error:
// the store list is required input and the caller decides whether a cached
// copy can stand in.
func (c *Client) FetchStores(ctx context.Context) ([]domain.StoreRecord, error) {
	seen := make(map[string]struct{})
	var stores []domain.StoreRecord

	for _, tag := range c.tags {
		query := buildQuery(tag, c.bbox)

		var resp overpassResponse
		err := c.retrier.Do(ctx, func(ctx context.Context, endpoint string) error {
			return c.post(ctx, endpoint, query, &resp)
		})
		if err != nil {
			return nil, apperr.NewSource(tag.Key+"="+tag.Value, "overpass query failed", err)
		}

		for _, el := range resp.Elements {
			rec, ok := toRecord(el, tag)
			if !ok {
				continue
			}
			if _, dup := seen[rec.Key()]; dup {
				continue
			}
			seen[rec.Key()] = struct{}{}
			stores = append(stores, rec)
		}

		c.log.Info().
			Str("tag", tag.Key+"="+tag.Value).
			Int("elements", len(resp.Elements)).
			Msg("Overpass query complete")
	}

	sort.SliceStable(stores, func(i, j int) bool {
		return stores[i].Name < stores[j].Name
	})
	return stores, nil
}

func (c *Client) post(ctx context.Context, endpoint, query string, out *overpassResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(query))
	if err != nil {
		return apperr.NewSource(endpoint, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.NewNetwork(endpoint, "overpass request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apperr.NewNetwork(endpoint, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.NewParsing(endpoint, "overpass response decode failed", err)
	}
	return nil
}

func buildQuery(tag Tag, bbox BBox) string {
	area := bbox.String()
	return fmt.Sprintf(`[out:json][timeout:60];
(
  node[%q=%q](%s);
  way[%q=%q](%s);
  relation[%q=%q](%s);
);
out center tags;
`, tag.Key, tag.Value, area, tag.Key, tag.Value, area, tag.Key, tag.Value, area)
}

// toRecord maps an Overpass element to a StoreRecord. Unnamed elements are
// dropped; way/relation coordinates come from the computed center.
func toRecord(el overpassElement, tag Tag) (domain.StoreRecord, bool) {
	name := el.Tags["name"]
	if name == "" {
		return domain.StoreRecord{}, false
	}

	lat, lon := el.Lat, el.Lon
	if el.Type != "node" && el.Center != nil {
		lat, lon = &el.Center.Lat, &el.Center.Lon
	}

	website := el.Tags["website"]
	if website == "" {
		website = el.Tags["contact:website"]
	}
	phone := el.Tags["phone"]
	if phone == "" {
		phone = el.Tags["contact:phone"]
	}

	var addrParts []string
	for _, k := range []string{"addr:housenumber", "addr:street", "addr:city", "addr:postcode"} {
		if v := el.Tags[k]; v != "" {
			addrParts = append(addrParts, v)
		}
	}

	return domain.StoreRecord{
		OSMType:  el.Type,
		OSMID:    el.ID,
		Name:     name,
		Category: tag.Key + "=" + tag.Value,
		Website:  website,
		Phone:    phone,
		Brand:    el.Tags["brand"],
		Addr:     strings.Join(addrParts, " "),
		Lat:      lat,
		Lon:      lon,
	}, true
}

// WithWebsites filters to stores that can contribute to discovery.
func WithWebsites(stores []domain.StoreRecord) []domain.StoreRecord {
	var out []domain.StoreRecord
	for _, s := range stores {
		if strings.TrimSpace(s.Website) != "" {
			out = append(out, s)
		}
	}
	return out
}
