package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promoscout/promoworker/internal/source"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Len(t, cfg.OverpassEndpoints, 3)
	assert.Equal(t, 6, cfg.OverpassTries)
	assert.Equal(t, source.BBox{South: 53.20, West: -6.45, North: 53.45, East: -6.05}, cfg.BBox)
	assert.Equal(t, 60, cfg.MaxStores)
	assert.Equal(t, 25, cfg.MaxPromoURLsPerStore)
	assert.Equal(t, 15*time.Second, cfg.GetTimeout)
	assert.Equal(t, 10*time.Second, cfg.HeadTimeout)
	assert.Equal(t, 400*time.Millisecond, cfg.ExtractDelayMin)
	assert.Equal(t, 800*time.Millisecond, cfg.ExtractDelayMax)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, 500*time.Second, cfg.OriginBlockTime)
	assert.Equal(t, "deals.csv", cfg.DealsCSV)
	assert.Equal(t, "published_deals.json", cfg.FeedJSON)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("MAX_STORES", "5")
	t.Setenv("CONCURRENCY", "3")
	t.Setenv("EXTRACT_SLEEP_MIN", "0.1")
	t.Setenv("EXTRACT_SLEEP_MAX", "0.2")
	t.Setenv("DEALS_CSV", "out/deals.csv")
	t.Setenv("ORIGIN_BLOCK_SECONDS", "60")

	cfg := LoadConfig()

	assert.Equal(t, 5, cfg.MaxStores)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 100*time.Millisecond, cfg.ExtractDelayMin)
	assert.Equal(t, 200*time.Millisecond, cfg.ExtractDelayMax)
	assert.Equal(t, "out/deals.csv", cfg.DealsCSV)
	assert.Equal(t, 60*time.Second, cfg.OriginBlockTime)
}

func TestLoadConfigBadEnvFallsBack(t *testing.T) {
	t.Setenv("MAX_STORES", "notanumber")
	t.Setenv("REQ_TIMEOUT_GET", "alsonotanumber")

	cfg := LoadConfig()
	assert.Equal(t, 60, cfg.MaxStores)
	assert.Equal(t, 15*time.Second, cfg.GetTimeout)
}

func TestLoadConfigFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promoworker.yaml")
	overlay := `
overpass:
  endpoints:
    - https://mirror.example/api/interpreter
  tries: 2
area:
  south: 51.40
  west: -0.30
  north: 51.60
  east: 0.10
tags:
  - shop=books
discovery:
  probePaths:
    - /angebote
`
	require.NoError(t, os.WriteFile(path, []byte(overlay), 0o644))
	t.Setenv("PROMOWORKER_CONFIG", path)

	cfg := LoadConfig()

	assert.Equal(t, []string{"https://mirror.example/api/interpreter"}, cfg.OverpassEndpoints)
	assert.Equal(t, 2, cfg.OverpassTries)
	assert.Equal(t, source.BBox{South: 51.40, West: -0.30, North: 51.60, East: 0.10}, cfg.BBox)
	assert.Equal(t, []string{"shop=books"}, cfg.ShopTags)
	assert.Equal(t, []string{"/angebote"}, cfg.ProbePaths)
}

func TestLoadConfigBadOverlayIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":::"), 0o644))
	t.Setenv("PROMOWORKER_CONFIG", path)

	cfg := LoadConfig()
	assert.Len(t, cfg.OverpassEndpoints, 3)
}

func TestValidate(t *testing.T) {
	valid := LoadConfig()
	require.NoError(t, valid.Validate())

	testCases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero get timeout", func(c *Config) { c.GetTimeout = 0 }},
		{"negative cap", func(c *Config) { c.MaxStores = -1 }},
		{"negative delay", func(c *Config) { c.ExtractDelayMin = -time.Second }},
		{"delay bounds inverted", func(c *Config) { c.ExtractDelayMax = c.ExtractDelayMin - time.Millisecond }},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"zero tries", func(c *Config) { c.OverpassTries = 0 }},
		{"no endpoints", func(c *Config) { c.OverpassEndpoints = nil }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := LoadConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
