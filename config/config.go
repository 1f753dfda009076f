package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"promoscout/promoworker/internal/source"
	apperr "promoscout/promoworker/pkg/errors"
)

const fileConfigEnv = "PROMOWORKER_CONFIG"

// Config represents the application configuration. Components receive the
// fields they need at construction; nothing reads ambient environment state
// from deep inside the pipeline.
type Config struct {
	// Store source
	OverpassEndpoints []string
	OverpassTries     int
	OverpassTimeout   time.Duration
	BBox              source.BBox
	ShopTags          []string

	// Discovery
	MaxStores            int
	MaxPromoURLsPerStore int
	SitemapURLCap        int
	HomepageLinkCap      int
	ProbePaths           []string

	// Fetching
	UserAgent   string
	GetTimeout  time.Duration
	HeadTimeout time.Duration

	// Pacing (politeness contract)
	DiscoverDelayMin time.Duration
	DiscoverDelayMax time.Duration
	ExtractDelayMin  time.Duration
	ExtractDelayMax  time.Duration

	// Worker
	Concurrency     int
	OriginBlockTime time.Duration

	// Output files
	StoresCSV      string
	StoresWebCSV   string
	CandidatesCSV  string
	DealsCSV       string
	FeedJSON       string
	HistoryFile    string

	// Redis publisher (optional collaborator)
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache (optional, politeness blocks across runs)
	MemcacheAddr string

	// Telegram alerting (optional collaborator)
	TelegramBotToken string
	TelegramChatID   string

	// Environment
	Environment string
}

// fileConfig is the optional YAML overlay for list-shaped tuning that does
// not fit environment variables well.
type fileConfig struct {
	Overpass struct {
		Endpoints []string `yaml:"endpoints"`
		Tries     int      `yaml:"tries"`
	} `yaml:"overpass"`
	Area struct {
		South float64 `yaml:"south"`
		West  float64 `yaml:"west"`
		North float64 `yaml:"north"`
		East  float64 `yaml:"east"`
	} `yaml:"area"`
	Tags      []string `yaml:"tags"`
	Discovery struct {
		ProbePaths []string `yaml:"probePaths"`
	} `yaml:"discovery"`
}

// LoadConfig loads the configuration from environment variables with
// defaults, then applies the YAML overlay named by PROMOWORKER_CONFIG if one
// is set.
func LoadConfig() Config {
	cfg := Config{
		OverpassEndpoints: []string{
			"https://overpass-api.de/api/interpreter",
			"https://overpass.kumi.systems/api/interpreter",
			"https://maps.mail.ru/osm/tools/overpass/api/interpreter",
		},
		OverpassTries:   getEnvInt("OVERPASS_TRIES", 6),
		OverpassTimeout: getEnvSeconds("OVERPASS_TIMEOUT", 60),
		BBox: source.BBox{
			South: 53.20, West: -6.45, North: 53.45, East: -6.05,
		},
		ShopTags: []string{
			"shop=electronics", "shop=computer", "shop=mobile_phone",
			"shop=clothes", "shop=shoes",
		},

		MaxStores:            getEnvInt("MAX_STORES", 60),
		MaxPromoURLsPerStore: getEnvInt("MAX_PROMO_URLS_PER_STORE", 25),
		SitemapURLCap:        getEnvInt("SITEMAP_URL_CAP", 3000),
		HomepageLinkCap:      getEnvInt("HOMEPAGE_LINK_CAP", 1500),

		UserAgent:   getEnv("USER_AGENT", ""),
		GetTimeout:  getEnvSeconds("REQ_TIMEOUT_GET", 15),
		HeadTimeout: getEnvSeconds("REQ_TIMEOUT_HEAD", 10),

		DiscoverDelayMin: getEnvSeconds("SLEEP_MIN", 0.15),
		DiscoverDelayMax: getEnvSeconds("SLEEP_MAX", 0.35),
		ExtractDelayMin:  getEnvSeconds("EXTRACT_SLEEP_MIN", 0.4),
		ExtractDelayMax:  getEnvSeconds("EXTRACT_SLEEP_MAX", 0.8),

		Concurrency:     getEnvInt("CONCURRENCY", 1),
		OriginBlockTime: getEnvSeconds("ORIGIN_BLOCK_SECONDS", 500),

		StoresCSV:     getEnv("STORES_CSV", "stores.csv"),
		StoresWebCSV:  getEnv("STORES_WITH_WEBSITES_CSV", "stores_with_websites.csv"),
		CandidatesCSV: getEnv("PROMO_URLS_CSV", "promo_urls.csv"),
		DealsCSV:      getEnv("DEALS_CSV", "deals.csv"),
		FeedJSON:      getEnv("OUTPUT_JSON", "published_deals.json"),
		HistoryFile:   getEnv("HISTORY_FILE", "previous_deals.json"),

		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "promodeals"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 500),

		MemcacheAddr: getEnv("MEMCACHE_ADDR", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),

		Environment: getEnv("PROMOWORKER_ENVIRONMENT", "development"),
	}

	if path := os.Getenv(fileConfigEnv); path != "" {
		applyFileConfig(&cfg, path)
	}

	return cfg
}

// applyFileConfig merges the YAML overlay into cfg. Unreadable or
// unparseable files fall back to the environment-derived values.
func applyFileConfig(cfg *Config, path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: cannot read %s: %v (ignoring overlay)\n", path, err)
		return
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		fmt.Fprintf(os.Stderr, "config: cannot parse %s: %v (ignoring overlay)\n", path, err)
		return
	}

	if len(fc.Overpass.Endpoints) > 0 {
		cfg.OverpassEndpoints = fc.Overpass.Endpoints
	}
	if fc.Overpass.Tries > 0 {
		cfg.OverpassTries = fc.Overpass.Tries
	}
	if fc.Area != (fileConfig{}.Area) {
		cfg.BBox = source.BBox{
			South: fc.Area.South,
			West:  fc.Area.West,
			North: fc.Area.North,
			East:  fc.Area.East,
		}
	}
	if len(fc.Tags) > 0 {
		cfg.ShopTags = fc.Tags
	}
	if len(fc.Discovery.ProbePaths) > 0 {
		cfg.ProbePaths = fc.Discovery.ProbePaths
	}
}

// Validate checks contract violations that must abort the run immediately.
// Everything else in this pipeline degrades; bad configuration does not.
func (c *Config) Validate() error {
	if c.GetTimeout <= 0 || c.HeadTimeout <= 0 || c.OverpassTimeout <= 0 {
		return apperr.NewConfiguration("timeouts must be positive", nil)
	}
	if c.MaxStores < 0 || c.MaxPromoURLsPerStore < 0 || c.SitemapURLCap < 0 || c.HomepageLinkCap < 0 {
		return apperr.NewConfiguration("caps must not be negative", nil)
	}
	if c.DiscoverDelayMin < 0 || c.ExtractDelayMin < 0 {
		return apperr.NewConfiguration("pacing delays must not be negative", nil)
	}
	if c.DiscoverDelayMax < c.DiscoverDelayMin || c.ExtractDelayMax < c.ExtractDelayMin {
		return apperr.NewConfiguration("pacing delay upper bound below lower bound", nil)
	}
	if c.Concurrency < 1 {
		return apperr.NewConfiguration("concurrency must be at least 1", nil)
	}
	if c.OverpassTries < 1 {
		return apperr.NewConfiguration("overpass attempt budget must be at least 1", nil)
	}
	if len(c.OverpassEndpoints) == 0 {
		return apperr.NewConfiguration("no overpass endpoints configured", nil)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an integer environment variable or returns a default
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvSeconds retrieves a duration expressed in possibly fractional
// seconds.
func getEnvSeconds(key string, defaultSeconds float64) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return time.Duration(defaultSeconds * float64(time.Second))
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return time.Duration(defaultSeconds * float64(time.Second))
	}
	return time.Duration(f * float64(time.Second))
}
