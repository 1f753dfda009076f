package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"promoscout/promoworker/config"
	"promoscout/promoworker/helpers"
	"promoscout/promoworker/internal/discovery"
	"promoscout/promoworker/internal/domain"
	"promoscout/promoworker/internal/export"
	"promoscout/promoworker/internal/extract"
	"promoscout/promoworker/internal/retry"
	"promoscout/promoworker/internal/source"
	"promoscout/promoworker/logger"
	"promoscout/promoworker/services/cache"
	"promoscout/promoworker/services/notifier"
	"promoscout/promoworker/services/publisher"
	"promoscout/promoworker/services/worker"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Int("max_stores", cfg.MaxStores).
		Int("concurrency", cfg.Concurrency).
		Msg("Starting promo worker")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	fetcher := helpers.NewFetcher(cfg.UserAgent, cfg.GetTimeout, cfg.HeadTimeout)

	stores, err := loadStores(ctx, &cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Store source unavailable")
	}
	webStores := source.WithWebsites(stores)
	log.Info().
		Int("all_stores", len(stores)).
		Int("with_websites", len(webStores)).
		Msg("Store list ready")

	var cacheSvc cache.CacheService
	if cfg.MemcacheAddr != "" {
		cacheSvc = cache.NewMemcacheService(cfg.MemcacheAddr)
		logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
	} else {
		cacheSvc = cache.NewMemoryService()
	}

	discoverPacer := extract.NewPacer(cfg.DiscoverDelayMin, cfg.DiscoverDelayMax, nil)
	discoverer := discovery.NewDiscoverer(fetcher, discoverPacer, discovery.Config{
		MaxURLsPerStore: cfg.MaxPromoURLsPerStore,
		SitemapURLCap:   cfg.SitemapURLCap,
		HomepageLinkCap: cfg.HomepageLinkCap,
		ProbePaths:      cfg.ProbePaths,
	})
	extractor := extract.NewPageExtractor(fetcher)
	pacer := extract.NewPacer(cfg.ExtractDelayMin, cfg.ExtractDelayMax, nil)
	assembler := extract.NewAssembler(extractor, pacer)

	w := worker.NewWorker(discoverer, assembler, cacheSvc, worker.Options{
		MaxStores:       cfg.MaxStores,
		Concurrency:     cfg.Concurrency,
		OriginBlockTime: cfg.OriginBlockTime,
	})

	// Run the pipeline; on a shutdown signal the worker stops issuing new
	// requests and whatever was extracted so far is still written out.
	start := time.Now()
	result := w.Run(ctx, webStores)
	log.Info().
		Dur("elapsed", time.Since(start)).
		Interface("stats", result.Stats).
		Msg("Run complete")

	writeOutputs(&cfg, result)
	publishDeals(ctx, &cfg, result.Deals)
	notifyNewDeals(ctx, &cfg, result.Deals)
}

// loadStores short-circuits the Overpass query when cached store CSVs exist,
// otherwise fetches fresh records and persists both store tables.
func loadStores(ctx context.Context, cfg *config.Config) ([]domain.StoreRecord, error) {
	log := logger.ForSource()

	if fileExists(cfg.StoresCSV) && fileExists(cfg.StoresWebCSV) {
		log.Info().
			Str("path", cfg.StoresWebCSV).
			Msg("Using cached store list, skipping Overpass")
		return export.ReadStores(cfg.StoresCSV)
	}

	retrier := retry.NewController(cfg.OverpassEndpoints, cfg.OverpassTries,
		rand.New(rand.NewSource(time.Now().UnixNano())))
	client := source.NewClient(retrier, cfg.BBox, source.ParseTags(cfg.ShopTags), cfg.OverpassTimeout)

	stores, err := client.FetchStores(ctx)
	if err != nil {
		return nil, err
	}

	if err := export.WriteStores(cfg.StoresCSV, stores); err != nil {
		log.Warn().Err(err).Msg("Failed to write stores CSV")
	}
	if err := export.WriteStores(cfg.StoresWebCSV, source.WithWebsites(stores)); err != nil {
		log.Warn().Err(err).Msg("Failed to write stores-with-websites CSV")
	}
	return stores, nil
}

func writeOutputs(cfg *config.Config, result worker.Result) {
	log := logger.ForWorker()

	if err := export.WriteCandidates(cfg.CandidatesCSV, result.Candidates); err != nil {
		log.Error().Err(err).Str("path", cfg.CandidatesCSV).Msg("Failed to write candidates CSV")
	}
	if err := export.WriteDeals(cfg.DealsCSV, result.Deals); err != nil {
		log.Error().Err(err).Str("path", cfg.DealsCSV).Msg("Failed to write deals CSV")
	}

	feed := export.BuildFeed(result.Deals, time.Now())
	if err := export.WriteFeed(cfg.FeedJSON, feed); err != nil {
		log.Error().Err(err).Str("path", cfg.FeedJSON).Msg("Failed to write feed")
	} else {
		log.Info().Int("items", feed.Count).Str("path", cfg.FeedJSON).Msg("Feed written")
	}
}

// publishDeals streams each deal to Redis when a publisher is configured.
func publishDeals(ctx context.Context, cfg *config.Config, deals []domain.ExtractedDeal) {
	if cfg.RedisAddr == "" {
		return
	}
	log := logger.ForPublisher()

	pub := publisher.NewRedisPublisher(
		ctx,
		cfg.RedisAddr,
		cfg.RedisDB,
		cfg.RedisStream,
		cfg.RedisStreamCount,
		cfg.RedisStreamMaxLength,
	)
	defer pub.Close()

	published := 0
	for _, deal := range deals {
		data, err := json.Marshal(deal)
		if err != nil {
			log.Error().Err(err).Str("source_url", deal.SourceURL).Msg("Failed to marshal deal")
			continue
		}
		if err := pub.Publish(deal.StoreName, data); err != nil {
			log.Error().Err(err).Str("source_url", deal.SourceURL).Msg("Failed to publish deal")
			continue
		}
		published++
	}

	if err := pub.TrimStreams(); err != nil {
		log.Error().Err(err).Msg("Failed to trim streams")
	}
	log.Info().Int("published", published).Msg("Deals published")
}

// notifyNewDeals diffs the run against the alert history and sends the
// Telegram summary when credentials are configured.
func notifyNewDeals(ctx context.Context, cfg *config.Config, deals []domain.ExtractedDeal) {
	n := notifier.New(cfg.TelegramBotToken, cfg.TelegramChatID)
	if !n.Enabled() {
		return
	}
	log := logger.ForNotifier()

	history := notifier.NewHistory(cfg.HistoryFile)
	seen, err := history.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load alert history, treating all deals as new")
		seen = map[string]struct{}{}
	}

	fresh := notifier.FilterNew(deals, seen)
	if err := n.NotifyNewDeals(ctx, fresh); err != nil {
		log.Error().Err(err).Msg("Failed to send alert")
	}

	if err := history.Save(deals); err != nil {
		log.Error().Err(err).Msg("Failed to save alert history")
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
