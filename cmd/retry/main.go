package main

import (
	"context"
	"flag"
	stdlog "log"
	"time"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/config"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/logger"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/media"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/repository"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/scrape"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/search"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/service"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/storage"
)

// retry re-runs enrichment for items stuck in PENDING, usually after an
// unclean shutdown lost their background task.
func main() {
	log := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "wishlist-retry",
	})
	logger.SetDefault(log)

	olderThan := flag.Duration("older-than", 10*time.Minute, "Only retry items created at least this long ago")
	limit := flag.Int("limit", 100, "Maximum number of items to retry")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		stdlog.Fatalf("Failed to load config: %v", err)
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}

	itemRepo := repository.NewItemRepository(db)
	userRepo := repository.NewUserRepository(db)
	wishlistRepo := repository.NewWishlistRepository(db)
	failureRepo := repository.NewFailureRepository(db)

	var objectStorage storage.ObjectStorage
	if cfg.Storage.Configured() {
		objectStorage, err = storage.New(&cfg.Storage)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize image storage")
		}
	}
	persister := media.NewPersister(objectStorage, "wishes", log)

	prober := media.NewProber(cfg.Enrichment.ProbeTimeout)
	searchClient := search.NewClient(&search.Config{
		BaseURL: cfg.Search.BaseURL,
		APIKey:  cfg.Search.APIKey,
	}, prober, log)

	enricher := service.NewEnricher(service.EnricherDeps{
		Items:     itemRepo,
		Failures:  failureRepo,
		Quota:     service.NewQuotaLedger(userRepo, cfg.Quota.DailyLimit, log),
		Fetcher:   scrape.NewFetcher(cfg.Enrichment.FetchTimeout, log),
		Preview:   scrape.NewPreviewExtractor(cfg.Enrichment.PreviewTimeout),
		Matcher:   scrape.NewMatcher(nil),
		Search:    searchClient,
		Analyzer:  service.NewAnalyzer(&cfg.AI, log),
		Prober:    prober,
		Persister: persister,
		Relayer:   service.NewRelayer(itemRepo, persister, cfg.Enrichment.UploadBasePath, log),
		Log:       log,
	})

	ctx := context.Background()
	cutoff := time.Now().Add(-*olderThan)

	items, err := itemRepo.ListStalePending(ctx, cutoff, *limit)
	if err != nil {
		log.WithError(err).Fatal("Failed to list stale items")
	}
	log.WithField("count", len(items)).Info("Retrying stale PENDING items")

	retried := 0
	for _, item := range items {
		wishlist, err := wishlistRepo.GetByID(ctx, item.WishlistID)
		if err != nil {
			log.WithField(logger.FieldItemID, item.ID).WithError(err).Warn("Parent wishlist missing, skipping")
			continue
		}
		enricher.Enrich(ctx, item.ID, wishlist.UserID)
		retried++
	}

	log.WithField("retried", retried).Info("Retry pass finished")
}
