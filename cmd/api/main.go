package main

import (
	"context"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/api"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/config"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/logger"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/media"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/repository"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/scrape"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/search"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/service"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/storage"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/worker"
)

func main() {
	// Support CONFIG_PATH for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		stdlog.Fatalf("Failed to load config: %v", err)
	}

	log := logger.New(logger.ConfigFromEnv())
	logger.SetDefault(log)
	defer logger.Sync()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}

	itemRepo := repository.NewItemRepository(db)
	userRepo := repository.NewUserRepository(db)
	wishlistRepo := repository.NewWishlistRepository(db)
	failureRepo := repository.NewFailureRepository(db)

	// The durable image host is optional; without it the pipeline serves
	// local fallback paths instead.
	var objectStorage storage.ObjectStorage
	if cfg.Storage.Configured() {
		objectStorage, err = storage.New(&cfg.Storage)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize image storage")
		}
	} else {
		log.Warn("No image host configured, durable uploads disabled")
	}
	persister := media.NewPersister(objectStorage, "wishes", log)

	prober := media.NewProber(cfg.Enrichment.ProbeTimeout)
	fetcher := scrape.NewFetcher(cfg.Enrichment.FetchTimeout, log)
	preview := scrape.NewPreviewExtractor(cfg.Enrichment.PreviewTimeout)
	matcher := scrape.NewMatcher(nil)

	searchClient := search.NewClient(&search.Config{
		BaseURL: cfg.Search.BaseURL,
		APIKey:  cfg.Search.APIKey,
	}, prober, log)
	if !searchClient.Configured() {
		log.Warn("No search API key configured, enrichment will run without search context")
	}

	analyzer := service.NewAnalyzer(&cfg.AI, log)
	ledger := service.NewQuotaLedger(userRepo, cfg.Quota.DailyLimit, log)
	relayer := service.NewRelayer(itemRepo, persister, cfg.Enrichment.UploadBasePath, log)

	enricher := service.NewEnricher(service.EnricherDeps{
		Items:     itemRepo,
		Failures:  failureRepo,
		Quota:     ledger,
		Fetcher:   fetcher,
		Preview:   preview,
		Matcher:   matcher,
		Search:    searchClient,
		Analyzer:  analyzer,
		Prober:    prober,
		Persister: persister,
		Relayer:   relayer,
		Log:       log,
	})

	pool := worker.NewPool(cfg.Enrichment.Workers, cfg.Enrichment.QueueSize, log)

	ingest := service.NewIngestService(itemRepo, wishlistRepo, enricher, pool, cfg.Enrichment.UploadDir, log)

	router := api.SetupRouter(cfg, ingest, itemRepo, log)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	// Drain in-flight enrichments so no item is left PENDING by a clean stop.
	if err := pool.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Enrichment pool did not drain in time")
	}

	log.Info("Server exited")
}
