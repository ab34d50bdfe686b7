package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/Deiviidsito/backend-nasa/internal/api"
	"github.com/Deiviidsito/backend-nasa/internal/archive"
	"github.com/Deiviidsito/backend-nasa/internal/cache"
	"github.com/Deiviidsito/backend-nasa/internal/compare"
	"github.com/Deiviidsito/backend-nasa/internal/config"
	"github.com/Deiviidsito/backend-nasa/internal/ingestion"
	"github.com/Deiviidsito/backend-nasa/internal/logging"
	"github.com/Deiviidsito/backend-nasa/internal/observability"
	"github.com/Deiviidsito/backend-nasa/internal/query"
	"github.com/Deiviidsito/backend-nasa/internal/scheduler"
	"github.com/Deiviidsito/backend-nasa/internal/source"
	"github.com/Deiviidsito/backend-nasa/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port,
		"cities", len(config.Cities))

	ar, err := archive.NewSQLiteArchive(cfg.Archive.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize archive: %v", err)
	}
	defer ar.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.New()
	metrics := observability.NewMetrics()
	queryCache := cache.New(st, cfg.Cache.TTL, cfg.Cache.MaxEntries, nil)
	queryCache.OnLookup = func(hit bool) {
		result := "miss"
		if hit {
			result = "hit"
		}
		metrics.CacheLookups.WithLabelValues(result).Inc()
	}

	// Evict cached answers as soon as a fresh grid lands. Cached entries are
	// also re-validated on read, so this is a memory optimization, not a
	// correctness requirement.
	_, events := st.Broadcaster().Subscribe()
	go func() {
		for ev := range events {
			queryCache.InvalidateCity(ev.CityID)
		}
	}()

	adapters := buildAdapters(cfg)
	if len(adapters) == 0 {
		logging.Fatalf("No sources enabled")
	}

	mgr := ingestion.NewManager(cfg, config.Cities, adapters, st, ar, metrics, nil)
	mgr.Start(ctx)

	// First cycle up front so the API has grids to serve.
	go mgr.RefreshAll(ctx)

	sched := scheduler.New(mgr, cfg.Fusion.RefreshInterval)
	if err := sched.Start(); err != nil {
		logging.Fatalf("Failed to start scheduler: %v", err)
	}

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(20, 40))

	queries := query.NewService(config.CityIDs(), st, queryCache)
	comparator := compare.NewComparator(config.CityNames(), st, queryCache)
	handler := api.NewHandler(config.Cities, queries, comparator, st, ar, metrics)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	sched.Stop()
	mgr.Stop()
	st.Broadcaster().Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}

func buildAdapters(cfg *config.Config) []source.Adapter {
	var adapters []source.Adapter
	timeout := cfg.Sources.FetchTimeout

	if cfg.Sources.TempoEnabled {
		adapters = append(adapters, source.NewTempoAdapter(cfg.Sources.TempoURL, timeout))
	}
	if cfg.Sources.OpenAQEnabled {
		adapters = append(adapters, source.NewOpenAQAdapter(cfg.Sources.OpenAQURL, cfg.Sources.OpenAQAPIKey, timeout))
	}
	if cfg.Sources.Merra2Enabled {
		adapters = append(adapters, source.NewMerra2Adapter(cfg.Sources.Merra2URL, timeout))
	}
	if cfg.Sources.ImergEnabled {
		adapters = append(adapters, source.NewImergAdapter(cfg.Sources.ImergURL, timeout))
	}
	return adapters
}
