package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"photosphere/internal/catalog"
	"photosphere/internal/handlers"
	"photosphere/internal/importer"
	"photosphere/internal/logging"
	"photosphere/internal/memory"
	"photosphere/internal/metrics"
	"photosphere/internal/middleware"
	"photosphere/internal/startup"
	"photosphere/internal/thumbs"
	"photosphere/internal/workers"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Apply the Go memory limit before decoders start allocating
	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Probe HEIF capability (libvips); absence degrades, never fails
	heifAvailable := false
	if config.HEIFEnabled {
		if err := thumbs.InitVips(); err != nil {
			logging.Warn("libvips initialization failed: %v", err)
		} else {
			heifAvailable = thumbs.IsVipsAvailable()
		}
	}
	startup.LogHEIFInit(heifAvailable)

	var heif thumbs.HEIFDecoder
	if heifAvailable {
		heif = thumbs.NewHEIFDecoder()
	}
	gen := thumbs.NewGenerator(config.ThumbnailSize, heif)

	// Initialize catalog store
	dbStart := time.Now()
	db, err := catalog.New(context.Background(), config.CatalogPath)
	if err != nil {
		startup.LogFatal("Failed to initialize catalog: %v", err)
	}
	defer db.Close()
	startup.LogCatalogInit(time.Since(dbStart))

	// Thumbnail cache
	cache, err := thumbs.NewCache(config.ThumbnailDir, gen, db, workers.ForCPU(0))
	if err != nil {
		startup.LogFatal("Failed to initialize thumbnail cache: %v", err)
	}

	// Import pipeline
	pipeline := importer.New(db, cache, gen, importer.Config{
		FileBudget: config.ImportBudget,
	})
	startup.LogImporterInit(workers.ForMixed(0), config.ImportBudget)

	// Metrics
	var collector *metrics.Collector
	if config.MetricsEnabled {
		metrics.InitializeMetrics()
		metrics.SetAppInfo(startup.Version, startup.Commit, runtime.Version())
		metrics.SetHEIFCapability(heifAvailable)

		collector = metrics.NewCollector(statsSource{db: db, cache: cache}, config.CatalogPath, 30*time.Second)
		collector.Start()

		go func() {
			metricsMux := http.NewServeMux()
			metricsMux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(":"+config.MetricsPort, metricsMux); err != nil {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Handlers and middleware
	h := handlers.New(db, cache, pipeline, gen)
	router := h.Router()
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)
	if config.MetricsEnabled {
		handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	}
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, collector, heifAvailable)

	h.SetReady()
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

// statsSource merges catalog counts with thumbnail-cache usage for the
// periodic metrics collector.
type statsSource struct {
	db    *catalog.Database
	cache *thumbs.Cache
}

func (s statsSource) GetStats() metrics.Stats {
	stats := s.db.GetStats()
	stats.CacheEntries, stats.CacheBytes = s.cache.Stats()
	return stats
}

func handleShutdown(srv *http.Server, collector *metrics.Collector, vipsActive bool) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if collector != nil {
		startup.LogShutdownStep("Stopping metrics collector")
		collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if vipsActive {
		startup.LogShutdownStep("Shutting down libvips")
		thumbs.ShutdownVips()
		startup.LogShutdownStepComplete("libvips stopped")
	}

	startup.LogShutdownComplete()
}
