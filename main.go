package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carspotter/ai"
	"carspotter/config"
	"carspotter/fetcher"
	"carspotter/scraper"
	"carspotter/server"
	"carspotter/services"
	"carspotter/storage"
	"carspotter/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	logger.Info("=== carspotter starting ===")
	logger.Info("Config: strategy: %s | retries: %d | scan budget: %dms | addr: %s",
		cfg.ScraperStrategy, cfg.MaxRetries, cfg.ScanBudgetMs, cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store storage.Store
	if cfg.UsePostgres() {
		pg, err := storage.NewPostgresStore(ctx, cfg.DSN(), logger)
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			os.Exit(1)
		}
		store = pg
	} else {
		logger.Warn("POSTGRES_HOST not set, using in-memory store, data is lost on restart")
		store = storage.NewMemoryStore()
	}
	defer store.Close()

	aiClient := ai.NewClient(cfg, logger)
	stealthFetcher := fetcher.New(cfg, logger)
	repairer := services.NewRepairer(aiClient, logger)
	normalizer := services.NewNormalizer(aiClient, logger)

	engine := scraper.NewEngine(stealthFetcher, repairer, normalizer, logger,
		scraper.NewOtomoto(""),
		scraper.NewAutovit(""),
		scraper.NewMobileBg(""),
		scraper.New999Md(""),
	)

	var audit services.AuditSink
	if cfg.CSVOutputPath != "" {
		csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath)
		if err != nil {
			logger.Error("Failed to open audit CSV: %v", err)
			os.Exit(1)
		}
		defer csvWriter.Close()
		audit = csvWriter
		logger.Info("Scan audit log: %s", cfg.CSVOutputPath)
	}

	spotter := services.NewSpotter(store, engine, audit, logger,
		time.Duration(cfg.ScanBudgetMs)*time.Millisecond,
		time.Duration(cfg.ScanPauseMinMs)*time.Millisecond,
		time.Duration(cfg.ScanPauseMaxMs)*time.Millisecond,
	)

	srv := server.New(engine, spotter, store, logger, cfg.ScanSecret)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: srv,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("Listening on %s", cfg.HTTPAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("HTTP server failed: %v", err)
		os.Exit(1)
	}
}
