// Package main runs the buying power HTTP service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cash-buying-power/config"
	"cash-buying-power/internal/api"
	"cash-buying-power/internal/app"
	"cash-buying-power/observability"
	"cash-buying-power/repository"
	"cash-buying-power/services"

	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		observability.InitLogger(false)
		observability.Fatal("invalid configuration", "error", err)
	}

	observability.InitLoggerWithOptions(observability.LogOptions{
		Production: cfg.Log.Production,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
	})
	observability.InitMetrics()
	if envErr != nil {
		observability.Debug("no .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog, err := config.LoadCatalog(cfg.Instruments.File, cfg.Instruments)
	if err != nil {
		observability.Fatal("failed to load instrument catalog", "error", err)
	}
	observability.Info("instrument catalog loaded",
		"file", cfg.Instruments.File,
		"instruments", len(catalog.Symbols()))

	// Database
	var repo *repository.Repository
	if cfg.HasDatabase() {
		repo, err = repository.NewRepository(ctx, cfg.Database.URL)
		if err != nil {
			observability.Fatal("failed to connect to database", "error", err)
		}
		if err := repo.Migrate(ctx); err != nil {
			observability.Fatal("failed to migrate database", "error", err)
		}
		if err := repo.EnsureAccount(ctx, cfg.Account.ID, cfg.Account.Currency); err != nil {
			observability.Fatal("failed to ensure account", "error", err, "account_id", cfg.Account.ID)
		}
	} else {
		observability.Warn("DATABASE_URL not set, evaluations will not be recorded")
	}

	// Conversion rates
	var rates *services.CachedRateProvider
	rateTTL := time.Duration(cfg.AlphaVantage.RateCacheTTLSeconds) * time.Second
	if cfg.HasAlphaVantage() {
		var store services.RateStore
		if repo != nil {
			store = repo
		}
		rates = services.NewCachedRateProvider(services.NewAlphaVantageService(cfg.AlphaVantage.APIKey), store, rateTTL)
	} else {
		observability.Warn("ALPHA_VANTAGE_API_KEY not set, foreign currencies keep their stored conversion rates")
	}

	// Snapshot source
	var source services.SnapshotSource
	switch cfg.Account.SnapshotSource {
	case config.SnapshotSourceAlpaca:
		broker := services.NewAlpacaService(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)
		var provider services.RateProvider
		if rates != nil {
			provider = rates
		}
		source = services.NewAlpacaSnapshotSource(broker, catalog, provider, cfg.Account.Currency)
	default:
		source = repository.NewSnapshotSource(repo, catalog)
		if rates != nil {
			go services.NewRateSyncer(rates, repo, cfg.Account.ID, cfg.Account.Currency, rateTTL).Run(ctx)
		}
	}
	observability.Info("snapshot source selected",
		"source", source.Name(),
		"account_id", cfg.Account.ID,
		"account_currency", cfg.Account.Currency)

	var appRepo app.RepositoryInterface
	if repo != nil {
		appRepo = repo
	}
	var appRates services.RateProvider
	if rates != nil {
		appRates = rates
	}
	application := app.New(cfg, appRepo, source, appRates, catalog)

	handler := api.NewHandler(application, cfg)
	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.NewRouter(handler, cfg),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		observability.Info("starting HTTP server", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			observability.Fatal("server error", "error", err)
		}
	}()

	<-ctx.Done()
	observability.Info("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Error("server forced to shutdown", "error", err)
	}

	application.Shutdown()
	observability.Info("server stopped")
}
