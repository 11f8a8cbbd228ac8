package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/Bursary/internal/api"
	"github.com/MikeSquared-Agency/Bursary/internal/config"
	"github.com/MikeSquared-Agency/Bursary/internal/hermes"
	"github.com/MikeSquared-Agency/Bursary/internal/rubric"
	"github.com/MikeSquared-Agency/Bursary/internal/scoring"
	"github.com/MikeSquared-Agency/Bursary/internal/signing"
	"github.com/MikeSquared-Agency/Bursary/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logging.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Rubric
	r, err := loadRubric(ctx, cfg)
	if err != nil {
		logger.Error("failed to load rubric", "source", cfg.Rubric.Source, "error", err)
		os.Exit(1)
	}
	for i, ruleErr := range r.InvalidRules() {
		logger.Warn("bonus rule will always be skipped", "rule", i, "name", r.Rules()[i].Name, "error", ruleErr)
	}
	for _, w := range r.Lint() {
		logger.Warn("rubric lint", "warning", w)
	}
	logger.Info("rubric loaded", "version", r.Version(), "factors", len(r.Factors()), "rules", len(r.Rules()))

	// Signing key
	signer := signing.NewSigner(cfg.Signing.Secret)
	if signer.KeySource() == signing.KeyDevFallback {
		logger.Warn("SCORING_HMAC_SECRET not set, signing with the development fallback key")
	}

	// Hermes (optional)
	var hermesClient hermes.Client
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			hermesClient = hc
			defer hc.Close()
			logger.Info("connected to hermes")
		}
	}

	engine := scoring.NewEngine(r, signer, logger)

	// API server
	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(engine, hermesClient, cfg.Server.RateLimitRPM, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           api.NewMetricsRouter(signer.KeySource()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("API server starting", "port", cfg.Server.Port)
		return serve(apiServer)
	})
	g.Go(func() error {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		return serve(metricsServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(apiServer.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func loadRubric(ctx context.Context, cfg *config.Config) (*rubric.Rubric, error) {
	if cfg.Rubric.Source == config.SourceFile {
		return rubric.LoadFile(cfg.Rubric.Path)
	}

	db, err := store.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return store.LoadRubric(ctx, db, cfg.Rubric.Version)
}
