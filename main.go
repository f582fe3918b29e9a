package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-catalog/classifier"
	"github.com/nijaru/yt-catalog/config"
	"github.com/nijaru/yt-catalog/errors"
	"github.com/nijaru/yt-catalog/handlers"
	"github.com/nijaru/yt-catalog/logger"
	"github.com/nijaru/yt-catalog/ratelimit"
	"github.com/nijaru/yt-catalog/repository"
	"github.com/nijaru/yt-catalog/repository/memory"
	"github.com/nijaru/yt-catalog/repository/postgres"
	"github.com/nijaru/yt-catalog/repository/sqlite"
	"github.com/nijaru/yt-catalog/scheduler"
	"github.com/nijaru/yt-catalog/services/ingestion"
	"github.com/nijaru/yt-catalog/storage"
	"github.com/nijaru/yt-catalog/youtube"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	logCloser, err := logger.Setup(logger.Config{Dir: cfg.Log.Dir, Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		logrus.WithError(err).Fatal("Failed to set up logging")
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logrus.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Component(logrus.StandardLogger(), "main")

	repo, err := openRepository(ctx, cfg.Database)
	if err != nil {
		return pkgerrors.Wrap(err, "open content store")
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.WithError(err).Error("Failed to close content store")
		}
	}()
	log.WithField("driver", cfg.Database.Driver).Info("Content store ready")

	cls := classifier.New(classifier.DefaultKeywordTable())

	orchestrator := buildOrchestrator(ctx, cfg, repo, cls)

	var ingest handlers.Ingestion
	var sched *scheduler.Scheduler
	if orchestrator != nil {
		ingest = orchestrator

		var opts []scheduler.Option
		if !cfg.Ingestion.RunOnStartup {
			opts = append(opts, scheduler.SkipInitialRun())
		}
		sched = scheduler.New(cfg.Ingestion.Interval, func(ctx context.Context) {
			if _, err := orchestrator.Run(ctx); err != nil && !pkgerrors.Is(err, errors.ErrRunInProgress) {
				log.WithError(err).Error("Scheduled ingestion failed")
			}
		}, logger.Component(logrus.StandardLogger(), "scheduler"), opts...)
		sched.Start(ctx)
	}

	h := handlers.New(ctx, ingest, repo, handlers.Config{
		Genres:          cls.Genres(),
		MinPerGenre:     cfg.Ingestion.MinPerGenre,
		TriggerInterval: cfg.Ingestion.TriggerInterval,
	}, logger.Component(logrus.StandardLogger(), "http"))

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      h.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.ServerPort).Info("Listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return pkgerrors.Wrapf(err, "listen on :%s", cfg.ServerPort)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down the server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}

	// in-flight queries finish before the store is closed
	if sched != nil {
		sched.Wait()
	}
	if orchestrator != nil {
		orchestrator.Wait()
	}
	log.Info("Shutdown complete")
	return nil
}

// buildOrchestrator returns nil when ingestion is disabled or cannot run.
func buildOrchestrator(ctx context.Context, cfg *config.Config, repo repository.ContentRepository, cls *classifier.Classifier) *ingestion.Orchestrator {
	log := logger.Component(logrus.StandardLogger(), "ingestion")

	if !cfg.Ingestion.Enabled {
		log.Info("Ingestion disabled by configuration")
		return nil
	}

	limiter := ratelimit.NewInterval(cfg.Ingestion.CallDelay)
	client, err := youtube.NewClient(youtube.Config{
		APIKey:         cfg.YouTube.APIKey,
		BaseURL:        cfg.YouTube.BaseURL,
		RegionCode:     cfg.YouTube.RegionCode,
		RequestTimeout: cfg.YouTube.RequestTimeout,
		MaxRetries:     cfg.YouTube.MaxRetries,
		RetryBackoff:   cfg.YouTube.RetryBackoff,
		Limiter:        limiter,
	}, logger.Component(logrus.StandardLogger(), "youtube"))
	if err != nil {
		log.WithError(err).Error("Ingestion skipped, YouTube client unavailable")
		return nil
	}
	log.WithField("api_key", youtube.MaskKey(cfg.YouTube.APIKey)).Info("YouTube API key configured")

	var archiver ingestion.ReportArchiver
	if cfg.Spaces.Enabled {
		spaces, err := storage.NewSpacesClient(ctx, storage.SpacesConfig{
			AccessKey: cfg.Spaces.AccessKey,
			SecretKey: cfg.Spaces.SecretKey,
			Region:    cfg.Spaces.Region,
			Endpoint:  cfg.Spaces.Endpoint,
			Bucket:    cfg.Spaces.Bucket,
		})
		if err != nil {
			log.WithError(err).Warn("Run report archiving disabled")
		} else {
			archiver = spaces
		}
	}

	icfg := ingestion.Config{
		PageSize:     cfg.Ingestion.PageSize,
		MinPerGenre:  cfg.Ingestion.MinPerGenre,
		MaxPerCall:   cfg.Ingestion.MaxPerCall,
		GenreQueries: cfg.Ingestion.GenreQueries,
		SeedQueries:  cfg.Ingestion.SeedQueries,
		SeedPageSize: cfg.Ingestion.SeedPageSize,
		SeedPause:    cfg.Ingestion.SeedPause,
	}

	fetcher := ingestion.NewFetcher(
		client,
		limiter,
		cls,
		repo,
		icfg.PageSize,
		logger.Component(logrus.StandardLogger(), "fetcher"),
	)
	balancer := ingestion.NewBalancer(
		fetcher,
		repo,
		cls.Genres(),
		icfg.GenreQueries,
		icfg.MaxPerCall,
		logger.Component(logrus.StandardLogger(), "balancer"),
	)
	return ingestion.NewOrchestrator(
		fetcher,
		balancer,
		repo,
		archiver,
		icfg,
		logger.Component(logrus.StandardLogger(), "orchestrator"),
	)
}

func openRepository(ctx context.Context, cfg config.DatabaseConfig) (repository.ContentRepository, error) {
	switch cfg.Driver {
	case "sqlite":
		dbCfg := sqlite.DefaultDBConfig()
		dbCfg.MaxConnections = cfg.MaxConnections
		dbCfg.MaxIdleConnections = cfg.MaxIdleConnections
		dbCfg.ConnMaxLifetime = cfg.ConnMaxLifetime
		return sqlite.Open(ctx, cfg.Path, dbCfg)
	case "postgres":
		return postgres.Open(ctx, postgres.Config{
			URL:             cfg.URL,
			MaxConns:        cfg.MaxConnections,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
	case "memory":
		return memory.NewRepository(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
