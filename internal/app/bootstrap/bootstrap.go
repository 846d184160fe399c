package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	votingengine "agora/contexts/civic-participation/voting-engine"
	postgresadapter "agora/contexts/civic-participation/voting-engine/adapters/postgres"
	workerapp "agora/contexts/civic-participation/voting-engine/application/workers"
	"agora/internal/platform/config"
	"agora/internal/platform/db"
	"agora/internal/platform/httpserver"
	"agora/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	scheduler    workerapp.LifecycleScheduler
	outboxRelay  workerapp.OutboxRelay
	relayEnabled bool
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")

	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		// No DSN means local development; everything runs against the
		// in-memory store and vanishes on restart.
		logger.Warn("POSTGRES_DSN not set, using in-memory store",
			"event", "bootstrap_memory_fallback",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		module := votingengine.NewInMemoryModule(nil, logger)
		return &APIApp{
			server: httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort)),
			logger: logger,
		}, nil
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	if err := repo.AutoMigrate(context.Background()); err != nil {
		_ = pg.Close()
		return nil, err
	}

	module := votingengine.NewModule(votingengine.Dependencies{
		Events:       repo,
		Ballots:      repo,
		Results:      repo,
		Outbox:       repo,
		Clock:        postgresadapter.SystemClock{},
		IDGen:        postgresadapter.UUIDGenerator{},
		TallyTimeout: cfg.TallyTimeout,
		Logger:       logger,
	})

	server := httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	if err := repo.AutoMigrate(context.Background()); err != nil {
		_ = pg.Close()
		return nil, err
	}

	bus := messaging.NewBus(logger)
	module := votingengine.NewModule(votingengine.Dependencies{
		Events:       repo,
		Ballots:      repo,
		Results:      repo,
		Outbox:       repo,
		Clock:        postgresadapter.SystemClock{},
		IDGen:        postgresadapter.UUIDGenerator{},
		TallyTimeout: cfg.TallyTimeout,
		Logger:       logger,
	})

	return &WorkerApp{
		postgres: pg,
		scheduler: workerapp.LifecycleScheduler{
			Events:    repo,
			Lifecycle: module.Lifecycle,
			Interval:  cfg.SchedulerInterval,
			Disabled:  !cfg.EnableLifecycleScheduler,
			Logger:    logger,
		},
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    repo,
			Publisher: bus,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		relayEnabled: cfg.EnableOutboxRelay,
		pollInterval: 2 * time.Second,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	go func() {
		if err := w.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("lifecycle scheduler stopped",
				"event", "bootstrap_scheduler_stopped",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"error", err.Error(),
			)
		}
	}()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if w.relayEnabled {
			if err := w.outboxRelay.RunOnce(ctx); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
