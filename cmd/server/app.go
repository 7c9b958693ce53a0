package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"change-risk/backend/internal/api"
	"change-risk/backend/internal/auth"
	"change-risk/backend/internal/config"
	"change-risk/backend/internal/engine"
	"change-risk/backend/internal/logging"
	"change-risk/backend/internal/mcp"
	"change-risk/backend/internal/repository"
	"change-risk/backend/internal/services"
)

// app owns the long-lived resources of a running server.
type app struct {
	Router *echo.Echo

	pool  *pgxpool.Pool
	redis *redis.Client
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

type referenceData struct {
	history  repository.HistoricalChangeLog
	calendar repository.ScheduledChangeCalendar
	windows  repository.MaintenanceWindowRegistry
	archive  repository.AssessmentArchive
}

func buildApp(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*app, error) {
	a := &app{}
	checks := map[string]api.Check{}

	ref, err := openReferenceData(ctx, cfg, logger, a)
	if err != nil {
		a.Close()
		return nil, err
	}
	if a.pool != nil {
		checks["database"] = a.pool.Ping
	}

	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ref.history = repository.NewCachedHistoricalChangeLog(ref.history, a.redis, cfg.Redis.TTL, logger)
		checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
		logger.Info("Historical change cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL)
	}

	evidence, err := evidenceSource(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	eng := engine.New(ref.history, ref.calendar, ref.windows, evidence,
		engine.WithLocation(cfg.Location()),
		engine.WithLogger(logger),
	)

	metrics := api.NewMetrics(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	svc, err := services.NewAssessmentService(eng, ref.archive, logger,
		services.WithIdleTimeout(cfg.Engine.SessionIdleTimeout),
		services.WithCompletionHook(metrics.ObserveCompletion),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create assessment service: %w", err)
	}
	logger.Info("Service layer initialized")

	authz, err := auth.New(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initialize auth: %w", err)
	}

	mcpServer := mcp.NewServer(svc, version)
	mcpMux := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpMux, mcpServer.GetMCPServer())

	a.Router = api.NewRouter(api.RouterOptions{
		Server:          api.NewServer(svc),
		Health:          api.NewHandler(version, checks),
		Metrics:         metrics,
		Logger:          logger,
		RequireAuth:     authz.RequireAuth,
		Login:           authz.LoginHandler,
		Callback:        authz.CallbackHandler,
		Logout:          authz.LogoutHandler,
		MCP:             mcpMux,
		OktaIssuer:      cfg.Auth.OktaDomain,
		SwaggerClientID: cfg.Auth.SwaggerClientID,
	})
	logger.Info("REST and MCP handlers mounted")
	return a, nil
}

// openReferenceData uses PostgreSQL when a database is configured and the
// YAML snapshot otherwise.
func openReferenceData(ctx context.Context, cfg *config.Config, logger *logging.Logger, a *app) (*referenceData, error) {
	dsn := cfg.DSN()
	if dsn == "" {
		snap, err := repository.LoadSnapshot(cfg.ReferenceData.File)
		if err != nil {
			return nil, fmt.Errorf("load reference data: %w", err)
		}
		logger.Warn("No database configured; using reference snapshot and in-memory archive",
			"file", cfg.ReferenceData.File)
		return &referenceData{
			history:  snap,
			calendar: snap,
			windows:  snap,
			archive:  repository.NewMemoryArchive(),
		}, nil
	}

	pool, err := initDatabase(ctx, dsn)
	if err != nil {
		return nil, err
	}
	a.pool = pool

	m, err := repository.NewMigrator(dsn)
	if err != nil {
		return nil, err
	}
	if err := m.Up(ctx); err != nil {
		return nil, err
	}
	logger.Info("Database connected", "host", cfg.DB.Host, "name", cfg.DB.Name)

	store := repository.NewPostgresStore(pool)
	return &referenceData{history: store, calendar: store, windows: store, archive: store}, nil
}

func evidenceSource(cfg *config.Config, logger *logging.Logger) (engine.TestEvidenceSource, error) {
	switch cfg.Engine.EvidenceMode {
	case config.EvidenceStatic:
		return engine.StaticEvidence{Passed: cfg.Engine.EvidencePass, Link: cfg.Engine.EvidenceLink}, nil
	case config.EvidenceSimulated:
		return engine.NewSimulatedEvidence(cfg.Engine.Seed, cfg.Engine.EvidenceLink), nil
	case config.EvidencePortal:
		return services.NewHTTPEvidenceClient(cfg.Engine.PortalURL, cfg.Engine.PortalTimeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown evidence mode %q", cfg.Engine.EvidenceMode)
	}
}

func initDatabase(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}
