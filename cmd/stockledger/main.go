package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/stockledger/cmd/stockledger/cli"
	"github.com/odyssey-erp/stockledger/internal/app"
	"github.com/odyssey-erp/stockledger/internal/catalog"
	"github.com/odyssey-erp/stockledger/internal/companies"
	"github.com/odyssey-erp/stockledger/internal/ledger"
	"github.com/odyssey-erp/stockledger/internal/notify"
	"github.com/odyssey-erp/stockledger/internal/observability"
	"github.com/odyssey-erp/stockledger/internal/platform/cache"
	"github.com/odyssey-erp/stockledger/internal/platform/db"
	"github.com/odyssey-erp/stockledger/internal/reports"
	"github.com/odyssey-erp/stockledger/internal/shared"
	"github.com/odyssey-erp/stockledger/internal/users"
	"github.com/odyssey-erp/stockledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobsCommand(ctx, cfg, os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, stop, cfg, logger); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	if cfg.MigrateOnStart {
		migrator, err := db.NewMigrator(cfg.PGDSN, logger)
		if err != nil {
			return err
		}
		err = migrator.Up()
		_ = migrator.Close()
		if err != nil {
			return err
		}
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		// Reports fall back to direct computation without Redis.
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	inspector := asynq.NewInspector(redisOpt(cfg))
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	router := app.NewRouter(buildRouterParams(cfg, logger, dbpool, redisClient, inspector, metrics))

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildRouterParams(cfg *app.Config, logger *slog.Logger, pool *pgxpool.Pool, redisClient *redis.Client, inspector *asynq.Inspector, metrics *observability.Metrics) app.RouterParams {
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL, metrics)

	notifyService := notify.NewService(notify.NewRepository(pool), logger)
	companiesService := companies.NewService(companies.NewRepository(pool), auditLogger, logger)
	catalogService := catalog.NewService(catalog.NewRepository(pool), auditLogger, notifyService, reportCache, logger)
	ledgerService := ledger.NewService(ledger.NewRepository(pool), ledger.Deps{
		Audit:       auditLogger,
		Idempotency: idempotencyStore,
		Notifier:    notifyService,
		Cache:       reportCache,
		Metrics:     metrics,
		Logger:      logger,
	}, ledger.ServiceConfig{CheckStockOnApproval: cfg.LedgerCheckStockOnApproval})
	reportsService := reports.NewService(reports.NewRepository(pool), reportCache, reports.Config{
		Location:  cfg.ReportLocation(),
		Valuation: cfg.Valuation(),
	}, logger)
	usersService := users.NewService(users.NewRepository(pool), auditLogger, logger)

	return app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Metrics:          metrics,
		DB:               pool,
		CompaniesHandler: companies.NewHandler(logger, companiesService),
		CatalogHandler:   catalog.NewHandler(logger, catalogService),
		LedgerHandler:    ledger.NewHandler(logger, ledgerService),
		ReportsHandler:   reports.NewHandler(logger, reportsService),
		UsersHandler:     users.NewHandler(logger, usersService),
		NotifyHandler:    notify.NewHandler(notifyService),
		JobHandler:       jobs.NewHandler(inspector, logger),
	}
}

func runJobsCommand(ctx context.Context, cfg *app.Config, args []string) error {
	jobsCLI, err := cli.NewJobsCLI(redisOpt(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = jobsCLI.Close() }()
	return jobsCLI.Run(ctx, os.Stdout, args)
}

func redisOpt(cfg *app.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}
