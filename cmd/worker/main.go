package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/PettaPuang/nozzle.website-sub003/internal/app"
	jobmetrics "github.com/PettaPuang/nozzle.website-sub003/internal/jobs"
	"github.com/PettaPuang/nozzle.website-sub003/internal/ledger"
	platformcache "github.com/PettaPuang/nozzle.website-sub003/internal/platform/cache"
	platformdb "github.com/PettaPuang/nozzle.website-sub003/internal/platform/db"
	"github.com/PettaPuang/nozzle.website-sub003/internal/purchases"
	"github.com/PettaPuang/nozzle.website-sub003/internal/shared"
	"github.com/PettaPuang/nozzle.website-sub003/internal/shifts"
	"github.com/PettaPuang/nozzle.website-sub003/internal/stations"
	"github.com/PettaPuang/nozzle.website-sub003/internal/tanks"
	"github.com/PettaPuang/nozzle.website-sub003/internal/view"
	"github.com/PettaPuang/nozzle.website-sub003/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := platformdb.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := platformcache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)
	auditLogger := shared.NewAuditLogger(pool)
	poster := ledger.NewPoster()
	viewCache := view.NewCache(redisClient, logger, cfg.ViewCacheTTL)

	stationsRepo := stations.NewRepository(pool, poster)
	stationsService := stations.NewService(stationsRepo, nil, auditLogger)

	purchasesRepo := purchases.NewRepository(pool, poster)
	purchasesService := purchases.NewService(purchasesRepo, stationsService, auditLogger, viewCache)

	tanksRepo := tanks.NewRepository(pool, poster)
	tanksService := tanks.NewService(tanksRepo, stationsService, auditLogger, nil, viewCache)

	shiftsRepo := shifts.NewRepository(pool, poster)
	shiftsService := shifts.NewService(shiftsRepo, stationsService, auditLogger, nil, viewCache)

	viewService := view.NewService(viewCache, stationsService, tanksService, purchasesService, shiftsService)

	integrityJob := jobs.NewIntegrityScanJob(pool, logger, metrics)
	cleanupJob := jobs.NewIdempotencyCleanupJob(shared.NewIdempotencyStore(pool), logger, metrics)
	warmupJob := jobs.NewViewWarmupJob(stationsService, viewService, logger, metrics)

	integrityTask, err := jobs.NewIntegrityScanTask(7)
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(72)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewViewWarmupTask()
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLedgerIntegrityScan, Handler: integrityJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
			{Type: jobs.TaskViewWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 1 * * *", Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 2 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 4 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(2)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
