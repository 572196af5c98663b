package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/PettaPuang/nozzle.website-sub003/internal/app"
	"github.com/PettaPuang/nozzle.website-sub003/internal/audit"
	"github.com/PettaPuang/nozzle.website-sub003/internal/auth"
	"github.com/PettaPuang/nozzle.website-sub003/internal/ledger"
	"github.com/PettaPuang/nozzle.website-sub003/internal/observability"
	platformcache "github.com/PettaPuang/nozzle.website-sub003/internal/platform/cache"
	platformdb "github.com/PettaPuang/nozzle.website-sub003/internal/platform/db"
	"github.com/PettaPuang/nozzle.website-sub003/internal/purchases"
	"github.com/PettaPuang/nozzle.website-sub003/internal/shared"
	"github.com/PettaPuang/nozzle.website-sub003/internal/shifts"
	"github.com/PettaPuang/nozzle.website-sub003/internal/stations"
	"github.com/PettaPuang/nozzle.website-sub003/internal/tanks"
	"github.com/PettaPuang/nozzle.website-sub003/internal/uploads"
	"github.com/PettaPuang/nozzle.website-sub003/internal/users"
	"github.com/PettaPuang/nozzle.website-sub003/internal/view"
)

// levelsAdapter bridges the stations service to the stock and LO services,
// which are constructed after it.
type levelsAdapter struct {
	tanks     *tanks.Service
	purchases *purchases.Service
}

func (a *levelsAdapter) StationStock(ctx context.Context, gasStationID, productID uuid.UUID) (int64, error) {
	return a.tanks.StationStock(ctx, gasStationID, productID)
}

func (a *levelsAdapter) RemainingLO(ctx context.Context, gasStationID, productID uuid.UUID) (int64, error) {
	return a.purchases.RemainingLO(ctx, gasStationID, productID)
}

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

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	auditLogger := shared.NewAuditLogger(pool)
	approvalRecorder := shared.NewApprovalRecorder(pool, logger)
	metrics := observability.NewMetrics()

	poster := ledger.NewPoster()
	poster.OnPosted(metrics.JournalPosted)
	viewCache := view.NewCache(redisClient, logger, cfg.ViewCacheTTL)

	ledgerRepo := ledger.NewRepository(pool, poster)
	ledgerService := ledger.NewService(ledgerRepo, auditLogger)

	stationsRepo := stations.NewRepository(pool, poster)
	levels := &levelsAdapter{}
	stationsService := stations.NewService(stationsRepo, levels, auditLogger)

	purchasesRepo := purchases.NewRepository(pool, poster)
	purchasesService := purchases.NewService(purchasesRepo, stationsService, auditLogger, viewCache)

	tanksRepo := tanks.NewRepository(pool, poster)
	tanksService := tanks.NewService(tanksRepo, stationsService, auditLogger, approvalRecorder, viewCache)

	levels.tanks = tanksService
	levels.purchases = purchasesService

	shiftsRepo := shifts.NewRepository(pool, poster)
	shiftsService := shifts.NewService(shiftsRepo, stationsService, auditLogger, approvalRecorder, viewCache)
	shiftsService.OnSequenceBlocked(metrics.SequenceBlocked)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, auditLogger)
	authService := auth.NewService(usersRepo)

	viewService := view.NewService(viewCache, stationsService, tanksService, purchasesService, shiftsService)
	uploadsService := uploads.NewService(cfg.UploadDir, cfg.UploadBaseURL)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		AuthHandler:      auth.NewHandler(logger, authService),
		UsersHandler:     users.NewHandler(logger, usersService),
		StationsHandler:  stations.NewHandler(logger, stationsService),
		PurchasesHandler: purchases.NewHandler(logger, purchasesService),
		TanksHandler:     tanks.NewHandler(logger, tanksService),
		ShiftsHandler:    shifts.NewHandler(logger, shiftsService, shared.NewIdempotencyStore(pool)),
		LedgerHandler:    ledger.NewHandler(logger, ledgerService),
		ViewHandler:      view.NewHandler(logger, viewService),
		UploadsHandler:   uploads.NewHandler(logger, uploadsService),
		AuditHandler:     audit.NewHandler(logger, audit.NewRepository(pool)),
		UploadsDir:       cfg.UploadDir,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
