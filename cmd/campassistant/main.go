package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/campassistant/campassistant/internal/accounts"
	"github.com/campassistant/campassistant/internal/app"
	"github.com/campassistant/campassistant/internal/attendance"
	"github.com/campassistant/campassistant/internal/authz"
	"github.com/campassistant/campassistant/internal/observability"
	"github.com/campassistant/campassistant/internal/packinglist"
	"github.com/campassistant/campassistant/internal/platform/db"
	"github.com/campassistant/campassistant/internal/roles"
	"github.com/campassistant/campassistant/internal/shared"
	"github.com/campassistant/campassistant/internal/supervision"
	"github.com/campassistant/campassistant/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(pool); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)

	rolesRepo := roles.NewRepository(pool)
	registry, err := roles.LoadRegistry(ctx, rolesRepo, logger)
	if err != nil {
		logger.Error("load role registry", slog.Any("error", err))
		os.Exit(1)
	}

	accountsRepo := accounts.NewRepository(pool)
	accountService := accounts.NewService(accountsRepo, registry, auditLogger)

	supervisionRepo := supervision.NewRepository(pool)
	supervisionService := supervision.NewService(supervisionRepo, accountsRepo, auditLogger, logger)

	gate := authz.NewGate(accountService, supervisionService, logger)
	guard := authz.Middleware{Logger: logger}

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	reportCache := attendance.NewReportCache(redisClient, cfg.ReportCacheTTL)
	attendanceRepo := attendance.NewRepository(pool)
	attendanceService := attendance.NewService(attendanceRepo, accountsRepo, reportCache, jobClient, logger)

	packingRepo := packinglist.NewRepository(pool)
	packingService := packinglist.NewService(packingRepo, accountsRepo, logger)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Accounts:           accountService,
		RolesHandler:       roles.NewHandler(logger, registry),
		AccountsHandler:    accounts.NewHandler(logger, accountService, guard),
		SupervisionHandler: supervision.NewHandler(logger, supervisionService, accountService, guard),
		AttendanceHandler:  attendance.NewHandler(logger, attendanceService, gate, guard),
		PackingListHandler: packinglist.NewHandler(logger, packingService, gate, guard),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
