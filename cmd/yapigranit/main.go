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

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dgknshn20/yapigraniterp/internal/app"
	"github.com/dgknshn20/yapigraniterp/internal/crm"
	"github.com/dgknshn20/yapigraniterp/internal/finance"
	"github.com/dgknshn20/yapigraniterp/internal/inventory"
	"github.com/dgknshn20/yapigraniterp/internal/platform/db"
	"github.com/dgknshn20/yapigraniterp/internal/production"
	"github.com/dgknshn20/yapigraniterp/jobs"
)

func main() {
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("asynq client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()

	crmRepo := crm.NewRepository(pool)
	crmService := crm.NewService(crmRepo, cfg.ReservationWindow, logger)
	proposalHandler := crm.NewHandler(crmService, jobsClient, logger)

	productionRepo := production.NewRepository(pool)
	productionService := production.NewService(productionRepo, logger)
	contractHandler := production.NewHandler(productionService)

	financeRepo := finance.NewRepository(pool)
	financeService := finance.NewService(financeRepo, logger)
	planHandler := finance.NewHandler(financeService)

	inventoryRepo := inventory.NewRepository(pool)
	sweeper := inventory.NewSweeper(inventoryRepo, logger)
	inventoryHandler := inventory.NewHandler(sweeper)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		ProposalHandler:  proposalHandler,
		ContractHandler:  contractHandler,
		PlanHandler:      planHandler,
		InventoryHandler: inventoryHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
