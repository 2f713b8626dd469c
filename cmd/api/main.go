package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/simonkvalheim/fjord-ledger/internal/app"
	"github.com/simonkvalheim/fjord-ledger/internal/auth"
	"github.com/simonkvalheim/fjord-ledger/internal/cdaccount"
	"github.com/simonkvalheim/fjord-ledger/internal/config"
	"github.com/simonkvalheim/fjord-ledger/internal/handler"
	"github.com/simonkvalheim/fjord-ledger/internal/loan"
	"github.com/simonkvalheim/fjord-ledger/internal/logger"
	appMiddleware "github.com/simonkvalheim/fjord-ledger/internal/middleware"
	"github.com/simonkvalheim/fjord-ledger/internal/processor"
	"github.com/simonkvalheim/fjord-ledger/internal/queue"
	"github.com/simonkvalheim/fjord-ledger/internal/scheduler"
)

func main() {
	log := logger.Must(os.Getenv("APP_ENV"))
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("api stopped", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	cfg, err := config.Load(log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core, err := app.NewCore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer core.Close()

	// Initialize auth service
	authService := auth.NewService(auth.DefaultConfig(cfg.JWTSecret), core.Store, core.Clock, log)
	if cfg.AdminEmail != "" {
		if _, err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("ensure admin: %w", err)
		}
	}

	transfers := processor.NewTransferProcessor(core.Store, core.Ledger, core.Recorder, core.Clock, log)
	cds := cdaccount.NewService(core.Store, core.Ledger, core.Recorder, core.Clock, log)
	loans := loan.NewService(core.Store, core.Accounts, core.Ledger, core.Recorder, core.Clock, log)

	// Job triggers go to the worker through Redis when it is configured,
	// otherwise they run inside the request
	var publisher handler.JobPublisher
	var runner queue.Runner
	redisClient, err := app.NewRedis(ctx, cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		publisher = queue.NewPublisher(redisClient)
		log.Info("connected to redis, job triggers are queued for the worker")
	} else {
		runner = scheduler.New(core.Jobs(cfg).All(), scheduler.Options{
			Clock:    core.Clock,
			Location: core.Location,
			Logger:   log,
		})
		log.Info("no REDIS_URL set, job triggers run in-process")
	}

	router := handler.NewRouter(handler.Handlers{
		Auth:         handler.NewAuthHandler(authService, !cfg.Development(), log),
		Accounts:     handler.NewAccountHandler(core.Accounts, log),
		Transactions: handler.NewTransactionHandler(core.Accounts, transfers, log),
		CDAccounts:   handler.NewCDAccountHandler(cds, log),
		Loans:        handler.NewLoanHandler(loans, log),
		Admin:        handler.NewAdminHandler(publisher, runner, log),
	}, appMiddleware.NewAuthMiddleware(authService), appMiddleware.DefaultCORSConfig(), core.HealthHandler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	metrics := metricsServer(cfg.MetricsAddr)

	errCh := make(chan error, 2)
	go func() {
		log.Info("server starting", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()
	if metrics != nil {
		go func() {
			if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server failed: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	log.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metrics != nil {
		metrics.Shutdown(shutdownCtx)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// metricsServer serves Prometheus metrics on addr. Empty addr disables it.
func metricsServer(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
}
