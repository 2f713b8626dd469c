package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/simonkvalheim/fjord-ledger/internal/app"
	"github.com/simonkvalheim/fjord-ledger/internal/config"
	"github.com/simonkvalheim/fjord-ledger/internal/logger"
	"github.com/simonkvalheim/fjord-ledger/internal/queue"
	"github.com/simonkvalheim/fjord-ledger/internal/scheduler"
)

func main() {
	once := flag.Bool("once", false, "run every batch job once for today and exit")
	flag.Parse()

	log := logger.Must(os.Getenv("APP_ENV"))
	defer log.Sync()

	if err := run(log, *once); err != nil {
		log.Fatal("worker stopped", zap.Error(err))
	}
}

func run(log *zap.Logger, once bool) error {
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

	redisClient, err := app.NewRedis(ctx, cfg)
	if err != nil {
		return err
	}

	opts := scheduler.Options{
		Clock:    core.Clock,
		Location: core.Location,
		Schedule: cfg.Schedule(),
		Logger:   log,
	}
	if redisClient != nil {
		defer redisClient.Close()
		// Several workers may run; the lock keeps each job to one at a time
		opts.Locker = scheduler.NewRedisLocker(redisClient, cfg.JobLockTTL)
	}
	sched := scheduler.New(core.Jobs(cfg).All(), opts)

	if once {
		for _, report := range sched.RunAll(ctx) {
			if !report.OK() {
				return fmt.Errorf("%s: %d of %d entities failed", report.Job, len(report.Failures), report.Selected)
			}
		}
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)

	if err := sched.Start(ctx); err != nil {
		return err
	}
	g.Go(func() error {
		<-ctx.Done()
		sched.Stop()
		return nil
	})

	if redisClient != nil {
		worker := queue.NewWorker(redisClient, sched, log)
		g.Go(func() error {
			worker.Start(ctx)
			return nil
		})
	} else {
		log.Info("no REDIS_URL set, manual job triggers are not consumed")
	}

	if cfg.WorkerMetricsAddr != "" {
		metrics := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metrics.Shutdown(shutdownCtx)
		})
	}

	log.Info("worker started", zap.Strings("jobs", scheduler.JobNames))
	err = g.Wait()
	log.Info("worker stopped")
	return err
}
