// Package app wires the components shared by the api and worker processes.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/simonkvalheim/fjord-ledger/internal/bootstrap"
	"github.com/simonkvalheim/fjord-ledger/internal/clock"
	"github.com/simonkvalheim/fjord-ledger/internal/config"
	"github.com/simonkvalheim/fjord-ledger/internal/events"
	"github.com/simonkvalheim/fjord-ledger/internal/ledger"
	"github.com/simonkvalheim/fjord-ledger/internal/repository"
	"github.com/simonkvalheim/fjord-ledger/internal/repository/postgres"
	"github.com/simonkvalheim/fjord-ledger/internal/scheduler"
)

// Core holds the storage and ledger components both processes need
type Core struct {
	Store     repository.Store
	Clock     clock.Clock
	Location  *time.Location
	Ledger    *ledger.Ledger
	Recorder  *ledger.Recorder
	Accounts  *ledger.Service
	Publisher events.Publisher

	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewCore opens the configured store, seeds reference data and builds the
// ledger. Close releases the store and the event publisher.
func NewCore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Core, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	c := &Core{
		Clock:    clock.System(loc),
		Location: loc,
		logger:   logger,
	}

	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using the in-memory store, data is lost on exit")
		c.Store = repository.NewMemoryStore()
	default:
		if cfg.MigrateOnStart {
			if err := postgres.RunMigrations(logger, cfg.DatabaseURL); err != nil {
				return nil, err
			}
		}
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to database")
		c.pool = pool
		c.Store = postgres.NewStore(pool)
	}

	if err := bootstrap.Initialize(ctx, c.Store, logger); err != nil {
		c.Close()
		return nil, fmt.Errorf("seed reference data: %w", err)
	}

	if brokers := cfg.Brokers(); len(brokers) > 0 {
		c.Publisher = events.NewKafkaPublisher(brokers, cfg.KafkaTransactionsTopic, logger)
		logger.Info("publishing transaction events",
			zap.Strings("brokers", brokers),
			zap.String("topic", cfg.KafkaTransactionsTopic))
	} else {
		c.Publisher = events.Nop{}
	}

	c.Ledger = ledger.New()
	c.Recorder = ledger.NewRecorder(c.Clock, loc, c.Publisher, logger)
	c.Accounts = ledger.NewService(c.Store, c.Ledger, c.Recorder, c.Clock, logger)
	return c, nil
}

// Jobs builds the batch jobs, paced by cfg.BatchRateLimit entities per second
func (c *Core) Jobs(cfg *config.Config) *scheduler.Jobs {
	var limiter *rate.Limiter
	if cfg.BatchRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.BatchRateLimit), 1)
	}
	return scheduler.NewJobs(c.Store, c.Ledger, c.Recorder, c.Clock, limiter, c.logger)
}

// Close releases the event publisher and the database pool
func (c *Core) Close() {
	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil {
			c.logger.Warn("failed to close event publisher", zap.Error(err))
		}
	}
	if c.pool != nil {
		c.pool.Close()
	}
}

// Ping checks database connectivity. The in-memory store is always up.
func (c *Core) Ping(ctx context.Context) error {
	if c.pool == nil {
		return nil
	}
	return c.pool.Ping(ctx)
}

// HealthHandler reports database connectivity
func (c *Core) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := c.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "database": "disconnected"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "database": "connected"})
	}
}

// NewRedis connects to cfg.RedisURL. It returns nil when no Redis is
// configured.
func NewRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}
