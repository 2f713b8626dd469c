package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/simonkvalheim/fjord-ledger/internal/scheduler"
)

// Runner runs a batch job by name
type Runner interface {
	RunJob(ctx context.Context, name string) (scheduler.Report, error)
}

// Worker consumes job requests from the queue and runs them
type Worker struct {
	client redis.UniversalClient
	runner Runner
	logger *zap.Logger
	stopCh chan struct{}
}

// NewWorker creates a new Worker
func NewWorker(client redis.UniversalClient, runner Runner, logger *zap.Logger) *Worker {
	return &Worker{
		client: client,
		runner: runner,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start consumes messages until ctx is cancelled or Stop is called
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("queue worker started", zap.String("queue", QueueName))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("queue worker stopping", zap.String("reason", "context cancelled"))
			return
		case <-w.stopCh:
			w.logger.Info("queue worker stopping", zap.String("reason", "stop signal"))
			return
		default:
			// Block for at most 5s so the stop signal is checked regularly
			result, err := w.client.BLPop(ctx, 5*time.Second, QueueName).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				w.logger.Error("failed to read from queue", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}

			// result[0] is the queue name, result[1] is the message
			if len(result) < 2 {
				continue
			}

			w.processMessage(ctx, result[1])
		}
	}
}

// Stop signals the worker to stop processing
func (w *Worker) Stop() {
	close(w.stopCh)
}

func (w *Worker) processMessage(ctx context.Context, data string) {
	var msg JobMessage
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		w.logger.Error("failed to unmarshal job message", zap.Error(err))
		return
	}

	logger := w.logger.With(
		zap.String("request_id", msg.RequestID.String()),
		zap.String("job", msg.Job),
		zap.String("requested_by", msg.RequestedBy.String()))
	logger.Info("running requested job")

	report, err := w.runner.RunJob(ctx, msg.Job)
	if err != nil {
		logger.Warn("requested job not run", zap.Error(err))
		return
	}

	logger.Info("requested job finished",
		zap.Int("processed", report.Processed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", len(report.Failures)))
}

// ProcessOne pops and runs a single message if one is waiting
func (w *Worker) ProcessOne(ctx context.Context) error {
	result, err := w.client.LPop(ctx, QueueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}

	w.processMessage(ctx, result)
	return nil
}
