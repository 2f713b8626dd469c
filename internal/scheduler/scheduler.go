// Package scheduler runs the recurring batch sweeps over accounts and loans:
// CD maturity, monthly fees, loan installments and loan payoff.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/simonkvalheim/fjord-ledger/internal/clock"
	"github.com/simonkvalheim/fjord-ledger/internal/model"
	"github.com/simonkvalheim/fjord-ledger/internal/observability"
)

// Schedule holds the cron expression of every job
type Schedule struct {
	CDMaturity      string
	MonthlyFee      string
	LoanInstallment string
	LoanPayoff      string
}

// DefaultSchedule runs installments before payoff each morning
var DefaultSchedule = Schedule{
	CDMaturity:      "@daily",
	MonthlyFee:      "@monthly",
	LoanInstallment: "0 8 * * *",
	LoanPayoff:      "0 9 * * *",
}

func (s Schedule) spec(job string) string {
	switch job {
	case JobCDMaturity:
		return s.CDMaturity
	case JobMonthlyFee:
		return s.MonthlyFee
	case JobLoanInstallment:
		return s.LoanInstallment
	case JobLoanPayoff:
		return s.LoanPayoff
	}
	return ""
}

// Options configures a Scheduler
type Options struct {
	Clock    clock.Clock
	Location *time.Location
	Schedule Schedule
	// Locker is optional; without one runs are only guarded in-process
	Locker Locker
	Logger *zap.Logger
}

// Scheduler triggers jobs on their calendar schedule and guarantees that a
// job never overlaps a still-running instance of itself
type Scheduler struct {
	jobs     map[string]Job
	running  map[string]*sync.Mutex
	clock    clock.Clock
	location *time.Location
	schedule Schedule
	locker   Locker
	logger   *zap.Logger

	cron *cron.Cron
}

// New creates a Scheduler for the given jobs
func New(jobs []Job, opts Options) *Scheduler {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	c := opts.Clock
	if c == nil {
		c = clock.System(loc)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scheduler{
		jobs:     make(map[string]Job, len(jobs)),
		running:  make(map[string]*sync.Mutex, len(jobs)),
		clock:    c,
		location: loc,
		schedule: opts.Schedule,
		locker:   opts.Locker,
		logger:   logger,
	}
	for _, j := range jobs {
		s.jobs[j.Name()] = j
		s.running[j.Name()] = &sync.Mutex{}
	}
	return s
}

// RunJob runs a job for today's date
func (s *Scheduler) RunJob(ctx context.Context, name string) (Report, error) {
	return s.RunJobOn(ctx, name, clock.Today(s.clock))
}

// RunJobOn runs a job as if today were the given day. It fails with
// ErrJobAlreadyRunning when another run of the same job holds the guard.
func (s *Scheduler) RunJobOn(ctx context.Context, name string, today time.Time) (Report, error) {
	job, ok := s.jobs[name]
	if !ok {
		return Report{}, fmt.Errorf("%w: %s", model.ErrUnknownJob, name)
	}

	mu := s.running[name]
	if !mu.TryLock() {
		observability.BatchRuns.WithLabelValues(name, "skipped").Inc()
		return Report{}, model.ErrJobAlreadyRunning
	}
	defer mu.Unlock()

	if s.locker != nil {
		release, acquired, err := s.locker.Acquire(ctx, name)
		if err != nil {
			observability.BatchRuns.WithLabelValues(name, "failed").Inc()
			return Report{}, err
		}
		if !acquired {
			observability.BatchRuns.WithLabelValues(name, "skipped").Inc()
			return Report{}, model.ErrJobAlreadyRunning
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to release job lock", zap.String("job", name), zap.Error(err))
			}
		}()
	}

	s.logger.Info("job started", zap.String("job", name), zap.Time("day", today))
	report := job.Run(ctx, today)

	outcome := runOutcome(report)
	observability.BatchRuns.WithLabelValues(name, outcome).Inc()
	observability.BatchDuration.WithLabelValues(name).Observe(report.Duration.Seconds())

	s.logger.Info("job finished",
		zap.String("job", name),
		zap.String("outcome", outcome),
		zap.Int("selected", report.Selected),
		zap.Int("processed", report.Processed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", len(report.Failures)),
		zap.Duration("duration", report.Duration))
	return report, nil
}

func runOutcome(r Report) string {
	switch {
	case r.OK():
		return "ok"
	case r.Processed > 0 || r.Skipped > 0:
		return "partial"
	default:
		return "failed"
	}
}

// RunAll runs every job once in catch-up order
func (s *Scheduler) RunAll(ctx context.Context) []Report {
	reports := make([]Report, 0, len(JobNames))
	for _, name := range JobNames {
		if _, ok := s.jobs[name]; !ok {
			continue
		}
		report, err := s.RunJob(ctx, name)
		if err != nil {
			s.logger.Warn("job not run", zap.String("job", name), zap.Error(err))
			continue
		}
		reports = append(reports, report)
	}
	return reports
}

// Start registers every job with cron and starts the triggers. Runs use ctx
// as their parent context.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.location))
	for _, name := range JobNames {
		if _, ok := s.jobs[name]; !ok {
			continue
		}
		spec := s.schedule.spec(name)
		if spec == "" {
			s.logger.Info("job has no schedule", zap.String("job", name))
			continue
		}

		if _, err := c.AddFunc(spec, func() {
			if _, err := s.RunJob(ctx, name); err != nil {
				s.logger.Warn("scheduled run skipped", zap.String("job", name), zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
		}
		s.logger.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	}

	s.cron = c
	c.Start()
	return nil
}

// Stop stops the triggers and waits for running jobs to finish
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}
