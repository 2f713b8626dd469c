package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/simonkvalheim/fjord-ledger/internal/clock"
	"github.com/simonkvalheim/fjord-ledger/internal/events"
	"github.com/simonkvalheim/fjord-ledger/internal/model"
	"github.com/simonkvalheim/fjord-ledger/internal/observability"
	"github.com/simonkvalheim/fjord-ledger/internal/repository"
)

// Recorder writes immutable transaction records and answers queries on them
type Recorder struct {
	clock     clock.Clock
	loc       *time.Location
	publisher events.Publisher
	logger    *zap.Logger
}

// NewRecorder creates a Recorder. Day boundaries of date filters are
// evaluated in loc.
func NewRecorder(c clock.Clock, loc *time.Location, publisher events.Publisher, logger *zap.Logger) *Recorder {
	if loc == nil {
		loc = time.UTC
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Recorder{clock: c, loc: loc, publisher: publisher, logger: logger}
}

// Record stores rec. A zero ID, CorrelationID or CreatedAt is filled in, so
// a plain record gets a fresh correlation id and the current time while the
// legs of a transfer can share theirs.
func (r *Recorder) Record(ctx context.Context, q repository.Querier, rec model.TransactionRecord) (*model.TransactionRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CorrelationID == uuid.Nil {
		rec.CorrelationID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.clock.Now()
	}

	if err := q.CreateTransaction(ctx, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Query returns the records matching filter. An empty result is reported
// as ErrNoRecords.
func (r *Recorder) Query(ctx context.Context, q repository.Querier, filter model.TransactionFilter) ([]model.TransactionRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	records, err := q.QueryTransactions(ctx, filter, r.loc)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, model.ErrNoRecords
	}
	return records, nil
}

// Publish forwards committed records to the event publisher. Failures are
// logged only: the records are already durable.
func (r *Recorder) Publish(ctx context.Context, records ...model.TransactionRecord) {
	if len(records) == 0 {
		return
	}
	if err := r.publisher.Publish(ctx, records...); err != nil {
		observability.EventsPublishFailed.Add(float64(len(records)))
		r.logger.Warn("failed to publish transaction events",
			zap.Int("count", len(records)),
			zap.Error(err))
	}
}
