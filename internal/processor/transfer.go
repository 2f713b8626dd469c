// Package processor moves money between accounts.
package processor

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/simonkvalheim/fjord-ledger/internal/clock"
	"github.com/simonkvalheim/fjord-ledger/internal/ledger"
	"github.com/simonkvalheim/fjord-ledger/internal/model"
	"github.com/simonkvalheim/fjord-ledger/internal/observability"
	"github.com/simonkvalheim/fjord-ledger/internal/repository"
)

// TransferProcessor handles transfers between two standard accounts
type TransferProcessor struct {
	store    repository.Store
	ledger   *ledger.Ledger
	recorder *ledger.Recorder
	clock    clock.Clock
	logger   *zap.Logger
}

// NewTransferProcessor creates a new TransferProcessor
func NewTransferProcessor(store repository.Store, l *ledger.Ledger, recorder *ledger.Recorder, c clock.Clock, logger *zap.Logger) *TransferProcessor {
	return &TransferProcessor{
		store:    store,
		ledger:   l,
		recorder: recorder,
		clock:    c,
		logger:   logger,
	}
}

// TransferResult contains both legs of a completed transfer
type TransferResult struct {
	CorrelationID uuid.UUID               `json:"correlation_id"`
	SenderIBAN    string                  `json:"sender_iban"`
	ReceiverIBAN  string                  `json:"receiver_iban"`
	Amount        decimal.Decimal         `json:"amount"`
	Fee           decimal.Decimal         `json:"fee"`
	Sent          model.TransactionRecord `json:"sent"`
	Received      model.TransactionRecord `json:"received"`
	CreatedAt     time.Time               `json:"created_at"`
}

// Transfer withdraws req.Amount plus the sender's transaction fee from the
// sender and deposits req.Amount into the receiver. Both balance changes and
// both records commit together or not at all.
func (p *TransferProcessor) Transfer(ctx context.Context, principal model.Principal, req model.TransferRequest) (*TransferResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result, err := repository.Get(ctx, p.store, func(ctx context.Context, q repository.Querier) (*TransferResult, error) {
		from, err := ledger.ResolveOwned(ctx, q, principal, req.FromIBAN)
		if err != nil {
			return nil, err
		}
		to, err := q.GetAccountByIBAN(ctx, ledger.NormalizeIBAN(req.ToIBAN))
		if err != nil {
			return nil, err
		}
		if from.ID == to.ID {
			return nil, model.ErrSameAccount
		}

		// Lock both rows in id order so opposite transfers cannot deadlock
		for _, id := range lockOrder(from.ID, to.ID) {
			if _, err := q.LockAccount(ctx, id); err != nil {
				return nil, err
			}
		}

		from, fee, err := p.ledger.Withdraw(ctx, q, from.ID, req.Amount)
		if err != nil {
			return nil, err
		}
		if to, err = p.ledger.Deposit(ctx, q, to.ID, req.Amount); err != nil {
			return nil, err
		}

		legs := buildTransferLegs(uuid.New(), from.ID, to.ID, req.Amount, req.Reason, p.clock.Now())
		for i := range legs {
			rec, err := p.recorder.Record(ctx, q, legs[i])
			if err != nil {
				return nil, err
			}
			legs[i] = *rec
		}

		return &TransferResult{
			CorrelationID: legs[0].CorrelationID,
			SenderIBAN:    from.IBAN,
			ReceiverIBAN:  to.IBAN,
			Amount:        req.Amount,
			Fee:           fee,
			Sent:          legs[0],
			Received:      legs[1],
			CreatedAt:     legs[0].CreatedAt,
		}, nil
	})
	observability.ObserveOperation("transfer", err)
	if err != nil {
		return nil, err
	}

	p.logger.Info("transfer completed",
		zap.String("correlation_id", result.CorrelationID.String()),
		zap.String("amount", result.Amount.StringFixed(2)))
	p.recorder.Publish(ctx, result.Sent, result.Received)
	return result, nil
}

// lockOrder returns the two ids in ascending byte order
func lockOrder(a, b uuid.UUID) []uuid.UUID {
	if bytes.Compare(a[:], b[:]) > 0 {
		return []uuid.UUID{b, a}
	}
	return []uuid.UUID{a, b}
}

// buildTransferLegs creates the send and received records of one transfer.
// They share a correlation id and a timestamp.
func buildTransferLegs(correlationID, fromAccountID, toAccountID uuid.UUID, amount decimal.Decimal, reason string, at time.Time) []model.TransactionRecord {
	return []model.TransactionRecord{
		{
			ID:            uuid.New(),
			CorrelationID: correlationID,
			Amount:        amount,
			Reason:        reason,
			Type:          model.TransactionTypeSend,
			AccountID:     fromAccountID,
			CreatedAt:     at,
		},
		{
			ID:            uuid.New(),
			CorrelationID: correlationID,
			Amount:        amount,
			Reason:        reason,
			Type:          model.TransactionTypeReceived,
			AccountID:     toAccountID,
			CreatedAt:     at,
		},
	}
}
