package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTransferRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		request TransferRequest
		wantErr error
	}{
		{
			name:    "valid request",
			request: TransferRequest{FromIBAN: "NO1", ToIBAN: "NO2", Amount: d("100.00")},
			wantErr: nil,
		},
		{
			name:    "missing from iban",
			request: TransferRequest{ToIBAN: "NO2", Amount: d("100.00")},
			wantErr: ErrInvalidIBAN,
		},
		{
			name:    "missing to iban",
			request: TransferRequest{FromIBAN: "NO1", Amount: d("100.00")},
			wantErr: ErrInvalidIBAN,
		},
		{
			name:    "same source and destination",
			request: TransferRequest{FromIBAN: "NO1", ToIBAN: "no1", Amount: d("100.00")},
			wantErr: ErrSameAccount,
		},
		{
			name:    "below minimum",
			request: TransferRequest{FromIBAN: "NO1", ToIBAN: "NO2", Amount: d("1")},
			wantErr: ErrAmountBelowMinimum,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if err != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseTransactionFilter(t *testing.T) {
	accountID := uuid.New()

	tests := []struct {
		name     string
		account  string
		txType   string
		on       string
		before   string
		after    string
		wantErr  error
		wantMode DateFilterMode
	}{
		{name: "no filters", wantMode: DateFilterNone},
		{name: "exact day", on: "2026-10-19", wantMode: DateFilterOn},
		{name: "before", before: "2026-10-19", wantMode: DateFilterBefore},
		{name: "after", after: "2026-10-19", wantMode: DateFilterAfter},
		{name: "range", before: "2026-10-19", after: "2026-10-01", wantMode: DateFilterRange},
		{name: "account and type", account: accountID.String(), txType: "deposit", wantMode: DateFilterNone},
		{name: "on with before", on: "2026-10-19", before: "2026-10-20", wantErr: ErrInvalidDateFilter},
		{name: "on with after", on: "2026-10-19", after: "2026-10-01", wantErr: ErrInvalidDateFilter},
		{name: "on with after and type", txType: "send", on: "2026-10-19", after: "2026-10-01", wantErr: ErrInvalidDateFilter},
		{name: "malformed date", on: "19.10.2026", wantErr: ErrInvalidDate},
		{name: "malformed account", account: "not-a-uuid", wantErr: ErrInvalidAccountID},
		{name: "unknown type", txType: "refund", wantErr: ErrInvalidTransactionType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseTransactionFilter(tt.account, tt.txType, tt.on, tt.before, tt.after)
			if err != tt.wantErr {
				t.Fatalf("ParseTransactionFilter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && f.DateMode() != tt.wantMode {
				t.Errorf("DateMode() = %v, want %v", f.DateMode(), tt.wantMode)
			}
		})
	}
}

func TestTransactionFilter_Matches(t *testing.T) {
	accountID := uuid.New()
	at := func(day, hour int) TransactionRecord {
		return TransactionRecord{
			AccountID: accountID,
			Type:      TransactionTypeDeposit,
			CreatedAt: time.Date(2026, 10, day, hour, 0, 0, 0, time.UTC),
		}
	}
	mustFilter := func(on, before, after string) TransactionFilter {
		f, err := ParseTransactionFilter("", "", on, before, after)
		if err != nil {
			t.Fatalf("ParseTransactionFilter: %v", err)
		}
		return f
	}

	tests := []struct {
		name   string
		filter TransactionFilter
		rec    TransactionRecord
		want   bool
	}{
		{"on same day morning", mustFilter("2026-10-19", "", ""), at(19, 0), true},
		{"on same day evening", mustFilter("2026-10-19", "", ""), at(19, 23), true},
		{"on next day", mustFilter("2026-10-19", "", ""), at(20, 0), false},
		{"before excludes the day itself", mustFilter("", "2026-10-19", ""), at(19, 1), false},
		{"before includes previous day", mustFilter("", "2026-10-19", ""), at(18, 23), true},
		{"after excludes the day itself", mustFilter("", "", "2026-10-19"), at(19, 23), false},
		{"after includes next day", mustFilter("", "", "2026-10-19"), at(20, 0), true},
		{"range inside", mustFilter("", "2026-10-20", "2026-10-10"), at(15, 12), true},
		{"range outside", mustFilter("", "2026-10-20", "2026-10-10"), at(10, 12), false},
		{"type mismatch", TransactionFilter{Type: TransactionTypeSend}, at(19, 0), false},
		{"account mismatch", TransactionFilter{AccountID: ptr(uuid.New())}, at(19, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(tt.rec, time.UTC); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }
