package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFitsStorageScale(t *testing.T) {
	tests := []struct {
		amount string
		want   bool
	}{
		{"100", true},
		{"100.25", true},
		{"10.500", true},
		{"1.005", false},
		{"0.001", false},
	}

	for _, tt := range tests {
		if got := FitsStorageScale(decimal.RequireFromString(tt.amount)); got != tt.want {
			t.Errorf("FitsStorageScale(%s) = %v, want %v", tt.amount, got, tt.want)
		}
	}
}

func TestRoundHalfUp(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"214.585", "214.59"},
		{"214.584999", "214.58"},
		{"0.005", "0.01"},
		{"10", "10.00"},
	}

	for _, tt := range tests {
		got := Format(Round(decimal.RequireFromString(tt.in)))
		if got != tt.want {
			t.Errorf("Round(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestPercent(t *testing.T) {
	got := Percent(decimal.RequireFromString("5.25"))
	if !got.Equal(decimal.RequireFromString("0.0525")) {
		t.Errorf("Percent(5.25) = %s, want 0.0525", got)
	}
}

func TestDivKeepsIntermediateScale(t *testing.T) {
	got := Div(decimal.NewFromInt(1), decimal.NewFromInt(3))
	if got.Exponent() != -Scale {
		t.Errorf("Div(1, 3) exponent = %d, want %d", got.Exponent(), -Scale)
	}
}
