package ledger

import (
	"testing"
)

func TestValidIBAN(t *testing.T) {
	tests := []struct {
		name string
		iban string
		want bool
	}{
		{name: "norwegian", iban: "NO9386011117947", want: true},
		{name: "with spaces", iban: "NO93 8601 1117 947", want: true},
		{name: "lowercase", iban: "no9386011117947", want: true},
		{name: "german", iban: "DE89370400440532013000", want: true},
		{name: "wrong check digits", iban: "NO9486011117947", want: false},
		{name: "non numeric", iban: "NO93860111179X!", want: false},
		{name: "too short", iban: "NO9", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidIBAN(tt.iban); got != tt.want {
				t.Errorf("ValidIBAN(%q) = %v, want %v", tt.iban, got, tt.want)
			}
		})
	}
}

func TestIBANChecksum(t *testing.T) {
	if got := ibanChecksum("NO", "86011117947"); got != "93" {
		t.Errorf("ibanChecksum() = %s, want 93", got)
	}
	if got := mod11("8601111794"); got != 7 {
		t.Errorf("mod11() = %d, want 7", got)
	}
}

func TestGenerateIBAN(t *testing.T) {
	for range 100 {
		iban := generateIBAN()
		if len(iban) != 15 {
			t.Fatalf("generateIBAN() = %s, want 15 characters", iban)
		}
		if !ValidIBAN(iban) {
			t.Fatalf("generateIBAN() = %s has invalid check digits", iban)
		}
	}
}
