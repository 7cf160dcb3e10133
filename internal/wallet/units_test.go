package wallet

import (
	"errors"
	"math/big"
	"testing"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount   string
		decimals int
		want     string
	}{
		{"1", 18, "1000000000000000000"},
		{"0.5", 18, "500000000000000000"},
		{"1.5", 9, "1500000000"},
		{"0.000000001", 9, "1"},
		{"2.123456789123456789", 18, "2123456789123456789"},
		// Sub-minor-unit remainder truncates
		{"0.0000000015", 9, "1"},
	}

	for _, tt := range tests {
		got, err := ToMinorUnits(tt.amount, tt.decimals)
		if err != nil {
			t.Errorf("ToMinorUnits(%s, %d) failed: %v", tt.amount, tt.decimals, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("ToMinorUnits(%s, %d) = %s, want %s", tt.amount, tt.decimals, got, tt.want)
		}
	}
}

func TestToMinorUnitsInvalid(t *testing.T) {
	for _, amount := range []string{"", "abc", "-1", "0", "0.0000000001"} {
		if _, err := ToMinorUnits(amount, 9); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Expected ErrInvalidAmount for %q, got %v", amount, err)
		}
	}
}

func TestFromMinorUnits(t *testing.T) {
	wei, _ := new(big.Int).SetString("1500000000000000000", 10)
	if got := FromMinorUnits(wei, 18); got != "1.5" {
		t.Errorf("FromMinorUnits = %s, want 1.5", got)
	}
	if got := FromMinorUnits(big.NewInt(0), 9); got != "0" {
		t.Errorf("FromMinorUnits = %s, want 0", got)
	}
}
