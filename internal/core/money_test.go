package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in       string
		currency string
		out      int64
		ok       bool
	}{
		{"1", "EUR", 100, true},
		{"1.0", "EUR", 100, true},
		{"1.23", "EUR", 123, true},
		{"1,23", "EUR", 123, true},
		{"0.01", "EUR", 1, true},
		{"1.005", "EUR", 101, true}, // half-up rounding
		{"12,345", "EUR", 1235, true},
		{" 2.50 ", "EUR", 250, true},
		{"100000", "JPY", 100000, true},
		{"1.6", "JPY", 2, true},
		{"-1", "EUR", 0, false},
		{"0", "EUR", 0, false},
		{"0.001", "EUR", 0, false},
		{"abc", "EUR", 0, false},
		{"1.2.3", "EUR", 0, false},
		{"", "EUR", 0, false},
		{"92233720368547758.07", "EUR", 9223372036854775807, true},
		{"92233720368547758.08", "EUR", 0, false},
		{"92233720368547758.075", "EUR", 0, false}, // rounds past the limit
		{"9223372036854775807", "JPY", 9223372036854775807, true},
		{"9223372036854775808", "JPY", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in, tc.currency)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q (%s) expected %d, got %d (err=%v)", tc.in, tc.currency, tc.out, got.Cents, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestFractionFallsBackForUnknownCurrency(t *testing.T) {
	if got := Fraction("EUR"); got != 2 {
		t.Fatalf("EUR fraction = %d", got)
	}
	if got := Fraction("JPY"); got != 0 {
		t.Fatalf("JPY fraction = %d", got)
	}
	if got := Fraction("???"); got != 2 {
		t.Fatalf("unknown fraction = %d", got)
	}
}

func TestMoneyFormat(t *testing.T) {
	if got := (Money{Cents: 1234}).Format("usd"); got != "$12.34" {
		t.Fatalf("unexpected format %q", got)
	}
}
