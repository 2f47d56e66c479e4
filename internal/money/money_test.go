package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Money
		wantErr bool
	}{
		{name: "plain amount", input: "12.34", want: 1234},
		{name: "no decimals", input: "100", want: 10000},
		{name: "one decimal", input: "0.5", want: 50},
		{name: "zero", input: "0", want: 0},
		{name: "negative", input: "-3.21", want: -321},
		{name: "too many decimals", input: "1.005", wantErr: true},
		{name: "not a number", input: "twelve", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("Parse(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		amount Money
		want   string
	}{
		{1234, "12.34"},
		{1230, "12.30"},
		{5, "0.05"},
		{0, "0.00"},
		{-321, "-3.21"},
	}

	for _, tt := range tests {
		if got := tt.amount.String(); got != tt.want {
			t.Errorf("Money(%d).String() = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func TestDivHalfUp(t *testing.T) {
	tests := []struct {
		name   string
		amount Money
		n      int64
		want   Money
	}{
		{name: "exact division", amount: 9000, n: 3, want: 3000},
		{name: "rounds down below half", amount: 10000, n: 3, want: 3333},
		{name: "rounds up above half", amount: 20000, n: 3, want: 6667},
		{name: "tie rounds up", amount: 101, n: 2, want: 51},
		{name: "single participant", amount: 777, n: 1, want: 777},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.amount.DivHalfUp(tt.n); got != tt.want {
				t.Errorf("Money(%d).DivHalfUp(%d) = %d, want %d", tt.amount, tt.n, got, tt.want)
			}
		})
	}
}

func TestFromDecimalHalfUp(t *testing.T) {
	tests := []struct {
		input string
		want  Money
	}{
		{"33.333", 3333},
		{"33.335", 3334},
		{"33.336", 3334},
		{"0.004", 0},
		{"0.005", 1},
	}

	for _, tt := range tests {
		d, err := decimal.NewFromString(tt.input)
		if err != nil {
			t.Fatalf("bad test input %q: %v", tt.input, err)
		}
		if got := FromDecimalHalfUp(d); got != tt.want {
			t.Errorf("FromDecimalHalfUp(%s) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestDecimalRoundTrip(t *testing.T) {
	for _, m := range []Money{0, 1, 99, 100, 12345, -250} {
		got, err := FromDecimal(m.Decimal())
		if err != nil {
			t.Fatalf("FromDecimal(%s) failed: %v", m.Decimal(), err)
		}
		if got != m {
			t.Errorf("round trip of %d gave %d", m, got)
		}
	}
}
