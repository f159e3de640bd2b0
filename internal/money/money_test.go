package money

import (
	"encoding/json"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/mmynk/splitledger/internal/apperr"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in  string
		out Money
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half away from zero
		{"1.004", 100, true},
		{" 2.50 ", 250, true},
		{"30.00", 3000, true},
		{"1000000.00", 100000000, true},
		{"1000000.01", 0, false},
		{"-1", 0, false},
		{"0", 0, false},
		{"0.004", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in, 0)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
			continue
		}
		if err == nil {
			t.Fatalf("%q expected error, got %d", tc.in, got)
		}
		if !errors.Is(err, apperr.ErrInvalidAmount) {
			t.Fatalf("%q expected InvalidAmount, got %v", tc.in, err)
		}
	}
}

func TestParseRespectsConfiguredMax(t *testing.T) {
	if _, err := Parse("50.01", MustParse("50")); err == nil {
		t.Error("expected amount above max to fail")
	}
	if got, err := Parse("50", MustParse("50")); err != nil || got != 5000 {
		t.Errorf("Parse(50) = %d, %v", got, err)
	}
}

func TestSplitEvenly(t *testing.T) {
	tests := []struct {
		name   string
		amount Money
		n      int
		want   []Money
	}{
		{"ten three ways", 1000, 3, []Money{334, 333, 333}},
		{"thirty three ways", 3000, 3, []Money{1000, 1000, 1000}},
		{"one cent two ways", 1, 2, []Money{1, 0}},
		{"remainder two", 1001, 3, []Money{334, 334, 333}},
		{"single share", 777, 1, []Money{777}},
		{"negative", -1000, 3, []Money{-334, -333, -333}},
		{"zero", 0, 4, []Money{0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.amount.SplitEvenly(tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("share[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}

	if got := Money(100).SplitEvenly(0); got != nil {
		t.Errorf("SplitEvenly(0) = %v, want nil", got)
	}
}

func TestSplitEvenlySumsExactly(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 2000; i++ {
		amount := Money(r.Int64N(10_000_000) - 5_000_000)
		n := 1 + r.IntN(25)
		shares := amount.SplitEvenly(n)
		if len(shares) != n {
			t.Fatalf("SplitEvenly(%s, %d) returned %d shares", amount, n, len(shares))
		}
		if got := Sum(shares...); got != amount {
			t.Fatalf("SplitEvenly(%s, %d) sums to %s", amount, n, got)
		}
		// shares differ by at most one minor unit
		lo, hi := shares[0], shares[0]
		for _, s := range shares {
			lo, hi = min(lo, s), max(hi, s)
		}
		if hi-lo > 1 {
			t.Fatalf("SplitEvenly(%s, %d) uneven: %v", amount, n, shares)
		}
	}
}

func TestAllocate(t *testing.T) {
	got := Money(1000).Allocate([]int64{1, 2, 0, 1})
	want := []Money{250, 500, 0, 250}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Allocate = %v, want %v", got, want)
		}
	}

	got = Money(100).Allocate([]int64{1, 1, 1})
	if Sum(got...) != 100 || got[0] != 34 {
		t.Errorf("Allocate(100, 1:1:1) = %v", got)
	}

	if Money(100).Allocate([]int64{0, -1}) != nil {
		t.Error("expected nil for non-positive weights")
	}
}

func TestString(t *testing.T) {
	tests := map[Money]string{
		0:     "0.00",
		1:     "0.01",
		334:   "3.34",
		-1000: "-10.00",
		2000:  "20.00",
	}
	for m, want := range tests {
		if got := m.String(); got != want {
			t.Errorf("Money(%d).String() = %q, want %q", int64(m), got, want)
		}
	}
}

func TestArithmetic(t *testing.T) {
	a, b := MustParse("20.00"), MustParse("10.00")
	if a.Add(b) != 3000 || a.Sub(b) != 1000 || b.Sub(a) != -1000 {
		t.Error("Add/Sub mismatch")
	}
	if a.Neg() != -2000 || a.Neg().Abs() != a {
		t.Error("Neg/Abs mismatch")
	}
	if a.Cmp(b) != 1 || b.Cmp(a) != -1 || a.Cmp(a) != 0 {
		t.Error("Cmp mismatch")
	}
	if !Zero.IsZero() || a.IsZero() || Zero.Sign() != 0 || a.Neg().Sign() != -1 {
		t.Error("IsZero/Sign mismatch")
	}
}

func TestJSON(t *testing.T) {
	type doc struct {
		Balance Money `json:"balance"`
	}
	data, err := json.Marshal(doc{Balance: -1000})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"balance":"-10.00"}` {
		t.Errorf("Marshal = %s", data)
	}

	var d doc
	if err := json.Unmarshal([]byte(`{"balance":"3.34"}`), &d); err != nil || d.Balance != 334 {
		t.Errorf("Unmarshal string = %d, %v", d.Balance, err)
	}
	if err := json.Unmarshal([]byte(`{"balance":-12.5}`), &d); err != nil || d.Balance != -1250 {
		t.Errorf("Unmarshal number = %d, %v", d.Balance, err)
	}
	if err := json.Unmarshal([]byte(`{"balance":"twelve"}`), &d); err == nil {
		t.Error("expected error for non-numeric value")
	}
}
