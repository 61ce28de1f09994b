package utils

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeTicker(t *testing.T) {
	testCases := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"aapl", "AAPL", true},
		{" msft ", "MSFT", true},
		{"NASDAQ:nvda", "NVDA", true},
		{"AAPL.US", "AAPL", true},
		{"brk.b", "BRK-B", true},
		{"BRK/A", "BRK-A", true},
		{"", "", false},
		{"NYSE:", "", false},
		{"A$PL", "A$PL", false},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			got, ok := NormalizeTicker(tc.raw)
			if got != tc.want || ok != tc.wantOK {
				t.Errorf("NormalizeTicker(%q) = %q, %v; want %q, %v", tc.raw, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestSplitTickers(t *testing.T) {
	got, err := SplitTickers("aapl, MSFT,,aapl ,brk.b")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"AAPL", "MSFT", "BRK-B"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	if _, err := SplitTickers("AAPL,M$FT"); err == nil {
		t.Error("expected error for invalid ticker")
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"2024-06-30", "20240630", " 2024-06-30 "} {
		got, err := ParseDate(s)
		if err != nil {
			t.Errorf("ParseDate(%q): %v", s, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %s", s, got)
		}
	}
	if _, err := ParseDate("06/30/2024"); err == nil {
		t.Error("expected error")
	}
}

func TestTruncateDay(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	in := time.Date(2024, 6, 30, 22, 15, 0, 0, loc)
	want := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	if got := TruncateDay(in); !got.Equal(want) {
		t.Errorf("TruncateDay = %s, want %s", got, want)
	}
}
