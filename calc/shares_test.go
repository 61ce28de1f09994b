package calc

import (
	"context"
	"errors"
	"testing"

	"github.com/jing2uo/valuedb/database/memory"
)

func TestSharesResolver(t *testing.T) {
	db := memory.NewDriver()
	db.AddShares(
		shareRec("XYZ", "2022-01-01", 4.8e9, 5e9, "10-K"),
		shareRec("XYZ", "2024-05-01", 2.05e9, 2.1e9, "yahoo"),
		shareRec("XYZ", "2024-05-01", 1.9e9, 2e9, "10-Q"),
		// 晚于今天, 忽略
		shareRec("XYZ", "2024-12-01", 1e9, 1e9, "10-K"),
	)
	r := NewSharesResolver(db, WithClock(clockAt("2024-07-15")))
	ctx := context.Background()

	testCases := []struct {
		name      string
		asOf      string
		wantStale bool
	}{
		{"current date", "2024-06-30", false},
		{"historical date uses latest record", "2020-01-02", false},
		{"record old relative to asOf", "2024-09-01", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Resolve(ctx, "XYZ", mustDate(tc.asOf))
			if err != nil {
				t.Fatal(err)
			}
			if !got.Record.Date.Equal(mustDate("2024-05-01")) {
				t.Errorf("record date = %s, want 2024-05-01", got.Record.Date.Format("2006-01-02"))
			}
			assertFloat(t, "diluted", got.Diluted, 2e9)
			if got.Record.Source != "10-Q" {
				t.Errorf("source = %q, filing should win over feed", got.Record.Source)
			}
			if got.Stale != tc.wantStale {
				t.Errorf("stale = %v, want %v (age %d)", got.Stale, tc.wantStale, got.AgeDays)
			}
		})
	}
}

func TestSharesResolverStaleThreshold(t *testing.T) {
	db := memory.NewDriver()
	db.AddShares(shareRec("XYZ", "2024-05-01", 0, 2e9, "10-Q"))

	r := NewSharesResolver(db, WithClock(clockAt("2024-07-15")), WithStaleAfter(30))
	got, err := r.Resolve(context.Background(), "XYZ", mustDate("2024-06-30"))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Stale || got.AgeDays != 60 {
		t.Errorf("stale = %v age = %d, want true 60", got.Stale, got.AgeDays)
	}
	if !errors.Is(got.Warning(), ErrStaleShareData) {
		t.Errorf("warning = %v, want ErrStaleShareData", got.Warning())
	}

	fresh := NewSharesResolver(db, WithClock(clockAt("2024-07-15")))
	got, err = fresh.Resolve(context.Background(), "XYZ", mustDate("2024-07-15"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Warning() != nil {
		t.Errorf("warning = %v, want nil within default threshold", got.Warning())
	}
}

func TestSharesResolverLineageTieBreak(t *testing.T) {
	db := memory.NewDriver()
	b := shareRec("XYZ", "2024-05-01", 0, 3e9, "yahoo")
	b.Lineage = "b"
	a := shareRec("XYZ", "2024-05-01", 0, 2e9, "yahoo")
	a.Lineage = "a"
	db.AddShares(b, a)

	got, err := NewSharesResolver(db, WithClock(clockAt("2024-07-15"))).Resolve(context.Background(), "XYZ", mustDate("2024-06-30"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Record.Lineage != "a" {
		t.Errorf("lineage = %q, want a", got.Record.Lineage)
	}
}

func TestSharesResolverNoRecords(t *testing.T) {
	r := NewSharesResolver(memory.NewDriver())

	_, err := r.Resolve(context.Background(), "NONE", mustDate("2024-06-30"))
	var nse *NoShareDataError
	if !errors.As(err, &nse) || nse.Ticker != "NONE" {
		t.Fatalf("err = %v, want *NoShareDataError for NONE", err)
	}
	if !errors.Is(err, ErrNoShareData) {
		t.Errorf("expected errors.Is ErrNoShareData")
	}
}

func TestResolvedSharesCount(t *testing.T) {
	testCases := []struct {
		name         string
		basic        float64
		diluted      float64
		basis        ShareBasis
		want         float64
		wantFellBack bool
		wantOK       bool
	}{
		{"diluted preferred", 1.9e9, 2e9, BasisDiluted, 2e9, false, true},
		{"basic fallback", 1.9e9, 0, BasisDiluted, 1.9e9, true, true},
		{"basic requested", 1.9e9, 2e9, BasisBasic, 1.9e9, false, true},
		{"basic requested but missing", 0, 2e9, BasisBasic, 0, false, false},
		{"nothing", 0, 0, BasisDiluted, 0, false, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := shareRec("XYZ", "2024-05-01", tc.basic, tc.diluted, "10-Q")
			rs := &ResolvedShares{Basic: rec.SharesBasic, Diluted: rec.SharesDiluted, Record: rec}
			got, fellBack, ok := rs.Count(tc.basis)
			if got != tc.want || fellBack != tc.wantFellBack || ok != tc.wantOK {
				t.Errorf("Count = (%v, %v, %v), want (%v, %v, %v)", got, fellBack, ok, tc.want, tc.wantFellBack, tc.wantOK)
			}
		})
	}
}

func TestParseShareBasis(t *testing.T) {
	for in, want := range map[string]ShareBasis{"": BasisDiluted, "Diluted": BasisDiluted, " basic ": BasisBasic} {
		got, err := ParseShareBasis(in)
		if err != nil || got != want {
			t.Errorf("ParseShareBasis(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseShareBasis("weighted"); err == nil {
		t.Error("expected error for unknown basis")
	}
}
