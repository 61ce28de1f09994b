package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/guregu/null/v6"
	"github.com/jing2uo/valuedb/database/memory"
	"github.com/jing2uo/valuedb/model"
)

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func snap(ticker, date string, mcap, ni float64) model.ValuationSnapshot {
	return model.ValuationSnapshot{
		Ticker:       ticker,
		Date:         mustDate(date),
		Price:        100,
		PriceDate:    mustDate(date),
		MarketCap:    null.FloatFrom(mcap),
		PERatio:      null.FloatFrom(mcap / ni),
		NetIncomeTTM: null.FloatFrom(ni),
		Flags:        model.Flags{},
	}
}

func testServer(t *testing.T) (*gin.Engine, *memory.MemoryDriver) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := memory.NewDriver()
	err := db.UpsertSnapshots(context.Background(), []model.ValuationSnapshot{
		snap("AAPL", "2024-06-28", 3000, 100),
		snap("AAPL", "2024-06-27", 2900, 100),
		snap("MSFT", "2024-06-28", 3200, 80),
		snap("NVDA", "2024-06-28", 3100, 50),
	})
	if err != nil {
		t.Fatal(err)
	}
	db.AddPrices(
		model.PricePoint{Ticker: "AAPL", Date: mustDate("2024-06-03"), Close: 100, AdjClose: 100},
		model.PricePoint{Ticker: "AAPL", Date: mustDate("2024-06-28"), Close: 110, AdjClose: 110},
	)

	r := NewRouter(db)
	SetupRoutes(r.Group("/v1"), db).now = func() time.Time { return mustDate("2024-07-01") }
	return r, db
}

func get(t *testing.T, r http.Handler, path string, out any) int {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return w.Code
}

type snapshotList struct {
	Snapshots []struct {
		Ticker  string   `json:"ticker"`
		PERatio *float64 `json:"pe_ratio"`
	} `json:"snapshots"`
}

func TestHealthz(t *testing.T) {
	r, _ := testServer(t)
	var body map[string]string
	if code := get(t, r, "/healthz", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestSnapshotsByTicker(t *testing.T) {
	r, _ := testServer(t)

	testCases := []struct {
		name  string
		path  string
		code  int
		count int
	}{
		{"explicit range", "/snapshots/aapl?from=2024-06-01&to=2024-06-30", http.StatusOK, 2},
		{"single day", "/snapshots/AAPL?from=2024-06-28&to=2024-06-28", http.StatusOK, 1},
		{"compact dates", "/snapshots/AAPL?from=20240601&to=20240627", http.StatusOK, 1},
		{"unknown ticker", "/snapshots/ZZZZ?from=2024-06-01&to=2024-06-30", http.StatusOK, 0},
		{"bad date", "/snapshots/AAPL?from=yesterday", http.StatusBadRequest, 0},
		{"reversed range", "/snapshots/AAPL?from=2024-07-01&to=2024-06-01", http.StatusBadRequest, 0},
		{"invalid ticker", "/snapshots/A$PL", http.StatusBadRequest, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var body snapshotList
			code := get(t, r, tc.path, &body)
			if code != tc.code {
				t.Fatalf("status = %d, want %d", code, tc.code)
			}
			if code == http.StatusOK && len(body.Snapshots) != tc.count {
				t.Errorf("got %d snapshots, want %d", len(body.Snapshots), tc.count)
			}
		})
	}
}

func TestSnapshotsByTickerDefaultRange(t *testing.T) {
	r, _ := testServer(t)
	var body snapshotList
	if code := get(t, r, "/v1/snapshots/AAPL", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	// 默认区间 [2023-07-01, 2024-07-01]
	if len(body.Snapshots) != 2 {
		t.Errorf("got %d snapshots, want 2", len(body.Snapshots))
	}
}

func TestSnapshotsByDate(t *testing.T) {
	r, _ := testServer(t)

	var body snapshotList
	if code := get(t, r, "/snapshots?date=2024-06-28", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	var tickers []string
	for _, s := range body.Snapshots {
		tickers = append(tickers, s.Ticker)
	}
	if diff := cmp.Diff([]string{"AAPL", "MSFT", "NVDA"}, tickers); diff != "" {
		t.Errorf("tickers mismatch (-want +got):\n%s", diff)
	}
	if body.Snapshots[0].PERatio == nil || *body.Snapshots[0].PERatio != 30 {
		t.Errorf("AAPL pe = %v, want 30", body.Snapshots[0].PERatio)
	}

	if code := get(t, r, "/snapshots", nil); code != http.StatusBadRequest {
		t.Errorf("missing date: status = %d", code)
	}
}

func TestBundles(t *testing.T) {
	r, _ := testServer(t)

	var list struct {
		Bundles []struct {
			Name    string   `json:"name"`
			Tickers []string `json:"tickers"`
		} `json:"bundles"`
	}
	if code := get(t, r, "/bundles", &list); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(list.Bundles) == 0 || list.Bundles[0].Name != "Big Tech" {
		t.Errorf("bundles = %+v", list.Bundles)
	}

	var series struct {
		Bundle string `json:"bundle"`
		Series []struct {
			CompanyCount int      `json:"company_count"`
			AggregatePE  *float64 `json:"aggregate_pe"`
		} `json:"series"`
	}
	code := get(t, r, "/bundles/big-tech?from=2024-06-28&to=2024-06-28", &series)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if series.Bundle != "Big Tech" || len(series.Series) != 1 {
		t.Fatalf("series = %+v", series)
	}
	// (3000 + 3200) / (100 + 80), NVDA 不在 Big Tech 中
	if got := series.Series[0]; got.CompanyCount != 2 || got.AggregatePE == nil || *got.AggregatePE != 6200.0/180 {
		t.Errorf("aggregate = %+v", got)
	}

	if code := get(t, r, "/bundles/unknown", nil); code != http.StatusNotFound {
		t.Errorf("unknown bundle: status = %d", code)
	}
}

func TestReturns(t *testing.T) {
	r, _ := testServer(t)

	var body struct {
		PriceReturn float64 `json:"price_return"`
		SplitFactor float64 `json:"split_factor"`
	}
	code := get(t, r, "/returns/AAPL?from=2024-06-01&to=2024-06-30", &body)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if d := body.PriceReturn - 0.1; d > 1e-9 || d < -1e-9 {
		t.Errorf("price return = %v, want 0.1", body.PriceReturn)
	}
	if body.SplitFactor != 1 {
		t.Errorf("split factor = %v", body.SplitFactor)
	}

	if code := get(t, r, "/returns/MSFT?from=2024-06-01&to=2024-06-30", nil); code != http.StatusNotFound {
		t.Errorf("no prices: status = %d", code)
	}
}
