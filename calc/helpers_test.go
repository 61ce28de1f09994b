package calc

import (
	"math"
	"testing"
	"time"

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

func clockAt(s string) func() time.Time {
	t := mustDate(s)
	return func() time.Time { return t }
}

// flow 区间事实, start 为空表示起始日未知
func flow(ticker, concept, start, end string, fy int, fp string, value float64, filed string) model.FinancialFact {
	f := model.FinancialFact{
		Ticker:       ticker,
		Concept:      concept,
		Unit:         "USD",
		Value:        value,
		PeriodEnd:    mustDate(end),
		FiscalYear:   fy,
		FiscalPeriod: fp,
		Filed:        mustDate(filed),
		Accession:    ticker + "-" + end + "-" + filed,
	}
	if start != "" {
		f.PeriodStart = null.TimeFrom(mustDate(start))
	}
	return f
}

func point(ticker, end string, value float64, filed string) model.FinancialFact {
	return model.FinancialFact{
		Ticker:    ticker,
		Concept:   "",
		Unit:      "USD",
		Value:     value,
		PeriodEnd: mustDate(end),
		Instant:   true,
		Filed:     mustDate(filed),
		Accession: ticker + "-" + end + "-" + filed,
	}
}

func instantFact(ticker, concept, end string, value float64) model.FinancialFact {
	f := point(ticker, end, value, end)
	f.Concept = concept
	return f
}

// fourQuarters 2023-07-01 至 2024-06-30 的四个自然季度
func fourQuarters(ticker, concept string, values [4]float64) []model.FinancialFact {
	return []model.FinancialFact{
		flow(ticker, concept, "2023-07-01", "2023-09-30", 2023, "Q3", values[0], "2023-11-01"),
		flow(ticker, concept, "2023-10-01", "2023-12-31", 2023, "Q4", values[1], "2024-02-01"),
		flow(ticker, concept, "2024-01-01", "2024-03-31", 2024, "Q1", values[2], "2024-05-01"),
		flow(ticker, concept, "2024-04-01", "2024-06-30", 2024, "Q2", values[3], "2024-08-01"),
	}
}

func shareRec(ticker, date string, basic, diluted float64, source string) model.ShareRecord {
	r := model.ShareRecord{Ticker: ticker, Date: mustDate(date), Source: source, Lineage: source}
	if basic > 0 {
		r.SharesBasic = null.FloatFrom(basic)
	}
	if diluted > 0 {
		r.SharesDiluted = null.FloatFrom(diluted)
	}
	return r
}

func price(ticker, date string, close, adj float64) model.PricePoint {
	return model.PricePoint{Ticker: ticker, Date: mustDate(date), Close: close, AdjClose: adj, Volume: 1000}
}

func assertFloat(t *testing.T, name string, got null.Float, want float64) {
	t.Helper()
	if !got.Valid {
		t.Errorf("%s: got null, want %v", name, want)
		return
	}
	if math.Abs(got.Float64-want) > 1e-6*math.Max(1, math.Abs(want)) {
		t.Errorf("%s: got %v, want %v", name, got.Float64, want)
	}
}

func assertNull(t *testing.T, name string, got null.Float) {
	t.Helper()
	if got.Valid {
		t.Errorf("%s: got %v, want null", name, got.Float64)
	}
}

// xyzStore 2024-06-30 估值场景: 复权价 50, 稀释股本 20 亿, 净利润 TTM 40 亿, 权益 200 亿,
// 债务 50 亿, 现金 30 亿, 收入 TTM 400 亿
func xyzStore() *memory.MemoryDriver {
	db := memory.NewDriver()
	db.AddPrices(price("XYZ", "2024-06-28", 50, 50))
	db.AddShares(shareRec("XYZ", "2024-05-01", 1.9e9, 2e9, "10-Q"))
	addXYZFundamentals(db)
	return db
}

func addXYZFundamentals(db *memory.MemoryDriver) {
	db.AddFacts(fourQuarters("XYZ", "Revenues", [4]float64{10e9, 10e9, 10e9, 10e9})...)
	db.AddFacts(fourQuarters("XYZ", "NetIncomeLoss", [4]float64{1e9, 1e9, 1e9, 1e9})...)
	db.AddFacts(
		instantFact("XYZ", "StockholdersEquity", "2024-06-30", 20e9),
		instantFact("XYZ", "LongTermDebt", "2024-06-30", 5e9),
		instantFact("XYZ", "CashAndCashEquivalentsAtCarryingValue", "2024-06-30", 3e9),
	)
}
