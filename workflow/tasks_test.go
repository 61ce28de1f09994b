package workflow

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/jing2uo/valuedb/calc"
	"github.com/jing2uo/valuedb/database/memory"
	"github.com/jing2uo/valuedb/model"
	"github.com/jing2uo/valuedb/utils"
)

func date(s string) time.Time {
	t, err := utils.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func writeCSV[T any](t *testing.T, dir, name string, rows []T) string {
	t.Helper()
	path := filepath.Join(dir, name)
	w, err := utils.NewCSVWriter[T](path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write(rows); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func quarter(concept, start, end, fp string, value float64) model.FinancialFact {
	return model.FinancialFact{
		Ticker:       "XYZ",
		Concept:      concept,
		Unit:         "USD",
		Value:        value,
		PeriodStart:  null.TimeFrom(date(start)),
		PeriodEnd:    date(end),
		FiscalPeriod: fp,
		Form:         "10-Q",
		Filed:        date(end).AddDate(0, 1, 0),
		Accession:    "acc-" + concept + "-" + end,
	}
}

func TestCronWorkflow(t *testing.T) {
	dir := t.TempDir()

	args := &TaskArgs{
		PricesCSV: writeCSV(t, dir, "prices.csv", []model.PricePoint{
			{Ticker: "XYZ", Date: date("2024-06-28"), Close: 50, AdjClose: 50, Volume: 100},
		}),
		SharesCSV: writeCSV(t, dir, "shares.csv", []model.ShareRecord{
			{Ticker: "XYZ", Date: date("2024-05-01"), SharesDiluted: null.FloatFrom(2e9), Source: "10-Q"},
		}),
		FactsCSV: writeCSV(t, dir, "facts.csv", []model.FinancialFact{
			quarter("NetIncomeLoss", "2023-07-01", "2023-09-30", "Q3", 1e9),
			quarter("NetIncomeLoss", "2023-10-01", "2023-12-31", "Q4", 1e9),
			quarter("NetIncomeLoss", "2024-01-01", "2024-03-31", "Q1", 1e9),
			quarter("NetIncomeLoss", "2024-04-01", "2024-06-30", "Q2", 1e9),
		}),
		Date:         date("2024-06-30"),
		Concurrency:  2,
		CalcOptions:  []calc.Option{calc.WithClock(func() time.Time { return date("2024-07-15") })},
		OutputDir:    filepath.Join(dir, "out"),
		OutputFormat: "csv",
	}

	db := memory.NewDriver()
	te := NewTaskExecutor(db, GetRegisteredTasks())
	if err := te.Run(context.Background(), GetCronTaskNames(), args); err != nil {
		t.Fatal(err)
	}

	if got := te.Result("import_actions").State; got != StateSkipped {
		t.Errorf("import_actions state = %s, want skipped without csv", got)
	}
	if r := te.Result("calc_snapshots"); r.State != StateCompleted || r.Rows != 1 {
		t.Fatalf("calc_snapshots = %+v", r)
	}

	exported, err := utils.ReadCSV[model.ValuationSnapshot](filepath.Join(dir, "out", "snapshots_20240630.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(exported) != 1 {
		t.Fatalf("exported %d rows", len(exported))
	}
	s := exported[0]
	if !s.PERatio.Valid || s.PERatio.Float64 != 25 {
		t.Errorf("pe = %v, want 25", s.PERatio)
	}
	if !s.Flags.Has(model.InsufficientFlag("revenue_ttm")) {
		t.Errorf("flags = %s", s.Flags)
	}
}

func TestCronWorkflowMissingFile(t *testing.T) {
	args := &TaskArgs{PricesCSV: filepath.Join(t.TempDir(), "missing.csv")}
	err := NewTaskExecutor(memory.NewDriver(), GetRegisteredTasks()).Run(context.Background(), GetImportTaskNames(), args)
	if err == nil {
		t.Error("expected error for missing prices file")
	}
}
