package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/jing2uo/valuedb/calc"
	"github.com/jing2uo/valuedb/model"
	"github.com/jing2uo/valuedb/utils"
)

// Bundle 输出组合每日加总指标 (CSV)
func Bundle(ctx context.Context, dbURI, name, from, to string, w io.Writer) error {
	bundle, tickers, ok := calc.LookupBundle(name)
	if !ok {
		return fmt.Errorf("unknown bundle %q, available: %v", name, calc.BundleNames())
	}
	start, end, err := DateRange(from, to)
	if err != nil {
		return err
	}

	db, err := openDB(dbURI)
	if err != nil {
		return err
	}
	defer db.Close()

	var snaps []model.ValuationSnapshot
	for _, t := range tickers {
		rows, err := db.SnapshotsByTicker(ctx, t, start, end)
		if err != nil {
			return fmt.Errorf("failed to load snapshots for %s: %w", t, err)
		}
		snaps = append(snaps, rows...)
	}

	cw, err := utils.NewCSVStreamWriter[calc.BundleMetrics](w)
	if err != nil {
		return err
	}
	if err := cw.Write(calc.AggregateBundle(bundle, snaps)); err != nil {
		cw.Close()
		return err
	}
	return cw.Close()
}

// ListBundles 打印预置组合
func ListBundles(w io.Writer) {
	for _, name := range calc.BundleNames() {
		fmt.Fprintf(w, "%-20s %v\n", name, calc.PremadeBundles[name])
	}
}
