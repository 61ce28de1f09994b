package cmd

import (
	"context"
	"fmt"

	"github.com/jing2uo/valuedb/calc"
	"github.com/jing2uo/valuedb/model"
	"github.com/jing2uo/valuedb/utils"
)

type ExportOptions struct {
	Output string
	Format string
	// Date 非空时导出当日全部快照, 否则按代码与区间导出
	Date    string
	Tickers string
	Bundle  string
	From    string
	To      string
}

// Export 将快照表导出为 csv/parquet/xlsx
func Export(ctx context.Context, dbURI string, opts ExportOptions) error {
	if opts.Output == "" {
		return fmt.Errorf("--output is required")
	}
	format, err := calc.ExportFormat(opts.Output, opts.Format)
	if err != nil {
		return err
	}

	db, err := openDB(dbURI)
	if err != nil {
		return err
	}
	defer db.Close()

	var snaps []model.ValuationSnapshot
	if opts.Date != "" {
		d, err := utils.ParseDate(opts.Date)
		if err != nil {
			return err
		}
		if snaps, err = db.SnapshotsByDate(ctx, d); err != nil {
			return fmt.Errorf("failed to load snapshots: %w", err)
		}
	} else {
		from, to, err := DateRange(opts.From, opts.To)
		if err != nil {
			return err
		}
		tickers, err := resolveTickers(ctx, db, opts.Tickers, opts.Bundle)
		if err != nil {
			return err
		}
		for _, t := range tickers {
			rows, err := db.SnapshotsByTicker(ctx, t, from, to)
			if err != nil {
				return fmt.Errorf("failed to load snapshots for %s: %w", t, err)
			}
			snaps = append(snaps, rows...)
		}
	}

	if len(snaps) == 0 {
		fmt.Println("🌲 没有可导出的快照")
		return nil
	}

	n, err := calc.ExportSnapshots(snaps, opts.Output, format)
	if err != nil {
		return fmt.Errorf("failed to export snapshots: %w", err)
	}
	fmt.Printf("📦 已导出 %d 条快照到 %s\n", n, opts.Output)
	return nil
}
