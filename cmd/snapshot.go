package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jing2uo/valuedb/calc"
	"github.com/jing2uo/valuedb/config"
	"github.com/jing2uo/valuedb/model"
	"github.com/jing2uo/valuedb/utils"
)

type SnapshotOptions struct {
	Ticker string
	Date   string
	// Store 为 true 时同时写入快照表
	Store bool
}

// Snapshot 计算单个代码的估值快照并以 JSON 输出
func Snapshot(ctx context.Context, cfg *config.Config, opts SnapshotOptions, w io.Writer) error {
	ticker, ok := utils.NormalizeTicker(opts.Ticker)
	if !ok {
		return fmt.Errorf("invalid ticker: %q", opts.Ticker)
	}
	date, err := parseDateOr(opts.Date, utils.Today())
	if err != nil {
		return err
	}
	calcOpts, err := CalcOptions(cfg)
	if err != nil {
		return err
	}

	db, err := openDB(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	c := calc.NewCalculator(db, calcOpts...)
	var snap *model.ValuationSnapshot
	if opts.Store {
		snap, err = c.ComputeAndStore(ctx, db, ticker, date)
	} else {
		snap, err = c.Snapshot(ctx, ticker, date)
	}
	if err != nil {
		return err
	}

	return writeJSON(w, snap)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
