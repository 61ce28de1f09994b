package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jing2uo/valuedb/calc"
	"github.com/jing2uo/valuedb/config"
	"github.com/jing2uo/valuedb/utils"
)

type BatchOptions struct {
	Tickers string
	Bundle  string
	// Date 非空时只算这一天, 否则算 [From, To] 内每个交易日
	Date string
	From string
	To   string
}

func Batch(ctx context.Context, cfg *config.Config, opts BatchOptions) error {
	req := calc.BatchRequest{}
	if opts.Date != "" {
		if opts.From != "" || opts.To != "" {
			return fmt.Errorf("--date cannot be combined with --from/--to")
		}
		d, err := utils.ParseDate(opts.Date)
		if err != nil {
			return err
		}
		req.Dates = []time.Time{d}
	} else {
		from, to, err := DateRange(opts.From, opts.To)
		if err != nil {
			return err
		}
		req.From, req.To = from, to
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

	if req.Tickers, err = resolveTickers(ctx, db, opts.Tickers, opts.Bundle); err != nil {
		return err
	}
	if len(req.Tickers) == 0 {
		fmt.Println("🌲 没有需要计算的代码")
		return nil
	}

	runner := calc.NewBatchRunner(db, db, cfg.Concurrency, calcOpts...)
	fmt.Printf("📟 开始批量计算 %d 个代码 (run %s, 并发 %d)\n", len(req.Tickers), runner.RunID(), cfg.Concurrency)

	res, err := runner.Run(ctx, req)
	if res != nil {
		for _, e := range res.Errors {
			fmt.Printf("⚠️ %v\n", e)
		}
		if res.NoPrice > 0 {
			fmt.Printf("🟡 %d 个 (代码, 日期) 没有行情, 已跳过\n", res.NoPrice)
		}
		fmt.Printf("🔢 完成 %d/%d 个代码, 写入 %d 条快照, 耗时 %s\n",
			res.Completed, res.Tickers, res.Snapshots, res.Duration.Round(time.Millisecond))
	}
	if err != nil {
		return err
	}
	if res.HasErrors() && res.Snapshots == 0 {
		return fmt.Errorf("all tickers failed, first: %w", res.Errors[0])
	}

	fmt.Println("🚀 批量计算完成")
	return nil
}
