package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jing2uo/valuedb/config"
	"github.com/jing2uo/valuedb/workflow"
)

type CronOptions struct {
	ImportOptions
	Tickers      string
	Bundle       string
	Date         string
	OutputDir    string
	OutputFormat string
}

// Cron 每日任务: 导入新数据, 计算当日快照, 按需导出
func Cron(ctx context.Context, cfg *config.Config, opts CronOptions) error {
	date, err := parseDateOr(opts.Date, time.Time{})
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

	if err := ctx.Err(); err != nil {
		return err
	}

	args := &workflow.TaskArgs{
		Date:         date,
		Concurrency:  cfg.Concurrency,
		CalcOptions:  calcOpts,
		OutputDir:    opts.OutputDir,
		OutputFormat: opts.OutputFormat,
	}
	opts.apply(args)

	// 未指定代码时由 calc_snapshots 取库中全部代码
	if opts.Tickers != "" || opts.Bundle != "" {
		if args.Tickers, err = resolveTickers(ctx, db, opts.Tickers, opts.Bundle); err != nil {
			return err
		}
	}

	executor := workflow.NewTaskExecutor(db, workflow.GetRegisteredTasks())
	if err := executor.Run(ctx, workflow.GetCronTaskNames(), args); err != nil {
		return fmt.Errorf("workflow execution failed: %w", err)
	}

	fmt.Println("🚀 今日任务执行成功")
	return nil
}
