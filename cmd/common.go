package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jing2uo/valuedb/calc"
	"github.com/jing2uo/valuedb/config"
	"github.com/jing2uo/valuedb/database"
	"github.com/jing2uo/valuedb/utils"
)

// openDB 创建驱动, 连接并建表
func openDB(uri string) (database.DataRepository, error) {
	db, err := database.NewDB(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}
	if err := db.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.InitSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// CalcOptions 将配置转换为估值参数
func CalcOptions(cfg *config.Config) ([]calc.Option, error) {
	basis, err := calc.ParseShareBasis(cfg.ShareBasis)
	if err != nil {
		return nil, err
	}
	return []calc.Option{
		calc.WithStaleAfter(cfg.StaleShareDays),
		calc.WithShareBasis(basis),
		calc.WithDefaultTaxRate(cfg.DefaultTaxRate),
	}, nil
}

// resolveTickers 优先使用 --tickers, 其次 --bundle, 都为空时取库中全部代码
func resolveTickers(ctx context.Context, db database.DataRepository, list, bundle string) ([]string, error) {
	if list != "" && bundle != "" {
		return nil, fmt.Errorf("--tickers and --bundle are mutually exclusive")
	}
	if list != "" {
		return utils.SplitTickers(list)
	}
	if bundle != "" {
		_, tickers, ok := calc.LookupBundle(bundle)
		if !ok {
			return nil, fmt.Errorf("unknown bundle %q, available: %v", bundle, calc.BundleNames())
		}
		return tickers, nil
	}
	tickers, err := db.GetAllTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickers: %w", err)
	}
	return tickers, nil
}

// parseDateOr 空字符串返回 def
func parseDateOr(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}
	return utils.ParseDate(s)
}

// DateRange from/to 为空时默认 [to-1y, today]
func DateRange(from, to string) (time.Time, time.Time, error) {
	end, err := parseDateOr(to, utils.Today())
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err := parseDateOr(from, end.AddDate(-1, 0, 0))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("from %s is after to %s",
			start.Format(utils.DateLayout), end.Format(utils.DateLayout))
	}
	return start, end, nil
}
