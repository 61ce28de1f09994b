package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jing2uo/valuedb/cmd"
	"github.com/jing2uo/valuedb/config"
	"github.com/spf13/cobra"
)

const dbInfo = "数据库地址: DuckDB 文件路径, duckdb://, postgres://, clickhouse:// 或 memory://"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg *config.Config

	var rootCmd = &cobra.Command{
		Use:           "valuedb",
		Short:         "Point-in-time valuation snapshots from prices, shares and filings",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(config.New(), c.Flags()); err != nil {
				return err
			}
			return config.SetupLogger(cfg, os.Stderr)
		},
	}

	rootCmd.PersistentFlags().String("db", "", dbInfo)
	rootCmd.PersistentFlags().String("log-level", "info", "日志级别: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "console", "日志格式: console, json")

	// needDB 包装需要数据库的命令
	needDB := func(run func(c *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(c *cobra.Command, args []string) error {
			if err := cfg.RequireDB(); err != nil {
				return err
			}
			return run(c, args)
		}
	}

	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create tables",
		RunE: needDB(func(c *cobra.Command, args []string) error {
			return cmd.Init(cfg.DB)
		}),
	}

	var importOpts cmd.ImportOptions
	var importCmd = &cobra.Command{
		Use:   "import",
		Short: "Import prices, corporate actions, shares and facts from CSV",
		RunE: needDB(func(c *cobra.Command, args []string) error {
			return cmd.Import(ctx, cfg.DB, importOpts)
		}),
	}
	bindImportFlags(importCmd, &importOpts)

	var snapOpts cmd.SnapshotOptions
	var snapshotCmd = &cobra.Command{
		Use:   "snapshot TICKER",
		Short: "Compute one valuation snapshot and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: needDB(func(c *cobra.Command, args []string) error {
			snapOpts.Ticker = args[0]
			return cmd.Snapshot(ctx, cfg, snapOpts, os.Stdout)
		}),
	}
	snapshotCmd.Flags().StringVar(&snapOpts.Date, "date", "", "估值日期 YYYY-MM-DD, 默认今天")
	snapshotCmd.Flags().BoolVar(&snapOpts.Store, "store", false, "同时写入快照表")

	var batchOpts cmd.BatchOptions
	var batchCmd = &cobra.Command{
		Use:   "batch",
		Short: "Compute snapshots for many tickers and dates",
		RunE: needDB(func(c *cobra.Command, args []string) error {
			return cmd.Batch(ctx, cfg, batchOpts)
		}),
	}
	batchCmd.Flags().StringVar(&batchOpts.Tickers, "tickers", "", "逗号分隔的代码, 默认库中全部")
	batchCmd.Flags().StringVar(&batchOpts.Bundle, "bundle", "", "预置组合名称")
	batchCmd.Flags().StringVar(&batchOpts.Date, "date", "", "只计算这一天")
	batchCmd.Flags().StringVar(&batchOpts.From, "from", "", "起始日期, 默认 to 前一年")
	batchCmd.Flags().StringVar(&batchOpts.To, "to", "", "结束日期, 默认今天")
	batchCmd.Flags().Int("concurrency", 0, "并发数, 默认 CPU 核数")
	batchCmd.Flags().Int("stale-share-days", 100, "股本记录超过该天数标记 stale_shares")
	batchCmd.Flags().String("share-basis", "diluted", "股本口径: diluted, basic")
	batchCmd.Flags().Float64("default-tax-rate", 0.21, "有效税率不可用时的默认值")

	var cronOpts cmd.CronOptions
	var cronCmd = &cobra.Command{
		Use:   "cron",
		Short: "Import new data, compute today's snapshots and export them",
		RunE: needDB(func(c *cobra.Command, args []string) error {
			return cmd.Cron(ctx, cfg, cronOpts)
		}),
	}
	bindImportFlags(cronCmd, &cronOpts.ImportOptions)
	cronCmd.Flags().StringVar(&cronOpts.Tickers, "tickers", "", "逗号分隔的代码, 默认库中全部")
	cronCmd.Flags().StringVar(&cronOpts.Bundle, "bundle", "", "预置组合名称")
	cronCmd.Flags().StringVar(&cronOpts.Date, "date", "", "估值日期, 默认今天")
	cronCmd.Flags().StringVar(&cronOpts.OutputDir, "output", "", "快照导出目录, 为空时不导出")
	cronCmd.Flags().StringVar(&cronOpts.OutputFormat, "format", "csv", "导出格式: csv, parquet, xlsx")
	cronCmd.Flags().Int("concurrency", 0, "并发数, 默认 CPU 核数")

	var exportOpts cmd.ExportOptions
	var exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Export stored snapshots to csv, parquet or xlsx",
		RunE: needDB(func(c *cobra.Command, args []string) error {
			return cmd.Export(ctx, cfg.DB, exportOpts)
		}),
	}
	exportCmd.Flags().StringVar(&exportOpts.Output, "output", "", "输出文件 (必填)")
	exportCmd.Flags().StringVar(&exportOpts.Format, "format", "", "csv, parquet, xlsx, 默认按扩展名")
	exportCmd.Flags().StringVar(&exportOpts.Date, "date", "", "导出当日全部快照")
	exportCmd.Flags().StringVar(&exportOpts.Tickers, "tickers", "", "逗号分隔的代码")
	exportCmd.Flags().StringVar(&exportOpts.Bundle, "bundle", "", "预置组合名称")
	exportCmd.Flags().StringVar(&exportOpts.From, "from", "", "起始日期")
	exportCmd.Flags().StringVar(&exportOpts.To, "to", "", "结束日期")
	exportCmd.MarkFlagRequired("output")

	var bundleFrom, bundleTo string
	var bundleCmd = &cobra.Command{
		Use:   "bundle [NAME]",
		Short: "Print aggregate bundle metrics as CSV, or list bundles",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if len(args) == 0 {
				cmd.ListBundles(os.Stdout)
				return nil
			}
			if err := cfg.RequireDB(); err != nil {
				return err
			}
			return cmd.Bundle(ctx, cfg.DB, args[0], bundleFrom, bundleTo, os.Stdout)
		},
	}
	bundleCmd.Flags().StringVar(&bundleFrom, "from", "", "起始日期")
	bundleCmd.Flags().StringVar(&bundleTo, "to", "", "结束日期")

	var retFrom, retTo string
	var returnsCmd = &cobra.Command{
		Use:   "returns TICKER",
		Short: "Split-adjusted price return and total return over a range",
		Args:  cobra.ExactArgs(1),
		RunE: needDB(func(c *cobra.Command, args []string) error {
			return cmd.Returns(ctx, cfg.DB, args[0], retFrom, retTo, os.Stdout)
		}),
	}
	returnsCmd.Flags().StringVar(&retFrom, "from", "", "起始日期")
	returnsCmd.Flags().StringVar(&retTo, "to", "", "结束日期")

	var serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve stored snapshots over HTTP",
		RunE: needDB(func(c *cobra.Command, args []string) error {
			return cmd.Serve(ctx, cfg)
		}),
	}
	serveCmd.Flags().String("listen", ":8080", "监听地址")

	for _, c := range []*cobra.Command{snapshotCmd, cronCmd} {
		c.Flags().Int("stale-share-days", 100, "股本记录超过该天数标记 stale_shares")
		c.Flags().String("share-basis", "diluted", "股本口径: diluted, basic")
		c.Flags().Float64("default-tax-rate", 0.21, "有效税率不可用时的默认值")
	}

	rootCmd.AddCommand(initCmd, importCmd, snapshotCmd, batchCmd, cronCmd,
		exportCmd, bundleCmd, returnsCmd, serveCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "🛑 错误: %v\n", err)
		os.Exit(1)
	}
}

func bindImportFlags(c *cobra.Command, o *cmd.ImportOptions) {
	c.Flags().StringVar(&o.Prices, "prices", "", "行情 CSV")
	c.Flags().StringVar(&o.Splits, "splits", "", "拆股 CSV")
	c.Flags().StringVar(&o.Dividends, "dividends", "", "分红 CSV")
	c.Flags().StringVar(&o.Shares, "shares", "", "股本 CSV")
	c.Flags().StringVar(&o.Facts, "facts", "", "财报事实 CSV")
}
