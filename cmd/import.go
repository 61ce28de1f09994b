package cmd

import (
	"context"
	"fmt"

	"github.com/jing2uo/valuedb/workflow"
)

type ImportOptions struct {
	Prices    string
	Splits    string
	Dividends string
	Shares    string
	Facts     string
}

func (o ImportOptions) empty() bool {
	return o.Prices == "" && o.Splits == "" && o.Dividends == "" && o.Shares == "" && o.Facts == ""
}

func (o ImportOptions) apply(args *workflow.TaskArgs) {
	args.PricesCSV = o.Prices
	args.SplitsCSV = o.Splits
	args.DividendsCSV = o.Dividends
	args.SharesCSV = o.Shares
	args.FactsCSV = o.Facts
}

// Import 导入原始数据 CSV, 未指定的文件跳过
func Import(ctx context.Context, dbURI string, opts ImportOptions) error {
	if opts.empty() {
		return fmt.Errorf("at least one of --prices, --splits, --dividends, --shares, --facts is required")
	}

	db, err := openDB(dbURI)
	if err != nil {
		return err
	}
	defer db.Close()

	args := &workflow.TaskArgs{}
	opts.apply(args)

	executor := workflow.NewTaskExecutor(db, workflow.GetRegisteredTasks())
	if err := executor.Run(ctx, workflow.GetImportTaskNames(), args); err != nil {
		return fmt.Errorf("workflow execution failed: %w", err)
	}
	return nil
}
