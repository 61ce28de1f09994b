package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jing2uo/valuedb/calc"
	"github.com/jing2uo/valuedb/database"
	"github.com/jing2uo/valuedb/utils"
)

var (
	TaskImportPrices    *Task
	TaskImportActions   *Task
	TaskImportShares    *Task
	TaskImportFacts     *Task
	TaskCalcSnapshots   *Task
	TaskExportSnapshots *Task
)

func init() {
	TaskImportPrices = &Task{
		Name: "import_prices",
		SkipIf: func(ctx context.Context, db database.DataRepository, args *TaskArgs) bool {
			return args.PricesCSV == ""
		},
		Executor: importStep("行情", func(ctx context.Context, db database.DataRepository, args *TaskArgs) error {
			return importFile(ctx, db.ImportPrices, args.PricesCSV)
		}),
	}

	TaskImportActions = &Task{
		Name: "import_actions",
		SkipIf: func(ctx context.Context, db database.DataRepository, args *TaskArgs) bool {
			return args.SplitsCSV == "" && args.DividendsCSV == ""
		},
		Executor: importStep("拆股与分红", func(ctx context.Context, db database.DataRepository, args *TaskArgs) error {
			if err := importFile(ctx, db.ImportSplits, args.SplitsCSV); err != nil {
				return err
			}
			return importFile(ctx, db.ImportDividends, args.DividendsCSV)
		}),
	}

	TaskImportShares = &Task{
		Name: "import_shares",
		SkipIf: func(ctx context.Context, db database.DataRepository, args *TaskArgs) bool {
			return args.SharesCSV == ""
		},
		Executor: importStep("股本", func(ctx context.Context, db database.DataRepository, args *TaskArgs) error {
			return importFile(ctx, db.ImportShares, args.SharesCSV)
		}),
	}

	TaskImportFacts = &Task{
		Name: "import_facts",
		SkipIf: func(ctx context.Context, db database.DataRepository, args *TaskArgs) bool {
			return args.FactsCSV == ""
		},
		Executor: importStep("财报", func(ctx context.Context, db database.DataRepository, args *TaskArgs) error {
			return importFile(ctx, db.ImportFacts, args.FactsCSV)
		}),
	}

	TaskCalcSnapshots = &Task{
		Name:      "calc_snapshots",
		DependsOn: []string{"import_prices", "import_actions", "import_shares", "import_facts"},
		Executor:  executeCalcSnapshots,
	}

	TaskExportSnapshots = &Task{
		Name:      "export_snapshots",
		DependsOn: []string{"calc_snapshots"},
		SkipIf: func(ctx context.Context, db database.DataRepository, args *TaskArgs) bool {
			return args.OutputDir == ""
		},
		Executor: executeExportSnapshots,
		OnError:  ErrorModeSkip,
	}
}

// importFile src 为空时不做任何事. 支持本地文件, http(s) 地址与 .zip
func importFile(ctx context.Context, fn func(string) error, src string) error {
	if src == "" {
		return nil
	}
	path, cleanup, err := utils.ResolveInput(ctx, src)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := utils.CheckFile(path); err != nil {
		return err
	}
	if err := fn(path); err != nil {
		return fmt.Errorf("failed to import %s: %w", src, err)
	}
	return nil
}

func importStep(label string, fn func(ctx context.Context, db database.DataRepository, args *TaskArgs) error) TaskFunc {
	return func(ctx context.Context, db database.DataRepository, args *TaskArgs) (*TaskResult, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fmt.Printf("🐢 开始导入%s数据\n", label)
		if err := fn(ctx, db, args); err != nil {
			return nil, err
		}
		fmt.Printf("🚀 %s数据导入成功\n", label)
		return &TaskResult{State: StateCompleted, Message: label + " imported"}, nil
	}
}

func executeCalcSnapshots(ctx context.Context, db database.DataRepository, args *TaskArgs) (*TaskResult, error) {
	tickers := args.Tickers
	if len(tickers) == 0 {
		var err error
		if tickers, err = db.GetAllTickers(ctx); err != nil {
			return nil, fmt.Errorf("failed to list tickers: %w", err)
		}
	}
	if len(tickers) == 0 {
		fmt.Println("🌲 库中没有行情数据, 无需计算")
		return &TaskResult{State: StateSkipped, Message: "no tickers"}, nil
	}

	date := args.Date
	if date.IsZero() {
		date = utils.Today()
	}

	fmt.Printf("📟 计算 %d 个代码 %s 的估值快照\n", len(tickers), date.Format(utils.DateLayout))
	runner := calc.NewBatchRunner(db, db, args.Concurrency, args.CalcOptions...)
	res, err := runner.Run(ctx, calc.BatchRequest{Tickers: tickers, Dates: []time.Time{date}})
	if err != nil {
		return nil, err
	}

	for _, e := range res.Errors {
		fmt.Printf("⚠️ %v\n", e)
	}
	if res.NoPrice > 0 {
		fmt.Printf("🟡 %d 个代码在 %s 之前没有行情, 已跳过\n", res.NoPrice, date.Format(utils.DateLayout))
	}
	fmt.Printf("🔢 写入 %d 条快照 (run %s)\n", res.Snapshots, res.RunID)

	if res.Snapshots == 0 && res.HasErrors() {
		return nil, fmt.Errorf("all %d tickers failed, first: %w", len(res.Errors), res.Errors[0])
	}
	return &TaskResult{
		State:   StateCompleted,
		Rows:    int(res.Snapshots),
		Message: fmt.Sprintf("run %s", res.RunID),
	}, nil
}

func executeExportSnapshots(ctx context.Context, db database.DataRepository, args *TaskArgs) (*TaskResult, error) {
	date := args.Date
	if date.IsZero() {
		date = utils.Today()
	}

	if err := utils.CheckOutputDir(args.OutputDir); err != nil {
		return nil, err
	}

	snaps, err := db.SnapshotsByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}
	if len(snaps) == 0 {
		fmt.Println("🌲 没有可导出的快照")
		return &TaskResult{State: StateSkipped, Message: "nothing to export"}, nil
	}

	format, err := calc.ExportFormat("", args.OutputFormat)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(args.OutputDir, fmt.Sprintf("snapshots_%s.%s", date.Format("20060102"), format))
	n, err := calc.ExportSnapshots(snaps, path, format)
	if err != nil {
		return nil, fmt.Errorf("failed to export snapshots: %w", err)
	}

	fmt.Printf("📦 已导出 %d 条快照到 %s\n", n, path)
	return &TaskResult{State: StateCompleted, Rows: n, Message: path}, nil
}

// GetCronTaskNames 每日任务: 导入 -> 计算 -> 导出
func GetCronTaskNames() []string {
	return []string{
		"import_prices",
		"import_actions",
		"import_shares",
		"import_facts",
		"calc_snapshots",
		"export_snapshots",
	}
}

func GetImportTaskNames() []string {
	return []string{
		"import_prices",
		"import_actions",
		"import_shares",
		"import_facts",
	}
}

func GetRegisteredTasks() map[string]*Task {
	return map[string]*Task{
		"import_prices":    TaskImportPrices,
		"import_actions":   TaskImportActions,
		"import_shares":    TaskImportShares,
		"import_facts":     TaskImportFacts,
		"calc_snapshots":   TaskCalcSnapshots,
		"export_snapshots": TaskExportSnapshots,
	}
}
