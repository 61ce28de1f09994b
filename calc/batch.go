package calc

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jing2uo/valuedb/database"
	"github.com/jing2uo/valuedb/model"
	"github.com/jing2uo/valuedb/utils"
	"github.com/rs/zerolog/log"
)

// BatchRequest Dates 非空时逐个计算这些日期, 否则计算 [From, To] 内每个交易日
type BatchRequest struct {
	Tickers []string
	Dates   []time.Time
	From    time.Time
	To      time.Time
}

type BatchResult struct {
	RunID     string
	Tickers   int
	Completed int64 // 完整处理的代码数
	Snapshots int64
	// NoPrice 因缺少行情跳过的 (ticker, date) 数
	NoPrice  int64
	Errors   []error
	Duration time.Duration
}

func (r *BatchResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// BatchRunner 按代码并发计算快照并写入 store. 每个代码为一个处理单元
type BatchRunner struct {
	src         database.Source
	store       database.SnapshotStore
	calc        *Calculator
	runID       string
	concurrency int
}

func NewBatchRunner(src database.Source, store database.SnapshotStore, concurrency int, opts ...Option) *BatchRunner {
	runID := uuid.NewString()
	opts = append(opts, WithRunID(runID))
	return &BatchRunner{
		src:         src,
		store:       store,
		calc:        NewCalculator(src, opts...),
		runID:       runID,
		concurrency: concurrency,
	}
}

func (b *BatchRunner) RunID() string {
	return b.runID
}

// Run 取消只在代码之间与日期之间检查, 已算出的快照仍会写入. 被取消时返回 ctx.Err()
func (b *BatchRunner) Run(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if len(req.Dates) == 0 && (req.From.IsZero() || req.To.IsZero()) {
		return nil, fmt.Errorf("batch request needs dates or a from/to range")
	}

	var noPrice atomic.Int64
	pipeline := utils.NewPipeline[string, model.ValuationSnapshot](utils.WithConcurrency(b.concurrency))

	// 写入不随 ctx 取消, 保证已计算的结果落盘
	storeCtx := context.WithoutCancel(ctx)

	pr, runErr := pipeline.Run(
		ctx,
		req.Tickers,
		func(ctx context.Context, ticker string) ([]model.ValuationSnapshot, error) {
			return b.processTicker(ctx, ticker, req, &noPrice)
		},
		func(rows []model.ValuationSnapshot) error {
			return b.store.UpsertSnapshots(storeCtx, rows)
		},
	)

	result := &BatchResult{
		RunID:     b.runID,
		Tickers:   len(req.Tickers),
		Completed: pr.ProcessedItems,
		Snapshots: pr.OutputRows,
		NoPrice:   noPrice.Load(),
		Errors:    pr.Errors,
		Duration:  pr.Duration,
	}

	log.Info().
		Str("run_id", b.runID).
		Int("tickers", result.Tickers).
		Int64("snapshots", result.Snapshots).
		Int64("no_price", result.NoPrice).
		Int("errors", len(result.Errors)).
		Dur("duration", result.Duration).
		Msg("batch finished")

	return result, runErr
}

func (b *BatchRunner) processTicker(ctx context.Context, ticker string, req BatchRequest, noPrice *atomic.Int64) ([]model.ValuationSnapshot, error) {
	dates := req.Dates
	if len(dates) == 0 {
		var err error
		dates, err = b.src.PriceDates(ctx, ticker, req.From, req.To)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ticker, err)
		}
	}

	out := make([]model.ValuationSnapshot, 0, len(dates))
	for _, d := range dates {
		if ctx.Err() != nil {
			break
		}

		snap, err := b.calc.Snapshot(ctx, ticker, d)
		if err != nil {
			if errors.Is(err, ErrNoPriceData) {
				noPrice.Add(1)
				log.Debug().Str("ticker", ticker).Time("date", d).Msg("no price, date skipped")
				continue
			}
			return nil, fmt.Errorf("%s@%s: %w", ticker, d.Format("2006-01-02"), err)
		}
		out = append(out, *snap)
	}
	return out, nil
}
