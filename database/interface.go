package database

import (
	"context"
	"time"

	"github.com/jing2uo/valuedb/model"
)

// PriceSource 行情查询. 查无数据时返回 nil, nil
type PriceSource interface {
	LatestPriceOnOrBefore(ctx context.Context, ticker string, date time.Time) (*model.PricePoint, error)
	PriceRange(ctx context.Context, ticker string, from, to time.Time) ([]model.PricePoint, error)
	PriceDates(ctx context.Context, ticker string, from, to time.Time) ([]time.Time, error)
}

type ShareSource interface {
	// LatestShareRecord 返回 date <= onOrBefore 的最新股本记录, 同日多来源按 model.PreferShareRecord 取舍
	LatestShareRecord(ctx context.Context, ticker string, onOrBefore time.Time) (*model.ShareRecord, error)
	AllShareRecords(ctx context.Context, ticker string) ([]model.ShareRecord, error)
}

type FactSource interface {
	// FactsForConcept 按 period_end 降序返回, 重述已去重
	FactsForConcept(ctx context.Context, ticker, concept string, maxPeriodEnd time.Time) ([]model.FinancialFact, error)
}

type ActionSource interface {
	Splits(ctx context.Context, ticker string) ([]model.SplitEvent, error)
	Dividends(ctx context.Context, ticker string) ([]model.DividendEvent, error)
}

// Source 估值计算所需的全部只读数据
type Source interface {
	PriceSource
	ShareSource
	FactSource
	ActionSource
}

// SnapshotStore 快照持久化. 以 (ticker, date) 为键覆盖写入
type SnapshotStore interface {
	UpsertSnapshot(ctx context.Context, s model.ValuationSnapshot) error
	UpsertSnapshots(ctx context.Context, s []model.ValuationSnapshot) error
	SnapshotsByTicker(ctx context.Context, ticker string, from, to time.Time) ([]model.ValuationSnapshot, error)
	SnapshotsByDate(ctx context.Context, date time.Time) ([]model.ValuationSnapshot, error)
}

type DataRepository interface {
	Source
	SnapshotStore

	Connect() error
	Close() error

	InitSchema() error

	ImportPrices(csvPath string) error
	ImportSplits(csvPath string) error
	ImportDividends(csvPath string) error
	ImportShares(csvPath string) error
	ImportFacts(csvPath string) error

	GetLatestDate(tableName string, dateCol string) (time.Time, error)
	GetAllTickers(ctx context.Context) ([]string, error)
}
