package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jing2uo/valuedb/model"
	"github.com/jing2uo/valuedb/utils"
)

type snapshotKey struct {
	ticker string
	date   time.Time
}

// MemoryDriver 进程内存储, 用于测试与一次性计算
type MemoryDriver struct {
	mu sync.RWMutex

	prices    map[string][]model.PricePoint // 按日期升序
	splits    map[string][]model.SplitEvent
	dividends map[string][]model.DividendEvent
	shares    map[string][]model.ShareRecord
	facts     map[string][]model.FinancialFact
	snapshots map[snapshotKey]model.ValuationSnapshot
}

func NewDriver() *MemoryDriver {
	d := &MemoryDriver{}
	d.reset()
	return d
}

func (d *MemoryDriver) reset() {
	d.prices = make(map[string][]model.PricePoint)
	d.splits = make(map[string][]model.SplitEvent)
	d.dividends = make(map[string][]model.DividendEvent)
	d.shares = make(map[string][]model.ShareRecord)
	d.facts = make(map[string][]model.FinancialFact)
	d.snapshots = make(map[snapshotKey]model.ValuationSnapshot)
}

func (d *MemoryDriver) Connect() error { return nil }

func (d *MemoryDriver) Close() error { return nil }

func (d *MemoryDriver) InitSchema() error { return nil }

// --- 写入 ---

func (d *MemoryDriver) AddPrices(points ...model.PricePoint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range points {
		d.prices[p.Ticker] = append(d.prices[p.Ticker], p)
	}
	for t := range d.prices {
		sort.SliceStable(d.prices[t], func(i, j int) bool { return d.prices[t][i].Date.Before(d.prices[t][j].Date) })
	}
}

func (d *MemoryDriver) AddSplits(events ...model.SplitEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range events {
		d.splits[e.Ticker] = append(d.splits[e.Ticker], e)
	}
	for t := range d.splits {
		sort.SliceStable(d.splits[t], func(i, j int) bool { return d.splits[t][i].Date.Before(d.splits[t][j].Date) })
	}
}

func (d *MemoryDriver) AddDividends(events ...model.DividendEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range events {
		d.dividends[e.Ticker] = append(d.dividends[e.Ticker], e)
	}
	for t := range d.dividends {
		sort.SliceStable(d.dividends[t], func(i, j int) bool { return d.dividends[t][i].ExDate.Before(d.dividends[t][j].ExDate) })
	}
}

func (d *MemoryDriver) AddShares(records ...model.ShareRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range records {
		d.shares[r.Ticker] = append(d.shares[r.Ticker], r)
	}
	for t := range d.shares {
		sort.SliceStable(d.shares[t], func(i, j int) bool { return d.shares[t][i].Date.Before(d.shares[t][j].Date) })
	}
}

func (d *MemoryDriver) AddFacts(facts ...model.FinancialFact) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, f := range facts {
		d.facts[f.Ticker] = append(d.facts[f.Ticker], f)
	}
}

func importCSV[T any](path string, add func(...T)) error {
	rows, err := utils.ReadCSV[T](path)
	if err != nil {
		return fmt.Errorf("memory import failed: %w", err)
	}
	add(rows...)
	return nil
}

func (d *MemoryDriver) ImportPrices(path string) error {
	return importCSV(path, d.AddPrices)
}

func (d *MemoryDriver) ImportSplits(path string) error {
	return importCSV(path, d.AddSplits)
}

func (d *MemoryDriver) ImportDividends(path string) error {
	return importCSV(path, d.AddDividends)
}

func (d *MemoryDriver) ImportShares(path string) error {
	return importCSV(path, d.AddShares)
}

func (d *MemoryDriver) ImportFacts(path string) error {
	return importCSV(path, d.AddFacts)
}

func (d *MemoryDriver) GetLatestDate(tableName string, dateCol string) (time.Time, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var latest time.Time
	bump := func(t time.Time) {
		if t.After(latest) {
			latest = t
		}
	}

	switch tableName {
	case model.TablePrices.TableName:
		for _, ps := range d.prices {
			for _, p := range ps {
				bump(p.Date)
			}
		}
	case model.TableShares.TableName:
		for _, rs := range d.shares {
			for _, r := range rs {
				bump(r.Date)
			}
		}
	case model.TableFacts.TableName:
		for _, fs := range d.facts {
			for _, f := range fs {
				if dateCol == "filed" {
					bump(f.Filed)
				} else {
					bump(f.PeriodEnd)
				}
			}
		}
	case model.TableSnapshots.TableName:
		for k := range d.snapshots {
			bump(k.date)
		}
	default:
		return time.Time{}, fmt.Errorf("unknown table: %s", tableName)
	}
	return latest, nil
}

func (d *MemoryDriver) GetAllTickers(ctx context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	tickers := make([]string, 0, len(d.prices))
	for t := range d.prices {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers, nil
}

// --- Source ---

func (d *MemoryDriver) LatestPriceOnOrBefore(ctx context.Context, ticker string, date time.Time) (*model.PricePoint, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ps := d.prices[ticker]
	// 第一个晚于 date 的位置
	i := sort.Search(len(ps), func(i int) bool { return ps[i].Date.After(date) })
	if i == 0 {
		return nil, nil
	}
	p := ps[i-1]
	return &p, nil
}

func (d *MemoryDriver) PriceRange(ctx context.Context, ticker string, from, to time.Time) ([]model.PricePoint, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []model.PricePoint
	for _, p := range d.prices[ticker] {
		if !p.Date.Before(from) && !p.Date.After(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (d *MemoryDriver) PriceDates(ctx context.Context, ticker string, from, to time.Time) ([]time.Time, error) {
	points, err := d.PriceRange(ctx, ticker, from, to)
	if err != nil {
		return nil, err
	}
	dates := make([]time.Time, len(points))
	for i, p := range points {
		dates[i] = p.Date
	}
	return dates, nil
}

func (d *MemoryDriver) LatestShareRecord(ctx context.Context, ticker string, onOrBefore time.Time) (*model.ShareRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var candidates []model.ShareRecord
	for _, r := range d.shares[ticker] {
		if !r.Date.After(onOrBefore) {
			candidates = append(candidates, r)
		}
	}
	best, ok := model.PickShareRecord(candidates)
	if !ok {
		return nil, nil
	}
	return &best, nil
}

func (d *MemoryDriver) AllShareRecords(ctx context.Context, ticker string) ([]model.ShareRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]model.ShareRecord, len(d.shares[ticker]))
	copy(out, d.shares[ticker])
	return out, nil
}

func (d *MemoryDriver) FactsForConcept(ctx context.Context, ticker, concept string, maxPeriodEnd time.Time) ([]model.FinancialFact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var matched []model.FinancialFact
	for _, f := range d.facts[ticker] {
		if f.Concept == concept && !f.PeriodEnd.After(maxPeriodEnd) {
			matched = append(matched, f)
		}
	}
	return model.SupersedeFacts(matched), nil
}

func (d *MemoryDriver) Splits(ctx context.Context, ticker string) ([]model.SplitEvent, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]model.SplitEvent, len(d.splits[ticker]))
	copy(out, d.splits[ticker])
	return out, nil
}

func (d *MemoryDriver) Dividends(ctx context.Context, ticker string) ([]model.DividendEvent, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]model.DividendEvent, len(d.dividends[ticker]))
	copy(out, d.dividends[ticker])
	return out, nil
}

// --- SnapshotStore ---

func (d *MemoryDriver) UpsertSnapshot(ctx context.Context, s model.ValuationSnapshot) error {
	return d.UpsertSnapshots(ctx, []model.ValuationSnapshot{s})
}

func (d *MemoryDriver) UpsertSnapshots(ctx context.Context, snaps []model.ValuationSnapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, s := range snaps {
		d.snapshots[snapshotKey{s.Ticker, utils.TruncateDay(s.Date)}] = s
	}
	return nil
}

func (d *MemoryDriver) SnapshotsByTicker(ctx context.Context, ticker string, from, to time.Time) ([]model.ValuationSnapshot, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []model.ValuationSnapshot
	for k, s := range d.snapshots {
		if k.ticker == ticker && !k.date.Before(from) && !k.date.After(to) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (d *MemoryDriver) SnapshotsByDate(ctx context.Context, date time.Time) ([]model.ValuationSnapshot, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	day := utils.TruncateDay(date)
	var out []model.ValuationSnapshot
	for k, s := range d.snapshots {
		if k.date.Equal(day) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}
