package calc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/guregu/null/v6"
	"github.com/jing2uo/valuedb/database"
	"github.com/jing2uo/valuedb/model"
	"github.com/jing2uo/valuedb/utils"
	"github.com/rs/zerolog/log"
)

// Calculator 计算 (ticker, date) 的估值快照. 无进程级状态, 可按调用或按 worker 创建
type Calculator struct {
	src     database.Source
	shares  *SharesResolver
	facts   *FactAggregator
	actions *ActionRegistry
	opts    options
}

func NewCalculator(src database.Source, opts ...Option) *Calculator {
	return &Calculator{
		src:     src,
		shares:  NewSharesResolver(src, opts...),
		facts:   NewFactAggregator(src),
		actions: NewActionRegistry(src),
		opts:    newOptions(opts),
	}
}

// fundamentals 截至 asOf 的财报输入
type fundamentals struct {
	revenue, netIncome, operatingIncome, grossProfit, dna, ebitda null.Float
	incomeTax, pretaxIncome                                       null.Float
	equity, debt, cash, assets                                    null.Float
}

// Snapshot 计算估值快照. 只有缺少行情会返回 *NoPriceDataError, 其余缺失体现为空字段与标记
func (c *Calculator) Snapshot(ctx context.Context, ticker string, asOf time.Time) (*model.ValuationSnapshot, error) {
	asOf = utils.TruncateDay(asOf)

	// 1. 价格
	p, err := c.src.LatestPriceOnOrBefore(ctx, ticker, asOf)
	if err != nil {
		return nil, fmt.Errorf("load price for %s: %w", ticker, err)
	}
	if p == nil || (p.AdjClose <= 0 && p.Close <= 0) {
		return nil, &NoPriceDataError{Ticker: ticker, AsOf: asOf}
	}

	snap := &model.ValuationSnapshot{
		Ticker:     ticker,
		Date:       asOf,
		Price:      p.AdjClose,
		PriceDate:  p.Date,
		RunID:      c.opts.runID,
		ComputedAt: c.opts.now().UTC(),
	}
	if p.AdjClose <= 0 {
		snap.Price = p.Close
		snap.Flags.Add(model.FlagUnadjustedPrice)
	}

	// 2. 股本
	shares, err := c.resolveShares(ctx, snap)
	if err != nil {
		return nil, err
	}

	// 3. 财报
	f, err := c.loadFundamentals(ctx, ticker, asOf, &snap.Flags)
	if err != nil {
		return nil, err
	}
	snap.RevenueTTM = f.revenue
	snap.NetIncomeTTM = f.netIncome
	snap.OperatingIncomeTTM = f.operatingIncome
	snap.EBITDATTM = f.ebitda
	snap.TotalEquity = f.equity
	snap.TotalDebt = f.debt
	snap.Cash = f.cash
	snap.TotalAssets = f.assets

	if f.equity.Valid && f.equity.Float64 <= 0 {
		snap.Flags.Add(model.FlagNonPositiveEquity)
	}
	if f.netIncome.Valid && f.netIncome.Float64 <= 0 {
		snap.Flags.Add(model.FlagNegativeEarnings)
	}

	// 4. 市值相关
	if shares.Valid {
		c.marketRatios(snap, shares.Float64, f)
	}

	// 5. 基本面
	c.fundamentalRatios(snap, f)

	// 6. 同比
	if err := c.growth(ctx, snap, f); err != nil {
		return nil, err
	}

	return snap, nil
}

func (c *Calculator) resolveShares(ctx context.Context, snap *model.ValuationSnapshot) (null.Float, error) {
	resolved, err := c.shares.Resolve(ctx, snap.Ticker, snap.Date)
	if err != nil {
		if errors.Is(err, ErrNoShareData) {
			snap.Flags.Add(model.FlagNoShares)
			log.Debug().Str("ticker", snap.Ticker).Msg("no share records, market metrics left empty")
			return null.Float{}, nil
		}
		return null.Float{}, err
	}

	count, fellBack, ok := resolved.Count(c.opts.basis)
	if !ok {
		snap.Flags.Add(model.FlagNoShares)
		return null.Float{}, nil
	}
	if fellBack {
		snap.Flags.Add(model.FlagBasicSharesFallback)
	}
	if resolved.Stale {
		snap.Flags.Add(model.FlagStaleShares)
		log.Debug().
			Err(resolved.Warning()).
			Str("ticker", snap.Ticker).
			Time("as_of", snap.Date).
			Msg("share record older than valuation date threshold")
	}

	snap.Shares = null.FloatFrom(count)
	snap.SharesDate = null.TimeFrom(resolved.Record.Date)

	explained, err := c.shareJumpExplained(ctx, snap.Ticker)
	if err != nil {
		return null.Float{}, err
	}
	if !explained {
		snap.Flags.Add(model.FlagShareJumpUnexplained)
	}
	return snap.Shares, nil
}

// shareJumpExplained 比较截至今天最新的两个日期的股本记录
func (c *Calculator) shareJumpExplained(ctx context.Context, ticker string) (bool, error) {
	records, err := c.src.AllShareRecords(ctx, ticker)
	if err != nil {
		return false, fmt.Errorf("load share history for %s: %w", ticker, err)
	}

	today := utils.TruncateDay(c.opts.now())
	byDate := make(map[time.Time][]model.ShareRecord)
	for _, r := range records {
		if !r.Date.After(today) {
			byDate[r.Date] = append(byDate[r.Date], r)
		}
	}

	var latest, prev *model.ShareRecord
	for _, rs := range byDate {
		best, _ := model.PickShareRecord(rs)
		switch {
		case latest == nil || best.Date.After(latest.Date):
			prev, latest = latest, &best
		case prev == nil || best.Date.After(prev.Date):
			prev = &best
		}
	}
	if latest == nil || prev == nil {
		return true, nil
	}
	return c.actions.CheckShareJump(ctx, ticker, *prev, *latest)
}

// ttm 季度不足时记录 insufficient_<metric> 并返回空值
func (c *Calculator) ttm(ctx context.Context, ticker string, concepts []string, asOf time.Time, metric string, flags *model.Flags) (null.Float, error) {
	v, err := c.facts.TTMAny(ctx, ticker, concepts, asOf)
	if err != nil {
		if errors.Is(err, ErrInsufficientFactData) {
			if flags != nil {
				flags.Add(model.InsufficientFlag(metric))
			}
			return null.Float{}, nil
		}
		return null.Float{}, err
	}
	return v, nil
}

func (c *Calculator) loadFundamentals(ctx context.Context, ticker string, asOf time.Time, flags *model.Flags) (*fundamentals, error) {
	var (
		f   fundamentals
		err error
	)

	flows := []struct {
		dst      *null.Float
		concepts []string
		metric   string
		flags    *model.Flags
	}{
		{&f.revenue, Concepts.Revenue, "revenue_ttm", flags},
		{&f.netIncome, Concepts.NetIncome, "net_income_ttm", flags},
		{&f.operatingIncome, Concepts.OperatingIncome, "operating_income_ttm", flags},
		{&f.grossProfit, Concepts.GrossProfit, "gross_profit_ttm", flags},
		{&f.dna, Concepts.DandA, "dna_ttm", nil},
		{&f.incomeTax, Concepts.IncomeTax, "income_tax_ttm", nil},
		{&f.pretaxIncome, Concepts.PretaxIncome, "pretax_income_ttm", nil},
	}
	for _, fl := range flows {
		if *fl.dst, err = c.ttm(ctx, ticker, fl.concepts, asOf, fl.metric, fl.flags); err != nil {
			return nil, err
		}
	}

	// EBITDA 只在营业利润与折旧摊销都有时推导
	if f.operatingIncome.Valid && f.dna.Valid {
		f.ebitda = null.FloatFrom(f.operatingIncome.Float64 + f.dna.Float64)
	} else {
		flags.Add(model.InsufficientFlag("ebitda_ttm"))
	}

	instants := []struct {
		dst      *null.Float
		concepts []string
	}{
		{&f.equity, Concepts.Equity},
		{&f.cash, Concepts.Cash},
		{&f.assets, Concepts.Assets},
	}
	for _, in := range instants {
		if *in.dst, err = c.facts.InstantAny(ctx, ticker, in.concepts, asOf); err != nil {
			return nil, err
		}
	}

	longTerm, err := c.facts.InstantAny(ctx, ticker, Concepts.LongTermDebt, asOf)
	if err != nil {
		return nil, err
	}
	shortTerm, err := c.facts.InstantAny(ctx, ticker, Concepts.ShortTermDebt, asOf)
	if err != nil {
		return nil, err
	}
	if longTerm.Valid || shortTerm.Valid {
		f.debt = null.FloatFrom(longTerm.Float64 + shortTerm.Float64)
	}

	return &f, nil
}

// debtOrZero 缺失的债务/现金按 0 处理并标记
func debtOrZero(f *fundamentals, flags *model.Flags) (debt, cash float64) {
	if f.debt.Valid {
		debt = f.debt.Float64
	} else {
		flags.Add(model.FlagDebtAssumedZero)
	}
	if f.cash.Valid {
		cash = f.cash.Float64
	} else {
		flags.Add(model.FlagCashAssumedZero)
	}
	return debt, cash
}

func (c *Calculator) marketRatios(snap *model.ValuationSnapshot, shares float64, f *fundamentals) {
	mcap := null.FloatFrom(snap.Price * shares)
	debt, cash := debtOrZero(f, &snap.Flags)
	ev := null.FloatFrom(mcap.Float64 + debt - cash)

	snap.MarketCap = mcap
	snap.EnterpriseValue = ev

	snap.PERatio = positiveRatio(mcap, f.netIncome)
	snap.PSRatio = positiveRatio(mcap, f.revenue)
	snap.PBRatio = positiveRatio(mcap, f.equity)
	snap.EVRevenue = positiveRatio(ev, f.revenue)
	snap.EVEBITDA = positiveRatio(ev, f.ebitda)
	snap.EVEBIT = positiveRatio(ev, f.operatingIncome)
}

func (c *Calculator) fundamentalRatios(snap *model.ValuationSnapshot, f *fundamentals) {
	snap.GrossMargin = positiveRatio(f.grossProfit, f.revenue)
	snap.OperatingMargin = positiveRatio(f.operatingIncome, f.revenue)
	snap.NetMargin = positiveRatio(f.netIncome, f.revenue)
	snap.EBITDAMargin = positiveRatio(f.ebitda, f.revenue)
	snap.ROE = positiveRatio(f.netIncome, f.equity)
	snap.ROA = positiveRatio(f.netIncome, f.assets)

	if !f.operatingIncome.Valid || !f.equity.Valid {
		return
	}
	rate := c.effectiveTaxRate(f, &snap.Flags)
	nopat := null.FloatFrom(f.operatingIncome.Float64 * (1 - rate))
	debt, cash := debtOrZero(f, &snap.Flags)
	invested := null.FloatFrom(debt + f.equity.Float64 - cash)
	snap.ROIC = positiveRatio(nopat, invested)
}

// effectiveTaxRate 所得税 / 税前利润, 截断到 [0, 1]; 无法计算时使用默认税率
func (c *Calculator) effectiveTaxRate(f *fundamentals, flags *model.Flags) float64 {
	if f.incomeTax.Valid && f.pretaxIncome.Valid && f.pretaxIncome.Float64 > 0 {
		rate := f.incomeTax.Float64 / f.pretaxIncome.Float64
		return math.Min(math.Max(rate, 0), 1)
	}
	flags.Add(model.FlagTaxRateDefaulted)
	return c.opts.taxRate
}

func (c *Calculator) growth(ctx context.Context, snap *model.ValuationSnapshot, f *fundamentals) error {
	prior := snap.Date.AddDate(-1, 0, 0)

	if f.revenue.Valid {
		prev, err := c.ttm(ctx, snap.Ticker, Concepts.Revenue, prior, "", nil)
		if err != nil {
			return err
		}
		snap.RevenueGrowth = growthRate(f.revenue, prev)
	}
	if f.netIncome.Valid {
		prev, err := c.ttm(ctx, snap.Ticker, Concepts.NetIncome, prior, "", nil)
		if err != nil {
			return err
		}
		snap.EarningsGrowth = growthRate(f.netIncome, prev)
	}
	return nil
}

// ComputeAndStore 计算并覆盖写入快照
func (c *Calculator) ComputeAndStore(ctx context.Context, store database.SnapshotStore, ticker string, asOf time.Time) (*model.ValuationSnapshot, error) {
	snap, err := c.Snapshot(ctx, ticker, asOf)
	if err != nil {
		return nil, err
	}
	if err := store.UpsertSnapshot(ctx, *snap); err != nil {
		return nil, fmt.Errorf("store snapshot %s@%s: %w", ticker, snap.Date.Format("2006-01-02"), err)
	}
	return snap, nil
}

// ratio 分母缺失/为零或结果非有限时为空
func ratio(num, den null.Float) null.Float {
	if !num.Valid || !den.Valid || den.Float64 == 0 {
		return null.Float{}
	}
	r := num.Float64 / den.Float64
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return null.Float{}
	}
	return null.FloatFrom(r)
}

// positiveRatio 分母不为正时为空
func positiveRatio(num, den null.Float) null.Float {
	if !den.Valid || den.Float64 <= 0 {
		return null.Float{}
	}
	return ratio(num, den)
}

// growthRate current / prior - 1, prior 缺失或为零时为空
func growthRate(current, prior null.Float) null.Float {
	r := ratio(current, prior)
	if !r.Valid {
		return r
	}
	return null.FloatFrom(r.Float64 - 1)
}
