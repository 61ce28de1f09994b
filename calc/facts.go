package calc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guregu/null/v6"
	"github.com/jing2uo/valuedb/database"
	"github.com/jing2uo/valuedb/model"
	"github.com/rs/zerolog/log"
)

// Concepts US-GAAP 概念及其备选, 按优先级排列
var Concepts = struct {
	Revenue         []string
	NetIncome       []string
	OperatingIncome []string
	GrossProfit     []string
	DandA           []string
	IncomeTax       []string
	PretaxIncome    []string
	Equity          []string
	LongTermDebt    []string
	ShortTermDebt   []string
	Cash            []string
	Assets          []string
}{
	Revenue: []string{
		"Revenues",
		"RevenueFromContractWithCustomerExcludingAssessedTax",
		"SalesRevenueNet",
	},
	NetIncome:       []string{"NetIncomeLoss"},
	OperatingIncome: []string{"OperatingIncomeLoss"},
	GrossProfit:     []string{"GrossProfit"},
	DandA: []string{
		"DepreciationDepletionAndAmortization",
		"DepreciationAndAmortization",
		"DepreciationAmortizationAndAccretionNet",
	},
	IncomeTax: []string{"IncomeTaxExpenseBenefit"},
	PretaxIncome: []string{
		"IncomeLossFromContinuingOperationsBeforeIncomeTaxesExtraordinaryItemsNoncontrollingInterest",
		"IncomeLossFromContinuingOperationsBeforeIncomeTaxesMinorityInterestAndIncomeLossFromEquityMethodInvestments",
	},
	Equity: []string{
		"StockholdersEquity",
		"StockholdersEquityIncludingPortionAttributableToNoncontrollingInterest",
	},
	LongTermDebt:  []string{"LongTermDebt", "LongTermDebtNoncurrent"},
	ShortTermDebt: []string{"ShortTermBorrowings"},
	Cash: []string{
		"CashAndCashEquivalentsAtCarryingValue",
		"Cash",
		"CashCashEquivalentsRestrictedCashAndRestrictedCashEquivalents",
	},
	Assets: []string{"Assets"},
}

// FactAggregator 将财报事实聚合为 TTM 流量值与最新时点值
type FactAggregator struct {
	src database.FactSource
}

func NewFactAggregator(src database.FactSource) *FactAggregator {
	return &FactAggregator{src: src}
}

func (a *FactAggregator) load(ctx context.Context, ticker, concept string, asOf time.Time) ([]model.FinancialFact, error) {
	if model.IsPerShareConcept(concept, "") {
		return nil, fmt.Errorf("%s: %w", concept, ErrPerShareConcept)
	}
	facts, err := a.src.FactsForConcept(ctx, ticker, concept, asOf)
	if err != nil {
		return nil, fmt.Errorf("load %s/%s: %w", ticker, concept, err)
	}
	// 每股口径的单条数据直接丢弃, 其余照常聚合
	kept := make([]model.FinancialFact, 0, len(facts))
	for _, f := range facts {
		if model.IsPerShareConcept(f.Concept, f.Unit) {
			log.Debug().
				Str("ticker", ticker).
				Str("concept", concept).
				Str("unit", f.Unit).
				Time("period_end", f.PeriodEnd).
				Msg("per-share fact dropped")
			continue
		}
		kept = append(kept, f)
	}
	return kept, nil
}

// TTM 返回截至 asOf 的滚动十二个月值. 季度不足时值为空, 错误为 *InsufficientFactDataError
func (a *FactAggregator) TTM(ctx context.Context, ticker, concept string, asOf time.Time) (null.Float, error) {
	res, err := a.ttm(ctx, ticker, concept, asOf)
	if err != nil {
		return null.Float{}, err
	}
	return null.FloatFrom(res.Value), nil
}

func (a *FactAggregator) ttm(ctx context.Context, ticker, concept string, asOf time.Time) (trailing, error) {
	facts, err := a.load(ctx, ticker, concept, asOf)
	if err != nil {
		return trailing{}, err
	}
	return trailingTwelveMonths(concept, facts, asOf)
}

// TTMAny 依次尝试 concepts, 取窗口期末最新的结果; 期末相同时靠前的概念优先
func (a *FactAggregator) TTMAny(ctx context.Context, ticker string, concepts []string, asOf time.Time) (null.Float, error) {
	var (
		best    *trailing
		lastErr error
	)
	for _, c := range concepts {
		res, err := a.ttm(ctx, ticker, c, asOf)
		if err != nil {
			if !errors.Is(err, ErrInsufficientFactData) {
				return null.Float{}, err
			}
			lastErr = err
			continue
		}
		if best == nil || res.End.After(best.End) {
			best = &res
		}
	}
	if best == nil {
		if lastErr == nil {
			lastErr = &InsufficientFactDataError{}
		}
		return null.Float{}, lastErr
	}
	return null.FloatFrom(best.Value), nil
}

// Instant 返回期末不晚于 asOf 的最新时点值, 没有则为空
func (a *FactAggregator) Instant(ctx context.Context, ticker, concept string, asOf time.Time) (null.Float, error) {
	f, err := a.instant(ctx, ticker, concept, asOf)
	if err != nil || f == nil {
		return null.Float{}, err
	}
	return null.FloatFrom(f.Value), nil
}

func (a *FactAggregator) instant(ctx context.Context, ticker, concept string, asOf time.Time) (*model.FinancialFact, error) {
	facts, err := a.load(ctx, ticker, concept, asOf)
	if err != nil {
		return nil, err
	}
	return LatestInstant(facts, asOf), nil
}

// LatestInstant 重述去重后取最新期末, 同一期末取最晚申报
func LatestInstant(facts []model.FinancialFact, asOf time.Time) *model.FinancialFact {
	var latest *model.FinancialFact
	for _, f := range model.SupersedeFacts(facts) {
		if f.Kind() != model.KindInstant || f.PeriodEnd.After(asOf) {
			continue
		}
		if latest == nil ||
			f.PeriodEnd.After(latest.PeriodEnd) ||
			(f.PeriodEnd.Equal(latest.PeriodEnd) && f.Filed.After(latest.Filed)) {
			latest = &f
		}
	}
	return latest
}

// InstantAny 与 TTMAny 相同的取舍规则
func (a *FactAggregator) InstantAny(ctx context.Context, ticker string, concepts []string, asOf time.Time) (null.Float, error) {
	var best *model.FinancialFact
	for _, c := range concepts {
		f, err := a.instant(ctx, ticker, c, asOf)
		if err != nil {
			return null.Float{}, err
		}
		if f != nil && (best == nil || f.PeriodEnd.After(best.PeriodEnd)) {
			best = f
		}
	}
	if best == nil {
		return null.Float{}, nil
	}
	return null.FloatFrom(best.Value), nil
}
