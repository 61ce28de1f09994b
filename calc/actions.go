package calc

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jing2uo/valuedb/database"
	"github.com/jing2uo/valuedb/model"
)

const (
	// 股本变动超过该倍数视为跳变, 需要有对应拆股
	shareJumpThreshold = 1.5
	// 跳变比例与拆股因子的允许偏差
	shareJumpTolerance = 0.10
)

// ActionRegistry 拆股与分红查询. 只用于校验和收益率计算, 从不用于调整估值中的价格或股本
type ActionRegistry struct {
	src database.ActionSource
}

func NewActionRegistry(src database.ActionSource) *ActionRegistry {
	return &ActionRegistry{src: src}
}

// SplitFactorBetween 返回生效日在 (a, b] 内的拆股比例乘积; a > b 时返回倒数, 无拆股返回 1
func (r *ActionRegistry) SplitFactorBetween(ctx context.Context, ticker string, a, b time.Time) (float64, error) {
	if a.After(b) {
		f, err := r.SplitFactorBetween(ctx, ticker, b, a)
		if err != nil {
			return 0, err
		}
		return 1 / f, nil
	}

	splits, err := r.src.Splits(ctx, ticker)
	if err != nil {
		return 0, fmt.Errorf("load splits for %s: %w", ticker, err)
	}
	return splitFactor(splits, a, b), nil
}

func splitFactor(splits []model.SplitEvent, a, b time.Time) float64 {
	factor := 1.0
	for _, s := range splits {
		if s.Ratio <= 0 {
			continue
		}
		if s.Date.After(a) && !s.Date.After(b) {
			factor *= s.Ratio
		}
	}
	return factor
}

// DividendsBetween 返回除息日在 (a, b] 内的分红, 按除息日升序
func (r *ActionRegistry) DividendsBetween(ctx context.Context, ticker string, a, b time.Time) ([]model.DividendEvent, error) {
	if a.After(b) {
		a, b = b, a
	}

	divs, err := r.src.Dividends(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("load dividends for %s: %w", ticker, err)
	}

	var out []model.DividendEvent
	for _, d := range divs {
		if d.ExDate.After(a) && !d.ExDate.After(b) {
			out = append(out, d)
		}
	}
	return out, nil
}

// CheckShareJump 报告 prev -> next 的股本变动是否可由两者之间的拆股解释.
// 变动不足 1.5 倍时总是返回 true
func (r *ActionRegistry) CheckShareJump(ctx context.Context, ticker string, prev, next model.ShareRecord) (bool, error) {
	before, ok1 := comparableShares(prev, next)
	after, ok2 := comparableShares(next, prev)
	if !ok1 || !ok2 || before <= 0 {
		return true, nil
	}

	observed := after / before
	if observed < shareJumpThreshold && observed > 1/shareJumpThreshold {
		return true, nil
	}

	factor, err := r.SplitFactorBetween(ctx, ticker, prev.Date, next.Date)
	if err != nil {
		return false, err
	}
	return math.Abs(observed/factor-1) <= shareJumpTolerance, nil
}

// comparableShares 两条记录都有稀释股本时用稀释口径, 否则用基本口径
func comparableShares(r, other model.ShareRecord) (float64, bool) {
	if r.SharesDiluted.Valid && other.SharesDiluted.Valid {
		return r.SharesDiluted.Float64, true
	}
	if r.SharesBasic.Valid && other.SharesBasic.Valid {
		return r.SharesBasic.Float64, true
	}
	return 0, false
}

// ReturnSummary 区间收益. PriceReturn 基于原始收盘价 (按区间拆股还原), TotalReturn 基于复权价
type ReturnSummary struct {
	Ticker               string    `json:"ticker"`
	StartDate            time.Time `json:"start_date"`
	EndDate              time.Time `json:"end_date"`
	StartPrice           float64   `json:"start_price"`
	EndPrice             float64   `json:"end_price"`
	PriceReturn          float64   `json:"price_return"`
	TotalReturn          float64   `json:"total_return"`
	DividendContribution float64   `json:"dividend_contribution"`
	DividendsPaid        float64   `json:"dividends_paid"`
	DividendCount        int       `json:"dividend_count"`
	SplitFactor          float64   `json:"split_factor"`
}

// Returns 计算 [from, to] 的价格收益与总收益
func (r *ActionRegistry) Returns(ctx context.Context, prices database.PriceSource, ticker string, from, to time.Time) (*ReturnSummary, error) {
	points, err := prices.PriceRange(ctx, ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("load prices for %s: %w", ticker, err)
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrInsufficientPrices)
	}

	first, last := points[0], points[len(points)-1]
	if first.Close <= 0 || first.AdjClose <= 0 {
		return nil, fmt.Errorf("%s: non-positive starting price on %s", ticker, first.Date.Format("2006-01-02"))
	}

	factor, err := r.SplitFactorBetween(ctx, ticker, first.Date, last.Date)
	if err != nil {
		return nil, err
	}
	divs, err := r.DividendsBetween(ctx, ticker, first.Date, last.Date)
	if err != nil {
		return nil, err
	}

	// 原始收盘价在拆股日跳变, 乘回拆股因子后才可比
	priceReturn := last.Close*factor/first.Close - 1
	totalReturn := last.AdjClose/first.AdjClose - 1

	var paid float64
	for _, d := range divs {
		paid += d.Amount
	}

	return &ReturnSummary{
		Ticker:               ticker,
		StartDate:            first.Date,
		EndDate:              last.Date,
		StartPrice:           first.Close,
		EndPrice:             last.Close,
		PriceReturn:          priceReturn,
		TotalReturn:          totalReturn,
		DividendContribution: totalReturn - priceReturn,
		DividendsPaid:        paid,
		DividendCount:        len(divs),
		SplitFactor:          factor,
	}, nil
}
