package calc

import (
	"sort"
	"time"

	"github.com/jing2uo/valuedb/model"
	"github.com/shopspring/decimal"
)

const (
	day = 24 * time.Hour
	// 相邻季度首尾允许的误差 (52/53 周财年)
	abutTolerance = 7 * day
	// 起始日未知时, 相邻季度期末间隔范围
	minQuarterGap = 80 * day
	maxQuarterGap = 100 * day
)

// trailing TTM 计算结果, End 为窗口最后一个期末
type trailing struct {
	Value float64
	End   time.Time
}

// TrailingTwelveMonths 用四个连续季度求和得到 TTM.
// FY 有同年 Q1-Q3 且缺少 Q4 时, 推导 Q4 = FY - (Q1+Q2+Q3); 年报只通过推导的 Q4 参与计算.
// 不足四个季度时返回 ErrInsufficientFactData, 不做部分求和
func TrailingTwelveMonths(facts []model.FinancialFact, asOf time.Time) (float64, error) {
	res, err := trailingTwelveMonths("", facts, asOf)
	if err != nil {
		return 0, err
	}
	return res.Value, nil
}

func trailingTwelveMonths(concept string, facts []model.FinancialFact, asOf time.Time) (trailing, error) {
	// 1. 重述去重, 只保留截至 asOf 的区间数据
	var flows []model.FinancialFact
	for _, f := range model.SupersedeFacts(facts) {
		if f.Kind() == model.KindFlow && !f.PeriodEnd.After(asOf) {
			flows = append(flows, f)
		}
	}

	// 2. 拆分季度与年度, 半年/九个月累计值丢弃
	var quarters, annuals []model.FinancialFact
	for _, f := range flows {
		switch {
		case isQuarterFact(f):
			quarters = append(quarters, f)
		case isAnnualFact(f):
			annuals = append(annuals, f)
		}
	}
	quarters = dedupeByEnd(quarters)

	// 3. 推导 Q4
	var derived []model.FinancialFact
	for _, fy := range annuals {
		if q4, ok := deriveQ4(fy, quarters); ok {
			derived = append(derived, q4)
		}
	}
	quarters = append(quarters, derived...)
	sort.SliceStable(quarters, func(i, j int) bool {
		return quarters[i].PeriodEnd.After(quarters[j].PeriodEnd)
	})

	if len(quarters) == 0 {
		return trailing{}, &InsufficientFactDataError{Concept: concept}
	}

	// 4. 从最新季度向前连续取四个
	chain := []model.FinancialFact{quarters[0]}
	for _, q := range quarters[1:] {
		if len(chain) == 4 {
			break
		}
		if abuts(chain[len(chain)-1], q) {
			chain = append(chain, q)
		}
	}
	if len(chain) < 4 {
		return trailing{}, &InsufficientFactDataError{Concept: concept, Quarters: len(chain)}
	}

	// 5. 精确求和
	sum := decimal.Zero
	for _, q := range chain {
		sum = sum.Add(decimal.NewFromFloat(q.Value))
	}
	return trailing{Value: sum.InexactFloat64(), End: chain[0].PeriodEnd}, nil
}

func isQuarterFact(f model.FinancialFact) bool {
	if f.PeriodStart.Valid {
		return f.IsQuarterLength()
	}
	return f.Period().IsQuarter()
}

func isAnnualFact(f model.FinancialFact) bool {
	if f.PeriodStart.Valid {
		return f.IsYearLength()
	}
	return f.Period() == model.FY
}

// dedupeByEnd 同一期末只保留最晚申报的一条 (10-K 中的三个月数据可能与 Q4 同时存在)
func dedupeByEnd(quarters []model.FinancialFact) []model.FinancialFact {
	byEnd := make(map[time.Time]model.FinancialFact, len(quarters))
	for _, q := range quarters {
		cur, ok := byEnd[q.PeriodEnd]
		if !ok || q.Filed.After(cur.Filed) {
			byEnd[q.PeriodEnd] = q
		}
	}
	out := make([]model.FinancialFact, 0, len(byEnd))
	for _, q := range byEnd {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodEnd.After(out[j].PeriodEnd) })
	return out
}

// abuts 报告 older 是否紧接在 newer 之前
func abuts(newer, older model.FinancialFact) bool {
	if !older.PeriodEnd.Before(newer.PeriodEnd) {
		return false
	}
	if newer.PeriodStart.Valid {
		expected := newer.PeriodStart.Time.Add(-day)
		diff := older.PeriodEnd.Sub(expected)
		return diff <= abutTolerance && diff >= -abutTolerance
	}
	gap := newer.PeriodEnd.Sub(older.PeriodEnd)
	return gap >= minQuarterGap && gap <= maxQuarterGap
}

// deriveQ4 在 FY 期末没有季度数据时, 用其前三个连续季度推导 Q4
func deriveQ4(fy model.FinancialFact, quarters []model.FinancialFact) (model.FinancialFact, bool) {
	var before []model.FinancialFact
	for _, q := range quarters {
		d := fy.PeriodEnd.Sub(q.PeriodEnd)
		if d < abutTolerance && d > -abutTolerance {
			// 已有 Q4
			return model.FinancialFact{}, false
		}
		if q.PeriodEnd.Before(fy.PeriodEnd) {
			before = append(before, q)
		}
	}

	// Q3 期末在 FY 期末前约三个月
	var q3 *model.FinancialFact
	for i := range before {
		gap := fy.PeriodEnd.Sub(before[i].PeriodEnd)
		if gap >= minQuarterGap && gap <= maxQuarterGap {
			q3 = &before[i]
			break
		}
	}
	if q3 == nil {
		return model.FinancialFact{}, false
	}

	chain := []model.FinancialFact{*q3}
	for _, q := range before {
		if len(chain) == 3 {
			break
		}
		if abuts(chain[len(chain)-1], q) {
			chain = append(chain, q)
		}
	}
	if len(chain) < 3 {
		return model.FinancialFact{}, false
	}

	// Q1 须从财年开始
	q1 := chain[2]
	if fy.PeriodStart.Valid && q1.PeriodStart.Valid {
		d := q1.PeriodStart.Time.Sub(fy.PeriodStart.Time)
		if d > abutTolerance || d < -abutTolerance {
			return model.FinancialFact{}, false
		}
	}

	q4 := decimal.NewFromFloat(fy.Value)
	for _, q := range chain {
		q4 = q4.Sub(decimal.NewFromFloat(q.Value))
	}

	derived := fy
	derived.Value = q4.InexactFloat64()
	derived.FiscalPeriod = string(model.Q4)
	derived.PeriodStart.SetValid(q3.PeriodEnd.Add(day))
	return derived, true
}
