package model

import (
	"sort"
	"strings"
	"time"
)

type FiscalPeriod string

const (
	Q1 FiscalPeriod = "Q1"
	Q2 FiscalPeriod = "Q2"
	Q3 FiscalPeriod = "Q3"
	Q4 FiscalPeriod = "Q4"
	FY FiscalPeriod = "FY"
)

func (p FiscalPeriod) IsQuarter() bool {
	switch p {
	case Q1, Q2, Q3, Q4:
		return true
	}
	return false
}

// FactKind 时点 (资产负债表) 或区间 (利润表/现金流量表)
type FactKind int

const (
	KindFlow FactKind = iota
	KindInstant
)

func (k FactKind) String() string {
	if k == KindInstant {
		return "instant"
	}
	return "flow"
}

func (f FinancialFact) Kind() FactKind {
	if f.Instant {
		return KindInstant
	}
	return KindFlow
}

func (f FinancialFact) Period() FiscalPeriod {
	return FiscalPeriod(strings.ToUpper(strings.TrimSpace(f.FiscalPeriod)))
}

// Days 返回区间长度 (含首尾), 起始日未知时返回 0
func (f FinancialFact) Days() int {
	if !f.PeriodStart.Valid {
		return 0
	}
	return int(f.PeriodEnd.Sub(f.PeriodStart.Time).Hours()/24) + 1
}

// IsQuarterLength 起始日未知时按 fiscal_period 判断
func (f FinancialFact) IsQuarterLength() bool {
	d := f.Days()
	if d == 0 {
		return f.Period().IsQuarter()
	}
	return d >= 70 && d <= 105
}

func (f FinancialFact) IsYearLength() bool {
	d := f.Days()
	if d == 0 {
		return f.Period() == FY
	}
	return d >= 340 && d <= 380
}

var perShareConcepts = map[string]bool{}

func init() {
	for _, c := range []string{
		"EarningsPerShareBasic",
		"EarningsPerShareDiluted",
		"EarningsPerShareBasicAndDiluted",
		"BookValuePerShare",
		"CommonStockDividendsPerShareDeclared",
		"CommonStockDividendsPerShareCashPaid",
	} {
		perShareConcepts[c] = true
	}
}

// IsPerShareConcept 报告 concept/unit 是否为每股口径. 旧财报中的每股数据不随拆股回溯调整
func IsPerShareConcept(concept, unit string) bool {
	if perShareConcepts[concept] {
		return true
	}
	if strings.Contains(concept, "PerShare") {
		return true
	}
	return strings.Contains(strings.ToLower(unit), "/shares")
}

type factKey struct {
	ticker  string
	concept string
	start   time.Time
	end     time.Time
	period  FiscalPeriod
}

// SupersedeFacts 按 (ticker, concept, period_start, period_end, fiscal_period) 去重, 保留最晚申报的一条;
// 结果按 period_end 降序. 重述只替换, 不合并.
// 同一份 10-Q 会同时给出三个月与年初至今的数值, 两者期末与 fiscal_period 相同, 以起始日区分
func SupersedeFacts(facts []FinancialFact) []FinancialFact {
	latest := make(map[factKey]FinancialFact, len(facts))
	for _, f := range facts {
		k := factKey{f.Ticker, f.Concept, f.PeriodStart.Time, f.PeriodEnd, f.Period()}
		cur, ok := latest[k]
		if !ok || f.Filed.After(cur.Filed) || (f.Filed.Equal(cur.Filed) && f.Accession > cur.Accession) {
			latest[k] = f
		}
	}

	out := make([]FinancialFact, 0, len(latest))
	for _, f := range latest {
		out = append(out, f)
	}
	SortFactsDesc(out)
	return out
}

// SortFactsDesc 按 period_end 降序, 同日 FY 排在季度之后
func SortFactsDesc(facts []FinancialFact) {
	sort.SliceStable(facts, func(i, j int) bool {
		if !facts[i].PeriodEnd.Equal(facts[j].PeriodEnd) {
			return facts[i].PeriodEnd.After(facts[j].PeriodEnd)
		}
		return periodOrder(facts[i].Period()) < periodOrder(facts[j].Period())
	})
}

func periodOrder(p FiscalPeriod) int {
	switch p {
	case Q1, Q2, Q3, Q4:
		return 0
	case FY:
		return 1
	}
	return 2
}
