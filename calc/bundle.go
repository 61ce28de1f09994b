package calc

import (
	"sort"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/jing2uo/valuedb/model"
)

// PremadeBundles 预置组合
var PremadeBundles = map[string][]string{
	"FAANG":             {"META", "AAPL", "AMZN", "NFLX", "GOOGL"},
	"Magnificent 7":     {"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA"},
	"Big Tech":          {"AAPL", "MSFT", "GOOGL", "AMZN", "META"},
	"Chip Makers":       {"NVDA", "AMD", "INTC", "AVGO", "QCOM"},
	"EV & Clean Energy": {"TSLA", "RIVN", "LCID", "NIO", "ENPH"},
	"Streaming":         {"NFLX", "DIS", "WBD", "PARA", "CMCSA"},
}

// LookupBundle 忽略大小写, 空格/下划线/连字符视为相同
func LookupBundle(name string) (string, []string, bool) {
	key := bundleKey(name)
	for n, tickers := range PremadeBundles {
		if bundleKey(n) == key {
			return n, tickers, true
		}
	}
	return "", nil, false
}

func bundleKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}

func BundleNames() []string {
	names := make([]string, 0, len(PremadeBundles))
	for n := range PremadeBundles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// BundleMetrics 某日组合的加总指标. 比率为分量之和相除, 不是成分比率的平均
type BundleMetrics struct {
	Bundle            string     `col:"bundle"              json:"bundle"`
	Date              time.Time  `col:"date"                json:"date"                type:"date"`
	CompanyCount      int        `col:"company_count"       json:"company_count"`
	TotalMarketCap    float64    `col:"total_market_cap"    json:"total_market_cap"`
	TotalEV           float64    `col:"total_ev"            json:"total_ev"`
	TotalNetIncome    float64    `col:"total_net_income"    json:"total_net_income"`
	TotalRevenue      float64    `col:"total_revenue"       json:"total_revenue"`
	TotalEBITDA       float64    `col:"total_ebitda"        json:"total_ebitda"`
	AggregatePE       null.Float `col:"aggregate_pe"        json:"aggregate_pe"`
	AggregatePS       null.Float `col:"aggregate_ps"        json:"aggregate_ps"`
	AggregateEVRev    null.Float `col:"aggregate_ev_revenue" json:"aggregate_ev_revenue"`
	AggregateEVEBITDA null.Float `col:"aggregate_ev_ebitda" json:"aggregate_ev_ebitda"`
	NetMargin         null.Float `col:"net_margin"          json:"net_margin"`
}

// pairSum 只累加分子分母都存在的成分
type pairSum struct{ num, den float64 }

func (p *pairSum) add(num, den null.Float) {
	if num.Valid && den.Valid {
		p.num += num.Float64
		p.den += den.Float64
	}
}

func (p pairSum) ratio() null.Float {
	if p.den <= 0 {
		return null.Float{}
	}
	return null.FloatFrom(p.num / p.den)
}

// AggregateBundle 按日期加总快照
func AggregateBundle(name string, snaps []model.ValuationSnapshot) []BundleMetrics {
	byDate := make(map[time.Time][]model.ValuationSnapshot)
	for _, s := range snaps {
		byDate[s.Date] = append(byDate[s.Date], s)
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make([]BundleMetrics, 0, len(dates))
	for _, d := range dates {
		m := BundleMetrics{Bundle: name, Date: d, CompanyCount: len(byDate[d])}
		var pe, ps, evRev, evEbitda, margin pairSum

		for _, s := range byDate[d] {
			m.TotalMarketCap += s.MarketCap.Float64
			m.TotalEV += s.EnterpriseValue.Float64
			m.TotalNetIncome += s.NetIncomeTTM.Float64
			m.TotalRevenue += s.RevenueTTM.Float64
			m.TotalEBITDA += s.EBITDATTM.Float64

			pe.add(s.MarketCap, s.NetIncomeTTM)
			ps.add(s.MarketCap, s.RevenueTTM)
			evRev.add(s.EnterpriseValue, s.RevenueTTM)
			evEbitda.add(s.EnterpriseValue, s.EBITDATTM)
			margin.add(s.NetIncomeTTM, s.RevenueTTM)
		}

		m.AggregatePE = pe.ratio()
		m.AggregatePS = ps.ratio()
		m.AggregateEVRev = evRev.ratio()
		m.AggregateEVEBITDA = evEbitda.ratio()
		m.NetMargin = margin.ratio()
		out = append(out, m)
	}
	return out
}
