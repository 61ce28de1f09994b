package model

import (
	"time"

	"github.com/guregu/null/v6"
)

// --- 结构体定义 (Schema) ---

// PricePoint 日线行情. AdjClose 已按累计拆股/分红因子回溯调整, Close 为原始收盘价
type PricePoint struct {
	Ticker   string    `col:"ticker"    json:"ticker"`
	Date     time.Time `col:"date"      json:"date"      type:"date"`
	Close    float64   `col:"close"     json:"close"`
	AdjClose float64   `col:"adj_close" json:"adj_close"`
	Volume   int64     `col:"volume"    json:"volume"`
}

// SplitEvent 拆股. Ratio > 1 为正向拆股, 0 < Ratio < 1 为合股
type SplitEvent struct {
	Ticker string    `col:"ticker" json:"ticker"`
	Date   time.Time `col:"date"   json:"date"   type:"date"`
	Ratio  float64   `col:"ratio"  json:"ratio"`
}

type DividendEvent struct {
	Ticker  string    `col:"ticker"   json:"ticker"`
	ExDate  time.Time `col:"ex_date"  json:"ex_date"  type:"date"`
	PayDate null.Time `col:"pay_date" json:"pay_date" type:"date"`
	Amount  float64   `col:"amount"   json:"amount"`
	Type    string    `col:"type"     json:"type"`
}

// ShareRecord 股本记录. 同一日期可能有多个来源, 见 ShareSource
type ShareRecord struct {
	Ticker        string     `col:"ticker"         json:"ticker"`
	Date          time.Time  `col:"date"           json:"date"          type:"date"`
	SharesBasic   null.Float `col:"shares_basic"   json:"shares_basic"`
	SharesDiluted null.Float `col:"shares_diluted" json:"shares_diluted"`
	Source        string     `col:"source"         json:"source"`
	Lineage       string     `col:"lineage"        json:"lineage"`
}

// FinancialFact 财报事实 (XBRL). Instant=true 表示期末时点余额, 否则为区间流量
type FinancialFact struct {
	Ticker       string    `col:"ticker"        json:"ticker"`
	CIK          string    `col:"cik"           json:"cik"`
	Taxonomy     string    `col:"taxonomy"      json:"taxonomy"`
	Concept      string    `col:"concept"       json:"concept"`
	Value        float64   `col:"value"         json:"value"`
	Unit         string    `col:"unit"          json:"unit"`
	PeriodStart  null.Time `col:"period_start"  json:"period_start"  type:"date"`
	PeriodEnd    time.Time `col:"period_end"    json:"period_end"    type:"date"`
	FiscalYear   int       `col:"fiscal_year"   json:"fiscal_year"`
	FiscalPeriod string    `col:"fiscal_period" json:"fiscal_period"`
	Instant      bool      `col:"instant"       json:"instant"`
	Form         string    `col:"form"          json:"form"`
	Filed        time.Time `col:"filed"         json:"filed"         type:"date"`
	Accession    string    `col:"accession"     json:"accession"`
}

// ValuationSnapshot 某 (ticker, date) 的估值快照. 可随时由原始数据重算, 不是事实来源
type ValuationSnapshot struct {
	Ticker    string     `col:"ticker"     json:"ticker"`
	Date      time.Time  `col:"date"       json:"date"       type:"date"`
	Price     float64    `col:"price"      json:"price"`
	PriceDate time.Time  `col:"price_date" json:"price_date" type:"date"`
	Shares    null.Float `col:"shares"     json:"shares"`
	// 股本记录日期, 可能晚于 Date (始终使用最新股本)
	SharesDate null.Time `col:"shares_date" json:"shares_date" type:"date"`

	MarketCap       null.Float `col:"market_cap"       json:"market_cap"`
	EnterpriseValue null.Float `col:"enterprise_value" json:"enterprise_value"`

	PERatio   null.Float `col:"pe_ratio"   json:"pe_ratio"`
	PSRatio   null.Float `col:"ps_ratio"   json:"ps_ratio"`
	PBRatio   null.Float `col:"pb_ratio"   json:"pb_ratio"`
	EVRevenue null.Float `col:"ev_revenue" json:"ev_revenue"`
	EVEBITDA  null.Float `col:"ev_ebitda"  json:"ev_ebitda"`
	EVEBIT    null.Float `col:"ev_ebit"    json:"ev_ebit"`

	GrossMargin     null.Float `col:"gross_margin"     json:"gross_margin"`
	OperatingMargin null.Float `col:"operating_margin" json:"operating_margin"`
	NetMargin       null.Float `col:"net_margin"       json:"net_margin"`
	EBITDAMargin    null.Float `col:"ebitda_margin"    json:"ebitda_margin"`
	ROE             null.Float `col:"roe"              json:"roe"`
	ROA             null.Float `col:"roa"              json:"roa"`
	ROIC            null.Float `col:"roic"             json:"roic"`

	RevenueGrowth  null.Float `col:"revenue_growth"  json:"revenue_growth"`
	EarningsGrowth null.Float `col:"earnings_growth" json:"earnings_growth"`

	// 计算分量, 供组合加总使用
	RevenueTTM         null.Float `col:"revenue_ttm"          json:"revenue_ttm"`
	NetIncomeTTM       null.Float `col:"net_income_ttm"       json:"net_income_ttm"`
	OperatingIncomeTTM null.Float `col:"operating_income_ttm" json:"operating_income_ttm"`
	EBITDATTM          null.Float `col:"ebitda_ttm"           json:"ebitda_ttm"`
	TotalEquity        null.Float `col:"total_equity"         json:"total_equity"`
	TotalDebt          null.Float `col:"total_debt"           json:"total_debt"`
	Cash               null.Float `col:"cash"                 json:"cash"`
	TotalAssets        null.Float `col:"total_assets"         json:"total_assets"`

	Flags      Flags     `col:"flags"       json:"flags"`
	RunID      string    `col:"run_id"      json:"run_id"`
	ComputedAt time.Time `col:"computed_at" json:"computed_at"`
}

// --- 表结构元数据 (TableMeta) ---

var TablePrices = SchemaFromStruct(
	"raw_prices_daily",
	PricePoint{},
	[]string{"ticker", "date"},
)

var TableSplits = SchemaFromStruct(
	"raw_splits",
	SplitEvent{},
	[]string{"ticker", "date"},
)

var TableDividends = SchemaFromStruct(
	"raw_dividends",
	DividendEvent{},
	[]string{"ticker", "ex_date"},
)

var TableShares = SchemaFromStruct(
	"raw_shares",
	ShareRecord{},
	[]string{"ticker", "date"},
)

var TableFacts = SchemaFromStruct(
	"raw_financial_facts",
	FinancialFact{},
	[]string{"ticker", "concept", "period_end"},
)

var TableSnapshots = UniqueSchemaFromStruct(
	"valuation_snapshots",
	ValuationSnapshot{},
	[]string{"ticker", "date"},
)
