package model

import "strings"

// ShareSource 股本来源, 数值越小优先级越高
type ShareSource int

const (
	ShareSourceFiling ShareSource = iota // 10-K / 10-Q 等监管文件
	ShareSourceFeed                      // 行情数据源
	ShareSourceOther
)

func (s ShareSource) String() string {
	switch s {
	case ShareSourceFiling:
		return "filing"
	case ShareSourceFeed:
		return "feed"
	default:
		return "other"
	}
}

var (
	filingForms = []string{"10-K", "10-Q", "20-F", "40-F", "6-K", "8-K", "FILING", "SEC"}
	feedNames   = []string{"YAHOO", "FEED", "POLYGON", "EODHD", "MARKET", "ALPHAVANTAGE"}
)

// ClassifyShareSource 将 ShareRecord.Source 归类
func ClassifyShareSource(source string) ShareSource {
	s := strings.ToUpper(strings.TrimSpace(source))
	if s == "" {
		return ShareSourceOther
	}
	for _, f := range filingForms {
		if strings.HasPrefix(s, f) {
			return ShareSourceFiling
		}
	}
	for _, f := range feedNames {
		if strings.HasPrefix(s, f) {
			return ShareSourceFeed
		}
	}
	return ShareSourceOther
}

func (r ShareRecord) SourceRank() ShareSource {
	return ClassifyShareSource(r.Source)
}

// PreferShareRecord 报告 a 是否优于 b: 日期更新者优先, 同日按来源优先级, 再按 lineage 字典序
func PreferShareRecord(a, b ShareRecord) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}
	ra, rb := a.SourceRank(), b.SourceRank()
	if ra != rb {
		return ra < rb
	}
	return a.Lineage < b.Lineage
}

// PickShareRecord 从一组记录中选出最优者
func PickShareRecord(records []ShareRecord) (ShareRecord, bool) {
	if len(records) == 0 {
		return ShareRecord{}, false
	}
	best := records[0]
	for _, r := range records[1:] {
		if PreferShareRecord(r, best) {
			best = r
		}
	}
	return best, true
}
