package model

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"strings"
)

// Flag 数据质量标记. 带标记的快照仍然是有效结果
type Flag string

const (
	FlagStaleShares          Flag = "stale_shares"
	FlagNoShares             Flag = "no_shares"
	FlagBasicSharesFallback  Flag = "basic_shares_fallback"
	FlagUnadjustedPrice      Flag = "unadjusted_price"
	FlagShareJumpUnexplained Flag = "share_jump_unexplained"
	FlagNegativeEarnings     Flag = "negative_earnings"
	FlagNonPositiveEquity    Flag = "non_positive_equity"
	FlagDebtAssumedZero      Flag = "debt_assumed_zero"
	FlagCashAssumedZero      Flag = "cash_assumed_zero"
	FlagTaxRateDefaulted     Flag = "tax_rate_defaulted"
)

// InsufficientFlag 标记某个 TTM 指标因季度不足而为空
func InsufficientFlag(metric string) Flag {
	return Flag("insufficient_" + metric)
}

type Flags []Flag

// Add 去重追加
func (f *Flags) Add(flag Flag) {
	if f.Has(flag) {
		return
	}
	*f = append(*f, flag)
}

func (f Flags) Has(flag Flag) bool {
	for _, x := range f {
		if x == flag {
			return true
		}
	}
	return false
}

func (f Flags) String() string {
	parts := make([]string, len(f))
	for i, x := range f {
		parts[i] = string(x)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// Value 以逗号拼接存储
func (f Flags) Value() (driver.Value, error) {
	return f.String(), nil
}

func (f *Flags) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case nil:
		*f = nil
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Flags", src)
	}
	*f = ParseFlags(s)
	return nil
}

func ParseFlags(s string) Flags {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out Flags
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out.Add(Flag(p))
		}
	}
	return out
}
