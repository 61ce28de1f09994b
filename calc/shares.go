package calc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/jing2uo/valuedb/database"
	"github.com/jing2uo/valuedb/model"
	"github.com/jing2uo/valuedb/utils"
)

// DefaultStaleAfterDays 约一个报告周期
const DefaultStaleAfterDays = 100

type ShareBasis int

const (
	BasisDiluted ShareBasis = iota
	BasisBasic
)

func (b ShareBasis) String() string {
	if b == BasisBasic {
		return "basic"
	}
	return "diluted"
}

func ParseShareBasis(s string) (ShareBasis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "diluted":
		return BasisDiluted, nil
	case "basic":
		return BasisBasic, nil
	}
	return BasisDiluted, fmt.Errorf("unknown share basis %q (diluted|basic)", s)
}

type ResolvedShares struct {
	Basic   null.Float
	Diluted null.Float
	Record  model.ShareRecord
	// Stale 记录早于估值日超过阈值, 结果仅供参考
	Stale   bool
	AgeDays int
}

// Count 按口径取股本. 稀释口径缺失时回退到基本口径, fellBack 为 true
func (r *ResolvedShares) Count(basis ShareBasis) (count float64, fellBack bool, ok bool) {
	if basis == BasisDiluted {
		if r.Diluted.Valid && r.Diluted.Float64 > 0 {
			return r.Diluted.Float64, false, true
		}
		if r.Basic.Valid && r.Basic.Float64 > 0 {
			return r.Basic.Float64, true, true
		}
		return 0, false, false
	}
	if r.Basic.Valid && r.Basic.Float64 > 0 {
		return r.Basic.Float64, false, true
	}
	return 0, false, false
}

type SharesResolver struct {
	src        database.ShareSource
	now        func() time.Time
	staleAfter int
}

func NewSharesResolver(src database.ShareSource, opts ...Option) *SharesResolver {
	o := newOptions(opts)
	return &SharesResolver{
		src:        src,
		now:        o.now,
		staleAfter: o.staleAfter,
	}
}

// Resolve 返回截至今天的最新股本记录, 与 asOf 无关.
// 复权价已按累计拆股因子回溯调整, 使用 asOf 当时的股本会重复计入拆股.
// asOf 只用于判断记录是否过旧
func (r *SharesResolver) Resolve(ctx context.Context, ticker string, asOf time.Time) (*ResolvedShares, error) {
	today := utils.TruncateDay(r.now())

	rec, err := r.src.LatestShareRecord(ctx, ticker, today)
	if err != nil {
		return nil, fmt.Errorf("load shares for %s: %w", ticker, err)
	}
	if rec == nil {
		return nil, &NoShareDataError{Ticker: ticker}
	}

	age := int(asOf.Sub(rec.Date).Hours() / 24)
	return &ResolvedShares{
		Basic:   rec.SharesBasic,
		Diluted: rec.SharesDiluted,
		Record:  *rec,
		Stale:   age > r.staleAfter,
		AgeDays: age,
	}, nil
}

// Warning 记录过旧时返回包装 ErrStaleShareData 的提示, 否则为 nil. 只用于日志, 不中断计算
func (r *ResolvedShares) Warning() error {
	if !r.Stale {
		return nil
	}
	return fmt.Errorf("%s shares dated %s are %d days old: %w",
		r.Record.Ticker, r.Record.Date.Format("2006-01-02"), r.AgeDays, ErrStaleShareData)
}
