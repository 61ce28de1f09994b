package calc

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoPriceData 估值日及之前没有任何行情, 唯一导致单元放弃计算的错误
	ErrNoPriceData = errors.New("no price data")
	// ErrNoShareData 该代码没有任何股本记录
	ErrNoShareData = errors.New("no share data")
	// ErrInsufficientFactData 不足四个连续季度, TTM 为空
	ErrInsufficientFactData = errors.New("insufficient fact data")
	// ErrPerShareConcept 每股口径的财报数据不参与聚合
	ErrPerShareConcept = errors.New("per-share concept not allowed")
	// ErrStaleShareData 股本记录过旧, 只以 stale_shares 标记与 ResolvedShares.Warning 体现, 不会中断计算
	ErrStaleShareData = errors.New("stale share data")
	// ErrInsufficientPrices 区间内行情少于两条
	ErrInsufficientPrices = errors.New("insufficient prices")
)

type NoPriceDataError struct {
	Ticker string
	AsOf   time.Time
}

func (e *NoPriceDataError) Error() string {
	return fmt.Sprintf("%s: no price on or before %s", e.Ticker, e.AsOf.Format("2006-01-02"))
}

func (e *NoPriceDataError) Unwrap() error { return ErrNoPriceData }

type NoShareDataError struct {
	Ticker string
}

func (e *NoShareDataError) Error() string {
	return fmt.Sprintf("%s: no share records", e.Ticker)
}

func (e *NoShareDataError) Unwrap() error { return ErrNoShareData }

type InsufficientFactDataError struct {
	Concept  string
	Quarters int // 找到的连续季度数
}

func (e *InsufficientFactDataError) Error() string {
	return fmt.Sprintf("%s: only %d contiguous quarters", e.Concept, e.Quarters)
}

func (e *InsufficientFactDataError) Unwrap() error { return ErrInsufficientFactData }
