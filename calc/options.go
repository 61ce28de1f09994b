package calc

import "time"

// DefaultTaxRate 无法从财报推算有效税率时使用
const DefaultTaxRate = 0.21

type options struct {
	now        func() time.Time
	staleAfter int
	basis      ShareBasis
	taxRate    float64
	runID      string
}

// Option 配置 SharesResolver 与 Calculator
type Option func(*options)

func newOptions(opts []Option) options {
	o := options{
		now:        time.Now,
		staleAfter: DefaultStaleAfterDays,
		basis:      BasisDiluted,
		taxRate:    DefaultTaxRate,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock 替换 "今天" 的来源, 用于测试
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func WithStaleAfter(days int) Option {
	return func(o *options) {
		if days > 0 {
			o.staleAfter = days
		}
	}
}

func WithShareBasis(b ShareBasis) Option {
	return func(o *options) { o.basis = b }
}

func WithDefaultTaxRate(rate float64) Option {
	return func(o *options) {
		if rate >= 0 && rate <= 1 {
			o.taxRate = rate
		}
	}
}

func WithRunID(id string) Option {
	return func(o *options) { o.runID = id }
}
