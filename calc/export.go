package calc

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jing2uo/valuedb/model"
	"github.com/jing2uo/valuedb/utils"
)

// SnapshotRow Parquet 导出用的扁平行, 空值为 nil
type SnapshotRow struct {
	Ticker          string   `parquet:"ticker,dict"`
	Date            string   `parquet:"date"`
	Price           float64  `parquet:"price"`
	PriceDate       string   `parquet:"price_date"`
	Shares          *float64 `parquet:"shares,optional"`
	SharesDate      *string  `parquet:"shares_date,optional"`
	MarketCap       *float64 `parquet:"market_cap,optional"`
	EnterpriseValue *float64 `parquet:"enterprise_value,optional"`
	PERatio         *float64 `parquet:"pe_ratio,optional"`
	PSRatio         *float64 `parquet:"ps_ratio,optional"`
	PBRatio         *float64 `parquet:"pb_ratio,optional"`
	EVRevenue       *float64 `parquet:"ev_revenue,optional"`
	EVEBITDA        *float64 `parquet:"ev_ebitda,optional"`
	EVEBIT          *float64 `parquet:"ev_ebit,optional"`
	GrossMargin     *float64 `parquet:"gross_margin,optional"`
	OperatingMargin *float64 `parquet:"operating_margin,optional"`
	NetMargin       *float64 `parquet:"net_margin,optional"`
	EBITDAMargin    *float64 `parquet:"ebitda_margin,optional"`
	ROE             *float64 `parquet:"roe,optional"`
	ROA             *float64 `parquet:"roa,optional"`
	ROIC            *float64 `parquet:"roic,optional"`
	RevenueGrowth   *float64 `parquet:"revenue_growth,optional"`
	EarningsGrowth  *float64 `parquet:"earnings_growth,optional"`
	RevenueTTM      *float64 `parquet:"revenue_ttm,optional"`
	NetIncomeTTM    *float64 `parquet:"net_income_ttm,optional"`
	EBITDATTM       *float64 `parquet:"ebitda_ttm,optional"`
	Flags           string   `parquet:"flags"`
	RunID           string   `parquet:"run_id,dict"`
	ComputedAt      string   `parquet:"computed_at"`
}

func NewSnapshotRow(s model.ValuationSnapshot) SnapshotRow {
	row := SnapshotRow{
		Ticker:          s.Ticker,
		Date:            s.Date.Format(utils.DateLayout),
		Price:           s.Price,
		PriceDate:       s.PriceDate.Format(utils.DateLayout),
		Shares:          s.Shares.Ptr(),
		MarketCap:       s.MarketCap.Ptr(),
		EnterpriseValue: s.EnterpriseValue.Ptr(),
		PERatio:         s.PERatio.Ptr(),
		PSRatio:         s.PSRatio.Ptr(),
		PBRatio:         s.PBRatio.Ptr(),
		EVRevenue:       s.EVRevenue.Ptr(),
		EVEBITDA:        s.EVEBITDA.Ptr(),
		EVEBIT:          s.EVEBIT.Ptr(),
		GrossMargin:     s.GrossMargin.Ptr(),
		OperatingMargin: s.OperatingMargin.Ptr(),
		NetMargin:       s.NetMargin.Ptr(),
		EBITDAMargin:    s.EBITDAMargin.Ptr(),
		ROE:             s.ROE.Ptr(),
		ROA:             s.ROA.Ptr(),
		ROIC:            s.ROIC.Ptr(),
		RevenueGrowth:   s.RevenueGrowth.Ptr(),
		EarningsGrowth:  s.EarningsGrowth.Ptr(),
		RevenueTTM:      s.RevenueTTM.Ptr(),
		NetIncomeTTM:    s.NetIncomeTTM.Ptr(),
		EBITDATTM:       s.EBITDATTM.Ptr(),
		Flags:           s.Flags.String(),
		RunID:           s.RunID,
		ComputedAt:      s.ComputedAt.UTC().Format(utils.DateTimeLayout),
	}
	if s.SharesDate.Valid {
		d := s.SharesDate.Time.Format(utils.DateLayout)
		row.SharesDate = &d
	}
	return row
}

// ExportFormat 从 format 或文件扩展名推断
func ExportFormat(path, format string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "" {
		f = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch f {
	case "csv", "parquet", "xlsx":
		return f, nil
	case "":
		return "csv", nil
	}
	return "", fmt.Errorf("unsupported export format %q (csv|parquet|xlsx)", f)
}

// ExportSnapshots 将快照写入 path, 返回写入行数
func ExportSnapshots(snaps []model.ValuationSnapshot, path, format string) (int, error) {
	f, err := ExportFormat(path, format)
	if err != nil {
		return 0, err
	}

	switch f {
	case "parquet":
		w, err := utils.NewParquetWriter[SnapshotRow](path)
		if err != nil {
			return 0, err
		}
		rows := make([]SnapshotRow, len(snaps))
		for i, s := range snaps {
			rows[i] = NewSnapshotRow(s)
		}
		if err := w.Write(rows); err != nil {
			w.Close()
			return 0, fmt.Errorf("write parquet: %w", err)
		}
		return int(w.Rows()), w.Close()

	case "xlsx":
		w, err := utils.NewXLSXWriter[model.ValuationSnapshot](path, "snapshots")
		if err != nil {
			return 0, err
		}
		if err := w.Write(snaps); err != nil {
			w.Close()
			return 0, err
		}
		return len(snaps), w.Close()

	default:
		w, err := utils.NewCSVWriter[model.ValuationSnapshot](path)
		if err != nil {
			return 0, err
		}
		if err := w.Write(snaps); err != nil {
			w.Close()
			return 0, err
		}
		return len(snaps), w.Close()
	}
}
