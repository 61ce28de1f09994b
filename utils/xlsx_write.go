package utils

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"time"

	"github.com/xuri/excelize/v2"
)

// XLSXWriter 按 col 标签把结构体写入单个工作表
type XLSXWriter[T any] struct {
	filename string
	sheet    string
	file     *excelize.File
	columns  []columnInfo
	nextRow  int
}

func NewXLSXWriter[T any](filename, sheet string) (*XLSXWriter[T], error) {
	cols, err := analyzeStructTags[T]()
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		idx, err := f.NewSheet(sheet)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet: %w", err)
		}
		f.SetActiveSheet(idx)
		if err := f.DeleteSheet("Sheet1"); err != nil {
			f.Close()
			return nil, err
		}
	}

	w := &XLSXWriter[T]{filename: filename, sheet: sheet, file: f, columns: cols, nextRow: 1}

	header := make([]interface{}, len(cols))
	for i, c := range cols {
		header[i] = c.HeaderName
	}
	if err := w.writeRow(header); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *XLSXWriter[T]) writeRow(values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, w.nextRow)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", w.nextRow, err)
	}
	w.nextRow++
	return nil
}

func (w *XLSXWriter[T]) Write(data []T) error {
	for _, item := range data {
		val := reflect.ValueOf(item)
		if val.Kind() == reflect.Ptr {
			val = val.Elem()
		}

		row := make([]interface{}, len(w.columns))
		for i, col := range w.columns {
			row[i] = cellValue(val.Field(col.Index).Interface(), col.IsDateType)
		}
		if err := w.writeRow(row); err != nil {
			return err
		}
	}
	return nil
}

// Close 保存并关闭
func (w *XLSXWriter[T]) Close() error {
	if err := w.file.SaveAs(w.filename); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to save %s: %w", w.filename, err)
	}
	return w.file.Close()
}

// cellValue 数值保持为数字, 日期与其他类型转为文本, NULL 为空单元格
func cellValue(v interface{}, isDate bool) interface{} {
	if valuer, ok := v.(driver.Valuer); ok {
		dv, err := valuer.Value()
		if err != nil || dv == nil {
			return nil
		}
		v = dv
	}
	switch x := v.(type) {
	case float64, int64, int, bool:
		return x
	case time.Time:
		return formatValue(x, isDate)
	default:
		return fmt.Sprint(x)
	}
}
