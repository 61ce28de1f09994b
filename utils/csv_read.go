package utils

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"
)

var (
	timeType      = reflect.TypeOf(time.Time{})
	nullFloatType = reflect.TypeOf(null.Float{})
	nullIntType   = reflect.TypeOf(null.Int{})
	nullTimeType  = reflect.TypeOf(null.Time{})
	scannerType   = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

// ReadCSV 读取带表头的 CSV, 按 col 标签映射到 T. 表头中未知的列被忽略, 缺失的字段保留零值
func ReadCSV[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := DecodeCSV[T](f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

func DecodeCSV[T any](r io.Reader) ([]T, error) {
	cols, err := analyzeStructTags[T]()
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// 表头位置 -> 字段
	byName := make(map[string]columnInfo, len(cols))
	for _, c := range cols {
		byName[strings.ToLower(c.HeaderName)] = c
	}
	mapping := make([]*columnInfo, len(header))
	for i, h := range header {
		if c, ok := byName[strings.ToLower(strings.TrimSpace(h))]; ok {
			mapping[i] = &c
		}
	}

	var out []T
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var item T
		v := reflect.ValueOf(&item).Elem()
		for i, raw := range record {
			if i >= len(mapping) || mapping[i] == nil {
				continue
			}
			col := mapping[i]
			if err := setField(v.Field(col.Index), strings.TrimSpace(raw)); err != nil {
				return nil, fmt.Errorf("line %d, column %s: %w", line, col.HeaderName, err)
			}
		}
		out = append(out, item)
	}
	return out, nil
}

func setField(f reflect.Value, raw string) error {
	switch f.Type() {
	case timeType:
		if raw == "" {
			return nil
		}
		t, err := parseTimestamp(raw)
		if err != nil {
			return err
		}
		f.Set(reflect.ValueOf(t))
		return nil
	case nullTimeType:
		if raw == "" {
			return nil
		}
		t, err := parseTimestamp(raw)
		if err != nil {
			return err
		}
		f.Set(reflect.ValueOf(null.TimeFrom(t)))
		return nil
	case nullFloatType:
		if raw == "" {
			return nil
		}
		x, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		f.Set(reflect.ValueOf(null.FloatFrom(x)))
		return nil
	case nullIntType:
		if raw == "" {
			return nil
		}
		x, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		f.Set(reflect.ValueOf(null.IntFrom(x)))
		return nil
	}

	if reflect.PointerTo(f.Type()).Implements(scannerType) {
		return f.Addr().Interface().(sql.Scanner).Scan(raw)
	}

	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Float64, reflect.Float32:
		if raw == "" {
			return nil
		}
		x, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		f.SetFloat(x)
	case reflect.Int, reflect.Int64, reflect.Int32:
		if raw == "" {
			return nil
		}
		// 兼容 "2023.0" 形式的整数
		x, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			fx, ferr := strconv.ParseFloat(raw, 64)
			if ferr != nil {
				return err
			}
			x = int64(fx)
		}
		f.SetInt(x)
	case reflect.Bool:
		if raw == "" {
			return nil
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		f.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type %s", f.Type())
	}
	return nil
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range []string{DateLayout, DateTimeLayout, time.RFC3339, "20060102"} {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}
