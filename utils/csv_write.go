package utils

import (
	"database/sql/driver"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"time"
)

// CSVWriter 通用 CSV 写入器
type CSVWriter[T any] struct {
	file          io.Closer // 流式写入时为 nil
	writer        *csv.Writer
	headerWritten bool
	columns       []columnInfo
}

type columnInfo struct {
	Index      int    // 字段索引
	HeaderName string // CSV 表头 (来自 col 标签)
	IsTime     bool   // 字段本身是否是 time.Time
	IsPtrTime  bool   // 字段本身是否是 *time.Time
	IsDateType bool   // 是否标记了 type:"date"
}

// NewCSVWriter 初始化
func NewCSVWriter[T any](filename string) (*CSVWriter[T], error) {
	// 1. 创建文件
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	// 2. 初始化 CSV Writer
	w := csv.NewWriter(f)

	// 3. 解析结构体 Tag (只需做一次)
	cols, err := analyzeStructTags[T]()
	if err != nil {
		f.Close()
		return nil, err
	}

	return &CSVWriter[T]{
		file:    f,
		writer:  w,
		columns: cols,
	}, nil
}

// NewCSVStreamWriter 写入已打开的 w (如 stdout), Close 只刷新不关闭 w
func NewCSVStreamWriter[T any](w io.Writer) (*CSVWriter[T], error) {
	cols, err := analyzeStructTags[T]()
	if err != nil {
		return nil, err
	}
	return &CSVWriter[T]{writer: csv.NewWriter(w), columns: cols}, nil
}

// analyzeStructTags 解析 col 和 type 标签
func analyzeStructTags[T any]() ([]columnInfo, error) {
	var t T
	typ := reflect.TypeOf(t)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("generic type T must be a struct")
	}

	var cols []columnInfo
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)

		// 1. 获取 col 标签作为表头
		colTag := field.Tag.Get("col")
		if colTag == "-" {
			continue
		}
		if colTag == "" {
			colTag = field.Name
		}

		// 2. 获取 type 标签
		typeTag := field.Tag.Get("type")
		isDateType := (typeTag == "date") // 标记是否需要转 yyyy-mm-dd

		// 3. 判断是否为 Time 类型
		isTime := field.Type == reflect.TypeOf(time.Time{})
		isPtrTime := field.Type == reflect.TypeOf((*time.Time)(nil))

		cols = append(cols, columnInfo{
			Index:      i,
			HeaderName: colTag,
			IsTime:     isTime,
			IsPtrTime:  isPtrTime,
			IsDateType: isDateType,
		})
	}
	return cols, nil
}

// Write 写入数据
func (cw *CSVWriter[T]) Write(data []T) error {
	if len(data) == 0 {
		return nil
	}

	// 1. 写入表头
	if !cw.headerWritten {
		headers := make([]string, len(cw.columns))
		for i, col := range cw.columns {
			headers[i] = col.HeaderName
		}
		if err := cw.writer.Write(headers); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		cw.headerWritten = true
	}

	// 2. 写入数据行
	record := make([]string, len(cw.columns))
	for _, item := range data {
		val := reflect.ValueOf(item)
		if val.Kind() == reflect.Ptr {
			val = val.Elem()
		}

		for i, col := range cw.columns {
			fieldVal := val.Field(col.Index)

			// --- 日期处理逻辑 ---
			if col.IsTime || col.IsPtrTime {
				var t time.Time
				isValid := false

				// 获取时间对象
				if col.IsTime {
					t = fieldVal.Interface().(time.Time)
					isValid = !t.IsZero()
				} else if !fieldVal.IsNil() {
					t = *fieldVal.Interface().(*time.Time)
					isValid = !t.IsZero()
				}

				if !isValid {
					record[i] = "" // 空时间或 nil 指针留空
				} else {
					// 核心判断：如果 type:"date"，用短格式；否则用默认长格式
					if col.IsDateType {
						record[i] = t.Format("2006-01-02")
					} else {
						record[i] = t.Format(DateTimeLayout)
					}
				}
				continue
			}
			// ------------------

			record[i] = formatValue(fieldVal.Interface(), col.IsDateType)
		}

		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	return nil
}

func (cw *CSVWriter[T]) Close() error {
	cw.writer.Flush()
	err := cw.writer.Error()
	if cw.file == nil {
		if err != nil {
			return fmt.Errorf("failed to flush: %w", err)
		}
		return nil
	}
	if err != nil {
		cw.file.Close()
		return fmt.Errorf("failed to flush: %w", err)
	}
	return cw.file.Close()
}

// formatValue 其他类型通用处理. driver.Valuer (null.Float / null.Time / Flags) 先取驱动值, NULL 留空
func formatValue(v interface{}, isDate bool) string {
	if valuer, ok := v.(driver.Valuer); ok {
		dv, err := valuer.Value()
		if err != nil || dv == nil {
			return ""
		}
		v = dv
	}

	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		if x.IsZero() {
			return ""
		}
		if isDate {
			return x.Format("2006-01-02")
		}
		return x.Format(DateTimeLayout)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
