package model

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/guregu/null/v6"
)

type DataType int

const (
	TypeString DataType = iota
	TypeFloat64
	TypeInt64
	TypeBool
	TypeDate     // YYYY-MM-DD
	TypeDateTime // YYYY-MM-DD HH:MM:SS
)

type Column struct {
	Name     string
	Type     DataType
	Nullable bool
}

type TableMeta struct {
	TableName  string
	Columns    []Column
	OrderByKey []string
	// Unique 为 true 时 OrderByKey 同时是主键, 写入按键覆盖
	Unique bool
}

// ColumnNames 按声明顺序返回列名
func (t *TableMeta) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

var (
	tableRegistry   []*TableMeta
	tableRegistryMu sync.Mutex
)

func registerTable(t *TableMeta) {
	tableRegistryMu.Lock()
	defer tableRegistryMu.Unlock()
	tableRegistry = append(tableRegistry, t)
}

// AllTables 返回当前所有已注册的表结构
func AllTables() []*TableMeta {
	tableRegistryMu.Lock()
	defer tableRegistryMu.Unlock()

	result := make([]*TableMeta, len(tableRegistry))
	copy(result, tableRegistry)
	return result
}

var (
	timeType      = reflect.TypeOf(time.Time{})
	nullFloatType = reflect.TypeOf(null.Float{})
	nullIntType   = reflect.TypeOf(null.Int{})
	nullTimeType  = reflect.TypeOf(null.Time{})
)

// SchemaFromStruct 通过反射生成 TableMeta 并自动注册
func SchemaFromStruct(tableName string, model interface{}, orderByKey []string) *TableMeta {
	return schemaFromStruct(tableName, model, orderByKey, false)
}

// UniqueSchemaFromStruct 与 SchemaFromStruct 相同, 但 orderByKey 为唯一键
func UniqueSchemaFromStruct(tableName string, model interface{}, key []string) *TableMeta {
	return schemaFromStruct(tableName, model, key, true)
}

func schemaFromStruct(tableName string, model interface{}, orderByKey []string, unique bool) *TableMeta {
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	var cols []Column

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		colName := field.Tag.Get("col")
		if colName == "-" {
			continue
		}
		if colName == "" {
			colName = strings.ToLower(field.Name)
		}

		var dType DataType
		nullable := false
		customType := field.Tag.Get("type")
		switch {
		case customType == "date":
			dType = TypeDate
			nullable = field.Type == nullTimeType
		case customType == "datetime":
			dType = TypeDateTime
		case field.Type == nullFloatType:
			dType, nullable = TypeFloat64, true
		case field.Type == nullIntType:
			dType, nullable = TypeInt64, true
		case field.Type == nullTimeType:
			dType, nullable = TypeDateTime, true
		default:
			switch field.Type.Kind() {
			case reflect.String:
				dType = TypeString
			case reflect.Float64, reflect.Float32:
				dType = TypeFloat64
			case reflect.Int, reflect.Int64, reflect.Int32, reflect.Uint32:
				dType = TypeInt64
			case reflect.Bool:
				dType = TypeBool
			case reflect.Struct:
				if field.Type == timeType {
					dType = TypeDateTime
				}
			default:
				dType = TypeString
			}
		}

		cols = append(cols, Column{Name: colName, Type: dType, Nullable: nullable})
	}

	meta := &TableMeta{
		TableName:  tableName,
		Columns:    cols,
		OrderByKey: orderByKey,
		Unique:     unique,
	}

	registerTable(meta)

	return meta
}

// ColumnPtrs 按列声明顺序返回 dst (结构体指针) 的字段指针, 用于按位置扫描
func ColumnPtrs(dst interface{}) []interface{} {
	v := reflect.ValueOf(dst).Elem()
	t := v.Type()
	ptrs := make([]interface{}, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("col") == "-" {
			continue
		}
		ptrs = append(ptrs, v.Field(i).Addr().Interface())
	}
	return ptrs
}

// ColumnValues 按列声明顺序返回字段值, driver.Valuer 会先转换为驱动值
func ColumnValues(src interface{}) ([]interface{}, error) {
	v := reflect.Indirect(reflect.ValueOf(src))
	t := v.Type()
	vals := make([]interface{}, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("col") == "-" {
			continue
		}
		val := v.Field(i).Interface()
		if valuer, ok := val.(driver.Valuer); ok {
			dv, err := valuer.Value()
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", t.Field(i).Name, err)
			}
			val = dv
		}
		vals = append(vals, val)
	}
	return vals, nil
}
