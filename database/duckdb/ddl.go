package duckdb

import (
	"fmt"
	"strings"

	"github.com/jing2uo/valuedb/model"
)

// mapType 将通用 DataType 转换为 DuckDB 的 SQL 类型
func (d *DuckDBDriver) mapType(dt model.DataType) string {
	switch dt {
	case model.TypeString:
		return "VARCHAR"
	case model.TypeFloat64:
		return "DOUBLE"
	case model.TypeInt64:
		return "BIGINT"
	case model.TypeBool:
		return "BOOLEAN"
	case model.TypeDate:
		return "DATE"
	case model.TypeDateTime:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

func (d *DuckDBDriver) createTableInternal(meta *model.TableMeta) error {
	var colDefs []string
	for _, col := range meta.Columns {
		def := fmt.Sprintf("%s %s", col.Name, d.mapType(col.Type))
		if !col.Nullable && meta.Unique && contains(meta.OrderByKey, col.Name) {
			def += " NOT NULL"
		}
		colDefs = append(colDefs, def)
	}

	// 快照表以 (ticker, date) 为主键, 供 ON CONFLICT 覆盖写入
	if meta.Unique && len(meta.OrderByKey) > 0 {
		colDefs = append(colDefs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(meta.OrderByKey, ", ")))
	}

	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		meta.TableName, strings.Join(colDefs, ", "))

	if _, err := d.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", meta.TableName, err)
	}
	return nil
}

func (d *DuckDBDriver) registerViews() {
	d.viewImpls[model.ViewFactsLatest] = func() error {
		query := fmt.Sprintf(`
			CREATE OR REPLACE VIEW %s AS
			SELECT *
			FROM %s
			QUALIFY ROW_NUMBER() OVER (
				PARTITION BY ticker, concept, period_start, period_end, UPPER(TRIM(fiscal_period))
				ORDER BY filed DESC, accession DESC
			) = 1
		`, model.ViewFactsLatest, model.TableFacts.TableName)

		_, err := d.db.Exec(query)
		return err
	}
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
