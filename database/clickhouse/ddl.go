package clickhouse

import (
	"fmt"
	"strings"

	"github.com/jing2uo/valuedb/model"
)

// mapType 针对 ClickHouse 进行类型优化
func (d *ClickHouseDriver) mapType(col model.Column) string {
	var t string
	switch col.Type {
	case model.TypeString:
		if isLowCardinality(col.Name) {
			return "LowCardinality(String)"
		}
		t = "String"
	case model.TypeFloat64:
		t = "Float64"
	case model.TypeInt64:
		t = "Int64"
	case model.TypeBool:
		t = "Bool"
	case model.TypeDate:
		t = "Date32"
	case model.TypeDateTime:
		t = "DateTime64(3, 'UTC')"
	default:
		t = "String"
	}
	if col.Nullable {
		return fmt.Sprintf("Nullable(%s)", t)
	}
	return t
}

func isLowCardinality(name string) bool {
	switch strings.ToLower(name) {
	case "ticker", "concept", "unit", "taxonomy", "form", "fiscal_period", "source", "type":
		return true
	}
	return false
}

func (d *ClickHouseDriver) createTableInternal(meta *model.TableMeta) error {
	var colDefs []string
	for _, col := range meta.Columns {
		colDefs = append(colDefs, fmt.Sprintf("%s %s", col.Name, d.mapType(col)))
	}

	orderBy := "tuple()"
	if len(meta.OrderByKey) > 0 {
		orderBy = fmt.Sprintf("(%s)", strings.Join(meta.OrderByKey, ", "))
	}

	// 唯一表使用 ReplacingMergeTree, 以 computed_at 最大者为准, 查询时加 FINAL
	engine := "MergeTree()"
	if meta.Unique {
		engine = "ReplacingMergeTree(computed_at)"
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s
		) ENGINE = %s
		ORDER BY %s
	`, meta.TableName, strings.Join(colDefs, ", "), engine, orderBy)

	_, err := d.db.Exec(query)
	return err
}

func (d *ClickHouseDriver) registerViews() {
	d.viewImpls[model.ViewFactsLatest] = func() error {
		query := fmt.Sprintf(`
			CREATE OR REPLACE VIEW %s AS
			SELECT *
			FROM %s
			ORDER BY ticker, concept, period_start, period_end, upper(trim(fiscal_period)), filed DESC, accession DESC
			LIMIT 1 BY ticker, concept, period_start, period_end, upper(trim(fiscal_period))
		`, model.ViewFactsLatest, model.TableFacts.TableName)

		_, err := d.db.Exec(query)
		return err
	}
}
