package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jing2uo/valuedb/model"
)

func (d *PostgresDriver) mapType(dt model.DataType) string {
	switch dt {
	case model.TypeString:
		return "TEXT"
	case model.TypeFloat64:
		return "DOUBLE PRECISION"
	case model.TypeInt64:
		return "BIGINT"
	case model.TypeBool:
		return "BOOLEAN"
	case model.TypeDate:
		return "DATE"
	case model.TypeDateTime:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

func (d *PostgresDriver) createTableInternal(ctx context.Context, meta *model.TableMeta) error {
	var colDefs []string
	for _, col := range meta.Columns {
		colDefs = append(colDefs, fmt.Sprintf("%s %s", col.Name, d.mapType(col.Type)))
	}
	if meta.Unique && len(meta.OrderByKey) > 0 {
		colDefs = append(colDefs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(meta.OrderByKey, ", ")))
	}

	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", meta.TableName, strings.Join(colDefs, ", "))
	if _, err := d.pool.Exec(ctx, query); err != nil {
		return err
	}

	// 非唯一表建普通索引加速按 ticker 查询
	if !meta.Unique && len(meta.OrderByKey) > 0 {
		idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_key ON %s (%s)",
			meta.TableName, meta.TableName, strings.Join(meta.OrderByKey, ", "))
		if _, err := d.pool.Exec(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}

func (d *PostgresDriver) registerViews() {
	d.viewImpls[model.ViewFactsLatest] = func(ctx context.Context) error {
		query := fmt.Sprintf(`
			CREATE OR REPLACE VIEW %s AS
			SELECT DISTINCT ON (ticker, concept, period_start, period_end, UPPER(TRIM(fiscal_period))) *
			FROM %s
			ORDER BY ticker, concept, period_start, period_end, UPPER(TRIM(fiscal_period)), filed DESC, accession DESC
		`, model.ViewFactsLatest, model.TableFacts.TableName)

		_, err := d.pool.Exec(ctx, query)
		return err
	}
}
