package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jing2uo/valuedb/model"
)

// queryRows 查询 meta 的全部列并扫描为 T
func queryRows[T any](ctx context.Context, d *PostgresDriver, from string, meta *model.TableMeta, where string, args ...any) ([]T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s %s", strings.Join(meta.ColumnNames(), ", "), from, where)

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (T, error) {
		var item T
		err := row.Scan(model.ColumnPtrs(&item)...)
		return item, err
	})
}
