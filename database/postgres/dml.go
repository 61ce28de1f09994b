package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jing2uo/valuedb/model"
)

// importCSV 通过 COPY FROM STDIN 导入带表头的 CSV
func (d *PostgresDriver) importCSV(meta *model.TableMeta, csvPath string) error {
	file, err := os.Open(csvPath)
	if err != nil {
		return err
	}
	defer file.Close()

	ctx := context.Background()
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire postgres conn: %w", err)
	}
	defer conn.Release()

	query := fmt.Sprintf("COPY %s (%s) FROM STDIN WITH (FORMAT csv, HEADER true, NULL '')",
		meta.TableName, strings.Join(meta.ColumnNames(), ", "))

	if _, err := conn.Conn().PgConn().CopyFrom(ctx, file, query); err != nil {
		return fmt.Errorf("postgres copy into %s failed: %w", meta.TableName, err)
	}
	return nil
}

func (d *PostgresDriver) ImportPrices(path string) error {
	return d.importCSV(model.TablePrices, path)
}

func (d *PostgresDriver) ImportSplits(path string) error {
	return d.importCSV(model.TableSplits, path)
}

func (d *PostgresDriver) ImportDividends(path string) error {
	return d.importCSV(model.TableDividends, path)
}

func (d *PostgresDriver) ImportShares(path string) error {
	return d.importCSV(model.TableShares, path)
}

func (d *PostgresDriver) ImportFacts(path string) error {
	return d.importCSV(model.TableFacts, path)
}

func (d *PostgresDriver) GetLatestDate(tableName string, dateCol string) (time.Time, error) {
	query := fmt.Sprintf("SELECT max(%s)::date FROM %s", dateCol, tableName)

	var latest *time.Time
	if err := d.pool.QueryRow(context.Background(), query).Scan(&latest); err != nil {
		return time.Time{}, err
	}
	if latest == nil {
		return time.Time{}, nil
	}
	return *latest, nil
}

func (d *PostgresDriver) GetAllTickers(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT ticker FROM %s ORDER BY ticker", model.TablePrices.TableName)

	rows, err := d.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// --- Source ---

func (d *PostgresDriver) LatestPriceOnOrBefore(ctx context.Context, ticker string, date time.Time) (*model.PricePoint, error) {
	rows, err := queryRows[model.PricePoint](ctx, d, model.TablePrices.TableName, model.TablePrices,
		"WHERE ticker = $1 AND date <= $2 ORDER BY date DESC LIMIT 1", ticker, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query price for %s: %w", ticker, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (d *PostgresDriver) PriceRange(ctx context.Context, ticker string, from, to time.Time) ([]model.PricePoint, error) {
	rows, err := queryRows[model.PricePoint](ctx, d, model.TablePrices.TableName, model.TablePrices,
		"WHERE ticker = $1 AND date >= $2 AND date <= $3 ORDER BY date ASC", ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices for %s: %w", ticker, err)
	}
	return rows, nil
}

func (d *PostgresDriver) PriceDates(ctx context.Context, ticker string, from, to time.Time) ([]time.Time, error) {
	query := fmt.Sprintf(
		"SELECT date FROM %s WHERE ticker = $1 AND date >= $2 AND date <= $3 ORDER BY date ASC",
		model.TablePrices.TableName,
	)
	rows, err := d.pool.Query(ctx, query, ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query price dates for %s: %w", ticker, err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[time.Time])
}

func (d *PostgresDriver) LatestShareRecord(ctx context.Context, ticker string, onOrBefore time.Time) (*model.ShareRecord, error) {
	table := model.TableShares.TableName
	where := fmt.Sprintf(
		"WHERE ticker = $1 AND date = (SELECT max(date) FROM %s WHERE ticker = $1 AND date <= $2)", table)

	records, err := queryRows[model.ShareRecord](ctx, d, table, model.TableShares, where, ticker, onOrBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to query shares for %s: %w", ticker, err)
	}
	best, ok := model.PickShareRecord(records)
	if !ok {
		return nil, nil
	}
	return &best, nil
}

func (d *PostgresDriver) AllShareRecords(ctx context.Context, ticker string) ([]model.ShareRecord, error) {
	rows, err := queryRows[model.ShareRecord](ctx, d, model.TableShares.TableName, model.TableShares,
		"WHERE ticker = $1 ORDER BY date ASC, source ASC", ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to query shares for %s: %w", ticker, err)
	}
	return rows, nil
}

func (d *PostgresDriver) FactsForConcept(ctx context.Context, ticker, concept string, maxPeriodEnd time.Time) ([]model.FinancialFact, error) {
	rows, err := queryRows[model.FinancialFact](ctx, d, string(model.ViewFactsLatest), model.TableFacts,
		"WHERE ticker = $1 AND concept = $2 AND period_end <= $3", ticker, concept, maxPeriodEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to query facts %s/%s: %w", ticker, concept, err)
	}
	model.SortFactsDesc(rows)
	return rows, nil
}

func (d *PostgresDriver) Splits(ctx context.Context, ticker string) ([]model.SplitEvent, error) {
	rows, err := queryRows[model.SplitEvent](ctx, d, model.TableSplits.TableName, model.TableSplits,
		"WHERE ticker = $1 ORDER BY date ASC", ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to query splits for %s: %w", ticker, err)
	}
	return rows, nil
}

func (d *PostgresDriver) Dividends(ctx context.Context, ticker string) ([]model.DividendEvent, error) {
	rows, err := queryRows[model.DividendEvent](ctx, d, model.TableDividends.TableName, model.TableDividends,
		"WHERE ticker = $1 ORDER BY ex_date ASC", ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to query dividends for %s: %w", ticker, err)
	}
	return rows, nil
}

// --- SnapshotStore ---

func upsertQuery(meta *model.TableMeta) string {
	cols := meta.ColumnNames()
	params := make([]string, len(cols))
	var sets []string
	for i, c := range cols {
		params[i] = fmt.Sprintf("$%d", i+1)
		isKey := false
		for _, k := range meta.OrderByKey {
			if k == c {
				isKey = true
			}
		}
		if !isKey {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		meta.TableName,
		strings.Join(cols, ", "),
		strings.Join(params, ", "),
		strings.Join(meta.OrderByKey, ", "),
		strings.Join(sets, ", "),
	)
}

func (d *PostgresDriver) UpsertSnapshot(ctx context.Context, s model.ValuationSnapshot) error {
	return d.UpsertSnapshots(ctx, []model.ValuationSnapshot{s})
}

func (d *PostgresDriver) UpsertSnapshots(ctx context.Context, snaps []model.ValuationSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	query := upsertQuery(model.TableSnapshots)
	batch := &pgx.Batch{}
	for _, s := range snaps {
		args, err := model.ColumnValues(s)
		if err != nil {
			return err
		}
		batch.Queue(query, args...)
	}

	return pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for _, s := range snaps {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to upsert snapshot %s@%s: %w", s.Ticker, s.Date.Format("2006-01-02"), err)
			}
		}
		return br.Close()
	})
}

func (d *PostgresDriver) SnapshotsByTicker(ctx context.Context, ticker string, from, to time.Time) ([]model.ValuationSnapshot, error) {
	rows, err := queryRows[model.ValuationSnapshot](ctx, d, model.TableSnapshots.TableName, model.TableSnapshots,
		"WHERE ticker = $1 AND date >= $2 AND date <= $3 ORDER BY date ASC", ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots for %s: %w", ticker, err)
	}
	return rows, nil
}

func (d *PostgresDriver) SnapshotsByDate(ctx context.Context, date time.Time) ([]model.ValuationSnapshot, error) {
	rows, err := queryRows[model.ValuationSnapshot](ctx, d, model.TableSnapshots.TableName, model.TableSnapshots,
		"WHERE date = $1 ORDER BY ticker ASC", date)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots on %s: %w", date.Format("2006-01-02"), err)
	}
	return rows, nil
}
