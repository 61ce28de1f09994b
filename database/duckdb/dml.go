package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jing2uo/valuedb/model"
)

func (d *DuckDBDriver) importCSV(meta *model.TableMeta, csvPath string) error {
	var colMaps []string
	for _, col := range meta.Columns {
		colMaps = append(colMaps, fmt.Sprintf("'%s': '%s'", col.Name, d.mapType(col.Type)))
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		SELECT * FROM read_csv('%s',
			header=true,
			columns={%s},
			dateformat='%%Y-%%m-%%d',
			timestampformat='%%Y-%%m-%%d %%H:%%M:%%S'
		)
	`, meta.TableName, strings.Join(meta.ColumnNames(), ", "), csvPath, strings.Join(colMaps, ", "))

	if _, err := d.db.Exec(query); err != nil {
		return fmt.Errorf("duckdb import %s failed: %w", meta.TableName, err)
	}
	return nil
}

func (d *DuckDBDriver) ImportPrices(path string) error {
	return d.importCSV(model.TablePrices, path)
}

func (d *DuckDBDriver) ImportSplits(path string) error {
	return d.importCSV(model.TableSplits, path)
}

func (d *DuckDBDriver) ImportDividends(path string) error {
	return d.importCSV(model.TableDividends, path)
}

func (d *DuckDBDriver) ImportShares(path string) error {
	return d.importCSV(model.TableShares, path)
}

func (d *DuckDBDriver) ImportFacts(path string) error {
	return d.importCSV(model.TableFacts, path)
}

func (d *DuckDBDriver) GetLatestDate(tableName string, dateCol string) (time.Time, error) {
	query := fmt.Sprintf("SELECT CAST(max(%s) AS DATE) AS latest FROM %s", dateCol, tableName)

	var latest sql.NullTime
	if err := d.db.Get(&latest, query); err != nil {
		return time.Time{}, err
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return latest.Time, nil
}

func (d *DuckDBDriver) GetAllTickers(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT ticker FROM %s ORDER BY ticker", model.TablePrices.TableName)

	var tickers []string
	if err := d.db.SelectContext(ctx, &tickers, query); err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	return tickers, nil
}

// --- Source ---

func (d *DuckDBDriver) LatestPriceOnOrBefore(ctx context.Context, ticker string, date time.Time) (*model.PricePoint, error) {
	query := fmt.Sprintf(
		"SELECT * FROM %s WHERE ticker = ? AND date <= ? ORDER BY date DESC LIMIT 1",
		model.TablePrices.TableName,
	)

	var p model.PricePoint
	if err := d.db.GetContext(ctx, &p, query, ticker, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query price for %s: %w", ticker, err)
	}
	return &p, nil
}

func (d *DuckDBDriver) PriceRange(ctx context.Context, ticker string, from, to time.Time) ([]model.PricePoint, error) {
	query := fmt.Sprintf(
		"SELECT * FROM %s WHERE ticker = ? AND date >= ? AND date <= ? ORDER BY date ASC",
		model.TablePrices.TableName,
	)

	var results []model.PricePoint
	if err := d.db.SelectContext(ctx, &results, query, ticker, from, to); err != nil {
		return nil, fmt.Errorf("failed to query prices for %s: %w", ticker, err)
	}
	return results, nil
}

func (d *DuckDBDriver) PriceDates(ctx context.Context, ticker string, from, to time.Time) ([]time.Time, error) {
	query := fmt.Sprintf(
		"SELECT date FROM %s WHERE ticker = ? AND date >= ? AND date <= ? ORDER BY date ASC",
		model.TablePrices.TableName,
	)

	var dates []time.Time
	if err := d.db.SelectContext(ctx, &dates, query, ticker, from, to); err != nil {
		return nil, fmt.Errorf("failed to query price dates for %s: %w", ticker, err)
	}
	return dates, nil
}

func (d *DuckDBDriver) LatestShareRecord(ctx context.Context, ticker string, onOrBefore time.Time) (*model.ShareRecord, error) {
	table := model.TableShares.TableName
	query := fmt.Sprintf(`
		SELECT * FROM %s
		WHERE ticker = ?
		  AND date = (SELECT max(date) FROM %s WHERE ticker = ? AND date <= ?)
	`, table, table)

	var records []model.ShareRecord
	if err := d.db.SelectContext(ctx, &records, query, ticker, ticker, onOrBefore); err != nil {
		return nil, fmt.Errorf("failed to query shares for %s: %w", ticker, err)
	}

	best, ok := model.PickShareRecord(records)
	if !ok {
		return nil, nil
	}
	return &best, nil
}

func (d *DuckDBDriver) AllShareRecords(ctx context.Context, ticker string) ([]model.ShareRecord, error) {
	query := fmt.Sprintf(
		"SELECT * FROM %s WHERE ticker = ? ORDER BY date ASC, source ASC",
		model.TableShares.TableName,
	)

	var results []model.ShareRecord
	if err := d.db.SelectContext(ctx, &results, query, ticker); err != nil {
		return nil, fmt.Errorf("failed to query shares for %s: %w", ticker, err)
	}
	return results, nil
}

func (d *DuckDBDriver) FactsForConcept(ctx context.Context, ticker, concept string, maxPeriodEnd time.Time) ([]model.FinancialFact, error) {
	query := fmt.Sprintf(
		"SELECT * FROM %s WHERE ticker = ? AND concept = ? AND period_end <= ? ORDER BY period_end DESC",
		model.ViewFactsLatest,
	)

	var results []model.FinancialFact
	if err := d.db.SelectContext(ctx, &results, query, ticker, concept, maxPeriodEnd); err != nil {
		return nil, fmt.Errorf("failed to query facts %s/%s: %w", ticker, concept, err)
	}
	model.SortFactsDesc(results)
	return results, nil
}

func (d *DuckDBDriver) Splits(ctx context.Context, ticker string) ([]model.SplitEvent, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE ticker = ? ORDER BY date ASC", model.TableSplits.TableName)

	var results []model.SplitEvent
	if err := d.db.SelectContext(ctx, &results, query, ticker); err != nil {
		return nil, fmt.Errorf("failed to query splits for %s: %w", ticker, err)
	}
	return results, nil
}

func (d *DuckDBDriver) Dividends(ctx context.Context, ticker string) ([]model.DividendEvent, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE ticker = ? ORDER BY ex_date ASC", model.TableDividends.TableName)

	var results []model.DividendEvent
	if err := d.db.SelectContext(ctx, &results, query, ticker); err != nil {
		return nil, fmt.Errorf("failed to query dividends for %s: %w", ticker, err)
	}
	return results, nil
}

// --- SnapshotStore ---

func upsertQuery(meta *model.TableMeta) string {
	cols := meta.ColumnNames()
	named := make([]string, len(cols))
	for i, c := range cols {
		named[i] = ":" + c
	}

	var sets []string
	for _, c := range cols {
		if !contains(meta.OrderByKey, c) {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		meta.TableName,
		strings.Join(cols, ", "),
		strings.Join(named, ", "),
		strings.Join(meta.OrderByKey, ", "),
		strings.Join(sets, ", "),
	)
}

func (d *DuckDBDriver) UpsertSnapshot(ctx context.Context, s model.ValuationSnapshot) error {
	return d.UpsertSnapshots(ctx, []model.ValuationSnapshot{s})
}

func (d *DuckDBDriver) UpsertSnapshots(ctx context.Context, snaps []model.ValuationSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, upsertQuery(model.TableSnapshots))
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot upsert: %w", err)
	}
	defer stmt.Close()

	for _, s := range snaps {
		if _, err := stmt.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("failed to upsert snapshot %s@%s: %w", s.Ticker, s.Date.Format("2006-01-02"), err)
		}
	}
	return tx.Commit()
}

func (d *DuckDBDriver) SnapshotsByTicker(ctx context.Context, ticker string, from, to time.Time) ([]model.ValuationSnapshot, error) {
	query := fmt.Sprintf(
		"SELECT * FROM %s WHERE ticker = ? AND date >= ? AND date <= ? ORDER BY date ASC",
		model.TableSnapshots.TableName,
	)

	var results []model.ValuationSnapshot
	if err := d.db.SelectContext(ctx, &results, query, ticker, from, to); err != nil {
		return nil, fmt.Errorf("failed to query snapshots for %s: %w", ticker, err)
	}
	return results, nil
}

func (d *DuckDBDriver) SnapshotsByDate(ctx context.Context, date time.Time) ([]model.ValuationSnapshot, error) {
	query := fmt.Sprintf(
		"SELECT * FROM %s WHERE date = ? ORDER BY ticker ASC",
		model.TableSnapshots.TableName,
	)

	var results []model.ValuationSnapshot
	if err := d.db.SelectContext(ctx, &results, query, date); err != nil {
		return nil, fmt.Errorf("failed to query snapshots on %s: %w", date.Format("2006-01-02"), err)
	}
	return results, nil
}
