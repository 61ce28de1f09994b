package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jing2uo/valuedb/model"
)

func (d *ClickHouseDriver) importCSV(meta *model.TableMeta, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	req, err := http.NewRequest(http.MethodPost, d.httpImportUrl, file)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "text/csv")

	// 设置参数
	q := req.URL.Query()

	if d.database != "" {
		q.Set("database", d.database)
	}

	q.Add("query", fmt.Sprintf("INSERT INTO %s FORMAT CSVWithNames", meta.TableName))
	q.Add("date_time_input_format", "best_effort")
	q.Add("input_format_csv_empty_as_default", "1")

	req.URL.RawQuery = q.Encode()

	if d.authUser != "" {
		req.SetBasicAuth(d.authUser, d.authPass)
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		errMsg := strings.TrimSpace(string(bodyBytes))
		return fmt.Errorf("clickhouse insert failed (db: %s, status %d): %s", d.database, resp.StatusCode, errMsg)
	}

	return nil
}

func (d *ClickHouseDriver) ImportPrices(path string) error {
	return d.importCSV(model.TablePrices, path)
}

func (d *ClickHouseDriver) ImportSplits(path string) error {
	return d.importCSV(model.TableSplits, path)
}

func (d *ClickHouseDriver) ImportDividends(path string) error {
	return d.importCSV(model.TableDividends, path)
}

func (d *ClickHouseDriver) ImportShares(path string) error {
	return d.importCSV(model.TableShares, path)
}

func (d *ClickHouseDriver) ImportFacts(path string) error {
	return d.importCSV(model.TableFacts, path)
}

func (d *ClickHouseDriver) GetLatestDate(tableName string, dateCol string) (time.Time, error) {
	query := fmt.Sprintf("SELECT toDate32(maxOrNull(%s)) AS latest FROM %s", dateCol, tableName)
	var latest sql.NullTime
	if err := d.db.Get(&latest, query); err != nil {
		return time.Time{}, err
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return latest.Time, nil
}

func (d *ClickHouseDriver) GetAllTickers(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT ticker FROM %s ORDER BY ticker", model.TablePrices.TableName)

	var tickers []string
	if err := d.db.SelectContext(ctx, &tickers, query); err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	return tickers, nil
}

// --- Source ---

func (d *ClickHouseDriver) LatestPriceOnOrBefore(ctx context.Context, ticker string, date time.Time) (*model.PricePoint, error) {
	query := fmt.Sprintf(
		"SELECT * FROM %s WHERE ticker = ? AND date <= ? ORDER BY date DESC LIMIT 1",
		model.TablePrices.TableName,
	)

	var results []model.PricePoint
	if err := d.db.SelectContext(ctx, &results, query, ticker, date); err != nil {
		return nil, fmt.Errorf("failed to query price for %s: %w", ticker, err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

func (d *ClickHouseDriver) PriceRange(ctx context.Context, ticker string, from, to time.Time) ([]model.PricePoint, error) {
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

func (d *ClickHouseDriver) PriceDates(ctx context.Context, ticker string, from, to time.Time) ([]time.Time, error) {
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

func (d *ClickHouseDriver) LatestShareRecord(ctx context.Context, ticker string, onOrBefore time.Time) (*model.ShareRecord, error) {
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

func (d *ClickHouseDriver) AllShareRecords(ctx context.Context, ticker string) ([]model.ShareRecord, error) {
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

func (d *ClickHouseDriver) FactsForConcept(ctx context.Context, ticker, concept string, maxPeriodEnd time.Time) ([]model.FinancialFact, error) {
	query := fmt.Sprintf(
		"SELECT * FROM %s WHERE ticker = ? AND concept = ? AND period_end <= ?",
		model.ViewFactsLatest,
	)

	var results []model.FinancialFact
	if err := d.db.SelectContext(ctx, &results, query, ticker, concept, maxPeriodEnd); err != nil {
		return nil, fmt.Errorf("failed to query facts %s/%s: %w", ticker, concept, err)
	}
	model.SortFactsDesc(results)
	return results, nil
}

func (d *ClickHouseDriver) Splits(ctx context.Context, ticker string) ([]model.SplitEvent, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE ticker = ? ORDER BY date ASC", model.TableSplits.TableName)

	var results []model.SplitEvent
	if err := d.db.SelectContext(ctx, &results, query, ticker); err != nil {
		return nil, fmt.Errorf("failed to query splits for %s: %w", ticker, err)
	}
	return results, nil
}

func (d *ClickHouseDriver) Dividends(ctx context.Context, ticker string) ([]model.DividendEvent, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE ticker = ? ORDER BY ex_date ASC", model.TableDividends.TableName)

	var results []model.DividendEvent
	if err := d.db.SelectContext(ctx, &results, query, ticker); err != nil {
		return nil, fmt.Errorf("failed to query dividends for %s: %w", ticker, err)
	}
	return results, nil
}

// --- SnapshotStore ---

func (d *ClickHouseDriver) UpsertSnapshot(ctx context.Context, s model.ValuationSnapshot) error {
	return d.UpsertSnapshots(ctx, []model.ValuationSnapshot{s})
}

// UpsertSnapshots 追加写入, 由 ReplacingMergeTree 按 (ticker, date) 合并
func (d *ClickHouseDriver) UpsertSnapshots(ctx context.Context, snaps []model.ValuationSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	meta := model.TableSnapshots
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s)",
		meta.TableName, strings.Join(meta.ColumnNames(), ", ")))
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot batch: %w", err)
	}
	defer stmt.Close()

	for _, s := range snaps {
		args, err := model.ColumnValues(s)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to append snapshot %s@%s: %w", s.Ticker, s.Date.Format("2006-01-02"), err)
		}
	}
	return tx.Commit()
}

func (d *ClickHouseDriver) SnapshotsByTicker(ctx context.Context, ticker string, from, to time.Time) ([]model.ValuationSnapshot, error) {
	query := fmt.Sprintf(
		"SELECT * FROM %s FINAL WHERE ticker = ? AND date >= ? AND date <= ? ORDER BY date ASC",
		model.TableSnapshots.TableName,
	)

	var results []model.ValuationSnapshot
	if err := d.db.SelectContext(ctx, &results, query, ticker, from, to); err != nil {
		return nil, fmt.Errorf("failed to query snapshots for %s: %w", ticker, err)
	}
	return results, nil
}

func (d *ClickHouseDriver) SnapshotsByDate(ctx context.Context, date time.Time) ([]model.ValuationSnapshot, error) {
	query := fmt.Sprintf(
		"SELECT * FROM %s FINAL WHERE date = ? ORDER BY ticker ASC",
		model.TableSnapshots.TableName,
	)

	var results []model.ValuationSnapshot
	if err := d.db.SelectContext(ctx, &results, query, date); err != nil {
		return nil, fmt.Errorf("failed to query snapshots on %s: %w", date.Format("2006-01-02"), err)
	}
	return results, nil
}
