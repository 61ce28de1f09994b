package duckdb

import (
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/jing2uo/valuedb/model"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
)

type DuckDBDriver struct {
	dsn       string
	db        *sqlx.DB
	viewImpls map[model.ViewID]func() error
}

func NewDriver(cfg model.DBConfig) *DuckDBDriver {
	return &DuckDBDriver{dsn: cfg.DSN, viewImpls: make(map[model.ViewID]func() error)}
}

func (d *DuckDBDriver) Connect() error {
	db, err := sqlx.Open("duckdb", d.dsn)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	// 结构体字段使用 col 标签映射列名
	db.Mapper = reflectx.NewMapperFunc("col", strings.ToLower)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("duckdb ping failed: %w", err)
	}

	d.db = db
	return nil
}

func (d *DuckDBDriver) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DuckDBDriver) InitSchema() error {
	for _, t := range model.AllTables() {
		if err := d.createTableInternal(t); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.TableName, err)
		}
	}

	d.registerViews()
	for _, viewID := range model.AllViews() {
		implFunc, exists := d.viewImpls[viewID]
		if !exists {
			return fmt.Errorf("[DuckDB] Missing implementation for required view: %s", viewID)
		}
		if err := implFunc(); err != nil {
			return fmt.Errorf("failed to create view %s: %w", viewID, err)
		}
	}

	return nil
}
