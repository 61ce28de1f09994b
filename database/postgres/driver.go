package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jing2uo/valuedb/model"
)

type PostgresDriver struct {
	dsn       string
	pool      *pgxpool.Pool
	viewImpls map[model.ViewID]func(ctx context.Context) error
}

func NewDriver(cfg model.DBConfig) *PostgresDriver {
	return &PostgresDriver{dsn: cfg.DSN, viewImpls: make(map[model.ViewID]func(ctx context.Context) error)}
}

func (d *PostgresDriver) Connect() error {
	cfg, err := pgxpool.ParseConfig(d.dsn)
	if err != nil {
		return fmt.Errorf("invalid postgres dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("postgres ping failed: %w", err)
	}

	d.pool = pool
	return nil
}

func (d *PostgresDriver) Close() error {
	if d.pool != nil {
		d.pool.Close()
	}
	return nil
}

func (d *PostgresDriver) InitSchema() error {
	ctx := context.Background()

	for _, t := range model.AllTables() {
		if err := d.createTableInternal(ctx, t); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.TableName, err)
		}
	}

	d.registerViews()
	for _, viewID := range model.AllViews() {
		implFunc, exists := d.viewImpls[viewID]
		if !exists {
			return fmt.Errorf("[Postgres] Missing implementation for required view: %s", viewID)
		}
		if err := implFunc(ctx); err != nil {
			return fmt.Errorf("failed to create view %s: %w", viewID, err)
		}
	}
	return nil
}
