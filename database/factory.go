package database

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jing2uo/valuedb/database/clickhouse"
	"github.com/jing2uo/valuedb/database/duckdb"
	"github.com/jing2uo/valuedb/database/memory"
	"github.com/jing2uo/valuedb/database/postgres"
	"github.com/jing2uo/valuedb/model"
)

// ParseURI 解析数据库地址. 无 scheme 时视为 DuckDB 文件路径
func ParseURI(uri string) (model.DBConfig, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return model.DBConfig{}, fmt.Errorf("database uri cannot be empty")
	}

	scheme, rest, found := strings.Cut(uri, "://")
	if !found {
		return model.DBConfig{Type: model.DBTypeDuckDB, DSN: uri}, nil
	}

	switch strings.ToLower(scheme) {
	case "duckdb":
		return model.DBConfig{Type: model.DBTypeDuckDB, DSN: rest}, nil
	case "postgres", "postgresql":
		return model.DBConfig{Type: model.DBTypePostgres, DSN: uri}, nil
	case "clickhouse":
		return model.DBConfig{Type: model.DBTypeClickHouse, DSN: uri}, nil
	case "memory", "mem":
		return model.DBConfig{Type: model.DBTypeMemory}, nil
	default:
		return model.DBConfig{}, fmt.Errorf("unsupported db scheme: %s", scheme)
	}
}

func NewDatabase(cfg model.DBConfig) (DataRepository, error) {
	switch cfg.Type {
	case model.DBTypeDuckDB:
		return duckdb.NewDriver(cfg), nil
	case model.DBTypePostgres:
		return postgres.NewDriver(cfg), nil
	case model.DBTypeClickHouse:
		u, err := url.Parse(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("invalid clickhouse dsn: %w", err)
		}
		return clickhouse.NewClickHouseDriver(u)
	case model.DBTypeMemory:
		return memory.NewDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported db type: %s", cfg.Type)
	}
}

// NewDB 按 uri 创建驱动 (未连接)
func NewDB(uri string) (DataRepository, error) {
	cfg, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return NewDatabase(cfg)
}
