package model

type DBType string

const (
	DBTypeDuckDB     DBType = "duckdb"
	DBTypePostgres   DBType = "postgres"
	DBTypeClickHouse DBType = "clickhouse"
	DBTypeMemory     DBType = "memory"
)

type DBConfig struct {
	Type DBType
	DSN  string
}
