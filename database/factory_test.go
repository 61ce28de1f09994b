package database

import (
	"testing"

	"github.com/jing2uo/valuedb/model"
)

func TestParseURI(t *testing.T) {
	testCases := []struct {
		uri     string
		want    model.DBConfig
		wantErr bool
	}{
		{"valuedb.duckdb", model.DBConfig{Type: model.DBTypeDuckDB, DSN: "valuedb.duckdb"}, false},
		{"duckdb:///data/v.duckdb", model.DBConfig{Type: model.DBTypeDuckDB, DSN: "/data/v.duckdb"}, false},
		{"postgres://u:p@localhost:5432/valuedb", model.DBConfig{Type: model.DBTypePostgres, DSN: "postgres://u:p@localhost:5432/valuedb"}, false},
		{"PostgreSQL://localhost/valuedb", model.DBConfig{Type: model.DBTypePostgres, DSN: "PostgreSQL://localhost/valuedb"}, false},
		{"clickhouse://default@localhost:9000/valuedb", model.DBConfig{Type: model.DBTypeClickHouse, DSN: "clickhouse://default@localhost:9000/valuedb"}, false},
		{"memory://", model.DBConfig{Type: model.DBTypeMemory}, false},
		{"  ", model.DBConfig{}, true},
		{"mysql://localhost/x", model.DBConfig{}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.uri, func(t *testing.T) {
			got, err := ParseURI(tc.uri)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestNewDBMemory(t *testing.T) {
	db, err := NewDB("memory://")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Connect(); err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := db.InitSchema(); err != nil {
		t.Fatal(err)
	}
}
