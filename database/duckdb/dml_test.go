package duckdb

import (
	"strings"
	"testing"

	"github.com/jing2uo/valuedb/model"
)

func TestUpsertQuery(t *testing.T) {
	q := upsertQuery(model.TableSnapshots)

	if !strings.HasPrefix(q, "INSERT INTO valuation_snapshots (ticker, date, price,") {
		t.Errorf("unexpected prefix: %s", q)
	}
	if !strings.Contains(q, "VALUES (:ticker, :date, :price,") {
		t.Errorf("named params missing: %s", q)
	}
	if !strings.Contains(q, "ON CONFLICT (ticker, date) DO UPDATE SET price = EXCLUDED.price") {
		t.Errorf("conflict clause missing: %s", q)
	}
	if strings.Contains(q, "ticker = EXCLUDED.ticker") || strings.Contains(q, " date = EXCLUDED.date") {
		t.Errorf("key columns must not be updated: %s", q)
	}
	if !strings.HasSuffix(q, "computed_at = EXCLUDED.computed_at") {
		t.Errorf("unexpected suffix: %s", q)
	}
}

func TestMapType(t *testing.T) {
	d := NewDriver(model.DBConfig{})
	testCases := map[model.DataType]string{
		model.TypeString:   "VARCHAR",
		model.TypeFloat64:  "DOUBLE",
		model.TypeInt64:    "BIGINT",
		model.TypeBool:     "BOOLEAN",
		model.TypeDate:     "DATE",
		model.TypeDateTime: "TIMESTAMP",
	}
	for dt, want := range testCases {
		if got := d.mapType(dt); got != want {
			t.Errorf("mapType(%d) = %s, want %s", dt, got, want)
		}
	}
}
