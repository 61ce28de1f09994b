package postgres

import (
	"fmt"
	"strings"
	"testing"

	"github.com/jing2uo/valuedb/model"
)

func TestUpsertQuery(t *testing.T) {
	q := upsertQuery(model.TableSnapshots)
	n := len(model.TableSnapshots.Columns)

	if !strings.Contains(q, "VALUES ($1, $2, $3,") || !strings.Contains(q, fmt.Sprintf("$%d)", n)) {
		t.Errorf("positional params mismatch for %d columns: %s", n, q)
	}
	if !strings.Contains(q, "ON CONFLICT (ticker, date) DO UPDATE SET price = EXCLUDED.price") {
		t.Errorf("conflict clause missing: %s", q)
	}
	if strings.Contains(q, "ticker = EXCLUDED.ticker") {
		t.Errorf("key columns must not be updated: %s", q)
	}
}
