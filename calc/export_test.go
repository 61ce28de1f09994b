package calc

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/parquet-go/parquet-go"
	"github.com/xuri/excelize/v2"

	"github.com/jing2uo/valuedb/model"
	"github.com/jing2uo/valuedb/utils"
)

func exportFixture(t *testing.T) []model.ValuationSnapshot {
	t.Helper()
	snap := snapshot(t, xyzStore(), WithRunID("run-export"))
	snap.ComputedAt = mustDate("2024-07-15")
	// 导出时标记按字母序拼接
	snap.Flags = model.ParseFlags(snap.Flags.String())
	return []model.ValuationSnapshot{*snap}
}

func TestExportFormat(t *testing.T) {
	testCases := []struct {
		path, format, want string
		wantErr            bool
	}{
		{"out.parquet", "", "parquet", false},
		{"out.XLSX", "", "xlsx", false},
		{"out", "", "csv", false},
		{"out.csv", "parquet", "parquet", false},
		{"out.json", "", "", true},
	}
	for _, tc := range testCases {
		got, err := ExportFormat(tc.path, tc.format)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("ExportFormat(%q, %q) = %q, %v", tc.path, tc.format, got, err)
		}
	}
}

func TestExportSnapshotsCSV(t *testing.T) {
	snaps := exportFixture(t)
	path := filepath.Join(t.TempDir(), "snapshots.csv")

	n, err := ExportSnapshots(snaps, path, "")
	if err != nil || n != 1 {
		t.Fatalf("ExportSnapshots = %d, %v", n, err)
	}

	back, err := utils.ReadCSV[model.ValuationSnapshot](path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(snaps, back); diff != "" {
		t.Errorf("csv round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestExportSnapshotsParquet(t *testing.T) {
	snaps := exportFixture(t)
	path := filepath.Join(t.TempDir(), "out", "snapshots.parquet")

	if _, err := ExportSnapshots(snaps, path, "parquet"); err != nil {
		t.Fatal(err)
	}

	rows, err := parquet.ReadFile[SnapshotRow](path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	r := rows[0]
	if r.Date != "2024-06-30" || r.PERatio == nil || *r.PERatio != 25 {
		t.Errorf("row = %+v", r)
	}
	if r.EVEBITDA != nil {
		t.Errorf("ev_ebitda should be null, got %v", *r.EVEBITDA)
	}
	if r.RunID != "run-export" {
		t.Errorf("run_id = %q", r.RunID)
	}
}

func TestExportSnapshotsXLSX(t *testing.T) {
	snaps := exportFixture(t)
	path := filepath.Join(t.TempDir(), "snapshots.xlsx")

	if _, err := ExportSnapshots(snaps, path, "xlsx"); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows("snapshots")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header + 1", len(rows))
	}
	if rows[0][0] != "ticker" || rows[1][0] != "XYZ" || rows[1][1] != "2024-06-30" {
		t.Errorf("unexpected sheet content: %v", rows)
	}
}
