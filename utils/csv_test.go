package utils

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/guregu/null/v6"
)

type csvRow struct {
	Ticker string     `col:"ticker"`
	Date   time.Time  `col:"date"   type:"date"`
	Close  float64    `col:"close"`
	Shares null.Float `col:"shares"`
	Filed  null.Time  `col:"filed"  type:"date"`
	Year   int        `col:"fiscal_year"`
	Note   string     `col:"-"`
}

func mustDate(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCSVStreamRoundTrip(t *testing.T) {
	rows := []csvRow{
		{Ticker: "AAPL", Date: mustDate("2024-06-28"), Close: 210.62, Shares: null.FloatFrom(15.2e9), Filed: null.TimeFrom(mustDate("2024-05-03")), Year: 2024},
		{Ticker: "BRK-B", Date: mustDate("2024-06-28"), Close: 406.8, Year: 2024},
	}

	var buf bytes.Buffer
	w, err := NewCSVStreamWriter[csvRow](&buf)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write(rows); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "ticker,date,close,shares,filed,fiscal_year" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[2] != "BRK-B,2024-06-28,406.8,,,2024" {
		t.Errorf("null row = %q", lines[2])
	}

	got, err := DecodeCSV[csvRow](&buf)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(rows, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeCSV(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    []csvRow
		wantErr bool
	}{
		{
			name:  "header order and case",
			input: "Close,TICKER,extra,date\n10.5,XYZ,ignored,2024-01-02\n",
			want:  []csvRow{{Ticker: "XYZ", Date: mustDate("2024-01-02"), Close: 10.5}},
		},
		{
			name:  "float year and compact date",
			input: "ticker,date,fiscal_year\nXYZ,20240102,2023.0\n",
			want:  []csvRow{{Ticker: "XYZ", Date: mustDate("2024-01-02"), Year: 2023}},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:    "bad float",
			input:   "ticker,close\nXYZ,abc\n",
			wantErr: true,
		},
		{
			name:    "bad date",
			input:   "ticker,date\nXYZ,01/02/2024\n",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeCSV[csvRow](strings.NewReader(tc.input))
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
