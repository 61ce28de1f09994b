package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/jing2uo/valuedb/calc"
	"github.com/jing2uo/valuedb/utils"
)

// Returns 输出区间价格收益与总收益 (JSON)
func Returns(ctx context.Context, dbURI, ticker, from, to string, w io.Writer) error {
	t, ok := utils.NormalizeTicker(ticker)
	if !ok {
		return fmt.Errorf("invalid ticker: %q", ticker)
	}
	start, end, err := DateRange(from, to)
	if err != nil {
		return err
	}

	db, err := openDB(dbURI)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := calc.NewActionRegistry(db).Returns(ctx, db, t, start, end)
	if err != nil {
		return err
	}
	return writeJSON(w, res)
}
