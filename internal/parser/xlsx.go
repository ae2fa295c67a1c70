package parser

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/dispatch-cli/internal/validate"
)

// ParseOrdersXLSX parses the first sheet of an XLSX order export. The rows are
// funneled through the same header mapping and noise filtering as CSV input.
func ParseOrdersXLSX(path string, opts Options) (*Result, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "parser: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		zap.L().Warn("xlsx file has no sheets", zap.String("path", path))
		return &Result{Columns: validate.ColumnSet{}}, nil
	}
	sheet := f.Sheets[0]

	// Re-encode as CSV so both formats share one parse path.
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		if err := cw.Write(cells); err != nil {
			return nil, eris.Wrap(err, "parser: buffer xlsx row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, eris.Wrap(err, "parser: buffer xlsx")
	}

	return ParseOrders(&buf, opts)
}

// ParseOrdersFile dispatches on file extension: .xlsx workbooks go through the
// sheet reader, everything else is treated as CSV.
func ParseOrdersFile(path string, opts Options) (*Result, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ParseOrdersXLSX(path, opts)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "parser: open %s", path)
	}
	defer f.Close()
	return ParseOrders(f, opts)
}
