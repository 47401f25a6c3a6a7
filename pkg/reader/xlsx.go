package reader

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/logflow/procmap/internal/model"
	lferrors "github.com/logflow/procmap/pkg/errors"
)

// excelLayout renders serial dates in a layout timefmt accepts.
const excelLayout = "2006-01-02 15:04:05.999"

// XLSXReader reads the first (or a named) worksheet of an Excel workbook.
// The first row is the header.
type XLSXReader struct {
	cfg Config
}

// NewXLSXReader creates a new XLSX reader.
func NewXLSXReader(cfg Config) *XLSXReader {
	return &XLSXReader{cfg: cfg}
}

// ReadFile implements Reader.
func (p *XLSXReader) ReadFile(ctx context.Context, path string) (*model.Table, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table, err := p.Read(ctx, f)
	if err != nil {
		return nil, annotate(err, path)
	}
	return table, nil
}

// Read parses a workbook from r. Cells are read raw so numeric identifiers
// keep their digits; serial dates in the timestamp column become timestamps.
func (p *XLSXReader) Read(ctx context.Context, r io.Reader) (*model.Table, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, lferrors.Wrap(err, lferrors.CodeInvalidFormat, "open xlsx")
	}
	defer wb.Close()

	sheet := p.cfg.Sheet
	if sheet == "" {
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return nil, lferrors.New(lferrors.CodeInvalidFormat, "no sheets found in xlsx file")
		}
		sheet = sheets[0]
	}

	rows, err := wb.Rows(sheet)
	if err != nil {
		return nil, lferrors.Wrap(err, lferrors.CodeInvalidFormat, "read sheet").WithContext("sheet", sheet)
	}
	defer rows.Close()

	if !rows.Next() {
		return &model.Table{}, rows.Error()
	}
	header, err := rows.Columns()
	if err != nil {
		return nil, lferrors.Wrap(err, lferrors.CodeParseFailed, "read xlsx header")
	}
	b := newTableBuilder(header)

	for n := 1; rows.Next(); n++ {
		if err := canceled(ctx, n); err != nil {
			return nil, err
		}

		cols, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, lferrors.Wrap(err, lferrors.CodeParseFailed, "read xlsx row").WithContext("row", n)
		}
		if len(cols) == 0 {
			continue
		}

		row := make(model.Row, len(header))
		for i, v := range cols {
			if i >= len(header) || v == "" {
				continue
			}
			if header[i] == p.cfg.TimestampColumn {
				v = serialToTimestamp(v)
			}
			row[header[i]] = v
		}
		b.addRow(row)
	}
	if err := rows.Error(); err != nil {
		return nil, lferrors.Wrap(err, lferrors.CodeParseFailed, "read xlsx rows")
	}

	return b.table, nil
}

// serialToTimestamp converts an Excel serial date (days since 1899-12-30)
// into text. Non-numeric values are returned unchanged.
func serialToTimestamp(v string) string {
	serial, err := strconv.ParseFloat(v, 64)
	if err != nil || serial <= 0 {
		return v
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return v
	}
	return t.Round(time.Millisecond).Format(excelLayout)
}
