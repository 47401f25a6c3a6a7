package reader

import (
	"context"
	"encoding/csv"
	"errors"
	"io"

	"github.com/logflow/procmap/internal/model"
	lferrors "github.com/logflow/procmap/pkg/errors"
)

// CSVReader reads delimited text with a header row.
type CSVReader struct {
	cfg Config
}

// NewCSVReader creates a new CSV reader.
func NewCSVReader(cfg Config) *CSVReader {
	if cfg.Delimiter == 0 {
		cfg.Delimiter = ','
	}
	return &CSVReader{cfg: cfg}
}

// ReadFile implements Reader.
func (p *CSVReader) ReadFile(ctx context.Context, path string) (*model.Table, error) {
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

// Read parses CSV from r. An empty input yields a table with no columns.
// Empty fields are left out of the row and validate as null.
func (p *CSVReader) Read(ctx context.Context, r io.Reader) (*model.Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = p.cfg.Delimiter
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &model.Table{}, nil
	}
	if err != nil {
		return nil, lferrors.Wrap(err, lferrors.CodeParseFailed, "read csv header")
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = trimBOM(h, i)
	}
	b := newTableBuilder(columns)

	for n := 1; ; n++ {
		if err := canceled(ctx, n); err != nil {
			return nil, err
		}

		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, lferrors.Wrap(err, lferrors.CodeParseFailed, "read csv record")
		}

		row := make(model.Row, len(columns))
		for i, v := range record {
			if i < len(columns) && v != "" {
				row[columns[i]] = v
			}
		}
		b.addRow(row)
	}

	return b.table, nil
}

// trimBOM strips a UTF-8 byte order mark from the first header cell.
func trimBOM(s string, i int) string {
	if i == 0 && len(s) >= 3 && s[0] == 0xEF && s[1] == 0xBB && s[2] == 0xBF {
		return s[3:]
	}
	return s
}

func annotate(err error, path string) error {
	var lfe *lferrors.LogFlowError
	if errors.As(err, &lfe) {
		return lfe.WithContext("path", path)
	}
	return err
}
