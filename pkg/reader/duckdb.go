package reader

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/logflow/procmap/internal/model"
	lferrors "github.com/logflow/procmap/pkg/errors"
)

// Source selects the DuckDB table function used to scan a file.
type Source string

const (
	SourceParquet Source = "read_parquet"
	SourceCSV     Source = "read_csv_auto"
)

// DuckDBReader scans a file through an in-memory DuckDB instance.
type DuckDBReader struct {
	source Source
}

// NewDuckDBReader creates a reader for the given scan function.
func NewDuckDBReader(source Source) *DuckDBReader {
	return &DuckDBReader{source: source}
}

// ReadFile implements Reader. Typed columns are rendered as text;
// timestamps are rendered in RFC 3339 (UTC).
func (p *DuckDBReader) ReadFile(ctx context.Context, path string) (*model.Table, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, lferrors.FileNotFound(path)
		}
		return nil, lferrors.Wrap(err, lferrors.CodeParseFailed, "stat input").WithContext("path", path)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	defer db.Close()

	query := fmt.Sprintf("SELECT * FROM %s('%s')", p.source, escapePath(path))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, lferrors.Wrap(err, lferrors.CodeInvalidFormat, "scan input").
			WithContext("path", path).
			WithContext("source", string(p.source))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, lferrors.Wrap(err, lferrors.CodeParseFailed, "read columns")
	}
	b := newTableBuilder(columns)

	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for n := 1; rows.Next(); n++ {
		if err := canceled(ctx, n); err != nil {
			return nil, err
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, lferrors.Wrap(err, lferrors.CodeParseFailed, "scan row").WithContext("row", n-1)
		}

		row := make(model.Row, len(columns))
		for i, v := range values {
			if s, ok := formatValue(v); ok {
				row[columns[i]] = s
			}
		}
		b.addRow(row)
	}
	if err := rows.Err(); err != nil {
		return nil, lferrors.Wrap(err, lferrors.CodeParseFailed, "read rows").WithContext("path", path)
	}

	return b.table, nil
}

// formatValue renders a scanned value as text. It reports false for NULL.
func formatValue(v interface{}) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case []byte:
		return string(x), true
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	default:
		return fmt.Sprint(x), true
	}
}

func escapePath(path string) string {
	return strings.ReplaceAll(path, "'", "''")
}
