// Package reader loads tabular event data from CSV, JSONL, XLSX and Parquet
// files into a raw model.Table ready for validation.
package reader

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/logflow/procmap/internal/model"
	lferrors "github.com/logflow/procmap/pkg/errors"
)

// Reader loads a file into a raw table. Values are kept as text; a null or
// missing value is left out of the row.
type Reader interface {
	ReadFile(ctx context.Context, path string) (*model.Table, error)
}

// Format represents a supported input format.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatCSV
	FormatTSV
	FormatJSONL
	FormatXLSX
	FormatParquet
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatTSV:
		return "tsv"
	case FormatJSONL:
		return "jsonl"
	case FormatXLSX:
		return "xlsx"
	case FormatParquet:
		return "parquet"
	default:
		return "unknown"
	}
}

// ParseFormat parses a format name. An empty string yields FormatUnknown.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV
	case "tsv", "tab":
		return FormatTSV
	case "jsonl", "ndjson", "json":
		return FormatJSONL
	case "xlsx", "excel":
		return FormatXLSX
	case "parquet", "pq":
		return FormatParquet
	default:
		return FormatUnknown
	}
}

// DetectFormat infers the format from the file extension.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV
	case ".tsv":
		return FormatTSV
	case ".jsonl", ".ndjson", ".json":
		return FormatJSONL
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".parquet", ".pq":
		return FormatParquet
	default:
		return FormatUnknown
	}
}

// Config holds reader options.
type Config struct {
	// Delimiter is the CSV field delimiter (default: comma).
	Delimiter rune

	// Sheet selects the XLSX worksheet (default: first sheet).
	Sheet string

	// TimestampColumn names the column whose XLSX serial dates are
	// rendered as timestamps.
	TimestampColumn string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Delimiter:       ',',
		TimestampColumn: "timestamp",
	}
}

// New creates a reader for the given format.
func New(format Format, cfg Config) (Reader, error) {
	switch format {
	case FormatCSV:
		return NewCSVReader(cfg), nil
	case FormatTSV:
		cfg.Delimiter = '\t'
		return NewCSVReader(cfg), nil
	case FormatJSONL:
		return NewJSONLReader(), nil
	case FormatXLSX:
		return NewXLSXReader(cfg), nil
	case FormatParquet:
		return NewDuckDBReader(SourceParquet), nil
	default:
		return nil, lferrors.New(lferrors.CodeInvalidFormat, "unsupported input format").
			WithContext("format", format.String())
	}
}

// ReadFile reads path with the given format, detecting it from the
// extension when format is FormatUnknown.
func ReadFile(ctx context.Context, path string, format Format, cfg Config) (*model.Table, error) {
	if format == FormatUnknown {
		format = DetectFormat(path)
	}
	if format == FormatUnknown {
		return nil, lferrors.New(lferrors.CodeInvalidFormat, "cannot detect input format").
			WithContext("path", path)
	}
	r, err := New(format, cfg)
	if err != nil {
		return nil, err
	}
	return r.ReadFile(ctx, path)
}

// openFile opens path, mapping a missing file to a coded error.
func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lferrors.FileNotFound(path)
		}
		return nil, lferrors.Wrap(err, lferrors.CodeParseFailed, "open input").WithContext("path", path)
	}
	return f, nil
}

// tableBuilder accumulates rows while tracking first-seen column order.
type tableBuilder struct {
	table *model.Table
	seen  map[string]struct{}
}

func newTableBuilder(columns []string) *tableBuilder {
	b := &tableBuilder{
		table: &model.Table{},
		seen:  make(map[string]struct{}, len(columns)),
	}
	for _, c := range columns {
		b.addColumn(c)
	}
	return b
}

func (b *tableBuilder) addColumn(name string) {
	if _, ok := b.seen[name]; ok {
		return
	}
	b.seen[name] = struct{}{}
	b.table.Columns = append(b.table.Columns, name)
}

func (b *tableBuilder) addRow(row model.Row) {
	b.table.Rows = append(b.table.Rows, row)
}

// checkEvery is how many rows pass between context checks.
const checkEvery = 1024

func canceled(ctx context.Context, n int) error {
	if n%checkEvery != 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return lferrors.ContextCanceled("read", err)
	}
	return nil
}
