package errors

import (
	"fmt"
	"sort"
	"strings"
)

// maxListedRows bounds how many row indices an error message spells out.
const maxListedRows = 20

// SchemaError reports required columns absent from the input.
type SchemaError struct {
	// Missing holds every absent required column, in required order.
	Missing []string

	// Available is the input's column set.
	Available []string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("[%s] missing required columns: %s (available: %s)",
		CodeMissingColumn, strings.Join(e.Missing, ", "), strings.Join(e.Available, ", "))
}

// ErrorCode implements Coded.
func (e *SchemaError) ErrorCode() Code {
	return CodeMissingColumn
}

// DataQualityError reports rows whose required values are null/empty or
// whose timestamp cannot be parsed. Row indices are 0-based input positions.
type DataQualityError struct {
	// TotalRows is the number of input rows examined.
	TotalRows int

	// NullRows lists rows with at least one null or empty required value.
	NullRows []int

	// NullColumns counts null/empty values per required column.
	NullColumns map[string]int

	// InvalidTimestampRows lists rows whose timestamp matched no accepted layout.
	InvalidTimestampRows []int
}

// Error implements the error interface.
func (e *DataQualityError) Error() string {
	var parts []string
	if n := len(e.NullRows); n > 0 {
		parts = append(parts, fmt.Sprintf("%d of %d rows have null or empty required values%s (rows %s)",
			n, e.TotalRows, e.formatNullColumns(), formatRows(e.NullRows)))
	}
	if n := len(e.InvalidTimestampRows); n > 0 {
		parts = append(parts, fmt.Sprintf("[%s] %d of %d rows have unparseable timestamps (rows %s)",
			CodeInvalidTimestamp, n, e.TotalRows, formatRows(e.InvalidTimestampRows)))
	}
	return fmt.Sprintf("[%s] data quality check failed: %s", CodeValidationFailed, strings.Join(parts, "; "))
}

// ErrorCode implements Coded.
func (e *DataQualityError) ErrorCode() Code {
	return CodeValidationFailed
}

// Codes lists the codes of the failed checks: always CodeValidationFailed,
// plus CodeInvalidTimestamp when any timestamp could not be parsed.
func (e *DataQualityError) Codes() []Code {
	codes := []Code{CodeValidationFailed}
	if len(e.InvalidTimestampRows) > 0 {
		codes = append(codes, CodeInvalidTimestamp)
	}
	return codes
}

// OffendingRows returns the number of distinct rows that failed any check.
func (e *DataQualityError) OffendingRows() int {
	seen := make(map[int]struct{}, len(e.NullRows)+len(e.InvalidTimestampRows))
	for _, r := range e.NullRows {
		seen[r] = struct{}{}
	}
	for _, r := range e.InvalidTimestampRows {
		seen[r] = struct{}{}
	}
	return len(seen)
}

func (e *DataQualityError) formatNullColumns() string {
	if len(e.NullColumns) == 0 {
		return ""
	}
	cols := make([]string, 0, len(e.NullColumns))
	for col, n := range e.NullColumns {
		cols = append(cols, fmt.Sprintf("%s=%d", col, n))
	}
	sort.Strings(cols)
	return " [" + strings.Join(cols, ", ") + "]"
}

func formatRows(rows []int) string {
	var sb strings.Builder
	for i, r := range rows {
		if i == maxListedRows {
			sb.WriteString(fmt.Sprintf(", ... %d more", len(rows)-maxListedRows))
			break
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%d", r))
	}
	return sb.String()
}
