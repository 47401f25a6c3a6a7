package reader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/logflow/procmap/internal/model"
	lferrors "github.com/logflow/procmap/pkg/errors"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"events.csv", FormatCSV},
		{"EVENTS.CSV", FormatCSV},
		{"events.tsv", FormatTSV},
		{"events.jsonl", FormatJSONL},
		{"events.ndjson", FormatJSONL},
		{"events.xlsx", FormatXLSX},
		{"events.parquet", FormatParquet},
		{"events.xes", FormatUnknown},
		{"events", FormatUnknown},
	}
	for _, tt := range tests {
		if got := DetectFormat(tt.path); got != tt.want {
			t.Errorf("DetectFormat(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range []Format{FormatCSV, FormatTSV, FormatJSONL, FormatXLSX, FormatParquet} {
		if got := ParseFormat(f.String()); got != f {
			t.Errorf("ParseFormat(%q) = %s", f.String(), got)
		}
	}
	if got := ParseFormat(""); got != FormatUnknown {
		t.Errorf("ParseFormat(\"\") = %s", got)
	}
}

func TestCSVReader_Read(t *testing.T) {
	input := "\xEF\xBB\xBFcase_id,activity_name,timestamp,note\n" +
		"C1,Receive Order,2024-01-15 09:00:00,\"quoted, with comma\"\n" +
		"C1,,2024-01-15 10:00:00\n" +
		"C2,Ship,2024-01-15 11:00:00,x\n"

	table, err := NewCSVReader(DefaultConfig()).Read(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	wantCols := []string{"case_id", "activity_name", "timestamp", "note"}
	if !reflect.DeepEqual(table.Columns, wantCols) {
		t.Errorf("Columns = %v, want %v", table.Columns, wantCols)
	}
	if len(table.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(table.Rows))
	}
	if got := table.Rows[0]["note"]; got != "quoted, with comma" {
		t.Errorf("note = %q", got)
	}
	if _, ok := table.Rows[1]["activity_name"]; ok {
		t.Error("empty field should be left out of the row")
	}
	if _, ok := table.Rows[1]["note"]; ok {
		t.Error("short record should not produce trailing values")
	}
}

func TestCSVReader_Empty(t *testing.T) {
	table, err := NewCSVReader(DefaultConfig()).Read(context.Background(), strings.NewReader(""))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(table.Columns) != 0 || len(table.Rows) != 0 {
		t.Errorf("table = %+v, want empty", table)
	}
}

func TestCSVReader_Malformed(t *testing.T) {
	input := "case_id,activity_name\nC1,\"unterminated\n"
	_, err := NewCSVReader(DefaultConfig()).Read(context.Background(), strings.NewReader(input))
	if !lferrors.IsCode(err, lferrors.CodeParseFailed) {
		t.Errorf("error = %v, want %s", err, lferrors.CodeParseFailed)
	}
}

func TestReadFile_TSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.tsv")
	data := "case_id\tactivity_name\ttimestamp\nC1\tA, B\t2024-01-15\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := ReadFile(context.Background(), path, FormatUnknown, DefaultConfig())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got := table.Rows[0]["activity_name"]; got != "A, B" {
		t.Errorf("activity_name = %q", got)
	}
}

func TestReadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadFile(context.Background(), filepath.Join(dir, "missing.csv"), FormatUnknown, DefaultConfig())
	if !lferrors.IsCode(err, lferrors.CodeFileNotFound) {
		t.Errorf("missing file: error = %v, want %s", err, lferrors.CodeFileNotFound)
	}

	_, err = ReadFile(context.Background(), filepath.Join(dir, "events.xes"), FormatUnknown, DefaultConfig())
	if !lferrors.IsCode(err, lferrors.CodeInvalidFormat) {
		t.Errorf("unknown extension: error = %v, want %s", err, lferrors.CodeInvalidFormat)
	}
}

func TestJSONLReader_Read(t *testing.T) {
	input := `{"case_id":"C1","activity_name":"Receive Order","timestamp":"2024-01-15T09:00:00Z"}

{"case_id":1002,"activity_name":null,"timestamp":"2024-01-15T10:00:00Z","meta":{"k":1}}
{"timestamp":"2024-01-15T11:00:00Z","case_id":"C3","flag":true}
`
	table, err := NewJSONLReader().Read(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	wantCols := []string{"case_id", "activity_name", "timestamp", "meta", "flag"}
	if !reflect.DeepEqual(table.Columns, wantCols) {
		t.Errorf("Columns = %v, want %v", table.Columns, wantCols)
	}
	if len(table.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(table.Rows))
	}

	tests := []struct {
		row     int
		col     string
		want    string
		present bool
	}{
		{0, "activity_name", "Receive Order", true},
		{1, "case_id", "1002", true},
		{1, "activity_name", "", false},
		{1, "meta", `{"k":1}`, true},
		{2, "activity_name", "", false},
		{2, "flag", "true", true},
	}
	for _, tt := range tests {
		got, ok := table.Rows[tt.row][tt.col]
		if ok != tt.present || got != tt.want {
			t.Errorf("row %d %s = %q (present %v), want %q (present %v)", tt.row, tt.col, got, ok, tt.want, tt.present)
		}
	}
}

func TestJSONLReader_InvalidLine(t *testing.T) {
	tests := []struct {
		input string
		code  lferrors.Code
	}{
		{"{\"case_id\":\"C1\"}\n{broken\n", lferrors.CodeParseFailed},
		{"[1,2,3]\n", lferrors.CodeInvalidFormat},
	}
	for _, tt := range tests {
		_, err := NewJSONLReader().Read(context.Background(), strings.NewReader(tt.input))
		if !lferrors.IsCode(err, tt.code) {
			t.Errorf("Read(%q) error = %v, want %s", tt.input, err, tt.code)
		}
	}
}

func TestXLSXReader_ReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.xlsx")

	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	rows := [][]interface{}{
		{"case_id", "activity_name", "timestamp"},
		{1001, "Receive Order", time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)},
		{1001, "Ship", "2024-01-15 12:30:00"},
		{1002, nil, time.Date(2024, 1, 16, 8, 0, 0, 0, time.UTC)},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := wb.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	if err := wb.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	wb.Close()

	table, err := ReadFile(context.Background(), path, FormatUnknown, DefaultConfig())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(table.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(table.Rows))
	}

	want := []model.Row{
		{"case_id": "1001", "activity_name": "Receive Order", "timestamp": "2024-01-15 09:00:00"},
		{"case_id": "1001", "activity_name": "Ship", "timestamp": "2024-01-15 12:30:00"},
		{"case_id": "1002", "timestamp": "2024-01-16 08:00:00"},
	}
	for i, w := range want {
		if !reflect.DeepEqual(table.Rows[i], w) {
			t.Errorf("row %d = %v, want %v", i, table.Rows[i], w)
		}
	}
}

func TestDuckDBReader_Parquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.parquet")

	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	_, err = db.Exec(fmt.Sprintf(`COPY (
		SELECT * FROM (VALUES
			('C1', 'Receive Order', TIMESTAMP '2024-01-15 09:00:00'),
			('C1', NULL, TIMESTAMP '2024-01-15 10:30:00')
		) AS t(case_id, activity_name, timestamp)
	) TO '%s' (FORMAT PARQUET)`, escapePath(path)))
	if err != nil {
		t.Fatalf("write parquet: %v", err)
	}

	table, err := ReadFile(context.Background(), path, FormatParquet, DefaultConfig())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	want := []model.Row{
		{"case_id": "C1", "activity_name": "Receive Order", "timestamp": "2024-01-15T09:00:00Z"},
		{"case_id": "C1", "timestamp": "2024-01-15T10:30:00Z"},
	}
	if !reflect.DeepEqual(table.Rows, want) {
		t.Errorf("rows = %v, want %v", table.Rows, want)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
		ok   bool
	}{
		{nil, "", false},
		{"x", "x", true},
		{[]byte("b"), "b", true},
		{int64(42), "42", true},
		{1.5, "1.5", true},
		{true, "true", true},
		{time.Date(2024, 1, 15, 9, 0, 0, 0, time.FixedZone("X", 3600)), "2024-01-15T08:00:00Z", true},
	}
	for _, tt := range tests {
		got, ok := formatValue(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("formatValue(%v) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCSVReader_Canceled(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("case_id,activity_name,timestamp\n")
	for i := 0; i < 2*checkEvery; i++ {
		fmt.Fprintf(&sb, "c%d,A,2024-01-01 00:00:00\n", i)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCSVReader(DefaultConfig()).Read(ctx, strings.NewReader(sb.String()))
	if !lferrors.IsCode(err, lferrors.CodeContextCanceled) {
		t.Fatalf("Read() error = %v, want %s", err, lferrors.CodeContextCanceled)
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("expected error to wrap context.Canceled")
	}
}
