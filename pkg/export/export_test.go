package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/apache/arrow/go/v14/parquet/file"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/xuri/excelize/v2"

	"github.com/logflow/procmap/internal/testlog"
	"github.com/logflow/procmap/pkg/discovery"
	lferrors "github.com/logflow/procmap/pkg/errors"
	"github.com/logflow/procmap/pkg/kpi"
	"github.com/logflow/procmap/pkg/pipeline"
	"github.com/logflow/procmap/pkg/validate"
)

func scenarioResult(t *testing.T) *pipeline.Result {
	t.Helper()
	log := testlog.Log(t, testlog.OrderScenario()...)
	return &pipeline.Result{
		RunID:      "run-1",
		StartedAt:  testlog.T0,
		FinishedAt: testlog.T0.Add(time.Second),
		Columns:    validate.DefaultColumns(),
		Log:        log,
		DFG:        discovery.Discover(log),
		KPI:        kpi.Compute(log),
	}
}

func emptyResult(t *testing.T) *pipeline.Result {
	t.Helper()
	log := testlog.Log(t)
	return &pipeline.Result{
		RunID: "run-empty",
		Log:   log,
		DFG:   discovery.Discover(log),
		KPI:   kpi.Compute(log),
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestJSONExporter(t *testing.T) {
	dir := t.TempDir()
	exp := NewJSONExporter(dir)
	if err := exp.Export(context.Background(), scenarioResult(t)); err != nil {
		t.Fatalf("Export: %v", err)
	}

	var got kpi.Summary
	if err := json.Unmarshal([]byte(readFile(t, filepath.Join(dir, "kpi.json"))), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Cases != 2 || got.Events != 5 || got.UniqueActivities != 3 {
		t.Errorf("summary = %+v", got)
	}
	want := kpi.Ranking{
		{Activity: "Receive Order", Count: 2},
		{Activity: "Validate Order", Count: 2},
		{Activity: "Ship", Count: 1},
	}
	if !reflect.DeepEqual(got.TopActivities, want) {
		t.Errorf("TopActivities = %v, want %v", got.TopActivities, want)
	}
}

func TestJSONExporter_EmptyLogHasNulls(t *testing.T) {
	dir := t.TempDir()
	if err := NewJSONExporter(dir).Export(context.Background(), emptyResult(t)); err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := readFile(t, filepath.Join(dir, "kpi.json"))
	for _, want := range []string{`"time_window": null`, `"p95": null`, `"activity_frequency_top10": {}`} {
		if !strings.Contains(out, want) {
			t.Errorf("kpi.json missing %s:\n%s", want, out)
		}
	}
}

func TestCSVExporter(t *testing.T) {
	dir := t.TempDir()
	if err := NewCSVExporter(dir).Export(context.Background(), scenarioResult(t)); err != nil {
		t.Fatalf("Export: %v", err)
	}
	want := "source,target,frequency\nReceive Order,Validate Order,2\nValidate Order,Ship,1\n"
	if got := readFile(t, filepath.Join(dir, "edges.csv")); got != want {
		t.Errorf("edges.csv = %q, want %q", got, want)
	}
}

func TestWriteAtomic_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	if err := os.WriteFile(path, []byte("previous"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := writeAtomic(path, func(w io.Writer) error {
		io.WriteString(w, "partial")
		return errors.New("boom")
	})
	if !lferrors.IsCode(err, lferrors.CodeWriteFailed) {
		t.Fatalf("error = %v, want %s", err, lferrors.CodeWriteFailed)
	}
	if got := readFile(t, path); got != "previous" {
		t.Errorf("file = %q, want previous content kept", got)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the original file", len(entries))
	}
}

func TestTextExporter(t *testing.T) {
	dir := t.TempDir()
	if err := NewTextExporter(dir).Export(context.Background(), scenarioResult(t)); err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := readFile(t, filepath.Join(dir, "summary.txt"))
	for _, want := range []string{
		"Cases:               2",
		"Events:              5",
		"p95 4.80",
		"Start activities: Receive Order",
		"End activities:   Ship, Validate Order",
		"Receive Order -> Validate Order  (2, mean 1.50h)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestSummary_Empty(t *testing.T) {
	out := Summary(emptyResult(t))
	if !strings.Contains(out, "Time window:         n/a") || !strings.Contains(out, "mean n/a") {
		t.Errorf("unexpected empty summary:\n%s", out)
	}
}

func TestDOT(t *testing.T) {
	out := DOT(scenarioResult(t).DFG)
	for _, want := range []string{
		"digraph dfg {",
		`"Receive Order" -> "Validate Order" [label="2", penwidth=5.00];`,
		`"Validate Order" -> "Ship" [label="1", penwidth=3.00];`,
		`"__start" -> "Receive Order" [style=dashed];`,
		`"Ship" -> "__end" [style=dashed];`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("DOT missing %q:\n%s", want, out)
		}
	}

	if got := quote(`say "hi"`); got != `"say \"hi\""` {
		t.Errorf("quote = %s", got)
	}
}

func TestParquetExporter(t *testing.T) {
	dir := t.TempDir()
	exp := NewParquetExporter(dir, CompressionSnappy)
	if err := exp.Export(context.Background(), scenarioResult(t)); err != nil {
		t.Fatalf("Export: %v", err)
	}

	tests := []struct {
		file string
		rows int64
		cols int
	}{
		{"dfg.parquet", 2, 4},
		{"events.parquet", 5, 3},
	}
	for _, tt := range tests {
		rdr, err := file.OpenParquetFile(filepath.Join(dir, tt.file), false)
		if err != nil {
			t.Fatalf("open %s: %v", tt.file, err)
		}
		if rdr.NumRows() != tt.rows {
			t.Errorf("%s rows = %d, want %d", tt.file, rdr.NumRows(), tt.rows)
		}
		if n := rdr.MetaData().Schema.NumColumns(); n != tt.cols {
			t.Errorf("%s columns = %d, want %d", tt.file, n, tt.cols)
		}
		rdr.Close()
	}
}

func TestXLSXExporter(t *testing.T) {
	dir := t.TempDir()
	if err := NewXLSXExporter(dir).Export(context.Background(), scenarioResult(t)); err != nil {
		t.Fatalf("Export: %v", err)
	}

	wb, err := excelize.OpenFile(filepath.Join(dir, "procmap.xlsx"))
	if err != nil {
		t.Fatal(err)
	}
	defer wb.Close()

	if got := wb.GetSheetList(); !reflect.DeepEqual(got, []string{"KPI", "Edges", "Activities", "Cases"}) {
		t.Errorf("sheets = %v", got)
	}
	edges, err := wb.GetRows("Edges")
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 3 || edges[1][0] != "Receive Order" || edges[1][2] != "2" {
		t.Errorf("Edges sheet = %v", edges)
	}
	cases, _ := wb.GetRows("Cases")
	if len(cases) != 3 {
		t.Errorf("Cases sheet has %d rows, want 3", len(cases))
	}
}

func TestDuckDBExporter(t *testing.T) {
	dir := t.TempDir()
	if err := NewDuckDBExporter(dir).Export(context.Background(), scenarioResult(t)); err != nil {
		t.Fatalf("Export: %v", err)
	}

	db, err := sql.Open("duckdb", filepath.Join(dir, "procmap.duckdb"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	counts := map[string]int{"events": 5, "cases": 2, "activities": 3, "edges": 2, "run": 1}
	for table, want := range counts {
		var got int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&got); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if got != want {
			t.Errorf("%s rows = %d, want %d", table, got, want)
		}
	}

	var p95 float64
	if err := db.QueryRow(`SELECT value FROM kpi WHERE metric = 'throughput_p95_hours'`).Scan(&p95); err != nil {
		t.Fatal(err)
	}
	if p95 < 4.8-1e-9 || p95 > 4.8+1e-9 {
		t.Errorf("p95 = %v, want 4.8", p95)
	}
}

type fakeStore struct {
	entries []Entry
	err     error
}

func (f *fakeStore) SetAll(ctx context.Context, entries []Entry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entries...)
	return nil
}

func TestRedisExporter(t *testing.T) {
	store := &fakeStore{}
	cfg := DefaultRedisConfig("localhost:6379")
	exp := NewRedisExporter(store, cfg)

	if err := exp.Export(context.Background(), scenarioResult(t)); err != nil {
		t.Fatalf("Export: %v", err)
	}

	byKey := make(map[string]Entry)
	for _, e := range store.entries {
		byKey[e.Key] = e
	}
	if got := string(byKey["procmap:latest"].Value); got != "run-1" {
		t.Errorf("latest = %q, want run-1", got)
	}
	kpiEntry, ok := byKey["procmap:run:run-1:kpi"]
	if !ok {
		t.Fatalf("missing kpi key, got %v", store.entries)
	}
	if kpiEntry.TTL != cfg.TTL {
		t.Errorf("kpi TTL = %v, want %v", kpiEntry.TTL, cfg.TTL)
	}
	var dfg discovery.DFG
	if err := json.Unmarshal(byKey["procmap:run:run-1:dfg"].Value, &dfg); err != nil {
		t.Fatal(err)
	}
	if len(dfg.Edges) != 2 {
		t.Errorf("dfg edges = %d, want 2", len(dfg.Edges))
	}
}

func TestRedisExporter_Failure(t *testing.T) {
	exp := NewRedisExporter(&fakeStore{err: errors.New("connection refused")}, DefaultRedisConfig("x"))
	err := exp.Export(context.Background(), scenarioResult(t))
	if !lferrors.IsCode(err, lferrors.CodePublishFailed) {
		t.Errorf("error = %v, want %s", err, lferrors.CodePublishFailed)
	}
}

type fakePutter struct {
	mu      sync.Mutex
	objects map[string]string
	fail    bool
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.fail {
		return nil, errors.New("access denied")
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string]string)
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = string(body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Publisher(t *testing.T) {
	dir := t.TempDir()
	jsonExp := NewJSONExporter(dir)
	csvExp := NewCSVExporter(dir)

	putter := &fakePutter{}
	pub := NewS3Publisher(putter, S3Config{Bucket: "bucket", Prefix: "/exports/"}, jsonExp, csvExp)

	o := pipeline.NewOrchestrator(validate.New(validate.DefaultColumns()),
		pipeline.WithExporters(jsonExp, csvExp, pub))
	res, err := o.Run(context.Background(), testlog.Table(testlog.OrderScenario()...))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, name := range []string{"kpi.json", "edges.csv"} {
		key := "bucket/exports/" + res.RunID + "/" + name
		got, ok := putter.objects[key]
		if !ok {
			t.Errorf("missing object %s (have %v)", key, putter.objects)
			continue
		}
		if want := readFile(t, filepath.Join(dir, name)); got != want {
			t.Errorf("%s body differs from local file", key)
		}
	}
}

func TestS3Publisher_Failure(t *testing.T) {
	dir := t.TempDir()
	res := scenarioResult(t)
	jsonExp := NewJSONExporter(dir)
	if err := jsonExp.Export(context.Background(), res); err != nil {
		t.Fatal(err)
	}

	pub := NewS3Publisher(&fakePutter{fail: true}, S3Config{Bucket: "b"}, jsonExp)
	err := pub.Export(context.Background(), res)
	if !lferrors.IsCode(err, lferrors.CodePublishFailed) {
		t.Errorf("error = %v, want %s", err, lferrors.CodePublishFailed)
	}
}

func TestPaths(t *testing.T) {
	got := Paths(NewJSONExporter("out"), NewParquetExporter("out", CompressionNone))
	want := []string{
		filepath.Join("out", "kpi.json"),
		filepath.Join("out", "dfg.parquet"),
		filepath.Join("out", "events.parquet"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Paths = %v, want %v", got, want)
	}
}
