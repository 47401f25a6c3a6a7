package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"

	lferrors "github.com/logflow/procmap/pkg/errors"
	"github.com/logflow/procmap/pkg/kpi"
	"github.com/logflow/procmap/pkg/pipeline"
)

// DuckDBExporter writes the result into a DuckDB database file as a small
// star schema: fact table events, dimensions cases and activities, plus
// edges, kpi and run tables.
type DuckDBExporter struct {
	dir  string
	file string
}

// NewDuckDBExporter creates an exporter writing dir/procmap.duckdb.
func NewDuckDBExporter(dir string) *DuckDBExporter {
	return &DuckDBExporter{dir: dir, file: "procmap.duckdb"}
}

func (e *DuckDBExporter) Name() string    { return "duckdb" }
func (e *DuckDBExporter) Dir() string     { return e.dir }
func (e *DuckDBExporter) Files() []string { return []string{e.file} }

var duckdbSchema = []string{
	`CREATE TABLE run (
		run_id VARCHAR NOT NULL,
		started_at TIMESTAMP,
		finished_at TIMESTAMP
	)`,
	`CREATE TABLE events (
		case_id VARCHAR NOT NULL,
		activity VARCHAR NOT NULL,
		ts TIMESTAMP NOT NULL,
		source_row BIGINT NOT NULL
	)`,
	`CREATE TABLE cases (
		case_id VARCHAR NOT NULL,
		events BIGINT NOT NULL,
		start_ts TIMESTAMP NOT NULL,
		end_ts TIMESTAMP NOT NULL,
		throughput_hours DOUBLE NOT NULL
	)`,
	`CREATE TABLE activities (
		activity VARCHAR NOT NULL,
		occurrences BIGINT NOT NULL,
		cases BIGINT NOT NULL,
		is_start BOOLEAN NOT NULL,
		is_end BOOLEAN NOT NULL
	)`,
	`CREATE TABLE edges (
		source VARCHAR NOT NULL,
		target VARCHAR NOT NULL,
		frequency BIGINT NOT NULL,
		mean_hours DOUBLE NOT NULL
	)`,
	`CREATE TABLE kpi (
		metric VARCHAR NOT NULL,
		value DOUBLE
	)`,
}

// Export implements pipeline.Exporter.
func (e *DuckDBExporter) Export(ctx context.Context, res *pipeline.Result) error {
	path := filepath.Join(e.dir, e.file)
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return lferrors.WriteFailed(err, path)
	}
	tmp, err := tempPath(path)
	if err != nil {
		return lferrors.WriteFailed(err, path)
	}

	if err := e.build(ctx, tmp, res); err != nil {
		os.Remove(tmp)
		os.Remove(tmp + ".wal")
		return lferrors.WriteFailed(err, path)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return lferrors.WriteFailed(err, path)
	}
	return nil
}

func (e *DuckDBExporter) build(ctx context.Context, path string, res *pipeline.Result) (err error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb: %w", err)
	}
	defer func() {
		if cerr := db.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	for _, stmt := range duckdbSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO run VALUES (?, ?, ?)`,
		res.RunID, res.StartedAt.UTC(), res.FinishedAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	err = insertRows(ctx, tx, `INSERT INTO events VALUES (?, ?, ?, ?)`, res.Log.Len(), func(i int) []interface{} {
		ev := res.Log.At(i)
		return []interface{}{ev.CaseID, ev.Activity, ev.Timestamp.UTC(), int64(ev.Row)}
	})
	if err != nil {
		return err
	}

	cases := kpi.Cases(res.Log)
	err = insertRows(ctx, tx, `INSERT INTO cases VALUES (?, ?, ?, ?, ?)`, len(cases), func(i int) []interface{} {
		c := cases[i]
		return []interface{}{c.CaseID, int64(c.Events), c.Start.UTC(), c.End.UTC(), c.ThroughputHours}
	})
	if err != nil {
		return err
	}

	nodes := res.DFG.Nodes
	err = insertRows(ctx, tx, `INSERT INTO activities VALUES (?, ?, ?, ?, ?)`, len(nodes), func(i int) []interface{} {
		n := nodes[i]
		return []interface{}{n.Activity, int64(n.Occurrences), int64(n.Cases),
			res.DFG.StartActivities.Contains(n.Activity), res.DFG.EndActivities.Contains(n.Activity)}
	})
	if err != nil {
		return err
	}

	edges := res.DFG.Edges
	err = insertRows(ctx, tx, `INSERT INTO edges VALUES (?, ?, ?, ?)`, len(edges), func(i int) []interface{} {
		ed := edges[i]
		return []interface{}{ed.Source, ed.Target, int64(ed.Frequency), ed.MeanHours}
	})
	if err != nil {
		return err
	}

	metrics := kpiMetrics(res.KPI)
	err = insertRows(ctx, tx, `INSERT INTO kpi VALUES (?, ?)`, len(metrics), func(i int) []interface{} {
		m := metrics[i]
		if m.value == nil {
			return []interface{}{m.name, nil}
		}
		return []interface{}{m.name, *m.value}
	})
	if err != nil {
		return err
	}

	return tx.Commit()
}

func insertRows(ctx context.Context, tx *sql.Tx, query string, n int, row func(i int) []interface{}) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			return fmt.Errorf("failed to insert row: %w", err)
		}
	}
	return nil
}

// kpiMetrics flattens the summary into named numeric metrics.
func kpiMetrics(s *kpi.Summary) []metric {
	f := func(v float64) *float64 { return &v }
	out := []metric{
		{"cases", f(float64(s.Cases))},
		{"events", f(float64(s.Events))},
		{"unique_activities", f(float64(s.UniqueActivities))},
		{"avg_events_per_case", f(s.AvgEventsPerCase)},
	}
	return append(out, throughputMetrics(s.Throughput)...)
}
