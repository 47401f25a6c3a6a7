package export

import (
	"context"
	"io"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/logflow/procmap/pkg/kpi"
	"github.com/logflow/procmap/pkg/pipeline"
)

// XLSXExporter writes a workbook with KPI, Edges, Activities and Cases sheets.
type XLSXExporter struct {
	dir  string
	file string
}

// NewXLSXExporter creates an exporter writing dir/procmap.xlsx.
func NewXLSXExporter(dir string) *XLSXExporter {
	return &XLSXExporter{dir: dir, file: "procmap.xlsx"}
}

func (e *XLSXExporter) Name() string    { return "xlsx" }
func (e *XLSXExporter) Dir() string     { return e.dir }
func (e *XLSXExporter) Files() []string { return []string{e.file} }

// Export implements pipeline.Exporter.
func (e *XLSXExporter) Export(ctx context.Context, res *pipeline.Result) error {
	wb := excelize.NewFile()
	defer wb.Close()

	header, err := wb.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	sheets := []struct {
		name string
		rows [][]interface{}
	}{
		{"KPI", kpiRows(res.KPI)},
		{"Edges", edgeRows(res)},
		{"Activities", activityRows(res)},
		{"Cases", caseRows(res)},
	}

	for i, s := range sheets {
		if i == 0 {
			if err := wb.SetSheetName(wb.GetSheetName(0), s.name); err != nil {
				return err
			}
		} else if _, err := wb.NewSheet(s.name); err != nil {
			return err
		}
		for r, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			if err := wb.SetSheetRow(s.name, cell, &row); err != nil {
				return err
			}
		}
		if len(s.rows) > 0 {
			last, _ := excelize.CoordinatesToCellName(len(s.rows[0]), 1)
			if err := wb.SetCellStyle(s.name, "A1", last, header); err != nil {
				return err
			}
		}
	}
	wb.SetActiveSheet(0)

	return writeAtomic(filepath.Join(e.dir, e.file), func(w io.Writer) error {
		_, err := wb.WriteTo(w)
		return err
	})
}

func kpiRows(s *kpi.Summary) [][]interface{} {
	rows := [][]interface{}{
		{"metric", "value"},
		{"cases", s.Cases},
		{"events", s.Events},
		{"unique_activities", s.UniqueActivities},
		{"avg_events_per_case", s.AvgEventsPerCase},
	}
	if s.TimeWindow != nil {
		rows = append(rows,
			[]interface{}{"first_event", s.TimeWindow.FirstEvent},
			[]interface{}{"last_event", s.TimeWindow.LastEvent})
	}
	for _, m := range throughputMetrics(s.Throughput) {
		if m.value != nil {
			rows = append(rows, []interface{}{m.name, *m.value})
		}
	}
	return rows
}

func edgeRows(res *pipeline.Result) [][]interface{} {
	rows := [][]interface{}{{"source", "target", "frequency", "mean_hours"}}
	for _, e := range res.DFG.Edges {
		rows = append(rows, []interface{}{e.Source, e.Target, e.Frequency, e.MeanHours})
	}
	return rows
}

func activityRows(res *pipeline.Result) [][]interface{} {
	rows := [][]interface{}{{"activity", "occurrences", "cases", "start", "end"}}
	for _, n := range res.DFG.Nodes {
		rows = append(rows, []interface{}{
			n.Activity, n.Occurrences, n.Cases,
			res.DFG.StartActivities.Contains(n.Activity),
			res.DFG.EndActivities.Contains(n.Activity),
		})
	}
	return rows
}

func caseRows(res *pipeline.Result) [][]interface{} {
	rows := [][]interface{}{{"case_id", "events", "start", "end", "throughput_hours"}}
	for _, c := range kpi.Cases(res.Log) {
		rows = append(rows, []interface{}{c.CaseID, c.Events, c.Start, c.End, c.ThroughputHours})
	}
	return rows
}

type metric struct {
	name  string
	value *float64
}

func throughputMetrics(t kpi.Throughput) []metric {
	return []metric{
		{"throughput_mean_hours", t.Mean},
		{"throughput_median_hours", t.Median},
		{"throughput_min_hours", t.Min},
		{"throughput_max_hours", t.Max},
		{"throughput_p95_hours", t.P95},
	}
}
