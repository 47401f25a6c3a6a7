package export

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/logflow/procmap/pkg/pipeline"
)

// TextExporter writes a plain-text summary report.
type TextExporter struct {
	dir  string
	file string
}

// NewTextExporter creates an exporter writing dir/summary.txt.
func NewTextExporter(dir string) *TextExporter {
	return &TextExporter{dir: dir, file: "summary.txt"}
}

func (e *TextExporter) Name() string    { return "text" }
func (e *TextExporter) Dir() string     { return e.dir }
func (e *TextExporter) Files() []string { return []string{e.file} }

// Export implements pipeline.Exporter.
func (e *TextExporter) Export(ctx context.Context, res *pipeline.Result) error {
	return writeAtomic(filepath.Join(e.dir, e.file), func(w io.Writer) error {
		_, err := io.WriteString(w, Summary(res))
		return err
	})
}

// Summary renders the textual report for a result.
func Summary(res *pipeline.Result) string {
	var sb strings.Builder
	k := res.KPI

	sb.WriteString("Process Summary\n")
	sb.WriteString("===============\n\n")
	fmt.Fprintf(&sb, "Run:                 %s\n", res.RunID)
	fmt.Fprintf(&sb, "Cases:               %d\n", k.Cases)
	fmt.Fprintf(&sb, "Events:              %d\n", k.Events)
	fmt.Fprintf(&sb, "Unique activities:   %d\n", k.UniqueActivities)
	fmt.Fprintf(&sb, "Avg events per case: %.2f\n", k.AvgEventsPerCase)
	if k.TimeWindow != nil {
		fmt.Fprintf(&sb, "Time window:         %s .. %s\n",
			k.TimeWindow.FirstEvent.Format(time.RFC3339), k.TimeWindow.LastEvent.Format(time.RFC3339))
	} else {
		sb.WriteString("Time window:         n/a\n")
	}

	sb.WriteString("\nThroughput (hours)\n")
	t := k.Throughput
	fmt.Fprintf(&sb, "  mean %s  median %s  min %s  max %s  p95 %s\n",
		formatHours(t.Mean), formatHours(t.Median), formatHours(t.Min), formatHours(t.Max), formatHours(t.P95))

	sb.WriteString("\nTop activities\n")
	for i, a := range k.TopActivities {
		fmt.Fprintf(&sb, "  %2d. %-30s %d\n", i+1, a.Activity, a.Count)
	}

	sb.WriteString("\nStart activities: ")
	sb.WriteString(strings.Join(res.DFG.StartActivities, ", "))
	sb.WriteString("\nEnd activities:   ")
	sb.WriteString(strings.Join(res.DFG.EndActivities, ", "))

	sb.WriteString("\n\nDirectly-follows edges\n")
	for _, e := range res.DFG.Edges {
		fmt.Fprintf(&sb, "  %s -> %s  (%d, mean %.2fh)\n", e.Source, e.Target, e.Frequency, e.MeanHours)
	}
	return sb.String()
}
