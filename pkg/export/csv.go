package export

import (
	"context"
	"encoding/csv"
	"io"
	"path/filepath"
	"strconv"

	"github.com/logflow/procmap/pkg/pipeline"
)

// CSVExporter writes the DFG edge table as source,target,frequency rows in
// edge order.
type CSVExporter struct {
	dir  string
	file string
}

// NewCSVExporter creates an exporter writing dir/edges.csv.
func NewCSVExporter(dir string) *CSVExporter {
	return &CSVExporter{dir: dir, file: "edges.csv"}
}

func (e *CSVExporter) Name() string    { return "csv" }
func (e *CSVExporter) Dir() string     { return e.dir }
func (e *CSVExporter) Files() []string { return []string{e.file} }

// Export implements pipeline.Exporter.
func (e *CSVExporter) Export(ctx context.Context, res *pipeline.Result) error {
	return writeAtomic(filepath.Join(e.dir, e.file), func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"source", "target", "frequency"}); err != nil {
			return err
		}
		for _, edge := range res.DFG.Edges {
			if err := cw.Write([]string{edge.Source, edge.Target, strconv.Itoa(edge.Frequency)}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}
