package export

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"

	"github.com/logflow/procmap/pkg/pipeline"
)

// JSONExporter writes the KPI summary as an indented JSON object.
type JSONExporter struct {
	dir  string
	file string
}

// NewJSONExporter creates an exporter writing dir/kpi.json.
func NewJSONExporter(dir string) *JSONExporter {
	return &JSONExporter{dir: dir, file: "kpi.json"}
}

func (e *JSONExporter) Name() string    { return "json" }
func (e *JSONExporter) Dir() string     { return e.dir }
func (e *JSONExporter) Files() []string { return []string{e.file} }

// Export implements pipeline.Exporter.
func (e *JSONExporter) Export(ctx context.Context, res *pipeline.Result) error {
	return writeAtomic(filepath.Join(e.dir, e.file), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res.KPI)
	})
}
