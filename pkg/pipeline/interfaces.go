// Package pipeline sequences validation, discovery, KPI computation and export.
// Data flows strictly one way: raw table -> event log -> {DFG, KPIs} -> exporters.
package pipeline

import (
	"context"
	"time"

	"github.com/logflow/procmap/internal/model"
	"github.com/logflow/procmap/pkg/discovery"
	"github.com/logflow/procmap/pkg/kpi"
	"github.com/logflow/procmap/pkg/validate"
)

// Result is everything one run produces. Exporters must treat it as read-only.
type Result struct {
	// RunID uniquely identifies the run.
	RunID string

	StartedAt  time.Time
	FinishedAt time.Time

	// Columns are the required input columns the log was validated against.
	Columns validate.Columns

	Log *model.EventLog
	DFG *discovery.DFG
	KPI *kpi.Summary
}

// Exporter renders a Result into some persisted or served form.
type Exporter interface {
	// Name returns the exporter identifier (e.g., "json", "csv", "s3").
	Name() string

	// Export writes the result. It must not modify res.
	Export(ctx context.Context, res *Result) error
}

// ExporterFunc adapts a function to the Exporter interface.
type ExporterFunc struct {
	ID string
	Fn func(ctx context.Context, res *Result) error
}

// Name implements Exporter.
func (f ExporterFunc) Name() string { return f.ID }

// Export implements Exporter.
func (f ExporterFunc) Export(ctx context.Context, res *Result) error { return f.Fn(ctx, res) }

// Verify interface compliance.
var _ Exporter = ExporterFunc{}
