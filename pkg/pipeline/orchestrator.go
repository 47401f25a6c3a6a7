package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/logflow/procmap/internal/model"
	"github.com/logflow/procmap/pkg/discovery"
	lferrors "github.com/logflow/procmap/pkg/errors"
	"github.com/logflow/procmap/pkg/kpi"
	"github.com/logflow/procmap/pkg/observe"
	"github.com/logflow/procmap/pkg/validate"
)

const tracerName = "github.com/logflow/procmap/pkg/pipeline"

// Orchestrator runs validation, discovery, KPI computation and exporters.
// It is the only component aware of all the others.
type Orchestrator struct {
	validator  *validate.Validator
	exporters  []Exporter
	observer   observe.Observer
	tracer     trace.Tracer
	concurrent bool
	onExport   func(done, total int, name string)

	newID func() string
	now   func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithExporters appends exporters; they run in the given order.
func WithExporters(exporters ...Exporter) Option {
	return func(o *Orchestrator) {
		o.exporters = append(o.exporters, exporters...)
	}
}

// WithObserver sets the sink for run-level messages.
func WithObserver(obs observe.Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithTracer overrides the tracer (defaults to the global provider).
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithConcurrency runs discovery and KPI computation in parallel.
// Results are identical either way.
func WithConcurrency(enabled bool) Option {
	return func(o *Orchestrator) {
		o.concurrent = enabled
	}
}

// WithExportProgress registers a callback invoked after each exporter finishes.
func WithExportProgress(fn func(done, total int, name string)) Option {
	return func(o *Orchestrator) {
		o.onExport = fn
	}
}

// NewOrchestrator creates an orchestrator around a validator.
func NewOrchestrator(v *validate.Validator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		validator: v,
		observer:  observe.Nop{},
		tracer:    otel.Tracer(tracerName),
		newID:     func() string { return uuid.New().String() },
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the full pipeline. Validation failures abort the run before
// discovery, computation, or any exporter executes.
func (o *Orchestrator) Run(ctx context.Context, table *model.Table) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	res, err := o.analyze(ctx, table)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("procmap.run_id", res.RunID))

	if err := o.export(ctx, res); err != nil {
		recordError(span, err)
		return res, err
	}

	o.observer.Info("pipeline finished",
		"run_id", res.RunID,
		"events", res.KPI.Events,
		"cases", res.KPI.Cases,
		"edges", len(res.DFG.Edges),
		"exporters", len(o.exporters),
		"duration", res.FinishedAt.Sub(res.StartedAt))
	return res, nil
}

// Analyze validates and analyzes the table without running exporters.
func (o *Orchestrator) Analyze(ctx context.Context, table *model.Table) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.analyze")
	defer span.End()

	res, err := o.analyze(ctx, table)
	if err != nil {
		recordError(span, err)
	}
	return res, err
}

func (o *Orchestrator) analyze(ctx context.Context, table *model.Table) (*Result, error) {
	res := &Result{
		RunID:     o.newID(),
		StartedAt: o.now(),
		Columns:   o.validator.Columns(),
	}

	if err := checkContext(ctx, "validate"); err != nil {
		return nil, err
	}

	_, span := o.tracer.Start(ctx, "pipeline.validate")
	if table != nil {
		span.SetAttributes(attribute.Int("procmap.rows", len(table.Rows)))
	}
	log, err := o.validator.Validate(table)
	if err != nil {
		recordError(span, err)
		span.End()
		return nil, err
	}
	span.End()
	res.Log = log

	if err := checkContext(ctx, "analyze"); err != nil {
		return nil, err
	}

	if o.concurrent {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			res.DFG = o.discover(gctx, log)
			return nil
		})
		g.Go(func() error {
			res.KPI = o.compute(gctx, log)
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		res.DFG = o.discover(ctx, log)
		res.KPI = o.compute(ctx, log)
	}

	res.FinishedAt = o.now()
	return res, nil
}

func (o *Orchestrator) discover(ctx context.Context, log *model.EventLog) *discovery.DFG {
	_, span := o.tracer.Start(ctx, "pipeline.discover")
	defer span.End()
	dfg := discovery.Discover(log)
	span.SetAttributes(attribute.Int("procmap.edges", len(dfg.Edges)))
	return dfg
}

func (o *Orchestrator) compute(ctx context.Context, log *model.EventLog) *kpi.Summary {
	_, span := o.tracer.Start(ctx, "pipeline.kpi")
	defer span.End()
	s := kpi.Compute(log)
	span.SetAttributes(attribute.Int("procmap.cases", s.Cases))
	return s
}

// export runs exporters in order, stopping at the first failure.
func (o *Orchestrator) export(ctx context.Context, res *Result) error {
	for i, exp := range o.exporters {
		if err := checkContext(ctx, "export"); err != nil {
			return err
		}

		ectx, span := o.tracer.Start(ctx, "pipeline.export",
			trace.WithAttributes(attribute.String("procmap.exporter", exp.Name())))
		err := exp.Export(ectx, res)
		if err != nil {
			recordError(span, err)
			span.End()
			return fmt.Errorf("exporter %s: %w", exp.Name(), err)
		}
		span.End()

		o.observer.Info("exported", "exporter", exp.Name(), "run_id", res.RunID)
		if o.onExport != nil {
			o.onExport(i+1, len(o.exporters), exp.Name())
		}
	}
	return nil
}

func checkContext(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return lferrors.ContextCanceled(stage, err)
	}
	return nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
