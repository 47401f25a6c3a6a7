package main

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/logflow/procmap/internal/model"
	"github.com/logflow/procmap/pkg/config"
	lferrors "github.com/logflow/procmap/pkg/errors"
	"github.com/logflow/procmap/pkg/export"
	"github.com/logflow/procmap/pkg/observe"
	"github.com/logflow/procmap/pkg/pipeline"
	"github.com/logflow/procmap/pkg/reader"
	"github.com/logflow/procmap/pkg/telemetry"
	"github.com/logflow/procmap/pkg/validate"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath  string
	input       string
	outputDir   string
	formats     []string
	inputFormat string
	delimiter   string
	sheet       string
	caseID      string
	activity    string
	timestamp   string
	concurrent  bool
	logLevel    string
	logFormat   string

	// debug is set once the resolved log level is debug.
	debug bool
}

func (f *globalFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Config file (default: ~/.procmap/config.yaml, ./.procmap.yaml)")
	pf.StringVarP(&f.input, "input", "i", "", "Input event log")
	pf.StringVarP(&f.outputDir, "output", "o", "", "Output directory")
	pf.StringSliceVarP(&f.formats, "format", "f", nil, "Output formats: json,csv,text,dot,parquet,xlsx,duckdb")
	pf.StringVar(&f.inputFormat, "input-format", "", "Input format: csv|tsv|jsonl|xlsx|parquet (default: by extension)")
	pf.StringVar(&f.delimiter, "delimiter", "", "CSV field delimiter")
	pf.StringVar(&f.sheet, "sheet", "", "XLSX worksheet (default: first)")
	pf.StringVar(&f.caseID, "case-col", "", "Case ID column")
	pf.StringVar(&f.activity, "activity-col", "", "Activity column")
	pf.StringVar(&f.timestamp, "timestamp-col", "", "Timestamp column")
	pf.BoolVar(&f.concurrent, "concurrent", false, "Run discovery and KPI computation in parallel")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	pf.StringVar(&f.logFormat, "log-format", "", "Log format: text|logfmt|json")
}

// apply overlays flags the user set explicitly.
func (f *globalFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	set := func(name string, dst *string, v string) {
		if changed(name) {
			*dst = v
		}
	}

	set("output", &cfg.Output.Dir, f.outputDir)
	set("input-format", &cfg.Input.Format, f.inputFormat)
	set("delimiter", &cfg.Input.Delimiter, f.delimiter)
	set("sheet", &cfg.Input.Sheet, f.sheet)
	set("case-col", &cfg.Columns.CaseID, f.caseID)
	set("activity-col", &cfg.Columns.Activity, f.activity)
	set("timestamp-col", &cfg.Columns.Timestamp, f.timestamp)
	set("log-level", &cfg.Logging.Level, f.logLevel)
	set("log-format", &cfg.Logging.Format, f.logFormat)
	if changed("format") {
		cfg.Output.Formats = f.formats
	}
	if changed("concurrent") {
		cfg.Pipeline.Concurrent = f.concurrent
	}
}

// app holds what a command needs once configuration is resolved.
type app struct {
	cfg       *config.Config
	debug     bool
	logger    *log.Logger
	telemetry *telemetry.Provider
	stdout    io.Writer
	stderr    io.Writer
}

// newApp loads configuration, builds the logger and starts tracing.
func newApp(cmd *cobra.Command, flags *globalFlags) (*app, error) {
	m := config.NewManager()
	if err := m.Load(flags.configPath); err != nil {
		return nil, err
	}
	cfg := m.Get()
	flags.apply(cmd, cfg)
	flags.debug = cfg.Logging.Level == "debug"
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := observe.NewLogger(cmd.ErrOrStderr(), observe.LoggerOptions{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, lferrors.Wrap(err, lferrors.CodeInvalidConfig, "configure logger")
	}
	for _, p := range m.Paths() {
		logger.Debug("loaded config", "path", p)
	}

	tcfg := cfg.Telemetry
	if tcfg.ServiceVersion == "" || tcfg.ServiceVersion == "dev" {
		tcfg.ServiceVersion = version
	}
	provider, err := telemetry.Setup(cmd.Context(), tcfg)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		debug:     flags.debug,
		logger:    logger,
		telemetry: provider,
		stdout:    cmd.OutOrStdout(),
		stderr:    cmd.ErrOrStderr(),
	}, nil
}

// Close flushes pending spans.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", "err", err)
	}
}

func (a *app) readerConfig() reader.Config {
	return reader.Config{
		Delimiter:       a.cfg.Delimiter(),
		Sheet:           a.cfg.Input.Sheet,
		TimestampColumn: a.cfg.Columns.Timestamp,
	}
}

// read loads the input file into a table.
func (a *app) read(ctx context.Context, path string) (*model.Table, error) {
	start := time.Now()
	table, err := reader.ReadFile(ctx, path, reader.ParseFormat(a.cfg.Input.Format), a.readerConfig())
	if err != nil {
		return nil, err
	}
	a.logger.Debug("read input", "path", path, "rows", len(table.Rows), "columns", len(table.Columns), "took", time.Since(start))
	return table, nil
}

// sinks are the exporters built from configuration.
type sinks struct {
	exporters []pipeline.Exporter
	files     []export.FileExporter
	closers   []io.Closer
}

// Close releases network clients.
func (s *sinks) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// buildSinks creates file exporters in configured order, followed by the
// S3 publisher and the Redis exporter when enabled.
func buildSinks(ctx context.Context, cfg *config.Config) (*sinks, error) {
	s := &sinks{}
	dir := cfg.Output.Dir

	for _, name := range cfg.Output.Formats {
		var fe export.FileExporter
		switch name {
		case "json":
			fe = export.NewJSONExporter(dir)
		case "csv":
			fe = export.NewCSVExporter(dir)
		case "text":
			fe = export.NewTextExporter(dir)
		case "dot":
			fe = export.NewDOTExporter(dir)
		case "parquet":
			compression := export.Compression(cfg.Output.Compression)
			if compression == "" {
				compression = export.CompressionSnappy
			}
			fe = export.NewParquetExporter(dir, compression)
		case "xlsx":
			fe = export.NewXLSXExporter(dir)
		case "duckdb":
			fe = export.NewDuckDBExporter(dir)
		default:
			return nil, lferrors.InvalidConfig("output.formats", "unknown format "+name)
		}
		s.files = append(s.files, fe)
		s.exporters = append(s.exporters, fe)
	}

	if cfg.S3.Enabled {
		s3cfg := export.S3Config{
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			UsePathStyle:    cfg.S3.PathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UploadTimeout:   cfg.S3.UploadTimeout,
		}
		client, err := export.NewS3Client(ctx, s3cfg)
		if err != nil {
			return nil, err
		}
		s.exporters = append(s.exporters, export.NewS3Publisher(client, s3cfg, s.files...))
	}

	if cfg.Redis.Enabled {
		rcfg := export.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			Database: cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.Redis.TTL,
			Timeout:  cfg.Redis.Timeout,
		}
		store, err := export.NewRedisStore(ctx, rcfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, store)
		s.exporters = append(s.exporters, export.NewRedisExporter(store, rcfg))
	}

	return s, nil
}

// orchestrator wires validation, tracing and logging around the exporters.
func (a *app) orchestrator(exporters []pipeline.Exporter, progress func(done, total int, name string)) *pipeline.Orchestrator {
	obs := observe.NewLogObserver(a.logger)
	v := validate.New(a.cfg.Columns, validate.WithObserver(obs))

	opts := []pipeline.Option{
		pipeline.WithExporters(exporters...),
		pipeline.WithObserver(obs),
		pipeline.WithTracer(a.telemetry.Tracer("github.com/logflow/procmap")),
		pipeline.WithConcurrency(a.cfg.Pipeline.Concurrent),
	}
	if progress != nil {
		opts = append(opts, pipeline.WithExportProgress(progress))
	}
	return pipeline.NewOrchestrator(v, opts...)
}

func requireInput(flags *globalFlags) error {
	if flags.input == "" {
		return lferrors.InvalidConfig("input", "--input is required")
	}
	return nil
}
