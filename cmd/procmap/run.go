package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/logflow/procmap/pkg/export"
	"github.com/logflow/procmap/pkg/pipeline"
	"github.com/logflow/procmap/pkg/tui"
	"github.com/logflow/procmap/pkg/viewer"
	"github.com/logflow/procmap/pkg/watch"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Validate, analyze and export an event log",
		Example: `  procmap run -i events.csv -o out/
  procmap run -i events.xlsx -o out/ -f json,dot,xlsx
  procmap run -i events.parquet -o out/ -f parquet,duckdb --concurrent`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireInput(flags); err != nil {
				return err
			}
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := buildSinks(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			fmt.Fprint(a.stdout, tui.Header(version))
			_, err = a.process(cmd.Context(), flags.input, s)
			return err
		},
	}
}

// process reads and runs the pipeline once. With nil sinks the result is
// analyzed but not exported.
func (a *app) process(ctx context.Context, path string, s *sinks) (*pipeline.Result, error) {
	table, err := a.read(ctx, path)
	if err != nil {
		return nil, err
	}

	if s == nil {
		res, err := a.orchestrator(nil, nil).Analyze(ctx, table)
		if err != nil {
			return nil, err
		}
		fmt.Fprint(a.stdout, tui.RenderResult(res, nil))
		return res, nil
	}

	progress := tui.ExportProgress(a.stderr, len(s.exporters))
	res, err := a.orchestrator(s.exporters, progress).Run(ctx, table)
	if err != nil {
		return res, err
	}
	fmt.Fprint(a.stdout, tui.RenderResult(res, export.Paths(s.files...)))
	return res, nil
}

// loop runs the pipeline once, then again on every settled change to path
// while watching. Results go to srv when it is set.
func (a *app) loop(ctx context.Context, path string, s *sinks, srv *viewer.Server, watching bool, addr string) error {
	handle := func(ctx context.Context, path string) error {
		res, err := a.process(ctx, path, s)
		if srv != nil {
			if err != nil {
				srv.PublishError(err)
			} else {
				srv.Publish(res)
			}
		}
		return err
	}

	if err := handle(ctx, path); err != nil {
		if !watching {
			return err
		}
		fmt.Fprint(a.stderr, tui.RenderError(err, a.debug))
	}

	g, ctx := errgroup.WithContext(ctx)

	if watching {
		w, err := watch.New(handle,
			watch.WithDebounce(a.cfg.Watch.Debounce),
			watch.WithErrorHandler(func(p string, err error) {
				a.logger.Error("run failed", "path", p, "err", err)
				fmt.Fprint(a.stderr, tui.RenderError(err, a.debug))
			}))
		if err != nil {
			return err
		}
		defer w.Close()
		if err := w.Watch(path); err != nil {
			return err
		}
		a.logger.Info("watching for changes", "path", path, "debounce", a.cfg.Watch.Debounce)
		g.Go(func() error { return w.Run(ctx) })
	}

	if srv != nil {
		a.logger.Info("viewer listening", "url", "http://"+addr)
		g.Go(func() error { return srv.ListenAndServe(ctx, addr) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
