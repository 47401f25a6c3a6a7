// procmap discovers a directly-follows graph and process KPIs from an
// event log and exports them in several formats.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/logflow/procmap/pkg/tui"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// errReported marks failures already rendered to the user.
var errReported = errors.New("reported")

func main() {
	ctx, stop := signalContext()
	defer stop()

	flags := &globalFlags{}
	if err := newRootCmd(flags).ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprint(os.Stderr, tui.RenderError(err, flags.debug))
		}
		os.Exit(1)
	}
}

func newRootCmd(flags *globalFlags) *cobra.Command {

	root := &cobra.Command{
		Use:   "procmap",
		Short: "Process maps and KPIs from event logs",
		Long: `procmap reads an event log (CSV, TSV, JSONL, XLSX or Parquet), validates it,
discovers the directly-follows graph and computes case KPIs.

Results are written by the configured exporters (json, csv, text, dot,
parquet, xlsx, duckdb) and optionally published to S3 and Redis.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	flags.register(root)

	root.AddCommand(
		newRunCmd(flags),
		newWatchCmd(flags),
		newViewCmd(flags),
		newInfoCmd(flags),
	)
	return root
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
