package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/logflow/procmap/pkg/reader"
	"github.com/logflow/procmap/pkg/tui"
	"github.com/logflow/procmap/pkg/validate"
)

func newInfoCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "info",
		Short:   "Read and validate an event log without analyzing it",
		Example: `  procmap info -i events.csv --timestamp-col time`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireInput(flags); err != nil {
				return err
			}
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			info, err := a.inspect(cmd, flags.input)
			if err != nil {
				return err
			}
			fmt.Fprint(a.stdout, tui.Header(version))
			fmt.Fprint(a.stdout, tui.RenderInfo(info, a.cfg.Columns.Required()))
			if info.Problem != nil {
				return errReported
			}
			return nil
		},
	}
}

// inspect describes the input. Validation problems land in info.Problem;
// only read failures are returned as errors.
func (a *app) inspect(cmd *cobra.Command, path string) (tui.InputInfo, error) {
	table, err := a.read(cmd.Context(), path)
	if err != nil {
		return tui.InputInfo{}, err
	}
	stat, err := os.Stat(path)
	if err != nil {
		return tui.InputInfo{}, err
	}

	format := reader.ParseFormat(a.cfg.Input.Format)
	if format == reader.FormatUnknown {
		format = reader.DetectFormat(path)
	}

	info := tui.InputInfo{
		Path:     path,
		Format:   format.String(),
		Size:     stat.Size(),
		Rows:     len(table.Rows),
		Columns:  table.Columns,
		Required: make(map[string]bool),
	}
	for _, col := range a.cfg.Columns.Required() {
		info.Required[col] = table.HasColumn(col)
	}

	log, err := validate.New(a.cfg.Columns).Validate(table)
	if err != nil {
		info.Problem = err
		return info, nil
	}
	info.Events = log.Len()
	info.Cases = log.CaseCount()
	return info, nil
}
