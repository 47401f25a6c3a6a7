package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/logflow/procmap/pkg/tui"
	"github.com/logflow/procmap/pkg/viewer"
)

func newViewCmd(flags *globalFlags) *cobra.Command {
	var (
		host     string
		port     int
		watching bool
		exports  bool
	)

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Analyze an event log and serve the interactive viewer",
		Example: `  procmap view -i events.csv
  procmap view -i events.csv --port 3000 --watch
  procmap view -i events.csv -o out/ --export`,
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

			if cmd.Flags().Changed("host") {
				a.cfg.Viewer.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Viewer.Port = port
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			var s *sinks
			if exports {
				if s, err = buildSinks(cmd.Context(), a.cfg); err != nil {
					return err
				}
				defer s.Close()
			}

			fmt.Fprint(a.stdout, tui.Header(version))
			return a.loop(cmd.Context(), flags.input, s, viewer.New(), watching, a.viewerAddr())
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Host to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on")
	cmd.Flags().BoolVar(&watching, "watch", false, "Rerun when the input changes")
	cmd.Flags().BoolVar(&exports, "export", false, "Also run the configured exporters")
	return cmd
}

func (a *app) viewerAddr() string {
	return net.JoinHostPort(a.cfg.Viewer.Host, strconv.Itoa(a.cfg.Viewer.Port))
}
