package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/logflow/procmap/pkg/tui"
	"github.com/logflow/procmap/pkg/viewer"
)

func newWatchCmd(flags *globalFlags) *cobra.Command {
	var serve bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rerun the pipeline whenever the input changes",
		Example: `  procmap watch -i events.csv -o out/
  procmap watch -i events.csv -o out/ --view`,
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

			var srv *viewer.Server
			if serve {
				srv = viewer.New()
			}

			fmt.Fprint(a.stdout, tui.Header(version))
			return a.loop(cmd.Context(), flags.input, s, srv, true, a.viewerAddr())
		},
	}
	cmd.Flags().BoolVar(&serve, "view", false, "Also serve the viewer")
	return cmd
}
