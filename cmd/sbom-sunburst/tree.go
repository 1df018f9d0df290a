package main

import (
	"github.com/spf13/cobra"

	"github.com/ritzau/sbom-sunburst/pkg/output"
	"github.com/ritzau/sbom-sunburst/pkg/summary"
	"github.com/ritzau/sbom-sunburst/pkg/sunburst"
)

func newTreeCommand(a *app) *cobra.Command {
	var showSummary bool

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the depth bounded render tree on the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := a.requireDecomposition(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			output.PrintTree(w, sunburst.Convert(d.Graph, a.cfg.MaxDepth))
			output.PrintCycles(w, d.DependencyCycles)
			if showSummary {
				output.PrintSummary(w, summary.Summarize(d))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSummary, "summary", false, "also print SBOM statistics")
	return cmd
}
