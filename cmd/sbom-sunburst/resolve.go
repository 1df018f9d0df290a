package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ritzau/sbom-sunburst/pkg/model"
	"github.com/ritzau/sbom-sunburst/pkg/output"
	"github.com/ritzau/sbom-sunburst/pkg/resolver"
	"github.com/ritzau/sbom-sunburst/pkg/severity"
)

func newResolveCommand(a *app) *cobra.Command {
	var id, name, color, bomRef string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Find the component behind a chart sector",
		Long: "Find the component behind a chart sector, by its node id (--id), by the\n" +
			"name and color it was drawn with (--name, --color) or by bom-ref (--bom-ref).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if id == "" && name == "" && bomRef == "" {
				return errors.New("one of --id, --name or --bom-ref is required")
			}

			d, err := a.requireDecomposition(cmd.Context())
			if err != nil {
				return err
			}

			var comp *model.Component
			switch {
			case id != "":
				comp, _ = resolver.ResolveID(id, d.Graph)
			case bomRef != "":
				comp, _ = resolver.ResolveBOMRef(bomRef, d.Graph)
			default:
				comp, _ = resolver.Resolve(name, severity.Color(color), d.Graph)
			}

			output.PrintComponent(cmd.OutOrStdout(), comp)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "node id as reported by the chart, e.g. 0.2.1")
	cmd.Flags().StringVar(&name, "name", "", "component name")
	cmd.Flags().StringVar(&color, "color", string(severity.ColorUnrated), "sector color token, used with --name")
	cmd.Flags().StringVar(&bomRef, "bom-ref", "", "CycloneDX bom-ref")
	return cmd
}
