package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/vjranagit/simregress/pkg/metrics"
)

var metricDescriptions = map[string]string{
	metrics.NameNormPDist:        "discrete p-norm of the sample differences",
	metrics.NameNormInftyDist:    "largest absolute sample difference",
	metrics.NameLpDist:           "Lp norm of the piecewise constant difference",
	metrics.NameLinftyDist:       "sup norm of the piecewise constant difference",
	metrics.NameAbsDistPointwise: "absolute difference per timestamp (localized)",
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "List the built-in metrics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data := pterm.TableData{{"Metric", "Measures"}}
		for _, name := range metrics.Names() {
			data = append(data, []string{name, metricDescriptions[name]})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}
