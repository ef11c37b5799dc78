package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/vjranagit/simregress/pkg/compare"
	"github.com/vjranagit/simregress/pkg/failure"
	"github.com/vjranagit/simregress/pkg/metrics"
	"github.com/vjranagit/simregress/pkg/suite"
	"github.com/vjranagit/simregress/pkg/table"
	"github.com/vjranagit/simregress/pkg/unify"
)

var compareCmd = &cobra.Command{
	Use:   "compare REFERENCE ACTUAL",
	Short: "Compare an actual result against a reference result",
	Long: `Compare two CSV results column by column. REFERENCE may name a stored
reference as store:NAME. On failure a diagnostic table is written next to
ACTUAL as <name>_comparison.csv unless --diagnostic says otherwise.`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

var (
	compareTol        float64
	compareMetric     string
	compareP          float64
	compareCols       []string
	compareFill       string
	compareNoUnify    bool
	compareDiagnostic string
)

func init() {
	compareCmd.Flags().Float64Var(&compareTol, "tol", compare.DefaultTolerance, "Absolute tolerance")
	compareCmd.Flags().StringVar(&compareMetric, "metric", metrics.NameNormInftyDist, "Metric: "+strings.Join(metrics.Names(), ", "))
	compareCmd.Flags().Float64Var(&compareP, "p", 2, "Exponent of the p-norm based metrics")
	compareCmd.Flags().StringSliceVar(&compareCols, "validated-cols", nil, "Comma separated columns to validate (default: all shared columns)")
	compareCmd.Flags().StringVar(&compareFill, "fill-in-method", string(unify.ForwardFill), "Fill policy: ffill, bfill, interpolate")
	compareCmd.Flags().BoolVar(&compareNoUnify, "no-unify", false, "Compare without unifying timestamps")
	compareCmd.Flags().StringVar(&compareDiagnostic, "diagnostic", "", "Diagnostic table path; \"-\" disables it")
}

func runCompare(cmd *cobra.Command, args []string) error {
	opts, err := state.cfg.ToCompareOptions()
	if err != nil {
		return err
	}
	if err := applyCompareFlags(cmd, &opts); err != nil {
		return err
	}

	opts.DiagnosticPath = diagnosticPath(args[1], compareDiagnostic)

	ref, err := loadReference(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	act, err := table.LoadCSV(args[1])
	if err != nil {
		return errors.Wrap(err, "failed to load actual result")
	}

	report, err := compare.NewComparator(state.logger).Compare(ref, act, opts)
	if report != nil {
		if rerr := renderReport(report); rerr != nil {
			return rerr
		}
	}
	if err != nil {
		if cf, ok := failure.AsComparisonFailure(err); ok {
			pterm.Error.Println(cf.Error())
			if report != nil && report.DiagnosticPath != "" {
				pterm.Info.Printf("Diagnostic table written to %s\n", report.DiagnosticPath)
			}
		}
		return err
	}

	pterm.Success.Printf("All %d column(s) within tolerance %g\n", len(report.Columns), report.Tolerance)
	return nil
}

// applyCompareFlags overrides configured options with flags given on the
// command line.
func applyCompareFlags(cmd *cobra.Command, opts *compare.Options) error {
	flags := cmd.Flags()

	if flags.Changed("tol") {
		opts.Tolerance = compareTol
	}
	if flags.Changed("metric") || flags.Changed("p") {
		name, p := state.cfg.Compare.Metric, state.cfg.Compare.P
		if flags.Changed("metric") {
			name = compareMetric
		}
		if flags.Changed("p") {
			p = compareP
		}
		m, err := metrics.Lookup(name, p)
		if err != nil {
			return err
		}
		opts.Metric = m
	}
	if flags.Changed("fill-in-method") {
		fill, err := unify.ParseFillPolicy(compareFill)
		if err != nil {
			return err
		}
		opts.Fill = fill
	}
	if compareNoUnify {
		opts.Unify = false
	}
	opts.Columns = compareCols
	return nil
}

// diagnosticPath places the diagnostic next to the actual result unless a
// path is given. "-" disables it.
func diagnosticPath(actual, flag string) string {
	switch flag {
	case "-":
		return ""
	case "":
		base := strings.TrimSuffix(filepath.Base(actual), filepath.Ext(actual))
		return filepath.Join(filepath.Dir(actual), base+suite.DiagnosticSuffix)
	default:
		return flag
	}
}

// loadReference reads a CSV file or a store:NAME reference.
func loadReference(ctx context.Context, arg string) (*table.Table, error) {
	name, stored := suite.StoredName(arg)
	if !stored {
		t, err := table.LoadCSV(arg)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load reference result")
		}
		return t, nil
	}

	store, err := openStore()
	if err != nil {
		return nil, err
	}
	defer store.Close()

	ref, err := store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return ref.Table, nil
}

func renderReport(report *compare.Report) error {
	data := pterm.TableData{{"Column", "Deviation", "Kind", "Verdict"}}
	for _, c := range report.Columns {
		kind := "scalar"
		if c.Localized {
			kind = "localized"
		}
		verdict := pterm.Green("ok")
		if c.Failed {
			verdict = pterm.Red("FAIL")
		}
		data = append(data, []string{c.Name, fmt.Sprintf("%.6g", c.Deviation), kind, verdict})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
