package main

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/vjranagit/simregress/pkg/failure"
	"github.com/vjranagit/simregress/pkg/table"
	"github.com/vjranagit/simregress/pkg/unify"
)

var unifyCmd = &cobra.Command{
	Use:   "unify OUT_DIR INPUT...",
	Short: "Bring several results onto one common time axis",
	Long: `Unify the timestamps of two or more CSV results and write each unified
result to OUT_DIR under its original file name.`,
	Args: cobra.MinimumNArgs(3),
	RunE: runUnify,
}

var unifyFill string

func init() {
	unifyCmd.Flags().StringVar(&unifyFill, "fill-in-method", string(unify.ForwardFill), "Fill policy: ffill, bfill, interpolate")
}

func runUnify(cmd *cobra.Command, args []string) error {
	outDir, inputs := args[0], args[1:]

	fill, err := unify.ParseFillPolicy(unifyFill)
	if err != nil {
		return err
	}

	names := make(map[string]string, len(inputs))
	tables := make([]*table.Table, 0, len(inputs))
	for _, in := range inputs {
		base := filepath.Base(in)
		if prev, dup := names[base]; dup {
			return failure.Validationf("inputs %s and %s would both be written as %s", prev, in, base)
		}
		names[base] = in

		t, err := table.LoadCSV(in)
		if err != nil {
			return errors.Wrapf(err, "failed to load %s", in)
		}
		tables = append(tables, t)
	}

	unified, err := unify.Timestamps(tables, fill)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	for i, t := range unified {
		out := filepath.Join(outDir, filepath.Base(inputs[i]))
		if err := t.SaveCSV(out); err != nil {
			return errors.Wrapf(err, "failed to write %s", out)
		}
	}

	pterm.Success.Printf("Unified %d results onto %d timestamps in %s\n", len(unified), unified[0].Len(), outDir)
	return nil
}
