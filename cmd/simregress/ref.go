package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/vjranagit/simregress/pkg/storage"
	"github.com/vjranagit/simregress/pkg/table"
)

var refCmd = &cobra.Command{
	Use:   "ref",
	Short: "Manage stored reference results",
	Long: `Manage the reference store. Stored references are addressed as
store:NAME by 'compare' and in suites.

Examples:
  simregress ref import Sine refs/Sine_res.csv --label suite=blocks
  simregress ref ls --label suite=blocks
  simregress ref export Sine /tmp/Sine_res.csv
  simregress ref rm Sine`,
}

var refImportCmd = &cobra.Command{
	Use:   "import NAME CSV",
	Short: "Store a CSV result as a named reference",
	Args:  cobra.ExactArgs(2),
	RunE:  runRefImport,
}

var refExportCmd = &cobra.Command{
	Use:   "export NAME CSV",
	Short: "Write a stored reference to a CSV file",
	Args:  cobra.ExactArgs(2),
	RunE:  runRefExport,
}

var refListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List stored references",
	Args:    cobra.NoArgs,
	RunE:    runRefList,
}

var refRemoveCmd = &cobra.Command{
	Use:     "rm NAME",
	Aliases: []string{"remove"},
	Short:   "Delete a stored reference",
	Args:    cobra.ExactArgs(1),
	RunE:    runRefRemove,
}

var (
	refImportLabels map[string]string
	refListLabels   map[string]string
)

func init() {
	refCmd.AddCommand(refImportCmd, refExportCmd, refListCmd, refRemoveCmd)

	refImportCmd.Flags().StringToStringVar(&refImportLabels, "label", nil, "Labels as key=value, repeatable")
	refListCmd.Flags().StringToStringVar(&refListLabels, "label", nil, "Only list references carrying these labels")
}

func runRefImport(cmd *cobra.Command, args []string) error {
	name, path := args[0], args[1]

	t, err := table.LoadCSV(path)
	if err != nil {
		return errors.Wrapf(err, "failed to load %s", path)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	err = store.Put(cmd.Context(), &storage.Reference{Name: name, Labels: refImportLabels, Table: t})
	if err != nil {
		return err
	}

	pterm.Success.Printf("Stored reference %s (%d rows, %d columns)\n", name, t.Len(), len(t.Columns()))
	return nil
}

func runRefExport(cmd *cobra.Command, args []string) error {
	name, path := args[0], args[1]

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ref, err := store.Get(cmd.Context(), name)
	if err != nil {
		return err
	}
	if err := ref.Table.SaveCSV(path); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}

	pterm.Success.Printf("Exported reference %s to %s\n", name, path)
	return nil
}

func runRefList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	metas, err := store.List(cmd.Context(), refListLabels)
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		pterm.Info.Println("No references stored")
		return nil
	}

	data := pterm.TableData{{"Name", "Rows", "Columns", "Labels", "Created"}}
	for _, m := range metas {
		data = append(data, []string{
			m.Name,
			fmt.Sprint(m.Rows),
			fmt.Sprint(len(m.Columns)),
			formatLabels(m.Labels),
			m.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func runRefRemove(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}

	pterm.Success.Printf("Deleted reference %s\n", args[0])
	return nil
}

func formatLabels(labels map[string]string) string {
	pairs := make([]string, 0, len(labels))
	for k, v := range labels {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}
