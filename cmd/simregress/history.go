package main

import (
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/vjranagit/simregress/pkg/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show journaled comparison outcomes",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var (
	historyLimit int
	historyCase  string
)

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of most recent outcomes to show, 0 for all")
	historyCmd.Flags().StringVar(&historyCase, "case", "", "Only show outcomes of this case")
}

func runHistory(cmd *cobra.Command, args []string) error {
	var outcomes []storage.Outcome
	err := storage.ReplayJournal(state.cfg.Storage.JournalDir, func(o storage.Outcome) error {
		if historyCase == "" || o.Case == historyCase {
			outcomes = append(outcomes, o)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(outcomes) == 0 {
		pterm.Info.Println("No outcomes journaled")
		return nil
	}
	if historyLimit > 0 && len(outcomes) > historyLimit {
		outcomes = outcomes[len(outcomes)-historyLimit:]
	}

	data := pterm.TableData{{"Time", "Run", "Case", "Reference", "Verdict", "Detail"}}
	for _, o := range outcomes {
		verdict, detail := pterm.Green("PASS"), ""
		switch {
		case o.Error != "":
			verdict, detail = pterm.Yellow("ERROR"), o.Error
		case !o.Passed:
			verdict, detail = pterm.Red("FAIL"), strings.Join(o.FailedColumns, ", ")
		}
		data = append(data, []string{
			o.Timestamp.Local().Format("2006-01-02 15:04:05"),
			shortRunID(o.RunID),
			o.Case,
			o.Reference,
			verdict,
			detail,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
