package main

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vjranagit/simregress/pkg/compare"
	"github.com/vjranagit/simregress/pkg/failure"
	"github.com/vjranagit/simregress/pkg/storage"
	"github.com/vjranagit/simregress/pkg/suite"
)

var runCmd = &cobra.Command{
	Use:   "run SUITE",
	Short: "Run a regression suite",
	Long: `Run every case of a YAML suite in order. Relative paths in the suite
resolve against the suite file's directory. Outcomes are journaled for
'simregress history'.`,
	Args: cobra.ExactArgs(1),
	RunE: runSuite,
}

var (
	runDiagnosticDir string
	runNoJournal     bool
)

func init() {
	runCmd.Flags().StringVar(&runDiagnosticDir, "diagnostic-dir", "", "Directory for diagnostic tables (default: <suite dir>/diagnostics)")
	runCmd.Flags().BoolVar(&runNoJournal, "no-journal", false, "Do not journal outcomes")
}

func runSuite(cmd *cobra.Command, args []string) error {
	s, err := suite.Load(args[0])
	if err != nil {
		return err
	}

	base, err := state.cfg.ToCompareOptions()
	if err != nil {
		return err
	}

	runner := suite.NewRunner(state.logger)
	runner.Base = base
	runner.BaseMetric = state.cfg.Compare.Metric
	runner.BaseP = state.cfg.Compare.P
	runner.DiagnosticDir = runDiagnosticDir
	if runner.DiagnosticDir == "" {
		runner.DiagnosticDir = filepath.Join(s.Dir, "diagnostics")
	}

	if usesStore(s) {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() {
			logCacheStats(state.logger, store)
			store.Close()
		}()
		runner.Store = store
	}

	if !runNoJournal {
		journal, err := storage.OpenJournal(state.cfg.Storage.JournalDir)
		if err != nil {
			return errors.Wrap(err, "failed to open journal")
		}
		defer journal.Close()
		runner.Journal = journal
		state.logger.Debug("Journaling run", zap.String("run_id", journal.RunID()))
	}

	results, err := runner.Run(cmd.Context(), s)
	if rerr := renderResults(results); rerr != nil {
		return rerr
	}
	if err != nil {
		return err
	}

	passed, failed := suite.Summary(results)
	if failed == 0 {
		pterm.Success.Printf("Suite %s: %d case(s) passed\n", s.Name, passed)
		return nil
	}

	pterm.Error.Printf("Suite %s: %d passed, %d failed\n", s.Name, passed, failed)
	for _, r := range results {
		if r.Err != nil && !isComparisonFailure(r.Err) {
			// a case that could not be evaluated is a setup problem
			return errors.Wrapf(r.Err, "case %q", r.Case)
		}
	}
	return errCasesFailed
}

func usesStore(s *suite.Suite) bool {
	for _, c := range s.Cases {
		if _, ok := suite.StoredName(c.Reference); ok {
			return true
		}
	}
	return false
}

// logCacheStats reports how often cases shared a stored reference.
func logCacheStats(logger *zap.Logger, store storage.Store) {
	cached, ok := store.(*storage.CachedStore)
	if !ok {
		return
	}
	stats := cached.CacheStats()
	logger.Debug("Reference cache",
		zap.Int("size", stats.Size),
		zap.Int("expired", stats.Expired),
		zap.Uint64("hits", stats.Hits),
		zap.Uint64("misses", stats.Misses),
		zap.Float64("hit_rate", stats.HitRate()))
}

func renderResults(results []suite.CaseResult) error {
	if len(results) == 0 {
		return nil
	}

	data := pterm.TableData{{"Case", "Reference", "Verdict", "Detail"}}
	for _, r := range results {
		verdict, detail := pterm.Green("PASS"), ""
		switch {
		case r.Passed():
		case isComparisonFailure(r.Err):
			verdict = pterm.Red("FAIL")
			detail = failedColumns(r.Report)
		default:
			verdict = pterm.Yellow("ERROR")
			detail = r.Err.Error()
		}
		data = append(data, []string{r.Case, r.Reference, verdict, detail})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func isComparisonFailure(err error) bool {
	_, ok := failure.AsComparisonFailure(err)
	return ok
}

func failedColumns(report *compare.Report) string {
	if report == nil {
		return ""
	}
	return strings.Join(report.Failed(), ", ")
}
