// Command simregress compares simulation results against reference results.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vjranagit/simregress/internal/config"
	"github.com/vjranagit/simregress/internal/logging"
	"github.com/vjranagit/simregress/pkg/failure"
	"github.com/vjranagit/simregress/pkg/storage"
)

const version = "0.3.0"

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitError   = 2
)

// errCasesFailed reports a run whose cases ran but did not all pass.
var errCasesFailed = errors.New("suite cases failed")

// app carries what PersistentPreRunE prepares for every command.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

var (
	configPath string
	logLevel   string
	jsonLog    bool

	state = &app{}
)

var rootCmd = &cobra.Command{
	Use:   "simregress",
	Short: "Regression testing for simulation results",
	Long: `simregress compares time series produced by a simulation against reference
results, column by column, within a tolerance.

Examples:
  simregress compare refs/Sine_res.csv out/Sine_res.csv
  simregress compare --metric=Lp_dist --tol=2.5e-4 store:Sine out/Sine_res.csv
  simregress run suite.yaml
  simregress ref import Sine refs/Sine_res.csv --label suite=blocks
  simregress history --limit 20`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if cmd.Flags().Changed("json-log") {
			cfg.Log.JSON = jsonLog
		}
		if err := cfg.Validate(); err != nil {
			return failure.MarkValidation(errors.Wrap(err, "invalid configuration"))
		}

		logger, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
		if err != nil {
			return failure.MarkValidation(err)
		}

		state.cfg = cfg
		state.logger = logger
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if state.logger != nil {
			_ = state.logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (yaml, toml or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "Emit JSON logs")

	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(unifyCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(refCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(metricsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		if _, ok := failure.AsComparisonFailure(err); !ok && !errors.Is(err, errCasesFailed) {
			pterm.Error.Println(err.Error())
		}
	}
	stop()
	os.Exit(exitCode(err))
}

// exitCode maps failing comparisons to 1 and every other error to 2.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errCasesFailed):
		return exitFailure
	default:
		if _, ok := failure.AsComparisonFailure(err); ok {
			return exitFailure
		}
		return exitError
	}
}

// openStore opens the reference store from the loaded configuration.
func openStore() (storage.Store, error) {
	if err := os.MkdirAll(state.cfg.Storage.Path, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create storage directory")
	}
	store, err := storage.Open(state.cfg.ToStorageConfig(), state.logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open reference store")
	}
	return store, nil
}
