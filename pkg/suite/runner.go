package suite

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/vjranagit/simregress/pkg/compare"
	"github.com/vjranagit/simregress/pkg/failure"
	"github.com/vjranagit/simregress/pkg/metrics"
	"github.com/vjranagit/simregress/pkg/storage"
	"github.com/vjranagit/simregress/pkg/table"
)

// DiagnosticSuffix is appended to the case name to form the diagnostic
// file name.
const DiagnosticSuffix = "_comparison.csv"

// CaseResult is the outcome of one case.
type CaseResult struct {
	Case      string
	Reference string
	// Report is nil when the case failed before comparing.
	Report *compare.Report
	// Err is nil for a passing case. A *failure.ComparisonFailure means the
	// results differ; anything else means the case could not be evaluated.
	Err error
}

// Passed reports whether the case passed.
func (r CaseResult) Passed() bool {
	return r.Err == nil
}

// Runner executes suites one case at a time.
type Runner struct {
	Comparator *compare.Comparator
	// Store resolves "store:" references. Optional.
	Store storage.Store
	// Journal records every outcome. Optional.
	Journal *storage.Journal
	// DiagnosticDir receives a diagnostic table per failing case. Empty
	// disables diagnostics.
	DiagnosticDir string

	// Base holds the options cases start from, with BaseMetric and BaseP
	// naming its metric.
	Base       compare.Options
	BaseMetric string
	BaseP      float64

	Logger *zap.Logger
}

// NewRunner creates a runner with default comparison options.
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		Comparator: compare.NewComparator(logger),
		Base:       compare.DefaultOptions(),
		BaseMetric: metrics.NameNormInftyDist,
		BaseP:      2,
		Logger:     logger,
	}
}

// Run executes every case in order. A failing case does not stop the run.
// The returned error is reserved for cancellation and journal failures.
func (r *Runner) Run(ctx context.Context, s *Suite) ([]CaseResult, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	comparator := r.Comparator
	if comparator == nil {
		comparator = compare.NewComparator(logger)
	}

	if r.DiagnosticDir != "" {
		if err := os.MkdirAll(r.DiagnosticDir, 0755); err != nil {
			return nil, errors.Wrap(err, "failed to create diagnostic directory")
		}
	}

	results := make([]CaseResult, 0, len(s.Cases))
	for _, c := range s.Cases {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res := r.runCase(ctx, comparator, s, c)
		results = append(results, res)

		fields := []zap.Field{zap.String("suite", s.Name), zap.String("case", c.Name)}
		if res.Passed() {
			logger.Info("Case passed", fields...)
		} else {
			logger.Warn("Case failed", append(fields, zap.Error(res.Err))...)
		}

		if r.Journal != nil {
			if err := r.Journal.Append(outcome(res)); err != nil {
				return results, errors.Wrap(err, "failed to journal outcome")
			}
		}
	}

	return results, nil
}

func (r *Runner) runCase(ctx context.Context, comparator *compare.Comparator, s *Suite, c Case) CaseResult {
	res := CaseResult{Case: c.Name, Reference: c.Reference}

	opts, err := s.Options(c, r.Base, r.BaseMetric, r.BaseP)
	if err != nil {
		res.Err = err
		return res
	}
	if r.DiagnosticDir != "" {
		opts.DiagnosticPath = filepath.Join(r.DiagnosticDir, c.Name+DiagnosticSuffix)
	}

	ref, err := r.loadReference(ctx, s, c.Reference)
	if err != nil {
		res.Err = err
		return res
	}

	act, err := table.LoadCSV(s.Resolve(c.Actual))
	if err != nil {
		res.Err = errors.Wrap(err, "failed to load actual result")
		return res
	}

	res.Report, res.Err = comparator.Compare(ref, act, opts)
	return res
}

func (r *Runner) loadReference(ctx context.Context, s *Suite, ref string) (*table.Table, error) {
	name, stored := StoredName(ref)
	if !stored {
		t, err := table.LoadCSV(s.Resolve(ref))
		if err != nil {
			return nil, errors.Wrap(err, "failed to load reference result")
		}
		return t, nil
	}

	if r.Store == nil {
		return nil, failure.Validationf("reference %q needs a reference store", ref)
	}
	sref, err := r.Store.Get(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load stored reference")
	}
	return sref.Table, nil
}

func outcome(res CaseResult) storage.Outcome {
	o := storage.Outcome{
		Case:      res.Case,
		Reference: res.Reference,
		Passed:    res.Passed(),
	}
	if res.Report != nil {
		o.Tolerance = res.Report.Tolerance
		o.FailedColumns = res.Report.Failed()
	}
	if res.Err != nil {
		if cf, ok := failure.AsComparisonFailure(res.Err); ok {
			o.FailedColumns = cf.Columns
			o.Tolerance = cf.Tolerance
		} else {
			o.Error = res.Err.Error()
		}
	}
	return o
}

// Summary counts passed and failed cases.
func Summary(results []CaseResult) (passed, failed int) {
	for _, r := range results {
		if r.Passed() {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}
