// Package compare decides whether an actual simulation result matches its
// reference within a tolerance, column by column, and writes a diagnostic
// table when it does not.
package compare

import (
	"math"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/vjranagit/simregress/pkg/failure"
	"github.com/vjranagit/simregress/pkg/metrics"
	"github.com/vjranagit/simregress/pkg/table"
	"github.com/vjranagit/simregress/pkg/unify"
)

// DefaultTolerance is the absolute tolerance used when none is given.
const DefaultTolerance = 1e-7

// Options controls a single comparison.
type Options struct {
	// Tolerance is the absolute deviation at or above which a column fails.
	Tolerance float64
	// Columns to validate. Empty means every shared value column.
	Columns []string
	// Metric measures the deviation. Nil means NormInftyDist.
	Metric metrics.Metric
	// Unify aligns both tables on a common time axis before measuring.
	Unify bool
	// Fill is the fill policy used for unification.
	Fill unify.FillPolicy
	// DiagnosticPath is where the diagnostic CSV is written on failure.
	// Empty disables it.
	DiagnosticPath string
}

// DefaultOptions returns the default comparison options.
func DefaultOptions() Options {
	return Options{
		Tolerance: DefaultTolerance,
		Metric:    metrics.NormInftyDistMetric(),
		Unify:     true,
		Fill:      unify.ForwardFill,
	}
}

// ColumnResult is the verdict for one validated column.
type ColumnResult struct {
	Name string
	// Deviation is the scalar deviation, or the largest entry of a
	// localized deviation.
	Deviation float64
	Localized bool
	Failed    bool

	// pointwise keeps the localized entries at or above tolerance, others zeroed
	pointwise *table.Table
}

// Report summarizes a comparison.
type Report struct {
	Tolerance      float64
	Columns        []ColumnResult
	DiagnosticPath string
}

// Passed reports whether every column is within tolerance.
func (r *Report) Passed() bool {
	return len(r.Failed()) == 0
}

// Failed returns the names of the failing columns.
func (r *Report) Failed() []string {
	var out []string
	for _, c := range r.Columns {
		if c.Failed {
			out = append(out, c.Name)
		}
	}
	return out
}

// Comparator compares actual results against references. It is stateless
// across calls.
type Comparator struct {
	logger *zap.Logger
}

// NewComparator creates a comparator. A nil logger disables logging.
func NewComparator(logger *zap.Logger) *Comparator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Comparator{logger: logger}
}

// Compare evaluates the metric on every validated column. It returns a
// *failure.ComparisonFailure if any column deviates by at least the
// tolerance, after writing the diagnostic table if one is configured.
// Malformed input yields errors marked with failure.ErrValidation.
func (c *Comparator) Compare(ref, act *table.Table, opts Options) (*Report, error) {
	if ref == nil || act == nil {
		return nil, failure.Validationf("reference and actual result are required")
	}
	if math.IsNaN(opts.Tolerance) || opts.Tolerance <= 0 {
		return nil, failure.Validationf("tolerance must be positive, got %g", opts.Tolerance)
	}
	if err := opts.Fill.Validate(); err != nil {
		return nil, err
	}
	metric := opts.Metric
	if metric == nil {
		metric = metrics.NormInftyDistMetric()
	}

	cols, err := SelectColumns(ref, act, opts.Columns)
	if err != nil {
		return nil, err
	}

	refData, actData := ref, act
	if opts.Unify {
		unified, err := unify.Timestamps([]*table.Table{ref, act}, opts.Fill)
		if err != nil {
			return nil, errors.Wrap(err, "failed to unify timestamps")
		}
		refData, actData = unified[0], unified[1]
	}

	report := &Report{Tolerance: opts.Tolerance}
	for _, col := range cols {
		c.logger.Debug("Comparing column", zap.String("column", col))

		res, err := evaluate(metric, refData, actData, col, opts.Tolerance)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to evaluate metric on column %q", col)
		}
		if res.Failed {
			c.logger.Info("Column exceeds tolerance",
				zap.String("column", col),
				zap.Float64("deviation", res.Deviation),
				zap.Float64("tolerance", opts.Tolerance),
				zap.Bool("localized", res.Localized))
		}
		report.Columns = append(report.Columns, res)
	}

	failed := report.Failed()
	if len(failed) == 0 {
		return report, nil
	}

	var cf error = &failure.ComparisonFailure{Columns: failed, Tolerance: opts.Tolerance}

	if opts.DiagnosticPath != "" {
		if err := c.writeDiagnostic(refData, actData, report, opts); err != nil {
			c.logger.Error("Failed to write diagnostic table", zap.String("path", opts.DiagnosticPath), zap.Error(err))
			return report, errors.WithSecondaryError(cf, err)
		}
		report.DiagnosticPath = opts.DiagnosticPath
	}

	return report, cf
}

func evaluate(metric metrics.Metric, ref, act *table.Table, col string, tol float64) (ColumnResult, error) {
	refView, err := ref.Select(col)
	if err != nil {
		return ColumnResult{}, err
	}
	actView, err := act.Select(col)
	if err != nil {
		return ColumnResult{}, err
	}

	dev, err := metric(refView, actView)
	if err != nil {
		return ColumnResult{}, err
	}

	res := ColumnResult{Name: col}
	if !dev.Localized() {
		res.Deviation = math.Abs(dev.Value)
		res.Failed = exceeds(res.Deviation, tol)
		return res, nil
	}

	res.Localized = true
	kept, worst, failed, err := keepExceeding(dev.Pointwise, tol)
	if err != nil {
		return ColumnResult{}, err
	}
	res.Deviation = worst
	res.Failed = failed
	res.pointwise = kept
	return res, nil
}

// keepExceeding zeroes every localized entry below tolerance.
func keepExceeding(pw *table.Table, tol float64) (*table.Table, float64, bool, error) {
	cols := pw.ValueColumns()
	if len(cols) != 1 {
		return nil, 0, false, failure.Validationf("localized deviation must have exactly one value column, got %d", len(cols))
	}
	src, _ := pw.Column(cols[0])

	kept := make([]float64, len(src))
	worst := 0.0
	failed := false
	for i, v := range src {
		a := math.Abs(v)
		if a > worst || math.IsNaN(a) {
			worst = a
		}
		if exceeds(a, tol) {
			kept[i] = a
			failed = true
		}
	}

	out, err := table.New([]string{table.TimeColumn, cols[0]},
		[][]float64{append([]float64(nil), pw.Time()...), kept})
	if err != nil {
		return nil, 0, false, err
	}
	return out, worst, failed, nil
}

// exceeds treats a NaN deviation as failing.
func exceeds(dev, tol float64) bool {
	return math.IsNaN(dev) || dev >= tol
}

func (c *Comparator) writeDiagnostic(ref, act *table.Table, report *Report, opts Options) error {
	diag, err := Diagnostic(ref, act, report.Columns, opts.Fill)
	if err != nil {
		return err
	}
	if err := diag.SaveCSV(opts.DiagnosticPath); err != nil {
		return err
	}
	c.logger.Info("Wrote diagnostic table", zap.String("path", opts.DiagnosticPath), zap.Int("rows", diag.Len()))
	return nil
}
