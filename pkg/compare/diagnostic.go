package compare

import (
	"github.com/cockroachdb/errors"

	"github.com/vjranagit/simregress/pkg/table"
	"github.com/vjranagit/simregress/pkg/unify"
)

// Diagnostic column name parts.
const (
	prefixReference = "reference."
	prefixActual    = "actual."
	prefixFailed    = "failed."

	suffixReference       = ".reference"
	suffixActual          = ".actual"
	suffixDeltaNonlocal   = ".delta_nonloc"
	suffixDeltaGreaterTol = ".delta_greater_tol"
)

// Diagnostic builds the table that explains a failed comparison: the common
// time axis, every reference and actual column, and for each failed column its
// reference value, actual value and deviation. Scalar deviations are
// broadcast to every row; localized deviations keep only entries at or above
// tolerance. Reference and actual values are brought onto one time grid with
// the fill policy.
func Diagnostic(ref, act *table.Table, results []ColumnResult, fill unify.FillPolicy) (*table.Table, error) {
	unified, err := unify.Timestamps([]*table.Table{ref, act}, fill)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unify results for the diagnostic table")
	}
	ref, act = unified[0], unified[1]

	columns := []string{table.TimeColumn}
	data := [][]float64{append([]float64(nil), ref.Time()...)}
	add := func(name string, values []float64) {
		columns = append(columns, name)
		data = append(data, append([]float64(nil), values...))
	}

	for _, c := range ref.ValueColumns() {
		v, _ := ref.Column(c)
		add(prefixReference+c, v)
	}
	for _, c := range act.ValueColumns() {
		v, _ := act.Column(c)
		add(prefixActual+c, v)
	}

	var localized []ColumnResult
	for _, res := range results {
		if !res.Failed {
			continue
		}
		rv, _ := ref.Column(res.Name)
		av, _ := act.Column(res.Name)
		add(prefixFailed+res.Name+suffixReference, rv)
		add(prefixFailed+res.Name+suffixActual, av)

		if res.Localized {
			localized = append(localized, res)
			continue
		}
		delta := make([]float64, ref.Len())
		for i := range delta {
			delta[i] = res.Deviation
		}
		add(prefixFailed+res.Name+suffixDeltaNonlocal, delta)
	}

	diag, err := table.New(columns, data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build diagnostic table")
	}

	// localized deviations may come on their own time axis; rows they lack
	// were not measured and stay 0
	for _, res := range localized {
		if res.pointwise == nil {
			continue
		}
		base, pw, err := unify.AlignSparse(diag, res.pointwise, fill)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to align localized deviation of column %q", res.Name)
		}
		dev, _ := pw.Column(pw.ValueColumns()[0])
		diag, err = base.WithColumn(prefixFailed+res.Name+suffixDeltaGreaterTol, dev)
		if err != nil {
			return nil, err
		}
	}

	return diag, nil
}
