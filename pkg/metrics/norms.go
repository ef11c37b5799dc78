// Package metrics provides norms and distances over time-series given as
// two-column (time, value) tables.
//
// Norms ending in "Norm" (LpNorm, LinftyNorm) treat the series as a
// right-continuous piecewise constant function of time. The others (NormP,
// NormInfty) ignore time spacing and work on the value vector. Every norm has
// a distance variant that applies it to the difference of two series sharing
// an identical time column.
package metrics

import (
	"math"

	"github.com/vjranagit/simregress/pkg/failure"
	"github.com/vjranagit/simregress/pkg/table"
)

// NormP returns the discrete p-norm of the value column. p = +Inf yields the
// maximum absolute value.
func NormP(f *table.Table, p float64) (float64, error) {
	_, y, err := xy(f)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(p) || p <= 0 {
		return 0, failure.Validationf("p must be positive, got %g", p)
	}
	if math.IsInf(p, 1) {
		return maxAbs(y), nil
	}

	r := 0.0
	for _, v := range y {
		r += math.Pow(math.Abs(v), p)
	}
	return math.Pow(r, 1/p), nil
}

// NormInfty returns the maximum absolute value of the value column.
func NormInfty(f *table.Table) (float64, error) {
	_, y, err := xy(f)
	if err != nil {
		return 0, err
	}
	return maxAbs(y), nil
}

// LpNorm returns the L^p norm (1 <= p < Inf) of the piecewise constant
// function f on [x_0, x_{N-1}). The value at the last abscissa only closes
// the final interval and carries no weight.
func LpNorm(f *table.Table, p float64) (float64, error) {
	x, y, err := piecewise(f)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(p) || p < 1 || math.IsInf(p, 1) {
		return 0, failure.Validationf("p must satisfy 1 <= p < Inf, got %g", p)
	}

	r := 0.0
	for i := 0; i < len(x)-1; i++ {
		r += (x[i+1] - x[i]) * math.Pow(math.Abs(y[i]), p)
	}
	return math.Pow(r, 1/p), nil
}

// LinftyNorm returns the L^Inf norm of the piecewise constant function f.
// It has the same preconditions as LpNorm.
func LinftyNorm(f *table.Table) (float64, error) {
	_, y, err := piecewise(f)
	if err != nil {
		return 0, err
	}
	return maxAbs(y), nil
}

// xy splits a two-column (time, value) table.
func xy(f *table.Table) ([]float64, []float64, error) {
	if f == nil {
		return nil, nil, failure.Validationf("series is nil")
	}
	cols := f.ValueColumns()
	if len(cols) != 1 {
		return nil, nil, failure.Validationf("series must have exactly one value column besides %q, got %d",
			table.TimeColumn, len(cols))
	}
	y, _ := f.Column(cols[0])
	return f.Time(), y, nil
}

// piecewise is xy plus the preconditions of the piecewise constant norms.
func piecewise(f *table.Table) ([]float64, []float64, error) {
	x, y, err := xy(f)
	if err != nil {
		return nil, nil, err
	}
	if len(x) < 2 {
		return nil, nil, failure.Validationf("piecewise constant function needs at least two abscissae, got %d", len(x))
	}
	for i := 1; i < len(x); i++ {
		if !(x[i-1] <= x[i]) {
			return nil, nil, failure.Validationf("abscissae must be sorted ascending, but x[%d]=%g > x[%d]=%g",
				i-1, x[i-1], i, x[i])
		}
	}
	return x, y, nil
}

func maxAbs(y []float64) float64 {
	m := 0.0
	for _, v := range y {
		if a := math.Abs(v); a > m || math.IsNaN(a) {
			m = a
		}
	}
	return m
}
