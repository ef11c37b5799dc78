package metrics

import (
	"math"

	"github.com/vjranagit/simregress/pkg/failure"
	"github.com/vjranagit/simregress/pkg/table"
)

// NormPDist returns NormP of f2 - f1.
func NormPDist(f1, f2 *table.Table, p float64) (float64, error) {
	d, err := difference(f1, f2)
	if err != nil {
		return 0, err
	}
	return NormP(d, p)
}

// NormInftyDist returns NormInfty of f2 - f1.
func NormInftyDist(f1, f2 *table.Table) (float64, error) {
	d, err := difference(f1, f2)
	if err != nil {
		return 0, err
	}
	return NormInfty(d)
}

// LpDist returns LpNorm of f2 - f1.
func LpDist(f1, f2 *table.Table, p float64) (float64, error) {
	d, err := difference(f1, f2)
	if err != nil {
		return 0, err
	}
	return LpNorm(d, p)
}

// LinftyDist returns LinftyNorm of f2 - f1.
func LinftyDist(f1, f2 *table.Table) (float64, error) {
	d, err := difference(f1, f2)
	if err != nil {
		return 0, err
	}
	return LinftyNorm(d)
}

// AbsDistPointwise returns the series (time, |f2 - f1|), i.e. where the two
// series deviate rather than by how much overall.
func AbsDistPointwise(f1, f2 *table.Table) (*table.Table, error) {
	d, err := difference(f1, f2)
	if err != nil {
		return nil, err
	}
	x, y, _ := xy(d)
	abs := make([]float64, len(y))
	for i, v := range y {
		abs[i] = math.Abs(v)
	}
	return table.New([]string{table.TimeColumn, deltaColumn}, [][]float64{x, abs})
}

const deltaColumn = "delta"

// difference builds (time, f2.value - f1.value). Both series must have the
// same length and exactly the same time values.
func difference(f1, f2 *table.Table) (*table.Table, error) {
	x1, y1, err := xy(f1)
	if err != nil {
		return nil, err
	}
	x2, y2, err := xy(f2)
	if err != nil {
		return nil, err
	}
	if len(x1) != len(x2) {
		return nil, failure.Validationf("shapes of f1 and f2 must match, but f1 has %d rows and f2 has %d rows", len(x1), len(x2))
	}
	for i := range x1 {
		if x1[i] != x2[i] {
			return nil, failure.Validationf("time columns of f1 and f2 must match, but differ at row %d (%g != %g)", i, x1[i], x2[i])
		}
	}

	x := make([]float64, len(x1))
	copy(x, x1)
	y := make([]float64, len(y1))
	for i := range y1 {
		y[i] = y2[i] - y1[i]
	}
	return table.New([]string{table.TimeColumn, deltaColumn}, [][]float64{x, y})
}
