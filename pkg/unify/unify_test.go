package unify

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/simregress/pkg/failure"
	"github.com/vjranagit/simregress/pkg/table"
)

var quantCols = []string{"time", "quant1", "quant2"}

func quant(rows ...[]float64) *table.Table {
	return table.MustFromRows(quantCols, rows)
}

func requireRows(t *testing.T, want, got *table.Table) {
	t.Helper()
	require.Equal(t, want.Columns(), got.Columns())
	require.Equal(t, want.Len(), got.Len(), "row count")
	for i := 0; i < want.Len(); i++ {
		assert.InDeltaSlice(t, want.Row(i), got.Row(i), 1e-12, "row %d", i)
	}
}

func fixture() (*table.Table, *table.Table) {
	res1 := quant(
		[]float64{0.0, 1.0, 2.0},
		[]float64{0.5, 2.0, 4.0},
		[]float64{0.75, 3.0, 6.0},
		[]float64{1.0, 4.0, 8.0},
	)
	res2 := quant(
		[]float64{0.0, 1.0, 2.0},
		[]float64{0.25, 1.5, 3.0},
		[]float64{0.5, 2.0, 4.0},
		[]float64{1.0, 4.0, 8.0},
	)
	return res1, res2
}

func TestTimestampsForwardFill(t *testing.T) {
	res1, res2 := fixture()

	out, err := Timestamps([]*table.Table{res1, res2}, ForwardFill)
	require.NoError(t, err)
	require.Len(t, out, 2)

	requireRows(t, quant(
		[]float64{0.0, 1.0, 2.0},
		[]float64{0.25, 1.0, 2.0},
		[]float64{0.5, 2.0, 4.0},
		[]float64{0.75, 3.0, 6.0},
		[]float64{1.0, 4.0, 8.0},
	), out[0])
	requireRows(t, quant(
		[]float64{0.0, 1.0, 2.0},
		[]float64{0.25, 1.5, 3.0},
		[]float64{0.5, 2.0, 4.0},
		[]float64{0.75, 2.0, 4.0},
		[]float64{1.0, 4.0, 8.0},
	), out[1])
}

func TestTimestampsBackwardFill(t *testing.T) {
	res1, res2 := fixture()

	out, err := Timestamps([]*table.Table{res1, res2}, BackwardFill)
	require.NoError(t, err)

	requireRows(t, quant(
		[]float64{0.0, 1.0, 2.0},
		[]float64{0.25, 2.0, 4.0},
		[]float64{0.5, 2.0, 4.0},
		[]float64{0.75, 3.0, 6.0},
		[]float64{1.0, 4.0, 8.0},
	), out[0])
	requireRows(t, quant(
		[]float64{0.0, 1.0, 2.0},
		[]float64{0.25, 1.5, 3.0},
		[]float64{0.5, 2.0, 4.0},
		[]float64{0.75, 4.0, 8.0},
		[]float64{1.0, 4.0, 8.0},
	), out[1])
}

func TestTimestampsInterpolate(t *testing.T) {
	res1 := quant(
		[]float64{0.0, 1.0, 2.0},
		[]float64{0.5, 2.0, 4.0},
		[]float64{0.75, 3.3, 6.6},
		[]float64{1.0, 4.0, 8.0},
	)
	_, res2 := fixture()

	out, err := Timestamps([]*table.Table{res1, res2}, Interpolate)
	require.NoError(t, err)

	requireRows(t, quant(
		[]float64{0.0, 1.0, 2.0},
		[]float64{0.25, 1.5, 3.0},
		[]float64{0.5, 2.0, 4.0},
		[]float64{0.75, 3.3, 6.6},
		[]float64{1.0, 4.0, 8.0},
	), out[0])
	requireRows(t, quant(
		[]float64{0.0, 1.0, 2.0},
		[]float64{0.25, 1.5, 3.0},
		[]float64{0.5, 2.0, 4.0},
		[]float64{0.75, 3.0, 6.0},
		[]float64{1.0, 4.0, 8.0},
	), out[1])
}

func TestTimestampsInterpolateUsesTime(t *testing.T) {
	a := table.MustFromRows([]string{"time", "y"}, [][]float64{{0, 0}, {0.1, 1}, {1, 10}})
	b := table.MustFromRows([]string{"time", "y"}, [][]float64{{0, 0}, {1, 10}})

	out, err := Timestamps([]*table.Table{a, b}, Interpolate)
	require.NoError(t, err)

	y, _ := out[1].Column("y")
	assert.InDeltaSlice(t, []float64{0, 1, 10}, y, 1e-12)
}

func TestTimestampsMultiplicity(t *testing.T) {
	res1 := quant(
		[]float64{0.0, 1.0, 2.0},
		[]float64{0.5, 2.0, 4.0}, []float64{0.5, 2.2, 4.4}, []float64{0.5, 2.4, 4.8},
		[]float64{0.75, 3.0, 6.0},
		[]float64{1.0, 4.0, 8.0},
	)
	res2 := quant(
		[]float64{0.0, 1.0, 2.0}, []float64{0.0, 1.1, 2.1},
		[]float64{0.25, 1.5, 3.0}, []float64{0.25, 1.6, 3.3},
		[]float64{0.5, 2.0, 4.0}, []float64{0.5, 2.7, 4.7},
		[]float64{1.0, 4.0, 8.0},
	)

	out, err := Timestamps([]*table.Table{res1, res2}, ForwardFill)
	require.NoError(t, err)

	requireRows(t, quant(
		[]float64{0.0, 1.0, 2.0}, []float64{0.0, 1.0, 2.0},
		[]float64{0.25, 1.0, 2.0}, []float64{0.25, 1.0, 2.0},
		[]float64{0.5, 2.0, 4.0}, []float64{0.5, 2.2, 4.4}, []float64{0.5, 2.4, 4.8},
		[]float64{0.75, 3.0, 6.0},
		[]float64{1.0, 4.0, 8.0},
	), out[0])
	requireRows(t, quant(
		[]float64{0.0, 1.0, 2.0}, []float64{0.0, 1.1, 2.1},
		[]float64{0.25, 1.5, 3.0}, []float64{0.25, 1.6, 3.3},
		[]float64{0.5, 2.0, 4.0}, []float64{0.5, 2.7, 4.7}, []float64{0.5, 2.7, 4.7},
		[]float64{0.75, 2.7, 4.7},
		[]float64{1.0, 4.0, 8.0},
	), out[1])

	// multiplicity of every timestamp equals the maximum over the inputs
	want := map[float64]int{0: 2, 0.25: 2, 0.5: 3, 0.75: 1, 1: 1}
	for _, o := range out {
		assert.Equal(t, want, multiplicities(o.Time()))
	}
}

func TestTimestampsUnsortedInputKeepsOrderWithinTimestamp(t *testing.T) {
	a := table.MustFromRows([]string{"time", "y"}, [][]float64{{1, 4}, {0.5, 2}, {0, 1}, {0.5, 3}})
	b := table.MustFromRows([]string{"time", "y"}, [][]float64{{0, 1}, {1, 4}})

	out, err := Timestamps([]*table.Table{a, b}, ForwardFill)
	require.NoError(t, err)

	y, _ := out[0].Column("y")
	assert.Equal(t, []float64{0, 0.5, 0.5, 1}, out[0].Time())
	assert.Equal(t, []float64{1, 2, 3, 4}, y)

	y, _ = out[1].Column("y")
	assert.Equal(t, []float64{1, 1, 1, 4}, y)
}

func TestTimestampsIdenticalInputs(t *testing.T) {
	res1, _ := fixture()

	out, err := Timestamps([]*table.Table{res1, res1}, ForwardFill)
	require.NoError(t, err)
	assert.True(t, res1.Equal(out[0]))
	assert.True(t, res1.Equal(out[1]))
}

func TestTimestampsNearlyIdenticalAxesBecomeIdentical(t *testing.T) {
	a := table.MustFromRows([]string{"time", "y"}, [][]float64{{0, 1}, {1, 2}})
	b := table.MustFromRows([]string{"time", "y"}, [][]float64{{0, 1}, {1 + 1e-16, 2}})

	out, err := Timestamps([]*table.Table{a, b}, ForwardFill)
	require.NoError(t, err)
	assert.Equal(t, out[0].Time(), out[1].Time())
}

func TestTimestampsDoesNotMutateInputs(t *testing.T) {
	res1, res2 := fixture()
	before1, before2 := res1.Clone(), res2.Clone()

	_, err := Timestamps([]*table.Table{res1, res2}, Interpolate)
	require.NoError(t, err)
	assert.True(t, before1.Equal(res1))
	assert.True(t, before2.Equal(res2))
}

func TestTimestampsPreservesColumns(t *testing.T) {
	a := table.MustFromRows([]string{"time", "y"}, [][]float64{{0, 1}, {1, 2}})
	b := table.MustFromRows([]string{"z", "time"}, [][]float64{{5, 0}, {6, 0.5}, {7, 1}})

	out, err := Timestamps([]*table.Table{a, b}, ForwardFill)
	require.NoError(t, err)
	assert.Equal(t, []string{"time", "y"}, out[0].Columns())
	assert.Equal(t, []string{"z", "time"}, out[1].Columns())
	assert.Equal(t, out[0].Time(), out[1].Time())
}

func TestTimestampsBoundaryClamp(t *testing.T) {
	// start times differ within tolerance so the first row of b is inserted
	a := table.MustFromRows([]string{"time", "y"}, [][]float64{{0, 1}, {1, 2}})
	b := table.MustFromRows([]string{"time", "y"}, [][]float64{{0.0005, 7}, {1, 9}})

	for _, policy := range FillPolicies() {
		t.Run(string(policy), func(t *testing.T) {
			out, err := Timestamps([]*table.Table{a, b}, policy)
			require.NoError(t, err)

			y, _ := out[1].Column("y")
			require.Len(t, y, 3)
			for _, v := range y {
				assert.False(t, math.IsNaN(v))
			}
			assert.Equal(t, 7.0, y[0])
		})
	}
}

func TestTimestampsBoundsMismatch(t *testing.T) {
	_, res2 := fixture()

	late := quant(
		[]float64{0.1, 1.0, 2.0},
		[]float64{0.5, 2.0, 4.0},
		[]float64{1.0, 4.0, 8.0},
	)
	_, err := Timestamps([]*table.Table{late, res2}, ForwardFill)
	require.Error(t, err)
	assert.True(t, failure.IsValidation(err))
	assert.Contains(t, err.Error(), "start times")

	early := quant(
		[]float64{0.0, 1.0, 2.0},
		[]float64{0.25, 1.5, 3.0},
		[]float64{0.9, 4.0, 8.0},
	)
	res1, _ := fixture()
	_, err = Timestamps([]*table.Table{res1, early}, ForwardFill)
	require.Error(t, err)
	assert.True(t, failure.IsValidation(err))
	assert.Contains(t, err.Error(), "end times")
}

func TestTimestampsInvalidInput(t *testing.T) {
	res1, res2 := fixture()
	empty := table.MustFromRows([]string{"time", "y"}, nil)
	nanTime := table.MustFromRows([]string{"time", "y"}, [][]float64{{math.NaN(), 1}})

	testCases := []struct {
		name   string
		tables []*table.Table
		policy FillPolicy
	}{
		{"unknown policy", []*table.Table{res1, res2}, FillPolicy("pad")},
		{"single table", []*table.Table{res1}, ForwardFill},
		{"empty table", []*table.Table{res1, empty}, ForwardFill},
		{"nil table", []*table.Table{res1, nil}, ForwardFill},
		{"NaN timestamp", []*table.Table{res1, nanTime}, ForwardFill},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Timestamps(tc.tables, tc.policy)
			require.Error(t, err)
			assert.True(t, failure.IsValidation(err))
		})
	}
}

func TestTimestampsKeepsInputNaN(t *testing.T) {
	ref := table.MustFromRows([]string{"time", "y"}, [][]float64{{0, 1}, {1, 2}})
	act := table.MustFromRows([]string{"time", "y"}, [][]float64{{0, 1}, {0.5, math.NaN()}, {1, 2}})

	for _, policy := range FillPolicies() {
		t.Run(string(policy), func(t *testing.T) {
			out, err := Timestamps([]*table.Table{ref, act}, policy)
			require.NoError(t, err)

			y, _ := out[1].Column("y")
			require.Len(t, y, 3)
			assert.Equal(t, 1.0, y[0])
			assert.True(t, math.IsNaN(y[1]))
			assert.Equal(t, 2.0, y[2])

			// the inserted reference row is filled
			y, _ = out[0].Column("y")
			assert.False(t, math.IsNaN(y[1]))
		})
	}
}

func TestTimestampsFillSkipsInputNaN(t *testing.T) {
	a := table.MustFromRows([]string{"time", "y"}, [][]float64{{0, 1}, {0.5, math.NaN()}, {1, 3}})
	b := table.MustFromRows([]string{"time", "y"}, [][]float64{{0, 0}, {0.75, 0}, {1, 0}})

	out, err := Timestamps([]*table.Table{a, b}, ForwardFill)
	require.NoError(t, err)

	y, _ := out[0].Column("y")
	require.Len(t, y, 4)
	assert.Equal(t, 1.0, y[0])
	assert.True(t, math.IsNaN(y[1]))
	assert.Equal(t, 1.0, y[2], "inserted row takes the last non-NaN value")
	assert.Equal(t, 3.0, y[3])
}

func TestAlignSparse(t *testing.T) {
	base := table.MustFromRows([]string{"time", "y"}, [][]float64{{0, 1}, {1, 2}, {2, 3}})
	sparse := table.MustFromRows([]string{"time", "d"}, [][]float64{{0, 0}, {2, 1}})

	for _, policy := range FillPolicies() {
		t.Run(string(policy), func(t *testing.T) {
			b, s, err := AlignSparse(base, sparse, policy)
			require.NoError(t, err)
			assert.True(t, base.Equal(b))

			d, _ := s.Column("d")
			assert.Equal(t, []float64{0, 0, 1}, d)
		})
	}

	_, _, err := AlignSparse(base, sparse, FillPolicy("pad"))
	assert.True(t, failure.IsValidation(err))
}

func TestParseFillPolicy(t *testing.T) {
	p, err := ParseFillPolicy(" BFill ")
	require.NoError(t, err)
	assert.Equal(t, BackwardFill, p)

	_, err = ParseFillPolicy("nearest")
	assert.True(t, failure.IsValidation(err))
}
