package table

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/simregress/pkg/failure"
)

func TestNew(t *testing.T) {
	tbl, err := New([]string{"time", "y"}, [][]float64{{0, 1}, {2, 3}})
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"time", "y"}, tbl.Columns())
	assert.Equal(t, []string{"y"}, tbl.ValueColumns())
	assert.Equal(t, []float64{0, 1}, tbl.Time())
	assert.Equal(t, []float64{1, 3}, tbl.Row(1))
}

func TestNewValidation(t *testing.T) {
	testCases := []struct {
		name    string
		columns []string
		data    [][]float64
	}{
		{"no time column", []string{"y"}, [][]float64{{1}}},
		{"duplicate column", []string{"time", "y", "y"}, [][]float64{{1}, {2}, {3}}},
		{"ragged columns", []string{"time", "y"}, [][]float64{{1, 2}, {3}}},
		{"name/data mismatch", []string{"time", "y"}, [][]float64{{1}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.columns, tc.data)
			require.Error(t, err)
			assert.True(t, failure.IsValidation(err))
		})
	}
}

func TestSelect(t *testing.T) {
	tbl := MustFromRows([]string{"y", "time", "z"}, [][]float64{{1, 0, 10}, {2, 1, 20}})

	view, err := tbl.Select("z")
	require.NoError(t, err)
	assert.Equal(t, []string{"time", "z"}, view.Columns())
	assert.Equal(t, []float64{0, 1}, view.Time())

	_, err = tbl.Select("time")
	assert.True(t, failure.IsValidation(err))

	_, err = tbl.Select("missing")
	assert.True(t, failure.IsValidation(err))
}

func TestWithColumnCopies(t *testing.T) {
	tbl := MustFromRows([]string{"time", "y"}, [][]float64{{0, 1}, {1, 2}})

	ext, err := tbl.WithColumn("z", []float64{5, 6})
	require.NoError(t, err)
	assert.False(t, tbl.Has("z"))
	assert.True(t, ext.Has("z"))

	_, err = tbl.WithColumn("y", []float64{0, 0})
	assert.Error(t, err)

	_, err = tbl.WithColumn("w", []float64{0})
	assert.Error(t, err)
}

func TestEqualTreatsNaNAsEqual(t *testing.T) {
	a := MustFromRows([]string{"time", "y"}, [][]float64{{0, math.NaN()}})
	b := MustFromRows([]string{"time", "y"}, [][]float64{{0, math.NaN()}})
	c := MustFromRows([]string{"time", "y"}, [][]float64{{0, 1}})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.True(t, a.Equal(a.Clone()))
}

func TestReadCSV(t *testing.T) {
	csvData := `"time","x.y",z
0,1.5,
0.5,2,NaN
1,2.5e-3,4`

	tbl, err := ReadCSV(strings.NewReader(csvData))
	require.NoError(t, err)

	assert.Equal(t, []string{"time", "x.y", "z"}, tbl.Columns())
	assert.Equal(t, 3, tbl.Len())

	z, ok := tbl.Column("z")
	require.True(t, ok)
	assert.True(t, math.IsNaN(z[0]))
	assert.True(t, math.IsNaN(z[1]))
	assert.Equal(t, 4.0, z[2])
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.True(t, failure.IsValidation(err))

	_, err = ReadCSV(strings.NewReader("time,y\n0,abc\n"))
	assert.True(t, failure.IsValidation(err))

	_, err = ReadCSV(strings.NewReader("t,y\n0,1\n"))
	assert.True(t, failure.IsValidation(err))
}

func TestCSVRoundTrip(t *testing.T) {
	tbl := MustFromRows([]string{"time", "y"}, [][]float64{
		{0, 0.1},
		{1.0 / 3.0, math.NaN()},
		{1, -1e-300},
	})

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&buf))
	assert.True(t, strings.HasPrefix(buf.String(), "time,y\n"))

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.True(t, tbl.Equal(back))

	path := filepath.Join(t.TempDir(), "res.csv")
	require.NoError(t, tbl.SaveCSV(path))

	loaded, err := LoadCSV(path)
	require.NoError(t, err)
	assert.True(t, tbl.Equal(loaded))
}
