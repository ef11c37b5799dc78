// Package unify merges several time-series tables onto one common time axis.
//
// Simulators may emit several samples at one instant (event handling at a
// discontinuity), so the common axis keeps every timestamp as often as the
// richest input has it. Rows are only ever added, never removed, and the added
// cells are filled according to a FillPolicy.
package unify

import (
	"math"
	"sort"

	"github.com/vjranagit/simregress/pkg/failure"
	"github.com/vjranagit/simregress/pkg/table"
)

const (
	// Time axes closer than this are treated as identical.
	sameAxisTol = 1e-15

	// Simulators round start and stop times, so bounds only need to agree
	// this closely.
	boundsRelTol = 1e-5
	boundsAbsTol = 1e-3
)

// filler fills the gap cells of one column.
type filler func(t, y []float64, gap []bool)

func (p FillPolicy) filler() filler {
	return func(t, y []float64, gap []bool) { fill(p, t, y, gap) }
}

// Timestamps returns one table per input, all sharing the same time column.
// Only inserted cells are filled; NaN values of the inputs stay NaN. Inputs
// are never modified.
func Timestamps(tables []*table.Table, policy FillPolicy) ([]*table.Table, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	fillers := make([]filler, len(tables))
	for i := range fillers {
		fillers[i] = policy.filler()
	}
	return unifyTables(tables, fillers)
}

// AlignSparse unifies base with a sparse table whose missing rows mean zero.
// Rows inserted into base are filled with the policy, rows inserted into
// sparse are 0.
func AlignSparse(base, sparse *table.Table, policy FillPolicy) (*table.Table, *table.Table, error) {
	if err := policy.Validate(); err != nil {
		return nil, nil, err
	}
	out, err := unifyTables([]*table.Table{base, sparse}, []filler{policy.filler(), zeroFill})
	if err != nil {
		return nil, nil, err
	}
	return out[0], out[1], nil
}

func unifyTables(tables []*table.Table, fillers []filler) ([]*table.Table, error) {
	if err := validate(tables); err != nil {
		return nil, err
	}

	if sameAxis(tables) {
		return alignCopies(tables), nil
	}

	if err := checkBounds(tables); err != nil {
		return nil, err
	}

	counts := make([]map[float64]int, len(tables))
	for i, t := range tables {
		counts[i] = multiplicities(t.Time())
	}
	stamps, target := targetMultiplicities(counts)

	out := make([]*table.Table, len(tables))
	for i, t := range tables {
		ext, err := extend(t, counts[i], stamps, target, fillers[i])
		if err != nil {
			return nil, err
		}
		out[i] = ext
	}

	return out, nil
}

func validate(tables []*table.Table) error {
	if len(tables) < 2 {
		return failure.Validationf("timestamp unification needs at least 2 tables, got %d", len(tables))
	}
	for i, t := range tables {
		if t == nil || t.Len() == 0 {
			return failure.Validationf("table %d is empty", i)
		}
		for _, ts := range t.Time() {
			if math.IsNaN(ts) {
				return failure.Validationf("table %d has a NaN timestamp", i)
			}
		}
	}
	return nil
}

func sameAxis(tables []*table.Table) bool {
	ref := tables[0].Time()
	for _, t := range tables[1:] {
		times := t.Time()
		if len(times) != len(ref) {
			return false
		}
		for i := range ref {
			if !isClose(ref[i], times[i], sameAxisTol, sameAxisTol) {
				return false
			}
		}
	}
	return true
}

// alignCopies copies every table and gives each copy the first table's time
// column, so near-identical axes become exactly identical.
func alignCopies(tables []*table.Table) []*table.Table {
	ref := tables[0].Time()
	out := make([]*table.Table, len(tables))
	for i, t := range tables {
		cols := t.Columns()
		data := make([][]float64, len(cols))
		for j, c := range cols {
			src := ref
			if c != table.TimeColumn {
				src, _ = t.Column(c)
			}
			data[j] = append([]float64(nil), src...)
		}
		// shapes were validated on the inputs
		out[i], _ = table.New(cols, data)
	}
	return out
}

func checkBounds(tables []*table.Table) error {
	starts := make([]float64, len(tables))
	ends := make([]float64, len(tables))
	for i, t := range tables {
		starts[i], ends[i] = minMax(t.Time())
	}

	if lo, hi := argMin(starts), argMax(starts); !isClose(starts[lo], starts[hi], boundsRelTol, boundsAbsTol) {
		return failure.Validationf("start times of the results do not match: maximum deviation is %g between results %d and %d",
			starts[hi]-starts[lo], hi, lo)
	}
	if lo, hi := argMin(ends), argMax(ends); !isClose(ends[lo], ends[hi], boundsRelTol, boundsAbsTol) {
		return failure.Validationf("end times of the results do not match: maximum deviation is %g between results %d and %d",
			ends[hi]-ends[lo], hi, lo)
	}
	return nil
}

func multiplicities(times []float64) map[float64]int {
	counts := make(map[float64]int, len(times))
	for _, ts := range times {
		counts[ts]++
	}
	return counts
}

// targetMultiplicities returns the sorted union of distinct timestamps and,
// per timestamp, the highest multiplicity any table has for it.
func targetMultiplicities(counts []map[float64]int) ([]float64, map[float64]int) {
	target := make(map[float64]int)
	for _, c := range counts {
		for ts, n := range c {
			if n > target[ts] {
				target[ts] = n
			}
		}
	}

	stamps := make([]float64, 0, len(target))
	for ts := range target {
		stamps = append(stamps, ts)
	}
	sort.Float64s(stamps)

	return stamps, target
}

func expandAxis(stamps []float64, target map[float64]int) []float64 {
	total := 0
	for _, ts := range stamps {
		total += target[ts]
	}
	axis := make([]float64, 0, total)
	for _, ts := range stamps {
		for k := 0; k < target[ts]; k++ {
			axis = append(axis, ts)
		}
	}
	return axis
}

// extend inserts NaN rows until every timestamp reaches its target
// multiplicity, orders rows by time keeping the original order of rows that
// share a timestamp (inserted rows go last), and fills the inserted cells.
func extend(t *table.Table, own map[float64]int, stamps []float64, target map[float64]int, fillGaps filler) (*table.Table, error) {
	times := t.Time()

	order := make([]int, len(times))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return times[order[a]] < times[order[b]]
	})

	// rows[k] is the source row index, or -1 for an inserted row
	axis := expandAxis(stamps, target)
	rows := make([]int, 0, len(axis))
	next := 0
	for _, ts := range stamps {
		for next < len(order) && times[order[next]] == ts {
			rows = append(rows, order[next])
			next++
		}
		for k := own[ts]; k < target[ts]; k++ {
			rows = append(rows, -1)
		}
	}

	gap := make([]bool, len(rows))
	for k, r := range rows {
		gap[k] = r < 0
	}

	cols := t.Columns()
	data := make([][]float64, len(cols))
	for j, c := range cols {
		if c == table.TimeColumn {
			data[j] = axis
			continue
		}
		src, _ := t.Column(c)
		col := make([]float64, len(rows))
		for k, r := range rows {
			if r < 0 {
				col[k] = math.NaN()
			} else {
				col[k] = src[r]
			}
		}
		fillGaps(axis, col, gap)
		data[j] = col
	}

	return table.New(cols, data)
}

func isClose(a, b, rel, abs float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= math.Max(rel*math.Max(math.Abs(a), math.Abs(b)), abs)
}

func minMax(xs []float64) (float64, float64) {
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}

func argMin(xs []float64) int {
	k := 0
	for i, x := range xs {
		if x < xs[k] {
			k = i
		}
	}
	return k
}

func argMax(xs []float64) int {
	k := 0
	for i, x := range xs {
		if x > xs[k] {
			k = i
		}
	}
	return k
}
