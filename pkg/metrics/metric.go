package metrics

import (
	"sort"

	"github.com/vjranagit/simregress/pkg/failure"
	"github.com/vjranagit/simregress/pkg/table"
)

// Deviation is the outcome of a Metric: either a single scalar or, when
// Pointwise is set, a localized (time, deviation) series.
type Deviation struct {
	Value     float64
	Pointwise *table.Table
}

// Localized reports whether the deviation is a per-timestamp series.
func (d Deviation) Localized() bool {
	return d.Pointwise != nil
}

// Scalar wraps a scalar deviation.
func Scalar(v float64) Deviation {
	return Deviation{Value: v}
}

// Metric measures the deviation of an actual (time, value) series from a
// reference series. Custom metrics only need to satisfy this signature.
type Metric func(ref, act *table.Table) (Deviation, error)

// NormPDistMetric returns NormPDist with a fixed p as a Metric.
func NormPDistMetric(p float64) Metric {
	return func(ref, act *table.Table) (Deviation, error) {
		d, err := NormPDist(ref, act, p)
		return Scalar(d), err
	}
}

// NormInftyDistMetric returns NormInftyDist as a Metric. It is the default
// metric of the comparator.
func NormInftyDistMetric() Metric {
	return func(ref, act *table.Table) (Deviation, error) {
		d, err := NormInftyDist(ref, act)
		return Scalar(d), err
	}
}

// LpDistMetric returns LpDist with a fixed p as a Metric.
func LpDistMetric(p float64) Metric {
	return func(ref, act *table.Table) (Deviation, error) {
		d, err := LpDist(ref, act, p)
		return Scalar(d), err
	}
}

// LinftyDistMetric returns LinftyDist as a Metric.
func LinftyDistMetric() Metric {
	return func(ref, act *table.Table) (Deviation, error) {
		d, err := LinftyDist(ref, act)
		return Scalar(d), err
	}
}

// AbsDistPointwiseMetric returns AbsDistPointwise as a Metric.
func AbsDistPointwiseMetric() Metric {
	return func(ref, act *table.Table) (Deviation, error) {
		d, err := AbsDistPointwise(ref, act)
		if err != nil {
			return Deviation{}, err
		}
		return Deviation{Pointwise: d}, nil
	}
}

// Metric names accepted by Lookup.
const (
	NameNormPDist        = "norm_p_dist"
	NameNormInftyDist    = "norm_infty_dist"
	NameLpDist           = "Lp_dist"
	NameLinftyDist       = "Linfty_dist"
	NameAbsDistPointwise = "abs_dist_ptwise"
)

var registry = map[string]func(p float64) Metric{
	NameNormPDist:        NormPDistMetric,
	NameNormInftyDist:    func(float64) Metric { return NormInftyDistMetric() },
	NameLpDist:           LpDistMetric,
	NameLinftyDist:       func(float64) Metric { return LinftyDistMetric() },
	NameAbsDistPointwise: func(float64) Metric { return AbsDistPointwiseMetric() },
}

// Lookup resolves a built-in metric by name. p is used by the p-norm based
// metrics and ignored by the others.
func Lookup(name string, p float64) (Metric, error) {
	build, ok := registry[name]
	if !ok {
		return nil, failure.Validationf("unknown metric %q, expected one of %v", name, Names())
	}
	return build(p), nil
}

// Names lists the built-in metric names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
