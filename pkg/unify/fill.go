package unify

import (
	"math"
	"strings"

	"github.com/vjranagit/simregress/pkg/failure"
)

// FillPolicy selects how cells of inserted rows are filled.
type FillPolicy string

const (
	// ForwardFill copies the nearest preceding valid value.
	ForwardFill FillPolicy = "ffill"
	// BackwardFill copies the nearest following valid value.
	BackwardFill FillPolicy = "bfill"
	// Interpolate interpolates linearly in time between the nearest valid
	// neighbours.
	Interpolate FillPolicy = "interpolate"
)

// FillPolicies lists the accepted policies.
func FillPolicies() []FillPolicy {
	return []FillPolicy{ForwardFill, BackwardFill, Interpolate}
}

// ParseFillPolicy maps a policy token to a FillPolicy.
func ParseFillPolicy(s string) (FillPolicy, error) {
	p := FillPolicy(strings.ToLower(strings.TrimSpace(s)))
	if err := p.Validate(); err != nil {
		return "", err
	}
	return p, nil
}

// Validate returns a validation error for unknown policies.
func (p FillPolicy) Validate() error {
	switch p {
	case ForwardFill, BackwardFill, Interpolate:
		return nil
	}
	return failure.Validationf("unknown fill policy %q, expected one of ffill, bfill, interpolate", string(p))
}

// fill fills the cells of y marked in gap. Values the input already had are
// kept, NaN included, and only non-NaN cells serve as neighbours. Gap cells
// without a neighbour on the policy's side are clamped to the nearest value on
// the other side. A column without any value is left NaN.
func fill(policy FillPolicy, t, y []float64, gap []bool) {
	switch policy {
	case ForwardFill:
		forwardFill(y, gap)
	case BackwardFill:
		backwardFill(y, gap)
	case Interpolate:
		interpolate(t, y, gap)
	}

	// clamp at the boundaries
	forwardFill(y, gap)
	backwardFill(y, gap)
}

// zeroFill sets every gap cell to 0.
func zeroFill(_, y []float64, gap []bool) {
	for i := range y {
		if gap[i] {
			y[i] = 0
		}
	}
}

func forwardFill(y []float64, gap []bool) {
	last := math.NaN()
	for i, v := range y {
		switch {
		case gap[i] && math.IsNaN(v):
			y[i] = last
		case !math.IsNaN(v):
			last = v
		}
	}
}

func backwardFill(y []float64, gap []bool) {
	next := math.NaN()
	for i := len(y) - 1; i >= 0; i-- {
		switch {
		case gap[i] && math.IsNaN(y[i]):
			y[i] = next
		case !math.IsNaN(y[i]):
			next = y[i]
		}
	}
}

func interpolate(t, y []float64, gap []bool) {
	prev := -1
	for i := 0; i < len(y); i++ {
		if !math.IsNaN(y[i]) {
			prev = i
			continue
		}
		if !gap[i] || prev < 0 {
			continue
		}

		next := i + 1
		for next < len(y) && math.IsNaN(y[next]) {
			next++
		}
		if next == len(y) {
			return
		}

		// fill the gap cells of (prev, next) in one go
		t0, t1 := t[prev], t[next]
		y0, y1 := y[prev], y[next]
		for k := i; k < next; k++ {
			if !gap[k] {
				continue
			}
			if t1 == t0 {
				y[k] = y0
			} else {
				y[k] = y0 + (y1-y0)*(t[k]-t0)/(t1-t0)
			}
		}
		prev = next
		i = next
	}
}
