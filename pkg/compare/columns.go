package compare

import (
	"github.com/vjranagit/simregress/pkg/failure"
	"github.com/vjranagit/simregress/pkg/table"
)

// SelectColumns returns the columns a comparison validates. The time column is
// silently dropped from requested. An empty request selects every value
// column both tables share, in reference order. Requested columns missing from
// either side, or an empty selection, are validation errors.
func SelectColumns(ref, act *table.Table, requested []string) ([]string, error) {
	common := make([]string, 0)
	for _, c := range ref.ValueColumns() {
		if act.Has(c) {
			common = append(common, c)
		}
	}

	if len(requested) == 0 {
		if len(common) == 0 {
			return nil, failure.Validationf("reference and actual result share no columns besides %q", table.TimeColumn)
		}
		return common, nil
	}

	selected := make([]string, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, c := range requested {
		if c == table.TimeColumn || seen[c] {
			continue
		}
		seen[c] = true

		switch {
		case !ref.Has(c) && !act.Has(c):
			return nil, failure.Validationf("column %q is missing from both the reference and the actual result", c)
		case !ref.Has(c):
			return nil, failure.Validationf("column %q is missing from the reference result", c)
		case !act.Has(c):
			return nil, failure.Validationf("column %q is missing from the actual result", c)
		}
		selected = append(selected, c)
	}

	if len(selected) == 0 {
		return nil, failure.Validationf("no columns left to validate after removing %q", table.TimeColumn)
	}
	return selected, nil
}
