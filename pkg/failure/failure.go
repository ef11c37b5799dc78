// Package failure defines the two error kinds callers of the comparison engine
// need to tell apart: malformed input (validation) and a failed regression
// check (comparison failure).
package failure

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrValidation marks errors caused by malformed input: shape mismatches,
// unsorted abscissae, unknown fill policies, bad column selections and
// start/end time mismatches.
var ErrValidation = errors.New("validation error")

// Validationf creates a new error marked as a validation error.
func Validationf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

// MarkValidation marks an existing error as a validation error.
func MarkValidation(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrValidation)
}

// IsValidation reports whether err, or anything it wraps, is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// ComparisonFailure is returned when one or more validated columns deviate
// from the reference by at least the tolerance.
type ComparisonFailure struct {
	Columns   []string
	Tolerance float64
}

// Error implements error.
func (f *ComparisonFailure) Error() string {
	return fmt.Sprintf("values in column(s) %s differ by more than tolerance %g",
		strings.Join(quote(f.Columns), ", "), f.Tolerance)
}

// AsComparisonFailure extracts a ComparisonFailure from err.
func AsComparisonFailure(err error) (*ComparisonFailure, bool) {
	var cf *ComparisonFailure
	if errors.As(err, &cf) {
		return cf, true
	}
	return nil, false
}

func quote(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = fmt.Sprintf("%q", c)
	}
	return out
}
