// Package suite describes regression suites in YAML and runs them against
// stored or file based reference results.
package suite

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/vjranagit/simregress/pkg/compare"
	"github.com/vjranagit/simregress/pkg/failure"
	"github.com/vjranagit/simregress/pkg/metrics"
	"github.com/vjranagit/simregress/pkg/unify"
)

// StorePrefix marks a reference that is loaded from the reference store
// instead of a CSV file, as in "store:Sine".
const StorePrefix = "store:"

// MaxSuiteFileSize bounds the size of a suite file.
const MaxSuiteFileSize = 1 << 20

// Settings are comparison settings shared by suite defaults and cases. Unset
// fields inherit from the enclosing level.
type Settings struct {
	Tolerance *float64 `yaml:"tolerance,omitempty"`
	Metric    string   `yaml:"metric,omitempty"`
	P         *float64 `yaml:"p,omitempty"`
	Unify     *bool    `yaml:"unify,omitempty"`
	Fill      string   `yaml:"fill,omitempty"`
}

// Case is one comparison of an actual result against a reference.
type Case struct {
	Name      string   `yaml:"name"`
	Reference string   `yaml:"reference"`
	Actual    string   `yaml:"actual"`
	Columns   []string `yaml:"columns,omitempty"`
	Settings  `yaml:",inline"`
}

// Suite is a named list of cases.
type Suite struct {
	Name     string   `yaml:"name"`
	Defaults Settings `yaml:"defaults,omitempty"`
	Cases    []Case   `yaml:"cases"`

	// Dir is the directory relative paths resolve against.
	Dir string `yaml:"-"`
}

// Load reads and validates a suite file. Relative paths in the suite resolve
// against the file's directory.
func Load(path string) (*Suite, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat suite %s", path)
	}
	if info.Size() > MaxSuiteFileSize {
		return nil, failure.Validationf("suite %s is larger than %d bytes", path, MaxSuiteFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read suite %s", path)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "suite %s", path)
	}

	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve suite directory")
	}
	s.Dir = abs
	return s, nil
}

// Parse decodes and validates a suite. Unknown keys are rejected.
func Parse(data []byte) (*Suite, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Suite
	if err := dec.Decode(&s); err != nil {
		return nil, failure.MarkValidation(errors.Wrap(err, "failed to parse suite"))
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that case names are unique, paths are present and every
// setting names a known metric and fill policy.
func (s *Suite) Validate() error {
	if len(s.Cases) == 0 {
		return failure.Validationf("suite %q has no cases", s.Name)
	}
	if err := s.Defaults.validate(); err != nil {
		return errors.Wrap(err, "defaults")
	}

	seen := make(map[string]bool, len(s.Cases))
	for i, c := range s.Cases {
		if strings.TrimSpace(c.Name) == "" {
			return failure.Validationf("case %d has no name", i)
		}
		if strings.ContainsAny(c.Name, `/\`) {
			return failure.Validationf("case name %q must not contain path separators", c.Name)
		}
		if seen[c.Name] {
			return failure.Validationf("duplicate case name %q", c.Name)
		}
		seen[c.Name] = true

		if c.Reference == "" || c.Reference == StorePrefix {
			return failure.Validationf("case %q has no reference", c.Name)
		}
		if c.Actual == "" {
			return failure.Validationf("case %q has no actual result", c.Name)
		}
		if err := c.Settings.validate(); err != nil {
			return errors.Wrapf(err, "case %q", c.Name)
		}
	}
	return nil
}

func (st Settings) validate() error {
	if st.Tolerance != nil && !(*st.Tolerance > 0) {
		return failure.Validationf("tolerance must be positive, got %g", *st.Tolerance)
	}
	if st.Metric != "" {
		p := 2.0
		if st.P != nil {
			p = *st.P
		}
		if _, err := metrics.Lookup(st.Metric, p); err != nil {
			return err
		}
	}
	if st.Fill != "" {
		if _, err := unify.ParseFillPolicy(st.Fill); err != nil {
			return err
		}
	}
	return nil
}

// Options resolves the comparison options of a case: case settings override
// suite defaults, which override base. baseMetric and baseP name the metric
// of base so that a p given without a metric can rebuild it.
func (s *Suite) Options(c Case, base compare.Options, baseMetric string, baseP float64) (compare.Options, error) {
	opts := base
	opts.Columns = c.Columns

	metric, p := baseMetric, baseP
	for _, st := range []Settings{s.Defaults, c.Settings} {
		if st.Tolerance != nil {
			opts.Tolerance = *st.Tolerance
		}
		if st.Metric != "" {
			metric = st.Metric
		}
		if st.P != nil {
			p = *st.P
		}
		if st.Unify != nil {
			opts.Unify = *st.Unify
		}
		if st.Fill != "" {
			fill, err := unify.ParseFillPolicy(st.Fill)
			if err != nil {
				return compare.Options{}, err
			}
			opts.Fill = fill
		}
	}

	if metric != "" {
		m, err := metrics.Lookup(metric, p)
		if err != nil {
			return compare.Options{}, err
		}
		opts.Metric = m
	}
	return opts, nil
}

// Resolve makes a relative path absolute against the suite directory.
func (s *Suite) Resolve(path string) string {
	if filepath.IsAbs(path) || s.Dir == "" {
		return path
	}
	return filepath.Join(s.Dir, path)
}

// StoredName returns the reference name of a "store:" reference.
func StoredName(ref string) (string, bool) {
	if !strings.HasPrefix(ref, StorePrefix) {
		return "", false
	}
	return strings.TrimPrefix(ref, StorePrefix), true
}
