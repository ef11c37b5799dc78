package table

import (
	"bufio"
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/vjranagit/simregress/pkg/failure"
)

// ReadCSV reads a comma separated table with a header row. The header must
// name a "time" column; every field must parse as a float. Empty fields and
// NA/NaN tokens become NaN.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = ','
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, failure.Validationf("csv input is empty")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read csv header")
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(strings.Trim(h, "\""))
	}

	data := make([][]float64, len(columns))
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read csv line %d", line+1)
		}
		line++

		for j, field := range record {
			v, err := parseField(field)
			if err != nil {
				return nil, failure.Validationf("line %d, column %q: %v", line, columns[j], err)
			}
			data[j] = append(data[j], v)
		}
	}

	for j := range data {
		if data[j] == nil {
			data[j] = []float64{}
		}
	}

	return New(columns, data)
}

// LoadCSV reads a table from a CSV file.
func LoadCSV(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer file.Close()

	t, err := ReadCSV(bufio.NewReader(file))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", path)
	}
	return t, nil
}

// WriteCSV writes the table with a header row. Floats use the shortest
// representation that round-trips.
func (t *Table) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(t.columns); err != nil {
		return errors.Wrap(err, "failed to write csv header")
	}

	record := make([]string, len(t.columns))
	for i := 0; i < t.Len(); i++ {
		for j := range t.data {
			record[j] = formatField(t.data[j][i])
		}
		if err := writer.Write(record); err != nil {
			return errors.Wrapf(err, "failed to write csv row %d", i)
		}
	}

	writer.Flush()
	return writer.Error()
}

// SaveCSV writes the table to a CSV file, replacing any existing file.
func (t *Table) SaveCSV(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}

	if err := t.WriteCSV(file); err != nil {
		file.Close()
		return errors.Wrapf(err, "failed to save %s", path)
	}

	return file.Close()
}

func parseField(field string) (float64, error) {
	s := strings.TrimSpace(strings.Trim(field, "\""))
	switch s {
	case "", "NA", "NaN", "nan", "null":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func formatField(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
