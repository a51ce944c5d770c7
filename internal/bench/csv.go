package bench

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FileName is the CSV file a scenario's table is written to.
func FileName(scenario string) string {
	return strings.NewReplacer("/", "_", string(os.PathSeparator), "_").Replace(scenario) + ".csv"
}

// WriteCSV writes t to dir/<scenario>.csv and returns the path.
func WriteCSV(dir string, t Table) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName(t.Scenario))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := Encode(f, t); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, f.Close()
}

// Encode writes a header of backend names followed by one row per tick.
func Encode(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Backends); err != nil {
		return err
	}
	row := make([]string, len(t.Backends))
	for _, r := range t.Rows {
		for i, v := range r {
			row[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV loads a table written by WriteCSV. The scenario name is taken
// from the file name.
func ReadCSV(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, err
	}
	defer f.Close()

	t, err := Decode(f)
	if err != nil {
		return Table{}, fmt.Errorf("read %s: %w", path, err)
	}
	t.Scenario = strings.TrimSuffix(filepath.Base(path), ".csv")
	return t, nil
}

func Decode(r io.Reader) (Table, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return Table{}, err
	}
	if len(records) == 0 {
		return Table{}, io.ErrUnexpectedEOF
	}
	t := Table{Backends: records[0], Rows: make([][]float64, 0, len(records)-1)}
	for line, rec := range records[1:] {
		row := make([]float64, len(rec))
		for i, s := range rec {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return Table{}, fmt.Errorf("line %d: %w", line+2, err)
			}
			row[i] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
