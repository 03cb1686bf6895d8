package document

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// table is a validated timetable: the begin-column headers and, for each day,
// the raw begin-column cells in schema order.
type table struct {
	columns []string
	rows    [][]string
}

// readTable parses a CSV timetable and projects it onto the schema.
// A *schemaError is returned when the header does not satisfy the schema.
func readTable(r io.Reader, schema Schema) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &schemaError{found: 0}
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx, found, ok := schema.resolve(header)
	if !ok {
		return nil, &schemaError{found: found}
	}

	t := &table{columns: make([]string, len(idx))}
	for i, c := range idx {
		t.columns[i] = strings.TrimSpace(header[c])
	}

	filled := 0
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		cells := make([]string, len(idx))
		for i, c := range idx {
			if c < len(rec) {
				cells[i] = strings.TrimSpace(rec[c])
			}
		}
		t.rows = append(t.rows, cells)
		if !blank(rec) {
			filled = len(t.rows)
		}
	}
	// Row i is day i+1, so empty rows inside the table keep their place;
	// trailing empty rows are padding and are cut.
	t.rows = t.rows[:filled]
	return t, nil
}

type schemaError struct{ found int }

func (e *schemaError) Error() string {
	return fmt.Sprintf("found %d begin-columns", e.found)
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
