// Package pipeline holds the CSV contracts the CLI reads and writes: contacts from a search
// (also the input to a CRM import), enrichment inputs, and enrichment output rows.
package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// table is a header-indexed view over a CSV stream.
type table struct {
	cr    *csv.Reader
	index map[string]int
}

func openTable(r io.Reader, required ...string) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	for _, name := range required {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}
	return &table{cr: cr, index: index}, nil
}

// next returns a column getter for the next row, or io.EOF.
func (t *table) next() (func(col string) string, error) {
	rec, err := t.cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read row: %w", err)
	}
	return func(col string) string {
		i, ok := t.index[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}, nil
}

func writeAll(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
