package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/OFFIS-RIT/keggflow/pkg/common"
)

// Table is a header plus rows of equal width.
type Table struct {
	Header []string
	Rows   [][]string
}

// SortUnique sorts rows lexicographically by column and drops exact duplicates.
func (t *Table) SortUnique() {
	slices.SortFunc(t.Rows, compareRows)
	t.Rows = slices.CompactFunc(t.Rows, func(a, b []string) bool {
		return compareRows(a, b) == 0
	})
}

func compareRows(a, b []string) int {
	for i := 0; i < min(len(a), len(b)); i++ {
		if c := strings.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// Column returns the values of the named column.
func (t *Table) Column(name string) ([]string, error) {
	idx := slices.Index(t.Header, name)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found in header %v", name, t.Header)
	}
	out := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if idx < len(row) {
			out = append(out, row[idx])
		}
	}
	return out, nil
}

// Encode renders the table as comma separated text with a header row.
func (t *Table) Encode() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Header); err != nil {
		return nil, err
	}
	for _, row := range t.Rows {
		if len(row) != len(t.Header) {
			return nil, fmt.Errorf("row %v has %d columns, header has %d", row, len(row), len(t.Header))
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCSV encodes t and atomically replaces path with it.
func WriteCSV(path string, t Table) error {
	data, err := t.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return WriteFileAtomic(path, data)
}

// ReadCSV reads a table written by WriteCSV.
func ReadCSV(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to open table %s: %w", path, err)
	}
	defer f.Close()
	return DecodeCSV(f)
}

// DecodeCSV parses comma separated text with a header row.
func DecodeCSV(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var t Table
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("failed to read table: %w", err)
		}
		if t.Header == nil {
			t.Header = record
			continue
		}
		t.Rows = append(t.Rows, record)
	}
	if t.Header == nil {
		return Table{}, errors.New("table has no header row")
	}
	return t, nil
}

// EdgeTable builds a two column table from edges.
func EdgeTable(sourceCol, targetCol string, edges []common.Edge) Table {
	t := Table{Header: []string{sourceCol, targetCol}}
	for _, e := range common.SortedUniqueEdges(edges) {
		t.Rows = append(t.Rows, []string{e.Source, e.Target})
	}
	return t
}

// Edges reads the first two columns of t as edges.
func (t *Table) Edges() []common.Edge {
	out := make([]common.Edge, 0, len(t.Rows))
	for _, row := range t.Rows {
		if len(row) < 2 {
			continue
		}
		out = append(out, common.Edge{Source: row[0], Target: row[1]})
	}
	return out
}

// WriteFileAtomic writes data to a temporary file next to path and renames it
// into place, so a reader never sees a half written stage output.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// RequireNonEmpty fails with *common.EmptyResultError when path is missing
// or has no content.
func RequireNonEmpty(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return &common.EmptyResultError{Path: path, Reason: "file does not exist"}
	}
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return &common.EmptyResultError{Path: path, Reason: "file is empty"}
	}
	return nil
}
