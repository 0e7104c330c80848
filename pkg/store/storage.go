package store

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/OFFIS-RIT/keggflow/pkg/table"
)

// TableStorage persists pipeline tables. ReplaceTable swaps the full
// contents of one table and returns the number of rows written.
type TableStorage interface {
	ReplaceTable(ctx context.Context, spec TableSpec, t table.Table) (int64, error)
}

// ColumnType tells the loader how to convert a CSV cell.
type ColumnType int

const (
	Text ColumnType = iota
	// Bool accepts "1"/"0" and "true"/"false".
	Bool
	// Numeric is a float; an empty cell becomes NULL.
	Numeric
)

type Column struct {
	Name string
	Type ColumnType
}

// TableSpec maps one CSV table onto a database table. Columns are listed in
// CSV header order.
type TableSpec struct {
	Name    string
	Columns []Column
}

func textColumns(names ...string) []Column {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Type: Text}
	}
	return cols
}

// Catalog lists every table the loader knows, in load order.
var Catalog = []TableSpec{
	{Name: "ko_reaction", Columns: textColumns("ko_id", "reaction_id")},
	{Name: "ko_module", Columns: textColumns("ko_id", "module_id")},
	{Name: "ko_pathway", Columns: textColumns("ko_id", "pathway_id")},
	{Name: "reaction_equation", Columns: textColumns("reaction_id", "side", "compound_id", "coefficient")},
	{Name: "reaction_ec", Columns: textColumns("reaction_id", "ec_number")},
	{Name: "reaction_compound", Columns: textColumns("reaction_id", "role", "compound_id", "coefficient")},
	{Name: "reaction_class", Columns: textColumns("reaction_id", "rclass_id", "compound_pair")},
	{Name: "reaction_summary", Columns: []Column{
		{Name: "reaction_id"}, {Name: "name"}, {Name: "equation"}, {Name: "reversible", Type: Bool},
	}},
	{Name: "compound", Columns: []Column{
		{Name: "compound_id"}, {Name: "name"}, {Name: "formula"}, {Name: "mass_or_weight", Type: Numeric}, {Name: "dblinks"},
	}},
}

// SpecByName looks up a catalog entry.
func SpecByName(name string) (TableSpec, error) {
	for _, s := range Catalog {
		if s.Name == name {
			return s, nil
		}
	}
	return TableSpec{}, fmt.Errorf("unknown table %q", name)
}

// ColumnNames returns the column names in order.
func (s TableSpec) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// CheckHeader fails when t's header differs from the spec.
func (s TableSpec) CheckHeader(t table.Table) error {
	if !slices.Equal(t.Header, s.ColumnNames()) {
		return fmt.Errorf("table %s: header %v does not match %v", s.Name, t.Header, s.ColumnNames())
	}
	return nil
}

// Values converts t's rows into typed values for the database driver.
func (s TableSpec) Values(t table.Table) ([][]any, error) {
	if err := s.CheckHeader(t); err != nil {
		return nil, err
	}
	out := make([][]any, 0, len(t.Rows))
	for i, row := range t.Rows {
		if len(row) != len(s.Columns) {
			return nil, fmt.Errorf("table %s row %d: got %d columns, want %d", s.Name, i+1, len(row), len(s.Columns))
		}
		values := make([]any, len(row))
		for j, cell := range row {
			v, err := convert(s.Columns[j].Type, cell)
			if err != nil {
				return nil, fmt.Errorf("table %s row %d column %s: %w", s.Name, i+1, s.Columns[j].Name, err)
			}
			values[j] = v
		}
		out = append(out, values)
	}
	return out, nil
}

func convert(typ ColumnType, cell string) (any, error) {
	switch typ {
	case Bool:
		switch cell {
		case "1", "true":
			return true, nil
		case "0", "false":
			return false, nil
		}
		return nil, fmt.Errorf("invalid boolean %q", cell)
	case Numeric:
		if cell == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", cell)
		}
		return f, nil
	default:
		return cell, nil
	}
}
