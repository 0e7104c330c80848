package ident

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/OFFIS-RIT/keggflow/pkg/common"
)

// Grouped is a grouped CSV flattened into one row per (parent, child) edge.
type Grouped struct {
	Edges []common.Edge
	IDs   []string
}

// ExtractGrouped reads a grouped CSV: a header row, the parent id in column
// one and a comma separated child list in column two. The list may be quoted;
// if it is not, its items spill into the following columns and are read from
// there. Empty and "-" children are dropped.
func ExtractGrouped(r io.Reader) (Grouped, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var edges []common.Edge
	header := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Grouped{}, fmt.Errorf("failed to read grouped csv: %w", err)
		}
		if header {
			header = false
			continue
		}
		if len(record) < 2 {
			continue
		}
		parent := Normalize(record[0])
		if parent == "" || parent == Placeholder {
			continue
		}
		for _, child := range SplitList(strings.Join(record[1:], ",")) {
			edges = append(edges, common.Edge{Source: parent, Target: child})
		}
	}

	edges = common.SortedUniqueEdges(edges)
	return Grouped{Edges: edges, IDs: common.Targets(edges)}, nil
}

// SplitList splits a comma separated identifier list and normalizes each item.
// Empty items and placeholders are discarded.
func SplitList(list string) []string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		id := Normalize(part)
		if id == "" || id == Placeholder {
			continue
		}
		out = append(out, id)
	}
	return out
}
