package flat

import (
	"bytes"
	"slices"
	"strings"
	"testing"
)

func parseReactionText(t *testing.T, text string) (ReactionTables, int) {
	t.Helper()
	records, _, err := Tokenize(strings.NewReader(text))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tables, warnings := ParseReactions(records)
	return tables, len(warnings)
}

func equalRows(a, b [][]string) bool {
	return slices.EqualFunc(a, b, slices.Equal[[]string])
}

func TestParseReactionsScenario(t *testing.T) {
	input := "ENTRY R00001\nEQUATION C00002 + C00003 <=> C00004\nENZYME 1.1.1.1 1.1.1.2\n///"
	tables, warnings := parseReactionText(t, input)
	if warnings != 0 {
		t.Fatalf("expected no warnings, got %d", warnings)
	}

	wantEquations := [][]string{
		{"R00001", "reactant", "C00002", "1"},
		{"R00001", "reactant", "C00003", "1"},
		{"R00001", "product", "C00004", "1"},
	}
	if !equalRows(tables.Equations.Rows, wantEquations) {
		t.Fatalf("got %v, want %v", tables.Equations.Rows, wantEquations)
	}
	wantECs := [][]string{{"R00001", "1.1.1.1"}, {"R00001", "1.1.1.2"}}
	if !equalRows(tables.ECs.Rows, wantECs) {
		t.Fatalf("got %v, want %v", tables.ECs.Rows, wantECs)
	}
	wantSummary := [][]string{{"R00001", "", "C00002 + C00003 <=> C00004", "1"}}
	if !equalRows(tables.Summary.Rows, wantSummary) {
		t.Fatalf("got %v, want %v", tables.Summary.Rows, wantSummary)
	}
}

func TestParseReactionsCoefficientEdges(t *testing.T) {
	input := "ENTRY R00010\nEQUATION C00001 + 2 C00002 <=> C00003\n///\n"
	tables, _ := parseReactionText(t, input)

	want := [][]string{
		{"R00010", "product", "C00003", "1"},
		{"R00010", "reactant", "C00001", "1"},
		{"R00010", "reactant", "C00002", "2"},
	}
	if !equalRows(tables.Edges.Rows, want) {
		t.Fatalf("got %v, want %v", tables.Edges.Rows, want)
	}
}

func TestParseReactionsSkipsMalformedFieldOnly(t *testing.T) {
	input := strings.Join([]string{
		"ENTRY       R00003",
		"EQUATION    C00001 <=> C00002",
		"///",
		"ENTRY       R00002",
		"EQUATION    C00001 <=> X",
		"ENZYME      2.7.1.1",
		"///",
		"ENTRY       R00004",
		"ENZYME      2.7.1.2",
		"///",
		"ENTRY       C00001",
		"///",
		"",
	}, "\n")
	tables, warnings := parseReactionText(t, input)

	if warnings != 3 {
		t.Fatalf("expected 3 warnings, got %d", warnings)
	}
	ids, err := tables.Equations.Column("reaction_id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"R00003", "R00003"}; !slices.Equal(ids, want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	wantECs := [][]string{{"R00002", "2.7.1.1"}, {"R00004", "2.7.1.2"}}
	if !equalRows(tables.ECs.Rows, wantECs) {
		t.Fatalf("got %v, want %v", tables.ECs.Rows, wantECs)
	}
}

func TestParseReactionsRClass(t *testing.T) {
	input := strings.Join([]string{
		"ENTRY       R00005",
		"EQUATION    C00001 => C00002",
		"RCLASS      RC00002  C00003_C00004 C00005_C00006",
		"            RC00001  C00002_C00008",
		"///",
		"ENTRY       R00006",
		"EQUATION    C00001 => C00002",
		"RCLASS      C00003_C00004",
		"///",
	}, "\n")
	tables, warnings := parseReactionText(t, input)

	if warnings != 1 {
		t.Fatalf("expected 1 warning, got %d", warnings)
	}
	want := [][]string{
		{"R00005", "RC00001", "C00002_C00008"},
		{"R00005", "RC00002", "C00003_C00004"},
		{"R00005", "RC00002", "C00005_C00006"},
	}
	if !equalRows(tables.Classes.Rows, want) {
		t.Fatalf("got %v, want %v", tables.Classes.Rows, want)
	}
	if got := tables.Summary.Rows[1][3]; got != "0" {
		t.Fatalf("got %q, want %q", got, "0")
	}
}

func TestParseReactionsOrderAndDuplicates(t *testing.T) {
	input := strings.Join([]string{
		"ENTRY       R00009",
		"NAME        second;",
		"            other name",
		"EQUATION    C00009 <=> C00001",
		"///",
		"ENTRY       R00008",
		"EQUATION    C00008 <=> C00001",
		"///",
		"ENTRY       R00009",
		"EQUATION    C00007 <=> C00001",
		"///",
	}, "\n")
	tables, _ := parseReactionText(t, input)

	want := [][]string{
		{"R00008", "reactant", "C00008", "1"},
		{"R00008", "product", "C00001", "1"},
		{"R00009", "reactant", "C00009", "1"},
		{"R00009", "product", "C00001", "1"},
	}
	if !equalRows(tables.Equations.Rows, want) {
		t.Fatalf("got %v, want %v", tables.Equations.Rows, want)
	}
	if got := tables.Summary.Rows[1][1]; got != "second" {
		t.Fatalf("got %q, want %q", got, "second")
	}
}

func TestParseReactionsIdempotent(t *testing.T) {
	encode := func() []byte {
		tables, _ := parseReactionText(t, polyphosphate+"ENTRY R00007\nEQUATION C00002 + C00001 <=> C00008 + C00009\nENZYME 3.6.1.3\n///\n")
		var buf bytes.Buffer
		for _, tbl := range []interface{ Encode() ([]byte, error) }{
			&tables.Equations, &tables.ECs, &tables.Edges, &tables.Classes, &tables.Summary,
		} {
			data, err := tbl.Encode()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			buf.Write(data)
		}
		return buf.Bytes()
	}

	first, second := encode(), encode()
	if !bytes.Equal(first, second) {
		t.Fatalf("outputs differ:\n%s\n---\n%s", first, second)
	}
}
