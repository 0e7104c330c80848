package table

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/OFFIS-RIT/keggflow/pkg/common"
)

func TestWriteListSortsAndDedupes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids", "ko.txt")
	if err := WriteList(path, []string{"K00002", "K00001", "K00002", ""}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := string(data), "K00001\nK00002\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	ids, err := ReadList(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(ids, []string{"K00001", "K00002"}) {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestReadListSkipsCommentsAndBlanks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	content := "# Generated identifier list\nR00001\r\n\n   \n ko:K00001 \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ReadList(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"R00001", " ko:K00001 "}; !slices.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCSVRoundTripQuoting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compound.csv")
	in := Table{
		Header: []string{"compound_id", "name"},
		Rows: [][]string{
			{"C00002", "ATP"},
			{"C00001", "H2O, water"},
		},
	}
	if err := WriteCSV(path, in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := os.ReadFile(path)
	want := "compound_id,name\nC00002,ATP\nC00001,\"H2O, water\"\n"
	if string(data) != want {
		t.Fatalf("got %q, want %q", string(data), want)
	}

	out, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names, err := out.Column("name")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(names, []string{"ATP", "H2O, water"}) {
		t.Fatalf("unexpected column %v", names)
	}
	if _, err := out.Column("formula"); err == nil {
		t.Fatalf("expected error for missing column")
	}
}

func TestEncodeRejectsRaggedRows(t *testing.T) {
	tbl := Table{Header: []string{"a", "b"}, Rows: [][]string{{"1"}}}
	if _, err := tbl.Encode(); err == nil {
		t.Fatalf("expected error for short row")
	}
}

func TestSortUnique(t *testing.T) {
	tbl := Table{
		Header: []string{"reaction_id", "ec_number"},
		Rows: [][]string{
			{"R00002", "1.1.1.1"},
			{"R00001", "2.7.1.1"},
			{"R00001", "1.1.1.1"},
			{"R00002", "1.1.1.1"},
		},
	}
	tbl.SortUnique()
	want := [][]string{
		{"R00001", "1.1.1.1"},
		{"R00001", "2.7.1.1"},
		{"R00002", "1.1.1.1"},
	}
	if len(tbl.Rows) != len(want) {
		t.Fatalf("got %v, want %v", tbl.Rows, want)
	}
	for i := range want {
		if !slices.Equal(tbl.Rows[i], want[i]) {
			t.Fatalf("row %d: got %v, want %v", i, tbl.Rows[i], want[i])
		}
	}
}

func TestEdgeTable(t *testing.T) {
	tbl := EdgeTable("ko_id", "reaction_id", []common.Edge{
		{Source: "K00002", Target: "R00010"},
		{Source: "K00001", Target: "R00001"},
		{Source: "K00001", Target: "R00001"},
	})
	if len(tbl.Rows) != 2 || tbl.Rows[0][0] != "K00001" {
		t.Fatalf("unexpected rows %v", tbl.Rows)
	}
	if edges := tbl.Edges(); len(edges) != 2 || edges[1].Target != "R00010" {
		t.Fatalf("unexpected edges %v", edges)
	}
}

func TestRequireNonEmpty(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.flat")
	var empty *common.EmptyResultError
	if err := RequireNonEmpty(missing); !errors.As(err, &empty) {
		t.Fatalf("expected EmptyResultError, got %v", err)
	}

	zero := filepath.Join(dir, "zero.flat")
	os.WriteFile(zero, nil, 0o644)
	if err := RequireNonEmpty(zero); !errors.Is(err, common.ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}

	full := filepath.Join(dir, "full.flat")
	os.WriteFile(full, []byte("ENTRY R00001\n///\n"), 0o644)
	if err := RequireNonEmpty(full); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
