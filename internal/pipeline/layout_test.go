package pipeline

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/keggflow/pkg/store"
)

func TestLayoutTablesCoverCatalog(t *testing.T) {
	l := NewLayout("data", "")
	tables := l.Tables()
	if len(tables) != len(store.Catalog) {
		t.Fatalf("got %d tables, want %d", len(tables), len(store.Catalog))
	}
	for _, spec := range store.Catalog {
		path, ok := tables[spec.Name]
		if !ok {
			t.Fatalf("table %q has no file", spec.Name)
		}
		if want := spec.Name + ".csv"; filepath.Base(path) != want {
			t.Fatalf("got %q, want %q", filepath.Base(path), want)
		}
	}
}

func TestLayoutPublishedSkipsAccumulators(t *testing.T) {
	l := NewLayout("data", "")
	for _, f := range l.Published() {
		if strings.HasSuffix(f, ".flat") {
			t.Fatalf("published accumulator %q", f)
		}
		if !strings.HasPrefix(f, "data"+string(filepath.Separator)) {
			t.Fatalf("got %q outside the data dir", f)
		}
	}
}
