package flat

import (
	"strings"

	"github.com/OFFIS-RIT/keggflow/pkg/common"
	"github.com/OFFIS-RIT/keggflow/pkg/ident"
	"github.com/OFFIS-RIT/keggflow/pkg/logger"
	"github.com/OFFIS-RIT/keggflow/pkg/table"
)

var CompoundHeader = []string{"compound_id", "name", "formula", "mass_or_weight", "dblinks"}

// ParseCompounds builds the compound table, one row per compound id sorted
// by id. The first record of an id wins. Missing optional fields leave their
// column empty.
func ParseCompounds(records []Record) (table.Table, []common.ParseWarning) {
	var (
		warnings []common.ParseWarning
		seen     = make(map[string]struct{}, len(records))
	)
	out := table.Table{Header: CompoundHeader}

	for _, rec := range records {
		id := rec.ID()
		if !ident.Compound.Valid(id) {
			warnings = append(warnings, common.ParseWarning{
				RecordID: id,
				Table:    TableCompound,
				Line:     rec.Line,
				Message:  "entry is not a compound identifier",
			})
			continue
		}
		if _, dup := seen[id]; dup {
			logger.Debug("[Parse] Duplicate compound record ignored", "compound", id, "line", rec.Line)
			continue
		}
		seen[id] = struct{}{}

		out.Rows = append(out.Rows, []string{
			id,
			firstName(rec),
			fieldValue(rec, "FORMULA"),
			mass(rec),
			dblinks(rec),
		})
	}
	out.SortUnique()

	return out, warnings
}

func fieldValue(rec Record, tag string) string {
	f, ok := rec.Field(tag)
	if !ok {
		return ""
	}
	return f.Value()
}

// mass prefers EXACT_MASS and falls back to MOL_WEIGHT.
func mass(rec Record) string {
	if v := fieldValue(rec, "EXACT_MASS"); v != "" {
		return v
	}
	return fieldValue(rec, "MOL_WEIGHT")
}

// dblinks renders "DB: id id" lines as "DB:id id" joined with ';'.
func dblinks(rec Record) string {
	f, ok := rec.Field("DBLINKS")
	if !ok {
		return ""
	}
	links := make([]string, 0, len(f.Lines))
	for _, line := range f.Lines {
		db, ids, found := strings.Cut(line, ":")
		if !found {
			links = append(links, strings.Join(strings.Fields(line), " "))
			continue
		}
		links = append(links, strings.TrimSpace(db)+":"+strings.Join(strings.Fields(ids), " "))
	}
	return strings.Join(links, ";")
}
