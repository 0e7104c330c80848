package flat

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/OFFIS-RIT/keggflow/pkg/common"
	"github.com/OFFIS-RIT/keggflow/pkg/ident"
	"github.com/OFFIS-RIT/keggflow/pkg/logger"
	"github.com/OFFIS-RIT/keggflow/pkg/table"
)

// Output table names, used in parse warnings and file names.
const (
	TableEquation = "reaction_equation"
	TableEC       = "reaction_ec"
	TableEdge     = "reaction_compound"
	TableClass    = "reaction_class"
	TableSummary  = "reaction_summary"
	TableCompound = "compound"
)

var (
	EquationHeader = []string{"reaction_id", "side", "compound_id", "coefficient"}
	ECHeader       = []string{"reaction_id", "ec_number"}
	EdgeHeader     = []string{"reaction_id", "role", "compound_id", "coefficient"}
	ClassHeader    = []string{"reaction_id", "rclass_id", "compound_pair"}
	SummaryHeader  = []string{"reaction_id", "name", "equation", "reversible"}
)

var (
	ecNumberRe     = regexp.MustCompile(`^\d+\.(\d+|-)\.(\d+|-)\.(n?\d+|-)$`)
	rclassIDRe     = regexp.MustCompile(`^RC\d{5}$`)
	compoundPairRe = regexp.MustCompile(`^C\d{5}_C\d{5}$`)
)

// ReactionTables holds every table derived from reaction records.
type ReactionTables struct {
	Equations table.Table
	ECs       table.Table
	Edges     table.Table
	Classes   table.Table
	Summary   table.Table
}

type reactionRows struct {
	equations [][]string
	ecs       [][]string
	edges     [][]string
	classes   [][]string
	summary   []string
}

// ParseReactions interprets tokenized reaction records.
//
// A record with a malformed field is skipped for the table that field feeds
// and kept for the others. Equation rows keep the literal term order of each
// equation, with reactions ordered by id; all other tables are sorted and
// free of duplicates. When the same reaction id occurs twice the first record
// wins.
func ParseReactions(records []Record) (ReactionTables, []common.ParseWarning) {
	var (
		warnings []common.ParseWarning
		byID     = make(map[string]reactionRows, len(records))
		ids      []string
	)

	for _, rec := range records {
		id := rec.ID()
		if !ident.Reaction.Valid(id) {
			warnings = append(warnings, common.ParseWarning{
				RecordID: id,
				Table:    "reaction",
				Line:     rec.Line,
				Message:  "entry is not a reaction identifier",
			})
			continue
		}
		if _, dup := byID[id]; dup {
			logger.Debug("[Parse] Duplicate reaction record ignored", "reaction", id, "line", rec.Line)
			continue
		}
		rows, w := parseReaction(id, rec)
		warnings = append(warnings, w...)
		byID[id] = rows
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := ReactionTables{
		Equations: table.Table{Header: EquationHeader},
		ECs:       table.Table{Header: ECHeader},
		Edges:     table.Table{Header: EdgeHeader},
		Classes:   table.Table{Header: ClassHeader},
		Summary:   table.Table{Header: SummaryHeader},
	}
	for _, id := range ids {
		rows := byID[id]
		out.Equations.Rows = append(out.Equations.Rows, rows.equations...)
		out.ECs.Rows = append(out.ECs.Rows, rows.ecs...)
		out.Edges.Rows = append(out.Edges.Rows, rows.edges...)
		out.Classes.Rows = append(out.Classes.Rows, rows.classes...)
		if rows.summary != nil {
			out.Summary.Rows = append(out.Summary.Rows, rows.summary)
		}
	}
	out.ECs.SortUnique()
	out.Edges.SortUnique()
	out.Classes.SortUnique()

	return out, warnings
}

func parseReaction(id string, rec Record) (reactionRows, []common.ParseWarning) {
	var (
		rows     reactionRows
		warnings []common.ParseWarning
	)
	warn := func(tbl, msg string) {
		warnings = append(warnings, common.ParseWarning{RecordID: id, Table: tbl, Line: rec.Line, Message: msg})
	}

	if f, ok := rec.Field("EQUATION"); !ok {
		warn(TableEquation, "missing EQUATION")
	} else if eq, err := ParseEquation(f.Value()); err != nil {
		warn(TableEquation, err.Error())
	} else {
		rows.equations, rows.edges = equationRows(id, eq)
		rows.summary = []string{id, firstName(rec), f.Value(), reversibleFlag(eq.Direction)}
	}

	if f, ok := rec.Field("ENZYME"); ok {
		ecs, err := parseEnzymes(id, f)
		if err != nil {
			warn(TableEC, err.Error())
		} else {
			rows.ecs = ecs
		}
	}

	if f, ok := rec.Field("RCLASS"); ok {
		classes, err := parseRClass(id, f)
		if err != nil {
			warn(TableClass, err.Error())
		} else {
			rows.classes = classes
		}
	}

	return rows, warnings
}

func equationRows(id string, eq Equation) ([][]string, [][]string) {
	var eqRows [][]string
	add := func(role common.Role, terms []Term) {
		for _, t := range terms {
			eqRows = append(eqRows, []string{id, string(role), t.CompoundID, t.Coefficient})
		}
	}
	add(common.RoleReactant, eq.Left)
	add(common.RoleProduct, eq.Right)

	edges := make([][]string, len(eqRows))
	for i, row := range eqRows {
		edges[i] = slices.Clone(row)
	}
	return eqRows, edges
}

func parseEnzymes(id string, f Field) ([][]string, error) {
	var rows [][]string
	for _, ec := range strings.Fields(f.Value()) {
		if !ecNumberRe.MatchString(ec) {
			return nil, fmt.Errorf("invalid EC number %q", ec)
		}
		rows = append(rows, []string{id, ec})
	}
	return rows, nil
}

func parseRClass(id string, f Field) ([][]string, error) {
	var rows [][]string
	for _, line := range f.Lines {
		parts := strings.Fields(line)
		if len(parts) < 2 || !rclassIDRe.MatchString(parts[0]) {
			return nil, fmt.Errorf("malformed RCLASS line %q", line)
		}
		for _, pair := range parts[1:] {
			if !compoundPairRe.MatchString(pair) {
				return nil, fmt.Errorf("malformed compound pair %q", pair)
			}
			rows = append(rows, []string{id, parts[0], pair})
		}
	}
	return rows, nil
}

// firstName is the first NAME line without its trailing separator.
func firstName(rec Record) string {
	f, ok := rec.Field("NAME")
	if !ok || len(f.Lines) == 0 {
		return ""
	}
	return strings.TrimSuffix(strings.TrimSpace(f.Lines[0]), ";")
}

func reversibleFlag(d common.Direction) string {
	if d.Reversible() {
		return "1"
	}
	return "0"
}
