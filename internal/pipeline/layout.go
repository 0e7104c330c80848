package pipeline

import "path/filepath"

// Layout names every file the pipeline reads or writes.
type Layout struct {
	GroupedInput string
	Supplement   string

	GroupedEdges  string
	KOCandidates  string
	KOValid       string
	KOInvalid     string
	KOReaction    string
	KOModule      string
	KOPathway     string
	LinkErrors    string
	Reactions     string
	ReactionsBad  string
	ReactionFlat  string
	ReactionFetch string

	Equations     string
	ECs           string
	Edges         string
	Classes       string
	Summary       string
	ReactionParse string
	Compounds     string
	CompoundFlat  string
	CompoundFetch string
	CompoundTable string
	CompoundParse string

	RunLog string
}

// NewLayout places inputs under dir/input, intermediate files under
// dir/interim, tables under dir/output and side logs under dir/logs.
func NewLayout(dir, supplement string) Layout {
	in := func(name string) string { return filepath.Join(dir, "input", name) }
	interim := func(name string) string { return filepath.Join(dir, "interim", name) }
	out := func(name string) string { return filepath.Join(dir, "output", name) }
	logs := func(name string) string { return filepath.Join(dir, "logs", name) }

	return Layout{
		GroupedInput: in("grouped_ko.csv"),
		Supplement:   supplement,

		GroupedEdges:  interim("grouped_edges.csv"),
		KOCandidates:  interim("ko_candidates.txt"),
		KOValid:       interim("ko_valid.txt"),
		KOInvalid:     logs("ko_invalid.txt"),
		KOReaction:    out("ko_reaction.csv"),
		KOModule:      out("ko_module.csv"),
		KOPathway:     out("ko_pathway.csv"),
		LinkErrors:    logs("link_errors.log"),
		Reactions:     interim("reactions.txt"),
		ReactionsBad:  logs("reaction_invalid.txt"),
		ReactionFlat:  interim("reactions.flat"),
		ReactionFetch: logs("reaction_fetch_errors.log"),

		Equations:     out("reaction_equation.csv"),
		ECs:           out("reaction_ec.csv"),
		Edges:         out("reaction_compound.csv"),
		Classes:       out("reaction_class.csv"),
		Summary:       out("reaction_summary.csv"),
		ReactionParse: logs("reaction_parse.log"),
		Compounds:     interim("compounds.txt"),
		CompoundFlat:  interim("compounds.flat"),
		CompoundFetch: logs("compound_fetch_errors.log"),
		CompoundTable: out("compound.csv"),
		CompoundParse: logs("compound_parse.log"),

		RunLog: logs("keggflow.log"),
	}
}

// Published lists the files worth uploading after a run: tables, lists and
// side logs. Accumulators are left out.
func (l Layout) Published() []string {
	return []string{
		l.GroupedEdges, l.KOValid, l.KOInvalid,
		l.KOReaction, l.KOModule, l.KOPathway, l.LinkErrors,
		l.Reactions, l.ReactionsBad, l.ReactionFetch,
		l.Equations, l.ECs, l.Edges, l.Classes, l.Summary, l.ReactionParse,
		l.Compounds, l.CompoundFetch, l.CompoundTable, l.CompoundParse,
	}
}

// Tables maps each loadable table name to the CSV holding it.
func (l Layout) Tables() map[string]string {
	return map[string]string{
		"ko_reaction":       l.KOReaction,
		"ko_module":         l.KOModule,
		"ko_pathway":        l.KOPathway,
		"reaction_equation": l.Equations,
		"reaction_ec":       l.ECs,
		"reaction_compound": l.Edges,
		"reaction_class":    l.Classes,
		"reaction_summary":  l.Summary,
		"compound":          l.CompoundTable,
	}
}
