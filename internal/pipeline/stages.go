package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/OFFIS-RIT/keggflow/internal/fetch"
	"github.com/OFFIS-RIT/keggflow/pkg/common"
	"github.com/OFFIS-RIT/keggflow/pkg/flat"
	"github.com/OFFIS-RIT/keggflow/pkg/ident"
	"github.com/OFFIS-RIT/keggflow/pkg/logger"
	"github.com/OFFIS-RIT/keggflow/pkg/table"
)

// Fetching carries what the network stages need.
type Fetching struct {
	Client    fetch.Client
	BatchSize int
}

func (f Fetching) fetcher(errorLog *os.File) *fetch.Fetcher {
	return fetch.NewFetcher(fetch.NewFetcherParams{
		Client:    f.Client,
		BatchSize: f.BatchSize,
		ErrorLog:  errorLog,
	})
}

// createFile truncates path, creating parent directories as needed.
func createFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}

// createTemp opens a temp file next to path for a later rename onto it.
func createTemp(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	return f, nil
}

type ExtractParams struct {
	Input       string
	EdgesOutput string
	IDsOutput   string
}

// Extract flattens a grouped CSV into a (parent_id, child_id) edge table and
// the sorted list of distinct children.
func Extract(params ExtractParams) (ident.Grouped, error) {
	f, err := os.Open(params.Input)
	if err != nil {
		return ident.Grouped{}, fmt.Errorf("failed to open grouped csv: %w", err)
	}
	defer f.Close()

	grouped, err := ident.ExtractGrouped(f)
	if err != nil {
		return ident.Grouped{}, err
	}
	if err := table.WriteCSV(params.EdgesOutput, table.EdgeTable("parent_id", "child_id", grouped.Edges)); err != nil {
		return ident.Grouped{}, err
	}
	if err := table.WriteList(params.IDsOutput, grouped.IDs); err != nil {
		return ident.Grouped{}, err
	}

	logger.Info("[Extract] Extracted identifiers", "edges", len(grouped.Edges), "ids", len(grouped.IDs))
	return grouped, nil
}

type ValidateParams struct {
	Kind          ident.Kind
	Input         string
	Output        string
	InvalidOutput string
}

// ValidateList partitions a list file into valid and invalid identifiers.
// The invalid side file is written even when nothing is valid, in which case
// a *common.ValidationError is returned.
func ValidateList(params ValidateParams) (ident.Partition, error) {
	raw, err := table.ReadList(params.Input)
	if err != nil {
		return ident.Partition{}, err
	}
	return writePartition(params.Kind, params.Input, raw, params.Output, params.InvalidOutput)
}

func writePartition(kind ident.Kind, source string, raw []string, output, invalidOutput string) (ident.Partition, error) {
	partition, verr := ident.Validate(kind, source, raw)
	if err := table.WriteLines(invalidOutput, partition.Invalid); err != nil {
		return partition, err
	}
	if verr != nil {
		return partition, verr
	}
	if err := table.WriteList(output, partition.Valid); err != nil {
		return partition, err
	}

	logger.Info("[Validate] Validated identifiers", "kind", kind.Name, "valid", len(partition.Valid), "invalid", len(partition.Invalid))
	return partition, nil
}

// Relation is one KEGG link target and the table it fills.
type Relation struct {
	Target string
	Kind   ident.Kind
	Column string
	Output string
}

// Relations are the KO cross references fetched by the link stage.
func (l Layout) Relations() []Relation {
	return []Relation{
		{Target: "rn", Kind: ident.Reaction, Column: "reaction_id", Output: l.KOReaction},
		{Target: "module", Kind: ident.Module, Column: "module_id", Output: l.KOModule},
		{Target: "pathway", Kind: ident.Pathway, Column: "pathway_id", Output: l.KOPathway},
	}
}

type LinkParams struct {
	Input     string
	Relations []Relation
	ErrorLog  string
}

// Link fetches every relation for the KO list and writes one edge table per
// relation. Targets of the wrong kind are dropped.
func Link(ctx context.Context, fetching Fetching, params LinkParams) error {
	ids, err := readValidList(ident.KO, params.Input)
	if err != nil {
		return err
	}

	errorLog, err := createFile(params.ErrorLog)
	if err != nil {
		return err
	}
	defer errorLog.Close()
	fetcher := fetching.fetcher(errorLog)

	for _, rel := range params.Relations {
		edges, stats, err := fetcher.FetchLinks(ctx, rel.Target, ident.KO, ids)
		if err != nil {
			return fmt.Errorf("failed to link %s: %w", rel.Target, err)
		}
		kept := edges[:0]
		for _, e := range edges {
			if !rel.Kind.Valid(e.Target) {
				logger.Debug("[Link] Dropped link target", "relation", rel.Target, "ko", e.Source, "target", e.Target)
				continue
			}
			kept = append(kept, e)
		}
		if err := table.WriteCSV(rel.Output, table.EdgeTable("ko_id", rel.Column, kept)); err != nil {
			return err
		}
		logger.Info("[Link] Wrote links", "relation", rel.Target, "edges", len(kept), "failed_batches", stats.Failed)
	}
	return nil
}

// readValidList reads a list that must exist, be non-empty and contain at
// least one identifier of kind.
func readValidList(kind ident.Kind, path string) ([]string, error) {
	if err := table.RequireNonEmpty(path); err != nil {
		return nil, err
	}
	raw, err := table.ReadList(path)
	if err != nil {
		return nil, err
	}
	partition, err := ident.Validate(kind, path, raw)
	if err != nil {
		return nil, err
	}
	return partition.Valid, nil
}

type UnifyParams struct {
	Links string
	// Supplement is an optional grouped CSV whose children are reaction ids.
	Supplement    string
	Output        string
	InvalidOutput string
}

// Unify merges the reaction ids reached through KO links with those declared
// in the supplementary grouped CSV and validates the union.
func Unify(params UnifyParams) (ident.Partition, error) {
	if err := table.RequireNonEmpty(params.Links); err != nil {
		return ident.Partition{}, err
	}
	links, err := table.ReadCSV(params.Links)
	if err != nil {
		return ident.Partition{}, err
	}
	if len(links.Rows) == 0 && params.Supplement == "" {
		return ident.Partition{}, &common.EmptyResultError{Path: params.Links, Reason: "no link rows"}
	}
	raw := common.Targets(links.Edges())

	if params.Supplement != "" {
		f, err := os.Open(params.Supplement)
		if err != nil {
			return ident.Partition{}, fmt.Errorf("failed to open supplement: %w", err)
		}
		grouped, err := ident.ExtractGrouped(f)
		f.Close()
		if err != nil {
			return ident.Partition{}, err
		}
		logger.Info("[Unify] Read supplement", "path", params.Supplement, "ids", len(grouped.IDs))
		raw = append(raw, grouped.IDs...)
	}

	return writePartition(ident.Reaction, params.Links, raw, params.Output, params.InvalidOutput)
}

type FetchParams struct {
	Kind     ident.Kind
	Input    string
	Output   string
	ErrorLog string
}

// FetchRecords fetches the flat records of every id in the input list into a
// fresh accumulator. Failed batches go to the error log; a run where every
// batch failed leaves an empty accumulator for the next stage to reject.
// The accumulator only replaces Output once the fetch returned without error.
func FetchRecords(ctx context.Context, fetching Fetching, params FetchParams) (fetch.Stats, error) {
	ids, err := readValidList(params.Kind, params.Input)
	if err != nil {
		return fetch.Stats{}, err
	}

	acc, err := createTemp(params.Output)
	if err != nil {
		return fetch.Stats{}, err
	}
	committed := false
	defer func() {
		if !committed {
			acc.Close()
			os.Remove(acc.Name())
		}
	}()
	errorLog, err := createFile(params.ErrorLog)
	if err != nil {
		return fetch.Stats{}, err
	}
	defer errorLog.Close()

	stats, err := fetching.fetcher(errorLog).FetchRecords(ctx, params.Kind, ids, acc)
	if err != nil {
		return stats, err
	}
	if err := acc.Close(); err != nil {
		return stats, fmt.Errorf("failed to close %s: %w", params.Output, err)
	}
	if err := os.Rename(acc.Name(), params.Output); err != nil {
		return stats, fmt.Errorf("failed to replace %s: %w", params.Output, err)
	}
	committed = true

	logger.Info("[Fetch] Fetched records", "kind", params.Kind.Name, "batches", stats.Batches, "failed", stats.Failed)
	return stats, nil
}

type ParseReactionsParams struct {
	Input     string
	Equations string
	ECs       string
	Edges     string
	Classes   string
	Summary   string
	Log       string
}

// ParseReactions turns a reaction accumulator into the reaction tables.
func ParseReactions(params ParseReactionsParams) (flat.ReactionTables, error) {
	records, warnings, err := tokenizeFile(params.Input)
	if err != nil {
		return flat.ReactionTables{}, err
	}
	tables, parseWarnings := flat.ParseReactions(records)
	warnings = append(warnings, parseWarnings...)

	outputs := []struct {
		path string
		t    table.Table
	}{
		{params.Equations, tables.Equations},
		{params.ECs, tables.ECs},
		{params.Edges, tables.Edges},
		{params.Classes, tables.Classes},
		{params.Summary, tables.Summary},
	}
	for _, o := range outputs {
		if err := table.WriteCSV(o.path, o.t); err != nil {
			return tables, err
		}
	}
	if err := writeWarnings(params.Log, warnings); err != nil {
		return tables, err
	}

	logger.Info("[Parse] Parsed reactions",
		"records", len(records),
		"reactions", len(tables.Summary.Rows),
		"edges", len(tables.Edges.Rows),
		"warnings", len(warnings),
	)
	return tables, nil
}

type ClosureParams struct {
	Edges  string
	Output string
}

// Closure lists the distinct compounds of the reaction-compound edge table.
func Closure(params ClosureParams) ([]string, error) {
	if err := table.RequireNonEmpty(params.Edges); err != nil {
		return nil, err
	}
	edges, err := table.ReadCSV(params.Edges)
	if err != nil {
		return nil, err
	}
	column, err := edges.Column("compound_id")
	if err != nil {
		return nil, err
	}
	compounds := common.SortedUnique(column)
	if len(compounds) == 0 {
		return nil, &common.EmptyResultError{Path: params.Edges, Reason: "no compounds referenced"}
	}
	if err := table.WriteList(params.Output, compounds); err != nil {
		return nil, err
	}

	logger.Info("[Closure] Collected compounds", "compounds", len(compounds))
	return compounds, nil
}

type ParseCompoundsParams struct {
	Input  string
	Output string
	Log    string
}

// ParseCompounds turns a compound accumulator into the compound table.
func ParseCompounds(params ParseCompoundsParams) (table.Table, error) {
	records, warnings, err := tokenizeFile(params.Input)
	if err != nil {
		return table.Table{}, err
	}
	compounds, parseWarnings := flat.ParseCompounds(records)
	warnings = append(warnings, parseWarnings...)

	if err := table.WriteCSV(params.Output, compounds); err != nil {
		return compounds, err
	}
	if err := writeWarnings(params.Log, warnings); err != nil {
		return compounds, err
	}

	logger.Info("[Parse] Parsed compounds", "records", len(records), "compounds", len(compounds.Rows), "warnings", len(warnings))
	return compounds, nil
}

func tokenizeFile(path string) ([]flat.Record, []common.ParseWarning, error) {
	if err := table.RequireNonEmpty(path); err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	records, warnings, err := flat.Tokenize(f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to tokenize %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, &common.EmptyResultError{Path: path, Reason: "no records"}
	}
	return records, warnings, nil
}

func writeWarnings(path string, warnings []common.ParseWarning) error {
	var buf bytes.Buffer
	for _, w := range warnings {
		logger.Debug("[Parse] " + w.String())
		buf.WriteString(w.LogLine())
		buf.WriteByte('\n')
	}
	return table.WriteFileAtomic(path, buf.Bytes())
}
