package common

import "strings"

// Edge is a cross-reference between two identifiers, e.g. KO→reaction or
// module→KO. Tables of edges are persisted sorted and without duplicates.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Role is the side of a reaction equation a compound appears on.
type Role string

const (
	RoleReactant Role = "reactant"
	RoleProduct  Role = "product"
)

// Direction is the arrow of a reaction equation as written.
type Direction string

const (
	DirectionReversible Direction = "<=>"
	DirectionForward    Direction = "=>"
	DirectionBackward   Direction = "<="
)

// Reversible reports whether the equation was written with a two-way arrow.
func (d Direction) Reversible() bool {
	return d == DirectionReversible
}

// CompareEdges orders edges by source, then target.
func CompareEdges(a, b Edge) int {
	if c := strings.Compare(a.Source, b.Source); c != 0 {
		return c
	}
	return strings.Compare(a.Target, b.Target)
}

// SortedUniqueEdges sorts edges and removes exact duplicates and edges with
// an empty endpoint.
func SortedUniqueEdges(in []Edge) []Edge {
	out := make([]Edge, 0, len(in))
	seen := make(map[Edge]struct{}, len(in))
	for _, e := range in {
		if e.Source == "" || e.Target == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	sortEdges(out)
	return out
}

// Targets returns the distinct target ids of the edges, sorted.
func Targets(edges []Edge) []string {
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.Target)
	}
	return SortedUnique(ids)
}
