package common

import (
	"slices"
)

// SortedUnique returns the distinct non-empty values of in, sorted. The input
// slice is not modified.
func SortedUnique(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

func sortEdges(edges []Edge) {
	slices.SortFunc(edges, CompareEdges)
}
