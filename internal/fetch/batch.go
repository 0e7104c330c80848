// Package fetch runs batched requests against KEGG and collects the results.
package fetch

import (
	"github.com/OFFIS-RIT/keggflow/internal/util"
	"github.com/OFFIS-RIT/keggflow/pkg/common"
)

// DefaultBatchSize is the most identifiers KEGG accepts in one request.
const DefaultBatchSize = 10

// Batches sorts and deduplicates ids and groups them into consecutive
// batches of at most size.
func Batches(ids []string, size int) [][]string {
	sorted := common.SortedUnique(ids)
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]string
	_ = util.ChunkRange(len(sorted), size, func(start, end int) error {
		out = append(out, sorted[start:end:end])
		return nil
	})
	return out
}
