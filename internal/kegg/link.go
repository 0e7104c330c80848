package kegg

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/OFFIS-RIT/keggflow/pkg/common"
	"github.com/OFFIS-RIT/keggflow/pkg/ident"
)

// ParseLinks reads a link response: one "source<TAB>target" pair per line.
// Namespace prefixes are stripped from both columns. Lines without two
// columns are ignored.
func ParseLinks(body []byte) []common.Edge {
	var edges []common.Edge
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		parts := strings.Split(strings.TrimRight(scanner.Text(), "\r"), "\t")
		if len(parts) < 2 {
			continue
		}
		source := ident.Normalize(parts[0])
		target := ident.Normalize(parts[1])
		if source == "" || target == "" {
			continue
		}
		edges = append(edges, common.Edge{Source: source, Target: target})
	}
	return edges
}
