package table

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/OFFIS-RIT/keggflow/pkg/common"
)

// ReadList reads a list file: one entry per line. Blank lines and lines
// starting with '#' are skipped; entries are returned as written so that
// validators can report the original text.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open list %s: %w", path, err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read list %s: %w", path, err)
	}
	return out, nil
}

// WriteList writes ids sorted and deduplicated, one per line, no header.
func WriteList(path string, ids []string) error {
	var buf bytes.Buffer
	for _, id := range common.SortedUnique(ids) {
		buf.WriteString(id)
		buf.WriteByte('\n')
	}
	return WriteFileAtomic(path, buf.Bytes())
}

// WriteLines writes lines as given, one per line. Used for side logs whose
// order carries meaning.
func WriteLines(path string, lines []string) error {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return WriteFileAtomic(path, buf.Bytes())
}
