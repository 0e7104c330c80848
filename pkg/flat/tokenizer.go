// Package flat reads KEGG flat file records.
//
// Reading happens in two steps. Tokenize turns text into records, each a
// sequence of (tag, value) fields, without knowing what any tag means.
// ParseReactions and ParseCompounds then interpret the fields they need.
package flat

import (
	"bufio"
	"io"
	"strings"

	"github.com/OFFIS-RIT/keggflow/pkg/common"
)

const (
	// Delimiter terminates a record.
	Delimiter = "///"
	// EntryTag opens a record.
	EntryTag = "ENTRY"

	scannerBufferSize = 1 << 20
)

// Field is one tagged field. Lines holds the first line's value and every
// continuation line, trimmed.
type Field struct {
	Tag   string
	Lines []string
}

// Value joins the field's lines with single spaces.
func (f Field) Value() string {
	return strings.Join(f.Lines, " ")
}

// Record is one database entry in file order.
type Record struct {
	Fields []Field
	// Line is the 1-based line number of the ENTRY line.
	Line int
}

// Field returns the first field with the given tag.
func (r Record) Field(tag string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Tag == tag {
			return f, true
		}
	}
	return Field{}, false
}

// ID is the first token of the ENTRY field, or "" when absent.
func (r Record) ID() string {
	f, ok := r.Field(EntryTag)
	if !ok {
		return ""
	}
	parts := strings.Fields(f.Value())
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

type tokenizerState int

const (
	seekingEntry tokenizerState = iota
	inRecord
)

// Tokenize splits r into records.
//
// Outside a record, lines are skipped until an ENTRY line. Inside a record, a
// line whose first column holds an upper case tag starts a new field and an
// indented line continues the current one. "///" closes the record. A record
// still open at end of input is kept, since its boundary is unambiguous.
func Tokenize(r io.Reader) ([]Record, []common.ParseWarning, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), scannerBufferSize)

	var (
		records  []Record
		warnings []common.ParseWarning
		current  Record
		state    = seekingEntry
		lineNo   int
		skipped  int
		skipFrom int
	)

	flushSkipped := func() {
		if skipped == 0 {
			return
		}
		warnings = append(warnings, common.ParseWarning{
			Table:   "tokenizer",
			Line:    skipFrom,
			Message: "text outside of a record skipped",
		})
		skipped = 0
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if strings.TrimSpace(line) == Delimiter {
			if state == inRecord {
				records = append(records, current)
				current = Record{}
				state = seekingEntry
			}
			continue
		}

		tag, value, tagged := splitTag(line)

		switch state {
		case seekingEntry:
			if tagged && tag == EntryTag {
				flushSkipped()
				current = Record{Line: lineNo, Fields: []Field{{Tag: tag, Lines: []string{value}}}}
				state = inRecord
				continue
			}
			if skipped == 0 {
				skipFrom = lineNo
			}
			skipped++
		case inRecord:
			if tagged {
				current.Fields = append(current.Fields, Field{Tag: tag, Lines: []string{value}})
				continue
			}
			last := &current.Fields[len(current.Fields)-1]
			last.Lines = append(last.Lines, strings.TrimSpace(line))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}

	if state == inRecord {
		records = append(records, current)
	}
	flushSkipped()

	return records, warnings, nil
}

// splitTag recognizes a tag line: an upper case word in the first column
// followed by whitespace or end of line.
func splitTag(line string) (string, string, bool) {
	if line == "" || line[0] == ' ' || line[0] == '\t' {
		return "", "", false
	}
	end := 0
	for end < len(line) && isTagByte(line[end], end == 0) {
		end++
	}
	if end == 0 {
		return "", "", false
	}
	if end < len(line) && line[end] != ' ' && line[end] != '\t' {
		return "", "", false
	}
	return line[:end], strings.TrimSpace(line[end:]), true
}

func isTagByte(b byte, first bool) bool {
	if b >= 'A' && b <= 'Z' {
		return true
	}
	if first {
		return false
	}
	return b == '_' || (b >= '0' && b <= '9')
}
