package ident

import (
	"strings"

	"github.com/OFFIS-RIT/keggflow/pkg/common"
	"github.com/OFFIS-RIT/keggflow/pkg/logger"
)

// Placeholder is the "no value" sentinel used in grouped CSV columns.
const Placeholder = "-"

// Normalize trims whitespace, carriage returns and surrounding quotes and
// strips one known namespace prefix.
func Normalize(raw string) string {
	s := strings.TrimSpace(strings.ReplaceAll(raw, "\r", ""))
	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, p := range KnownPrefixes {
		if strings.HasPrefix(lower, p) {
			return strings.TrimSpace(s[len(p):])
		}
	}
	return s
}

// Partition is the result of validating a raw identifier sequence.
//
// Valid holds normalized identifiers, sorted and unique. Invalid holds the
// original strings that failed validation, unique, in input order.
type Partition struct {
	Valid   []string
	Invalid []string
}

// Split normalizes and validates raw. Blank entries are ignored.
func Split(kind Kind, raw []string) Partition {
	var p Partition
	seenInvalid := make(map[string]struct{})
	valid := make([]string, 0, len(raw))
	for _, r := range raw {
		id := Normalize(r)
		if id == "" {
			continue
		}
		if kind.Valid(id) {
			valid = append(valid, id)
			continue
		}
		orig := strings.TrimRight(r, "\r\n")
		if _, ok := seenInvalid[orig]; ok {
			continue
		}
		seenInvalid[orig] = struct{}{}
		p.Invalid = append(p.Invalid, orig)
		logger.Warn("[Validate] Invalid identifier", "kind", kind.Name, "value", orig)
	}
	p.Valid = common.SortedUnique(valid)
	return p
}

// Validate is Split plus the fatal check: a list with no valid identifier
// returns a *common.ValidationError alongside the partition.
func Validate(kind Kind, source string, raw []string) (Partition, error) {
	p := Split(kind, raw)
	if len(p.Valid) == 0 {
		return p, &common.ValidationError{Kind: kind.Name, Source: source, Invalid: len(p.Invalid)}
	}
	return p, nil
}
