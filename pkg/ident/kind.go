package ident

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind describes one family of KEGG identifiers: how it is written on the
// wire and what a valid bare identifier looks like.
type Kind struct {
	// Name is the short name used on the command line and in logs.
	Name string
	// Namespace is the database prefix KEGG expects in requests, without ':'.
	Namespace string
	// Pattern matches a normalized identifier.
	Pattern *regexp.Regexp
}

var (
	KO       = Kind{Name: "ko", Namespace: "ko", Pattern: regexp.MustCompile(`^K\d{5}$`)}
	Reaction = Kind{Name: "reaction", Namespace: "rn", Pattern: regexp.MustCompile(`^R\d{5}$`)}
	Compound = Kind{Name: "compound", Namespace: "cpd", Pattern: regexp.MustCompile(`^C\d{5}$`)}
	Module   = Kind{Name: "module", Namespace: "md", Pattern: regexp.MustCompile(`^M\d{5}$`)}
	Pathway  = Kind{Name: "pathway", Namespace: "path", Pattern: regexp.MustCompile(`^(map|ko|ec|rn)\d{5}$`)}
)

// Kinds lists every supported identifier kind.
var Kinds = []Kind{KO, Reaction, Compound, Module, Pathway}

// KnownPrefixes are stripped by Normalize, compared case-insensitively.
var KnownPrefixes = []string{"ko:", "rn:", "cpd:", "md:", "path:"}

// KindByName resolves a kind from its name or namespace.
func KindByName(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, k := range Kinds {
		if n == k.Name || n == k.Namespace {
			return k, nil
		}
	}
	return Kind{}, fmt.Errorf("unknown identifier kind %q", name)
}

// Valid reports whether id, already normalized, has the kind's shape.
func (k Kind) Valid(id string) bool {
	return k.Pattern != nil && k.Pattern.MatchString(id)
}

// Qualify prefixes id with the kind's namespace, e.g. "rn:R00001".
func (k Kind) Qualify(id string) string {
	return k.Namespace + ":" + id
}

// QualifyAll prefixes every id with the namespace.
func (k Kind) QualifyAll(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = k.Qualify(id)
	}
	return out
}

func (k Kind) String() string {
	return k.Name
}
