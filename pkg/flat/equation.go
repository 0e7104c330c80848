package flat

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/keggflow/pkg/common"
)

var (
	compoundTokenRe = regexp.MustCompile(`^(C\d{5})(\([^()]*\))?$`)
	integerCoeffRe  = regexp.MustCompile(`^\d+$`)
	polymerCoeffRe  = regexp.MustCompile(`^(\d*[nm]|\(\d*[nm][+-]\d+\)|\d*\([nm][+-]\d+\))$`)
)

// DefaultCoefficient applies when a term has no leading coefficient.
const DefaultCoefficient = "1"

// Term is one compound on one side of an equation.
type Term struct {
	CompoundID  string
	Coefficient string
}

// Equation is a parsed EQUATION field.
type Equation struct {
	Left      []Term
	Right     []Term
	Direction common.Direction
}

// ParseEquation splits an equation on its direction operator and then on '+'.
// Coefficients are integers ("2") or KEGG polymer notation ("n", "(n+1)"),
// kept verbatim; integers are normalized ("02" becomes "2").
func ParseEquation(s string) (Equation, error) {
	left, right, dir, err := splitDirection(s)
	if err != nil {
		return Equation{}, err
	}
	lt, err := parseSide(left)
	if err != nil {
		return Equation{}, fmt.Errorf("left side: %w", err)
	}
	rt, err := parseSide(right)
	if err != nil {
		return Equation{}, fmt.Errorf("right side: %w", err)
	}
	return Equation{Left: lt, Right: rt, Direction: dir}, nil
}

func splitDirection(s string) (string, string, common.Direction, error) {
	var (
		dir common.Direction
		at  = -1
	)
	for _, d := range []common.Direction{common.DirectionReversible, common.DirectionForward, common.DirectionBackward} {
		if i := strings.Index(s, string(d)); i >= 0 {
			dir, at = d, i
			break
		}
	}
	if at < 0 {
		return "", "", "", fmt.Errorf("no direction operator in %q", s)
	}
	left := s[:at]
	right := s[at+len(dir):]
	if strings.Contains(right, "<=") || strings.Contains(right, "=>") {
		return "", "", "", fmt.Errorf("more than one direction operator in %q", s)
	}
	return left, right, dir, nil
}

func parseSide(s string) ([]Term, error) {
	tokens := splitPlus(s)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty side")
	}
	terms := make([]Term, 0, len(tokens))
	for _, tok := range tokens {
		term, err := parseTerm(tok)
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	return terms, nil
}

// splitPlus splits on '+' outside parentheses, so "(n+1) C00001" stays whole.
func splitPlus(s string) []string {
	var (
		out   []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case '+':
			if depth == 0 {
				out = appendToken(out, s[start:i])
				start = i + 1
			}
		}
	}
	return appendToken(out, s[start:])
}

func appendToken(out []string, tok string) []string {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return out
	}
	return append(out, tok)
}

func parseTerm(tok string) (Term, error) {
	parts := strings.Fields(tok)
	var coeff, compound string
	switch len(parts) {
	case 1:
		coeff, compound = DefaultCoefficient, parts[0]
	case 2:
		coeff, compound = parts[0], parts[1]
	default:
		return Term{}, fmt.Errorf("malformed term %q", tok)
	}

	m := compoundTokenRe.FindStringSubmatch(compound)
	if m == nil {
		return Term{}, fmt.Errorf("not a compound identifier in term %q", tok)
	}

	switch {
	case integerCoeffRe.MatchString(coeff):
		n, err := strconv.Atoi(coeff)
		if err != nil || n == 0 {
			return Term{}, fmt.Errorf("invalid coefficient in term %q", tok)
		}
		coeff = strconv.Itoa(n)
	case polymerCoeffRe.MatchString(coeff):
	default:
		return Term{}, fmt.Errorf("invalid coefficient in term %q", tok)
	}

	return Term{CompoundID: m[1], Coefficient: coeff}, nil
}
