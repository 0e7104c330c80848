package flat

import (
	"slices"
	"testing"

	"github.com/OFFIS-RIT/keggflow/pkg/common"
)

func TestParseEquation(t *testing.T) {
	tests := []struct {
		name  string
		input string
		left  []Term
		right []Term
		dir   common.Direction
	}{
		{
			name:  "coefficients",
			input: "C00001 + 2 C00002 <=> C00003",
			left:  []Term{{"C00001", "1"}, {"C00002", "2"}},
			right: []Term{{"C00003", "1"}},
			dir:   common.DirectionReversible,
		},
		{
			name:  "polymer",
			input: "C00404 + n C00001 <=> (n+1) C02174",
			left:  []Term{{"C00404", "1"}, {"C00001", "n"}},
			right: []Term{{"C02174", "(n+1)"}},
			dir:   common.DirectionReversible,
		},
		{
			name:  "compound_suffix",
			input: "C00039(n) + C00001 => C00039(n+1)",
			left:  []Term{{"C00039", "1"}, {"C00001", "1"}},
			right: []Term{{"C00039", "1"}},
			dir:   common.DirectionForward,
		},
		{
			name:  "leading_zero",
			input: "02 C00001 <= 2n C00002",
			left:  []Term{{"C00001", "2"}},
			right: []Term{{"C00002", "2n"}},
			dir:   common.DirectionBackward,
		},
		{
			name:  "polymer_m",
			input: "m C00001 => 2(m-1) C00002",
			left:  []Term{{"C00001", "m"}},
			right: []Term{{"C00002", "2(m-1)"}},
			dir:   common.DirectionForward,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			eq, err := ParseEquation(tc.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(eq.Left, tc.left) {
				t.Fatalf("got %v, want %v", eq.Left, tc.left)
			}
			if !slices.Equal(eq.Right, tc.right) {
				t.Fatalf("got %v, want %v", eq.Right, tc.right)
			}
			if eq.Direction != tc.dir {
				t.Fatalf("got %q, want %q", eq.Direction, tc.dir)
			}
		})
	}
}

func TestParseEquationErrors(t *testing.T) {
	inputs := []string{
		"C00001 + C00002",
		"C00001 <=> G00002",
		"C00001 <=> ",
		"x C00001 <=> C00002",
		"0 C00001 <=> C00002",
		"C00001 <=> C00002 => C00003",
		"1 2 C00001 <=> C00002",
	}
	for _, input := range inputs {
		if _, err := ParseEquation(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}
