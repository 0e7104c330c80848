package fetch

import (
	"fmt"
	"slices"
	"testing"
)

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("K%05d", n-i)
	}
	return out
}

func TestBatchesBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		count int
		sizes []int
	}{
		{name: "nine", count: 9, sizes: []int{9}},
		{name: "ten", count: 10, sizes: []int{10}},
		{name: "eleven", count: 11, sizes: []int{10, 1}},
		{name: "empty", count: 0, sizes: nil},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			input := ids(tc.count)
			batches := Batches(input, 10)

			var sizes []int
			for _, b := range batches {
				sizes = append(sizes, len(b))
			}
			if !slices.Equal(sizes, tc.sizes) {
				t.Fatalf("got %v, want %v", sizes, tc.sizes)
			}

			want := slices.Clone(input)
			slices.Sort(want)
			if got := flatten(batches); !slices.Equal(got, want) {
				t.Fatalf("got %v, want %v", got, want)
			}
		})
	}
}

func TestBatchesDeduplicates(t *testing.T) {
	batches := Batches([]string{"K00002", "K00001", "K00002", ""}, 10)
	if got, want := flatten(batches), []string{"K00001", "K00002"}; !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestBatchesAppendDoesNotLeak(t *testing.T) {
	batches := Batches(ids(4), 2)
	batches[0] = append(batches[0], "X")
	if batches[1][0] != "K00003" {
		t.Fatalf("append to first batch overwrote second: %v", batches)
	}
}

func flatten(batches [][]string) []string {
	var out []string
	for _, b := range batches {
		out = append(out, b...)
	}
	return out
}
