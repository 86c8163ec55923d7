// Package heuristic implements neighbor-selection strategies consumed
// by the Connector when wiring a new node's edges or pruning an
// overflowing one (spec.md §4.6). A Func is pluggable: any
// implementation that returns at most M ids drawn from the candidate
// set, with no duplicates, conforms.
package heuristic

import "sort"

// Candidate is a neighbor candidate together with its distance to the
// point being connected (the new node on insert, or the pruning node
// on overflow).
type Candidate struct {
	ID   uint32
	Dist float32
}

// PairDistance computes the distance between two existing graph nodes,
// used by RelativeNeighborhood to test the "no chosen result is closer
// to c than the query is" condition of spec.md §4.6 step 4.
type PairDistance func(a, b uint32) float32

// Func selects at most m ids out of candidates. Implementations must
// not mutate candidates.
type Func func(candidates []Candidate, dist PairDistance, m int) []uint32

// RelativeNeighborhood is the default heuristic (spec.md §4.6): sort
// candidates by distance ascending, then greedily accept a candidate
// only if no already-accepted result is closer to it than the query
// is. This favors diverse, well-spread connections over raw nearness,
// which avoids hub formation at the cost of some raw recall.
func RelativeNeighborhood(candidates []Candidate, dist PairDistance, m int) []uint32 {
	if len(candidates) < m {
		out := make([]uint32, len(candidates))
		for i, c := range candidates {
			out[i] = c.ID
		}
		return out
	}

	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Dist < sorted[j].Dist })

	result := make([]uint32, 0, m)
	for _, c := range sorted {
		if len(result) == m {
			break
		}
		admit := true
		for _, r := range result {
			if dist(r, c.ID) < c.Dist {
				admit = false
				break
			}
		}
		if admit {
			result = append(result, c.ID)
		}
	}
	return result
}

// NaiveNearest selects the m candidates with the smallest distance to
// the query, ignoring diversity entirely. A conforming, simpler
// alternative to RelativeNeighborhood — spec.md §4.6 notes it "yields
// higher raw recall at the cost of hub formation", and §8 Q2 uses it
// explicitly as an alternate-heuristic recall scenario.
func NaiveNearest(candidates []Candidate, _ PairDistance, m int) []uint32 {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Dist < sorted[j].Dist })

	if m > len(sorted) {
		m = len(sorted)
	}
	out := make([]uint32, m)
	for i := 0; i < m; i++ {
		out[i] = sorted[i].ID
	}
	return out
}
