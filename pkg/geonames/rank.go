package geonames

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// DefaultWeight is used for both ranking signals when no weight is given.
const DefaultWeight = 1.0

// Normalize scales v by its Euclidean norm. When the norm is zero it scales
// by the largest absolute value instead, and when that is zero too every
// element is zero.
func Normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	if len(v) == 0 {
		return out
	}

	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if norm := math.Sqrt(sum); norm != 0 {
		for i, x := range v {
			out[i] = x / norm
		}
		return out
	}

	// sum underflows to zero for tiny non-zero values
	var maxAbs float64
	for _, x := range v {
		maxAbs = math.Max(maxAbs, math.Abs(x))
	}
	if maxAbs == 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / maxAbs
	}
	return out
}

// RankEntries orders wikipedia entries best first. The score of an entry is
//
//	rankWeight*rank + distanceWeight*(1-distance)
//
// with rank and distance normalized across all entries. Entries are sorted by
// ascending score with a stable sort and the result is then reversed, so
// entries with equal scores come out in reverse input order.
// The input slice is left untouched.
func RankEntries(entries []Record, rankWeight, distanceWeight float64) ([]Record, error) {
	if err := checkWeight("rankWeight", rankWeight); err != nil {
		return nil, err
	}
	if err := checkWeight("distanceWeight", distanceWeight); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []Record{}, nil
	}

	ranks := make([]float64, len(entries))
	dists := make([]float64, len(entries))
	for i, entry := range entries {
		r, err := entry.Rank()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		d, err := entry.Distance()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		ranks[i], dists[i] = r, d
	}
	ranks, dists = Normalize(ranks), Normalize(dists)

	type scored struct {
		entry Record
		score float64
	}
	scoredEntries := make([]scored, len(entries))
	for i, entry := range entries {
		scoredEntries[i] = scored{
			entry: entry,
			score: rankWeight*ranks[i] + distanceWeight*(1-dists[i]),
		}
	}
	slices.SortStableFunc(scoredEntries, func(a, b scored) int {
		return cmp.Compare(a.score, b.score)
	})
	slices.Reverse(scoredEntries)

	out := make([]Record, len(scoredEntries))
	for i, s := range scoredEntries {
		out[i] = s.entry
	}
	return out, nil
}

func checkWeight(name string, w float64) error {
	if math.IsNaN(w) || w < 0 || w > 1 {
		return &InvalidArgumentError{Field: name, Reason: fmt.Sprintf("must be between 0 and 1, got %v", w)}
	}
	return nil
}
