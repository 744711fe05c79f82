// Package analytics derives market intelligence from stored listing
// snapshots: per-complex statistics, rental yields, under-market
// opportunities and cross-snapshot diffs. Everything here is a pure
// function over slices; callers assemble inputs from the store.
package analytics

import (
	"math"
	"sort"

	"krisha_radar/models"
)

// Compute summarizes a sample. Empty input yields all zeros with
// Count 0. No rounding happens here; callers format.
func Compute(xs []float64) models.Stats {
	if len(xs) == 0 {
		return models.Stats{}
	}
	min, max, sum := math.Inf(1), math.Inf(-1), 0.0
	for _, x := range xs {
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
		sum += x
	}
	return models.Stats{
		Mean:   sum / float64(len(xs)),
		Median: Median(xs),
		Min:    min,
		Max:    max,
		Count:  len(xs),
	}
}

// Median returns the middle element, or the mean of the two central
// elements for even-sized input. Empty input returns 0.
func Median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, xs)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func prices(snaps []models.Snapshot) []float64 {
	out := make([]float64, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, float64(s.Price))
	}
	return out
}

func byFlatType(snaps []models.Snapshot) map[models.FlatType][]models.Snapshot {
	buckets := make(map[models.FlatType][]models.Snapshot)
	for _, s := range snaps {
		buckets[s.FlatType] = append(buckets[s.FlatType], s)
	}
	return buckets
}
