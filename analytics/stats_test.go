package analytics

import (
	"math"
	"testing"

	"krisha_radar/models"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		want float64
	}{
		{"empty", nil, 0},
		{"single", []float64{42}, 42},
		{"odd", []float64{3, 1, 2}, 2},
		{"even", []float64{4, 1, 3, 2}, 2.5},
		{"unsorted even", []float64{100, 10, 30, 20}, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Median(tt.xs); got != tt.want {
				t.Errorf("Median(%v) = %v, want %v", tt.xs, got, tt.want)
			}
		})
	}
}

func TestMedianPalindromeStable(t *testing.T) {
	xs := []float64{5, 1, 9, 3}
	doubled := make([]float64, 0, 2*len(xs))
	doubled = append(doubled, xs...)
	for i := len(xs) - 1; i >= 0; i-- {
		doubled = append(doubled, xs[i])
	}
	if Median(doubled) != Median(xs) {
		t.Errorf("median(xs ++ reverse(xs)) = %v, want %v", Median(doubled), Median(xs))
	}
}

func TestMedianDoesNotMutateInput(t *testing.T) {
	xs := []float64{3, 1, 2}
	Median(xs)
	if xs[0] != 3 || xs[1] != 1 || xs[2] != 2 {
		t.Errorf("input mutated: %v", xs)
	}
}

func TestComputeEmpty(t *testing.T) {
	got := Compute(nil)
	if got != (models.Stats{}) {
		t.Errorf("empty input must be all zeros, got %+v", got)
	}
}

func TestCompute(t *testing.T) {
	got := Compute([]float64{10, 20, 30, 40})
	want := models.Stats{Mean: 25, Median: 25, Min: 10, Max: 40, Count: 4}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestComputeSingle(t *testing.T) {
	got := Compute([]float64{7})
	if got.Mean != 7 || got.Median != 7 || got.Min != 7 || got.Max != 7 || got.Count != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestComputeNegativeDelta(t *testing.T) {
	// negative deltas appear in mover series; min/max must not assume
	// positive input
	got := Compute([]float64{-5, 5})
	if got.Min != -5 || got.Max != 5 || math.Abs(got.Mean) > 1e-12 {
		t.Errorf("got %+v", got)
	}
}
