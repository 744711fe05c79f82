package analytics

import (
	"math"
	"sort"
	"time"

	"krisha_radar/models"
)

// maxPricePerM2 drops implausible price-per-m² rows from mover
// averages (typo prices, commercial lots mislabeled as flats).
const maxPricePerM2 = 5_000_000

// minMoverSample is the smallest per-date sample a complex needs to
// appear among price movers.
const minMoverSample = 3

// PriceMover is one complex's per-m² price change between two scrape
// dates.
type PriceMover struct {
	Complex   string  `json:"residential_complex"`
	OldAvgM2  float64 `json:"old_avg_price_per_m2"`
	NewAvgM2  float64 `json:"new_avg_price_per_m2"`
	DeltaPct  float64 `json:"delta_pct"`
	OldSample int     `json:"old_sample"`
	NewSample int     `json:"new_sample"`
}

// avgPricePerM2 returns the mean price/area of the rows that pass the
// sanity cap, with the surviving sample size.
func avgPricePerM2(snaps []models.Snapshot) (float64, int) {
	var xs []float64
	for _, s := range snaps {
		if s.Area <= 0 {
			continue
		}
		ppm := float64(s.Price) / s.Area
		if ppm >= maxPricePerM2 {
			continue
		}
		xs = append(xs, ppm)
	}
	return mean(xs), len(xs)
}

// PriceMovers compares sales rows of the two most recent scrape dates
// (callers supply oldRows and newRows already split by date) and
// returns the strongest risers and fallers per complex, limit each.
// Complexes need at least three rows on both dates to qualify.
func PriceMovers(oldRows, newRows []models.Snapshot, limit int) (risers, fallers []PriceMover) {
	oldByComplex := byComplex(oldRows)
	newByComplex := byComplex(newRows)

	var movers []PriceMover
	for complex, oldSnaps := range oldByComplex {
		newSnaps, ok := newByComplex[complex]
		if !ok || complex == "" {
			continue
		}
		if len(oldSnaps) < minMoverSample || len(newSnaps) < minMoverSample {
			continue
		}
		oldAvg, oldN := avgPricePerM2(oldSnaps)
		newAvg, newN := avgPricePerM2(newSnaps)
		if oldAvg <= 0 || newAvg <= 0 {
			continue
		}
		movers = append(movers, PriceMover{
			Complex:   complex,
			OldAvgM2:  oldAvg,
			NewAvgM2:  newAvg,
			DeltaPct:  (newAvg - oldAvg) / oldAvg * 100,
			OldSample: oldN,
			NewSample: newN,
		})
	}

	sort.Slice(movers, func(i, j int) bool { return movers[i].DeltaPct > movers[j].DeltaPct })
	for _, m := range movers {
		if m.DeltaPct > 0 && len(risers) < limit {
			risers = append(risers, m)
		}
	}
	for i := len(movers) - 1; i >= 0; i-- {
		if movers[i].DeltaPct < 0 && len(fallers) < limit {
			fallers = append(fallers, movers[i])
		}
	}
	return risers, fallers
}

// Turnover is the set difference between two snapshots of the same
// market: how many listings disappeared, appeared, and stayed.
type Turnover struct {
	Removed     int     `json:"removed"`
	New         int     `json:"new"`
	Stable      int     `json:"stable"`
	TotalOld    int     `json:"total_old"`
	TurnoverPct float64 `json:"turnover_pct"`
}

// ComputeTurnover counts removed, new and stable flat ids between an
// older and a newer snapshot. Disappearance is an upper bound on
// sell-through, so turnover_pct overstates true sales.
func ComputeTurnover(oldRows, newRows []models.Snapshot) Turnover {
	oldIDs := idSet(oldRows)
	newIDs := idSet(newRows)

	t := Turnover{TotalOld: len(oldIDs)}
	for id := range oldIDs {
		if !newIDs[id] {
			t.Removed++
		}
	}
	for id := range newIDs {
		if !oldIDs[id] {
			t.New++
		}
	}
	t.Stable = t.TotalOld - t.Removed
	if t.TotalOld > 0 {
		t.TurnoverPct = float64(t.Removed) / float64(t.TotalOld) * 100
	}
	return t
}

// ClosestDate picks from dates the one nearest to target. Ties go to
// the earlier date. Returns "" for an empty slice or unparseable input.
func ClosestDate(dates []string, target time.Time) string {
	best := ""
	bestGap := time.Duration(math.MaxInt64)
	for _, d := range dates {
		t, err := time.Parse(models.QueryDateLayout, d)
		if err != nil {
			continue
		}
		gap := t.Sub(target)
		if gap < 0 {
			gap = -gap
		}
		if gap < bestGap || (gap == bestGap && d < best) {
			best = d
			bestGap = gap
		}
	}
	return best
}

// YieldRanking is one complex's gross-yield estimate from mean rent
// against mean sale price.
type YieldRanking struct {
	Complex     string  `json:"residential_complex"`
	MeanRent    float64 `json:"mean_rent"`
	MeanSale    float64 `json:"mean_sale"`
	YieldPct    float64 `json:"yield_pct"`
	SalesCount  int     `json:"sales_count"`
	RentalCount int     `json:"rental_count"`
}

// YieldRankings ranks complexes by gross rental yield. Sales must be
// rows of the latest sales scrape date; rentals the latest per flat.
// Complexes need at least three of each to qualify.
func YieldRankings(sales, rentals []models.Snapshot) []YieldRanking {
	salesByComplex := byComplex(sales)
	rentalsByComplex := byComplex(rentals)

	var rankings []YieldRanking
	for complex, cs := range salesByComplex {
		rs, ok := rentalsByComplex[complex]
		if !ok || complex == "" {
			continue
		}
		if len(cs) < 3 || len(rs) < 3 {
			continue
		}
		meanSale := mean(prices(cs))
		meanRent := mean(prices(rs))
		if meanSale <= 0 {
			continue
		}
		rankings = append(rankings, YieldRanking{
			Complex:     complex,
			MeanRent:    meanRent,
			MeanSale:    meanSale,
			YieldPct:    meanRent * 12 / meanSale * 100,
			SalesCount:  len(cs),
			RentalCount: len(rs),
		})
	}
	sort.Slice(rankings, func(i, j int) bool { return rankings[i].YieldPct > rankings[j].YieldPct })
	return rankings
}

// SqmRanking is one complex's price-per-m² profile on the latest
// scrape date.
type SqmRanking struct {
	Complex string  `json:"residential_complex"`
	Mean    float64 `json:"mean_price_per_m2"`
	Min     float64 `json:"min_price_per_m2"`
	Max     float64 `json:"max_price_per_m2"`
	Count   int     `json:"count"`
}

// SqmRankings ranks complexes by mean price per m² over the given
// sales rows (one scrape date). Complexes need at least five rows.
func SqmRankings(sales []models.Snapshot) []SqmRanking {
	var rankings []SqmRanking
	for complex, cs := range byComplex(sales) {
		if complex == "" || len(cs) < 5 {
			continue
		}
		var xs []float64
		for _, s := range cs {
			if s.Area > 0 {
				xs = append(xs, float64(s.Price)/s.Area)
			}
		}
		if len(xs) < 5 {
			continue
		}
		stats := Compute(xs)
		rankings = append(rankings, SqmRanking{
			Complex: complex,
			Mean:    stats.Mean,
			Min:     stats.Min,
			Max:     stats.Max,
			Count:   stats.Count,
		})
	}
	sort.Slice(rankings, func(i, j int) bool { return rankings[i].Mean > rankings[j].Mean })
	return rankings
}

func byComplex(snaps []models.Snapshot) map[string][]models.Snapshot {
	out := make(map[string][]models.Snapshot)
	for _, s := range snaps {
		out[s.ResidentialComplex] = append(out[s.ResidentialComplex], s)
	}
	return out
}

func idSet(snaps []models.Snapshot) map[string]bool {
	out := make(map[string]bool, len(snaps))
	for _, s := range snaps {
		out[s.FlatID] = true
	}
	return out
}
