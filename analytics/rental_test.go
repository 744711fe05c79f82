package analytics

import (
	"math"
	"testing"

	"krisha_radar/models"
)

func TestAnalyzeRentalMarketYield(t *testing.T) {
	rentals := []models.Snapshot{snap("r1", 500_000, 52, models.FlatType1BR)}
	sales := []models.Snapshot{
		snap("s1", 80_000_000, 50, models.FlatType1BR),
		snap("s2", 90_000_000, 52, models.FlatType1BR),
		snap("s3", 100_000_000, 55, models.FlatType1BR),
	}

	market := AnalyzeRentalMarket(rentals, sales, 0.05, 0.20)

	if len(market.Listings) != 1 {
		t.Fatalf("want 1 yield listing, got %d", len(market.Listings))
	}
	wantYield := 500_000.0 * 12 / 90_000_000
	if math.Abs(market.Listings[0].Yield-wantYield) > 1e-9 {
		t.Errorf("yield = %v, want %v", market.Listings[0].Yield, wantYield)
	}

	opps := market.Opportunities[models.FlatType1BR]
	if len(opps) != 1 {
		t.Fatalf("yield %.4f >= 0.05 must be an opportunity", wantYield)
	}
	if opps[0].Bucket.Count != 1 {
		t.Errorf("opportunity must freeze its bucket stats, got %+v", opps[0].Bucket)
	}
}

func TestAnalyzeRentalMarketNoSimilars(t *testing.T) {
	rentals := []models.Snapshot{snap("r1", 500_000, 52, models.FlatType1BR)}
	sales := []models.Snapshot{snap("s1", 60_000_000, 120, models.FlatType3BRPlus)}

	market := AnalyzeRentalMarket(rentals, sales, 0.05, 0.20)
	if len(market.Listings) != 0 {
		t.Errorf("rental with no comparables must get no yield, got %d", len(market.Listings))
	}
	if market.Overall.Count != 0 {
		t.Errorf("overall stats must be empty, got %+v", market.Overall)
	}
}

func TestAnalyzeRentalMarketOpportunitiesSorted(t *testing.T) {
	rentals := []models.Snapshot{
		snap("lo", 400_000, 50, models.FlatType1BR),
		snap("hi", 700_000, 50, models.FlatType1BR),
	}
	sales := []models.Snapshot{
		snap("s1", 50_000_000, 50, models.FlatType1BR),
		snap("s2", 50_000_000, 50, models.FlatType1BR),
	}

	market := AnalyzeRentalMarket(rentals, sales, 0.01, 0.20)
	opps := market.Opportunities[models.FlatType1BR]
	if len(opps) != 2 {
		t.Fatalf("want 2 opportunities, got %d", len(opps))
	}
	if opps[0].Snapshot.FlatID != "hi" {
		t.Errorf("opportunities must be sorted by yield descending, first = %s", opps[0].Snapshot.FlatID)
	}
}

func TestHistoricalYieldsEmitsZeroPoint(t *testing.T) {
	rentalHistory := []models.Snapshot{
		withDate(snap("r1", 500_000, 52, models.FlatType1BR), "2025-06-01"),
	}
	// sales exist only 30 days away, outside the ±7 day window
	salesHistory := []models.Snapshot{
		withDate(snap("s1", 90_000_000, 52, models.FlatType1BR), "2025-07-01"),
	}

	points := HistoricalYields(rentalHistory, salesHistory, 0.20)
	if len(points) != 1 {
		t.Fatalf("want a zero point for the rental date, got %d points", len(points))
	}
	if points[0].Stats.Count != 0 || points[0].Stats.Mean != 0 {
		t.Errorf("want zero stats, got %+v", points[0].Stats)
	}
}

func TestHistoricalYieldsWindow(t *testing.T) {
	rentalHistory := []models.Snapshot{
		withDate(snap("r1", 500_000, 52, models.FlatType1BR), "2025-06-10"),
	}
	salesHistory := []models.Snapshot{
		withDate(snap("in-window", 90_000_000, 52, models.FlatType1BR), "2025-06-03"),
		withDate(snap("out-window", 10_000_000, 52, models.FlatType1BR), "2025-06-20"),
	}

	points := HistoricalYields(rentalHistory, salesHistory, 0.20)
	if len(points) != 1 {
		t.Fatalf("want 1 point, got %d", len(points))
	}
	wantYield := 500_000.0 * 12 / 90_000_000
	if math.Abs(points[0].Stats.Mean-wantYield) > 1e-9 {
		t.Errorf("only the ±7d sale may anchor the yield: got mean %v, want %v", points[0].Stats.Mean, wantYield)
	}
}

func withDate(s models.Snapshot, date string) models.Snapshot {
	s.QueryDate = date
	return s
}
