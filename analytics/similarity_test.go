package analytics

import (
	"testing"

	"krisha_radar/models"
)

func snap(flatID string, price int64, area float64, ft models.FlatType) models.Snapshot {
	return models.Snapshot{
		Listing: models.Listing{FlatID: flatID, Price: price, Area: area, FlatType: ft},
	}
}

func TestSimilarSalesAreaTolerance(t *testing.T) {
	rental := snap("r", 500_000, 50, models.FlatType1BR)
	sales := []models.Snapshot{
		snap("exact", 40_000_000, 50, models.FlatType1BR),
		snap("edge-low", 40_000_000, 40, models.FlatType1BR),    // |50-40|/50 = 0.20, inclusive
		snap("edge-high", 40_000_000, 62.5, models.FlatType1BR), // |62.5-50|/62.5 = 0.20
		snap("too-small", 40_000_000, 39, models.FlatType1BR),
		snap("too-big", 40_000_000, 63, models.FlatType1BR),
	}

	got := SimilarSales(rental, sales, 0.20)
	if len(got) != 3 {
		ids := make([]string, 0, len(got))
		for _, s := range got {
			ids = append(ids, s.FlatID)
		}
		t.Fatalf("want 3 similars (bounds inclusive), got %v", ids)
	}
}

func TestSimilarSalesConfusableTypes(t *testing.T) {
	rental := snap("r", 200_000, 30, models.FlatTypeStudio)
	sales := []models.Snapshot{
		snap("studio", 25_000_000, 30, models.FlatTypeStudio),
		snap("1br", 25_000_000, 31, models.FlatType1BR),
		snap("2br", 25_000_000, 30, models.FlatType2BR),
	}

	got := SimilarSales(rental, sales, 0.20)
	if len(got) != 2 {
		t.Fatalf("studio must match studio and 1br only, got %d", len(got))
	}
	for _, s := range got {
		if s.FlatType == models.FlatType2BR {
			t.Error("2br must never match a studio rental")
		}
	}
}

func TestSimilarSalesSkipsMissingArea(t *testing.T) {
	rental := snap("r", 500_000, 50, models.FlatType1BR)
	sales := []models.Snapshot{snap("no-area", 40_000_000, 0, models.FlatType1BR)}
	if got := SimilarSales(rental, sales, 0.20); len(got) != 0 {
		t.Errorf("zero-area sale must be skipped, got %d", len(got))
	}

	noArea := snap("r2", 500_000, 0, models.FlatType1BR)
	ok := []models.Snapshot{snap("s", 40_000_000, 50, models.FlatType1BR)}
	if got := SimilarSales(noArea, ok, 0.20); got != nil {
		t.Errorf("zero-area rental must have no similars, got %d", len(got))
	}
}
