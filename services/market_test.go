package services

import (
	"context"
	"testing"

	"krisha_radar/models"
)

type fakeMarketStore struct {
	salesByDate map[string][]models.Snapshot // city-wide, keyed by date
	rentals     []models.Snapshot
}

func (f *fakeMarketStore) LatestSalesDates(_ context.Context, _ string, n int) ([]string, error) {
	var dates []string
	for d := range f.salesByDate {
		dates = append(dates, d)
	}
	// newest first
	for i := 0; i < len(dates); i++ {
		for j := i + 1; j < len(dates); j++ {
			if dates[j] > dates[i] {
				dates[i], dates[j] = dates[j], dates[i]
			}
		}
	}
	if len(dates) > n {
		dates = dates[:n]
	}
	return dates, nil
}

func (f *fakeMarketStore) SalesOnDate(_ context.Context, _, date string) ([]models.Snapshot, error) {
	return f.salesByDate[date], nil
}

func (f *fakeMarketStore) SalesDatesForComplex(ctx context.Context, _ string) ([]string, error) {
	return f.LatestSalesDates(ctx, "", 100)
}

func (f *fakeMarketStore) SalesForComplexOnDate(_ context.Context, _, date string) ([]models.Snapshot, error) {
	return f.salesByDate[date], nil
}

func (f *fakeMarketStore) LatestRentalsForCity(context.Context, string) ([]models.Snapshot, error) {
	return f.rentals, nil
}

func dated(flatID string, price int64, date string) models.Snapshot {
	return models.Snapshot{
		Listing: models.Listing{
			FlatID:             flatID,
			Price:              price,
			Area:               50,
			FlatType:           models.FlatType1BR,
			ResidentialComplex: "Meridian",
		},
		QueryDate: date,
	}
}

func TestMarketTurnoverUsesTwoLatestDates(t *testing.T) {
	store := &fakeMarketStore{salesByDate: map[string][]models.Snapshot{
		"2025-06-01": {dated("a", 1, "2025-06-01"), dated("b", 1, "2025-06-01")},
		"2025-06-08": {dated("b", 1, "2025-06-08"), dated("c", 1, "2025-06-08")},
		// an even older scrape that must be ignored
		"2025-05-01": {dated("z", 1, "2025-05-01")},
	}}
	m := NewMarketAnalyzer(store)

	report, err := m.MarketTurnover(context.Background(), "almaty")
	if err != nil {
		t.Fatal(err)
	}
	if report.OldDate != "2025-06-01" || report.NewDate != "2025-06-08" {
		t.Errorf("dates = %s..%s", report.OldDate, report.NewDate)
	}
	if report.Turnover.Removed != 1 || report.Turnover.New != 1 || report.Turnover.Stable != 1 {
		t.Errorf("turnover = %+v", report.Turnover)
	}
}

func TestMarketTurnoverNeedsTwoScrapes(t *testing.T) {
	store := &fakeMarketStore{salesByDate: map[string][]models.Snapshot{
		"2025-06-08": {dated("a", 1, "2025-06-08")},
	}}
	if _, err := NewMarketAnalyzer(store).MarketTurnover(context.Background(), "almaty"); err == nil {
		t.Error("one scrape must be an error")
	}
}

func TestComplexTurnoverPicksClosestDate(t *testing.T) {
	store := &fakeMarketStore{salesByDate: map[string][]models.Snapshot{
		"2025-06-20": {dated("a", 1, "2025-06-20"), dated("b", 1, "2025-06-20")},
		"2025-06-14": {dated("a", 1, "2025-06-14"), dated("c", 1, "2025-06-14")},
		"2025-06-01": {dated("d", 1, "2025-06-01")},
	}}
	m := NewMarketAnalyzer(store)

	// target = 2025-06-13: the 06-14 scrape is closest
	report, err := m.ComplexTurnover(context.Background(), "Meridian", 7)
	if err != nil {
		t.Fatal(err)
	}
	if report.OldDate != "2025-06-14" {
		t.Errorf("old date = %s, want 2025-06-14", report.OldDate)
	}
	if report.Turnover.Removed != 1 || report.Turnover.New != 1 {
		t.Errorf("turnover = %+v", report.Turnover)
	}
}

func TestYieldRankingsAssembly(t *testing.T) {
	store := &fakeMarketStore{
		salesByDate: map[string][]models.Snapshot{
			"2025-06-08": {
				dated("s1", 48_000_000, "2025-06-08"),
				dated("s2", 48_000_000, "2025-06-08"),
				dated("s3", 48_000_000, "2025-06-08"),
			},
		},
		rentals: []models.Snapshot{
			dated("r1", 400_000, "2025-06-08"),
			dated("r2", 400_000, "2025-06-08"),
			dated("r3", 400_000, "2025-06-08"),
		},
	}
	rankings, err := NewMarketAnalyzer(store).YieldRankings(context.Background(), "almaty")
	if err != nil {
		t.Fatal(err)
	}
	if len(rankings) != 1 || rankings[0].YieldPct != 10 {
		t.Errorf("rankings = %+v", rankings)
	}
}
