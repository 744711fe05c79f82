package services

import (
	"context"
	"fmt"
	"time"

	"krisha_radar/analytics"
	"krisha_radar/models"
)

// MarketStore is the snapshot surface of the cross-snapshot analyzers.
type MarketStore interface {
	LatestSalesDates(ctx context.Context, city string, n int) ([]string, error)
	SalesOnDate(ctx context.Context, city, date string) ([]models.Snapshot, error)
	SalesDatesForComplex(ctx context.Context, complex string) ([]string, error)
	SalesForComplexOnDate(ctx context.Context, complex, date string) ([]models.Snapshot, error)
	LatestRentalsForCity(ctx context.Context, city string) ([]models.Snapshot, error)
}

// MarketAnalyzer assembles store snapshots into the cross-snapshot
// artifacts: movers, turnover and rankings. The math lives in the
// analytics package; this type only feeds it.
type MarketAnalyzer struct {
	store MarketStore
}

func NewMarketAnalyzer(store MarketStore) *MarketAnalyzer {
	return &MarketAnalyzer{store: store}
}

// twoLatestDates returns (old, new) sales dates for a city, or an error
// when fewer than two scrapes exist.
func (m *MarketAnalyzer) twoLatestDates(ctx context.Context, city string) (string, string, error) {
	dates, err := m.store.LatestSalesDates(ctx, city, 2)
	if err != nil {
		return "", "", err
	}
	if len(dates) < 2 {
		return "", "", fmt.Errorf("need two sales scrapes for %s, have %d", city, len(dates))
	}
	// dates come newest first
	return dates[1], dates[0], nil
}

// MoversReport is the per-city price-mover artifact.
type MoversReport struct {
	OldDate string
	NewDate string
	Risers  []analytics.PriceMover
	Fallers []analytics.PriceMover
}

// PriceMovers compares the two most recent sales scrapes of a city.
func (m *MarketAnalyzer) PriceMovers(ctx context.Context, city string, limit int) (*MoversReport, error) {
	oldDate, newDate, err := m.twoLatestDates(ctx, city)
	if err != nil {
		return nil, err
	}
	oldRows, err := m.store.SalesOnDate(ctx, city, oldDate)
	if err != nil {
		return nil, err
	}
	newRows, err := m.store.SalesOnDate(ctx, city, newDate)
	if err != nil {
		return nil, err
	}

	risers, fallers := analytics.PriceMovers(oldRows, newRows, limit)
	return &MoversReport{OldDate: oldDate, NewDate: newDate, Risers: risers, Fallers: fallers}, nil
}

// TurnoverReport pairs a turnover computation with the dates it spans.
type TurnoverReport struct {
	OldDate  string
	NewDate  string
	Turnover analytics.Turnover
}

// MarketTurnover diffs listing ids between the two most recent sales
// scrapes of a city.
func (m *MarketAnalyzer) MarketTurnover(ctx context.Context, city string) (*TurnoverReport, error) {
	oldDate, newDate, err := m.twoLatestDates(ctx, city)
	if err != nil {
		return nil, err
	}
	oldRows, err := m.store.SalesOnDate(ctx, city, oldDate)
	if err != nil {
		return nil, err
	}
	newRows, err := m.store.SalesOnDate(ctx, city, newDate)
	if err != nil {
		return nil, err
	}
	return &TurnoverReport{
		OldDate:  oldDate,
		NewDate:  newDate,
		Turnover: analytics.ComputeTurnover(oldRows, newRows),
	}, nil
}

// ComplexTurnover diffs one complex between its newest scrape and the
// scrape closest to `days` before it.
func (m *MarketAnalyzer) ComplexTurnover(ctx context.Context, complex string, days int) (*TurnoverReport, error) {
	dates, err := m.store.SalesDatesForComplex(ctx, complex)
	if err != nil {
		return nil, err
	}
	if len(dates) < 2 {
		return nil, fmt.Errorf("need two scrapes for %s, have %d", complex, len(dates))
	}
	newDate := dates[0]
	newDay, err := time.Parse(models.QueryDateLayout, newDate)
	if err != nil {
		return nil, fmt.Errorf("bad query date %q: %w", newDate, err)
	}

	target := newDay.AddDate(0, 0, -days)
	oldDate := analytics.ClosestDate(dates[1:], target)
	if oldDate == "" {
		return nil, fmt.Errorf("no earlier scrape for %s", complex)
	}

	oldRows, err := m.store.SalesForComplexOnDate(ctx, complex, oldDate)
	if err != nil {
		return nil, err
	}
	newRows, err := m.store.SalesForComplexOnDate(ctx, complex, newDate)
	if err != nil {
		return nil, err
	}
	return &TurnoverReport{
		OldDate:  oldDate,
		NewDate:  newDate,
		Turnover: analytics.ComputeTurnover(oldRows, newRows),
	}, nil
}

// YieldRankings ranks a city's complexes by gross rental yield on the
// latest sales scrape.
func (m *MarketAnalyzer) YieldRankings(ctx context.Context, city string) ([]analytics.YieldRanking, error) {
	dates, err := m.store.LatestSalesDates(ctx, city, 1)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, nil
	}
	sales, err := m.store.SalesOnDate(ctx, city, dates[0])
	if err != nil {
		return nil, err
	}
	rentals, err := m.store.LatestRentalsForCity(ctx, city)
	if err != nil {
		return nil, err
	}
	return analytics.YieldRankings(sales, rentals), nil
}

// SqmRankings ranks a city's complexes by price per m² on the latest
// sales scrape.
func (m *MarketAnalyzer) SqmRankings(ctx context.Context, city string) ([]analytics.SqmRanking, error) {
	dates, err := m.store.LatestSalesDates(ctx, city, 1)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, nil
	}
	sales, err := m.store.SalesOnDate(ctx, city, dates[0])
	if err != nil {
		return nil, err
	}
	return analytics.SqmRankings(sales), nil
}
