package analytics

import (
	"sort"
	"time"

	"krisha_radar/models"
)

// YieldListing pairs a rental snapshot with its estimated gross annual
// yield, expressed as a fraction of the comparable sale price.
type YieldListing struct {
	Snapshot models.Snapshot `json:"snapshot"`
	Yield    float64         `json:"yield"`
	Similars int             `json:"similars"`
}

// RentalOpportunity is a rental whose yield cleared the threshold,
// frozen together with the yield statistics of its flat-type bucket so
// the ranking stays reproducible after the market moves.
type RentalOpportunity struct {
	Snapshot models.Snapshot `json:"snapshot"`
	Yield    float64         `json:"yield"`
	Bucket   models.Stats    `json:"bucket"`
}

// RentalMarket is the current-market view of one complex.
type RentalMarket struct {
	Overall       models.Stats                            `json:"overall"`
	ByType        map[models.FlatType]models.Stats        `json:"by_type"`
	Listings      []YieldListing                          `json:"listings"`
	Opportunities map[models.FlatType][]RentalOpportunity `json:"opportunities"`
}

// AnalyzeRentalMarket estimates yields for the latest rentals of one
// complex against its latest sales. A rental with no comparable sales
// gets no yield and never becomes an opportunity.
func AnalyzeRentalMarket(rentals, sales []models.Snapshot, minYield, tolerance float64) RentalMarket {
	market := RentalMarket{
		ByType:        make(map[models.FlatType]models.Stats),
		Opportunities: make(map[models.FlatType][]RentalOpportunity),
	}

	var allYields []float64
	yieldsByType := make(map[models.FlatType][]float64)
	for _, r := range rentals {
		similars := SimilarSales(r, sales, tolerance)
		if len(similars) == 0 {
			continue
		}
		medianSale := Median(prices(similars))
		if medianSale <= 0 {
			continue
		}
		y := float64(r.Price) * 12 / medianSale
		market.Listings = append(market.Listings, YieldListing{Snapshot: r, Yield: y, Similars: len(similars)})
		allYields = append(allYields, y)
		yieldsByType[r.FlatType] = append(yieldsByType[r.FlatType], y)
	}

	market.Overall = Compute(allYields)
	for ft, ys := range yieldsByType {
		market.ByType[ft] = Compute(ys)
	}

	for _, l := range market.Listings {
		if l.Yield < minYield {
			continue
		}
		ft := l.Snapshot.FlatType
		market.Opportunities[ft] = append(market.Opportunities[ft], RentalOpportunity{
			Snapshot: l.Snapshot,
			Yield:    l.Yield,
			Bucket:   market.ByType[ft],
		})
	}
	for ft := range market.Opportunities {
		opps := market.Opportunities[ft]
		sort.Slice(opps, func(i, j int) bool { return opps[i].Yield > opps[j].Yield })
	}
	return market
}

// YieldPoint is one entry of a historical yield series.
type YieldPoint struct {
	Date     string          `json:"date"`
	FlatType models.FlatType `json:"flat_type"`
	Stats    models.Stats    `json:"stats"`
}

// salesWindow is how far a sales snapshot may sit from a rental scrape
// date and still anchor its historical yield.
const salesWindow = 7 * 24 * time.Hour

// HistoricalYields builds a yield time series per (date, flat type)
// from the full snapshot history of one complex. Sales from a ±7 day
// window around each rental date are used. A (date, type) with rentals
// but no computable yields still emits a zero point, so gaps in the
// series are visible.
func HistoricalYields(rentalHistory, salesHistory []models.Snapshot, tolerance float64) []YieldPoint {
	rentalsByDate := make(map[string][]models.Snapshot)
	for _, r := range rentalHistory {
		rentalsByDate[r.QueryDate] = append(rentalsByDate[r.QueryDate], r)
	}

	dates := make([]string, 0, len(rentalsByDate))
	for d := range rentalsByDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var points []YieldPoint
	for _, date := range dates {
		day, err := time.Parse(models.QueryDateLayout, date)
		if err != nil {
			continue
		}
		var windowSales []models.Snapshot
		for _, s := range salesHistory {
			sd, err := time.Parse(models.QueryDateLayout, s.QueryDate)
			if err != nil {
				continue
			}
			diff := sd.Sub(day)
			if diff < 0 {
				diff = -diff
			}
			if diff <= salesWindow {
				windowSales = append(windowSales, s)
			}
		}

		for ft, rentals := range byFlatType(rentalsByDate[date]) {
			var yields []float64
			for _, r := range rentals {
				similars := SimilarSales(r, windowSales, tolerance)
				if len(similars) == 0 {
					continue
				}
				medianSale := Median(prices(similars))
				if medianSale <= 0 {
					continue
				}
				yields = append(yields, float64(r.Price)*12/medianSale)
			}
			points = append(points, YieldPoint{Date: date, FlatType: ft, Stats: Compute(yields)})
		}
	}

	sort.Slice(points, func(i, j int) bool {
		if points[i].Date != points[j].Date {
			return points[i].Date < points[j].Date
		}
		return points[i].FlatType < points[j].FlatType
	})
	return points
}
