package analytics

import (
	"sort"
	"time"

	"krisha_radar/models"
)

// SalesMarket is the current sales-side view of one complex.
type SalesMarket struct {
	ByType        map[models.FlatType]models.Stats `json:"by_type"`
	Opportunities []models.Opportunity             `json:"opportunities"`
}

// AnalyzeSalesMarket buckets the latest sales of one complex by flat
// type and flags under-market listings. A sale is an opportunity when
// its price is at or below bucket mean × (1 − discount); the published
// discount figure is measured against the bucket median.
func AnalyzeSalesMarket(sales []models.Snapshot, discount float64) SalesMarket {
	market := SalesMarket{ByType: make(map[models.FlatType]models.Stats)}

	for ft, bucket := range byFlatType(sales) {
		stats := Compute(prices(bucket))
		market.ByType[ft] = stats
		if stats.Median <= 0 {
			continue
		}
		threshold := stats.Mean * (1 - discount)
		for _, s := range bucket {
			if float64(s.Price) > threshold {
				continue
			}
			market.Opportunities = append(market.Opportunities, models.Opportunity{
				FlatID:             s.FlatID,
				ResidentialComplex: s.ResidentialComplex,
				Price:              s.Price,
				Area:               s.Area,
				FlatType:           s.FlatType,
				Floor:              s.Floor,
				TotalFloors:        s.TotalFloors,
				ConstructionYear:   s.ConstructionYear,
				Parking:            s.Parking,
				DiscountVsMedian:   (stats.Median - float64(s.Price)) / stats.Median * 100,
				Bucket:             stats,
				QueryDate:          s.QueryDate,
				URL:                s.URL,
				Description:        s.Description,
			})
		}
	}

	sort.Slice(market.Opportunities, func(i, j int) bool {
		return market.Opportunities[i].DiscountVsMedian > market.Opportunities[j].DiscountVsMedian
	})
	return market
}

// SalesPoint is one entry of a historical sales-price series.
type SalesPoint struct {
	Date     string          `json:"date"`
	FlatType models.FlatType `json:"flat_type"`
	Stats    models.Stats    `json:"stats"`
}

// historyWindow bounds historical sales series to the last year.
const historyWindow = 365 * 24 * time.Hour

// HistoricalSales builds a per-day, per-type price series from the full
// snapshot history of one complex, limited to 365 days before now.
func HistoricalSales(history []models.Snapshot, now time.Time) []SalesPoint {
	cutoff := now.Add(-historyWindow)

	byDate := make(map[string][]models.Snapshot)
	for _, s := range history {
		d, err := time.Parse(models.QueryDateLayout, s.QueryDate)
		if err != nil || d.Before(cutoff) {
			continue
		}
		byDate[s.QueryDate] = append(byDate[s.QueryDate], s)
	}

	var points []SalesPoint
	for date, snaps := range byDate {
		for ft, bucket := range byFlatType(snaps) {
			points = append(points, SalesPoint{Date: date, FlatType: ft, Stats: Compute(prices(bucket))})
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

// TopOpportunities merges per-complex opportunities into one ranked
// list: implausibly deep discounts (likely fraud or data errors) and
// explicitly ignored flats are dropped, the rest sorted by discount
// descending, truncated to topN and renumbered from 1.
func TopOpportunities(opps []models.Opportunity, topN int, maxDiscount float64, ignored map[string]bool) []models.Opportunity {
	filtered := make([]models.Opportunity, 0, len(opps))
	for _, o := range opps {
		if o.DiscountVsMedian > maxDiscount {
			continue
		}
		if ignored[o.FlatID] {
			continue
		}
		filtered = append(filtered, o)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].DiscountVsMedian > filtered[j].DiscountVsMedian
	})
	if topN > 0 && len(filtered) > topN {
		filtered = filtered[:topN]
	}
	for i := range filtered {
		filtered[i].Rank = i + 1
	}
	return filtered
}
