package models

import (
	"encoding/json"
	"time"
)

// Stats are summary statistics over a price (or yield) sample.
// An empty sample is all zeros with Count 0.
type Stats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Count  int     `json:"count"`
}

// Opportunity is one under-market sale listing together with the bucket
// statistics it was judged against, so the verdict stays reproducible
// after the market moves. Rows are immutable once written under a run
// timestamp.
type Opportunity struct {
	Rank               int      `json:"rank"`
	FlatID             string   `json:"flat_id"`
	ResidentialComplex string   `json:"residential_complex"`
	Price              int64    `json:"price"`
	Area               float64  `json:"area"`
	FlatType           FlatType `json:"flat_type"`
	Floor              int      `json:"floor,omitempty"`
	TotalFloors        int      `json:"total_floors,omitempty"`
	ConstructionYear   int      `json:"construction_year,omitempty"`
	Parking            string   `json:"parking,omitempty"`
	DiscountVsMedian   float64  `json:"discount_percentage_vs_median"`
	Bucket             Stats    `json:"bucket"`
	QueryDate          string   `json:"query_date"`
	URL                string   `json:"url"`
	Description        string   `json:"description"`
}

// RunTimestampLayout identifies one batch of opportunity rows written
// together. Second precision, process local time.
const RunTimestampLayout = "2006-01-02 15:04:05"

// PipelineRun is one row per ingestion execution.
type PipelineRun struct {
	ID              int64          `json:"id"`
	RunID           string         `json:"run_id"`
	City            string         `json:"city"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`
	DurationSeconds float64        `json:"duration_seconds"`
	JKsTotal        int            `json:"jks_total"`
	JKsSuccessful   int            `json:"jks_successful"`
	JKsFailed       int            `json:"jks_failed"`
	ListingsScraped int            `json:"listings_scraped"`
	ErrorHistogram  map[string]int `json:"error_histogram"`
	Cancelled       bool           `json:"cancelled"`
}

// HistogramJSON serializes the error-kind histogram for storage.
func (r *PipelineRun) HistogramJSON() []byte {
	if len(r.ErrorHistogram) == 0 {
		return []byte("{}")
	}
	b, _ := json.Marshal(r.ErrorHistogram)
	return b
}

// Legacy rollups kept alongside the structured histogram.

func (r *PipelineRun) HTTPErrors() int {
	n := 0
	for kind, c := range r.ErrorHistogram {
		if len(kind) > 5 && kind[:5] == "http_" {
			n += c
		}
	}
	return n
}

func (r *PipelineRun) RequestErrors() int {
	return r.ErrorHistogram["timeout"] + r.ErrorHistogram["connection_error"]
}

func (r *PipelineRun) RateLimited() int {
	return r.ErrorHistogram["http_429"]
}

// FXRate is a mid-market rate for one currency against tenge.
type FXRate struct {
	Currency  string    `json:"currency"`
	Rate      float64   `json:"rate"`
	FetchedAt time.Time `json:"fetched_at"`
}

// JKPerformance is a per-complex market snapshot written by the
// opportunity runner.
type JKPerformance struct {
	Complex        string  `json:"residential_complex"`
	City           string  `json:"city"`
	SnapshotDate   string  `json:"snapshot_date"`
	SalesCount     int     `json:"sales_count"`
	RentalCount    int     `json:"rental_count"`
	MeanPricePerM2 float64 `json:"mean_price_per_m2"`
	MedianPrice    float64 `json:"median_price"`
}
