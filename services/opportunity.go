package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"krisha_radar/analytics"
	"krisha_radar/models"
)

// OpportunityStore is the persistence surface of the opportunity run.
type OpportunityStore interface {
	LatestSalesForComplex(ctx context.Context, complex, city string) ([]models.Snapshot, error)
	LatestRentalsForComplex(ctx context.Context, complex string) ([]models.Snapshot, error)
	IgnoredFlatIDs(ctx context.Context) (map[string]bool, error)
	InsertOpportunityBatch(ctx context.Context, opps []models.Opportunity, runTimestamp string) error
	SaveJKPerformance(ctx context.Context, p *models.JKPerformance) error
	LatestFXRate(ctx context.Context, currency string) (*models.FXRate, error)
}

// OpportunityParams tune one cross-complex analysis run.
type OpportunityParams struct {
	City        string
	Discount    float64 // opportunity rule: price <= mean × (1 − Discount)
	TopN        int
	MaxDiscount float64 // discount-vs-median above this is treated as likely fraud
}

// OpportunityRunner scans every non-blacklisted complex of a city for
// under-market sales, ranks the survivors and persists the batch under
// one run timestamp. It also writes per-complex performance snapshots
// as a side product of the same pass over the data.
type OpportunityRunner struct {
	store OpportunityStore
	dir   *Directory
}

func NewOpportunityRunner(store OpportunityStore, dir *Directory) *OpportunityRunner {
	return &OpportunityRunner{store: store, dir: dir}
}

// OpportunityRun is the outcome of one analysis pass.
type OpportunityRun struct {
	Timestamp     string
	Opportunities []models.Opportunity
	JKsAnalyzed   int
}

// Run executes one opportunity analysis. The returned rows are already
// ranked 1..N and persisted.
func (r *OpportunityRunner) Run(ctx context.Context, params OpportunityParams) (*OpportunityRun, error) {
	if params.MaxDiscount <= 0 {
		params.MaxDiscount = 50
	}

	complexes, err := r.dir.ListExcludingBlacklists(ctx, params.City)
	if err != nil {
		return nil, fmt.Errorf("list complexes: %w", err)
	}
	ignored, err := r.store.IgnoredFlatIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ignored flats: %w", err)
	}

	runTS := time.Now().Format(models.RunTimestampLayout)
	snapshotDate := models.QueryDateOf(time.Now())

	var all []models.Opportunity
	analyzed := 0
	for _, c := range complexes {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		sales, err := r.store.LatestSalesForComplex(ctx, c.Name, c.City)
		if err != nil {
			return nil, fmt.Errorf("sales for %s: %w", c.Name, err)
		}
		if len(sales) == 0 {
			continue
		}
		analyzed++

		market := analytics.AnalyzeSalesMarket(sales, params.Discount)
		all = append(all, market.Opportunities...)

		if err := r.saveComplexPerformance(ctx, &c, sales, snapshotDate); err != nil {
			log.Warn().Err(err).Str("complex", c.Name).Msg("performance snapshot failed")
		}
	}

	ranked := analytics.TopOpportunities(all, params.TopN, params.MaxDiscount, ignored)
	if err := r.store.InsertOpportunityBatch(ctx, ranked, runTS); err != nil {
		return nil, fmt.Errorf("persist opportunity batch: %w", err)
	}

	log.Info().
		Str("run_timestamp", runTS).
		Int("jks_analyzed", analyzed).
		Int("candidates", len(all)).
		Int("ranked", len(ranked)).
		Msg("opportunity run complete")

	return &OpportunityRun{Timestamp: runTS, Opportunities: ranked, JKsAnalyzed: analyzed}, nil
}

func (r *OpportunityRunner) saveComplexPerformance(ctx context.Context, c *models.ResidentialComplex, sales []models.Snapshot, date string) error {
	rentals, err := r.store.LatestRentalsForComplex(ctx, c.Name)
	if err != nil {
		return err
	}

	var ppm, prices []float64
	for _, s := range sales {
		prices = append(prices, float64(s.Price))
		if s.Area > 0 {
			ppm = append(ppm, float64(s.Price)/s.Area)
		}
	}
	perf := &models.JKPerformance{
		Complex:        c.Name,
		City:           c.City,
		SnapshotDate:   date,
		SalesCount:     len(sales),
		RentalCount:    len(rentals),
		MeanPricePerM2: analytics.Compute(ppm).Mean,
		MedianPrice:    analytics.Median(prices),
	}
	return r.store.SaveJKPerformance(ctx, perf)
}

// csvHeader is the fixed export column order; downstream spreadsheets
// key on it.
var csvHeader = []string{
	"rank", "flat_id", "residential_complex", "price", "area", "flat_type",
	"floor", "total_floors", "construction_year", "parking",
	"discount_percentage_vs_median", "median_price", "mean_price",
	"min_price", "max_price", "sample_size", "query_date", "url", "description",
}

// WriteCSV exports ranked opportunities in the fixed column order.
func WriteCSV(w io.Writer, opps []models.Opportunity) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	optInt := func(v int) string {
		if v == 0 {
			return ""
		}
		return strconv.Itoa(v)
	}
	for _, o := range opps {
		record := []string{
			strconv.Itoa(o.Rank),
			o.FlatID,
			o.ResidentialComplex,
			strconv.FormatInt(o.Price, 10),
			strconv.FormatFloat(o.Area, 'f', -1, 64),
			string(o.FlatType),
			optInt(o.Floor),
			optInt(o.TotalFloors),
			optInt(o.ConstructionYear),
			o.Parking,
			strconv.FormatFloat(o.DiscountVsMedian, 'f', 2, 64),
			strconv.FormatFloat(o.Bucket.Median, 'f', 2, 64),
			strconv.FormatFloat(o.Bucket.Mean, 'f', 2, 64),
			strconv.FormatFloat(o.Bucket.Min, 'f', 2, 64),
			strconv.FormatFloat(o.Bucket.Max, 'f', 2, 64),
			strconv.Itoa(o.Bucket.Count),
			o.QueryDate,
			o.URL,
			o.Description,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// PriceInUSD converts a tenge amount with the latest stored USD rate.
// Returns 0, false when no rate has been fetched.
func (r *OpportunityRunner) PriceInUSD(ctx context.Context, tenge int64) (float64, bool) {
	fx, err := r.store.LatestFXRate(ctx, "USD")
	if err != nil || fx == nil || fx.Rate <= 0 {
		return 0, false
	}
	return float64(tenge) / fx.Rate, true
}
