package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"krisha_radar/models"
)

// AddFavorite marks a flat as tracked. Duplicate (flat_id, kind) pairs
// refresh the notes.
func (s *Store) AddFavorite(ctx context.Context, f *models.Favorite) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO favorites (flat_id, flat_type, notes, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(flat_id, flat_type) DO UPDATE SET notes = excluded.notes`,
		f.FlatID, string(f.Kind), nullStr(f.Notes), time.Now().UTC())
	return err
}

// RemoveFavorite drops a tracked flat. Unknown pairs are a no-op.
func (s *Store) RemoveFavorite(ctx context.Context, flatID string, kind models.AdKind) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM favorites WHERE flat_id = ? AND flat_type = ?`, flatID, string(kind))
	return err
}

// Favorites returns the tracked flats, newest first.
func (s *Store) Favorites(ctx context.Context) ([]models.Favorite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT flat_id, flat_type, notes, added_at FROM favorites ORDER BY added_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Favorite
	for rows.Next() {
		var (
			f     models.Favorite
			kind  string
			notes sql.NullString
			at    sql.NullTime
		)
		if err := rows.Scan(&f.FlatID, &kind, &notes, &at); err != nil {
			return nil, err
		}
		f.Kind = models.AdKind(kind)
		f.Notes = notes.String
		f.AddedAt = at.Time
		out = append(out, f)
	}
	return out, rows.Err()
}

// FavoriteListing joins a favorite to its latest snapshot. Snapshot is
// nil when the flat was never scraped.
type FavoriteListing struct {
	Favorite models.Favorite
	Snapshot *models.Snapshot
}

// FavoriteListings resolves every favorite against the latest snapshot
// of its table at read time.
func (s *Store) FavoriteListings(ctx context.Context) ([]FavoriteListing, error) {
	favorites, err := s.Favorites(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]FavoriteListing, 0, len(favorites))
	for _, f := range favorites {
		snap, err := s.LatestSnapshot(ctx, f.FlatID, f.Kind)
		if err != nil {
			return nil, err
		}
		out = append(out, FavoriteListing{Favorite: f, Snapshot: snap})
	}
	return out, nil
}

// IgnoreOpportunity hides a flat from future opportunity reports.
func (s *Store) IgnoreOpportunity(ctx context.Context, flatID, reason string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ignored_opportunities (flat_id, reason, ignored_at)
		VALUES (?, ?, ?)
		ON CONFLICT(flat_id) DO UPDATE SET reason = excluded.reason`,
		flatID, nullStr(reason), time.Now().UTC())
	return err
}

// IgnoredFlatIDs returns the set of hidden flat ids.
func (s *Store) IgnoredFlatIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT flat_id FROM ignored_opportunities`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ignored := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ignored[id] = true
	}
	return ignored, rows.Err()
}

// InsertOpportunityBatch writes one analysis run atomically. Every row
// shares runTimestamp; a failed insert rolls the whole batch back.
func (s *Store) InsertOpportunityBatch(ctx context.Context, opps []models.Opportunity, runTimestamp string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO opportunity_analysis (run_timestamp, rank, flat_id, residential_complex,
			price, area, flat_type, floor, total_floors, construction_year, parking,
			discount_percentage_vs_median, median_price, mean_price, min_price, max_price,
			sample_size, query_date, url, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range opps {
		_, err := stmt.ExecContext(ctx, runTimestamp, o.Rank, o.FlatID, nullStr(o.ResidentialComplex),
			o.Price, o.Area, string(o.FlatType), nullInt(o.Floor), nullInt(o.TotalFloors),
			nullInt(o.ConstructionYear), nullStr(o.Parking),
			o.DiscountVsMedian, o.Bucket.Median, o.Bucket.Mean, o.Bucket.Min, o.Bucket.Max,
			o.Bucket.Count, nullStr(o.QueryDate), nullStr(o.URL), o.Description)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// OpportunitiesForRun reads one analysis batch back in rank order.
func (s *Store) OpportunitiesForRun(ctx context.Context, runTimestamp string) ([]models.Opportunity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rank, flat_id, residential_complex, price, area, flat_type,
			floor, total_floors, construction_year, parking,
			discount_percentage_vs_median, median_price, mean_price, min_price, max_price,
			sample_size, query_date, url, description
		FROM opportunity_analysis WHERE run_timestamp = ? ORDER BY rank`, runTimestamp)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var opps []models.Opportunity
	for rows.Next() {
		var (
			o                               models.Opportunity
			complex, parking, date, u, desc sql.NullString
			floor, totalFloors, year        sql.NullInt64
			flatType                        string
		)
		err := rows.Scan(&o.Rank, &o.FlatID, &complex, &o.Price, &o.Area, &flatType,
			&floor, &totalFloors, &year, &parking,
			&o.DiscountVsMedian, &o.Bucket.Median, &o.Bucket.Mean, &o.Bucket.Min, &o.Bucket.Max,
			&o.Bucket.Count, &date, &u, &desc)
		if err != nil {
			return nil, err
		}
		o.ResidentialComplex = complex.String
		o.FlatType = models.FlatType(flatType)
		o.Floor = int(floor.Int64)
		o.TotalFloors = int(totalFloors.Int64)
		o.ConstructionYear = int(year.Int64)
		o.Parking = parking.String
		o.QueryDate = date.String
		o.URL = u.String
		o.Description = desc.String
		opps = append(opps, o)
	}
	return opps, rows.Err()
}

// LatestOpportunityRun returns the newest run timestamp, or "" when no
// analysis has been stored yet.
func (s *Store) LatestOpportunityRun(ctx context.Context) (string, error) {
	var ts sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MAX(run_timestamp) FROM opportunity_analysis`).Scan(&ts)
	if err != nil {
		return "", err
	}
	return ts.String, nil
}

// InsertPipelineRun records one ingestion execution. The structured
// histogram is stored as JSON with the legacy rollup columns alongside.
func (s *Store) InsertPipelineRun(ctx context.Context, run *models.PipelineRun) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (run_id, city, started_at, finished_at, duration_seconds,
			jks_total, jks_successful, jks_failed, listings_scraped,
			error_histogram, http_errors, request_errors, rate_limited, cancelled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, nullStr(run.City), run.StartedAt.UTC(), run.FinishedAt.UTC(), run.DurationSeconds,
		run.JKsTotal, run.JKsSuccessful, run.JKsFailed, run.ListingsScraped,
		string(run.HistogramJSON()), run.HTTPErrors(), run.RequestErrors(), run.RateLimited(),
		run.Cancelled)
	return err
}

// SaveFXRate appends a mid-market rate observation.
func (s *Store) SaveFXRate(ctx context.Context, fx *models.FXRate) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mid_prices (currency, rate, fetched_at) VALUES (?, ?, ?)`,
		fx.Currency, fx.Rate, fx.FetchedAt.UTC())
	return err
}

// LatestFXRate returns the most recently fetched rate for a currency,
// or nil when none has been stored.
func (s *Store) LatestFXRate(ctx context.Context, currency string) (*models.FXRate, error) {
	var fx models.FXRate
	err := s.db.QueryRowContext(ctx, `
		SELECT currency, rate, fetched_at FROM mid_prices
		WHERE currency = ? ORDER BY fetched_at DESC LIMIT 1`, currency).
		Scan(&fx.Currency, &fx.Rate, &fx.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fx, nil
}

// SaveJKPerformance appends one per-complex market snapshot row.
func (s *Store) SaveJKPerformance(ctx context.Context, p *models.JKPerformance) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jk_performance_snapshots (residential_complex, city, snapshot_date,
			sales_count, rental_count, mean_price_per_m2, median_price)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Complex, nullStr(p.City), p.SnapshotDate,
		p.SalesCount, p.RentalCount, p.MeanPricePerM2, p.MedianPrice)
	return err
}
