package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"krisha_radar/models"
)

func tableFor(kind models.AdKind) string {
	if kind == models.AdKindRental {
		return "rental_flats"
	}
	return "sales_flats"
}

const snapshotCols = `id, flat_id, query_date, price, area, flat_type, residential_complex,
	floor, total_floors, construction_year, parking, description, archived,
	published_at, created_at, scraped_at, updated_at, city, url`

// UpsertRental inserts or refreshes the rental snapshot for
// (listing.FlatID, queryDate).
func (s *Store) UpsertRental(ctx context.Context, l *models.Listing, url, queryDate string) error {
	return s.upsertSnapshot(ctx, "rental_flats", l, url, queryDate)
}

// UpsertSale inserts or refreshes the sales snapshot for
// (listing.FlatID, queryDate).
func (s *Store) UpsertSale(ctx context.Context, l *models.Listing, url, queryDate string) error {
	return s.upsertSnapshot(ctx, "sales_flats", l, url, queryDate)
}

func (s *Store) upsertSnapshot(ctx context.Context, table string, l *models.Listing, url, queryDate string) error {
	if l.Price <= 0 || l.Area <= 0 || !l.FlatType.Valid() {
		return fmt.Errorf("invalid listing %s: price=%d area=%.1f type=%q", l.FlatID, l.Price, l.Area, l.FlatType)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := time.Now().UTC()
	query := fmt.Sprintf(`
		INSERT INTO %s (flat_id, query_date, price, area, flat_type, residential_complex,
			floor, total_floors, construction_year, parking, description, archived,
			published_at, created_at, scraped_at, updated_at, city, url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, FALSE, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(flat_id, query_date) DO UPDATE SET
			price = excluded.price,
			area = excluded.area,
			flat_type = excluded.flat_type,
			residential_complex = excluded.residential_complex,
			floor = excluded.floor,
			total_floors = excluded.total_floors,
			construction_year = excluded.construction_year,
			parking = excluded.parking,
			description = excluded.description,
			archived = FALSE,
			scraped_at = excluded.scraped_at,
			updated_at = excluded.updated_at,
			city = excluded.city,
			url = excluded.url`, table)

	published := any(nil)
	if !l.PublishedAt.IsZero() {
		published = l.PublishedAt.UTC()
	}
	_, err := s.db.ExecContext(ctx, query,
		l.FlatID, queryDate, l.Price, l.Area, string(l.FlatType), nullStr(l.ResidentialComplex),
		nullInt(l.Floor), nullInt(l.TotalFloors), nullInt(l.ConstructionYear),
		nullStr(l.Parking), l.Description,
		published, now, l.ScrapedAt.UTC(), now, nullStr(l.City), nullStr(url))
	return err
}

// MarkArchived flips the archived flag on every snapshot row of one
// flat. Archival is the terminal state; history stays in place.
func (s *Store) MarkArchived(ctx context.Context, flatID string, kind models.AdKind) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	query := fmt.Sprintf(`UPDATE %s SET archived = TRUE, updated_at = ? WHERE flat_id = ?`, tableFor(kind))
	_, err := s.db.ExecContext(ctx, query, time.Now().UTC(), flatID)
	return err
}

// KnownActiveIDs returns the distinct non-archived flat ids recorded
// for a complex and kind.
func (s *Store) KnownActiveIDs(ctx context.Context, complex string, kind models.AdKind) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT flat_id FROM %s
		WHERE residential_complex = ? AND archived = FALSE`, tableFor(kind))
	rows, err := s.db.QueryContext(ctx, query, complex)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ArchiveMissing marks every known non-archived flat of the complex
// that is absent from seen. Returns the number archived.
func (s *Store) ArchiveMissing(ctx context.Context, complex string, kind models.AdKind, seen map[string]bool) (int, error) {
	known, err := s.KnownActiveIDs(ctx, complex, kind)
	if err != nil {
		return 0, err
	}
	archived := 0
	for _, id := range known {
		if seen[id] {
			continue
		}
		if err := s.MarkArchived(ctx, id, kind); err != nil {
			return archived, err
		}
		archived++
	}
	return archived, nil
}

// LatestRentalsForComplex returns, per flat id, the most recent
// non-archived rental snapshot in the complex.
func (s *Store) LatestRentalsForComplex(ctx context.Context, complex string) ([]models.Snapshot, error) {
	return s.latestForComplex(ctx, "rental_flats", complex, "")
}

// LatestSalesForComplex returns, per flat id, the most recent
// non-archived sales snapshot in the complex. City narrows the match
// when non-empty (complex names repeat across cities).
func (s *Store) LatestSalesForComplex(ctx context.Context, complex, city string) ([]models.Snapshot, error) {
	return s.latestForComplex(ctx, "sales_flats", complex, city)
}

func (s *Store) latestForComplex(ctx context.Context, table, complex, city string) ([]models.Snapshot, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s t
		WHERE t.residential_complex = ? AND t.archived = FALSE
		AND t.query_date = (SELECT MAX(t2.query_date) FROM %s t2 WHERE t2.flat_id = t.flat_id)`,
		snapshotCols, table, table)
	args := []any{complex}
	if city != "" {
		query += " AND t.city = ?"
		args = append(args, city)
	}
	query += " ORDER BY t.flat_id"
	return s.querySnapshots(ctx, query, args...)
}

// LatestRentalsForCity returns the latest non-archived rental snapshot
// per flat id across the whole city.
func (s *Store) LatestRentalsForCity(ctx context.Context, city string) ([]models.Snapshot, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM rental_flats t
		WHERE t.city = ? AND t.archived = FALSE
		AND t.query_date = (SELECT MAX(t2.query_date) FROM rental_flats t2 WHERE t2.flat_id = t.flat_id)
		ORDER BY t.residential_complex, t.flat_id`, snapshotCols)
	return s.querySnapshots(ctx, query, city)
}

// SimilarSales returns the latest non-archived sales with area in the
// inclusive range; complex narrows by substring, city by equality.
func (s *Store) SimilarSales(ctx context.Context, complex string, areaMin, areaMax float64, city string) ([]models.Snapshot, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM sales_flats t
		WHERE t.archived = FALSE AND t.area >= ? AND t.area <= ?
		AND t.query_date = (SELECT MAX(t2.query_date) FROM sales_flats t2 WHERE t2.flat_id = t.flat_id)`,
		snapshotCols)
	args := []any{areaMin, areaMax}
	if complex != "" {
		query += " AND t.residential_complex LIKE ?"
		args = append(args, "%"+complex+"%")
	}
	if city != "" {
		query += " AND t.city = ?"
		args = append(args, city)
	}
	return s.querySnapshots(ctx, query, args...)
}

// RentalHistoryForComplex returns every rental snapshot of the complex,
// archived rows included, ordered by day.
func (s *Store) RentalHistoryForComplex(ctx context.Context, complex string) ([]models.Snapshot, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s t WHERE t.residential_complex = ? ORDER BY t.query_date, t.flat_id`,
		snapshotCols, "rental_flats")
	return s.querySnapshots(ctx, query, complex)
}

// SalesHistoryForComplex returns every sales snapshot of the complex,
// archived rows included, ordered by day.
func (s *Store) SalesHistoryForComplex(ctx context.Context, complex string) ([]models.Snapshot, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s t WHERE t.residential_complex = ? ORDER BY t.query_date, t.flat_id`,
		snapshotCols, "sales_flats")
	return s.querySnapshots(ctx, query, complex)
}

// LatestSalesDates returns up to n distinct sales query dates for a
// city, newest first.
func (s *Store) LatestSalesDates(ctx context.Context, city string, n int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT query_date FROM sales_flats
		WHERE city = ? ORDER BY query_date DESC LIMIT ?`, city, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// SalesOnDate returns all sales snapshots of a city on one query date,
// archived rows included (the row existed on that day).
func (s *Store) SalesOnDate(ctx context.Context, city, date string) ([]models.Snapshot, error) {
	query := fmt.Sprintf(`SELECT %s FROM sales_flats t WHERE t.city = ? AND t.query_date = ? ORDER BY t.residential_complex, t.flat_id`, snapshotCols)
	return s.querySnapshots(ctx, query, city, date)
}

// SalesDatesForComplex returns the distinct scrape dates of a complex,
// newest first.
func (s *Store) SalesDatesForComplex(ctx context.Context, complex string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT query_date FROM sales_flats
		WHERE residential_complex = ? ORDER BY query_date DESC`, complex)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// SalesForComplexOnDate returns the sales snapshots of a complex on one
// query date.
func (s *Store) SalesForComplexOnDate(ctx context.Context, complex, date string) ([]models.Snapshot, error) {
	query := fmt.Sprintf(`SELECT %s FROM sales_flats t WHERE t.residential_complex = ? AND t.query_date = ? ORDER BY t.flat_id`, snapshotCols)
	return s.querySnapshots(ctx, query, complex, date)
}

// LatestSnapshot returns the most recent snapshot of one flat in the
// table for kind, archived or not, or nil when unknown.
func (s *Store) LatestSnapshot(ctx context.Context, flatID string, kind models.AdKind) (*models.Snapshot, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s t WHERE t.flat_id = ? ORDER BY t.query_date DESC LIMIT 1`,
		snapshotCols, tableFor(kind))
	snaps, err := s.querySnapshots(ctx, query, flatID)
	if err != nil || len(snaps) == 0 {
		return nil, err
	}
	return &snaps[0], nil
}

func (s *Store) querySnapshots(ctx context.Context, query string, args ...any) ([]models.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []models.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func scanSnapshot(rows *sql.Rows) (models.Snapshot, error) {
	var (
		snap                              models.Snapshot
		complex, parking, desc, city, url sql.NullString
		floor, totalFloors, year          sql.NullInt64
		published, created, scraped, upd  sql.NullTime
		flatType                          string
	)
	err := rows.Scan(&snap.ID, &snap.FlatID, &snap.QueryDate, &snap.Price, &snap.Area, &flatType,
		&complex, &floor, &totalFloors, &year, &parking, &desc, &snap.Archived,
		&published, &created, &scraped, &upd, &city, &url)
	if err != nil {
		return snap, err
	}
	snap.FlatType = models.FlatType(flatType)
	snap.ResidentialComplex = complex.String
	snap.Floor = int(floor.Int64)
	snap.TotalFloors = int(totalFloors.Int64)
	snap.ConstructionYear = int(year.Int64)
	snap.Parking = parking.String
	snap.Description = desc.String
	snap.City = city.String
	snap.URL = url.String
	snap.PublishedAt = published.Time
	snap.CreatedAt = created.Time
	snap.ScrapedAt = scraped.Time
	snap.UpdatedAt = upd.Time
	return snap, nil
}
