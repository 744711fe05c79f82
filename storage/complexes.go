package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"krisha_radar/models"
)

// UpsertComplex records a residential complex from the portal
// directory. City and district only overwrite existing values when
// non-empty, so a sparse re-scrape never erases what we already know.
func (s *Store) UpsertComplex(ctx context.Context, c *models.ResidentialComplex) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO residential_complexes (complex_id, name, city, district, developer, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(complex_id) DO UPDATE SET
			name = excluded.name,
			city = CASE WHEN excluded.city != '' THEN excluded.city ELSE residential_complexes.city END,
			district = CASE WHEN excluded.district != '' THEN excluded.district ELSE residential_complexes.district END,
			developer = CASE WHEN excluded.developer != '' THEN excluded.developer ELSE residential_complexes.developer END,
			updated_at = excluded.updated_at`,
		c.ComplexID, c.Name, c.City, c.District, c.Developer,
		time.Now().UTC(), time.Now().UTC())
	return err
}

// GetComplexByID looks a complex up by its upstream id. Returns nil
// when unknown.
func (s *Store) GetComplexByID(ctx context.Context, complexID string) (*models.ResidentialComplex, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, complex_id, name, city, district, developer, created_at, updated_at
		FROM residential_complexes WHERE complex_id = ?`, complexID)
	c, err := scanComplex(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// AllComplexes returns every known complex ordered by name.
func (s *Store) AllComplexes(ctx context.Context) ([]models.ResidentialComplex, error) {
	return s.queryComplexes(ctx, `
		SELECT id, complex_id, name, city, district, developer, created_at, updated_at
		FROM residential_complexes ORDER BY name`)
}

// ComplexesForCity returns the complexes recorded for one city.
func (s *Store) ComplexesForCity(ctx context.Context, city string) ([]models.ResidentialComplex, error) {
	return s.queryComplexes(ctx, `
		SELECT id, complex_id, name, city, district, developer, created_at, updated_at
		FROM residential_complexes WHERE city = ? ORDER BY name`, city)
}

func (s *Store) queryComplexes(ctx context.Context, query string, args ...any) ([]models.ResidentialComplex, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var complexes []models.ResidentialComplex
	for rows.Next() {
		c, err := scanComplex(rows)
		if err != nil {
			return nil, err
		}
		complexes = append(complexes, *c)
	}
	return complexes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComplex(row rowScanner) (*models.ResidentialComplex, error) {
	var (
		c                         models.ResidentialComplex
		city, district, developer sql.NullString
		created, updated          sql.NullTime
	)
	err := row.Scan(&c.ID, &c.ComplexID, &c.Name, &city, &district, &developer, &created, &updated)
	if err != nil {
		return nil, err
	}
	c.City = city.String
	c.District = district.String
	c.Developer = developer.String
	c.CreatedAt = created.Time
	c.UpdatedAt = updated.Time
	return &c, nil
}

// BlacklistComplex excludes a complex from analytics runs. Re-listing
// an already blacklisted complex refreshes the notes.
func (s *Store) BlacklistComplex(ctx context.Context, complexID, name, notes string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blacklisted_jks (complex_id, name, notes, blacklisted_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(complex_id) DO UPDATE SET
			name = excluded.name,
			notes = excluded.notes`,
		complexID, name, nullStr(notes), time.Now().UTC())
	return err
}

// UnblacklistComplex removes a complex from the blacklist. Unknown ids
// are a no-op.
func (s *Store) UnblacklistComplex(ctx context.Context, complexID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM blacklisted_jks WHERE complex_id = ?`, complexID)
	return err
}

// BlacklistedComplexes returns the blacklist ordered by name.
func (s *Store) BlacklistedComplexes(ctx context.Context) ([]models.BlacklistedComplex, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT complex_id, name, notes, blacklisted_at FROM blacklisted_jks ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.BlacklistedComplex
	for rows.Next() {
		var (
			b     models.BlacklistedComplex
			notes sql.NullString
			at    sql.NullTime
		)
		if err := rows.Scan(&b.ComplexID, &b.Name, &notes, &at); err != nil {
			return nil, err
		}
		b.Notes = notes.String
		b.BlacklistedAt = at.Time
		out = append(out, b)
	}
	return out, rows.Err()
}

// BlacklistDistrict excludes every complex of a district from analytics.
func (s *Store) BlacklistDistrict(ctx context.Context, city, district string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blacklisted_districts (city, district) VALUES (?, ?)
		ON CONFLICT(city, district) DO NOTHING`, city, district)
	return err
}

// UnblacklistDistrict removes a district blacklist entry.
func (s *Store) UnblacklistDistrict(ctx context.Context, city, district string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM blacklisted_districts WHERE city = ? AND district = ?`, city, district)
	return err
}

// BlacklistedDistricts returns the district blacklist for a city.
func (s *Store) BlacklistedDistricts(ctx context.Context, city string) ([]models.BlacklistedDistrict, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT city, district FROM blacklisted_districts WHERE city = ? ORDER BY district`, city)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.BlacklistedDistrict
	for rows.Next() {
		var b models.BlacklistedDistrict
		if err := rows.Scan(&b.City, &b.District); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpsertDeveloper records a developer with its category.
func (s *Store) UpsertDeveloper(ctx context.Context, d *models.Developer) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO real_estate_developers (name, category) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET category = excluded.category`,
		d.Name, string(d.Category))
	return err
}

// GetDeveloper returns the developer by exact name, or nil when unknown.
func (s *Store) GetDeveloper(ctx context.Context, name string) (*models.Developer, error) {
	var d models.Developer
	var category string
	err := s.db.QueryRowContext(ctx, `
		SELECT name, category FROM real_estate_developers WHERE name = ?`, name).
		Scan(&d.Name, &category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.Category = models.DeveloperCategory(category)
	return &d, nil
}
