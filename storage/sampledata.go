package storage

import (
	"context"
	"time"

	"krisha_radar/models"
)

// SeedSampleData loads a small Almaty dataset so analytics commands
// produce output on a fresh database: three complexes, rentals and
// sales across two scrape days, one deliberately under-market sale.
func (s *Store) SeedSampleData(ctx context.Context) error {
	complexes := []models.ResidentialComplex{
		{ComplexID: "1001", Name: "Meridian", City: "almaty", District: "Бостандыкский", Developer: "BI Group"},
		{ComplexID: "1002", Name: "Koktem Grand", City: "almaty", District: "Бостандыкский", Developer: "Bazis-A"},
		{ComplexID: "1003", Name: "Akbulak Riviera", City: "almaty", District: "Алатауский"},
	}
	for i := range complexes {
		if err := s.UpsertComplex(ctx, &complexes[i]); err != nil {
			return err
		}
	}

	today := models.QueryDateOf(time.Now())
	lastWeek := models.QueryDateOf(time.Now().AddDate(0, 0, -7))

	type row struct {
		flatID  string
		price   int64
		area    float64
		ftype   models.FlatType
		complex string
		floor   int
		total   int
		year    int
	}

	sales := []row{
		{"700000001", 42_000_000, 45.0, models.FlatType1BR, "Meridian", 5, 12, 2019},
		{"700000002", 44_500_000, 47.5, models.FlatType1BR, "Meridian", 9, 12, 2019},
		{"700000003", 43_800_000, 46.0, models.FlatType1BR, "Meridian", 3, 12, 2019},
		// under-market: well below the 1br median in Meridian
		{"700000004", 33_000_000, 44.0, models.FlatType1BR, "Meridian", 2, 12, 2019},
		{"700000005", 68_000_000, 78.0, models.FlatType3BRPlus, "Meridian", 7, 12, 2019},
		{"700000010", 39_000_000, 43.0, models.FlatType1BR, "Koktem Grand", 4, 9, 2015},
		{"700000011", 41_200_000, 44.5, models.FlatType1BR, "Koktem Grand", 6, 9, 2015},
		{"700000012", 55_000_000, 62.0, models.FlatType2BR, "Koktem Grand", 2, 9, 2015},
		{"700000020", 24_000_000, 30.0, models.FlatTypeStudio, "Akbulak Riviera", 8, 16, 2022},
		{"700000021", 25_500_000, 31.5, models.FlatTypeStudio, "Akbulak Riviera", 12, 16, 2022},
	}
	rentals := []row{
		{"800000001", 350_000, 45.0, models.FlatType1BR, "Meridian", 5, 12, 2019},
		{"800000002", 380_000, 48.0, models.FlatType1BR, "Meridian", 10, 12, 2019},
		{"800000003", 600_000, 78.0, models.FlatType3BRPlus, "Meridian", 6, 12, 2019},
		{"800000010", 320_000, 43.0, models.FlatType1BR, "Koktem Grand", 3, 9, 2015},
		{"800000011", 450_000, 62.0, models.FlatType2BR, "Koktem Grand", 7, 9, 2015},
		{"800000020", 220_000, 30.0, models.FlatTypeStudio, "Akbulak Riviera", 9, 16, 2022},
	}

	insert := func(rows []row, kind models.AdKind, date string, drift int64) error {
		for _, r := range rows {
			l := &models.Listing{
				FlatID:             r.flatID,
				IsRental:           kind == models.AdKindRental,
				Price:              r.price + drift,
				Area:               r.area,
				FlatType:           r.ftype,
				ResidentialComplex: r.complex,
				Floor:              r.floor,
				TotalFloors:        r.total,
				ConstructionYear:   r.year,
				Description:        "sample listing",
				ScrapedAt:          time.Now().UTC(),
				City:               "almaty",
			}
			url := "https://krisha.kz/a/show/" + r.flatID
			if err := s.upsertSnapshot(ctx, tableFor(kind), l, url, date); err != nil {
				return err
			}
		}
		return nil
	}

	if err := insert(sales, models.AdKindSale, lastWeek, -500_000); err != nil {
		return err
	}
	if err := insert(sales, models.AdKindSale, today, 0); err != nil {
		return err
	}
	if err := insert(rentals, models.AdKindRental, today, 0); err != nil {
		return err
	}

	fx := &models.FXRate{Currency: "USD", Rate: 478.5, FetchedAt: time.Now().UTC()}
	return s.SaveFXRate(ctx, fx)
}
