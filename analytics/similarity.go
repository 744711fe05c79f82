package analytics

import (
	"math"

	"github.com/rs/zerolog/log"

	"krisha_radar/models"
)

// DefaultAreaTolerance is the relative area deviation two listings may
// have and still count as comparable.
const DefaultAreaTolerance = 0.20

// flatTypesComparable reports whether two flat types count as the same
// market segment. Studios and one-bedroom flats are confusable: the
// portal's free-text descriptions frequently mislabel one as the other.
func flatTypesComparable(a, b models.FlatType) bool {
	if a == b {
		return true
	}
	confusable := func(t models.FlatType) bool {
		return t == models.FlatTypeStudio || t == models.FlatType1BR
	}
	return confusable(a) && confusable(b)
}

// SimilarSales filters sales down to those comparable with rental r:
// same (or confusable) flat type and area within tolerance, inclusive.
// Listings with missing area are skipped.
func SimilarSales(r models.Snapshot, sales []models.Snapshot, tolerance float64) []models.Snapshot {
	if tolerance <= 0 {
		tolerance = DefaultAreaTolerance
	}
	if r.Area <= 0 {
		log.Debug().Str("flat_id", r.FlatID).Msg("rental has no area, no similars")
		return nil
	}

	var similars []models.Snapshot
	for _, s := range sales {
		if s.Area <= 0 {
			continue
		}
		if !flatTypesComparable(s.FlatType, r.FlatType) {
			continue
		}
		larger := math.Max(s.Area, r.Area)
		if math.Abs(s.Area-r.Area)/larger <= tolerance {
			similars = append(similars, s)
		}
	}
	return similars
}
