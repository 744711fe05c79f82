// Package services holds the business-level glue between the store,
// the scraper and the analytics engine: directory lookups over the
// complex catalog and the cross-complex opportunity run.
package services

import (
	"context"
	"strings"
	"unicode"

	"krisha_radar/models"
)

// DirectoryStore is the catalog surface the directory needs.
type DirectoryStore interface {
	AllComplexes(ctx context.Context) ([]models.ResidentialComplex, error)
	ComplexesForCity(ctx context.Context, city string) ([]models.ResidentialComplex, error)
	GetComplexByID(ctx context.Context, complexID string) (*models.ResidentialComplex, error)
	BlacklistedComplexes(ctx context.Context) ([]models.BlacklistedComplex, error)
	BlacklistedDistricts(ctx context.Context, city string) ([]models.BlacklistedDistrict, error)
}

// Directory resolves user-facing complex names to catalog entries.
// Matching happens in Go, not SQL: SQLite's NOCASE collation is
// ASCII-only and the catalog is mostly Cyrillic.
type Directory struct {
	store DirectoryStore
}

func NewDirectory(store DirectoryStore) *Directory {
	return &Directory{store: store}
}

// nameSuffixes are stripped during normalization, most specific first.
var nameSuffixes = []string{
	" apartments",
	" apartment",
	" жк",
	" жилой комплекс",
	" residential complex",
	" complex",
	" квартал",
	" quarter",
}

// NormalizeComplexName lower-cases, trims and strips marketing
// suffixes. Stripping loops until the name stops changing, so the
// function is idempotent regardless of suffix stacking order.
func NormalizeComplexName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	for {
		stripped := s
		for _, suffix := range nameSuffixes {
			stripped = strings.TrimSpace(strings.TrimSuffix(stripped, suffix))
		}
		if stripped == s {
			return s
		}
		s = stripped
	}
}

func endsInSuffix(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, suffix := range nameSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

func isTitleOrAllCaps(name string) bool {
	hasLetter := false
	allCaps := true
	titled := true
	for _, word := range strings.Fields(name) {
		runes := []rune(word)
		first := true
		for _, r := range runes {
			if !unicode.IsLetter(r) {
				continue
			}
			hasLetter = true
			if !unicode.IsUpper(r) {
				allCaps = false
				if first {
					titled = false
				}
			}
			first = false
		}
	}
	return hasLetter && (titled || allCaps)
}

// representativeScore ranks variants of the same normalized name.
// Longer, properly-cased names without marketing suffixes win;
// matching the operator's search term as a prefix wins hardest.
func representativeScore(name, searchTerm string) int {
	score := len(name)
	if isTitleOrAllCaps(name) {
		score += 10
	}
	if !endsInSuffix(name) {
		score += 5
	}
	if searchTerm != "" && strings.HasPrefix(strings.ToLower(name), strings.ToLower(searchTerm)) {
		score += 20
	}
	return score
}

// dedupe groups complexes by normalized name and keeps the best
// representative of each group.
func dedupe(matches []models.ResidentialComplex, searchTerm string) []models.ResidentialComplex {
	type group struct {
		best  models.ResidentialComplex
		score int
	}
	groups := make(map[string]*group)
	var order []string
	for _, c := range matches {
		key := NormalizeComplexName(c.Name)
		score := representativeScore(c.Name, searchTerm)
		g, ok := groups[key]
		if !ok {
			groups[key] = &group{best: c, score: score}
			order = append(order, key)
			continue
		}
		if score > g.score {
			g.best = c
			g.score = score
		}
	}

	out := make([]models.ResidentialComplex, 0, len(groups))
	for _, key := range order {
		out = append(out, groups[key].best)
	}
	return out
}

// FindByName resolves a display name: case-insensitive exact match
// first, then substring search with deduplication. Returns nil when
// nothing matches.
func (d *Directory) FindByName(ctx context.Context, name string) (*models.ResidentialComplex, error) {
	complexes, err := d.store.AllComplexes(ctx)
	if err != nil {
		return nil, err
	}

	for i := range complexes {
		if strings.EqualFold(complexes[i].Name, name) {
			return &complexes[i], nil
		}
	}

	candidates := dedupe(substringMatches(complexes, name), name)
	if len(candidates) == 0 {
		return nil, nil
	}
	best := candidates[0]
	bestScore := representativeScore(best.Name, name)
	for _, c := range candidates[1:] {
		if score := representativeScore(c.Name, name); score > bestScore {
			best = c
			bestScore = score
		}
	}
	return &best, nil
}

// Search returns every substring match, deduplicated.
func (d *Directory) Search(ctx context.Context, name string) ([]models.ResidentialComplex, error) {
	complexes, err := d.store.AllComplexes(ctx)
	if err != nil {
		return nil, err
	}
	return dedupe(substringMatches(complexes, name), name), nil
}

func substringMatches(complexes []models.ResidentialComplex, name string) []models.ResidentialComplex {
	needle := strings.ToLower(strings.TrimSpace(name))
	var matches []models.ResidentialComplex
	for _, c := range complexes {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			matches = append(matches, c)
		}
	}
	return matches
}

// GetByComplexID looks up by the opaque upstream id.
func (d *Directory) GetByComplexID(ctx context.Context, id string) (*models.ResidentialComplex, error) {
	return d.store.GetComplexByID(ctx, id)
}

// ListForCity returns the full catalog for one city.
func (d *Directory) ListForCity(ctx context.Context, city string) ([]models.ResidentialComplex, error) {
	return d.store.ComplexesForCity(ctx, city)
}

// ListExcludingBlacklists returns the city catalog minus blacklisted
// complex names and blacklisted (city, district) pairs. This is the
// working set of every ingestion and analytics run.
func (d *Directory) ListExcludingBlacklists(ctx context.Context, city string) ([]models.ResidentialComplex, error) {
	complexes, err := d.store.ComplexesForCity(ctx, city)
	if err != nil {
		return nil, err
	}
	blacklisted, err := d.store.BlacklistedComplexes(ctx)
	if err != nil {
		return nil, err
	}
	districts, err := d.store.BlacklistedDistricts(ctx, city)
	if err != nil {
		return nil, err
	}

	badNames := make(map[string]bool, len(blacklisted))
	for _, b := range blacklisted {
		badNames[NormalizeComplexName(b.Name)] = true
	}
	badDistricts := make(map[string]bool, len(districts))
	for _, d := range districts {
		badDistricts[strings.ToLower(d.District)] = true
	}

	out := make([]models.ResidentialComplex, 0, len(complexes))
	for _, c := range complexes {
		if badNames[NormalizeComplexName(c.Name)] {
			continue
		}
		if c.District != "" && badDistricts[strings.ToLower(c.District)] {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
