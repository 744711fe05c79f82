package models

import "time"

// ResidentialComplex (JK) is the primary grouping key for market
// statistics. ComplexID is the opaque upstream id; Name is what the
// portal displays and is NOT unique across cities.
type ResidentialComplex struct {
	ID        int64     `json:"id"`
	ComplexID string    `json:"complex_id"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	District  string    `json:"district"`
	Developer string    `json:"developer,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DeveloperCategory string

const (
	DeveloperGood        DeveloperCategory = "good"
	DeveloperBad         DeveloperCategory = "bad"
	DeveloperIndifferent DeveloperCategory = "indifferent"
)

type Developer struct {
	Name     string            `json:"name"`
	Category DeveloperCategory `json:"category"`
}

type BlacklistedComplex struct {
	ComplexID     string    `json:"complex_id"`
	Name          string    `json:"name"`
	Notes         string    `json:"notes"`
	BlacklistedAt time.Time `json:"blacklisted_at"`
}

type BlacklistedDistrict struct {
	City     string `json:"city"`
	District string `json:"district"`
}

// Favorite marks a flat the operator is tracking. Flat data is never
// duplicated here; reads join back to the latest snapshot.
type Favorite struct {
	FlatID  string    `json:"flat_id"`
	Kind    AdKind    `json:"flat_type"`
	Notes   string    `json:"notes"`
	AddedAt time.Time `json:"added_at"`
}
