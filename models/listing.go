package models

import "time"

// FlatType buckets listings by bedroom count. Values are persisted as-is.
type FlatType string

const (
	FlatTypeStudio  FlatType = "studio"
	FlatType1BR     FlatType = "1br"
	FlatType2BR     FlatType = "2br"
	FlatType3BRPlus FlatType = "3br+"
)

func (t FlatType) Valid() bool {
	switch t {
	case FlatTypeStudio, FlatType1BR, FlatType2BR, FlatType3BRPlus:
		return true
	}
	return false
}

// AdKind distinguishes monthly-rent advertisements from outright sales.
// It selects both the upstream search URL and the snapshot table.
type AdKind string

const (
	AdKindRental AdKind = "rental"
	AdKindSale   AdKind = "sale"
)

func (k AdKind) Valid() bool {
	return k == AdKindRental || k == AdKindSale
}

// Listing is the canonical in-memory form of one advertisement.
// Optional fields use zero values: Floor/TotalFloors/ConstructionYear 0
// and ResidentialComplex/Parking/City "" mean "not present upstream".
type Listing struct {
	FlatID             string    `json:"flat_id"`
	IsRental           bool      `json:"is_rental"`
	Price              int64     `json:"price"` // whole tenge
	Area               float64   `json:"area"`  // m²
	FlatType           FlatType  `json:"flat_type"`
	ResidentialComplex string    `json:"residential_complex,omitempty"`
	Floor              int       `json:"floor,omitempty"`
	TotalFloors        int       `json:"total_floors,omitempty"`
	ConstructionYear   int       `json:"construction_year,omitempty"`
	Parking            string    `json:"parking,omitempty"`
	Description        string    `json:"description"`
	Archived           bool      `json:"archived"`
	PublishedAt        time.Time `json:"published_at"`
	CreatedAt          time.Time `json:"created_at"`
	ScrapedAt          time.Time `json:"scraped_at"`
	City               string    `json:"city,omitempty"`
}

// Snapshot is one (listing, calendar day) pair as stored. QueryDate is
// the ingestion day in UTC, formatted as QueryDateLayout; (FlatID,
// QueryDate) is unique per table.
type Snapshot struct {
	ID int64 `json:"id"`
	Listing
	QueryDate string    `json:"query_date"`
	URL       string    `json:"url"`
	UpdatedAt time.Time `json:"updated_at"`
}

const QueryDateLayout = "2006-01-02"

// QueryDateOf formats t as a snapshot query date (UTC calendar day).
func QueryDateOf(t time.Time) string {
	return t.UTC().Format(QueryDateLayout)
}
