package domain

import "time"

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusDeleted  = "deleted"
)

const (
	SellerKindPro     = "pro"
	SellerKindPrivate = "private"
)

// Location holds the structured place information of a listing.
// Only City is guaranteed to be present on a validated Listing.
type Location struct {
	Address    string
	City       string
	PostalCode string
	Department string
	Region     string
	Latitude   *float64
	Longitude  *float64
}

// Listing is one normalized classified ad. It is built exactly once per raw
// record and never mutated afterwards; optional numeric fields are pointers
// so that "not published" stays distinct from zero.
type Listing struct {
	ID           string
	Title        string
	Description  string
	Price        *float64
	Rent         *float64
	Surface      *float64
	PropertyType string
	Location     Location
	PublishedAt  time.Time
	ExpiresAt    *time.Time
	Category     string
	Status       string
	Favorites    int

	SellerName string
	SellerKind string
	HasPhone   bool
	Contact    *string

	URL    string
	Images []string

	EnergyClass string
	GES         string
	Furnished   string

	ScrapedAt time.Time
}
