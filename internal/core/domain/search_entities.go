package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

const (
	OwnerTypePro     = "pro"
	OwnerTypePrivate = "private"
	OwnerTypeAll     = "all"
)

// SearchCriteria defines one search against the source: a query, a location
// and the range filters. Two runs with equal criteria share a fingerprint and
// may therefore resume each other.
type SearchCriteria struct {
	Text       string  `json:"text"`
	City       string  `json:"city"`
	Latitude   float64 `json:"lat"`
	Longitude  float64 `json:"lng"`
	RadiusM    int     `json:"radius_m"`
	MinPrice   int     `json:"min_price"`
	MaxPrice   int     `json:"max_price"`
	MinSurface int     `json:"min_surface"`
	MaxSurface int     `json:"max_surface"`
	OwnerType  string  `json:"owner_type"`
	AdsPerPage int     `json:"ads_per_page"`
}

// Fingerprint returns a stable hash identifying this set of criteria.
// A persisted cursor only applies to a run whose criteria hash to the same
// value; anything else forces a fresh crawl.
func (c SearchCriteria) Fingerprint() string {
	// json.Marshal over a struct keeps field order, so the hash is stable
	// across processes for equal criteria.
	payload, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// HasLocation reports whether the criteria carry usable coordinates.
func (c SearchCriteria) HasLocation() bool {
	return c.City != "" && (c.Latitude != 0 || c.Longitude != 0)
}
