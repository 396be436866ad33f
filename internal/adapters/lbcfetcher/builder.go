package lbcfetcher

import (
	"encoding/json"
	"fmt"

	"leboncoin-parser-service/internal/constants"
	"leboncoin-parser-service/internal/core/domain"
)

// Request body shapes of the finder API.

type searchPayload struct {
	Filters   searchFilters `json:"filters"`
	Limit     int           `json:"limit"`
	Offset    int           `json:"offset"`
	SortBy    string        `json:"sort_by"`
	SortOrder string        `json:"sort_order"`
}

type searchFilters struct {
	Category map[string]string      `json:"category"`
	Enums    map[string][]string    `json:"enums"`
	Keywords *keywordsFilter        `json:"keywords,omitempty"`
	Location *locationFilter        `json:"location,omitempty"`
	Ranges   map[string]rangeValue  `json:"ranges,omitempty"`
}

type keywordsFilter struct {
	Text string `json:"text"`
}

type locationFilter struct {
	Locations []cityLocation `json:"locations"`
}

type cityLocation struct {
	LocationType string  `json:"locationType"`
	City         string  `json:"city"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	RadiusM      int     `json:"radius"`
}

type rangeValue struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

// buildSearchPayload translates the criteria plus a 1-based page number into
// the finder API request body. The category is pinned to bureaux & commerces.
func buildSearchPayload(criteria domain.SearchCriteria, page int) ([]byte, error) {
	if page < 1 {
		return nil, fmt.Errorf("page must be >= 1, got %d", page)
	}

	limit := criteria.AdsPerPage
	if limit <= 0 || limit > constants.MaxAdsPerPage {
		limit = constants.MaxAdsPerPage
	}

	payload := searchPayload{
		Filters: searchFilters{
			Category: map[string]string{"id": constants.CategoryBureauxCommerces},
			Enums:    map[string][]string{"ad_type": {constants.AdTypeOffer}},
		},
		Limit:     limit,
		Offset:    (page - 1) * limit,
		SortBy:    constants.SortByTime,
		SortOrder: constants.SortOrderDesc,
	}

	switch criteria.OwnerType {
	case domain.OwnerTypePro, domain.OwnerTypePrivate:
		payload.Filters.Enums["owner_type"] = []string{criteria.OwnerType}
	}

	if criteria.Text != "" {
		payload.Filters.Keywords = &keywordsFilter{Text: criteria.Text}
	}

	if criteria.HasLocation() {
		payload.Filters.Location = &locationFilter{
			Locations: []cityLocation{{
				LocationType: "city",
				City:         criteria.City,
				Lat:          criteria.Latitude,
				Lng:          criteria.Longitude,
				RadiusM:      criteria.RadiusM,
			}},
		}
	}

	ranges := make(map[string]rangeValue)
	if r, ok := buildRange(criteria.MinPrice, criteria.MaxPrice); ok {
		ranges["price"] = r
	}
	if r, ok := buildRange(criteria.MinSurface, criteria.MaxSurface); ok {
		ranges["square"] = r
	}
	if len(ranges) > 0 {
		payload.Filters.Ranges = ranges
	}

	return json.Marshal(payload)
}

func buildRange(min, max int) (rangeValue, bool) {
	var r rangeValue
	if min > 0 {
		r.Min = &min
	}
	if max > 0 {
		r.Max = &max
	}
	return r, r.Min != nil || r.Max != nil
}
