package normalizer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leboncoin-parser-service/internal/core/domain"
)

var testClock = func() time.Time {
	return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
}

func validRaw() *domain.RawAd {
	lat, lng := 45.76, 4.83
	return &domain.RawAd{
		ListID:               2912345678,
		Subject:              "  Local commercial   centre-ville ",
		Body:                 "<p>Belle boutique</p>  avec   vitrine",
		URL:                  "https://www.leboncoin.fr/ad/bureaux_commerces/2912345678",
		Status:               "active",
		CategoryName:         "Bureaux & Commerces",
		FirstPublicationDate: "2026-03-01 10:30:00",
		ExpirationDate:       "2026-05-01 10:30:00",
		Price:                []float64{250000},
		Favorites:            7,
		HasPhone:             true,
		Attributes: []domain.RawAttribute{
			{Key: "square", Value: "120 m²", ValueLabel: "120 m²"},
			{Key: "real_estate_type", Value: "shop", ValueLabel: "Boutique"},
			{Key: "energy_rate", Value: "c", ValueLabel: "C"},
			{Key: "ges", Value: "b", ValueLabel: "B"},
			{Key: "monthly_rent", Value: "1500,50"},
		},
		Location: &domain.RawLocation{
			Address:        "12 rue de la République",
			City:           "LYON",
			Zipcode:        "69002",
			DepartmentName: "Rhône",
			RegionName:     "Auvergne-Rhône-Alpes",
			Lat:            &lat,
			Lng:            &lng,
		},
		Owner:  &domain.RawOwner{Type: "pro", Name: "Agence Dupont"},
		Images: &domain.RawImages{NbImages: 2, URLs: []string{"https://img.leboncoin.fr/a.jpg", "https://img.leboncoin.fr/b.jpg"}},
	}
}

func TestNormalizeMapsAllFields(t *testing.T) {
	n := NewWithClock(testClock)

	listing, err := n.Normalize(validRaw())
	require.NoError(t, err)

	assert.Equal(t, "2912345678", listing.ID)
	assert.Equal(t, "Local commercial centre-ville", listing.Title)
	assert.Equal(t, "Belle boutique avec vitrine", listing.Description)

	require.NotNil(t, listing.Price)
	assert.Equal(t, 250000.0, *listing.Price)
	require.NotNil(t, listing.Rent)
	assert.Equal(t, 1500.50, *listing.Rent)
	require.NotNil(t, listing.Surface)
	assert.Equal(t, 120.0, *listing.Surface)

	assert.Equal(t, "Boutique", listing.PropertyType)
	assert.Equal(t, "Lyon", listing.Location.City)
	assert.Equal(t, "69002", listing.Location.PostalCode)
	assert.Equal(t, "Rhône", listing.Location.Department)
	require.NotNil(t, listing.Location.Latitude)
	assert.Equal(t, 45.76, *listing.Location.Latitude)

	assert.Equal(t, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC), listing.PublishedAt)
	require.NotNil(t, listing.ExpiresAt)
	assert.Equal(t, time.Date(2026, 5, 1, 10, 30, 0, 0, time.UTC), *listing.ExpiresAt)

	assert.Equal(t, "Bureaux & Commerces", listing.Category)
	assert.Equal(t, domain.StatusActive, listing.Status)
	assert.Equal(t, 7, listing.Favorites)
	assert.Equal(t, domain.SellerKindPro, listing.SellerKind)
	assert.Equal(t, "Agence Dupont", listing.SellerName)
	assert.True(t, listing.HasPhone)
	assert.Equal(t, []string{"https://img.leboncoin.fr/a.jpg", "https://img.leboncoin.fr/b.jpg"}, listing.Images)
	assert.Equal(t, "C", listing.EnergyClass)
	assert.Equal(t, "B", listing.GES)
	assert.Equal(t, testClock(), listing.ScrapedAt)
}

func TestNormalizeIsDeterministic(t *testing.T) {
	n := NewWithClock(testClock)

	first, err := n.Normalize(validRaw())
	require.NoError(t, err)
	second, err := n.Normalize(validRaw())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNormalizeWithdrawnRecords(t *testing.T) {
	n := NewWithClock(testClock)

	tests := []struct {
		name   string
		mutate func(*domain.RawAd)
	}{
		{"deleted status", func(r *domain.RawAd) { r.Status = "deleted" }},
		{"inactive status", func(r *domain.RawAd) { r.Status = "inactive" }},
		{"archived status", func(r *domain.RawAd) { r.Status = "archived" }},
		{"no display fields", func(r *domain.RawAd) { r.Subject = ""; r.Body = "  " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.mutate(raw)

			_, err := n.Normalize(raw)
			assert.ErrorIs(t, err, domain.ErrDeleted)
		})
	}
}

func TestNormalizeMalformedRecords(t *testing.T) {
	n := NewWithClock(testClock)

	tests := []struct {
		name   string
		mutate func(*domain.RawAd)
	}{
		{"missing list_id", func(r *domain.RawAd) { r.ListID = 0 }},
		{"missing url", func(r *domain.RawAd) { r.URL = " " }},
		{"missing date", func(r *domain.RawAd) { r.FirstPublicationDate = "" }},
		{"garbage date", func(r *domain.RawAd) { r.FirstPublicationDate = "yesterday" }},
		{"missing location", func(r *domain.RawAd) { r.Location = nil }},
		{"missing city", func(r *domain.RawAd) { r.Location.City = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.mutate(raw)

			_, err := n.Normalize(raw)
			assert.ErrorIs(t, err, domain.ErrMalformed)
		})
	}

	t.Run("nil record", func(t *testing.T) {
		_, err := n.Normalize(nil)
		assert.ErrorIs(t, err, domain.ErrMalformed)
	})
}

func TestNormalizeAbsentPriceStaysNil(t *testing.T) {
	n := NewWithClock(testClock)

	raw := validRaw()
	raw.Price = nil
	raw.Attributes = nil

	listing, err := n.Normalize(raw)
	require.NoError(t, err)

	assert.Nil(t, listing.Price)
	assert.Nil(t, listing.Rent)
	assert.Nil(t, listing.Surface)
	assert.Empty(t, listing.PropertyType)
}

func TestNormalizeNegativePriceStaysNil(t *testing.T) {
	n := NewWithClock(testClock)

	raw := validRaw()
	raw.Price = []float64{-1}

	listing, err := n.Normalize(raw)
	require.NoError(t, err)
	assert.Nil(t, listing.Price)
}

func TestNormalizeDescriptionIsCapped(t *testing.T) {
	n := NewWithClock(testClock)

	raw := validRaw()
	raw.Body = strings.Repeat("très longue description ", 100)

	listing, err := n.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, 500, len([]rune(listing.Description)))
}

func TestNormalizeSurfaceFallbackKeys(t *testing.T) {
	n := NewWithClock(testClock)

	raw := validRaw()
	raw.Attributes = []domain.RawAttribute{{Key: "surface", Value: "85"}}

	listing, err := n.Normalize(raw)
	require.NoError(t, err)
	require.NotNil(t, listing.Surface)
	assert.Equal(t, 85.0, *listing.Surface)
}

func TestNormalizeSellerKindDefaultsToPrivate(t *testing.T) {
	n := NewWithClock(testClock)

	raw := validRaw()
	raw.Owner = nil

	listing, err := n.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.SellerKindPrivate, listing.SellerKind)
	assert.Empty(t, listing.SellerName)
}

func TestNormalizeRFC3339Date(t *testing.T) {
	n := NewWithClock(testClock)

	raw := validRaw()
	raw.FirstPublicationDate = "2026-03-01T10:30:00Z"

	listing, err := n.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC), listing.PublishedAt)
}
