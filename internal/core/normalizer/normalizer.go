package normalizer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"leboncoin-parser-service/internal/constants"
	"leboncoin-parser-service/internal/core/domain"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const maxDescriptionRunes = 500

var (
	// digitsRegexp pulls the first integer out of free-form values
	// like "120 m²".
	digitsRegexp = regexp.MustCompile(`\d+`)
	// htmlTagRegexp strips markup left in ad bodies.
	htmlTagRegexp = regexp.MustCompile(`<[^>]+>`)
	// spaceRegexp collapses runs of whitespace.
	spaceRegexp = regexp.MustCompile(`\s+`)

	frenchTitle = cases.Title(language.French)
)

// Date layouts seen in finder API responses.
var publicationDateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Normalizer turns untrusted RawAd records into validated Listings.
// Same input always yields the same Listing or the same error classification;
// the only injected dependency is the clock used for the scraped-at stamp.
type Normalizer struct {
	now func() time.Time
}

func New() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewWithClock is used by tests that need a deterministic scraped-at value.
func NewWithClock(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

// Normalize maps one raw record to a Listing. Withdrawn records come back as
// domain.ErrDeleted, records failing required-field validation as
// domain.ErrMalformed; both are wrapped with the reason.
func (n *Normalizer) Normalize(raw *domain.RawAd) (*domain.Listing, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: nil record", domain.ErrMalformed)
	}

	if err := checkWithdrawn(raw); err != nil {
		return nil, err
	}

	if raw.ListID <= 0 {
		return nil, fmt.Errorf("%w: missing list_id", domain.ErrMalformed)
	}
	if strings.TrimSpace(raw.URL) == "" {
		return nil, fmt.Errorf("%w: missing url (list_id=%d)", domain.ErrMalformed, raw.ListID)
	}

	publishedAt, err := parsePublicationDate(raw.FirstPublicationDate)
	if err != nil {
		return nil, fmt.Errorf("%w: bad first_publication_date %q (list_id=%d)",
			domain.ErrMalformed, raw.FirstPublicationDate, raw.ListID)
	}

	location, err := normalizeLocation(raw.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v (list_id=%d)", domain.ErrMalformed, err, raw.ListID)
	}

	attrs := attributesToMap(raw.Attributes)

	listing := &domain.Listing{
		ID:           strconv.FormatInt(raw.ListID, 10),
		Title:        normalizeText(raw.Subject),
		Description:  normalizeDescription(raw.Body),
		Price:        priceFromArray(raw.Price),
		Rent:         amountFromAttributes(attrs, constants.RentAttributeKeys),
		Surface:      surfaceFromAttributes(attrs),
		PropertyType: labelFromAttributes(attrs, constants.PropertyTypeAttributeKeys),
		Location:     location,
		PublishedAt:  publishedAt,
		ExpiresAt:    optionalDate(raw.ExpirationDate),
		Category:     raw.CategoryName,
		Status:       domain.StatusActive,
		Favorites:    raw.Favorites,
		SellerKind:   sellerKind(raw.Owner),
		HasPhone:     raw.HasPhone,
		URL:          strings.TrimSpace(raw.URL),
		Images:       imageURLs(raw.Images),
		EnergyClass:  labelFromAttributes(attrs, constants.EnergyClassAttributeKeys),
		GES:          labelFromAttributes(attrs, constants.GESAttributeKeys),
		Furnished:    labelFromAttributes(attrs, constants.FurnishedAttributeKeys),
		ScrapedAt:    n.now(),
	}

	if raw.Owner != nil {
		listing.SellerName = normalizeText(raw.Owner.Name)
	}

	return listing, nil
}

// checkWithdrawn detects deleted or withdrawn records: either an explicit
// non-active status, or a record lacking every display field.
func checkWithdrawn(raw *domain.RawAd) error {
	status := strings.ToLower(strings.TrimSpace(raw.Status))
	switch status {
	case "", domain.StatusActive:
		// fall through to the display-field check
	case domain.StatusDeleted, domain.StatusInactive, "archived", "paused":
		return fmt.Errorf("%w: status %q (list_id=%d)", domain.ErrDeleted, status, raw.ListID)
	default:
		return fmt.Errorf("%w: status %q (list_id=%d)", domain.ErrDeleted, status, raw.ListID)
	}

	if strings.TrimSpace(raw.Subject) == "" && strings.TrimSpace(raw.Body) == "" {
		return fmt.Errorf("%w: record has no display fields (list_id=%d)", domain.ErrDeleted, raw.ListID)
	}
	return nil
}

func normalizeLocation(raw *domain.RawLocation) (domain.Location, error) {
	if raw == nil {
		return domain.Location{}, fmt.Errorf("missing location")
	}
	city := strings.TrimSpace(raw.City)
	if city == "" {
		return domain.Location{}, fmt.Errorf("missing location.city")
	}

	return domain.Location{
		Address:    normalizeText(raw.Address),
		City:       frenchTitle.String(strings.ToLower(city)),
		PostalCode: strings.TrimSpace(raw.Zipcode),
		Department: normalizeText(raw.DepartmentName),
		Region:     normalizeText(raw.RegionName),
		Latitude:   raw.Lat,
		Longitude:  raw.Lng,
	}, nil
}

func sellerKind(owner *domain.RawOwner) string {
	if owner != nil && strings.EqualFold(strings.TrimSpace(owner.Type), domain.SellerKindPro) {
		return domain.SellerKindPro
	}
	return domain.SellerKindPrivate
}

func parsePublicationDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range publicationDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", value)
}

func optionalDate(value string) *time.Time {
	t, err := parsePublicationDate(value)
	if err != nil {
		return nil
	}
	return &t
}

// priceFromArray reads the finder API price field, which arrives as a
// one-element array. Absence stays nil; it is never coerced to zero.
func priceFromArray(price []float64) *float64 {
	if len(price) == 0 {
		return nil
	}
	v := price[0]
	if v < 0 {
		return nil
	}
	return &v
}

func attributesToMap(attrs []domain.RawAttribute) map[string]domain.RawAttribute {
	m := make(map[string]domain.RawAttribute, len(attrs))
	for _, a := range attrs {
		if a.Key != "" && a.Value != "" {
			m[a.Key] = a
		}
	}
	return m
}

// labelFromAttributes returns the human readable label for the first key
// present, preferring value_label over the technical value.
func labelFromAttributes(attrs map[string]domain.RawAttribute, keys []string) string {
	for _, key := range keys {
		if a, ok := attrs[key]; ok {
			if a.ValueLabel != "" {
				return a.ValueLabel
			}
			return a.Value
		}
	}
	return ""
}

func surfaceFromAttributes(attrs map[string]domain.RawAttribute) *float64 {
	for _, key := range constants.SurfaceAttributeKeys {
		a, ok := attrs[key]
		if !ok {
			continue
		}
		match := digitsRegexp.FindString(a.Value)
		if match == "" {
			continue
		}
		v, err := strconv.ParseFloat(match, 64)
		if err != nil || v <= 0 {
			continue
		}
		return &v
	}
	return nil
}

func amountFromAttributes(attrs map[string]domain.RawAttribute, keys []string) *float64 {
	for _, key := range keys {
		a, ok := attrs[key]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(a.Value, ",", "."), 64)
		if err != nil || v < 0 {
			continue
		}
		return &v
	}
	return nil
}

func imageURLs(images *domain.RawImages) []string {
	if images == nil || len(images.URLs) == 0 {
		return nil
	}
	urls := make([]string, 0, len(images.URLs))
	for _, u := range images.URLs {
		if strings.TrimSpace(u) != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// normalizeText trims and collapses whitespace.
func normalizeText(s string) string {
	return strings.TrimSpace(spaceRegexp.ReplaceAllString(s, " "))
}

// normalizeDescription additionally strips markup and caps the length, so the
// CSV never carries raw HTML or multi-kilobyte bodies.
func normalizeDescription(s string) string {
	s = htmlTagRegexp.ReplaceAllString(s, " ")
	s = normalizeText(s)
	runes := []rune(s)
	if len(runes) > maxDescriptionRunes {
		return string(runes[:maxDescriptionRunes])
	}
	return s
}
