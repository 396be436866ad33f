package constants

// Finder API endpoints.
const (
	SearchAPIURL    = "https://api.leboncoin.fr/finder/search"
	SearchAPIDomain = "api.leboncoin.fr"
)

// Category IDs as used by the finder API.
//
//	9  - ventes immobilières
//	10 - locations
//	11 - colocations
//	13 - bureaux & commerces
const (
	CategoryBureauxCommerces = "13"
)

const (
	AdTypeOffer = "offer"
)

// Sorting. Listings are requested newest-first; the resume logic relies on
// the source keeping this ordering stable for identical criteria.
const (
	SortByTime    = "time"
	SortOrderDesc = "desc"
)

// MaxAdsPerPage is the largest page size the finder API accepts.
const MaxAdsPerPage = 35

// Attribute keys probed when extracting typed fields from the free-form
// attribute list. The source taxonomy drifts, so each field has fallbacks.
var (
	SurfaceAttributeKeys      = []string{"square", "surface", "area"}
	PropertyTypeAttributeKeys = []string{"real_estate_type", "property_type", "type"}
	EnergyClassAttributeKeys  = []string{"energy_rate", "dpe", "energy_class"}
	GESAttributeKeys          = []string{"ges", "greenhouse_gas", "co2"}
	FurnishedAttributeKeys    = []string{"furnished", "meuble", "furnished_type"}
	RentAttributeKeys         = []string{"monthly_rent", "rent", "rental_price"}
)
