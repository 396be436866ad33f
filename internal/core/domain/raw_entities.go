package domain

// RawAd is one untrusted record exactly as the search API returned it.
// Every field may be missing, empty or of an unexpected shape; nothing here
// is validated until the normalizer has looked at it.
type RawAd struct {
	ListID               int64          `json:"list_id"`
	Subject              string         `json:"subject"`
	Body                 string         `json:"body"`
	URL                  string         `json:"url"`
	Status               string         `json:"status"`
	CategoryID           string         `json:"category_id"`
	CategoryName         string         `json:"category_name"`
	AdType               string         `json:"ad_type"`
	FirstPublicationDate string         `json:"first_publication_date"`
	ExpirationDate       string         `json:"expiration_date"`
	Price                []float64      `json:"price"`
	Favorites            int            `json:"favorites"`
	HasPhone             bool           `json:"has_phone"`
	Attributes           []RawAttribute `json:"attributes"`
	Location             *RawLocation   `json:"location"`
	Owner                *RawOwner      `json:"owner"`
	Images               *RawImages     `json:"images"`
}

// RawAttribute is one key/value pair from the ad attribute list. ValueLabel
// carries the human readable form when the source provides one.
type RawAttribute struct {
	Key        string `json:"key"`
	Value      string `json:"value"`
	ValueLabel string `json:"value_label"`
}

type RawLocation struct {
	Address        string   `json:"address"`
	City           string   `json:"city"`
	Zipcode        string   `json:"zipcode"`
	DepartmentName string   `json:"department_name"`
	RegionName     string   `json:"region_name"`
	Lat            *float64 `json:"lat"`
	Lng            *float64 `json:"lng"`
}

type RawOwner struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type RawImages struct {
	NbImages int      `json:"nb_images"`
	URLs     []string `json:"urls"`
}

// SearchPage is one batch of raw records returned by one search request.
type SearchPage struct {
	Records []RawAd
	// HasMore reports whether the source claims further pages exist.
	HasMore bool
	// TotalPages as reported by the source, zero when unknown.
	TotalPages int
}
