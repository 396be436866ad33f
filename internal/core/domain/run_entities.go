package domain

import "time"

// RunState is the lifecycle state of one crawl run.
type RunState string

const (
	RunStateIdle      RunState = "idle"
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateAborted   RunState = "aborted"
)

// Cursor is the persisted pointer to the last durably processed listing.
// NextPage is the page the crawl was working on when the cursor was written;
// resuming there re-fetches at most one already-seen page, and the dedup set
// rebuilt from the output file keeps those rows from being written twice.
type Cursor struct {
	Fingerprint     string    `json:"fingerprint"`
	LastID          string    `json:"last_id"`
	LastPublishedAt time.Time `json:"last_published_at"`
	NextPage        int       `json:"next_page"`
	ListingsWritten int       `json:"listings_written"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// RunStats are the counters accumulated over one run.
type RunStats struct {
	PagesFetched             int `json:"pages_fetched"`
	ListingsSeen             int `json:"listings_seen"`
	ListingsWritten          int `json:"listings_written"`
	ListingsSkippedDeleted   int `json:"listings_skipped_deleted"`
	ListingsSkippedDuplicate int `json:"listings_skipped_duplicate"`
	ErrorsRetried            int `json:"errors_retried"`
	ErrorsMalformed          int `json:"errors_malformed"`
	ErrorsFatal              int `json:"errors_fatal"`
}

// RunSummary is the end-of-run report: final state, the counters and a few
// aggregates over the written listings.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	State      RunState      `json:"state"`
	Stats      RunStats      `json:"stats"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`

	UniqueCities int            `json:"unique_cities"`
	MeanPrice    float64        `json:"mean_price"`
	MedianPrice  float64        `json:"median_price"`
	MinPrice     float64        `json:"min_price"`
	MaxPrice     float64        `json:"max_price"`
	SellerKinds  map[string]int `json:"seller_kinds"`
	TopCities    []CityCount    `json:"top_cities"`
}

// CityCount is one entry of the per-city breakdown, ordered by count.
type CityCount struct {
	City  string `json:"city"`
	Count int    `json:"count"`
}
