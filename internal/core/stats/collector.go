package stats

import (
	"sort"
	"sync"
	"time"

	"leboncoin-parser-service/internal/core/domain"
)

const topCitiesLimit = 10

// Collector accumulates the run counters plus the aggregates used by the
// end-of-run report. All methods are safe for concurrent use, although a run
// normally tallies from a single goroutine.
type Collector struct {
	mu        sync.Mutex
	stats     domain.RunStats
	startedAt time.Time

	prices  []float64
	cities  map[string]int
	sellers map[string]int
}

func NewCollector() *Collector {
	return &Collector{
		startedAt: time.Now(),
		cities:    make(map[string]int),
		sellers:   make(map[string]int),
	}
}

func (c *Collector) PageFetched() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.PagesFetched++
}

func (c *Collector) Seen(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.ListingsSeen += n
}

// Written tallies one durably written listing and feeds the aggregates.
func (c *Collector) Written(listing *domain.Listing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.ListingsWritten++
	if listing == nil {
		return
	}
	if listing.Price != nil {
		c.prices = append(c.prices, *listing.Price)
	}
	c.cities[listing.Location.City]++
	c.sellers[listing.SellerKind]++
}

func (c *Collector) SkippedDeleted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.ListingsSkippedDeleted++
}

func (c *Collector) SkippedDuplicate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.ListingsSkippedDuplicate++
}

func (c *Collector) Retried() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.ErrorsRetried++
}

func (c *Collector) Malformed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.ErrorsMalformed++
}

func (c *Collector) Fatal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.ErrorsFatal++
}

// Snapshot returns a copy of the current counters.
func (c *Collector) Snapshot() domain.RunStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Summary builds the final report for the given run outcome.
func (c *Collector) Summary(runID string, state domain.RunState) *domain.RunSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	finished := time.Now()
	summary := &domain.RunSummary{
		RunID:        runID,
		State:        state,
		Stats:        c.stats,
		StartedAt:    c.startedAt,
		FinishedAt:   finished,
		Duration:     finished.Sub(c.startedAt),
		UniqueCities: len(c.cities),
		SellerKinds:  make(map[string]int, len(c.sellers)),
		TopCities:    topCities(c.cities, topCitiesLimit),
	}
	for kind, count := range c.sellers {
		summary.SellerKinds[kind] = count
	}

	if len(c.prices) > 0 {
		sorted := append([]float64(nil), c.prices...)
		sort.Float64s(sorted)

		var sum float64
		for _, p := range sorted {
			sum += p
		}
		summary.MeanPrice = sum / float64(len(sorted))
		summary.MedianPrice = median(sorted)
		summary.MinPrice = sorted[0]
		summary.MaxPrice = sorted[len(sorted)-1]
	}

	return summary
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func topCities(cities map[string]int, limit int) []domain.CityCount {
	counts := make([]domain.CityCount, 0, len(cities))
	for city, count := range cities {
		counts = append(counts, domain.CityCount{City: city, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].City < counts[j].City
	})
	if len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}
