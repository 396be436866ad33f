package port

import (
	"context"
	"leboncoin-parser-service/internal/core/domain"
)

// AdSearcherPort is the single capability the crawl needs from the source:
// given criteria and a page number, return that page of raw records or fail.
// Implementations classify failures as domain.TransientError or
// domain.FatalError; a page with zero records is a valid result and signals
// the end of the result set.
type AdSearcherPort interface {
	SearchPage(ctx context.Context, criteria domain.SearchCriteria, page int) (*domain.SearchPage, error)
}
