package port

import (
	"context"
	"leboncoin-parser-service/internal/core/domain"
)

// ListingSinkPort receives normalized listings for durable output.
// Write must make the listing durable (or buffered at most one row) before
// returning, so the crawl can advance its cursor right after.
type ListingSinkPort interface {
	Write(ctx context.Context, listing *domain.Listing) error

	// Flush forces any buffered rows out.
	Flush() error

	Close() error
}
