package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leboncoin-parser-service/internal/contextkeys"
	"leboncoin-parser-service/internal/core/domain"
	"leboncoin-parser-service/internal/core/normalizer"
	"leboncoin-parser-service/internal/core/port"
	"leboncoin-parser-service/internal/core/stats"

	"github.com/google/uuid"
)

const (
	defaultMaxAttempts            = 3
	defaultRetryBackoff           = 1 * time.Second
	defaultMaxConsecutiveFailures = 5
)

// CrawlConfig carries the per-run knobs of the crawl.
type CrawlConfig struct {
	Criteria domain.SearchCriteria

	// MaxPages caps the number of successfully fetched pages; zero means
	// crawl until the source runs out.
	MaxPages int

	// MaxAttempts bounds fetch attempts per page, including the first.
	MaxAttempts int
	// RetryBackoff seeds the exponential backoff between attempts.
	RetryBackoff time.Duration

	// MaxConsecutiveFailures aborts the run after this many failed pages in
	// a row, so a persistently broken endpoint cannot loop forever.
	MaxConsecutiveFailures int
	// AbortOnPageFailure switches the page-failure policy from
	// skip-and-continue to abort-preserving-cursor.
	AbortOnPageFailure bool

	// Resume consults the stored cursor when its fingerprint matches the
	// criteria; when false the crawl always starts at page 1.
	Resume bool
	// SeedIDs are listing IDs already present in the output; they are never
	// written again.
	SeedIDs map[string]struct{}
}

// CrawlListingsUseCase walks the paginated result set for one search,
// normalizes every record, streams the valid ones to the sink and keeps the
// resume cursor pointing at the last durable write.
type CrawlListingsUseCase struct {
	fetcher    port.AdSearcherPort
	sink       port.ListingSinkPort
	cursorRepo port.CursorRepositoryPort
	pacer      port.PacerPort
	normalizer *normalizer.Normalizer
	stats      *stats.Collector
	cfg        CrawlConfig
}

func NewCrawlListingsUseCase(
	fetcher port.AdSearcherPort,
	sink port.ListingSinkPort,
	cursorRepo port.CursorRepositoryPort,
	pacer port.PacerPort,
	norm *normalizer.Normalizer,
	collector *stats.Collector,
	cfg CrawlConfig,
) *CrawlListingsUseCase {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = defaultMaxConsecutiveFailures
	}
	return &CrawlListingsUseCase{
		fetcher:    fetcher,
		sink:       sink,
		cursorRepo: cursorRepo,
		pacer:      pacer,
		normalizer: norm,
		stats:      collector,
		cfg:        cfg,
	}
}

// Execute runs the crawl to its terminal state. The returned summary is
// always non-nil; the error is non-nil only for run-level fatal conditions
// (rejected query, sink failure), never for absorbed page or record errors.
// Cancellation via ctx ends the run as a graceful abort with the cursor at
// the last durable write.
func (uc *CrawlListingsUseCase) Execute(ctx context.Context, runID uuid.UUID) (*domain.RunSummary, error) {
	baseLogger := contextkeys.LoggerFromContext(ctx)
	ucLogger := baseLogger.WithFields(port.Fields{
		"use_case": "CrawlListings",
		"run_id":   runID.String(),
	})

	fingerprint := uc.cfg.Criteria.Fingerprint()
	startPage, carriedWritten := uc.resolveStart(ctx, fingerprint, ucLogger)

	seen := make(map[string]struct{}, len(uc.cfg.SeedIDs))
	for id := range uc.cfg.SeedIDs {
		seen[id] = struct{}{}
	}

	ucLogger.Info("Crawl starting", port.Fields{
		"start_page": startPage,
		"known_ids":  len(seen),
		"max_pages":  uc.cfg.MaxPages,
	})

	state := domain.RunStateRunning
	var runErr error
	var lastCursor *domain.Cursor

	page := startPage
	pagesFetched := 0
	consecutiveFailures := 0
	totalWritten := carriedWritten

crawl:
	for {
		select {
		case <-ctx.Done():
			ucLogger.Warn("Run cancelled, aborting before next fetch", nil)
			state = domain.RunStateAborted
			break crawl
		default:
		}

		if uc.cfg.MaxPages > 0 && pagesFetched >= uc.cfg.MaxPages {
			ucLogger.Info("Reached max pages limit", port.Fields{"max_pages": uc.cfg.MaxPages})
			state = domain.RunStateCompleted
			break
		}

		pageLogger := ucLogger.WithFields(port.Fields{"page": page})
		result, err := uc.fetchPageWithRetry(ctx, page, pageLogger)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				state = domain.RunStateAborted
				break
			}
			if domain.IsFatal(err) {
				pageLogger.Error("Source rejected the request, aborting run", err, nil)
				uc.stats.Fatal()
				state = domain.RunStateAborted
				runErr = err
				break
			}

			// Retries exhausted on a transient failure: a page-level failure,
			// never a crash.
			uc.stats.Fatal()
			consecutiveFailures++
			pageLogger.Error("Page failed after retries", err, port.Fields{
				"consecutive_failures": consecutiveFailures,
			})

			if consecutiveFailures >= uc.cfg.MaxConsecutiveFailures {
				pageLogger.Error("Consecutive failed pages limit reached, aborting run",
					domain.ErrConsecutiveFailures, port.Fields{
						"limit": uc.cfg.MaxConsecutiveFailures,
					})
				state = domain.RunStateAborted
				break
			}
			if uc.cfg.AbortOnPageFailure {
				pageLogger.Warn("Abort-on-page-failure policy is set, stopping run", nil)
				state = domain.RunStateAborted
				break
			}
			page++
			continue
		}

		consecutiveFailures = 0
		pagesFetched++
		uc.stats.PageFetched()

		if len(result.Records) == 0 {
			pageLogger.Info("Empty page, end of results", nil)
			state = domain.RunStateCompleted
			break
		}
		uc.stats.Seen(len(result.Records))

		for i := range result.Records {
			listing, normErr := uc.normalizer.Normalize(&result.Records[i])
			switch {
			case errors.Is(normErr, domain.ErrDeleted):
				uc.stats.SkippedDeleted()
				pageLogger.Debug("Skipping withdrawn listing", port.Fields{"reason": normErr.Error()})
				continue
			case normErr != nil:
				uc.stats.Malformed()
				pageLogger.Warn("Dropping malformed record", port.Fields{"reason": normErr.Error()})
				continue
			}

			if _, dup := seen[listing.ID]; dup {
				uc.stats.SkippedDuplicate()
				pageLogger.Debug("Skipping duplicate listing", port.Fields{"listing_id": listing.ID})
				continue
			}

			if werr := uc.sink.Write(ctx, listing); werr != nil {
				pageLogger.Error("Sink write failed, aborting run", werr, port.Fields{"listing_id": listing.ID})
				state = domain.RunStateAborted
				runErr = fmt.Errorf("write listing %s: %w", listing.ID, werr)
				break crawl
			}
			seen[listing.ID] = struct{}{}
			totalWritten++
			uc.stats.Written(listing)

			cursor := &domain.Cursor{
				Fingerprint:     fingerprint,
				LastID:          listing.ID,
				LastPublishedAt: listing.PublishedAt,
				NextPage:        page,
				ListingsWritten: totalWritten,
				UpdatedAt:       time.Now().UTC(),
			}
			if cerr := uc.cursorRepo.SetCursor(ctx, cursor); cerr != nil {
				// Progress is still in the output file; a later run will
				// reconcile from there.
				pageLogger.Warn("Could not persist cursor", port.Fields{"error": cerr.Error()})
			}
			lastCursor = cursor
		}

		if !result.HasMore {
			pageLogger.Info("Source reports no further pages", nil)
			state = domain.RunStateCompleted
			break
		}
		page++
	}

	uc.finalize(ctx, state, lastCursor, ucLogger)

	summary := uc.stats.Summary(runID.String(), state)
	ucLogger.Info("Crawl finished", port.Fields{
		"state":            string(state),
		"pages_fetched":    summary.Stats.PagesFetched,
		"listings_written": summary.Stats.ListingsWritten,
	})
	return summary, runErr
}

// resolveStart picks the first page of this run. A cursor written under the
// same fingerprint continues where it stopped; anything else means a fresh
// crawl from page 1, reported explicitly rather than silently ignored.
func (uc *CrawlListingsUseCase) resolveStart(ctx context.Context, fingerprint string, logger port.LoggerPort) (int, int) {
	if !uc.cfg.Resume {
		return 1, 0
	}

	cursor, err := uc.cursorRepo.GetCursor(ctx)
	if err != nil {
		logger.Warn("Could not read cursor, starting fresh", port.Fields{"error": err.Error()})
		return 1, 0
	}
	if cursor == nil {
		logger.Info("No cursor found, starting fresh", nil)
		return 1, 0
	}
	if cursor.Fingerprint != fingerprint {
		logger.Warn("Cursor belongs to different search parameters, starting fresh", port.Fields{
			"cursor_updated_at": cursor.UpdatedAt,
		})
		return 1, 0
	}

	start := cursor.NextPage
	if start < 1 {
		start = 1
	}
	logger.Info("Resuming from cursor", port.Fields{
		"next_page":         start,
		"last_id":           cursor.LastID,
		"last_published_at": cursor.LastPublishedAt,
	})
	return start, cursor.ListingsWritten
}

// fetchPageWithRetry is the bounded retry loop around one page fetch. The
// pacer gates every attempt, transient failures back off exponentially, and
// fatal failures return immediately.
func (uc *CrawlListingsUseCase) fetchPageWithRetry(ctx context.Context, page int, logger port.LoggerPort) (*domain.SearchPage, error) {
	backoff := uc.cfg.RetryBackoff
	var lastErr error

	for attempt := 1; attempt <= uc.cfg.MaxAttempts; attempt++ {
		if err := uc.pacer.Wait(ctx); err != nil {
			return nil, err
		}

		result, err := uc.fetcher.SearchPage(ctx, uc.cfg.Criteria, page)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !domain.IsTransient(err) {
			return nil, err
		}
		if attempt == uc.cfg.MaxAttempts {
			break
		}

		uc.stats.Retried()
		logger.Warn("Transient fetch failure, retrying", port.Fields{
			"attempt": attempt,
			"backoff": backoff.String(),
			"error":   err.Error(),
		})
		if err := sleepCtx(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("page %d failed after %d attempts: %w", page, uc.cfg.MaxAttempts, lastErr)
}

// finalize flushes the sink and persists the terminal cursor. A completed
// run rewinds the cursor to page 1 so the next run rescans for new listings
// and relies on the rebuilt dedup set to write only what is actually new.
func (uc *CrawlListingsUseCase) finalize(ctx context.Context, state domain.RunState, lastCursor *domain.Cursor, logger port.LoggerPort) {
	if err := uc.sink.Flush(); err != nil {
		logger.Error("Sink flush failed during finalize", err, nil)
	}

	if lastCursor == nil {
		return
	}
	if state == domain.RunStateCompleted {
		lastCursor.NextPage = 1
	}
	lastCursor.UpdatedAt = time.Now().UTC()
	if err := uc.cursorRepo.SetCursor(ctx, lastCursor); err != nil {
		logger.Error("Could not persist final cursor", err, nil)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
