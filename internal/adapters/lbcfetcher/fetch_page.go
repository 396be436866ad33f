package lbcfetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"leboncoin-parser-service/internal/contextkeys"
	"leboncoin-parser-service/internal/core/domain"
	"leboncoin-parser-service/internal/core/port"

	"github.com/gocolly/colly/v2"
)

// searchResponse is the slice of the finder API response the crawl needs.
type searchResponse struct {
	Total    int            `json:"total"`
	MaxPages int            `json:"max_pages"`
	Ads      []domain.RawAd `json:"ads"`
}

// SearchPage fetches one page of raw records. Failures are classified:
// transport errors, remote rate limiting and 5xx responses come back as
// domain.TransientError, everything else (rejected query, auth failure,
// unreadable response body) as domain.FatalError. A page with zero ads is a
// valid, non-error result.
func (a *Adapter) SearchPage(ctx context.Context, criteria domain.SearchCriteria, page int) (*domain.SearchPage, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	fetchLogger := logger.WithFields(port.Fields{"component": "LbcAdapter(SearchPage)", "page": page})

	body, err := buildSearchPayload(criteria, page)
	if err != nil {
		return nil, &domain.FatalError{Op: "build search payload", Err: err}
	}

	collector := a.collector.Clone()

	var result *domain.SearchPage
	var responseErr error

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Content-Type", "application/json")
		r.Headers.Set("Accept", "application/json")
		if a.apiKey != "" {
			r.Headers.Set("api_key", a.apiKey)
		}
		fetchLogger.Debug("Making search request", port.Fields{"url": r.URL.String()})
	})

	collector.OnResponse(func(r *colly.Response) {
		var resp searchResponse
		if jsonErr := json.Unmarshal(r.Body, &resp); jsonErr != nil {
			responseErr = &domain.FatalError{
				Op:  fmt.Sprintf("decode search response for page %d", page),
				Err: jsonErr,
			}
			return
		}

		result = &domain.SearchPage{
			Records:    resp.Ads,
			HasMore:    len(resp.Ads) > 0 && page < resp.MaxPages,
			TotalPages: resp.MaxPages,
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		fetchLogger.Error("Search request failed", err, port.Fields{
			"status": r.StatusCode,
		})
		responseErr = classifyHTTPError(page, r.StatusCode, err)
	})

	if visitErr := collector.PostRaw(a.searchURL, body); visitErr != nil {
		fetchLogger.Error("Failed to initiate search request", visitErr, port.Fields{"url": a.searchURL})
		return nil, &domain.FatalError{Op: fmt.Sprintf("post search page %d", page), Err: visitErr}
	}
	collector.Wait()

	if responseErr != nil {
		return nil, responseErr
	}
	if result == nil {
		return nil, &domain.FatalError{
			Op:  fmt.Sprintf("search page %d", page),
			Err: fmt.Errorf("no response received"),
		}
	}

	fetchLogger.Debug("Fetched search page", port.Fields{
		"records":  len(result.Records),
		"has_more": result.HasMore,
	})
	return result, nil
}

// classifyHTTPError maps an HTTP outcome onto the retry taxonomy. Status 0
// means the request never got a response (DNS, timeout, connection reset).
func classifyHTTPError(page, status int, err error) error {
	op := fmt.Sprintf("search page %d (status %d)", page, status)
	switch {
	case status == 0,
		status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= http.StatusInternalServerError:
		return &domain.TransientError{Op: op, Err: err}
	default:
		return &domain.FatalError{Op: op, Err: err}
	}
}
