package lbcfetcher

import (
	"fmt"
	"net/url"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"
)

// Adapter owns all interaction with the leboncoin finder API.
type Adapter struct {
	// parent collector; every request runs on a clone that inherits the
	// limits but carries its own handlers
	collector *colly.Collector
	searchURL string
	apiKey    string
}

// NewAdapter builds the adapter around a parent colly collector. An empty
// proxy means direct connections; apiKey is attached to every request when
// set.
func NewAdapter(searchURL, proxy, apiKey string) (*Adapter, error) {
	parsed, err := url.Parse(searchURL)
	if err != nil {
		return nil, fmt.Errorf("lbc adapter: invalid search URL %q: %w", searchURL, err)
	}

	c := colly.NewCollector(colly.AllowedDomains(parsed.Host), colly.AllowURLRevisit())

	// Pacing of outbound requests belongs to the crawl loop; here we only
	// forbid request parallelism so that guarantee cannot be bypassed.
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  parsed.Host,
		Parallelism: 1,
	}); err != nil {
		return nil, fmt.Errorf("lbc adapter: failed to set limit rule: %w", err)
	}

	extensions.RandomUserAgent(c)
	extensions.Referer(c)

	if proxy != "" {
		if err := c.SetProxy(proxy); err != nil {
			return nil, fmt.Errorf("lbc adapter: invalid proxy %q: %w", proxy, err)
		}
	}

	return &Adapter{
		collector: c,
		searchURL: searchURL,
		apiKey:    apiKey,
	}, nil
}
