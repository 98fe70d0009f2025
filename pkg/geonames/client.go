// Package geonames is a client for the geonames.org JSON web services.
//
// Every operation sends exactly one GET request. Service failures reported
// inside a 200 response are returned as *ServiceError values whose kind can
// be matched with errors.Is, for example errors.Is(err, ErrHourlyCreditLimitExceeded).
// Errors produced by the package itself match ErrClient; errors from the
// Fetcher, including context cancellation, are returned unmodified.
package geonames

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"

	"github.com/spf13/cast"

	"github.com/geogotchi/geogotchi/pkg/geonames/fetch"
)

const (
	// DefaultBaseURL is the HTTPS entry point of the geonames web services.
	DefaultBaseURL = "https://secure.geonames.org/"
	// DefaultUsername is the public demo account. It is heavily rate limited
	// and only suitable for trying things out.
	DefaultUsername = "demo"
)

const (
	pathNearbyPlace     = "findNearbyPlaceNameJSON"
	pathNearbyToponym   = "findNearbyJSON"
	pathNearbyWikipedia = "findNearbyWikipediaJSON"
	pathHierarchy       = "hierarchyJSON"
	pathSearch          = "searchJSON"
)

// Fetcher performs a GET of rawURL with query appended and returns the body
// and the HTTP status code.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, query url.Values) ([]byte, int, error)
}

// Config selects the account and service endpoint. Zero values select
// DefaultUsername and DefaultBaseURL.
type Config struct {
	Username string
	BaseURL  string
}

// Client is safe for concurrent use. It holds no state besides its
// configuration.
type Client struct {
	username string
	baseURL  string
	fetcher  Fetcher
	logger   *slog.Logger
}

// SearchResult is one page of search results.
type SearchResult struct {
	TotalResultsCount int      `json:"totalResultsCount"`
	Geonames          []Record `json:"geonames"`
}

// NewClient creates a client. A nil fetcher selects fetch.NewHTTPFetcher; a
// nil logger disables logging.
func NewClient(cfg Config, fetcher Fetcher, logger *slog.Logger) *Client {
	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = DefaultUsername
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if fetcher == nil {
		fetcher = fetch.NewHTTPFetcher(logger)
	}
	return &Client{
		username: username,
		baseURL:  strings.TrimRight(baseURL, "/") + "/",
		fetcher:  fetcher,
		logger:   logger,
	}
}

// Username returns the account the client sends with every request.
func (c *Client) Username() string { return c.username }

// FindNearbyPlace returns the populated places closest to at
// (findNearbyPlaceNameJSON).
func (c *Client) FindNearbyPlace(ctx context.Context, at LatLng, opts NearbyOptions) ([]Record, error) {
	return c.findNearby(ctx, pathNearbyPlace, at, opts)
}

// FindNearbyToponym returns the toponyms closest to at (findNearbyJSON).
func (c *Client) FindNearbyToponym(ctx context.Context, at LatLng, opts NearbyOptions) ([]Record, error) {
	return c.findNearby(ctx, pathNearbyToponym, at, opts)
}

// FindNearbyWikipedia returns wikipedia entries near at, ordered by
// RankEntries using the weights in opts.
func (c *Client) FindNearbyWikipedia(ctx context.Context, at LatLng, opts WikipediaOptions) ([]Record, error) {
	params, err := wikipediaParams(c.username, at, opts)
	if err != nil {
		return nil, err
	}
	nearby, err := c.nearby(ctx, pathNearbyWikipedia, params)
	if err != nil {
		return nil, err
	}
	rankWeight, distanceWeight := opts.weights()
	ranked, err := RankEntries(nearby, rankWeight, distanceWeight)
	if err != nil {
		// the entries came from the service, so a missing field is its fault
		return nil, &MalformedResponseError{Reason: "cannot rank wikipedia entries: " + err.Error()}
	}
	return ranked, nil
}

// Hierarchy returns the ancestors of geonameID, starting at Earth and ending
// with the place itself.
func (c *Client) Hierarchy(ctx context.Context, geonameID int64) ([]Record, error) {
	params, err := hierarchyParams(c.username, geonameID)
	if err != nil {
		return nil, err
	}
	payload, err := c.call(ctx, pathHierarchy, params)
	if err != nil {
		return nil, err
	}
	return payload.Geonames, nil
}

// HierarchyOf is Hierarchy for a record returned by another call.
func (c *Client) HierarchyOf(ctx context.Context, rec Record) ([]Record, error) {
	id, err := rec.GeonameID()
	if err != nil {
		return nil, err
	}
	return c.Hierarchy(ctx, id)
}

// Search runs a full text or name search (searchJSON).
func (c *Client) Search(ctx context.Context, opts SearchOptions) ([]Record, error) {
	page, err := c.SearchPage(ctx, opts)
	if err != nil {
		return nil, err
	}
	return page.Geonames, nil
}

// SearchPage is Search with the total number of matches, for paging with
// StartRow and MaxRows.
func (c *Client) SearchPage(ctx context.Context, opts SearchOptions) (*SearchResult, error) {
	params, err := searchParams(c.username, opts)
	if err != nil {
		return nil, err
	}
	payload, err := c.call(ctx, pathSearch, params)
	if err != nil {
		return nil, err
	}
	result := &SearchResult{Geonames: payload.Geonames}
	if raw, ok := payload.Fields["totalResultsCount"]; ok {
		total, err := resultCount(raw)
		if err != nil {
			return nil, &MalformedResponseError{Reason: "totalResultsCount is not an integer", Err: err}
		}
		result.TotalResultsCount = total
	}
	return result, nil
}

// resultCount accepts a non-negative integral number or decimal string.
func resultCount(raw any) (int, error) {
	v, ok := scalar(raw)
	if !ok {
		return 0, fmt.Errorf("unexpected value %v", raw)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f < 0 || f > math.MaxInt32 {
		return 0, fmt.Errorf("unexpected value %v", raw)
	}
	return int(f), nil
}

func (c *Client) findNearby(ctx context.Context, endpoint string, at LatLng, opts NearbyOptions) ([]Record, error) {
	params, err := nearbyParams(c.username, at, opts)
	if err != nil {
		return nil, err
	}
	return c.nearby(ctx, endpoint, params)
}

// nearby calls a findNearby* endpoint and converts distances to float64.
func (c *Client) nearby(ctx context.Context, endpoint string, params url.Values) ([]Record, error) {
	payload, err := c.call(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	if err := coerceDistance(payload.Geonames); err != nil {
		return nil, &MalformedResponseError{Reason: err.Error()}
	}
	return payload.Geonames, nil
}

func (c *Client) call(ctx context.Context, endpoint string, params url.Values) (*Payload, error) {
	body, status, err := c.fetcher.Get(ctx, c.baseURL+endpoint, params)
	if err != nil {
		return nil, err
	}
	payload, err := interpret(status, body)
	if err != nil {
		if c.logger != nil {
			c.logger.Debug("geonames_call_failed", "endpoint", endpoint, "status", status, "error", err)
		}
		return nil, err
	}
	if c.logger != nil {
		c.logger.Debug("geonames_call", "endpoint", endpoint, "status", status, "results", len(payload.Geonames))
	}
	return payload, nil
}
