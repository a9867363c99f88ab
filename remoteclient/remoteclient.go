/*
[AI GENERATED - GOVERNANCE PROTOCOL]
──────────────────────────────────────────────────────────────
Model:       Claude Opus 4.6
Tier:        L3
Logic:       Typed HTTP client for the remote partner sales API: two
             endpoints (changed-dates discovery, paginated detailed
             sales), pooled transport, retry/backoff, and per-attempt
             timeouts layered over the caller's cancellation.
Root Cause:  The partner API is occasionally flaky (5xx, 429) and the
             sync engine must not treat a transient blip as a permanent
             task failure.
Suitability: L3 — well-documented partner API, the risk is entirely in
             getting retry/timeout composition right.
──────────────────────────────────────────────────────────────
*/

// Package remoteclient is a typed wrapper over the remote partner sales
// API used by the discovery and fetch phases.
package remoteclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrCancelled is returned when the caller's context is done before or
// during a remote call; no further attempts are made.
var ErrCancelled = errors.New("remoteclient: cancelled")

// RemoteError is a non-retryable (after exhaustion) or immediately fatal
// HTTP-level failure from the partner API.
type RemoteError struct {
	Status    int
	Retryable bool
	Body      string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remoteclient: remote responded %d (retryable=%v)", e.Status, e.Retryable)
}

// Config configures transport, auth, and retry behavior.
type Config struct {
	BaseURL        string
	UserAgent      string
	AttemptTimeout time.Duration
	MaxRetries     int
}

// Client is a pooled HTTP client for the two partner endpoints.
type Client struct {
	baseURL        string
	userAgent      string
	attemptTimeout time.Duration
	maxRetries     int
	http           *http.Client
}

// New builds a Client with a bounded-idle-connection transport, mirroring
// the gateway's provider-connector transport tuning.
func New(cfg Config) *Client {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "salessync/1.0"
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		baseURL:        cfg.BaseURL,
		userAgent:      cfg.UserAgent,
		attemptTimeout: cfg.AttemptTimeout,
		maxRetries:     cfg.MaxRetries,
		http:           &http.Client{Transport: transport},
	}
}

// ChangedDatesResult is the discovery-phase response.
type ChangedDatesResult struct {
	Dates            []string
	NewHighwatermark uint64
}

// ChangedDates returns the dates that changed since highwatermark, plus
// the remote's new highwatermark cursor.
func (c *Client) ChangedDates(ctx context.Context, key string, highwatermark uint64) (*ChangedDatesResult, error) {
	q := url.Values{}
	q.Set("key", key)
	q.Set("highwatermark", strconv.FormatUint(highwatermark, 10))

	var wire changedDatesWire
	if err := c.getJSON(ctx, "/GetChangedDatesForPartner/v1", q, &wire); err != nil {
		return nil, err
	}

	newMark := highwatermark
	if wire.Response.ResultHighwatermark != nil {
		if m, ok := coerceUint(*wire.Response.ResultHighwatermark); ok {
			newMark = m
		}
	}
	return &ChangedDatesResult{
		Dates:            wire.Response.Dates,
		NewHighwatermark: newMark,
	}, nil
}

// SalesPage is one page of the detailed-sales pagination loop.
type SalesPage struct {
	Results              []SaleItem
	MaxID                string
	AppInfo              []RefEntry
	PackageInfo          []RefEntry
	BundleInfo           []RefEntry
	PartnerInfo          []RefEntry
	CountryInfo          []CountryRef
	GameItemInfo         []RefEntry
	CombinedDiscountInfo []DiscountRef
}

// RefEntry is a {id, name} reference row (apps, packages, bundles,
// partners, game items).
type RefEntry struct {
	ID   int64
	Name string
}

// CountryRef is a reference row keyed by ISO code.
type CountryRef struct {
	Code   string
	Name   string
	Region string
}

// DiscountRef is a reference row with an optional percentage.
type DiscountRef struct {
	ID         int64
	Name       string
	Percentage *int
}

// SaleItem is one remote sale line item, already converted to cents.
type SaleItem struct {
	LineItemType         string
	AppID                *int64
	PackageID            *int64
	BundleID             *int64
	PartnerID            *int64
	GameItemID           *int64
	CountryCode          *string
	Platform             *string
	Currency             *string
	BasePriceCents       *int64
	SalePriceCents       *int64
	AvgSalePriceUSDCents int64
	GrossSalesUSDCents   int64
	GrossReturnsUSDCents int64
	NetSalesUSDCents     int64
	NetTaxUSDCents       int64
	GrossUnitsSold       int64
	GrossUnitsReturned   int64
	GrossUnitsActivated  int64
	NetUnitsSold         int64
	DiscountID           *int64
	DiscountPercentage   *int
}

// DetailedSalesPage fetches one page of sales for date starting at cursor.
func (c *Client) DetailedSalesPage(ctx context.Context, key, date string, cursor uint64) (*SalesPage, error) {
	q := url.Values{}
	q.Set("key", key)
	q.Set("date", date)
	q.Set("highwatermark_id", strconv.FormatUint(cursor, 10))

	var wire detailedSalesWire
	if err := c.getJSON(ctx, "/GetDetailedSales/v1", q, &wire); err != nil {
		return nil, err
	}
	return wire.toPage(), nil
}

// PaginationDone reports whether the pagination loop should stop:
// terminate unless max_id advanced past previousCursor and the page
// carried at least one result.
func PaginationDone(page *SalesPage, previousCursor uint64) bool {
	if len(page.Results) == 0 {
		return true
	}
	next, ok := coerceUint(page.MaxID)
	if !ok {
		return true
	}
	return next <= previousCursor
}

// getJSON performs the retry/backoff/timeout loop for a single GET and
// decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return ErrCancelled
	}

	reqURL := c.baseURL + path + "?" + query.Encode()

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		body, status, err := c.attempt(ctx, reqURL)
		if err == nil {
			return json.Unmarshal(body, out)
		}
		if errors.Is(err, ErrCancelled) {
			return err
		}

		retryable := isRetryable(status, err)
		lastErr = &RemoteError{Status: status, Retryable: retryable, Body: string(body)}
		if !retryable || attempt == c.maxRetries {
			break
		}

		wait := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
		select {
		case <-ctx.Done():
			return ErrCancelled
		case <-time.After(wait):
		}
	}
	return lastErr
}

// attempt performs a single HTTP round trip under its own deadline,
// layered over the caller's context so either can cancel it.
func (c *Client) attempt(ctx context.Context, reqURL string) (body []byte, status int, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("remoteclient: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ErrCancelled
		}
		return nil, 0, fmt.Errorf("remoteclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("remoteclient: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return data, resp.StatusCode, fmt.Errorf("remoteclient: status %d", resp.StatusCode)
	}
	return data, resp.StatusCode, nil
}

func isRetryable(status int, err error) bool {
	if status == 0 {
		return true // network I/O failure, no response at all
	}
	switch status {
	case http.StatusTooManyRequests, http.StatusRequestTimeout:
		return true
	}
	return status >= 500
}

func coerceUint(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case string:
		u, err := strconv.ParseUint(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return u, true
	default:
		return 0, false
	}
}
