// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

/*
client.go - Resilient Ladder API Client Core

HTTP communication layer for the region-sharded upstream ladder API.

Every call:
 1. Resolves the effective region through the router (manual and
    automatic overrides apply here).
 2. Reserves a request-budget permit on the caller-chosen lane. Permits
    are acquired per attempt, never held across retries.
 3. Issues the request through a per-region circuit breaker with the
    region's current timeout; transient failures (timeout, connection
    reset, 5xx) retry a bounded number of times.
 4. Records health-monitor statistics: one addRequest per attempt, one
    addError only when all retries are exhausted.

Related files:
  - operations.go: typed API operations
  - conditional.go: modified-since ladder fetching and the division
    error tracker
  - stream.go: pull-based pagination
  - admin.go: runtime knobs (timeouts, SSL tolerance, caps, overrides)
*/

package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/sc2-pulse/laddersync/internal/config"
	"github.com/sc2-pulse/laddersync/internal/logging"
	"github.com/sc2-pulse/laddersync/internal/metrics"
	"github.com/sc2-pulse/laddersync/internal/models"
	"github.com/sc2-pulse/laddersync/internal/ratelimit"
	"github.com/sc2-pulse/laddersync/internal/region"
)

// ErrNotModified reports that a conditional fetch found no changes since
// the supplied instant. It is not a failure.
var ErrNotModified = errors.New("client: resource not modified")

// maxErrorBodySize caps how much of an error response body is read for
// diagnostics.
const maxErrorBodySize = 64 * 1024

// defaultBaseURLs are used for regions without a configured URL.
var defaultBaseURLs = map[models.Region]string{
	models.RegionUS: "https://us.api.blizzard.com",
	models.RegionEU: "https://eu.api.blizzard.com",
	models.RegionKR: "https://kr.api.blizzard.com",
	models.RegionCN: "https://gateway.battlenet.com.cn",
}

// regionIDs are the numeric region identifiers used in profile paths.
var regionIDs = map[models.Region]int{
	models.RegionUS: 1,
	models.RegionEU: 2,
	models.RegionKR: 3,
	models.RegionCN: 5,
}

// apiError is a non-2xx upstream response.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d: %s", e.Status, e.Body)
}

// isTransient reports whether an error is worth retrying: timeouts,
// connection resets, and 5xx responses. Circuit-breaker rejections and
// 4xx responses are not.
func isTransient(err error) bool {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.Status >= 500
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		if ue.Timeout() {
			return true
		}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	// Connection resets surface as *net.OpError wrapped in *url.Error.
	var oe *net.OpError
	return errors.As(err, &oe)
}

// Client is the resilient upstream API client. All methods are safe for
// concurrent use.
type Client struct {
	cfg    config.UpstreamConfig
	router *region.Router
	health *region.HealthMonitor
	budget *ratelimit.Budget

	settings *settingsStore
	breakers *breakerSet
	divErrs  *divisionErrors
}

// New builds a Client on top of the given router, health monitor, and
// request budget.
func New(cfg config.UpstreamConfig, router *region.Router, health *region.HealthMonitor, budget *ratelimit.Budget) *Client {
	return &Client{
		cfg:      cfg,
		router:   router,
		health:   health,
		budget:   budget,
		settings: newSettingsStore(cfg.Timeout),
		breakers: newBreakerSet(),
		divErrs:  newDivisionErrors(),
	}
}

func (c *Client) baseURL(r models.Region) string {
	if u, ok := c.cfg.BaseURLs[string(r)]; ok && u != "" {
		return u
	}
	return defaultBaseURLs[r]
}

// breakerSet holds one circuit breaker per physical region, created
// lazily on first use.
type breakerSet struct {
	byRegion map[models.Region]*gobreaker.CircuitBreaker[[]byte]
}

func newBreakerSet() *breakerSet {
	set := &breakerSet{byRegion: make(map[models.Region]*gobreaker.CircuitBreaker[[]byte])}
	for _, r := range models.AllRegions() {
		set.byRegion[r] = newRegionBreaker(r)
	}
	return set
}

func (s *breakerSet) get(r models.Region) *gobreaker.CircuitBreaker[[]byte] {
	return s.byRegion[r]
}

// newRegionBreaker builds one region's circuit breaker. It opens after a
// 60% failure rate over at least 10 requests and probes again after two
// minutes.
func newRegionBreaker(r models.Region) *gobreaker.CircuitBreaker[[]byte] {
	name := "ladder-api-" + string(r)
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// A 304 is a healthy upstream answer, not a failure.
			return err == nil || errors.Is(err, ErrNotModified)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := breakerStateString(from), breakerStateString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})
}

func breakerStateString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func breakerStateFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// request describes one upstream call before resolution.
type request struct {
	region   models.Region
	lane     ratelimit.Lane
	resource string
	path     string

	// ifModifiedSince, when non-zero, makes the call conditional; an
	// unchanged resource yields ErrNotModified.
	ifModifiedSince time.Time
}

// get issues a GET and decodes the JSON response into out. It implements
// the full resolve/reserve/attempt/record pipeline described in the file
// header.
func (c *Client) get(ctx context.Context, req request, out any) error {
	resolved := c.router.Resolve(req.region)
	channel := region.ChannelNormal
	if resolved != req.region {
		channel = region.ChannelAlternate
	}

	reqURL := c.baseURL(resolved) + req.path

	var lastErr error
	attempts := c.cfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if err := c.budget.Reserve(ctx, resolved, req.lane); err != nil {
			return fmt.Errorf("reserve %s budget for %s: %w", req.lane, resolved, err)
		}

		c.health.AddRequest(resolved, channel)

		start := time.Now()
		body, err := c.breakers.get(resolved).Execute(func() ([]byte, error) {
			return c.fetch(ctx, resolved, reqURL, req.ifModifiedSince)
		})
		metrics.ObserveAPIRequest(resolved.String(), req.resource, time.Since(start))

		if err == nil {
			if decodeErr := json.Unmarshal(body, out); decodeErr != nil {
				// Malformed payloads are validation failures, not
				// transient I/O; never retried.
				return fmt.Errorf("decode %s response from %s: %w", req.resource, resolved, decodeErr)
			}
			return nil
		}
		if errors.Is(err, ErrNotModified) {
			return ErrNotModified
		}

		lastErr = err
		if !isTransient(err) || ctx.Err() != nil {
			break
		}
		logging.Debug().
			Str("region", resolved.String()).
			Str("resource", req.resource).
			Int("attempt", attempt+1).
			Err(err).
			Msg("transient upstream failure, retrying")
	}

	c.health.AddError(resolved, channel)
	return fmt.Errorf("%s request to %s failed: %w", req.resource, resolved, lastErr)
}

// fetch performs a single HTTP attempt and returns the response body.
// Non-2xx statuses become errors so the circuit breaker counts them.
func (c *Client) fetch(ctx context.Context, r models.Region, reqURL string, ifModifiedSince time.Time) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if !ifModifiedSince.IsZero() {
		httpReq.Header.Set("If-Modified-Since", ifModifiedSince.UTC().Format(http.TimeFormat))
	}

	resp, err := c.settings.httpClient(r).Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return nil, ErrNotModified
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &apiError{Status: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return "(failed to read response body)"
	}
	return string(body)
}

// buildClient constructs an HTTP client for one region's settings.
func buildClient(timeout time.Duration, insecure bool) *http.Client {
	client := &http.Client{Timeout: timeout}
	if insecure {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 staging endpoints only
		client.Transport = transport
	}
	return client
}
