// Package googlemaps implements ports.RouteProvider on the Google Directions API.
package googlemaps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/twpayne/go-polyline"
	"golang.org/x/time/rate"

	"github.com/samirrijal/fuelroute/internal/core/domain"
	"github.com/samirrijal/fuelroute/internal/pkg/metrics"
)

const maxAttempts = 3

// Options configures a Client.
type Options struct {
	APIKey        string
	BaseURL       string
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
}

// Client fetches driving routes. It is built once at start-up and is safe
// for concurrent use.
type Client struct {
	session *http.Client
	apiKey  string
	baseURL string
	limiter *rate.Limiter
}

// New creates a new Client.
func New(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("google maps api key is empty")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://maps.googleapis.com"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		session: &http.Client{Timeout: opts.Timeout},
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		limiter: rate.NewLimiter(limit, burst),
	}, nil
}

type directionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
		Legs []struct {
			Distance struct {
				Value float64 `json:"value"`
			} `json:"distance"`
			Duration struct {
				Value float64 `json:"value"`
				Text  string  `json:"text"`
			} `json:"duration"`
		} `json:"legs"`
	} `json:"routes"`
}

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("directions api: HTTP %d: %s", e.Code, e.Body)
}

// GetRoute returns the first driving route between start and end.
func (c *Client) GetRoute(ctx context.Context, start, end string) (*domain.Route, error) {
	q := url.Values{}
	q.Set("origin", start)
	q.Set("destination", end)
	q.Set("mode", "driving")
	q.Set("key", c.apiKey)
	endpoint := c.baseURL + "/maps/api/directions/json?" + q.Encode()

	began := time.Now()
	body, err := c.fetch(ctx, endpoint)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RouteProviderDuration.WithLabelValues(status).Observe(time.Since(began).Seconds())
	if err != nil {
		return nil, transportError(err)
	}

	var resp directionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode directions: %w: %v", domain.ErrUpstreamUnavailable, err)
	}

	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS", "NOT_FOUND":
		return nil, fmt.Errorf("%s to %s: %w", start, end, domain.ErrRouteNotFound)
	case "INVALID_REQUEST", "MAX_WAYPOINTS_EXCEEDED":
		return nil, fmt.Errorf("%w: directions %s", domain.ErrInvalidInput, resp.Status)
	default:
		return nil, fmt.Errorf("%w: directions %s: %s", domain.ErrUpstreamUnavailable, resp.Status, resp.ErrorMessage)
	}
	if len(resp.Routes) == 0 {
		return nil, fmt.Errorf("%s to %s: %w", start, end, domain.ErrRouteNotFound)
	}

	r := resp.Routes[0]
	coords, _, err := polyline.DecodeCoords([]byte(r.OverviewPolyline.Points))
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w: %v", domain.ErrUpstreamUnavailable, err)
	}

	route := &domain.Route{Waypoints: make([]domain.Waypoint, 0, len(coords))}
	for _, pt := range coords {
		route.Waypoints = append(route.Waypoints, domain.Waypoint{Lat: pt[0], Lng: pt[1]})
	}

	var seconds float64
	for _, leg := range r.Legs {
		route.TotalDistanceMeters += leg.Distance.Value
		seconds += leg.Duration.Value
	}
	if len(r.Legs) == 1 {
		route.DurationText = r.Legs[0].Duration.Text
	} else {
		route.DurationText = formatDuration(time.Duration(seconds) * time.Second)
	}

	return route, nil
}

// fetch performs the GET, retrying throttling and 5xx answers with backoff.
func (c *Client) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	backoff := 200 * time.Millisecond
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// The wait would outlast the deadline.
			return nil, fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}

		body, err := c.get(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var he *httpStatusError
		if !errors.As(err, &he) || (he.Code != http.StatusTooManyRequests && he.Code < 500) {
			return nil, err
		}
		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}

	return nil, lastErr
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.session.Do(req)
	if err != nil {
		return nil, stripURL(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, &httpStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// requestError is a transport failure with the request URL removed. The URL
// carries the API key and must never reach logs or responses.
type requestError struct {
	op      string
	err     error
	timeout bool
}

func (e *requestError) Error() string { return "directions " + e.op + ": " + e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }
func (e *requestError) Timeout() bool { return e.timeout }
func (e *requestError) Temporary() bool { return false }

func stripURL(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	return &requestError{op: strings.ToLower(ue.Op), err: ue.Err, timeout: ue.Timeout()}
}

// transportError maps client failures onto the domain upstream errors.
func transportError(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
}

// formatDuration renders d like the Directions API does, e.g. "1 day 3 hours".
func formatDuration(d time.Duration) string {
	mins := int(d.Round(time.Minute).Minutes())
	days, mins := mins/(24*60), mins%(24*60)
	hours, mins := mins/60, mins%60

	var parts []string
	add := func(n int, unit string) {
		if n == 0 {
			return
		}
		if n == 1 {
			parts = append(parts, fmt.Sprintf("1 %s", unit))
			return
		}
		parts = append(parts, fmt.Sprintf("%d %ss", n, unit))
	}
	add(days, "day")
	add(hours, "hour")
	if days == 0 {
		add(mins, "min")
	}
	if len(parts) == 0 {
		return "1 min"
	}
	return strings.Join(parts, " ")
}
