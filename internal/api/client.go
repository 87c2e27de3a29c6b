// Package api is the Eco-Counter REST client: password-grant token
// exchange, the site registry and per-site count series.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aliceafriedman/BikeCounters/internal/metrics"
)

var (
	ErrAuth             = errors.New("authentication failed")
	ErrAPI              = errors.New("counter API error")
	ErrTransientNetwork = errors.New("network error")
)

const (
	endpointToken  = "token"
	endpointSites  = "sites"
	endpointCounts = "counts"
)

// Options configures the endpoints and request policy of a Client.
type Options struct {
	TokenURL  string
	SitesURL  string
	CountsURL string
	// ClientCredential is the opaque value sent as HTTP Basic auth on the
	// token request.
	ClientCredential string
	Timeout          time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
	// ExcludeFields are dropped from every location.
	ExcludeFields []string
}

type Client struct {
	opts       Options
	httpClient *http.Client
	logger     logrus.FieldLogger
	metrics    *metrics.Collector
	sleep      func(context.Context, time.Duration) error
}

func NewClient(opts Options, httpClient *http.Client, logger logrus.FieldLogger, m *metrics.Collector) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if m == nil {
		m = metrics.New()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Client{
		opts:       opts,
		httpClient: httpClient,
		logger:     logger,
		metrics:    m,
		sleep:      sleepContext,
	}
}

type requestFunc func(ctx context.Context) (*http.Request, error)

// do sends the request built by newReq and returns the status code and body.
// Transport failures are retried up to MaxRetries times with exponential
// backoff; any HTTP response, whatever its status, is returned as is.
func (c *Client) do(ctx context.Context, endpoint string, newReq requestFunc) (int, []byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.opts.RetryBackoff << (attempt - 1)
			c.logger.WithFields(logrus.Fields{
				"endpoint": endpoint,
				"attempt":  attempt,
				"delay":    delay.String(),
			}).Warn("Retrying request after network error")
			if err := c.sleep(ctx, delay); err != nil {
				return 0, nil, err
			}
		}

		status, body, err := c.roundTrip(ctx, endpoint, newReq)
		if err == nil {
			return status, body, nil
		}
		if ctx.Err() != nil || !errors.Is(err, ErrTransientNetwork) {
			return 0, nil, err
		}
		lastErr = err
	}
	return 0, nil, lastErr
}

func (c *Client) roundTrip(ctx context.Context, endpoint string, newReq requestFunc) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := newReq(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build %s request: %w", endpoint, err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(endpoint, "network_error", time.Since(start))
		return 0, nil, fmt.Errorf("%w: %v", ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ObserveRequest(endpoint, "network_error", time.Since(start))
		return 0, nil, fmt.Errorf("%w: reading %s response: %v", ErrTransientNetwork, endpoint, err)
	}
	c.metrics.ObserveRequest(endpoint, fmt.Sprintf("%dxx", resp.StatusCode/100), time.Since(start))

	return resp.StatusCode, body, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
