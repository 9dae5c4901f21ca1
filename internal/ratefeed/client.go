// Package ratefeed pulls reference-rate observations from the external
// economic data API and stores them for the tag engine to pin its run rate.
package ratefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/anaishowland/oasive-db-sub000/internal/config"
	"github.com/anaishowland/oasive-db-sub000/internal/observability"
)

// Observation is one raw data point from the feed. Value is the feed's string
// form; missing observations are marked "." and skipped during storage.
type Observation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

type observationsResponse struct {
	Observations []Observation `json:"observations"`
}

// Client fetches series observations over HTTP with bounded retry.
type Client struct {
	httpClient *http.Client
	cfg        config.RateFeedConfig
	logger     observability.Logger
	metrics    observability.Metrics
}

// NewClient creates the feed client.
func NewClient(cfg config.RateFeedConfig, logger observability.Logger, metrics observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     observability.Scoped(logger, "ratefeed.client"),
		metrics:    metrics,
	}
}

// FetchObservations pulls all observations for the configured series starting
// at observationStart (zero time = full history). Server errors are retried
// with linear backoff up to the configured attempt cap.
func (c *Client) FetchObservations(ctx context.Context, observationStart time.Time) ([]Observation, error) {
	params := url.Values{}
	params.Set("series_id", c.cfg.RateSeries)
	params.Set("api_key", c.cfg.APIKey)
	params.Set("file_type", "json")
	if !observationStart.IsZero() {
		params.Set("observation_start", observationStart.Format("2006-01-02"))
	}
	endpoint := fmt.Sprintf("%s/series/observations?%s", c.cfg.BaseURL, params.Encode())

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		observations, err := c.fetchOnce(ctx, endpoint)
		if err == nil {
			c.logger.Info("fetched rate observations",
				"series", c.cfg.RateSeries, "count", len(observations))
			return observations, nil
		}
		lastErr = err
		c.logger.Warn("rate feed fetch failed", "attempt", attempt+1, "error", err)
	}
	c.metrics.IncrementCounter("ratefeed.fetch.failed", map[string]string{"series": c.cfg.RateSeries})
	return nil, fmt.Errorf("fetch observations after %d attempts: %w", c.cfg.MaxRetries+1, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, endpoint string) ([]Observation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body observationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return body.Observations, nil
}
