package ratefeed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/anaishowland/oasive-db-sub000/internal/config"
	"github.com/anaishowland/oasive-db-sub000/internal/entity"
	"github.com/anaishowland/oasive-db-sub000/internal/observability"
)

// Summary is the outcome of one feed pull.
type Summary struct {
	Series  string `json:"series"`
	Fetched int    `json:"fetched"`
	Stored  int    `json:"stored"`
	Skipped int    `json:"skipped"` // missing-value markers
	Elapsed string `json:"elapsed"`
}

// Service pulls new observations since the last stored date and upserts them.
type Service struct {
	client *Client
	repo   *Repository
	cfg    config.RateFeedConfig
	logger observability.Logger
}

// NewService creates the feed service.
func NewService(client *Client, repo *Repository, cfg config.RateFeedConfig, logger observability.Logger) *Service {
	return &Service{
		client: client,
		repo:   repo,
		cfg:    cfg,
		logger: observability.Scoped(logger, "ratefeed.service"),
	}
}

// Run performs one incremental pull: observations from the day after the
// latest stored date forward (full history on first run).
func (s *Service) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	summary := Summary{Series: s.cfg.RateSeries}

	var since time.Time
	latest, err := s.repo.LatestDate(ctx, s.cfg.RateSeries)
	if err != nil {
		return summary, err
	}
	if latest != nil {
		since = latest.AddDate(0, 0, 1)
	}

	observations, err := s.client.FetchObservations(ctx, since)
	if err != nil {
		return summary, err
	}
	summary.Fetched = len(observations)

	batch := make([]entity.RateObservation, 0, len(observations))
	for _, obs := range observations {
		// "." is the feed's marker for a missing data point.
		if obs.Value == "." || obs.Value == "" {
			summary.Skipped++
			continue
		}
		value, err := strconv.ParseFloat(obs.Value, 64)
		if err != nil {
			s.logger.Warn("unparseable observation value", "date", obs.Date, "value", obs.Value)
			summary.Skipped++
			continue
		}
		date, err := time.Parse("2006-01-02", obs.Date)
		if err != nil {
			s.logger.Warn("unparseable observation date", "date", obs.Date)
			summary.Skipped++
			continue
		}
		batch = append(batch, entity.RateObservation{
			SeriesID:        s.cfg.RateSeries,
			ObservationDate: date,
			Value:           value,
		})
	}

	if err := s.repo.UpsertBatch(ctx, batch); err != nil {
		return summary, fmt.Errorf("store observations: %w", err)
	}
	summary.Stored = len(batch)
	summary.Elapsed = time.Since(start).String()
	return summary, nil
}

// LatestRate satisfies the tag runner's rate source: the most recent stored
// value for the configured series.
func (s *Service) LatestRate(ctx context.Context) (float64, error) {
	return s.repo.LatestValue(ctx, s.cfg.RateSeries)
}
