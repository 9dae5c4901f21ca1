package ratefeed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/anaishowland/oasive-db-sub000/internal/database"
	"github.com/anaishowland/oasive-db-sub000/internal/entity"
	"github.com/anaishowland/oasive-db-sub000/internal/observability"
)

// ErrNoObservations is returned when a series has no stored data points yet.
var ErrNoObservations = errors.New("no rate observations stored")

// Repository persists rate observations keyed by (series, date).
type Repository struct {
	db      database.Executor
	logger  observability.Logger
	metrics observability.Metrics
	qb      squirrel.StatementBuilderType
}

// NewRepository creates the rate observation repository.
func NewRepository(db database.Executor, logger observability.Logger, metrics observability.Metrics) *Repository {
	return &Repository{
		db:      db,
		logger:  observability.Scoped(logger, "ratefeed.repository"),
		metrics: metrics,
		qb:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// UpsertBatch writes observations, overwriting values on re-delivery of the
// same (series, date) key.
func (r *Repository) UpsertBatch(ctx context.Context, observations []entity.RateObservation) error {
	if len(observations) == 0 {
		return nil
	}

	query := r.qb.Insert("rate_observation").
		Columns("series_id", "observation_date", "value", "created_at")
	for _, obs := range observations {
		query = query.Values(obs.SeriesID, obs.ObservationDate, obs.Value, squirrel.Expr("NOW()"))
	}
	query = query.Suffix("ON CONFLICT (series_id, observation_date) DO UPDATE SET value = EXCLUDED.value")

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.db.Execute(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("upsert %d observations: %w", len(observations), err)
	}
	r.metrics.AddToCounter("ratefeed.observations.upserted", int64(len(observations)), nil)
	return nil
}

// LatestDate returns the most recent stored observation date for the series,
// or nil when none exists.
func (r *Repository) LatestDate(ctx context.Context, seriesID string) (*time.Time, error) {
	query := r.qb.Select("MAX(observation_date)").
		From("rate_observation").
		Where(squirrel.Eq{"series_id": seriesID})

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var latest sql.NullTime
	if err := r.db.Get(ctx, &latest, sqlQuery, args...); err != nil {
		return nil, fmt.Errorf("latest observation date: %w", err)
	}
	if !latest.Valid {
		return nil, nil
	}
	return &latest.Time, nil
}

// LatestValue returns the most recent stored value for the series.
func (r *Repository) LatestValue(ctx context.Context, seriesID string) (float64, error) {
	query := r.qb.Select("value").
		From("rate_observation").
		Where(squirrel.Eq{"series_id": seriesID}).
		OrderBy("observation_date DESC").
		Limit(1)

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var value float64
	err = r.db.Get(ctx, &value, sqlQuery, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoObservations
	}
	if err != nil {
		return 0, fmt.Errorf("latest observation value: %w", err)
	}
	return value, nil
}
