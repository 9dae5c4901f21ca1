package warehouse

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/anaishowland/oasive-db-sub000/internal/database"
	"github.com/anaishowland/oasive-db-sub000/internal/entity"
	"github.com/anaishowland/oasive-db-sub000/internal/observability"
)

// FactRepository persists per-period pool observations. The (pool_id, period)
// primary key makes re-processing a file idempotent: the same observation
// lands on the same key.
type FactRepository struct {
	db      database.Executor
	logger  observability.Logger
	metrics observability.Metrics
	qb      squirrel.StatementBuilderType
}

// NewFactRepository creates the fact repository.
func NewFactRepository(db database.Executor, logger observability.Logger, metrics observability.Metrics) *FactRepository {
	return &FactRepository{
		db:      db,
		logger:  observability.Scoped(logger, "warehouse.facts"),
		metrics: metrics,
		qb:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Upsert writes one period observation, overwriting the metric values when the
// key already exists.
func (r *FactRepository) Upsert(ctx context.Context, exec database.Executor, f *entity.PoolPeriodFact) error {
	query := r.qb.Insert("pool_period_fact").
		Columns("pool_id", "period", "loan_count", "factor", "curr_upb",
			"smm", "cpr", "source_file", "created_at").
		Values(f.PoolID, f.Period, f.LoanCount, f.Factor, f.CurrentUPB,
			f.SMM, f.CPR, f.SourceFile, squirrel.Expr("NOW()")).
		Suffix(`ON CONFLICT (pool_id, period) DO UPDATE SET
			loan_count = COALESCE(EXCLUDED.loan_count, pool_period_fact.loan_count),
			factor = COALESCE(EXCLUDED.factor, pool_period_fact.factor),
			curr_upb = COALESCE(EXCLUDED.curr_upb, pool_period_fact.curr_upb),
			smm = COALESCE(EXCLUDED.smm, pool_period_fact.smm),
			cpr = COALESCE(EXCLUDED.cpr, pool_period_fact.cpr),
			source_file = EXCLUDED.source_file`)

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := exec.Execute(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("upsert fact %s/%s: %w", f.PoolID, f.Period.Format("2006-01"), err)
	}
	return nil
}

// LatestFactor returns the most recent factor observation for the pool, or
// (nil, nil) when none exists.
func (r *FactRepository) LatestFactor(ctx context.Context, poolID string) (*float64, error) {
	query := r.qb.Select("factor").
		From("pool_period_fact").
		Where(squirrel.Eq{"pool_id": poolID}).
		Where("factor IS NOT NULL").
		OrderBy("period DESC").
		Limit(1)

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var factor float64
	err = r.db.Get(ctx, &factor, sqlQuery, args...)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest factor for %s: %w", poolID, err)
	}
	return &factor, nil
}
