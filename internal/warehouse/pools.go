package warehouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/anaishowland/oasive-db-sub000/internal/database"
	"github.com/anaishowland/oasive-db-sub000/internal/entity"
	"github.com/anaishowland/oasive-db-sub000/internal/observability"
)

// PoolRepository persists pool rows and the tag write-back.
type PoolRepository struct {
	db      database.Executor
	logger  observability.Logger
	metrics observability.Metrics
	qb      squirrel.StatementBuilderType
}

// NewPoolRepository creates the pool repository.
func NewPoolRepository(db database.Executor, logger observability.Logger, metrics observability.Metrics) *PoolRepository {
	return &PoolRepository{
		db:      db,
		logger:  observability.Scoped(logger, "warehouse.pools"),
		metrics: metrics,
		qb:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Upsert inserts a pool or refreshes its mutable attributes. Re-parsing the
// same file is a no-op on the second pass: every value written is derived from
// the file itself. Tag columns are never touched here.
func (r *PoolRepository) Upsert(ctx context.Context, exec database.Executor, p *entity.Pool) error {
	query := r.qb.Insert("pool").
		Columns("pool_id", "cusip", "prefix", "product_type", "program", "coupon",
			"issue_date", "maturity_date", "orig_upb", "servicer_name", "orig_loan_count",
			"avg_fico", "avg_ltv", "avg_dti", "avg_loan_size", "wac", "wala",
			"top_state", "top_state_pct", "factor", "source_file", "created_at", "updated_at").
		Values(p.PoolID, p.CUSIP, p.Prefix, p.ProductType, p.Program, p.Coupon,
			p.IssueDate, p.MaturityDate, p.OrigUPB, p.ServicerName, p.OrigLoanCount,
			p.AvgFico, p.AvgLTV, p.AvgDTI, p.AvgLoanSize, p.WAC, p.WALA,
			p.TopState, p.TopStatePct, p.Factor, p.SourceFile,
			squirrel.Expr("NOW()"), squirrel.Expr("NOW()")).
		Suffix(`ON CONFLICT (pool_id) DO UPDATE SET
			cusip = COALESCE(EXCLUDED.cusip, pool.cusip),
			prefix = COALESCE(EXCLUDED.prefix, pool.prefix),
			product_type = COALESCE(EXCLUDED.product_type, pool.product_type),
			program = COALESCE(EXCLUDED.program, pool.program),
			coupon = COALESCE(EXCLUDED.coupon, pool.coupon),
			issue_date = COALESCE(EXCLUDED.issue_date, pool.issue_date),
			maturity_date = COALESCE(EXCLUDED.maturity_date, pool.maturity_date),
			orig_upb = COALESCE(EXCLUDED.orig_upb, pool.orig_upb),
			servicer_name = COALESCE(EXCLUDED.servicer_name, pool.servicer_name),
			orig_loan_count = COALESCE(EXCLUDED.orig_loan_count, pool.orig_loan_count),
			avg_fico = COALESCE(EXCLUDED.avg_fico, pool.avg_fico),
			avg_ltv = COALESCE(EXCLUDED.avg_ltv, pool.avg_ltv),
			avg_dti = COALESCE(EXCLUDED.avg_dti, pool.avg_dti),
			avg_loan_size = COALESCE(EXCLUDED.avg_loan_size, pool.avg_loan_size),
			wac = COALESCE(EXCLUDED.wac, pool.wac),
			wala = COALESCE(EXCLUDED.wala, pool.wala),
			top_state = COALESCE(EXCLUDED.top_state, pool.top_state),
			top_state_pct = COALESCE(EXCLUDED.top_state_pct, pool.top_state_pct),
			factor = COALESCE(EXCLUDED.factor, pool.factor),
			source_file = COALESCE(EXCLUDED.source_file, pool.source_file),
			updated_at = NOW()`)

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := exec.Execute(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("upsert pool %s: %w", p.PoolID, err)
	}
	return nil
}

// EnsureExists inserts a bare placeholder row when loan or factor records
// reference a pool whose issuance file has not arrived yet. An existing row is
// left alone; the later issuance upsert fills the attributes in.
func (r *PoolRepository) EnsureExists(ctx context.Context, exec database.Executor, poolID string) error {
	query := r.qb.Insert("pool").
		Columns("pool_id", "created_at", "updated_at").
		Values(poolID, squirrel.Expr("NOW()"), squirrel.Expr("NOW()")).
		Suffix("ON CONFLICT (pool_id) DO NOTHING")

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := exec.Execute(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("ensure pool %s: %w", poolID, err)
	}
	return nil
}

// SelectForTagging fetches the next batch of pools to tag, ordered by pool id
// for stable pagination. With retagAll false only pools never tagged are
// returned.
func (r *PoolRepository) SelectForTagging(ctx context.Context, retagAll bool, afterPoolID string, limit int) ([]entity.Pool, error) {
	query := r.qb.Select("pool_id", "cusip", "prefix", "product_type", "program", "coupon",
		"issue_date", "maturity_date", "orig_upb", "servicer_name", "orig_loan_count",
		"avg_fico", "avg_ltv", "avg_dti", "avg_loan_size", "wac", "wala",
		"top_state", "top_state_pct", "factor", "source_file", "created_at", "updated_at").
		From("pool").
		OrderBy("pool_id ASC").
		Limit(uint64(limit))

	if !retagAll {
		query = query.Where("tags_updated_at IS NULL")
	}
	if afterPoolID != "" {
		query = query.Where(squirrel.Gt{"pool_id": afterPoolID})
	}

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var pools []entity.Pool
	if err := r.db.Select(ctx, &pools, sqlQuery, args...); err != nil {
		return nil, fmt.Errorf("select pools for tagging: %w", err)
	}
	return pools, nil
}

// CountUntagged returns how many pools have never been tagged.
func (r *PoolRepository) CountUntagged(ctx context.Context) (int, error) {
	query := r.qb.Select("COUNT(*)").From("pool").Where("tags_updated_at IS NULL")

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var count int
	if err := r.db.Get(ctx, &count, sqlQuery, args...); err != nil {
		return 0, fmt.Errorf("count untagged pools: %w", err)
	}
	return count, nil
}

// WriteTags persists one pool's complete tag set in a single statement, so the
// row is all-or-nothing per run: either every tag column reflects this run or
// none do.
func (r *PoolRepository) WriteTags(ctx context.Context, tags *entity.PoolTags) error {
	behaviorJSON, err := json.Marshal(tags.BehaviorTags)
	if err != nil {
		return fmt.Errorf("marshal behavior tags for %s: %w", tags.PoolID, err)
	}

	query := r.qb.Update("pool").
		Set("loan_balance_tier", tags.LoanBalanceTier).
		Set("loan_program", tags.LoanProgram).
		Set("fico_bucket", tags.FicoBucket).
		Set("ltv_bucket", tags.LTVBucket).
		Set("seasoning_stage", tags.SeasoningStage).
		Set("state_prepay_friction", tags.StatePrepayFriction).
		Set("servicer_prepay_risk", tags.ServicerPrepayRisk).
		Set("geo_concentration_tag", tags.GeoConcentrationTag).
		Set("refi_incentive_bps", tags.RefiIncentiveBps).
		Set("burnout_score", tags.BurnoutScore).
		Set("premium_cpr_mult", tags.PremiumCPRMult).
		Set("discount_cpr_mult", tags.DiscountCPRMult).
		Set("convexity_ratio", tags.ConvexityRatio).
		Set("s_curve_position", tags.SCurvePosition).
		Set("contraction_risk_score", tags.ContractionRiskScore).
		Set("extension_risk_score", tags.ExtensionRiskScore).
		Set("composite_prepay_score", tags.CompositePrepayScore).
		Set("bull_scenario_score", tags.BullScenarioScore).
		Set("bear_scenario_score", tags.BearScenarioScore).
		Set("neutral_scenario_score", tags.NeutralScenarioScore).
		Set("behavior_tags", string(behaviorJSON)).
		Set("tags_updated_at", squirrel.Expr("NOW()")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"pool_id": tags.PoolID})

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	result, err := r.db.Execute(ctx, sqlQuery, args...)
	if err != nil {
		return fmt.Errorf("write tags for %s: %w", tags.PoolID, err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		r.logger.Warn("tag write-back matched no pool", "pool_id", tags.PoolID)
	}
	r.metrics.IncrementCounter("warehouse.pools.tagged", nil)
	return nil
}

// Get fetches one pool by id. Returns (nil, nil) when absent.
func (r *PoolRepository) Get(ctx context.Context, poolID string) (*entity.Pool, error) {
	query := r.qb.Select("pool_id", "cusip", "prefix", "product_type", "program", "coupon",
		"issue_date", "maturity_date", "orig_upb", "servicer_name", "orig_loan_count",
		"avg_fico", "avg_ltv", "avg_dti", "avg_loan_size", "wac", "wala",
		"top_state", "top_state_pct", "factor", "source_file", "created_at", "updated_at").
		From("pool").
		Where(squirrel.Eq{"pool_id": poolID})

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p entity.Pool
	err = r.db.Get(ctx, &p, sqlQuery, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pool %s: %w", poolID, err)
	}
	return &p, nil
}
