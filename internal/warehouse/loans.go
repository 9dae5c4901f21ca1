package warehouse

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/anaishowland/oasive-db-sub000/internal/database"
	"github.com/anaishowland/oasive-db-sub000/internal/entity"
	"github.com/anaishowland/oasive-db-sub000/internal/observability"
)

// LoanRepository persists loan rows in batches.
type LoanRepository struct {
	db      database.Executor
	logger  observability.Logger
	metrics observability.Metrics
	qb      squirrel.StatementBuilderType
}

// NewLoanRepository creates the loan repository.
func NewLoanRepository(db database.Executor, logger observability.Logger, metrics observability.Metrics) *LoanRepository {
	return &LoanRepository{
		db:      db,
		logger:  observability.Scoped(logger, "warehouse.loans"),
		metrics: metrics,
		qb:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// UpsertBatch writes a batch of loans in one multi-row statement. Duplicate
// loan ids within overlapping file deliveries resolve last-write-wins.
func (r *LoanRepository) UpsertBatch(ctx context.Context, exec database.Executor, loans []entity.Loan) error {
	if len(loans) == 0 {
		return nil
	}

	query := r.qb.Insert("loan").
		Columns("loan_id", "pool_id", "first_pay_date", "orig_rate", "current_rate",
			"orig_upb", "current_upb", "orig_term", "rem_months", "loan_age",
			"fico", "ltv", "cltv", "dti", "occupancy", "property_type", "purpose",
			"state", "channel", "govt_insured", "first_time_buyer",
			"num_units", "num_borrowers", "source_file", "created_at", "updated_at")

	for _, l := range loans {
		query = query.Values(l.LoanID, l.PoolID, l.FirstPayDate, l.OrigRate, l.CurrentRate,
			l.OrigUPB, l.CurrentUPB, l.OrigTerm, l.RemMonths, l.LoanAge,
			l.Fico, l.LTV, l.CLTV, l.DTI, l.Occupancy, l.PropertyType, l.Purpose,
			l.State, l.Channel, l.GovtInsured, l.FirstTimeBuyer,
			l.NumUnits, l.NumBorrowers, l.SourceFile,
			squirrel.Expr("NOW()"), squirrel.Expr("NOW()"))
	}

	query = query.Suffix(`ON CONFLICT (loan_id) DO UPDATE SET
		pool_id = EXCLUDED.pool_id,
		current_rate = COALESCE(EXCLUDED.current_rate, loan.current_rate),
		current_upb = COALESCE(EXCLUDED.current_upb, loan.current_upb),
		rem_months = COALESCE(EXCLUDED.rem_months, loan.rem_months),
		loan_age = COALESCE(EXCLUDED.loan_age, loan.loan_age),
		source_file = EXCLUDED.source_file,
		updated_at = NOW()`)

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := exec.Execute(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("upsert loan batch of %d: %w", len(loans), err)
	}
	r.metrics.AddToCounter("warehouse.loans.upserted", int64(len(loans)), nil)
	return nil
}

// CountByPool returns how many loans reference the pool.
func (r *LoanRepository) CountByPool(ctx context.Context, poolID string) (int, error) {
	query := r.qb.Select("COUNT(*)").From("loan").Where(squirrel.Eq{"pool_id": poolID})

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var count int
	if err := r.db.Get(ctx, &count, sqlQuery, args...); err != nil {
		return 0, fmt.Errorf("count loans for pool %s: %w", poolID, err)
	}
	return count, nil
}
