package parse

import (
	"context"

	"github.com/anaishowland/oasive-db-sub000/internal/catalog"
	"github.com/anaishowland/oasive-db-sub000/internal/database"
	"github.com/anaishowland/oasive-db-sub000/internal/entity"
	"github.com/anaishowland/oasive-db-sub000/internal/observability"
	"github.com/anaishowland/oasive-db-sub000/internal/warehouse"
)

// loanColumns maps the loan-level disclosure's header labels to internal names.
var loanColumns = map[string]string{
	"Loan Identifier":                 "loan_id",
	"Prefix":                          "prefix",
	"Security Identifier":             "security_id",
	"Mortgage Loan Amount":            "orig_upb",
	"Current Investor Loan UPB":       "current_upb",
	"Original Interest Rate":          "orig_rate",
	"Current Interest Rate":           "current_rate",
	"First Payment Date":              "first_pay_date",
	"Loan Term":                       "loan_term",
	"Remaining Months to Maturity":    "rem_months",
	"Loan Age":                        "loan_age",
	"Loan-To-Value (LTV)":             "ltv",
	"Combined Loan-To-Value (CLTV)":   "cltv",
	"Debt-To-Income (DTI)":            "dti",
	"Borrower Credit Score":           "fico",
	"Number of Borrowers":             "num_borrowers",
	"First Time Home Buyer Indicator": "first_time_buyer",
	"Loan Purpose":                    "loan_purpose",
	"Occupancy Status":                "occupancy",
	"Number of Units":                 "num_units",
	"Property Type":                   "property_type",
	"Channel":                         "channel",
	"Property State":                  "state",
	"Government Insured Guarantee":    "govt_insured",
}

// loanBatchSize bounds the multi-row upsert; loan-level files run to millions
// of records.
const loanBatchSize = 5000

// LoanLevelParser handles the pipe-delimited loan-level disclosure file.
// Loans may reference pools whose issuance file has not arrived, so each new
// pool id gets a placeholder row before its loans are written.
type LoanLevelParser struct {
	pools   *warehouse.PoolRepository
	loans   *warehouse.LoanRepository
	logger  observability.Logger
	metrics observability.Metrics
}

// NewLoanLevelParser creates the loan-level parser.
func NewLoanLevelParser(pools *warehouse.PoolRepository, loans *warehouse.LoanRepository, logger observability.Logger, metrics observability.Metrics) *LoanLevelParser {
	return &LoanLevelParser{
		pools:   pools,
		loans:   loans,
		logger:  observability.Scoped(logger, "parse.loan_level"),
		metrics: metrics,
	}
}

// Family implements Parser.
func (p *LoanLevelParser) Family() catalog.FileFamily { return catalog.FamilyLoanLevel }

// Parse implements Parser.
func (p *LoanLevelParser) Parse(ctx context.Context, exec database.Executor, raw []byte, meta FileMeta) (Result, error) {
	content, err := extractArchive(meta.Filename, raw)
	if err != nil {
		return Result{}, err
	}

	var result Result
	var rowErr error
	batch := make([]entity.Loan, 0, loanBatchSize)
	seenPools := make(map[string]struct{})

	flush := func() bool {
		if len(batch) == 0 {
			return true
		}
		if err := p.loans.UpsertBatch(ctx, exec, batch); err != nil {
			rowErr = err
			return false
		}
		result.Loans += len(batch)
		batch = batch[:0]
		return true
	}

	err = readPipeDelimited(content, loanColumns, func(row record) bool {
		loanID := row["loan_id"]
		poolID := buildPoolID(row["prefix"], row["security_id"])
		if loanID == "" || poolID == "" {
			result.Skipped++
			return true
		}

		if _, ok := seenPools[poolID]; !ok {
			if err := p.pools.EnsureExists(ctx, exec, poolID); err != nil {
				rowErr = err
				return false
			}
			seenPools[poolID] = struct{}{}
		}

		batch = append(batch, p.buildLoan(loanID, poolID, row, meta))
		if len(batch) >= loanBatchSize {
			return flush()
		}
		return true
	})
	if rowErr != nil {
		return result, rowErr
	}
	if err != nil {
		return result, &ContentError{Filename: meta.Filename, Err: err}
	}
	if !flush() {
		return result, rowErr
	}

	if result.Skipped > 0 {
		p.logger.Warn("skipped malformed loan records",
			"filename", meta.Filename, "skipped", result.Skipped)
	}
	p.metrics.AddToCounter("parse.loans.upserted", int64(result.Loans), nil)
	return result, nil
}

func (p *LoanLevelParser) buildLoan(loanID, poolID string, row record, meta FileMeta) entity.Loan {
	return entity.Loan{
		LoanID:         loanID,
		PoolID:         poolID,
		FirstPayDate:   parseFileDate(row["first_pay_date"]),
		OrigRate:       safeFloat(row["orig_rate"]),
		CurrentRate:    safeFloat(row["current_rate"]),
		OrigUPB:        safeFloat(row["orig_upb"]),
		CurrentUPB:     safeFloat(row["current_upb"]),
		OrigTerm:       safeInt(row["loan_term"]),
		RemMonths:      safeInt(row["rem_months"]),
		LoanAge:        safeInt(row["loan_age"]),
		Fico:           safeInt(row["fico"]),
		LTV:            safeFloat(row["ltv"]),
		CLTV:           safeFloat(row["cltv"]),
		DTI:            safeFloat(row["dti"]),
		Occupancy:      optString(row["occupancy"]),
		PropertyType:   optString(row["property_type"]),
		Purpose:        optString(row["loan_purpose"]),
		State:          optString(row["state"]),
		Channel:        optString(row["channel"]),
		GovtInsured:    optString(row["govt_insured"]),
		FirstTimeBuyer: row["first_time_buyer"] == "Y",
		NumUnits:       safeInt(row["num_units"]),
		NumBorrowers:   safeInt(row["num_borrowers"]),
		SourceFile:     optString(meta.Filename),
	}
}
