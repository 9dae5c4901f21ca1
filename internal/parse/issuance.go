package parse

import (
	"context"
	"fmt"

	"github.com/anaishowland/oasive-db-sub000/internal/catalog"
	"github.com/anaishowland/oasive-db-sub000/internal/database"
	"github.com/anaishowland/oasive-db-sub000/internal/entity"
	"github.com/anaishowland/oasive-db-sub000/internal/observability"
	"github.com/anaishowland/oasive-db-sub000/internal/warehouse"
)

// issuanceColumns maps the issuance summary's header labels to internal names.
var issuanceColumns = map[string]string{
	"Prefix":                                  "prefix",
	"Security Identifier":                     "security_id",
	"CUSIP":                                   "cusip",
	"Security Factor Date":                    "factor_date",
	"Security Factor":                         "factor",
	"Issue Date":                              "issue_date",
	"Maturity Date":                           "maturity_date",
	"Issuance Investor Security UPB":          "issuance_upb",
	"Current Investor Security UPB":           "current_upb",
	"WA Net Interest Rate":                    "wa_net_rate",
	"WA Current Interest Rate":                "wa_current_rate",
	"WA Loan Term":                            "wa_loan_term",
	"WA Loan Age":                             "wa_loan_age",
	"Average Mortgage Loan Amount":            "avg_loan_amount",
	"WA Loan-To-Value (LTV)":                  "wa_ltv",
	"WA Debt-To-Income (DTI)":                 "wa_dti",
	"WA Borrower Credit Score":                "wa_fico",
	"Loan Count":                              "loan_count",
	"Servicer Name":                           "servicer_name",
	"Government Program":                      "program",
}

// IssuanceParser handles the pipe-delimited pool issuance summary: one pool
// upsert and one period fact per record.
type IssuanceParser struct {
	pools   *warehouse.PoolRepository
	facts   *warehouse.FactRepository
	logger  observability.Logger
	metrics observability.Metrics
}

// NewIssuanceParser creates the issuance parser.
func NewIssuanceParser(pools *warehouse.PoolRepository, facts *warehouse.FactRepository, logger observability.Logger, metrics observability.Metrics) *IssuanceParser {
	return &IssuanceParser{
		pools:   pools,
		facts:   facts,
		logger:  observability.Scoped(logger, "parse.issuance"),
		metrics: metrics,
	}
}

// Family implements Parser.
func (p *IssuanceParser) Family() catalog.FileFamily { return catalog.FamilyIssuance }

// Parse implements Parser.
func (p *IssuanceParser) Parse(ctx context.Context, exec database.Executor, raw []byte, meta FileMeta) (Result, error) {
	content, err := extractArchive(meta.Filename, raw)
	if err != nil {
		return Result{}, err
	}

	var result Result
	var rowErr error

	err = readPipeDelimited(content, issuanceColumns, func(row record) bool {
		poolID := buildPoolID(row["prefix"], row["security_id"])
		if poolID == "" {
			result.Skipped++
			return true
		}

		pool := p.buildPool(poolID, row, meta)
		if err := p.pools.Upsert(ctx, exec, pool); err != nil {
			rowErr = err
			return false
		}
		result.Pools++

		if fact := p.buildFact(poolID, row, meta); fact != nil {
			if err := p.facts.Upsert(ctx, exec, fact); err != nil {
				rowErr = err
				return false
			}
			result.Facts++
		}
		return true
	})
	if rowErr != nil {
		return result, rowErr
	}
	if err != nil {
		return result, &ContentError{Filename: meta.Filename, Err: err}
	}

	p.metrics.AddToCounter("parse.pools.upserted", int64(result.Pools), nil)
	return result, nil
}

func (p *IssuanceParser) buildPool(poolID string, row record, meta FileMeta) *entity.Pool {
	pool := &entity.Pool{
		PoolID:        poolID,
		CUSIP:         optString(row["cusip"]),
		Prefix:        optString(row["prefix"]),
		Program:       optString(row["program"]),
		Coupon:        safeFloat(row["wa_net_rate"]),
		IssueDate:     parseFileDate(row["issue_date"]),
		MaturityDate:  parseFileDate(row["maturity_date"]),
		OrigUPB:       safeFloat(row["issuance_upb"]),
		ServicerName:  optString(row["servicer_name"]),
		OrigLoanCount: safeInt(row["loan_count"]),
		AvgFico:       safeInt(row["wa_fico"]),
		AvgLTV:        safeFloat(row["wa_ltv"]),
		AvgDTI:        safeFloat(row["wa_dti"]),
		AvgLoanSize:   safeFloat(row["avg_loan_amount"]),
		WAC:           safeFloat(row["wa_current_rate"]),
		WALA:          safeInt(row["wa_loan_age"]),
		Factor:        safeFloat(row["factor"]),
		SourceFile:    optString(meta.Filename),
	}
	pool.ProductType = deriveProductType(safeInt(row["wa_loan_term"]))
	return pool
}

func (p *IssuanceParser) buildFact(poolID string, row record, meta FileMeta) *entity.PoolPeriodFact {
	period := parseFileDate(row["factor_date"])
	if period == nil {
		period = meta.FileDate
	}
	if period == nil {
		return nil
	}
	return &entity.PoolPeriodFact{
		PoolID:     poolID,
		Period:     firstOfMonth(*period),
		LoanCount:  safeInt(row["loan_count"]),
		Factor:     safeFloat(row["factor"]),
		CurrentUPB: safeFloat(row["current_upb"]),
		SourceFile: optString(meta.Filename),
	}
}

// deriveProductType maps the weighted-average loan term onto the coarse
// product buckets used for screening.
func deriveProductType(term *int) *string {
	if term == nil {
		return nil
	}
	var product string
	switch {
	case *term >= 350:
		product = "30yr"
	case *term >= 170:
		product = "20yr"
	case *term >= 160:
		product = "15yr"
	case *term >= 110:
		product = "10yr"
	default:
		product = "Other"
	}
	return &product
}

// buildPoolID joins prefix and security identifier; either side may be blank
// in malformed rows, which yields an empty id and a skipped record.
func buildPoolID(prefix, securityID string) string {
	if prefix == "" && securityID == "" {
		return ""
	}
	if securityID == "" {
		return ""
	}
	return fmt.Sprintf("%s-%s", prefix, securityID)
}
