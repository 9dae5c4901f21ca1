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

// factorColumns maps the monthly cohort factor file's header labels.
var factorColumns = map[string]string{
	"Type of Security":        "security_type",
	"Year":                    "vintage_year",
	"Cohort Current UPB":      "cohort_upb",
	"Date":                    "record_date",
	"Factor Date":             "factor_date",
	"SMM":                     "smm",
	"CPR":                     "cpr",
	"WA Net Interest Rate":    "wa_net_rate",
}

// FactorParser handles the monthly cohort factor/prepayment file. Cohorts are
// keyed by security type and vintage year rather than an individual security,
// so each cohort gets a synthetic pool id and its observations land as period
// facts under it.
type FactorParser struct {
	pools   *warehouse.PoolRepository
	facts   *warehouse.FactRepository
	logger  observability.Logger
	metrics observability.Metrics
}

// NewFactorParser creates the factor parser.
func NewFactorParser(pools *warehouse.PoolRepository, facts *warehouse.FactRepository, logger observability.Logger, metrics observability.Metrics) *FactorParser {
	return &FactorParser{
		pools:   pools,
		facts:   facts,
		logger:  observability.Scoped(logger, "parse.factor"),
		metrics: metrics,
	}
}

// Family implements Parser.
func (p *FactorParser) Family() catalog.FileFamily { return catalog.FamilyFactor }

// Parse implements Parser.
func (p *FactorParser) Parse(ctx context.Context, exec database.Executor, raw []byte, meta FileMeta) (Result, error) {
	content, err := extractArchive(meta.Filename, raw)
	if err != nil {
		return Result{}, err
	}

	var result Result
	var rowErr error
	seenCohorts := make(map[string]struct{})

	err = readPipeDelimited(content, factorColumns, func(row record) bool {
		cohortID := cohortPoolID(row["security_type"], row["vintage_year"])
		if cohortID == "" {
			result.Skipped++
			return true
		}

		period := parseFileDate(row["factor_date"])
		if period == nil {
			period = parseFileDate(row["record_date"])
		}
		if period == nil {
			period = meta.FileDate
		}
		if period == nil {
			result.Skipped++
			return true
		}

		if _, ok := seenCohorts[cohortID]; !ok {
			if err := p.pools.EnsureExists(ctx, exec, cohortID); err != nil {
				rowErr = err
				return false
			}
			seenCohorts[cohortID] = struct{}{}
		}

		fact := &entity.PoolPeriodFact{
			PoolID:     cohortID,
			Period:     firstOfMonth(*period),
			CurrentUPB: safeFloat(row["cohort_upb"]),
			SMM:        safeFloat(row["smm"]),
			CPR:        safeFloat(row["cpr"]),
			SourceFile: optString(meta.Filename),
		}
		if err := p.facts.Upsert(ctx, exec, fact); err != nil {
			rowErr = err
			return false
		}
		result.Facts++
		return true
	})
	if rowErr != nil {
		return result, rowErr
	}
	if err != nil {
		return result, &ContentError{Filename: meta.Filename, Err: err}
	}

	p.metrics.AddToCounter("parse.facts.upserted", int64(result.Facts), nil)
	return result, nil
}

func cohortPoolID(securityType, vintageYear string) string {
	if securityType == "" || vintageYear == "" {
		return ""
	}
	return fmt.Sprintf("COHORT-%s-%s", securityType, vintageYear)
}
