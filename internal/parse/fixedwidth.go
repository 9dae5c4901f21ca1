package parse

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/anaishowland/oasive-db-sub000/internal/catalog"
	"github.com/anaishowland/oasive-db-sub000/internal/database"
	"github.com/anaishowland/oasive-db-sub000/internal/entity"
	"github.com/anaishowland/oasive-db-sub000/internal/observability"
	"github.com/anaishowland/oasive-db-sub000/internal/warehouse"
)

// The fixed-width loan file interleaves record types: a file header (H), then
// per pool a P record, its L loan records, and a T trailer. The L layout has
// three published versions; rather than guessing from the delivery date, the
// version is inferred from the record length itself, so a re-delivered
// back-catalog file parses with the layout it was actually written in.
const (
	layoutV10Len = 142 // base layout
	layoutV16Len = 154 // adds origination date, seller issuer id
	layoutV17Len = 192 // adds ARM fields
)

// fixedField is one column of the L record, positioned after the record type
// indicator. Rate columns carry three implied decimal places, amount and
// ratio columns two.
type fixedField struct {
	start, end int
	name       string
}

var loanFieldsV10 = []fixedField{
	{6, 16, "loan_id"},
	{20, 21, "loan_purpose"},
	{21, 23, "property_type"},
	{23, 31, "first_payment_date"},
	{39, 44, "orig_rate"},
	{44, 55, "orig_upb"},
	{66, 78, "current_upb"},
	{78, 81, "rem_months"},
	{81, 84, "loan_age"},
	{84, 86, "state"},
	{86, 91, "current_rate"},
	{91, 92, "first_time_buyer"},
	{92, 93, "channel"},
	{93, 94, "occupancy"},
	{94, 97, "fico"},
	{97, 103, "dti"},
	{103, 109, "ltv"},
	{109, 115, "cltv"},
	{115, 116, "num_borrowers"},
	{116, 118, "num_units"},
}

// Later versions only append fields the loan entity does not use, so every
// version shares the base field set; the length check still rejects layouts
// we have never seen.
func loanFieldsFor(lineLen int) ([]fixedField, string, error) {
	switch {
	case lineLen >= layoutV17Len:
		return loanFieldsV10, "v1.7", nil
	case lineLen >= layoutV16Len:
		return loanFieldsV10, "v1.6", nil
	case lineLen >= layoutV10Len:
		return loanFieldsV10, "v1.0", nil
	default:
		return nil, "", fmt.Errorf("%w: loan record length %d", ErrUnknownLayout, lineLen)
	}
}

// FixedWidthLoanParser handles the fixed-width loan file family.
type FixedWidthLoanParser struct {
	pools   *warehouse.PoolRepository
	loans   *warehouse.LoanRepository
	logger  observability.Logger
	metrics observability.Metrics
}

// NewFixedWidthLoanParser creates the fixed-width loan parser.
func NewFixedWidthLoanParser(pools *warehouse.PoolRepository, loans *warehouse.LoanRepository, logger observability.Logger, metrics observability.Metrics) *FixedWidthLoanParser {
	return &FixedWidthLoanParser{
		pools:   pools,
		loans:   loans,
		logger:  observability.Scoped(logger, "parse.loan_fixed"),
		metrics: metrics,
	}
}

// Family implements Parser.
func (p *FixedWidthLoanParser) Family() catalog.FileFamily { return catalog.FamilyLoanFixed }

// Parse implements Parser.
func (p *FixedWidthLoanParser) Parse(ctx context.Context, exec database.Executor, raw []byte, meta FileMeta) (Result, error) {
	content, err := extractArchive(meta.Filename, raw)
	if err != nil {
		return Result{}, err
	}

	var result Result
	batch := make([]entity.Loan, 0, loanBatchSize)
	seenPools := make(map[string]struct{})
	currentPool := ""
	layoutVersion := ""

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.loans.UpsertBatch(ctx, exec, batch); err != nil {
			return err
		}
		result.Loans += len(batch)
		batch = batch[:0]
		return nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		switch line[0] {
		case 'H', 'T':
			// file header / pool trailer, nothing to extract
		case 'P':
			if len(line) >= 8 {
				currentPool = strings.TrimSpace(line[1:8])
			} else {
				currentPool = ""
			}
		case 'L':
			if currentPool == "" {
				result.Skipped++
				continue
			}
			fields, version, err := loanFieldsFor(len(line))
			if err != nil {
				return result, &ContentError{Filename: meta.Filename, Err: err}
			}
			if layoutVersion == "" {
				layoutVersion = version
				p.logger.Info("resolved loan record layout",
					"filename", meta.Filename, "version", version, "record_length", len(line))
			}

			loan, ok := p.buildLoan(line[1:], fields, currentPool, meta)
			if !ok {
				result.Skipped++
				continue
			}

			if _, seen := seenPools[currentPool]; !seen {
				if err := p.pools.EnsureExists(ctx, exec, currentPool); err != nil {
					return result, err
				}
				seenPools[currentPool] = struct{}{}
			}

			batch = append(batch, loan)
			if len(batch) >= loanBatchSize {
				if err := flush(); err != nil {
					return result, err
				}
			}
		default:
			result.Skipped++
		}
	}
	if err := scanner.Err(); err != nil {
		return result, &ContentError{Filename: meta.Filename, Err: err}
	}
	if err := flush(); err != nil {
		return result, err
	}

	if result.Skipped > 0 {
		p.logger.Warn("skipped malformed fixed-width records",
			"filename", meta.Filename, "skipped", result.Skipped)
	}
	p.metrics.AddToCounter("parse.loans.upserted", int64(result.Loans), nil)
	return result, nil
}

func (p *FixedWidthLoanParser) buildLoan(content string, fields []fixedField, poolID string, meta FileMeta) (entity.Loan, bool) {
	values := make(map[string]string, len(fields))
	for _, f := range fields {
		if f.end > len(content) {
			continue
		}
		values[f.name] = strings.TrimSpace(content[f.start:f.end])
	}

	loanID := values["loan_id"]
	if loanID == "" {
		return entity.Loan{}, false
	}

	fieldRate := func(name string) *float64 { return impliedRate(values[name]) }
	fieldDecimal := func(name string) *float64 { return impliedDecimal(values[name]) }

	return entity.Loan{
		LoanID:         loanID,
		PoolID:         poolID,
		FirstPayDate:   parseFileDate(values["first_payment_date"]),
		OrigRate:       fieldRate("orig_rate"),
		CurrentRate:    fieldRate("current_rate"),
		OrigUPB:        fieldDecimal("orig_upb"),
		CurrentUPB:     fieldDecimal("current_upb"),
		RemMonths:      safeInt(values["rem_months"]),
		LoanAge:        safeInt(values["loan_age"]),
		Fico:           safeInt(values["fico"]),
		LTV:            fieldDecimal("ltv"),
		CLTV:           fieldDecimal("cltv"),
		DTI:            fieldDecimal("dti"),
		Occupancy:      optString(values["occupancy"]),
		PropertyType:   optString(values["property_type"]),
		Purpose:        optString(values["loan_purpose"]),
		State:          optString(values["state"]),
		Channel:        optString(values["channel"]),
		FirstTimeBuyer: values["first_time_buyer"] == "Y",
		NumUnits:       safeInt(values["num_units"]),
		NumBorrowers:   safeInt(values["num_borrowers"]),
		SourceFile:     optString(meta.Filename),
	}, true
}
