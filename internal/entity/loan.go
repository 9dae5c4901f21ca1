package entity

import "time"

// Loan is a single disclosed loan. Rows reference their pool by pool_id only;
// loan files can arrive before the issuance file that materializes the pool,
// so the reference is satisfied by a placeholder pool row when needed.
type Loan struct {
	LoanID         string     `db:"loan_id"`
	PoolID         string     `db:"pool_id"`
	FirstPayDate   *time.Time `db:"first_pay_date"`
	OrigRate       *float64   `db:"orig_rate"`
	CurrentRate    *float64   `db:"current_rate"`
	OrigUPB        *float64   `db:"orig_upb"`
	CurrentUPB     *float64   `db:"current_upb"`
	OrigTerm       *int       `db:"orig_term"`
	RemMonths      *int       `db:"rem_months"`
	LoanAge        *int       `db:"loan_age"`
	Fico           *int       `db:"fico"`
	LTV            *float64   `db:"ltv"`
	CLTV           *float64   `db:"cltv"`
	DTI            *float64   `db:"dti"`
	Occupancy      *string    `db:"occupancy"`
	PropertyType   *string    `db:"property_type"`
	Purpose        *string    `db:"purpose"`
	State          *string    `db:"state"`
	Channel        *string    `db:"channel"`
	GovtInsured    *string    `db:"govt_insured"`
	FirstTimeBuyer bool       `db:"first_time_buyer"`
	NumUnits       *int       `db:"num_units"`
	NumBorrowers   *int       `db:"num_borrowers"`
	SourceFile     *string    `db:"source_file"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}
