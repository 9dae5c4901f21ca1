package entity

import "time"

// PoolPeriodFact is one pool's monthly disclosure observation. Rows are keyed
// by (pool_id, period) and append-only: re-processing the same file rewrites
// the same key with the same values instead of adding a duplicate.
type PoolPeriodFact struct {
	PoolID     string    `db:"pool_id"`
	Period     time.Time `db:"period"`
	LoanCount  *int      `db:"loan_count"`
	Factor     *float64  `db:"factor"`
	CurrentUPB *float64  `db:"curr_upb"`
	SMM        *float64  `db:"smm"`
	CPR        *float64  `db:"cpr"`
	SourceFile *string   `db:"source_file"`
	CreatedAt  time.Time `db:"created_at"`
}
