package entity

import "time"

// Pool is one disclosed security with its weighted-average collateral
// characteristics, the classification tags written by the tag engine, and the
// composite scores used for screening. Tag columns stay NULL until the first
// tagging run touches the row; tags_updated_at marks the last complete run.
type Pool struct {
	PoolID        string     `db:"pool_id"`
	CUSIP         *string    `db:"cusip"`
	Prefix        *string    `db:"prefix"`
	ProductType   *string    `db:"product_type"`
	Program       *string    `db:"program"`
	Coupon        *float64   `db:"coupon"`
	IssueDate     *time.Time `db:"issue_date"`
	MaturityDate  *time.Time `db:"maturity_date"`
	OrigUPB       *float64   `db:"orig_upb"`
	ServicerName  *string    `db:"servicer_name"`
	OrigLoanCount *int       `db:"orig_loan_count"`
	AvgFico       *int       `db:"avg_fico"`
	AvgLTV        *float64   `db:"avg_ltv"`
	AvgDTI        *float64   `db:"avg_dti"`
	AvgLoanSize   *float64   `db:"avg_loan_size"`
	WAC           *float64   `db:"wac"`
	WALA          *int       `db:"wala"`
	TopState      *string    `db:"top_state"`
	TopStatePct   *float64   `db:"top_state_pct"`
	Factor        *float64   `db:"factor"`
	SourceFile    *string    `db:"source_file"`

	LoanBalanceTier      *string    `db:"loan_balance_tier"`
	LoanProgram          *string    `db:"loan_program"`
	FicoBucket           *string    `db:"fico_bucket"`
	LTVBucket            *string    `db:"ltv_bucket"`
	SeasoningStage       *string    `db:"seasoning_stage"`
	StatePrepayFriction  *string    `db:"state_prepay_friction"`
	ServicerPrepayRisk   *string    `db:"servicer_prepay_risk"`
	GeoConcentrationTag  *string    `db:"geo_concentration_tag"`
	RefiIncentiveBps     *float64   `db:"refi_incentive_bps"`
	BurnoutScore         *float64   `db:"burnout_score"`
	PremiumCPRMult       *float64   `db:"premium_cpr_mult"`
	DiscountCPRMult      *float64   `db:"discount_cpr_mult"`
	ConvexityRatio       *float64   `db:"convexity_ratio"`
	SCurvePosition       *string    `db:"s_curve_position"`
	ContractionRiskScore *float64   `db:"contraction_risk_score"`
	ExtensionRiskScore   *float64   `db:"extension_risk_score"`
	CompositePrepayScore *float64   `db:"composite_prepay_score"`
	BullScenarioScore    *float64   `db:"bull_scenario_score"`
	BearScenarioScore    *float64   `db:"bear_scenario_score"`
	NeutralScenarioScore *float64   `db:"neutral_scenario_score"`
	BehaviorTags         *string    `db:"behavior_tags"` // JSONB as string
	TagsUpdatedAt        *time.Time `db:"tags_updated_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
