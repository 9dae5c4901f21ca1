package entity

// PoolTags is the full output of one tagging pass over a pool: layer-1
// classifications, layer-2 derived metrics, layer-3 risk adjustments and the
// layer-4 composite scores. Written back to the pool row in one statement so a
// pool is never half-tagged.
type PoolTags struct {
	PoolID string

	LoanBalanceTier     string
	LoanProgram         string
	FicoBucket          string
	LTVBucket           string
	SeasoningStage      string
	StatePrepayFriction string
	ServicerPrepayRisk  string
	GeoConcentrationTag string

	RefiIncentiveBps float64
	BurnoutScore     float64
	PremiumCPRMult   float64
	DiscountCPRMult  float64
	ConvexityRatio   float64
	SCurvePosition   string

	ContractionRiskScore float64
	ExtensionRiskScore   float64

	CompositePrepayScore float64
	BullScenarioScore    float64
	BearScenarioScore    float64
	NeutralScenarioScore float64

	BehaviorTags map[string]BehaviorTag
}

// BehaviorTag is one entry of the open-ended behavioral tag map, stored as
// JSONB on the pool row.
type BehaviorTag struct {
	Value    bool               `json:"value"`
	Strength string             `json:"strength,omitempty"`
	Severity string             `json:"severity,omitempty"`
	Details  map[string]float64 `json:"details,omitempty"`
}
