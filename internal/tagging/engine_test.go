package tagging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anaishowland/oasive-db-sub000/internal/entity"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cal, err := DefaultCalibration()
	require.NoError(t, err)
	return NewEngine(cal)
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
func strPtr(v string) *string     { return &v }

// basePool is a neutral pool: moderate everything, no concentration, an
// unrecognized servicer.
func basePool(poolID string) *entity.Pool {
	return &entity.Pool{
		PoolID:       poolID,
		ServicerName: strPtr("Hometown Savings"),
		AvgFico:      intPtr(740),
		WALA:         intPtr(36),
		Factor:       floatPtr(0.80),
	}
}

func TestTag_ScenarioSeparation(t *testing.T) {
	engine := newTestEngine(t)
	const referenceRate = 6.0

	// Both pools carry the same +120bps incentive; they differ only in
	// balance tier and program.
	protected := basePool("LLB-POOL")
	protected.AvgLoanSize = floatPtr(80000)
	protected.Program = strPtr("USDA")
	protected.WAC = floatPtr(7.2)

	exposed := basePool("JUMBO-POOL")
	exposed.AvgLoanSize = floatPtr(900000)
	exposed.Program = strPtr("CONV")
	exposed.WAC = floatPtr(7.2)

	protectedTags := engine.Tag(protected, referenceRate)
	exposedTags := engine.Tag(exposed, referenceRate)

	assert.Equal(t, "LLB1", protectedTags.LoanBalanceTier)
	assert.Equal(t, "USDA", protectedTags.LoanProgram)
	assert.Equal(t, "JUMBO", exposedTags.LoanBalanceTier)
	assert.Equal(t, "CONV", exposedTags.LoanProgram)
	assert.InDelta(t, 120.0, protectedTags.RefiIncentiveBps, 0.001)
	assert.InDelta(t, exposedTags.RefiIncentiveBps, protectedTags.RefiIncentiveBps, 0.001)

	assert.GreaterOrEqual(t, protectedTags.CompositePrepayScore, 70.0,
		"low-balance government pool should screen as strongly protected")
	assert.LessOrEqual(t, exposedTags.CompositePrepayScore, 35.0,
		"jumbo conventional pool with the same incentive should screen as exposed")

	// The protected pool's convexity profile shows up in the flags too.
	assert.Less(t, protectedTags.ConvexityRatio, 0.70)
	assert.Contains(t, protectedTags.BehaviorTags, "positive_convexity")
	assert.Greater(t, exposedTags.ConvexityRatio, 1.10)
	assert.Contains(t, exposedTags.BehaviorTags, "negative_convexity")
}

func TestTag_Deterministic(t *testing.T) {
	engine := newTestEngine(t)

	pool := basePool("DET-POOL")
	pool.AvgLoanSize = floatPtr(140000)
	pool.Program = strPtr("FHA")
	pool.WAC = floatPtr(6.75)
	pool.TopState = strPtr("NY")
	pool.TopStatePct = floatPtr(34)
	pool.ServicerName = strPtr("Wells Fargo Home Mortgage")

	first := engine.Tag(pool, 6.5)
	second := engine.Tag(pool, 6.5)
	assert.Equal(t, first, second)

	// A different pinned rate must change the incentive, not panic or drift.
	third := engine.Tag(pool, 5.0)
	assert.NotEqual(t, first.RefiIncentiveBps, third.RefiIncentiveBps)
}

func TestTag_ScoreBoundsUnderAdversarialInputs(t *testing.T) {
	engine := newTestEngine(t)

	extremes := []*entity.Pool{
		{
			PoolID:      "ADV-1",
			AvgLoanSize: floatPtr(0),
			AvgFico:     intPtr(0),
			AvgLTV:      floatPtr(500),
			WAC:         floatPtr(25),
			WALA:        intPtr(600),
			Factor:      floatPtr(0),
			TopState:    strPtr("NY"),
			TopStatePct: floatPtr(100),
		},
		{
			PoolID:      "ADV-2",
			AvgLoanSize: floatPtr(100000000),
			AvgFico:     intPtr(850),
			AvgLTV:      floatPtr(0),
			WAC:         floatPtr(0.01),
			WALA:        intPtr(0),
			Factor:      floatPtr(1.0),
			ServicerName: strPtr("Rocket Mortgage"),
		},
		{PoolID: "ADV-3"}, // everything missing
	}

	for _, pool := range extremes {
		for _, rate := range []float64{0, 6.5, 20} {
			tags := engine.Tag(pool, rate)

			bounded := map[string]float64{
				"burnout":     tags.BurnoutScore,
				"contraction": tags.ContractionRiskScore,
				"extension":   tags.ExtensionRiskScore,
				"composite":   tags.CompositePrepayScore,
				"bull":        tags.BullScenarioScore,
				"bear":        tags.BearScenarioScore,
				"neutral":     tags.NeutralScenarioScore,
			}
			for name, score := range bounded {
				assert.GreaterOrEqual(t, score, 0.0, "%s for %s at rate %.1f", name, pool.PoolID, rate)
				assert.LessOrEqual(t, score, 100.0, "%s for %s at rate %.1f", name, pool.PoolID, rate)
			}
			assert.Greater(t, tags.PremiumCPRMult, 0.0)
			assert.Greater(t, tags.DiscountCPRMult, 0.0)
		}
	}
}

func TestClassify_InclusiveBoundaries(t *testing.T) {
	engine := newTestEngine(t)

	assert.Equal(t, "LLB1", engine.classifyBalanceTier(floatPtr(85000)))
	assert.Equal(t, "LLB2", engine.classifyBalanceTier(floatPtr(85000.01)))
	assert.Equal(t, "STD", engine.classifyBalanceTier(floatPtr(766550)))
	assert.Equal(t, "JUMBO", engine.classifyBalanceTier(floatPtr(766551)))
	assert.Equal(t, "STD", engine.classifyBalanceTier(nil))

	assert.Equal(t, "FICO_LOW", engine.classifyFicoBucket(intPtr(659)))
	assert.Equal(t, "FICO_SUBPRIME", engine.classifyFicoBucket(intPtr(660)))
	assert.Equal(t, "FICO_SUPER", engine.classifyFicoBucket(intPtr(780)))
	assert.Equal(t, "FICO_GOOD", engine.classifyFicoBucket(nil))

	assert.Equal(t, "NEW_PRODUCTION", engine.classifySeasoningStage(intPtr(6)))
	assert.Equal(t, "RAMPING", engine.classifySeasoningStage(intPtr(7)))
	assert.Equal(t, "BURNED_OUT", engine.classifySeasoningStage(intPtr(61)))
}

func TestBurnoutScore_Components(t *testing.T) {
	engine := newTestEngine(t)

	// 36 months of seasoning (21 pts), factor 0.80 paydown (12 pts), and a
	// +120bps in-the-money persistence bonus capped at 20 pts.
	score := engine.burnoutScore(intPtr(36), floatPtr(0.80), 120)
	assert.InDelta(t, 53.0, score, 0.001)

	// Out of the money: no persistence bonus.
	score = engine.burnoutScore(intPtr(36), floatPtr(0.80), -50)
	assert.InDelta(t, 33.0, score, 0.001)

	// Missing inputs fall back to calibration defaults rather than zero.
	score = engine.burnoutScore(nil, nil, 0)
	assert.Greater(t, score, 0.0)
}

func TestApplyInteractions_DocumentedPairCorrected(t *testing.T) {
	engine := newTestEngine(t)

	in := multiplierInputs{
		balanceTier:   "LLB1",
		program:       "CONV",
		ficoBucket:    "FICO_GOOD",
		servicerRisk:  servicerProtected,
		stateFriction: frictionModerate,
	}

	naive := naiveMultiplier(engine.cal.PremiumMultipliers, in)
	assert.InDelta(t, 0.65*0.85, naive, 0.0001)

	// The LLB1 + protected-servicer pair is documented: its combined effect
	// is less than the naive product, corrected by 1.10.
	corrected := engine.applyInteractions("premium", naive, in)
	assert.InDelta(t, round3(naive*1.10), corrected, 0.0001)

	// An undocumented combination stays at the naive product.
	in.servicerRisk = servicerNeutral
	naive = naiveMultiplier(engine.cal.PremiumMultipliers, in)
	assert.InDelta(t, round3(naive), engine.applyInteractions("premium", naive, in), 0.0001)
}

func TestBehaviorFlags_ExtensionRisk(t *testing.T) {
	engine := newTestEngine(t)

	// Deep out of the money, high remaining factor, jumbo discount profile.
	pool := basePool("EXT-POOL")
	pool.AvgLoanSize = floatPtr(900000)
	pool.Program = strPtr("CONV")
	pool.WAC = floatPtr(4.5)
	pool.Factor = floatPtr(0.95)

	tags := engine.Tag(pool, 6.5)
	require.InDelta(t, -200.0, tags.RefiIncentiveBps, 0.001)
	assert.Contains(t, tags.BehaviorTags, "extension_risk")
	assert.NotContains(t, tags.BehaviorTags, "burnout_candidate")
}

func TestProtectionPoints_FollowCalibration(t *testing.T) {
	engine := newTestEngine(t)

	pool := basePool("PP-POOL")
	pool.AvgLoanSize = floatPtr(80000)
	pool.ServicerName = strPtr("Wells Fargo Home Mortgage")

	tags := engine.Tag(pool, 6.0)
	protected, ok := tags.BehaviorTags["prepay_protected"]
	require.True(t, ok)
	assert.Equal(t, "moderate", protected.Strength)
	assert.InDelta(t, 37.0, protected.Details["protection_points"], 0.001)

	// The bonus scale comes from the calibration, not from code: zeroing it
	// must suppress the flag for the same pool.
	cal, err := DefaultCalibration()
	require.NoError(t, err)
	cal.ProtectionPoints = ProtectionPoints{}
	retuned := NewEngine(cal).Tag(pool, 6.0)
	assert.NotContains(t, retuned.BehaviorTags, "prepay_protected")
}

func TestCalibration_WeightValidation(t *testing.T) {
	cal, err := DefaultCalibration()
	require.NoError(t, err)

	cal.CompositeWeights.Burnout += 0.05
	err = cal.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "composite weights")
}

func TestCalibration_LadderValidation(t *testing.T) {
	cal, err := DefaultCalibration()
	require.NoError(t, err)

	cal.FicoBuckets[1].Max = cal.FicoBuckets[0].Max - 1
	err = cal.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fico_buckets")
}
