// Package tagging implements the deterministic tag and scoring engine for
// pools. The engine is a pure function of the pool's attributes, the loaded
// calibration, and the reference rate pinned for the run: tagging the same
// pool twice with the same inputs yields identical output.
package tagging

import "github.com/anaishowland/oasive-db-sub000/internal/entity"

// Engine computes the four tag layers for one pool at a time.
type Engine struct {
	cal *Calibration
}

// NewEngine creates an engine over a validated calibration.
func NewEngine(cal *Calibration) *Engine {
	return &Engine{cal: cal}
}

// Tag runs all four layers over the pool. referenceRate is the run's pinned
// reference rate, in percent; it is passed explicitly so every pool in one
// run sees the same rate no matter how long the run takes.
func (e *Engine) Tag(pool *entity.Pool, referenceRate float64) *entity.PoolTags {
	tags := &entity.PoolTags{PoolID: pool.PoolID}

	// Layer 1: static classifications.
	in := multiplierInputs{
		balanceTier:   e.classifyBalanceTier(pool.AvgLoanSize),
		program:       e.classifyProgram(pool.Program),
		ficoBucket:    e.classifyFicoBucket(pool.AvgFico),
		servicerRisk:  e.classifyServicerRisk(pool.ServicerName),
		stateFriction: e.classifyStateFriction(pool.TopState, pool.TopStatePct),
	}
	tags.LoanBalanceTier = in.balanceTier
	tags.LoanProgram = in.program
	tags.FicoBucket = in.ficoBucket
	tags.ServicerPrepayRisk = in.servicerRisk
	tags.StatePrepayFriction = in.stateFriction
	tags.LTVBucket = e.classifyLTVBucket(pool.AvgLTV)
	tags.SeasoningStage = e.classifySeasoningStage(pool.WALA)
	tags.GeoConcentrationTag = e.classifyGeoConcentration(pool.TopState, pool.TopStatePct)

	// Layer 2: derived metrics.
	tags.RefiIncentiveBps = e.refiIncentiveBps(pool.WAC, referenceRate)
	tags.BurnoutScore = e.burnoutScore(pool.WALA, pool.Factor, tags.RefiIncentiveBps)
	tags.SCurvePosition = e.sCurvePosition(tags.RefiIncentiveBps)

	// Layer 3: multiplier interaction corrections and risk scores.
	tags.PremiumCPRMult = e.applyInteractions("premium",
		naiveMultiplier(e.cal.PremiumMultipliers, in), in)
	tags.DiscountCPRMult = e.applyInteractions("discount",
		naiveMultiplier(e.cal.DiscountMultipliers, in), in)
	tags.ConvexityRatio = convexityRatio(tags.PremiumCPRMult, tags.DiscountCPRMult)
	tags.ContractionRiskScore = e.contractionRisk(tags.PremiumCPRMult, tags.BurnoutScore, in)
	tags.ExtensionRiskScore = e.extensionRisk(tags.DiscountCPRMult, tags.RefiIncentiveBps, pool.Factor, in)

	// Layer 4: composites and behavioral flags.
	convexityComp := e.convexityComponentScore(tags.ConvexityRatio)
	tags.CompositePrepayScore = e.compositePrepayScore(in, tags.LTVBucket, tags.SeasoningStage,
		tags.BurnoutScore, convexityComp)
	tags.BullScenarioScore = e.bullScenarioScore(tags.ContractionRiskScore, tags.CompositePrepayScore, tags.BurnoutScore)
	tags.BearScenarioScore = e.bearScenarioScore(tags.ExtensionRiskScore, tags.DiscountCPRMult, tags.ConvexityRatio)
	tags.NeutralScenarioScore = e.neutralScenarioScore(tags.CompositePrepayScore, tags.ConvexityRatio)
	tags.BehaviorTags = e.behaviorFlags(tags, in, pool.Factor)

	return tags
}
