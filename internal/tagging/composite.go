package tagging

import (
	"math"

	"github.com/anaishowland/oasive-db-sub000/internal/entity"
)

// Layer 4: composite scores and the behavioral flag map. Every score is
// clamped to [0,100] after each additive step so adversarial inputs cannot
// push a composite out of range.

func lookupScore(table map[string]float64, key string, fallback float64) float64 {
	if v, ok := table[key]; ok {
		return v
	}
	return fallback
}

// convexityComponentScore maps the premium/discount ratio onto 0-100: the
// lower the ratio (better convexity), the higher the component.
func (e *Engine) convexityComponentScore(ratio float64) float64 {
	cfg := e.cal.ConvexityComponent
	return clamp((cfg.Base-ratio)*cfg.Scale, 0, 100)
}

// compositePrepayScore is the weighted protection score over all components.
func (e *Engine) compositePrepayScore(in multiplierInputs, ltvBucket, seasoningStage string, burnout, convexityComp float64) float64 {
	s := e.cal.ComponentScores
	w := e.cal.CompositeWeights

	composite := 0.0
	step := func(weighted float64) {
		composite = clamp(composite+weighted, 0, 100)
	}

	step(w.BalanceTier * lookupScore(s.BalanceTier, in.balanceTier, 40))
	step(w.Program * lookupScore(s.Program, in.program, 50))
	step(w.Convexity * convexityComp)
	step(w.Servicer * lookupScore(s.Servicer, in.servicerRisk, 50))
	step(w.Fico * lookupScore(s.Fico, in.ficoBucket, 50))
	step(w.State * lookupScore(s.State, in.stateFriction, 50))
	step(w.Burnout * clamp(burnout, 0, 100))
	step(w.LTV * lookupScore(s.LTV, ltvBucket, 55))
	step(w.Seasoning * lookupScore(s.Seasoning, seasoningStage, 50))

	return round1(composite)
}

func (e *Engine) bullScenarioScore(contractionRisk, composite, burnout float64) float64 {
	w := e.cal.ScenarioWeights.Bull
	score := w.ContractionProtection*(100-contractionRisk) +
		w.Composite*composite +
		w.Burnout*burnout
	return clamp(round1(score), 0, 100)
}

func (e *Engine) bearScenarioScore(extensionRisk, discountMult, ratio float64) float64 {
	w := e.cal.ScenarioWeights.Bear
	discountComponent := math.Min(100, discountMult*50)
	convexityComponent := 50.0
	if ratio < e.cal.BehaviorThresholds.PositiveConvexityBelow {
		convexityComponent = 100
	}
	score := w.ExtensionProtection*(100-extensionRisk) +
		w.DiscountMult*discountComponent +
		w.Convexity*convexityComponent
	return clamp(round1(score), 0, 100)
}

func (e *Engine) neutralScenarioScore(composite, ratio float64) float64 {
	w := e.cal.ScenarioWeights.Neutral
	convexityComponent := clamp(100-math.Abs(50-ratio*50)*2, 0, 100)
	score := w.Composite*composite +
		w.Convexity*convexityComponent +
		w.Baseline*50
	return clamp(round1(score), 0, 100)
}

// protectionPoints is the additive bonus scale behind the prepay_protected
// flag; the bonus tables live in the calibration alongside the thresholds
// they were tuned against.
func (e *Engine) protectionPoints(in multiplierInputs, burnout float64) float64 {
	pp := e.cal.ProtectionPoints
	points := pp.TierBonus[in.balanceTier]
	if in.servicerRisk == servicerProtected {
		points += pp.ServicerBonus
	}
	if in.stateFriction == frictionHigh {
		points += pp.FrictionBonus
	}
	points += pp.FicoBonus[in.ficoBucket]
	if burnout >= e.cal.BehaviorThresholds.BurnoutCandidateMinScore {
		points += pp.BurnoutBonus
	}
	return points
}

// behaviorFlags builds the open-ended behavioral tag map, each flag gated by
// an explicit calibration threshold.
func (e *Engine) behaviorFlags(tags *entity.PoolTags, in multiplierInputs, factor *float64) map[string]entity.BehaviorTag {
	th := e.cal.BehaviorThresholds
	flags := make(map[string]entity.BehaviorTag)

	if points := e.protectionPoints(in, tags.BurnoutScore); points >= th.ProtectionFlagMin {
		strength := "moderate"
		if points >= th.ProtectionStrongMin {
			strength = "strong"
		}
		flags["prepay_protected"] = entity.BehaviorTag{
			Value:    true,
			Strength: strength,
			Details:  map[string]float64{"protection_points": points},
		}
	}

	if in.servicerRisk == servicerExposed &&
		(in.ficoBucket == "FICO_EXCELLENT" || in.ficoBucket == "FICO_SUPER") &&
		(in.balanceTier == "STD" || in.balanceTier == "JUMBO") &&
		tags.BurnoutScore < th.ExposedMaxBurnout {
		flags["prepay_exposed"] = entity.BehaviorTag{
			Value:    true,
			Severity: "high",
			Details:  map[string]float64{"premium_cpr_mult": tags.PremiumCPRMult},
		}
	}

	if tags.ConvexityRatio < th.PositiveConvexityBelow {
		flags["positive_convexity"] = entity.BehaviorTag{
			Value: true,
			Details: map[string]float64{
				"convexity_ratio":   tags.ConvexityRatio,
				"premium_cpr_mult":  tags.PremiumCPRMult,
				"discount_cpr_mult": tags.DiscountCPRMult,
			},
		}
	}

	if tags.ConvexityRatio > th.NegativeConvexityAbove {
		severity := "moderate"
		if tags.ConvexityRatio > th.NegativeConvexitySevereAbove {
			severity = "high"
		}
		flags["negative_convexity"] = entity.BehaviorTag{
			Value:    true,
			Severity: severity,
			Details:  map[string]float64{"convexity_ratio": tags.ConvexityRatio},
		}
	}

	if tags.BurnoutScore >= th.BurnoutCandidateMinScore && tags.RefiIncentiveBps > th.BurnoutCandidateMinIncentive {
		flags["burnout_candidate"] = entity.BehaviorTag{
			Value:   true,
			Details: map[string]float64{"burnout_score": tags.BurnoutScore},
		}
	}

	poolFactor := 1.0
	if factor != nil {
		poolFactor = *factor
	}
	if tags.RefiIncentiveBps < th.ExtensionMaxIncentiveBps &&
		tags.DiscountCPRMult < th.ExtensionMaxDiscountMult &&
		poolFactor > th.ExtensionMinFactor {
		flags["extension_risk"] = entity.BehaviorTag{Value: true, Severity: "high"}
	}

	return flags
}
