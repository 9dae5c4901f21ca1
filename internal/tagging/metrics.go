package tagging

import "math"

// Layer 2: derived metrics computed from the pool's attributes, the layer-1
// tags, and the run's pinned reference rate.

const (
	sCurveLeftTail      = "LEFT_TAIL"
	sCurveLeftShoulder  = "LEFT_SHOULDER"
	sCurveInflection    = "INFLECTION"
	sCurveRightShoulder = "RIGHT_SHOULDER"
	sCurveRightTail     = "RIGHT_TAIL"
)

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

// refiIncentiveBps is the spread of the pool's WAC over the reference rate in
// basis points. A pool without a WAC has no measurable incentive.
func (e *Engine) refiIncentiveBps(wac *float64, referenceRate float64) float64 {
	if wac == nil {
		return 0
	}
	return (*wac - referenceRate) * 100
}

// burnoutScore measures how much of the pool's refinanceable population has
// already left: a seasoning component, a paydown component from the factor,
// and a persistence bonus for pools that stayed in the money without
// prepaying. Clamped to [0,100].
func (e *Engine) burnoutScore(wala *int, factor *float64, incentiveBps float64) float64 {
	cfg := e.cal.Burnout

	months := cfg.DefaultWALA
	if wala != nil {
		months = *wala
	}
	paydownFactor := cfg.DefaultFactor
	if factor != nil {
		paydownFactor = *factor
	}

	seasoningPts := math.Min(cfg.SeasoningMaxPoints,
		float64(months)/cfg.SeasoningFullMonths*cfg.SeasoningMaxPoints)
	paydownPts := math.Min(cfg.PaydownMaxPoints, (1-paydownFactor)*cfg.PaydownScale)

	var itmBonus float64
	if incentiveBps > cfg.ITMMinIncentiveBps && months > cfg.ITMMinWALA {
		itmBonus = math.Min(cfg.ITMBonusMaxPoints,
			float64(months)/cfg.ITMScaleMonths*cfg.ITMBonusMaxPoints)
	}

	return clamp(seasoningPts+paydownPts+itmBonus, 0, 100)
}

// multiplierInputs carries the layer-1 tags the multiplier tables key on.
type multiplierInputs struct {
	balanceTier   string
	program       string
	ficoBucket    string
	servicerRisk  string
	stateFriction string
}

func lookupMult(table map[string]float64, key string) float64 {
	if v, ok := table[key]; ok {
		return v
	}
	return 1.0
}

// naiveMultiplier is the plain product of the per-attribute multipliers for
// one side, before layer-3 interaction corrections.
func naiveMultiplier(tables MultiplierTables, in multiplierInputs) float64 {
	return lookupMult(tables.BalanceTier, in.balanceTier) *
		lookupMult(tables.Servicer, in.servicerRisk) *
		lookupMult(tables.Fico, in.ficoBucket) *
		lookupMult(tables.Program, in.program)
}

// convexityRatio relates premium and discount behavior; below 1 the pool
// slows when in the money and speeds when out, which is the profile investors
// want.
func convexityRatio(premiumMult, discountMult float64) float64 {
	if discountMult <= 0 {
		discountMult = 0.01
	}
	return round3(premiumMult / discountMult)
}

func (e *Engine) sCurvePosition(incentiveBps float64) string {
	cfg := e.cal.SCurve
	switch {
	case incentiveBps < cfg.LeftTailBelowBps:
		return sCurveLeftTail
	case incentiveBps < cfg.LeftShoulderBelowBps:
		return sCurveLeftShoulder
	case incentiveBps < cfg.InflectionBelowBps:
		return sCurveInflection
	case incentiveBps < cfg.RightShoulderBelowBps:
		return sCurveRightShoulder
	default:
		return sCurveRightTail
	}
}
