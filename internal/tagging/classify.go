package tagging

import "strings"

// Layer 1: static classifications. Each attribute maps through its own
// threshold ladder or lookup; boundaries are inclusive on the upper edge.

const (
	servicerProtected = "PREPAY_PROTECTED"
	servicerNeutral   = "NEUTRAL"
	servicerExposed   = "PREPAY_EXPOSED"

	frictionHigh     = "HIGH_FRICTION"
	frictionModerate = "MODERATE_FRICTION"
	frictionLow      = "LOW_FRICTION"

	geoDiversified = "DIVERSIFIED"
)

func classifyLadder(value float64, ladder []Threshold, over string) string {
	for _, rung := range ladder {
		if value <= rung.Max {
			return rung.Tag
		}
	}
	return over
}

func (e *Engine) classifyBalanceTier(avgLoanSize *float64) string {
	if avgLoanSize == nil {
		return e.cal.BalanceMissing
	}
	return classifyLadder(*avgLoanSize, e.cal.BalanceTiers, e.cal.BalanceOver)
}

func (e *Engine) classifyProgram(program *string) string {
	if program == nil {
		return e.cal.ProgramMissing
	}
	if tag, ok := e.cal.ProgramAliases[strings.ToUpper(strings.TrimSpace(*program))]; ok {
		return tag
	}
	return e.cal.ProgramMissing
}

func (e *Engine) classifyFicoBucket(avgFico *int) string {
	if avgFico == nil {
		return e.cal.FicoMissing
	}
	return classifyLadder(float64(*avgFico), e.cal.FicoBuckets, e.cal.FicoOver)
}

func (e *Engine) classifyLTVBucket(avgLTV *float64) string {
	if avgLTV == nil {
		return e.cal.LTVMissing
	}
	return classifyLadder(*avgLTV, e.cal.LTVBuckets, e.cal.LTVOver)
}

func (e *Engine) classifySeasoningStage(wala *int) string {
	if wala == nil {
		return e.cal.SeasoningMissing
	}
	return classifyLadder(float64(*wala), e.cal.SeasoningStages, e.cal.SeasoningOver)
}

func (e *Engine) classifyStateFriction(topState *string, topStatePct *float64) string {
	cfg := e.cal.StateFriction
	if topState == nil || topStatePct == nil || *topStatePct < cfg.MinConcentrationPct {
		return frictionModerate
	}
	state := strings.ToUpper(*topState)
	if *topStatePct >= cfg.StrongConcentrationPct {
		if containsString(cfg.HighFrictionStates, state) {
			return frictionHigh
		}
		if containsString(cfg.LowFrictionStates, state) {
			return frictionLow
		}
	}
	return frictionModerate
}

func (e *Engine) classifyServicerRisk(servicerName *string) string {
	if servicerName == nil {
		return servicerNeutral
	}
	name := strings.ToLower(*servicerName)
	for _, s := range e.cal.Servicers.Fast {
		if strings.Contains(name, s) {
			return servicerExposed
		}
	}
	for _, s := range e.cal.Servicers.Slow {
		if strings.Contains(name, s) {
			return servicerProtected
		}
	}
	return servicerNeutral
}

func (e *Engine) classifyGeoConcentration(topState *string, topStatePct *float64) string {
	cfg := e.cal.GeoConcentration
	if topState == nil || topStatePct == nil {
		return geoDiversified
	}
	state := strings.ToUpper(*topState)
	pct := *topStatePct

	if minPct, ok := cfg.Heavy[state]; ok && pct >= minPct {
		return state + "_HEAVY"
	}
	if pct >= cfg.RegionMinPct {
		// Region order is fixed so overlapping states classify stably.
		for _, region := range []string{"COASTAL", "SUNBELT", "MIDWEST"} {
			if containsString(cfg.Regions[region], state) {
				return region
			}
		}
	}
	if pct < cfg.DiversifiedBelowPct {
		return geoDiversified
	}
	return state + "_CONCENTRATED"
}

func containsString(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
