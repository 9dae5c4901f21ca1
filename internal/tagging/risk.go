package tagging

// Layer 3: interaction adjustments. Documented tag pairs combine
// non-multiplicatively; their correction factor is applied on top of the
// naive product. Undocumented pairs stay at the plain product. The two risk
// scores are computed from the corrected multipliers.

// applyInteractions corrects the naive multiplier for every documented pair
// present among the pool's tags. Pair order in the calibration is
// deterministic, and corrections are commutative, so the result does not
// depend on evaluation order.
func (e *Engine) applyInteractions(side string, naive float64, in multiplierInputs) float64 {
	tags := map[string]bool{
		in.balanceTier:   true,
		in.program:       true,
		in.ficoBucket:    true,
		in.servicerRisk:  true,
		in.stateFriction: true,
	}

	corrected := naive
	for _, pair := range e.cal.InteractionPairs {
		if pair.Side != side {
			continue
		}
		if tags[pair.First] && tags[pair.Second] {
			corrected *= pair.Correction
		}
	}
	return round3(corrected)
}

// contractionRisk scores how exposed the pool is to fast prepayment when
// rates fall. Clamped to [0,100].
func (e *Engine) contractionRisk(premiumMult, burnout float64, in multiplierInputs) float64 {
	cfg := e.cal.ContractionRisk

	base := (premiumMult - cfg.PremiumBaseOffset) / cfg.PremiumBaseScale * cfg.PremiumBasePoints
	burnoutReduction := burnout / 100 * cfg.BurnoutReductionPoints

	risk := base - burnoutReduction +
		cfg.ServicerAdjustment[in.servicerRisk] +
		cfg.FicoAdjustment[in.ficoBucket]
	return clamp(round1(risk), 0, 100)
}

// extensionRisk scores how exposed the pool is to slowing down and extending
// when rates rise. Clamped to [0,100].
func (e *Engine) extensionRisk(discountMult, incentiveBps float64, factor *float64, in multiplierInputs) float64 {
	cfg := e.cal.ExtensionRisk

	base := (cfg.DiscountBaseOffset - discountMult) / cfg.DiscountBaseScale * cfg.DiscountBasePoints

	var otmAdj float64
	switch {
	case incentiveBps < cfg.DeepOTMBelowBps:
		otmAdj = cfg.DeepOTMPoints
	case incentiveBps < cfg.ModerateOTMBelowBps:
		otmAdj = cfg.ModerateOTMPoints
	}

	poolFactor := e.cal.Burnout.DefaultFactor
	if factor != nil {
		poolFactor = *factor
	}
	var factorAdj float64
	if poolFactor > cfg.FactorThreshold {
		factorAdj = (poolFactor - cfg.FactorThreshold) * cfg.FactorScalePoints
	}

	risk := base + otmAdj + factorAdj + cfg.BalanceTierAdjustment[in.balanceTier]
	return clamp(round1(risk), 0, 100)
}
