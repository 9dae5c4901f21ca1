package tagging

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultCalibration []byte

// weightSumTolerance bounds how far the composite weights may drift from 1.
const weightSumTolerance = 0.001

// Threshold is one rung of an ordered classification ladder: values up to and
// including Max receive Tag.
type Threshold struct {
	Tag string  `yaml:"tag"`
	Max float64 `yaml:"max"`
}

// StateFriction configures the state prepay-friction classification.
type StateFriction struct {
	HighFrictionStates     []string `yaml:"high_friction_states"`
	LowFrictionStates      []string `yaml:"low_friction_states"`
	MinConcentrationPct    float64  `yaml:"min_concentration_pct"`
	StrongConcentrationPct float64  `yaml:"strong_concentration_pct"`
}

// Servicers configures servicer prepay-risk classification by name substring.
type Servicers struct {
	Fast []string `yaml:"fast"`
	Slow []string `yaml:"slow"`
}

// GeoConcentration configures the geographic concentration vocabulary.
type GeoConcentration struct {
	Heavy               map[string]float64  `yaml:"heavy"`
	Regions             map[string][]string `yaml:"regions"`
	RegionMinPct        float64             `yaml:"region_min_pct"`
	DiversifiedBelowPct float64             `yaml:"diversified_below_pct"`
}

// Burnout configures the burnout score components.
type Burnout struct {
	DefaultWALA         int     `yaml:"default_wala"`
	DefaultFactor       float64 `yaml:"default_factor"`
	SeasoningMaxPoints  float64 `yaml:"seasoning_max_points"`
	SeasoningFullMonths float64 `yaml:"seasoning_full_months"`
	PaydownMaxPoints    float64 `yaml:"paydown_max_points"`
	PaydownScale        float64 `yaml:"paydown_scale"`
	ITMBonusMaxPoints   float64 `yaml:"itm_bonus_max_points"`
	ITMMinIncentiveBps  float64 `yaml:"itm_min_incentive_bps"`
	ITMMinWALA          int     `yaml:"itm_min_wala"`
	ITMScaleMonths      float64 `yaml:"itm_scale_months"`
}

// MultiplierTables holds the per-attribute CPR multiplier lookups for one
// side (premium or discount).
type MultiplierTables struct {
	BalanceTier map[string]float64 `yaml:"balance_tier"`
	Servicer    map[string]float64 `yaml:"servicer"`
	Fico        map[string]float64 `yaml:"fico"`
	Program     map[string]float64 `yaml:"program"`
}

// InteractionPair documents one tag pair whose combined multiplier effect
// deviates from the naive product.
type InteractionPair struct {
	First      string  `yaml:"first"`
	Second     string  `yaml:"second"`
	Side       string  `yaml:"side"` // premium or discount
	Correction float64 `yaml:"correction"`
}

// SCurve holds the refi-incentive breakpoints of the prepayment S-curve.
type SCurve struct {
	LeftTailBelowBps      float64 `yaml:"left_tail_below_bps"`
	LeftShoulderBelowBps  float64 `yaml:"left_shoulder_below_bps"`
	InflectionBelowBps    float64 `yaml:"inflection_below_bps"`
	RightShoulderBelowBps float64 `yaml:"right_shoulder_below_bps"`
}

// ComponentScores holds the per-tag score lookups feeding the composite.
type ComponentScores struct {
	BalanceTier map[string]float64 `yaml:"balance_tier"`
	Program     map[string]float64 `yaml:"program"`
	Servicer    map[string]float64 `yaml:"servicer"`
	State       map[string]float64 `yaml:"state"`
	Fico        map[string]float64 `yaml:"fico"`
	LTV         map[string]float64 `yaml:"ltv"`
	Seasoning   map[string]float64 `yaml:"seasoning"`
}

// ConvexityComponent maps the premium/discount ratio onto a 0-100 composite
// component.
type ConvexityComponent struct {
	Base  float64 `yaml:"base"`
	Scale float64 `yaml:"scale"`
}

// CompositeWeights weighs the composite prepay-protection components. The
// weights must sum to 1 within weightSumTolerance.
type CompositeWeights struct {
	BalanceTier float64 `yaml:"balance_tier"`
	Program     float64 `yaml:"program"`
	Convexity   float64 `yaml:"convexity"`
	Servicer    float64 `yaml:"servicer"`
	Fico        float64 `yaml:"fico"`
	State       float64 `yaml:"state"`
	Burnout     float64 `yaml:"burnout"`
	LTV         float64 `yaml:"ltv"`
	Seasoning   float64 `yaml:"seasoning"`
}

func (w CompositeWeights) sum() float64 {
	return w.BalanceTier + w.Program + w.Convexity + w.Servicer +
		w.Fico + w.State + w.Burnout + w.LTV + w.Seasoning
}

// ContractionRisk configures the contraction risk score.
type ContractionRisk struct {
	PremiumBaseOffset      float64            `yaml:"premium_base_offset"`
	PremiumBaseScale       float64            `yaml:"premium_base_scale"`
	PremiumBasePoints      float64            `yaml:"premium_base_points"`
	BurnoutReductionPoints float64            `yaml:"burnout_reduction_points"`
	ServicerAdjustment     map[string]float64 `yaml:"servicer_adjustment"`
	FicoAdjustment         map[string]float64 `yaml:"fico_adjustment"`
}

// ExtensionRisk configures the extension risk score.
type ExtensionRisk struct {
	DiscountBaseOffset    float64            `yaml:"discount_base_offset"`
	DiscountBaseScale     float64            `yaml:"discount_base_scale"`
	DiscountBasePoints    float64            `yaml:"discount_base_points"`
	DeepOTMBelowBps       float64            `yaml:"deep_otm_below_bps"`
	DeepOTMPoints         float64            `yaml:"deep_otm_points"`
	ModerateOTMBelowBps   float64            `yaml:"moderate_otm_below_bps"`
	ModerateOTMPoints     float64            `yaml:"moderate_otm_points"`
	FactorThreshold       float64            `yaml:"factor_threshold"`
	FactorScalePoints     float64            `yaml:"factor_scale_points"`
	BalanceTierAdjustment map[string]float64 `yaml:"balance_tier_adjustment"`
}

// ScenarioWeights weighs the bull/bear/neutral scenario scores.
type ScenarioWeights struct {
	Bull struct {
		ContractionProtection float64 `yaml:"contraction_protection"`
		Composite             float64 `yaml:"composite"`
		Burnout               float64 `yaml:"burnout"`
	} `yaml:"bull"`
	Bear struct {
		ExtensionProtection float64 `yaml:"extension_protection"`
		DiscountMult        float64 `yaml:"discount_mult"`
		Convexity           float64 `yaml:"convexity"`
	} `yaml:"bear"`
	Neutral struct {
		Composite float64 `yaml:"composite"`
		Convexity float64 `yaml:"convexity"`
		Baseline  float64 `yaml:"baseline"`
	} `yaml:"neutral"`
}

// BehaviorThresholds gates the behavioral flag map.
type BehaviorThresholds struct {
	ProtectionFlagMin            float64 `yaml:"protection_flag_min"`
	ProtectionStrongMin          float64 `yaml:"protection_strong_min"`
	PositiveConvexityBelow       float64 `yaml:"positive_convexity_below"`
	NegativeConvexityAbove       float64 `yaml:"negative_convexity_above"`
	NegativeConvexitySevereAbove float64 `yaml:"negative_convexity_severe_above"`
	ExposedMaxBurnout            float64 `yaml:"exposed_max_burnout"`
	BurnoutCandidateMinScore     float64 `yaml:"burnout_candidate_min_score"`
	BurnoutCandidateMinIncentive float64 `yaml:"burnout_candidate_min_incentive_bps"`
	ExtensionMaxIncentiveBps     float64 `yaml:"extension_max_incentive_bps"`
	ExtensionMaxDiscountMult     float64 `yaml:"extension_max_discount_mult"`
	ExtensionMinFactor           float64 `yaml:"extension_min_factor"`
}

// ProtectionPoints is the additive bonus scale behind the prepay_protected
// flag. It is separate from the weighted composite on purpose, matching how
// the flag thresholds were calibrated.
type ProtectionPoints struct {
	TierBonus     map[string]float64 `yaml:"tier_bonus"`
	FicoBonus     map[string]float64 `yaml:"fico_bonus"`
	ServicerBonus float64            `yaml:"servicer_bonus"`
	FrictionBonus float64            `yaml:"friction_bonus"`
	BurnoutBonus  float64            `yaml:"burnout_bonus"`
}

// Calibration is the full tag-engine configuration.
type Calibration struct {
	BalanceTiers   []Threshold `yaml:"balance_tiers"`
	BalanceOver    string      `yaml:"balance_over"`
	BalanceMissing string      `yaml:"balance_missing"`

	ProgramAliases map[string]string `yaml:"program_aliases"`
	ProgramMissing string            `yaml:"program_missing"`

	FicoBuckets []Threshold `yaml:"fico_buckets"`
	FicoOver    string      `yaml:"fico_over"`
	FicoMissing string      `yaml:"fico_missing"`

	LTVBuckets []Threshold `yaml:"ltv_buckets"`
	LTVOver    string      `yaml:"ltv_over"`
	LTVMissing string      `yaml:"ltv_missing"`

	SeasoningStages  []Threshold `yaml:"seasoning_stages"`
	SeasoningOver    string      `yaml:"seasoning_over"`
	SeasoningMissing string      `yaml:"seasoning_missing"`

	StateFriction    StateFriction    `yaml:"state_friction"`
	Servicers        Servicers        `yaml:"servicers"`
	GeoConcentration GeoConcentration `yaml:"geo_concentration"`
	Burnout          Burnout          `yaml:"burnout"`

	PremiumMultipliers  MultiplierTables  `yaml:"premium_multipliers"`
	DiscountMultipliers MultiplierTables  `yaml:"discount_multipliers"`
	InteractionPairs    []InteractionPair `yaml:"interaction_pairs"`

	SCurve             SCurve             `yaml:"s_curve"`
	ComponentScores    ComponentScores    `yaml:"component_scores"`
	ConvexityComponent ConvexityComponent `yaml:"convexity_component"`
	CompositeWeights   CompositeWeights   `yaml:"composite_weights"`
	ContractionRisk    ContractionRisk    `yaml:"contraction_risk"`
	ExtensionRisk      ExtensionRisk      `yaml:"extension_risk"`
	ScenarioWeights    ScenarioWeights    `yaml:"scenario_weights"`
	ProtectionPoints   ProtectionPoints   `yaml:"protection_points"`
	BehaviorThresholds BehaviorThresholds `yaml:"behavior_thresholds"`
}

// DefaultCalibration returns the embedded calibration.
func DefaultCalibration() (*Calibration, error) {
	return parseCalibration(defaultCalibration)
}

// LoadCalibration reads a calibration file, falling back to the embedded
// defaults when path is empty.
func LoadCalibration(path string) (*Calibration, error) {
	if path == "" {
		return DefaultCalibration()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration %s: %w", path, err)
	}
	cal, err := parseCalibration(raw)
	if err != nil {
		return nil, fmt.Errorf("calibration %s: %w", path, err)
	}
	return cal, nil
}

func parseCalibration(raw []byte) (*Calibration, error) {
	var cal Calibration
	if err := yaml.Unmarshal(raw, &cal); err != nil {
		return nil, fmt.Errorf("parse calibration: %w", err)
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	return &cal, nil
}

// Validate rejects calibrations a run could not score correctly with.
func (c *Calibration) Validate() error {
	if sum := c.CompositeWeights.sum(); math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("composite weights sum to %.4f, want 1 ± %.3f", sum, weightSumTolerance)
	}
	if len(c.BalanceTiers) == 0 {
		return fmt.Errorf("balance_tiers is empty")
	}
	if err := requireAscending("balance_tiers", c.BalanceTiers); err != nil {
		return err
	}
	if err := requireAscending("fico_buckets", c.FicoBuckets); err != nil {
		return err
	}
	if err := requireAscending("ltv_buckets", c.LTVBuckets); err != nil {
		return err
	}
	if err := requireAscending("seasoning_stages", c.SeasoningStages); err != nil {
		return err
	}
	for _, pair := range c.InteractionPairs {
		if pair.Side != "premium" && pair.Side != "discount" {
			return fmt.Errorf("interaction pair %s/%s: side %q is not premium or discount", pair.First, pair.Second, pair.Side)
		}
		if pair.Correction <= 0 {
			return fmt.Errorf("interaction pair %s/%s: correction must be positive", pair.First, pair.Second)
		}
	}
	return nil
}

func requireAscending(name string, ladder []Threshold) error {
	for i := 1; i < len(ladder); i++ {
		if ladder[i].Max <= ladder[i-1].Max {
			return fmt.Errorf("%s thresholds must ascend: %s (%.0f) after %s (%.0f)",
				name, ladder[i].Tag, ladder[i].Max, ladder[i-1].Tag, ladder[i-1].Max)
		}
	}
	return nil
}
