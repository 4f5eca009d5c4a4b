package analyzer

// Config centralizes the pattern-detection thresholds. The minimum-support
// counts and the tip sub-band were chosen empirically and are kept
// configurable rather than hard-coded; treat them as tuning knobs pending
// product review.
type Config struct {
	WindowDays   int // default analysis window
	LookbackDays int // problematic-merchant aggregation window

	// merchant_mismatch: similarity below the ceiling, support above the
	// minimum.
	MerchantMismatchCeil     float64
	MerchantMismatchMinCount int

	// date_offset: rejections further apart than the engine's tolerance.
	DateOffsetMinDays  int
	DateOffsetMinCount int

	// amount_variance: diffs above the floor, with a tip-shaped sub-band.
	AmountVarianceFloor    float64
	TipBandLow             float64
	TipBandHigh            float64
	AmountVarianceMinCount int

	// category_confusion: directed (receipt -> charge) category pairs.
	CategoryPairMinCount int

	// Representative examples per insight.
	MaxExamples int

	// Problematic-merchant aggregation.
	MerchantPairMinCount int
	AliasSuggestMinCount int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		WindowDays:   30,
		LookbackDays: 30,

		MerchantMismatchCeil:     0.5,
		MerchantMismatchMinCount: 10,

		DateOffsetMinDays:  7,
		DateOffsetMinCount: 10,

		AmountVarianceFloor:    5.0,
		TipBandLow:             1.0,
		TipBandHigh:            10.0,
		AmountVarianceMinCount: 15,

		CategoryPairMinCount: 3,

		MaxExamples: 5,

		MerchantPairMinCount: 2,
		AliasSuggestMinCount: 3,
	}
}
