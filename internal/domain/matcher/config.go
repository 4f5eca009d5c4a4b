package matcher

// Config centralizes every weight and threshold used by the scorer, the
// candidate engine, and the auto-match policy so they can be tuned and
// unit-tested independently of the algorithm structure.
//
// The defaults were chosen empirically against real statement data. The
// close-amount band in particular ($10, meant to absorb tips and taxes) is
// a product decision, not an invariant.
type Config struct {
	// Amount term
	AmountExactTolerance float64 // dollars; below this the amounts are "exact"
	AmountExactWeight    float64
	AmountCloseBand      float64 // dollars; tips/taxes tolerance
	AmountCloseWeight    float64

	// Date term
	DateExactWeight float64
	DateCloseDays   int // posting-date lag tolerance
	DateCloseWeight float64

	// Merchant term
	MerchantAbbrevWeight     float64
	MerchantSimilarityWeight float64 // scaled by the 0-1 similarity ratio
	MerchantSimilarityFloor  float64 // below this the names are unrelated

	// Candidates below the noise floor are never surfaced.
	NoiseFloor float64

	// Auto-match thresholds by number of populated receipt fields.
	// A single-field match is statistically weaker evidence, so it must
	// clear a much higher bar.
	AutoMatchOneField    float64
	AutoMatchTwoFields   float64
	AutoMatchThreeFields float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		AmountExactTolerance: 0.01,
		AmountExactWeight:    40,
		AmountCloseBand:      10.0,
		AmountCloseWeight:    20,

		DateExactWeight: 30,
		DateCloseDays:   3,
		DateCloseWeight: 15,

		MerchantAbbrevWeight:     30,
		MerchantSimilarityWeight: 30,
		MerchantSimilarityFloor:  0.5,

		NoiseFloor: 50,

		AutoMatchOneField:    95,
		AutoMatchTwoFields:   93,
		AutoMatchThreeFields: 90,
	}
}

// AutoMatchThreshold returns the confidence a top candidate must clear to
// be linked without human confirmation, given how many of the receipt's
// matchable fields are populated.
func (c Config) AutoMatchThreshold(fieldCount int) float64 {
	switch {
	case fieldCount >= 3:
		return c.AutoMatchThreeFields
	case fieldCount == 2:
		return c.AutoMatchTwoFields
	default:
		return c.AutoMatchOneField
	}
}
