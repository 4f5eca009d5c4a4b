// Package matcher pairs uploaded receipts with statement charges.
//
// The scorer combines amount, date, and merchant-name similarity into a
// 0-100 confidence; the engine produces sorted candidate lists from the
// unmatched sets and owns confirm/unmatch; the auto-match policy links the
// top candidate without human confirmation when its confidence clears a
// field-count-scaled threshold.
package matcher

import (
	"fmt"
	"math"

	"github.com/receipted/receipted-backend/internal/domain/similarity"
	"github.com/receipted/receipted-backend/internal/infrastructure/storage"
)

// Score is the result of scoring one receipt against one charge.
type Score struct {
	Confidence float64  // 0-100
	Reasons    []string // human-readable, one per contributing term
}

// Scorer computes match confidence for a receipt/charge pair.
type Scorer struct {
	config Config
}

// NewScorer creates a scorer with the given config.
func NewScorer(config Config) *Scorer {
	return &Scorer{config: config}
}

// Score computes the confidence that receipt and charge represent the same
// transaction. Absent or malformed optional fields simply contribute
// nothing; Score never fails.
func (s *Scorer) Score(receipt *storage.Receipt, charge *storage.Charge) Score {
	var confidence float64
	var reasons []string

	// Amount term. Charge amounts are signed text ("-25.99" for debits);
	// compare against the absolute value.
	if receipt.Amount != nil {
		if chargeAmount, err := charge.AbsAmount(); err == nil {
			diff, _ := receipt.Amount.Sub(chargeAmount).Abs().Float64()
			switch {
			case diff < s.config.AmountExactTolerance:
				confidence += s.config.AmountExactWeight
				reasons = append(reasons, "Exact amount match")
			case diff <= s.config.AmountCloseBand:
				confidence += s.config.AmountCloseWeight
				reasons = append(reasons, fmt.Sprintf("Amount within $%.2f", diff))
			}
		}
	}

	// Date term.
	if receipt.Date != nil {
		days := similarity.DaysApart(*receipt.Date, charge.Date)
		switch {
		case days == 0:
			confidence += s.config.DateExactWeight
			reasons = append(reasons, "Same date")
		case days <= s.config.DateCloseDays:
			confidence += s.config.DateCloseWeight
			reasons = append(reasons, fmt.Sprintf("Date within %d days", days))
		}
	}

	// Merchant term. Abbreviation detection beats raw similarity because
	// statement descriptions truncate names far past the point where edit
	// distance is meaningful.
	if receipt.Merchant != "" && charge.Description != "" {
		if similarity.IsAbbreviation(receipt.Merchant, charge.Description) {
			confidence += s.config.MerchantAbbrevWeight
			reasons = append(reasons, "Merchant abbreviation match")
		} else if ratio := similarity.Ratio(receipt.Merchant, charge.Description); ratio >= s.config.MerchantSimilarityFloor {
			confidence += ratio * s.config.MerchantSimilarityWeight
			reasons = append(reasons, fmt.Sprintf("Merchant name similarity: %d%%", int(math.Round(ratio*100))))
		}
	}

	if confidence > 100 {
		confidence = 100
	}

	return Score{Confidence: confidence, Reasons: reasons}
}
