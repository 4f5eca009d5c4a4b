package matcher

import (
	"log/slog"
	"sort"

	"github.com/receipted/receipted-backend/internal/domain/similarity"
	"github.com/receipted/receipted-backend/internal/infrastructure/storage"
)

// unknownDateDiff sorts date-less pairs after dated pairs on confidence ties.
const unknownDateDiff = 1 << 30

// Candidate is a receipt/charge pair whose confidence cleared the noise
// floor, eligible to be shown or auto-matched.
type Candidate struct {
	Receipt    *storage.Receipt `json:"receipt"`
	Charge     *storage.Charge  `json:"charge"`
	Confidence float64          `json:"confidence"`
	Reasons    []string         `json:"reasons"`
	DateDiff   int              `json:"date_diff"` // days; tie-break key
}

// AutoMatchResult reports the outcome of an auto-match attempt.
type AutoMatchResult struct {
	Matched    bool    `json:"matched"`
	Confidence float64 `json:"confidence,omitempty"`
	ChargeID   string  `json:"charge_id,omitempty"`
}

// Engine scans unmatched receipts against unmatched charges and owns the
// confirm/unmatch operations that maintain the bidirectional link.
type Engine struct {
	repo   storage.Repository
	scorer *Scorer
	config Config
	logger *slog.Logger
}

// NewEngine creates a matching engine. A nil logger falls back to
// slog.Default().
func NewEngine(repo storage.Repository, config Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		repo:   repo,
		scorer: NewScorer(config),
		config: config,
		logger: logger,
	}
}

// Candidates scores every unmatched receipt against every unmatched charge
// and returns the pairs above the noise floor. An empty statementID scans
// across statements (the default); a non-empty one narrows to that
// statement's records.
//
// Ordering is deterministic: confidence descending, ties broken by smaller
// date difference, then by receipt id.
func (e *Engine) Candidates(statementID string) ([]Candidate, error) {
	receipts, err := e.repo.GetUnmatchedReceipts(statementID)
	if err != nil {
		return nil, err
	}
	charges, err := e.repo.GetUnmatchedCharges(statementID)
	if err != nil {
		return nil, err
	}

	candidates := e.scorePairs(receipts, charges)

	e.logger.Debug("candidate scan complete",
		"receipts", len(receipts),
		"charges", len(charges),
		"candidates", len(candidates),
	)

	return candidates, nil
}

// candidatesForReceipt scores one receipt against all unmatched charges,
// cross-statement. Used by the auto-match policy.
func (e *Engine) candidatesForReceipt(receipt *storage.Receipt) ([]Candidate, error) {
	charges, err := e.repo.GetUnmatchedCharges("")
	if err != nil {
		return nil, err
	}
	return e.scorePairs([]*storage.Receipt{receipt}, charges), nil
}

func (e *Engine) scorePairs(receipts []*storage.Receipt, charges []*storage.Charge) []Candidate {
	var candidates []Candidate
	for _, receipt := range receipts {
		for _, charge := range charges {
			score := e.scorer.Score(receipt, charge)
			if score.Confidence < e.config.NoiseFloor {
				continue
			}

			dateDiff := unknownDateDiff
			if receipt.Date != nil {
				dateDiff = similarity.DaysApart(*receipt.Date, charge.Date)
			}

			candidates = append(candidates, Candidate{
				Receipt:    receipt,
				Charge:     charge,
				Confidence: score.Confidence,
				Reasons:    score.Reasons,
				DateDiff:   dateDiff,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		if candidates[i].DateDiff != candidates[j].DateDiff {
			return candidates[i].DateDiff < candidates[j].DateDiff
		}
		return candidates[i].Receipt.ID < candidates[j].Receipt.ID
	})

	return candidates
}

// ConfirmMatch links a receipt and a charge on both sides atomically.
// Returns NotFoundError if either id is absent, AlreadyMatchedError if
// either side is already linked to a different counterpart.
func (e *Engine) ConfirmMatch(receiptID, chargeID string) error {
	if err := e.repo.LinkMatch(receiptID, chargeID); err != nil {
		return err
	}
	e.logger.Info("match confirmed", "receipt_id", receiptID, "charge_id", chargeID)
	return nil
}

// Unmatch clears the link on both sides. Calling it on an already-unmatched
// receipt is a no-op, not an error.
func (e *Engine) Unmatch(receiptID string) error {
	if err := e.repo.UnlinkMatch(receiptID); err != nil {
		return err
	}
	e.logger.Info("match cleared", "receipt_id", receiptID)
	return nil
}

// AttemptAutoMatch computes candidates for one receipt (cross-statement)
// and links the top one when its confidence clears the field-count-scaled
// threshold. A receipt that is already matched, or has no qualifying
// candidate, results in a silent non-match.
func (e *Engine) AttemptAutoMatch(receiptID string) (AutoMatchResult, error) {
	receipt, err := e.repo.GetReceipt(receiptID)
	if err != nil {
		return AutoMatchResult{}, err
	}

	// Never override an existing match.
	if receipt.IsMatched {
		return AutoMatchResult{}, nil
	}

	candidates, err := e.candidatesForReceipt(receipt)
	if err != nil {
		return AutoMatchResult{}, err
	}
	if len(candidates) == 0 {
		return AutoMatchResult{}, nil
	}

	best := candidates[0]
	threshold := e.config.AutoMatchThreshold(receipt.FieldCount())
	if best.Confidence < threshold {
		e.logger.Debug("auto-match below threshold",
			"receipt_id", receiptID,
			"confidence", best.Confidence,
			"threshold", threshold,
		)
		return AutoMatchResult{}, nil
	}

	if err := e.repo.LinkMatch(receiptID, best.Charge.ID); err != nil {
		return AutoMatchResult{}, err
	}

	e.logger.Info("auto-matched",
		"receipt_id", receiptID,
		"charge_id", best.Charge.ID,
		"confidence", best.Confidence,
	)

	return AutoMatchResult{
		Matched:    true,
		Confidence: best.Confidence,
		ChargeID:   best.Charge.ID,
	}, nil
}
