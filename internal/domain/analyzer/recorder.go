// Package analyzer records human rejections of suggested matches and mines
// that history for systemic mismatch causes.
package analyzer

import (
	"log/slog"

	"github.com/receipted/receipted-backend/internal/domain/similarity"
	"github.com/receipted/receipted-backend/internal/infrastructure/storage"
)

// Recorder persists skip records: one per explicit human rejection of a
// suggested receipt/charge pair. Recording is best-effort analytics and
// must never block the rejection flow, so every failure is logged and
// swallowed.
type Recorder struct {
	repo   storage.Repository
	logger *slog.Logger
}

// NewRecorder creates a skip recorder. A nil logger falls back to
// slog.Default().
func NewRecorder(repo storage.Repository, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{repo: repo, logger: logger}
}

// RecordSkip computes the feature deltas between the rejected pair at the
// moment of rejection and appends a skip record. Missing optional receipt
// fields contribute zero deltas.
func (r *Recorder) RecordSkip(receiptID, chargeID, reason string) {
	receipt, err := r.repo.GetReceipt(receiptID)
	if err != nil {
		r.logger.Warn("skip record dropped: receipt lookup failed",
			"receipt_id", receiptID, "error", err)
		return
	}
	charge, err := r.repo.GetCharge(chargeID)
	if err != nil {
		r.logger.Warn("skip record dropped: charge lookup failed",
			"charge_id", chargeID, "error", err)
		return
	}

	record := &storage.SkipRecord{
		ReceiptID:          receiptID,
		ChargeID:           chargeID,
		MerchantSimilarity: similarity.Ratio(receipt.Merchant, charge.Description),
		SkipReason:         reason,
	}

	if receipt.Amount != nil {
		if chargeAmount, err := charge.AbsAmount(); err == nil {
			record.AmountDiff, _ = receipt.Amount.Sub(chargeAmount).Abs().Float64()
		}
	}
	if receipt.Date != nil {
		record.DateDiff = similarity.DaysApart(*receipt.Date, charge.Date)
	}

	if err := r.repo.InsertSkipRecord(record); err != nil {
		r.logger.Warn("skip record dropped: insert failed",
			"receipt_id", receiptID, "charge_id", chargeID, "error", err)
	}
}
