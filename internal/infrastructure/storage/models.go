package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is an uploaded expense receipt. Merchant, Amount, and Date are
// optional because OCR extraction frequently fails on one or more fields;
// the matching core treats absent fields as non-contributing.
type Receipt struct {
	ID              string           `json:"id"`
	Merchant        string           `json:"merchant,omitempty"`
	Amount          *decimal.Decimal `json:"amount,omitempty"` // always non-negative
	Date            *time.Time       `json:"date,omitempty"`
	Category        string           `json:"category,omitempty"`
	StatementID     string           `json:"statement_id,omitempty"`
	IsMatched       bool             `json:"is_matched"`
	MatchedChargeID string           `json:"matched_charge_id,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// FieldCount returns how many of the three matchable fields
// (merchant, amount, date) are populated. The auto-match policy scales
// its confidence threshold on this.
func (r *Receipt) FieldCount() int {
	count := 0
	if r.Merchant != "" {
		count++
	}
	if r.Amount != nil {
		count++
	}
	if r.Date != nil {
		count++
	}
	return count
}

// Charge is one statement line from a card import. Amount is kept as the
// raw signed decimal text from the import ("-25.99" for a debit) and
// normalized to an absolute value only at comparison time.
type Charge struct {
	ID                string    `json:"id"`
	Description       string    `json:"description"` // never empty
	Amount            string    `json:"amount"`
	Date              time.Time `json:"date"`
	CardMember        string    `json:"card_member,omitempty"`
	Category          string    `json:"category,omitempty"`
	StatementID       string    `json:"statement_id,omitempty"`
	IsMatched         bool      `json:"is_matched"`
	ReceiptID         string    `json:"receipt_id,omitempty"`
	IsPersonalExpense bool      `json:"is_personal_expense"`
	NoReceiptRequired bool      `json:"no_receipt_required"`
	IsNonAmex         bool      `json:"is_non_amex"`
}

// AbsAmount parses the signed amount text and returns its absolute value.
// Returns a ValidationError when the text is not a decimal number.
func (c *Charge) AbsAmount() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Amount)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "not a decimal: " + c.Amount}
	}
	return d.Abs(), nil
}

// SkipRecord captures one explicit human rejection of a suggested
// receipt/charge pair, with the feature deltas measured at rejection time.
// Records are append-only: never updated, never deleted.
type SkipRecord struct {
	ID                 string    `json:"id"`
	ReceiptID          string    `json:"receipt_id"`
	ChargeID           string    `json:"charge_id"`
	MerchantSimilarity float64   `json:"merchant_similarity"` // 0-1, persisted as text
	AmountDiff         float64   `json:"amount_diff"`         // absolute dollars
	DateDiff           int       `json:"date_diff"`           // absolute days
	SkipReason         string    `json:"skip_reason,omitempty"`
	SkippedAt          time.Time `json:"skipped_at"`
}

// ReceiptPatch is a partial update to a receipt. Nil fields are left
// untouched. Match-link fields are deliberately absent: links change only
// through LinkMatch/UnlinkMatch so both sides stay consistent.
type ReceiptPatch struct {
	Merchant *string
	Amount   *decimal.Decimal
	Date     *time.Time
	Category *string
}

// ChargePatch is a partial update to a charge. Nil fields are left
// untouched.
type ChargePatch struct {
	Category          *string
	IsPersonalExpense *bool
	NoReceiptRequired *bool
}

// SkipFilters narrows QuerySkipRecords results.
type SkipFilters struct {
	ReceiptID string // empty = all
	ChargeID  string // empty = all
	Limit     int    // 0 = no limit
}
