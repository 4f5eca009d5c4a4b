package dto

// ConfirmMatchRequest is the body for POST /api/matches.
type ConfirmMatchRequest struct {
	ReceiptID string `json:"receipt_id"`
	ChargeID  string `json:"charge_id"`
}

// SkipRequest is the body for POST /api/skips.
type SkipRequest struct {
	ReceiptID string `json:"receipt_id"`
	ChargeID  string `json:"charge_id"`
	Reason    string `json:"reason,omitempty"`
}
