package storage

import "time"

// Repository defines the complete storage interface the matching core
// consumes. This interface allows swapping implementations (SQLite,
// PostgreSQL, etc.) and makes testing with in-memory fakes straightforward.
type Repository interface {
	ReceiptRepository
	ChargeRepository
	MatchLinker
	SkipRecordRepository
	Close() error
}

// ReceiptRepository handles receipt reads and updates.
type ReceiptRepository interface {
	// CreateReceipt inserts a receipt, assigning an id if empty.
	CreateReceipt(receipt *Receipt) error

	// GetReceipt retrieves a receipt by id. Returns NotFoundError when absent.
	GetReceipt(id string) (*Receipt, error)

	// GetReceiptsByIDs batch-fetches receipts keyed by id. Missing ids are
	// simply absent from the result map.
	GetReceiptsByIDs(ids []string) (map[string]*Receipt, error)

	// GetUnmatchedReceipts returns all receipts with no confirmed charge.
	// A non-empty statementID narrows to receipts scoped to that statement.
	GetUnmatchedReceipts(statementID string) ([]*Receipt, error)

	// UpdateReceipt applies a partial update to a receipt.
	UpdateReceipt(id string, patch ReceiptPatch) error
}

// ChargeRepository handles statement charge reads and updates.
type ChargeRepository interface {
	// CreateCharge inserts a charge, assigning an id if empty.
	CreateCharge(charge *Charge) error

	// GetCharge retrieves a charge by id. Returns NotFoundError when absent.
	GetCharge(id string) (*Charge, error)

	// GetChargesByIDs batch-fetches charges keyed by id.
	GetChargesByIDs(ids []string) (map[string]*Charge, error)

	// GetUnmatchedCharges returns all charges with no confirmed receipt.
	// A non-empty statementID narrows to one statement's charges.
	GetUnmatchedCharges(statementID string) ([]*Charge, error)

	// UpdateCharge applies a partial update to a charge.
	UpdateCharge(id string, patch ChargePatch) error
}

// MatchLinker owns the bidirectional receipt/charge link. Both operations
// are atomic: either both sides change or neither does. Implementations
// must serialize concurrent links on the same record (conditional update or
// row lock) so two confirms targeting the same charge cannot both succeed.
type MatchLinker interface {
	// LinkMatch marks both records matched and cross-references them.
	// Returns NotFoundError if either id is absent, AlreadyMatchedError if
	// either side is already linked to a different counterpart.
	LinkMatch(receiptID, chargeID string) error

	// UnlinkMatch clears the link on both sides. Calling it on an
	// unmatched receipt is a no-op, not an error.
	UnlinkMatch(receiptID string) error
}

// SkipRecordRepository handles the append-only rejection log.
type SkipRecordRepository interface {
	// InsertSkipRecord appends a rejection event, assigning an id and
	// timestamp if empty.
	InsertSkipRecord(record *SkipRecord) error

	// QuerySkipRecords returns skip records at or after since, newest first.
	QuerySkipRecords(since time.Time, filters SkipFilters) ([]*SkipRecord, error)
}
