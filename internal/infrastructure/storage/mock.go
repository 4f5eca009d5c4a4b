package storage

import (
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps, making tests fast and isolated.
type MockRepository struct {
	receipts map[string]*Receipt
	charges  map[string]*Charge
	skips    []*SkipRecord

	// Hooks for test assertions
	LinkMatchCalled        bool
	UnlinkMatchCalled      bool
	InsertSkipRecordCalled bool
	LastInsertedSkip       *SkipRecord

	// Error injection for testing error paths
	LinkMatchErr        error
	UnlinkMatchErr      error
	InsertSkipRecordErr error
	QuerySkipRecordsErr error
	GetReceiptErr       error
	GetChargeErr        error
}

// Compile-time check that MockRepository implements Repository.
var _ Repository = (*MockRepository)(nil)

// NewMockRepository creates a new mock repository for testing.
func NewMockRepository() *MockRepository {
	return &MockRepository{
		receipts: make(map[string]*Receipt),
		charges:  make(map[string]*Charge),
	}
}

// Close does nothing for the mock.
func (m *MockRepository) Close() error {
	return nil
}

// CreateReceipt stores a receipt in the in-memory map.
func (m *MockRepository) CreateReceipt(receipt *Receipt) error {
	if receipt.ID == "" {
		receipt.ID = uuid.NewString()
	}
	if receipt.CreatedAt.IsZero() {
		receipt.CreatedAt = time.Now().UTC()
	}
	copied := *receipt
	m.receipts[receipt.ID] = &copied
	return nil
}

// GetReceipt retrieves a receipt from the in-memory map.
func (m *MockRepository) GetReceipt(id string) (*Receipt, error) {
	if m.GetReceiptErr != nil {
		return nil, m.GetReceiptErr
	}
	receipt, ok := m.receipts[id]
	if !ok {
		return nil, &NotFoundError{Resource: "receipt", ID: id}
	}
	copied := *receipt
	return &copied, nil
}

// GetReceiptsByIDs batch-fetches receipts keyed by id.
func (m *MockRepository) GetReceiptsByIDs(ids []string) (map[string]*Receipt, error) {
	if m.GetReceiptErr != nil {
		return nil, m.GetReceiptErr
	}
	result := make(map[string]*Receipt, len(ids))
	for _, id := range ids {
		if receipt, ok := m.receipts[id]; ok {
			copied := *receipt
			result[id] = &copied
		}
	}
	return result, nil
}

// GetUnmatchedReceipts returns unmatched receipts ordered by id.
func (m *MockRepository) GetUnmatchedReceipts(statementID string) ([]*Receipt, error) {
	var receipts []*Receipt
	for _, receipt := range m.receipts {
		if receipt.IsMatched {
			continue
		}
		if statementID != "" && receipt.StatementID != statementID {
			continue
		}
		copied := *receipt
		receipts = append(receipts, &copied)
	}
	sort.Slice(receipts, func(i, j int) bool { return receipts[i].ID < receipts[j].ID })
	return receipts, nil
}

// UpdateReceipt applies a partial update to a receipt.
func (m *MockRepository) UpdateReceipt(id string, patch ReceiptPatch) error {
	receipt, ok := m.receipts[id]
	if !ok {
		return &NotFoundError{Resource: "receipt", ID: id}
	}
	if patch.Merchant != nil {
		receipt.Merchant = *patch.Merchant
	}
	if patch.Amount != nil {
		amount := *patch.Amount
		receipt.Amount = &amount
	}
	if patch.Date != nil {
		date := *patch.Date
		receipt.Date = &date
	}
	if patch.Category != nil {
		receipt.Category = *patch.Category
	}
	return nil
}

// CreateCharge stores a charge in the in-memory map.
func (m *MockRepository) CreateCharge(charge *Charge) error {
	if charge.ID == "" {
		charge.ID = uuid.NewString()
	}
	copied := *charge
	m.charges[charge.ID] = &copied
	return nil
}

// GetCharge retrieves a charge from the in-memory map.
func (m *MockRepository) GetCharge(id string) (*Charge, error) {
	if m.GetChargeErr != nil {
		return nil, m.GetChargeErr
	}
	charge, ok := m.charges[id]
	if !ok {
		return nil, &NotFoundError{Resource: "charge", ID: id}
	}
	copied := *charge
	return &copied, nil
}

// GetChargesByIDs batch-fetches charges keyed by id.
func (m *MockRepository) GetChargesByIDs(ids []string) (map[string]*Charge, error) {
	if m.GetChargeErr != nil {
		return nil, m.GetChargeErr
	}
	result := make(map[string]*Charge, len(ids))
	for _, id := range ids {
		if charge, ok := m.charges[id]; ok {
			copied := *charge
			result[id] = &copied
		}
	}
	return result, nil
}

// GetUnmatchedCharges returns unmatched charges ordered by id.
func (m *MockRepository) GetUnmatchedCharges(statementID string) ([]*Charge, error) {
	var charges []*Charge
	for _, charge := range m.charges {
		if charge.IsMatched {
			continue
		}
		if statementID != "" && charge.StatementID != statementID {
			continue
		}
		copied := *charge
		charges = append(charges, &copied)
	}
	sort.Slice(charges, func(i, j int) bool { return charges[i].ID < charges[j].ID })
	return charges, nil
}

// UpdateCharge applies a partial update to a charge.
func (m *MockRepository) UpdateCharge(id string, patch ChargePatch) error {
	charge, ok := m.charges[id]
	if !ok {
		return &NotFoundError{Resource: "charge", ID: id}
	}
	if patch.Category != nil {
		charge.Category = *patch.Category
	}
	if patch.IsPersonalExpense != nil {
		charge.IsPersonalExpense = *patch.IsPersonalExpense
	}
	if patch.NoReceiptRequired != nil {
		charge.NoReceiptRequired = *patch.NoReceiptRequired
	}
	return nil
}

// LinkMatch sets the bidirectional link with the same error semantics as the
// SQLite implementation.
func (m *MockRepository) LinkMatch(receiptID, chargeID string) error {
	m.LinkMatchCalled = true
	if m.LinkMatchErr != nil {
		return m.LinkMatchErr
	}

	receipt, ok := m.receipts[receiptID]
	if !ok {
		return &NotFoundError{Resource: "receipt", ID: receiptID}
	}
	charge, ok := m.charges[chargeID]
	if !ok {
		return &NotFoundError{Resource: "charge", ID: chargeID}
	}

	if receipt.IsMatched && receipt.MatchedChargeID == chargeID &&
		charge.IsMatched && charge.ReceiptID == receiptID {
		return nil // re-confirming the same pair
	}
	if receipt.IsMatched {
		return &AlreadyMatchedError{Resource: "receipt", ID: receiptID}
	}
	if charge.IsMatched {
		return &AlreadyMatchedError{Resource: "charge", ID: chargeID}
	}

	receipt.IsMatched = true
	receipt.MatchedChargeID = chargeID
	charge.IsMatched = true
	charge.ReceiptID = receiptID
	return nil
}

// UnlinkMatch clears the link on both sides; no-op for unmatched receipts.
func (m *MockRepository) UnlinkMatch(receiptID string) error {
	m.UnlinkMatchCalled = true
	if m.UnlinkMatchErr != nil {
		return m.UnlinkMatchErr
	}

	receipt, ok := m.receipts[receiptID]
	if !ok {
		return &NotFoundError{Resource: "receipt", ID: receiptID}
	}
	if !receipt.IsMatched {
		return nil
	}

	if charge, ok := m.charges[receipt.MatchedChargeID]; ok {
		charge.IsMatched = false
		charge.ReceiptID = ""
	}
	receipt.IsMatched = false
	receipt.MatchedChargeID = ""
	return nil
}

// InsertSkipRecord appends a rejection event.
func (m *MockRepository) InsertSkipRecord(record *SkipRecord) error {
	m.InsertSkipRecordCalled = true
	m.LastInsertedSkip = record
	if m.InsertSkipRecordErr != nil {
		return m.InsertSkipRecordErr
	}
	if record.ID == "" {
		record.ID = strconv.Itoa(len(m.skips) + 1)
	}
	if record.SkippedAt.IsZero() {
		record.SkippedAt = time.Now().UTC()
	}
	copied := *record
	m.skips = append(m.skips, &copied)
	return nil
}

// QuerySkipRecords returns skip records at or after since, newest first.
func (m *MockRepository) QuerySkipRecords(since time.Time, filters SkipFilters) ([]*SkipRecord, error) {
	if m.QuerySkipRecordsErr != nil {
		return nil, m.QuerySkipRecordsErr
	}

	var records []*SkipRecord
	for _, record := range m.skips {
		if record.SkippedAt.Before(since) {
			continue
		}
		if filters.ReceiptID != "" && record.ReceiptID != filters.ReceiptID {
			continue
		}
		if filters.ChargeID != "" && record.ChargeID != filters.ChargeID {
			continue
		}
		copied := *record
		records = append(records, &copied)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].SkippedAt.After(records[j].SkippedAt)
	})
	if filters.Limit > 0 && len(records) > filters.Limit {
		records = records[:filters.Limit]
	}
	return records, nil
}
