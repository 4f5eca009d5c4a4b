package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Storage provides SQLite database access for receipts, charges, and skip
// records. It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository.
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with a SQLite database.
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

const receiptColumns = `id, merchant, amount, date, category, statement_id,
	is_matched, matched_charge_id, created_at`

// CreateReceipt inserts a receipt, assigning an id and creation time if empty.
func (s *Storage) CreateReceipt(receipt *Receipt) error {
	if receipt.ID == "" {
		receipt.ID = uuid.NewString()
	}
	if receipt.CreatedAt.IsZero() {
		receipt.CreatedAt = time.Now().UTC()
	}

	var amount sql.NullString
	if receipt.Amount != nil {
		amount = sql.NullString{String: receipt.Amount.String(), Valid: true}
	}
	var date sql.NullTime
	if receipt.Date != nil {
		date = sql.NullTime{Time: *receipt.Date, Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO receipts
		(id, merchant, amount, date, category, statement_id, is_matched, matched_charge_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		receipt.ID, receipt.Merchant, amount, date, receipt.Category,
		receipt.StatementID, receipt.IsMatched, nullString(receipt.MatchedChargeID),
		receipt.CreatedAt,
	)
	if err != nil {
		return &PersistenceError{Op: "create receipt", Err: err}
	}
	return nil
}

// GetReceipt retrieves a receipt by id.
func (s *Storage) GetReceipt(id string) (*Receipt, error) {
	row := s.db.QueryRow(`SELECT `+receiptColumns+` FROM receipts WHERE id = ?`, id)

	receipt, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "receipt", ID: id}
	}
	return receipt, err
}

// GetReceiptsByIDs batch-fetches receipts keyed by id.
func (s *Storage) GetReceiptsByIDs(ids []string) (map[string]*Receipt, error) {
	result := make(map[string]*Receipt, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE id IN (` + placeholders(len(ids)) + `)`
	rows, err := s.db.Query(query, stringArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		result[receipt.ID] = receipt
	}

	return result, rows.Err()
}

// GetUnmatchedReceipts returns receipts with no confirmed charge, oldest
// first for stable candidate ordering.
func (s *Storage) GetUnmatchedReceipts(statementID string) ([]*Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE is_matched = 0`
	args := []any{}
	if statementID != "" {
		query += ` AND statement_id = ?`
		args = append(args, statementID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var receipts []*Receipt
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}

	return receipts, rows.Err()
}

// UpdateReceipt applies a partial update to a receipt.
func (s *Storage) UpdateReceipt(id string, patch ReceiptPatch) error {
	var sets []string
	var args []any

	if patch.Merchant != nil {
		sets = append(sets, "merchant = ?")
		args = append(args, *patch.Merchant)
	}
	if patch.Amount != nil {
		sets = append(sets, "amount = ?")
		args = append(args, patch.Amount.String())
	}
	if patch.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, *patch.Date)
	}
	if patch.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *patch.Category)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	result, err := s.db.Exec(`UPDATE receipts SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return &PersistenceError{Op: "update receipt", Err: err}
	}
	return requireRow(result, "receipt", id)
}

const chargeColumns = `id, description, amount, date, card_member, category,
	statement_id, is_matched, receipt_id, is_personal_expense,
	no_receipt_required, is_non_amex`

// CreateCharge inserts a charge, assigning an id if empty.
func (s *Storage) CreateCharge(charge *Charge) error {
	if charge.ID == "" {
		charge.ID = uuid.NewString()
	}

	_, err := s.db.Exec(`
		INSERT INTO charges
		(id, description, amount, date, card_member, category, statement_id,
		 is_matched, receipt_id, is_personal_expense, no_receipt_required, is_non_amex)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		charge.ID, charge.Description, charge.Amount, charge.Date,
		charge.CardMember, charge.Category, charge.StatementID,
		charge.IsMatched, nullString(charge.ReceiptID),
		charge.IsPersonalExpense, charge.NoReceiptRequired, charge.IsNonAmex,
	)
	if err != nil {
		return &PersistenceError{Op: "create charge", Err: err}
	}
	return nil
}

// GetCharge retrieves a charge by id.
func (s *Storage) GetCharge(id string) (*Charge, error) {
	row := s.db.QueryRow(`SELECT `+chargeColumns+` FROM charges WHERE id = ?`, id)

	charge, err := scanCharge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "charge", ID: id}
	}
	return charge, err
}

// GetChargesByIDs batch-fetches charges keyed by id.
func (s *Storage) GetChargesByIDs(ids []string) (map[string]*Charge, error) {
	result := make(map[string]*Charge, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT ` + chargeColumns + ` FROM charges WHERE id IN (` + placeholders(len(ids)) + `)`
	rows, err := s.db.Query(query, stringArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		charge, err := scanCharge(rows)
		if err != nil {
			return nil, err
		}
		result[charge.ID] = charge
	}

	return result, rows.Err()
}

// GetUnmatchedCharges returns charges with no confirmed receipt.
func (s *Storage) GetUnmatchedCharges(statementID string) ([]*Charge, error) {
	query := `SELECT ` + chargeColumns + ` FROM charges WHERE is_matched = 0`
	args := []any{}
	if statementID != "" {
		query += ` AND statement_id = ?`
		args = append(args, statementID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var charges []*Charge
	for rows.Next() {
		charge, err := scanCharge(rows)
		if err != nil {
			return nil, err
		}
		charges = append(charges, charge)
	}

	return charges, rows.Err()
}

// UpdateCharge applies a partial update to a charge.
func (s *Storage) UpdateCharge(id string, patch ChargePatch) error {
	var sets []string
	var args []any

	if patch.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *patch.Category)
	}
	if patch.IsPersonalExpense != nil {
		sets = append(sets, "is_personal_expense = ?")
		args = append(args, *patch.IsPersonalExpense)
	}
	if patch.NoReceiptRequired != nil {
		sets = append(sets, "no_receipt_required = ?")
		args = append(args, *patch.NoReceiptRequired)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	result, err := s.db.Exec(`UPDATE charges SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return &PersistenceError{Op: "update charge", Err: err}
	}
	return requireRow(result, "charge", id)
}

// LinkMatch sets the bidirectional receipt/charge link atomically. The
// updates are conditional on is_matched = 0 so that two concurrent confirms
// targeting the same record cannot both succeed.
func (s *Storage) LinkMatch(receiptID, chargeID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &PersistenceError{Op: "link match", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	var receiptMatched bool
	var matchedChargeID sql.NullString
	err = tx.QueryRow(`SELECT is_matched, matched_charge_id FROM receipts WHERE id = ?`, receiptID).
		Scan(&receiptMatched, &matchedChargeID)
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{Resource: "receipt", ID: receiptID}
	}
	if err != nil {
		return &PersistenceError{Op: "link match", Err: err}
	}

	var chargeMatched bool
	var linkedReceiptID sql.NullString
	err = tx.QueryRow(`SELECT is_matched, receipt_id FROM charges WHERE id = ?`, chargeID).
		Scan(&chargeMatched, &linkedReceiptID)
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{Resource: "charge", ID: chargeID}
	}
	if err != nil {
		return &PersistenceError{Op: "link match", Err: err}
	}

	// Re-confirming the same pair is a no-op.
	if receiptMatched && matchedChargeID.String == chargeID &&
		chargeMatched && linkedReceiptID.String == receiptID {
		return tx.Commit()
	}

	if receiptMatched {
		return &AlreadyMatchedError{Resource: "receipt", ID: receiptID}
	}
	if chargeMatched {
		return &AlreadyMatchedError{Resource: "charge", ID: chargeID}
	}

	res, err := tx.Exec(
		`UPDATE receipts SET is_matched = 1, matched_charge_id = ? WHERE id = ? AND is_matched = 0`,
		chargeID, receiptID,
	)
	if err != nil {
		return &PersistenceError{Op: "link match", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &AlreadyMatchedError{Resource: "receipt", ID: receiptID}
	}

	res, err = tx.Exec(
		`UPDATE charges SET is_matched = 1, receipt_id = ? WHERE id = ? AND is_matched = 0`,
		receiptID, chargeID,
	)
	if err != nil {
		return &PersistenceError{Op: "link match", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &AlreadyMatchedError{Resource: "charge", ID: chargeID}
	}

	return tx.Commit()
}

// UnlinkMatch clears the receipt/charge link on both sides. Unmatched
// receipts are left untouched.
func (s *Storage) UnlinkMatch(receiptID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &PersistenceError{Op: "unlink match", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	var isMatched bool
	var matchedChargeID sql.NullString
	err = tx.QueryRow(`SELECT is_matched, matched_charge_id FROM receipts WHERE id = ?`, receiptID).
		Scan(&isMatched, &matchedChargeID)
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{Resource: "receipt", ID: receiptID}
	}
	if err != nil {
		return &PersistenceError{Op: "unlink match", Err: err}
	}

	if !isMatched {
		return tx.Commit() // idempotent no-op
	}

	if _, err := tx.Exec(
		`UPDATE receipts SET is_matched = 0, matched_charge_id = NULL WHERE id = ?`,
		receiptID,
	); err != nil {
		return &PersistenceError{Op: "unlink match", Err: err}
	}

	if matchedChargeID.Valid {
		if _, err := tx.Exec(
			`UPDATE charges SET is_matched = 0, receipt_id = NULL WHERE id = ?`,
			matchedChargeID.String,
		); err != nil {
			return &PersistenceError{Op: "unlink match", Err: err}
		}
	}

	return tx.Commit()
}

// InsertSkipRecord appends a rejection event.
func (s *Storage) InsertSkipRecord(record *SkipRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.SkippedAt.IsZero() {
		record.SkippedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO skip_records
		(id, receipt_id, charge_id, merchant_similarity, amount_diff, date_diff, skip_reason, skipped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.ReceiptID, record.ChargeID,
		strconv.FormatFloat(record.MerchantSimilarity, 'f', -1, 64),
		record.AmountDiff, record.DateDiff, record.SkipReason, record.SkippedAt,
	)
	if err != nil {
		return &PersistenceError{Op: "insert skip record", Err: err}
	}
	return nil
}

// QuerySkipRecords returns skip records at or after since, newest first.
func (s *Storage) QuerySkipRecords(since time.Time, filters SkipFilters) ([]*SkipRecord, error) {
	query := `
		SELECT id, receipt_id, charge_id, merchant_similarity, amount_diff, date_diff, skip_reason, skipped_at
		FROM skip_records WHERE skipped_at >= ?`
	args := []any{since}

	if filters.ReceiptID != "" {
		query += ` AND receipt_id = ?`
		args = append(args, filters.ReceiptID)
	}
	if filters.ChargeID != "" {
		query += ` AND charge_id = ?`
		args = append(args, filters.ChargeID)
	}
	query += ` ORDER BY skipped_at DESC`
	if filters.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filters.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []*SkipRecord
	for rows.Next() {
		record := &SkipRecord{}
		var similarity string
		if err := rows.Scan(
			&record.ID, &record.ReceiptID, &record.ChargeID, &similarity,
			&record.AmountDiff, &record.DateDiff, &record.SkipReason, &record.SkippedAt,
		); err != nil {
			return nil, err
		}
		record.MerchantSimilarity, _ = strconv.ParseFloat(similarity, 64)
		records = append(records, record)
	}

	return records, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows for the shared scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row scanner) (*Receipt, error) {
	receipt := &Receipt{}
	var amount sql.NullString
	var date sql.NullTime
	var matchedChargeID sql.NullString

	err := row.Scan(
		&receipt.ID, &receipt.Merchant, &amount, &date, &receipt.Category,
		&receipt.StatementID, &receipt.IsMatched, &matchedChargeID, &receipt.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if amount.Valid {
		d, err := decimal.NewFromString(amount.String)
		if err == nil {
			receipt.Amount = &d
		}
	}
	if date.Valid {
		t := date.Time
		receipt.Date = &t
	}
	if matchedChargeID.Valid {
		receipt.MatchedChargeID = matchedChargeID.String
	}

	return receipt, nil
}

func scanCharge(row scanner) (*Charge, error) {
	charge := &Charge{}
	var receiptID sql.NullString

	err := row.Scan(
		&charge.ID, &charge.Description, &charge.Amount, &charge.Date,
		&charge.CardMember, &charge.Category, &charge.StatementID,
		&charge.IsMatched, &receiptID, &charge.IsPersonalExpense,
		&charge.NoReceiptRequired, &charge.IsNonAmex,
	)
	if err != nil {
		return nil, err
	}

	if receiptID.Valid {
		charge.ReceiptID = receiptID.String
	}

	return charge, nil
}

func requireRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return &PersistenceError{Op: "update " + resource, Err: err}
	}
	if n == 0 {
		return &NotFoundError{Resource: resource, ID: id}
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
