package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/username/treasury/backend/src/models"
	"github.com/username/treasury/backend/src/utils"
)

// TransactionStore persists raw PSP transactions. Range queries stream rows
// through an iterator so "all time" reports never materialize the full table.
type TransactionStore struct {
	db *sql.DB
}

func NewTransactionStore(db *sql.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

// TransactionFilter narrows a range query. Zero values mean "no filter".
type TransactionFilter struct {
	PSP      string
	Category models.Category
}

const transactionColumns = `id, date, category, currency, amount, commission, net_amount,
	psp, payment_method, amount_try, commission_try, net_amount_try, exchange_rate`

// Insert stores a transaction, assigning an ID when the caller did not.
func (s *TransactionStore) Insert(tx models.Transaction) (models.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	_, err := s.db.Exec(`INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, utils.FormatDate(tx.Date), string(tx.Category), tx.Currency,
		tx.Amount.String(), tx.Commission.String(), tx.NetAmount.String(),
		tx.PSP, tx.PaymentMethod,
		nullDecimalValue(tx.AmountTRY), nullDecimalValue(tx.CommissionTRY),
		nullDecimalValue(tx.NetAmountTRY), nullDecimalValue(tx.ExchangeRate))
	if err != nil {
		return models.Transaction{}, fmt.Errorf("inserting transaction: %w", err)
	}
	return tx, nil
}

// Update rewrites a stored transaction in full.
func (s *TransactionStore) Update(tx models.Transaction) error {
	res, err := s.db.Exec(`UPDATE transactions SET date = ?, category = ?, currency = ?,
		amount = ?, commission = ?, net_amount = ?, psp = ?, payment_method = ?,
		amount_try = ?, commission_try = ?, net_amount_try = ?, exchange_rate = ?
		WHERE id = ?`,
		utils.FormatDate(tx.Date), string(tx.Category), tx.Currency,
		tx.Amount.String(), tx.Commission.String(), tx.NetAmount.String(),
		tx.PSP, tx.PaymentMethod,
		nullDecimalValue(tx.AmountTRY), nullDecimalValue(tx.CommissionTRY),
		nullDecimalValue(tx.NetAmountTRY), nullDecimalValue(tx.ExchangeRate),
		tx.ID)
	if err != nil {
		return fmt.Errorf("updating transaction %s: %w", tx.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a transaction by ID.
func (s *TransactionStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting transaction %s: %w", id, err)
	}
	return nil
}

// QueryRange opens a streaming cursor over transactions inside the inclusive
// date window (zero time means unbounded on that side), oldest first. The
// caller must exhaust or Close the iterator.
func (s *TransactionStore) QueryRange(ctx context.Context, from, to time.Time, filter TransactionFilter) (*TransactionIterator, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	var args []any
	if !from.IsZero() {
		query += ` AND date >= ?`
		args = append(args, utils.FormatDate(from))
	}
	if !to.IsZero() {
		query += ` AND date <= ?`
		args = append(args, utils.FormatDate(to))
	}
	if filter.PSP != "" {
		query += ` AND psp = ?`
		args = append(args, filter.PSP)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, string(filter.Category))
	}
	query += ` ORDER BY date ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	return &TransactionIterator{rows: rows}, nil
}

// TransactionIterator walks a transaction cursor row by row.
//
//	it, err := store.QueryRange(ctx, from, to, filter)
//	for it.Next() {
//	    tx := it.Transaction()
//	}
//	err = it.Err()
type TransactionIterator struct {
	rows    *sql.Rows
	current models.Transaction
	err     error
}

func (it *TransactionIterator) Next() bool {
	if it.err != nil || !it.rows.Next() {
		return false
	}
	tx, err := scanTransaction(it.rows)
	if err != nil {
		it.err = err
		return false
	}
	it.current = tx
	return true
}

func (it *TransactionIterator) Transaction() models.Transaction { return it.current }

func (it *TransactionIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.rows.Err()
}

func (it *TransactionIterator) Close() error { return it.rows.Close() }

func scanTransaction(rows *sql.Rows) (models.Transaction, error) {
	var (
		tx                            models.Transaction
		dateStr, category             string
		amount, commission, netAmount string
		psp, paymentMethod            sql.NullString
		amountTRY, commissionTRY      sql.NullString
		netAmountTRY, exchangeRate    sql.NullString
	)
	err := rows.Scan(&tx.ID, &dateStr, &category, &tx.Currency,
		&amount, &commission, &netAmount, &psp, &paymentMethod,
		&amountTRY, &commissionTRY, &netAmountTRY, &exchangeRate)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("scanning transaction row: %w", err)
	}

	tx.Date, err = utils.ParseDate(dateStr)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, err)
	}
	tx.Category = models.Category(category)
	tx.PSP = psp.String
	tx.PaymentMethod = paymentMethod.String

	if tx.Amount, err = parseDecimal(amount); err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %s amount: %w", tx.ID, err)
	}
	if tx.Commission, err = parseDecimal(commission); err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %s commission: %w", tx.ID, err)
	}
	if tx.NetAmount, err = parseDecimal(netAmount); err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %s net_amount: %w", tx.ID, err)
	}
	if tx.AmountTRY, err = parseNullDecimal(amountTRY); err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %s amount_try: %w", tx.ID, err)
	}
	if tx.CommissionTRY, err = parseNullDecimal(commissionTRY); err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %s commission_try: %w", tx.ID, err)
	}
	if tx.NetAmountTRY, err = parseNullDecimal(netAmountTRY); err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %s net_amount_try: %w", tx.ID, err)
	}
	if tx.ExchangeRate, err = parseNullDecimal(exchangeRate); err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %s exchange_rate: %w", tx.ID, err)
	}
	return tx, nil
}

// Monetary values are stored as TEXT so sqlite never coerces them to floats.

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func parseNullDecimal(s sql.NullString) (decimal.NullDecimal, error) {
	if !s.Valid || s.String == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

func nullDecimalValue(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}
