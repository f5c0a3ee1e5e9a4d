package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/treasury/backend/src/models"
	"github.com/username/treasury/backend/src/utils"
)

// ExchangeRateStore persists one rate row per calendar date. Manual rows are
// protected: an automated refresh can never overwrite them.
type ExchangeRateStore struct {
	db *sql.DB
}

func NewExchangeRateStore(db *sql.DB) *ExchangeRateStore {
	return &ExchangeRateStore{db: db}
}

// GetRate returns the row for the exact date, or (nil, nil) when none exists.
func (s *ExchangeRateStore) GetRate(date time.Time) (*models.ExchangeRate, error) {
	row := s.db.QueryRow(`SELECT date, usd_to_tl, eur_to_tl, is_manual
		FROM exchange_rates WHERE date = ?`, utils.FormatDate(date))
	return scanExchangeRate(row)
}

// LatestOnOrBefore returns the most recent row on or before the date that
// carries a value for the pair, or (nil, nil) when the table holds nothing
// that early. The pair filter matters for EUR: a newer row with only a USD
// column must not shadow an older row that has the EUR one.
func (s *ExchangeRateStore) LatestOnOrBefore(date time.Time, pair models.CurrencyPair) (*models.ExchangeRate, error) {
	query := `SELECT date, usd_to_tl, eur_to_tl, is_manual
		FROM exchange_rates WHERE date <= ?`
	if pair == models.PairEURTRY {
		query += ` AND eur_to_tl IS NOT NULL`
	}
	query += ` ORDER BY date DESC LIMIT 1`
	row := s.db.QueryRow(query, utils.FormatDate(date))
	return scanExchangeRate(row)
}

// SetManual upserts a human-edited rate row and marks it manual.
func (s *ExchangeRateStore) SetManual(date time.Time, usdToTL decimal.Decimal, eurToTL decimal.NullDecimal) (*models.ExchangeRate, error) {
	_, err := s.db.Exec(`INSERT INTO exchange_rates (date, usd_to_tl, eur_to_tl, is_manual)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(date) DO UPDATE SET usd_to_tl = excluded.usd_to_tl,
			eur_to_tl = excluded.eur_to_tl, is_manual = 1`,
		utils.FormatDate(date), usdToTL.String(), nullDecimalValue(eurToTL))
	if err != nil {
		return nil, fmt.Errorf("setting manual rate for %s: %w", utils.FormatDate(date), err)
	}
	return &models.ExchangeRate{Date: utils.DateOnly(date), USDToTL: usdToTL, EURToTL: eurToTL, IsManual: true}, nil
}

// UpsertRefreshed writes a refreshed rate row unless the existing row is
// manual; manual rows win silently. Reports whether the row was written.
func (s *ExchangeRateStore) UpsertRefreshed(rate models.ExchangeRate) (bool, error) {
	res, err := s.db.Exec(`INSERT INTO exchange_rates (date, usd_to_tl, eur_to_tl, is_manual)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(date) DO UPDATE SET usd_to_tl = excluded.usd_to_tl,
			eur_to_tl = excluded.eur_to_tl
		WHERE exchange_rates.is_manual = 0`,
		utils.FormatDate(rate.Date), rate.USDToTL.String(), nullDecimalValue(rate.EURToTL))
	if err != nil {
		return false, fmt.Errorf("upserting refreshed rate for %s: %w", utils.FormatDate(rate.Date), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanExchangeRate(row *sql.Row) (*models.ExchangeRate, error) {
	var (
		rate    models.ExchangeRate
		dateStr string
		usd     string
		eur     sql.NullString
	)
	err := row.Scan(&dateStr, &usd, &eur, &rate.IsManual)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning exchange rate row: %w", err)
	}
	if rate.Date, err = utils.ParseDate(dateStr); err != nil {
		return nil, err
	}
	if rate.USDToTL, err = parseDecimal(usd); err != nil {
		return nil, fmt.Errorf("exchange rate %s usd_to_tl: %w", dateStr, err)
	}
	if rate.EURToTL, err = parseNullDecimal(eur); err != nil {
		return nil, fmt.Errorf("exchange rate %s eur_to_tl: %w", dateStr, err)
	}
	return &rate, nil
}
