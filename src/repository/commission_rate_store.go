package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/treasury/backend/src/models"
	"github.com/username/treasury/backend/src/processors"
	"github.com/username/treasury/backend/src/utils"
)

// CommissionRateStore persists the time-sliced commission schedule per PSP.
type CommissionRateStore struct {
	db *sql.DB
}

func NewCommissionRateStore(db *sql.DB) *CommissionRateStore {
	return &CommissionRateStore{db: db}
}

// ActiveRateFor returns the active interval covering the date with the latest
// EffectiveFrom, ties broken by most-recently-inserted (highest id). Returns
// (nil, nil) when no interval covers the date.
func (s *CommissionRateStore) ActiveRateFor(psp string, date time.Time) (*models.PSPCommissionRate, error) {
	dateStr := utils.FormatDate(date)
	row := s.db.QueryRow(`SELECT id, psp_name, commission_rate, effective_from, effective_until, is_active
		FROM psp_commission_rates
		WHERE psp_name = ? AND is_active = 1 AND effective_from <= ?
			AND (effective_until IS NULL OR effective_until >= ?)
		ORDER BY effective_from DESC, id DESC LIMIT 1`, psp, dateStr, dateStr)
	rate, err := scanCommissionRate(row)
	if err != nil {
		return nil, fmt.Errorf("querying commission rate for %s on %s: %w", psp, dateStr, err)
	}
	return rate, nil
}

// ListRates returns every active interval for a PSP, newest first.
func (s *CommissionRateStore) ListRates(psp string) ([]models.PSPCommissionRate, error) {
	rows, err := s.db.Query(`SELECT id, psp_name, commission_rate, effective_from, effective_until, is_active
		FROM psp_commission_rates WHERE psp_name = ? AND is_active = 1
		ORDER BY effective_from DESC, id DESC`, psp)
	if err != nil {
		return nil, fmt.Errorf("listing commission rates for %s: %w", psp, err)
	}
	defer rows.Close()

	var rates []models.PSPCommissionRate
	for rows.Next() {
		rate, err := scanCommissionRateRow(rows)
		if err != nil {
			return nil, err
		}
		rates = append(rates, rate)
	}
	return rates, rows.Err()
}

// SetNewRate closes the currently open interval for the PSP at the new
// interval's start and inserts the new interval, as one sql transaction so a
// concurrent reader never observes a gap or an overlap. An EffectiveFrom
// earlier than an existing interval's start is rejected.
func (s *CommissionRateStore) SetNewRate(psp string, rate decimal.Decimal, from time.Time, until *time.Time) (*models.PSPCommissionRate, error) {
	fromStr := utils.FormatDate(from)

	dbTx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning commission rate transaction: %w", err)
	}
	defer dbTx.Rollback()

	var latestFrom sql.NullString
	err = dbTx.QueryRow(`SELECT MAX(effective_from) FROM psp_commission_rates
		WHERE psp_name = ? AND is_active = 1`, psp).Scan(&latestFrom)
	if err != nil {
		return nil, fmt.Errorf("checking existing intervals for %s: %w", psp, err)
	}
	if latestFrom.Valid && fromStr < latestFrom.String {
		return nil, fmt.Errorf("%w: %s starts %s, existing interval starts %s",
			processors.ErrOverlappingInterval, psp, fromStr, latestFrom.String)
	}

	_, err = dbTx.Exec(`UPDATE psp_commission_rates SET effective_until = ?
		WHERE psp_name = ? AND is_active = 1 AND effective_until IS NULL`, fromStr, psp)
	if err != nil {
		return nil, fmt.Errorf("closing open interval for %s: %w", psp, err)
	}

	var untilValue any
	if until != nil {
		untilValue = utils.FormatDate(*until)
	}
	res, err := dbTx.Exec(`INSERT INTO psp_commission_rates
		(psp_name, commission_rate, effective_from, effective_until, is_active)
		VALUES (?, ?, ?, ?, 1)`, psp, rate.String(), fromStr, untilValue)
	if err != nil {
		return nil, fmt.Errorf("inserting commission rate for %s: %w", psp, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("committing commission rate for %s: %w", psp, err)
	}

	created := &models.PSPCommissionRate{
		ID: id, PSPName: psp, CommissionRate: rate,
		EffectiveFrom: utils.DateOnly(from), IsActive: true,
	}
	if until != nil {
		u := utils.DateOnly(*until)
		created.EffectiveUntil = &u
	}
	return created, nil
}

func scanCommissionRate(row *sql.Row) (*models.PSPCommissionRate, error) {
	var (
		rate             models.PSPCommissionRate
		rateStr, fromStr string
		untilStr         sql.NullString
	)
	err := row.Scan(&rate.ID, &rate.PSPName, &rateStr, &fromStr, &untilStr, &rate.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := fillCommissionRate(&rate, rateStr, fromStr, untilStr); err != nil {
		return nil, err
	}
	return &rate, nil
}

func scanCommissionRateRow(rows *sql.Rows) (models.PSPCommissionRate, error) {
	var (
		rate             models.PSPCommissionRate
		rateStr, fromStr string
		untilStr         sql.NullString
	)
	err := rows.Scan(&rate.ID, &rate.PSPName, &rateStr, &fromStr, &untilStr, &rate.IsActive)
	if err != nil {
		return models.PSPCommissionRate{}, fmt.Errorf("scanning commission rate row: %w", err)
	}
	if err := fillCommissionRate(&rate, rateStr, fromStr, untilStr); err != nil {
		return models.PSPCommissionRate{}, err
	}
	return rate, nil
}

func fillCommissionRate(rate *models.PSPCommissionRate, rateStr, fromStr string, untilStr sql.NullString) error {
	var err error
	if rate.CommissionRate, err = parseDecimal(rateStr); err != nil {
		return fmt.Errorf("commission rate value for %s: %w", rate.PSPName, err)
	}
	if rate.EffectiveFrom, err = utils.ParseDate(fromStr); err != nil {
		return err
	}
	if untilStr.Valid {
		until, err := utils.ParseDate(untilStr.String)
		if err != nil {
			return err
		}
		rate.EffectiveUntil = &until
	}
	return nil
}
