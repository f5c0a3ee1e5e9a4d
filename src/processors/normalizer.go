package processors

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/username/treasury/backend/src/logger"
	"github.com/username/treasury/backend/src/models"
)

// commissionExemptCategories is the declarative commission rule table. A
// category listed here carries zero commission no matter what the PSP schedule
// says; withdrawals never bear commission.
var commissionExemptCategories = map[models.Category]bool{
	models.CategoryWithdrawal: true,
}

// TransactionNormalizer converts one raw transaction into a canonical record
// with amounts expressed in both TRY and USD. Two structural rules dominate:
// Tether transactions are USD-denominated by business convention regardless of
// the stored currency field (the TRY mirrors are zeroed), and a persisted TRY
// mirror on a non-Tether transaction is authoritative, never re-converted.
type TransactionNormalizer struct {
	rates       *ExchangeRateResolver
	commissions *CommissionRateResolver
}

func NewTransactionNormalizer(rates *ExchangeRateResolver, commissions *CommissionRateResolver) *TransactionNormalizer {
	return &TransactionNormalizer{rates: rates, commissions: commissions}
}

// Normalize builds the canonical record for one transaction. All output
// amounts are positive magnitudes; the aggregation layer subtracts
// withdrawals, records never carry a sign. If no usable exchange rate can be
// found for a required conversion the whole record fails with
// ErrRateUnavailable rather than emitting a silent zero.
func (n *TransactionNormalizer) Normalize(ctx context.Context, tx models.Transaction) (models.CanonicalRecord, error) {
	class := ClassifyPaymentMethod(tx.PaymentMethod)

	gross := tx.Amount.Abs()
	commission := tx.Commission.Abs()
	net := tx.NetAmount.Abs()
	if net.IsZero() && !gross.IsZero() {
		net = gross.Sub(commission)
	}
	switch {
	case commissionExemptCategories[tx.Category]:
		commission = decimal.Zero
		net = gross
	case commission.IsZero() && !tx.CommissionTRY.Valid:
		// The record carries no commission figure at all; derive it from the
		// PSP schedule. RateFor answers zero for unknown PSPs, so this is a
		// no-op for rails without a schedule.
		rate, err := n.commissions.RateFor(tx.PSPName(), tx.Date)
		if err != nil {
			return models.CanonicalRecord{}, fmt.Errorf("normalizing transaction %s: %w", tx.ID, err)
		}
		if rate.IsPositive() {
			commission = gross.Mul(rate)
			net = gross.Sub(commission)
		}
	}

	rec := models.CanonicalRecord{
		TransactionID:      tx.ID,
		Date:               tx.Date,
		Category:           tx.Category,
		PSP:                tx.PSPName(),
		PaymentMethodClass: class,
		IsDeposit:          tx.Category == models.CategoryDeposit,
	}

	var err error
	if class == models.MethodTether {
		err = n.normalizeTether(ctx, tx, gross, commission, net, &rec)
	} else {
		err = n.normalizeRegular(ctx, tx, gross, commission, net, &rec)
	}
	if err != nil {
		return models.CanonicalRecord{}, fmt.Errorf("normalizing transaction %s: %w", tx.ID, err)
	}
	return rec, nil
}

// normalizeTether handles the KASA rail: an internal USD-denominated ledger.
// All figures are USD and the TRY mirrors stay zero. The USD figure prefers
// the transaction's own amount when it is non-zero and not TRY-denominated;
// otherwise the persisted TRY value is divided by the transaction's own
// recorded rate (the rate actually used at transaction time), and only as a
// last resort by the resolver's current rate.
func (n *TransactionNormalizer) normalizeTether(ctx context.Context, tx models.Transaction, gross, commission, net decimal.Decimal, rec *models.CanonicalRecord) error {
	rec.AmountTRY = decimal.Zero
	rec.CommissionTRY = decimal.Zero
	rec.NetAmountTRY = decimal.Zero

	var err error
	rec.AmountUSD, err = n.tetherUSD(ctx, tx, gross, tx.AmountTRY)
	if err != nil {
		return err
	}
	rec.CommissionUSD, err = n.tetherUSD(ctx, tx, commission, tx.CommissionTRY)
	if err != nil {
		return err
	}
	if commissionExemptCategories[tx.Category] {
		rec.CommissionUSD = decimal.Zero
	}
	rec.NetAmountUSD, err = n.tetherUSD(ctx, tx, net, tx.NetAmountTRY)
	if err != nil {
		return err
	}
	if rec.NetAmountUSD.IsZero() && !rec.AmountUSD.IsZero() {
		// No direct net figure anywhere; estimate as gross minus commission.
		rec.NetAmountUSD = rec.AmountUSD.Sub(rec.CommissionUSD)
	}
	return nil
}

func (n *TransactionNormalizer) tetherUSD(ctx context.Context, tx models.Transaction, original decimal.Decimal, mirror decimal.NullDecimal) (decimal.Decimal, error) {
	if !original.IsZero() && tx.Currency != "TRY" {
		return original, nil
	}
	// The value at hand is TRY-denominated: either the persisted mirror or a
	// TRY-currency original amount.
	value := original
	if mirror.Valid && !mirror.Decimal.IsZero() {
		value = mirror.Decimal.Abs()
	}
	if value.IsZero() {
		return decimal.Zero, nil
	}
	if ownRate, ok := tx.OwnRate(); ok {
		return value.Div(ownRate), nil
	}
	rate, err := n.rates.DailyRate(ctx, models.PairUSDTRY, tx.Date)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return divideByRate(value, rate)
}

// normalizeRegular handles every non-Tether transaction. The persisted TRY
// mirror, when present, is used as-is for TRY figures; otherwise the original
// amounts are converted with the transaction's own recorded rate if it has
// one, else the resolver's daily rate for the transaction date. USD figures
// come from the original amounts when the transaction is USD-denominated,
// else from the TRY figures divided by the resolver's daily USD rate.
func (n *TransactionNormalizer) normalizeRegular(ctx context.Context, tx models.Transaction, gross, commission, net decimal.Decimal, rec *models.CanonicalRecord) error {
	grossSrc := resolveAmountSource(tx, gross, tx.AmountTRY)

	if tryValue, ok := grossSrc.Precomputed(); ok {
		rec.AmountTRY = tryValue
		switch {
		case tx.CommissionTRY.Valid:
			rec.CommissionTRY = tx.CommissionTRY.Decimal.Abs()
		case !commission.IsZero() && !gross.IsZero():
			// A derived or original-currency commission with no TRY mirror of
			// its own: scale it by the mirror's implied conversion rate so
			// both currencies report the same commission.
			rec.CommissionTRY = rec.AmountTRY.Mul(commission).Div(gross)
		default:
			rec.CommissionTRY = decimal.Zero
		}
		if tx.NetAmountTRY.Valid {
			rec.NetAmountTRY = tx.NetAmountTRY.Decimal.Abs()
		} else {
			rec.NetAmountTRY = rec.AmountTRY.Sub(rec.CommissionTRY)
		}
	} else {
		convRate, err := n.conversionRateToTRY(ctx, tx)
		if err != nil {
			return err
		}
		rec.AmountTRY = gross.Mul(convRate)
		rec.CommissionTRY = commission.Mul(convRate)
		rec.NetAmountTRY = net.Mul(convRate)
	}
	if commissionExemptCategories[tx.Category] {
		rec.CommissionTRY = decimal.Zero
		rec.NetAmountTRY = rec.AmountTRY
	}

	if tx.Currency == "USD" {
		// Already USD-denominated; the original amounts are exact.
		rec.AmountUSD = gross
		rec.CommissionUSD = commission
		rec.NetAmountUSD = net
		return nil
	}
	usdRate, err := n.rates.DailyRate(ctx, models.PairUSDTRY, tx.Date)
	if err != nil {
		return err
	}
	if rec.AmountUSD, err = divideByRate(rec.AmountTRY, usdRate); err != nil {
		return err
	}
	if rec.CommissionUSD, err = divideByRate(rec.CommissionTRY, usdRate); err != nil {
		return err
	}
	if rec.NetAmountUSD, err = divideByRate(rec.NetAmountTRY, usdRate); err != nil {
		return err
	}
	return nil
}

// conversionRateToTRY picks the multiplier that turns the transaction's
// original currency into TRY. The transaction's own recorded rate wins when
// present; currencies outside USD/EUR/TRY are treated as TRY at face value.
func (n *TransactionNormalizer) conversionRateToTRY(ctx context.Context, tx models.Transaction) (decimal.Decimal, error) {
	switch tx.Currency {
	case "TRY", "":
		return decimal.NewFromInt(1), nil
	case "USD":
		if ownRate, ok := tx.OwnRate(); ok {
			return ownRate, nil
		}
		return n.rates.DailyRate(ctx, models.PairUSDTRY, tx.Date)
	case "EUR":
		if ownRate, ok := tx.OwnRate(); ok {
			return ownRate, nil
		}
		return n.rates.DailyRate(ctx, models.PairEURTRY, tx.Date)
	default:
		logger.L.Warn("unsupported currency treated as TRY at face value",
			"transactionID", tx.ID, "currency", tx.Currency)
		return decimal.NewFromInt(1), nil
	}
}

func resolveAmountSource(tx models.Transaction, original decimal.Decimal, mirror decimal.NullDecimal) models.AmountSource {
	if mirror.Valid {
		return models.PrecomputedAmount(mirror.Decimal.Abs())
	}
	return models.RawAmount(original, tx.Currency)
}

// divideByRate guards every division by an exchange rate: a zero or near-zero
// divisor surfaces as ErrRateUnavailable instead of an arithmetic blowup.
func divideByRate(value, rate decimal.Decimal) (decimal.Decimal, error) {
	if !usableRate(rate) {
		return decimal.Decimal{}, fmt.Errorf("%w: unusable divisor %s", ErrRateUnavailable, rate.String())
	}
	return value.Div(rate), nil
}
