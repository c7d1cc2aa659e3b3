package market

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrNoRateData indicates no exchange-rate observation exists on the requested
// date or within the lookback window before it.
var ErrNoRateData = errors.New("no exchange rate data within lookback window")

// RateRepository handles exchange-rate database operations and resolves rates
// with the same bounded lookback contract as prices.
type RateRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRateRepository creates a new exchange-rate repository
func NewRateRepository(db *sql.DB, log zerolog.Logger) *RateRepository {
	return &RateRepository{
		db:  db,
		log: log.With().Str("repo", "rate").Logger(),
	}
}

// Insert stores one exchange-rate observation
func (r *RateRepository) Insert(point RatePoint) error {
	_, err := r.db.Exec(`INSERT OR REPLACE INTO exchange_rates (currency_code, rate_date, base_rate)
		VALUES (?, ?, ?)`,
		point.CurrencyCode, point.Date.Format(dateLayout), point.BaseRate.String())
	if err != nil {
		return fmt.Errorf("failed to insert rate for %s on %s: %w",
			point.CurrencyCode, point.Date.Format(dateLayout), err)
	}

	return nil
}

// Resolve returns the exchange rate for the currency on the given date, or the
// latest rate within the lookback window strictly not after it.
// Returns ErrNoRateData when the window holds no observation.
func (r *RateRepository) Resolve(currencyCode string, date time.Time) (decimal.Decimal, error) {
	target := date.Format(dateLayout)

	var rateStr string
	err := r.db.QueryRow(`SELECT base_rate FROM exchange_rates WHERE currency_code = ? AND rate_date = ?`,
		currencyCode, target).Scan(&rateStr)
	if err == nil {
		return parseDecimal(rateStr, "base_rate")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("failed to query rate for %s: %w", currencyCode, err)
	}

	windowStart := date.AddDate(0, 0, -lookbackDays).Format(dateLayout)
	err = r.db.QueryRow(`SELECT base_rate FROM exchange_rates
		WHERE currency_code = ? AND rate_date >= ? AND rate_date <= ?
		ORDER BY rate_date DESC LIMIT 1`,
		currencyCode, windowStart, target).Scan(&rateStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("currency %s on %s: %w", currencyCode, target, ErrNoRateData)
		}
		return decimal.Zero, fmt.Errorf("failed to query rate window for %s: %w", currencyCode, err)
	}

	return parseDecimal(rateStr, "base_rate")
}
