package market

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrNoPriceData indicates no price observation exists on the requested date
// or within the lookback window before it.
var ErrNoPriceData = errors.New("no price data within lookback window")

// lookbackDays bounds how far back a resolver may substitute an older
// observation when the requested date has none (weekends, holidays).
// The window never extends past the requested date: no lookahead.
const lookbackDays = 7

const dateLayout = "2006-01-02"

// PriceRepository handles daily price database operations and resolves
// prices with the bounded lookback contract.
type PriceRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *sql.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		db:  db,
		log: log.With().Str("repo", "price").Logger(),
	}
}

// Insert stores one daily price observation
func (r *PriceRepository) Insert(point PricePoint) error {
	_, err := r.db.Exec(`INSERT OR REPLACE INTO daily_prices (instrument_id, price_date, price, volume)
		VALUES (?, ?, ?, ?)`,
		point.InstrumentID.String(), point.Date.Format(dateLayout), point.Price.String(), point.Volume)
	if err != nil {
		return fmt.Errorf("failed to insert price for %s on %s: %w",
			point.InstrumentID, point.Date.Format(dateLayout), err)
	}

	return nil
}

// Resolve returns the price for the instrument on the given date, or the
// latest price within the lookback window strictly not after it.
// Returns ErrNoPriceData when the window holds no observation.
func (r *PriceRepository) Resolve(instrumentID uuid.UUID, date time.Time) (decimal.Decimal, error) {
	target := date.Format(dateLayout)

	// Exact match first
	var priceStr string
	err := r.db.QueryRow(`SELECT price FROM daily_prices WHERE instrument_id = ? AND price_date = ?`,
		instrumentID.String(), target).Scan(&priceStr)
	if err == nil {
		return parseDecimal(priceStr, "price")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("failed to query price for %s: %w", instrumentID, err)
	}

	// Latest observation within [date - lookbackDays, date]
	windowStart := date.AddDate(0, 0, -lookbackDays).Format(dateLayout)
	err = r.db.QueryRow(`SELECT price FROM daily_prices
		WHERE instrument_id = ? AND price_date >= ? AND price_date <= ?
		ORDER BY price_date DESC LIMIT 1`,
		instrumentID.String(), windowStart, target).Scan(&priceStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("instrument %s on %s: %w", instrumentID, target, ErrNoPriceData)
		}
		return decimal.Zero, fmt.Errorf("failed to query price window for %s: %w", instrumentID, err)
	}

	return parseDecimal(priceStr, "price")
}

// History returns the instrument's full price series ordered oldest to newest
func (r *PriceRepository) History(instrumentID uuid.UUID) ([]decimal.Decimal, error) {
	rows, err := r.db.Query(`SELECT price FROM daily_prices WHERE instrument_id = ? ORDER BY price_date ASC`,
		instrumentID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query price history for %s: %w", instrumentID, err)
	}
	defer rows.Close()

	var prices []decimal.Decimal
	for rows.Next() {
		var priceStr string
		if err := rows.Scan(&priceStr); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}

		price, err := parseDecimal(priceStr, "price")
		if err != nil {
			return nil, err
		}
		prices = append(prices, price)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price history: %w", err)
	}

	return prices, nil
}

func parseDecimal(value, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s value %q: %w", field, value, err)
	}
	return d, nil
}
