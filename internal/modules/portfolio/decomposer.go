package portfolio

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/porcana/quantcore/internal/modules/market"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// returnScale is the fixed number of decimal places for return percentages
const returnScale = 6

var hundred = decimal.NewFromInt(100)

// PriceResolver resolves an instrument price for a date with bounded lookback
type PriceResolver interface {
	Resolve(instrumentID uuid.UUID, date time.Time) (decimal.Decimal, error)
}

// RateResolver resolves a currency's exchange rate for a date with bounded lookback
type RateResolver interface {
	Resolve(currencyCode string, date time.Time) (decimal.Decimal, error)
}

// DecomposedReturn is one instrument's return between two dates, split into
// the price move in its trading currency and the exchange-rate move against
// the domestic currency. Total is the sum of the two rounded components and
// is not rounded again.
type DecomposedReturn struct {
	Local decimal.Decimal
	Fx    decimal.Decimal
	Total decimal.Decimal
}

// Decomposer computes decomposed instrument returns from resolved series
type Decomposer struct {
	prices PriceResolver
	rates  RateResolver
	log    zerolog.Logger
}

// NewDecomposer creates a new return decomposer
func NewDecomposer(prices PriceResolver, rates RateResolver, log zerolog.Logger) *Decomposer {
	return &Decomposer{
		prices: prices,
		rates:  rates,
		log:    log.With().Str("component", "decomposer").Logger(),
	}
}

// Decompose computes the instrument's return from startDate to targetDate.
// Domestic instruments get an FX component of exactly zero without touching
// the rate series. A missing price or rate fails the whole decomposition.
func (d *Decomposer) Decompose(instrument market.Instrument, startDate, targetDate time.Time) (DecomposedReturn, error) {
	startPrice, err := d.prices.Resolve(instrument.ID, startDate)
	if err != nil {
		return DecomposedReturn{}, fmt.Errorf("start price for %s: %w", instrument.Symbol, err)
	}

	targetPrice, err := d.prices.Resolve(instrument.ID, targetDate)
	if err != nil {
		return DecomposedReturn{}, fmt.Errorf("target price for %s: %w", instrument.Symbol, err)
	}

	local := percentChange(startPrice, targetPrice)

	fx := decimal.Zero
	if !instrument.IsDomestic() {
		startRate, err := d.rates.Resolve(instrument.Currency, startDate)
		if err != nil {
			return DecomposedReturn{}, fmt.Errorf("start rate for %s: %w", instrument.Symbol, err)
		}

		targetRate, err := d.rates.Resolve(instrument.Currency, targetDate)
		if err != nil {
			return DecomposedReturn{}, fmt.Errorf("target rate for %s: %w", instrument.Symbol, err)
		}

		fx = percentChange(startRate, targetRate)
	}

	return DecomposedReturn{
		Local: local,
		Fx:    fx,
		Total: local.Add(fx),
	}, nil
}

// percentChange returns (target-start)/start × 100 at fixed scale, half-up
func percentChange(start, target decimal.Decimal) decimal.Decimal {
	return target.Sub(start).Div(start).Mul(hundred).Round(returnScale)
}
