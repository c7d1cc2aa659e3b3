// Package market holds the instrument universe and its observed series:
// daily prices per instrument and exchange rates per currency.
package market

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DomesticCurrency is the currency all valuations are expressed in.
// Instruments traded in any other currency carry a currency-translation
// component in their returns.
const DomesticCurrency = "KRW"

// Instrument is one tradable instrument in the universe
type Instrument struct {
	ID       uuid.UUID
	Symbol   string
	Name     string
	Market   string // KR, US
	Currency string // trading currency code
	Active   bool

	// CurrentRiskLevel caches the level of the latest risk_history record.
	// Overwritten by every successful weekly risk run; not authoritative history.
	CurrentRiskLevel *int
}

// IsDomestic reports whether the instrument trades in the domestic currency
func (i Instrument) IsDomestic() bool {
	return i.Currency == DomesticCurrency
}

// PricePoint is one end-of-day price observation
type PricePoint struct {
	InstrumentID uuid.UUID
	Date         time.Time
	Price        decimal.Decimal
	Volume       *int64
}

// RatePoint is one end-of-day exchange-rate observation (KRW per unit of currency)
type RatePoint struct {
	CurrencyCode string
	Date         time.Time
	BaseRate     decimal.Decimal
}
