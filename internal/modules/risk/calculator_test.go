package risk

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantPrices(n int, value string) []decimal.Decimal {
	prices := make([]decimal.Decimal, n)
	for i := range prices {
		prices[i] = decimal.RequireFromString(value)
	}
	return prices
}

func TestCalculate_RejectsShortHistory(t *testing.T) {
	c := NewCalculator(zerolog.Nop())

	_, err := c.Calculate(constantPrices(MinObservations-1, "100"))
	assert.ErrorIs(t, err, ErrInsufficientHistory)

	_, err = c.Calculate(nil)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestCalculate_RejectsHistoryWithNoUsableReturns(t *testing.T) {
	c := NewCalculator(zerolog.Nop())

	// Long enough but every pair contains a non-positive price
	_, err := c.Calculate(constantPrices(MinObservations+1, "0"))
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestCalculate_FlatSeriesHasZeroRisk(t *testing.T) {
	c := NewCalculator(zerolog.Nop())

	metrics, err := c.Calculate(constantPrices(61, "100"))
	require.NoError(t, err)

	assert.True(t, metrics.Volatility.IsZero(), "volatility = %s", metrics.Volatility)
	assert.True(t, metrics.MaxDrawdown.IsZero(), "mdd = %s", metrics.MaxDrawdown)
	assert.True(t, metrics.WorstDayReturn.IsZero(), "worst = %s", metrics.WorstDayReturn)
}

func TestCalculate_DrawdownFromRunningPeak(t *testing.T) {
	c := NewCalculator(zerolog.Nop())

	// Flat, one spike to 110, then a drop to 99: peak-to-trough 10%
	prices := constantPrices(59, "100")
	prices = append(prices, decimal.RequireFromString("110"), decimal.RequireFromString("99"))

	metrics, err := c.Calculate(prices)
	require.NoError(t, err)

	assert.Equal(t, "0.1", metrics.MaxDrawdown.String())
	// ln(99/110) is the worst single-day log return in the series
	assert.Equal(t, "-0.105361", metrics.WorstDayReturn.String())
	assert.True(t, metrics.Volatility.IsPositive())
}

func TestCalculate_SkipsNonPositivePairs(t *testing.T) {
	c := NewCalculator(zerolog.Nop())

	// A bad zero print in the middle must not poison the log returns
	prices := constantPrices(30, "100")
	prices = append(prices, decimal.Zero)
	prices = append(prices, constantPrices(30, "100")...)

	metrics, err := c.Calculate(prices)
	require.NoError(t, err)
	assert.True(t, metrics.Volatility.IsZero())
}

func TestCalculate_RecoveredSeriesKeepsWorstDrawdown(t *testing.T) {
	c := NewCalculator(zerolog.Nop())

	// Drop to 80 then full recovery: the drawdown stays at 20%
	prices := constantPrices(59, "100")
	prices = append(prices,
		decimal.RequireFromString("80"),
		decimal.RequireFromString("100"),
	)

	metrics, err := c.Calculate(prices)
	require.NoError(t, err)
	assert.Equal(t, "0.2", metrics.MaxDrawdown.String())
}
