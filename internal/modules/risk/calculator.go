package risk

import (
	"errors"
	"math"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientHistory indicates too few price observations to compute
// risk metrics. Non-fatal: the instrument is skipped for the run.
var ErrInsufficientHistory = errors.New("insufficient price history")

const (
	// MinObservations is the minimum price history length an instrument
	// needs to qualify for the weekly risk run.
	MinObservations = 60

	// volatilityWindow is the number of most recent log returns entering
	// the volatility estimate.
	volatilityWindow = 60

	// drawdownWindow is the number of most recent prices (and returns)
	// entering max drawdown and worst-day computations, one trading year.
	drawdownWindow = 252

	metricScale = 6
)

var sqrtTradingDays = math.Sqrt(252)

// Metrics are the three raw risk dimensions of one price history
type Metrics struct {
	Volatility     decimal.Decimal
	MaxDrawdown    decimal.Decimal
	WorstDayReturn decimal.Decimal
}

// Calculator computes raw risk metrics from a price history
type Calculator struct {
	log zerolog.Logger
}

// NewCalculator creates a new risk metrics calculator
func NewCalculator(log zerolog.Logger) *Calculator {
	return &Calculator{
		log: log.With().Str("component", "risk_calculator").Logger(),
	}
}

// Calculate computes volatility, max drawdown, and worst-day return from a
// price history ordered oldest to newest. Histories shorter than
// MinObservations (or with no usable return pairs) yield ErrInsufficientHistory.
func (c *Calculator) Calculate(prices []decimal.Decimal) (Metrics, error) {
	if len(prices) < MinObservations {
		return Metrics{}, ErrInsufficientHistory
	}

	returns := logReturns(prices)
	if len(returns) == 0 {
		return Metrics{}, ErrInsufficientHistory
	}

	return Metrics{
		Volatility:     annualizedVolatility(returns),
		MaxDrawdown:    maxDrawdown(prices),
		WorstDayReturn: worstDayReturn(returns),
	}, nil
}

// logReturns computes r_t = ln(P_t / P_{t-1}) for consecutive pairs,
// skipping any pair where either price is non-positive.
func logReturns(prices []decimal.Decimal) []float64 {
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		current := prices[i]
		if prev.IsPositive() && current.IsPositive() {
			returns = append(returns, math.Log(current.InexactFloat64()/prev.InexactFloat64()))
		}
	}
	return returns
}

// annualizedVolatility is the population standard deviation of the most
// recent volatilityWindow log returns, scaled by √252.
func annualizedVolatility(returns []float64) decimal.Decimal {
	recent := tail(returns, volatilityWindow)

	mean := stat.Mean(recent, nil)
	variance := stat.MomentAbout(2, recent, mean, nil)
	annualized := math.Sqrt(variance) * sqrtTradingDays

	return decimal.NewFromFloat(annualized).Round(metricScale)
}

// maxDrawdown is the largest peak-to-trough decline over the most recent
// drawdownWindow prices, tracked against a running maximum.
func maxDrawdown(prices []decimal.Decimal) decimal.Decimal {
	recent := prices[max(0, len(prices)-drawdownWindow):]

	maxPrice := recent[0]
	drawdown := decimal.Zero

	for _, price := range recent {
		if price.GreaterThan(maxPrice) {
			maxPrice = price
		}
		if maxPrice.IsPositive() {
			current := maxPrice.Sub(price).DivRound(maxPrice, 10)
			if current.GreaterThan(drawdown) {
				drawdown = current
			}
		}
	}

	return drawdown.Round(metricScale)
}

// worstDayReturn is the minimum log return over the most recent drawdownWindow returns
func worstDayReturn(returns []float64) decimal.Decimal {
	recent := tail(returns, drawdownWindow)
	return decimal.NewFromFloat(floats.Min(recent)).Round(metricScale)
}

// tail returns the last n elements of values, or all of them if fewer
func tail(values []float64, n int) []float64 {
	return values[max(0, len(values)-n):]
}
