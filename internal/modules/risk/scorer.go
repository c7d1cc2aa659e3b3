package risk

import (
	"github.com/shopspring/decimal"
)

const scoreScale = 2

// Component weights of the composite risk score
var (
	volatilityWeight = decimal.RequireFromString("0.45")
	mddWeight        = decimal.RequireFromString("0.45")
	worstDayWeight   = decimal.RequireFromString("0.10")

	scoreFactor = decimal.NewFromInt(100)
)

// Scorer ranks instruments against each other and maps ranks to a composite
// score and a discrete risk level. Scoring is strictly cross-sectional: an
// instrument's score depends on the whole population of the run, so all raw
// metrics must be collected before any instrument is scored.
type Scorer struct{}

// NewScorer creates a new cross-sectional scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score assigns percentile ranks, composite scores, and risk levels to the
// whole population. The input order is preserved in the output.
func (s *Scorer) Score(population []RawMetrics) []ScoredMetrics {
	if len(population) == 0 {
		return nil
	}

	volatilities := make([]decimal.Decimal, len(population))
	drawdowns := make([]decimal.Decimal, len(population))
	severities := make([]decimal.Decimal, len(population))

	for i, m := range population {
		volatilities[i] = m.Volatility
		drawdowns[i] = m.MaxDrawdown
		// Worst-day returns are negative for losses; negate so that a
		// larger value means a worse day, like the other two dimensions.
		severities[i] = m.WorstDayReturn.Neg()
	}

	scored := make([]ScoredMetrics, len(population))
	for i, m := range population {
		volPct := percentile(volatilities, m.Volatility)
		mddPct := percentile(drawdowns, m.MaxDrawdown)
		worstPct := percentile(severities, m.WorstDayReturn.Neg())

		score := compositeScore(volPct, mddPct, worstPct)

		scored[i] = ScoredMetrics{
			RawMetrics:           m,
			VolatilityPercentile: volPct.InexactFloat64(),
			MddPercentile:        mddPct.InexactFloat64(),
			WorstDayPercentile:   worstPct.InexactFloat64(),
			RiskScore:            score,
			RiskLevel:            levelForScore(score),
		}
	}

	return scored
}

// percentile is the fraction of the population strictly below value.
// The minimum of the population ranks 0; a population of one ranks 0.
func percentile(population []decimal.Decimal, value decimal.Decimal) decimal.Decimal {
	below := 0
	for _, v := range population {
		if v.LessThan(value) {
			below++
		}
	}
	return decimal.NewFromInt(int64(below)).DivRound(decimal.NewFromInt(int64(len(population))), 10)
}

// compositeScore blends the three percentile ranks into a 0..100 score
func compositeScore(volPct, mddPct, worstPct decimal.Decimal) decimal.Decimal {
	blended := volatilityWeight.Mul(volPct).
		Add(mddWeight.Mul(mddPct)).
		Add(worstDayWeight.Mul(worstPct))
	return scoreFactor.Mul(blended).Round(scoreScale)
}

// levelForScore buckets a rounded score into levels 1..5. Boundaries belong
// to the upper bucket: a score of exactly 20.00 is level 2.
func levelForScore(score decimal.Decimal) int {
	switch {
	case score.LessThan(decimal.NewFromInt(20)):
		return 1
	case score.LessThan(decimal.NewFromInt(40)):
		return 2
	case score.LessThan(decimal.NewFromInt(60)):
		return 3
	case score.LessThan(decimal.NewFromInt(80)):
		return 4
	default:
		return 5
	}
}
