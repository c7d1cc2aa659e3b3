package portfolio

import (
	"github.com/google/uuid"
)

// ReturnCalculator derives cumulative returns from stored daily records.
// Used by reporting consumers; daily records remain the source of truth.
type ReturnCalculator struct {
	returns *ReturnRepository
}

// NewReturnCalculator creates a new return calculator
func NewReturnCalculator(returns *ReturnRepository) *ReturnCalculator {
	return &ReturnCalculator{returns: returns}
}

// TotalReturn compounds the portfolio's stored daily total returns:
// (1+r1)(1+r2)...(1+rn) - 1, as a percentage. No records means 0.
func (c *ReturnCalculator) TotalReturn(portfolioID uuid.UUID) (float64, error) {
	records, err := c.returns.GetPortfolioReturns(portfolioID)
	if err != nil {
		return 0, err
	}

	cumulative := 1.0
	for _, record := range records {
		cumulative *= 1.0 + record.ReturnTotal.InexactFloat64()/100.0
	}

	return (cumulative - 1.0) * 100.0, nil
}

// InstrumentReturns compounds each requested instrument's stored daily total
// returns within the portfolio. Instruments with no records map to 0.
func (c *ReturnCalculator) InstrumentReturns(portfolioID uuid.UUID, instrumentIDs []uuid.UUID) (map[uuid.UUID]float64, error) {
	records, err := c.returns.GetInstrumentReturns(portfolioID)
	if err != nil {
		return nil, err
	}

	wanted := make(map[uuid.UUID]bool, len(instrumentIDs))
	for _, id := range instrumentIDs {
		wanted[id] = true
	}

	cumulative := make(map[uuid.UUID]float64, len(instrumentIDs))
	for _, id := range instrumentIDs {
		cumulative[id] = 1.0
	}

	for _, record := range records {
		if !wanted[record.InstrumentID] {
			continue
		}
		cumulative[record.InstrumentID] *= 1.0 + record.ReturnTotal.InexactFloat64()/100.0
	}

	result := make(map[uuid.UUID]float64, len(instrumentIDs))
	for id, value := range cumulative {
		result[id] = (value - 1.0) * 100.0
	}

	return result, nil
}
