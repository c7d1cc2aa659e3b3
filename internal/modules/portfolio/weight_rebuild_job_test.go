package portfolio

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightRebuild_RestoresDriftedWeights(t *testing.T) {
	f := newPerfFixture(t)

	startDate := date(2026, 1, 14)
	targetDate := date(2026, 1, 15)

	a := f.addInstrument(t, "ALPHA", "KRW", map[time.Time]string{startDate: "1000", targetDate: "1200"})
	b := f.addInstrument(t, "BETA", "KRW", map[time.Time]string{startDate: "1000", targetDate: "900"})

	p := Portfolio{ID: uuid.New(), Name: "Growth 60/40", Status: StatusActive, StartedAt: date(2026, 1, 1)}
	require.NoError(t, f.portfolios.Insert(p))
	_, err := f.snapshots.Replace(p.ID, startDate, []SnapshotEntry{
		{InstrumentID: a, WeightPct: decimal.RequireFromString("60")},
		{InstrumentID: b, WeightPct: decimal.RequireFromString("40")},
	}, "")
	require.NoError(t, err)

	processed, err := f.service.ComputePortfolio(p, targetDate)
	require.NoError(t, err)
	require.True(t, processed)

	// Simulate legacy records: weight_used holds the snapshot's initial
	// weight and valuation was never computed.
	records, err := f.returns.GetInstrumentReturns(p.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)

	initialWeights := map[uuid.UUID]decimal.Decimal{
		a: decimal.RequireFromString("60"),
		b: decimal.RequireFromString("40"),
	}
	for _, record := range records {
		legacy := record.WithDriftedWeight(initialWeights[record.InstrumentID], decimal.Zero, decimal.Zero)
		require.NoError(t, f.returns.UpdateDriftedWeight(legacy))
	}
	require.NoError(t, f.returns.UpdateTotalValue(p.ID, targetDate, decimal.Zero))

	job := NewWeightRebuildJob(f.portfolios, f.snapshots, f.returns, zerolog.Nop())
	require.NoError(t, job.Run())

	records, err = f.returns.GetInstrumentReturns(p.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byInstrument := make(map[uuid.UUID]InstrumentDailyReturn)
	for _, record := range records {
		byInstrument[record.InstrumentID] = record
	}

	winner := byInstrument[a]
	assert.Equal(t, "66.666667", winner.WeightUsed.String())
	assert.True(t, winner.Valuation.Equal(decimal.RequireFromString("7200000")), "valuation = %s", winner.Valuation)
	assert.True(t, winner.ContributionTotal.Equal(decimal.RequireFromString("12")), "contribution = %s", winner.ContributionTotal)

	loser := byInstrument[b]
	assert.Equal(t, "33.333333", loser.WeightUsed.String())
	assert.True(t, loser.Valuation.Equal(decimal.RequireFromString("3600000")), "valuation = %s", loser.Valuation)

	portfolioRecords, err := f.returns.GetPortfolioReturns(p.ID)
	require.NoError(t, err)
	require.Len(t, portfolioRecords, 1)
	assert.True(t, portfolioRecords[0].TotalValue.Equal(decimal.RequireFromString("10800000")),
		"total value = %s", portfolioRecords[0].TotalValue)
}

func TestWeightRebuild_NoRecordsIsANoOp(t *testing.T) {
	f := newPerfFixture(t)

	p := Portfolio{ID: uuid.New(), Name: "Empty", Status: StatusActive, StartedAt: date(2026, 1, 1)}
	require.NoError(t, f.portfolios.Insert(p))

	job := NewWeightRebuildJob(f.portfolios, f.snapshots, f.returns, zerolog.Nop())
	assert.NoError(t, job.Run())
}
